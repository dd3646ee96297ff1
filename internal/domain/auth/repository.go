package auth

import (
	"context"

	"produceledger/internal/core/id"
)

// UserRepository defines user storage in the tenant database.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, userID id.ID) (*User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*User, error)
	Exists(ctx context.Context, email string) (bool, error)
	// RecordLogin stamps last_login_at.
	RecordLogin(ctx context.Context, userID id.ID) error
}
