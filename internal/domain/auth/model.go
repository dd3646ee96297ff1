// Package auth provides authentication and authorization domain logic.
package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"produceledger/internal/core/apperror"
	appctx "produceledger/internal/core/context"
	"produceledger/internal/core/id"
)

// User is a staff member who can sign in to a tenant.
type User struct {
	ID           id.ID      `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	FullName     string     `db:"full_name" json:"fullName"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	Version      int        `db:"version" json:"version"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// NewUser creates an active user.
func NewUser(email, fullName, passwordHash, role string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           id.New(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate normalises the email and checks the role.
func (u *User) Validate(ctx context.Context) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" {
		return apperror.NewValidation("email is required").WithDetail("field", "email")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return apperror.NewValidation("email is invalid").WithDetail("field", "email")
	}
	u.FullName = strings.TrimSpace(u.FullName)
	switch u.Role {
	case appctx.RoleAdmin, appctx.RoleStaff:
	case "":
		u.Role = appctx.RoleStaff
	default:
		return apperror.NewValidation("role must be admin or staff").WithDetail("field", "role")
	}
	return nil
}

// CanLogin checks if user can login.
func (u *User) CanLogin() error {
	if !u.IsActive {
		return apperror.NewForbidden("account is disabled")
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == appctx.RoleAdmin
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	TokenType   string    `json:"tokenType"`
}

// Credentials for login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUserInput carries a new account.
type CreateUserInput struct {
	Email    string
	FullName string
	Password string
	Role     string
}
