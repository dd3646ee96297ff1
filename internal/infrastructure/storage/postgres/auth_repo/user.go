// Package auth_repo provides the PostgreSQL user store.
// The tenant database is taken from the transaction or pool carried by ctx.
package auth_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/domain/auth"
	"produceledger/internal/infrastructure/storage/postgres"
)

const userColumns = `id, email, full_name, password_hash, role, is_active,
	last_login_at, version, created_at, updated_at`

// UserRepo implements auth.UserRepository.
type UserRepo struct{}

var _ auth.UserRepository = (*UserRepo)(nil)

func NewUserRepo() *UserRepo {
	return &UserRepo{}
}

func scanUser(row pgx.Row, user *auth.User) error {
	return row.Scan(
		&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.Role, &user.IsActive,
		&user.LastLoginAt, &user.Version, &user.CreatedAt, &user.UpdatedAt,
	)
}

func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	q, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, role, is_active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, user.ID, user.Email, user.FullName, user.PasswordHash, user.Role, user.IsActive,
		user.Version, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return postgres.MapError("insert user", "user", err)
	}
	return nil
}

func (r *UserRepo) get(ctx context.Context, where string, arg any, key string) (*auth.User, error) {
	q, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var user auth.User
	err = scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg), &user)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("user", key)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.get(ctx, "id = $1", userID, userID.String())
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.get(ctx, "lower(email) = lower($1)", email, email)
}

func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	q, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return exists, nil
}

func (r *UserRepo) RecordLogin(ctx context.Context, userID id.ID) error {
	q, err := postgres.QuerierFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `UPDATE users SET last_login_at = now(), updated_at = now() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}
