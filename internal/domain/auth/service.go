package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"produceledger/internal/core/apperror"
	appctx "produceledger/internal/core/context"
	"produceledger/internal/core/id"
	"produceledger/internal/core/tenant"
	"produceledger/pkg/logger"
)

// PasswordMinLength is enforced when accounts are created.
const PasswordMinLength = 8

// Service authenticates tenant users.
type Service struct {
	users UserRepository
	jwt   *JWTService
	cost  int
}

func NewService(users UserRepository, jwtService *JWTService) *Service {
	return &Service{users: users, jwt: jwtService, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

func requireTenantID(ctx context.Context) (string, error) {
	tenantID := tenant.GetTenantID(ctx)
	if tenantID == "" {
		return "", apperror.NewValidation("tenant is required").WithDetail("header", "X-Tenant-ID")
	}
	return tenantID, nil
}

// Login checks the password and issues an access token bound to the current tenant.
func (s *Service) Login(ctx context.Context, creds Credentials) (*Token, *User, error) {
	tenantID, err := requireTenantID(ctx)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(creds.Email))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		logger.Warn(ctx, "login failed", "email", user.Email)
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}
	if err := user.CanLogin(); err != nil {
		return nil, nil, err
	}

	access, expiresAt, err := s.jwt.GenerateAccessToken(user.ID.String(), tenantID, user.Email, user.Role)
	if err != nil {
		return nil, nil, err
	}
	if err := s.users.RecordLogin(ctx, user.ID); err != nil {
		logger.Warn(ctx, "record login failed", "user_id", user.ID, "error", err)
	}

	logger.Info(ctx, "user logged in", "user_id", user.ID, "email", user.Email)
	return &Token{AccessToken: access, ExpiresAt: expiresAt, TokenType: "Bearer"}, user, nil
}

// Me returns the authenticated user.
func (s *Service) Me(ctx context.Context) (*User, error) {
	uc := appctx.GetUser(ctx)
	if uc == nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	userID, err := id.Parse(uc.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid token subject")
	}
	return s.users.GetByID(ctx, userID)
}

// CreateUser hashes the password and stores a new account.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	if len(in.Password) < PasswordMinLength {
		return nil, apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", PasswordMinLength),
		).WithDetail("field", "password")
	}
	user := NewUser(in.Email, in.FullName, "", in.Role)
	if err := user.Validate(ctx); err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("check email exists: %w", err)
	}
	if exists {
		return nil, apperror.NewDuplicate("user", "email", user.Email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	logger.Info(ctx, "user created", "user_id", user.ID, "email", user.Email, "role", user.Role)
	return user, nil
}

// EnsureAdmin creates the admin account unless the email is already taken.
// Returns true when a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, fullName, password string) (bool, error) {
	_, err := s.CreateUser(ctx, CreateUserInput{
		Email:    email,
		FullName: fullName,
		Password: password,
		Role:     appctx.RoleAdmin,
	})
	if apperror.IsDuplicate(err) {
		return false, nil
	}
	return err == nil, err
}
