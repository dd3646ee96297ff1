package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"produceledger/internal/core/apperror"
	appctx "produceledger/internal/core/context"
	"produceledger/internal/core/id"
	"produceledger/internal/core/tenant"
)

type memUsers struct {
	mu     sync.Mutex
	byID   map[id.ID]*User
	logins int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[id.ID]*User)}
}

func (m *memUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, userID id.ID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperror.NewNotFound("user", userID.String())
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("user", email)
}

func (m *memUsers) Exists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUsers) RecordLogin(_ context.Context, userID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.byID[userID].LastLoginAt = &now
	m.logins++
	return nil
}

func tenantCtx() context.Context {
	return tenant.WithTenant(context.Background(), &tenant.Tenant{ID: "t-1", Slug: "acme", Status: tenant.StatusActive})
}

func newTestService(repo UserRepository) (*Service, *JWTService) {
	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))
	return NewService(repo, jwtSvc).WithHashCost(bcrypt.MinCost), jwtSvc
}

func TestLogin_IssuesTenantBoundToken(t *testing.T) {
	repo := newMemUsers()
	svc, jwtSvc := newTestService(repo)
	ctx := tenantCtx()

	_, err := svc.CreateUser(ctx, CreateUserInput{Email: "Owner@Example.com", Password: "secret-pass", Role: appctx.RoleAdmin})
	require.NoError(t, err)

	token, user, err := svc.Login(ctx, Credentials{Email: "owner@example.com", Password: "secret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", user.Email)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, 1, repo.logins)

	uc, err := jwtSvc.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "t-1", uc.TenantID)
	assert.Equal(t, user.ID.String(), uc.UserID)
	assert.True(t, uc.IsAdmin())
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newTestService(newMemUsers())
	ctx := tenantCtx()
	_, err := svc.CreateUser(ctx, CreateUserInput{Email: "a@b.co", Password: "secret-pass"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, Credentials{Email: "a@b.co", Password: "nope-nope"})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))

	_, _, err = svc.Login(ctx, Credentials{Email: "missing@b.co", Password: "secret-pass"})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}

func TestLogin_DisabledAccount(t *testing.T) {
	repo := newMemUsers()
	svc, _ := newTestService(repo)
	ctx := tenantCtx()
	u, err := svc.CreateUser(ctx, CreateUserInput{Email: "a@b.co", Password: "secret-pass"})
	require.NoError(t, err)
	repo.byID[u.ID].IsActive = false

	_, _, err = svc.Login(ctx, Credentials{Email: "a@b.co", Password: "secret-pass"})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
}

func TestLogin_RequiresTenant(t *testing.T) {
	svc, _ := newTestService(newMemUsers())

	_, _, err := svc.Login(context.Background(), Credentials{Email: "a@b.co", Password: "secret-pass"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCreateUser_Rules(t *testing.T) {
	svc, _ := newTestService(newMemUsers())
	ctx := tenantCtx()

	_, err := svc.CreateUser(ctx, CreateUserInput{Email: "a@b.co", Password: "short"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = svc.CreateUser(ctx, CreateUserInput{Email: "a@b.co", Password: "secret-pass", Role: "owner"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	u, err := svc.CreateUser(ctx, CreateUserInput{Email: "a@b.co", Password: "secret-pass"})
	require.NoError(t, err)
	assert.Equal(t, appctx.RoleStaff, u.Role)

	_, err = svc.CreateUser(ctx, CreateUserInput{Email: "A@B.CO", Password: "secret-pass"})
	assert.True(t, apperror.IsDuplicate(err))
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	svc, _ := newTestService(newMemUsers())
	ctx := tenantCtx()

	created, err := svc.EnsureAdmin(ctx, "admin@example.com", "Admin", "secret-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "admin@example.com", "Admin", "secret-pass")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestMe(t *testing.T) {
	svc, _ := newTestService(newMemUsers())
	ctx := tenantCtx()
	u, err := svc.CreateUser(ctx, CreateUserInput{Email: "a@b.co", Password: "secret-pass"})
	require.NoError(t, err)

	_, err = svc.Me(ctx)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))

	me, err := svc.Me(appctx.WithUser(ctx, &appctx.UserContext{UserID: u.ID.String(), Role: appctx.RoleStaff}))
	require.NoError(t, err)
	assert.Equal(t, u.ID, me.ID)
}

func TestValidateToken_Rejects(t *testing.T) {
	jwtSvc := NewJWTService(DefaultJWTConfig("secret-a"))
	other := NewJWTService(DefaultJWTConfig("secret-b"))
	token, _, err := other.GenerateAccessToken("u", "t", "e@x.io", appctx.RoleStaff)
	require.NoError(t, err)

	_, err = jwtSvc.ValidateToken(token)
	assert.Error(t, err)

	expired := NewJWTService(JWTConfig{Secret: "secret-a", Issuer: "produceledger", AccessTokenTTL: -time.Minute})
	token, _, err = expired.GenerateAccessToken("u", "t", "e@x.io", appctx.RoleStaff)
	require.NoError(t, err)
	_, err = jwtSvc.ValidateToken(token)
	assert.Error(t, err)
}
