package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	merrors "github.com/moosedb/moosedb/internal/errors"
	"github.com/moosedb/moosedb/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSecret struct{ secret string }

func (s *staticSecret) Secret() string { return s.secret }

func newService(t *testing.T) (*Service, *staticSecret) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "database.sqlite"), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Bootstrap(context.Background(), HashPassword)
	require.NoError(t, err)

	secret := &staticSecret{secret: store.GenerateSecret()}
	return NewService(s, NewTokens(secret), time.Hour), secret
}

func TestPasswordHashing(t *testing.T) {
	hashed, err := HashPassword("moosedb")
	require.NoError(t, err)
	assert.NotEqual(t, "moosedb", hashed)
	assert.True(t, VerifyPassword("moosedb", hashed))
	assert.False(t, VerifyPassword("wrong", hashed))
	assert.False(t, VerifyPassword("moosedb", "not-a-hash"))
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens(&staticSecret{secret: "s3cret"})

	token, err := tokens.IssueToken("admin@moosedb.com", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, token, "v2.local.")

	subject, err := tokens.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin@moosedb.com", subject)
}

func TestTokenExpired(t *testing.T) {
	tokens := NewTokens(&staticSecret{secret: "s3cret"})
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }

	token, err := tokens.IssueToken("a@b.c", time.Minute)
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tokens.VerifyToken(token)
	assert.True(t, merrors.IsUnauthorized(err))
}

func TestTokenRejectedAfterSecretRotation(t *testing.T) {
	secret := &staticSecret{secret: "first"}
	tokens := NewTokens(secret)

	token, err := tokens.IssueToken("a@b.c", time.Hour)
	require.NoError(t, err)

	secret.secret = "second"
	_, err = tokens.VerifyToken(token)
	assert.True(t, merrors.IsUnauthorized(err))
	assert.Equal(t, merrors.CodeInvalidToken, merrors.GetCode(err))
}

func TestTokenGarbage(t *testing.T) {
	tokens := NewTokens(&staticSecret{secret: "s3cret"})
	for _, token := range []string{"", "abc", "v2.local.!!!", "v2.public.xyz"} {
		_, err := tokens.VerifyToken(token)
		assert.True(t, merrors.IsUnauthorized(err), token)
	}
}

func TestLoginDefaultAdmin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	token, err := svc.Login(ctx, store.DefaultAdminEmail, store.DefaultAdminPassword)
	require.NoError(t, err)

	subject, err := svc.Tokens().VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, store.DefaultAdminEmail, subject)

	_, err = svc.Login(ctx, store.DefaultAdminEmail, "wrong")
	assert.Equal(t, merrors.CodeInvalidCredentials, merrors.GetCode(err))

	_, err = svc.Login(ctx, "nobody@moosedb.com", "moosedb")
	assert.Equal(t, merrors.CodeInvalidCredentials, merrors.GetCode(err))
}

func TestUpdateSuperUser(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdateSuperUser(ctx, store.DefaultAdminEmail, "n3w-pass"))

	_, err := svc.Login(ctx, store.DefaultAdminEmail, store.DefaultAdminPassword)
	assert.True(t, merrors.IsUnauthorized(err))
	_, err = svc.Login(ctx, store.DefaultAdminEmail, "n3w-pass")
	assert.NoError(t, err)

	err = svc.UpdateSuperUser(ctx, "ghost@moosedb.com", "x")
	assert.True(t, merrors.IsNotFound(err))
}

func TestCreateSuperAdmin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	err := svc.CreateSuperAdmin(ctx, "Ops", "ops@moosedb.com", "pw", "different")
	assert.True(t, merrors.IsInvalidInput(err))

	require.NoError(t, svc.CreateSuperAdmin(ctx, "Ops", "ops@moosedb.com", "pw", "pw"))

	_, err = svc.Login(ctx, "ops@moosedb.com", "pw")
	assert.NoError(t, err)

	err = svc.CreateSuperAdmin(ctx, "Ops", "ops@moosedb.com", "pw", "pw")
	assert.True(t, merrors.IsAlreadyExists(err))
}
