package auth

import (
	"crypto/sha256"
	"time"

	"github.com/o1egl/paseto"

	merrors "github.com/moosedb/moosedb/internal/errors"
)

// Issuer is written into every token and checked on verification.
const Issuer = "moosedb"

type claims struct {
	Subject   string    `json:"sub"`
	Issuer    string    `json:"iss"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// SecretSource supplies the current signing secret.
type SecretSource interface {
	Secret() string
}

// Tokens issues and verifies bearer tokens.
type Tokens struct {
	secrets SecretSource
	now     func() time.Time
}

// NewTokens creates a token service keyed by secrets.
func NewTokens(secrets SecretSource) *Tokens {
	return &Tokens{secrets: secrets, now: time.Now}
}

func (t *Tokens) key() []byte {
	sum := sha256.Sum256([]byte(t.secrets.Secret()))
	return sum[:]
}

// IssueToken returns a token for subject that expires after ttl.
func (t *Tokens) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := t.now().UTC()
	c := claims{
		Subject:   subject,
		Issuer:    Issuer,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	token, err := paseto.NewV2().Encrypt(t.key(), c, nil)
	if err != nil {
		return "", merrors.NewInternalError("Failed to create token", err)
	}
	return token, nil
}

// VerifyToken returns the subject of a valid, unexpired token.
func (t *Tokens) VerifyToken(token string) (string, error) {
	var c claims
	if err := paseto.NewV2().Decrypt(token, t.key(), &c, nil); err != nil {
		return "", merrors.NewUnauthorized(merrors.CodeInvalidToken, "Invalid token")
	}
	if c.Issuer != Issuer || c.Subject == "" {
		return "", merrors.NewUnauthorized(merrors.CodeInvalidToken, "Invalid token")
	}
	if !t.now().Before(c.ExpiresAt) {
		return "", merrors.NewUnauthorized(merrors.CodeInvalidToken, "Token expired")
	}
	return c.Subject, nil
}
