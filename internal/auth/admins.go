package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	merrors "github.com/moosedb/moosedb/internal/errors"
	"github.com/moosedb/moosedb/internal/store"
)

// Service manages administrator accounts and logins.
type Service struct {
	store  *store.Store
	tokens *Tokens
	ttl    time.Duration
}

// NewService creates a Service that issues tokens valid for ttl.
func NewService(s *store.Store, tokens *Tokens, ttl time.Duration) *Service {
	return &Service{store: s, tokens: tokens, ttl: ttl}
}

// Tokens returns the token issuer used by the service.
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Login checks credentials and returns a bearer token for the administrator.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	var hashed string
	err = conn.QueryRowContext(ctx,
		`SELECT password FROM _super_admins WHERE email = ?`, email).Scan(&hashed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", invalidCredentials()
	}
	if err != nil {
		return "", store.MapError(err, "Failed to look up administrator")
	}

	if !VerifyPassword(password, hashed) {
		return "", invalidCredentials()
	}
	return s.tokens.IssueToken(email, s.ttl)
}

// UpdateSuperUser replaces the password of an existing administrator.
func (s *Service) UpdateSuperUser(ctx context.Context, email, password string) error {
	if password == "" {
		return merrors.NewInvalidInput(merrors.CodeInvalidPayload, "Password is required")
	}
	hashed, err := HashPassword(password)
	if err != nil {
		return merrors.NewInternalError("Failed to hash password", err)
	}

	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx,
		`UPDATE _super_admins SET password = ?, updated_at = CURRENT_TIMESTAMP WHERE email = ?`, hashed, email)
	if err != nil {
		return store.MapError(err, "Failed to update administrator")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.MapError(err, "Failed to update administrator")
	}
	if n == 0 {
		return merrors.NewNotFound(merrors.CodeUserNotFound,
			fmt.Sprintf("Super admin with email '%s' not found", email))
	}

	log.Printf("auth: password updated for %s", email)
	return nil
}

// CreateSuperAdmin adds a new administrator account.
func (s *Service) CreateSuperAdmin(ctx context.Context, name, email, password, confirm string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return merrors.NewInvalidInput(merrors.CodeInvalidPayload, "Name is required")
	case strings.TrimSpace(email) == "":
		return merrors.NewInvalidInput(merrors.CodeInvalidPayload, "Email is required")
	case password == "":
		return merrors.NewInvalidInput(merrors.CodeInvalidPayload, "Password is required")
	case password != confirm:
		return merrors.NewInvalidInput(merrors.CodeInvalidPayload, "Passwords do not match")
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return merrors.NewInternalError("Failed to hash password", err)
	}

	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx,
		`INSERT INTO _super_admins (name, email, password) VALUES (?, ?, ?)`, name, email, hashed)
	if err != nil {
		mapped := store.MapError(err, "Failed to create administrator")
		if store.IsConstraint(mapped) {
			return merrors.NewAlreadyExists(merrors.CodeUserExists,
				fmt.Sprintf("Super admin with email '%s' already exists", email))
		}
		return mapped
	}

	log.Printf("auth: created super admin %s", email)
	return nil
}

func invalidCredentials() error {
	return merrors.NewUnauthorized(merrors.CodeInvalidCredentials, "Invalid credentials")
}
