// Package settings is the process-wide cache of the _configs table.
//
// Reads take the shared lock and never block each other. Update holds the
// exclusive lock for the whole write-through so that no reader observes the
// map and the table disagreeing.
package settings

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	merrors "github.com/moosedb/moosedb/internal/errors"
	"github.com/moosedb/moosedb/internal/store"
)

// Settings caches persisted settings.
type Settings struct {
	mu     sync.RWMutex
	values map[string]string
	store  *store.Store
}

// Load reads every setting from the store.
func Load(ctx context.Context, s *store.Store) (*Settings, error) {
	conn, err := s.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	values, err := store.LoadSettings(ctx, conn)
	if err != nil {
		return nil, err
	}
	return &Settings{values: values, store: s}, nil
}

// Get returns a setting, including the signing secret.
func (s *Settings) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Public returns a setting that may be shown to API clients. The signing secret
// is reported as not found.
func (s *Settings) Public(key string) (string, error) {
	if key == store.SettingSecret {
		return "", notFound(key)
	}
	v, ok := s.Get(key)
	if !ok {
		return "", notFound(key)
	}
	return v, nil
}

// Keys returns the public setting keys in sorted order.
func (s *Settings) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		if k != store.SettingSecret {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Secret returns the token signing secret.
func (s *Settings) Secret() string {
	v, _ := s.Get(store.SettingSecret)
	return v
}

// Update writes a new value for an existing setting, then updates the cache.
// The secret cannot be set directly; use RotateSecret.
func (s *Settings) Update(ctx context.Context, key, value string) error {
	if key == store.SettingSecret {
		return merrors.NewInvalidInput(merrors.CodeInvalidPayload,
			"The secret cannot be set directly; rotate it instead")
	}
	return s.write(ctx, key, value)
}

// RotateSecret replaces the signing secret with a fresh random one. Every token
// issued under the old secret stops verifying.
func (s *Settings) RotateSecret(ctx context.Context) error {
	if err := s.write(ctx, store.SettingSecret, store.GenerateSecret()); err != nil {
		return err
	}
	log.Printf("settings: secret rotated")
	return nil
}

func (s *Settings) write(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return notFound(key)
	}

	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx,
		`UPDATE _configs SET value = ?, updated_at = CURRENT_TIMESTAMP WHERE key = ?`, value, key)
	if err != nil {
		return store.MapError(err, "Failed to update setting")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(key)
	}

	s.values[key] = value
	return nil
}

func notFound(key string) error {
	return merrors.NewNotFound(merrors.CodeSettingNotFound, fmt.Sprintf("Setting '%s' not found", key))
}
