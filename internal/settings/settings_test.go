package settings

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	merrors "github.com/moosedb/moosedb/internal/errors"
	"github.com/moosedb/moosedb/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSettings(t *testing.T) (*Settings, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "database.sqlite"), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Bootstrap(context.Background(), func(p string) (string, error) { return p, nil })
	require.NoError(t, err)

	st, err := Load(context.Background(), s)
	require.NoError(t, err)
	return st, s
}

func TestLoadAndGet(t *testing.T) {
	st, _ := newSettings(t)

	v, err := st.Public(store.SettingAppName)
	require.NoError(t, err)
	assert.Equal(t, "MooseDB", v)

	assert.NotEmpty(t, st.Secret())
	assert.Equal(t, []string{store.SettingAppName, store.SettingRecordsPerPage}, st.Keys())
}

func TestSecretIsHidden(t *testing.T) {
	st, _ := newSettings(t)

	_, err := st.Public(store.SettingSecret)
	assert.True(t, merrors.IsNotFound(err))

	err = st.Update(context.Background(), store.SettingSecret, "weak")
	assert.True(t, merrors.IsInvalidInput(err))
}

func TestUpdateWritesThrough(t *testing.T) {
	st, s := newSettings(t)
	ctx := context.Background()

	require.NoError(t, st.Update(ctx, store.SettingAppName, "Antlers"))

	v, _ := st.Get(store.SettingAppName)
	assert.Equal(t, "Antlers", v)

	reloaded, err := Load(ctx, s)
	require.NoError(t, err)
	v, _ = reloaded.Get(store.SettingAppName)
	assert.Equal(t, "Antlers", v)
}

func TestUpdateUnknownKey(t *testing.T) {
	st, _ := newSettings(t)

	err := st.Update(context.Background(), "nope", "x")
	assert.True(t, merrors.IsNotFound(err))
	_, ok := st.Get("nope")
	assert.False(t, ok)
}

func TestRotateSecret(t *testing.T) {
	st, _ := newSettings(t)
	before := st.Secret()

	require.NoError(t, st.RotateSecret(context.Background()))
	assert.NotEqual(t, before, st.Secret())
	assert.GreaterOrEqual(t, len(st.Secret()), 80)
}

func TestConcurrentReadsDuringUpdates(t *testing.T) {
	st, _ := newSettings(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, st.Update(ctx, store.SettingRecordsPerPage, "50"))
			}
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v, ok := st.Get(store.SettingRecordsPerPage)
				assert.True(t, ok)
				assert.Contains(t, []string{"100", "50"}, v)
			}
		}()
	}
	wg.Wait()
}
