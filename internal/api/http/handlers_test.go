package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moosedb/moosedb/internal/auth"
	"github.com/moosedb/moosedb/internal/catalog"
	"github.com/moosedb/moosedb/internal/collection"
	merrors "github.com/moosedb/moosedb/internal/errors"
	"github.com/moosedb/moosedb/internal/observability"
	"github.com/moosedb/moosedb/internal/settings"
	"github.com/moosedb/moosedb/internal/store"
)

type testEnv struct {
	server   *httptest.Server
	settings *settings.Settings
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(filepath.Join(t.TempDir(), "database.sqlite"), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Bootstrap(ctx, auth.HashPassword)
	require.NoError(t, err)

	st, err := settings.Load(ctx, s)
	require.NoError(t, err)

	cat := catalog.New(catalog.NewFieldCache())
	api := New(Deps{
		Store:    s,
		Auth:     auth.NewService(s, auth.NewTokens(st), time.Hour),
		Settings: st,
		Builder:  collection.NewBuilder(s, cat),
		Registry: collection.NewRegistry(s, cat),
		Metrics:  observability.NewMetrics(),
		Version:  "0.1.0-test",
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, settings: st}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
		Email:    store.DefaultAdminEmail,
		Password: store.DefaultAdminPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestVersionIsPublic(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0.1.0-test", body["version"])
	assert.NotEmpty(t, body["sqlite"])

	resp, body = env.do(t, http.MethodPost, "/api/get-version", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0.1.0-test", body["version"])
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
		Email:    store.DefaultAdminEmail,
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])

	assert.NotEmpty(t, env.login(t))
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/admin/api/collections", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	resp, _ = env.do(t, http.MethodGet, "/admin/api/collections", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/admin/api/collections", env.login(t), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRotatedSecretRevokesTokens(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	require.NoError(t, env.settings.RotateSecret(context.Background()))

	resp, _ := env.do(t, http.MethodGet, "/admin/api/collections", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	resp, body := env.do(t, http.MethodPost, "/admin/api/get-setting", token, SettingRequest{Key: "appname"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "MooseDB", body["value"])

	resp, _ = env.do(t, http.MethodPost, "/admin/api/get-setting", token, SettingRequest{Key: "secret"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/admin/api/update-setting", token, SettingRequest{Key: "appname", Value: "Antlers"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = env.do(t, http.MethodPost, "/admin/api/get-setting", token, SettingRequest{Key: "appname"})
	assert.Equal(t, "Antlers", body["value"])

	resp, _ = env.do(t, http.MethodPost, "/admin/api/update-setting", token, SettingRequest{Key: "secret", Value: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func notesRequest() map[string]any {
	return map[string]any{
		"collection": "notes",
		"fields": []map[string]any{
			{"title": "title", "type": "VARCHAR", "unique": true, "nullable": false, "min": 1, "max": 40},
			{"title": "body", "type": "TEXT", "unique": false, "nullable": true},
			{"title": "stars", "type": "INTEGER", "unique": false, "nullable": true},
		},
	}
}

func TestCollectionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	resp, body := env.do(t, http.MethodGet, "/admin/api/collections", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["collections"])

	resp, body = env.do(t, http.MethodPost, "/admin/api/create-collection", token, notesRequest())
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Collection notes has been created!", body["message"])
	info := body["collection"].(map[string]any)
	id := info["collection_id"].(string)
	assert.True(t, strings.HasPrefix(id, "moo_"))

	resp, body = env.do(t, http.MethodPost, "/admin/api/create-collection", token, notesRequest())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALREADY_EXISTS", body["category"])

	resp, body = env.do(t, http.MethodPost, "/admin/api/create-record", token, map[string]any{
		"collection_id": id,
		"record":        map[string]any{"title": "hello", "body": "first note", "stars": 5},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, float64(1), body["id"])

	resp, body = env.do(t, http.MethodPost, "/admin/api/get-collection-records", token, CollectionIDRequest{CollectionID: id})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Retrieved 1 records from 'notes'", body["message"])
	records := body["records"].([]any)
	require.Len(t, records, 1)
	rec := records[0].(map[string]any)
	assert.Equal(t, "hello", rec["title"])
	assert.Equal(t, float64(5), rec["stars"])
	assert.NotEmpty(t, rec["created_at"])
	assert.Equal(t, []any{"id", "title", "body", "stars", "created_at", "updated_at"}, body["columns"])

	resp, body = env.do(t, http.MethodGet, "/admin/api/collections", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["collections"], 1)

	resp, body = env.do(t, http.MethodPost, "/admin/api/delete-collection", token, CollectionIDRequest{CollectionID: id})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Collection 'notes' deleted successfully", body["message"])

	resp, _ = env.do(t, http.MethodPost, "/admin/api/get-collection-records", token, CollectionIDRequest{CollectionID: id})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateRecordErrors(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	_, body := env.do(t, http.MethodPost, "/admin/api/create-collection", token, notesRequest())
	id := body["collection"].(map[string]any)["collection_id"].(string)

	resp, body := env.do(t, http.MethodPost, "/admin/api/create-record", token, map[string]any{
		"collection_id": id,
		"record":        map[string]any{"body": "no title"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "CONSTRAINT_VIOLATION", body["code"])

	resp, _ = env.do(t, http.MethodPost, "/admin/api/create-record", token, map[string]any{
		"collection_id": id,
		"record":        []int{1, 2},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/admin/api/create-record", token, map[string]any{
		"collection_id": "moo_000000000",
		"record":        map[string]any{"title": "x"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateCollectionInvalid(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	resp, body := env.do(t, http.MethodPost, "/admin/api/create-collection", token, map[string]any{
		"collection": "",
		"fields":     []map[string]any{{"title": "a", "type": "TEXT"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", body["category"])

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/admin/api/create-collection", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestReconcileEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	env.do(t, http.MethodPost, "/admin/api/create-collection", token, notesRequest())

	resp, body := env.do(t, http.MethodGet, "/admin/api/reconcile", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := body["report"].(map[string]any)
	assert.Equal(t, float64(1), report["total_catalog_collections"])
	assert.Empty(t, report["dangling_entries"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `moosedb_operations_total{operation="login",result="ok"} 1`)
	assert.Contains(t, string(raw), `moosedb_http_requests_total{route="POST /auth/login",status="200"} 1`)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/auth/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{merrors.NewInvalidInput(merrors.CodeInvalidName, "x"), http.StatusBadRequest},
		{merrors.NewUnauthorized(merrors.CodeInvalidToken, "x"), http.StatusUnauthorized},
		{merrors.NewNotFound(merrors.CodeCollectionNotFound, "x"), http.StatusNotFound},
		{merrors.NewAlreadyExists(merrors.CodeCollectionExists, "x"), http.StatusConflict},
		{merrors.NewStorageError(merrors.CodeConstraintViolation, "x", nil), http.StatusUnprocessableEntity},
		{merrors.NewStorageError(merrors.CodeBusy, "x", nil), http.StatusInternalServerError},
		{merrors.NewInconsistentCatalog(merrors.CodeDanglingCatalog, "x", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}
