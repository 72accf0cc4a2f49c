package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/moosedb/moosedb/internal/auth"
	"github.com/moosedb/moosedb/internal/catalog"
	"github.com/moosedb/moosedb/internal/codec"
	"github.com/moosedb/moosedb/internal/collection"
	merrors "github.com/moosedb/moosedb/internal/errors"
	"github.com/moosedb/moosedb/internal/observability"
	"github.com/moosedb/moosedb/internal/schema"
	"github.com/moosedb/moosedb/internal/settings"
	"github.com/moosedb/moosedb/internal/store"
)

// Deps are the services the API is built on.
type Deps struct {
	Store    *store.Store
	Auth     *auth.Service
	Settings *settings.Settings
	Builder  *collection.Builder
	Registry *collection.Registry
	Metrics  *observability.Metrics
	Version  string
}

// API holds the handlers of the MooseDB HTTP interface.
type API struct {
	deps Deps
}

// New creates an API over deps.
func New(deps Deps) *API {
	return &API{deps: deps}
}

// Handler returns the routed handler wrapped in the default middleware.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", a.handleVersion)
	mux.HandleFunc("POST /api/get-version", a.handleVersion)
	mux.HandleFunc("POST /auth/login", a.handleLogin)
	mux.HandleFunc("GET /health", a.handleHealth)
	if a.deps.Metrics != nil {
		mux.Handle("GET /metrics", a.deps.Metrics.Handler())
	}

	admin := BearerAuthMiddleware(a.deps.Auth.Tokens())
	mux.Handle("POST /admin/api/get-version", admin(http.HandlerFunc(a.handleVersion)))
	mux.Handle("POST /admin/api/get-setting", admin(http.HandlerFunc(a.handleGetSetting)))
	mux.Handle("POST /admin/api/update-setting", admin(http.HandlerFunc(a.handleUpdateSetting)))
	mux.Handle("POST /admin/api/create-collection", admin(http.HandlerFunc(a.handleCreateCollection)))
	mux.Handle("GET /admin/api/collections", admin(http.HandlerFunc(a.handleListCollections)))
	mux.Handle("POST /admin/api/delete-collection", admin(http.HandlerFunc(a.handleDeleteCollection)))
	mux.Handle("POST /admin/api/get-collection-records", admin(http.HandlerFunc(a.handleGetRecords)))
	mux.Handle("POST /admin/api/create-record", admin(http.HandlerFunc(a.handleCreateRecord)))
	mux.Handle("GET /admin/api/reconcile", admin(http.HandlerFunc(a.handleReconcile)))

	return DefaultMiddleware(a.deps.Metrics)(mux)
}

func (a *API) observe(op string, err error) {
	if a.deps.Metrics != nil {
		a.deps.Metrics.ObserveOperation(op, err)
	}
}

// VersionInfo describes the running server.
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	SQLite    string `json:"sqlite"`
}

// CurrentVersion returns the version info for a server built as version.
func CurrentVersion(version string) VersionInfo {
	lib, _, _ := sqlite3.Version()
	return VersionInfo{
		Version:   version,
		GoVersion: runtime.Version(),
		SQLite:    lib,
	}
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CurrentVersion(a.deps.Version))
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Store.DB().PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "moosedb",
	})
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token     string `json:"token"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, err := a.deps.Auth.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	a.observe("login", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		Success:   true,
		Message:   "Login successful",
		RequestID: GetRequestID(r.Context()),
	})
}

// SettingRequest is the body of the settings endpoints.
type SettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SettingResponse carries one setting value.
type SettingResponse struct {
	Success   bool   `json:"success"`
	Value     string `json:"value"`
	RequestID string `json:"request_id,omitempty"`
}

func (a *API) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	var req SettingRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	value, err := a.deps.Settings.Public(req.Key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SettingResponse{
		Success:   true,
		Value:     value,
		RequestID: GetRequestID(r.Context()),
	})
}

func (a *API) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	var req SettingRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := a.deps.Settings.Update(r.Context(), req.Key, req.Value)
	a.observe("update_setting", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, "Setting updated successfully")
}

// CreateCollectionRequest is the body of POST /admin/api/create-collection.
type CreateCollectionRequest struct {
	Collection string         `json:"collection"`
	Fields     []schema.Field `json:"fields"`
}

// CollectionResponse describes a created collection.
type CollectionResponse struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	Collection catalog.CollectionInfo `json:"collection"`
	RequestID  string                 `json:"request_id,omitempty"`
}

func (a *API) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req CreateCollectionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	info, err := a.deps.Builder.CreateCollection(r.Context(), req.Collection, req.Fields)
	a.observe("create_collection", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionResponse{
		Success:    true,
		Message:    fmt.Sprintf("Collection %s has been created!", info.Name),
		Collection: *info,
		RequestID:  GetRequestID(r.Context()),
	})
}

// CollectionsResponse lists every collection.
type CollectionsResponse struct {
	Success     bool                     `json:"success"`
	Collections []catalog.CollectionInfo `json:"collections"`
	RequestID   string                   `json:"request_id,omitempty"`
}

func (a *API) handleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := a.deps.Registry.ListCollections(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if collections == nil {
		collections = []catalog.CollectionInfo{}
	}
	writeJSON(w, http.StatusOK, CollectionsResponse{
		Success:     true,
		Collections: collections,
		RequestID:   GetRequestID(r.Context()),
	})
}

// CollectionIDRequest identifies a collection by its public id.
type CollectionIDRequest struct {
	CollectionID string `json:"collection_id"`
}

func (a *API) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	var req CollectionIDRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name, err := a.deps.Registry.DeleteCollection(r.Context(), req.CollectionID)
	a.observe("delete_collection", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, fmt.Sprintf("Collection '%s' deleted successfully", name))
}

// RecordsResponse carries every record of a collection.
type RecordsResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	Columns   []string         `json:"columns"`
	Records   []map[string]any `json:"records"`
	RequestID string           `json:"request_id,omitempty"`
}

func (a *API) handleGetRecords(w http.ResponseWriter, r *http.Request) {
	var req CollectionIDRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	set, err := a.deps.Registry.GetRecords(r.Context(), req.CollectionID)
	a.observe("get_records", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records := set.Records
	if records == nil {
		records = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, RecordsResponse{
		Success:   true,
		Message:   fmt.Sprintf("Retrieved %d records from '%s'", len(records), set.Collection.Name),
		Columns:   set.Columns,
		Records:   records,
		RequestID: GetRequestID(r.Context()),
	})
}

// CreateRecordRequest is the body of POST /admin/api/create-record. Record is
// kept raw so numbers keep their integer or decimal form.
type CreateRecordRequest struct {
	CollectionID string          `json:"collection_id"`
	Record       json.RawMessage `json:"record"`
}

// RecordResponse reports the id of an inserted record.
type RecordResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ID        int64  `json:"id"`
	RequestID string `json:"request_id,omitempty"`
}

func (a *API) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Record) == 0 {
		writeError(w, r, merrors.NewInvalidInput(merrors.CodeInvalidPayload, "Record is required"))
		return
	}
	obj, err := codec.ParseObject(req.Record)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := a.deps.Registry.CreateRecord(r.Context(), req.CollectionID, obj)
	a.observe("create_record", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordResponse{
		Success:   true,
		Message:   "Record created",
		ID:        id,
		RequestID: GetRequestID(r.Context()),
	})
}

// ReconcileResponse carries a catalog reconciliation report.
type ReconcileResponse struct {
	Success   bool                          `json:"success"`
	Report    *catalog.ReconciliationReport `json:"report"`
	RequestID string                        `json:"request_id,omitempty"`
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := a.deps.Registry.Reconcile(r.Context())
	a.observe("reconcile", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{
		Success:   true,
		Report:    report,
		RequestID: GetRequestID(r.Context()),
	})
}
