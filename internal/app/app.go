// Package app wires the MooseDB components together and manages the server
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	grpcapi "github.com/moosedb/moosedb/internal/api/grpc"
	httpapi "github.com/moosedb/moosedb/internal/api/http"
	"github.com/moosedb/moosedb/internal/auth"
	"github.com/moosedb/moosedb/internal/backup"
	"github.com/moosedb/moosedb/internal/catalog"
	"github.com/moosedb/moosedb/internal/collection"
	"github.com/moosedb/moosedb/internal/config"
	"github.com/moosedb/moosedb/internal/observability"
	"github.com/moosedb/moosedb/internal/server"
	"github.com/moosedb/moosedb/internal/settings"
	"github.com/moosedb/moosedb/internal/storage"
	"github.com/moosedb/moosedb/internal/store"
)

const healthInterval = 10 * time.Second

// App owns every MooseDB component.
type App struct {
	cfg     *config.Config
	version string

	store    *store.Store
	settings *settings.Settings
	cache    *catalog.FieldCache
	catalog  *catalog.Catalog
	builder  *collection.Builder
	registry *collection.Registry
	auth     *auth.Service
	metrics  *observability.Metrics
	backups  *backup.Service

	shutdown     *server.ShutdownManager
	httpServer   *http.Server
	httpListener net.Listener
	health       *grpcapi.HealthServer
	grpcListener net.Listener

	mu      sync.Mutex
	opened  bool
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New validates cfg and prepares the data directory.
func New(cfg *config.Config, version string) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return &App{cfg: cfg, version: version}, nil
}

// Open opens the database, bootstraps it on first run and builds the services.
// CLI commands that do not serve call Open and Close directly.
func (a *App) Open(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened {
		return nil
	}

	s, err := store.Open(a.cfg.DatabasePath(), store.Options{
		PoolSize:       a.cfg.Storage.PoolSize,
		AcquireTimeout: a.cfg.Storage.AcquireTimeout,
		BusyTimeout:    a.cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return err
	}

	created, err := s.Bootstrap(ctx, auth.HashPassword)
	if err != nil {
		s.Close()
		return fmt.Errorf("failed to bootstrap database: %w", err)
	}
	if created {
		log.Printf("app: created default super admin %s", store.DefaultAdminEmail)
	}

	st, err := settings.Load(ctx, s)
	if err != nil {
		s.Close()
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if a.cfg.Catalog.SchemaCache {
		a.cache = catalog.NewFieldCache()
	}
	a.store = s
	a.settings = st
	a.catalog = catalog.New(a.cache)
	a.builder = collection.NewBuilder(s, a.catalog)
	a.registry = collection.NewRegistry(s, a.catalog)
	a.auth = auth.NewService(s, auth.NewTokens(st), a.cfg.Auth.TokenTTL)
	a.opened = true
	return nil
}

// Start opens the app if needed and starts the HTTP and optional gRPC servers.
func (a *App) Start(ctx context.Context) error {
	if err := a.Open(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.shutdown = server.NewShutdownManager(server.DefaultConfig())
	a.shutdown.Register("store", a.store)

	a.metrics = observability.NewMetrics()
	a.metrics.RegisterPoolStats(a.store.Stats)
	if a.cache != nil {
		a.metrics.RegisterCacheStats(a.cache.Stats)
	}

	if err := a.startHTTP(); err != nil {
		a.abortStart()
		return err
	}
	if a.cfg.GRPC.Enabled {
		if err := a.startGRPC(ctx); err != nil {
			a.abortStart()
			return err
		}
	}

	log.Printf("app: MooseDB %s started", a.version)
	return nil
}

func (a *App) startHTTP() error {
	api := httpapi.New(httpapi.Deps{
		Store:    a.store,
		Auth:     a.auth,
		Settings: a.settings,
		Builder:  a.builder,
		Registry: a.registry,
		Metrics:  a.metrics,
		Version:  a.version,
	})

	lis, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on HTTP address: %w", err)
	}
	a.httpListener = lis
	a.httpServer = &http.Server{
		Handler:      server.Middleware(a.shutdown)(api.Handler()),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.shutdown.Register("http", server.HTTPCloser(a.httpServer, 10*time.Second))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("app: HTTP server listening on %s", lis.Addr())
		if err := a.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("app: HTTP server error: %v", err)
		}
	}()
	return nil
}

func (a *App) startGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}
	a.grpcListener = lis
	a.health = grpcapi.NewHealthServer(a.store.DB())
	a.shutdown.Register("grpc", server.CloserFunc(func() error {
		a.health.Shutdown()
		return nil
	}))

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		log.Printf("app: gRPC health server listening on %s", lis.Addr())
		if err := a.health.Server().Serve(lis); err != nil {
			log.Printf("app: gRPC server error: %v", err)
		}
	}()
	go func() {
		defer a.wg.Done()
		a.health.Watch(ctx, healthInterval)
	}()
	return nil
}

func (a *App) abortStart() {
	if a.cancel != nil {
		a.cancel()
	}
	a.shutdown.Shutdown(context.Background(), "start failed")
	a.wg.Wait()
	a.mu.Lock()
	a.running = false
	a.opened = false
	a.mu.Unlock()
}

// HTTPAddr returns the bound HTTP address, or "" before Start.
func (a *App) HTTPAddr() string {
	if a.httpListener == nil {
		return ""
	}
	return a.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC address, or "" when gRPC is disabled.
func (a *App) GRPCAddr() string {
	if a.grpcListener == nil {
		return ""
	}
	return a.grpcListener.Addr().String()
}

// Wait blocks until a shutdown signal arrives or ctx is cancelled, then stops.
func (a *App) Wait(ctx context.Context) error {
	err := a.shutdown.Wait(ctx)
	a.finish()
	return err
}

// Stop shuts the servers down and closes the database.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()
	if !running {
		return a.Close()
	}

	err := a.shutdown.Shutdown(ctx, "stop requested")
	a.finish()
	return err
}

func (a *App) finish() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	a.mu.Lock()
	a.running = false
	a.opened = false
	a.mu.Unlock()
	log.Printf("app: MooseDB stopped")
}

// Close releases the database of an app that was opened but not started.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.opened {
		return nil
	}
	a.opened = false
	return a.store.Close()
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Store returns the database handle.
func (a *App) Store() *store.Store { return a.store }

// Settings returns the settings cache.
func (a *App) Settings() *settings.Settings { return a.settings }

// Builder returns the collection builder.
func (a *App) Builder() *collection.Builder { return a.builder }

// Registry returns the collection registry.
func (a *App) Registry() *collection.Registry { return a.registry }

// Auth returns the administrator service.
func (a *App) Auth() *auth.Service { return a.auth }

// Backups returns the backup service, creating its storage target on first use.
func (a *App) Backups(ctx context.Context) (*backup.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backups != nil {
		return a.backups, nil
	}
	if !a.opened {
		return nil, fmt.Errorf("app is not open")
	}

	target, err := newBackupTarget(ctx, a.cfg.Backup)
	if err != nil {
		return nil, err
	}
	a.backups = backup.New(a.store, target, a.cfg.Backup.Prefix)
	return a.backups, nil
}

func newBackupTarget(ctx context.Context, cfg config.BackupConfig) (storage.ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		target, err := storage.NewLocalStorage(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize backup storage: %w", err)
		}
		log.Printf("app: backup storage type=local path=%s", cfg.Path)
		return target, nil
	case "s3":
		target, err := storage.NewS3Storage(ctx, cfg.S3.Bucket, storage.S3Config{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize backup storage: %w", err)
		}
		log.Printf("app: backup storage type=s3 bucket=%s region=%s endpoint=%s",
			cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Endpoint)
		return target, nil
	default:
		return nil, fmt.Errorf("unsupported backup type: %s", cfg.Type)
	}
}
