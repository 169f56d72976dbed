package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akguild/guildkeeper/internal/database/dberr"
	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/migrations"
	"github.com/akguild/guildkeeper/internal/setup/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bunotel"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DefaultEmbeddedPath is where the embedded store lives when no path is configured.
const DefaultEmbeddedPath = "data/guildkeeper.db"

// embeddedParams enables foreign keys, waits on locks instead of failing, and
// starts every transaction as a writer so row reads inside it are serialized.
const embeddedParams = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_txlock=immediate"

var ErrUnsupportedDescriptor = errors.New("unsupported connection descriptor")

// Backend identifies the storage engine behind a client.
type Backend string

const (
	// BackendEmbedded is the single-file store used when no descriptor is given.
	BackendEmbedded Backend = "sqlite"
	// BackendNetworked is the pooled relational store selected by a descriptor.
	BackendNetworked Backend = "postgres"
)

// Options configures how a backend is opened.
type Options struct {
	Path           string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MaxIdleTime    time.Duration
	AcquireTimeout time.Duration
	ConnectTimeout time.Duration
}

// OptionsFromConfig converts the database config section.
func OptionsFromConfig(cfg *config.Database) Options {
	return Options{
		Path:           cfg.Path,
		MaxOpenConns:   cfg.MaxOpenConns,
		MaxIdleConns:   cfg.MaxIdleConns,
		MaxLifetime:    time.Duration(cfg.MaxLifetime) * time.Minute,
		MaxIdleTime:    time.Duration(cfg.MaxIdleTime) * time.Minute,
		AcquireTimeout: time.Duration(cfg.AcquireTimeout) * time.Millisecond,
		ConnectTimeout: time.Duration(cfg.ConnectTimeout) * time.Millisecond,
	}
}

// retryPolicy returns the per-operation retry policy for these options.
func (o Options) retryPolicy() dbretry.Policy {
	policy := dbretry.DefaultPolicy()
	if o.AcquireTimeout > 0 {
		policy.AttemptTimeout = o.AcquireTimeout
	}

	return policy
}

// Client defines the methods that a database client must implement.
type Client interface {
	// Model returns the repository containing all model operations.
	Model() *Repository
	// Service returns the service containing all service operations.
	Service() *Service
	// Backend reports which engine the client talks to.
	Backend() Backend
	// EnsureSchema creates or upgrades all tables and indexes.
	EnsureSchema(ctx context.Context) error
	// Ready reports whether EnsureSchema completed.
	Ready() bool
	// Ping runs a trivial liveness query.
	Ping(ctx context.Context) error
	// Close releases this handle; the pool closes when the last handle is released.
	Close() error
	// DB returns the underlying bun.DB instance.
	DB() *bun.DB
	// Policy returns the retry policy derived from the client's options.
	Policy() dbretry.Policy
}

// clientImpl represents the concrete implementation of the database client.
type clientImpl struct {
	key     string
	db      *bun.DB
	backend Backend
	policy  dbretry.Policy
	logger  *zap.Logger
	repo    *Repository
	service *Service
	ready   atomic.Bool
	refs    int

	schemaMu sync.Mutex
}

// registry makes Open idempotent per descriptor.
var (
	registryMu sync.Mutex
	registry   = make(map[string]*clientImpl)
)

// Open returns a client for the descriptor. An empty descriptor selects the
// embedded backend; anything else selects the networked backend, which must be
// reachable. Repeated calls with the same descriptor share one pool.
func Open(ctx context.Context, descriptor string, opts Options, logger *zap.Logger) (Client, error) {
	descriptor = strings.TrimSpace(descriptor)

	key, err := registryKey(descriptor, opts)
	if err != nil {
		return nil, err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if client, ok := registry[key]; ok {
		client.refs++
		return client, nil
	}

	var (
		db      *bun.DB
		backend Backend
	)

	if descriptor == "" {
		backend = BackendEmbedded
		db, err = openEmbedded(ctx, opts)
	} else {
		backend = BackendNetworked
		db, err = openNetworked(ctx, descriptor, opts)
	}

	if err != nil {
		return nil, err
	}

	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName("guildkeeper")))
	db.AddQueryHook(NewHook(logger))

	policy := opts.retryPolicy()
	repo := NewRepository(db, policy, logger)

	client := &clientImpl{
		key:     key,
		db:      db,
		backend: backend,
		policy:  policy,
		logger:  logger,
		repo:    repo,
		service: NewService(db, repo, policy, logger),
		refs:    1,
	}
	registry[key] = client

	logger.Info("Database connection established", zap.String("backend", string(backend)))

	return client, nil
}

// registryKey normalizes the descriptor into the registry key.
func registryKey(descriptor string, opts Options) (string, error) {
	if descriptor != "" {
		return string(BackendNetworked) + ":" + descriptor, nil
	}

	path := opts.Path
	if path == "" {
		path = DefaultEmbeddedPath
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve database path: %w", err)
	}

	return string(BackendEmbedded) + ":" + abs, nil
}

// openEmbedded opens the single-file store.
func openEmbedded(ctx context.Context, opts Options) (*bun.DB, error) {
	path := opts.Path
	if path == "" {
		path = DefaultEmbeddedPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sqldb, err := sql.Open("sqlite", path+"?"+embeddedParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded database: %w", err)
	}

	// One writer at a time; a single connection keeps BEGIN IMMEDIATE from contending with itself
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := ping(ctx, db, opts.ConnectTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open embedded database %s: %w", path, err)
	}

	return db, nil
}

// openNetworked opens the pooled relational store and fails fast if it is unreachable.
func openNetworked(ctx context.Context, descriptor string, opts Options) (*bun.DB, error) {
	u, err := url.Parse(descriptor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: invalid descriptor", dberr.ErrBackendUnavailable, ErrUnsupportedDescriptor)
	}

	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, fmt.Errorf("%w: %w: scheme %q", dberr.ErrBackendUnavailable, ErrUnsupportedDescriptor, u.Scheme)
	}

	connectorOpts := []pgdriver.Option{
		pgdriver.WithDSN(descriptor),
		pgdriver.WithApplicationName("guildkeeper"),
	}
	if opts.ConnectTimeout > 0 {
		connectorOpts = append(connectorOpts, pgdriver.WithDialTimeout(opts.ConnectTimeout))
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(connectorOpts...))

	// Set connection pool settings
	sqldb.SetMaxOpenConns(opts.MaxOpenConns)
	sqldb.SetMaxIdleConns(opts.MaxIdleConns)
	sqldb.SetConnMaxLifetime(opts.MaxLifetime)
	sqldb.SetConnMaxIdleTime(opts.MaxIdleTime)

	db := bun.NewDB(sqldb, pgdialect.New())

	if err := ping(ctx, db, opts.ConnectTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s@%s: %v", dberr.ErrBackendUnavailable, u.Path, u.Host, err)
	}

	return db, nil
}

// ping checks the backend answers within the timeout.
func ping(ctx context.Context, db *bun.DB, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return db.PingContext(ctx)
}

// EnsureSchema runs all pending migrations. Every migration is written with
// IF NOT EXISTS so repeated runs are harmless.
func (c *clientImpl) EnsureSchema(ctx context.Context) error {
	// Handles shared through the registry migrate once
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()

	if c.ready.Load() {
		return nil
	}

	migrator := migrate.NewMigrator(c.db, migrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return dberr.Translate(fmt.Errorf("failed to initialize migrations: %w", err))
	}

	if err := migrator.Lock(ctx); err != nil {
		return dberr.Translate(fmt.Errorf("failed to lock migrations: %w", err))
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return dberr.Translate(fmt.Errorf("failed to run migrations: %w", err))
	}

	if !group.IsZero() {
		c.logger.Info("Applied migrations", zap.String("group", group.String()))
	}

	c.ready.Store(true)

	return nil
}

// Ready reports whether EnsureSchema completed.
func (c *clientImpl) Ready() bool {
	return c.ready.Load()
}

// Ping runs a trivial liveness query.
func (c *clientImpl) Ping(ctx context.Context) error {
	var one int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return dberr.Translate(err)
	}

	return nil
}

// Close releases this handle and closes the pool once no handles remain.
func (c *clientImpl) Close() error {
	registryMu.Lock()
	defer registryMu.Unlock()

	c.refs--
	if c.refs > 0 {
		return nil
	}

	delete(registry, c.key)

	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}

	c.logger.Info("Database connection closed")

	return nil
}

// Model returns the repository containing all model operations.
func (c *clientImpl) Model() *Repository {
	return c.repo
}

// Service returns the service containing all service operations.
func (c *clientImpl) Service() *Service {
	return c.service
}

// Backend reports which engine the client talks to.
func (c *clientImpl) Backend() Backend {
	return c.backend
}

// DB returns the underlying bun.DB instance.
func (c *clientImpl) DB() *bun.DB {
	return c.db
}

// Policy returns the retry policy derived from the client's options.
func (c *clientImpl) Policy() dbretry.Policy {
	return c.policy
}
