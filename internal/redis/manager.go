package redis

import (
	"errors"
	"fmt"
	"sync"

	"github.com/akguild/guildkeeper/internal/setup/config"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// WorkerStatusDBIndex uses database 4 for worker heartbeats and status.
const WorkerStatusDBIndex = 4

// ErrDisabled is returned when no Redis URL is configured.
var ErrDisabled = errors.New("redis is not configured")

// Manager maintains a thread-safe mapping of database indices to Redis clients.
// Each database index gets its own dedicated connection pool through rueidis.
type Manager struct {
	clients map[int]rueidis.Client
	config  *config.Redis
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewManager initializes the Redis connection manager with an empty client pool.
// Clients are created lazily when first requested.
func NewManager(config *config.Redis, logger *zap.Logger) *Manager {
	return &Manager{
		clients: make(map[int]rueidis.Client),
		config:  config,
		logger:  logger.Named("redis"),
	}
}

// Enabled reports whether a Redis URL is configured.
func (m *Manager) Enabled() bool {
	return m.config.URL != ""
}

// GetClient retrieves or creates a Redis client for the specified database index.
// The index overrides any database selected in the URL.
func (m *Manager) GetClient(dbIndex int) (rueidis.Client, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if client, exists := m.clients[dbIndex]; exists {
		return client, nil
	}

	opt, err := rueidis.ParseURL(m.config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.SelectDB = dbIndex
	opt.ClientName = "guildkeeper"
	opt.DisableCache = m.config.DisableCache

	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client for DB %d: %w", dbIndex, err)
	}

	m.clients[dbIndex] = client
	m.logger.Info("Created new Redis client", zap.Int("dbIndex", dbIndex))

	return client, nil
}

// Close shuts down all active Redis clients. Safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dbIndex, client := range m.clients {
		client.Close()
		delete(m.clients, dbIndex)
		m.logger.Info("Closed Redis client", zap.Int("dbIndex", dbIndex))
	}
}
