package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// StatusReporter publishes a worker heartbeat. A reporter without a client
// keeps the status in memory only.
type StatusReporter struct {
	monitor  *Monitor
	status   Status
	stopChan chan struct{}
	done     chan struct{}
	started  bool
	stopped  bool
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewStatusReporter creates a new status reporter for a worker. client may be nil.
func NewStatusReporter(client rueidis.Client, workerType string, logger *zap.Logger) *StatusReporter {
	var monitor *Monitor
	if client != nil {
		monitor = NewMonitor(client, logger)
	}

	return &StatusReporter{
		monitor: monitor,
		status: Status{
			WorkerID:   uuid.New().String(),
			WorkerType: workerType,
			IsHealthy:  true,
		},
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Named("status_reporter"),
	}
}

// Start begins periodic status reporting. A stopped reporter may be started
// again, which happens when the owning worker restarts.
func (r *StatusReporter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.monitor == nil {
		return
	}

	if r.stopped {
		r.stopChan = make(chan struct{})
		r.done = make(chan struct{})
		r.stopped = false
	}

	r.started = true
	stopChan, done := r.stopChan, r.done

	go func() {
		defer close(done)

		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()

		r.report(ctx)

		for {
			select {
			case <-ticker.C:
				r.report(ctx)
			case <-ctx.Done():
				return
			case <-stopChan:
				return
			}
		}
	}()
}

// Stop ends status reporting and removes the heartbeat.
func (r *StatusReporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}

	r.stopped = true
	started := r.started
	r.started = false
	done := r.done
	close(r.stopChan)
	r.mu.Unlock()

	if !started {
		return
	}

	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.monitor.RemoveStatus(ctx, r.status.WorkerType, r.status.WorkerID); err != nil {
		r.logger.Warn("Failed to remove status", zap.Error(err))
	}
}

// RecordTick stores the outcome of a scheduler tick.
func (r *StatusReporter) RecordTick(at time.Time, guilds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.LastTick = at
	r.status.Guilds = guilds
}

// UpdateStatus updates the current task.
func (r *StatusReporter) UpdateStatus(task string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.CurrentTask = task
}

// SetHealthy updates the health status.
func (r *StatusReporter) SetHealthy(healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.IsHealthy = healthy
}

// Snapshot returns a copy of the current status.
func (r *StatusReporter) Snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status
}

// GetWorkerID returns the unique worker ID.
func (r *StatusReporter) GetWorkerID() string {
	return r.status.WorkerID
}

func (r *StatusReporter) report(ctx context.Context) {
	if err := r.monitor.ReportStatus(ctx, r.Snapshot()); err != nil {
		r.logger.Error("Failed to report status", zap.Error(err))
	}
}
