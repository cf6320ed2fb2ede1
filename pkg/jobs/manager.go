package jobs

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	apperr "github.com/matzehuels/reflow/pkg/errors"
	"github.com/matzehuels/reflow/pkg/pipeline"
)

// DefaultConcurrency is the number of jobs converting at the same time.
const DefaultConcurrency = 2

// Config configures a Manager.
type Config struct {
	// Concurrency bounds the jobs converting at once. Zero means DefaultConcurrency.
	Concurrency int

	// TTL is how long finished jobs are kept. Zero means DefaultTTL.
	TTL time.Duration

	Logger *log.Logger
}

// Manager runs conversion jobs in the background.
type Manager struct {
	runner *pipeline.Runner
	store  Store
	ttl    time.Duration
	logger *log.Logger
	slots  chan struct{}

	mu      sync.Mutex
	running map[string]*run
	closed  bool
	wg      sync.WaitGroup
}

// run is the live state of a queued or running job.
type run struct {
	cancel   context.CancelFunc
	progress *pipeline.Progress
}

// NewManager creates a manager that converts with runner and records jobs
// in store.
func NewManager(runner *pipeline.Runner, store Store, cfg Config) *Manager {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Manager{
		runner:  runner,
		store:   store,
		ttl:     cfg.TTL,
		logger:  cfg.Logger,
		slots:   make(chan struct{}, cfg.Concurrency),
		running: make(map[string]*run),
	}
}

// Submit validates opts, records a queued job and starts it in the
// background. Invalid options fail here, before any job is created. The job
// outlives ctx; use Cancel to stop it.
func (m *Manager) Submit(ctx context.Context, opts pipeline.Options) (*Job, error) {
	opts.Logger = nil
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	opts.Logger = m.logger

	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Options:   opts,
		Output:    opts.Output,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, apperr.New(apperr.ErrCodeCanceled, "job manager is shutting down")
	}
	if err := m.store.Set(ctx, job); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("record job: %w", err)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel, progress: &pipeline.Progress{}}
	m.running[job.ID] = r
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("job queued", "id", job.ID, "input", opts.Input)
	go m.execute(runCtx, job.clone(), r)
	return job, nil
}

func (m *Manager) execute(ctx context.Context, job *Job, r *run) {
	defer m.wg.Done()
	defer r.cancel()

	select {
	case m.slots <- struct{}{}:
		defer func() { <-m.slots }()
	case <-ctx.Done():
		m.finish(job, nil, apperr.Wrap(apperr.ErrCodeCanceled, ctx.Err(), "canceled while queued"))
		return
	}

	job.Status = StatusRunning
	job.StartedAt = time.Now().UTC()
	m.save(job)
	m.logger.Info("job started", "id", job.ID)

	res, err := m.runner.Execute(ctx, job.Options, r.progress)
	m.finish(job, res, err)
}

// finish records the final state of a job and forgets its live state.
func (m *Manager) finish(job *Job, res *pipeline.Result, err error) {
	m.mu.Lock()
	r := m.running[job.ID]
	delete(m.running, job.ID)
	m.mu.Unlock()

	if r != nil {
		snap := r.progress.Snapshot()
		job.Total, job.Processed, job.Produced = snap.Total, snap.Processed, snap.Produced
	}
	if res != nil {
		stats := res.Stats
		job.Stats = &stats
	}

	switch {
	case err == nil:
		job.Status = StatusSucceeded
	case apperr.Is(err, apperr.ErrCodeCanceled):
		job.Status = StatusCanceled
	default:
		job.Status = StatusFailed
	}
	if err != nil {
		job.Error = apperr.UserMessage(err)
		job.Code = apperr.GetCode(err)
	}
	job.FinishedAt = time.Now().UTC()
	job.ExpiresAt = job.FinishedAt.Add(m.ttl)
	m.save(job)

	if err != nil {
		m.logger.Warn("job ended", "id", job.ID, "status", job.Status, "error", err)
		return
	}
	m.logger.Info("job succeeded", "id", job.ID, "produced", job.Produced, "output", job.Output)
}

func (m *Manager) save(job *Job) {
	if err := m.store.Set(context.Background(), job); err != nil {
		m.logger.Error("record job", "id", job.ID, "error", err)
	}
}

// Get returns a job with live progress. Returns ErrNotFound for unknown or
// expired jobs.
func (m *Manager) Get(ctx context.Context, id string) (*Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	m.overlay(job)
	return job, nil
}

// List returns every unexpired job, oldest first.
func (m *Manager) List(ctx context.Context) ([]*Job, error) {
	jobs, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		m.overlay(job)
	}
	return jobs, nil
}

// overlay copies live progress counters onto an active job record.
func (m *Manager) overlay(job *Job) {
	m.mu.Lock()
	r := m.running[job.ID]
	m.mu.Unlock()
	if r == nil || job.Status.Done() {
		return
	}
	snap := r.progress.Snapshot()
	job.Total, job.Processed, job.Produced = snap.Total, snap.Processed, snap.Produced
}

// Cancel stops a queued or running job. The job keeps the pages written so
// far and ends in the canceled state once its current page is done.
// Canceling a finished job removes its record.
func (m *Manager) Cancel(ctx context.Context, id string) (*Job, error) {
	m.mu.Lock()
	r := m.running[id]
	m.mu.Unlock()
	if r != nil {
		r.cancel()
		m.logger.Info("job cancel requested", "id", id)
		return m.Get(ctx, id)
	}

	job, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	return job, nil
}

// Wait blocks until every submitted job has ended.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown stops accepting jobs, cancels the active ones and waits for them
// to end or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, r := range m.running {
		r.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cleanup removes expired job records.
func (m *Manager) Cleanup(ctx context.Context) error {
	return m.store.Cleanup(ctx)
}
