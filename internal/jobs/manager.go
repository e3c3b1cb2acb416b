package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/pipeline"
	"video-transcript-go/internal/store"
	"video-transcript-go/internal/types"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobRunning  = errors.New("job is still running")
	ErrSourceGone  = errors.New("job source video is no longer available")
)

// Runner executes one job to a terminal state.
type Runner interface {
	Run(ctx context.Context, job *pipeline.Job, sink pipeline.ProgressSink) (pipeline.Result, error)
}

// History persists snapshots beyond the life of the process.
type History interface {
	Save(snap types.JobSnapshot) error
	UpdateProgress(id string, progress float64, succeeded, failed int) error
	SaveChunks(jobID string, chunks []types.ChunkResult) error
	Get(id string) (types.JobSnapshot, error)
	List(limit int) ([]types.JobSnapshot, error)
	Chunks(jobID string) ([]types.ChunkResult, error)
	Delete(id string) error
}

// Source is the video a job reads. Cleanup, when set, removes a
// temporary upload once the job reaches a terminal state.
type Source struct {
	VideoPath string
	Cleanup   func() error
}

type entry struct {
	job    *pipeline.Job
	source Source

	cancel        context.CancelFunc
	done          chan struct{}
	sourceRemoved bool
}

// Manager runs jobs in the background and keeps a live registry of them.
type Manager struct {
	runner  Runner
	history History
	log     *logger.Logger

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*entry
}

// NewManager builds a Manager. history may be nil.
func NewManager(runner Runner, history History, log *logger.Logger) *Manager {
	base, stop := context.WithCancel(context.Background())
	return &Manager{
		runner:  runner,
		history: history,
		log:     log.Component("jobs"),
		base:    base,
		stop:    stop,
		entries: make(map[string]*entry),
	}
}

// Submit registers a new job for src and starts it.
func (m *Manager) Submit(src Source) (types.JobSnapshot, error) {
	if src.VideoPath == "" {
		return types.JobSnapshot{}, errors.New("video path is required")
	}
	if err := m.base.Err(); err != nil {
		return types.JobSnapshot{}, fmt.Errorf("manager stopped: %w", err)
	}

	e := &entry{job: pipeline.NewJob(src.VideoPath), source: src}
	m.mu.Lock()
	m.entries[e.job.ID()] = e
	ctx, cancel, done := m.arm(e)
	m.mu.Unlock()

	m.save(e.job.Snapshot())
	m.run(ctx, e, cancel, done)
	return e.job.Snapshot(), nil
}

// arm gives e a fresh run context and done channel. m.mu must be held.
func (m *Manager) arm(e *entry) (context.Context, context.CancelFunc, chan struct{}) {
	ctx, cancel := context.WithCancel(m.base)
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	return ctx, cancel, done
}

func (m *Manager) run(ctx context.Context, e *entry, cancel context.CancelFunc, done chan struct{}) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(done)
		defer cancel()

		log := m.log.WithJob(e.job.ID())
		sink := pipeline.MultiSink{
			&historySink{m: m, job: e.job},
			pipeline.LogSink{Log: log},
		}
		_, err := m.runner.Run(ctx, e.job, sink)

		snap := e.job.Snapshot()
		m.save(snap)
		if results := e.job.Results(); len(results) > 0 && m.history != nil {
			if err := m.history.SaveChunks(snap.ID, results); err != nil {
				log.WithError(err).Warn("saving chunk results failed")
			}
		}
		m.releaseSource(e)

		if err != nil {
			log.WithError(err).WithField("state", snap.State).Warn("job ended without completing")
		}
	}()
}

// Get returns the live snapshot of a job, falling back to history.
func (m *Manager) Get(id string) (types.JobSnapshot, error) {
	if e := m.lookup(id); e != nil {
		return e.job.Snapshot(), nil
	}
	if m.history == nil {
		return types.JobSnapshot{}, ErrJobNotFound
	}
	snap, err := m.history.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		return types.JobSnapshot{}, ErrJobNotFound
	}
	return snap, err
}

// Results returns per-chunk results in index order.
func (m *Manager) Results(id string) ([]types.ChunkResult, error) {
	if e := m.lookup(id); e != nil {
		return e.job.Results(), nil
	}
	if _, err := m.Get(id); err != nil {
		return nil, err
	}
	return m.history.Chunks(id)
}

// List returns jobs newest first.
func (m *Manager) List(limit int) ([]types.JobSnapshot, error) {
	if m.history != nil {
		return m.history.List(limit)
	}

	m.mu.Lock()
	out := make([]types.JobSnapshot, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.job.Snapshot())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Wait blocks until the job's current run ends or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (types.JobSnapshot, error) {
	e := m.lookup(id)
	if e == nil {
		return m.Get(id)
	}
	m.mu.Lock()
	done := e.done
	m.mu.Unlock()

	select {
	case <-done:
		return e.job.Snapshot(), nil
	case <-ctx.Done():
		return e.job.Snapshot(), ctx.Err()
	}
}

// Reset cancels an in-flight job, waits for it to unwind and forgets it
// from the live registry. History is kept.
func (m *Manager) Reset(ctx context.Context, id string) (types.JobSnapshot, error) {
	e := m.lookup(id)
	if e == nil {
		return m.Get(id)
	}

	m.mu.Lock()
	cancel, done := e.cancel, e.done
	m.mu.Unlock()
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return e.job.Snapshot(), ctx.Err()
	}

	m.mu.Lock()
	if e.done != done {
		// restarted while we waited
		m.mu.Unlock()
		return e.job.Snapshot(), ErrJobRunning
	}
	delete(m.entries, id)
	m.mu.Unlock()

	snap := e.job.Snapshot()
	m.log.WithJob(id).WithField("state", snap.State).Info("job reset")
	return snap, nil
}

// Restart re-runs a finished job with the same source video.
func (m *Manager) Restart(id string) (types.JobSnapshot, error) {
	if err := m.base.Err(); err != nil {
		return types.JobSnapshot{}, fmt.Errorf("manager stopped: %w", err)
	}

	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		ctx, cancel, done, e, err := m.revive(id)
		if err != nil {
			return types.JobSnapshot{}, err
		}
		return m.restarted(ctx, e, cancel, done), nil
	}
	select {
	case <-e.done:
	default:
		m.mu.Unlock()
		return e.job.Snapshot(), ErrJobRunning
	}
	if e.sourceRemoved {
		m.mu.Unlock()
		return e.job.Snapshot(), ErrSourceGone
	}
	if err := e.job.Reset(); err != nil {
		m.mu.Unlock()
		return e.job.Snapshot(), err
	}
	ctx, cancel, done := m.arm(e)
	m.mu.Unlock()

	return m.restarted(ctx, e, cancel, done), nil
}

func (m *Manager) restarted(ctx context.Context, e *entry, cancel context.CancelFunc, done chan struct{}) types.JobSnapshot {
	m.save(e.job.Snapshot())
	m.run(ctx, e, cancel, done)
	m.log.WithJob(e.job.ID()).Info("job restarted")
	return e.job.Snapshot()
}

// revive rebuilds and arms a live entry for a job known only to history.
func (m *Manager) revive(id string) (context.Context, context.CancelFunc, chan struct{}, *entry, error) {
	snap, err := m.Get(id)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if !snap.State.Terminal() {
		return nil, nil, nil, nil, ErrJobRunning
	}
	if _, err := os.Stat(snap.VideoPath); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("%w: %s", ErrSourceGone, snap.VideoPath)
	}

	e := &entry{job: pipeline.NewJobWithID(id, snap.VideoPath), source: Source{VideoPath: snap.VideoPath}}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[id]; exists {
		return nil, nil, nil, nil, ErrJobRunning
	}
	m.entries[id] = e
	ctx, cancel, done := m.arm(e)
	return ctx, cancel, done, e, nil
}

// Purge resets a job and removes it from history, chunk results included.
// Published artifacts stay on disk.
func (m *Manager) Purge(ctx context.Context, id string) error {
	if _, err := m.Reset(ctx, id); err != nil {
		return err
	}
	if m.history == nil {
		return nil
	}
	err := m.history.Delete(id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrJobNotFound
	}
	if err != nil {
		return err
	}
	m.log.WithJob(id).Info("job purged")
	return nil
}

// Shutdown cancels every running job and waits for them to unwind.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()
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

func (m *Manager) lookup(id string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[id]
}

func (m *Manager) releaseSource(e *entry) {
	m.mu.Lock()
	cleanup := e.source.Cleanup
	if cleanup == nil || e.sourceRemoved {
		m.mu.Unlock()
		return
	}
	e.sourceRemoved = true
	m.mu.Unlock()

	if err := cleanup(); err != nil {
		m.log.WithJob(e.job.ID()).WithError(err).Warn("removing uploaded video failed")
	}
}

func (m *Manager) save(snap types.JobSnapshot) {
	if m.history == nil {
		return
	}
	if err := m.history.Save(snap); err != nil {
		m.log.WithJob(snap.ID).WithError(err).Warn("saving job snapshot failed")
	}
}

// historySink mirrors state changes and progress into the history store.
type historySink struct {
	m   *Manager
	job *pipeline.Job
}

func (s *historySink) Progress(fraction float64) {
	if s.m.history == nil {
		return
	}
	snap := s.job.Snapshot()
	if err := s.m.history.UpdateProgress(snap.ID, fraction, snap.Succeeded, snap.Failed); err != nil {
		s.m.log.WithJob(snap.ID).WithError(err).Debug("progress update failed")
	}
}

func (s *historySink) Finish(string, bool) {}

func (s *historySink) StateChanged(snap types.JobSnapshot) { s.m.save(snap) }
