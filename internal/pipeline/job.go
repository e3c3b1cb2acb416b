package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"video-transcript-go/internal/audio"
	"video-transcript-go/internal/transcription"
	"video-transcript-go/internal/types"
)

var ErrInvalidTransition = errors.New("invalid job state transition")

// Job is one transcription run over a single video. The orchestrator owns
// its mutation; readers take snapshots.
type Job struct {
	mu sync.RWMutex

	id             string
	videoPath      string
	transcriptPath string
	audioPath      string

	state     types.JobState
	total     int
	completed int
	succeeded int
	failed    int
	progress  float64
	summary   string
	errMsg    string
	artifacts types.Artifacts
	results   []types.ChunkResult

	createdAt  time.Time
	startedAt  *time.Time
	finishedAt *time.Time
}

// NewJob creates a job in the Created state with a fresh id.
func NewJob(videoPath string) *Job {
	return NewJobWithID(uuid.New().String(), videoPath)
}

func NewJobWithID(id, videoPath string) *Job {
	return &Job{
		id:        id,
		videoPath: videoPath,
		state:     types.StateCreated,
		createdAt: time.Now().UTC(),
	}
}

// WithOutputPaths overrides where the transcript and audio are persisted.
// Empty values keep the output manager's defaults.
func (j *Job) WithOutputPaths(transcriptPath, audioPath string) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.transcriptPath = transcriptPath
	j.audioPath = audioPath
	return j
}

func (j *Job) ID() string        { return j.id }
func (j *Job) VideoPath() string { return j.videoPath }

func (j *Job) State() types.JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Snapshot returns a copy safe to hand to other goroutines.
func (j *Job) Snapshot() types.JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return types.JobSnapshot{
		ID:          j.id,
		VideoPath:   j.videoPath,
		State:       j.state,
		Progress:    j.progress,
		TotalChunks: j.total,
		Succeeded:   j.succeeded,
		Failed:      j.failed,
		Summary:     j.summary,
		Error:       j.errMsg,
		Artifacts:   j.artifacts,
		CreatedAt:   j.createdAt,
		StartedAt:   copyTime(j.startedAt),
		FinishedAt:  copyTime(j.finishedAt),
	}
}

// Results returns the per-chunk records in index order.
func (j *Job) Results() []types.ChunkResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]types.ChunkResult, len(j.results))
	copy(out, j.results)
	return out
}

// Reset returns a terminal job to Created so it can be run again.
func (j *Job) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.state.Terminal() && j.state != types.StateCreated {
		return fmt.Errorf("%w: reset while %s", ErrInvalidTransition, j.state)
	}
	j.state = types.StateCreated
	j.total, j.completed, j.succeeded, j.failed = 0, 0, 0, 0
	j.progress = 0
	j.summary, j.errMsg = "", ""
	j.artifacts = types.Artifacts{}
	j.results = nil
	j.startedAt, j.finishedAt = nil, nil
	return nil
}

var transitions = map[types.JobState][]types.JobState{
	types.StateCreated:      {types.StateExtracting, types.StateCancelled},
	types.StateExtracting:   {types.StateSegmenting, types.StateFailed, types.StateCancelled},
	types.StateSegmenting:   {types.StateTranscribing, types.StateFailed, types.StateCancelled},
	types.StateTranscribing: {types.StateAssembling, types.StateCancelled},
	// Failed here only covers output write errors.
	types.StateAssembling: {types.StateCompleted, types.StateFailed, types.StateCancelled},
}

func (j *Job) transition(to types.JobState) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, allowed := range transitions[j.state] {
		if allowed == to {
			j.state = to
			now := time.Now().UTC()
			if to == types.StateExtracting {
				j.startedAt = &now
			}
			if to.Terminal() {
				j.finishedAt = &now
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.state, to)
}

func (j *Job) setTotal(chunks []audio.Chunk) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.total = len(chunks)
	j.results = make([]types.ChunkResult, len(chunks))
	for i, c := range chunks {
		j.results[i] = types.ChunkResult{
			Index:    c.Index,
			StartSec: c.Start().Seconds(),
			EndSec:   c.End().Seconds(),
		}
	}
}

// record stores one chunk outcome and returns the new progress fraction.
func (j *Job) record(out transcription.Outcome) float64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	if out.Index >= 0 && out.Index < len(j.results) {
		r := &j.results[out.Index]
		r.Attempts = out.Attempts
		r.ElapsedMs = out.Elapsed.Milliseconds()
		if out.OK() {
			r.OK = true
			r.Text = out.Text
		} else {
			r.FailKind = string(out.Failure.Kind)
			r.StatusCode = out.Failure.StatusCode
			r.Detail = out.Failure.Detail
		}
	}
	if out.OK() {
		j.succeeded++
	} else {
		j.failed++
	}
	j.completed++
	if j.total > 0 {
		j.progress = float64(j.completed) / float64(j.total)
	}
	return j.progress
}

func (j *Job) finish(summary string, artifacts types.Artifacts, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.summary = summary
	j.artifacts = artifacts
	if err != nil {
		j.errMsg = err.Error()
	}
	if j.state == types.StateCompleted {
		j.progress = 1
	}
}

func (j *Job) outputPaths() (string, string) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.transcriptPath, j.audioPath
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
