package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video-transcript-go/internal/audio"
	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/output"
	"video-transcript-go/internal/transcription"
	"video-transcript-go/internal/types"
)

// Extractor decodes a video's audio track into audioPath.
type Extractor interface {
	Extract(ctx context.Context, videoPath, audioPath string) (audio.Waveform, error)
}

// Persister stores a finished job's artifacts.
type Persister interface {
	Persist(ctx context.Context, req output.Request) (types.Artifacts, error)
}

// Options configures an Orchestrator.
type Options struct {
	WorkDir       string
	ChunkDuration time.Duration
	Workers       int
	Assembly      AssemblyOptions
}

// Result is returned for a job that reached Completed.
type Result struct {
	Transcript Transcript
	Artifacts  types.Artifacts
	Outcomes   []transcription.Outcome
}

// Orchestrator drives a job from video to persisted transcript.
type Orchestrator struct {
	extractor   Extractor
	transcriber Transcriber
	persister   Persister
	opts        Options
	log         *logger.Logger
}

func NewOrchestrator(e Extractor, t Transcriber, p Persister, opts Options, log *logger.Logger) *Orchestrator {
	if opts.ChunkDuration <= 0 {
		opts.ChunkDuration = audio.DefaultChunkDuration
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Orchestrator{
		extractor:   e,
		transcriber: t,
		persister:   p,
		opts:        opts,
		log:         log.Component("pipeline"),
	}
}

// Run executes job, which must be in the Created state. Extraction and
// segmentation errors are fatal and returned with no output written.
// Chunk failures never fail the job; a completed job may have an empty
// transcript. The job's scratch workspace is removed before Run returns.
func (o *Orchestrator) Run(ctx context.Context, job *Job, sink ProgressSink) (Result, error) {
	if sink == nil {
		sink = NopSink{}
	}
	mono := &monotonic{next: sink}
	log := o.log.WithJob(job.ID())

	if state := job.State(); state != types.StateCreated {
		return Result{}, fmt.Errorf("%w: run from %s", ErrInvalidTransition, state)
	}

	if err := o.advance(job, sink, types.StateExtracting); err != nil {
		return Result{}, err
	}
	log.WithField("video", job.VideoPath()).Info("job started")

	ws, err := output.NewWorkspace(o.opts.WorkDir, "job-"+job.ID())
	if err != nil {
		return Result{}, o.abort(ctx, job, mono, sink, types.StateExtracting, err)
	}
	log.WithField("workspace", ws.Dir()).Debug("workspace created")
	defer func() {
		if err := ws.Close(); err != nil {
			log.WithError(err).WithField("workspace", ws.Dir()).Warn("workspace cleanup failed")
		}
	}()

	wave, err := o.extractor.Extract(ctx, job.VideoPath(), ws.Path("audio.wav"))
	if err != nil {
		return Result{}, o.abort(ctx, job, mono, sink, types.StateExtracting, err)
	}

	if err := o.advance(job, sink, types.StateSegmenting); err != nil {
		return Result{}, err
	}
	chunks, err := audio.Segment(wave, o.opts.ChunkDuration)
	if err != nil {
		return Result{}, o.abort(ctx, job, mono, sink, types.StateSegmenting, err)
	}
	job.setTotal(chunks)
	log.WithField("chunks", len(chunks)).
		WithField("chunk_duration", o.opts.ChunkDuration.String()).
		Info("audio segmented")

	if err := o.advance(job, sink, types.StateTranscribing); err != nil {
		return Result{}, err
	}
	outcomes := Dispatch(ctx, chunks, o.opts.Workers, o.transcriber, func(out transcription.Outcome) {
		mono.Progress(job.record(out))
	})
	if ctx.Err() != nil {
		return Result{}, o.abort(ctx, job, mono, sink, types.StateTranscribing, ctx.Err())
	}

	if err := o.advance(job, sink, types.StateAssembling); err != nil {
		return Result{}, err
	}
	transcript := Assemble(outcomes, o.opts.Assembly)
	transcriptPath, audioPath := job.outputPaths()
	artifacts, err := o.persister.Persist(ctx, output.Request{
		JobID:          job.ID(),
		Transcript:     transcript.Text,
		StagedAudio:    ws.Path("audio.wav"),
		Chunks:         job.Results(),
		Summary:        transcript.Summary(),
		TranscriptPath: transcriptPath,
		AudioPath:      audioPath,
	})
	if err != nil {
		return Result{}, o.abort(ctx, job, mono, sink, types.StateAssembling, err)
	}

	mono.Progress(1)
	if err := job.transition(types.StateCompleted); err != nil {
		return Result{}, err
	}
	job.finish(transcript.Summary(), artifacts, nil)
	notifyState(sink, job)
	mono.Finish(transcript.Summary(), true)

	entry := log.WithField("summary", transcript.Summary())
	if transcript.Succeeded == 0 && transcript.Total > 0 {
		entry.Warn("job completed without any transcribed chunk")
	} else {
		entry.Info("job completed")
	}
	return Result{Transcript: transcript, Artifacts: artifacts, Outcomes: outcomes}, nil
}

func (o *Orchestrator) advance(job *Job, sink ProgressSink, to types.JobState) error {
	if err := job.transition(to); err != nil {
		return err
	}
	notifyState(sink, job)
	return nil
}

// abort moves the job to Cancelled when ctx ended, otherwise to Failed.
func (o *Orchestrator) abort(ctx context.Context, job *Job, mono *monotonic, sink ProgressSink, stage types.JobState, cause error) error {
	to := types.StateFailed
	if ctx.Err() != nil || errors.Is(cause, context.Canceled) {
		to = types.StateCancelled
		cause = context.Cause(ctx)
		if cause == nil {
			cause = context.Canceled
		}
	}
	if err := job.transition(to); err != nil {
		return errors.Join(cause, err)
	}
	summary := fmt.Sprintf("%s during %s: %v", to, stage, cause)
	job.finish(summary, types.Artifacts{}, cause)
	notifyState(sink, job)
	mono.Finish(summary, false)

	o.log.WithJob(job.ID()).WithError(cause).
		WithField("stage", stage).
		WithField("state", to).
		Error("job aborted")
	return fmt.Errorf("job %s: %w", job.ID(), cause)
}

func notifyState(sink ProgressSink, job *Job) {
	if ss, ok := sink.(StateSink); ok {
		ss.StateChanged(job.Snapshot())
	}
}
