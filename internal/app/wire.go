// Package app wires configuration into the transcription pipeline.
package app

import (
	"video-transcript-go/internal/config"
	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/media"
	"video-transcript-go/internal/output"
	"video-transcript-go/internal/pipeline"
	"video-transcript-go/internal/transcription"
)

// NewTranscriber returns the inference client, or the canned mock when
// USE_MOCK_TRANSCRIBE is set.
func NewTranscriber(cfg config.Config, log *logger.Logger) pipeline.Transcriber {
	if cfg.MockTranscribe {
		log.Warn("USE_MOCK_TRANSCRIBE enabled, inference endpoint will not be called")
		return transcription.Mock{}
	}
	return transcription.NewClient(transcription.Options{
		Endpoint: cfg.Endpoint,
		Token:    cfg.APIToken,
		Timeout:  cfg.RequestTimeout,
		Retry:    transcription.RetryPolicy{MaxRetries: cfg.MaxRetries, Delay: cfg.RetryDelay},
	}, log)
}

func NewOutput(cfg config.Config, log *logger.Logger) *output.Manager {
	return output.NewManager(output.Options{
		Dir:            cfg.OutputDir,
		TranscriptName: cfg.TranscriptName,
		AudioName:      cfg.AudioName,
		WriteReport:    cfg.WriteReport,
	}, log)
}

// NewOrchestrator builds the full video-to-transcript pipeline.
func NewOrchestrator(cfg config.Config, log *logger.Logger) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(
		media.NewExtractor(cfg.FFmpegPath, cfg.SampleRate, log),
		NewTranscriber(cfg, log),
		NewOutput(cfg, log),
		pipeline.Options{
			WorkDir:       cfg.WorkDir,
			ChunkDuration: cfg.ChunkDuration(),
			Workers:       cfg.Workers,
			Assembly: pipeline.AssemblyOptions{
				Join:      cfg.JoinMode,
				GapPolicy: cfg.GapPolicy,
				GapMarker: cfg.GapMarker,
			},
		},
		log,
	)
}
