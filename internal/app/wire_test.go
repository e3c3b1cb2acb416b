package app

import (
	"testing"

	"video-transcript-go/internal/config"
	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/transcription"
)

func TestNewTranscriberHonoursMockMode(t *testing.T) {
	t.Setenv("USE_MOCK_TRANSCRIBE", "true")
	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if _, ok := NewTranscriber(cfg, logger.Discard()).(transcription.Mock); !ok {
		t.Fatal("expected mock transcriber")
	}

	cfg.MockTranscribe = false
	if _, ok := NewTranscriber(cfg, logger.Discard()).(*transcription.Client); !ok {
		t.Fatal("expected inference client")
	}
	if NewOrchestrator(cfg, logger.Discard()) == nil {
		t.Fatal("NewOrchestrator() returned nil")
	}
}
