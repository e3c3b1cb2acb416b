package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"video-transcript-go/internal/audio"
	"video-transcript-go/internal/logger"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := commandResult{Stderr: stderr.String()}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
	}
	return res, err
}

// Extractor decodes the audio track of a video into a mono WAV artifact and
// loads it back as a Waveform. Decoding is delegated to ffmpeg.
type Extractor struct {
	ffmpegPath string
	sampleRate int
	runner     commandRunner
	log        *logger.Logger
}

// NewExtractor returns an ffmpeg-backed extractor.
func NewExtractor(ffmpegPath string, sampleRate int, log *logger.Logger) *Extractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = audio.TargetSampleRate
	}
	return &Extractor{
		ffmpegPath: ffmpegPath,
		sampleRate: sampleRate,
		runner:     execRunner{},
		log:        log.Component("media"),
	}
}

// Extract writes the decoded audio of videoPath to audioPath and returns the
// waveform. Every failure is a *MediaError and is not retried.
func (e *Extractor) Extract(ctx context.Context, videoPath, audioPath string) (audio.Waveform, error) {
	if strings.TrimSpace(videoPath) == "" {
		return audio.Waveform{}, &MediaError{Stage: "extract", Message: "video path is required"}
	}
	info, err := os.Stat(videoPath)
	if err != nil {
		return audio.Waveform{}, &MediaError{Path: videoPath, Stage: "extract", Message: "cannot access video", Err: err}
	}
	if info.IsDir() {
		return audio.Waveform{}, &MediaError{Path: videoPath, Stage: "extract", Message: "video path is a directory"}
	}

	args := buildFFmpegArgs(videoPath, audioPath, e.sampleRate)
	log := e.log.WithField("video", videoPath)
	log.WithField("audio", audioPath).Info("extracting audio")

	res, runErr := e.runner.Run(ctx, e.ffmpegPath, args...)
	cmdLog := &CommandLog{Command: e.ffmpegPath, Args: args, ExitCode: res.ExitCode, Stderr: tail(res.Stderr, 2048)}
	if runErr != nil {
		if ctx.Err() != nil {
			return audio.Waveform{}, ctx.Err()
		}
		_ = os.Remove(audioPath)
		return audio.Waveform{}, &MediaError{
			Path:       videoPath,
			Stage:      "extract",
			Message:    "ffmpeg audio conversion failed",
			CommandLog: cmdLog,
			Err:        runErr,
		}
	}

	w, err := audio.ReadWAVFile(audioPath)
	if err != nil {
		return audio.Waveform{}, &MediaError{Path: audioPath, Stage: "decode", Message: "cannot decode extracted audio", CommandLog: cmdLog, Err: err}
	}
	if w.SampleRate != e.sampleRate {
		return audio.Waveform{}, &MediaError{
			Path:    audioPath,
			Stage:   "decode",
			Message: fmt.Sprintf("sample rate %d, want %d", w.SampleRate, e.sampleRate),
		}
	}

	log.WithField("samples", len(w.Samples)).
		WithField("duration", w.Duration().String()).
		Info("audio extracted")
	return w, nil
}

// buildFFmpegArgs builds CLI args for mono 16-bit PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string, sampleRate int) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		outPath,
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
