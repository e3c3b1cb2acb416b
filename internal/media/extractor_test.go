package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"video-transcript-go/internal/audio"
	"video-transcript-go/internal/logger"
)

// fakeRunner simulates ffmpeg.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (commandResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	return f.run(ctx, name, args...)
}

func newTestExtractor(r commandRunner) *Extractor {
	e := NewExtractor("ffmpeg-custom", audio.TargetSampleRate, logger.Discard())
	e.runner = r
	return e
}

func mustEncodeWAV(t *testing.T, samples []int16, rate int) []byte {
	t.Helper()
	data, err := audio.EncodeWAV(samples, rate)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return data
}

func mustWriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestExtractSuccess(t *testing.T) {
	root := t.TempDir()
	video := filepath.Join(root, "talk.mp4")
	out := filepath.Join(root, "work", "audio.wav")
	mustWriteFile(t, video, []byte("video"))
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		t.Fatal(err)
	}

	var gotName string
	var gotArgs []string
	e := newTestExtractor(&fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		gotName, gotArgs = name, args
		mustWriteFile(t, args[len(args)-1], mustEncodeWAV(t, make([]int16, 32000), 16000))
		return commandResult{}, nil
	}})

	w, err := e.Extract(context.Background(), video, out)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if gotName != "ffmpeg-custom" {
		t.Fatalf("command = %q", gotName)
	}
	if argValue(gotArgs, "-ar") != "16000" || argValue(gotArgs, "-ac") != "1" || argValue(gotArgs, "-i") != video {
		t.Fatalf("args = %v", gotArgs)
	}
	if len(w.Samples) != 32000 || w.Duration().Seconds() != 2 {
		t.Fatalf("waveform = %d samples", len(w.Samples))
	}
}

func TestExtractMissingVideo(t *testing.T) {
	called := false
	e := newTestExtractor(&fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		called = true
		return commandResult{}, nil
	}})

	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), filepath.Join(t.TempDir(), "a.wav"))
	if !errors.Is(err, ErrMedia) {
		t.Fatalf("error = %v, want ErrMedia", err)
	}
	if called {
		t.Fatal("ffmpeg should not run for a missing input")
	}
}

func TestExtractFFmpegFailure(t *testing.T) {
	root := t.TempDir()
	video := filepath.Join(root, "silent.mp4")
	mustWriteFile(t, video, []byte("video"))

	e := newTestExtractor(&fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		return commandResult{Stderr: "Output file #0 does not contain any stream", ExitCode: 1}, errors.New("exit status 1")
	}})

	_, err := e.Extract(context.Background(), video, filepath.Join(root, "a.wav"))
	var mErr *MediaError
	if !errors.As(err, &mErr) {
		t.Fatalf("error type = %T, want *MediaError", err)
	}
	if mErr.CommandLog == nil || mErr.CommandLog.ExitCode != 1 {
		t.Fatalf("command log = %+v", mErr.CommandLog)
	}
	if !errors.Is(err, ErrMedia) {
		t.Fatal("MediaError should match ErrMedia")
	}
}

func TestExtractWrongSampleRate(t *testing.T) {
	root := t.TempDir()
	video := filepath.Join(root, "clip.mov")
	mustWriteFile(t, video, []byte("video"))

	e := newTestExtractor(&fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		mustWriteFile(t, args[len(args)-1], mustEncodeWAV(t, make([]int16, 10), 44100))
		return commandResult{}, nil
	}})

	if _, err := e.Extract(context.Background(), video, filepath.Join(root, "a.wav")); !errors.Is(err, ErrMedia) {
		t.Fatalf("error = %v, want ErrMedia", err)
	}
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}
