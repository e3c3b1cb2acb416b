package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/types"
)

// Options configures where artifacts land.
type Options struct {
	Dir            string
	TranscriptName string
	AudioName      string
	WriteReport    bool
}

// Request is everything needed to persist one finished job.
type Request struct {
	JobID       string
	Transcript  string
	StagedAudio string
	Chunks      []types.ChunkResult
	Summary     string
	// TranscriptPath and AudioPath override the derived locations.
	TranscriptPath string
	AudioPath      string
}

// Manager writes transcripts and publishes extracted audio.
type Manager struct {
	opts Options
	log  *logger.Logger
}

func NewManager(opts Options, log *logger.Logger) *Manager {
	if opts.Dir == "" {
		opts.Dir = "files"
	}
	if opts.TranscriptName == "" {
		opts.TranscriptName = "transcribed_text.txt"
	}
	if opts.AudioName == "" {
		opts.AudioName = "extracted_audio.wav"
	}
	return &Manager{opts: opts, log: log.Component("output")}
}

// JobDir is the directory holding a job's artifacts.
func (m *Manager) JobDir(jobID string) string {
	if jobID == "" {
		return m.opts.Dir
	}
	return filepath.Join(m.opts.Dir, jobID)
}

// Paths returns the default artifact locations for a job.
func (m *Manager) Paths(jobID string) types.Artifacts {
	dir := m.JobDir(jobID)
	a := types.Artifacts{
		TranscriptPath: filepath.Join(dir, m.opts.TranscriptName),
		AudioPath:      filepath.Join(dir, m.opts.AudioName),
	}
	if m.opts.WriteReport {
		a.ReportPath = filepath.Join(dir, "chunks.xlsx")
	}
	return a
}

// Persist writes the transcript as UTF-8 text and moves the staged audio to
// its stable path. Partially written files never appear at the target paths.
func (m *Manager) Persist(ctx context.Context, req Request) (types.Artifacts, error) {
	a := m.Paths(req.JobID)
	if req.TranscriptPath != "" {
		a.TranscriptPath = req.TranscriptPath
	}
	if req.AudioPath != "" {
		a.AudioPath = req.AudioPath
	}
	if err := ctx.Err(); err != nil {
		return types.Artifacts{}, err
	}

	for _, p := range []string{a.TranscriptPath, a.AudioPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return types.Artifacts{}, fmt.Errorf("create output dir: %w", err)
		}
	}

	// The transcript is committed last so a failed audio publish leaves
	// nothing at either target path.
	staged, err := stageFile(a.TranscriptPath, func(w io.Writer) error {
		_, err := io.WriteString(w, req.Transcript)
		return err
	})
	if err != nil {
		return types.Artifacts{}, fmt.Errorf("write transcript: %w", err)
	}

	published := false
	if req.StagedAudio != "" {
		if err := publish(req.StagedAudio, a.AudioPath); err != nil {
			_ = os.Remove(staged)
			return types.Artifacts{}, fmt.Errorf("publish audio: %w", err)
		}
		published = !samePath(req.StagedAudio, a.AudioPath)
	}

	if err := os.Rename(staged, a.TranscriptPath); err != nil {
		_ = os.Remove(staged)
		if published {
			_ = os.Remove(a.AudioPath)
		}
		return types.Artifacts{}, fmt.Errorf("write transcript: %w", err)
	}

	if a.ReportPath != "" {
		if err := os.MkdirAll(filepath.Dir(a.ReportPath), 0o755); err != nil {
			return types.Artifacts{}, fmt.Errorf("create report dir: %w", err)
		}
		if err := WriteChunkReport(a.ReportPath, req.JobID, req.Summary, req.Chunks); err != nil {
			// the transcript is already safe; a missing report is not fatal
			m.log.WithError(err).WithField("job_id", req.JobID).Warn("chunk report not written")
			a.ReportPath = ""
		}
	}

	m.log.WithField("job_id", req.JobID).
		WithField("transcript", a.TranscriptPath).
		WithField("audio", a.AudioPath).
		Info("artifacts persisted")
	return a, nil
}

// writeAtomic renders into a sibling temp file and renames it over path.
func writeAtomic(path string, render func(io.Writer) error) error {
	tmp, err := stageFile(path, render)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// stageFile renders into a synced sibling temp file of path and returns its
// name. The temp file is removed on every failure path.
func stageFile(path string, render func(io.Writer) error) (name string, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = render(tmp); err != nil {
		return "", err
	}
	if err = tmp.Sync(); err != nil {
		return "", err
	}
	if err = tmp.Close(); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}

// publish moves src to dst, copying when a rename crosses filesystems.
func publish(src, dst string) error {
	if samePath(src, dst) {
		return nil
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := writeAtomic(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	}); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
