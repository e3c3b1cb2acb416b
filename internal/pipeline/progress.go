package pipeline

import (
	"sync"

	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/types"
)

// ProgressSink receives a monotonically increasing fraction in [0,1] and one
// terminal summary. It never sees the UI technology behind it.
type ProgressSink interface {
	Progress(fraction float64)
	Finish(summary string, ok bool)
}

// StateSink is optionally implemented by sinks that also want state changes.
type StateSink interface {
	StateChanged(snap types.JobSnapshot)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Progress(float64)    {}
func (NopSink) Finish(string, bool) {}

// LogSink reports progress through the logger.
type LogSink struct {
	Log *logger.Logger
}

func (s LogSink) Progress(fraction float64) {
	s.Log.WithField("progress", fraction).Info("transcription progress")
}

func (s LogSink) Finish(summary string, ok bool) {
	if ok {
		s.Log.WithField("summary", summary).Info("job completed")
		return
	}
	s.Log.WithField("summary", summary).Error("job failed")
}

// MultiSink fans signals out to several sinks.
type MultiSink []ProgressSink

func (m MultiSink) Progress(fraction float64) {
	for _, s := range m {
		s.Progress(fraction)
	}
}

func (m MultiSink) Finish(summary string, ok bool) {
	for _, s := range m {
		s.Finish(summary, ok)
	}
}

func (m MultiSink) StateChanged(snap types.JobSnapshot) {
	for _, s := range m {
		if ss, ok := s.(StateSink); ok {
			ss.StateChanged(snap)
		}
	}
}

// monotonic forwards only fractions greater than the last one reported.
type monotonic struct {
	mu       sync.Mutex
	last     float64
	reported bool
	next     ProgressSink
}

func (m *monotonic) Progress(fraction float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fraction = min(max(fraction, 0), 1)
	if m.reported && fraction <= m.last {
		return
	}
	m.last, m.reported = fraction, true
	m.next.Progress(fraction)
}

func (m *monotonic) Finish(summary string, ok bool) { m.next.Finish(summary, ok) }
