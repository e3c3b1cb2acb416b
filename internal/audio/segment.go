package audio

import (
	"errors"
	"time"
)

// DefaultChunkDuration is the window length used when none is configured.
const DefaultChunkDuration = 30 * time.Second

var ErrInvalidDuration = errors.New("chunk duration must be positive")

// Segment splits w into consecutive, non-overlapping windows of d.
// The last window holds the remainder. An empty waveform yields no chunks.
// Chunks share the waveform's backing array.
func Segment(w Waveform, d time.Duration) ([]Chunk, error) {
	if d <= 0 {
		return nil, ErrInvalidDuration
	}
	if w.SampleRate <= 0 {
		return nil, errors.New("waveform sample rate must be positive")
	}

	size := windowSamples(d, w.SampleRate)
	if size <= 0 {
		return nil, ErrInvalidDuration
	}

	n := len(w.Samples)
	chunks := make([]Chunk, 0, (n+size-1)/size)
	for off := 0; off < n; off += size {
		end := min(off+size, n)
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Samples:    w.Samples[off:end:end],
			SampleRate: w.SampleRate,
			Offset:     off,
		})
	}
	return chunks, nil
}

// windowSamples converts d to a sample count without overflowing
// d*rate for long windows.
func windowSamples(d time.Duration, rate int) int {
	secs := int64(d / time.Second)
	frac := int64(d % time.Second)
	return int(secs*int64(rate) + frac*int64(rate)/int64(time.Second))
}
