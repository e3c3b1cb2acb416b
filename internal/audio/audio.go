// Package audio holds decoded waveforms and the fixed-duration chunking
// that turns them into transcription units.
package audio

import (
	"fmt"
	"time"
)

// TargetSampleRate is the rate the inference endpoint expects.
const TargetSampleRate = 16000

// Waveform is a decoded mono signal. It is not modified after decoding.
type Waveform struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Chunk is a contiguous window of a Waveform. Index is zero-based and
// defines assembly order.
type Chunk struct {
	Index      int
	Samples    []int16
	SampleRate int
	Offset     int // first sample position in the source waveform
}

// Start returns the chunk's offset in the source audio.
func (c Chunk) Start() time.Duration {
	return samplesToDuration(c.Offset, c.SampleRate)
}

// End returns the offset just past the chunk's last sample.
func (c Chunk) End() time.Duration {
	return samplesToDuration(c.Offset+len(c.Samples), c.SampleRate)
}

// WAV encodes the chunk as a standalone 16-bit PCM WAV file.
func (c Chunk) WAV() ([]byte, error) {
	return EncodeWAV(c.Samples, c.SampleRate)
}

// String returns a human-readable representation for logging.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d: %s-%s", c.Index, c.Start(), c.End())
}

func samplesToDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
