package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
	wavBitDepth         = 16
)

var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// ReadWAVFile decodes a 16-bit PCM WAV file.
func ReadWAVFile(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, err
	}
	defer f.Close()
	return ReadWAV(f)
}

// ReadWAV decodes a 16-bit PCM WAV stream. Multi-channel input is
// down-mixed to mono by averaging.
func ReadWAV(r io.ReadSeeker) (Waveform, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Waveform{}, ErrNotWAV
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return Waveform{}, fmt.Errorf("wav: unsupported format %d", d.WavAudioFormat)
	}
	if d.BitDepth != wavBitDepth {
		return Waveform{}, fmt.Errorf("wav: unsupported bit depth %d", d.BitDepth)
	}
	if d.NumChans < 1 {
		return Waveform{}, errors.New("wav: no channels")
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("wav: read pcm: %w", err)
	}
	return Waveform{
		Samples:    downmix(buf.Data, int(d.NumChans)),
		SampleRate: int(d.SampleRate),
	}, nil
}

func downmix(data []int, channels int) []int16 {
	frames := len(data) / channels
	out := make([]int16, frames)
	for i := range frames {
		sum := 0
		for c := range channels {
			sum += data[i*channels+c]
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// EncodeWAV renders mono 16-bit PCM samples as a WAV file.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	var out seekBuffer
	enc := wav.NewEncoder(&out, sampleRate, wavBitDepth, 1, wavFormatPCM)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}); err != nil {
		return nil, fmt.Errorf("wav: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wav: finalize: %w", err)
	}
	return out.Bytes(), nil
}

// seekBuffer is an in-memory io.WriteSeeker; the encoder seeks back to
// patch the RIFF and data sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("seek: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte { return b.buf }
