package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// Canonical RIFF + fmt + data headers.
const wavHeaderSize = 44

func TestEncodeThenReadWAV(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234}
	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}
	if len(data) != wavHeaderSize+len(samples)*2 {
		t.Fatalf("encoded size = %d", len(data))
	}

	path := filepath.Join(t.TempDir(), "a.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("ReadWAVFile() error = %v", err)
	}
	if w.SampleRate != 16000 {
		t.Fatalf("rate = %d", w.SampleRate)
	}
	if len(w.Samples) != len(samples) {
		t.Fatalf("samples = %d", len(w.Samples))
	}
	for i := range samples {
		if w.Samples[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, w.Samples[i], samples[i])
		}
	}
}

// stereoWAV builds a stereo file with a padding chunk between fmt and data.
func stereoWAV(frames [][2]int16) []byte {
	var body bytes.Buffer
	body.WriteString("WAVE")
	body.WriteString("fmt ")
	binary.Write(&body, binary.LittleEndian, uint32(16))
	binary.Write(&body, binary.LittleEndian, uint16(1))
	binary.Write(&body, binary.LittleEndian, uint16(2))
	binary.Write(&body, binary.LittleEndian, uint32(8000))
	binary.Write(&body, binary.LittleEndian, uint32(8000*4))
	binary.Write(&body, binary.LittleEndian, uint16(4))
	binary.Write(&body, binary.LittleEndian, uint16(16))
	body.WriteString("JUNK")
	binary.Write(&body, binary.LittleEndian, uint32(4))
	body.Write([]byte{0, 0, 0, 0})
	body.WriteString("data")
	binary.Write(&body, binary.LittleEndian, uint32(len(frames)*4))
	for _, f := range frames {
		binary.Write(&body, binary.LittleEndian, f[0])
		binary.Write(&body, binary.LittleEndian, f[1])
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestReadWAVDownmixesAndSkipsUnknownChunks(t *testing.T) {
	w, err := ReadWAV(bytes.NewReader(stereoWAV([][2]int16{{100, 200}, {-10, 10}})))
	if err != nil {
		t.Fatalf("ReadWAV() error = %v", err)
	}
	if w.SampleRate != 8000 {
		t.Fatalf("rate = %d", w.SampleRate)
	}
	if len(w.Samples) != 2 || w.Samples[0] != 150 || w.Samples[1] != 0 {
		t.Fatalf("samples = %v", w.Samples)
	}
}

func TestChunkWAVRoundTrip(t *testing.T) {
	c := Chunk{Index: 2, Samples: []int16{5, -5, 7}, SampleRate: 8000, Offset: 16000}
	data, err := c.WAV()
	if err != nil {
		t.Fatalf("WAV() error = %v", err)
	}
	w, err := ReadWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadWAV() error = %v", err)
	}
	if w.SampleRate != 8000 || len(w.Samples) != 3 || w.Samples[1] != -5 {
		t.Fatalf("decoded = %+v", w)
	}
}

func TestSeekBufferPatchesEarlierBytes(t *testing.T) {
	var b seekBuffer
	b.Write([]byte("abcdef"))
	if _, err := b.Seek(2, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	b.Write([]byte("XY"))
	if _, err := b.Seek(0, io.SeekEnd); err != nil {
		t.Fatal(err)
	}
	b.Write([]byte("g"))
	if got := string(b.Bytes()); got != "abXYefg" {
		t.Fatalf("bytes = %q", got)
	}
	if _, err := b.Seek(-1, io.SeekStart); err == nil {
		t.Fatal("negative seek should fail")
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	_, err := ReadWAV(bytes.NewReader([]byte("definitely not audio")))
	if !errors.Is(err, ErrNotWAV) {
		t.Fatalf("error = %v, want ErrNotWAV", err)
	}
}
