package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestFloatToPCM16RoundTripWithinOneStep(t *testing.T) {
	t.Parallel()

	step := 1.0 / pcm16Scale
	for i := -1000; i <= 1000; i++ {
		s := float32(i) / 1000
		back := PCM16ToFloat(FloatToPCM16(s))
		if math.Abs(float64(back-s)) > step {
			t.Fatalf("sample %v decoded to %v, more than one step away", s, back)
		}
	}
}

func TestFloatToPCM16Clamps(t *testing.T) {
	t.Parallel()

	cases := map[float32]int16{
		1:     32767,
		-1:    -32767,
		1.5:   math.MaxInt16,
		-1.5:  math.MinInt16,
		100:   math.MaxInt16,
		-100:  math.MinInt16,
		0:     0,
		0.5:   16384,
		-0.25: -8192,
	}
	for in, want := range cases {
		if got := FloatToPCM16(in); got != want {
			t.Fatalf("FloatToPCM16(%v) = %d, want %d", in, got, want)
		}
	}
	if got := FloatToPCM16(float32(math.NaN())); got != 0 {
		t.Fatalf("expected NaN to encode as 0, got %d", got)
	}
}

func TestDecodeS16LE(t *testing.T) {
	t.Parallel()

	got := DecodeS16LE([]byte{0xff, 0x7f, 0x00, 0x00, 0x01, 0x80, 0x42}, nil)
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	if got[0] != 1 || got[1] != 0 || got[2] != -1 {
		t.Fatalf("unexpected samples: %v", got)
	}
}

func TestWAVEncoderWritesMono16BitPCM(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prompt.wav")
	enc := NewWAVEncoder(path, 16000)

	samples := []float32{0, 0.5, -0.5, 1, -1, 2}
	got, err := enc.Encode(samples)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if got != path {
		t.Fatalf("unexpected path: %q", got)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("expected valid wav file")
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Fatalf("unexpected format: rate=%d chans=%d depth=%d", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	want := []int{0, 16384, -16384, 32767, -32767, 32767}
	if len(buf.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Fatalf("sample %d: got %d want %d", i, buf.Data[i], want[i])
		}
	}
}

func TestWAVEncoderOverwritesPreviousArtifact(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prompt.wav")
	enc := NewWAVEncoder(path, 16000)

	if _, err := enc.Encode(make([]float32, 10240)); err != nil {
		t.Fatalf("first encode failed: %v", err)
	}
	first, _ := os.Stat(path)

	if _, err := enc.Encode(make([]float32, 512)); err != nil {
		t.Fatalf("second encode failed: %v", err)
	}
	second, _ := os.Stat(path)

	if second.Size() >= first.Size() {
		t.Fatalf("expected artifact to be truncated, sizes %d then %d", first.Size(), second.Size())
	}
}

func TestWAVEncoderErrors(t *testing.T) {
	t.Parallel()

	enc := NewWAVEncoder(filepath.Join(t.TempDir(), "prompt.wav"), 16000)
	_, err := enc.Encode(nil)
	var encErr *EncodingError
	if !errors.As(err, &encErr) || !errors.Is(err, ErrEmptySession) {
		t.Fatalf("expected empty session encoding error, got %v", err)
	}

	bad := NewWAVEncoder(filepath.Join(t.TempDir(), "missing", "prompt.wav"), 16000)
	if _, err := bad.Encode([]float32{0.1}); !errors.As(err, &encErr) {
		t.Fatalf("expected encoding error for unwritable path, got %v", err)
	}
}
