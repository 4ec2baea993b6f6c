package audio

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrEmptySession is returned when there is nothing to encode.
var ErrEmptySession = errors.New("empty recording session")

const (
	wavBitDepth  = 16
	wavChannels  = 1
	wavFormatPCM = 1
	artifactPerm = 0o600
)

// EncodingError reports a failed artifact write.
type EncodingError struct {
	Path string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Path, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// WAVEncoder writes 16-bit mono PCM WAV files to a single well-known path.
type WAVEncoder struct {
	path       string
	sampleRate int
}

func NewWAVEncoder(path string, sampleRate int) *WAVEncoder {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &WAVEncoder{path: path, sampleRate: sampleRate}
}

// Path returns the artifact location.
func (e *WAVEncoder) Path() string {
	return e.path
}

// Encode overwrites the artifact with samples and returns its path.
func (e *WAVEncoder) Encode(samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", &EncodingError{Path: e.path, Err: ErrEmptySession}
	}

	file, err := os.OpenFile(e.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, artifactPerm)
	if err != nil {
		return "", &EncodingError{Path: e.path, Err: err}
	}

	enc := wav.NewEncoder(file, e.sampleRate, wavBitDepth, wavChannels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: wavChannels, SampleRate: e.sampleRate},
		Data:           ToPCM16Ints(samples),
		SourceBitDepth: wavBitDepth,
	}

	if err := enc.Write(buf); err != nil {
		_ = file.Close()
		return "", &EncodingError{Path: e.path, Err: fmt.Errorf("write samples: %w", err)}
	}
	if err := enc.Close(); err != nil {
		_ = file.Close()
		return "", &EncodingError{Path: e.path, Err: fmt.Errorf("finalize header: %w", err)}
	}
	if err := file.Close(); err != nil {
		return "", &EncodingError{Path: e.path, Err: err}
	}
	return e.path, nil
}
