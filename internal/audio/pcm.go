package audio

import (
	"encoding/binary"
	"math"
)

const pcm16Scale = 32767

// FloatToPCM16 scales a normalized sample to 16-bit PCM, clamping values
// outside [-1, 1] instead of letting them wrap.
func FloatToPCM16(s float32) int16 {
	v := math.Round(float64(s) * pcm16Scale)
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// PCM16ToFloat is the inverse of FloatToPCM16.
func PCM16ToFloat(v int16) float32 {
	return float32(v) / pcm16Scale
}

// ToPCM16Ints converts samples into the int slice go-audio buffers expect.
func ToPCM16Ints(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = int(FloatToPCM16(s))
	}
	return out
}

// DecodeS16LE converts little-endian signed 16-bit PCM into dst, growing it
// as needed. A trailing odd byte is ignored.
func DecodeS16LE(p []byte, dst []float32) []float32 {
	n := len(p) / 2
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		dst[i] = PCM16ToFloat(int16(binary.LittleEndian.Uint16(p[2*i:])))
	}
	return dst
}
