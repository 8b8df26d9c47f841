// Package audioutil converts between the audio representations used on the
// wire (float32 sample arrays, mu-law/A-law bytes) and the 16-bit PCM the
// pipeline works in.
package audioutil

import (
	"encoding/binary"
	"math"

	"github.com/zaf/g711"
)

// Float32ToPCM16 converts [-1, 1] float samples to 16-bit little-endian PCM,
// clamping out-of-range values.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * math.MaxInt16)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16ToFloat32 converts 16-bit little-endian PCM to [-1, 1] float samples.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(v) / math.MaxInt16
	}
	return out
}

// DecodeULaw expands mu-law bytes to 16-bit little-endian PCM.
func DecodeULaw(data []byte) []byte {
	return g711.DecodeUlaw(data)
}

// DecodeALaw expands A-law bytes to 16-bit little-endian PCM.
func DecodeALaw(data []byte) []byte {
	return g711.DecodeAlaw(data)
}

// EncodeULaw compresses 16-bit little-endian PCM to mu-law bytes.
func EncodeULaw(pcm []byte) []byte {
	return g711.EncodeUlaw(pcm)
}

// WAV wraps 16-bit PCM in a RIFF/WAVE header so it can be handed to HTTP
// transcription endpoints that expect a file.
func WAV(pcm []byte, sampleRate, channels int) []byte {
	const headerSize = 44
	dataLen := len(pcm)
	buf := make([]byte, headerSize+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	byteRate := sampleRate * channels * 2
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                 // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[44:], pcm)
	return buf
}

// RMS computes the root-mean-square amplitude of 16-bit little-endian PCM.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
