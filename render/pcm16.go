package render

import "encoding/binary"

// DecodePCM16 converts little-endian 16-bit PCM bytes, the wire format
// of the exec and http engines and of bus render chunks, into
// normalized float32 samples.
func DecodePCM16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
	}
	return out
}

// EncodePCM16 is the inverse of DecodePCM16, clamping to full scale.
func EncodePCM16(pcm []float32) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}
