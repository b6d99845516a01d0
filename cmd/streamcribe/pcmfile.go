package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// loadPCMFile loads mono float32 PCM for --file playback mode. Decoding
// compressed audio containers is out of scope: the only two formats
// accepted are raw little-endian float32 samples (the output of
// `ffmpeg -f f32le`), and a minimal 16-bit-PCM WAV file, distinguished
// by the "RIFF" magic.
func loadPCMFile(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(data) >= 4 && bytes.Equal(data[:4], []byte("RIFF")) {
		return decodeWAV(data)
	}
	return decodeRawF32(data)
}

func decodeRawF32(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("pcmfile: raw f32 data length %d is not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// decodeWAV reads a canonical 16-bit PCM WAV file's data chunk and
// converts samples to float32 in [-1, 1].
func decodeWAV(data []byte) ([]float32, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("pcmfile: WAV header truncated")
	}

	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])
	if bitsPerSample != 16 {
		return nil, fmt.Errorf("pcmfile: only 16-bit PCM WAV is supported, got %d bits", bitsPerSample)
	}

	pos := 12
	var pcm []byte
	for pos+8 <= len(data) {
		id := data[pos : pos+4]
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8
		if body+int(size) > len(data) {
			break
		}
		if bytes.Equal(id, []byte("data")) {
			pcm = data[body : body+int(size)]
			break
		}
		pos = body + int(size)
		if size%2 == 1 {
			pos++
		}
	}
	if pcm == nil {
		return nil, fmt.Errorf("pcmfile: no data chunk found")
	}

	out := make([]float32, len(pcm)/2)
	for i := range out {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(sample) / 32768
	}
	return out, nil
}
