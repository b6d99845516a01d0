package main

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPCMFile_RawF32(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.f32")

	var buf bytes.Buffer
	for _, v := range []float32{0, 0.5, -0.5, 1} {
		_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(v))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := loadPCMFile(path)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5, -0.5, 1}, got)
}

func TestLoadPCMFile_WAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.wav")

	samples := []int16{0, 16384, -16384, 32767}
	var pcm bytes.Buffer
	for _, s := range samples {
		_ = binary.Write(&pcm, binary.LittleEndian, s)
	}

	var wav bytes.Buffer
	wav.WriteString("RIFF")
	_ = binary.Write(&wav, binary.LittleEndian, uint32(36+pcm.Len()))
	wav.WriteString("WAVE")
	wav.WriteString("fmt ")
	_ = binary.Write(&wav, binary.LittleEndian, uint32(16))
	_ = binary.Write(&wav, binary.LittleEndian, uint16(1))  // PCM
	_ = binary.Write(&wav, binary.LittleEndian, uint16(1))  // mono
	_ = binary.Write(&wav, binary.LittleEndian, uint32(16000))
	_ = binary.Write(&wav, binary.LittleEndian, uint32(32000))
	_ = binary.Write(&wav, binary.LittleEndian, uint16(2))
	_ = binary.Write(&wav, binary.LittleEndian, uint16(16))
	wav.WriteString("data")
	_ = binary.Write(&wav, binary.LittleEndian, uint32(pcm.Len()))
	wav.Write(pcm.Bytes())

	require.NoError(t, os.WriteFile(path, wav.Bytes(), 0o644))

	got, err := loadPCMFile(path)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.InDelta(t, 0, got[0], 1e-6)
	assert.InDelta(t, 0.5, got[1], 1e-3)
}
