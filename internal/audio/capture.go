package audio

import (
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// Capture drives a Buffer from the system's default input device. The
// portaudio callback is the "audio producer" named in the concurrency
// model: it must never block, so it only copies the delivered frames
// and appends them, logging device status flags rather than acting on
// them.
type Capture struct {
	buf      *Buffer
	stream   *portaudio.Stream
	channels int
	block    []float32 // interleaved callback buffer, blockSizeFrames*channels samples
	mono     []float32 // scratch buffer channel 0 is extracted into
}

// NewCapture opens the default input device at sampleRate with the
// given channel count and callback block size (in frames).
func NewCapture(buf *Buffer, sampleRate float64, channels, blockSizeFrames int) (*Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio: failed to initialize portaudio: %w", err)
	}

	c := &Capture{
		buf:      buf,
		channels: channels,
		block:    make([]float32, blockSizeFrames*channels),
		mono:     make([]float32, blockSizeFrames),
	}

	stream, err := portaudio.OpenDefaultStream(channels, 0, sampleRate, blockSizeFrames, c.callback)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("audio: failed to open input stream: %w", err)
	}
	c.stream = stream

	return c, nil
}

// Start begins streaming audio into the Buffer.
func (c *Capture) Start() error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("audio: failed to start stream: %w", err)
	}
	return nil
}

// Stop halts streaming and releases the device.
func (c *Capture) Stop() error {
	if err := c.stream.Stop(); err != nil {
		slog.Error("audio: failed to stop stream", slog.String("err", err.Error()))
	}
	if err := c.stream.Close(); err != nil {
		slog.Error("audio: failed to close stream", slog.String("err", err.Error()))
	}
	return portaudio.Terminate()
}

// callback is invoked by the OS audio subsystem on its own thread.
// It must return promptly: no allocation-unbounded work, no network.
func (c *Capture) callback(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if flags != 0 {
		slog.Warn("audio: device status flags set", slog.Int("flags", int(flags)))
	}
	if len(c.block) != 0 && len(in) != len(c.block) {
		slog.Warn("audio: unexpected callback frame size", slog.Int("got", len(in)), slog.Int("want", len(c.block)))
	}

	if c.channels <= 1 {
		c.buf.Append(in)
		return
	}

	// The buffer only ever stores one sample per frame: extract channel
	// 0 from the interleaved callback data rather than appending it raw.
	frames := len(in) / c.channels
	mono := c.mono
	if cap(mono) < frames {
		mono = make([]float32, frames)
	}
	mono = mono[:frames]
	for i := 0; i < frames; i++ {
		mono[i] = in[i*c.channels]
	}
	c.buf.Append(mono)
}
