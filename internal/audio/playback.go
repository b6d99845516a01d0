package audio

import (
	"context"
	"log/slog"
	"time"
)

// Playback simulates a live capture device by replaying a fixed slice
// of samples into a Buffer at wall-clock rate, one tick at a time. It
// exists so the pacer can be driven deterministically from a prerecorded
// file instead of a microphone, without changing anything downstream of
// the Buffer.
type Playback struct {
	buf        *Buffer
	data       []float32
	sampleRate int
	tick       time.Duration

	done chan struct{}
}

// NewPlayback builds a Playback over the full contents of data
// (mono, sampleRate samples/sec), delivering tickSamples samples into
// buf every tick of wall-clock time.
func NewPlayback(buf *Buffer, data []float32, sampleRate, tickSamples int, tick time.Duration) *Playback {
	return &Playback{
		buf:        buf,
		data:       data,
		sampleRate: sampleRate,
		tick:       tick,
		done:       make(chan struct{}),
	}
}

// Run delivers samples until the file is exhausted or ctx is canceled.
// It blocks the calling goroutine; callers typically run it in its own
// goroutine alongside the pacer.
func (p *Playback) Run(ctx context.Context, tickSamples int) {
	defer close(p.done)

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	var delivered int
	for delivered < len(p.data) {
		select {
		case <-ctx.Done():
			slog.Info("audio: playback canceled", slog.Int("delivered", delivered), slog.Int("total", len(p.data)))
			return
		case <-ticker.C:
			next := delivered + tickSamples
			if next > len(p.data) {
				next = len(p.data)
			}
			p.buf.Append(p.data[delivered:next])
			delivered = next
		}
	}
	slog.Info("audio: playback reached end of file", slog.Int("samples", delivered))
}

// Done signals when Run has returned, either from exhausting the file
// or context cancellation.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}
