// Package audio owns the growing PCM sample buffer and the two
// producers that fill it: a live microphone callback and a
// file-playback simulation of one.
package audio

import (
	"sync"

	"github.com/nullagree/streamcribe/internal/transcript"
)

// blockSize is the size of each internal storage block. Using fixed
// blocks instead of one ever-growing slice avoids the O(n) copy a
// single reallocated buffer would pay at high sample rates over a long
// session.
const blockSize = 16000 * 4 // ~4 seconds of 16kHz audio per block

// Buffer is an append-only, monotonically growing sequence of 32-bit
// float mono PCM samples. Append is safe to call from an audio
// device's callback thread; Slice and Len are safe to call
// concurrently from the pacer goroutine.
type Buffer struct {
	mu     sync.Mutex
	blocks [][]float32
	length uint64
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append extends the buffer with samples. It never blocks on
// anything but the internal mutex, so it is safe to call from an
// audio subsystem callback.
func (b *Buffer) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := samples
	for len(remaining) > 0 {
		if len(b.blocks) == 0 || len(b.blocks[len(b.blocks)-1]) == blockSize {
			b.blocks = append(b.blocks, make([]float32, 0, blockSize))
		}
		last := &b.blocks[len(b.blocks)-1]
		space := blockSize - len(*last)
		n := len(remaining)
		if n > space {
			n = space
		}
		*last = append(*last, remaining[:n]...)
		remaining = remaining[n:]
	}
	b.length += uint64(len(samples))
}

// Len returns the current sample count.
func (b *Buffer) Len() transcript.SampleIndex {
	b.mu.Lock()
	defer b.mu.Unlock()
	return transcript.SampleIndex(b.length)
}

// Slice returns a copy of samples [from, to). It is never invalidated
// by concurrent appends since it copies out under the lock.
func (b *Buffer) Slice(from, to transcript.SampleIndex) []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if to > transcript.SampleIndex(b.length) {
		to = transcript.SampleIndex(b.length)
	}
	if from >= to {
		return nil
	}

	out := make([]float32, 0, to-from)
	var pos uint64
	for _, block := range b.blocks {
		blockEnd := pos + uint64(len(block))
		if blockEnd > uint64(from) && pos < uint64(to) {
			start := uint64(0)
			if uint64(from) > pos {
				start = uint64(from) - pos
			}
			end := uint64(len(block))
			if blockEnd > uint64(to) {
				end = uint64(to) - pos
			}
			out = append(out, block[start:end]...)
		}
		pos = blockEnd
		if pos >= uint64(to) {
			break
		}
	}
	return out
}
