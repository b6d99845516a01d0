package pacer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nullagree/streamcribe/internal/asrclient"
	"github.com/nullagree/streamcribe/internal/render"
	"github.com/nullagree/streamcribe/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory Source; no audio device involved.
type fakeSource struct {
	mu   sync.Mutex
	data []float32
}

func (f *fakeSource) Len() transcript.SampleIndex {
	f.mu.Lock()
	defer f.mu.Unlock()
	return transcript.SampleIndex(len(f.data))
}

func (f *fakeSource) Slice(from, to transcript.SampleIndex) []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if to > transcript.SampleIndex(len(f.data)) {
		to = transcript.SampleIndex(len(f.data))
	}
	if from >= to {
		return nil
	}
	return append([]float32(nil), f.data[from:to]...)
}

// fakeBackend returns one scripted hypothesis per call, tracking how
// many calls it received.
type fakeBackend struct {
	mu    sync.Mutex
	calls int
	hyps  []transcript.Hypothesis
}

func (f *fakeBackend) Transcribe(_ context.Context, req asrclient.Request, committed transcript.SampleIndex, sampleRate int) (transcript.Hypothesis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	if i >= len(f.hyps) {
		return transcript.Hypothesis{Start: committed, End: committed + transcript.SampleIndex(len(req.Audio))}, nil
	}
	return f.hyps[i], nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeSink records every event it receives.
type fakeSink struct {
	mu     sync.Mutex
	events []render.CommitEvent
}

func (s *fakeSink) Render(ev render.CommitEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeSink) Close() error { return nil }

func (s *fakeSink) last() render.CommitEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func wordsAt(texts ...string) []transcript.Word {
	out := make([]transcript.Word, len(texts))
	for i, t := range texts {
		out[i] = transcript.Word{Text: t}
	}
	return out
}

func TestPacer_FileModeEndsWithFinish(t *testing.T) {
	source := &fakeSource{data: make([]float32, 16000*3)}
	backend := &fakeBackend{
		hyps: []transcript.Hypothesis{
			{Start: 0, End: 16000, Words: wordsAt("one", " two")},
			{Start: 0, End: 32000, Words: wordsAt("one", " two", " three")},
			{Start: 0, End: 48000, Words: wordsAt("one", " two", " three", " four")},
		},
	}
	sink := &fakeSink{}

	opts := Options{
		Every:      time.Millisecond,
		SampleRate: 16000,
		Options:    transcript.Options{SampleRate: 16000},
	}
	p := New(source, backend, sink, opts, transcript.SampleIndex(len(source.data)))
	p.sleep = func(d time.Duration) <-chan time.Time { return time.After(time.Microsecond) }

	err := p.Run(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, backend.callCount(), 1)
	last := sink.last()
	assert.True(t, last.Finished)
}

func TestPacer_LiveModeStopsOnContextCancel(t *testing.T) {
	source := &fakeSource{data: make([]float32, 16000)}
	backend := &fakeBackend{}
	sink := &fakeSink{}

	opts := Options{Every: 5 * time.Millisecond, SampleRate: 16000, Options: transcript.Options{SampleRate: 16000}}
	p := New(source, backend, sink, opts, 0)
	p.sleep = func(d time.Duration) <-chan time.Time { return time.After(time.Millisecond) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pacer did not stop after context cancel")
	}
}

func TestPacer_OneRenderPerBackendCall(t *testing.T) {
	source := &fakeSource{data: make([]float32, 16000*4)}
	backend := &fakeBackend{}
	sink := &fakeSink{}

	opts := Options{Every: time.Millisecond, SampleRate: 16000, Options: transcript.Options{SampleRate: 16000}}
	p := New(source, backend, sink, opts, transcript.SampleIndex(len(source.data)))
	p.sleep = func(d time.Duration) <-chan time.Time { return time.After(time.Microsecond) }

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, sink.count(), backend.callCount())
}
