// Package pacer implements the drift-corrected transcription loop:
// one synchronous backend call per tick, on the growing suffix of the
// audio buffer not yet committed, handed off to the reconciler.
package pacer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nullagree/streamcribe/internal/asrclient"
	"github.com/nullagree/streamcribe/internal/metrics"
	"github.com/nullagree/streamcribe/internal/render"
	"github.com/nullagree/streamcribe/internal/telemetry"
	"github.com/nullagree/streamcribe/internal/transcript"
)

// Source is the subset of audio.Buffer the pacer needs. Defined here
// so tests can supply a fake without depending on internal/audio.
type Source interface {
	Len() transcript.SampleIndex
	Slice(from, to transcript.SampleIndex) []float32
}

// Backend is the subset of asrclient.Client the pacer calls. Defined
// here so tests can inject a fake that never does real I/O.
type Backend interface {
	Transcribe(ctx context.Context, req asrclient.Request, committed transcript.SampleIndex, sampleRate int) (transcript.Hypothesis, error)
}

// Options configures one pacer run. The embedded transcript.Options
// (SampleRate/MaxSegmentTime/MinCommonWords/MinRemainWords) is
// forwarded to the reconciler; Every, SampleRate, Task, Lang and
// BeamSize govern the loop and its backend requests. The per-request
// timeout belongs to the Backend, not to Options.
type Options struct {
	Every      time.Duration
	SampleRate int

	Task     asrclient.Task
	Lang     string
	BeamSize int

	transcript.Options
}

func (o *Options) withDefaults() {
	if o.Every <= 0 {
		o.Every = time.Second
	}
	if o.Task == "" {
		o.Task = asrclient.TaskTranscribe
	}
}

// Pacer owns the single-threaded scheduler loop. It is the one
// goroutine that ever reads Segment state, so the reconciler needs no
// locking of its own.
type Pacer struct {
	source   Source
	backend  Backend
	rec      *transcript.Reconciler
	sink     render.Sink
	opts     Options
	fileMode bool
	fileLen  transcript.SampleIndex

	now   func() time.Time
	sleep func(d time.Duration) <-chan time.Time
}

// New builds a Pacer. When fileLen is non-zero the loop runs in
// file-playback mode: it terminates once the source has produced
// fileLen samples, sending one final finish=true tick.
func New(source Source, backend Backend, sink render.Sink, opts Options, fileLen transcript.SampleIndex) *Pacer {
	opts.withDefaults()
	return &Pacer{
		source:   source,
		backend:  backend,
		rec:      transcript.NewReconciler(0, opts.Options),
		sink:     sink,
		opts:     opts,
		fileMode: fileLen > 0,
		fileLen:  fileLen,
		now:      time.Now,
		sleep:    func(d time.Duration) <-chan time.Time { return time.After(d) },
	}
}

// Run drives ticks until ctx is canceled (live-mic mode) or, in
// file-playback mode, until the source is fully consumed, at which
// point one last finish=true tick is issued before returning.
//
// Run never returns a context.Canceled error: a canceled context
// during sleep or an in-flight call is a graceful stop, matching the
// SIGINT behavior at the session boundary.
func (p *Pacer) Run(ctx context.Context) error {
	nextTick := p.now().Add(p.opts.Every)

	for {
		if ctx.Err() != nil {
			return nil
		}

		now := p.now()
		if nextTick.After(now) {
			select {
			case <-p.sleep(nextTick.Sub(now)):
			case <-ctx.Done():
				return nil
			}
		} else {
			lag := now.Sub(nextTick)
			slog.Warn("pacer: tick running late", slog.Duration("lag", lag))
			metrics.TickLag.Observe(lag.Seconds())
		}
		nextTick = nextTick.Add(p.opts.Every)

		finish := p.fileMode && p.source.Len() >= p.fileLen
		if err := p.tick(ctx, finish); err != nil {
			if errors.Is(err, context.Canceled) {
				metrics.TicksTotal.WithLabelValues("canceled").Inc()
				return nil
			}
			metrics.TicksTotal.WithLabelValues("error").Inc()
			return err
		}
		metrics.TicksTotal.WithLabelValues("ok").Inc()
		if finish {
			return nil
		}
	}
}

func (p *Pacer) tick(ctx context.Context, finish bool) error {
	committed := p.rec.CommittedSample()
	end := p.source.Len()
	metrics.BufferSamples.Set(float64(end))

	audio := p.source.Slice(committed, end)
	if len(audio) == 0 && !finish {
		// No new audio since the last commit: skip the roundtrip rather
		// than submit an empty slice, per the pacer's own allowance.
		return nil
	}

	req := asrclient.Request{
		Audio:    audio,
		History:  p.rec.Segment().PrefixText(),
		Task:     p.opts.Task,
		Lang:     p.opts.Lang,
		BeamSize: p.opts.BeamSize,
	}

	ctx, span := telemetry.StartASRRequest(ctx, uint64(committed), uint64(end))
	callStart := p.now()
	hyp, err := p.backend.Transcribe(ctx, req, committed, p.opts.SampleRate)
	delay := p.now().Sub(callStart)
	metrics.ASRRequestDuration.Observe(delay.Seconds())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			kind := "unknown"
			var asrErr *asrclient.Error
			if errors.As(err, &asrErr) {
				kind = asrErr.Kind
			}
			slog.Error("pacer: backend request failed", slog.String("kind", kind),
				slog.Uint64("committed_sample", uint64(committed)), slog.Uint64("end_sample", uint64(end)),
				slog.String("err", err.Error()))
		}
		span.RecordError(err)
		span.End()
		return err
	}
	span.End()

	prevPrefixLen := len(p.rec.Segment().Prefix)
	if _, err := p.rec.Reconcile(hyp, finish); err != nil {
		return err
	}

	seg := p.rec.Segment()
	metrics.WordsCommittedTotal.Add(float64(len(seg.Prefix) - prevPrefixLen))

	return p.sink.Render(render.CommitEvent{
		PrefixWords:         seg.Prefix,
		TailWords:           seg.Tail,
		DelaySeconds:        delay.Seconds(),
		Language:            hyp.Language,
		LanguageProbability: hyp.LanguageProbability,
		Finished:            p.rec.Finished(),
	})
}
