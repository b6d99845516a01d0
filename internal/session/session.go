// Package session wires one AudioBuffer, Pacer, Reconciler and Sink
// together and exposes the four-method lifecycle the teacher's
// call.Transcriber uses: Start, Stop, Done, Err.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nullagree/streamcribe/internal/asrclient"
	"github.com/nullagree/streamcribe/internal/audio"
	"github.com/nullagree/streamcribe/internal/config"
	"github.com/nullagree/streamcribe/internal/pacer"
	"github.com/nullagree/streamcribe/internal/render"
	"github.com/nullagree/streamcribe/internal/transcript"
)

// Session owns one streamcribe listen invocation: either a live
// microphone capture or a file-playback simulation, feeding one
// Pacer, rendering to one Sink.
type Session struct {
	cfg config.Config

	buf      *audio.Buffer
	capture  *audio.Capture
	play     *audio.Playback
	playTick int
	pace     *pacer.Pacer
	sink     render.Sink

	cancel context.CancelFunc

	errCh    chan error
	doneCh   chan struct{}
	doneOnce sync.Once
}

// playbackTickSamples is how many samples Playback delivers per tick
// of cfg.Every: one tick's worth of audio at the configured sample
// rate, falling back to the capture block size when Every is shorter
// than one sample period (e.g. microsecond test ticks).
func playbackTickSamples(cfg config.Config) int {
	n := int(int64(cfg.SampleRate) * int64(cfg.Every) / int64(time.Second))
	if n <= 0 {
		return cfg.Block
	}
	return n
}

// New builds a Session from cfg. fileData is nil for live-mic mode,
// or the fully pre-decoded PCM samples for file-playback mode.
// terminalOut is where the terminal sink writes; it is ignored when
// cfg.Render selects the websocket sink.
func New(cfg config.Config, fileData []float32, terminalOut io.Writer) (*Session, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("session: invalid config: %w", err)
	}

	buf := audio.NewBuffer()

	var sink render.Sink
	switch cfg.Render {
	case config.RenderKindWebSocket:
		ws, err := render.NewWebSocket(cfg.RenderAddr)
		if err != nil {
			return nil, fmt.Errorf("session: failed to start websocket sink: %w", err)
		}
		sink = ws
	default:
		sink = render.NewTerminal(terminalOut)
	}

	backend := asrclient.NewClient(cfg.URL, cfg.Timeout)

	s := &Session{
		cfg:    cfg,
		buf:    buf,
		sink:   sink,
		errCh:  make(chan error, 1),
		doneCh: make(chan struct{}),
	}

	pacerOpts := pacer.Options{
		Every:      cfg.Every,
		SampleRate: cfg.SampleRate,
		Task:       cfg.Task,
		Lang:       cfg.Lang,
		BeamSize:   cfg.BeamSize,
		Options: transcript.Options{
			SampleRate:     cfg.SampleRate,
			MaxSegmentTime: cfg.MaxSegmentTime,
			MinCommonWords: cfg.MinCommonWords,
			MinRemainWords: cfg.MinRemainWords,
		},
	}

	if fileData != nil {
		s.playTick = playbackTickSamples(cfg)
		s.play = audio.NewPlayback(buf, fileData, cfg.SampleRate, s.playTick, cfg.Every)
		s.pace = pacer.New(buf, backend, sink, pacerOpts, transcript.SampleIndex(len(fileData)))
	} else {
		capture, err := audio.NewCapture(buf, float64(cfg.SampleRate), cfg.Channels, cfg.Block)
		if err != nil {
			return nil, fmt.Errorf("session: failed to open capture device: %w", err)
		}
		s.capture = capture
		s.pace = pacer.New(buf, backend, sink, pacerOpts, 0)
	}

	return s, nil
}

// Start launches the producer and the pacer loop. It returns once
// both are running; Done reports when the session has finished.
// Cancellation or a deadline on ctx does not end the running session;
// only Stop does.
func (s *Session) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	if s.capture != nil {
		if err := s.capture.Start(); err != nil {
			cancel()
			return fmt.Errorf("session: failed to start capture: %w", err)
		}
	} else {
		go s.play.Run(runCtx, s.playTick)
	}

	go func() {
		err := s.pace.Run(runCtx)
		s.finish(err)
	}()

	return nil
}

func (s *Session) finish(err error) {
	s.doneOnce.Do(func() {
		if s.capture != nil {
			if stopErr := s.capture.Stop(); stopErr != nil {
				slog.Error("session: failed to stop capture", slog.String("err", stopErr.Error()))
			}
		}
		if closeErr := s.sink.Close(); closeErr != nil {
			slog.Error("session: failed to close render sink", slog.String("err", closeErr.Error()))
		}
		if err != nil {
			s.errCh <- err
		}
		close(s.doneCh)
	})
}

// Stop requests a graceful shutdown (no finish=true tick is sent: an
// interrupted session stops where it is) and waits for it to land, or
// for ctx to expire first.
func (s *Session) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	select {
	case <-s.doneCh:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done reports when the session has finished, whether by completing
// file playback, erroring, or being stopped.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

// Err returns the error the session finished with, if any. The error
// is handed out once: after one call has returned it, later calls
// return nil.
func (s *Session) Err() error {
	select {
	case err := <-s.errCh:
		return err
	default:
		return nil
	}
}
