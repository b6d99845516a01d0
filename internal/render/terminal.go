package render

import (
	"fmt"
	"io"
)

// ANSI escapes for clearing the terminal and dimming the volatile
// tail relative to the committed prefix. No third-party styling
// library is grounded in the pack for this exact role (fatih/color
// appears only as an indirect go.mod entry in the teacher's module
// graph and is never imported by any example source file), so this
// sink writes the handful of escape codes itself.
const (
	ansiClear = "\x1b[2J\x1b[H"
	ansiDim   = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

// Terminal is a Sink that redraws the full transcript on every event,
// per the clear-and-rewrite framing: committed prefix in the default
// style, the volatile tail dimmed, no trailing newline until Finished.
type Terminal struct {
	w io.Writer
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Render(ev CommitEvent) error {
	if _, err := io.WriteString(t.w, ansiClear); err != nil {
		return err
	}
	for _, w := range ev.PrefixWords {
		if _, err := io.WriteString(t.w, w.Text); err != nil {
			return err
		}
	}
	if len(ev.TailWords) > 0 {
		if _, err := io.WriteString(t.w, ansiDim); err != nil {
			return err
		}
		for _, w := range ev.TailWords {
			if _, err := io.WriteString(t.w, w.Text); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(t.w, ansiReset); err != nil {
			return err
		}
	}
	if ev.Finished {
		if _, err := fmt.Fprintln(t.w); err != nil {
			return err
		}
	}
	return nil
}

func (t *Terminal) Close() error { return nil }
