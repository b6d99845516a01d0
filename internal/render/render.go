// Package render consumes reconciliation state changes and turns them
// into output: a terminal stream or a websocket feed. Neither
// internal/transcript nor internal/pacer ever write to a terminal or
// socket directly; they only produce CommitEvents for whatever Sink
// the session was configured with.
package render

import "github.com/nullagree/streamcribe/internal/transcript"

// CommitEvent is emitted once per pacer tick that changed reconciler
// state (a new commit, a new tail, or a finish).
type CommitEvent struct {
	PrefixWords []transcript.Word `json:"prefixWords"`
	TailWords   []transcript.Word `json:"tailWords"`

	DelaySeconds float64 `json:"delaySeconds"`

	Language            string  `json:"language"`
	LanguageProbability float64 `json:"languageProbability"`

	Finished bool `json:"finished"`
}

// Sink receives commit events for the lifetime of one session.
type Sink interface {
	Render(CommitEvent) error
	Close() error
}
