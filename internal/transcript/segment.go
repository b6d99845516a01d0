package transcript

import (
	"fmt"
	"time"
)

// Options tunes the LocalAgreement-2 commit policy.
type Options struct {
	SampleRate int

	// MaxSegmentTime bounds worst-case commit latency: once a decoded
	// slice is longer than this and holds more than MinRemainWords
	// words, the reconciler force-commits everything but the last
	// MinRemainWords words, whether or not the hypotheses agree.
	MaxSegmentTime time.Duration

	// MinCommonWords is the minimum agreed-prefix length required
	// before those words are promoted to the prefix.
	MinCommonWords int

	// MinRemainWords is the minimum number of words that must stay in
	// the tail after any commit (agreement-based or forced).
	MinRemainWords int
}

func (o Options) withDefaults() Options {
	if o.SampleRate == 0 {
		o.SampleRate = 16000
	}
	if o.MaxSegmentTime == 0 {
		o.MaxSegmentTime = 5 * time.Second
	}
	if o.MinCommonWords == 0 {
		o.MinCommonWords = 2
	}
	if o.MinRemainWords == 0 {
		o.MinRemainWords = 2
	}
	return o
}

// Segment is the currently open utterance: an immutable committed
// prefix plus a volatile tail.
type Segment struct {
	StartSample SampleIndex
	EndSample   SampleIndex

	Prefix []Word
	Tail   []Word

	Language            string
	LanguageProbability float64
}

// CommittedSample is the sample index up to which audio has been
// permanently transcribed. The next request's slice must begin here.
func (s Segment) CommittedSample() SampleIndex {
	if len(s.Prefix) == 0 {
		return s.StartSample
	}
	return s.Prefix[len(s.Prefix)-1].End
}

// PrefixText concatenates the committed prefix, used as the backend's
// decoder prompt context on the next request.
func (s Segment) PrefixText() string {
	var out string
	for _, w := range s.Prefix {
		out += w.Text
	}
	return out
}

// TailText concatenates the volatile tail.
func (s Segment) TailText() string {
	var out string
	for _, w := range s.Tail {
		out += w.Text
	}
	return out
}

// Reconciler holds one open Segment and the previous hypothesis needed
// to compute agreement with the next one. It is owned exclusively by
// the pacer goroutine: no internal locking.
type Reconciler struct {
	opts Options

	segment  Segment
	prev     *Hypothesis
	finished bool
}

// NewReconciler creates a Reconciler for a segment starting at start.
func NewReconciler(start SampleIndex, opts Options) *Reconciler {
	opts = opts.withDefaults()
	return &Reconciler{
		opts: opts,
		segment: Segment{
			StartSample: start,
			EndSample:   start,
		},
	}
}

// Segment returns a snapshot of the current segment state.
func (r *Reconciler) Segment() Segment {
	seg := r.segment
	seg.Prefix = append([]Word(nil), r.segment.Prefix...)
	seg.Tail = append([]Word(nil), r.segment.Tail...)
	return seg
}

// CommittedSample returns the current committed sample index.
func (r *Reconciler) CommittedSample() SampleIndex {
	return r.segment.CommittedSample()
}

// Finished reports whether a finish=true hypothesis has already been
// reconciled; further calls are a no-op (idempotent finish).
func (r *Reconciler) Finished() bool {
	return r.finished
}

// Reconcile feeds one new hypothesis into the state machine and
// returns the words newly promoted into the prefix, if any. It
// implements LocalAgreement-2 as described by the streaming-ASR
// literature: steps run as an if/else-if chain, never more than one
// path per call.
func (r *Reconciler) Reconcile(hyp Hypothesis, finish bool) ([]Word, error) {
	if r.finished {
		// Idempotent finish: a second finish=true call (or any further
		// call after one) is a no-op.
		return nil, nil
	}

	if finish {
		promoted := append([]Word(nil), hyp.Words...)
		r.segment.Prefix = append(r.segment.Prefix, promoted...)
		r.segment.Tail = nil
		r.segment.StartSample = hyp.Start
		r.segment.EndSample = hyp.End
		r.segment.Language = hyp.Language
		r.segment.LanguageProbability = hyp.LanguageProbability
		r.finished = true
		r.prev = nil
		return promoted, nil
	}

	r.segment.StartSample = hyp.Start
	r.segment.EndSample = hyp.End
	r.segment.Language = hyp.Language
	r.segment.LanguageProbability = hyp.LanguageProbability

	duration := time.Duration(float64(hyp.End-hyp.Start) / float64(r.opts.SampleRate) * float64(time.Second))

	switch {
	case len(hyp.Words) > r.opts.MinRemainWords && duration > r.opts.MaxSegmentTime:
		// Force-commit: bound worst-case latency when the model keeps
		// disagreeing (silence, music, repeated disfluency).
		k := len(hyp.Words) - r.opts.MinRemainWords
		promoted := append([]Word(nil), hyp.Words[:k]...)
		r.segment.Prefix = append(r.segment.Prefix, promoted...)
		r.segment.Tail = append([]Word(nil), hyp.Words[k:]...)
		r.prev = &hyp
		return promoted, nil

	case r.prev == nil || r.prev.Start != hyp.Start:
		// Either the very first hypothesis for this segment, or a new
		// slice origin right after a commit: no prior hypothesis over
		// the same audio window to agree with yet.
		r.segment.Tail = append([]Word(nil), hyp.Words...)
		r.prev = &hyp
		return nil, nil

	default:
		k := agreedPrefixLen(r.prev.Words, hyp.Words)

		clamp := len(hyp.Words) - r.opts.MinRemainWords
		if clamp < 0 {
			clamp = 0
		}
		if k > clamp {
			k = clamp
		}
		if k < 0 || k > len(hyp.Words) {
			return nil, fmt.Errorf("transcript: invariant violation: agreed prefix length %d out of range for %d words", k, len(hyp.Words))
		}

		var promoted []Word
		if k >= r.opts.MinCommonWords && len(hyp.Words)-k >= r.opts.MinRemainWords {
			promoted = append([]Word(nil), hyp.Words[:k]...)
			r.segment.Prefix = append(r.segment.Prefix, promoted...)
			r.segment.Tail = append([]Word(nil), hyp.Words[k:]...)
		} else {
			r.segment.Tail = append([]Word(nil), hyp.Words...)
		}
		r.prev = &hyp
		return promoted, nil
	}
}

// agreedPrefixLen returns the largest k such that prev and cur agree
// word-for-word on their first k words.
//
// The source algorithm this is modeled on phrases the check as a
// bigram comparison (prev[i]==cur[i] AND prev[i-1]==cur[i-1]), but
// since the loop only reaches index i after i-1 already matched, that
// is equivalent to this plain unigram prefix check.
func agreedPrefixLen(prev, cur []Word) int {
	n := len(prev)
	if len(cur) < n {
		n = len(cur)
	}
	k := 0
	for k < n && prev[k].Text == cur[k].Text {
		k++
	}
	return k
}
