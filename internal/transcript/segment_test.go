package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(texts ...string) []Word {
	out := make([]Word, len(texts))
	for i, t := range texts {
		out[i] = Word{Text: t}
	}
	return out
}

func defaultOptions() Options {
	return Options{
		SampleRate:     16000,
		MaxSegmentTime: 5 * time.Second,
		MinCommonWords: 2,
		MinRemainWords: 2,
	}
}

func text(ws []Word) string {
	var s string
	for _, w := range ws {
		s += w.Text
	}
	return s
}

// Scenario 1: agreement commits a prefix.
func TestReconcile_AgreementCommitsPrefix(t *testing.T) {
	r := NewReconciler(0, defaultOptions())

	_, err := r.Reconcile(Hypothesis{Start: 0, End: 16000, Words: words("Hello", " world", " how", " are")}, false)
	require.NoError(t, err)

	promoted, err := r.Reconcile(Hypothesis{Start: 0, End: 32000, Words: words("Hello", " world", " how", " are", " you")}, false)
	require.NoError(t, err)

	assert.Equal(t, "Hello world how", text(promoted))
	seg := r.Segment()
	assert.Equal(t, "Hello world how", text(seg.Prefix))
	assert.Equal(t, " are you", text(seg.Tail))
}

// Scenario 2: insufficient remainder blocks commit.
func TestReconcile_InsufficientRemainderBlocksCommit(t *testing.T) {
	r := NewReconciler(0, defaultOptions())

	_, err := r.Reconcile(Hypothesis{Start: 0, End: 16000, Words: words("a", "b", "c")}, false)
	require.NoError(t, err)

	promoted, err := r.Reconcile(Hypothesis{Start: 0, End: 32000, Words: words("a", "b", "c")}, false)
	require.NoError(t, err)

	assert.Empty(t, promoted)
	seg := r.Segment()
	assert.Empty(t, seg.Prefix)
	assert.Equal(t, "abc", text(seg.Tail))
}

// Scenario 3: different start skips commit.
func TestReconcile_DifferentStartSkipsCommit(t *testing.T) {
	r := NewReconciler(0, defaultOptions())

	_, err := r.Reconcile(Hypothesis{Start: 0, End: 16000, Words: words("Hello", " world", " how", " are")}, false)
	require.NoError(t, err)
	promoted, err := r.Reconcile(Hypothesis{Start: 0, End: 32000, Words: words("Hello", " world", " how", " are", " you")}, false)
	require.NoError(t, err)
	require.NotEmpty(t, promoted)

	// Next tick's slice starts later (the pacer always resumes from the
	// committed sample): a different origin than the previous
	// hypothesis, so this tick must not commit.
	promoted, err = r.Reconcile(Hypothesis{Start: 32000, End: 48000, Words: words(" are", " you", " doing")}, false)
	require.NoError(t, err)
	assert.Empty(t, promoted)
}

// Scenario 4: force-commit on long segment.
func TestReconcile_ForceCommitOnLongSegment(t *testing.T) {
	r := NewReconciler(0, defaultOptions())

	ws := words("a", "b", "c", "d", "e", "f", "g", "h", "i", "j")
	promoted, err := r.Reconcile(Hypothesis{Start: 0, End: 6 * 16000, Words: ws}, false)
	require.NoError(t, err)

	assert.Len(t, promoted, 8)
	seg := r.Segment()
	assert.Len(t, seg.Prefix, 8)
	assert.Len(t, seg.Tail, 2)
}

// Scenario 5: finish flushes everything.
func TestReconcile_FinishFlushesEverything(t *testing.T) {
	r := NewReconciler(0, defaultOptions())

	_, err := r.Reconcile(Hypothesis{Start: 0, End: 16000, Words: words("x", " y")}, false)
	require.NoError(t, err)

	promoted, err := r.Reconcile(Hypothesis{Start: 0, End: 16000, Words: words("x", " y", " z")}, true)
	require.NoError(t, err)
	assert.Equal(t, "x y z", text(promoted))

	seg := r.Segment()
	assert.Equal(t, "x y z", text(seg.Prefix))
	assert.Empty(t, seg.Tail)
	assert.True(t, r.Finished())
}

// Idempotent finish: a second finish call is a no-op.
func TestReconcile_IdempotentFinish(t *testing.T) {
	r := NewReconciler(0, defaultOptions())

	hyp := Hypothesis{Start: 0, End: 16000, Words: words("x", " y", " z")}
	promoted, err := r.Reconcile(hyp, true)
	require.NoError(t, err)
	require.NotEmpty(t, promoted)

	before := r.Segment()
	promoted, err = r.Reconcile(hyp, true)
	require.NoError(t, err)
	assert.Empty(t, promoted)
	assert.Equal(t, before, r.Segment())
}

// Monotone commit: prefix only grows across an arbitrary sequence of
// hypotheses, never shrinks or mutates already-committed words.
func TestReconcile_MonotoneCommit(t *testing.T) {
	r := NewReconciler(0, defaultOptions())

	hyps := []Hypothesis{
		{Start: 0, End: 16000, Words: words("one", " two")},
		{Start: 0, End: 32000, Words: words("one", " two", " three", " four")},
		{Start: 0, End: 48000, Words: words("one", " two", " three", " four", " five", " six")},
	}

	var prevPrefixLen int
	var prevPrefix []Word
	for _, h := range hyps {
		_, err := r.Reconcile(h, false)
		require.NoError(t, err)

		seg := r.Segment()
		require.GreaterOrEqual(t, len(seg.Prefix), prevPrefixLen)
		for i := range prevPrefix {
			assert.Equal(t, prevPrefix[i], seg.Prefix[i])
		}
		prevPrefixLen = len(seg.Prefix)
		prevPrefix = seg.Prefix
	}
}

// No-overlap: committed_sample is non-decreasing across every tick.
func TestReconcile_NoOverlap(t *testing.T) {
	r := NewReconciler(0, defaultOptions())

	hyps := []Hypothesis{
		{Start: 0, End: 16000, Words: words("one", " two", " three")},
		{Start: 0, End: 32000, Words: words("one", " two", " three", " four")},
	}

	var prev SampleIndex
	for _, h := range hyps {
		_, err := r.Reconcile(h, false)
		require.NoError(t, err)
		cur := r.CommittedSample()
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

// LocalAgreement-2 soundness: every committed word appeared at the
// same position in both H_prev and H_new.
func TestReconcile_Soundness(t *testing.T) {
	r := NewReconciler(0, defaultOptions())

	prev := Hypothesis{Start: 0, End: 16000, Words: words("a", "b", "c", "d")}
	cur := Hypothesis{Start: 0, End: 32000, Words: words("a", "b", "c", "d", "e")}

	_, err := r.Reconcile(prev, false)
	require.NoError(t, err)
	promoted, err := r.Reconcile(cur, false)
	require.NoError(t, err)

	for i, w := range promoted {
		assert.Equal(t, prev.Words[i].Text, w.Text)
		assert.Equal(t, cur.Words[i].Text, w.Text)
	}
}
