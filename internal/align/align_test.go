package align

import (
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlign_IdenticalInputs(t *testing.T) {
	spans, err := Align("The quick brown fox.", "The quick brown fox.")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, OpEqual, spans[0].Op)
	assert.Equal(t, "The quick brown fox.", spans[0].Original)
	assert.Equal(t, "The quick brown fox.", spans[0].Corrected)
}

func TestAlign_EmptyInputs(t *testing.T) {
	spans, err := Align("", "")
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestAlign_OneSideEmpty(t *testing.T) {
	spans, err := Align("", "hello")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, OpInsert, spans[0].Op)
	assert.Equal(t, "hello", spans[0].Corrected)

	spans, err = Align("hello", "")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, OpDelete, spans[0].Op)
	assert.Equal(t, "hello", spans[0].Original)
}

func TestAlign_WordSubstitutions(t *testing.T) {
	spans, err := Align("Teh qick fox.", "The quick fox.")
	require.NoError(t, err)

	expected := []Span{
		{Op: OpReplace, Original: "Teh", Corrected: "The"},
		{Op: OpEqual, Original: " ", Corrected: " "},
		{Op: OpReplace, Original: "qick", Corrected: "quick"},
		{Op: OpEqual, Original: " fox.", Corrected: " fox."},
	}
	assert.Equal(t, expected, spans)
}

func TestAlign_WhitespaceOnlyChange(t *testing.T) {
	spans, err := Align("Hello   World", "Hello World")
	require.NoError(t, err)

	expected := []Span{
		{Op: OpEqual, Original: "Hello", Corrected: "Hello"},
		{Op: OpReplace, Original: "   ", Corrected: " "},
		{Op: OpEqual, Original: "World", Corrected: "World"},
	}
	assert.Equal(t, expected, spans)
}

func TestAlign_Insertion(t *testing.T) {
	spans, err := Align("a b", "a x b")
	require.NoError(t, err)

	expected := []Span{
		{Op: OpEqual, Original: "a ", Corrected: "a "},
		{Op: OpInsert, Corrected: "x "},
		{Op: OpEqual, Original: "b", Corrected: "b"},
	}
	assert.Equal(t, expected, spans)
}

func TestAlign_RoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"Teh qick fox.", "The quick fox."},
		{"Hello   World", "Hello World"},
		{"", "inserted"},
		{"deleted", ""},
		{"one two three", "three two one"},
		{"line one\nline two", "line one\n\nline two"},
		{"rnodern civilizatlon", "modern civilization"},
		{"a b c d e", "a x c y e"},
		{"tabs\tand spaces", "tabs and  spaces"},
		{"unchanged text stays", "unchanged text stays"},
	}
	for _, p := range pairs {
		spans, err := Align(p[0], p[1])
		require.NoError(t, err)

		var o, c strings.Builder
		for _, sp := range spans {
			o.WriteString(sp.Original)
			c.WriteString(sp.Corrected)
		}
		assert.Equal(t, p[0], o.String(), "original side must concatenate back")
		assert.Equal(t, p[1], c.String(), "corrected side must concatenate back")
	}
}

func TestAlign_Deterministic(t *testing.T) {
	// "b b" -> "b" has two minimal alignments; the one keeping the first
	// token must win every time.
	first, err := Align("b b", "b")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Align("b b", "b")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	require.NotEmpty(t, first)
	assert.Equal(t, OpEqual, first[0].Op)
	assert.Equal(t, "b", first[0].Original)
}

func TestAlign_NoAdjacentMergeableSpans(t *testing.T) {
	spans, err := Align("alpha beta gamma delta", "alpha BETA GAMMA delta")
	require.NoError(t, err)
	for i := 1; i < len(spans); i++ {
		if spans[i].Op == spans[i-1].Op {
			assert.NotEqual(t, OpEqual, spans[i].Op, "adjacent equal spans must be merged")
		}
	}
}

func TestAlign_DivergentInputsBoundedMemory(t *testing.T) {
	// Two large texts with no word in common. The alignment must stay
	// linear in memory rather than allocating a table quadratic in the
	// token count.
	var ob, cb strings.Builder
	for i := 0; i < 4000; i++ {
		fmt.Fprintf(&ob, "left%04d ", i)
		fmt.Fprintf(&cb, "right%04d ", i)
	}
	original, corrected := ob.String(), cb.String()

	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	spans, err := Align(original, corrected)
	require.NoError(t, err)

	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	var ro, rc strings.Builder
	for _, sp := range spans {
		ro.WriteString(sp.Original)
		rc.WriteString(sp.Corrected)
	}
	assert.Equal(t, original, ro.String())
	assert.Equal(t, corrected, rc.String())

	allocated := after.TotalAlloc - before.TotalAlloc
	assert.Less(t, allocated, uint64(64<<20), "allocation must stay far below a full alignment table")
}

func TestAlign_DivergingReplaceSplitsAtSharedRuns(t *testing.T) {
	// Word tokens diverge in count, so the span falls back to
	// character-level alignment instead of one bulk replace.
	spans, err := Align("one\ttwo three", "onee  twoo")
	require.NoError(t, err)

	var o, c strings.Builder
	equals := 0
	for _, sp := range spans {
		o.WriteString(sp.Original)
		c.WriteString(sp.Corrected)
		if sp.Op == OpEqual {
			equals++
		}
	}
	assert.Equal(t, "one\ttwo three", o.String())
	assert.Equal(t, "onee  twoo", c.String())
	assert.GreaterOrEqual(t, equals, 2, "shared character runs must split the rewrite")
	assert.GreaterOrEqual(t, len(spans), 4)
}

func TestAlignWithLimit_RejectsOversizedInput(t *testing.T) {
	_, err := AlignWithLimit("abcdef", "ab", 3)
	require.ErrorIs(t, err, ErrTextTooLarge)

	_, err = AlignWithLimit("ab", "abcdef", 3)
	require.ErrorIs(t, err, ErrTextTooLarge)

	// Non-positive limit disables the check.
	spans, err := AlignWithLimit("abcdef", "ab", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, spans)
}

func TestTokenize_RoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", " ", "a b", "  leading", "trailing  ", "a\tb\nc"} {
		assert.Equal(t, s, strings.Join(tokenize(s), ""))
	}
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "equal", OpEqual.String())
	assert.Equal(t, "replace", OpReplace.String())
	assert.Equal(t, "insert", OpInsert.String())
	assert.Equal(t, "delete", OpDelete.String())
}
