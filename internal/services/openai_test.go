package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFallbackExactCount(t *testing.T) {
	copy := "First sentence. Second sentence! Third sentence? Fourth sentence."

	for _, count := range []int{1, 2, 3, 4, 6} {
		beats := splitFallback(copy, count)
		require.Len(t, beats, count, "count %d", count)
		for i, b := range beats {
			assert.NotEmpty(t, b.Text, "scene %d", i)
			assert.NotEmpty(t, b.ImagePrompt, "scene %d", i)
			assert.NotEmpty(t, b.MotionPrompt, "scene %d", i)
		}
	}
}

func TestSplitFallbackPreservesOrder(t *testing.T) {
	beats := splitFallback("Alpha one. Beta two. Gamma three.", 3)
	require.Len(t, beats, 3)
	assert.Contains(t, beats[0].Text, "Alpha")
	assert.Contains(t, beats[1].Text, "Beta")
	assert.Contains(t, beats[2].Text, "Gamma")
}

func TestSplitFallbackNoPunctuation(t *testing.T) {
	beats := splitFallback("just a fragment without terminal punctuation", 2)
	require.Len(t, beats, 2)
	for _, b := range beats {
		assert.NotEmpty(t, b.Text)
	}
}

func TestNormalizePlanTruncatesExcess(t *testing.T) {
	beats := []SceneBeat{
		{Text: "one", ImagePrompt: "a", MotionPrompt: "m"},
		{Text: "two", ImagePrompt: "b", MotionPrompt: "m"},
		{Text: "three", ImagePrompt: "c", MotionPrompt: "m"},
	}
	out, err := normalizePlan(beats, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "one", out[0].Text)
}

func TestNormalizePlanRejectsShortPlan(t *testing.T) {
	beats := []SceneBeat{{Text: "only one", ImagePrompt: "a", MotionPrompt: "m"}}
	_, err := normalizePlan(beats, 3)
	require.Error(t, err)
}

func TestNormalizePlanFillsGaps(t *testing.T) {
	beats := []SceneBeat{{Text: "the copy", ImagePrompt: "", MotionPrompt: "  "}}
	out, err := normalizePlan(beats, 1)
	require.NoError(t, err)
	assert.Equal(t, "the copy", out[0].ImagePrompt)
	assert.NotEmpty(t, out[0].MotionPrompt)
}

func TestNormalizePlanRejectsEmptyText(t *testing.T) {
	beats := []SceneBeat{{Text: "  ", ImagePrompt: "a", MotionPrompt: "m"}}
	_, err := normalizePlan(beats, 1)
	require.Error(t, err)
}

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("One. Two! Three? Trailing fragment")
	require.Len(t, sentences, 4)
	assert.True(t, strings.HasSuffix(sentences[0], "."))
	assert.Equal(t, "Trailing fragment", sentences[3])
}
