package captions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsMissingEnds(t *testing.T) {
	cues := Normalize([]Cue{
		{Text: "hello", Start: 0},
		{Text: "world", Start: 0.5},
	})

	require.Len(t, cues, 2)
	assert.InDelta(t, 0.3, cues[0].End, 1e-9)
	assert.InDelta(t, 0.8, cues[1].End, 1e-9)
	for _, cue := range cues {
		assert.LessOrEqual(t, cue.Start, cue.End)
	}
}

func TestNormalizeSortsAndTrims(t *testing.T) {
	cues := Normalize([]Cue{
		{Text: "  second ", Start: 1.0, End: 1.5},
		{Text: "", Start: 0.2, End: 0.4},
		{Text: "first", Start: 0.0, End: 0.6},
		{Text: "third", Start: 2.0, End: 1.0}, // inverted end
	})

	require.Len(t, cues, 3)
	assert.Equal(t, "first", cues[0].Text)
	assert.Equal(t, "second", cues[1].Text)
	assert.Equal(t, "third", cues[2].Text)
	assert.InDelta(t, 2.3, cues[2].End, 1e-9)

	for i := 1; i < len(cues); i++ {
		assert.GreaterOrEqual(t, cues[i].Start, cues[i-1].Start)
	}
}

func TestNormalizeClampsNegativeStart(t *testing.T) {
	cues := Normalize([]Cue{{Text: "x", Start: -1.2, End: 0.5}})
	require.Len(t, cues, 1)
	assert.Equal(t, 0.0, cues[0].Start)
	assert.Equal(t, 0.5, cues[0].End)
}

func TestNormalizeIdempotent(t *testing.T) {
	input := []Cue{
		{Text: " overlap ", Start: 0.4, End: 0},
		{Text: "overlap", Start: 0.4, End: 0},
		{Text: "tail", Start: 1.0, End: 2.0},
		{Text: "lead", Start: 0.0, End: 0.35},
	}

	once := Normalize(input)
	twice := Normalize(once)
	assert.Equal(t, once, twice)
}

func TestNormalizeDedupesAdjacent(t *testing.T) {
	cues := Normalize([]Cue{
		{Text: "same", Start: 1.0, End: 1.4},
		{Text: "same", Start: 1.0, End: 1.4},
		{Text: "same", Start: 1.6, End: 2.0},
	})
	require.Len(t, cues, 2)
}

func TestFromWordsWithoutEnds(t *testing.T) {
	cues := FromWords([]WordStamp{
		{Word: "Hello", Start: 0.1},
		{Word: "world.", Start: 0.6},
	})

	require.Len(t, cues, 2)
	for _, cue := range cues {
		assert.Less(t, cue.Start, cue.End)
	}
	assert.Equal(t, "Hello", cues[0].Text)
}

func TestFromWordsInheritsPreviousEnd(t *testing.T) {
	cues := FromWords([]WordStamp{
		{Word: "one", Start: 0.2, End: 0.7},
		{Word: "two"}, // no timing at all
	})

	require.Len(t, cues, 2)
	assert.InDelta(t, 0.7, cues[1].Start, 1e-9)
	assert.InDelta(t, 1.0, cues[1].End, 1e-9)
}

func TestFromTextSlicesEvenly(t *testing.T) {
	cues := FromText("one two three four", 4.0)

	require.Len(t, cues, 4)
	assert.Equal(t, 0.0, cues[0].Start)
	assert.InDelta(t, 1.0, cues[0].End, 1e-9)
	assert.InDelta(t, 3.0, cues[3].Start, 1e-9)
	assert.InDelta(t, 4.0, cues[3].End, 1e-9)
}

func TestFromTextEmpty(t *testing.T) {
	assert.Nil(t, FromText("   ", 3.0))
}

func TestFromTextDefaultsDuration(t *testing.T) {
	cues := FromText("a b c", 0)
	require.Len(t, cues, 3)
	assert.InDelta(t, 1.2, TrackEnd(cues), 1e-9)
}

func TestGroupLinesBreaksAtSentenceEnd(t *testing.T) {
	cues := []Cue{
		{Text: "Hello", Start: 0, End: 0.3},
		{Text: "world.", Start: 0.3, End: 0.6},
		{Text: "Second", Start: 0.6, End: 0.9},
		{Text: "scene", Start: 0.9, End: 1.2},
	}

	lines := groupLines(cues, 8)
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], 2)
	assert.Len(t, lines[1], 2)
}

func TestExportASS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.ass")

	cues := FromText("Hello world. Second scene here.", 5.0)
	require.NoError(t, ExportASS(cues, path, 1920, 1080))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "[Script Info]")
	assert.Contains(t, content, "PlayResX: 1920")
	assert.Contains(t, content, "Style: Default,Arial")
	assert.Contains(t, content, "Dialogue: 0,0:00:00.00,")
	assert.Contains(t, content, "Hello world.")
}

func TestExportASSEmptyTrack(t *testing.T) {
	err := ExportASS(nil, filepath.Join(t.TempDir(), "x.ass"), 1920, 1080)
	assert.Error(t, err)
}

func TestSanitizeASSText(t *testing.T) {
	assert.Equal(t, `a\\b`, sanitizeASSText(`a\b`))
	assert.Equal(t, "{{x}}", sanitizeASSText("{x}"))
	assert.Equal(t, `one\Ntwo`, sanitizeASSText("one\ntwo"))
}

func TestFormatASSTime(t *testing.T) {
	assert.Equal(t, "0:00:00.00", formatASSTime(-1))
	assert.Equal(t, "0:01:01.50", formatASSTime(61.5))
	assert.Equal(t, "1:00:00.25", formatASSTime(3600.25))
}

func TestNormalizeOutputSorted(t *testing.T) {
	inputs := [][]Cue{
		{{Text: "b", Start: 3, End: 4}, {Text: "a", Start: 1}, {Text: "c", Start: 2, End: 1}},
		{{Text: "w1", Start: 0.0}, {Text: "w2", Start: 0.0}, {Text: "w3", Start: 5}},
	}
	for _, input := range inputs {
		got := Normalize(input)
		for i := range got {
			assert.LessOrEqual(t, got[i].Start, got[i].End)
			if i > 0 {
				assert.GreaterOrEqual(t, got[i].Start, got[i-1].Start)
			}
		}
	}
}
