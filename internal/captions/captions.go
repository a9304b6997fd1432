// Package captions normalizes caption timing tracks and exports them as
// ASS subtitle files for burn-in. The same normalization runs for render
// and for the preview payload echoed to clients, so the two never drift.
package captions

import (
	"math"
	"sort"
	"strings"
)

// MinDisplaySeconds is the fallback display duration for a cue whose end
// time is missing or not after its start.
const MinDisplaySeconds = 0.3

// Cue is one timed text segment. Start and End are seconds relative to
// the owning scene's audio, never to the assembled timeline.
type Cue struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// WordStamp is a word-level timestamp as returned by speech-to-text.
// End may be zero when the provider only reports onsets.
type WordStamp struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func roundMillis(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Normalize produces the canonical form of a caption track:
// trimmed non-empty text, non-negative starts, end >= start (missing or
// inverted ends filled with MinDisplaySeconds), cues sorted by start,
// adjacent exact duplicates collapsed. Normalizing an already-normalized
// track returns an equal track.
func Normalize(cues []Cue) []Cue {
	out := make([]Cue, 0, len(cues))
	for _, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}
		start := roundMillis(cue.Start)
		if start < 0 {
			start = 0
		}
		end := roundMillis(cue.End)
		if end <= start {
			end = roundMillis(start + MinDisplaySeconds)
		}
		out = append(out, Cue{Text: text, Start: start, End: end})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	deduped := make([]Cue, 0, len(out))
	for _, cue := range out {
		if n := len(deduped); n > 0 && cue == deduped[n-1] {
			continue
		}
		deduped = append(deduped, cue)
	}
	return deduped
}

// FromWords converts word-level timestamps into a normalized track.
// Words with a missing start inherit the previous word's end.
func FromWords(words []WordStamp) []Cue {
	cues := make([]Cue, 0, len(words))
	var prevEnd float64
	for _, w := range words {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		start := w.Start
		if start == 0 && prevEnd > 0 {
			start = prevEnd
		}
		end := w.End
		if end <= start {
			end = start + MinDisplaySeconds
		}
		prevEnd = end
		cues = append(cues, Cue{Text: text, Start: start, End: end})
	}
	return Normalize(cues)
}

// FromText slices narration text into evenly spaced word cues spanning
// the given duration. Used when no word timestamps are available.
func FromText(text string, duration float64) []Cue {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	total := duration
	if total <= 0 {
		total = float64(len(tokens)) * 0.4
	}
	slice := total / float64(len(tokens))
	cues := make([]Cue, 0, len(tokens))
	for i, tok := range tokens {
		start := roundMillis(float64(i) * slice)
		cues = append(cues, Cue{
			Text:  tok,
			Start: start,
			End:   roundMillis(start + slice),
		})
	}
	return Normalize(cues)
}

// TrackEnd returns the latest cue end in a track, or 0 for an empty one.
func TrackEnd(cues []Cue) float64 {
	var end float64
	for _, cue := range cues {
		if cue.End > end {
			end = cue.End
		}
	}
	return end
}

// groupLines splits a cue sequence into display lines of at most maxWords
// words, breaking early at sentence ends and, once a line is half full,
// at clause breaks.
func groupLines(cues []Cue, maxWords int) [][]Cue {
	if maxWords < 1 {
		maxWords = 1
	}
	var lines [][]Cue
	var current []Cue
	for _, cue := range cues {
		current = append(current, cue)
		trimmed := strings.TrimSpace(cue.Text)
		sentenceEnd := strings.HasSuffix(trimmed, ".") ||
			strings.HasSuffix(trimmed, "!") ||
			strings.HasSuffix(trimmed, "?")
		clauseBreak := strings.HasSuffix(trimmed, ";") || strings.HasSuffix(trimmed, ":")
		if len(current) >= maxWords || sentenceEnd || (clauseBreak && len(current) >= maxWords/2) {
			lines = append(lines, current)
			current = nil
		}
	}
	if len(current) > 0 {
		lines = append(lines, current)
	}
	return lines
}
