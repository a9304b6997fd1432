package captions

import (
	"fmt"
	"os"
	"strings"
)

// ---------------------------------------------------------------------------
// ASS (Advanced SubStation Alpha) subtitle export
//
// Cues are grouped into short display lines (sentence-aware) and written
// bottom-centered with a dark outline so they stay readable over any
// footage. The file is burned into the scene clip by the compositor.
// ---------------------------------------------------------------------------

const (
	// Words shown per display line.
	maxWordsPerLine = 8

	assFontName = "Arial"

	// ASS colors are &HAABBGGRR (hex, BGR not RGB).
	assColorWhite     = "&H00FFFFFF"
	assColorBlack     = "&H00000000"
	assColorSemiBlack = "&H80000000"

	assOutline = 2
	assShadow  = 1

	// Distance from the bottom edge, scaled against a 1080-height canvas.
	assMarginV = 60
	assMarginH = 80

	// Lines linger briefly after their last word ends.
	lineTailSeconds = 0.05
)

// ExportASS writes a normalized caption track as an ASS subtitle file
// sized for the given play resolution. An empty track is an error: the
// caller should skip burn-in instead.
func ExportASS(cues []Cue, outputPath string, playResX, playResY int) error {
	lines := groupLines(Normalize(cues), maxWordsPerLine)
	if len(lines) == 0 {
		return fmt.Errorf("no caption cues to export")
	}

	fontSize := playResY * 4 / 100
	if fontSize < 24 {
		fontSize = 24
	}

	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", playResX)
	fmt.Fprintf(&sb, "PlayResY: %d\n", playResY)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb,
		"Style: Default,%s,%d,%s,%s,%s,%s,0,0,0,0,100,100,0,0,1,%d,%d,2,%d,%d,%d,1\n",
		assFontName, fontSize,
		assColorWhite,     // PrimaryColour
		assColorWhite,     // SecondaryColour
		assColorBlack,     // OutlineColour
		assColorSemiBlack, // BackColour
		assOutline, assShadow,
		assMarginH, assMarginH, assMarginV,
	)
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, line := range lines {
		start := line[0].Start
		end := line[0].End
		var words []string
		for _, cue := range line {
			if cue.Start < start {
				start = cue.Start
			}
			if cue.End > end {
				end = cue.End
			}
			words = append(words, sanitizeASSText(cue.Text))
		}
		fmt.Fprintf(&sb,
			"Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(start),
			formatASSTime(end+lineTailSeconds),
			strings.Join(words, " "),
		)
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write ASS subtitle file: %w", err)
	}
	return nil
}

// sanitizeASSText strips control characters and escapes the characters
// that ASS dialogue lines treat specially.
func sanitizeASSText(text string) string {
	var sb strings.Builder
	for _, r := range text {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '{':
			sb.WriteString("{{")
		case '}':
			sb.WriteString("}}")
		case '\r':
		case '\n':
			sb.WriteString(`\N`)
		default:
			if r < 0x20 {
				continue
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// formatASSTime converts seconds to the ASS timestamp format H:MM:SS.CC.
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	centis := int((seconds - float64(int(seconds))) * 100)
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centis)
}
