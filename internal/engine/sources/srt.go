package sources

import (
	"regexp"
	"strings"
)

// Subtitle (SRT) document parsing. Blocks are separated by blank lines; each
// block holds an index line, a "start --> end" timecode line, and one or more
// text lines. Parsing is lenient: malformed blocks are dropped, not fatal.

// Segment is one parsed subtitle block, in playback order.
type Segment struct {
	Index        string
	Start        string
	End          string
	Text         string
	Instrumental bool
}

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

// ParseSRT parses a subtitle document into an ordered segment sequence.
// Blocks with fewer than 3 lines, or whose timecode line lacks the "-->"
// separator, are skipped.
func ParseSRT(doc string) []Segment {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	blocks := blankLineRe.Split(strings.TrimSpace(doc), -1)

	segments := make([]Segment, 0, len(blocks))
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		timecode := lines[1]
		sep := strings.Index(timecode, "-->")
		if sep < 0 {
			continue
		}

		text := strings.TrimSpace(strings.Join(lines[2:], " "))
		segments = append(segments, Segment{
			Index:        strings.TrimSpace(lines[0]),
			Start:        strings.TrimSpace(timecode[:sep]),
			End:          strings.TrimSpace(timecode[sep+len("-->"):]),
			Text:         text,
			Instrumental: isInstrumental(text),
		})
	}
	return segments
}

// isInstrumental marks music-only segments, which carry no analyzable speech.
func isInstrumental(text string) bool {
	return strings.ContainsAny(text, "♪♫")
}

// FlattenSegments joins non-instrumental segment text into flat transcript
// text. Instrumental segments stay in the parsed sequence for callers that
// want the full breakdown, but never reach the flattened transcript.
func FlattenSegments(segments []Segment) string {
	var sb strings.Builder
	for _, seg := range segments {
		if seg.Instrumental || seg.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(seg.Text)
	}
	return sb.String()
}
