package engine

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Sanitize prepares extracted text for the analysis model: strips markup that
// could break structured-output parsing, control and zero-width characters,
// and lines likely to be read as instructions, then truncates to maxLength
// runes. Pure and idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string, maxLength int) string {
	s := stripMarkup(text)
	s = stripControl(s)
	s = stripInjectionLines(s)
	s = collapseWhitespace(s)
	if maxLength > 0 {
		s = TruncateRunes(s, maxLength, "")
		// Re-trim: truncation may leave a trailing space.
		s = strings.TrimSpace(s)
	}
	return s
}

// stripMarkup removes HTML/XML tags via the tokenizer, keeping text nodes.
// A tokenizer pass (rather than a tag regex) survives attribute values
// containing angle brackets. Text nodes are emitted raw, without entity
// unescaping: decoding &lt;script&gt; here would mint live markup in the
// output and break the strip-twice-equals-strip-once invariant.
func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	tok := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	skip := 0 // depth inside script/style
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.StartTagToken:
			if name, _ := tok.TagName(); isSkippedTag(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := tok.TagName(); isSkippedTag(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(tok.Raw())
			}
		}
	}
}

func isSkippedTag(name []byte) bool {
	s := string(name)
	return s == "script" || s == "style" || s == "noscript"
}

// stripControl drops control characters (except \n and \t) and zero-width
// code points used to smuggle hidden instructions.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\t':
			return r
		case '\u200b', '\u200c', '\u200d', '\ufeff', '\u2060':
			return -1
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// injectionLineRe matches lines that read as directives to the model.
var injectionLineRe = regexp.MustCompile(`(?im)^\s*(ignore (all )?(previous|prior|above) instructions.*|system\s*:.*|assistant\s*:.*|` + "```" + `[a-z]*\s*)$`)

func stripInjectionLines(s string) string {
	return injectionLineRe.ReplaceAllString(s, "")
}

var (
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

func collapseWhitespace(s string) string {
	s = spaceRunRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = newlineRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
