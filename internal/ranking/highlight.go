package ranking

import (
	"html"
	"sort"
	"strings"
	"unicode/utf8"
)

// Highlight markers.
const (
	MarkOpen  = "<mark>"
	MarkClose = "</mark>"
	Ellipsis  = "..."
)

// DefaultPreviewLength is the content preview cap in runes.
const DefaultPreviewLength = 200

// Highlighter builds highlighted titles and content previews.
type Highlighter struct {
	analyzers *Analyzers
	length    int
}

// NewHighlighter caps previews at length runes.
func NewHighlighter(a *Analyzers, length int) *Highlighter {
	if length <= 0 {
		length = DefaultPreviewLength
	}
	return &Highlighter{analyzers: a, length: length}
}

type span struct{ start, end int }

// matchSpans returns byte spans of tokens in text matched by terms.
func (h *Highlighter) matchSpans(language, text string, terms []string) []span {
	if len(terms) == 0 || text == "" {
		return nil
	}
	var spans []span
	for _, tok := range h.analyzers.Tokens(language, text) {
		if MatchesToken(terms, string(tok.Term)) {
			spans = append(spans, span{tok.Start, tok.End})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	merged := spans[:0]
	for _, s := range spans {
		if n := len(merged); n > 0 && s.start <= merged[n-1].end {
			merged[n-1].end = max(merged[n-1].end, s.end)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// render escapes text[from:to] and wraps the spans lying fully inside it.
func render(text string, from, to int, spans []span) string {
	var b strings.Builder
	pos := from
	for _, s := range spans {
		if s.start < from || s.end > to {
			continue
		}
		b.WriteString(html.EscapeString(text[pos:s.start]))
		b.WriteString(MarkOpen)
		b.WriteString(html.EscapeString(text[s.start:s.end]))
		b.WriteString(MarkClose)
		pos = s.end
	}
	b.WriteString(html.EscapeString(text[pos:to]))
	return b.String()
}

// Title wraps matched terms of title in mark tags.
func (h *Highlighter) Title(language, title string, terms []string) string {
	return render(title, 0, len(title), h.matchSpans(language, title, terms))
}

// Preview returns at most the configured number of runes of content,
// centered on the first match, or the document start without one. Matched
// terms are wrapped in mark tags; cut ends are marked with an ellipsis.
func (h *Highlighter) Preview(language, content string, terms []string) string {
	content = strings.TrimSpace(content)
	total := utf8.RuneCountInString(content)
	spans := h.matchSpans(language, content, terms)

	if total <= h.length {
		return render(content, 0, len(content), spans)
	}

	// runeStarts[i] is the byte offset of rune i; the final entry is len.
	runeStarts := make([]int, 0, total+1)
	for i := range content {
		runeStarts = append(runeStarts, i)
	}
	runeStarts = append(runeStarts, len(content))
	runeAt := func(byteOff int) int { return sort.SearchInts(runeStarts, byteOff) }

	startRune := 0
	if len(spans) > 0 {
		first := spans[0]
		matchLen := runeAt(first.end) - runeAt(first.start)
		startRune = runeAt(first.start) - (h.length-matchLen)/2
		startRune = max(0, min(startRune, total-h.length))
	}
	endRune := startRune + h.length

	from, to := runeStarts[startRune], runeStarts[endRune]
	out := render(content, from, to, spans)
	if startRune > 0 {
		out = Ellipsis + out
	}
	if endRune < total {
		out += Ellipsis
	}
	return out
}
