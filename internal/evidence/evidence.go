package evidence

// Kind states how a match was obtained.
type Kind string

const (
	KindLine  Kind = "line"
	KindRegex Kind = "regex"
	KindDOM   Kind = "dom"
)

// MaxSnippetLen bounds the stored excerpt of matched source text.
const MaxSnippetLen = 220

// Span links an extracted value to the source text that justified it.
// A span is immutable once created; extractors construct them and never
// modify them afterwards.
type Span struct {
	Kind     Kind   `json:"kind"`
	Location string `json:"location"`
	Snippet  string `json:"snippet"`
}

// NewSpan builds a span with the snippet clamped to MaxSnippetLen.
// Clamping respects rune boundaries so multi-byte text is never cut
// mid-character.
func NewSpan(kind Kind, location, snippet string) Span {
	return Span{Kind: kind, Location: location, Snippet: Clamp(snippet, MaxSnippetLen)}
}

// Clamp truncates s to at most n runes.
func Clamp(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Map projects a span into a generic key-value form for storage.
func (s Span) Map() map[string]string {
	return map[string]string{
		"kind":     string(s.Kind),
		"location": s.Location,
		"snippet":  s.Snippet,
	}
}

// FromMap reconstructs a span from its generic key-value form. Unknown keys
// are ignored; a missing kind defaults to line, matching historic records.
func FromMap(m map[string]string) Span {
	kind := Kind(m["kind"])
	if kind == "" {
		kind = KindLine
	}
	return Span{Kind: kind, Location: m["location"], Snippet: m["snippet"]}
}

// Dedupe removes spans whose (location, snippet) pair repeats, preserving
// first-seen order.
func Dedupe(spans []Span) []Span {
	type key struct{ loc, snip string }
	seen := map[key]struct{}{}
	out := make([]Span, 0, len(spans))
	for _, sp := range spans {
		k := key{sp.Location, sp.Snippet}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, sp)
	}
	return out
}
