package normalize

import (
	"reflect"
	"testing"
)

func TestFromHTML_LinesFollowRenderedOrder(t *testing.T) {
	raw := []byte(`<html><head><title>Case Viewer</title></head><body>
		<div>General Division of the High Court</div>
		<p>Tan Li Wen <em>v</em> Ong Wei Ming</p>
		<span>29 September 2025</span>
	</body></html>`)
	doc := FromHTML("https://example.test/gd/s/2025_SGHC_1", raw)

	want := []string{
		"Case Viewer",
		"General Division of the High Court",
		"Tan Li Wen",
		"v",
		"Ong Wei Ming",
		"29 September 2025",
	}
	if !reflect.DeepEqual(doc.Lines, want) {
		t.Fatalf("lines mismatch:\n got %q\nwant %q", doc.Lines, want)
	}
	if doc.Text != "Case Viewer\nGeneral Division of the High Court\nTan Li Wen\nv\nOng Wei Ming\n29 September 2025" {
		t.Fatalf("text blob mismatch: %q", doc.Text)
	}
	if doc.URL != "https://example.test/gd/s/2025_SGHC_1" {
		t.Fatalf("url not carried through: %q", doc.URL)
	}
}

func TestFromHTML_SkipsNonRenderedMarkup(t *testing.T) {
	raw := []byte(`<html><body><script>var x = "[2020] SGCA 1"</script><style>.a{}</style><p>real text</p></body></html>`)
	doc := FromHTML("x", raw)
	if len(doc.Lines) != 1 || doc.Lines[0] != "real text" {
		t.Fatalf("expected only rendered text, got %q", doc.Lines)
	}
}

func TestFromHTML_CollapsesWhitespaceWithinFragment(t *testing.T) {
	raw := []byte("<p>  Lee\t Mei   Xuan  J  </p>")
	doc := FromHTML("x", raw)
	if len(doc.Lines) != 1 || doc.Lines[0] != "Lee Mei Xuan J" {
		t.Fatalf("whitespace not collapsed: %q", doc.Lines)
	}
}

func TestFromHTML_StableAddressing(t *testing.T) {
	raw := []byte(`<div><span>a</span><b>b</b><i>c</i></div>`)
	first := FromHTML("x", raw)
	second := FromHTML("x", raw)
	if !reflect.DeepEqual(first.Lines, second.Lines) {
		t.Fatalf("same input must produce identical lines: %q vs %q", first.Lines, second.Lines)
	}
}

func TestFromHTML_MalformedInputDegrades(t *testing.T) {
	doc := FromHTML("x", []byte("<div><p>unclosed <b>nested"))
	if len(doc.Lines) == 0 {
		t.Fatalf("tolerant parse should still yield text, got none")
	}
}

func TestFromHTML_Empty(t *testing.T) {
	doc := FromHTML("x", nil)
	if len(doc.Lines) != 0 || doc.Text != "" {
		t.Fatalf("empty input must yield empty document, got %#v", doc)
	}
}
