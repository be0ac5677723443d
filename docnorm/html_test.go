package docnorm

import (
	"context"
	"strings"
	"testing"
)

func htmlParse(t *testing.T, content string) *Document {
	t.Helper()
	n := newHTMLNormalizer()
	doc, err := n.normalize(context.Background(), []byte(content), "test.html", DefaultOptions())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return doc
}

func TestHTML_HeadingsAndParagraphs(t *testing.T) {
	doc := htmlParse(t, `<html><head><title>Page Title</title></head><body>
<h1>Main</h1><p>Intro text.</p><h2>Sub</h2><p>More.</p></body></html>`)

	if doc.Metadata.Title != "Page Title" {
		t.Fatalf("title: got %q", doc.Metadata.Title)
	}
	if len(doc.Blocks) != 4 {
		t.Fatalf("blocks: got %d, want 4", len(doc.Blocks))
	}
	if doc.Blocks[0].Type != BlockHeading || doc.Blocks[0].HeadingLevel != 1 {
		t.Fatalf("block 0: %+v", doc.Blocks[0])
	}
	if doc.Blocks[2].HeadingLevel != 2 {
		t.Fatalf("block 2 level: got %d", doc.Blocks[2].HeadingLevel)
	}
	if len(doc.Outline) != 2 {
		t.Fatalf("outline: got %d", len(doc.Outline))
	}
	if doc.Outline[1].Position != 2 {
		t.Fatalf("outline 1 position: got %d", doc.Outline[1].Position)
	}
}

func TestHTML_TableMarkdown(t *testing.T) {
	// WHAT: a th-headed table produces headers, per-cell structure, and the
	// exact pipe-delimited rendering with a separator row.
	doc := htmlParse(t, `<table>
<tr><th>A</th><th>B</th></tr>
<tr><td>1</td><td>2</td></tr>
</table>`)

	if len(doc.Blocks) != 1 {
		t.Fatalf("blocks: got %d, want 1", len(doc.Blocks))
	}
	b := doc.Blocks[0]
	if b.Type != BlockTable || b.Table == nil {
		t.Fatalf("block: %+v", b)
	}
	if len(b.Table.Headers) != 2 || b.Table.Headers[0] != "A" || b.Table.Headers[1] != "B" {
		t.Fatalf("headers: %v", b.Table.Headers)
	}
	want := "| A | B |\n| --- | --- |\n| 1 | 2 |"
	if b.Table.Markdown != want {
		t.Fatalf("markdown:\ngot  %q\nwant %q", b.Table.Markdown, want)
	}
	if b.Content != want {
		t.Fatalf("content should equal table markdown, got %q", b.Content)
	}
	if b.Table.Rows != 2 || b.Table.Cols != 2 {
		t.Fatalf("dimensions: %dx%d", b.Table.Rows, b.Table.Cols)
	}
	if !b.Table.HasHeader {
		t.Fatal("hasHeader should be true")
	}
	// Cell coordinates and header flags.
	if b.Table.Cells[0].Row != 0 || !b.Table.Cells[0].IsHeader {
		t.Fatalf("cell 0: %+v", b.Table.Cells[0])
	}
	if b.Table.Cells[2].Row != 1 || b.Table.Cells[2].IsHeader {
		t.Fatalf("cell 2: %+v", b.Table.Cells[2])
	}
}

func TestHTML_TableFirstRowHeader(t *testing.T) {
	// WHAT: without th cells the first row is still treated as the header.
	doc := htmlParse(t, `<table>
<tr><td>X</td><td>Y</td></tr>
<tr><td>3</td><td>4</td></tr>
</table>`)

	b := doc.Blocks[0]
	if len(b.Table.Headers) != 2 || b.Table.Headers[0] != "X" {
		t.Fatalf("headers: %v", b.Table.Headers)
	}
	if !strings.Contains(b.Table.Markdown, "| --- | --- |") {
		t.Fatalf("markdown: %q", b.Table.Markdown)
	}
}

func TestHTML_Lists(t *testing.T) {
	// WHAT: only direct li children belong to a list block; a nested list is
	// matched again on its own.
	doc := htmlParse(t, `<ul><li>one</li><li>two</li></ul><ol><li>first</li></ol>`)

	if len(doc.Blocks) != 2 {
		t.Fatalf("blocks: got %d, want 2", len(doc.Blocks))
	}
	ul := doc.Blocks[0]
	if ul.ListType != "unordered" || len(ul.ListItems) != 2 {
		t.Fatalf("ul: %+v", ul)
	}
	if doc.Blocks[1].ListType != "ordered" {
		t.Fatalf("ol: %+v", doc.Blocks[1])
	}
}

func TestHTML_NestedCodeDuplicated(t *testing.T) {
	// WHAT: <code> inside <pre> is matched independently, so the same text
	// appears as two code blocks. Descent does not stop at a matched element.
	doc := htmlParse(t, `<pre><code class="python">print(1)</code></pre>`)

	if len(doc.Blocks) != 2 {
		t.Fatalf("blocks: got %d, want 2", len(doc.Blocks))
	}
	for _, b := range doc.Blocks {
		if b.Type != BlockCode {
			t.Fatalf("type: %s", b.Type)
		}
	}
	if doc.Blocks[1].CodeLanguage != "python" {
		t.Fatalf("inner code language: got %q", doc.Blocks[1].CodeLanguage)
	}
}

func TestHTML_EmptyElementsSkipped(t *testing.T) {
	// WHAT: elements with no text neither emit blocks nor consume positions.
	doc := htmlParse(t, `<p></p><h1>Real</h1><p>  </p><p>text</p>`)
	if len(doc.Blocks) != 2 {
		t.Fatalf("blocks: got %d, want 2", len(doc.Blocks))
	}
	if doc.Blocks[0].Position != 0 || doc.Blocks[1].Position != 1 {
		t.Fatalf("positions: %d, %d", doc.Blocks[0].Position, doc.Blocks[1].Position)
	}
}

func TestHTML_ParserMissing(t *testing.T) {
	// WHAT: without a parse capability the normalizer degrades: one
	// error-severity warning, raw input as fullText, success=false.
	n := &htmlNormalizer{}
	raw := "<p>hello</p>"
	doc, err := n.normalize(context.Background(), []byte(raw), "x.html", DefaultOptions())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if doc.Success {
		t.Fatal("degraded parse should not succeed")
	}
	if len(doc.Warnings) != 1 {
		t.Fatalf("warnings: got %d, want 1", len(doc.Warnings))
	}
	w := doc.Warnings[0]
	if w.Code != WarnHTMLParserMissing || w.Severity != SeverityError {
		t.Fatalf("warning: %+v", w)
	}
	if doc.FullText != raw {
		t.Fatalf("fullText should be raw input, got %q", doc.FullText)
	}
	if len(doc.Blocks) != 0 {
		t.Fatalf("blocks: got %d, want 0", len(doc.Blocks))
	}
}

func TestHTML_FullText(t *testing.T) {
	// WHAT: fullText joins text nodes in document order.
	doc := htmlParse(t, `<html><body><h1>Title</h1><p>Body</p></body></html>`)
	if !strings.Contains(doc.FullText, "Title") || !strings.Contains(doc.FullText, "Body") {
		t.Fatalf("fullText: %q", doc.FullText)
	}
}

func TestHTML_Fragment(t *testing.T) {
	// WHAT: a bare fragment without html/body wrappers still parses
	// (x/net/html synthesizes the missing structure).
	doc := htmlParse(t, `<h2>Only</h2>`)
	if len(doc.Blocks) != 1 || doc.Blocks[0].HeadingLevel != 2 {
		t.Fatalf("blocks: %+v", doc.Blocks)
	}
	if !doc.Success {
		t.Fatal("fragment should succeed")
	}
}
