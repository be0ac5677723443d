package docnorm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type fakeBackend struct {
	conv *Conversion
	err  error
}

func (f *fakeBackend) Convert(_ context.Context, _ []byte, _ string, _ Options) (*Conversion, error) {
	return f.conv, f.err
}

type fakeTable struct {
	headers []string
	rows    [][]string
	page    int
	err     error
}

func (f *fakeTable) Grid() ([]string, [][]string, error) { return f.headers, f.rows, f.err }
func (f *fakeTable) Page() int                           { return f.page }

func delegatedParse(t *testing.T, conv *Conversion, opts Options) *Document {
	t.Helper()
	n := &delegatedNormalizer{backend: &fakeBackend{conv: conv}, logger: slog.Default()}
	doc, err := n.normalize(context.Background(), []byte("payload"), "test.pdf", opts)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return doc
}

func TestDelegated_LabelMapping(t *testing.T) {
	// WHAT: backend labels relabel into the block taxonomy in priority
	// order; title labels become level-1 headings and land in the outline.
	conv := &Conversion{
		PageCount: 2,
		Title:     "Doc Title",
		Elements: []Element{
			{Label: "title", Text: "Doc Title", PageNumber: 1},
			{Label: "section_header h3", Text: "Section", PageNumber: 1},
			{Label: "list_item", Text: "an item", PageNumber: 1},
			{Label: "code", Text: "x = 1", PageNumber: 2},
			{Label: "caption", Text: "Figure 1", PageNumber: 2},
			{Label: "page_footer", Text: "p. 2", PageNumber: 2},
			{Label: "page_header", Text: "Running head", PageNumber: 2},
			{Label: "text", Text: "Plain paragraph", PageNumber: 2},
		},
	}
	doc := delegatedParse(t, conv, DefaultOptions())

	wantTypes := []BlockType{
		BlockHeading, BlockHeading, BlockList, BlockCode,
		BlockCaption, BlockFooter, BlockHeader, BlockParagraph,
	}
	if len(doc.Blocks) != len(wantTypes) {
		t.Fatalf("blocks: got %d, want %d", len(doc.Blocks), len(wantTypes))
	}
	for i, want := range wantTypes {
		if doc.Blocks[i].Type != want {
			t.Fatalf("block %d type: got %s, want %s", i, doc.Blocks[i].Type, want)
		}
		if doc.Blocks[i].Position != i {
			t.Fatalf("block %d position: got %d", i, doc.Blocks[i].Position)
		}
	}

	if doc.Blocks[0].HeadingLevel != 1 {
		t.Fatalf("title level: got %d, want 1", doc.Blocks[0].HeadingLevel)
	}
	if doc.Blocks[1].HeadingLevel != 3 {
		t.Fatalf("h3 label level: got %d, want 3", doc.Blocks[1].HeadingLevel)
	}
	if len(doc.Outline) != 2 {
		t.Fatalf("outline: got %d, want 2", len(doc.Outline))
	}
	if doc.Metadata.Title != "Doc Title" || doc.Metadata.PageCount != 2 {
		t.Fatalf("metadata: %+v", doc.Metadata)
	}
}

func TestDelegated_HeadingLevelDefault(t *testing.T) {
	// WHAT: a heading label with no hN marker defaults to level 2.
	conv := &Conversion{Elements: []Element{{Label: "heading", Text: "H", PageNumber: 1}}}
	doc := delegatedParse(t, conv, DefaultOptions())
	if doc.Blocks[0].HeadingLevel != 2 {
		t.Fatalf("level: got %d, want 2", doc.Blocks[0].HeadingLevel)
	}
}

func TestDelegated_EmptyElementsSkipped(t *testing.T) {
	// WHAT: whitespace-only elements are dropped without consuming a
	// position; missing page numbers default to 1.
	conv := &Conversion{Elements: []Element{
		{Label: "text", Text: "   ", PageNumber: 1},
		{Label: "text", Text: "real", PageNumber: 0},
	}}
	doc := delegatedParse(t, conv, DefaultOptions())
	if len(doc.Blocks) != 1 {
		t.Fatalf("blocks: got %d, want 1", len(doc.Blocks))
	}
	if doc.Blocks[0].Position != 0 || doc.Blocks[0].PageNumber != 1 {
		t.Fatalf("block: %+v", doc.Blocks[0])
	}
}

func TestDelegated_Tables(t *testing.T) {
	// WHAT: a tabular grid becomes a table block with a synthesized header
	// row at row 0 and data rows shifted by one.
	conv := &Conversion{
		Elements: []Element{{Label: "text", Text: "intro", PageNumber: 1}},
		Tables: []Tabular{&fakeTable{
			headers: []string{"A", "B"},
			rows:    [][]string{{"1", "2"}},
			page:    1,
		}},
	}
	doc := delegatedParse(t, conv, DefaultOptions())

	if len(doc.Blocks) != 2 {
		t.Fatalf("blocks: got %d, want 2", len(doc.Blocks))
	}
	b := doc.Blocks[1]
	if b.Type != BlockTable || b.Table == nil {
		t.Fatalf("block: %+v", b)
	}
	if b.Table.Rows != 2 || b.Table.Cols != 2 || !b.Table.HasHeader {
		t.Fatalf("structure: %+v", b.Table)
	}
	want := "| A | B |\n| --- | --- |\n| 1 | 2 |"
	if b.Table.Markdown != want {
		t.Fatalf("markdown:\ngot  %q\nwant %q", b.Table.Markdown, want)
	}
	if !b.Table.Cells[0].IsHeader || b.Table.Cells[2].IsHeader {
		t.Fatalf("cells: %+v", b.Table.Cells)
	}
}

func TestDelegated_TableFailureIsolated(t *testing.T) {
	// WHAT: one failing table yields one non-fatal warning; surrounding
	// blocks and the other table survive, and the document still succeeds.
	conv := &Conversion{
		Elements: []Element{{Label: "text", Text: "body", PageNumber: 1}},
		Tables: []Tabular{
			&fakeTable{err: errors.New("merged cells")},
			&fakeTable{headers: []string{"X"}, rows: [][]string{{"9"}}, page: 2},
		},
	}
	doc := delegatedParse(t, conv, DefaultOptions())

	if len(doc.Warnings) != 1 {
		t.Fatalf("warnings: got %d, want 1", len(doc.Warnings))
	}
	w := doc.Warnings[0]
	if w.Code != WarnTableExtractionFailed || w.Severity != SeverityWarning {
		t.Fatalf("warning: %+v", w)
	}
	if !doc.Success {
		t.Fatal("warning-severity failure should not flip success")
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("blocks: got %d, want 2", len(doc.Blocks))
	}
	if doc.Blocks[1].PageNumber != 2 {
		t.Fatalf("surviving table page: got %d", doc.Blocks[1].PageNumber)
	}
}

func TestDelegated_TablesDisabled(t *testing.T) {
	conv := &Conversion{
		Tables: []Tabular{&fakeTable{headers: []string{"A"}, rows: [][]string{{"1"}}}},
	}
	doc := delegatedParse(t, conv, Options{ExtractTables: false, Language: "de"})
	if len(doc.Blocks) != 0 {
		t.Fatalf("blocks: got %d, want 0", len(doc.Blocks))
	}
}

func TestDelegated_FullTextPrefersMarkdown(t *testing.T) {
	// WHAT: the backend's markdown export wins over joined block contents.
	conv := &Conversion{
		Elements: []Element{{Label: "text", Text: "joined", PageNumber: 1}},
		Markdown: "# Exported",
	}
	doc := delegatedParse(t, conv, DefaultOptions())
	if doc.FullText != "# Exported" {
		t.Fatalf("fullText: got %q", doc.FullText)
	}

	conv.Markdown = ""
	doc = delegatedParse(t, conv, DefaultOptions())
	if doc.FullText != "joined" {
		t.Fatalf("fallback fullText: got %q", doc.FullText)
	}
}

func TestDelegated_Metadata(t *testing.T) {
	conv := &Conversion{Elements: []Element{{Label: "text", Text: "x", PageNumber: 1}}}
	doc := delegatedParse(t, conv, DefaultOptions())
	if doc.Metadata.Parser != "docling" {
		t.Fatalf("parser: got %q", doc.Metadata.Parser)
	}
	if doc.Metadata.ParserVersion != "1.0.0" {
		t.Fatalf("version default: got %q", doc.Metadata.ParserVersion)
	}
	if doc.Metadata.PageCount != 1 {
		t.Fatalf("pageCount default: got %d", doc.Metadata.PageCount)
	}
	if doc.Metadata.Format != FormatPDF {
		t.Fatalf("format: got %q", doc.Metadata.Format)
	}
}

func TestDelegated_BackendError(t *testing.T) {
	// WHAT: a backend failure propagates as an error for the service to
	// wrap; no partial document is returned.
	n := &delegatedNormalizer{
		backend: &fakeBackend{err: errors.New("corrupt file")},
		logger:  slog.Default(),
	}
	_, err := n.normalize(context.Background(), []byte("x"), "bad.pdf", DefaultOptions())
	if err == nil || !strings.Contains(err.Error(), "corrupt file") {
		t.Fatalf("error: %v", err)
	}
}
