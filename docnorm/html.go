package docnorm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlNormalizer converts HTML to canonical blocks by walking the DOM in
// document order. The parsing capability is injectable: when parse is nil
// or fails, the whole raw input becomes fullText, a single error-severity
// warning is emitted, and the document is marked unsuccessful.
type htmlNormalizer struct {
	parse func(r io.Reader) (*html.Node, error)
}

func newHTMLNormalizer() *htmlNormalizer {
	return &htmlNormalizer{parse: html.Parse}
}

func (n *htmlNormalizer) normalize(_ context.Context, data []byte, filename string, _ Options) (*Document, error) {
	start := time.Now()
	content := decodeText(data)

	var (
		blocks   = []ContentBlock{}
		outline  = []OutlineItem{}
		warnings = []Warning{}
		fullText string
		title    string
	)

	root, err := n.parseHTML(data)
	if err != nil {
		warnings = append(warnings, Warning{
			Code:     warnCodeForParseErr(n.parse == nil),
			Message:  err.Error(),
			Severity: SeverityError,
		})
		fullText = content
	} else {
		title = findTitle(root)
		w := &htmlWalker{out: blocks, outline: outline}
		w.walk(bodyOrRoot(root))
		blocks, outline = w.out, w.outline
		fullText = strings.TrimSpace(strings.Join(collectTextNodes(root), "\n"))
	}

	return &Document{
		DocumentID: documentID(data, filename, time.Now()),
		Metadata: Metadata{
			Filename:          filename,
			Format:            FormatHTML,
			FileSize:          int64(len(data)),
			PageCount:         1,
			Title:             title,
			ParsingDurationMs: durationMs(start),
			Parser:            "native-html",
		},
		Blocks:   blocks,
		FullText: fullText,
		Outline:  outline,
		Warnings: warnings,
		Success:  !hasErrorWarning(warnings),
	}, nil
}

func (n *htmlNormalizer) parseHTML(data []byte) (*html.Node, error) {
	if n.parse == nil {
		return nil, fmt.Errorf("no HTML parsing capability configured")
	}
	root, err := n.parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return root, nil
}

func warnCodeForParseErr(missing bool) string {
	if missing {
		return WarnHTMLParserMissing
	}
	return WarnHTMLParseFailed
}

// findTitle returns the trimmed text of the first <title> element.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return strings.TrimSpace(collectText(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// bodyOrRoot returns the first <body> element, or the whole tree when the
// document has none.
func bodyOrRoot(root *html.Node) *html.Node {
	var body *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(root)
	if body != nil {
		return body
	}
	return root
}

// htmlWalker accumulates blocks while visiting matched elements in document
// order. Matching is non-nested-aware on purpose: an element inside an
// already-matched element is still matched independently (a <code> inside a
// <pre> yields a second code block).
type htmlWalker struct {
	out     []ContentBlock
	outline []OutlineItem
	next    int
}

func (w *htmlWalker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			w.heading(n)
		case atom.P:
			w.paragraph(n)
		case atom.Pre, atom.Code:
			w.code(n)
		case atom.Ul, atom.Ol:
			w.list(n)
		case atom.Table:
			w.table(n)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *htmlWalker) heading(n *html.Node) {
	text := strings.TrimSpace(collectText(n))
	if text == "" {
		return
	}
	level := int(n.Data[1] - '0')
	w.out = append(w.out, ContentBlock{
		Type:         BlockHeading,
		Content:      text,
		Position:     w.next,
		HeadingLevel: level,
		PageNumber:   1,
	})
	w.outline = append(w.outline, OutlineItem{
		Title:      text,
		Level:      level,
		Position:   w.next,
		PageNumber: 1,
	})
	w.next++
}

func (w *htmlWalker) paragraph(n *html.Node) {
	text := strings.TrimSpace(collectText(n))
	if text == "" {
		return
	}
	w.out = append(w.out, ContentBlock{
		Type:       BlockParagraph,
		Content:    text,
		Position:   w.next,
		PageNumber: 1,
	})
	w.next++
}

func (w *htmlWalker) code(n *html.Node) {
	text := strings.TrimSpace(collectText(n))
	if text == "" {
		return
	}
	w.out = append(w.out, ContentBlock{
		Type:         BlockCode,
		Content:      text,
		Position:     w.next,
		CodeLanguage: firstClassToken(n),
		PageNumber:   1,
	})
	w.next++
}

func (w *htmlWalker) list(n *html.Node) {
	var items []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Li {
			items = append(items, strings.TrimSpace(collectText(c)))
		}
	}
	if len(items) == 0 {
		return
	}
	listType := "unordered"
	if n.DataAtom == atom.Ol {
		listType = "ordered"
	}
	w.out = append(w.out, ContentBlock{
		Type:       BlockList,
		Content:    strings.Join(items, "\n"),
		Position:   w.next,
		ListType:   listType,
		ListItems:  items,
		PageNumber: 1,
	})
	w.next++
}

func (w *htmlWalker) table(n *html.Node) {
	rows := collectElements(n, atom.Tr)
	if len(rows) == 0 {
		return
	}

	var headers []string
	var cells []TableCell
	for rowIdx, row := range rows {
		for colIdx, cell := range collectCells(row) {
			text := strings.TrimSpace(collectText(cell))
			isHeader := cell.DataAtom == atom.Th || rowIdx == 0
			if isHeader && rowIdx == 0 {
				headers = append(headers, text)
			}
			cells = append(cells, TableCell{
				Content:  text,
				Row:      rowIdx,
				Col:      colIdx,
				RowSpan:  1,
				ColSpan:  1,
				IsHeader: isHeader,
			})
		}
	}

	markdown := renderTableMarkdown(headers, cells, len(rows))
	cols := len(headers)
	if cols == 0 {
		cols = len(cells) / len(rows)
	}

	w.out = append(w.out, ContentBlock{
		Type:       BlockTable,
		Content:    markdown,
		Position:   w.next,
		PageNumber: 1,
		Table: &TableStructure{
			Rows:      len(rows),
			Cols:      cols,
			Headers:   headers,
			Cells:     cells,
			Markdown:  markdown,
			HasHeader: len(headers) > 0,
		},
	})
	w.next++
}

// renderTableMarkdown regenerates a pipe-delimited rendering: header row
// plus "---" separator when headers exist, then one row per data row. Data
// rows start at row 1 when headers exist, else at row 0 with no separator.
func renderTableMarkdown(headers []string, cells []TableCell, rowCount int) string {
	var lines []string
	firstData := 0
	if len(headers) > 0 {
		lines = append(lines, "| "+strings.Join(headers, " | ")+" |")
		seps := make([]string, len(headers))
		for i := range seps {
			seps[i] = "---"
		}
		lines = append(lines, "| "+strings.Join(seps, " | ")+" |")
		firstData = 1
	}
	for rowIdx := firstData; rowIdx < rowCount; rowIdx++ {
		var rowCells []string
		for _, c := range cells {
			if c.Row == rowIdx {
				rowCells = append(rowCells, c.Content)
			}
		}
		if len(rowCells) > 0 {
			lines = append(lines, "| "+strings.Join(rowCells, " | ")+" |")
		}
	}
	return strings.Join(lines, "\n")
}

// collectElements returns all descendant elements with the given atom, in
// document order, nested occurrences included.
func collectElements(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == a {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// collectCells returns all descendant th/td elements of a row.
func collectCells(row *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Th || c.DataAtom == atom.Td) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(row)
	return out
}

// collectText concatenates every text node in a subtree, no separator.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// collectTextNodes returns the raw data of every text node in the tree, in
// document order. Joined with newlines this is the document's full text.
func collectTextNodes(root *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out = append(out, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// firstClassToken returns the first whitespace-separated token of the
// element's class attribute, used as a code language hint.
func firstClassToken(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			fields := strings.Fields(a.Val)
			if len(fields) > 0 {
				return fields[0]
			}
		}
	}
	return ""
}
