package docnorm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Converter is the contract any binary-format conversion backend must
// honor. It receives raw bytes plus the filename (for the extension) and
// returns a provisional element stream with free-text labels, tabular
// objects, and an optional markdown export. The handle is constructed once
// at startup and must be safe for concurrent use.
type Converter interface {
	Convert(ctx context.Context, data []byte, filename string, opts Options) (*Conversion, error)
}

// Conversion is the raw backend output before relabeling.
type Conversion struct {
	PageCount int
	Title     string
	Elements  []Element
	Tables    []Tabular
	// Markdown is the backend's own full-document markdown export, if it
	// offers one. Empty means the adapter joins block contents instead.
	Markdown string
	// Version identifies the backend build for metadata.parserVersion.
	Version string
}

// Element is one text-bearing backend element with a free-text label.
type Element struct {
	Label      string
	Text       string
	PageNumber int
}

// Tabular is a backend table convertible to a grid of header and row
// values. A Grid error marks that single table as failed; the rest of the
// document is unaffected.
type Tabular interface {
	Grid() (headers []string, rows [][]string, err error)
	Page() int
}

// delegatedNormalizer adapts a Converter's provisional output into the
// canonical model: labels are relabeled into the block taxonomy and
// tabular objects become TableStructures with synthesized header rows.
type delegatedNormalizer struct {
	backend Converter
	logger  *slog.Logger
}

func (n *delegatedNormalizer) normalize(ctx context.Context, data []byte, filename string, opts Options) (*Document, error) {
	start := time.Now()

	format, err := Detect(filename)
	if err != nil {
		format = FormatPDF
	}

	conv, err := n.backend.Convert(ctx, data, filename, opts)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", filename, err)
	}

	blocks := []ContentBlock{}
	outline := []OutlineItem{}
	warnings := []Warning{}
	position := 0

	for _, el := range conv.Elements {
		text := strings.TrimSpace(el.Text)
		if text == "" {
			continue
		}
		page := el.PageNumber
		if page <= 0 {
			page = 1
		}

		label := strings.ToLower(el.Label)
		switch {
		case strings.Contains(label, "heading") || strings.Contains(label, "title"):
			level := headingLevelFromLabel(label)
			blocks = append(blocks, ContentBlock{
				Type:         BlockHeading,
				Content:      text,
				Position:     position,
				HeadingLevel: level,
				PageNumber:   page,
			})
			outline = append(outline, OutlineItem{
				Title:      text,
				Level:      level,
				Position:   position,
				PageNumber: page,
			})
		case strings.Contains(label, "list"):
			blocks = append(blocks, ContentBlock{
				Type:       BlockList,
				Content:    text,
				Position:   position,
				ListType:   "unordered",
				ListItems:  []string{text},
				PageNumber: page,
			})
		case strings.Contains(label, "code"):
			blocks = append(blocks, ContentBlock{
				Type:       BlockCode,
				Content:    text,
				Position:   position,
				PageNumber: page,
			})
		case strings.Contains(label, "caption"):
			blocks = append(blocks, ContentBlock{
				Type:       BlockCaption,
				Content:    text,
				Position:   position,
				PageNumber: page,
			})
		case strings.Contains(label, "footer"):
			blocks = append(blocks, ContentBlock{
				Type:       BlockFooter,
				Content:    text,
				Position:   position,
				PageNumber: page,
			})
		case strings.Contains(label, "header"):
			blocks = append(blocks, ContentBlock{
				Type:       BlockHeader,
				Content:    text,
				Position:   position,
				PageNumber: page,
			})
		default:
			blocks = append(blocks, ContentBlock{
				Type:       BlockParagraph,
				Content:    text,
				Position:   position,
				PageNumber: page,
			})
		}
		position++
	}

	if opts.ExtractTables {
		for i, tab := range conv.Tables {
			headers, rows, gridErr := tab.Grid()
			if gridErr != nil {
				n.logger.Warn("table extraction failed", "filename", filename, "table", i, "error", gridErr)
				warnings = append(warnings, Warning{
					Code:     WarnTableExtractionFailed,
					Message:  fmt.Sprintf("failed to extract table %d: %v", i, gridErr),
					Severity: SeverityWarning,
				})
				continue
			}
			page := tab.Page()
			if page <= 0 {
				page = 1
			}
			blocks = append(blocks, tableBlockFromGrid(headers, rows, position, page))
			position++
		}
	}

	fullText := conv.Markdown
	if fullText == "" {
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			parts = append(parts, b.Content)
		}
		fullText = strings.Join(parts, "\n")
	}

	pageCount := conv.PageCount
	if pageCount <= 0 {
		pageCount = 1
	}
	version := conv.Version
	if version == "" {
		version = "1.0.0"
	}

	return &Document{
		DocumentID: documentID(data, filename, time.Now()),
		Metadata: Metadata{
			Filename:          filename,
			Format:            format,
			FileSize:          int64(len(data)),
			PageCount:         pageCount,
			Title:             conv.Title,
			ParsingDurationMs: durationMs(start),
			Parser:            "docling",
			ParserVersion:     version,
		},
		Blocks:   blocks,
		FullText: fullText,
		Outline:  outline,
		Warnings: warnings,
		Success:  !hasErrorWarning(warnings),
	}, nil
}

// headingLevelFromLabel maps a backend label to a heading level: "title"
// labels are level 1, anything else defaults to 2, and an embedded h1..h6
// marker overrides both.
func headingLevelFromLabel(label string) int {
	level := 2
	if strings.Contains(label, "title") {
		level = 1
	}
	for l := 1; l <= 6; l++ {
		if strings.Contains(label, fmt.Sprintf("h%d", l)) {
			return l
		}
	}
	return level
}

// tableBlockFromGrid builds a table block from backend-declared headers and
// data rows. Row 0 is synthesized from the headers, not inferred.
func tableBlockFromGrid(headers []string, rows [][]string, position, page int) ContentBlock {
	cells := make([]TableCell, 0, len(headers)*(len(rows)+1))
	for colIdx, h := range headers {
		cells = append(cells, TableCell{
			Content:  h,
			Row:      0,
			Col:      colIdx,
			RowSpan:  1,
			ColSpan:  1,
			IsHeader: true,
		})
	}
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cells = append(cells, TableCell{
				Content:  value,
				Row:      rowIdx + 1,
				Col:      colIdx,
				RowSpan:  1,
				ColSpan:  1,
				IsHeader: false,
			})
		}
	}

	markdown := renderTableMarkdown(headers, cells, len(rows)+1)
	return ContentBlock{
		Type:       BlockTable,
		Content:    markdown,
		Position:   position,
		PageNumber: page,
		Table: &TableStructure{
			Rows:      len(rows) + 1,
			Cols:      len(headers),
			Headers:   headers,
			Cells:     cells,
			Markdown:  markdown,
			HasHeader: true,
		},
	}
}
