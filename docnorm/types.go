// Package docnorm normalizes heterogeneous document formats into one
// canonical structured representation: an ordered sequence of typed content
// blocks, a flat heading outline, the full extracted text, and a warnings
// list.
//
// Native formats (md, txt, html) are parsed in-process. Binary office
// formats (pdf, docx, pptx, xlsx) are delegated to a Converter backend
// injected at construction time; without one they are rejected with
// ErrBackendUnavailable.
//
// Usage:
//
//	svc := docnorm.New(docnorm.Config{}, docnorm.WithBackend(engine))
//	resp, err := svc.Parse(ctx, &docnorm.ParseRequest{FileContent: b64, Filename: "report.pdf"})
package docnorm

// Format identifies a document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDocx Format = "docx"
	FormatPptx Format = "pptx"
	FormatXlsx Format = "xlsx"
	FormatHTML Format = "html"
	FormatMD   Format = "md"
	FormatTXT  Format = "txt"
)

// BlockType tags the kind of content a block carries.
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockTable     BlockType = "table"
	BlockList      BlockType = "list"
	BlockCode      BlockType = "code"
	BlockImage     BlockType = "image"
	BlockCaption   BlockType = "caption"
	BlockFooter    BlockType = "footer"
	BlockHeader    BlockType = "header"
)

// TableCell is one cell of a reconstructed table. Row and Col are 0-based.
type TableCell struct {
	Content  string `json:"content"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	RowSpan  int    `json:"rowSpan"`
	ColSpan  int    `json:"colSpan"`
	IsHeader bool   `json:"isHeader"`
}

// TableStructure is the canonical table representation. If HasHeader is
// true, row 0 cells carry IsHeader and their contents equal Headers in
// column order. Markdown is a regenerated pipe-table rendering.
type TableStructure struct {
	Rows      int         `json:"rows"`
	Cols      int         `json:"cols"`
	Headers   []string    `json:"headers"`
	Cells     []TableCell `json:"cells"`
	Markdown  string      `json:"markdown"`
	HasHeader bool        `json:"hasHeader"`
}

// ImageMetadata describes an image block.
type ImageMetadata struct {
	Src    string `json:"src,omitempty"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ContentBlock is one normalized unit of document content. Position is
// zero-based and strictly increasing in document order. Only the fields
// relevant to Type are populated.
type ContentBlock struct {
	Type         BlockType       `json:"type"`
	Content      string          `json:"content"`
	PageNumber   int             `json:"pageNumber,omitempty"`
	Position     int             `json:"position"`
	HeadingLevel int             `json:"headingLevel,omitempty"`
	ListType     string          `json:"listType,omitempty"`
	ListItems    []string        `json:"listItems,omitempty"`
	Table        *TableStructure `json:"table,omitempty"`
	CodeLanguage string          `json:"codeLanguage,omitempty"`
	Image        *ImageMetadata  `json:"image,omitempty"`
}

// OutlineItem is a heading-derived navigation entry. Position matches the
// originating heading block. Native normalizers emit a flat list; delegated
// backends may nest via Children.
type OutlineItem struct {
	Title      string        `json:"title"`
	Level      int           `json:"level"`
	PageNumber int           `json:"pageNumber,omitempty"`
	Position   int           `json:"position"`
	Children   []OutlineItem `json:"children,omitempty"`
}

// Metadata describes the parse run.
type Metadata struct {
	Filename          string  `json:"filename"`
	Format            Format  `json:"format"`
	FileSize          int64   `json:"fileSize"`
	PageCount         int     `json:"pageCount"`
	Title             string  `json:"title,omitempty"`
	Author            string  `json:"author,omitempty"`
	CreatedDate       string  `json:"createdDate,omitempty"`
	ModifiedDate      string  `json:"modifiedDate,omitempty"`
	ParsingDurationMs float64 `json:"parsingDurationMs"`
	Parser            string  `json:"parser"`
	ParserVersion     string  `json:"parserVersion,omitempty"`
}

// Warning severities.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Warning codes.
const (
	WarnHTMLParserMissing     = "HTML_PARSER_MISSING"
	WarnHTMLParseFailed       = "HTML_PARSE_FAILED"
	WarnTableExtractionFailed = "TABLE_EXTRACTION_FAILED"
)

// Warning records a non-fatal parsing problem.
type Warning struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	PageNumber int    `json:"pageNumber,omitempty"`
	Position   int    `json:"position,omitempty"`
	Severity   string `json:"severity"`
}

// Document is the canonical result of one parse call. Constructed once,
// immutable afterward.
type Document struct {
	DocumentID string         `json:"documentId"`
	Metadata   Metadata       `json:"metadata"`
	Blocks     []ContentBlock `json:"blocks"`
	FullText   string         `json:"fullText"`
	Outline    []OutlineItem  `json:"outline"`
	Warnings   []Warning      `json:"warnings"`
	Success    bool           `json:"success"`

	// Markdown is only populated when options.markdownExport is set.
	Markdown string `json:"markdown,omitempty"`
}

// hasErrorWarning reports whether any warning carries error severity.
// success = !hasErrorWarning is the uniform policy for every normalizer.
func hasErrorWarning(warnings []Warning) bool {
	for _, w := range warnings {
		if w.Severity == SeverityError {
			return true
		}
	}
	return false
}
