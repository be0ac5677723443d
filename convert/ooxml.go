package convert

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	doc "github.com/hazyhaar/docparse/docnorm"
)

// openZip wraps an in-memory OOXML payload as a zip archive.
func openZip(data []byte) (*zip.Reader, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	return r, nil
}

// zipEntry finds one named file in the archive.
func zipEntry(r *zip.Reader, name string) (*zip.File, error) {
	for _, f := range r.File {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

// convertDOCX parses word/document.xml, mapping paragraph styles to labels:
// Title/Subtitle and Heading styles become heading labels, numbered
// paragraphs become list items, everything else is text.
func (e *Engine) convertDOCX(data []byte) (*doc.Conversion, error) {
	r, err := openZip(data)
	if err != nil {
		return nil, err
	}
	docFile, err := zipEntry(r, "word/document.xml")
	if err != nil {
		return nil, err
	}
	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var elements []doc.Element
	var title string
	var currentText strings.Builder
	var inParagraph bool
	var paragraphStyle string
	var inList bool

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "p":
				inParagraph = true
				currentText.Reset()
				paragraphStyle = ""
				inList = false
			case t.Name.Local == "pStyle" && inParagraph:
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						paragraphStyle = attr.Value
					}
				}
			case t.Name.Local == "numPr" && inParagraph:
				inList = true
			}

		case xml.CharData:
			if inParagraph {
				currentText.Write(t)
			}

		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				inParagraph = false
				text := strings.TrimSpace(currentText.String())
				if text == "" {
					continue
				}

				label := "text"
				switch {
				case strings.EqualFold(paragraphStyle, "title"):
					label = "title"
					if title == "" {
						title = text
					}
				case docxHeadingLevel(paragraphStyle) > 0:
					label = fmt.Sprintf("heading h%d", docxHeadingLevel(paragraphStyle))
					if title == "" {
						title = text
					}
				case inList:
					label = "list_item"
				}

				elements = append(elements, doc.Element{
					Label:      label,
					Text:       text,
					PageNumber: 1,
				})
			}
		}
	}

	return &doc.Conversion{
		PageCount: 1,
		Title:     title,
		Elements:  elements,
		Version:   Version,
	}, nil
}

// docxHeadingLevel extracts the heading level from a paragraph style name,
// e.g. "Heading1" → 1, "Subtitle" → 2, "Überschrift3" → 3.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)

	if lower == "title" {
		return 1
	}
	if lower == "subtitle" {
		return 2
	}

	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if strings.HasPrefix(lower, prefix) {
			rest := lower[len(prefix):]
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}

var slidePathRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// convertPPTX extracts text per slide, in slide-number order. A shape
// holding a title placeholder yields "title" elements; the rest is text.
// Each slide counts as one page.
func (e *Engine) convertPPTX(data []byte, opts doc.Options) (*doc.Conversion, error) {
	r, err := openZip(data)
	if err != nil {
		return nil, err
	}

	type slideFile struct {
		nr   int
		file *zip.File
	}
	var slides []slideFile
	for _, f := range r.File {
		m := slidePathRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		nr, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slideFile{nr: nr, file: f})
	}
	if len(slides) == 0 {
		return nil, fmt.Errorf("no slides found in archive")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].nr < slides[j].nr })

	pageCount := len(slides)
	lastSlide := pageCount
	if opts.MaxPages > 0 && opts.MaxPages < lastSlide {
		lastSlide = opts.MaxPages
	}

	var elements []doc.Element
	var title string

	for idx := 0; idx < lastSlide; idx++ {
		page := idx + 1
		slideElems, err := extractSlide(slides[idx].file, page)
		if err != nil {
			e.logger.Warn("slide extraction failed", "slide", slides[idx].nr, "error", err)
			continue
		}
		for _, el := range slideElems {
			if title == "" && el.Label == "title" {
				title = el.Text
			}
			elements = append(elements, el)
		}
	}

	return &doc.Conversion{
		PageCount: pageCount,
		Title:     title,
		Elements:  elements,
		Version:   Version,
	}, nil
}

// extractSlide parses one slide XML: paragraphs (a:p) of text runs (a:t),
// labeled "title" when the enclosing shape carries a title placeholder.
func extractSlide(f *zip.File, page int) ([]doc.Element, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var elements []doc.Element
	var currentText strings.Builder
	var inParagraph, inTextRun bool
	var shapeIsTitle bool

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp":
				shapeIsTitle = false
			case "ph":
				for _, attr := range t.Attr {
					if attr.Name.Local == "type" && (attr.Value == "title" || attr.Value == "ctrTitle") {
						shapeIsTitle = true
					}
				}
			case "p":
				inParagraph = true
				currentText.Reset()
			case "t":
				inTextRun = inParagraph
			}

		case xml.CharData:
			if inTextRun {
				currentText.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inTextRun = false
			case "p":
				if !inParagraph {
					continue
				}
				inParagraph = false
				text := strings.TrimSpace(currentText.String())
				if text == "" {
					continue
				}
				label := "text"
				if shapeIsTitle {
					label = "title"
				}
				elements = append(elements, doc.Element{
					Label:      label,
					Text:       text,
					PageNumber: page,
				})
			}
		}
	}

	return elements, nil
}
