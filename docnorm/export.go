package docnorm

import "strings"

// exportMarkdown renders a parsed document as Markdown. HTML input is
// sanitized then converted; Markdown input passes through unmodified; all
// other formats join block contents.
func (s *Service) exportMarkdown(doc *Document, format Format, raw []byte) string {
	switch format {
	case FormatMD:
		return doc.FullText
	case FormatHTML:
		clean := s.sanitizer.SanitizeBytes(raw)
		md, err := s.mdConverter.ConvertString(string(clean))
		if err == nil {
			return strings.TrimSpace(md)
		}
		s.logger.Warn("markdown export failed, joining blocks", "error", err)
	}

	parts := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		if b.Content != "" {
			parts = append(parts, b.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
