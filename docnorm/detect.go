package docnorm

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Detect returns the document format for a filename based on its extension.
// Detection is purely syntactic; MIME hints never override it.
func Detect(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDocx, nil
	case ".pptx":
		return FormatPptx, nil
	case ".xlsx":
		return FormatXlsx, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".md", ".markdown":
		return FormatMD, nil
	case ".txt":
		return FormatTXT, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// SupportedFormats returns all supported format tags.
func SupportedFormats() []Format {
	return []Format{FormatPDF, FormatDocx, FormatPptx, FormatXlsx, FormatHTML, FormatMD, FormatTXT}
}

// NativeFormats are parsed in-process without the conversion backend.
func NativeFormats() []Format {
	return []Format{FormatHTML, FormatMD, FormatTXT}
}

// BackendFormats require the conversion backend.
func BackendFormats() []Format {
	return []Format{FormatPDF, FormatDocx, FormatPptx, FormatXlsx}
}
