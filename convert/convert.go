// Package convert is the built-in binary-format conversion backend. It
// turns PDF, DOCX, PPTX and XLSX payloads into the provisional element
// stream consumed by the normalization layer. All work happens in memory;
// nothing is written to disk.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	doc "github.com/hazyhaar/docparse/docnorm"
)

// Version identifies this backend build in document metadata.
const Version = "1.0.0"

// Config tunes the engine.
type Config struct {
	// Logger for conversion diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine converts binary document formats in-process. Safe for concurrent
// use; it holds no per-conversion state.
type Engine struct {
	logger *slog.Logger
}

// New creates a conversion engine.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{logger: cfg.Logger}
}

// Convert dispatches on the filename extension.
func (e *Engine) Convert(ctx context.Context, data []byte, filename string, opts doc.Options) (*doc.Conversion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return e.convertPDF(data, opts)
	case ".docx":
		return e.convertDOCX(data)
	case ".pptx":
		return e.convertPPTX(data, opts)
	case ".xlsx":
		return e.convertXLSX(data)
	default:
		return nil, fmt.Errorf("no converter for %q", ext)
	}
}
