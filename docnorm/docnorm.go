package docnorm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Options are the resolved per-request parsing options.
type Options struct {
	ExtractTables  bool
	ExtractImages  bool
	EnableOCR      bool
	MaxPages       int // 0 = unlimited
	Language       string
	MarkdownExport bool
}

// DefaultOptions returns the option defaults: tables on, German language.
func DefaultOptions() Options {
	return Options{ExtractTables: true, Language: "de"}
}

// ParseOptions is the wire form of Options. ExtractTables is a pointer so
// an absent field keeps its default of true.
type ParseOptions struct {
	ExtractTables  *bool  `json:"extractTables,omitempty"`
	ExtractImages  bool   `json:"extractImages,omitempty"`
	EnableOCR      bool   `json:"enableOCR,omitempty"`
	MaxPages       int    `json:"maxPages,omitempty"`
	Language       string `json:"language,omitempty"`
	MarkdownExport bool   `json:"markdownExport,omitempty"`
}

func (o *ParseOptions) resolve() Options {
	opts := DefaultOptions()
	if o == nil {
		return opts
	}
	if o.ExtractTables != nil {
		opts.ExtractTables = *o.ExtractTables
	}
	opts.ExtractImages = o.ExtractImages
	opts.EnableOCR = o.EnableOCR
	opts.MaxPages = o.MaxPages
	if o.Language != "" {
		opts.Language = o.Language
	}
	opts.MarkdownExport = o.MarkdownExport
	return opts
}

// ParseRequest is one parse call: base64 file content plus filename. The
// MIME type is informational only and never overrides extension detection.
type ParseRequest struct {
	FileContent string        `json:"fileContent"`
	Filename    string        `json:"filename"`
	MimeType    string        `json:"mimeType,omitempty"`
	Options     *ParseOptions `json:"options,omitempty"`
}

// ParseResponse is the uniform envelope around a parse result.
type ParseResponse struct {
	Success          bool      `json:"success"`
	Document         *Document `json:"document,omitempty"`
	Error            string    `json:"error,omitempty"`
	ProcessingTimeMs float64   `json:"processingTimeMs"`
}

// FormatsInfo reports the supported format split and backend availability.
type FormatsInfo struct {
	SupportedFormats []Format `json:"supportedFormats"`
	BackendFormats   []Format `json:"backendFormats"`
	NativeFormats    []Format `json:"nativeFormats"`
	BackendAvailable bool     `json:"backendAvailable"`
}

// normalizer is the common capability behind the closed set of variants:
// native-md, native-txt, native-html, delegated-binary.
type normalizer interface {
	normalize(ctx context.Context, data []byte, filename string, opts Options) (*Document, error)
}

// Service routes decoded payloads to the right normalizer and wraps results
// in the uniform response envelope. Safe for concurrent use; the backend
// handle is read-only after construction.
type Service struct {
	cfg       Config
	logger    *slog.Logger
	backend   Converter
	native    map[Format]normalizer
	delegated normalizer

	mdConverter *converter.Converter
	sanitizer   *bluemonday.Policy
}

// Option customizes a Service.
type Option func(*Service)

// WithBackend injects the binary-format conversion backend. Without it,
// pdf/docx/pptx/xlsx requests fail with ErrBackendUnavailable.
func WithBackend(c Converter) Option {
	return func(s *Service) { s.backend = c }
}

// New creates a normalization Service.
func New(cfg Config, opts ...Option) *Service {
	cfg.defaults()
	s := &Service{
		cfg:    cfg,
		logger: cfg.Logger,
	}
	for _, o := range opts {
		o(s)
	}

	s.native = map[Format]normalizer{
		FormatMD:   &markdownNormalizer{},
		FormatTXT:  &textNormalizer{},
		FormatHTML: newHTMLNormalizer(),
	}
	if s.backend != nil {
		s.delegated = &delegatedNormalizer{backend: s.backend, logger: s.logger}
	}

	s.mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	s.sanitizer = bluemonday.UGCPolicy()
	return s
}

// Parse decodes, size-checks, and routes one request. Client input errors
// (ErrInvalidEncoding, ErrPayloadTooLarge, ErrUnsupportedFormat) and
// ErrBackendUnavailable are returned as Go errors for the transport layer
// to map; every other failure, including a panic inside a normalizer, is
// converted into a success=false envelope.
func (s *Service) Parse(ctx context.Context, req *ParseRequest) (*ParseResponse, error) {
	start := time.Now()

	data, err := base64.StdEncoding.DecodeString(req.FileContent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(data), s.cfg.MaxFileSize)
	}

	format, err := Detect(req.Filename)
	if err != nil {
		return nil, err
	}

	norm, ok := s.native[format]
	if !ok {
		if s.delegated == nil {
			return nil, fmt.Errorf("%w: format %s needs the conversion backend", ErrBackendUnavailable, format)
		}
		norm = s.delegated
	}

	opts := req.Options.resolve()
	doc, err := s.run(ctx, norm, data, req.Filename, opts)
	if err != nil {
		s.logger.Warn("parse failed", "filename", req.Filename, "format", format, "error", err)
		return &ParseResponse{
			Success:          false,
			Error:            err.Error(),
			ProcessingTimeMs: durationMs(start),
		}, nil
	}

	if opts.MarkdownExport {
		doc.Markdown = s.exportMarkdown(doc, format, data)
	}

	s.logger.Debug("parsed document",
		"filename", req.Filename, "format", format,
		"blocks", len(doc.Blocks), "warnings", len(doc.Warnings))

	return &ParseResponse{
		Success:          doc.Success,
		Document:         doc,
		ProcessingTimeMs: durationMs(start),
	}, nil
}

// run invokes a normalizer, converting panics into errors so one malformed
// document cannot take down the process.
func (s *Service) run(ctx context.Context, norm normalizer, data []byte, filename string, opts Options) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("normalizer panic: %v", r)
		}
	}()
	return norm.normalize(ctx, data, filename, opts)
}

// Formats reports the supported formats and whether the backend is up.
func (s *Service) Formats() FormatsInfo {
	info := FormatsInfo{
		SupportedFormats: SupportedFormats(),
		NativeFormats:    NativeFormats(),
		BackendFormats:   []Format{},
		BackendAvailable: s.delegated != nil,
	}
	if info.BackendAvailable {
		info.BackendFormats = BackendFormats()
	}
	return info
}

// BackendAvailable reports whether a conversion backend is configured.
func (s *Service) BackendAvailable() bool {
	return s.delegated != nil
}

// decodeText interprets payload bytes as UTF-8, replacing invalid
// sequences rather than failing.
func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}

func durationMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
