package docnorm

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestParse_Markdown(t *testing.T) {
	svc := New(Config{})
	resp, err := svc.Parse(context.Background(), &ParseRequest{
		FileContent: b64("# Hello\n\nWorld.\n"),
		Filename:    "note.md",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !resp.Success || resp.Document == nil {
		t.Fatalf("response: %+v", resp)
	}
	if len(resp.Document.Blocks) != 2 {
		t.Fatalf("blocks: got %d", len(resp.Document.Blocks))
	}
	if resp.ProcessingTimeMs < 0 {
		t.Fatalf("processingTimeMs: %v", resp.ProcessingTimeMs)
	}
}

func TestParse_InvalidBase64(t *testing.T) {
	// WHAT: malformed base64 surfaces as ErrInvalidEncoding for the
	// transport layer to map to a client error.
	svc := New(Config{})
	_, err := svc.Parse(context.Background(), &ParseRequest{
		FileContent: "not base64!!!",
		Filename:    "a.md",
	})
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("error: %v", err)
	}
}

func TestParse_PayloadTooLarge(t *testing.T) {
	svc := New(Config{MaxFileSize: 4})
	_, err := svc.Parse(context.Background(), &ParseRequest{
		FileContent: b64("well over four bytes"),
		Filename:    "a.txt",
	})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("error: %v", err)
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	svc := New(Config{})
	_, err := svc.Parse(context.Background(), &ParseRequest{
		FileContent: b64("data"),
		Filename:    "a.xyz",
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("error: %v", err)
	}
}

func TestParse_BackendUnavailable(t *testing.T) {
	// WHAT: binary formats without a configured backend fail fast with the
	// availability sentinel, before any decoding work on the payload.
	svc := New(Config{})
	_, err := svc.Parse(context.Background(), &ParseRequest{
		FileContent: b64("%PDF-1.4"),
		Filename:    "doc.pdf",
	})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("error: %v", err)
	}
}

func TestParse_BackendFailureEnvelope(t *testing.T) {
	// WHAT: a backend conversion failure is not a transport error; it comes
	// back as a success=false envelope with the message.
	svc := New(Config{}, WithBackend(&fakeBackend{err: errors.New("engine crashed")}))
	resp, err := svc.Parse(context.Background(), &ParseRequest{
		FileContent: b64("data"),
		Filename:    "doc.docx",
	})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if resp.Success {
		t.Fatal("success should be false")
	}
	if resp.Error == "" || resp.Document != nil {
		t.Fatalf("envelope: %+v", resp)
	}
}

func TestParse_DelegatedRouting(t *testing.T) {
	// WHAT: binary formats route to the backend; natives never touch it.
	conv := &Conversion{Elements: []Element{{Label: "text", Text: "from backend", PageNumber: 1}}}
	svc := New(Config{}, WithBackend(&fakeBackend{conv: conv}))

	resp, err := svc.Parse(context.Background(), &ParseRequest{
		FileContent: b64("binary"),
		Filename:    "deck.pptx",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.Document.Metadata.Parser != "docling" {
		t.Fatalf("parser: got %q", resp.Document.Metadata.Parser)
	}
	if resp.Document.Metadata.Format != FormatPptx {
		t.Fatalf("format: got %q", resp.Document.Metadata.Format)
	}

	resp, err = svc.Parse(context.Background(), &ParseRequest{
		FileContent: b64("plain"),
		Filename:    "a.txt",
	})
	if err != nil {
		t.Fatalf("parse txt: %v", err)
	}
	if resp.Document.Metadata.Parser != "native-txt" {
		t.Fatalf("parser: got %q", resp.Document.Metadata.Parser)
	}
}

func TestParseOptions_Resolve(t *testing.T) {
	// WHAT: absent options resolve to defaults; extractTables defaults to
	// true and is only overridden when the pointer is set.
	var po *ParseOptions
	opts := po.resolve()
	if !opts.ExtractTables || opts.Language != "de" {
		t.Fatalf("defaults: %+v", opts)
	}

	f := false
	opts = (&ParseOptions{ExtractTables: &f, Language: "fr", MaxPages: 3}).resolve()
	if opts.ExtractTables {
		t.Fatal("extractTables should be false")
	}
	if opts.Language != "fr" || opts.MaxPages != 3 {
		t.Fatalf("resolved: %+v", opts)
	}
}

func TestParse_MarkdownExport(t *testing.T) {
	// WHAT: markdownExport populates Document.Markdown; for markdown input
	// it is the raw content.
	svc := New(Config{})
	content := "# Title\n\nBody.\n"
	resp, err := svc.Parse(context.Background(), &ParseRequest{
		FileContent: b64(content),
		Filename:    "a.md",
		Options:     &ParseOptions{MarkdownExport: true},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.Document.Markdown != content {
		t.Fatalf("markdown: got %q", resp.Document.Markdown)
	}

	// Without the option the field stays empty.
	resp, _ = svc.Parse(context.Background(), &ParseRequest{
		FileContent: b64(content),
		Filename:    "a.md",
	})
	if resp.Document.Markdown != "" {
		t.Fatalf("markdown should be empty, got %q", resp.Document.Markdown)
	}
}

func TestFormats(t *testing.T) {
	svc := New(Config{})
	info := svc.Formats()
	if info.BackendAvailable {
		t.Fatal("no backend configured")
	}
	if len(info.BackendFormats) != 0 {
		t.Fatalf("backendFormats: %v", info.BackendFormats)
	}
	if len(info.SupportedFormats) != 7 || len(info.NativeFormats) != 3 {
		t.Fatalf("formats: %+v", info)
	}

	svc = New(Config{}, WithBackend(&fakeBackend{}))
	info = svc.Formats()
	if !info.BackendAvailable || len(info.BackendFormats) != 4 {
		t.Fatalf("with backend: %+v", info)
	}
}
