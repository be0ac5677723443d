package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/docparse/audit"
	"github.com/hazyhaar/docparse/convert"
	"github.com/hazyhaar/docparse/dbopen"
	doc "github.com/hazyhaar/docparse/docnorm"
	"github.com/hazyhaar/docparse/rerank"
)

func main() {
	cfgPath := env("DOCPARSE_CONFIG", "docparse.yaml")
	var cfg *Config
	if _, err := os.Stat(cfgPath); err == nil {
		cfg, err = LoadConfig(cfgPath)
		if err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
	} else {
		cfg = DefaultConfig()
	}
	cfg.applyEnvOverrides()
	mcpTransport := env("MCP_TRANSPORT", "")

	// Logging.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Conversion backend and normalization service.
	backend := convert.New(convert.Config{Logger: logger})
	svc := doc.New(doc.Config{
		MaxFileSize: cfg.MaxFileBytes(),
		Logger:      logger,
	}, doc.WithBackend(backend))

	// Reranker.
	reranker := rerank.New(rerank.Config{DefaultTopK: cfg.RerankTopK, Logger: logger}, nil)

	// MCP over stdio: serve tools and exit, no HTTP.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "docparse",
			Version: convert.Version,
		}, nil)
		svc.RegisterMCP(mcpSrv)

		if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("MCP stdio", "error", err)
			os.Exit(1)
		}
		return
	}

	// Audit DB.
	auditDB, err := dbopen.Open(cfg.AuditDB, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("audit db", "error", err)
		os.Exit(1)
	}
	defer auditDB.Close()
	auditLog := audit.New(auditDB)
	if err := auditLog.Init(); err != nil {
		slog.Error("audit init", "error", err)
		os.Exit(1)
	}

	// Router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]any{
			"status":           "ok",
			"parser":           "docparse",
			"version":          convert.Version,
			"supportedFormats": doc.SupportedFormats(),
			"ready":            svc.BackendAvailable(),
		})
	})

	r.Post("/parse", func(w http.ResponseWriter, r *http.Request) {
		var req doc.ParseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		if req.Filename == "" {
			writeJSON(w, 400, map[string]string{"error": "filename is required"})
			return
		}

		start := time.Now()
		resp, err := svc.Parse(r.Context(), &req)
		if err != nil {
			recordAudit(r.Context(), auditLog, &req, nil, err, start)
			switch {
			case errors.Is(err, doc.ErrPayloadTooLarge):
				writeError(w, http.StatusRequestEntityTooLarge, err)
			case errors.Is(err, doc.ErrInvalidEncoding), errors.Is(err, doc.ErrUnsupportedFormat):
				writeError(w, 400, err)
			case errors.Is(err, doc.ErrBackendUnavailable):
				writeError(w, 503, err)
			default:
				writeError(w, 500, err)
			}
			return
		}

		recordAudit(r.Context(), auditLog, &req, resp, nil, start)
		writeJSON(w, 200, resp)
	})

	r.Get("/formats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, svc.Formats())
	})

	r.Post("/rerank", func(w http.ResponseWriter, r *http.Request) {
		var req rerank.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		if req.Query == "" {
			writeJSON(w, 400, map[string]string{"error": "query is required"})
			return
		}
		resp, err := reranker.Rerank(r.Context(), &req)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, resp)
	})

	r.Get("/audit", func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 50)
		entries, err := auditLog.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]any{"entries": entries})
	})

	// HTTP server.
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}

// recordAudit persists one parse outcome; failures are logged, never fatal.
func recordAudit(ctx context.Context, log *audit.Logger, req *doc.ParseRequest, resp *doc.ParseResponse, parseErr error, start time.Time) {
	entry := &audit.Entry{
		Filename:   req.Filename,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if format, err := doc.Detect(req.Filename); err == nil {
		entry.Format = string(format)
	}
	switch {
	case parseErr != nil:
		entry.Error = parseErr.Error()
	case resp != nil:
		entry.Success = resp.Success
		entry.Error = resp.Error
		if resp.Document != nil {
			entry.DocumentID = resp.Document.DocumentID
		}
	}
	if err := log.Record(ctx, entry); err != nil {
		slog.Warn("audit record failed", "error", err)
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
