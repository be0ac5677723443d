// Package rerank orders candidate documents by relevance to a query. The
// scoring model is pluggable; the default is a lexical token-overlap scorer
// that needs no external model.
package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Scorer assigns one relevance score per document, in input order.
type Scorer interface {
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
	Model() string
}

// Result is one reranked document with its original input index.
type Result struct {
	Index    int     `json:"index"`
	Score    float64 `json:"score"`
	Document string  `json:"document"`
}

// Request asks for the topK most relevant documents for a query.
type Request struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k,omitempty"`
}

// Response carries the reranked results, best first.
type Response struct {
	Results          []Result `json:"results"`
	ProcessingTimeMs float64  `json:"processing_time_ms"`
	Model            string   `json:"model"`
}

// Config tunes the service.
type Config struct {
	// DefaultTopK is used when a request leaves TopK unset. Defaults to 5.
	DefaultTopK int
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service scores and sorts candidate documents.
type Service struct {
	cfg    Config
	logger *slog.Logger
	scorer Scorer
}

// New creates a rerank service. A nil scorer falls back to the lexical one.
func New(cfg Config, scorer Scorer) *Service {
	cfg.defaults()
	if scorer == nil {
		scorer = &LexicalScorer{}
	}
	return &Service{cfg: cfg, logger: cfg.Logger, scorer: scorer}
}

// Rerank scores every document against the query and returns the topK best,
// sorted by descending score. Ties keep input order. An empty document list
// yields an empty result set, not an error.
func (s *Service) Rerank(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}

	results := []Result{}
	if len(req.Documents) > 0 {
		scores, err := s.scorer.Score(ctx, req.Query, req.Documents)
		if err != nil {
			return nil, fmt.Errorf("score: %w", err)
		}
		if len(scores) != len(req.Documents) {
			return nil, fmt.Errorf("scorer returned %d scores for %d documents", len(scores), len(req.Documents))
		}

		results = make([]Result, len(req.Documents))
		for i, d := range req.Documents {
			results[i] = Result{Index: i, Score: scores[i], Document: d}
		}
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
		if len(results) > topK {
			results = results[:topK]
		}
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	s.logger.Debug("reranked documents",
		"query_len", len(req.Query), "documents", len(req.Documents), "returned", len(results))

	return &Response{
		Results:          results,
		ProcessingTimeMs: elapsed,
		Model:            s.scorer.Model(),
	}, nil
}

// LexicalScorer scores by token overlap: the fraction of distinct query
// tokens present in the document. Case-insensitive, punctuation-split.
type LexicalScorer struct{}

func (LexicalScorer) Model() string { return "lexical-overlap" }

func (LexicalScorer) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTokens := tokenSet(query)
	scores := make([]float64, len(docs))
	if len(queryTokens) == 0 {
		return scores, nil
	}

	for i, d := range docs {
		docTokens := tokenSet(d)
		hits := 0
		for tok := range queryTokens {
			if _, ok := docTokens[tok]; ok {
				hits++
			}
		}
		scores[i] = float64(hits) / float64(len(queryTokens))
	}
	return scores, nil
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
