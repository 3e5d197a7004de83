package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"prepai-backend/internal/logger"
)

// SearchService turns semantic index hits into a single context string for
// prompt assembly. Retrieval fails soft: every failure mode degrades to an
// empty context so chat can still proceed.
type SearchService struct {
	index VectorIndex
	topK  int
}

func NewSearchService(index VectorIndex, topK int) *SearchService {
	if topK <= 0 {
		topK = 5
	}
	return &SearchService{index: index, topK: topK}
}

// Search runs one semantic query with an optional metadata filter and
// returns the matching chunk texts concatenated with spaces. An empty
// string means "no retrieval available" and is never an error.
func (s *SearchService) Search(ctx context.Context, query string, filter IndexFilter) string {
	tracer := otel.Tracer("search-service")
	ctx, span := tracer.Start(ctx, "search.query")
	defer span.End()
	span.SetAttributes(attribute.Int("search.top_k", s.topK))

	results, err := s.index.Query(ctx, query, s.topK, filter)
	if err != nil {
		logger.Error("Search failed, degrading to empty context", "error", err)
		span.SetAttributes(attribute.Bool("search.degraded", true))
		return ""
	}

	// The index may hand back empty entries inside a batch; drop them
	// rather than propagate.
	valid := make([]string, 0, len(results))
	for _, entry := range results {
		if strings.TrimSpace(entry.Text) == "" {
			continue
		}
		valid = append(valid, entry.Text)
	}
	if len(valid) != len(results) {
		logger.Warn("Search dropped empty index entries", "returned", len(results), "usable", len(valid))
	}

	if len(valid) == 0 {
		logger.Warn("No documents found for query")
		return ""
	}

	span.SetAttributes(attribute.Int("search.results", len(valid)))
	return strings.Join(valid, " ")
}
