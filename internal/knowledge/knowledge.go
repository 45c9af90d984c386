// Package knowledge archives per-job outcomes as CaseRecords and serves
// similarity search over them for the Planner. A real vector index (e.g.
// Qdrant) is treated as an optional external dependency: CaseRetriever
// models it, and this package always carries its own lexical fallback so
// search keeps working without one.
package knowledge

import (
	"context"
	"crypto/sha256"
	"math"
	"sort"
	"strings"

	"github.com/clipforge/editpipeline/internal/job"
)

// EmbeddingDims is the fixed vector size used by SimpleEmbedding.
const EmbeddingDims = 16

// SimpleEmbedding derives a deterministic, dependency-free embedding from
// text: the first EmbeddingDims bytes of its SHA-256 digest, scaled to
// [0,1] and L2-normalized. It exists so CaseRecord archival and search
// never hard-require an embedding model.
func SimpleEmbedding(text string) []float64 {
	digest := sha256.Sum256([]byte(text))
	vec := make([]float64, EmbeddingDims)
	var sumSquares float64
	for i := 0; i < EmbeddingDims; i++ {
		v := float64(digest[i]) / 255.0
		vec[i] = v
		sumSquares += v * v
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		norm = 1.0
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// SearchResult is one ranked hit returned by Store.Search.
type SearchResult struct {
	CaseID        string
	TaskSummary   string
	Tags          []string
	FailureReason string
	FixStrategy   string
	Score         float64
}

// CaseRetriever is an external vector-backed similarity search dependency.
// It is optional: a nil or failing CaseRetriever falls back to lexical
// search over CaseLister without changing Store's external contract.
type CaseRetriever interface {
	// Upsert indexes or updates a case's vector embedding and payload.
	// Implementations should treat a cleared Embedding as a delete-or-skip,
	// not an error.
	Upsert(ctx context.Context, record job.CaseRecord) error

	// Search returns up to topK nearest neighbours of query's embedding.
	// An error (including "not configured") signals the caller to fall
	// back to lexical search.
	Search(ctx context.Context, queryEmbedding []float64, topK int) ([]SearchResult, error)
}

// CaseLister supplies the recent case rows the lexical fallback ranks
// over (a bounded "most recent N cases" scan). Backed by the persistence
// layer in production.
type CaseLister interface {
	RecentCases(ctx context.Context, limit int) ([]job.CaseRecord, error)
}

// SummaryRewriter optionally produces a cleaner task_summary for archival
// than the raw instruction text, e.g. via an LLM. A nil SummaryRewriter
// (or one that errors) means the raw instruction is archived verbatim.
type SummaryRewriter interface {
	Rewrite(ctx context.Context, instruction string, notes string) (string, error)
}

const lexicalFallbackScanLimit = 200

// Store archives CaseRecords and answers similarity queries, preferring an
// external CaseRetriever and always able to fall back to lexical search.
type Store struct {
	Retriever CaseRetriever
	Lister    CaseLister
	Rewriter  SummaryRewriter
}

func NewStore(retriever CaseRetriever, lister CaseLister, rewriter SummaryRewriter) *Store {
	return &Store{Retriever: retriever, Lister: lister, Rewriter: rewriter}
}

// Archive builds and indexes a CaseRecord for a completed or failed job.
// The record's TaskSummary is rewritten via Rewriter when available,
// otherwise it is the raw instruction. The embedding is always computed
// locally via SimpleEmbedding so indexing never blocks on an LLM call.
func (s *Store) Archive(ctx context.Context, record job.CaseRecord, instruction string) job.CaseRecord {
	summary := instruction
	if s.Rewriter != nil {
		if rewritten, err := s.Rewriter.Rewrite(ctx, instruction, record.FixStrategy); err == nil && strings.TrimSpace(rewritten) != "" {
			summary = rewritten
		}
	}
	record.TaskSummary = summary
	record.Embedding = SimpleEmbedding(summary)

	if record.Embedding != nil && s.Retriever != nil {
		_ = s.Retriever.Upsert(ctx, record)
	}
	return record
}

// Search returns up to topK cases most similar to query. It tries the
// external retriever first; on any error (including a nil retriever) it
// falls back to lexical token-overlap ranking over the most recent cases.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	if s.Retriever != nil {
		if results, err := s.Retriever.Search(ctx, SimpleEmbedding(query), topK); err == nil && len(results) > 0 {
			return results, nil
		}
	}

	return s.lexicalSearch(ctx, query, topK)
}

func (s *Store) lexicalSearch(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if s.Lister == nil {
		return nil, nil
	}
	rows, err := s.Lister.RecentCases(ctx, lexicalFallbackScanLimit)
	if err != nil {
		return nil, err
	}

	queryTokens := tokenSet(query)
	ranked := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		text := row.TaskSummary + " " + strings.Join(row.Tags, " ")
		tokens := tokenSet(text)
		overlap := len(intersect(tokens, queryTokens))
		denominator := len(queryTokens)
		if denominator < 1 {
			denominator = 1
		}
		ranked = append(ranked, SearchResult{
			CaseID:        row.ID,
			TaskSummary:   row.TaskSummary,
			Tags:          row.Tags,
			FailureReason: row.FailureReason,
			FixStrategy:   row.FixStrategy,
			Score:         float64(overlap) / float64(denominator),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}
