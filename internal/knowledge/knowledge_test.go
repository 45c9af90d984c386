package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/clipforge/editpipeline/internal/job"
)

type stubLister struct {
	rows []job.CaseRecord
	err  error
}

func (l stubLister) RecentCases(context.Context, int) ([]job.CaseRecord, error) {
	return l.rows, l.err
}

type stubRetriever struct {
	upserted []job.CaseRecord
	results  []SearchResult
	err      error
}

func (r *stubRetriever) Upsert(_ context.Context, record job.CaseRecord) error {
	r.upserted = append(r.upserted, record)
	return nil
}

func (r *stubRetriever) Search(context.Context, []float64, int) ([]SearchResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.results, nil
}

type stubRewriter struct {
	summary string
	err     error
}

func (r stubRewriter) Rewrite(context.Context, string, string) (string, error) {
	return r.summary, r.err
}

func TestSimpleEmbeddingDeterministicAndNormalized(t *testing.T) {
	a := SimpleEmbedding("remove the background")
	b := SimpleEmbedding("remove the background")
	if len(a) != EmbeddingDims {
		t.Fatalf("expected %d dims, got %d", EmbeddingDims, len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical embeddings for identical text, differ at %d: %f vs %f", i, a[i], b[i])
		}
	}

	var sumSquares float64
	for _, v := range a {
		sumSquares += v * v
	}
	if sumSquares < 0.99 || sumSquares > 1.01 {
		t.Errorf("expected an L2-normalized vector, sum of squares = %f", sumSquares)
	}
}

func TestArchive_UsesRewrittenSummaryWhenAvailable(t *testing.T) {
	retriever := &stubRetriever{}
	s := NewStore(retriever, nil, stubRewriter{summary: "cleaner summary"})

	record := s.Archive(context.Background(), job.CaseRecord{JobID: "job-1"}, "raw instruction")
	if record.TaskSummary != "cleaner summary" {
		t.Errorf("expected rewritten summary, got %q", record.TaskSummary)
	}
	if len(record.Embedding) != EmbeddingDims {
		t.Errorf("expected embedding to be computed locally regardless of rewriter")
	}
	if len(retriever.upserted) != 1 {
		t.Errorf("expected the record to be upserted into the retriever, got %d calls", len(retriever.upserted))
	}
}

func TestArchive_FallsBackToRawInstructionOnRewriteError(t *testing.T) {
	s := NewStore(nil, nil, stubRewriter{err: errors.New("llm unavailable")})

	record := s.Archive(context.Background(), job.CaseRecord{JobID: "job-2"}, "raw instruction")
	if record.TaskSummary != "raw instruction" {
		t.Errorf("expected raw instruction on rewrite error, got %q", record.TaskSummary)
	}
}

func TestSearch_PrefersRetrieverResultsWhenPresent(t *testing.T) {
	retriever := &stubRetriever{results: []SearchResult{{CaseID: "case-1", Score: 0.9}}}
	s := NewStore(retriever, stubLister{}, nil)

	results, err := s.Search(context.Background(), "remove object", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].CaseID != "case-1" {
		t.Fatalf("expected retriever's result to win, got %#v", results)
	}
}

func TestSearch_FallsBackToLexicalOnRetrieverError(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("qdrant unreachable")}
	lister := stubLister{rows: []job.CaseRecord{
		{ID: "case-a", TaskSummary: "remove the background object", Tags: []string{"remove_object"}},
		{ID: "case-b", TaskSummary: "apply a stylize filter", Tags: []string{"stylize"}},
	}}
	s := NewStore(retriever, lister, nil)

	results, err := s.Search(context.Background(), "remove background", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both cases ranked, got %d", len(results))
	}
	if results[0].CaseID != "case-a" {
		t.Errorf("expected case-a to rank first on token overlap, got %s", results[0].CaseID)
	}
}

func TestSearch_NilListerReturnsEmptyWithoutError(t *testing.T) {
	s := NewStore(nil, nil, nil)
	results, err := s.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("expected no error with nil lister, got %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results with nil lister, got %#v", results)
	}
}

func TestSearch_TopKLimitsResults(t *testing.T) {
	lister := stubLister{rows: []job.CaseRecord{
		{ID: "case-1", TaskSummary: "remove object a"},
		{ID: "case-2", TaskSummary: "remove object b"},
		{ID: "case-3", TaskSummary: "remove object c"},
	}}
	s := NewStore(nil, lister, nil)

	results, err := s.Search(context.Background(), "remove object", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected topK=2 to cap results, got %d", len(results))
	}
}
