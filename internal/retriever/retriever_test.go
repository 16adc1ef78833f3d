package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SatyaChamana/Codelens/internal/store"
)

type mockEmbedder struct {
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (m *mockEmbedder) Model() string { return "mock" }

type mockStore struct {
	store.Store
	results   []store.SearchResult
	lastTopK  int
	callCount int
}

func (m *mockStore) Search(ctx context.Context, collection string, vector []float32, topK int, f store.Filters) ([]store.SearchResult, error) {
	m.lastTopK = topK
	m.callCount++
	if len(m.results) > topK {
		return m.results[:topK], nil
	}
	return m.results, nil
}

func hit(id, name, sig string, sim float64) store.SearchResult {
	return store.SearchResult{
		Entry:      store.Entry{ChunkID: id, Name: name, Signature: sig, Text: name},
		Similarity: sim,
	}
}

func TestRetrieveAppliesSimilarityFloor(t *testing.T) {
	st := &mockStore{results: []store.SearchResult{
		hit("a", "handler", "def handler()", 0.9),
		hit("b", "helper", "def helper()", 0.1),
	}}
	r := New(st, &mockEmbedder{})

	results, err := r.Retrieve(context.Background(), Request{Collection: "repo", Query: "request handler", TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Entry.ChunkID)
}

func TestRetrieveEmptyIsNotAnError(t *testing.T) {
	st := &mockStore{}
	r := New(st, &mockEmbedder{})

	results, err := r.Retrieve(context.Background(), Request{Collection: "repo", Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	r := New(&mockStore{}, &mockEmbedder{})
	_, err := r.Retrieve(context.Background(), Request{Collection: "repo", Query: "   "})
	assert.Error(t, err)
}

func TestRetrieveExpandsCandidatesWhenReranking(t *testing.T) {
	st := &mockStore{}
	r := New(st, &mockEmbedder{})

	_, err := r.Retrieve(context.Background(), Request{Collection: "repo", Query: "q", TopK: 5, Rerank: true, NoCache: true})
	require.NoError(t, err)
	assert.Equal(t, 20, st.lastTopK)

	_, err = r.Retrieve(context.Background(), Request{Collection: "repo", Query: "q", TopK: 5, NoCache: true})
	require.NoError(t, err)
	assert.Equal(t, 5, st.lastTopK)
}

func TestRerankPromotesIdentifierMatch(t *testing.T) {
	// The named route handler sits below two generic chunks on vector
	// similarity alone; identifier overlap must lift it.
	st := &mockStore{results: []store.SearchResult{
		hit("g1", "process_data", "def process_data(items)", 0.80),
		hit("g2", "run_pipeline", "def run_pipeline()", 0.78),
		hit("r1", "add_api_route", "def add_api_route(path, endpoint)", 0.74),
	}}
	r := New(st, &mockEmbedder{})

	results, err := r.Retrieve(context.Background(), Request{
		Collection: "repo",
		Query:      "how do I add an api route",
		TopK:       3,
		Rerank:     true,
		NoCache:    true,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "r1", results[0].Entry.ChunkID)
}

func TestRerankKeepsVectorScoreWithoutOverlap(t *testing.T) {
	st := &mockStore{results: []store.SearchResult{
		hit("a", "alpha", "def alpha()", 0.9),
		hit("b", "beta", "def beta()", 0.6),
	}}
	r := New(st, &mockEmbedder{})

	results, err := r.Retrieve(context.Background(), Request{
		Collection: "repo",
		Query:      "completely unrelated words",
		TopK:       2,
		Rerank:     true,
		NoCache:    true,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// No overlap anywhere: relative order is unchanged.
	assert.Equal(t, "a", results[0].Entry.ChunkID)
	assert.Equal(t, "b", results[1].Entry.ChunkID)
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	var hits []store.SearchResult
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		hits = append(hits, hit(id, "fn_"+id, "", 0.9))
	}
	st := &mockStore{results: hits}
	r := New(st, &mockEmbedder{})

	results, err := r.Retrieve(context.Background(), Request{
		Collection: "repo", Query: "q", TopK: 2, Rerank: true, NoCache: true,
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieveCachesResults(t *testing.T) {
	emb := &mockEmbedder{}
	st := &mockStore{results: []store.SearchResult{hit("a", "alpha", "", 0.9)}}
	r := New(st, emb)

	req := Request{Collection: "repo", Query: "same question", TopK: 3}
	first, err := r.Retrieve(context.Background(), req)
	require.NoError(t, err)

	second, err := r.Retrieve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, emb.calls, "cached query skips embedding")
	assert.Equal(t, 1, st.callCount, "cached query skips search")
}

func TestIdentifierTokens(t *testing.T) {
	toks := identifierTokens("add_api_route")
	assert.True(t, toks["add"])
	assert.True(t, toks["api"])
	assert.True(t, toks["route"])

	toks = identifierTokens("parseFileHeader")
	assert.True(t, toks["parse"])
	assert.True(t, toks["file"])
	assert.True(t, toks["header"])

	assert.Empty(t, identifierTokens("- -- !"))
}
