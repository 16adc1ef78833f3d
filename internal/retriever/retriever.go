package retriever

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/SatyaChamana/Codelens/internal/embedder"
	"github.com/SatyaChamana/Codelens/internal/store"
)

const (
	// DefaultTopK is the number of results returned when the caller
	// does not ask for a specific count.
	DefaultTopK = 5

	// candidateFactor widens the vector search before re-ranking so the
	// lexical blend has something to promote.
	candidateFactor = 4

	// similarityFloor drops results whose vector similarity is too low
	// to be meaningful. An empty result set is the "no relevant code"
	// answer, not an error.
	similarityFloor = 0.25

	// lexicalWeight blends identifier overlap into the final score.
	lexicalWeight = 0.3

	cacheSize = 256
	cacheTTL  = 5 * time.Minute
)

// Request describes one retrieval.
type Request struct {
	Collection string
	Query      string
	TopK       int
	Filters    store.Filters
	Rerank     bool
	NoCache    bool
}

// Result is a retrieved chunk with its blended score.
type Result struct {
	Entry store.Entry
	Score float64
}

type cacheEntry struct {
	results   []Result
	expiresAt time.Time
}

// Retriever embeds queries and searches the store, optionally
// re-ranking candidates by identifier overlap.
type Retriever struct {
	store    store.Store
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, cacheEntry]
}

// New creates a Retriever over the given store and embedder.
func New(st store.Store, emb embedder.Embedder) *Retriever {
	cache, err := lru.New[[32]byte, cacheEntry](cacheSize)
	if err != nil {
		panic(fmt.Sprintf("create query cache: %v", err))
	}
	return &Retriever{store: st, embedder: emb, cache: cache}
}

// Retrieve returns the topK chunks most relevant to the query. Results
// are disjoint by chunk ID and ordered by descending score. An empty
// slice means no indexed code cleared the similarity floor.
func (r *Retriever) Retrieve(ctx context.Context, req Request) ([]Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}

	key := cacheKey(req)
	if !req.NoCache {
		if entry, ok := r.cache.Get(key); ok && time.Now().Before(entry.expiresAt) {
			return entry.results, nil
		}
	}

	vecs, err := r.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := req.TopK
	if req.Rerank {
		limit = req.TopK * candidateFactor
	}
	hits, err := r.store.Search(ctx, req.Collection, vecs[0], limit, req.Filters)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < similarityFloor {
			continue
		}
		results = append(results, Result{Entry: h.Entry, Score: h.Similarity})
	}

	if req.Rerank {
		results = rerank(req.Query, results)
	}
	if len(results) > req.TopK {
		results = results[:req.TopK]
	}

	if !req.NoCache {
		r.cache.Add(key, cacheEntry{results: results, expiresAt: time.Now().Add(cacheTTL)})
	}
	return results, nil
}

// rerank blends identifier-token overlap between the query and each
// chunk's name/signature into the vector score, then re-sorts. All
// candidates are scaled by the same vector weight, so chunks with zero
// overlap keep their relative order.
func rerank(query string, results []Result) []Result {
	queryTokens := identifierTokens(query)
	if len(queryTokens) == 0 {
		return results
	}

	for i := range results {
		e := results[i].Entry
		chunkTokens := identifierTokens(e.Name + " " + e.Parent + " " + e.Signature)
		overlap := tokenOverlap(queryTokens, chunkTokens)
		results[i].Score = (1-lexicalWeight)*results[i].Score + lexicalWeight*overlap
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.ChunkID < results[j].Entry.ChunkID
	})
	return results
}

// identifierTokens lowercases and splits text on non-alphanumerics and
// camelCase boundaries, so "add_api_route" yields {add, api, route}.
// Single-character fragments are dropped as noise.
func identifierTokens(text string) map[string]bool {
	tokens := make(map[string]bool)
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 1 {
			tokens[strings.ToLower(cur.String())] = true
		}
		cur.Reset()
	}
	var prev rune
	for _, c := range text {
		switch {
		case unicode.IsLower(c) || unicode.IsDigit(c):
			cur.WriteRune(c)
		case unicode.IsUpper(c):
			if unicode.IsLower(prev) {
				flush()
			}
			cur.WriteRune(unicode.ToLower(c))
		default:
			flush()
		}
		prev = c
	}
	flush()
	return tokens
}

func tokenOverlap(query, chunk map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for tok := range query {
		if chunk[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

func cacheKey(req Request) [32]byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\x00%s\x00%d\x00%t\x00%s\x00%s\x00%s\x00%s",
		req.Collection, req.Query, req.TopK, req.Rerank,
		req.Filters.Language, req.Filters.UnitType,
		req.Filters.PathPrefix, req.Filters.PathGlob)
	return sha256.Sum256([]byte(b.String()))
}
