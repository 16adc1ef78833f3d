package ingest

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SatyaChamana/Codelens/internal/chunker"
	"github.com/SatyaChamana/Codelens/internal/embedder"
	"github.com/SatyaChamana/Codelens/internal/enrich"
	"github.com/SatyaChamana/Codelens/internal/language"
	"github.com/SatyaChamana/Codelens/internal/parser"
	"github.com/SatyaChamana/Codelens/internal/store"
	"github.com/SatyaChamana/Codelens/internal/walker"
)

const embedBatchSize = 32

// Options configures an ingestion run.
type Options struct {
	Workers   int
	ChunkOpts chunker.Options
}

// Report summarizes one ingestion run.
type Report struct {
	FilesParsed   int // parsed with a grammar
	FilesDegraded int // indexed as whole-file fallback units
	FilesSkipped  int // binary, unreadable, or otherwise ineligible
	ChunksIndexed int
	ChunksFailed  int // embedding failed even after individual retry
	Duration      time.Duration
}

// Pipeline runs walk, parse, chunk, enrich, embed, and store for one
// repository.
type Pipeline struct {
	store    store.Store
	embedder embedder.Embedder
	opts     Options
}

// New creates an ingestion pipeline over the given store and embedder.
func New(st store.Store, emb embedder.Embedder, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Pipeline{store: st, embedder: emb, opts: opts}
}

// fileResult is everything extracted from one file.
type fileResult struct {
	chunks   []chunker.Chunk
	degraded bool
	skipped  bool
}

// Ingest indexes the repository at root into the named collection.
// Files are processed concurrently but merged in path order, so the
// same tree always produces the same chunks in the same order.
func (p *Pipeline) Ingest(ctx context.Context, root, collection string) (*Report, error) {
	start := time.Now()

	if err := store.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if err := p.store.CreateCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	fileCh, walkErrCh := walker.Walk(root)
	var files []walker.FileInfo
	for fi := range fileCh {
		files = append(files, fi)
	}
	if err := <-walkErrCh; err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i := range files {
		g.Go(func() error {
			results[i] = p.processFile(gctx, files[i])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}
	var chunks []chunker.Chunk
	for _, r := range results {
		switch {
		case r.skipped:
			report.FilesSkipped++
		case r.degraded:
			report.FilesDegraded++
		default:
			report.FilesParsed++
		}
		chunks = append(chunks, r.chunks...)
	}

	if err := p.embedAndStore(ctx, collection, chunks, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	return report, nil
}

// processFile parses, chunks, and enriches one file. Parse failures
// degrade to a single whole-file unit; the file is never dropped.
func (p *Pipeline) processFile(ctx context.Context, fi walker.FileInfo) fileResult {
	src, err := os.ReadFile(fi.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: read %s: %v\n", fi.RelPath, err)
		return fileResult{skipped: true}
	}
	if len(src) == 0 || language.IsBinary(src) {
		return fileResult{skipped: true}
	}

	lang := language.Detect(fi.Path)
	degraded := false
	units, err := parser.Parse(ctx, fi.RelPath, src, lang)
	if err != nil {
		units = []parser.CodeUnit{parser.WholeFileUnit(fi.RelPath, string(src), lang)}
		degraded = true
		if ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "warning: parse %s: %v (indexing whole file)\n", fi.RelPath, err)
		}
	}

	chunks := chunker.Build(units, p.opts.ChunkOpts)
	enrich.Apply(units, chunks)
	summary := enrich.Summarize(fi.RelPath, lang, units)
	chunks = append(chunks, enrich.SummaryChunk(summary))

	return fileResult{chunks: chunks, degraded: degraded}
}

// embedAndStore embeds chunk texts in batches and upserts the results.
// A failed batch falls back to embedding its texts one at a time, so a
// single oversized or malformed chunk cannot sink its batch.
func (p *Pipeline) embedAndStore(ctx context.Context, collection string, chunks []chunker.Chunk, report *Report) error {
	for i := 0; i < len(chunks); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			vectors = p.embedIndividually(ctx, batch, report)
		}

		var entries []store.Entry
		for j, c := range batch {
			if vectors[j] == nil {
				continue
			}
			entries = append(entries, entryFromChunk(c, vectors[j]))
		}
		if len(entries) == 0 {
			continue
		}
		if err := p.store.Upsert(ctx, collection, entries); err != nil {
			return fmt.Errorf("store chunks: %w", err)
		}
		report.ChunksIndexed += len(entries)
	}
	return nil
}

// embedIndividually retries each chunk of a failed batch on its own.
// Chunks that still fail are counted and dropped.
func (p *Pipeline) embedIndividually(ctx context.Context, batch []chunker.Chunk, report *Report) [][]float32 {
	vectors := make([][]float32, len(batch))
	for j, c := range batch {
		if ctx.Err() != nil {
			report.ChunksFailed += len(batch) - j
			break
		}
		vecs, err := p.embedder.Embed(ctx, []string{c.Text})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: embed chunk %s (%s): %v\n", c.ID, c.Metadata.FilePath, err)
			report.ChunksFailed++
			continue
		}
		vectors[j] = vecs[0]
	}
	return vectors
}

func entryFromChunk(c chunker.Chunk, vec []float32) store.Entry {
	return store.Entry{
		ChunkID:       c.ID,
		Text:          c.Text,
		Vector:        vec,
		FilePath:      c.Metadata.FilePath,
		Language:      string(c.Metadata.Language),
		UnitType:      string(c.Metadata.UnitType),
		Name:          strings.Join(c.Metadata.Names, ", "),
		Parent:        c.Metadata.Parent,
		Signature:     c.Metadata.Signature,
		Imports:       c.Metadata.Imports,
		StartLine:     c.Metadata.StartLine,
		EndLine:       c.Metadata.EndLine,
		TokenEstimate: c.Metadata.TokenEstimate,
		Oversized:     c.Metadata.Oversized,
		Summary:       c.Metadata.Summary,
	}
}
