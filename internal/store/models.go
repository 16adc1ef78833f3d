package store

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCollectionName rejects repository names that could leak
	// into filesystem or SQL semantics.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrCollectionNotFound means the repository was never ingested (or
	// its collection was deleted).
	ErrCollectionNotFound = errors.New("collection not found")
)

// Entry is the persisted unit of the index: one chunk's text, vector, and
// metadata. Entries are immutable once written except for wholesale
// replacement by chunk ID or deletion of the whole collection.
type Entry struct {
	ChunkID       string
	Text          string
	Vector        []float32
	FilePath      string
	Language      string
	UnitType      string
	Name          string
	Parent        string
	Signature     string
	Imports       []string
	StartLine     int
	EndLine       int
	TokenEstimate int
	Oversized     bool
	Summary       bool
}

// Filters are AND-combined metadata predicates applied during search.
// Zero-valued fields are ignored.
type Filters struct {
	Language   string
	UnitType   string
	PathPrefix string
	PathGlob   string // doublestar pattern, e.g. "internal/**/*.go"
}

// SearchResult pairs an entry with its similarity to the query vector
// (1 − cosine distance, higher is better).
type SearchResult struct {
	Entry      Entry
	Similarity float64
}

// CollectionInfo summarizes one repository's collection.
type CollectionInfo struct {
	Name      string
	Chunks    int
	CreatedAt time.Time
}

// FileInfo summarizes one indexed file within a collection.
type FileInfo struct {
	Path     string
	Language string
	Chunks   int
}
