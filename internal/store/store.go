package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/bmatcuk/doublestar/v4"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Store is the persistence layer for indexed repositories: one named
// collection of (chunk, vector, metadata) entries per repository.
type Store interface {
	// CreateCollection registers a repository's collection. Idempotent.
	CreateCollection(ctx context.Context, name string) error
	// Upsert inserts or replaces entries by chunk ID. Re-ingesting the
	// same chunk ID replaces the prior vector, text, and metadata.
	Upsert(ctx context.Context, collection string, entries []Entry) error
	// Search returns at most topK entries by descending similarity to the
	// query vector, after applying the AND-combined metadata filters.
	// Ties break on ascending chunk ID so results are deterministic.
	Search(ctx context.Context, collection string, vector []float32, topK int, f Filters) ([]SearchResult, error)
	// DeleteCollection removes a repository's entries entirely. Idempotent.
	DeleteCollection(ctx context.Context, name string) error
	// ListCollections returns all collections with their chunk counts.
	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	// ListFiles returns the files indexed in a collection.
	ListFiles(ctx context.Context, collection string) ([]FileInfo, error)
	// FileSummary returns the summary-chunk text for one file, or "".
	FileSummary(ctx context.Context, collection, path string) (string, error)
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db *sql.DB

	// Upserts and deletes on the same collection must not interleave, or
	// a concurrent ingest could resurrect deleted entries.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open creates or opens the index database at the given path.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// ValidateCollectionName rejects empty names and names carrying path
// separators, which must never reach SQL or the filesystem.
func ValidateCollectionName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}

func (s *SQLiteStore) collectionLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

func (s *SQLiteStore) hasCollection(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM collections WHERE name = ?", name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteStore) CreateCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO collections (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name)
	return err
}

func (s *SQLiteStore) Upsert(ctx context.Context, collection string, entries []Entry) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	lock := s.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	ok, err := s.hasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (
			collection, chunk_id, text, vector, file_path, language, unit_type,
			name, parent, signature, imports, start_line, end_line,
			token_estimate, oversized, summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, chunk_id) DO UPDATE SET
			text = excluded.text,
			vector = excluded.vector,
			file_path = excluded.file_path,
			language = excluded.language,
			unit_type = excluded.unit_type,
			name = excluded.name,
			parent = excluded.parent,
			signature = excluded.signature,
			imports = excluded.imports,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			token_estimate = excluded.token_estimate,
			oversized = excluded.oversized,
			summary = excluded.summary
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		blob, err := sqlite_vec.SerializeFloat32(e.Vector)
		if err != nil {
			return fmt.Errorf("serialize vector for chunk %s: %w", e.ChunkID, err)
		}
		imports, err := json.Marshal(e.Imports)
		if err != nil {
			return fmt.Errorf("marshal imports for chunk %s: %w", e.ChunkID, err)
		}
		_, err = stmt.ExecContext(ctx,
			collection, e.ChunkID, e.Text, blob, e.FilePath, e.Language, e.UnitType,
			e.Name, e.Parent, e.Signature, string(imports), e.StartLine, e.EndLine,
			e.TokenEstimate, boolInt(e.Oversized), boolInt(e.Summary),
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", e.ChunkID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Search(ctx context.Context, collection string, vector []float32, topK int, f Filters) ([]SearchResult, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	ok, err := s.hasCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}
	if topK <= 0 {
		return nil, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fmt.Errorf("serialize query vector: %w", err)
	}

	query := `
		SELECT chunk_id, text, file_path, language, unit_type, name, parent,
		       signature, imports, start_line, end_line, token_estimate,
		       oversized, summary,
		       1.0 - vec_distance_cosine(vector, ?) AS similarity
		FROM entries
		WHERE collection = ?`
	args := []any{blob, collection}

	if f.Language != "" {
		query += " AND language = ?"
		args = append(args, f.Language)
	}
	if f.UnitType != "" {
		query += " AND unit_type = ?"
		args = append(args, f.UnitType)
	}
	if f.PathPrefix != "" {
		query += " AND file_path LIKE ? ESCAPE '\\'"
		args = append(args, escapeLike(f.PathPrefix)+"%")
	}

	query += " ORDER BY similarity DESC, chunk_id ASC"
	// Glob filtering happens after the query, so only cap in SQL when no
	// glob could discard rows.
	if f.PathGlob == "" {
		query += " LIMIT ?"
		args = append(args, topK)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var importsJSON string
		var oversized, summary int
		err := rows.Scan(
			&r.Entry.ChunkID, &r.Entry.Text, &r.Entry.FilePath, &r.Entry.Language,
			&r.Entry.UnitType, &r.Entry.Name, &r.Entry.Parent, &r.Entry.Signature,
			&importsJSON, &r.Entry.StartLine, &r.Entry.EndLine,
			&r.Entry.TokenEstimate, &oversized, &summary, &r.Similarity,
		)
		if err != nil {
			return nil, err
		}
		if f.PathGlob != "" {
			match, err := doublestar.Match(f.PathGlob, r.Entry.FilePath)
			if err != nil {
				return nil, fmt.Errorf("path glob %q: %w", f.PathGlob, err)
			}
			if !match {
				continue
			}
		}
		r.Entry.Oversized = oversized != 0
		r.Entry.Summary = summary != 0
		if importsJSON != "" {
			_ = json.Unmarshal([]byte(importsJSON), &r.Entry.Imports)
		}
		results = append(results, r)
		if len(results) == topK {
			break
		}
	}
	return results, rows.Err()
}

func (s *SQLiteStore) DeleteCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	lock := s.collectionLock(name)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE collection = ?", name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, c.created_at, COUNT(e.chunk_id)
		FROM collections c
		LEFT JOIN entries e ON e.collection = c.name
		GROUP BY c.name
		ORDER BY c.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CollectionInfo
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.CreatedAt, &info.Chunks); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListFiles(ctx context.Context, collection string) ([]FileInfo, error) {
	ok, err := s.hasCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT file_path, language, COUNT(*)
		FROM entries
		WHERE collection = ?
		GROUP BY file_path, language
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileInfo
	for rows.Next() {
		var fi FileInfo
		if err := rows.Scan(&fi.Path, &fi.Language, &fi.Chunks); err != nil {
			return nil, err
		}
		out = append(out, fi)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *SQLiteStore) FileSummary(ctx context.Context, collection, path string) (string, error) {
	ok, err := s.hasCollection(ctx, collection)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}

	var text string
	err = s.db.QueryRowContext(ctx, `
		SELECT text FROM entries
		WHERE collection = ? AND file_path = ? AND summary = 1
	`, collection, path).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return text, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// escapeLike escapes SQL LIKE wildcards so a path prefix matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
