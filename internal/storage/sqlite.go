package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/analogtech/cofounder/internal/models"
)

// SQLiteStore implements Store on a local SQLite database. Chunk embeddings
// are stored as JSON arrays in a TEXT column; at the current library size a
// full scan plus in-memory scoring is faster than maintaining an index.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at dbPath and
// ensures the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS knowledge_chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		chunk_text TEXT NOT NULL,
		embedding TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_file_name ON knowledge_chunks(file_name);

	CREATE TABLE IF NOT EXISTS documents (
		file_name TEXT PRIMARY KEY,
		expected_chunks INTEGER NOT NULL,
		indexed_chunks INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// IsIndexed reports whether at least one chunk row exists for fileName.
func (s *SQLiteStore) IsIndexed(ctx context.Context, fileName string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM knowledge_chunks WHERE file_name = ?", fileName).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check indexed: %w", err)
	}
	return n > 0, nil
}

// InsertChunk appends one chunk row and increments the document's indexed
// count when a status row exists.
func (s *SQLiteStore) InsertChunk(ctx context.Context, fileName, text string, embedding []float64) error {
	embJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO knowledge_chunks (file_name, chunk_text, embedding) VALUES (?, ?, ?)",
		fileName, text, string(embJSON)); err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET indexed_chunks = indexed_chunks + 1, updated_at = CURRENT_TIMESTAMP WHERE file_name = ?",
		fileName); err != nil {
		return fmt.Errorf("update indexed count: %w", err)
	}
	return tx.Commit()
}

// DeleteByDocument removes all rows for fileName and returns the number of
// chunks deleted.
func (s *SQLiteStore) DeleteByDocument(ctx context.Context, fileName string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM knowledge_chunks WHERE file_name = ?", fileName)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	n, _ := res.RowsAffected()
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE file_name = ?", fileName); err != nil {
		return n, fmt.Errorf("delete document status: %w", err)
	}
	return n, nil
}

// Scan streams chunk rows to visit. With a non-empty allowedFiles only rows
// belonging to those documents are visited. Rows whose embedding fails to
// decode are skipped rather than aborting the scan.
func (s *SQLiteStore) Scan(ctx context.Context, allowedFiles []string, visit ChunkVisitor) error {
	query := "SELECT id, file_name, chunk_text, embedding, created_at FROM knowledge_chunks"
	args := make([]interface{}, 0, len(allowedFiles))
	if len(allowedFiles) > 0 {
		placeholders := make([]string, len(allowedFiles))
		for i, f := range allowedFiles {
			placeholders[i] = "?"
			args = append(args, f)
		}
		query += " WHERE file_name IN (" + strings.Join(placeholders, ", ") + ")"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("scan chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			chunk   models.Chunk
			embJSON string
		)
		if err := rows.Scan(&chunk.ID, &chunk.FileName, &chunk.Text, &embJSON, &chunk.CreatedAt); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(embJSON), &chunk.Embedding); err != nil {
			continue
		}
		if err := visit(chunk); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SetExpectedChunks records the expected chunk count for a document about to
// be ingested, resetting its indexed count to zero.
func (s *SQLiteStore) SetExpectedChunks(ctx context.Context, fileName string, expected int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (file_name, expected_chunks, indexed_chunks, updated_at)
		VALUES (?, ?, 0, CURRENT_TIMESTAMP)
		ON CONFLICT(file_name) DO UPDATE SET
			expected_chunks = excluded.expected_chunks,
			indexed_chunks = 0,
			updated_at = CURRENT_TIMESTAMP`,
		fileName, expected)
	if err != nil {
		return fmt.Errorf("set expected chunks: %w", err)
	}
	return nil
}

// Incomplete lists documents with fewer indexed chunks than expected.
func (s *SQLiteStore) Incomplete(ctx context.Context) ([]models.DocumentStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_name, expected_chunks, indexed_chunks, updated_at
		FROM documents
		WHERE indexed_chunks < expected_chunks
		ORDER BY file_name`)
	if err != nil {
		return nil, fmt.Errorf("query incomplete: %w", err)
	}
	defer rows.Close()

	var out []models.DocumentStatus
	for rows.Next() {
		var d models.DocumentStatus
		if err := rows.Scan(&d.FileName, &d.ExpectedChunks, &d.IndexedChunks, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountDocuments returns the number of distinct indexed documents.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT file_name) FROM knowledge_chunks").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// CountChunks returns the total number of chunk rows.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_chunks").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// ListDocuments returns the distinct indexed file names, sorted.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT file_name FROM knowledge_chunks ORDER BY file_name")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan document name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
