package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// filePragmas apply to on-disk stores. Session records are small and touched
// once per request, so the page cache stays at 8MB.
var filePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"cache_size(-8000)",
}

// readerConns caps the reader pool. Session lookups far outnumber writes.
const readerConns = 4

// DB holds the session store's connections: a single-connection writer so
// concurrent logins and refreshes serialize instead of failing with
// "database is locked", and a small reader pool for session lookups.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
}

// NewDB opens the session database at dbPath in WAL mode.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	return openDB(ctx, "file:"+dbPath, filePragmas)
}

func openDB(ctx context.Context, base string, pragmas []string) (*DB, error) {
	dsn := withPragmas(base, pragmas)

	writer, err := openPool(ctx, dsn, "writer", 1)
	if err != nil {
		return nil, err
	}

	reader, err := openPool(ctx, dsn, "reader", readerConns)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}

	return &DB{Writer: writer, Reader: reader}, nil
}

// withPragmas appends each pragma to base as a _pragma query parameter.
func withPragmas(base string, pragmas []string) string {
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	if len(params) == 0 {
		return base
	}

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + strings.Join(params, "&")
}

func openPool(ctx context.Context, dsn, role string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", role, err)
	}
	pool.SetMaxOpenConns(maxConns)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping %s: %w", role, err)
	}
	return pool, nil
}

// Close closes both pools and returns the first error.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}
