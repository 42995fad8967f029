package sqlite

import (
	"context"
	"net/url"
	"testing"
)

// memoryPragmas omits journal_mode; WAL does not apply to in-memory databases.
var memoryPragmas = []string{"busy_timeout(5000)", "synchronous(NORMAL)"}

// setupTestDB creates a named shared in-memory SQLite database with the
// kv_entries schema applied. The database name is derived from t.Name() so
// parallel tests stay isolated.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	base := "file:" + url.PathEscape(t.Name()) + "?mode=memory&cache=shared"
	db, err := openDB(context.Background(), base, memoryPragmas)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}
