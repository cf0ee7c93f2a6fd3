package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"library-backend/internal/platform/config"
	"library-backend/internal/platform/db"
	"library-backend/internal/platform/idgen"
)

func newTestDB(t *testing.T) (*sql.DB, db.Dialect) {
	t.Helper()
	conn, d, err := db.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "catalog.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn, d))
	return conn, d
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, d := newTestDB(t)
	return NewStore(conn, d, idgen.New())
}

// fakeLoans は本IDごとの貸出状態を持つだけの LoanChecker。
type fakeLoans struct {
	mu          sync.Mutex
	outstanding map[string]bool
	err         error
}

func (f *fakeLoans) ExistsOutstandingForBook(_ context.Context, bookID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.outstanding[bookID], nil
}

func mustCreate(t *testing.T, s *Store, title, author, isbn string) *Book {
	t.Helper()
	b := &Book{Title: title, Author: author, ISBN: isbn}
	require.NoError(t, s.Create(context.Background(), b))
	return b
}
