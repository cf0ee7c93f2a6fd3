package loans

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"library-backend/internal/catalog"
	"library-backend/internal/platform/clock"
	"library-backend/internal/platform/config"
	"library-backend/internal/platform/db"
	"library-backend/internal/platform/idgen"
	"library-backend/internal/platform/lock"
)

var today = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	conn  *sql.DB
	books *catalog.Store
	store *Store
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithLocker(t, lock.NewKeyedMutex())
}

func newFixtureWithLocker(t *testing.T, locker lock.Locker) *fixture {
	t.Helper()
	conn, d, err := db.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "loans.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn, d))

	ids := idgen.New()
	books := catalog.NewStore(conn, d, ids)
	store := NewStore(conn, d, ids)
	svc := NewService(store, books, locker, zaptest.NewLogger(t).Sugar())
	svc.clock = clock.Fixed(today)
	return &fixture{conn: conn, books: books, store: store, svc: svc}
}

func (f *fixture) addBook(t *testing.T, title, isbn string) *catalog.Book {
	t.Helper()
	b := &catalog.Book{Title: title, Author: "Author of " + title, ISBN: isbn}
	require.NoError(t, f.books.Create(context.Background(), b))
	return b
}

func (f *fixture) addLoan(t *testing.T, bookID, customer, date string, status Status) *Loan {
	t.Helper()
	l := &Loan{
		BookID:        bookID,
		CustomerName:  customer,
		CustomerEmail: customer + "@example.com",
		LoanDate:      date,
		Status:        status,
	}
	require.NoError(t, f.store.Create(context.Background(), l))
	return l
}

func daysAgo(n int) string { return clock.Date(today.AddDate(0, 0, -n)) }

// noLock はロックを取らない Locker。一意インデックスだけで守れるかを見る。
type noLock struct{}

func (noLock) Lock(context.Context, string) (func(), error) { return func() {}, nil }
