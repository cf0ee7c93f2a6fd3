package loans

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-backend/internal/catalog"
	"library-backend/internal/platform/apierr"
	"library-backend/internal/platform/db"
	"library-backend/internal/platform/lock"
)

func loanReq(isbn, name string) CreateLoanRequest {
	return CreateLoanRequest{ISBN: isbn, CustomerName: name, CustomerEmail: name + "@example.com"}
}

func TestService_CreateLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBook(t, "Dune", "123")

	id, err := f.svc.CreateLoan(ctx, loanReq("123", "Alice"))
	require.NoError(t, err)

	got, err := f.svc.GetLoan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.BookID)
	assert.Equal(t, "Alice", got.CustomerName)
	assert.Equal(t, "Alice@example.com", got.CustomerEmail)
	assert.Equal(t, "2024-06-15", got.LoanDate)
	assert.Equal(t, StatusOutstanding, got.Status)
	assert.False(t, got.Returned)
	require.NotNil(t, got.Book)
	assert.Equal(t, "123", got.Book.ISBN)
}

func TestService_CreateLoanErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "Dune", "123")

	_, err := f.svc.CreateLoan(ctx, loanReq("no-such-isbn", "Alice"))
	assert.ErrorIs(t, err, apierr.ErrBookNotFound)

	_, err = f.svc.CreateLoan(ctx, CreateLoanRequest{ISBN: "123", CustomerName: " "})
	assert.Equal(t, apierr.CodeInvalidArgument, apierr.CodeOf(err))

	_, err = f.svc.CreateLoan(ctx, loanReq("123", "Alice"))
	require.NoError(t, err)
	_, err = f.svc.CreateLoan(ctx, loanReq("123", "Bob"))
	assert.ErrorIs(t, err, apierr.ErrAlreadyLoaned)
}

func TestService_ReturnFlowReleasesBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "Dune", "123")

	id, err := f.svc.CreateLoan(ctx, loanReq("123", "Alice"))
	require.NoError(t, err)

	res, err := f.svc.ReturnLoan(ctx, id, true)
	require.NoError(t, err)
	assert.True(t, res.Returned)
	assert.Equal(t, StatusReturned, res.Status)

	_, err = f.svc.CreateLoan(ctx, loanReq("123", "Bob"))
	assert.NoError(t, err)
}

func TestService_ReturnLoanNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ReturnLoan(context.Background(), "nonexistent", true)
	assert.ErrorIs(t, err, apierr.ErrLoanNotFound)

	_, err = f.svc.GetLoan(context.Background(), "")
	assert.ErrorIs(t, err, apierr.ErrLoanNotFound)
}

func TestService_ReopenLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "Dune", "123")

	first, err := f.svc.CreateLoan(ctx, loanReq("123", "Alice"))
	require.NoError(t, err)
	_, err = f.svc.ReturnLoan(ctx, first, true)
	require.NoError(t, err)

	// 他に貸出が無ければ未返却に戻せる
	res, err := f.svc.ReturnLoan(ctx, first, false)
	require.NoError(t, err)
	assert.Equal(t, StatusOutstanding, res.Status)

	// 返却 -> 別の人が借りる -> 元の貸出を戻そうとすると拒否
	_, err = f.svc.ReturnLoan(ctx, first, true)
	require.NoError(t, err)
	_, err = f.svc.CreateLoan(ctx, loanReq("123", "Bob"))
	require.NoError(t, err)
	_, err = f.svc.ReturnLoan(ctx, first, false)
	assert.ErrorIs(t, err, apierr.ErrAlreadyLoaned)

	// 未返却のものに returned=false は何も変えない
	list, err := f.svc.FindLoans(ctx, LoanFilter{Customer: "Bob"}, db.Page{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	again, err := f.svc.ReturnLoan(ctx, list.Items[0].ID, false)
	require.NoError(t, err)
	assert.Equal(t, StatusOutstanding, again.Status)
}

func TestService_ConcurrentCreateLoanSingleWinner(t *testing.T) {
	for name, f := range map[string]*fixture{
		"keyed lock": newFixture(t),
		"index only": newFixtureWithLocker(t, noLock{}),
	} {
		t.Run(name, func(t *testing.T) {
			f.addBook(t, "Dune", "123")

			const n = 16
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				winners  int
				otherErr []error
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := f.svc.CreateLoan(context.Background(), loanReq("123", "customer"))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						winners++
					case errors.Is(err, apierr.ErrAlreadyLoaned):
					default:
						otherErr = append(otherErr, err)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, winners)
			assert.Empty(t, otherErr)

			res, err := f.svc.FindLoans(context.Background(), LoanFilter{ISBN: "123"}, db.Page{})
			require.NoError(t, err)
			assert.Equal(t, int64(1), res.Total)
		})
	}
}

func TestService_DifferentBooksDoNotContend(t *testing.T) {
	f := newFixture(t)
	isbns := []string{"1", "2", "3", "4", "5"}
	for _, isbn := range isbns {
		f.addBook(t, "Vol "+isbn, isbn)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(isbns))
	for i, isbn := range isbns {
		wg.Add(1)
		go func(i int, isbn string) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateLoan(context.Background(), loanReq(isbn, "reader"))
		}(i, isbn)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestService_FindLoansAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.addBook(t, "Dune", "123")
	f.addBook(t, "Hyperion", "456")

	id1, err := f.svc.CreateLoan(ctx, loanReq("123", "Alice"))
	require.NoError(t, err)
	_, err = f.svc.ReturnLoan(ctx, id1, true)
	require.NoError(t, err)
	_, err = f.svc.CreateLoan(ctx, loanReq("123", "Bob"))
	require.NoError(t, err)
	_, err = f.svc.CreateLoan(ctx, loanReq("456", "Alice"))
	require.NoError(t, err)

	res, err := f.svc.FindLoans(ctx, LoanFilter{Customer: "Alice"}, db.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	for _, it := range res.Items {
		require.NotNil(t, it.Book)
		assert.Equal(t, it.BookID, it.Book.ID)
	}

	hist, err := f.svc.LoansByBook(ctx, dune.ID, db.Page{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), hist.Total)
	assert.Len(t, hist.Items, 1)
	assert.Equal(t, 1, hist.NextOffset)

	_, err = f.svc.LoansByBook(ctx, "missing", db.Page{})
	assert.ErrorIs(t, err, apierr.ErrBookNotFound)
}

// deletingFinder は ISBN で本を引いた直後に、その本を削除する。
type deletingFinder struct {
	*catalog.Store
	svc *catalog.Service
	t   *testing.T
}

func (d *deletingFinder) FindByIsbn(ctx context.Context, isbn string) (*catalog.Book, error) {
	b, err := d.Store.FindByIsbn(ctx, isbn)
	if err != nil || b == nil {
		return b, err
	}
	require.NoError(d.t, d.svc.DeleteBook(ctx, b.ID))
	return b, nil
}

func TestService_CreateLoanBookDeletedBeforeLock(t *testing.T) {
	locker := lock.NewKeyedMutex()
	f := newFixtureWithLocker(t, locker)
	ctx := context.Background()
	b := f.addBook(t, "Dune", "123")

	books := catalog.NewService(f.books, f.store, locker, nil)
	f.svc.books = &deletingFinder{Store: f.books, svc: books, t: t}

	_, err := f.svc.CreateLoan(ctx, loanReq("123", "Alice"))
	assert.ErrorIs(t, err, apierr.ErrBookNotFound)

	out, err := f.store.ExistsOutstandingForBook(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, out)
}

func TestService_ReturnLoanUnchangedStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBook(t, "Dune", "123")

	id, err := f.svc.CreateLoan(ctx, loanReq("123", "Alice"))
	require.NoError(t, err)
	_, err = f.svc.ReturnLoan(ctx, id, true)
	require.NoError(t, err)

	// 2回目の返却はそのまま
	res, err := f.svc.ReturnLoan(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, res.Status)

	stored, err := f.store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, stored.Status)
}
