package loans

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"library-backend/internal/catalog"
	"library-backend/internal/platform/apierr"
	"library-backend/internal/platform/clock"
	"library-backend/internal/platform/db"
	"library-backend/internal/platform/lock"
	"library-backend/internal/platform/metrics"
)

// BookFinder は貸出時に本を引く（catalog.Store が満たす）。
type BookFinder interface {
	FindByID(ctx context.Context, id string) (*catalog.Book, error)
	FindByIsbn(ctx context.Context, isbn string) (*catalog.Book, error)
}

// -------------- Service --------------

type Service struct {
	store  *Store
	books  BookFinder
	locker lock.Locker
	clock  clock.Clock
	log    *zap.SugaredLogger
}

func NewService(store *Store, books BookFinder, locker lock.Locker, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{
		store:  store,
		books:  books,
		locker: locker,
		clock:  clock.Real{},
		log:    log,
	}
}

// POST /loans
//
// 本ごとのロック内で「未返却の貸出があるか」の確認と登録を行う。
// ロックを持たない別プロセスと競合した場合も一意インデックスで AlreadyLoaned になる。
func (s *Service) CreateLoan(ctx context.Context, in CreateLoanRequest) (string, error) {
	isbn := strings.TrimSpace(in.ISBN)
	name := strings.TrimSpace(in.CustomerName)
	email := strings.TrimSpace(in.CustomerEmail)
	if isbn == "" || name == "" || email == "" {
		return "", apierr.ErrInvalid("isbn, customer_name and customer_email required")
	}

	book, err := s.books.FindByIsbn(ctx, isbn)
	if err != nil {
		return "", err
	}
	if book == nil {
		metrics.LoanRejections.WithLabelValues("book_not_found").Inc()
		return "", apierr.ErrBookNotFound
	}

	unlock, err := s.locker.Lock(ctx, lock.BookKey(book.ID))
	if err != nil {
		return "", err
	}
	defer unlock()

	// ロック待ちの間に本が削除されていないか確認する
	if book, err = s.books.FindByID(ctx, book.ID); err != nil {
		return "", err
	}
	if book == nil {
		metrics.LoanRejections.WithLabelValues("book_not_found").Inc()
		return "", apierr.ErrBookNotFound
	}

	out, err := s.store.ExistsOutstandingForBook(ctx, book.ID)
	if err != nil {
		return "", err
	}
	if out {
		metrics.LoanRejections.WithLabelValues("already_loaned").Inc()
		return "", apierr.ErrAlreadyLoaned
	}

	l := &Loan{
		BookID:        book.ID,
		CustomerName:  name,
		CustomerEmail: email,
		LoanDate:      clock.Date(s.clock.Now()),
		Status:        StatusOutstanding,
	}
	if err := s.store.Create(ctx, l); err != nil {
		if apierr.CodeOf(err) == apierr.CodeAlreadyLoaned {
			metrics.LoanRejections.WithLabelValues("already_loaned").Inc()
		}
		return "", err
	}

	metrics.LoansCreated.Inc()
	s.log.Infow("loan created", "loan_id", l.ID, "book_id", book.ID, "isbn", book.ISBN, "customer", name)
	return l.ID, nil
}

// PATCH /loans/:id
//
// returned=false で返却済みを未返却に戻す場合は、貸出登録と同じロックの中で
// 他に未返却の貸出が無いことを確認する。
func (s *Service) ReturnLoan(ctx context.Context, id string, returned bool) (LoanResponse, error) {
	l, err := s.mustFind(ctx, id)
	if err != nil {
		return LoanResponse{}, err
	}

	target := StatusFor(returned)
	if target == StatusOutstanding && l.Status != StatusOutstanding {
		unlock, err := s.locker.Lock(ctx, lock.BookKey(l.BookID))
		if err != nil {
			return LoanResponse{}, err
		}
		defer unlock()

		// ロック取得までの間に変わっている可能性があるので読み直す
		if l, err = s.mustFind(ctx, id); err != nil {
			return LoanResponse{}, err
		}
		if l.Status != StatusOutstanding {
			out, err := s.store.ExistsOutstandingForBook(ctx, l.BookID)
			if err != nil {
				return LoanResponse{}, err
			}
			if out {
				metrics.LoanRejections.WithLabelValues("already_loaned").Inc()
				return LoanResponse{}, apierr.ErrAlreadyLoaned
			}
		}
	}

	// 状態が変わらないなら書き戻さない（古い読み取り結果で上書きしない）
	if l.Status != target {
		l.Status = target
		if err := s.store.Save(ctx, l); err != nil {
			return LoanResponse{}, err
		}
		if target == StatusReturned {
			metrics.LoansReturned.Inc()
		}
		s.log.Infow("loan updated", "loan_id", l.ID, "book_id", l.BookID, "status", l.Status)
	}

	book, err := s.books.FindByID(ctx, l.BookID)
	if err != nil {
		return LoanResponse{}, err
	}
	return toResponse(*l, book), nil
}

func (s *Service) GetLoan(ctx context.Context, id string) (LoanResponse, error) {
	l, err := s.mustFind(ctx, id)
	if err != nil {
		return LoanResponse{}, err
	}
	book, err := s.books.FindByID(ctx, l.BookID)
	if err != nil {
		return LoanResponse{}, err
	}
	return toResponse(*l, book), nil
}

// GET /loans?isbn=&customer=
func (s *Service) FindLoans(ctx context.Context, f LoanFilter, p db.Page) (ListLoansResult, error) {
	rows, total, err := s.store.FindByIsbnOrCustomer(ctx, f.ISBN, f.Customer, p)
	if err != nil {
		return ListLoansResult{}, err
	}
	return listResult(rows, total, p), nil
}

// GET /books/:id/loans
func (s *Service) LoansByBook(ctx context.Context, bookID string, p db.Page) (ListLoansResult, error) {
	book, err := s.books.FindByID(ctx, bookID)
	if err != nil {
		return ListLoansResult{}, err
	}
	if book == nil {
		return ListLoansResult{}, apierr.ErrBookNotFound
	}
	rows, total, err := s.store.FindByBook(ctx, book.ID, p)
	if err != nil {
		return ListLoansResult{}, err
	}
	return listResult(rows, total, p), nil
}

func (s *Service) mustFind(ctx context.Context, id string) (*Loan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apierr.ErrLoanNotFound
	}
	l, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, apierr.ErrLoanNotFound
	}
	return l, nil
}

func listResult(rows []LoanWithBook, total int64, p db.Page) ListLoansResult {
	items := make([]LoanResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, toResponse(r.Loan, r.Book))
	}
	return ListLoansResult{Items: items, Total: total, NextOffset: db.NextOffset(p, total)}
}
