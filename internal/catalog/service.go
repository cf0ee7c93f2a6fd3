package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"library-backend/internal/platform/apierr"
	"library-backend/internal/platform/db"
	"library-backend/internal/platform/lock"
)

// LoanChecker は削除前に未返却の貸出があるかを確認する。
type LoanChecker interface {
	ExistsOutstandingForBook(ctx context.Context, bookID string) (bool, error)
}

type Service struct {
	store  *Store
	loans  LoanChecker
	locker lock.Locker
	log    *zap.SugaredLogger
}

func NewService(store *Store, loans LoanChecker, locker lock.Locker, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{store: store, loans: loans, locker: locker, log: log}
}

// POST /books
func (s *Service) CreateBook(ctx context.Context, in CreateBookRequest) (BookResponse, error) {
	b := &Book{
		Title:  strings.TrimSpace(in.Title),
		Author: strings.TrimSpace(in.Author),
		ISBN:   strings.TrimSpace(in.ISBN),
	}
	if b.Title == "" || b.Author == "" || b.ISBN == "" {
		return BookResponse{}, apierr.ErrInvalid("Book invalid")
	}
	if err := s.store.Create(ctx, b); err != nil {
		return BookResponse{}, err
	}
	s.log.Infow("book created", "book_id", b.ID, "isbn", b.ISBN)
	return ToResponse(*b), nil
}

func (s *Service) GetBook(ctx context.Context, id string) (BookResponse, error) {
	b, err := s.mustFind(ctx, id)
	if err != nil {
		return BookResponse{}, err
	}
	return ToResponse(*b), nil
}

// PUT /books/:id
func (s *Service) UpdateBook(ctx context.Context, id string, in UpdateBookRequest) (BookResponse, error) {
	b, err := s.mustFind(ctx, id)
	if err != nil {
		return BookResponse{}, err
	}
	if in.Title != nil {
		if v := strings.TrimSpace(*in.Title); v != "" {
			b.Title = v
		} else {
			return BookResponse{}, apierr.ErrInvalid("title must not be empty")
		}
	}
	if in.Author != nil {
		if v := strings.TrimSpace(*in.Author); v != "" {
			b.Author = v
		} else {
			return BookResponse{}, apierr.ErrInvalid("author must not be empty")
		}
	}
	if err := s.store.Update(ctx, b); err != nil {
		return BookResponse{}, err
	}
	return ToResponse(*b), nil
}

// DELETE /books/:id
// 未返却の貸出がある本は消さない。貸出登録と同じロックを取って判定と削除を直列化する。
func (s *Service) DeleteBook(ctx context.Context, id string) error {
	b, err := s.mustFind(ctx, id)
	if err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, lock.BookKey(b.ID))
	if err != nil {
		return err
	}
	defer unlock()

	onLoan, err := s.loans.ExistsOutstandingForBook(ctx, b.ID)
	if err != nil {
		return err
	}
	if onLoan {
		return apierr.ErrBookOnLoan
	}
	if err := s.store.Delete(ctx, b); err != nil {
		return err
	}
	s.log.Infow("book deleted", "book_id", b.ID, "isbn", b.ISBN)
	return nil
}

func (s *Service) SearchBooks(ctx context.Context, f BookFilter, p db.Page) (ListBooksResult, error) {
	books, total, err := s.store.Search(ctx, f, p)
	if err != nil {
		return ListBooksResult{}, err
	}
	items := make([]BookResponse, 0, len(books))
	for _, b := range books {
		items = append(items, ToResponse(b))
	}
	return ListBooksResult{Items: items, Total: total, NextOffset: db.NextOffset(p, total)}, nil
}

func (s *Service) mustFind(ctx context.Context, id string) (*Book, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apierr.ErrInvalid("Book invalid")
	}
	b, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apierr.ErrBookNotFound
	}
	return b, nil
}
