package loans

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"library-backend/internal/catalog"
	"library-backend/internal/platform/apierr"
	"library-backend/internal/platform/clock"
	"library-backend/internal/platform/db"
	"library-backend/internal/platform/idgen"
)

type Store struct {
	db      *sql.DB
	dialect db.Dialect
	clock   clock.Clock
	id      idgen.IDGen
}

func NewStore(conn *sql.DB, dialect db.Dialect, ids idgen.IDGen) *Store {
	return &Store{db: conn, dialect: dialect, clock: clock.Real{}, id: ids}
}

// Create は業務チェックをしない。未返却の貸出が既にある本への登録は
// 一意インデックス違反となり AlreadyLoaned を返す。
func (s *Store) Create(ctx context.Context, l *Loan) error {
	id := s.id.NewULID(s.clock.Now())
	const q = `
	INSERT INTO loans
	(id, book_id, customer_name, customer_email, loan_date, status)
	VALUES
	(?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(q),
		id, l.BookID, l.CustomerName, l.CustomerEmail, l.LoanDate, string(l.Status),
	); err != nil {
		if db.IsDuplicateKey(err) {
			return apierr.ErrAlreadyLoaned
		}
		return err
	}
	l.ID = id
	return nil
}

// FindByID は見つからなければ nil, nil を返す。
func (s *Store) FindByID(ctx context.Context, id string) (*Loan, error) {
	const q = `
	SELECT id, book_id, customer_name, customer_email, loan_date, status
	FROM loans WHERE id = ?`
	var (
		l      Loan
		status string
	)
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(q), id).Scan(
		&l.ID, &l.BookID, &l.CustomerName, &l.CustomerEmail, &l.LoanDate, &status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	l.Status = Status(status)
	return &l, nil
}

// Save は全項目を書き戻す（実際に変わるのは status のみ）。
func (s *Store) Save(ctx context.Context, l *Loan) error {
	if l == nil || strings.TrimSpace(l.ID) == "" {
		return apierr.ErrInvalid("Loan invalid")
	}
	const q = `
	UPDATE loans
	SET book_id = ?, customer_name = ?, customer_email = ?, loan_date = ?, status = ?
	WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(q),
		l.BookID, l.CustomerName, l.CustomerEmail, l.LoanDate, string(l.Status), l.ID,
	); err != nil {
		if db.IsDuplicateKey(err) {
			return apierr.ErrAlreadyLoaned
		}
		return err
	}
	return nil
}

func (s *Store) ExistsOutstandingForBook(ctx context.Context, bookID string) (bool, error) {
	const q = `SELECT COUNT(*) FROM loans WHERE book_id = ? AND status = ?`
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.Rebind(q), bookID, string(StatusOutstanding)).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindByIsbnOrCustomer は本の ISBN が一致する OR 顧客名が一致する貸出を返す。
// 空の条件は使わない。両方空なら全件。
func (s *Store) FindByIsbnOrCustomer(ctx context.Context, isbn, customerName string, p db.Page) ([]LoanWithBook, int64, error) {
	var ors []goqu.Expression
	if v := strings.TrimSpace(isbn); v != "" {
		ors = append(ors, goqu.Ex{"b.isbn": v})
	}
	if v := strings.TrimSpace(customerName); v != "" {
		ors = append(ors, goqu.Ex{"l.customer_name": v})
	}
	ds := s.withBook()
	if len(ors) > 0 {
		ds = ds.Where(goqu.Or(ors...))
	}
	return s.list(ctx, ds, p)
}

// FindByBook は本の貸出履歴。
func (s *Store) FindByBook(ctx context.Context, bookID string, p db.Page) ([]LoanWithBook, int64, error) {
	return s.list(ctx, s.withBook().Where(goqu.Ex{"l.book_id": bookID}), p)
}

// FindOverdue は cutoff より前に貸し出されて未返却のものを全件返す。
func (s *Store) FindOverdue(ctx context.Context, cutoff time.Time) ([]Loan, error) {
	const q = `
	SELECT id, book_id, customer_name, customer_email, loan_date, status
	FROM loans
	WHERE status = ? AND loan_date < ?
	ORDER BY loan_date ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(q), string(StatusOutstanding), clock.Date(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Loan
	for rows.Next() {
		var (
			l      Loan
			status string
		)
		if err := rows.Scan(&l.ID, &l.BookID, &l.CustomerName, &l.CustomerEmail, &l.LoanDate, &status); err != nil {
			return nil, err
		}
		l.Status = Status(status)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// 本は削除されている可能性があるので LEFT JOIN
func (s *Store) withBook() *goqu.SelectDataset {
	return s.dialect.Builder().
		From(goqu.T("loans").As("l")).
		LeftJoin(goqu.T("books").As("b"), goqu.On(goqu.Ex{"b.id": goqu.I("l.book_id")}))
}

func (s *Store) list(ctx context.Context, ds *goqu.SelectDataset, p db.Page) ([]LoanWithBook, int64, error) {
	p = p.Normalize()

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := goqu.I("l.id").Asc()
	if p.Order == "desc" {
		order = goqu.I("l.id").Desc()
	}
	q, args, err := ds.Select(
		goqu.I("l.id"), goqu.I("l.book_id"), goqu.I("l.customer_name"), goqu.I("l.customer_email"),
		goqu.I("l.loan_date"), goqu.I("l.status"),
		goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author"), goqu.I("b.isbn"),
	).
		Order(order).
		Limit(uint(p.Limit)).
		Offset(uint(p.Offset)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []LoanWithBook
	for rows.Next() {
		var (
			r                            LoanWithBook
			status                       string
			bookID, title, author, isbnV sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.BookID, &r.CustomerName, &r.CustomerEmail, &r.LoanDate, &status,
			&bookID, &title, &author, &isbnV,
		); err != nil {
			return nil, 0, err
		}
		r.Status = Status(status)
		if bookID.Valid {
			r.Book = &catalog.Book{ID: bookID.String, Title: title.String, Author: author.String, ISBN: isbnV.String}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
