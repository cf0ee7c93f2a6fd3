package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"

	"library-backend/internal/platform/apierr"
	"library-backend/internal/platform/clock"
	"library-backend/internal/platform/db"
	"library-backend/internal/platform/idgen"
)

var bookColumns = []any{"id", "title", "author", "isbn"}

type Store struct {
	db      *sql.DB
	dialect db.Dialect
	clock   clock.Clock
	id      idgen.IDGen
}

func NewStore(conn *sql.DB, dialect db.Dialect, ids idgen.IDGen) *Store {
	return &Store{db: conn, dialect: dialect, clock: clock.Real{}, id: ids}
}

// Create は ISBN の重複を確認してから登録する。ID はここで払い出す。
// 確認と INSERT の間に割り込まれた場合も一意キー違反で DuplicateIsbn になる。
func (s *Store) Create(ctx context.Context, b *Book) error {
	id := s.id.NewULID(s.clock.Now())
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var n int
		if err := tx.QueryRowContext(ctx, s.dialect.Rebind(`SELECT COUNT(*) FROM books WHERE isbn = ?`), b.ISBN).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return apierr.ErrDuplicateIsbn
		}

		const q = `INSERT INTO books (id, title, author, isbn) VALUES (?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(q), id, b.Title, b.Author, b.ISBN); err != nil {
			if db.IsDuplicateKey(err) {
				return apierr.ErrDuplicateIsbn
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

// FindByID は見つからなければ nil, nil を返す。
func (s *Store) FindByID(ctx context.Context, id string) (*Book, error) {
	return s.findOne(ctx, `SELECT id, title, author, isbn FROM books WHERE id = ?`, id)
}

// FindByIsbn は見つからなければ nil, nil を返す。
func (s *Store) FindByIsbn(ctx context.Context, isbn string) (*Book, error) {
	return s.findOne(ctx, `SELECT id, title, author, isbn FROM books WHERE isbn = ?`, isbn)
}

func (s *Store) findOne(ctx context.Context, q string, arg any) (*Book, error) {
	var b Book
	if err := s.db.QueryRowContext(ctx, s.dialect.Rebind(q), arg).Scan(&b.ID, &b.Title, &b.Author, &b.ISBN); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// Update は title / author を書き換える。ISBN は変更しない。
func (s *Store) Update(ctx context.Context, b *Book) error {
	if b == nil || strings.TrimSpace(b.ID) == "" {
		return apierr.ErrInvalid("Book invalid")
	}
	const q = `UPDATE books SET title = ?, author = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(q), b.Title, b.Author, b.ID); err != nil {
		return err
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, b *Book) error {
	if b == nil || strings.TrimSpace(b.ID) == "" {
		return apierr.ErrInvalid("Book invalid")
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM books WHERE id = ?`), b.ID); err != nil {
		return err
	}
	return nil
}

// filterExpressions は BookFilter を WHERE 条件に変換する。
func filterExpressions(f BookFilter) []goqu.Expression {
	exprs := make([]goqu.Expression, 0, 3)
	add := func(col, term string) {
		if strings.TrimSpace(term) == "" {
			return
		}
		exprs = append(exprs, goqu.L(fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '!'", col), LikePattern(term)))
	}
	add("title", f.Title)
	add("author", f.Author)
	add("isbn", f.ISBN)
	return exprs
}

// Search は部分一致検索（大文字小文字を区別しない）。ページと総件数を返す。
func (s *Store) Search(ctx context.Context, f BookFilter, p db.Page) ([]Book, int64, error) {
	p = p.Normalize()
	ds := s.dialect.Builder().From("books")
	if !f.IsEmpty() {
		ds = ds.Where(filterExpressions(f)...)
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := goqu.I("id").Asc()
	if p.Order == "desc" {
		order = goqu.I("id").Desc()
	}
	q, args, err := ds.Select(bookColumns...).
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

	var out []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN); err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
