package db

import (
	"context"
	"database/sql"
	"fmt"
)

// loans.outstanding_book_id は status='OUTSTANDING' の行だけ book_id を持つ生成列。
// 一意キーで「1冊につき未返却の貸出は1件まで」をDB側でも担保する。
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id         CHAR(26)     NOT NULL,
		title      VARCHAR(255) NOT NULL,
		author     VARCHAR(255) NOT NULL,
		isbn       VARCHAR(32)  NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_books_isbn (isbn)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS loans (
		id                  CHAR(26)     NOT NULL,
		book_id             CHAR(26)     NOT NULL,
		customer_name       VARCHAR(255) NOT NULL,
		customer_email      VARCHAR(255) NOT NULL,
		loan_date           CHAR(10)     NOT NULL,
		status              VARCHAR(16)  NOT NULL,
		outstanding_book_id CHAR(26) AS (CASE WHEN status = 'OUTSTANDING' THEN book_id END) STORED,
		PRIMARY KEY (id),
		UNIQUE KEY uq_loans_outstanding (outstanding_book_id),
		KEY idx_loans_book (book_id),
		KEY idx_loans_customer (customer_name),
		KEY idx_loans_status_date (status, loan_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id     CHAR(26)     NOT NULL PRIMARY KEY,
		title  VARCHAR(255) NOT NULL,
		author VARCHAR(255) NOT NULL,
		isbn   VARCHAR(32)  NOT NULL,
		CONSTRAINT uq_books_isbn UNIQUE (isbn)
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id             CHAR(26)     NOT NULL PRIMARY KEY,
		book_id        CHAR(26)     NOT NULL,
		customer_name  VARCHAR(255) NOT NULL,
		customer_email VARCHAR(255) NOT NULL,
		loan_date      CHAR(10)     NOT NULL,
		status         VARCHAR(16)  NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_loans_outstanding ON loans (book_id) WHERE status = 'OUTSTANDING'`,
	`CREATE INDEX IF NOT EXISTS idx_loans_book ON loans (book_id)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_customer ON loans (customer_name)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_status_date ON loans (status, loan_date)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id     TEXT NOT NULL PRIMARY KEY,
		title  TEXT NOT NULL,
		author TEXT NOT NULL,
		isbn   TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id             TEXT NOT NULL PRIMARY KEY,
		book_id        TEXT NOT NULL,
		customer_name  TEXT NOT NULL,
		customer_email TEXT NOT NULL,
		loan_date      TEXT NOT NULL,
		status         TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_loans_outstanding ON loans (book_id) WHERE status = 'OUTSTANDING'`,
	`CREATE INDEX IF NOT EXISTS idx_loans_book ON loans (book_id)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_customer ON loans (customer_name)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_status_date ON loans (status, loan_date)`,
}

// Migrate はテーブルが無ければ作成する。何度実行してもよい。
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	var stmts []string
	switch d {
	case MySQL:
		stmts = mysqlSchema
	case Postgres:
		stmts = postgresSchema
	default:
		stmts = sqliteSchema
	}
	for i, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
