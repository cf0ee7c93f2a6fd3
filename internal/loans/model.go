package loans

import "library-backend/internal/catalog"

// Status は貸出の状態。未返却 / 返却済みの2値のみ。
type Status string

const (
	StatusOutstanding Status = "OUTSTANDING"
	StatusReturned    Status = "RETURNED"
)

func StatusFor(returned bool) Status {
	if returned {
		return StatusReturned
	}
	return StatusOutstanding
}

type Loan struct {
	ID            string
	BookID        string
	CustomerName  string
	CustomerEmail string
	LoanDate      string // DATEを文字列で扱う（"2006-01-02"）
	Status        Status
}

func (l Loan) Returned() bool { return l.Status == StatusReturned }

// LoanWithBook は一覧表示用。本が削除済みなら Book は nil。
type LoanWithBook struct {
	Loan
	Book *catalog.Book
}

// LoanFilter は ISBN 一致 OR 顧客名一致。両方空なら全件。
type LoanFilter struct {
	ISBN     string
	Customer string
}
