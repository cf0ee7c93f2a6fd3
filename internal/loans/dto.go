package loans

import "library-backend/internal/catalog"

// ===== Requests =====

type CreateLoanRequest struct {
	ISBN          string `json:"isbn" binding:"required"`
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
}

type ReturnLoanRequest struct {
	Returned *bool `json:"returned" binding:"required"`
}

// ===== Responses =====

type CreateLoanResponse struct {
	ID string `json:"id"`
}

type LoanResponse struct {
	ID            string                `json:"id"`
	Book          *catalog.BookResponse `json:"book,omitempty"`
	BookID        string                `json:"book_id"`
	CustomerName  string                `json:"customer_name"`
	CustomerEmail string                `json:"customer_email"`
	LoanDate      string                `json:"loan_date"`
	Status        Status                `json:"status"`
	Returned      bool                  `json:"returned"`
}

type ListLoansResult struct {
	Items      []LoanResponse `json:"items"`
	Total      int64          `json:"total"`
	NextOffset int            `json:"next_offset"`
}

func toResponse(l Loan, b *catalog.Book) LoanResponse {
	res := LoanResponse{
		ID:            l.ID,
		BookID:        l.BookID,
		CustomerName:  l.CustomerName,
		CustomerEmail: l.CustomerEmail,
		LoanDate:      l.LoanDate,
		Status:        l.Status,
		Returned:      l.Returned(),
	}
	if b != nil {
		br := catalog.ToResponse(*b)
		res.Book = &br
	}
	return res
}
