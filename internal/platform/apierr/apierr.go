package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// -------------- Error model & mapping --------------

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeDuplicateIsbn   Code = "DUPLICATE_ISBN"
	CodeBookNotFound    Code = "BOOK_NOT_FOUND"
	CodeLoanNotFound    Code = "LOAN_NOT_FOUND"
	CodeAlreadyLoaned   Code = "ALREADY_LOANED"
	CodeBookOnLoan      Code = "BOOK_ON_LOAN" // 未返却の貸出がある本の削除
	CodeScanInProgress  Code = "SCAN_IN_PROGRESS"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Is はコードが一致すれば同じエラーとみなす（メッセージは問わない）。
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

var (
	ErrDuplicateIsbn  = &APIError{Code: CodeDuplicateIsbn, Message: "ISBN exists."}
	ErrBookNotFound   = &APIError{Code: CodeBookNotFound, Message: "Book not found."}
	ErrLoanNotFound   = &APIError{Code: CodeLoanNotFound, Message: "Loan not found."}
	ErrAlreadyLoaned  = &APIError{Code: CodeAlreadyLoaned, Message: "Book already loaned."}
	ErrBookOnLoan     = &APIError{Code: CodeBookOnLoan, Message: "Book has an outstanding loan."}
	ErrScanInProgress = &APIError{Code: CodeScanInProgress, Message: "Overdue scan already running."}
)

func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

// CodeOf は err に含まれる APIError のコード。無ければ INTERNAL。
func CodeOf(err error) Code {
	var api *APIError
	if errors.As(err, &api) {
		return api.Code
	}
	return CodeInternal
}

func ToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeBookNotFound, CodeLoanNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument, CodeDuplicateIsbn, CodeAlreadyLoaned, CodeBookOnLoan:
		return http.StatusBadRequest
	case CodeScanInProgress:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
