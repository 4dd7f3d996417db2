// Package repository declares the persistence contracts the catalog service
// depends on. The sqlite subpackage implements them.
package repository

import (
	"context"

	"github.com/sakif/biblioteca/internal/model"
)

// BookFilter narrows the books listing. The zero value lists every book.
type BookFilter struct {
	Program  string // exact match on carrera
	Location string // exact match on ubicacion
	Search   string // substring of title or author
}

// LoanFilter narrows the loans listing. The zero value lists every loan.
type LoanFilter struct {
	BookID   int64
	Borrower string // substring of the borrower name
}

type BookRepository interface {
	CreateBook(ctx context.Context, book *model.Book) error
	GetBook(ctx context.Context, id int64) (*model.Book, error)
	// DeleteBook removes the book and its loans in one transaction and reports
	// how many books and loans were deleted. A missing id deletes nothing.
	DeleteBook(ctx context.Context, id int64) (books, loans int64, err error)
	ListBooks(ctx context.Context, filter BookFilter) ([]model.BookWithLatestLoan, error)
}

type LoanRepository interface {
	CreateLoan(ctx context.Context, loan *model.Loan) error
	// MarkLatestReturned flips the unreturned loan with the greatest id for
	// bookID. It returns the number of rows changed: 0 or 1.
	MarkLatestReturned(ctx context.Context, bookID int64) (int64, error)
	ListLoans(ctx context.Context, filter LoanFilter) ([]model.LoanDetail, error)
}

// CatalogRepository is the full store surface used by the catalog service.
type CatalogRepository interface {
	BookRepository
	LoanRepository
}
