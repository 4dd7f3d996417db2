// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, validates forms, writes responses
//	Service (Business layer) → enforces catalog rules, derives status
//	Repository (Data layer)  → reads/writes biblioteca.db
//
// CatalogService receives a repository.CatalogRepository (interface), never a
// *sqlite.DB. Tests pass an in-memory fake; main.go passes the real store.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/biblioteca/internal/apperror"
	"github.com/sakif/biblioteca/internal/model"
	"github.com/sakif/biblioteca/internal/repository"
)

// Operation names reported to the OperationObserver and written to the logs.
const (
	OpAddBook      = "add_book"
	OpRemoveBook   = "remove_book"
	OpRegisterLoan = "register_loan"
	OpMarkReturned = "mark_returned"
	OpListBooks    = "list_books"
	OpListLoans    = "list_loans"
)

// OperationObserver is told the outcome of every catalog operation.
// The metrics package implements it; nil means nobody is listening.
type OperationObserver interface {
	ObserveOperation(op string, err error)
	ObserveOverdue(count int)
}

// NewBook carries the add-book form values. Year, Program and Location are optional.
type NewBook struct {
	Title    string
	Author   string
	Year     *int64
	Program  string
	Location string
}

// CatalogService implements the library operations on top of the store.
// It holds no state between calls besides its collaborators.
type CatalogService struct {
	repo     repository.CatalogRepository
	clock    Clock
	observer OperationObserver
	logger   *slog.Logger
}

// NewCatalogService wires the service. A nil clock means the system clock.
func NewCatalogService(repo repository.CatalogRepository, clock Clock, observer OperationObserver, logger *slog.Logger) *CatalogService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CatalogService{
		repo:     repo,
		clock:    clock,
		observer: observer,
		logger:   logger,
	}
}

// AddBook stores a new book and returns it with its generated id.
//
// The form layer already rejected empty input; the checks here only protect
// the NOT NULL columns from blank strings. Duplicates are accepted.
func (s *CatalogService) AddBook(ctx context.Context, in NewBook) (book *model.Book, err error) {
	defer s.observe(OpAddBook, &err)

	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if author == "" {
		return nil, apperror.ValidationFailed("author", "author is required")
	}

	book = &model.Book{
		Title:    title,
		Author:   author,
		Year:     in.Year,
		Program:  optional(in.Program),
		Location: optional(in.Location),
	}

	if err := s.repo.CreateBook(ctx, book); err != nil {
		s.logger.Error("failed to add book",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("adding book: %w", err)
	}

	s.logger.Info("book added",
		slog.Int64("id", book.ID),
		slog.String("title", book.Title),
	)
	return book, nil
}

// GetBook returns one book; apperror.ErrNotFound if it does not exist.
func (s *CatalogService) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	return s.repo.GetBook(ctx, id)
}

// RemoveBook deletes a book and, first, all of its loans.
// Removing an id that is already gone is a silent no-op.
func (s *CatalogService) RemoveBook(ctx context.Context, id int64) (err error) {
	defer s.observe(OpRemoveBook, &err)

	books, loans, err := s.repo.DeleteBook(ctx, id)
	if err != nil {
		s.logger.Error("failed to remove book",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("removing book %d: %w", id, err)
	}

	if books == 0 {
		s.logger.Debug("remove book: nothing to delete", slog.Int64("id", id))
		return nil
	}
	s.logger.Info("book removed",
		slog.Int64("id", id),
		slog.Int64("loans_removed", loans),
	)
	return nil
}

// RegisterLoan lends a book to borrower for days days, starting today.
//
// due_date = loan_date + days, so days must be at least 1. A book that
// already has an unreturned loan can be lent again: the catalog allows
// several open loans per book.
func (s *CatalogService) RegisterLoan(ctx context.Context, bookID int64, borrower string, days int) (loan *model.Loan, err error) {
	defer s.observe(OpRegisterLoan, &err)

	borrower = strings.TrimSpace(borrower)
	if borrower == "" {
		return nil, apperror.ValidationFailed("borrower", "borrower name is required")
	}
	if days < 1 {
		return nil, apperror.ValidationFailed("days", "days must be at least 1")
	}

	start := today(s.clock.Now())
	loan = &model.Loan{
		BookID:   bookID,
		Borrower: borrower,
		LoanDate: start.Format(model.DateLayout),
		DueDate:  start.AddDate(0, 0, days).Format(model.DateLayout),
	}

	if err := s.repo.CreateLoan(ctx, loan); err != nil {
		s.logger.Error("failed to register loan",
			slog.Int64("book_id", bookID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("registering loan: %w", err)
	}

	s.logger.Info("loan registered",
		slog.Int64("id", loan.ID),
		slog.Int64("book_id", bookID),
		slog.String("due_date", loan.DueDate),
	)
	return loan, nil
}

// MarkReturned closes the most recently created unreturned loan of a book.
// It reports whether a loan was closed; no open loan is not an error.
func (s *CatalogService) MarkReturned(ctx context.Context, bookID int64) (changed bool, err error) {
	defer s.observe(OpMarkReturned, &err)

	n, err := s.repo.MarkLatestReturned(ctx, bookID)
	if err != nil {
		s.logger.Error("failed to mark loan returned",
			slog.Int64("book_id", bookID),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("marking book %d returned: %w", bookID, err)
	}

	if n == 0 {
		s.logger.Debug("mark returned: no open loan", slog.Int64("book_id", bookID))
		return false, nil
	}
	s.logger.Info("loan returned", slog.Int64("book_id", bookID))
	return true, nil
}

// ListBooksWithStatus returns every book (by id) with the status of its
// latest loan. Computed fresh on each call.
func (s *CatalogService) ListBooksWithStatus(ctx context.Context, filter repository.BookFilter) (views []model.BookView, err error) {
	defer s.observe(OpListBooks, &err)

	rows, err := s.repo.ListBooks(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list books", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing books: %w", err)
	}

	now := s.clock.Now()
	views = make([]model.BookView, 0, len(rows))
	for _, row := range rows {
		status, malformed := DeriveStatus(row.LatestDueDate, row.LatestReturned, now)
		if malformed {
			s.logger.Warn("malformed due date, treating as not overdue",
				slog.Int64("book_id", row.ID),
				slog.String("due_date", *row.LatestDueDate),
			)
		}
		views = append(views, model.BookView{Book: row.Book, Status: status})
	}

	return views, nil
}

// ListLoansWithStatus returns every loan, newest first, labelled
// "Returned", "Overdue" or "Not returned".
func (s *CatalogService) ListLoansWithStatus(ctx context.Context, filter repository.LoanFilter) (views []model.LoanView, err error) {
	defer s.observe(OpListLoans, &err)

	rows, err := s.repo.ListLoans(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list loans", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing loans: %w", err)
	}

	now := s.clock.Now()
	overdue := 0
	views = make([]model.LoanView, 0, len(rows))
	for _, row := range rows {
		returned := row.Returned
		status, malformed := DeriveStatus(&row.DueDate, &returned, now)
		if malformed {
			s.logger.Warn("malformed due date, treating as not overdue",
				slog.Int64("loan_id", row.LoanID),
				slog.String("due_date", row.DueDate),
			)
		}
		if status.Flagged {
			overdue++
		}
		views = append(views, model.LoanView{
			LoanID:    row.LoanID,
			BookID:    row.BookID,
			BookTitle: row.BookTitle,
			Borrower:  row.Borrower,
			LoanDate:  row.LoanDate,
			DueDate:   row.DueDate,
			Status:    status.LoanLabel(),
			Flagged:   status.Flagged,
		})
	}

	// Only the unfiltered listing describes the whole catalog.
	if s.observer != nil && filter == (repository.LoanFilter{}) {
		s.observer.ObserveOverdue(overdue)
	}
	return views, nil
}

// observe reports the final error of an operation. Deferred with a pointer
// to the named result so it sees the value actually returned.
func (s *CatalogService) observe(op string, err *error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(op, *err)
}

// optional turns a blank form value into NULL.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
