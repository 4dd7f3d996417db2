// Package handler contains the HTTP handlers of the catalog UI.
//
// A handler parses the request, calls the catalog service and writes the
// response. It holds no catalog rules of its own: status derivation, cascade
// removal and loan dates all live in internal/service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/biblioteca/internal/apperror"
	"github.com/sakif/biblioteca/internal/model"
	"github.com/sakif/biblioteca/internal/repository"
	"github.com/sakif/biblioteca/internal/service"
)

// DefaultLoanDays is used when a loan request does not say how long.
const DefaultLoanDays = 7

// Catalog is the slice of *service.CatalogService the handlers use.
type Catalog interface {
	AddBook(ctx context.Context, in service.NewBook) (*model.Book, error)
	GetBook(ctx context.Context, id int64) (*model.Book, error)
	RemoveBook(ctx context.Context, id int64) error
	RegisterLoan(ctx context.Context, bookID int64, borrower string, days int) (*model.Loan, error)
	MarkReturned(ctx context.Context, bookID int64) (bool, error)
	ListBooksWithStatus(ctx context.Context, filter repository.BookFilter) ([]model.BookView, error)
	ListLoansWithStatus(ctx context.Context, filter repository.LoanFilter) ([]model.LoanView, error)
}

// CatalogHandler serves the JSON API under /api.
type CatalogHandler struct {
	catalog  Catalog
	validate *validator.Validate
	logger   *slog.Logger
}

func NewCatalogHandler(catalog Catalog, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalog,
		validate: newValidator(),
		logger:   logger,
	}
}

// createBookRequest is the add-book form. Year travels as text, exactly as
// typed, so "abc" can be rejected with a field error instead of a JSON one.
type createBookRequest struct {
	Title    string `json:"title"    validate:"required,max=255"`
	Author   string `json:"author"   validate:"required,max=255"`
	Year     string `json:"year"     validate:"omitempty,number,max=4"`
	Program  string `json:"program"  validate:"omitempty,program"`
	Location string `json:"location" validate:"omitempty,location"`
}

type registerLoanRequest struct {
	Borrower string `json:"borrower" validate:"required,max=255"`
	Days     *int   `json:"days"     validate:"omitempty,min=1,max=3650"`
}

type returnResponse struct {
	Returned bool `json:"returned"`
}

type choicesResponse struct {
	Programs  []string `json:"programs"`
	Locations []string `json:"locations"`
}

// HandleListBooks returns every book with its derived status.
//
// HTTP: GET /api/books?program=...&location=...&q=...
func (h *CatalogHandler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.BookFilter{
		Program:  strings.TrimSpace(q.Get("program")),
		Location: strings.TrimSpace(q.Get("location")),
		Search:   strings.TrimSpace(q.Get("q")),
	}

	books, err := h.catalog.ListBooksWithStatus(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// HandleCreateBook adds a book.
//
// HTTP: POST /api/books
// BODY: {"title":"Rayuela","author":"Cortázar","year":"1963","program":"","location":"Pasillo A"}
func (h *CatalogHandler) HandleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validateRequest(h.validate, req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	in := service.NewBook{
		Title:    req.Title,
		Author:   req.Author,
		Program:  req.Program,
		Location: req.Location,
	}
	if req.Year != "" {
		year, err := strconv.ParseInt(req.Year, 10, 64)
		if err != nil {
			writeError(w, h.logger, apperror.ValidationFailed("year", "year must be a whole number"))
			return
		}
		in.Year = &year
	}

	book, err := h.catalog.AddBook(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// HandleGetBook returns one book. The page uses it to word the removal prompt.
//
// HTTP: GET /api/books/{id}
func (h *CatalogHandler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	book, err := h.catalog.GetBook(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// HandleDeleteBook removes a book and its loans. An unknown id still
// answers 204: the end state is the same.
//
// HTTP: DELETE /api/books/{id}
func (h *CatalogHandler) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.catalog.RemoveBook(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRegisterLoan lends a book starting today.
//
// HTTP: POST /api/books/{id}/loans
// BODY: {"borrower":"Ana","days":7}   (days defaults to 7)
func (h *CatalogHandler) HandleRegisterLoan(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req registerLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validateRequest(h.validate, req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	days := DefaultLoanDays
	if req.Days != nil {
		days = *req.Days
	}

	loan, err := h.catalog.RegisterLoan(r.Context(), id, req.Borrower, days)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// HandleMarkReturned closes the newest open loan of a book. With no open
// loan it answers {"returned": false}, not an error.
//
// HTTP: POST /api/books/{id}/return
func (h *CatalogHandler) HandleMarkReturned(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	changed, err := h.catalog.MarkReturned(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, returnResponse{Returned: changed})
}

// HandleListLoans returns every loan, newest first.
//
// HTTP: GET /api/loans?book_id=...&borrower=...
func (h *CatalogHandler) HandleListLoans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.LoanFilter{Borrower: strings.TrimSpace(q.Get("borrower"))}
	if raw := q.Get("book_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			writeError(w, h.logger, apperror.ValidationFailed("book_id", "book_id must be a positive integer"))
			return
		}
		filter.BookID = id
	}

	loans, err := h.catalog.ListLoansWithStatus(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

// HandleChoices returns the program and location lists of the add-book form.
//
// HTTP: GET /api/choices
func (h *CatalogHandler) HandleChoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, choicesResponse{
		Programs:  model.Programs,
		Locations: model.Locations,
	})
}

func bookID(r *http.Request) (int64, error) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		return 0, apperror.ValidationFailed("id", "id must be a positive integer")
	}
	return id, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id < 1 {
		return 0, strconv.ErrRange
	}
	return id, nil
}
