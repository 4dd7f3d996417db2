package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/sakif/biblioteca/internal/apperror"
	"github.com/sakif/biblioteca/internal/model"
	"github.com/sakif/biblioteca/internal/repository"
)

// =========================================================================
// MOCK REPOSITORY
// =========================================================================
//
// mockCatalogRepo implements repository.CatalogRepository in memory. It keeps
// the same rules as the SQLite store (cascade delete, latest-open-loan
// update) so the service can be tested without a database, and it can be
// told to fail to simulate storage errors.

type mockCatalogRepo struct {
	books    map[int64]model.Book
	loans    map[int64]model.Loan
	nextBook int64
	nextLoan int64
	failWith error
}

func newMockRepo() *mockCatalogRepo {
	return &mockCatalogRepo{
		books: make(map[int64]model.Book),
		loans: make(map[int64]model.Loan),
	}
}

func (m *mockCatalogRepo) CreateBook(_ context.Context, book *model.Book) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.nextBook++
	book.ID = m.nextBook
	m.books[book.ID] = *book
	return nil
}

func (m *mockCatalogRepo) GetBook(_ context.Context, id int64) (*model.Book, error) {
	book, ok := m.books[id]
	if !ok {
		return nil, apperror.NotFound("book", id)
	}
	return &book, nil
}

func (m *mockCatalogRepo) DeleteBook(_ context.Context, id int64) (int64, int64, error) {
	if m.failWith != nil {
		return 0, 0, m.failWith
	}
	var loans int64
	for lid, l := range m.loans {
		if l.BookID == id {
			delete(m.loans, lid)
			loans++
		}
	}
	if _, ok := m.books[id]; !ok {
		return 0, loans, nil
	}
	delete(m.books, id)
	return 1, loans, nil
}

func (m *mockCatalogRepo) ListBooks(_ context.Context, _ repository.BookFilter) ([]model.BookWithLatestLoan, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]model.BookWithLatestLoan, 0, len(m.books))
	for _, b := range m.books {
		row := model.BookWithLatestLoan{Book: b}
		var latest *model.Loan
		for _, l := range m.loans {
			if l.BookID == b.ID && (latest == nil || l.ID > latest.ID) {
				l := l
				latest = &l
			}
		}
		if latest != nil {
			due, returned := latest.DueDate, latest.Returned
			row.LatestDueDate, row.LatestReturned = &due, &returned
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockCatalogRepo) CreateLoan(_ context.Context, loan *model.Loan) error {
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.books[loan.BookID]; !ok {
		return apperror.NotFound("book", loan.BookID)
	}
	m.nextLoan++
	loan.ID = m.nextLoan
	m.loans[loan.ID] = *loan
	return nil
}

func (m *mockCatalogRepo) MarkLatestReturned(_ context.Context, bookID int64) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	var target int64
	for id, l := range m.loans {
		if l.BookID == bookID && !l.Returned && id > target {
			target = id
		}
	}
	if target == 0 {
		return 0, nil
	}
	l := m.loans[target]
	l.Returned = true
	m.loans[target] = l
	return 1, nil
}

func (m *mockCatalogRepo) ListLoans(_ context.Context, _ repository.LoanFilter) ([]model.LoanDetail, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]model.LoanDetail, 0, len(m.loans))
	for _, l := range m.loans {
		out = append(out, model.LoanDetail{
			LoanID: l.ID, BookID: l.BookID, BookTitle: m.books[l.BookID].Title,
			Borrower: l.Borrower, LoanDate: l.LoanDate, DueDate: l.DueDate, Returned: l.Returned,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoanDate != out[j].LoanDate {
			return out[i].LoanDate > out[j].LoanDate
		}
		return out[i].LoanID > out[j].LoanID
	})
	return out, nil
}

// recordingObserver captures what the service reports.
type recordingObserver struct {
	ops     []string
	errs    []error
	overdue []int
}

func (r *recordingObserver) ObserveOperation(op string, err error) {
	r.ops = append(r.ops, op)
	r.errs = append(r.errs, err)
}

func (r *recordingObserver) ObserveOverdue(count int) { r.overdue = append(r.overdue, count) }

// stubClock is a settable clock so a test can move "today" forward.
type stubClock struct{ now time.Time }

func (c *stubClock) Now() time.Time { return c.now }

func day(s string) time.Time {
	t, err := time.ParseInLocation(model.DateLayout, s, time.Local)
	if err != nil {
		panic(err)
	}
	return t.Add(9 * time.Hour)
}

// =========================================================================
// TEST HELPER
// =========================================================================

func newTestService(t *testing.T) (*CatalogService, *mockCatalogRepo, *stubClock, *recordingObserver) {
	t.Helper()
	repo := newMockRepo()
	clock := &stubClock{now: day("2024-01-01")}
	obs := &recordingObserver{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewCatalogService(repo, clock, obs, logger), repo, clock, obs
}

func addBook(t *testing.T, svc *CatalogService, title, author string) *model.Book {
	t.Helper()
	book, err := svc.AddBook(context.Background(), NewBook{Title: title, Author: author})
	if err != nil {
		t.Fatalf("AddBook() error = %v", err)
	}
	return book
}

// =========================================================================
// ADD BOOK
// =========================================================================

func TestAddBook_Success(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	year := int64(1967)

	book, err := svc.AddBook(context.Background(), NewBook{
		Title:    "  Cien años de soledad ",
		Author:   "García Márquez",
		Year:     &year,
		Program:  "Ingeniería en Sistemas de Información",
		Location: "   ",
	})
	if err != nil {
		t.Fatalf("AddBook() error = %v", err)
	}
	if book.ID != 1 {
		t.Errorf("ID = %d, want 1", book.ID)
	}
	if book.Title != "Cien años de soledad" {
		t.Errorf("Title = %q, want trimmed title", book.Title)
	}
	if book.Program == nil || *book.Program != "Ingeniería en Sistemas de Información" {
		t.Errorf("Program = %v", book.Program)
	}
	if book.Location != nil {
		t.Errorf("blank Location stored as %q, want nil", *book.Location)
	}
}

func TestAddBook_AppearsWithEmptyStatus(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	addBook(t, svc, "Rayuela", "Cortázar")

	views, err := svc.ListBooksWithStatus(context.Background(), repository.BookFilter{})
	if err != nil {
		t.Fatalf("ListBooksWithStatus() error = %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d rows, want 1", len(views))
	}
	if views[0].Title != "Rayuela" || views[0].Author != "Cortázar" {
		t.Errorf("row = %+v", views[0])
	}
	if views[0].Status.Label != "" || views[0].Status.Flagged {
		t.Errorf("Status = %+v, want empty neutral", views[0].Status)
	}
}

func TestAddBook_RequiresTitleAndAuthor(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	tests := []struct {
		name  string
		in    NewBook
		field string
	}{
		{"empty title", NewBook{Title: "", Author: "A"}, "title"},
		{"blank title", NewBook{Title: "   ", Author: "A"}, "title"},
		{"empty author", NewBook{Title: "T", Author: ""}, "author"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddBook(context.Background(), tt.in)
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("error = %v, want validation error", err)
			}
			if appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
		})
	}
	if len(repo.books) != 0 {
		t.Errorf("invalid books were stored: %v", repo.books)
	}
}

func TestAddBook_StorageError(t *testing.T) {
	svc, repo, _, obs := newTestService(t)
	ioErr := errors.New("disk full")
	repo.failWith = ioErr

	_, err := svc.AddBook(context.Background(), NewBook{Title: "T", Author: "A"})
	if !errors.Is(err, ioErr) {
		t.Fatalf("error = %v, want wrapped disk full", err)
	}
	if len(obs.errs) != 1 || !errors.Is(obs.errs[0], ioErr) {
		t.Errorf("observer saw %v, want the storage error", obs.errs)
	}
}

// =========================================================================
// REMOVE BOOK
// =========================================================================

func TestRemoveBook_Idempotent(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	book := addBook(t, svc, "T", "A")

	if err := svc.RemoveBook(context.Background(), book.ID); err != nil {
		t.Fatalf("first RemoveBook() error = %v", err)
	}
	if err := svc.RemoveBook(context.Background(), book.ID); err != nil {
		t.Fatalf("second RemoveBook() error = %v", err)
	}
}

func TestRemoveBook_RemovesLoans(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	gone := addBook(t, svc, "Gone", "A")
	kept := addBook(t, svc, "Kept", "B")
	for _, id := range []int64{gone.ID, gone.ID, kept.ID} {
		if _, err := svc.RegisterLoan(ctx, id, "Ana", 7); err != nil {
			t.Fatalf("RegisterLoan() error = %v", err)
		}
	}

	if err := svc.RemoveBook(ctx, gone.ID); err != nil {
		t.Fatalf("RemoveBook() error = %v", err)
	}

	loans, err := svc.ListLoansWithStatus(ctx, repository.LoanFilter{})
	if err != nil {
		t.Fatalf("ListLoansWithStatus() error = %v", err)
	}
	for _, l := range loans {
		if l.BookID == gone.ID {
			t.Errorf("loan %d still references removed book", l.LoanID)
		}
	}
	if len(loans) != 1 {
		t.Errorf("got %d loans, want 1", len(loans))
	}
}

// =========================================================================
// REGISTER LOAN
// =========================================================================

func TestRegisterLoan_ComputesDates(t *testing.T) {
	svc, _, clock, _ := newTestService(t)
	clock.now = day("2024-02-25")
	book := addBook(t, svc, "T", "A")

	tests := []struct {
		days int
		want string
	}{
		{1, "2024-02-26"},
		{7, "2024-03-03"}, // crosses a leap-year February
		{30, "2024-03-26"},
	}
	for _, tt := range tests {
		loan, err := svc.RegisterLoan(context.Background(), book.ID, "Ana", tt.days)
		if err != nil {
			t.Fatalf("RegisterLoan(%d) error = %v", tt.days, err)
		}
		if loan.LoanDate != "2024-02-25" {
			t.Errorf("LoanDate = %s, want 2024-02-25", loan.LoanDate)
		}
		if loan.DueDate != tt.want {
			t.Errorf("RegisterLoan(%d) DueDate = %s, want %s", tt.days, loan.DueDate, tt.want)
		}
		if loan.Returned {
			t.Error("new loan is returned")
		}
	}
}

func TestRegisterLoan_ShowsNotReturned(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	book := addBook(t, svc, "T", "A")
	if _, err := svc.RegisterLoan(context.Background(), book.ID, "Ana", 7); err != nil {
		t.Fatalf("RegisterLoan() error = %v", err)
	}

	loans, err := svc.ListLoansWithStatus(context.Background(), repository.LoanFilter{})
	if err != nil {
		t.Fatalf("ListLoansWithStatus() error = %v", err)
	}
	if len(loans) != 1 || loans[0].Status != "Not returned" || loans[0].Flagged {
		t.Errorf("loans = %+v, want one unflagged Not returned", loans)
	}
	if loans[0].DueDate != "2024-01-08" {
		t.Errorf("DueDate = %s, want 2024-01-08", loans[0].DueDate)
	}
}

func TestRegisterLoan_Validation(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	book := addBook(t, svc, "T", "A")

	for _, days := range []int{0, -3} {
		if _, err := svc.RegisterLoan(context.Background(), book.ID, "Ana", days); !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("RegisterLoan(days=%d) error = %v, want validation error", days, err)
		}
	}
	if _, err := svc.RegisterLoan(context.Background(), book.ID, "  ", 7); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("RegisterLoan(blank borrower) error = %v, want validation error", err)
	}
	if len(repo.loans) != 0 {
		t.Errorf("invalid loans were stored: %v", repo.loans)
	}
}

func TestRegisterLoan_UnknownBook(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.RegisterLoan(context.Background(), 99, "Ana", 7)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRegisterLoan_AllowsSecondOpenLoan(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	book := addBook(t, svc, "T", "A")

	for _, who := range []string{"Ana", "Luis"} {
		if _, err := svc.RegisterLoan(context.Background(), book.ID, who, 7); err != nil {
			t.Fatalf("RegisterLoan(%s) error = %v", who, err)
		}
	}
}

// =========================================================================
// MARK RETURNED
// =========================================================================

func TestMarkReturned_Idempotent(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	book := addBook(t, svc, "T", "A")
	if _, err := svc.RegisterLoan(context.Background(), book.ID, "Ana", 7); err != nil {
		t.Fatalf("RegisterLoan() error = %v", err)
	}

	changed, err := svc.MarkReturned(context.Background(), book.ID)
	if err != nil || !changed {
		t.Fatalf("first MarkReturned() = (%v, %v), want (true, nil)", changed, err)
	}
	changed, err = svc.MarkReturned(context.Background(), book.ID)
	if err != nil || changed {
		t.Fatalf("second MarkReturned() = (%v, %v), want (false, nil)", changed, err)
	}

	returned := 0
	for _, l := range repo.loans {
		if l.Returned {
			returned++
		}
	}
	if returned != 1 {
		t.Errorf("%d loans returned, want 1", returned)
	}
}

func TestMarkReturned_NoLoans(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	changed, err := svc.MarkReturned(context.Background(), 5)
	if err != nil || changed {
		t.Errorf("MarkReturned() = (%v, %v), want (false, nil)", changed, err)
	}
}

// =========================================================================
// LISTINGS
// =========================================================================

func TestOverdueThenReturned(t *testing.T) {
	svc, _, clock, obs := newTestService(t)
	ctx := context.Background()
	book := addBook(t, svc, "T", "A")
	if _, err := svc.RegisterLoan(ctx, book.ID, "Ana", 7); err != nil {
		t.Fatalf("RegisterLoan() error = %v", err)
	}

	clock.now = day("2024-01-10")

	books, _ := svc.ListBooksWithStatus(ctx, repository.BookFilter{})
	if books[0].Status != (model.Status{Label: "Overdue", Flagged: true}) {
		t.Errorf("book status = %+v, want flagged Overdue", books[0].Status)
	}
	loans, _ := svc.ListLoansWithStatus(ctx, repository.LoanFilter{})
	if loans[0].Status != "Overdue" || !loans[0].Flagged {
		t.Errorf("loan = %+v, want flagged Overdue", loans[0])
	}

	if _, err := svc.MarkReturned(ctx, book.ID); err != nil {
		t.Fatalf("MarkReturned() error = %v", err)
	}

	// Returned loans are never flagged again, however late it gets.
	for _, d := range []string{"2024-01-10", "2030-06-01"} {
		clock.now = day(d)
		books, _ = svc.ListBooksWithStatus(ctx, repository.BookFilter{})
		if books[0].Status != (model.Status{Label: "Yes"}) {
			t.Errorf("%s: book status = %+v, want Yes", d, books[0].Status)
		}
		loans, _ = svc.ListLoansWithStatus(ctx, repository.LoanFilter{})
		if loans[0].Status != "Returned" || loans[0].Flagged {
			t.Errorf("%s: loan = %+v, want unflagged Returned", d, loans[0])
		}
	}

	if len(obs.overdue) == 0 || obs.overdue[0] != 1 || obs.overdue[len(obs.overdue)-1] != 0 {
		t.Errorf("overdue gauge history = %v, want to start at 1 and end at 0", obs.overdue)
	}
}

func TestListBooks_StatusFollowsLatestLoanOnly(t *testing.T) {
	svc, repo, clock, _ := newTestService(t)
	ctx := context.Background()
	book := addBook(t, svc, "T", "A")

	// Old overdue loan, then a fresh one: the fresh loan decides the status.
	repo.loans[100] = model.Loan{ID: 100, BookID: book.ID, Borrower: "Ana", LoanDate: "2023-12-01", DueDate: "2023-12-08"}
	repo.nextLoan = 100
	clock.now = day("2024-01-10")
	if _, err := svc.RegisterLoan(ctx, book.ID, "Luis", 5); err != nil {
		t.Fatalf("RegisterLoan() error = %v", err)
	}

	books, err := svc.ListBooksWithStatus(ctx, repository.BookFilter{})
	if err != nil {
		t.Fatalf("ListBooksWithStatus() error = %v", err)
	}
	if books[0].Status != (model.Status{Label: "No"}) {
		t.Errorf("status = %+v, want No", books[0].Status)
	}
}

func TestListLoans_MalformedDateFallsBack(t *testing.T) {
	svc, repo, clock, _ := newTestService(t)
	book := addBook(t, svc, "T", "A")
	repo.loans[1] = model.Loan{ID: 1, BookID: book.ID, Borrower: "Ana", LoanDate: "2020-01-01", DueDate: "01/02/2020"}
	repo.nextLoan = 1
	clock.now = day("2024-01-10")

	loans, err := svc.ListLoansWithStatus(context.Background(), repository.LoanFilter{})
	if err != nil {
		t.Fatalf("ListLoansWithStatus() error = %v", err)
	}
	if loans[0].Status != "Not returned" || loans[0].Flagged {
		t.Errorf("loan = %+v, want unflagged Not returned", loans[0])
	}

	books, err := svc.ListBooksWithStatus(context.Background(), repository.BookFilter{})
	if err != nil {
		t.Fatalf("ListBooksWithStatus() error = %v", err)
	}
	if books[0].Status.Label != "No" {
		t.Errorf("book status = %+v, want No", books[0].Status)
	}
}

func TestListings_StorageError(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	repo.failWith = errors.New("database is locked")

	if _, err := svc.ListBooksWithStatus(context.Background(), repository.BookFilter{}); err == nil {
		t.Error("ListBooksWithStatus() error = nil, want storage error")
	}
	if _, err := svc.ListLoansWithStatus(context.Background(), repository.LoanFilter{}); err == nil {
		t.Error("ListLoansWithStatus() error = nil, want storage error")
	}
}

func TestObserver_SeesEveryOperation(t *testing.T) {
	svc, _, _, obs := newTestService(t)
	ctx := context.Background()

	book := addBook(t, svc, "T", "A")
	_, _ = svc.RegisterLoan(ctx, book.ID, "Ana", 7)
	_, _ = svc.MarkReturned(ctx, book.ID)
	_, _ = svc.ListBooksWithStatus(ctx, repository.BookFilter{})
	_, _ = svc.ListLoansWithStatus(ctx, repository.LoanFilter{})
	_ = svc.RemoveBook(ctx, book.ID)

	want := []string{OpAddBook, OpRegisterLoan, OpMarkReturned, OpListBooks, OpListLoans, OpRemoveBook}
	if len(obs.ops) != len(want) {
		t.Fatalf("ops = %v, want %v", obs.ops, want)
	}
	for i := range want {
		if obs.ops[i] != want[i] {
			t.Errorf("ops[%d] = %s, want %s", i, obs.ops[i], want[i])
		}
		if obs.errs[i] != nil {
			t.Errorf("ops[%d] err = %v, want nil", i, obs.errs[i])
		}
	}
}

func TestNilObserverAndClock(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewCatalogService(newMockRepo(), nil, nil, logger)

	book, err := svc.AddBook(context.Background(), NewBook{Title: "T", Author: "A"})
	if err != nil {
		t.Fatalf("AddBook() error = %v", err)
	}
	loan, err := svc.RegisterLoan(context.Background(), book.ID, "Ana", 1)
	if err != nil {
		t.Fatalf("RegisterLoan() error = %v", err)
	}
	if loan.LoanDate != time.Now().Format(model.DateLayout) {
		t.Errorf("LoanDate = %s, want today", loan.LoanDate)
	}
}
