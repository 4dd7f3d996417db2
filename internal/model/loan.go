package model

// DateLayout is the ISO 8601 calendar date format stored in the loan columns.
const DateLayout = "2006-01-02"

// Loan records one lending event of a Book to a borrower.
//
// Dates are kept as the stored text rather than time.Time: a row written by
// another tool with a malformed date must still load, and status derivation
// decides how to treat it.
type Loan struct {
	ID       int64  `json:"id"       db:"id"`
	BookID   int64  `json:"bookId"   db:"libro_id"`
	Borrower string `json:"borrower" db:"nombre_usuario"`
	LoanDate string `json:"loanDate" db:"fecha_prestamo"`
	DueDate  string `json:"dueDate"  db:"fecha_limite"`
	Returned bool   `json:"returned" db:"devuelto"`
}

// LoanDetail is a loan joined to the title of its book.
type LoanDetail struct {
	LoanID    int64  `db:"id"`
	BookID    int64  `db:"libro_id"`
	BookTitle string `db:"titulo"`
	Borrower  string `db:"nombre_usuario"`
	LoanDate  string `db:"fecha_prestamo"`
	DueDate   string `db:"fecha_limite"`
	Returned  bool   `db:"devuelto"`
}

// LoanView is a listing row for the loans table.
type LoanView struct {
	LoanID    int64  `json:"loanId"`
	BookID    int64  `json:"bookId"`
	BookTitle string `json:"title"`
	Borrower  string `json:"borrower"`
	LoanDate  string `json:"loanDate"`
	DueDate   string `json:"dueDate"`
	Status    string `json:"status"`
	Flagged   bool   `json:"flagged"`
}
