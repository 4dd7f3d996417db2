package model

// Book-view status labels.
const (
	StatusNone     = ""
	StatusReturned = "Yes"
	StatusOverdue  = "Overdue"
	StatusOut      = "No"
)

// Loan-view status labels.
const (
	LoanLabelReturned    = "Returned"
	LoanLabelOverdue     = "Overdue"
	LoanLabelNotReturned = "Not returned"
)

// Status is computed at read time and never stored.
// Flagged is a rendering hint: the row should be highlighted.
type Status struct {
	Label   string `json:"label"`
	Flagged bool   `json:"flagged"`
}

// LoanLabel translates a book-view status into the three-state loan-view label.
func (s Status) LoanLabel() string {
	switch s.Label {
	case StatusReturned:
		return LoanLabelReturned
	case StatusOverdue:
		return LoanLabelOverdue
	default:
		return LoanLabelNotReturned
	}
}
