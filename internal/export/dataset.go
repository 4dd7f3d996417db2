// Package export renders the Books and Loans listings as CSV or PDF files.
package export

import (
	"strconv"

	"github.com/sakif/biblioteca/internal/model"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	// Flagged marks rows (by index) that are drawn highlighted. Optional.
	Flagged []bool
}

func (d Dataset) flagged(i int) bool {
	return i < len(d.Flagged) && d.Flagged[i]
}

// Column headers, as shown in the catalog window.
var (
	BookHeaders = []string{"ID", "Título", "Autor", "Año", "Carrera", "Ubicación", "Devuelto"}
	LoanHeaders = []string{"ID Libro", "Título", "Usuario", "Fecha Préstamo", "Fecha Límite", "Estado"}
)

// BooksDataset turns the Books listing into a dataset. NULL columns become
// empty cells.
func BooksDataset(books []model.BookView) Dataset {
	data := Dataset{
		Headers: BookHeaders,
		Rows:    make([]map[string]string, 0, len(books)),
		Flagged: make([]bool, 0, len(books)),
	}
	for _, b := range books {
		year := ""
		if b.Year != nil {
			year = strconv.FormatInt(*b.Year, 10)
		}
		data.Rows = append(data.Rows, map[string]string{
			"ID":        strconv.FormatInt(b.ID, 10),
			"Título":    b.Title,
			"Autor":     b.Author,
			"Año":       year,
			"Carrera":   deref(b.Program),
			"Ubicación": deref(b.Location),
			"Devuelto":  b.Status.Label,
		})
		data.Flagged = append(data.Flagged, b.Status.Flagged)
	}
	return data
}

// LoansDataset turns the Loans listing into a dataset.
func LoansDataset(loans []model.LoanView) Dataset {
	data := Dataset{
		Headers: LoanHeaders,
		Rows:    make([]map[string]string, 0, len(loans)),
		Flagged: make([]bool, 0, len(loans)),
	}
	for _, l := range loans {
		data.Rows = append(data.Rows, map[string]string{
			"ID Libro":       strconv.FormatInt(l.BookID, 10),
			"Título":         l.BookTitle,
			"Usuario":        l.Borrower,
			"Fecha Préstamo": l.LoanDate,
			"Fecha Límite":   l.DueDate,
			"Estado":         l.Status,
		})
		data.Flagged = append(data.Flagged, l.Flagged)
	}
	return data
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
