// Package model defines the data structures used throughout the application.
// Book and Loan are the two persisted records; the *View types are listing
// rows with their derived status attached.
package model

// Book represents one catalog entry held by the library.
//
// The `db:"..."` tags map fields to the columns of the `libros` table. Those
// column names are part of the on-disk contract (existing biblioteca.db files
// use them), so the Go names and the SQL names differ.
//
// WHY POINTERS FOR Year, Program AND Location?
// Those columns are nullable. A *int64 that is nil scans from SQL NULL and
// encodes to JSON null, which keeps "no year" distinct from "year 0".
type Book struct {
	ID       int64   `json:"id"       db:"id"`
	Title    string  `json:"title"    db:"titulo"`
	Author   string  `json:"author"   db:"autor"`
	Year     *int64  `json:"year"     db:"anio"`
	Program  *string `json:"program"  db:"carrera"`   // academic department / category
	Location *string `json:"location" db:"ubicacion"` // shelf or section label
}

// BookWithLatestLoan is a Book joined to the most recent loan recorded for it.
// Both loan columns are nil when the book has never been lent.
type BookWithLatestLoan struct {
	Book
	LatestDueDate  *string `db:"fecha_limite"`
	LatestReturned *bool   `db:"devuelto"`
}

// BookView is a listing row for the books table: the book plus its derived status.
type BookView struct {
	Book
	Status Status `json:"status"`
}

// Programs lists the academic departments offered by the add-book form.
var Programs = []string{
	"Ingeniería Civil",
	"Ingeniería Electromecánica",
	"Ingeniería Industrial",
	"Ingeniería en Sistemas de Información",
	"Tecnicatura en Programación",
	"Maestría en Inteligencia de Negocios",
	"Maestría en Desarrollo Territorial",
}

// Locations lists the shelf and section labels offered by the add-book form.
var Locations = []string{
	"Pasillo A", "Pasillo B", "Pasillo C",
	"Sección Historia", "Sección Tecnología", "Sección Literatura",
	"Depósito",
}
