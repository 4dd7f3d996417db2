package sqlite

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // registers the sqlite3 dialect

	"github.com/sakif/biblioteca/internal/repository"
)

// The listing queries are built with goqu rather than string concatenation
// because both take optional filters. Prepared(true) makes goqu emit `?`
// placeholders plus an args slice instead of inlining values.
var dialect = goqu.Dialect("sqlite3")

// booksQuery lists every book joined to its most recent loan.
//
// "Most recent" means highest loan id among ALL of the book's loans,
// returned or not. The ult subquery picks that id per book; the second
// LEFT JOIN fetches its due date and returned flag. Books without loans
// keep NULLs in both columns.
func booksQuery(filter repository.BookFilter) (string, []interface{}, error) {
	latest := dialect.From("prestamos").
		Select(goqu.C("libro_id"), goqu.MAX("id").As("max_id")).
		GroupBy("libro_id")

	ds := dialect.From(goqu.T("libros").As("l")).
		Select(
			goqu.I("l.id").As("id"),
			goqu.I("l.titulo").As("titulo"),
			goqu.I("l.autor").As("autor"),
			goqu.I("l.anio").As("anio"),
			goqu.I("l.carrera").As("carrera"),
			goqu.I("l.ubicacion").As("ubicacion"),
			goqu.I("p.fecha_limite").As("fecha_limite"),
			goqu.I("p.devuelto").As("devuelto"),
		).
		LeftJoin(latest.As("ult"), goqu.On(goqu.I("ult.libro_id").Eq(goqu.I("l.id")))).
		LeftJoin(goqu.T("prestamos").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("ult.max_id")))).
		Order(goqu.I("l.id").Asc())

	if filter.Program != "" {
		ds = ds.Where(goqu.I("l.carrera").Eq(filter.Program))
	}
	if filter.Location != "" {
		ds = ds.Where(goqu.I("l.ubicacion").Eq(filter.Location))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		ds = ds.Where(goqu.Or(
			goqu.I("l.titulo").Like(pattern),
			goqu.I("l.autor").Like(pattern),
		))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("building books query: %w", err)
	}
	return query, args, nil
}

// loansQuery lists loans with their book title, newest loan date first and
// newest id first within a day. Loans whose book row is gone are skipped.
func loansQuery(filter repository.LoanFilter) (string, []interface{}, error) {
	ds := dialect.From(goqu.T("prestamos").As("p")).
		Select(
			goqu.I("p.id").As("id"),
			goqu.I("p.libro_id").As("libro_id"),
			goqu.I("l.titulo").As("titulo"),
			goqu.I("p.nombre_usuario").As("nombre_usuario"),
			goqu.I("p.fecha_prestamo").As("fecha_prestamo"),
			goqu.I("p.fecha_limite").As("fecha_limite"),
			goqu.I("p.devuelto").As("devuelto"),
		).
		Join(goqu.T("libros").As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("p.libro_id")))).
		Order(goqu.I("p.fecha_prestamo").Desc(), goqu.I("p.id").Desc())

	if filter.BookID != 0 {
		ds = ds.Where(goqu.I("p.libro_id").Eq(filter.BookID))
	}
	if filter.Borrower != "" {
		ds = ds.Where(goqu.I("p.nombre_usuario").Like("%" + filter.Borrower + "%"))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("building loans query: %w", err)
	}
	return query, args, nil
}
