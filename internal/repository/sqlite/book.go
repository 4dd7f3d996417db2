package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/biblioteca/internal/apperror"
	"github.com/sakif/biblioteca/internal/model"
	"github.com/sakif/biblioteca/internal/repository"
)

// compile-time check that *DB implements the full catalog store
var _ repository.CatalogRepository = (*DB)(nil)

// CreateBook inserts a new book and stores the generated id on book.ID.
//
// No duplicate detection: two identical books are two rows.
func (db *DB) CreateBook(ctx context.Context, book *model.Book) error {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO libros (titulo, autor, anio, carrera, ubicacion)
		 VALUES (?, ?, ?, ?, ?)`,
		book.Title,
		book.Author,
		book.Year,
		book.Program,
		book.Location,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new book id: %w", err)
	}
	book.ID = id

	return nil
}

// GetBook retrieves a single book by id.
// Returns apperror.ErrNotFound if no such book exists.
func (db *DB) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	var book model.Book

	err := db.conn.GetContext(ctx, &book,
		`SELECT id, titulo, autor, anio, carrera, ubicacion
		 FROM libros
		 WHERE id = ?`,
		id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("book", id)
		}
		return nil, fmt.Errorf("sqlite: getting book %d: %w", id, err)
	}

	return &book, nil
}

// DeleteBook removes a book together with all of its loans.
//
// Loans go first, then the book, inside a single transaction: if the second
// statement fails the loans come back on rollback. Deleting an id that does
// not exist is not an error; both counts are zero.
func (db *DB) DeleteBook(ctx context.Context, id int64) (books, loans int64, err error) {
	err = db.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM prestamos WHERE libro_id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting loans of book %d: %w", id, err)
		}
		if loans, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}

		result, err = tx.ExecContext(ctx, `DELETE FROM libros WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting book %d: %w", id, err)
		}
		if books, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return books, loans, nil
}

// ListBooks returns every book (ordered by id) with its latest loan columns.
func (db *DB) ListBooks(ctx context.Context, filter repository.BookFilter) ([]model.BookWithLatestLoan, error) {
	query, args, err := booksQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	books := []model.BookWithLatestLoan{}
	if err := db.conn.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: listing books: %w", err)
	}

	return books, nil
}
