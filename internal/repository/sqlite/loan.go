package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/biblioteca/internal/apperror"
	"github.com/sakif/biblioteca/internal/model"
	"github.com/sakif/biblioteca/internal/repository"
)

// CreateLoan inserts a loan for an existing book and stores its id on loan.ID.
//
// The storage engine does not enforce libro_id → libros.id, so the existence
// check happens here, in the same transaction as the insert.
// The returned flag is always written as 0: new loans are outstanding.
func (db *DB) CreateLoan(ctx context.Context, loan *model.Loan) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		var count int
		if err := tx.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM libros WHERE id = ?`, loan.BookID,
		); err != nil {
			return fmt.Errorf("sqlite: checking book %d: %w", loan.BookID, err)
		}
		if count == 0 {
			return apperror.NotFound("book", loan.BookID)
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO prestamos (libro_id, nombre_usuario, fecha_prestamo, fecha_limite, devuelto)
			 VALUES (?, ?, ?, ?, 0)`,
			loan.BookID,
			loan.Borrower,
			loan.LoanDate,
			loan.DueDate,
		)
		if err != nil {
			return fmt.Errorf("sqlite: creating loan for book %d: %w", loan.BookID, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading new loan id: %w", err)
		}
		loan.ID = id
		loan.Returned = false
		return nil
	})
}

// MarkLatestReturned sets devuelto = 1 on the most recently created
// unreturned loan of the book. One statement, so no transaction is needed.
func (db *DB) MarkLatestReturned(ctx context.Context, bookID int64) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE prestamos
		 SET devuelto = 1
		 WHERE id = (
			SELECT id FROM prestamos
			WHERE libro_id = ? AND devuelto = 0
			ORDER BY id DESC
			LIMIT 1
		 )`,
		bookID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: marking loan returned for book %d: %w", bookID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// ListLoans returns loans joined to their book title, most recent first.
func (db *DB) ListLoans(ctx context.Context, filter repository.LoanFilter) ([]model.LoanDetail, error) {
	query, args, err := loansQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	loans := []model.LoanDetail{}
	if err := db.conn.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: listing loans: %w", err)
	}

	return loans, nil
}
