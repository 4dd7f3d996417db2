// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// THE DATA FILE:
// The whole catalog lives in one file, biblioteca.db, next to the program.
// Its schema (tables libros and prestamos, Spanish column names) is shared
// with data files created by earlier versions of the tool, so the DDL below
// must not be renamed or "tidied up".
//
// WHY sqlx ON TOP OF database/sql?
// sqlx keeps the database/sql model (pool, Tx, Rows) but adds GetContext and
// SelectContext, which scan rows straight into `db:"..."` tagged structs.
// The listing queries return joined rows with nullable columns; hand-written
// Scan calls for those are long and easy to get out of order.
//
// CONNECTION MODEL:
// This is a single-user desktop tool. The pool is pinned to ONE connection so
// that every operation acquires the file, runs, and releases it before the
// next one starts. Multi-statement operations run inside withTx, which
// guarantees commit-or-rollback on every exit path.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"

	// Registers the pure-Go "sqlite" driver with database/sql. No CGo needed.
	_ "modernc.org/sqlite"
)

// FileName is the database file created next to the executable.
const FileName = "biblioteca.db"

// DB wraps the sqlx handle and implements repository.CatalogRepository.
type DB struct {
	conn *sqlx.DB
}

// DefaultPath returns the location of the data file: FileName inside the
// directory that holds the running executable.
//
// `go run` builds into a throwaway go-build directory under the temp dir.
// A data file there would vanish, so source runs resolve against the working
// directory instead, the same place a `go build` binary would sit.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("sqlite: locating executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("sqlite: reading working directory: %w", err)
	}

	return filepath.Join(installDir(filepath.Dir(exe), wd), FileName), nil
}

// installDir picks the directory the data file belongs in.
func installDir(exeDir, workDir string) string {
	if strings.Contains(filepath.ToSlash(exeDir), "/go-build") {
		return workDir
	}
	return exeDir
}

// New connects to the database at dbPath and initializes the schema.
//
// dbPath examples:
//   - DefaultPath()  → the persistent catalog
//   - ":memory:"     → throwaway database for tests
func New(dbPath string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection at a time. This also keeps ":memory:" databases alive:
	// each new connection to ":memory:" would otherwise see an empty database.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.Initialize(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the database handle.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Initialize creates the catalog tables if they do not exist yet.
// Safe on every start: existing tables and rows are left untouched.
//
// The FOREIGN KEY clause documents the libro_id → libros.id reference, but
// enforcement stays off (SQLite's default), matching existing data files.
// The cascade on book removal is done explicitly by DeleteBook.
func (db *DB) Initialize(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS libros (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			titulo TEXT NOT NULL,
			autor TEXT NOT NULL,
			anio INTEGER,
			carrera TEXT,
			ubicacion TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("sqlite: creating libros table: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS prestamos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			libro_id INTEGER NOT NULL,
			nombre_usuario TEXT NOT NULL,
			fecha_prestamo TEXT NOT NULL,
			fecha_limite   TEXT NOT NULL,
			devuelto       INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (libro_id) REFERENCES libros(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("sqlite: creating prestamos table: %w", err)
	}

	return nil
}

// withTx runs fn inside a transaction.
//
// If fn returns an error (or panics) the transaction is rolled back;
// otherwise it is committed. Callers never see a half-applied change.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("sqlite: committing transaction: %w", cerr)
		}
	}()

	return fn(tx)
}
