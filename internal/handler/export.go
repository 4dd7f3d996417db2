package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/biblioteca/internal/export"
	"github.com/sakif/biblioteca/internal/repository"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// ExportHandler serves the two listings as downloadable files. The data is
// read through the same service calls as the tables, so the files show the
// same derived status.
type ExportHandler struct {
	catalog Catalog
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *slog.Logger
}

func NewExportHandler(catalog Catalog, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		catalog: catalog,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// HandleBooks returns a handler for GET /export/books.{csv,pdf}.
func (h *ExportHandler) HandleBooks(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		books, err := h.catalog.ListBooksWithStatus(r.Context(), repository.BookFilter{})
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		h.send(w, format, "libros", "Libros", export.BooksDataset(books))
	}
}

// HandleLoans returns a handler for GET /export/loans.{csv,pdf}.
func (h *ExportHandler) HandleLoans(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loans, err := h.catalog.ListLoansWithStatus(r.Context(), repository.LoanFilter{})
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		h.send(w, format, "prestamos", "Préstamos", export.LoansDataset(loans))
	}
}

func (h *ExportHandler) send(w http.ResponseWriter, format, name, title string, data export.Dataset) {
	var (
		body        []byte
		err         error
		contentType string
	)
	switch format {
	case FormatCSV:
		body, err = h.csv.Render(data)
		contentType = "text/csv; charset=utf-8"
	case FormatPDF:
		body, err = h.pdf.Render(data, title)
		contentType = "application/pdf"
	default:
		http.Error(w, "unknown export format", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, h.logger, fmt.Errorf("rendering %s %s: %w", name, format, err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("export write failed", slog.String("file", name+"."+format), slog.String("error", err.Error()))
	}
}
