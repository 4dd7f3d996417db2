package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/biblioteca/internal/model"
	"github.com/sakif/biblioteca/internal/repository"
)

// PageHandler renders the catalog page: the Books table with its form and
// actions, and the Loans table. Overdue rows carry the "atrasado" class.
//
// Templates are parsed once at startup. base.html defines the page shell
// and pulls in the "content" block from index.html.
type PageHandler struct {
	catalog   Catalog
	templates *template.Template
	logger    *slog.Logger
}

type pageData struct {
	Title     string
	Books     []model.BookView
	Loans     []model.LoanView
	Programs  []string
	Locations []string
}

// NewPageHandler parses templates/base.html and templates/index.html from fsys.
func NewPageHandler(catalog Catalog, fsys fs.FS, logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.ParseFS(fsys, "templates/base.html", "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page templates: %w", err)
	}
	return &PageHandler{catalog: catalog, templates: tmpl, logger: logger}, nil
}

// HandleIndex serves GET /. Both listings are read fresh on every request,
// so a reload after any action shows the current state.
func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	books, err := h.catalog.ListBooksWithStatus(r.Context(), repository.BookFilter{})
	if err != nil {
		h.fail(w, err)
		return
	}
	loans, err := h.catalog.ListLoansWithStatus(r.Context(), repository.LoanFilter{})
	if err != nil {
		h.fail(w, err)
		return
	}

	data := pageData{
		Title:     "Inventario de Biblioteca",
		Books:     books,
		Loans:     loans,
		Programs:  model.Programs,
		Locations: model.Locations,
	}

	// Render into a buffer so a template error cannot leave half a page
	// behind a 200 status.
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, "base", data); err != nil {
		h.fail(w, fmt.Errorf("rendering page: %w", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (h *PageHandler) fail(w http.ResponseWriter, err error) {
	h.logger.Error("failed to render page", slog.String("error", err.Error()))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
