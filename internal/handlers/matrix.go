package handlers

import (
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"workcard-backend/internal/ctxkeys"
	"workcard-backend/internal/database"
	"workcard-backend/internal/matrix"
)

// MatrixHandler exposes the per-site, per-month hours matrix and its CSV
// export. CSV encoding is one of the few places this module reaches for the
// standard library over a third-party dependency — encoding/csv already
// covers the quoting/escaping rules an export needs and nothing in the
// example pack ships a richer spreadsheet writer.
type MatrixHandler struct {
	builder *matrix.Builder
}

// NewMatrixHandler creates a new MatrixHandler over the given database.
func NewMatrixHandler(db database.Service) *MatrixHandler {
	return &MatrixHandler{builder: matrix.New(db.GetPool())}
}

// Get returns the hours matrix as JSON for a site/month.
func (h *MatrixHandler) Get(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())
	siteID := r.URL.Query().Get("siteId")
	month := r.URL.Query().Get("processingMonth")
	if siteID == "" || month == "" {
		JSONError(w, http.StatusUnprocessableEntity, "siteId and processingMonth are required")
		return
	}

	approvedOnly := parseBoolParam(r, "approved_only")
	includeInactive := parseBoolParam(r, "include_inactive")

	rows, err := h.builder.Load(r.Context(), businessID, siteID, month, approvedOnly, includeInactive)
	if err != nil {
		log.Printf("error loading matrix: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to load matrix")
		return
	}
	matrix.SortEmployees(rows)

	JSON(w, http.StatusOK, rows)
}

// parseBoolParam reads a boolean query flag, treating its mere presence
// (e.g. "?approved_only") the same as "=true", matching how the admin UI
// links these filters.
func parseBoolParam(r *http.Request, name string) bool {
	if !r.URL.Query().Has(name) {
		return false
	}
	v := r.URL.Query().Get(name)
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// UploadStatus returns the per-employee upload status for a site/month.
func (h *MatrixHandler) UploadStatus(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())
	siteID := r.URL.Query().Get("siteId")
	month := r.URL.Query().Get("processingMonth")
	if siteID == "" || month == "" {
		JSONError(w, http.StatusUnprocessableEntity, "siteId and processingMonth are required")
		return
	}

	rows, err := h.builder.UploadStatus(r.Context(), businessID, siteID, month)
	if err != nil {
		log.Printf("error loading upload status: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to load upload status")
		return
	}

	JSON(w, http.StatusOK, rows)
}

// ExportCSV streams the hours matrix as a downloadable CSV.
func (h *MatrixHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())
	siteID := r.URL.Query().Get("siteId")
	month := r.URL.Query().Get("processingMonth")
	if siteID == "" || month == "" {
		JSONError(w, http.StatusUnprocessableEntity, "siteId and processingMonth are required")
		return
	}

	approvedOnly := parseBoolParam(r, "approved_only")
	includeInactive := parseBoolParam(r, "include_inactive")

	rows, err := h.builder.Load(r.Context(), businessID, siteID, month, approvedOnly, includeInactive)
	if err != nil {
		log.Printf("error loading matrix for export: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to load matrix")
		return
	}
	matrix.SortEmployees(rows)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="hours-%s-%s.csv"`, siteID, month))

	cw := csv.NewWriter(w)
	header := []string{"Employee", "Passport ID", "Status"}
	for day := 1; day <= 31; day++ {
		header = append(header, strconv.Itoa(day))
	}
	if err := cw.Write(header); err != nil {
		log.Printf("error writing csv header: %v", err)
		return
	}

	for _, row := range rows {
		record := []string{row.FullName, row.PassportID, row.Status}
		for day := 1; day <= 31; day++ {
			if hours, ok := row.Days[day]; ok && hours != nil {
				record = append(record, strconv.FormatFloat(*hours, 'f', 2, 64))
			} else {
				record = append(record, "")
			}
		}
		if err := cw.Write(record); err != nil {
			log.Printf("error writing csv row: %v", err)
			return
		}
	}
	cw.Flush()
}
