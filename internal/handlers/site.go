package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"workcard-backend/internal/ctxkeys"
	"workcard-backend/internal/database"
	"workcard-backend/internal/models"
)

// SiteHandler handles site CRUD, scoped to the caller's business.
type SiteHandler struct {
	db database.Service
}

// NewSiteHandler creates a new SiteHandler.
func NewSiteHandler(db database.Service) *SiteHandler {
	return &SiteHandler{db: db}
}

// List returns all sites for the caller's business.
func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.db.GetPool().Query(ctx, `
		SELECT id, business_id, name, code, responsible_employee_id, is_active,
		       created_at::text, updated_at::text
		FROM sites WHERE business_id = $1 ORDER BY name ASC
	`, businessID)
	if err != nil {
		log.Printf("Error fetching sites: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch sites")
		return
	}
	defer rows.Close()

	sites := []models.Site{}
	for rows.Next() {
		var s models.Site
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Code, &s.ResponsibleEmployeeID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			log.Printf("Error scanning site: %v", err)
			continue
		}
		sites = append(sites, s)
	}

	JSON(w, http.StatusOK, sites)
}

// Create adds a new site under the caller's business.
func (h *SiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())

	var req models.CreateSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		JSONMeta(w, http.StatusUnprocessableEntity, nil, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var s models.Site
	err := h.db.GetPool().QueryRow(ctx, `
		INSERT INTO sites (business_id, name, code, responsible_employee_id, is_active)
		VALUES ($1, $2, $3, $4, true)
		RETURNING id, business_id, name, code, responsible_employee_id, is_active,
		          created_at::text, updated_at::text
	`, businessID, req.Name, nilIfEmptyStr(req.Code), req.ResponsibleEmployeeID).Scan(
		&s.ID, &s.BusinessID, &s.Name, &s.Code, &s.ResponsibleEmployeeID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "A site with this code already exists")
			return
		}
		log.Printf("Error creating site: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to create site")
		return
	}

	JSONMessage(w, http.StatusCreated, "Site created successfully", s)
}

// Update modifies a site's details.
func (h *SiteHandler) Update(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())
	id := chi.URLParam(r, "id")

	var req models.CreateSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		JSONMeta(w, http.StatusUnprocessableEntity, nil, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var s models.Site
	err := h.db.GetPool().QueryRow(ctx, `
		UPDATE sites SET name = $1, code = $2, responsible_employee_id = $3, updated_at = NOW()
		WHERE id = $4 AND business_id = $5
		RETURNING id, business_id, name, code, responsible_employee_id, is_active,
		          created_at::text, updated_at::text
	`, req.Name, nilIfEmptyStr(req.Code), req.ResponsibleEmployeeID, id, businessID).Scan(
		&s.ID, &s.BusinessID, &s.Name, &s.Code, &s.ResponsibleEmployeeID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "A site with this code already exists")
			return
		}
		JSONError(w, http.StatusNotFound, "Site not found")
		return
	}

	JSONMessage(w, http.StatusOK, "Site updated successfully", s)
}

// Delete deactivates a site.
func (h *SiteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := h.db.GetPool().Exec(ctx,
		`UPDATE sites SET is_active = false, updated_at = NOW() WHERE id = $1 AND business_id = $2`, id, businessID)
	if err != nil {
		log.Printf("Error deactivating site: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to deactivate site")
		return
	}
	if result.RowsAffected() == 0 {
		JSONError(w, http.StatusNotFound, "Site not found")
		return
	}

	JSONMessage(w, http.StatusOK, "Site deactivated successfully", nil)
}
