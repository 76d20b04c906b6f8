package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"workcard-backend/internal/database"
	"workcard-backend/internal/models"
)

// BusinessHandler handles business (tenant) CRUD. Only super_admin reaches
// these routes — see the route wiring in cmd/api.
type BusinessHandler struct {
	db database.Service
}

// NewBusinessHandler creates a new BusinessHandler.
func NewBusinessHandler(db database.Service) *BusinessHandler {
	return &BusinessHandler{db: db}
}

// List returns all businesses, ordered alphabetically.
func (h *BusinessHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.db.GetPool().Query(ctx, `
		SELECT id, name, code, is_active, created_at::text, updated_at::text
		FROM businesses ORDER BY name ASC
	`)
	if err != nil {
		log.Printf("Error fetching businesses: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch businesses")
		return
	}
	defer rows.Close()

	businesses := []models.Business{}
	for rows.Next() {
		var b models.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Code, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
			log.Printf("Error scanning business: %v", err)
			continue
		}
		businesses = append(businesses, b)
	}

	JSON(w, http.StatusOK, businesses)
}

// Create adds a new business.
func (h *BusinessHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBusinessRequest
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

	var b models.Business
	err := h.db.GetPool().QueryRow(ctx, `
		INSERT INTO businesses (name, code, is_active)
		VALUES ($1, $2, true)
		RETURNING id, name, code, is_active, created_at::text, updated_at::text
	`, req.Name, nilIfEmptyStr(req.Code)).Scan(
		&b.ID, &b.Name, &b.Code, &b.IsActive, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "A business with this code already exists")
			return
		}
		log.Printf("Error creating business: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to create business")
		return
	}

	JSONMessage(w, http.StatusCreated, "Business created successfully", b)
}

// Update modifies a business's details.
func (h *BusinessHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.CreateBusinessRequest
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

	var b models.Business
	err := h.db.GetPool().QueryRow(ctx, `
		UPDATE businesses SET name = $1, code = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING id, name, code, is_active, created_at::text, updated_at::text
	`, req.Name, nilIfEmptyStr(req.Code), id).Scan(
		&b.ID, &b.Name, &b.Code, &b.IsActive, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "A business with this code already exists")
			return
		}
		JSONError(w, http.StatusNotFound, "Business not found")
		return
	}

	JSONMessage(w, http.StatusOK, "Business updated successfully", b)
}

// Delete deactivates a business rather than hard-deleting it — the tenant's
// historical work cards stay auditable.
func (h *BusinessHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := h.db.GetPool().Exec(ctx, `UPDATE businesses SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		log.Printf("Error deactivating business: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to deactivate business")
		return
	}
	if result.RowsAffected() == 0 {
		JSONError(w, http.StatusNotFound, "Business not found")
		return
	}

	JSONMessage(w, http.StatusOK, "Business deactivated successfully", nil)
}
