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

// EmployeeHandler handles employee-related HTTP requests, scoped to the
// caller's business.
type EmployeeHandler struct {
	db database.Service
}

// NewEmployeeHandler creates a new EmployeeHandler.
func NewEmployeeHandler(db database.Service) *EmployeeHandler {
	return &EmployeeHandler{db: db}
}

const employeeCols = `id, business_id, site_id, full_name, passport_id, phone_number,
	status, external_employee_id, is_active, created_at::text, updated_at::text`

func scanEmployee(scanner interface {
	Scan(dest ...interface{}) error
}, emp *models.Employee) error {
	return scanner.Scan(
		&emp.ID, &emp.BusinessID, &emp.SiteID, &emp.FullName, &emp.PassportID, &emp.PhoneNumber,
		&emp.Status, &emp.ExternalEmployeeID, &emp.IsActive, &emp.CreatedAt, &emp.UpdatedAt,
	)
}

// List returns employees for the caller's business, optionally filtered by
// site via ?siteId=.
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())
	siteID := r.URL.Query().Get("siteId")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	query := `SELECT ` + employeeCols + ` FROM employees WHERE business_id = $1 ORDER BY full_name ASC`
	args := []interface{}{businessID}
	if siteID != "" {
		query = `SELECT ` + employeeCols + ` FROM employees WHERE business_id = $1 AND site_id = $2 ORDER BY full_name ASC`
		args = append(args, siteID)
	}

	rows, err := h.db.GetPool().Query(ctx, query, args...)
	if err != nil {
		log.Printf("Error fetching employees: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch employees")
		return
	}
	defer rows.Close()

	employees := []models.Employee{}
	for rows.Next() {
		var e models.Employee
		if err := scanEmployee(rows, &e); err != nil {
			log.Printf("Error scanning employee: %v", err)
			continue
		}
		employees = append(employees, e)
	}

	JSON(w, http.StatusOK, employees)
}

// GetByID returns a single employee within the caller's business.
func (h *EmployeeHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var e models.Employee
	err := scanEmployee(h.db.GetPool().QueryRow(ctx,
		`SELECT `+employeeCols+` FROM employees WHERE id = $1 AND business_id = $2`, id, businessID), &e)
	if err != nil {
		JSONError(w, http.StatusNotFound, "Employee not found")
		return
	}

	JSON(w, http.StatusOK, e)
}

// Create adds a new employee under the caller's business.
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())

	var req models.CreateEmployeeRequest
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

	var e models.Employee
	err := scanEmployee(h.db.GetPool().QueryRow(ctx, `
		INSERT INTO employees (business_id, site_id, full_name, passport_id, phone_number, status, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING `+employeeCols,
		businessID, req.SiteID, req.FullName, req.PassportID, req.PhoneNumber, req.Status,
	), &e)
	if err != nil {
		log.Printf("Error creating employee: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to create employee")
		return
	}

	JSONMessage(w, http.StatusCreated, "Employee created successfully", e)
}

// Update applies a partial update to an employee.
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())
	id := chi.URLParam(r, "id")

	var req models.UpdateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var e models.Employee
	err := scanEmployee(h.db.GetPool().QueryRow(ctx, `
		UPDATE employees SET
			site_id = COALESCE($1, site_id),
			full_name = COALESCE($2, full_name),
			passport_id = COALESCE($3, passport_id),
			phone_number = COALESCE($4, phone_number),
			status = COALESCE($5, status),
			updated_at = NOW()
		WHERE id = $6 AND business_id = $7
		RETURNING `+employeeCols,
		req.SiteID, req.FullName, req.PassportID, req.PhoneNumber, req.Status, id, businessID,
	), &e)
	if err != nil {
		JSONError(w, http.StatusNotFound, "Employee not found")
		return
	}

	JSONMessage(w, http.StatusOK, "Employee updated successfully", e)
}

// Delete deactivates an employee.
func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := h.db.GetPool().Exec(ctx,
		`UPDATE employees SET is_active = false, updated_at = NOW() WHERE id = $1 AND business_id = $2`, id, businessID)
	if err != nil {
		log.Printf("Error deactivating employee: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to deactivate employee")
		return
	}
	if result.RowsAffected() == 0 {
		JSONError(w, http.StatusNotFound, "Employee not found")
		return
	}

	JSONMessage(w, http.StatusOK, "Employee deactivated successfully", nil)
}
