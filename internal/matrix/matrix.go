// Package matrix builds the per-site, per-month hours grid used for export:
// one row per employee, one column per day, built from whichever work card
// is "effective" for that employee that month.
package matrix

import (
	"context"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"workcard-backend/internal/models"
)

// EmployeeRow is one employee's matrix row.
type EmployeeRow struct {
	EmployeeID string
	FullName   string
	PassportID string
	Days       map[int]*float64 // day_of_month -> total hours; days with no entry are absent, nil means an entry with no total
	Status     string           // review status of the effective card
}

// EmployeeUploadStatus summarizes whether an employee has an outstanding
// upload for the month, independent of the full matrix read.
type EmployeeUploadStatus struct {
	EmployeeID string
	FullName   string
	Status     string // NO_UPLOAD, or the review status of the employee's effective card
}

// Builder reads the matrix for a site/month out of Postgres.
type Builder struct {
	pool *pgxpool.Pool
}

// New builds a Builder over the given pool.
func New(pool *pgxpool.Pool) *Builder {
	return &Builder{pool: pool}
}

// Load returns the hours matrix for every employee at a site for a month.
// The effective card per employee is the APPROVED card if one exists,
// otherwise the most recently created card — ranked via a window function
// exactly like the original ranked_cards/best_cards CTE pair. approvedOnly
// restricts ranked_cards to APPROVED cards only (an employee with only a
// pending card then has no effective card at all), matching
// load_hours_matrix's approved_only filter. includeInactive selects every
// employee at the site (get_by_site) instead of only active ones
// (get_active_by_site). Employees are left-joined to their selected card so
// an employee with no card for the month still gets a row, status
// NO_UPLOAD — every employee appears exactly once.
func (b *Builder) Load(ctx context.Context, businessID, siteID, processingMonth string, approvedOnly, includeInactive bool) ([]EmployeeRow, error) {
	rows, err := b.pool.Query(ctx, `
		WITH ranked_cards AS (
			SELECT
				wc.id, wc.employee_id, wc.review_status,
				ROW_NUMBER() OVER (
					PARTITION BY wc.employee_id
					ORDER BY CASE WHEN wc.review_status = $1 THEN 0 ELSE 1 END, wc.created_at DESC, wc.id DESC
				) AS rnk
			FROM work_cards wc
			WHERE wc.business_id = $2 AND wc.site_id = $3 AND wc.processing_month = $4
			  AND wc.employee_id IS NOT NULL
			  AND ($5::boolean IS FALSE OR wc.review_status = $1)
		),
		selected_cards AS (
			SELECT id, employee_id, review_status FROM ranked_cards WHERE rnk = 1
		)
		SELECT
			e.id, e.full_name, COALESCE(e.passport_id, ''),
			COALESCE(sc.review_status, 'NO_UPLOAD'), d.day_of_month, d.total_hours
		FROM employees e
		LEFT JOIN selected_cards sc ON sc.employee_id = e.id
		LEFT JOIN work_card_day_entries d ON d.work_card_id = sc.id
		WHERE e.business_id = $2 AND e.site_id = $3
		  AND ($6::boolean IS TRUE OR e.is_active = true)
		ORDER BY lower(e.full_name), lower(COALESCE(e.passport_id, '')), e.id
	`, models.ReviewStatusApproved, businessID, siteID, processingMonth, approvedOnly, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byEmployee := map[string]*EmployeeRow{}
	var order []string

	for rows.Next() {
		var employeeID, fullName, passportID, status string
		var dayOfMonth *int
		var totalHours *float64
		if err := rows.Scan(&employeeID, &fullName, &passportID, &status, &dayOfMonth, &totalHours); err != nil {
			return nil, err
		}
		row, ok := byEmployee[employeeID]
		if !ok {
			row = &EmployeeRow{
				EmployeeID: employeeID,
				FullName:   fullName,
				PassportID: passportID,
				Days:       map[int]*float64{},
				Status:     status,
			}
			byEmployee[employeeID] = row
			order = append(order, employeeID)
		}
		if dayOfMonth != nil {
			row.Days[*dayOfMonth] = totalHours
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]EmployeeRow, 0, len(order))
	for _, id := range order {
		out = append(out, *byEmployee[id])
	}
	return out, nil
}

// SortEmployees orders rows the way the export does: by full name, then
// passport ID, then ID, all case-insensitive — matching the original's
// sort_employees_for_export key.
func SortEmployees(rows []EmployeeRow) {
	sort.Slice(rows, func(i, j int) bool {
		ni, nj := strings.ToLower(rows[i].FullName), strings.ToLower(rows[j].FullName)
		if ni != nj {
			return ni < nj
		}
		pi, pj := strings.ToLower(rows[i].PassportID), strings.ToLower(rows[j].PassportID)
		if pi != pj {
			return pi < pj
		}
		return rows[i].EmployeeID < rows[j].EmployeeID
	})
}

// UploadStatus derives a per-employee upload status for a site/month: every
// active employee at the site gets a row, defaulting to NO_UPLOAD when no
// card exists yet.
func (b *Builder) UploadStatus(ctx context.Context, businessID, siteID, processingMonth string) ([]EmployeeUploadStatus, error) {
	rows, err := b.pool.Query(ctx, `
		WITH ranked_cards AS (
			SELECT
				wc.employee_id, wc.review_status,
				ROW_NUMBER() OVER (
					PARTITION BY wc.employee_id
					ORDER BY CASE WHEN wc.review_status = $1 THEN 0 ELSE 1 END, wc.created_at DESC
				) AS rnk
			FROM work_cards wc
			WHERE wc.business_id = $2 AND wc.site_id = $3 AND wc.processing_month = $4
			  AND wc.employee_id IS NOT NULL
		)
		SELECT e.id, e.full_name, rc.review_status
		FROM employees e
		LEFT JOIN ranked_cards rc ON rc.employee_id = e.id AND rc.rnk = 1
		WHERE e.business_id = $2 AND e.site_id = $3 AND e.is_active = true
		ORDER BY lower(e.full_name)
	`, models.ReviewStatusApproved, businessID, siteID, processingMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmployeeUploadStatus
	for rows.Next() {
		var id, name string
		var reviewStatus *string
		if err := rows.Scan(&id, &name, &reviewStatus); err != nil {
			return nil, err
		}
		status := "NO_UPLOAD"
		if reviewStatus != nil {
			status = *reviewStatus
			if status == "" {
				status = "PENDING"
			}
		}
		out = append(out, EmployeeUploadStatus{EmployeeID: id, FullName: name, Status: status})
	}
	return out, rows.Err()
}
