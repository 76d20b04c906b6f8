package scheduler

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workcard-backend/internal/models"
	"workcard-backend/internal/resolver"
)

// PGWorkCardStore implements WorkCardStore against Postgres.
type PGWorkCardStore struct {
	pool *pgxpool.Pool
}

// NewPGWorkCardStore builds a PGWorkCardStore over the given pool.
func NewPGWorkCardStore(pool *pgxpool.Pool) *PGWorkCardStore {
	return &PGWorkCardStore{pool: pool}
}

func (s *PGWorkCardStore) GetWorkCard(ctx context.Context, workCardID string) (*models.WorkCard, error) {
	var c models.WorkCard
	err := s.pool.QueryRow(ctx, `
		SELECT id, business_id, site_id, employee_id, processing_month, review_status
		FROM work_cards WHERE id = $1
	`, workCardID).Scan(&c.ID, &c.BusinessID, &c.SiteID, &c.EmployeeID, &c.ProcessingMonth, &c.ReviewStatus)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PGWorkCardStore) GetImageBytes(ctx context.Context, workCardID string) ([]byte, string, error) {
	var bytes []byte
	var contentType string
	err := s.pool.QueryRow(ctx, `
		SELECT image_bytes, content_type FROM work_card_files WHERE work_card_id = $1
	`, workCardID).Scan(&bytes, &contentType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", errors.New("no image file attached to work card")
		}
		return nil, "", err
	}
	return bytes, contentType, nil
}

func (s *PGWorkCardStore) GetPreviousCard(ctx context.Context, employeeID, processingMonth, excludeWorkCardID string) (*models.WorkCard, error) {
	var c models.WorkCard
	err := s.pool.QueryRow(ctx, `
		SELECT id, business_id, site_id, employee_id, processing_month, review_status
		FROM work_cards
		WHERE employee_id = $1 AND processing_month = $2 AND id != $3
		ORDER BY created_at DESC
		LIMIT 1
	`, employeeID, processingMonth, excludeWorkCardID).Scan(
		&c.ID, &c.BusinessID, &c.SiteID, &c.EmployeeID, &c.ProcessingMonth, &c.ReviewStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *PGWorkCardStore) GetDayEntries(ctx context.Context, workCardID string) ([]models.WorkCardDayEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, work_card_id, day_of_month, from_time, to_time, total_hours, source, is_valid
		FROM work_card_day_entries
		WHERE work_card_id = $1
		ORDER BY day_of_month
	`, workCardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.WorkCardDayEntry
	for rows.Next() {
		var e models.WorkCardDayEntry
		if err := rows.Scan(&e.ID, &e.WorkCardID, &e.DayOfMonth, &e.FromTime, &e.ToTime, &e.TotalHours, &e.Source, &e.IsValid); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PGWorkCardStore) CreateDayEntry(ctx context.Context, entry models.WorkCardDayEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO work_card_day_entries
			(work_card_id, day_of_month, from_time, to_time, total_hours, source, is_valid, validation_errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (work_card_id, day_of_month) DO NOTHING
	`, entry.WorkCardID, entry.DayOfMonth, entry.FromTime, entry.ToTime, entry.TotalHours,
		entry.Source, entry.IsValid, entry.ValidationErrors)
	return err
}

func (s *PGWorkCardStore) SetEmployee(ctx context.Context, workCardID, employeeID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE work_cards SET employee_id = $1, updated_at = NOW() WHERE id = $2
	`, employeeID, workCardID)
	return err
}

func (s *PGWorkCardStore) SetReviewStatus(ctx context.Context, workCardID, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE work_cards SET review_status = $1, updated_at = NOW() WHERE id = $2
	`, status, workCardID)
	return err
}

// PGEmployeeStore implements EmployeeStore against Postgres.
type PGEmployeeStore struct {
	pool *pgxpool.Pool
}

// NewPGEmployeeStore builds a PGEmployeeStore over the given pool.
func NewPGEmployeeStore(pool *pgxpool.Pool) *PGEmployeeStore {
	return &PGEmployeeStore{pool: pool}
}

func (s *PGEmployeeStore) ListCandidates(ctx context.Context, businessID string, siteID *string) ([]resolver.Candidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, full_name, passport_id, site_id
		FROM employees
		WHERE business_id = $1 AND is_active = true
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resolver.Candidate
	for rows.Next() {
		var c resolver.Candidate
		if err := rows.Scan(&c.EmployeeID, &c.FullName, &c.PassportID, &c.SiteID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGEmployeeStore) GetPassportID(ctx context.Context, employeeID string) (*string, error) {
	var passportID *string
	err := s.pool.QueryRow(ctx, `SELECT passport_id FROM employees WHERE id = $1`, employeeID).Scan(&passportID)
	if err != nil {
		return nil, err
	}
	return passportID, nil
}
