package reconcile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workcard-backend/internal/models"
)

// PGStore is the Postgres-backed Store implementation used in production.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore builds a PGStore over the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetWorkCard(ctx context.Context, workCardID string) (*models.WorkCard, error) {
	var c models.WorkCard
	err := s.pool.QueryRow(ctx, `
		SELECT id, business_id, site_id, employee_id, processing_month, source,
		       uploaded_by_user_id, original_filename, mime_type, file_size_bytes, sha256_hash,
		       review_status, approved_by_user_id, approved_at::text, notes,
		       created_at::text, updated_at::text
		FROM work_cards WHERE id = $1
	`, workCardID).Scan(
		&c.ID, &c.BusinessID, &c.SiteID, &c.EmployeeID, &c.ProcessingMonth, &c.Source,
		&c.UploadedByUserID, &c.OriginalFilename, &c.MimeType, &c.FileSizeBytes, &c.SHA256Hash,
		&c.ReviewStatus, &c.ApprovedByUserID, &c.ApprovedAt, &c.Notes,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get work card: %w", err)
	}
	return &c, nil
}

func (s *PGStore) GetDayEntries(ctx context.Context, workCardID string) ([]models.WorkCardDayEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, work_card_id, day_of_month, from_time, to_time, total_hours,
		       source, is_valid, updated_by_user_id
		FROM work_card_day_entries WHERE work_card_id = $1 ORDER BY day_of_month ASC
	`, workCardID)
	if err != nil {
		return nil, fmt.Errorf("get day entries: %w", err)
	}
	defer rows.Close()

	var out []models.WorkCardDayEntry
	for rows.Next() {
		var e models.WorkCardDayEntry
		if err := rows.Scan(&e.ID, &e.WorkCardID, &e.DayOfMonth, &e.FromTime, &e.ToTime,
			&e.TotalHours, &e.Source, &e.IsValid, &e.UpdatedByUserID); err != nil {
			return nil, fmt.Errorf("scan day entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetPreviousCard returns the immediate previous card for the employee/month
// regardless of review_status — approval acts on whatever card preceded the
// current one, pending or approved, and decides what to do with it based on
// its ReviewStatus rather than filtering it out of contention up front.
func (s *PGStore) GetPreviousCard(ctx context.Context, employeeID, processingMonth, excludeWorkCardID string) (*models.WorkCard, error) {
	var c models.WorkCard
	err := s.pool.QueryRow(ctx, `
		SELECT id, business_id, site_id, employee_id, processing_month, source,
		       uploaded_by_user_id, original_filename, mime_type, file_size_bytes, sha256_hash,
		       review_status, approved_by_user_id, approved_at::text, notes,
		       created_at::text, updated_at::text
		FROM work_cards
		WHERE employee_id = $1 AND processing_month = $2 AND id != $3
		ORDER BY created_at DESC
		LIMIT 1
	`, employeeID, processingMonth, excludeWorkCardID).Scan(
		&c.ID, &c.BusinessID, &c.SiteID, &c.EmployeeID, &c.ProcessingMonth, &c.Source,
		&c.UploadedByUserID, &c.OriginalFilename, &c.MimeType, &c.FileSizeBytes, &c.SHA256Hash,
		&c.ReviewStatus, &c.ApprovedByUserID, &c.ApprovedAt, &c.Notes,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get previous card: %w", err)
	}
	return &c, nil
}

func (s *PGStore) UpsertDayEntry(ctx context.Context, entry models.WorkCardDayEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO work_card_day_entries (work_card_id, day_of_month, from_time, to_time, total_hours,
		                                    source, is_valid, updated_by_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (work_card_id, day_of_month) DO UPDATE SET
			from_time = EXCLUDED.from_time,
			to_time = EXCLUDED.to_time,
			total_hours = EXCLUDED.total_hours,
			source = EXCLUDED.source,
			is_valid = EXCLUDED.is_valid,
			updated_by_user_id = EXCLUDED.updated_by_user_id
	`, entry.WorkCardID, entry.DayOfMonth, entry.FromTime, entry.ToTime, entry.TotalHours,
		entry.Source, entry.IsValid, entry.UpdatedByUserID)
	if err != nil {
		return fmt.Errorf("upsert day entry: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteDayEntry(ctx context.Context, workCardID string, dayOfMonth int) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM work_card_day_entries WHERE work_card_id = $1 AND day_of_month = $2`, workCardID, dayOfMonth)
	if err != nil {
		return fmt.Errorf("delete day entry: %w", err)
	}
	return nil
}

func (s *PGStore) ApproveCard(ctx context.Context, workCardID, approvedByUserID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE work_cards SET review_status = $1, approved_by_user_id = $2, approved_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`, models.ReviewStatusApproved, approvedByUserID, workCardID)
	if err != nil {
		return fmt.Errorf("approve card: %w", err)
	}
	return nil
}
