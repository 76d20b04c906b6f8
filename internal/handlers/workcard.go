package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"workcard-backend/internal/ctxkeys"
	"workcard-backend/internal/database"
	"workcard-backend/internal/models"
	"workcard-backend/internal/reconcile"
	"workcard-backend/internal/storage"
)

const maxCardUploadSize = 15 << 20 // 15 MB

var allowedCardTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// WorkCardHandler handles work card upload, review, and approval.
type WorkCardHandler struct {
	db     database.Service
	store  storage.Store
	engine *reconcile.Engine
}

// NewWorkCardHandler creates a new WorkCardHandler.
func NewWorkCardHandler(db database.Service, store storage.Store) *WorkCardHandler {
	return &WorkCardHandler{
		db:     db,
		store:  store,
		engine: reconcile.New(reconcile.NewPGStore(db.GetPool())),
	}
}

// Upload accepts a multipart file upload, archives it, creates the pending
// work card row, and enqueues an extraction job for the scheduler to pick up.
func (h *WorkCardHandler) Upload(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())
	userID, _ := r.Context().Value(ctxkeys.UserID).(string)

	r.Body = http.MaxBytesReader(w, r.Body, maxCardUploadSize)
	if err := r.ParseMultipartForm(maxCardUploadSize); err != nil {
		JSONError(w, http.StatusBadRequest, "File too large. Maximum size is 15MB.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		JSONError(w, http.StatusBadRequest, "Missing 'file' field in form data.")
		return
	}
	defer file.Close()

	siteID := r.FormValue("siteId")
	processingMonth := r.FormValue("processingMonth")
	if processingMonth == "" {
		JSONError(w, http.StatusUnprocessableEntity, "processingMonth is required")
		return
	}

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		JSONError(w, http.StatusBadRequest, "Could not read file.")
		return
	}
	contentType := mtype.String()
	if !allowedCardTypes[contentType] {
		JSONError(w, http.StatusBadRequest, fmt.Sprintf("File type '%s' not allowed.", contentType))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		JSONError(w, http.StatusInternalServerError, "Failed to process file.")
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		JSONError(w, http.StatusInternalServerError, "Failed to read file.")
		return
	}
	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	storagePath := fmt.Sprintf("cards/%s/%d_%s", businessID, time.Now().Unix(), sanitizeCardFilename(header.Filename))
	if _, err := h.store.Save(ctx, storagePath, bytes.NewReader(raw), contentType); err != nil {
		log.Printf("card archive failed: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to archive card image.")
		return
	}

	pool := h.db.GetPool()
	tx, err := pool.Begin(ctx)
	if err != nil {
		JSONError(w, http.StatusInternalServerError, "Failed to create work card.")
		return
	}
	defer tx.Rollback(ctx)

	var card models.WorkCard
	err = tx.QueryRow(ctx, `
		INSERT INTO work_cards (business_id, site_id, processing_month, source, uploaded_by_user_id,
		                        original_filename, mime_type, file_size_bytes, sha256_hash, review_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, business_id, site_id, employee_id, processing_month, source,
		          uploaded_by_user_id, original_filename, mime_type, file_size_bytes, sha256_hash,
		          review_status, approved_by_user_id, approved_at::text, notes,
		          created_at::text, updated_at::text
	`, businessID, nilIfEmptyStr(siteID), processingMonth, models.SourceAdminUpload, userID,
		header.Filename, contentType, int64(len(raw)), hash, models.ReviewStatusNeedsAssignment,
	).Scan(
		&card.ID, &card.BusinessID, &card.SiteID, &card.EmployeeID, &card.ProcessingMonth, &card.Source,
		&card.UploadedByUserID, &card.OriginalFilename, &card.MimeType, &card.FileSizeBytes, &card.SHA256Hash,
		&card.ReviewStatus, &card.ApprovedByUserID, &card.ApprovedAt, &card.Notes,
		&card.CreatedAt, &card.UpdatedAt,
	)
	if err != nil {
		log.Printf("error creating work card: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to create work card.")
		return
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO work_card_files (work_card_id, content_type, file_name, file_size_bytes, image_bytes)
		VALUES ($1, $2, $3, $4, $5)
	`, card.ID, contentType, header.Filename, int64(len(raw)), raw); err != nil {
		log.Printf("error storing card image bytes: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to store card image.")
		return
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO extraction_jobs (work_card_id, status, pipeline_version)
		VALUES ($1, $2, $3)
	`, card.ID, models.JobStatusPending, "1.0.0"); err != nil {
		log.Printf("error enqueueing extraction job: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to enqueue extraction.")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		JSONError(w, http.StatusInternalServerError, "Failed to create work card.")
		return
	}

	JSONMessage(w, http.StatusCreated, "Work card uploaded; extraction queued", card)
}

// List returns work cards for the caller's business filtered by site and
// month.
func (h *WorkCardHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())
	siteID := r.URL.Query().Get("siteId")
	month := r.URL.Query().Get("processingMonth")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	query := `SELECT id, business_id, site_id, employee_id, processing_month, source,
	                 uploaded_by_user_id, original_filename, mime_type, file_size_bytes, sha256_hash,
	                 review_status, approved_by_user_id, approved_at::text, notes,
	                 created_at::text, updated_at::text
	          FROM work_cards WHERE business_id = $1`
	args := []interface{}{businessID}
	if siteID != "" {
		args = append(args, siteID)
		query += fmt.Sprintf(" AND site_id = $%d", len(args))
	}
	if month != "" {
		args = append(args, month)
		query += fmt.Sprintf(" AND processing_month = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := h.db.GetPool().Query(ctx, query, args...)
	if err != nil {
		log.Printf("error listing work cards: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to list work cards")
		return
	}
	defer rows.Close()

	cards := []models.WorkCard{}
	for rows.Next() {
		var c models.WorkCard
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.SiteID, &c.EmployeeID, &c.ProcessingMonth, &c.Source,
			&c.UploadedByUserID, &c.OriginalFilename, &c.MimeType, &c.FileSizeBytes, &c.SHA256Hash,
			&c.ReviewStatus, &c.ApprovedByUserID, &c.ApprovedAt, &c.Notes,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			log.Printf("error scanning work card: %v", err)
			continue
		}
		cards = append(cards, c)
	}

	JSON(w, http.StatusOK, cards)
}

type workCardDetail struct {
	models.WorkCard
	DayEntries []models.WorkCardDayEntry `json:"dayEntries"`
}

// GetByID returns a card with its day entries.
func (h *WorkCardHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	store := reconcile.NewPGStore(h.db.GetPool())
	card, err := store.GetWorkCard(ctx, id)
	if err != nil {
		JSONError(w, http.StatusNotFound, "Work card not found")
		return
	}
	entries, err := store.GetDayEntries(ctx, id)
	if err != nil {
		JSONError(w, http.StatusInternalServerError, "Failed to load day entries")
		return
	}

	JSON(w, http.StatusOK, workCardDetail{WorkCard: *card, DayEntries: entries})
}

// UpdateDayEntries applies a bulk manual edit to a card's day entries.
func (h *WorkCardHandler) UpdateDayEntries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, _ := r.Context().Value(ctxkeys.UserID).(string)

	var reqEntries []models.UpdateDayEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&reqEntries); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	store := reconcile.NewPGStore(h.db.GetPool())
	card, err := store.GetWorkCard(ctx, id)
	if err != nil {
		JSONError(w, http.StatusNotFound, "Work card not found")
		return
	}

	incoming := make([]models.WorkCardDayEntry, 0, len(reqEntries))
	for _, e := range reqEntries {
		incoming = append(incoming, models.WorkCardDayEntry{
			WorkCardID: id,
			DayOfMonth: e.DayOfMonth,
			FromTime:   e.FromTime,
			ToTime:     e.ToTime,
			TotalHours: e.TotalHours,
			Source:     models.EntrySourceManual,
			IsValid:    true,
			UpdatedByUserID: &userID,
		})
	}

	if err := h.engine.UpdateDayEntries(ctx, card, incoming); err != nil {
		if errors.Is(err, reconcile.ErrApprovalLocked) {
			JSONError(w, http.StatusConflict, "One or more days are locked by a previously approved card")
			return
		}
		log.Printf("error updating day entries: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to update day entries")
		return
	}

	JSONMessage(w, http.StatusOK, "Day entries updated", nil)
}

// AssignEmployee manually assigns an employee to a card stuck in
// NEEDS_ASSIGNMENT.
func (h *WorkCardHandler) AssignEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		EmployeeID string `json:"employeeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EmployeeID == "" {
		JSONError(w, http.StatusBadRequest, "employeeId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := h.db.GetPool().Exec(ctx, `
		UPDATE work_cards SET employee_id = $1, review_status = $2, updated_at = NOW()
		WHERE id = $3 AND review_status = $4
	`, req.EmployeeID, models.ReviewStatusNeedsReview, id, models.ReviewStatusNeedsAssignment)
	if err != nil {
		log.Printf("error assigning employee: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to assign employee")
		return
	}
	if result.RowsAffected() == 0 {
		JSONError(w, http.StatusConflict, "Card is not awaiting assignment")
		return
	}

	JSONMessage(w, http.StatusOK, "Employee assigned", nil)
}

// Approve runs the reconciliation engine's approval transaction.
func (h *WorkCardHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, _ := r.Context().Value(ctxkeys.UserID).(string)

	var req models.ApproveWorkCardRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JSONError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	conflicts, err := h.engine.Approve(ctx, id, reconcile.ApproveRequest{
		ApprovedByUserID:     userID,
		OverrideConflictDays: req.OverrideConflictDays,
		ConfirmOverride:      req.ConfirmOverride,
	})
	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrSiteRequired):
			JSONError(w, http.StatusUnprocessableEntity, "A site must be assigned before approval")
		case errors.Is(err, reconcile.ErrOverrideConfirmationRequired):
			JSONMeta(w, http.StatusConflict, nil, map[string]interface{}{
				"lockedConflicts": conflicts,
				"message":         "Approving this card overwrites previously approved days — confirm to proceed",
			})
		default:
			log.Printf("error approving card: %v", err)
			JSONError(w, http.StatusInternalServerError, "Failed to approve work card")
		}
		return
	}

	JSONMessage(w, http.StatusOK, "Work card approved", conflicts)
}

func sanitizeCardFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
