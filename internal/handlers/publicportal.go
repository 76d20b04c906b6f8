package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/golang-jwt/jwt/v5"

	"workcard-backend/internal/accesslink"
	"workcard-backend/internal/ctxkeys"
	"workcard-backend/internal/database"
	"workcard-backend/internal/models"
	"workcard-backend/internal/storage"
)

// PortalHandler serves the public upload portal: identity verification and
// the upload itself, both scoped to a single tokenized access request.
type PortalHandler struct {
	db        database.Service
	svc       *accesslink.Service
	store     storage.Store
	jwtSecret []byte
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(db database.Service, svc *accesslink.Service, store storage.Store, jwtSecret string) *PortalHandler {
	return &PortalHandler{db: db, svc: svc, store: store, jwtSecret: []byte(jwtSecret)}
}

// VerifyIdentity checks the phone number against the access request's named
// employee and, on success, issues a short-lived portal session token.
func (h *PortalHandler) VerifyIdentity(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	accessReq, err := h.svc.VerifyIdentity(r.Context(), req.Token, req.PhoneNumber)
	if err != nil {
		JSONError(w, http.StatusUnauthorized, "Identity verification failed")
		return
	}

	claims := jwt.MapClaims{
		"requestId":       accessReq.ID,
		"businessId":      accessReq.BusinessID,
		"siteId":          accessReq.SiteID,
		"processingMonth": accessReq.ProcessingMonth,
		"exp":             time.Now().Add(1 * time.Hour).Unix(),
		"iat":             time.Now().Unix(),
	}
	if accessReq.EmployeeID != nil {
		claims["employeeId"] = *accessReq.EmployeeID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.jwtSecret)
	if err != nil {
		log.Printf("error signing portal session: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to start upload session")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"portalToken":     signed,
		"siteId":          accessReq.SiteID,
		"processingMonth": accessReq.ProcessingMonth,
	})
}

// Upload accepts a card image from the portal session and enqueues it for
// extraction exactly like the staff upload path, but sourced as
// RESPONSIBLE_EMPLOYEE and scoped entirely by the portal session's claims.
func (h *PortalHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims := ctxkeys.GetPortalClaims(r.Context())
	if claims == nil {
		JSONError(w, http.StatusUnauthorized, "No active upload session")
		return
	}

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

	storagePath := fmt.Sprintf("cards/%s/%d_%s", claims.BusinessID, time.Now().Unix(), sanitizeCardFilename(header.Filename))
	if _, err := h.store.Save(ctx, storagePath, bytes.NewReader(raw), contentType); err != nil {
		log.Printf("portal card archive failed: %v", err)
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

	var employeeID *string
	if claims.EmployeeID != "" {
		employeeID = &claims.EmployeeID
	}

	var cardID string
	err = tx.QueryRow(ctx, `
		INSERT INTO work_cards (business_id, site_id, employee_id, processing_month, source,
		                        original_filename, mime_type, file_size_bytes, sha256_hash, review_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, claims.BusinessID, claims.SiteID, employeeID, claims.ProcessingMonth, models.SourceResponsibleEmployee,
		header.Filename, contentType, int64(len(raw)), hash,
		reviewStatusForPortalUpload(employeeID),
	).Scan(&cardID)
	if err != nil {
		log.Printf("error creating portal work card: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to create work card.")
		return
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO work_card_files (work_card_id, content_type, file_name, file_size_bytes, image_bytes)
		VALUES ($1, $2, $3, $4, $5)
	`, cardID, contentType, header.Filename, int64(len(raw)), raw); err != nil {
		log.Printf("error storing portal card image bytes: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to store card image.")
		return
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO extraction_jobs (work_card_id, status, pipeline_version)
		VALUES ($1, $2, $3)
	`, cardID, models.JobStatusPending, "1.0.0"); err != nil {
		log.Printf("error enqueueing portal extraction job: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to enqueue extraction.")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		JSONError(w, http.StatusInternalServerError, "Failed to create work card.")
		return
	}

	JSONMessage(w, http.StatusCreated, "Thanks — your work card was received", nil)
}

func reviewStatusForPortalUpload(employeeID *string) string {
	if employeeID != nil {
		return models.ReviewStatusNeedsReview
	}
	return models.ReviewStatusNeedsAssignment
}
