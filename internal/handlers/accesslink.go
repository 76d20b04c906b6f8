package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"workcard-backend/internal/accesslink"
	"workcard-backend/internal/ctxkeys"
	"workcard-backend/internal/models"
)

// AccessLinkHandler issues tokenized public upload links for responsible
// employees.
type AccessLinkHandler struct {
	svc *accesslink.Service
}

// NewAccessLinkHandler creates a new AccessLinkHandler.
func NewAccessLinkHandler(svc *accesslink.Service) *AccessLinkHandler {
	return &AccessLinkHandler{svc: svc}
}

// Create issues a new access link and notifies the named employee.
func (h *AccessLinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	businessID := ctxkeys.GetBusinessID(r.Context())
	userID, _ := r.Context().Value(ctxkeys.UserID).(string)

	var req models.CreateAccessLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		JSONMeta(w, http.StatusUnprocessableEntity, nil, errs)
		return
	}

	created, err := h.svc.CreateAndNotify(r.Context(), businessID, userID, req)
	if err != nil {
		log.Printf("error creating access link: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to create access link")
		return
	}

	JSONMessage(w, http.StatusCreated, "Access link created", created)
}
