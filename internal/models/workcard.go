package models

// WorkCard review status values.
const (
	ReviewStatusNeedsAssignment = "NEEDS_ASSIGNMENT"
	ReviewStatusNeedsReview     = "NEEDS_REVIEW"
	ReviewStatusApproved        = "APPROVED"
)

// WorkCard source values — how the card's image(s) entered the system.
const (
	SourceAdminUpload        = "ADMIN_UPLOAD"
	SourceResponsibleEmployee = "RESPONSIBLE_EMPLOYEE"
	SourceTelegram            = "TELEGRAM"
)

// WorkCard is one photographed monthly hours card, pending or already
// reconciled into the approved record for its employee/month.
type WorkCard struct {
	ID               string  `json:"id"`
	BusinessID       string  `json:"businessId"`
	SiteID           *string `json:"siteId,omitempty"`
	EmployeeID       *string `json:"employeeId,omitempty"`
	ProcessingMonth  string  `json:"processingMonth"` // "YYYY-MM"
	Source           string  `json:"source"`
	UploadedByUserID *string `json:"uploadedByUserId,omitempty"`
	OriginalFilename string  `json:"originalFilename"`
	MimeType         string  `json:"mimeType"`
	FileSizeBytes    int64   `json:"fileSizeBytes"`
	SHA256Hash       string  `json:"sha256Hash"`
	ReviewStatus     string  `json:"reviewStatus"`
	ApprovedByUserID *string `json:"approvedByUserId,omitempty"`
	ApprovedAt       *string `json:"approvedAt,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	CreatedAt        string  `json:"createdAt"`
	UpdatedAt        string  `json:"updatedAt"`
}

// WorkCardFile holds the raw bytes of the uploaded image, stored alongside
// the card metadata (one file per card in the base schema; extraction acts
// on this blob).
type WorkCardFile struct {
	ID            string `json:"id"`
	WorkCardID    string `json:"workCardId"`
	ContentType   string `json:"contentType"`
	FileName      string `json:"fileName"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
	ImageBytes    []byte `json:"-"`
}

// WorkCardDayEntry sources.
const (
	EntrySourceExtracted       = "EXTRACTED"
	EntrySourceManual          = "MANUAL"
	EntrySourceCarriedForward  = "CARRIED_FORWARD"
)

// WorkCardDayEntry is one day's from/to/total hours on a card.
type WorkCardDayEntry struct {
	ID               string   `json:"id"`
	WorkCardID       string   `json:"workCardId"`
	DayOfMonth       int      `json:"dayOfMonth"`
	FromTime         *string  `json:"fromTime,omitempty"` // "HH:MM"
	ToTime           *string  `json:"toTime,omitempty"`
	TotalHours       *float64 `json:"totalHours,omitempty"`
	Source           string   `json:"source"`
	IsValid          bool     `json:"isValid"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
	UpdatedByUserID  *string  `json:"updatedByUserId,omitempty"`
}

// UpdateDayEntryRequest is a single incoming day entry on the bulk update
// endpoint.
type UpdateDayEntryRequest struct {
	DayOfMonth int      `json:"dayOfMonth"`
	FromTime   *string  `json:"fromTime,omitempty"`
	ToTime     *string  `json:"toTime,omitempty"`
	TotalHours *float64 `json:"totalHours,omitempty"`
}

// ApproveWorkCardRequest carries the operator's override decision when the
// current card conflicts with an already-approved previous card.
type ApproveWorkCardRequest struct {
	OverrideConflictDays []int `json:"overrideConflictDays,omitempty"`
	ConfirmOverride      bool  `json:"confirmOverrideApproved,omitempty"`
}
