// Package reconcile implements the monthly reconciliation engine: picking
// the effective card for an employee/month, classifying day-level conflicts
// against whatever was already approved, and running the approval
// transaction that locks days in and carries forward whatever the new card
// didn't touch.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"workcard-backend/internal/models"
)

// ErrApprovalLocked is returned when an incoming day entry contradicts a
// day already approved on a previous card, and the caller hasn't overridden it.
var ErrApprovalLocked = errors.New("day is locked by a previously approved card")

// ErrSiteRequired is returned when approval is attempted on a card with no site.
var ErrSiteRequired = errors.New("site is required before a card can be approved")

// ErrOverrideConfirmationRequired is returned when override days are named
// but not confirmed — the 409 round-trip the original API uses to make the
// operator acknowledge they're overwriting an approved day.
var ErrOverrideConfirmationRequired = errors.New("override requires confirmation")

// Store is the persistence contract the engine needs.
type Store interface {
	GetWorkCard(ctx context.Context, workCardID string) (*models.WorkCard, error)
	GetDayEntries(ctx context.Context, workCardID string) ([]models.WorkCardDayEntry, error)
	GetPreviousCard(ctx context.Context, employeeID, processingMonth, excludeWorkCardID string) (*models.WorkCard, error)
	UpsertDayEntry(ctx context.Context, entry models.WorkCardDayEntry) error
	DeleteDayEntry(ctx context.Context, workCardID string, dayOfMonth int) error
	ApproveCard(ctx context.Context, workCardID, approvedByUserID string) error
}

// ConflictKind classifies how an incoming day entry relates to what's
// already on record for the employee/month.
type ConflictKind string

const (
	ConflictNone         ConflictKind = "NONE"
	ConflictWithApproved ConflictKind = "WITH_APPROVED"
	ConflictWithPending  ConflictKind = "WITH_PENDING"
)

// DayConflict describes one day's disposition relative to the previous card.
type DayConflict struct {
	DayOfMonth int
	Kind       ConflictKind
	Locked     bool
}

// Engine runs reconciliation operations against a Store.
type Engine struct {
	store Store
}

// New builds an Engine over the given store.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// ClassifyConflicts compares the incoming (proposed) day entries for a card
// against whatever the previous card for the same employee/month already
// has, reporting which days are a no-op, which merely differ from an
// unapproved previous card, and which differ from an APPROVED previous
// card (the only kind that can block approval).
func (e *Engine) ClassifyConflicts(ctx context.Context, card *models.WorkCard, previous *models.WorkCard, incoming []models.WorkCardDayEntry) ([]DayConflict, error) {
	var previousEntries []models.WorkCardDayEntry
	if previous != nil {
		var err error
		previousEntries, err = e.store.GetDayEntries(ctx, previous.ID)
		if err != nil {
			return nil, fmt.Errorf("load previous entries: %w", err)
		}
	}
	prevByDay := make(map[int]models.WorkCardDayEntry, len(previousEntries))
	for _, pe := range previousEntries {
		prevByDay[pe.DayOfMonth] = pe
	}

	var out []DayConflict
	for _, in := range incoming {
		prev, ok := prevByDay[in.DayOfMonth]
		if !ok || entriesEqual(prev, in) {
			out = append(out, DayConflict{DayOfMonth: in.DayOfMonth, Kind: ConflictNone})
			continue
		}
		if previous != nil && previous.ReviewStatus == models.ReviewStatusApproved {
			out = append(out, DayConflict{DayOfMonth: in.DayOfMonth, Kind: ConflictWithApproved, Locked: true})
		} else {
			out = append(out, DayConflict{DayOfMonth: in.DayOfMonth, Kind: ConflictWithPending})
		}
	}
	return out, nil
}

// UpdateDayEntries validates and persists a bulk day-entry update, refusing
// any day that contradicts an already-approved previous card unless the
// caller names it explicitly as an intentional override via Approve's
// override flow — a plain edit can never silently clobber an approved day.
func (e *Engine) UpdateDayEntries(ctx context.Context, card *models.WorkCard, incoming []models.WorkCardDayEntry) error {
	var previous *models.WorkCard
	if card.EmployeeID != nil {
		var err error
		previous, err = e.store.GetPreviousCard(ctx, *card.EmployeeID, card.ProcessingMonth, card.ID)
		if err != nil {
			return fmt.Errorf("load previous card: %w", err)
		}
	}

	conflicts, err := e.ClassifyConflicts(ctx, card, previous, incoming)
	if err != nil {
		return err
	}
	lockedDays := map[int]bool{}
	for _, c := range conflicts {
		if c.Locked {
			lockedDays[c.DayOfMonth] = true
		}
	}
	if len(lockedDays) > 0 {
		return fmt.Errorf("%w: day(s) locked by a previously approved card", ErrApprovalLocked)
	}

	for _, entry := range incoming {
		if err := e.store.UpsertDayEntry(ctx, entry); err != nil {
			return fmt.Errorf("upsert day %d: %w", entry.DayOfMonth, err)
		}
	}
	return nil
}

// ApproveRequest carries the operator's decision when conflicts with an
// already-approved previous card exist.
type ApproveRequest struct {
	ApprovedByUserID     string
	OverrideConflictDays []int
	ConfirmOverride      bool
}

// Approve runs the approval transaction: for each day that conflicts with
// an already-approved previous card, either the current card's value wins
// (if the operator named that day in OverrideConflictDays and confirmed
// it) or the previous card's value is carried forward onto this card. Days
// that conflict only with a non-approved previous card always let the
// current card win — only an APPROVED previous card can veto. Finally the
// card itself is marked APPROVED.
func (e *Engine) Approve(ctx context.Context, workCardID string, req ApproveRequest) ([]DayConflict, error) {
	card, err := e.store.GetWorkCard(ctx, workCardID)
	if err != nil {
		return nil, fmt.Errorf("load card: %w", err)
	}
	if card.SiteID == nil {
		return nil, ErrSiteRequired
	}

	var previous *models.WorkCard
	if card.EmployeeID != nil {
		previous, err = e.store.GetPreviousCard(ctx, *card.EmployeeID, card.ProcessingMonth, card.ID)
		if err != nil {
			return nil, fmt.Errorf("load previous card: %w", err)
		}
	}

	current, err := e.store.GetDayEntries(ctx, workCardID)
	if err != nil {
		return nil, fmt.Errorf("load current entries: %w", err)
	}

	conflicts, err := e.ClassifyConflicts(ctx, card, previous, current)
	if err != nil {
		return nil, err
	}

	approvedConflictDays := map[int]bool{}
	for _, d := range req.OverrideConflictDays {
		approvedConflictDays[d] = true
	}

	var lockedConflicts []DayConflict
	needsConfirmation := false
	for _, c := range conflicts {
		if c.Locked {
			lockedConflicts = append(lockedConflicts, c)
			if approvedConflictDays[c.DayOfMonth] {
				needsConfirmation = true
			}
		}
	}
	if needsConfirmation && !req.ConfirmOverride {
		return lockedConflicts, ErrOverrideConfirmationRequired
	}

	previousEntries := map[int]models.WorkCardDayEntry{}
	if previous != nil {
		entries, err := e.store.GetDayEntries(ctx, previous.ID)
		if err != nil {
			return nil, fmt.Errorf("load previous entries for carry-forward: %w", err)
		}
		for _, pe := range entries {
			previousEntries[pe.DayOfMonth] = pe
		}
	}

	for _, c := range lockedConflicts {
		if approvedConflictDays[c.DayOfMonth] {
			// current card wins — remove the previous card's value so it
			// no longer shadows this day.
			if previous != nil {
				if err := e.store.DeleteDayEntry(ctx, previous.ID, c.DayOfMonth); err != nil {
					return nil, fmt.Errorf("clear previous day %d: %w", c.DayOfMonth, err)
				}
			}
			continue
		}
		// previous card wins — current day is overwritten with the
		// carried-forward value.
		if err := e.store.DeleteDayEntry(ctx, workCardID, c.DayOfMonth); err != nil {
			return nil, fmt.Errorf("clear current day %d: %w", c.DayOfMonth, err)
		}
		if prevEntry, ok := previousEntries[c.DayOfMonth]; ok {
			clone := prevEntry
			clone.ID = ""
			clone.WorkCardID = workCardID
			clone.Source = models.EntrySourceCarriedForward
			if err := e.store.UpsertDayEntry(ctx, clone); err != nil {
				return nil, fmt.Errorf("carry forward day %d: %w", c.DayOfMonth, err)
			}
		}
	}

	// Any day present on the previous card (whatever its review status) but
	// absent from the current card's entries entirely is carried forward
	// untouched.
	currentDays := map[int]bool{}
	for _, c := range current {
		currentDays[c.DayOfMonth] = true
	}
	for day, prevEntry := range previousEntries {
		if currentDays[day] {
			continue
		}
		clone := prevEntry
		clone.ID = ""
		clone.WorkCardID = workCardID
		clone.Source = models.EntrySourceCarriedForward
		if err := e.store.UpsertDayEntry(ctx, clone); err != nil {
			return nil, fmt.Errorf("carry forward untouched day %d: %w", day, err)
		}
	}

	if err := e.store.ApproveCard(ctx, workCardID, req.ApprovedByUserID); err != nil {
		return nil, fmt.Errorf("approve card: %w", err)
	}
	return conflicts, nil
}

func entriesEqual(a, b models.WorkCardDayEntry) bool {
	return strPtrEqual(a.FromTime, b.FromTime) &&
		strPtrEqual(a.ToTime, b.ToTime) &&
		hoursPtrEqual(a.TotalHours, b.TotalHours)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func hoursPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	const epsilon = 0.01
	delta := *a - *b
	if delta < 0 {
		delta = -delta
	}
	return delta < epsilon
}
