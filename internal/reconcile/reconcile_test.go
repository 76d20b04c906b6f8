package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workcard-backend/internal/models"
)

type fakeStore struct {
	cards       map[string]*models.WorkCard
	entries     map[string]map[int]models.WorkCardDayEntry
	previousCard map[string]*models.WorkCard // keyed by employeeID+month
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cards:        map[string]*models.WorkCard{},
		entries:      map[string]map[int]models.WorkCardDayEntry{},
		previousCard: map[string]*models.WorkCard{},
	}
}

func (s *fakeStore) GetWorkCard(ctx context.Context, id string) (*models.WorkCard, error) {
	return s.cards[id], nil
}

func (s *fakeStore) GetDayEntries(ctx context.Context, workCardID string) ([]models.WorkCardDayEntry, error) {
	var out []models.WorkCardDayEntry
	for _, e := range s.entries[workCardID] {
		out = append(out, e)
	}
	return out, nil
}

func (s *fakeStore) GetPreviousCard(ctx context.Context, employeeID, month, exclude string) (*models.WorkCard, error) {
	return s.previousCard[employeeID+"|"+month], nil
}

func (s *fakeStore) UpsertDayEntry(ctx context.Context, e models.WorkCardDayEntry) error {
	if s.entries[e.WorkCardID] == nil {
		s.entries[e.WorkCardID] = map[int]models.WorkCardDayEntry{}
	}
	s.entries[e.WorkCardID][e.DayOfMonth] = e
	return nil
}

func (s *fakeStore) DeleteDayEntry(ctx context.Context, workCardID string, day int) error {
	delete(s.entries[workCardID], day)
	return nil
}

func (s *fakeStore) ApproveCard(ctx context.Context, workCardID, approvedBy string) error {
	s.cards[workCardID].ReviewStatus = models.ReviewStatusApproved
	s.cards[workCardID].ApprovedByUserID = &approvedBy
	return nil
}

func siteP(s string) *string { return &s }
func empP(s string) *string  { return &s }
func hp(f float64) *float64  { return &f }

func TestApprove_CarriesForwardUntouchedApprovedDays(t *testing.T) {
	store := newFakeStore()
	store.cards["prev"] = &models.WorkCard{ID: "prev", SiteID: siteP("s1"), EmployeeID: empP("e1"), ProcessingMonth: "2026-06", ReviewStatus: models.ReviewStatusApproved}
	store.entries["prev"] = map[int]models.WorkCardDayEntry{
		1: {WorkCardID: "prev", DayOfMonth: 1, TotalHours: hp(8), Source: models.EntrySourceExtracted},
	}
	store.previousCard["e1|2026-06"] = store.cards["prev"]

	store.cards["cur"] = &models.WorkCard{ID: "cur", SiteID: siteP("s1"), EmployeeID: empP("e1"), ProcessingMonth: "2026-06"}
	store.entries["cur"] = map[int]models.WorkCardDayEntry{
		2: {WorkCardID: "cur", DayOfMonth: 2, TotalHours: hp(7), Source: models.EntrySourceExtracted},
	}

	eng := New(store)
	_, err := eng.Approve(context.Background(), "cur", ApproveRequest{ApprovedByUserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, models.ReviewStatusApproved, store.cards["cur"].ReviewStatus)
	require.Contains(t, store.entries["cur"], 1)
	assert.Equal(t, models.EntrySourceCarriedForward, store.entries["cur"][1].Source)
	assert.Equal(t, 8.0, *store.entries["cur"][1].TotalHours)
}

func TestApprove_ConflictWithApprovedRequiresConfirmation(t *testing.T) {
	store := newFakeStore()
	store.cards["prev"] = &models.WorkCard{ID: "prev", SiteID: siteP("s1"), EmployeeID: empP("e1"), ProcessingMonth: "2026-06", ReviewStatus: models.ReviewStatusApproved}
	store.entries["prev"] = map[int]models.WorkCardDayEntry{
		5: {WorkCardID: "prev", DayOfMonth: 5, TotalHours: hp(8), Source: models.EntrySourceExtracted},
	}
	store.previousCard["e1|2026-06"] = store.cards["prev"]

	store.cards["cur"] = &models.WorkCard{ID: "cur", SiteID: siteP("s1"), EmployeeID: empP("e1"), ProcessingMonth: "2026-06"}
	store.entries["cur"] = map[int]models.WorkCardDayEntry{
		5: {WorkCardID: "cur", DayOfMonth: 5, TotalHours: hp(6), Source: models.EntrySourceExtracted},
	}

	eng := New(store)
	conflicts, err := eng.Approve(context.Background(), "cur", ApproveRequest{ApprovedByUserID: "u1", OverrideConflictDays: []int{5}})
	require.ErrorIs(t, err, ErrOverrideConfirmationRequired)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictWithApproved, conflicts[0].Kind)

	// override named but not confirmed — approval refused, card left unapproved
	assert.NotEqual(t, models.ReviewStatusApproved, store.cards["cur"].ReviewStatus)
}

func TestApprove_OverrideConfirmedLetsCurrentWin(t *testing.T) {
	store := newFakeStore()
	store.cards["prev"] = &models.WorkCard{ID: "prev", SiteID: siteP("s1"), EmployeeID: empP("e1"), ProcessingMonth: "2026-06", ReviewStatus: models.ReviewStatusApproved}
	store.entries["prev"] = map[int]models.WorkCardDayEntry{
		5: {WorkCardID: "prev", DayOfMonth: 5, TotalHours: hp(8), Source: models.EntrySourceExtracted},
	}
	store.previousCard["e1|2026-06"] = store.cards["prev"]

	store.cards["cur"] = &models.WorkCard{ID: "cur", SiteID: siteP("s1"), EmployeeID: empP("e1"), ProcessingMonth: "2026-06"}
	store.entries["cur"] = map[int]models.WorkCardDayEntry{
		5: {WorkCardID: "cur", DayOfMonth: 5, TotalHours: hp(6), Source: models.EntrySourceExtracted},
	}

	eng := New(store)
	_, err := eng.Approve(context.Background(), "cur", ApproveRequest{
		ApprovedByUserID:     "u1",
		OverrideConflictDays: []int{5},
		ConfirmOverride:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, store.cards["cur"].ReviewStatus)
	assert.Equal(t, 6.0, *store.entries["cur"][5].TotalHours)
	assert.NotContains(t, store.entries["prev"], 5)
}

func TestApprove_RequiresSite(t *testing.T) {
	store := newFakeStore()
	store.cards["cur"] = &models.WorkCard{ID: "cur", EmployeeID: empP("e1"), ProcessingMonth: "2026-06"}

	eng := New(store)
	_, err := eng.Approve(context.Background(), "cur", ApproveRequest{ApprovedByUserID: "u1"})
	require.ErrorIs(t, err, ErrSiteRequired)
}

func TestApprove_PendingPreviousCardCurrentWinsWithoutConfirmation(t *testing.T) {
	store := newFakeStore()
	store.cards["prev"] = &models.WorkCard{ID: "prev", SiteID: siteP("s1"), EmployeeID: empP("e1"), ProcessingMonth: "2026-06", ReviewStatus: models.ReviewStatusNeedsReview}
	store.entries["prev"] = map[int]models.WorkCardDayEntry{
		5: {WorkCardID: "prev", DayOfMonth: 5, TotalHours: hp(8), Source: models.EntrySourceExtracted},
	}
	store.previousCard["e1|2026-06"] = store.cards["prev"]

	store.cards["cur"] = &models.WorkCard{ID: "cur", SiteID: siteP("s1"), EmployeeID: empP("e1"), ProcessingMonth: "2026-06"}
	store.entries["cur"] = map[int]models.WorkCardDayEntry{
		5: {WorkCardID: "cur", DayOfMonth: 5, TotalHours: hp(6), Source: models.EntrySourceExtracted},
	}

	eng := New(store)
	conflicts, err := eng.Approve(context.Background(), "cur", ApproveRequest{ApprovedByUserID: "u1"})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictWithPending, conflicts[0].Kind)
	assert.False(t, conflicts[0].Locked)

	assert.Equal(t, models.ReviewStatusApproved, store.cards["cur"].ReviewStatus)
	assert.Equal(t, 6.0, *store.entries["cur"][5].TotalHours)
}

func TestUpdateDayEntries_RejectsEditOfApprovedDay(t *testing.T) {
	store := newFakeStore()
	store.cards["prev"] = &models.WorkCard{ID: "prev", SiteID: siteP("s1"), EmployeeID: empP("e1"), ProcessingMonth: "2026-06", ReviewStatus: models.ReviewStatusApproved}
	store.entries["prev"] = map[int]models.WorkCardDayEntry{
		3: {WorkCardID: "prev", DayOfMonth: 3, TotalHours: hp(8), Source: models.EntrySourceExtracted},
	}
	store.previousCard["e1|2026-06"] = store.cards["prev"]
	store.cards["cur"] = &models.WorkCard{ID: "cur", SiteID: siteP("s1"), EmployeeID: empP("e1"), ProcessingMonth: "2026-06"}

	eng := New(store)
	err := eng.UpdateDayEntries(context.Background(), store.cards["cur"], []models.WorkCardDayEntry{
		{WorkCardID: "cur", DayOfMonth: 3, TotalHours: hp(4)},
	})
	require.ErrorIs(t, err, ErrApprovalLocked)
}
