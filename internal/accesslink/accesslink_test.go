package accesslink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workcard-backend/internal/models"
)

type fakeStore struct {
	tokens     map[string]bool
	requests   map[string]*models.UploadAccessRequest
	phones     map[string]string
	nextID     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{tokens: map[string]bool{}, requests: map[string]*models.UploadAccessRequest{}, phones: map[string]string{}}
}

func (f *fakeStore) TokenExists(ctx context.Context, token string) (bool, error) {
	return f.tokens[token], nil
}

func (f *fakeStore) Create(ctx context.Context, req models.UploadAccessRequest) (*models.UploadAccessRequest, error) {
	f.nextID++
	req.ID = "req-1"
	f.tokens[req.Token] = true
	f.requests[req.Token] = &req
	return &req, nil
}

func (f *fakeStore) GetActiveByToken(ctx context.Context, token string) (*models.UploadAccessRequest, error) {
	r, ok := f.requests[token]
	if !ok || !r.IsActive {
		return nil, nil
	}
	return r, nil
}

func (f *fakeStore) GetEmployeePhone(ctx context.Context, employeeID string) (string, error) {
	return f.phones[employeeID], nil
}

func (f *fakeStore) TouchLastAccessed(ctx context.Context, id string) error { return nil }
func (f *fakeStore) Revoke(ctx context.Context, id string) error           { return nil }

type noopMessenger struct{ sent bool }

func (m *noopMessenger) SendAccessLink(ctx context.Context, phone, url string) error {
	m.sent = true
	return nil
}

func TestCreateAndNotify_IssuesTokenAndNotifies(t *testing.T) {
	store := newFakeStore()
	store.phones["emp-1"] = "+1 (555) 123-4567"
	messenger := &noopMessenger{}
	svc := New(store, messenger, "https://portal.example.com")

	empID := "emp-1"
	req, err := svc.CreateAndNotify(context.Background(), "biz-1", "user-1", models.CreateAccessLinkRequest{
		SiteID: "site-1", EmployeeID: &empID, ProcessingMonth: "2026-06",
	})
	require.NoError(t, err)
	assert.Len(t, req.Token, 64)
	assert.True(t, messenger.sent)
}

func TestVerifyIdentity_NormalizesPhoneBeforeComparing(t *testing.T) {
	store := newFakeStore()
	store.phones["emp-1"] = "+1 (555) 123-4567"
	empID := "emp-1"
	store.requests["tok123"] = &models.UploadAccessRequest{ID: "req-1", Token: "tok123", EmployeeID: &empID, IsActive: true}

	svc := New(store, &noopMessenger{}, "https://portal.example.com")
	req, err := svc.VerifyIdentity(context.Background(), "tok123", "5551234567")
	require.NoError(t, err)
	assert.Equal(t, "req-1", req.ID)
}

func TestVerifyIdentity_RejectsMismatchedPhone(t *testing.T) {
	store := newFakeStore()
	store.phones["emp-1"] = "+1 555 123 4567"
	empID := "emp-1"
	store.requests["tok123"] = &models.UploadAccessRequest{ID: "req-1", Token: "tok123", EmployeeID: &empID, IsActive: true}

	svc := New(store, &noopMessenger{}, "https://portal.example.com")
	_, err := svc.VerifyIdentity(context.Background(), "tok123", "0000000000")
	require.Error(t, err)
}
