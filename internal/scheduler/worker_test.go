package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workcard-backend/internal/models"
	"workcard-backend/internal/resolver"
	"workcard-backend/internal/vision"
)

type fakeJobStore struct {
	jobs map[string]*models.ExtractionJob
}

func newFakeJobStore(jobs ...models.ExtractionJob) *fakeJobStore {
	m := map[string]*models.ExtractionJob{}
	for i := range jobs {
		j := jobs[i]
		m[j.ID] = &j
	}
	return &fakeJobStore{jobs: m}
}

func (f *fakeJobStore) GetPendingJobs(ctx context.Context, limit int) ([]models.ExtractionJob, error) {
	var out []models.ExtractionJob
	for _, j := range f.jobs {
		if j.Status == models.JobStatusPending && j.LeaseOwner == nil {
			out = append(out, *j)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeJobStore) ClaimJob(ctx context.Context, jobID, workerID string) (bool, error) {
	j := f.jobs[jobID]
	if j.LeaseOwner != nil {
		return false, nil
	}
	j.LeaseOwner = &workerID
	return true, nil
}

func (f *fakeJobStore) MarkRunning(ctx context.Context, jobID string) error {
	f.jobs[jobID].Status = models.JobStatusRunning
	return nil
}

func (f *fakeJobStore) IncrementAttempts(ctx context.Context, jobID string) error {
	f.jobs[jobID].Attempts++
	return nil
}

func (f *fakeJobStore) MarkCompleted(ctx context.Context, jobID string, r CompletionResult) error {
	j := f.jobs[jobID]
	j.Status = models.JobStatusDone
	j.MatchedEmployeeID = r.MatchedEmployeeID
	j.MatchMethod = &r.MatchMethod
	return nil
}

func (f *fakeJobStore) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	j := f.jobs[jobID]
	j.Status = models.JobStatusFailed
	j.LastError = &errMsg
	return nil
}

func (f *fakeJobStore) GetStaleLeases(ctx context.Context, cutoff time.Time) ([]models.ExtractionJob, error) {
	var out []models.ExtractionJob
	for _, j := range f.jobs {
		if j.LeaseOwner != nil && (j.Status == models.JobStatusPending || j.Status == models.JobStatusRunning) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeJobStore) ReleaseLease(ctx context.Context, jobID string) error {
	f.jobs[jobID].LeaseOwner = nil
	return nil
}

func (f *fakeJobStore) ResetJob(ctx context.Context, jobID string) error {
	j := f.jobs[jobID]
	j.Status = models.JobStatusPending
	j.LeaseOwner = nil
	return nil
}

type fakeCardStore struct {
	cards   map[string]*models.WorkCard
	entries map[string][]models.WorkCardDayEntry
}

func (f *fakeCardStore) GetWorkCard(ctx context.Context, id string) (*models.WorkCard, error) {
	return f.cards[id], nil
}
func (f *fakeCardStore) GetImageBytes(ctx context.Context, id string) ([]byte, string, error) {
	return []byte("fake-image"), "image/jpeg", nil
}
func (f *fakeCardStore) GetPreviousCard(ctx context.Context, employeeID, month, exclude string) (*models.WorkCard, error) {
	return nil, nil
}
func (f *fakeCardStore) GetDayEntries(ctx context.Context, workCardID string) ([]models.WorkCardDayEntry, error) {
	return f.entries[workCardID], nil
}
func (f *fakeCardStore) CreateDayEntry(ctx context.Context, e models.WorkCardDayEntry) error {
	f.entries[e.WorkCardID] = append(f.entries[e.WorkCardID], e)
	return nil
}
func (f *fakeCardStore) SetEmployee(ctx context.Context, workCardID, employeeID string) error {
	f.cards[workCardID].EmployeeID = &employeeID
	return nil
}
func (f *fakeCardStore) SetReviewStatus(ctx context.Context, workCardID, status string) error {
	f.cards[workCardID].ReviewStatus = status
	return nil
}

type fakeEmployeeStore struct {
	candidates []resolver.Candidate
	passports  map[string]*string
}

func (f *fakeEmployeeStore) ListCandidates(ctx context.Context, businessID string, siteID *string) ([]resolver.Candidate, error) {
	return f.candidates, nil
}
func (f *fakeEmployeeStore) GetPassportID(ctx context.Context, employeeID string) (*string, error) {
	return f.passports[employeeID], nil
}

type fakeExtractor struct {
	card *vision.ExtractedCard
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, imageBytes []byte, mimeType string) (*vision.ExtractedCard, error) {
	return f.card, f.err
}

func strp(s string) *string    { return &s }
func f64p(f float64) *float64  { return &f }

func TestProcessJob_MatchesEmployeeAndPersistsDays(t *testing.T) {
	jobs := newFakeJobStore(models.ExtractionJob{ID: "job-1", WorkCardID: "card-1", Status: models.JobStatusPending})
	cards := &fakeCardStore{
		cards:   map[string]*models.WorkCard{"card-1": {ID: "card-1", BusinessID: "biz-1", ProcessingMonth: "2026-06"}},
		entries: map[string][]models.WorkCardDayEntry{},
	}
	employees := &fakeEmployeeStore{
		candidates: []resolver.Candidate{{EmployeeID: "emp-1", FullName: "John Doe", PassportID: strp("A1234567")}},
		passports:  map[string]*string{},
	}
	extractor := &fakeExtractor{card: &vision.ExtractedCard{
		EmployeeName: "John Doe",
		PassportID:   "a-123-4567",
		Days: []vision.DayReading{
			{DayOfMonth: 1, TotalHours: f64p(8), Confidence: 0.95},
		},
		ModelUsed: "claude-sonnet-4-5",
	}}

	w := NewWorker(jobs, cards, employees, nil, extractor, Config{
		PassportMinLength: 5, PassportMaxLength: 12,
		GateConfig: vision.DefaultGateConfig,
	}, nil)

	err := w.ProcessJob(context.Background(), "job-1", "card-1")
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusDone, jobs.jobs["job-1"].Status)
	assert.Equal(t, "emp-1", *jobs.jobs["job-1"].MatchedEmployeeID)
	assert.Equal(t, "emp-1", *cards.cards["card-1"].EmployeeID)
	assert.Equal(t, models.ReviewStatusNeedsReview, cards.cards["card-1"].ReviewStatus)
	require.Len(t, cards.entries["card-1"], 1)
	assert.True(t, cards.entries["card-1"][0].IsValid)
}

func TestProcessJob_UnmatchedCardNeedsAssignment(t *testing.T) {
	jobs := newFakeJobStore(models.ExtractionJob{ID: "job-1", WorkCardID: "card-1", Status: models.JobStatusPending})
	cards := &fakeCardStore{
		cards:   map[string]*models.WorkCard{"card-1": {ID: "card-1", BusinessID: "biz-1", ProcessingMonth: "2026-06"}},
		entries: map[string][]models.WorkCardDayEntry{},
	}
	employees := &fakeEmployeeStore{candidates: nil, passports: map[string]*string{}}
	extractor := &fakeExtractor{card: &vision.ExtractedCard{
		Days: []vision.DayReading{{DayOfMonth: 1, TotalHours: f64p(8), Confidence: 0.95}},
	}}

	w := NewWorker(jobs, cards, employees, nil, extractor, Config{
		PassportMinLength: 5, PassportMaxLength: 12,
		GateConfig: vision.DefaultGateConfig,
	}, nil)

	err := w.ProcessJob(context.Background(), "job-1", "card-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusNeedsAssignment, cards.cards["card-1"].ReviewStatus)
	assert.Nil(t, cards.cards["card-1"].EmployeeID)
}

func TestRecoverStaleLeases_ResetsUnderLimitFailsOverLimit(t *testing.T) {
	jobs := newFakeJobStore(
		models.ExtractionJob{ID: "job-reset", WorkCardID: "c1", Status: models.JobStatusRunning, Attempts: 1, LeaseOwner: strp("dead-worker")},
		models.ExtractionJob{ID: "job-fail", WorkCardID: "c2", Status: models.JobStatusRunning, Attempts: 3, LeaseOwner: strp("dead-worker")},
	)
	w := NewWorker(jobs, &fakeCardStore{}, &fakeEmployeeStore{}, nil, &fakeExtractor{}, Config{MaxRetryAttempts: 3}, nil)

	// the fake's GetStaleLeases reports every PENDING/RUNNING job still holding a lease
	require.NoError(t, w.RecoverStaleLeases(context.Background()))
	assert.Equal(t, models.JobStatusPending, jobs.jobs["job-reset"].Status)
	assert.Nil(t, jobs.jobs["job-reset"].LeaseOwner)
	assert.Equal(t, models.JobStatusFailed, jobs.jobs["job-fail"].Status)
}
