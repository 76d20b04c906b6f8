package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"workcard-backend/internal/models"
	"workcard-backend/internal/resolver"
	"workcard-backend/internal/vision"
)

// Config tunes the worker loop.
type Config struct {
	PollInterval      time.Duration
	MaxRetryAttempts  int
	StaleLeaseWindow  time.Duration
	PassportMinLength int
	PassportMaxLength int
	NameSiteFallback  bool
	GateConfig        vision.GateConfig
	// PoolSize is how many claim-and-process loops run concurrently within
	// this process. Each loop claims its own job, so the lease protocol
	// keeps them from stepping on each other. Defaults to 1 when unset.
	PoolSize int
}

// Worker runs the claim-extract-match-persist loop against its stores.
type Worker struct {
	id        string
	jobs      JobStore
	cards     WorkCardStore
	employees EmployeeStore
	images    ImageStore // may be nil
	extractor vision.Extractor
	clock     Clock
	cfg       Config
	log       *logrus.Logger
}

// NewWorker builds a Worker with a random worker ID (used as the lease
// owner so stale-lease recovery can tell crashed workers apart).
func NewWorker(jobs JobStore, cards WorkCardStore, employees EmployeeStore, images ImageStore, extractor vision.Extractor, cfg Config, log *logrus.Logger) *Worker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Worker{
		id:        uuid.NewString(),
		jobs:      jobs,
		cards:     cards,
		employees: employees,
		images:    images,
		extractor: extractor,
		clock:     SystemClock,
		cfg:       cfg,
		log:       log,
	}
}

// Run blocks, fanning out PoolSize concurrent claim-and-process loops via
// errgroup until ctx is cancelled. Stale-lease recovery runs on a single
// shared cadence rather than once per loop, since every loop would otherwise
// race to reset the same stuck jobs.
func (w *Worker) Run(ctx context.Context) {
	size := w.cfg.PoolSize
	if size < 1 {
		size = 1
	}

	w.log.WithFields(logrus.Fields{"worker_id": w.id, "pool_size": size}).Info("extraction worker starting")

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		w.recoverStaleLeasesLoop(gctx)
		return nil
	})

	for i := 0; i < size; i++ {
		slot := i
		group.Go(func() error {
			w.pollLoop(gctx, slot)
			return nil
		})
	}

	_ = group.Wait()
	w.log.WithField("worker_id", w.id).Info("extraction worker stopping")
}

// pollLoop repeatedly claims and processes one job at a time until ctx is
// cancelled. Several of these run concurrently within one process; the
// lease protocol in ClaimJob keeps them from double-processing a job.
func (w *Worker) pollLoop(ctx context.Context, slot int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := w.pollOnce(ctx)
		if err != nil {
			w.log.WithFields(logrus.Fields{"worker_id": w.id, "slot": slot, "error": err}).Error("poll cycle failed")
		}
		if !processed {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.PollInterval):
			}
		}
	}
}

// recoverStaleLeasesLoop sweeps for stale leases on the same PollInterval
// cadence as a single shared loop, independent of pool size.
func (w *Worker) recoverStaleLeasesLoop(ctx context.Context) {
	for {
		if err := w.RecoverStaleLeases(ctx); err != nil {
			w.log.WithError(err).Error("stale lease recovery failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// pollOnce fetches one pending job, claims it, and processes it. Returns
// true if a job was found (whether or not the claim succeeded), so the
// caller can skip the poll-interval sleep and retry immediately.
func (w *Worker) pollOnce(ctx context.Context) (bool, error) {
	jobs, err := w.jobs.GetPendingJobs(ctx, 1)
	if err != nil {
		return false, fmt.Errorf("get pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		return false, nil
	}

	job := jobs[0]
	claimed, err := w.jobs.ClaimJob(ctx, job.ID, w.id)
	if err != nil {
		return true, fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	if !claimed {
		// another worker beat us to it
		return true, nil
	}

	if err := w.ProcessJob(ctx, job.ID, job.WorkCardID); err != nil {
		w.log.WithFields(logrus.Fields{"job_id": job.ID, "error": err}).Error("job processing failed")
	}
	return true, nil
}

// ProcessJob runs the full extraction pipeline for one job, matching the
// original worker's process_job step order:
//  1. mark RUNNING, increment attempts
//  2. load the work card + image bytes (permanent failure if missing)
//  3. extract via the vision model chain
//  4. resolve the employee against the business's candidates
//  5. diagnose identity mismatch if the card is already assigned
//  6. load the previous card for the same employee/month, if assigned or
//     matched
//  7. gate and persist each day reading, skipping days already present or
//     duplicated from the previous card
//  8. assign the employee on the card if newly matched
//  9. set review status and mark the job DONE
func (w *Worker) ProcessJob(ctx context.Context, jobID, workCardID string) error {
	if err := w.jobs.MarkRunning(ctx, jobID); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	if err := w.jobs.IncrementAttempts(ctx, jobID); err != nil {
		return fmt.Errorf("increment attempts: %w", err)
	}

	card, err := w.cards.GetWorkCard(ctx, workCardID)
	if err != nil {
		return w.failPermanently(ctx, jobID, fmt.Sprintf("load work card: %v", err))
	}

	imageBytes, mimeType, err := w.cards.GetImageBytes(ctx, card.ID)
	if err != nil {
		return w.failPermanently(ctx, jobID, fmt.Sprintf("load image: %v", err))
	}

	extracted, err := w.extractor.Extract(ctx, imageBytes, mimeType)
	if err != nil {
		return w.retryOrFail(ctx, jobID, fmt.Sprintf("extraction failed: %v", err))
	}

	candidates, err := w.employees.ListCandidates(ctx, card.BusinessID, card.SiteID)
	if err != nil {
		return w.retryOrFail(ctx, jobID, fmt.Sprintf("load candidates: %v", err))
	}

	matchResult := resolver.Resolve(
		resolver.Extracted{
			Name:               extracted.EmployeeName,
			PassportID:         extracted.PassportID,
			PassportCandidates: extracted.PassportCandidates,
		},
		candidates,
		w.cfg.PassportMinLength, w.cfg.PassportMaxLength,
		w.cfg.NameSiteFallback, card.SiteID,
	)

	var identityReason string
	var identityMismatch bool
	if card.EmployeeID != nil {
		assignedPassport, err := w.employees.GetPassportID(ctx, *card.EmployeeID)
		if err == nil {
			identityReason, identityMismatch = resolver.DiagnoseIdentityMismatch(
				extracted.PassportID, assignedPassport, w.cfg.PassportMinLength, w.cfg.PassportMaxLength,
			)
		}
	}

	effectiveEmployeeID := card.EmployeeID
	if effectiveEmployeeID == nil && matchResult.Matched {
		effectiveEmployeeID = &matchResult.EmployeeID
	}

	var previousEntries map[int]models.WorkCardDayEntry
	if effectiveEmployeeID != nil {
		prev, err := w.cards.GetPreviousCard(ctx, *effectiveEmployeeID, card.ProcessingMonth, card.ID)
		if err == nil && prev != nil {
			entries, err := w.cards.GetDayEntries(ctx, prev.ID)
			if err == nil {
				previousEntries = make(map[int]models.WorkCardDayEntry, len(entries))
				for _, e := range entries {
					previousEntries[e.DayOfMonth] = e
				}
			}
		}
	}

	existing, err := w.cards.GetDayEntries(ctx, card.ID)
	if err != nil {
		return w.retryOrFail(ctx, jobID, fmt.Sprintf("load existing entries: %v", err))
	}
	existingDays := make(map[int]bool, len(existing))
	for _, e := range existing {
		existingDays[e.DayOfMonth] = true
	}

	gated, quality := vision.Gate(extracted.Days, w.cfg.GateConfig)
	extracted.Quality = quality

	for _, day := range gated {
		if existingDays[day.DayOfMonth] {
			continue
		}
		if prevEntry, ok := previousEntries[day.DayOfMonth]; ok && entryMatches(prevEntry, day) {
			continue
		}

		entry := models.WorkCardDayEntry{
			WorkCardID: card.ID,
			DayOfMonth: day.DayOfMonth,
			FromTime:   day.FromTime,
			ToTime:     day.ToTime,
			TotalHours: day.TotalHours,
			Source:     models.EntrySourceExtracted,
			IsValid:    true,
		}
		if dq, needsReview := quality.RowQualityByDay[day.DayOfMonth]; needsReview {
			entry.ValidationErrors = dq.Reasons
		}
		if err := w.cards.CreateDayEntry(ctx, entry); err != nil {
			return w.retryOrFail(ctx, jobID, fmt.Sprintf("persist day entry: %v", err))
		}
	}

	if effectiveEmployeeID != nil && card.EmployeeID == nil {
		if err := w.cards.SetEmployee(ctx, card.ID, *effectiveEmployeeID); err != nil {
			return w.retryOrFail(ctx, jobID, fmt.Sprintf("assign employee: %v", err))
		}
	}

	reviewStatus := models.ReviewStatusNeedsAssignment
	if effectiveEmployeeID != nil {
		reviewStatus = models.ReviewStatusNeedsReview
	}
	if err := w.cards.SetReviewStatus(ctx, card.ID, reviewStatus); err != nil {
		return w.retryOrFail(ctx, jobID, fmt.Sprintf("set review status: %v", err))
	}

	normalized, _ := json.Marshal(extracted)
	qualityJSON, _ := json.Marshal(quality)
	var matchedID *string
	var matchConfidence *float64
	if matchResult.Matched {
		matchedID = &matchResult.EmployeeID
		confidence := matchResult.Confidence
		matchConfidence = &confidence
	}

	if w.images != nil {
		archivePath := fmt.Sprintf("extraction-jobs/%s/original", jobID)
		if err := w.images.Archive(ctx, archivePath, imageBytes, mimeType); err != nil {
			w.log.WithFields(logrus.Fields{"job_id": jobID, "error": err}).Error("image archival failed")
		}
	}

	return w.jobs.MarkCompleted(ctx, jobID, CompletionResult{
		ExtractedEmployeeName:  extracted.EmployeeName,
		ExtractedPassportID:    extracted.PassportID,
		NormalizedResult:       normalized,
		MatchedEmployeeID:      matchedID,
		MatchMethod:            matchResult.Method,
		MatchConfidence:        matchConfidence,
		ModelName:              extracted.ModelUsed,
		ModelVersion:           extracted.ModelVersion,
		IdentityMismatchReason: identityReason,
		IdentityMismatch:       identityMismatch,
		QualityMap:             qualityJSON,
	})
}

func entryMatches(prev models.WorkCardDayEntry, day vision.DayReading) bool {
	return timeEqual(prev.FromTime, day.FromTime) &&
		timeEqual(prev.ToTime, day.ToTime) &&
		hoursEqual(prev.TotalHours, day.TotalHours)
}

func timeEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func hoursEqual(a, b *float64) bool {
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

// retryOrFail marks the job FAILED with the given error, which also
// releases its lease. ProcessJob never re-queues a job inline, and
// RecoverStaleLeases does not pick up FAILED jobs (it only sees PENDING or
// RUNNING jobs that still hold a lease), so nothing in this package moves
// a FAILED job back to PENDING.
func (w *Worker) retryOrFail(ctx context.Context, jobID, errMsg string) error {
	return w.jobs.MarkFailed(ctx, jobID, errMsg)
}

func (w *Worker) failPermanently(ctx context.Context, jobID, errMsg string) error {
	return w.jobs.MarkFailed(ctx, jobID, errMsg)
}

// RecoverStaleLeases finds jobs whose lease has outlived StaleLeaseWindow
// and either fails them permanently (attempts exhausted) or resets them to
// PENDING for another worker to pick up — matching the original
// recover_stale_locks behavior.
func (w *Worker) RecoverStaleLeases(ctx context.Context) error {
	cutoff := w.clock.Now().Add(-w.cfg.StaleLeaseWindow)
	stale, err := w.jobs.GetStaleLeases(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("get stale leases: %w", err)
	}
	for _, job := range stale {
		if job.Attempts >= w.cfg.MaxRetryAttempts {
			if err := w.jobs.MarkFailed(ctx, job.ID, "exceeded max retry attempts after stale lease recovery"); err != nil {
				w.log.WithFields(logrus.Fields{"job_id": job.ID, "error": err}).Error("failed to mark stale job failed")
			}
			continue
		}
		if err := w.jobs.ResetJob(ctx, job.ID); err != nil {
			w.log.WithFields(logrus.Fields{"job_id": job.ID, "error": err}).Error("failed to reset stale job")
		}
	}
	return nil
}
