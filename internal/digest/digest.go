// Package digest runs the nightly review-queue digest: it finds work cards
// stuck in NEEDS_ASSIGNMENT or NEEDS_REVIEW and notifies each business's
// admins, so a backlog doesn't go unnoticed between logins.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"workcard-backend/internal/models"
)

// StaleAfter is how long a card has to sit unreviewed before it's worth
// surfacing in the digest.
const StaleAfter = 24 * time.Hour

// Digest runs the nightly review-queue sweep on a cron schedule.
type Digest struct {
	pool     *pgxpool.Pool
	log      *logrus.Logger
	schedule string
	cron     *cron.Cron
}

// New builds a Digest. schedule is a standard 5-field cron expression (e.g.
// "0 2 * * *" for 2am daily); an empty schedule defaults to that.
func New(pool *pgxpool.Pool, log *logrus.Logger, schedule string) *Digest {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if schedule == "" {
		schedule = "0 2 * * *"
	}
	return &Digest{pool: pool, log: log, schedule: schedule}
}

// Start schedules the digest and runs one cycle immediately, matching the
// teacher notifier's "run once, then on the schedule" behavior.
func (d *Digest) Start(ctx context.Context) error {
	d.runCycle(ctx)

	d.cron = cron.New()
	_, err := d.cron.AddFunc(d.schedule, func() { d.runCycle(ctx) })
	if err != nil {
		return fmt.Errorf("schedule digest: %w", err)
	}
	d.cron.Start()
	d.log.WithField("schedule", d.schedule).Info("review digest scheduled")
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight cycle to finish.
func (d *Digest) Stop() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
}

type backlogRow struct {
	BusinessID   string
	SiteName     string
	Month        string
	ReviewStatus string
	CardCount    int
	AdminUserID  string
}

// runCycle finds stale backlog and inserts one notification per
// (business admin, site, month, status) combination, de-duplicated by day
// exactly like the teacher's notifier.
func (d *Digest) runCycle(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := d.pool.Query(cctx, `
		SELECT wc.business_id, COALESCE(s.name, 'Unassigned site'), wc.processing_month,
		       wc.review_status, COUNT(*), u.id
		FROM work_cards wc
		LEFT JOIN sites s ON s.id = wc.site_id
		JOIN users u ON u.business_id = wc.business_id AND u.role IN ('business_admin', 'super_admin')
		WHERE wc.review_status IN ($1, $2)
		  AND wc.created_at <= NOW() - $3::interval
		GROUP BY wc.business_id, s.name, wc.processing_month, wc.review_status, u.id
	`, models.ReviewStatusNeedsAssignment, models.ReviewStatusNeedsReview, StaleAfter.String())
	if err != nil {
		d.log.WithError(err).Error("digest: query backlog")
		return
	}
	defer rows.Close()

	var backlog []backlogRow
	for rows.Next() {
		var b backlogRow
		if err := rows.Scan(&b.BusinessID, &b.SiteName, &b.Month, &b.ReviewStatus, &b.CardCount, &b.AdminUserID); err != nil {
			d.log.WithError(err).Error("digest: scan backlog row")
			continue
		}
		backlog = append(backlog, b)
	}
	if err := rows.Err(); err != nil {
		d.log.WithError(err).Error("digest: iterate backlog rows")
		return
	}

	if len(backlog) == 0 {
		d.log.Debug("digest: no stale cards")
		return
	}

	today := time.Now().UTC().Format("2006-01-02")
	inserted := 0
	for _, b := range backlog {
		entityID := fmt.Sprintf("%s:%s:%s", b.SiteName, b.Month, b.ReviewStatus)

		var exists bool
		err := d.pool.QueryRow(cctx, `
			SELECT EXISTS(
				SELECT 1 FROM notifications
				WHERE user_id = $1 AND entity_type = 'review_queue' AND entity_id = $2
				  AND created_at::date = $3::date
			)
		`, b.AdminUserID, entityID, today).Scan(&exists)
		if err != nil {
			d.log.WithError(err).Error("digest: dedup check")
			continue
		}
		if exists {
			continue
		}

		title := reviewQueueTitle(b.ReviewStatus)
		message := fmt.Sprintf("%s: %d work card(s) for %s need attention.", b.SiteName, b.CardCount, b.Month)

		_, err = d.pool.Exec(cctx, `
			INSERT INTO notifications (user_id, title, message, type, entity_type, entity_id)
			VALUES ($1, $2, $3, 'review_backlog', 'review_queue', $4)
		`, b.AdminUserID, title, message, entityID)
		if err != nil {
			d.log.WithError(err).Error("digest: insert notification")
			continue
		}
		inserted++
	}

	d.log.WithFields(logrus.Fields{"backlog_rows": len(backlog), "inserted": inserted}).Info("digest cycle complete")
}

func reviewQueueTitle(status string) string {
	if status == models.ReviewStatusNeedsAssignment {
		return "Cards awaiting employee assignment"
	}
	return "Cards awaiting review"
}
