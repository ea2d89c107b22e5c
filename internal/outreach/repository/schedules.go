package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const scheduleColumns = `id, lead_id, active, next_attempt_at, attempts_today, retry_count_block,
	last_attempt_at, deactivated_reason, created_at, updated_at`

// AdvanceParams moves an active schedule to its next attempt. ExpectedAt is a
// compare-and-set guard: the update only lands if next_attempt_at still holds
// the value the caller computed from, so concurrent evaluators of the same
// schedule serialize without row locks. Timeline, when set, is written in the
// same transaction.
type AdvanceParams struct {
	LeadID           uuid.UUID
	ExpectedAt       time.Time
	NextAttemptAt    time.Time
	RetryCountBlock  int
	AttemptsToday    int
	TouchLastAttempt bool
	Timeline         *TimelineEntry
}

// ActivateSchedule creates the lead's schedule and its mirrored pending job.
// If a schedule already exists it is returned untouched, created=false; a
// deactivated schedule stays deactivated. The per-lead advisory lock closes
// the create race, since the table deliberately has no unique lead constraint.
func (r *Repository) ActivateSchedule(ctx context.Context, leadID uuid.UUID, nextAttemptAt time.Time, timeline *TimelineEntry) (domain.Schedule, bool, error) {
	var (
		sch     domain.Schedule
		created bool
	)
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, leadID); err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}

		row := tx.QueryRow(ctx,
			`SELECT `+scheduleColumns+` FROM contact_schedules WHERE lead_id = $1`, leadID)
		existing, err := scanSchedule(row)
		if err == nil {
			sch = existing
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		row = tx.QueryRow(ctx,
			`INSERT INTO contact_schedules (id, lead_id, active, next_attempt_at)
			 VALUES ($1, $2, true, $3)
			 RETURNING `+scheduleColumns,
			uuid.New(), leadID, nextAttemptAt,
		)
		sch, err = scanSchedule(row)
		if err != nil {
			return err
		}
		created = true

		if err := SyncJobs(ctx, jobStore{q: tx}, sch); err != nil {
			return err
		}
		if timeline != nil {
			return insertTimeline(ctx, tx, *timeline)
		}
		return nil
	})
	if err != nil {
		return domain.Schedule{}, false, err
	}
	return sch, created, nil
}

// ScheduleByLeadID returns the lead's schedule, nil when none exists.
func (r *Repository) ScheduleByLeadID(ctx context.Context, leadID uuid.UUID) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM contact_schedules WHERE lead_id = $1`, leadID)
	sch, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sch, nil
}

// DueScheduleLeadIDs lists leads whose active schedule is due, oldest first.
func (r *Repository) DueScheduleLeadIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT lead_id
		 FROM contact_schedules
		 WHERE active = true AND next_attempt_at <= $1
		 ORDER BY next_attempt_at ASC
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AdvanceSchedule applies the next-attempt decision and re-mirrors the job
// queue in one transaction. Returns nil, nil when the CAS guard misses,
// meaning another evaluator already advanced the schedule.
func (r *Repository) AdvanceSchedule(ctx context.Context, p AdvanceParams) (*domain.Schedule, error) {
	var sch *domain.Schedule
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE contact_schedules
			 SET next_attempt_at = $3,
			     retry_count_block = $4,
			     attempts_today = $5,
			     last_attempt_at = CASE WHEN $6::boolean THEN now() ELSE last_attempt_at END,
			     updated_at = now()
			 WHERE lead_id = $1 AND active = true AND next_attempt_at = $2
			 RETURNING `+scheduleColumns,
			p.LeadID, p.ExpectedAt, p.NextAttemptAt, p.RetryCountBlock, p.AttemptsToday, p.TouchLastAttempt,
		)
		updated, err := scanSchedule(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		sch = &updated

		if err := SyncJobs(ctx, jobStore{q: tx}, updated); err != nil {
			return err
		}
		if p.Timeline != nil {
			return insertTimeline(ctx, tx, *p.Timeline)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sch, nil
}

// DeactivateSchedule stops all future contact for the lead and cancels the
// mirrored pending jobs. Idempotent: a second call, or a call against a lead
// with no schedule, returns deactivated=false with no writes.
func (r *Repository) DeactivateSchedule(ctx context.Context, leadID uuid.UUID, reason string, timeline *TimelineEntry) (bool, error) {
	var deactivated bool
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE contact_schedules
			 SET active = false, deactivated_reason = $2, updated_at = now()
			 WHERE lead_id = $1 AND active = true
			 RETURNING `+scheduleColumns,
			leadID, reason,
		)
		sch, err := scanSchedule(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		deactivated = true

		if err := SyncJobs(ctx, jobStore{q: tx}, sch); err != nil {
			return err
		}
		if timeline != nil {
			return insertTimeline(ctx, tx, *timeline)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return deactivated, nil
}

func scanSchedule(row pgx.Row) (domain.Schedule, error) {
	var sch domain.Schedule
	err := row.Scan(&sch.ID, &sch.LeadID, &sch.Active, &sch.NextAttemptAt, &sch.AttemptsToday,
		&sch.RetryCountBlock, &sch.LastAttemptAt, &sch.DeactivatedReason, &sch.CreatedAt, &sch.UpdatedAt)
	if err != nil {
		return domain.Schedule{}, err
	}
	return sch, nil
}
