package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const jobColumns = `id, lead_id, type, status, scheduled_at, started_at, last_error, attempts, created_at, updated_at`

// jobStore binds the synchronizer's JobStore surface to a querier, so the
// same code runs against the pool or inside a schedule transaction.
type jobStore struct {
	q querier
}

var _ JobStore = jobStore{}

func (s jobStore) PendingJob(ctx context.Context, leadID uuid.UUID, jobType domain.JobType) (*domain.Job, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+jobColumns+`
		 FROM contact_jobs
		 WHERE lead_id = $1 AND type = $2 AND status = 'pending'`,
		leadID, string(jobType),
	)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s jobStore) CreateJob(ctx context.Context, job domain.Job) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO contact_jobs (id, lead_id, type, status, scheduled_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.LeadID, string(job.Type), string(job.Status), job.ScheduledAt,
	)
	return err
}

func (s jobStore) RescheduleJob(ctx context.Context, jobID uuid.UUID, scheduledAt time.Time) error {
	_, err := s.q.Exec(ctx,
		`UPDATE contact_jobs
		 SET scheduled_at = $2, updated_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		jobID, scheduledAt,
	)
	return err
}

func (s jobStore) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	_, err := s.q.Exec(ctx,
		`UPDATE contact_jobs
		 SET status = 'cancelled', updated_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		jobID,
	)
	return err
}

// PendingJob returns the lead's pending job of the given type, nil when none.
func (r *Repository) PendingJob(ctx context.Context, leadID uuid.UUID, jobType domain.JobType) (*domain.Job, error) {
	return jobStore{q: r.pool}.PendingJob(ctx, leadID, jobType)
}

// JobByID loads a single job. Returns nil, nil when the job does not exist.
func (r *Repository) JobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM contact_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// DueJobs lists pending jobs whose scheduled time has passed and that are not
// under a live execution lease, oldest first. It only reads; claiming is the
// executor's job via LeaseJob.
func (r *Repository) DueJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.Job, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+`
		 FROM contact_jobs
		 WHERE status = 'pending'
		   AND scheduled_at <= $1
		   AND (started_at IS NULL OR started_at < $2)
		 ORDER BY scheduled_at ASC
		 LIMIT $3`,
		now, now.Add(-lease), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// LeaseJob claims a job for execution. The claim succeeds only while the job
// is pending and no other worker holds a live lease, which makes execution
// safe under concurrent dispatchers and queue workers: losers get nil back
// and must not touch the job. Attempts counts every successful claim.
func (r *Repository) LeaseJob(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE contact_jobs
		 SET started_at = $2, attempts = attempts + 1, updated_at = now()
		 WHERE id = $1
		   AND status = 'pending'
		   AND (started_at IS NULL OR started_at < $3)
		 RETURNING `+jobColumns,
		id, now, now.Add(-lease),
	)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CompleteJob marks a pending job as successfully executed.
func (r *Repository) CompleteJob(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE contact_jobs
		 SET status = 'completed', last_error = NULL, updated_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id,
	)
	return err
}

// FailJob marks a pending job as failed and records the cause. The schedule
// is left alone; the dispatcher cadence produces the next attempt.
func (r *Repository) FailJob(ctx context.Context, id uuid.UUID, cause string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE contact_jobs
		 SET status = 'failed', last_error = $2, updated_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id, cause,
	)
	return err
}

func scanJob(row pgx.Row) (domain.Job, error) {
	var (
		job     domain.Job
		jobType string
		status  string
	)
	err := row.Scan(&job.ID, &job.LeadID, &jobType, &status, &job.ScheduledAt,
		&job.StartedAt, &job.Error, &job.Attempts, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return domain.Job{}, err
	}
	job.Type = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	return job, nil
}
