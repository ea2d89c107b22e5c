package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
)

// JobStore is the narrow job surface the synchronizer drives. The repository
// binds it to the transaction that mutated the schedule; tests bind it to an
// in-memory fake.
type JobStore interface {
	PendingJob(ctx context.Context, leadID uuid.UUID, jobType domain.JobType) (*domain.Job, error)
	CreateJob(ctx context.Context, job domain.Job) error
	RescheduleJob(ctx context.Context, jobID uuid.UUID, scheduledAt time.Time) error
	CancelJob(ctx context.Context, jobID uuid.UUID) error
}

// SyncJobs reconciles the job queue with a schedule that was just written.
// An active schedule ends the call with exactly one pending job per job type,
// scheduled at the schedule's next attempt time; an inactive schedule ends it
// with none. It must run in the same transaction as the schedule mutation so
// the mirror never drifts.
func SyncJobs(ctx context.Context, jobs JobStore, sch domain.Schedule) error {
	for _, jobType := range domain.AllJobTypes {
		pending, err := jobs.PendingJob(ctx, sch.LeadID, jobType)
		if err != nil {
			return fmt.Errorf("sync jobs: load pending %s: %w", jobType, err)
		}

		if !sch.Active {
			if pending != nil {
				if err := jobs.CancelJob(ctx, pending.ID); err != nil {
					return fmt.Errorf("sync jobs: cancel %s: %w", jobType, err)
				}
			}
			continue
		}

		if pending == nil {
			job := domain.Job{
				ID:          uuid.New(),
				LeadID:      sch.LeadID,
				Type:        jobType,
				Status:      domain.JobStatusPending,
				ScheduledAt: sch.NextAttemptAt,
			}
			if err := jobs.CreateJob(ctx, job); err != nil {
				return fmt.Errorf("sync jobs: create %s: %w", jobType, err)
			}
			continue
		}

		if !pending.ScheduledAt.Equal(sch.NextAttemptAt) {
			if err := jobs.RescheduleJob(ctx, pending.ID, sch.NextAttemptAt); err != nil {
				return fmt.Errorf("sync jobs: reschedule %s: %w", jobType, err)
			}
		}
	}
	return nil
}
