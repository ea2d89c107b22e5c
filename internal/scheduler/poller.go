package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// JobSource lists due contact jobs for enqueueing.
type JobSource interface {
	DueJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.Job, error)
}

// JobPoller feeds due pending jobs into the asynq queue. Enqueues are
// deduplicated by task ID, so overlapping ticks and a concurrently running
// dispatcher never produce more than one queued task per job and due time.
type JobPoller struct {
	client   *asynq.Client
	queue    string
	source   JobSource
	log      *logger.Logger
	interval time.Duration
	batch    int
	lease    time.Duration
}

func NewJobPoller(cfg config.SchedulerConfig, policy config.ContactPolicyConfig, source JobSource, log *logger.Logger) (*JobPoller, error) {
	client, queue, err := newAsynqClient(cfg)
	if err != nil {
		return nil, err
	}

	interval := cfg.GetJobPollInterval()
	if interval <= 0 {
		interval = 15 * time.Second
	}
	batch := cfg.GetJobBatchSize()
	if batch < 1 {
		batch = 50
	}
	lease := policy.GetExecutionLease()
	if lease <= 0 {
		lease = 2 * time.Minute
	}

	return &JobPoller{
		client:   client,
		queue:    queue,
		source:   source,
		log:      log,
		interval: interval,
		batch:    batch,
		lease:    lease,
	}, nil
}

func (p *JobPoller) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *JobPoller) Run(ctx context.Context) {
	if p == nil || p.client == nil || p.source == nil {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		jobs, err := p.source.DueJobs(ctx, time.Now().UTC(), p.lease, p.batch)
		if err != nil {
			p.log.Warn("job poll failed", "error", err)
			continue
		}

		for _, job := range jobs {
			task, err := NewOutreachJobTask(OutreachJobPayload{
				JobID:  job.ID.String(),
				LeadID: job.LeadID.String(),
			})
			if err != nil {
				p.log.BatchItemError("job_poller", job.ID.String(), err)
				continue
			}

			_, err = p.client.EnqueueContext(ctx, task,
				asynq.Queue(p.queue),
				asynq.TaskID(outreachJobTaskID(job.ID, job.ScheduledAt)),
			)
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			if err != nil {
				p.log.BatchItemError("job_poller", job.ID.String(), err)
			}
		}
	}
}
