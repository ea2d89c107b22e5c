package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// JobExecutor runs one contact job by ID. Implemented by the outreach
// service; redeliveries of already-executed jobs are no-ops there.
type JobExecutor interface {
	ExecuteJobByID(ctx context.Context, jobID uuid.UUID) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	executor JobExecutor
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, executor JobExecutor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		executor: executor,
		log:      log,
	}

	mux.HandleFunc(TaskOutreachJobExecute, w.handleOutreachJob)

	return w, nil
}

func (w *Worker) handleOutreachJob(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseOutreachJobPayload(task)
	if err != nil {
		return err
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return err
	}

	return w.executor.ExecuteJobByID(ctx, jobID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
