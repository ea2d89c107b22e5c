package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskOutreachJobExecute = "outreach.job.execute"

type OutreachJobPayload struct {
	JobID  string `json:"jobId"`
	LeadID string `json:"leadId"`
}

func NewOutreachJobTask(payload OutreachJobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutreachJobExecute, data), nil
}

func ParseOutreachJobPayload(task *asynq.Task) (OutreachJobPayload, error) {
	var payload OutreachJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OutreachJobPayload{}, err
	}
	return payload, nil
}

// outreachJobTaskID dedupes enqueues of the same job at the same scheduled
// time: a second poller tick before the worker picks the task up collides on
// the ID instead of producing a duplicate.
func outreachJobTaskID(jobID uuid.UUID, scheduledAt time.Time) string {
	return fmt.Sprintf("job:%s:%d", jobID, scheduledAt.Unix())
}
