package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimelineEntry is one append-only audit record on a lead's timeline. The
// engine writes one for every schedule, job, and outcome mutation.
type TimelineEntry struct {
	LeadID    uuid.UUID
	EventType string
	Title     string
	Summary   *string
	Metadata  map[string]any
	ActorName string
}

// TimelineEvent is a stored timeline row.
type TimelineEvent struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	EventType string
	Title     string
	Summary   *string
	Metadata  json.RawMessage
	ActorType string
	ActorName string
	CreatedAt time.Time
}

// AppendTimeline records a timeline event outside any schedule transaction.
func (r *Repository) AppendTimeline(ctx context.Context, entry TimelineEntry) error {
	return insertTimeline(ctx, r.pool, entry)
}

func insertTimeline(ctx context.Context, q querier, entry TimelineEntry) error {
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal timeline metadata: %w", err)
	}
	actor := entry.ActorName
	if actor == "" {
		actor = "outreach"
	}
	_, err = q.Exec(ctx,
		`INSERT INTO lead_timeline_events (id, lead_id, event_type, title, summary, metadata, actor_type, actor_name)
		 VALUES ($1, $2, $3, $4, $5, $6, 'system', $7)`,
		uuid.New(), entry.LeadID, entry.EventType, entry.Title, entry.Summary, payload, actor,
	)
	return err
}

// TimelineForLead returns the lead's timeline, newest first.
func (r *Repository) TimelineForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]TimelineEvent, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, lead_id, event_type, title, summary, metadata, actor_type, actor_name, created_at
		 FROM lead_timeline_events
		 WHERE lead_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		leadID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []TimelineEvent
	for rows.Next() {
		var ev TimelineEvent
		if err := rows.Scan(&ev.ID, &ev.LeadID, &ev.EventType, &ev.Title, &ev.Summary,
			&ev.Metadata, &ev.ActorType, &ev.ActorName, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
