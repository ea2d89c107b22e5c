package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const attemptColumns = `id, lead_id, provider_call_id, provider_status, outcome,
	duration_seconds, started_at, completed_at, created_at, updated_at`

// InsertAttempt records a call the moment the vendor accepts it, so delivery
// callbacks arriving seconds later can correlate by provider call ID.
func (r *Repository) InsertAttempt(ctx context.Context, a domain.CallAttempt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO call_attempts (id, lead_id, provider_call_id, provider_status, outcome, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.LeadID, a.ProviderCallID, a.ProviderStatus, string(a.Outcome), a.StartedAt,
	)
	return err
}

// AttemptByProviderCallID returns the attempt the vendor call ID belongs to,
// nil when the ID is unknown.
func (r *Repository) AttemptByProviderCallID(ctx context.Context, providerCallID string) (*domain.CallAttempt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM call_attempts
		 WHERE provider_call_id = $1`,
		providerCallID,
	)
	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RecordAttemptOutcome writes the normalized delivery result onto the attempt.
// Attempts are immutable once terminal, so the update only lands while the
// stored outcome is still initiated; duplicate or late deliveries return
// recorded=false and the attempt as it stands.
func (r *Repository) RecordAttemptOutcome(ctx context.Context, providerCallID, providerStatus string, outcome domain.CallOutcome, durationSeconds int, completedAt time.Time) (*domain.CallAttempt, bool, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE call_attempts
		 SET provider_status = $2, outcome = $3, duration_seconds = $4, completed_at = $5, updated_at = now()
		 WHERE provider_call_id = $1 AND outcome = 'initiated'
		 RETURNING `+attemptColumns,
		providerCallID, providerStatus, string(outcome), durationSeconds, completedAt,
	)
	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := r.AttemptByProviderCallID(ctx, providerCallID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &a, true, nil
}

// HasAnsweredAttempt reports whether the lead ever answered a call, which is
// a permanent stop condition for the schedule.
func (r *Repository) HasAnsweredAttempt(ctx context.Context, leadID uuid.UUID) (bool, error) {
	var answered bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM call_attempts
			WHERE lead_id = $1 AND outcome = 'successful'
		 )`,
		leadID,
	).Scan(&answered)
	return answered, err
}

// AttemptsForLead returns the lead's call history, newest first.
func (r *Repository) AttemptsForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.CallAttempt, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM call_attempts
		 WHERE lead_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2`,
		leadID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []domain.CallAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func scanAttempt(row pgx.Row) (domain.CallAttempt, error) {
	var (
		a       domain.CallAttempt
		outcome string
	)
	err := row.Scan(&a.ID, &a.LeadID, &a.ProviderCallID, &a.ProviderStatus, &outcome,
		&a.DurationSeconds, &a.StartedAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.CallAttempt{}, err
	}
	a.Outcome = domain.CallOutcome(outcome)
	return a, nil
}
