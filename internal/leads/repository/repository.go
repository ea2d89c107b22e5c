// Package repository persists leads and projects the contact slice the
// outreach engine consumes.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/outreach/domain"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Phone     string
	Email     *string
	State     string
	Source    *string
	DoNotCall bool
	SignupAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateLeadParams struct {
	FirstName string
	LastName  string
	Phone     string
	Email     *string
	State     string
	Source    *string
	DoNotCall bool
	SignupAt  time.Time
}

const leadColumns = `id, first_name, last_name, phone, email, state, source, do_not_call, signup_at, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	signupAt := params.SignupAt
	if signupAt.IsZero() {
		signupAt = time.Now().UTC()
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO leads (id, first_name, last_name, phone, email, state, source, do_not_call, signup_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+leadColumns,
		uuid.New(), params.FirstName, params.LastName, params.Phone, params.Email,
		params.State, params.Source, params.DoNotCall, signupAt,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) GetByPhone(ctx context.Context, phone string) (*Lead, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE phone = $1`, phone)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Lead, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+leadColumns+`
		 FROM leads
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// SetDoNotCall flips the opt-out flag on. Idempotent; reports whether the
// flag actually changed so callers can skip duplicate event publishes.
func (r *Repository) SetDoNotCall(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads SET do_not_call = true, updated_at = now()
		 WHERE id = $1 AND do_not_call = false`,
		id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetContactInfo projects the outreach engine's view of a lead.
func (r *Repository) GetContactInfo(ctx context.Context, leadID uuid.UUID) (domain.LeadContact, error) {
	lead, err := r.GetByID(ctx, leadID)
	if err != nil {
		return domain.LeadContact{}, err
	}
	return domain.LeadContact{
		ID:        lead.ID,
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Phone:     lead.Phone,
		State:     lead.State,
		SignupAt:  lead.SignupAt,
		DoNotCall: lead.DoNotCall,
	}, nil
}

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(&lead.ID, &lead.FirstName, &lead.LastName, &lead.Phone, &lead.Email,
		&lead.State, &lead.Source, &lead.DoNotCall, &lead.SignupAt, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}
