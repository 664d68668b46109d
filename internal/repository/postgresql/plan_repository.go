package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"meal-plan-worker/internal/plan"
)

// PlanRepository persists finished plans. The plan id is the result
// reference stored on the job.
type PlanRepository struct {
	pool *pgxpool.Pool
}

func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{pool: pool}
}

func (r *PlanRepository) SavePlan(ctx context.Context, jobID uuid.UUID, p *plan.CompiledPlan, report *plan.QAReport, documentRef string) (string, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal plan: %w", err)
	}
	qa, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal qa report: %w", err)
	}

	const q = `
INSERT INTO plans (id, job_id, payload, qa, document_ref)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, p.ID, jobID, payload, qa, documentRef).Scan(&id); err != nil {
		return "", err
	}
	return id.String(), nil
}

// StoredPlan is a persisted plan row as served to the API.
type StoredPlan struct {
	ID          uuid.UUID       `json:"id"`
	JobID       uuid.UUID       `json:"job_id"`
	Payload     json.RawMessage `json:"payload"`
	QA          json.RawMessage `json:"qa"`
	DocumentRef string          `json:"document_ref"`
}

func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*StoredPlan, error) {
	const q = `SELECT id, job_id, payload, qa, document_ref FROM plans WHERE id=$1;`

	var sp StoredPlan
	if err := r.pool.QueryRow(ctx, q, id).Scan(&sp.ID, &sp.JobID, &sp.Payload, &sp.QA, &sp.DocumentRef); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sp, nil
}
