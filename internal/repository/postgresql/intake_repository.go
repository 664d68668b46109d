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

// IntakeRepository stores intake payloads; jobs carry only the
// reference, keeping the broker payload small.
type IntakeRepository struct {
	pool *pgxpool.Pool
}

func NewIntakeRepository(pool *pgxpool.Pool) *IntakeRepository {
	return &IntakeRepository{pool: pool}
}

func (r *IntakeRepository) Create(ctx context.Context, intake plan.Intake) (string, error) {
	payload, err := json.Marshal(intake)
	if err != nil {
		return "", fmt.Errorf("marshal intake: %w", err)
	}

	const q = `
INSERT INTO intakes (ref, payload)
VALUES ($1, $2)
RETURNING ref;
`
	var ref uuid.UUID
	if err := r.pool.QueryRow(ctx, q, uuid.New(), payload).Scan(&ref); err != nil {
		return "", err
	}
	return ref.String(), nil
}

func (r *IntakeRepository) GetIntake(ctx context.Context, ref string) (plan.Intake, error) {
	const q = `SELECT payload FROM intakes WHERE ref=$1;`

	var payload []byte
	if err := r.pool.QueryRow(ctx, q, ref).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return plan.Intake{}, ErrNotFound
		}
		return plan.Intake{}, err
	}

	var intake plan.Intake
	if err := json.Unmarshal(payload, &intake); err != nil {
		return plan.Intake{}, fmt.Errorf("unmarshal intake %s: %w", ref, err)
	}
	return intake, nil
}
