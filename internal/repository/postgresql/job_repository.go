package postgresql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"meal-plan-worker/internal/entity"
)

var ErrNotFound = errors.New("not found")

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, intakeRef string) (uuid.UUID, error) {
	const q = `
INSERT INTO jobs (intake_ref, status)
VALUES ($1, 'pending')
RETURNING id;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, intakeRef).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	const q = `
SELECT id, intake_ref, status, stage, stage_name, message, result_ref, error,
       created_at, started_at, completed_at, updated_at
FROM jobs
WHERE id = $1;
`

	var (
		job         entity.Job
		statusText  string
		stageName   *string
		message     *string
		startedAt   *time.Time
		completedAt *time.Time
	)

	if err := r.pool.QueryRow(ctx, q, id).Scan(
		&job.ID,
		&job.IntakeRef,
		&statusText,
		&job.Stage,
		&stageName,
		&message,
		&job.ResultRef,
		&job.Error,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	job.Status = entity.JobStatus(statusText)
	if stageName != nil {
		job.StageName = *stageName
	}
	if message != nil {
		job.Message = *message
	}
	job.StartedAt = startedAt
	job.CompletedAt = completedAt

	return &job, nil
}

// MarkRunning transitions a job to running and stamps started_at once.
// A redelivered job that is already running passes through unchanged;
// a terminal job is a silent no-op.
func (r *JobRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE jobs
SET status='running',
    started_at=COALESCE(started_at, now()),
    updated_at=now()
WHERE id=$1 AND status IN ('pending','running');
`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.noopIfTerminal(ctx, id)
	}
	return nil
}

// UpdateProgress persists stage progress. Updates against a job no
// longer running (completed, failed) silently no-op: that is the
// idempotence guard against duplicate delivery.
func (r *JobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, stage int, stageName, message string) error {
	const q = `
UPDATE jobs
SET stage=$2, stage_name=$3, message=$4, updated_at=now()
WHERE id=$1 AND status='running';
`
	tag, err := r.pool.Exec(ctx, q, id, stage, stageName, message)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.noopIfTerminal(ctx, id)
	}
	return nil
}

func (r *JobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, resultRef string) error {
	const q = `
UPDATE jobs
SET status='completed', result_ref=$2, error=NULL, completed_at=now(), updated_at=now()
WHERE id=$1 AND status='running';
`
	tag, err := r.pool.Exec(ctx, q, id, resultRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.noopIfTerminal(ctx, id)
	}
	return nil
}

func (r *JobRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	const q = `
UPDATE jobs
SET status='failed', error=$2, completed_at=now(), updated_at=now()
WHERE id=$1 AND status IN ('pending','running');
`
	tag, err := r.pool.Exec(ctx, q, id, message)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.noopIfTerminal(ctx, id)
	}
	return nil
}

// noopIfTerminal distinguishes "job does not exist" (an error) from
// "job is already terminal" (accepted, no effect).
func (r *JobRepository) noopIfTerminal(ctx context.Context, id uuid.UUID) error {
	const q = `SELECT status FROM jobs WHERE id=$1;`

	var status string
	if err := r.pool.QueryRow(ctx, q, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if entity.JobStatus(status).Terminal() {
		return nil
	}
	return ErrNotFound
}
