package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"meal-plan-worker/internal/entity"
	"meal-plan-worker/internal/plan"
)

// Repository port (implementation: postgresql.JobRepository).
type JobRepository interface {
	Create(ctx context.Context, intakeRef string) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}

// IntakeRepository stores an inline intake payload and returns its
// reference.
type IntakeRepository interface {
	Create(ctx context.Context, intake plan.Intake) (string, error)
}

// Small queue port covering only enqueue, so the API tier never sees
// the consumer-side operations.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
}

type JobService struct {
	repo    JobRepository
	intakes IntakeRepository
	queue   JobQueue
}

func NewJobService(repo JobRepository, intakes IntakeRepository, queue JobQueue) *JobService {
	return &JobService{repo: repo, intakes: intakes, queue: queue}
}

type CreateJobRequest struct {
	// IntakeRef points at an already-stored intake payload. Exactly one
	// of IntakeRef and Intake must be set.
	IntakeRef string
	Intake    *plan.Intake
}

func (s *JobService) CreateJob(ctx context.Context, req CreateJobRequest) (uuid.UUID, error) {
	ref := req.IntakeRef

	switch {
	case ref == "" && req.Intake == nil:
		return uuid.Nil, errors.New("intake_ref or intake is required")
	case ref != "" && req.Intake != nil:
		return uuid.Nil, errors.New("intake_ref and intake are mutually exclusive")
	case req.Intake != nil:
		var err error
		ref, err = s.intakes.Create(ctx, *req.Intake)
		if err != nil {
			return uuid.Nil, err
		}
	}

	id, err := s.repo.Create(ctx, ref)
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.queue.Enqueue(ctx, id.String()); err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return s.repo.GetByID(ctx, id)
}
