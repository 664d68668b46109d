package worker

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"meal-plan-worker/internal/entity"
	"meal-plan-worker/internal/pipeline"
)

// The requesting tier never sees internal error detail.
const publicFailureMessage = "meal plan generation failed"

type JobRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

// RetryQueue is the consumer-side slice of the queue the processor
// needs for failure routing.
type RetryQueue interface {
	Retry(ctx context.Context, jobID string) (int, error)
	Attempts(ctx context.Context, jobID string) (int, error)
	Forget(ctx context.Context, jobID string) error
	DeadLetter(ctx context.Context, dl entity.DeadLetter) error
}

type Notifier interface {
	Failed(ctx context.Context, jobID uuid.UUID, message string) error
}

// Processor handles one delivery of a job: it invokes the pipeline
// runner and maps the outcome onto retry, dead-letter or terminal
// failure. Terminal errors never consume a retry.
type Processor struct {
	repo        JobRepo
	runner      *pipeline.Runner
	queue       RetryQueue
	notify      Notifier
	maxAttempts int
}

func NewProcessor(repo JobRepo, runner *pipeline.Runner, queue RetryQueue, notify Notifier, maxAttempts int) *Processor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Processor{
		repo:        repo,
		runner:      runner,
		queue:       queue,
		notify:      notify,
		maxAttempts: maxAttempts,
	}
}

func (p *Processor) Process(ctx context.Context, jobID string) error {
	start := time.Now()

	id, err := uuid.Parse(jobID)
	if err != nil {
		log.Printf("[worker] job_id=%s parse_error=%v", jobID, err)
		return err
	}

	job, err := p.repo.GetByID(ctx, id)
	if err != nil {
		log.Printf("[worker] job_id=%s get_job error=%v", id, err)
		// Job record unavailable; transient, let backoff handle it.
		return p.routeRecoverable(ctx, id, err)
	}

	// Duplicate delivery of a finished job: the terminal state wins.
	if job.Status.Terminal() {
		log.Printf("[worker] job_id=%s status=%s skip=already_terminal", id, job.Status)
		_ = p.queue.Forget(ctx, jobID)
		return nil
	}

	// Prior failed deliveries show up in the dequeue log line.
	attempts, err := p.queue.Attempts(ctx, jobID)
	if err != nil {
		attempts = 0
	}
	log.Printf("[worker] job_id=%s status=dequeued attempt=%d", id, attempts+1)

	resultRef, runErr := p.runner.Run(ctx, job)
	if runErr == nil {
		_ = p.queue.Forget(ctx, jobID)
		log.Printf("[worker] job_id=%s status=completed result_ref=%s duration_ms=%d",
			id, resultRef, time.Since(start).Milliseconds())
		return nil
	}

	if !pipeline.IsRetryable(runErr) {
		// Terminal: fail immediately, never retry.
		log.Printf("[worker] job_id=%s status=failed class=terminal stage=%s duration_ms=%d error=%v",
			id, pipeline.StageOf(runErr), time.Since(start).Milliseconds(), runErr)
		p.failJob(ctx, id)
		_ = p.queue.Forget(ctx, jobID)
		return runErr
	}

	log.Printf("[worker] job_id=%s status=retryable stage=%s duration_ms=%d error=%v",
		id, pipeline.StageOf(runErr), time.Since(start).Milliseconds(), runErr)
	return p.routeRecoverable(ctx, id, runErr)
}

// routeRecoverable schedules a redelivery, or dead-letters the job once
// the attempt budget is exhausted.
func (p *Processor) routeRecoverable(ctx context.Context, id uuid.UUID, cause error) error {
	jobID := id.String()

	attempts, err := p.queue.Retry(ctx, jobID)
	if err != nil {
		log.Printf("[worker] job_id=%s schedule_retry error=%v", id, err)
		return err
	}

	if attempts < p.maxAttempts {
		log.Printf("[worker] job_id=%s status=retry_scheduled attempt=%d max=%d", id, attempts, p.maxAttempts)
		return cause
	}

	dl := entity.DeadLetter{
		JobID:     jobID,
		Attempts:  attempts,
		LastError: cause.Error(),
		FailedAt:  time.Now().UTC(),
	}
	if err := p.queue.DeadLetter(ctx, dl); err != nil {
		log.Printf("[worker] job_id=%s dead_letter error=%v", id, err)
		return err
	}
	log.Printf("[worker] job_id=%s status=dead_lettered attempts=%d", id, attempts)

	p.failJob(ctx, id)
	return cause
}

func (p *Processor) failJob(ctx context.Context, id uuid.UUID) {
	if err := p.repo.MarkFailed(ctx, id, publicFailureMessage); err != nil {
		log.Printf("[worker] job_id=%s mark_failed error=%v", id, err)
	}
	if err := p.notify.Failed(ctx, id, publicFailureMessage); err != nil {
		log.Printf("[worker] job_id=%s failure callback error=%v", id, err)
	}
}
