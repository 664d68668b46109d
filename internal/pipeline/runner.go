package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"meal-plan-worker/internal/entity"
	"meal-plan-worker/internal/plan"
	"meal-plan-worker/internal/render"
)

// Stage names, reported in progress updates in execution order.
const (
	StageIntakeNormalizer    = "intake_normalizer"
	StageMetabolicCalculator = "metabolic_calculator"
	StageRecipeCurator       = "recipe_curator"
	StagePlanCompiler        = "plan_compiler"
	StageQAValidator         = "qa_validator"
	StageDocumentRenderer    = "document_renderer"
)

// JobStore persists job state transitions. Implementations must treat
// updates to an already-terminal job as silent no-ops.
type JobStore interface {
	MarkRunning(ctx context.Context, id uuid.UUID) error
	UpdateProgress(ctx context.Context, id uuid.UUID, stage int, stageName, message string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, resultRef string) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

// Notifier pushes progress and outcome to the requesting tier.
// Delivery is best-effort; failures are logged, never fatal.
type Notifier interface {
	Progress(ctx context.Context, jobID uuid.UUID, stage int, stageName, message string) error
	Completed(ctx context.Context, jobID uuid.UUID, resultRef string) error
	Failed(ctx context.Context, jobID uuid.UUID, message string) error
}

// IntakeSource resolves the intake reference a job carries into the
// payload itself.
type IntakeSource interface {
	GetIntake(ctx context.Context, ref string) (plan.Intake, error)
}

// PlanStore persists the finished plan; the returned reference becomes
// the job's result.
type PlanStore interface {
	SavePlan(ctx context.Context, jobID uuid.UUID, p *plan.CompiledPlan, report *plan.QAReport, documentRef string) (string, error)
}

// ArtifactStore hands the rendered document to the storage collaborator.
type ArtifactStore interface {
	Store(ctx context.Context, jobID uuid.UUID, document []byte) (string, error)
}

// Renderer produces the final document from markup.
type Renderer interface {
	Render(ctx context.Context, markup string) ([]byte, error)
}

// Runner drives the six-stage state machine for a single job. Stages
// run strictly in order; progress is persisted after each one.
type Runner struct {
	intakes   IntakeSource
	store     JobStore
	notify    Notifier
	loop      *QALoop
	plans     PlanStore
	artifacts ArtifactStore
	renderer  Renderer
}

func NewRunner(intakes IntakeSource, store JobStore, notify Notifier, loop *QALoop, plans PlanStore, artifacts ArtifactStore, renderer Renderer) *Runner {
	return &Runner{
		intakes:   intakes,
		store:     store,
		notify:    notify,
		loop:      loop,
		plans:     plans,
		artifacts: artifacts,
		renderer:  renderer,
	}
}

// Run executes the pipeline and returns the result reference. On
// success the job is marked completed here; failure handling (retry,
// dead-letter, terminal fail) is the consumer's responsibility.
func (r *Runner) Run(ctx context.Context, job *entity.Job) (string, error) {
	if err := r.store.MarkRunning(ctx, job.ID); err != nil {
		return "", Transient("job_store", fmt.Errorf("mark running: %w", err))
	}

	raw, err := r.intakes.GetIntake(ctx, job.IntakeRef)
	if err != nil {
		return "", Transient("job_store", fmt.Errorf("fetch intake %s: %w", job.IntakeRef, err))
	}

	// Stage 1: intake normalizer. Missing demographics are terminal.
	intake, err := plan.Normalize(raw)
	if err != nil {
		return "", Terminal(StageIntakeNormalizer, err)
	}
	r.progress(ctx, job.ID, 1, StageIntakeNormalizer, "intake normalized")

	// Stage 2: metabolic calculator. Pure arithmetic.
	profile, err := plan.ComputeProfile(intake)
	if err != nil {
		return "", Terminal(StageMetabolicCalculator, err)
	}
	r.progress(ctx, job.ID, 2, StageMetabolicCalculator,
		fmt.Sprintf("goal %.0f kcal/day", profile.GoalCalories))

	// Stages 3-5: curation, compilation, validation under the QA loop.
	compiled, report, err := r.loop.Run(ctx, intake, profile, func(stage int, name, msg string) {
		r.progress(ctx, job.ID, stage, name, msg)
	})
	if err != nil {
		return "", err
	}

	// Stage 6: document renderer via the pooled browser process.
	markup, err := render.BuildDocument(compiled, profile, report)
	if err != nil {
		return "", Terminal(StageDocumentRenderer, fmt.Errorf("build markup: %w", err))
	}
	document, err := r.renderer.Render(ctx, markup)
	if err != nil {
		return "", Transient(StageDocumentRenderer, err)
	}

	docRef, err := r.artifacts.Store(ctx, job.ID, document)
	if err != nil {
		return "", Transient(StageDocumentRenderer, fmt.Errorf("store artifact: %w", err))
	}

	resultRef, err := r.plans.SavePlan(ctx, job.ID, compiled, report, docRef)
	if err != nil {
		return "", Transient("job_store", fmt.Errorf("save plan: %w", err))
	}

	r.progress(ctx, job.ID, 6, StageDocumentRenderer,
		fmt.Sprintf("document rendered, qa=%s score=%d", report.Verdict, report.Score))

	if err := r.store.MarkCompleted(ctx, job.ID, resultRef); err != nil {
		return "", Transient("job_store", fmt.Errorf("mark completed: %w", err))
	}
	if err := r.notify.Completed(ctx, job.ID, resultRef); err != nil {
		log.Printf("[pipeline] job_id=%s completion callback error=%v", job.ID, err)
	}

	return resultRef, nil
}

func (r *Runner) progress(ctx context.Context, jobID uuid.UUID, stage int, name, msg string) {
	if err := r.store.UpdateProgress(ctx, jobID, stage, name, msg); err != nil {
		log.Printf("[pipeline] job_id=%s stage=%d persist progress error=%v", jobID, stage, err)
	}
	if err := r.notify.Progress(ctx, jobID, stage, name, msg); err != nil {
		log.Printf("[pipeline] job_id=%s stage=%d progress callback error=%v", jobID, stage, err)
	}
}
