package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-plan-worker/internal/config"
	"meal-plan-worker/internal/entity"
	"meal-plan-worker/internal/plan"
)

type fakeJobStore struct {
	markRunningErr error

	running       []uuid.UUID
	progress      []int
	completedID   uuid.UUID
	completedWith string
	failed        []string
}

func (f *fakeJobStore) MarkRunning(_ context.Context, id uuid.UUID) error {
	if f.markRunningErr != nil {
		return f.markRunningErr
	}
	f.running = append(f.running, id)
	return nil
}

func (f *fakeJobStore) UpdateProgress(_ context.Context, _ uuid.UUID, stage int, _, _ string) error {
	f.progress = append(f.progress, stage)
	return nil
}

func (f *fakeJobStore) MarkCompleted(_ context.Context, id uuid.UUID, resultRef string) error {
	f.completedID = id
	f.completedWith = resultRef
	return nil
}

func (f *fakeJobStore) MarkFailed(_ context.Context, _ uuid.UUID, message string) error {
	f.failed = append(f.failed, message)
	return nil
}

type fakeNotifier struct {
	progress  []int
	completed []string
	failed    []string
	err       error
}

func (f *fakeNotifier) Progress(_ context.Context, _ uuid.UUID, stage int, _, _ string) error {
	f.progress = append(f.progress, stage)
	return f.err
}

func (f *fakeNotifier) Completed(_ context.Context, _ uuid.UUID, resultRef string) error {
	f.completed = append(f.completed, resultRef)
	return f.err
}

func (f *fakeNotifier) Failed(_ context.Context, _ uuid.UUID, message string) error {
	f.failed = append(f.failed, message)
	return f.err
}

type fakeIntakeSource struct {
	intake plan.Intake
	err    error
}

func (f *fakeIntakeSource) GetIntake(context.Context, string) (plan.Intake, error) {
	return f.intake, f.err
}

type fakePlanStore struct {
	ref    string
	docRef string
	err    error
}

func (f *fakePlanStore) SavePlan(_ context.Context, _ uuid.UUID, _ *plan.CompiledPlan, _ *plan.QAReport, documentRef string) (string, error) {
	f.docRef = documentRef
	return f.ref, f.err
}

type fakeArtifactStore struct {
	stored []byte
	err    error
}

func (f *fakeArtifactStore) Store(_ context.Context, jobID uuid.UUID, document []byte) (string, error) {
	f.stored = document
	return "artifacts/" + jobID.String() + ".pdf", f.err
}

type fakeRenderer struct {
	out []byte
	err error
}

func (f *fakeRenderer) Render(context.Context, string) ([]byte, error) {
	return f.out, f.err
}

func validIntake() plan.Intake {
	return plan.Intake{
		Units:  plan.UnitsMetric,
		Sex:    plan.SexFemale,
		Age:    28,
		Height: 165,
		Weight: 62,
	}
}

type runnerFixture struct {
	runner    *Runner
	store     *fakeJobStore
	notify    *fakeNotifier
	intakes   *fakeIntakeSource
	plans     *fakePlanStore
	artifacts *fakeArtifactStore
	renderer  *fakeRenderer
}

func newRunnerFixture() *runnerFixture {
	f := &runnerFixture{
		store:     &fakeJobStore{},
		notify:    &fakeNotifier{},
		intakes:   &fakeIntakeSource{intake: validIntake()},
		plans:     &fakePlanStore{ref: "plan-ref-1"},
		artifacts: &fakeArtifactStore{},
		renderer:  &fakeRenderer{out: []byte("%PDF-1.7")},
	}
	loop := NewQALoop(plan.NewCurator(&scriptedSource{}, 0.5), 3, 80, config.PolicyAcceptBest)
	f.runner = NewRunner(f.intakes, f.store, f.notify, loop, f.plans, f.artifacts, f.renderer)
	return f
}

func testJob() *entity.Job {
	return &entity.Job{ID: uuid.New(), IntakeRef: uuid.NewString(), Status: entity.StatusPending}
}

func TestRunner_HappyPathRunsStagesInOrder(t *testing.T) {
	f := newRunnerFixture()
	job := testJob()

	ref, err := f.runner.Run(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, "plan-ref-1", ref)
	assert.Equal(t, []uuid.UUID{job.ID}, f.store.running)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, f.store.progress)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, f.notify.progress)
	assert.Equal(t, job.ID, f.store.completedID)
	assert.Equal(t, "plan-ref-1", f.store.completedWith)
	assert.Equal(t, []string{"plan-ref-1"}, f.notify.completed)
	assert.Equal(t, []byte("%PDF-1.7"), f.artifacts.stored)
	assert.Equal(t, "artifacts/"+job.ID.String()+".pdf", f.plans.docRef)
}

func TestRunner_MalformedIntakeIsTerminal(t *testing.T) {
	f := newRunnerFixture()
	f.intakes.intake = plan.Intake{Units: plan.UnitsMetric, Sex: plan.SexMale} // no age/height/weight

	_, err := f.runner.Run(context.Background(), testJob())

	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, StageIntakeNormalizer, StageOf(err))
	// The runner never marks failed itself; that is the consumer's call.
	assert.Empty(t, f.store.failed)
	assert.Empty(t, f.store.progress)
}

func TestRunner_MarkRunningFailureIsRecoverable(t *testing.T) {
	f := newRunnerFixture()
	f.store.markRunningErr = errors.New("connection refused")

	_, err := f.runner.Run(context.Background(), testJob())

	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestRunner_RendererFailureIsRecoverable(t *testing.T) {
	f := newRunnerFixture()
	f.renderer.err = errors.New("browser disconnected")

	_, err := f.runner.Run(context.Background(), testJob())

	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, StageDocumentRenderer, StageOf(err))
	assert.Empty(t, f.notify.completed)
	assert.Equal(t, uuid.Nil, f.store.completedID)
}

func TestRunner_IntakeFetchFailureIsRecoverable(t *testing.T) {
	f := newRunnerFixture()
	f.intakes.err = errors.New("intake not found yet")

	_, err := f.runner.Run(context.Background(), testJob())

	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestRunner_CallbackFailureDoesNotFailTheJob(t *testing.T) {
	f := newRunnerFixture()
	f.notify.err = errors.New("callback endpoint down")

	ref, err := f.runner.Run(context.Background(), testJob())

	require.NoError(t, err)
	assert.Equal(t, "plan-ref-1", ref)
	assert.NotEqual(t, uuid.Nil, f.store.completedID)
}

func TestRunner_SavePlanFailureIsRecoverable(t *testing.T) {
	f := newRunnerFixture()
	f.plans.err = errors.New("insert timeout")

	_, err := f.runner.Run(context.Background(), testJob())

	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, uuid.Nil, f.store.completedID)
}
