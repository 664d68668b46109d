package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-plan-worker/internal/config"
	"meal-plan-worker/internal/entity"
	"meal-plan-worker/internal/pipeline"
	"meal-plan-worker/internal/plan"
)

type fakeJobRepo struct {
	job          *entity.Job
	getErr       error
	markedFailed []string
}

func (f *fakeJobRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	j := *f.job
	j.ID = id
	return &j, nil
}

func (f *fakeJobRepo) MarkFailed(_ context.Context, _ uuid.UUID, message string) error {
	f.markedFailed = append(f.markedFailed, message)
	return nil
}

type fakeRetryQueue struct {
	attempts        map[string]int
	attemptsQueried []int
	forgotten       []string
	deadLetters     []entity.DeadLetter
}

func newFakeRetryQueue() *fakeRetryQueue {
	return &fakeRetryQueue{attempts: make(map[string]int)}
}

func (f *fakeRetryQueue) Retry(_ context.Context, jobID string) (int, error) {
	f.attempts[jobID]++
	return f.attempts[jobID], nil
}

func (f *fakeRetryQueue) Attempts(_ context.Context, jobID string) (int, error) {
	f.attemptsQueried = append(f.attemptsQueried, f.attempts[jobID])
	return f.attempts[jobID], nil
}

func (f *fakeRetryQueue) Forget(_ context.Context, jobID string) error {
	f.forgotten = append(f.forgotten, jobID)
	delete(f.attempts, jobID)
	return nil
}

func (f *fakeRetryQueue) DeadLetter(_ context.Context, dl entity.DeadLetter) error {
	f.deadLetters = append(f.deadLetters, dl)
	return nil
}

type recordingNotifier struct {
	failed []string
}

func (r *recordingNotifier) Progress(context.Context, uuid.UUID, int, string, string) error {
	return nil
}
func (r *recordingNotifier) Completed(context.Context, uuid.UUID, string) error { return nil }
func (r *recordingNotifier) Failed(_ context.Context, _ uuid.UUID, message string) error {
	r.failed = append(r.failed, message)
	return nil
}

// flakyIntakeSource fails the first failures deliveries, then serves a
// valid intake. Fetch failures are unclassified and therefore retryable.
type flakyIntakeSource struct {
	failures int
	calls    int
}

func (f *flakyIntakeSource) GetIntake(context.Context, string) (plan.Intake, error) {
	f.calls++
	if f.calls <= f.failures {
		return plan.Intake{}, errors.New("intake store unavailable")
	}
	return plan.Intake{
		Units:  plan.UnitsMetric,
		Sex:    plan.SexMale,
		Age:    35,
		Height: 178,
		Weight: 82,
	}, nil
}

type onTargetSource struct{ calls int }

func (s *onTargetSource) Candidates(_ context.Context, req plan.CandidateRequest) ([]plan.Meal, error) {
	proteins := []string{"chicken", "beef", "salmon", "pork", "turkey", "shrimp", "lamb", "cod"}
	meals := make([]plan.Meal, req.MaxResults)
	for i := range meals {
		meals[i] = plan.Meal{
			Name:    fmt.Sprintf("%s dish %d", req.Slot, i+1),
			Cuisine: proteins[i], // anything distinct keeps the share rule quiet
			Protein: proteins[i%len(proteins)],
			Nutrition: plan.Nutrition{
				Calories: req.Target.Calories,
				Protein:  req.Target.Protein,
				Carbs:    req.Target.Carbs,
				Fat:      req.Target.Fat,
			},
		}
	}
	s.calls++
	return meals, nil
}

type stubJobStore struct{ running int }

func (s *stubJobStore) MarkRunning(context.Context, uuid.UUID) error { s.running++; return nil }
func (s *stubJobStore) UpdateProgress(context.Context, uuid.UUID, int, string, string) error {
	return nil
}
func (s *stubJobStore) MarkCompleted(context.Context, uuid.UUID, string) error { return nil }
func (s *stubJobStore) MarkFailed(context.Context, uuid.UUID, string) error    { return nil }

type stubPlanStore struct{}

func (stubPlanStore) SavePlan(context.Context, uuid.UUID, *plan.CompiledPlan, *plan.QAReport, string) (string, error) {
	return "plan-ref", nil
}

type stubArtifacts struct{}

func (stubArtifacts) Store(context.Context, uuid.UUID, []byte) (string, error) {
	return "doc-ref", nil
}

type stubRenderer struct{ err error }

func (s *stubRenderer) Render(context.Context, string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF"), nil
}

type harness struct {
	proc     *Processor
	repo     *fakeJobRepo
	queue    *fakeRetryQueue
	notify   *recordingNotifier
	intakes  *flakyIntakeSource
	store    *stubJobStore
	renderer *stubRenderer
}

func newHarness(maxAttempts int) *harness {
	h := &harness{
		repo:     &fakeJobRepo{job: &entity.Job{Status: entity.StatusPending, IntakeRef: uuid.NewString()}},
		queue:    newFakeRetryQueue(),
		notify:   &recordingNotifier{},
		intakes:  &flakyIntakeSource{},
		store:    &stubJobStore{},
		renderer: &stubRenderer{},
	}
	loop := pipeline.NewQALoop(plan.NewCurator(&onTargetSource{}, 0.5), 3, 80, config.PolicyAcceptBest)
	runner := pipeline.NewRunner(h.intakes, h.store, h.notify, loop, stubPlanStore{}, stubArtifacts{}, h.renderer)
	h.proc = NewProcessor(h.repo, runner, h.queue, h.notify, maxAttempts)
	return h
}

func TestProcess_SuccessForgetsRetryState(t *testing.T) {
	h := newHarness(3)
	jobID := uuid.NewString()

	err := h.proc.Process(context.Background(), jobID)

	require.NoError(t, err)
	assert.Equal(t, []string{jobID}, h.queue.forgotten)
	assert.Empty(t, h.queue.deadLetters)
	assert.Empty(t, h.repo.markedFailed)
}

func TestProcess_FailsTwiceSucceedsThird_NeverDeadLetters(t *testing.T) {
	h := newHarness(3)
	h.intakes.failures = 2
	jobID := uuid.NewString()

	// Deliveries one and two hit the flaky intake store.
	for i := 0; i < 2; i++ {
		err := h.proc.Process(context.Background(), jobID)
		require.Error(t, err)
	}
	assert.Equal(t, 2, h.queue.attempts[jobID])
	assert.Empty(t, h.queue.deadLetters)

	// Third delivery succeeds and clears the attempt counter.
	err := h.proc.Process(context.Background(), jobID)
	require.NoError(t, err)
	assert.Zero(t, h.queue.attempts[jobID])

	// Each delivery read its prior-failure count for the dequeue log.
	assert.Equal(t, []int{0, 1, 2}, h.queue.attemptsQueried)
	assert.Empty(t, h.queue.deadLetters)
	assert.Empty(t, h.repo.markedFailed)
	assert.Empty(t, h.notify.failed)
}

func TestProcess_ExhaustedBudgetDeadLettersOnce(t *testing.T) {
	h := newHarness(3)
	h.intakes.failures = 100
	jobID := uuid.NewString()

	for i := 0; i < 3; i++ {
		err := h.proc.Process(context.Background(), jobID)
		require.Error(t, err)
	}

	require.Len(t, h.queue.deadLetters, 1)
	dl := h.queue.deadLetters[0]
	assert.Equal(t, jobID, dl.JobID)
	assert.Equal(t, 3, dl.Attempts)
	assert.Contains(t, dl.LastError, "intake store unavailable")
	assert.False(t, dl.FailedAt.IsZero())

	assert.Equal(t, []string{publicFailureMessage}, h.repo.markedFailed)
	assert.Equal(t, []string{publicFailureMessage}, h.notify.failed)
}

// emptyIntakeSource serves an intake with no demographics, which the
// intake normalizer rejects terminally.
type emptyIntakeSource struct{}

func (emptyIntakeSource) GetIntake(context.Context, string) (plan.Intake, error) {
	return plan.Intake{Units: plan.UnitsMetric}, nil
}

func TestProcess_TerminalErrorFailsImmediately(t *testing.T) {
	h := newHarness(3)
	loop := pipeline.NewQALoop(plan.NewCurator(&onTargetSource{}, 0.5), 3, 80, config.PolicyAcceptBest)
	runner := pipeline.NewRunner(emptyIntakeSource{}, h.store, h.notify, loop, stubPlanStore{}, stubArtifacts{}, h.renderer)
	h.proc = NewProcessor(h.repo, runner, h.queue, h.notify, 3)

	jobID := uuid.NewString()
	err := h.proc.Process(context.Background(), jobID)

	require.Error(t, err)
	assert.False(t, pipeline.IsRetryable(err))
	assert.Zero(t, h.queue.attempts[jobID], "terminal errors never consume a retry")
	assert.Empty(t, h.queue.deadLetters)
	assert.Equal(t, []string{jobID}, h.queue.forgotten)
	assert.Equal(t, []string{publicFailureMessage}, h.repo.markedFailed)
	assert.Equal(t, []string{publicFailureMessage}, h.notify.failed)
}

func TestProcess_TerminalJobStatusIsSkipped(t *testing.T) {
	h := newHarness(3)
	h.repo.job.Status = entity.StatusCompleted
	jobID := uuid.NewString()

	err := h.proc.Process(context.Background(), jobID)

	require.NoError(t, err)
	assert.Zero(t, h.store.running, "pipeline must not run for a finished job")
	assert.Equal(t, []string{jobID}, h.queue.forgotten)
}

func TestProcess_JobLookupFailureSchedulesRetry(t *testing.T) {
	h := newHarness(3)
	h.repo.getErr = errors.New("pg down")
	jobID := uuid.NewString()

	err := h.proc.Process(context.Background(), jobID)

	require.Error(t, err)
	assert.Equal(t, 1, h.queue.attempts[jobID])
	assert.Empty(t, h.queue.deadLetters)
}

func TestProcess_MalformedJobIDIsDropped(t *testing.T) {
	h := newHarness(3)

	err := h.proc.Process(context.Background(), "not-a-uuid")

	require.Error(t, err)
	assert.Empty(t, h.queue.attempts)
	assert.Empty(t, h.queue.forgotten)
	assert.Empty(t, h.queue.deadLetters)
}
