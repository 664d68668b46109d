package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"meal-plan-worker/internal/entity"
	"meal-plan-worker/internal/plan"
	"meal-plan-worker/internal/repository/postgresql"
	"meal-plan-worker/internal/service"
)

// PlanReader serves persisted plans (implementation:
// postgresql.PlanRepository).
type PlanReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*postgresql.StoredPlan, error)
}

// DeadLetterReader is the inspection-only slice of the queue.
type DeadLetterReader interface {
	DeadLetters(ctx context.Context, limit int64) ([]entity.DeadLetter, error)
}

type Handler struct {
	jobSvc      *service.JobService
	plans       PlanReader
	deadLetters DeadLetterReader
}

func NewHandler(jobSvc *service.JobService, plans PlanReader, deadLetters DeadLetterReader) *Handler {
	return &Handler{jobSvc: jobSvc, plans: plans, deadLetters: deadLetters}
}

type createJobDTO struct {
	IntakeRef string       `json:"intake_ref,omitempty"`
	Intake    *plan.Intake `json:"intake,omitempty"`
}

type createJobResp struct {
	ID string `json:"id"`
}

type jobResp struct {
	ID          string           `json:"id"`
	Status      entity.JobStatus `json:"status"`
	Stage       int              `json:"stage"`
	StageName   string           `json:"stage_name,omitempty"`
	Message     string           `json:"message,omitempty"`
	ResultRef   *string          `json:"result_ref,omitempty"`
	Error       *string          `json:"error,omitempty"`
	CreatedAt   string           `json:"created_at"`
	StartedAt   string           `json:"started_at,omitempty"`
	CompletedAt string           `json:"completed_at,omitempty"`
}

// CreateJob godoc
// @Summary Enqueue a meal-plan generation job
// @Description Creates job in DB (pending) and enqueues it for background processing. Accepts either a reference to a previously stored intake or an inline intake payload.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body createJobDTO true "intake reference or inline intake"
// @Success 201 {object} createJobResp
// @Failure 400 {object} apiError
// @Router /jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto createJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	id, err := h.jobSvc.CreateJob(r.Context(), service.CreateJobRequest{
		IntakeRef: dto.IntakeRef,
		Intake:    dto.Intake,
	})
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createJobResp{ID: id.String()})
}

// GetJob godoc
// @Summary Get job status and progress
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	j, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}

	resp := jobResp{
		ID:        j.ID.String(),
		Status:    j.Status,
		Stage:     j.Stage,
		StageName: j.StageName,
		Message:   j.Message,
		ResultRef: j.ResultRef,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		resp.StartedAt = j.StartedAt.Format(time.RFC3339)
	}
	if j.CompletedAt != nil {
		resp.CompletedAt = j.CompletedAt.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetJobResult godoc
// @Summary Get the plan produced by a completed job
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} postgresql.StoredPlan
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/result [get]
func (h *Handler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	j, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}
	if j.Status != entity.StatusCompleted || j.ResultRef == nil {
		writeErr(w, http.StatusConflict, "job not completed")
		return
	}

	planID, err := uuid.Parse(*j.ResultRef)
	if err != nil {
		writeErr(w, http.StatusNotFound, "plan not found")
		return
	}
	p, err := h.plans.GetByID(r.Context(), planID)
	if err != nil {
		writeErr(w, http.StatusNotFound, "plan not found")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// ListDeadLetters godoc
// @Summary Inspect dead-lettered jobs
// @Tags jobs
// @Produce json
// @Success 200 {array} entity.DeadLetter
// @Router /dead-letters [get]
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	letters, err := h.deadLetters.DeadLetters(r.Context(), 100)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "dead letter read failed")
		return
	}
	if letters == nil {
		letters = []entity.DeadLetter{}
	}
	writeJSON(w, http.StatusOK, letters)
}
