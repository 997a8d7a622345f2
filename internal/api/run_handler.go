package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/orchestrator"
	"github.com/shaiso/Conductor/internal/repo"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// CreateRun выполняет запрос и возвращает итог.
// POST /api/v1/runs
// POST /api/v1/runs?async=true — только постановка в очередь runs.requested (202).
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var body CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	req := body.ToDomain()

	if r.URL.Query().Get("async") == "true" {
		h.enqueueRun(w, r, req)
		return
	}

	annotate(r, "request_id", req.ID)

	result, err := h.runner.Run(r.Context(), req)
	if result == nil {
		HandleRunError(w, h.logger, err)
		return
	}
	annotate(r, "strategy", result.Strategy, "run_status", result.Status)
	if err != nil {
		// Сбой планировщика: итог ABORTED всё равно отдаётся клиенту
		telemetry.FromContext(r.Context()).Warn("run finished with orchestration fault",
			"request_id", req.ID, "error", err)
	}

	Created(w, result)
}

// enqueueRun проверяет запрос и публикует его в очередь.
func (h *Handler) enqueueRun(w http.ResponseWriter, r *http.Request, req *domain.RunRequest) {
	if h.enqueuer == nil {
		Unavailable(w, "async runs require a message broker")
		return
	}

	// Ошибки построения отсекаются до публикации
	if _, err := h.runner.Plan(req); HandleRunError(w, h.logger, err) {
		return
	}

	annotate(r, "request_id", req.ID, "queued", true)
	if err := h.enqueuer.PublishRunRequested(r.Context(), req); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	JSON(w, http.StatusAccepted, DataResponse{Data: AcceptedResponse{
		RequestID: req.ID,
		Status:    "QUEUED",
	}})
}

// PlanRun возвращает разрешённый порядок и стратегию без выполнения.
// POST /api/v1/plan
func (h *Handler) PlanRun(w http.ResponseWriter, r *http.Request) {
	var body CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	plan, err := h.runner.Plan(body.ToDomain())
	if HandleRunError(w, h.logger, err) {
		return
	}
	annotate(r, "request_id", plan.RequestID, "strategy", plan.Decision.Strategy)

	Success(w, plan)
}

// ListRuns возвращает последние итоги.
// GET /api/v1/runs?status=...&strategy=...&limit=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 50
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	filter := repo.RunFilter{
		Status: domain.RunStatus(q.Get("status")),
		Limit:  limit,
	}
	if s := q.Get("strategy"); s != "" {
		strategy, ok := domain.ParseStrategy(s)
		if !ok {
			BadRequest(w, "invalid strategy")
			return
		}
		filter.Strategy = strategy
	}

	var results []*domain.RunResult
	if h.runStore != nil {
		stored, err := h.runStore.ListRecent(r.Context(), filter)
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		for i := range stored {
			results = append(results, &stored[i])
		}
	} else {
		results = filterHistory(h.history, filter)
	}

	summaries := make([]RunSummaryResponse, len(results))
	for i, result := range results {
		summaries[i] = SummaryFromDomain(result)
	}

	List(w, summaries, len(summaries))
}

// GetRun возвращает итог с записями выполнения.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	if h.history != nil {
		if result, ok := h.history.Get(id); ok {
			Success(w, result)
			return
		}
	}

	if h.runStore == nil {
		NotFound(w, "run not found")
		return
	}

	result, err := h.runStore.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, result)
}

// filterHistory выбирает итоги из памяти по фильтру (новые первыми).
func filterHistory(history *orchestrator.History, filter repo.RunFilter) []*domain.RunResult {
	if history == nil {
		return nil
	}

	var results []*domain.RunResult
	for _, result := range history.List(0) {
		if filter.Status != "" && result.Status != filter.Status {
			continue
		}
		if filter.Strategy != "" && result.Strategy != filter.Strategy {
			continue
		}
		results = append(results, result)
		if len(results) == filter.Limit {
			break
		}
	}
	return results
}
