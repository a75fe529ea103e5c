package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nadhif-app/nadhif-engine/pkg/apperrors"
	"github.com/nadhif-app/nadhif-engine/pkg/models"
	"github.com/nadhif-app/nadhif-engine/pkg/services"
)

// EvaluationHandler handles evaluation read and write HTTP requests. All
// traffic goes through the bridge; the handler never touches a store
// directly.
type EvaluationHandler struct {
	bridge services.EvaluationBridge
	scopes ScopeProvider
	logger *zap.Logger
}

// NewEvaluationHandler creates a new evaluation handler.
func NewEvaluationHandler(bridge services.EvaluationBridge, scopes ScopeProvider, logger *zap.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		bridge: bridge,
		scopes: scopes,
		logger: logger,
	}
}

// RegisterRoutes registers the evaluation handler's routes on the given mux.
func (h *EvaluationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/evaluations", h.GetEvaluation)
	mux.HandleFunc("GET /api/evaluations/range", h.ListEvaluations)
	mux.HandleFunc("POST /api/evaluations", h.SaveEvaluation)
}

// GetEvaluation handles GET /api/evaluations?location_id=&date=
// with optional evaluator_id and company_id narrowing.
func (h *EvaluationHandler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	locationID, ok := parseOptionalInt(r, "location_id")
	if !ok || locationID == nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_location_id", "location_id is required and must be an integer")
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, h.logger, http.StatusBadRequest, "missing_date", "date is required (YYYY-MM-DD)")
		return
	}
	evaluatorID, ok := parseOptionalInt(r, "evaluator_id")
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_evaluator_id", "evaluator_id must be an integer")
		return
	}
	companyID, ok := parseOptionalInt(r, "company_id")
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_company_id", "company_id must be an integer")
		return
	}

	ctx, cleanup, err := scopedContext(r.Context(), h.scopes, companyID)
	if err != nil {
		h.logger.Error("Failed to acquire database scope", zap.Error(err))
		writeError(w, h.logger, http.StatusServiceUnavailable, "scope_unavailable", "database unavailable")
		return
	}
	defer cleanup()

	eval, err := h.bridge.GetEvaluation(ctx, *locationID, date, evaluatorID, companyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "evaluation_not_found", "no evaluation for that location and date")
			return
		}
		h.logger.Error("Failed to get evaluation", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "get_evaluation_failed", err.Error())
		return
	}

	if err := WriteJSON(w, http.StatusOK, eval); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListEvaluations handles GET /api/evaluations/range?location_id=&from=&to=
func (h *EvaluationHandler) ListEvaluations(w http.ResponseWriter, r *http.Request) {
	locationID, ok := parseOptionalInt(r, "location_id")
	if !ok || locationID == nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_location_id", "location_id is required and must be an integer")
		return
	}
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, h.logger, http.StatusBadRequest, "missing_range", "from and to are required (YYYY-MM-DD)")
		return
	}
	companyID, ok := parseOptionalInt(r, "company_id")
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_company_id", "company_id must be an integer")
		return
	}

	ctx, cleanup, err := scopedContext(r.Context(), h.scopes, companyID)
	if err != nil {
		h.logger.Error("Failed to acquire database scope", zap.Error(err))
		writeError(w, h.logger, http.StatusServiceUnavailable, "scope_unavailable", "database unavailable")
		return
	}
	defer cleanup()

	evals, err := h.bridge.ListEvaluations(ctx, *locationID, from, to)
	if err != nil {
		h.logger.Error("Failed to list evaluations", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "list_evaluations_failed", err.Error())
		return
	}

	if evals == nil {
		evals = make([]*models.CanonicalEvaluation, 0)
	}

	if err := WriteJSON(w, http.StatusOK, evals); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SaveEvaluation handles POST /api/evaluations. The response is shaped like
// the pre-unification checklist API so existing clients keep working.
func (h *EvaluationHandler) SaveEvaluation(w http.ResponseWriter, r *http.Request) {
	var req models.EvaluationWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.LocationID == 0 || req.EvaluatorID == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "missing_references", "location_id and evaluator_id are required")
		return
	}

	var companyID *int
	if req.CompanyID != 0 {
		companyID = &req.CompanyID
	}

	ctx, cleanup, err := scopedContext(r.Context(), h.scopes, companyID)
	if err != nil {
		h.logger.Error("Failed to acquire database scope", zap.Error(err))
		writeError(w, h.logger, http.StatusServiceUnavailable, "scope_unavailable", "database unavailable")
		return
	}
	defer cleanup()

	eval, err := h.bridge.SaveEvaluation(ctx, &req)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrWriteRejected):
			writeError(w, h.logger, http.StatusUnprocessableEntity, "write_rejected", err.Error())
		case errors.Is(err, apperrors.ErrReferenceDataUnavailable):
			writeError(w, h.logger, http.StatusServiceUnavailable, "reference_data_unavailable", err.Error())
		default:
			h.logger.Error("Failed to save evaluation", zap.Error(err))
			writeError(w, h.logger, http.StatusInternalServerError, "save_evaluation_failed", err.Error())
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, eval.LegacyView()); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
