package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nadhif-app/nadhif-engine/pkg/apperrors"
	"github.com/nadhif-app/nadhif-engine/pkg/services"
)

// AdminHandler exposes the operational endpoints: migration runs and
// integrity scans and repairs. These are deliberate operator actions, never
// called by client applications.
type AdminHandler struct {
	migration services.MigrationService
	integrity services.IntegrityService
	scopes    ScopeProvider
	logger    *zap.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(migration services.MigrationService, integrity services.IntegrityService, scopes ScopeProvider, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		migration: migration,
		integrity: integrity,
		scopes:    scopes,
		logger:    logger,
	}
}

// RegisterRoutes registers the admin handler's routes on the given mux.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/migration/run", h.RunMigration)
	mux.HandleFunc("POST /admin/integrity/scan", h.ScanIntegrity)
	mux.HandleFunc("POST /admin/integrity/repair", h.RepairIntegrity)
}

// RunMigration handles POST /admin/migration/run with an optional
// company_id query parameter restricting the run to one tenant.
func (h *AdminHandler) RunMigration(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseOptionalInt(r, "company_id")
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_company_id", "company_id must be an integer")
		return
	}

	ctx, cleanup, err := h.scopes.WithAdminScope(r.Context())
	if err != nil {
		h.logger.Error("Failed to acquire database scope", zap.Error(err))
		writeError(w, h.logger, http.StatusServiceUnavailable, "scope_unavailable", "database unavailable")
		return
	}
	defer cleanup()

	summary, err := h.migration.Run(ctx, companyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrReferenceDataUnavailable) {
			writeError(w, h.logger, http.StatusServiceUnavailable, "reference_data_unavailable", err.Error())
			return
		}
		h.logger.Error("Migration run failed", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "migration_failed", err.Error())
		return
	}

	if err := WriteJSON(w, http.StatusOK, summary); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ScanIntegrity handles POST /admin/integrity/scan.
func (h *AdminHandler) ScanIntegrity(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseOptionalInt(r, "company_id")
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_company_id", "company_id must be an integer")
		return
	}

	ctx, cleanup, err := h.scopes.WithAdminScope(r.Context())
	if err != nil {
		h.logger.Error("Failed to acquire database scope", zap.Error(err))
		writeError(w, h.logger, http.StatusServiceUnavailable, "scope_unavailable", "database unavailable")
		return
	}
	defer cleanup()

	report, err := h.integrity.Scan(ctx, companyID)
	if err != nil {
		h.logger.Error("Integrity scan failed", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "integrity_scan_failed", err.Error())
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RepairIntegrity handles POST /admin/integrity/repair. A repair already in
// flight answers 409.
func (h *AdminHandler) RepairIntegrity(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseOptionalInt(r, "company_id")
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_company_id", "company_id must be an integer")
		return
	}

	ctx, cleanup, err := h.scopes.WithAdminScope(r.Context())
	if err != nil {
		h.logger.Error("Failed to acquire database scope", zap.Error(err))
		writeError(w, h.logger, http.StatusServiceUnavailable, "scope_unavailable", "database unavailable")
		return
	}
	defer cleanup()

	report, err := h.integrity.Repair(ctx, companyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrRepairInProgress) {
			writeError(w, h.logger, http.StatusConflict, "repair_in_progress", "an integrity repair is already running")
			return
		}
		h.logger.Error("Integrity repair failed", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "integrity_repair_failed", err.Error())
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
