// Package services implements the evaluation unification engine: the
// read/write compatibility bridge, the legacy data migration runner and the
// integrity auditor.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nadhif-app/nadhif-engine/pkg/adapters"
	"github.com/nadhif-app/nadhif-engine/pkg/apperrors"
	"github.com/nadhif-app/nadhif-engine/pkg/models"
	"github.com/nadhif-app/nadhif-engine/pkg/repositories"
)

// EvaluationBridge routes evaluation reads and writes between the canonical
// store and the legacy daily-checklist store. Callers never see a
// legacy-shaped object and never need to know which store answered.
type EvaluationBridge interface {
	// GetEvaluation returns the most recent evaluation for a location on a
	// date, optionally narrowed by evaluator and company. It consults the
	// canonical store first and falls back to the legacy store on a miss.
	// apperrors.ErrNotFound when neither store has a match.
	GetEvaluation(ctx context.Context, locationID int, date string, evaluatorID, companyID *int) (*models.CanonicalEvaluation, error)

	// SaveEvaluation stores a new canonical record. Always an insert: a
	// second save for the same location, evaluator and date creates a
	// second row. apperrors.ErrWriteRejected when the referenced location,
	// evaluator or company is unknown.
	SaveEvaluation(ctx context.Context, req *models.EvaluationWriteRequest) (*models.CanonicalEvaluation, error)

	// ListEvaluations returns all canonical records for a location between
	// two dates inclusive, oldest first.
	ListEvaluations(ctx context.Context, locationID int, from, to string) ([]*models.CanonicalEvaluation, error)
}

type evaluationBridge struct {
	evaluations repositories.EvaluationRepository
	checklists  repositories.DailyChecklistRepository
	locations   repositories.LocationRepository
	directory   repositories.DirectoryRepository
	logger      *zap.Logger
}

// NewEvaluationBridge creates a new EvaluationBridge.
func NewEvaluationBridge(
	evaluations repositories.EvaluationRepository,
	checklists repositories.DailyChecklistRepository,
	locations repositories.LocationRepository,
	directory repositories.DirectoryRepository,
	logger *zap.Logger,
) EvaluationBridge {
	return &evaluationBridge{
		evaluations: evaluations,
		checklists:  checklists,
		locations:   locations,
		directory:   directory,
		logger:      logger.Named("evaluation-bridge"),
	}
}

var _ EvaluationBridge = (*evaluationBridge)(nil)

func (b *evaluationBridge) GetEvaluation(ctx context.Context, locationID int, date string, evaluatorID, companyID *int) (*models.CanonicalEvaluation, error) {
	filter := repositories.EvaluationFilter{
		LocationID:  locationID,
		Date:        date,
		EvaluatorID: evaluatorID,
		CompanyID:   companyID,
	}

	eval, canonicalErr := b.evaluations.FindLatest(ctx, filter)
	if canonicalErr == nil {
		return eval, nil
	}
	if !errors.Is(canonicalErr, apperrors.ErrNotFound) {
		// Degrade instead of failing: an unhealthy canonical store must not
		// take reads down while the legacy store can still answer.
		b.logger.Warn("Canonical store read failed, trying legacy fallback",
			zap.Int("location_id", locationID),
			zap.String("date", date),
			zap.Error(canonicalErr))
	}

	rec, legacyErr := b.checklists.FindLatest(ctx, filter)
	if legacyErr != nil {
		if errors.Is(legacyErr, apperrors.ErrNotFound) {
			if errors.Is(canonicalErr, apperrors.ErrNotFound) {
				return nil, apperrors.ErrNotFound
			}
			return nil, fmt.Errorf("canonical store failed and legacy store has no match: %w", canonicalErr)
		}
		if errors.Is(canonicalErr, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("legacy fallback read failed: %w", legacyErr)
		}
		return nil, fmt.Errorf("both stores failed (canonical: %v): %w", canonicalErr, legacyErr)
	}

	translated, err := b.translateChecklist(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to translate legacy checklist %d: %w", rec.ID, err)
	}
	return translated, nil
}

func (b *evaluationBridge) SaveEvaluation(ctx context.Context, req *models.EvaluationWriteRequest) (*models.CanonicalEvaluation, error) {
	// Point lookups, not the bulk label maps: a single write only ever
	// needs three rows of reference data.
	location, err := b.locations.FindLabels(ctx, req.LocationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: location %d not found", apperrors.ErrWriteRejected, req.LocationID)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrReferenceDataUnavailable, err)
	}
	user, err := b.directory.FindUser(ctx, req.EvaluatorID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: evaluator %d not found", apperrors.ErrWriteRejected, req.EvaluatorID)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrReferenceDataUnavailable, err)
	}

	companyID := req.CompanyID
	if companyID == 0 {
		companyID = location.CompanyID
	}
	company, err := b.directory.FindCompany(ctx, companyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: company %d not found", apperrors.ErrWriteRejected, companyID)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrReferenceDataUnavailable, err)
	}

	at := req.At
	if at.IsZero() {
		at = time.Now()
	}

	tasks := req.Tasks
	if tasks == nil {
		tasks = []models.TaskResult{}
	}

	eval := &models.CanonicalEvaluation{
		EvaluationID:        models.NewEvaluationID(req.LocationID, req.EvaluatorID, at),
		LocationID:          req.LocationID,
		LocationNameAr:      location.NameAr,
		LocationNameEn:      location.NameEn,
		LocationIcon:        location.Icon,
		EvaluatorID:         req.EvaluatorID,
		EvaluatorName:       user.Name,
		EvaluatorRole:       user.Role,
		CompanyID:           companyID,
		CompanyNameAr:       company.NameAr,
		CompanyNameEn:       company.NameEn,
		EvaluationDate:      at.Format("2006-01-02"),
		EvaluationTime:      at.Format("15:04:05"),
		EvaluationDateTime:  at.Format(time.RFC3339),
		EvaluationTimestamp: at.UnixMilli(),
		Tasks:               tasks,
		CategoryComments:    req.CategoryComments,
		EvaluationNotes:     req.EvaluationNotes,
		GeneralNotes:        req.GeneralNotes,
		Source:              models.SourceServer,
		IsSynced:            req.IsSynced,
		SyncTimestamp:       req.SyncTimestamp,
		OfflineID:           req.OfflineID,
		IsEncrypted:         req.IsEncrypted,
	}
	eval.ApplyStats()

	if err := insertWithRetry(ctx, b.evaluations, eval); err != nil {
		return nil, err
	}

	return eval, nil
}

func (b *evaluationBridge) ListEvaluations(ctx context.Context, locationID int, from, to string) ([]*models.CanonicalEvaluation, error) {
	return b.evaluations.FindRange(ctx, locationID, from, to)
}

// translateChecklist converts a legacy row through the daily-checklist
// adapter so bridge callers only ever see canonical-shaped records.
func (b *evaluationBridge) translateChecklist(ctx context.Context, rec *models.DailyChecklist) (*models.CanonicalEvaluation, error) {
	locationLabels, userLabels, companyLabels, err := loadLookups(ctx, b.locations, b.directory)
	if err != nil {
		return nil, err
	}
	return adapters.FromDailyChecklist(rec, locationLabels, userLabels, companyLabels)
}

// insertWithRetry inserts a canonical record, regenerating the evaluation id
// once from a perturbed timestamp if it collides. Collisions are effectively
// impossible with the random token, so one retry is plenty.
func insertWithRetry(ctx context.Context, repo repositories.EvaluationRepository, eval *models.CanonicalEvaluation) error {
	err := repo.Insert(ctx, eval)
	if !errors.Is(err, apperrors.ErrIDCollision) {
		return err
	}

	perturbed := time.UnixMilli(eval.EvaluationTimestamp + 1).UTC()
	eval.EvaluationID = models.NewEvaluationID(eval.LocationID, eval.EvaluatorID, perturbed)
	return repo.Insert(ctx, eval)
}

// loadLookups fetches the label maps the adapters and the write path need.
func loadLookups(
	ctx context.Context,
	locations repositories.LocationRepository,
	directory repositories.DirectoryRepository,
) (map[int]models.LocationLabels, map[int]models.UserLabels, map[int]models.CompanyLabels, error) {
	locationLabels, err := locations.LabelMap(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load location labels: %w", err)
	}
	userLabels, err := directory.UserLabelMap(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load user labels: %w", err)
	}
	companyLabels, err := directory.CompanyLabelMap(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load company labels: %w", err)
	}
	return locationLabels, userLabels, companyLabels, nil
}
