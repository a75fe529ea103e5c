package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nadhif-app/nadhif-engine/pkg/adapters"
	"github.com/nadhif-app/nadhif-engine/pkg/apperrors"
	"github.com/nadhif-app/nadhif-engine/pkg/models"
	"github.com/nadhif-app/nadhif-engine/pkg/repositories"
)

// MigrationService bulk-transfers legacy evaluation rows into the canonical
// store. A run is idempotent: rows already migrated are skipped by their
// source-qualified legacy id, unified rows additionally by evaluation id, so
// an operator can invoke it as many times as they like.
type MigrationService interface {
	// Run migrates every legacy row not yet present in the canonical store,
	// optionally restricted to one company. Per-row failures are collected
	// in the summary and never abort the batch; only missing reference data
	// aborts the whole run (apperrors.ErrReferenceDataUnavailable).
	//
	// Cancelling the context stops the run between rows; the summary then
	// reflects the partial progress made before cancellation.
	Run(ctx context.Context, companyID *int) (*models.MigrationSummary, error)
}

type migrationService struct {
	evaluations repositories.EvaluationRepository
	checklists  repositories.DailyChecklistRepository
	unified     repositories.UnifiedEvaluationRepository
	locations   repositories.LocationRepository
	directory   repositories.DirectoryRepository
	logger      *zap.Logger
}

// NewMigrationService creates a new MigrationService.
func NewMigrationService(
	evaluations repositories.EvaluationRepository,
	checklists repositories.DailyChecklistRepository,
	unified repositories.UnifiedEvaluationRepository,
	locations repositories.LocationRepository,
	directory repositories.DirectoryRepository,
	logger *zap.Logger,
) MigrationService {
	return &migrationService{
		evaluations: evaluations,
		checklists:  checklists,
		unified:     unified,
		locations:   locations,
		directory:   directory,
		logger:      logger.Named("data-migration"),
	}
}

var _ MigrationService = (*migrationService)(nil)

func (s *migrationService) Run(ctx context.Context, companyID *int) (*models.MigrationSummary, error) {
	// Without reference data every migrated record would carry placeholder
	// parentage, so this failure aborts the whole run.
	locationLabels, userLabels, companyLabels, err := loadLookups(ctx, s.locations, s.directory)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrReferenceDataUnavailable, err)
	}

	seenLegacy, seenEvaluation, err := s.evaluations.SeenIDs(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load canonical id sets: %v", apperrors.ErrReferenceDataUnavailable, err)
	}

	summary := &models.MigrationSummary{
		ProcessedBySource: map[string]int{
			models.SourceDailyChecklists:    0,
			models.SourceUnifiedEvaluations: 0,
		},
		Errors: []models.RowError{},
	}

	if err := s.migrateDailyChecklists(ctx, companyID, locationLabels, userLabels, companyLabels, seenLegacy, seenEvaluation, summary); err != nil {
		return summary, err
	}
	if err := s.migrateUnifiedEvaluations(ctx, companyID, seenLegacy, seenEvaluation, summary); err != nil {
		return summary, err
	}

	s.logger.Info("Migration run complete",
		zap.Int("total_migrated", summary.TotalMigrated),
		zap.Int("duplicates_skipped", summary.DuplicatesSkipped),
		zap.Int("row_errors", len(summary.Errors)))

	return summary, nil
}

func (s *migrationService) migrateDailyChecklists(
	ctx context.Context,
	companyID *int,
	locationLabels map[int]models.LocationLabels,
	userLabels map[int]models.UserLabels,
	companyLabels map[int]models.CompanyLabels,
	seenLegacy map[repositories.LegacyKey]struct{},
	seenEvaluation map[string]struct{},
	summary *models.MigrationSummary,
) error {
	checklists, err := s.checklists.List(ctx, companyID)
	if err != nil {
		return fmt.Errorf("%w: failed to load daily checklists: %v", apperrors.ErrReferenceDataUnavailable, err)
	}

	for _, rec := range checklists {
		if err := ctx.Err(); err != nil {
			return err
		}

		summary.ProcessedBySource[models.SourceDailyChecklists]++

		key := repositories.LegacyKey{Source: models.SourceDailyChecklists, ID: rec.ID}
		if _, done := seenLegacy[key]; done {
			summary.DuplicatesSkipped++
			continue
		}

		eval, err := adapters.FromDailyChecklist(rec, locationLabels, userLabels, companyLabels)
		if err != nil {
			summary.Errors = append(summary.Errors, rowError(models.SourceDailyChecklists, strconv.Itoa(rec.ID), err))
			continue
		}

		if err := s.insertMigrated(ctx, eval); err != nil {
			summary.Errors = append(summary.Errors, rowError(models.SourceDailyChecklists, strconv.Itoa(rec.ID), err))
			continue
		}

		seenLegacy[key] = struct{}{}
		seenEvaluation[eval.EvaluationID] = struct{}{}
		summary.TotalMigrated++
	}

	return nil
}

func (s *migrationService) migrateUnifiedEvaluations(
	ctx context.Context,
	companyID *int,
	seenLegacy map[repositories.LegacyKey]struct{},
	seenEvaluation map[string]struct{},
	summary *models.MigrationSummary,
) error {
	evals, err := s.unified.List(ctx, companyID)
	if err != nil {
		return fmt.Errorf("%w: failed to load unified evaluations: %v", apperrors.ErrReferenceDataUnavailable, err)
	}

	for _, rec := range evals {
		if err := ctx.Err(); err != nil {
			return err
		}

		summary.ProcessedBySource[models.SourceUnifiedEvaluations]++

		// The source-qualified legacy id is the authoritative dedup key:
		// rows without a stored evaluation id get a fresh random one on
		// migration and would otherwise never match on a re-run.
		key := repositories.LegacyKey{Source: models.SourceUnifiedEvaluations, ID: rec.ID}
		_, doneLegacy := seenLegacy[key]
		_, doneEvaluation := seenEvaluation[rec.EvaluationID]
		if doneLegacy || (doneEvaluation && rec.EvaluationID != "") {
			summary.DuplicatesSkipped++
			continue
		}

		eval, err := adapters.FromUnifiedEvaluation(rec)
		if err != nil {
			summary.Errors = append(summary.Errors, rowError(models.SourceUnifiedEvaluations, strconv.Itoa(rec.ID), err))
			continue
		}

		if err := s.insertMigrated(ctx, eval); err != nil {
			summary.Errors = append(summary.Errors, rowError(models.SourceUnifiedEvaluations, strconv.Itoa(rec.ID), err))
			continue
		}

		seenLegacy[key] = struct{}{}
		seenEvaluation[eval.EvaluationID] = struct{}{}
		summary.TotalMigrated++
	}

	return nil
}

// insertMigrated inserts one adapted record, retrying a collided evaluation
// id once with a perturbed timestamp before giving up on the row.
func (s *migrationService) insertMigrated(ctx context.Context, eval *models.CanonicalEvaluation) error {
	err := s.evaluations.Insert(ctx, eval)
	if !errors.Is(err, apperrors.ErrIDCollision) {
		return err
	}

	perturbed := time.UnixMilli(eval.EvaluationTimestamp + 1).UTC()
	eval.EvaluationID = models.NewEvaluationID(eval.LocationID, eval.EvaluatorID, perturbed)

	s.logger.Warn("Evaluation id collision during migration, retrying with perturbed timestamp",
		zap.String("evaluation_id", eval.EvaluationID))

	return s.evaluations.Insert(ctx, eval)
}

func rowError(source, rowID string, err error) models.RowError {
	return models.RowError{Source: source, RowID: rowID, Reason: err.Error()}
}
