package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nadhif-app/nadhif-engine/pkg/apperrors"
	"github.com/nadhif-app/nadhif-engine/pkg/models"
)

func newTestMigration(
	evaluations *fakeEvaluationRepo,
	checklists *fakeChecklistRepo,
	unified *fakeUnifiedRepo,
) MigrationService {
	locations, directory := newTestDirectory()
	return NewMigrationService(evaluations, checklists, unified, locations, directory, zap.NewNop())
}

func legacyFixtures() (*fakeChecklistRepo, *fakeUnifiedRepo) {
	ts := int64(1714578645000) // 2024-05-01 15:10:45 UTC
	checklists := &fakeChecklistRepo{rows: []*models.DailyChecklist{
		{
			ID: 7, LocationID: 3, UserID: 9, CompanyID: 2,
			ChecklistDate: "2024-05-01",
			Timestamp:     &ts,
			Tasks:         json.RawMessage(`[{"templateId":1,"completed":true,"rating":4}]`),
		},
		{
			ID: 8, LocationID: 4, UserID: 9, CompanyID: 0, // company derived from location
			ChecklistDate: "2024-05-02",
			Tasks:         json.RawMessage(`[]`),
		},
	}}
	unified := &fakeUnifiedRepo{rows: []*models.UnifiedEvaluation{
		{
			ID:             21,
			EvaluationID:   "eval_2024_05_03_090000_000_3_9_deadbeef",
			LocationID:     3,
			LocationNameEn: "Warehouse A",
			EvaluatorID:    9,
			EvaluatorName:  "Ali",
			CompanyID:      2,
			EvaluationDate: "2024-05-03",
			Tasks:          json.RawMessage(`[{"templateId":1,"completed":true,"rating":2},{"templateId":2,"completed":true,"rating":4}]`),
		},
	}}
	return checklists, unified
}

func TestMigrationRunMigratesBothSources(t *testing.T) {
	evaluations := &fakeEvaluationRepo{}
	checklists, unified := legacyFixtures()
	svc := newTestMigration(evaluations, checklists, unified)

	summary, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalMigrated)
	assert.Equal(t, 0, summary.DuplicatesSkipped)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 2, summary.ProcessedBySource[models.SourceDailyChecklists])
	assert.Equal(t, 1, summary.ProcessedBySource[models.SourceUnifiedEvaluations])
	require.Len(t, evaluations.rows, 3)

	for _, row := range evaluations.rows {
		require.NotNil(t, row.eval.LegacyID)
		assert.NotEmpty(t, row.eval.EvaluationID)
	}

	// The unified row keeps its original evaluation id and gets its
	// statistics recomputed from the task list, not copied.
	last := evaluations.rows[2].eval
	assert.Equal(t, "eval_2024_05_03_090000_000_3_9_deadbeef", last.EvaluationID)
	assert.Equal(t, models.SourceUnifiedEvaluations, last.Source)
	assert.InDelta(t, 3.0, last.AverageRating, 0.0001)
	assert.Equal(t, 60, last.OverallRating)
}

func TestMigrationSecondRunIsIdempotent(t *testing.T) {
	evaluations := &fakeEvaluationRepo{}
	checklists, unified := legacyFixtures()
	svc := newTestMigration(evaluations, checklists, unified)

	first, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 3, first.TotalMigrated)

	second, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, second.TotalMigrated)
	assert.Equal(t, 3, second.DuplicatesSkipped)
	assert.Empty(t, second.Errors)
	assert.Len(t, evaluations.rows, 3)
}

func TestMigrationUnifiedEmptyEvaluationIDIsIdempotent(t *testing.T) {
	evaluations := &fakeEvaluationRepo{}
	unified := &fakeUnifiedRepo{rows: []*models.UnifiedEvaluation{
		{
			ID: 30, LocationID: 3, LocationNameEn: "Warehouse A",
			EvaluatorID: 9, EvaluatorName: "Ali", CompanyID: 2,
			EvaluationDate: "2024-05-04",
			Tasks:          json.RawMessage(`[]`),
		},
	}}
	svc := newTestMigration(evaluations, &fakeChecklistRepo{}, unified)

	first, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalMigrated)
	require.Len(t, evaluations.rows, 1)
	// The row had no stored evaluation id, so migration minted one.
	assert.NotEmpty(t, evaluations.rows[0].eval.EvaluationID)

	second, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, second.TotalMigrated)
	assert.Equal(t, 1, second.DuplicatesSkipped)
	assert.Len(t, evaluations.rows, 1)
}

func TestMigrationLegacyIDNamespacesAreIndependent(t *testing.T) {
	evaluations := &fakeEvaluationRepo{}
	ts := int64(1714578645000)
	// A checklist and a unified row sharing row id 21: distinct legacy rows,
	// both must migrate.
	checklists := &fakeChecklistRepo{rows: []*models.DailyChecklist{
		{ID: 21, LocationID: 3, UserID: 9, CompanyID: 2,
			ChecklistDate: "2024-05-01", Timestamp: &ts, Tasks: json.RawMessage(`[]`)},
	}}
	unified := &fakeUnifiedRepo{rows: []*models.UnifiedEvaluation{
		{ID: 21, EvaluationID: "eval_2024_05_03_090000_000_3_9_deadbeef",
			LocationID: 3, LocationNameEn: "Warehouse A",
			EvaluatorID: 9, EvaluatorName: "Ali", CompanyID: 2,
			EvaluationDate: "2024-05-03", Tasks: json.RawMessage(`[]`)},
	}}
	svc := newTestMigration(evaluations, checklists, unified)

	first, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.TotalMigrated)
	assert.Empty(t, first.Errors)
	require.Len(t, evaluations.rows, 2)

	second, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.TotalMigrated)
	assert.Equal(t, 2, second.DuplicatesSkipped)
	assert.Len(t, evaluations.rows, 2)
}

func TestMigrationRowErrorPersistsAcrossRuns(t *testing.T) {
	evaluations := &fakeEvaluationRepo{}
	// The checklist's location never resolves; a migrated unified row with
	// the same row id must not mask its error on later runs.
	checklists := &fakeChecklistRepo{rows: []*models.DailyChecklist{
		{ID: 21, LocationID: 999, UserID: 9, CompanyID: 2, ChecklistDate: "2024-05-01"},
	}}
	unified := &fakeUnifiedRepo{rows: []*models.UnifiedEvaluation{
		{ID: 21, EvaluationID: "eval_2024_05_03_090000_000_3_9_deadbeef",
			LocationID: 3, LocationNameEn: "Warehouse A",
			EvaluatorID: 9, EvaluatorName: "Ali", CompanyID: 2,
			EvaluationDate: "2024-05-03", Tasks: json.RawMessage(`[]`)},
	}}
	svc := newTestMigration(evaluations, checklists, unified)

	first, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalMigrated)
	require.Len(t, first.Errors, 1)

	second, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, second.TotalMigrated)
	assert.Equal(t, 1, second.DuplicatesSkipped)
	require.Len(t, second.Errors, 1)
	assert.Equal(t, models.SourceDailyChecklists, second.Errors[0].Source)
	assert.Equal(t, "21", second.Errors[0].RowID)
	assert.Contains(t, second.Errors[0].Reason, "location 999 not found")
}

func TestMigrationRowErrorsDoNotAbortBatch(t *testing.T) {
	evaluations := &fakeEvaluationRepo{}
	checklists := &fakeChecklistRepo{rows: []*models.DailyChecklist{
		{ID: 1, LocationID: 999, UserID: 9, CompanyID: 2, ChecklistDate: "2024-05-01"},
		{ID: 2, LocationID: 3, UserID: 9, CompanyID: 2, ChecklistDate: "2024-05-01", Tasks: json.RawMessage(`[]`)},
	}}
	svc := newTestMigration(evaluations, checklists, &fakeUnifiedRepo{})

	summary, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalMigrated)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, models.SourceDailyChecklists, summary.Errors[0].Source)
	assert.Equal(t, "1", summary.Errors[0].RowID)
	assert.Contains(t, summary.Errors[0].Reason, "location 999 not found")
}

func TestMigrationMalformedTasksMigrateAsEmpty(t *testing.T) {
	evaluations := &fakeEvaluationRepo{}
	checklists := &fakeChecklistRepo{rows: []*models.DailyChecklist{
		{ID: 1, LocationID: 3, UserID: 9, CompanyID: 2, ChecklistDate: "2024-05-01",
			Tasks: json.RawMessage(`{"truncated":`)},
	}}
	svc := newTestMigration(evaluations, checklists, &fakeUnifiedRepo{})

	summary, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	// A garbage payload costs the tasks, not the row.
	assert.Equal(t, 1, summary.TotalMigrated)
	assert.Empty(t, summary.Errors)
	require.Len(t, evaluations.rows, 1)
	assert.Empty(t, evaluations.rows[0].eval.Tasks)
	assert.Equal(t, 0, evaluations.rows[0].eval.TotalTasks)
}

func TestMigrationUnifiedWithoutReferencesIsRowError(t *testing.T) {
	evaluations := &fakeEvaluationRepo{}
	unified := &fakeUnifiedRepo{rows: []*models.UnifiedEvaluation{
		{ID: 5, EvaluationID: "eval_x", LocationID: 0, EvaluatorID: 0, CompanyID: 2},
	}}
	svc := newTestMigration(evaluations, &fakeChecklistRepo{}, unified)

	summary, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalMigrated)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, models.SourceUnifiedEvaluations, summary.Errors[0].Source)
	assert.Equal(t, "5", summary.Errors[0].RowID)
}

func TestMigrationAbortsWhenReferenceDataUnavailable(t *testing.T) {
	locations := &fakeLocationRepo{listErr: errors.New("connection refused")}
	directory := &fakeDirectoryRepo{}
	checklists, unified := legacyFixtures()
	svc := NewMigrationService(&fakeEvaluationRepo{}, checklists, unified, locations, directory, zap.NewNop())

	_, err := svc.Run(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrReferenceDataUnavailable)
}

func TestMigrationCompanyFilter(t *testing.T) {
	evaluations := &fakeEvaluationRepo{}
	ts := int64(1714578645000)
	checklists := &fakeChecklistRepo{rows: []*models.DailyChecklist{
		{ID: 1, LocationID: 3, UserID: 9, CompanyID: 2, ChecklistDate: "2024-05-01", Timestamp: &ts},
		{ID: 2, LocationID: 3, UserID: 9, CompanyID: 5, ChecklistDate: "2024-05-01", Timestamp: &ts},
	}}
	svc := newTestMigration(evaluations, checklists, &fakeUnifiedRepo{})

	companyID := 2
	summary, err := svc.Run(context.Background(), &companyID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalMigrated)
	assert.Equal(t, 1, summary.ProcessedBySource[models.SourceDailyChecklists])
}

func TestMigrationStopsOnCancelledContext(t *testing.T) {
	evaluations := &fakeEvaluationRepo{}
	checklists, unified := legacyFixtures()
	svc := newTestMigration(evaluations, checklists, unified)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := svc.Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.TotalMigrated)
}
