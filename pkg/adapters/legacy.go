// Package adapters converts legacy evaluation rows into canonical records.
// Adapters are pure: label lookups are passed in pre-fetched, never queried.
package adapters

import (
	"fmt"
	"time"

	"github.com/nadhif-app/nadhif-engine/pkg/models"
)

// FromDailyChecklist converts a legacy daily-checklist row into a canonical
// evaluation. It fails if the row's location, user or company cannot be
// resolved from the supplied lookups; migrated records must never carry
// placeholder parentage.
//
// A malformed tasks payload is coerced to an empty list rather than failing
// the row; the integrity auditor reports such rows separately.
func FromDailyChecklist(
	rec *models.DailyChecklist,
	locations map[int]models.LocationLabels,
	users map[int]models.UserLabels,
	companies map[int]models.CompanyLabels,
) (*models.CanonicalEvaluation, error) {
	location, ok := locations[rec.LocationID]
	if !ok {
		return nil, fmt.Errorf("location %d not found", rec.LocationID)
	}
	user, ok := users[rec.UserID]
	if !ok {
		return nil, fmt.Errorf("user %d not found", rec.UserID)
	}

	companyID := rec.CompanyID
	if companyID == 0 {
		companyID = location.CompanyID
	}
	company, ok := companies[companyID]
	if !ok {
		return nil, fmt.Errorf("company %d not found", companyID)
	}

	at, timeOfDay := legacyMoment(rec.ChecklistDate, rec.ChecklistTime, rec.Timestamp)

	tasks, err := models.ParseTaskList(rec.Tasks)
	if err != nil {
		tasks = []models.TaskResult{}
	}

	legacyID := rec.ID
	eval := &models.CanonicalEvaluation{
		EvaluationID:        models.NewEvaluationID(rec.LocationID, rec.UserID, at),
		LegacyID:            &legacyID,
		LocationID:          rec.LocationID,
		LocationNameAr:      location.NameAr,
		LocationNameEn:      location.NameEn,
		LocationIcon:        location.Icon,
		EvaluatorID:         rec.UserID,
		EvaluatorName:       user.Name,
		EvaluatorRole:       user.Role,
		CompanyID:           companyID,
		CompanyNameAr:       company.NameAr,
		CompanyNameEn:       company.NameEn,
		EvaluationDate:      rec.ChecklistDate,
		EvaluationTime:      timeOfDay,
		EvaluationDateTime:  at.Format(time.RFC3339),
		EvaluationTimestamp: at.UnixMilli(),
		Tasks:               tasks,
		CategoryComments:    models.ParseCategoryComments(rec.CategoryComments),
		EvaluationNotes:     rec.EvaluationNotes,
		Source:              models.SourceDailyChecklists,
		IsSynced:            true,
	}
	eval.ApplyStats()

	return eval, nil
}

// FromUnifiedEvaluation converts an intermediate-schema row into a canonical
// evaluation. The source already carries denormalized labels and usually an
// evaluation id, so this is mostly a field rename. Statistics are always
// recomputed; historical rows stored them inconsistently.
func FromUnifiedEvaluation(rec *models.UnifiedEvaluation) (*models.CanonicalEvaluation, error) {
	if rec.LocationID == 0 || rec.EvaluatorID == 0 {
		return nil, fmt.Errorf("unified evaluation %d has no location or evaluator reference", rec.ID)
	}

	at, timeOfDay := legacyMoment(rec.EvaluationDate, rec.EvaluationTime, int64Ptr(rec.EvaluationTimestamp))

	evaluationID := rec.EvaluationID
	if evaluationID == "" {
		evaluationID = models.NewEvaluationID(rec.LocationID, rec.EvaluatorID, at)
	}

	dateTime := rec.EvaluationDateTime
	if dateTime == "" {
		dateTime = at.Format(time.RFC3339)
	}

	tasks, err := models.ParseTaskList(rec.Tasks)
	if err != nil {
		tasks = []models.TaskResult{}
	}

	legacyID := rec.ID
	eval := &models.CanonicalEvaluation{
		EvaluationID:        evaluationID,
		LegacyID:            &legacyID,
		LocationID:          rec.LocationID,
		LocationNameAr:      rec.LocationNameAr,
		LocationNameEn:      rec.LocationNameEn,
		LocationIcon:        rec.LocationIcon,
		EvaluatorID:         rec.EvaluatorID,
		EvaluatorName:       rec.EvaluatorName,
		EvaluatorRole:       rec.EvaluatorRole,
		CompanyID:           rec.CompanyID,
		CompanyNameAr:       rec.CompanyNameAr,
		CompanyNameEn:       rec.CompanyNameEn,
		EvaluationDate:      rec.EvaluationDate,
		EvaluationTime:      timeOfDay,
		EvaluationDateTime:  dateTime,
		EvaluationTimestamp: at.UnixMilli(),
		Tasks:               tasks,
		CategoryComments:    models.ParseCategoryComments(rec.CategoryComments),
		EvaluationNotes:     rec.EvaluationNotes,
		GeneralNotes:        rec.GeneralNotes,
		Source:              models.SourceUnifiedEvaluations,
		IsSynced:            rec.IsSynced,
		SyncTimestamp:       rec.SyncTimestamp,
		OfflineID:           rec.OfflineID,
		IsEncrypted:         rec.IsEncrypted,
	}
	eval.ApplyStats()

	return eval, nil
}

// legacyMoment reconstructs the evaluation moment from whatever time fields
// a legacy row carries. Preference order: explicit epoch timestamp, then
// date plus wall-clock time, then date at midnight.
func legacyMoment(date, timeOfDay string, timestamp *int64) (time.Time, string) {
	if timestamp != nil && *timestamp > 0 {
		at := time.UnixMilli(*timestamp).UTC()
		if timeOfDay == "" {
			timeOfDay = at.Format("15:04:05")
		}
		return at, timeOfDay
	}

	if timeOfDay == "" {
		timeOfDay = "00:00:00"
	}

	at, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+timeOfDay, time.UTC)
	if err != nil {
		// Date field itself is unusable; fall back to the zero moment so the
		// record still migrates and sorts before everything genuine.
		return time.Unix(0, 0).UTC(), timeOfDay
	}
	return at, timeOfDay
}

func int64Ptr(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
