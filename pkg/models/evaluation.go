// Package models contains domain types for nadhif-engine.
package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Evaluation source constants. These record which persistence scheme a
// canonical record originated from. They are kept for auditing only;
// business logic never branches on them after migration.
const (
	SourceDailyChecklists    = "daily_checklists"
	SourceUnifiedEvaluations = "unified_evaluations"
	SourceServer             = "server"
)

// SubTaskRating is a rating for one sub-item of a checklist task.
type SubTaskRating struct {
	Label  string `json:"label"`
	Rating int    `json:"rating"`
}

// TaskResult is the outcome of a single templated task within an evaluation.
// JSON field names are camelCase because the payloads predate this engine
// and are shared with the client applications.
type TaskResult struct {
	TemplateID     int             `json:"templateId"`
	Completed      bool            `json:"completed"`
	Rating         int             `json:"rating"` // 0-5; 0 means not yet rated
	ItemComment    string          `json:"itemComment,omitempty"`
	SubTaskRatings []SubTaskRating `json:"subTaskRatings,omitempty"`
}

// EvaluationStats holds the statistics derived from a task list. They are
// computed once at write time and stored with the record.
type EvaluationStats struct {
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	AverageRating  float64 `json:"average_rating"` // mean of ratings > 0, 0-5 scale
	OverallRating  int     `json:"overall_rating"` // 0-100 scale
}

// CanonicalEvaluation is the unit of truth for a completed evaluation of a
// location on a date by an evaluator. Location, evaluator and company facts
// are denormalized at write time so the record keeps its historical labels
// even if the referenced entities are later renamed or deleted.
//
// Records are append-only: a new evaluation for the same location, evaluator
// and date always creates a new row. Only the integrity repairer may delete
// rows, and only as part of duplicate or orphan cleanup.
type CanonicalEvaluation struct {
	ID           int64  `json:"id"`
	EvaluationID string `json:"evaluation_id"`
	// LegacyID references the originating legacy-table row. It exists only
	// so the migration runner can skip rows it has already transferred.
	LegacyID *int `json:"legacy_id,omitempty"`

	LocationID     int    `json:"location_id"`
	LocationNameAr string `json:"location_name_ar"`
	LocationNameEn string `json:"location_name_en"`
	LocationIcon   string `json:"location_icon"`

	EvaluatorID   int    `json:"evaluator_id"`
	EvaluatorName string `json:"evaluator_name"`
	EvaluatorRole string `json:"evaluator_role"`

	CompanyID     int    `json:"company_id"`
	CompanyNameAr string `json:"company_name_ar"`
	CompanyNameEn string `json:"company_name_en"`

	EvaluationDate      string `json:"evaluation_date"`      // YYYY-MM-DD
	EvaluationTime      string `json:"evaluation_time"`      // HH:MM:SS local wall clock
	EvaluationDateTime  string `json:"evaluation_date_time"` // full timestamp, RFC 3339
	EvaluationTimestamp int64  `json:"evaluation_timestamp"` // epoch millis, ordering and tie-breaking

	Tasks            []TaskResult      `json:"tasks"`
	CategoryComments map[string]string `json:"category_comments,omitempty"`
	EvaluationNotes  string            `json:"evaluation_notes,omitempty"`
	GeneralNotes     string            `json:"general_notes,omitempty"`

	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	AverageRating  float64 `json:"average_rating"`
	OverallRating  int     `json:"overall_rating"`

	Source string `json:"source"`

	IsSynced      bool   `json:"is_synced"`
	SyncTimestamp *int64 `json:"sync_timestamp,omitempty"`
	OfflineID     string `json:"offline_id,omitempty"`
	IsEncrypted   bool   `json:"is_encrypted"`

	CreatedAt time.Time `json:"created_at"`
}

// NewEvaluationID builds a globally unique evaluation identifier. The encoded
// date/time prefix keeps IDs human-sortable; the random token makes two calls
// within the same millisecond for the same location and evaluator distinct
// without any coordination.
func NewEvaluationID(locationID, evaluatorID int, at time.Time) string {
	token := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("eval_%s_%s_%03d_%d_%d_%s",
		at.Format("2006_01_02"),
		at.Format("150405"),
		at.Nanosecond()/int(time.Millisecond),
		locationID,
		evaluatorID,
		token,
	)
}

// ComputeStats derives evaluation statistics from a task list. Tasks with a
// zero rating are "not yet rated" and excluded from the average rather than
// counted as zeros. The overall rating rescales the 0-5 average onto 0-100.
//
// The overall formula is round(avg/5*100) everywhere. Older client code used
// a /4 divisor in one report path; that was an upstream inconsistency, not a
// second convention, and is not reproduced here.
func ComputeStats(tasks []TaskResult) EvaluationStats {
	stats := EvaluationStats{TotalTasks: len(tasks)}

	rated := 0
	sum := 0
	for _, task := range tasks {
		if task.Completed {
			stats.CompletedTasks++
		}
		if task.Rating > 0 {
			rated++
			sum += task.Rating
		}
	}

	if rated > 0 {
		stats.AverageRating = float64(sum) / float64(rated)
		stats.OverallRating = int(math.Round(stats.AverageRating / 5 * 100))
	}

	return stats
}

// ApplyStats stamps freshly computed statistics onto the record.
func (e *CanonicalEvaluation) ApplyStats() {
	stats := ComputeStats(e.Tasks)
	e.TotalTasks = stats.TotalTasks
	e.CompletedTasks = stats.CompletedTasks
	e.AverageRating = stats.AverageRating
	e.OverallRating = stats.OverallRating
}

// LegacyChecklistView is the response shape the pre-unification API returned
// for a saved daily checklist. Existing callers still expect it, so bridge
// writes are reshaped into this view during the transition window.
type LegacyChecklistView struct {
	ID               int64             `json:"id"`
	LocationID       int               `json:"locationId"`
	UserID           int               `json:"userId"`
	CompanyID        int               `json:"companyId"`
	ChecklistDate    string            `json:"checklistDate"`
	ChecklistTime    string            `json:"checklistTime"`
	Tasks            []TaskResult      `json:"tasks"`
	CategoryComments map[string]string `json:"categoryComments,omitempty"`
	EvaluationNotes  string            `json:"evaluationNotes,omitempty"`
	Score            int               `json:"score"`
}

// LegacyView reshapes a canonical record into the legacy checklist response.
func (e *CanonicalEvaluation) LegacyView() LegacyChecklistView {
	return LegacyChecklistView{
		ID:               e.ID,
		LocationID:       e.LocationID,
		UserID:           e.EvaluatorID,
		CompanyID:        e.CompanyID,
		ChecklistDate:    e.EvaluationDate,
		ChecklistTime:    e.EvaluationTime,
		Tasks:            e.Tasks,
		CategoryComments: e.CategoryComments,
		EvaluationNotes:  e.EvaluationNotes,
		Score:            e.OverallRating,
	}
}
