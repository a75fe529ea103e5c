package models

import (
	"encoding/json"
	"time"
)

// DailyChecklist is a row of the original per-location daily-checklist table.
// The table is read-only once the canonical store is authoritative; rows are
// inputs to the migration runner and to the bridge's read fallback.
type DailyChecklist struct {
	ID               int             `json:"id"`
	LocationID       int             `json:"locationId"`
	UserID           int             `json:"userId"`
	CompanyID        int             `json:"companyId"`
	ChecklistDate    string          `json:"checklistDate"` // YYYY-MM-DD
	ChecklistTime    string          `json:"checklistTime"` // HH:MM:SS, often empty on old rows
	Timestamp        *int64          `json:"timestamp"`     // epoch millis, missing on the oldest rows
	Tasks            json.RawMessage `json:"tasks"`
	CategoryComments json.RawMessage `json:"categoryComments"`
	EvaluationNotes  string          `json:"evaluationNotes"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// UnifiedEvaluation is a row of the intermediate "unified evaluations" table,
// the second persistence scheme. It already carries denormalized labels and
// an evaluation id, but its embedded statistics were computed inconsistently
// and are never trusted during migration.
type UnifiedEvaluation struct {
	ID                  int             `json:"id"`
	EvaluationID        string          `json:"evaluationId"`
	LocationID          int             `json:"locationId"`
	LocationNameAr      string          `json:"locationNameAr"`
	LocationNameEn      string          `json:"locationNameEn"`
	LocationIcon        string          `json:"locationIcon"`
	EvaluatorID         int             `json:"evaluatorId"`
	EvaluatorName       string          `json:"evaluatorName"`
	EvaluatorRole       string          `json:"evaluatorRole"`
	CompanyID           int             `json:"companyId"`
	CompanyNameAr       string          `json:"companyNameAr"`
	CompanyNameEn       string          `json:"companyNameEn"`
	EvaluationDate      string          `json:"evaluationDate"`
	EvaluationTime      string          `json:"evaluationTime"`
	EvaluationDateTime  string          `json:"evaluationDateTime"`
	EvaluationTimestamp int64           `json:"evaluationTimestamp"`
	Tasks               json.RawMessage `json:"tasks"`
	CategoryComments    json.RawMessage `json:"categoryComments"`
	EvaluationNotes     string          `json:"evaluationNotes"`
	GeneralNotes        string          `json:"generalNotes"`
	IsSynced            bool            `json:"isSynced"`
	SyncTimestamp       *int64          `json:"syncTimestamp"`
	OfflineID           string          `json:"offlineId"`
	IsEncrypted         bool            `json:"isEncrypted"`
	CreatedAt           time.Time       `json:"createdAt"`
}
