package models

import "time"

// EvaluationWriteRequest is the input for a bridge write. Labels are not
// part of the request; the bridge resolves them at save time and rejects
// the write if any referenced entity is unknown.
type EvaluationWriteRequest struct {
	LocationID  int `json:"location_id"`
	EvaluatorID int `json:"evaluator_id"`
	// CompanyID may be zero, in which case it is derived from the location.
	CompanyID int `json:"company_id,omitempty"`

	// At is the evaluation moment. Zero means "now". Client-originated
	// offline writes carry the moment the evaluation actually happened.
	At time.Time `json:"at,omitempty"`

	Tasks            []TaskResult      `json:"tasks"`
	CategoryComments map[string]string `json:"category_comments,omitempty"`
	EvaluationNotes  string            `json:"evaluation_notes,omitempty"`
	GeneralNotes     string            `json:"general_notes,omitempty"`

	// Offline/sync provenance carried through from the client.
	OfflineID     string `json:"offline_id,omitempty"`
	IsSynced      bool   `json:"is_synced,omitempty"`
	SyncTimestamp *int64 `json:"sync_timestamp,omitempty"`
	IsEncrypted   bool   `json:"is_encrypted,omitempty"`
}
