package models

// RowError records a single legacy row that could not be migrated. Row
// errors never abort a migration batch; they are collected and reported.
type RowError struct {
	Source string `json:"source"` // daily_checklists or unified_evaluations
	RowID  string `json:"row_id"`
	Reason string `json:"reason"`
}

// MigrationSummary is the result of one migration run. Administrative
// tooling must surface every field; "0 migrated with N errors" is not a
// success.
type MigrationSummary struct {
	ProcessedBySource map[string]int `json:"processed_by_source"`
	TotalMigrated     int            `json:"total_migrated"`
	DuplicatesSkipped int            `json:"duplicates_skipped"`
	Errors            []RowError     `json:"errors"`
}

// IntegrityReport is the result of an integrity scan or repair. A scan
// leaves FixedIssues at zero; a repair additionally reports what it fixed.
type IntegrityReport struct {
	LocationMismatches   int      `json:"location_mismatches"`
	TemplateMismatches   int      `json:"template_mismatches"`
	EvaluationMismatches int      `json:"evaluation_mismatches"`
	MissingRelations     int      `json:"missing_relations"`
	DuplicateData        int      `json:"duplicate_data"`
	TotalIssues          int      `json:"total_issues"`
	FixedIssues          int      `json:"fixed_issues"`
	Details              []string `json:"details,omitempty"`
}

// EvaluationAuditRow is the structural projection of a canonical record the
// integrity auditor scans: reference ids plus the raw, unparsed tasks
// payload.
type EvaluationAuditRow struct {
	ID           int64  `json:"id"`
	EvaluationID string `json:"evaluation_id"`
	LocationID   int    `json:"location_id"`
	EvaluatorID  int    `json:"evaluator_id"`
	CompanyID    int    `json:"company_id"`
	RawTasks     []byte `json:"-"`
}

// Finalize recomputes the issue total from the per-category counts.
func (r *IntegrityReport) Finalize() {
	r.TotalIssues = r.LocationMismatches +
		r.TemplateMismatches +
		r.EvaluationMismatches +
		r.MissingRelations +
		r.DuplicateData
}
