package models

import "time"

// Location is a physical site that gets evaluated. Names are bilingual; the
// icon identifies the site type in the client apps.
type Location struct {
	ID        int       `json:"id"`
	CompanyID int       `json:"company_id"`
	NameAr    string    `json:"name_ar"`
	NameEn    string    `json:"name_en"`
	Icon      string    `json:"icon"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ChecklistTemplate is a templated task attached to a location. Evaluations
// reference templates by id inside their task lists.
type ChecklistTemplate struct {
	ID         int       `json:"id"`
	LocationID int       `json:"location_id"`
	Category   string    `json:"category"`
	TaskAr     string    `json:"task_ar"`
	TaskEn     string    `json:"task_en"`
	SortOrder  int       `json:"sort_order"`
	CreatedAt  time.Time `json:"created_at"`
}

// LocationLabels is the denormalized location snapshot captured on a
// canonical record. Adapters receive these pre-fetched instead of querying.
type LocationLabels struct {
	NameAr    string
	NameEn    string
	Icon      string
	CompanyID int
}

// UserLabels is the denormalized evaluator snapshot.
type UserLabels struct {
	Name string
	Role string
}

// CompanyLabels is the denormalized tenant snapshot.
type CompanyLabels struct {
	NameAr string
	NameEn string
}
