package repositories

import (
	"context"
	"fmt"

	"github.com/nadhif-app/nadhif-engine/pkg/apperrors"
	"github.com/nadhif-app/nadhif-engine/pkg/database"
	"github.com/nadhif-app/nadhif-engine/pkg/models"
)

// TemplateRepository provides reads over checklist templates plus the
// mutations the integrity repairer needs.
type TemplateRepository interface {
	// List returns all templates, optionally restricted to a company
	// (via the owning location), ordered by id.
	List(ctx context.Context, companyID *int) ([]*models.ChecklistTemplate, error)

	// UpdateText overwrites a template's category and task text. Repair-only.
	UpdateText(ctx context.Context, id int, category, taskAr, taskEn string) error

	// RepointLocation moves templates from one location id to another and
	// returns how many rows changed. Repair-only.
	RepointLocation(ctx context.Context, fromLocationID, toLocationID int) (int64, error)

	// Delete removes a template row. Repair-only.
	Delete(ctx context.Context, id int) error
}

type templateRepository struct{}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository() TemplateRepository {
	return &templateRepository{}
}

var _ TemplateRepository = (*templateRepository)(nil)

func (r *templateRepository) List(ctx context.Context, companyID *int) ([]*models.ChecklistTemplate, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	// Deliberately a LEFT JOIN: templates whose location no longer exists
	// are exactly what the integrity auditor needs to see.
	query := `
		SELECT t.id, t.location_id, COALESCE(t.category, ''),
		       COALESCE(t.task_ar, ''), COALESCE(t.task_en, ''),
		       t.sort_order, t.created_at
		FROM checklist_templates t
		LEFT JOIN locations l ON l.id = t.location_id
		WHERE $1::int IS NULL OR l.company_id = $1
		ORDER BY t.id`

	rows, err := scope.Conn.Query(ctx, query, nullInt(companyID))
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.ChecklistTemplate
	for rows.Next() {
		var tpl models.ChecklistTemplate
		if err := rows.Scan(&tpl.ID, &tpl.LocationID, &tpl.Category, &tpl.TaskAr, &tpl.TaskEn, &tpl.SortOrder, &tpl.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, &tpl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

func (r *templateRepository) UpdateText(ctx context.Context, id int, category, taskAr, taskEn string) error {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return fmt.Errorf("no company scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE checklist_templates SET category = $2, task_ar = $3, task_en = $4 WHERE id = $1`,
		id, category, taskAr, taskEn)
	if err != nil {
		return fmt.Errorf("failed to update template text: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *templateRepository) RepointLocation(ctx context.Context, fromLocationID, toLocationID int) (int64, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no company scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE checklist_templates SET location_id = $2 WHERE location_id = $1`,
		fromLocationID, toLocationID)
	if err != nil {
		return 0, fmt.Errorf("failed to repoint templates: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *templateRepository) Delete(ctx context.Context, id int) error {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return fmt.Errorf("no company scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM checklist_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
