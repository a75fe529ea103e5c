package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nadhif-app/nadhif-engine/pkg/apperrors"
	"github.com/nadhif-app/nadhif-engine/pkg/database"
	"github.com/nadhif-app/nadhif-engine/pkg/models"
)

// DailyChecklistRepository reads the legacy per-location daily-checklist
// table. The table is never written through this engine; it exists for the
// migration runner and the bridge's read fallback.
type DailyChecklistRepository interface {
	// List returns all rows, optionally restricted to a company, oldest
	// first so migration output is stable.
	List(ctx context.Context, companyID *int) ([]*models.DailyChecklist, error)

	// FindLatest returns the most recent checklist matching the filter.
	// apperrors.ErrNotFound on miss.
	FindLatest(ctx context.Context, filter EvaluationFilter) (*models.DailyChecklist, error)
}

type dailyChecklistRepository struct{}

// NewDailyChecklistRepository creates a new DailyChecklistRepository.
func NewDailyChecklistRepository() DailyChecklistRepository {
	return &dailyChecklistRepository{}
}

var _ DailyChecklistRepository = (*dailyChecklistRepository)(nil)

const dailyChecklistColumns = `
	id, location_id, user_id, company_id,
	checklist_date, COALESCE(checklist_time, ''), ts,
	COALESCE(tasks, ''), COALESCE(category_comments, ''), COALESCE(evaluation_notes, ''),
	created_at`

func (r *dailyChecklistRepository) List(ctx context.Context, companyID *int) ([]*models.DailyChecklist, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	query := `
		SELECT ` + dailyChecklistColumns + `
		FROM daily_checklists
		WHERE $1::int IS NULL OR company_id = $1
		ORDER BY id`

	rows, err := scope.Conn.Query(ctx, query, nullInt(companyID))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily checklists: %w", err)
	}
	defer rows.Close()

	var checklists []*models.DailyChecklist
	for rows.Next() {
		rec, err := scanDailyChecklist(rows)
		if err != nil {
			return nil, err
		}
		checklists = append(checklists, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily checklists: %w", err)
	}

	return checklists, nil
}

func (r *dailyChecklistRepository) FindLatest(ctx context.Context, filter EvaluationFilter) (*models.DailyChecklist, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	query := `
		SELECT ` + dailyChecklistColumns + `
		FROM daily_checklists
		WHERE location_id = $1 AND checklist_date = $2
		  AND ($3::int IS NULL OR user_id = $3)
		  AND ($4::int IS NULL OR company_id = $4)
		ORDER BY ts DESC NULLS LAST, id DESC
		LIMIT 1`

	row := scope.Conn.QueryRow(ctx, query,
		filter.LocationID, filter.Date, nullInt(filter.EvaluatorID), nullInt(filter.CompanyID))

	rec, err := scanDailyChecklist(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func scanDailyChecklist(row pgx.Row) (*models.DailyChecklist, error) {
	var rec models.DailyChecklist
	var rawTasks, rawComments string

	err := row.Scan(
		&rec.ID,
		&rec.LocationID,
		&rec.UserID,
		&rec.CompanyID,
		&rec.ChecklistDate,
		&rec.ChecklistTime,
		&rec.Timestamp,
		&rawTasks,
		&rawComments,
		&rec.EvaluationNotes,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan daily checklist: %w", err)
	}

	rec.Tasks = []byte(rawTasks)
	rec.CategoryComments = []byte(rawComments)
	return &rec, nil
}
