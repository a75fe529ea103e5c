package repositories

import (
	"context"
	"fmt"

	"github.com/nadhif-app/nadhif-engine/pkg/database"
	"github.com/nadhif-app/nadhif-engine/pkg/models"
)

// UnifiedEvaluationRepository reads the intermediate "unified evaluations"
// table, the second of the two legacy persistence schemes. Read-only.
type UnifiedEvaluationRepository interface {
	// List returns all rows, optionally restricted to a company, oldest first.
	List(ctx context.Context, companyID *int) ([]*models.UnifiedEvaluation, error)
}

type unifiedEvaluationRepository struct{}

// NewUnifiedEvaluationRepository creates a new UnifiedEvaluationRepository.
func NewUnifiedEvaluationRepository() UnifiedEvaluationRepository {
	return &unifiedEvaluationRepository{}
}

var _ UnifiedEvaluationRepository = (*unifiedEvaluationRepository)(nil)

func (r *unifiedEvaluationRepository) List(ctx context.Context, companyID *int) ([]*models.UnifiedEvaluation, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	query := `
		SELECT id, COALESCE(evaluation_id, ''), location_id,
		       COALESCE(location_name_ar, ''), COALESCE(location_name_en, ''), COALESCE(location_icon, ''),
		       evaluator_id, COALESCE(evaluator_name, ''), COALESCE(evaluator_role, ''),
		       company_id, COALESCE(company_name_ar, ''), COALESCE(company_name_en, ''),
		       evaluation_date, COALESCE(evaluation_time, ''), COALESCE(evaluation_date_time, ''),
		       COALESCE(evaluation_timestamp, 0),
		       COALESCE(tasks, ''), COALESCE(category_comments, ''),
		       COALESCE(evaluation_notes, ''), COALESCE(general_notes, ''),
		       is_synced, sync_timestamp, COALESCE(offline_id, ''), is_encrypted,
		       created_at
		FROM unified_evaluations
		WHERE $1::int IS NULL OR company_id = $1
		ORDER BY id`

	rows, err := scope.Conn.Query(ctx, query, nullInt(companyID))
	if err != nil {
		return nil, fmt.Errorf("failed to query unified evaluations: %w", err)
	}
	defer rows.Close()

	var evals []*models.UnifiedEvaluation
	for rows.Next() {
		var rec models.UnifiedEvaluation
		var rawTasks, rawComments string
		err := rows.Scan(
			&rec.ID,
			&rec.EvaluationID,
			&rec.LocationID,
			&rec.LocationNameAr,
			&rec.LocationNameEn,
			&rec.LocationIcon,
			&rec.EvaluatorID,
			&rec.EvaluatorName,
			&rec.EvaluatorRole,
			&rec.CompanyID,
			&rec.CompanyNameAr,
			&rec.CompanyNameEn,
			&rec.EvaluationDate,
			&rec.EvaluationTime,
			&rec.EvaluationDateTime,
			&rec.EvaluationTimestamp,
			&rawTasks,
			&rawComments,
			&rec.EvaluationNotes,
			&rec.GeneralNotes,
			&rec.IsSynced,
			&rec.SyncTimestamp,
			&rec.OfflineID,
			&rec.IsEncrypted,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unified evaluation: %w", err)
		}
		rec.Tasks = []byte(rawTasks)
		rec.CategoryComments = []byte(rawComments)
		evals = append(evals, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unified evaluations: %w", err)
	}

	return evals, nil
}
