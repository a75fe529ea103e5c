package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nadhif-app/nadhif-engine/pkg/apperrors"
	"github.com/nadhif-app/nadhif-engine/pkg/database"
	"github.com/nadhif-app/nadhif-engine/pkg/models"
)

// EvaluationFilter narrows a canonical-store read. Date is the calendar day
// in YYYY-MM-DD form; EvaluatorID and CompanyID are optional.
type EvaluationFilter struct {
	LocationID  int
	Date        string
	EvaluatorID *int
	CompanyID   *int
}

// LegacyKey identifies a legacy row by its source table and row id. Daily
// checklists and unified evaluations number their rows independently, so a
// bare legacy id is ambiguous between the two tables.
type LegacyKey struct {
	Source string
	ID     int
}

// EvaluationRepository is the canonical evaluation store. Inserts are
// append-only; the update and delete operations exist solely for the
// integrity repairer.
type EvaluationRepository interface {
	// Insert stores a new canonical record. A clash on evaluation_id
	// returns apperrors.ErrIDCollision; callers regenerate, never overwrite.
	Insert(ctx context.Context, eval *models.CanonicalEvaluation) error

	// FindLatest returns the most recent record matching the filter,
	// ordered by evaluation timestamp. apperrors.ErrNotFound on miss.
	FindLatest(ctx context.Context, filter EvaluationFilter) (*models.CanonicalEvaluation, error)

	// FindRange returns all records for a location between two dates
	// (inclusive), oldest first.
	FindRange(ctx context.Context, locationID int, from, to string) ([]*models.CanonicalEvaluation, error)

	// SeenIDs returns the source-qualified legacy ids and the evaluation
	// ids already present in the canonical store. The migration runner uses
	// them for idempotency.
	SeenIDs(ctx context.Context, companyID *int) (map[LegacyKey]struct{}, map[string]struct{}, error)

	// AuditRows returns a structural projection of every record, including
	// the raw tasks payload, for integrity scanning.
	AuditRows(ctx context.Context, companyID *int) ([]models.EvaluationAuditRow, error)

	// ReplaceTasks overwrites the stored tasks payload. Repair-only.
	ReplaceTasks(ctx context.Context, id int64, tasks []models.TaskResult) error

	// RepointLocation moves records from one location id to another and
	// returns how many rows changed. Repair-only.
	RepointLocation(ctx context.Context, fromLocationID, toLocationID int) (int64, error)

	// Delete removes a record by row id. Repair-only.
	Delete(ctx context.Context, id int64) error
}

type evaluationRepository struct{}

// NewEvaluationRepository creates a new EvaluationRepository.
func NewEvaluationRepository() EvaluationRepository {
	return &evaluationRepository{}
}

var _ EvaluationRepository = (*evaluationRepository)(nil)

const evaluationColumns = `
	id, evaluation_id, legacy_id,
	location_id, location_name_ar, location_name_en, location_icon,
	evaluator_id, evaluator_name, evaluator_role,
	company_id, company_name_ar, company_name_en,
	evaluation_date, evaluation_time, evaluation_date_time, evaluation_timestamp,
	tasks, category_comments, evaluation_notes, general_notes,
	total_tasks, completed_tasks, average_rating, overall_rating,
	source, is_synced, sync_timestamp, offline_id, is_encrypted, created_at`

func (r *evaluationRepository) Insert(ctx context.Context, eval *models.CanonicalEvaluation) error {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return fmt.Errorf("no company scope in context")
	}

	query := `
		INSERT INTO master_evaluations (
			evaluation_id, legacy_id,
			location_id, location_name_ar, location_name_en, location_icon,
			evaluator_id, evaluator_name, evaluator_role,
			company_id, company_name_ar, company_name_en,
			evaluation_date, evaluation_time, evaluation_date_time, evaluation_timestamp,
			tasks, category_comments, evaluation_notes, general_notes,
			total_tasks, completed_tasks, average_rating, overall_rating,
			source, is_synced, sync_timestamp, offline_id, is_encrypted
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29
		)
		RETURNING id, created_at`

	err := scope.Conn.QueryRow(ctx, query,
		eval.EvaluationID,
		nullInt(eval.LegacyID),
		eval.LocationID,
		eval.LocationNameAr,
		eval.LocationNameEn,
		eval.LocationIcon,
		eval.EvaluatorID,
		eval.EvaluatorName,
		eval.EvaluatorRole,
		eval.CompanyID,
		eval.CompanyNameAr,
		eval.CompanyNameEn,
		eval.EvaluationDate,
		eval.EvaluationTime,
		eval.EvaluationDateTime,
		eval.EvaluationTimestamp,
		jsonText(eval.Tasks),
		jsonText(eval.CategoryComments),
		nullString(eval.EvaluationNotes),
		nullString(eval.GeneralNotes),
		eval.TotalTasks,
		eval.CompletedTasks,
		eval.AverageRating,
		eval.OverallRating,
		eval.Source,
		eval.IsSynced,
		nullInt64(eval.SyncTimestamp),
		nullString(eval.OfflineID),
		eval.IsEncrypted,
	).Scan(&eval.ID, &eval.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrIDCollision
		}
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}

	return nil
}

func (r *evaluationRepository) FindLatest(ctx context.Context, filter EvaluationFilter) (*models.CanonicalEvaluation, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	query := `
		SELECT ` + evaluationColumns + `
		FROM master_evaluations
		WHERE location_id = $1 AND evaluation_date = $2
		  AND ($3::int IS NULL OR evaluator_id = $3)
		  AND ($4::int IS NULL OR company_id = $4)
		ORDER BY evaluation_timestamp DESC, id DESC
		LIMIT 1`

	row := scope.Conn.QueryRow(ctx, query,
		filter.LocationID, filter.Date, nullInt(filter.EvaluatorID), nullInt(filter.CompanyID))

	eval, err := scanEvaluation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return eval, nil
}

func (r *evaluationRepository) FindRange(ctx context.Context, locationID int, from, to string) ([]*models.CanonicalEvaluation, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	query := `
		SELECT ` + evaluationColumns + `
		FROM master_evaluations
		WHERE location_id = $1 AND evaluation_date >= $2 AND evaluation_date <= $3
		ORDER BY evaluation_timestamp, id`

	rows, err := scope.Conn.Query(ctx, query, locationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evals []*models.CanonicalEvaluation
	for rows.Next() {
		eval, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, eval)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evaluations: %w", err)
	}

	return evals, nil
}

func (r *evaluationRepository) SeenIDs(ctx context.Context, companyID *int) (map[LegacyKey]struct{}, map[string]struct{}, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, nil, fmt.Errorf("no company scope in context")
	}

	query := `
		SELECT source, legacy_id, evaluation_id
		FROM master_evaluations
		WHERE $1::int IS NULL OR company_id = $1`

	rows, err := scope.Conn.Query(ctx, query, nullInt(companyID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query seen ids: %w", err)
	}
	defer rows.Close()

	legacyIDs := make(map[LegacyKey]struct{})
	evaluationIDs := make(map[string]struct{})
	for rows.Next() {
		var source, evaluationID string
		var legacyID *int
		if err := rows.Scan(&source, &legacyID, &evaluationID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan seen ids: %w", err)
		}
		if legacyID != nil {
			legacyIDs[LegacyKey{Source: source, ID: *legacyID}] = struct{}{}
		}
		evaluationIDs[evaluationID] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating seen ids: %w", err)
	}

	return legacyIDs, evaluationIDs, nil
}

func (r *evaluationRepository) AuditRows(ctx context.Context, companyID *int) ([]models.EvaluationAuditRow, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	query := `
		SELECT id, evaluation_id, location_id, evaluator_id, company_id, COALESCE(tasks, '')
		FROM master_evaluations
		WHERE $1::int IS NULL OR company_id = $1
		ORDER BY id`

	rows, err := scope.Conn.Query(ctx, query, nullInt(companyID))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit rows: %w", err)
	}
	defer rows.Close()

	var audit []models.EvaluationAuditRow
	for rows.Next() {
		var row models.EvaluationAuditRow
		var rawTasks string
		if err := rows.Scan(&row.ID, &row.EvaluationID, &row.LocationID, &row.EvaluatorID, &row.CompanyID, &rawTasks); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		row.RawTasks = []byte(rawTasks)
		audit = append(audit, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return audit, nil
}

func (r *evaluationRepository) ReplaceTasks(ctx context.Context, id int64, tasks []models.TaskResult) error {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return fmt.Errorf("no company scope in context")
	}

	if tasks == nil {
		tasks = []models.TaskResult{}
	}
	stats := models.ComputeStats(tasks)

	query := `
		UPDATE master_evaluations
		SET tasks = $2, total_tasks = $3, completed_tasks = $4,
		    average_rating = $5, overall_rating = $6
		WHERE id = $1`

	result, err := scope.Conn.Exec(ctx, query, id,
		jsonText(tasks), stats.TotalTasks, stats.CompletedTasks, stats.AverageRating, stats.OverallRating)
	if err != nil {
		return fmt.Errorf("failed to replace tasks: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *evaluationRepository) RepointLocation(ctx context.Context, fromLocationID, toLocationID int) (int64, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no company scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE master_evaluations SET location_id = $2 WHERE location_id = $1`,
		fromLocationID, toLocationID)
	if err != nil {
		return 0, fmt.Errorf("failed to repoint evaluations: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *evaluationRepository) Delete(ctx context.Context, id int64) error {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return fmt.Errorf("no company scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM master_evaluations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete evaluation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// scanEvaluation reads one canonical record. Stored task payloads that fail
// to parse surface as an empty task list here; the integrity auditor is the
// only consumer that sees the raw payload.
func scanEvaluation(row pgx.Row) (*models.CanonicalEvaluation, error) {
	var eval models.CanonicalEvaluation
	var rawTasks, rawComments, notes, generalNotes, offlineID *string

	err := row.Scan(
		&eval.ID,
		&eval.EvaluationID,
		&eval.LegacyID,
		&eval.LocationID,
		&eval.LocationNameAr,
		&eval.LocationNameEn,
		&eval.LocationIcon,
		&eval.EvaluatorID,
		&eval.EvaluatorName,
		&eval.EvaluatorRole,
		&eval.CompanyID,
		&eval.CompanyNameAr,
		&eval.CompanyNameEn,
		&eval.EvaluationDate,
		&eval.EvaluationTime,
		&eval.EvaluationDateTime,
		&eval.EvaluationTimestamp,
		&rawTasks,
		&rawComments,
		&notes,
		&generalNotes,
		&eval.TotalTasks,
		&eval.CompletedTasks,
		&eval.AverageRating,
		&eval.OverallRating,
		&eval.Source,
		&eval.IsSynced,
		&eval.SyncTimestamp,
		&offlineID,
		&eval.IsEncrypted,
		&eval.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan evaluation: %w", err)
	}

	eval.Tasks = []models.TaskResult{}
	if rawTasks != nil {
		if tasks, err := models.ParseTaskList([]byte(*rawTasks)); err == nil {
			eval.Tasks = tasks
		}
	}
	if rawComments != nil {
		eval.CategoryComments = models.ParseCategoryComments([]byte(*rawComments))
	}
	if notes != nil {
		eval.EvaluationNotes = *notes
	}
	if generalNotes != nil {
		eval.GeneralNotes = *generalNotes
	}
	if offlineID != nil {
		eval.OfflineID = *offlineID
	}

	return &eval, nil
}
