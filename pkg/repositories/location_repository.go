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

// LocationRepository provides reads over the location directory plus the
// mutations the integrity repairer needs. Nothing else writes locations
// through this engine.
type LocationRepository interface {
	// List returns all locations, optionally restricted to a company,
	// ordered by id so duplicate merging deterministically keeps the
	// lowest id.
	List(ctx context.Context, companyID *int) ([]*models.Location, error)

	// LabelMap returns id -> denormalized labels for every location.
	LabelMap(ctx context.Context) (map[int]models.LocationLabels, error)

	// FindLabels returns one location's denormalized labels.
	// apperrors.ErrNotFound on miss.
	FindLabels(ctx context.Context, id int) (*models.LocationLabels, error)

	// UpdateLabels overwrites a location's labels. Repair-only.
	UpdateLabels(ctx context.Context, id int, nameAr, nameEn, icon string) error

	// Delete removes a location row. Repair-only; children must have been
	// re-pointed first.
	Delete(ctx context.Context, id int) error
}

type locationRepository struct{}

// NewLocationRepository creates a new LocationRepository.
func NewLocationRepository() LocationRepository {
	return &locationRepository{}
}

var _ LocationRepository = (*locationRepository)(nil)

func (r *locationRepository) List(ctx context.Context, companyID *int) ([]*models.Location, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	query := `
		SELECT id, company_id, COALESCE(name_ar, ''), COALESCE(name_en, ''),
		       COALESCE(icon, ''), is_active, created_at
		FROM locations
		WHERE $1::int IS NULL OR company_id = $1
		ORDER BY id`

	rows, err := scope.Conn.Query(ctx, query, nullInt(companyID))
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []*models.Location
	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.ID, &loc.CompanyID, &loc.NameAr, &loc.NameEn, &loc.Icon, &loc.IsActive, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, &loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locations: %w", err)
	}

	return locations, nil
}

func (r *locationRepository) LabelMap(ctx context.Context) (map[int]models.LocationLabels, error) {
	locations, err := r.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	labels := make(map[int]models.LocationLabels, len(locations))
	for _, loc := range locations {
		labels[loc.ID] = models.LocationLabels{
			NameAr:    loc.NameAr,
			NameEn:    loc.NameEn,
			Icon:      loc.Icon,
			CompanyID: loc.CompanyID,
		}
	}
	return labels, nil
}

func (r *locationRepository) FindLabels(ctx context.Context, id int) (*models.LocationLabels, error) {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no company scope in context")
	}

	query := `
		SELECT company_id, COALESCE(name_ar, ''), COALESCE(name_en, ''), COALESCE(icon, '')
		FROM locations
		WHERE id = $1`

	var labels models.LocationLabels
	err := scope.Conn.QueryRow(ctx, query, id).Scan(&labels.CompanyID, &labels.NameAr, &labels.NameEn, &labels.Icon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query location %d: %w", id, err)
	}

	return &labels, nil
}

func (r *locationRepository) UpdateLabels(ctx context.Context, id int, nameAr, nameEn, icon string) error {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return fmt.Errorf("no company scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE locations SET name_ar = $2, name_en = $3, icon = $4 WHERE id = $1`,
		id, nameAr, nameEn, icon)
	if err != nil {
		return fmt.Errorf("failed to update location labels: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *locationRepository) Delete(ctx context.Context, id int) error {
	scope, ok := database.GetCompanyScope(ctx)
	if !ok {
		return fmt.Errorf("no company scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
