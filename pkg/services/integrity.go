package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nadhif-app/nadhif-engine/pkg/apperrors"
	"github.com/nadhif-app/nadhif-engine/pkg/models"
	"github.com/nadhif-app/nadhif-engine/pkg/repositories"
)

// repairLockKey is the cross-replica mutual-exclusion key for repairs.
const repairLockKey = "nadhif:integrity-repair"

// IntegrityService keeps the canonical dataset and its parent entities
// structurally sound despite accumulated legacy drift.
//
// Scans never mutate anything. Repairs are destructive in places and must
// not run concurrently with each other: each repair holds an in-process
// single-flight guard plus, when Redis is configured, a cross-replica lock.
// Bridge reads and writes may proceed freely during a repair.
type IntegrityService interface {
	// Scan reports structural defects without fixing anything.
	Scan(ctx context.Context, companyID *int) (*models.IntegrityReport, error)

	// Repair fixes the defects a scan finds and reports what remains.
	// A concurrent repair attempt gets apperrors.ErrRepairInProgress.
	Repair(ctx context.Context, companyID *int) (*models.IntegrityReport, error)
}

type integrityService struct {
	evaluations repositories.EvaluationRepository
	locations   repositories.LocationRepository
	templates   repositories.TemplateRepository
	directory   repositories.DirectoryRepository
	logger      *zap.Logger

	// redis is optional; nil means single-replica deployment and the
	// in-process mutex alone guards repairs.
	redis   *redis.Client
	lockTTL time.Duration

	repairMu sync.Mutex
}

// NewIntegrityService creates a new IntegrityService. The redis client may
// be nil.
func NewIntegrityService(
	evaluations repositories.EvaluationRepository,
	locations repositories.LocationRepository,
	templates repositories.TemplateRepository,
	directory repositories.DirectoryRepository,
	redisClient *redis.Client,
	lockTTL time.Duration,
	logger *zap.Logger,
) IntegrityService {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &integrityService{
		evaluations: evaluations,
		locations:   locations,
		templates:   templates,
		directory:   directory,
		redis:       redisClient,
		lockTTL:     lockTTL,
		logger:      logger.Named("integrity"),
	}
}

var _ IntegrityService = (*integrityService)(nil)

// findings is the raw material a scan collects: not just counts but the
// concrete rows each repair step works from.
type findings struct {
	locationsMissingLabels []*models.Location
	templatesMissingText   []*models.ChecklistTemplate
	orphanTemplates        []*models.ChecklistTemplate
	malformedEvaluations   []models.EvaluationAuditRow
	orphanEvaluations      []models.EvaluationAuditRow
	// duplicateGroups maps a (name, company) key to the locations sharing
	// it, sorted by id; the first entry of each group is the keeper.
	duplicateGroups map[string][]*models.Location
	missingRelations int
	duplicateData    int
}

func (s *integrityService) Scan(ctx context.Context, companyID *int) (*models.IntegrityReport, error) {
	found, err := s.collect(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return found.report(), nil
}

func (s *integrityService) Repair(ctx context.Context, companyID *int) (*models.IntegrityReport, error) {
	if !s.repairMu.TryLock() {
		return nil, apperrors.ErrRepairInProgress
	}
	defer s.repairMu.Unlock()

	unlock, err := s.acquireReplicaLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	found, err := s.collect(ctx, companyID)
	if err != nil {
		return nil, err
	}

	fixed := 0
	var details []string

	n, err := s.fillLocationLabels(ctx, found)
	if err != nil {
		return nil, err
	}
	fixed += n
	if n > 0 {
		details = append(details, fmt.Sprintf("filled placeholder labels on %d locations", n))
	}

	n, err = s.fillTemplateText(ctx, found)
	if err != nil {
		return nil, err
	}
	fixed += n
	if n > 0 {
		details = append(details, fmt.Sprintf("filled placeholder text on %d templates", n))
	}

	// Merge before orphan cleanup: children of a duplicate location get
	// re-pointed at the keeper and must not be mistaken for orphans.
	n, err = s.mergeDuplicateLocations(ctx, found)
	if err != nil {
		return nil, err
	}
	fixed += n
	if n > 0 {
		details = append(details, fmt.Sprintf("merged %d duplicate locations", n))
	}

	n, err = s.removeOrphans(ctx, companyID)
	if err != nil {
		return nil, err
	}
	fixed += n
	if n > 0 {
		details = append(details, fmt.Sprintf("removed %d orphaned rows", n))
	}

	n, err = s.coerceMalformedTasks(ctx, found)
	if err != nil {
		return nil, err
	}
	fixed += n
	if n > 0 {
		details = append(details, fmt.Sprintf("coerced %d malformed task payloads to empty lists", n))
	}

	// Re-scan so the report reflects what remains, not what was found.
	after, err := s.collect(ctx, companyID)
	if err != nil {
		return nil, err
	}

	report := after.report()
	report.FixedIssues = fixed
	report.Details = details

	s.logger.Info("Integrity repair complete",
		zap.Int("fixed_issues", fixed),
		zap.Int("remaining_issues", report.TotalIssues))

	return report, nil
}

// acquireReplicaLock takes the cross-replica repair lock when Redis is
// configured. The returned function releases it.
func (s *integrityService) acquireReplicaLock(ctx context.Context) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}

	ok, err := s.redis.SetNX(ctx, repairLockKey, time.Now().Format(time.RFC3339), s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire repair lock: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrRepairInProgress
	}

	return func() {
		if err := s.redis.Del(context.Background(), repairLockKey).Err(); err != nil {
			s.logger.Warn("Failed to release repair lock; it will expire", zap.Error(err))
		}
	}, nil
}

func (s *integrityService) collect(ctx context.Context, companyID *int) (*findings, error) {
	locations, err := s.locations.List(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load locations: %w", err)
	}
	templates, err := s.templates.List(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	auditRows, err := s.evaluations.AuditRows(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluation audit rows: %w", err)
	}
	userLabels, err := s.directory.UserLabelMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load user labels: %w", err)
	}

	// Location existence checks run against the full directory, not the
	// company-scoped slice, so a cross-company reference never reads as an
	// orphan.
	allLocations := locations
	if companyID != nil {
		allLocations, err = s.locations.List(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load location directory: %w", err)
		}
	}
	locationIDs := make(map[int]struct{}, len(allLocations))
	for _, loc := range allLocations {
		locationIDs[loc.ID] = struct{}{}
	}

	found := &findings{duplicateGroups: make(map[string][]*models.Location)}

	for _, loc := range locations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if loc.NameAr == "" && loc.NameEn == "" || loc.Icon == "" {
			found.locationsMissingLabels = append(found.locationsMissingLabels, loc)
		}
		key := duplicateKey(loc)
		if key != "" {
			found.duplicateGroups[key] = append(found.duplicateGroups[key], loc)
		}
	}
	for key, group := range found.duplicateGroups {
		if len(group) < 2 {
			delete(found.duplicateGroups, key)
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		found.duplicateGroups[key] = group
		found.duplicateData += len(group) - 1
	}

	for _, tpl := range templates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if tpl.Category == "" || (tpl.TaskAr == "" && tpl.TaskEn == "") {
			found.templatesMissingText = append(found.templatesMissingText, tpl)
		}
		if _, ok := locationIDs[tpl.LocationID]; !ok {
			found.orphanTemplates = append(found.orphanTemplates, tpl)
			found.missingRelations++
		}
	}

	for _, row := range auditRows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, parseErr := models.ParseTaskList(row.RawTasks); parseErr != nil {
			found.malformedEvaluations = append(found.malformedEvaluations, row)
		}
		_, locationOK := locationIDs[row.LocationID]
		_, evaluatorOK := userLabels[row.EvaluatorID]
		if !locationOK || !evaluatorOK {
			found.orphanEvaluations = append(found.orphanEvaluations, row)
			found.missingRelations++
		}
	}

	return found, nil
}

func (f *findings) report() *models.IntegrityReport {
	report := &models.IntegrityReport{
		LocationMismatches:   len(f.locationsMissingLabels),
		TemplateMismatches:   len(f.templatesMissingText),
		EvaluationMismatches: len(f.malformedEvaluations),
		MissingRelations:     f.missingRelations,
		DuplicateData:        f.duplicateData,
	}
	report.Finalize()
	return report
}

func (s *integrityService) fillLocationLabels(ctx context.Context, found *findings) (int, error) {
	fixed := 0
	for _, loc := range found.locationsMissingLabels {
		nameAr := loc.NameAr
		nameEn := loc.NameEn
		icon := loc.Icon
		if nameAr == "" && nameEn == "" {
			nameAr = fmt.Sprintf("موقع %d", loc.ID)
			nameEn = fmt.Sprintf("Location %d", loc.ID)
		}
		if icon == "" {
			icon = "building"
		}
		if err := s.locations.UpdateLabels(ctx, loc.ID, nameAr, nameEn, icon); err != nil {
			return fixed, fmt.Errorf("failed to fill labels for location %d: %w", loc.ID, err)
		}
		fixed++
	}
	return fixed, nil
}

func (s *integrityService) fillTemplateText(ctx context.Context, found *findings) (int, error) {
	fixed := 0
	for _, tpl := range found.templatesMissingText {
		category := tpl.Category
		taskAr := tpl.TaskAr
		taskEn := tpl.TaskEn
		if category == "" {
			category = "General"
		}
		if taskAr == "" && taskEn == "" {
			taskAr = fmt.Sprintf("مهمة %d", tpl.ID)
			taskEn = fmt.Sprintf("Task %d", tpl.ID)
		}
		if err := s.templates.UpdateText(ctx, tpl.ID, category, taskAr, taskEn); err != nil {
			return fixed, fmt.Errorf("failed to fill text for template %d: %w", tpl.ID, err)
		}
		fixed++
	}
	return fixed, nil
}

// mergeDuplicateLocations keeps the lowest-id location of each duplicate
// group, re-points child templates and evaluations at it, and only then
// deletes the duplicates, so no child ever dangles mid-merge.
func (s *integrityService) mergeDuplicateLocations(ctx context.Context, found *findings) (int, error) {
	merged := 0

	keys := make([]string, 0, len(found.duplicateGroups))
	for key := range found.duplicateGroups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := found.duplicateGroups[key]
		keeper := group[0]
		for _, dup := range group[1:] {
			templatesMoved, err := s.templates.RepointLocation(ctx, dup.ID, keeper.ID)
			if err != nil {
				return merged, fmt.Errorf("failed to re-point templates from location %d: %w", dup.ID, err)
			}
			evaluationsMoved, err := s.evaluations.RepointLocation(ctx, dup.ID, keeper.ID)
			if err != nil {
				return merged, fmt.Errorf("failed to re-point evaluations from location %d: %w", dup.ID, err)
			}
			if err := s.locations.Delete(ctx, dup.ID); err != nil {
				return merged, fmt.Errorf("failed to delete duplicate location %d: %w", dup.ID, err)
			}

			s.logger.Info("Merged duplicate location",
				zap.Int("kept_id", keeper.ID),
				zap.Int("removed_id", dup.ID),
				zap.Int64("templates_moved", templatesMoved),
				zap.Int64("evaluations_moved", evaluationsMoved))
			merged++
		}
	}

	return merged, nil
}

// removeOrphans deletes templates and evaluations whose references still do
// not resolve after merging. It re-collects rather than reusing the earlier
// findings because the merge step re-attaches children of duplicates.
func (s *integrityService) removeOrphans(ctx context.Context, companyID *int) (int, error) {
	found, err := s.collect(ctx, companyID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, tpl := range found.orphanTemplates {
		if err := s.templates.Delete(ctx, tpl.ID); err != nil {
			return removed, fmt.Errorf("failed to delete orphan template %d: %w", tpl.ID, err)
		}
		s.logger.Warn("Deleted orphan template",
			zap.Int("template_id", tpl.ID),
			zap.Int("dangling_location_id", tpl.LocationID))
		removed++
	}
	for _, row := range found.orphanEvaluations {
		if err := s.evaluations.Delete(ctx, row.ID); err != nil {
			return removed, fmt.Errorf("failed to delete orphan evaluation %d: %w", row.ID, err)
		}
		s.logger.Warn("Deleted orphan evaluation",
			zap.Int64("row_id", row.ID),
			zap.String("evaluation_id", row.EvaluationID),
			zap.Int("location_id", row.LocationID),
			zap.Int("evaluator_id", row.EvaluatorID))
		removed++
	}

	return removed, nil
}

func (s *integrityService) coerceMalformedTasks(ctx context.Context, found *findings) (int, error) {
	fixed := 0
	for _, row := range found.malformedEvaluations {
		if err := s.evaluations.ReplaceTasks(ctx, row.ID, []models.TaskResult{}); err != nil {
			// The orphan step may have deleted the row already.
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return fixed, fmt.Errorf("failed to coerce tasks on evaluation %d: %w", row.ID, err)
		}
		s.logger.Info("Coerced malformed tasks payload to empty list",
			zap.Int64("row_id", row.ID),
			zap.String("evaluation_id", row.EvaluationID))
		fixed++
	}
	return fixed, nil
}

// duplicateKey groups locations by (name, company). Locations with no name
// at all are excluded; they are label mismatches, not duplicates.
func duplicateKey(loc *models.Location) string {
	nameAr := strings.TrimSpace(strings.ToLower(loc.NameAr))
	nameEn := strings.TrimSpace(strings.ToLower(loc.NameEn))
	if nameAr == "" && nameEn == "" {
		return ""
	}
	return fmt.Sprintf("%d|%s|%s", loc.CompanyID, nameAr, nameEn)
}
