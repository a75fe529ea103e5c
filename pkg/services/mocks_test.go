package services

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/nadhif-app/nadhif-engine/pkg/apperrors"
	"github.com/nadhif-app/nadhif-engine/pkg/models"
	"github.com/nadhif-app/nadhif-engine/pkg/repositories"
)

// In-memory fakes for the repository interfaces. They are stateful on
// purpose: idempotency tests need a second run to observe the first run's
// writes.

type storedEvaluation struct {
	eval     models.CanonicalEvaluation
	rawTasks []byte
}

type fakeEvaluationRepo struct {
	rows   []*storedEvaluation
	nextID int64

	// collideNext forces the next N inserts to report an id collision.
	collideNext int
	insertErr   error
	findErr     error
	seenErr     error
	auditErr    error
}

var _ repositories.EvaluationRepository = (*fakeEvaluationRepo)(nil)

// seed stores a record with an arbitrary raw tasks payload, bypassing
// Insert's marshalling. Used to stage malformed stored data.
func (f *fakeEvaluationRepo) seed(eval models.CanonicalEvaluation, rawTasks []byte) {
	f.nextID++
	eval.ID = f.nextID
	f.rows = append(f.rows, &storedEvaluation{eval: eval, rawTasks: rawTasks})
}

func (f *fakeEvaluationRepo) Insert(_ context.Context, eval *models.CanonicalEvaluation) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if f.collideNext > 0 {
		f.collideNext--
		return apperrors.ErrIDCollision
	}
	for _, row := range f.rows {
		if row.eval.EvaluationID == eval.EvaluationID {
			return apperrors.ErrIDCollision
		}
	}

	f.nextID++
	eval.ID = f.nextID
	raw, _ := json.Marshal(eval.Tasks)
	f.rows = append(f.rows, &storedEvaluation{eval: *eval, rawTasks: raw})
	return nil
}

func (f *fakeEvaluationRepo) FindLatest(_ context.Context, filter repositories.EvaluationFilter) (*models.CanonicalEvaluation, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}

	var best *storedEvaluation
	for _, row := range f.rows {
		if row.eval.LocationID != filter.LocationID || row.eval.EvaluationDate != filter.Date {
			continue
		}
		if filter.EvaluatorID != nil && row.eval.EvaluatorID != *filter.EvaluatorID {
			continue
		}
		if filter.CompanyID != nil && row.eval.CompanyID != *filter.CompanyID {
			continue
		}
		if best == nil ||
			row.eval.EvaluationTimestamp > best.eval.EvaluationTimestamp ||
			(row.eval.EvaluationTimestamp == best.eval.EvaluationTimestamp && row.eval.ID > best.eval.ID) {
			best = row
		}
	}
	if best == nil {
		return nil, apperrors.ErrNotFound
	}

	found := best.eval
	return &found, nil
}

func (f *fakeEvaluationRepo) FindRange(_ context.Context, locationID int, from, to string) ([]*models.CanonicalEvaluation, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}

	var evals []*models.CanonicalEvaluation
	for _, row := range f.rows {
		if row.eval.LocationID != locationID {
			continue
		}
		if row.eval.EvaluationDate < from || row.eval.EvaluationDate > to {
			continue
		}
		found := row.eval
		evals = append(evals, &found)
	}
	sort.Slice(evals, func(i, j int) bool {
		if evals[i].EvaluationTimestamp != evals[j].EvaluationTimestamp {
			return evals[i].EvaluationTimestamp < evals[j].EvaluationTimestamp
		}
		return evals[i].ID < evals[j].ID
	})
	return evals, nil
}

func (f *fakeEvaluationRepo) SeenIDs(_ context.Context, companyID *int) (map[repositories.LegacyKey]struct{}, map[string]struct{}, error) {
	if f.seenErr != nil {
		return nil, nil, f.seenErr
	}

	legacyIDs := make(map[repositories.LegacyKey]struct{})
	evaluationIDs := make(map[string]struct{})
	for _, row := range f.rows {
		if companyID != nil && row.eval.CompanyID != *companyID {
			continue
		}
		if row.eval.LegacyID != nil {
			legacyIDs[repositories.LegacyKey{Source: row.eval.Source, ID: *row.eval.LegacyID}] = struct{}{}
		}
		evaluationIDs[row.eval.EvaluationID] = struct{}{}
	}
	return legacyIDs, evaluationIDs, nil
}

func (f *fakeEvaluationRepo) AuditRows(_ context.Context, companyID *int) ([]models.EvaluationAuditRow, error) {
	if f.auditErr != nil {
		return nil, f.auditErr
	}

	var audit []models.EvaluationAuditRow
	for _, row := range f.rows {
		if companyID != nil && row.eval.CompanyID != *companyID {
			continue
		}
		audit = append(audit, models.EvaluationAuditRow{
			ID:           row.eval.ID,
			EvaluationID: row.eval.EvaluationID,
			LocationID:   row.eval.LocationID,
			EvaluatorID:  row.eval.EvaluatorID,
			CompanyID:    row.eval.CompanyID,
			RawTasks:     row.rawTasks,
		})
	}
	return audit, nil
}

func (f *fakeEvaluationRepo) ReplaceTasks(_ context.Context, id int64, tasks []models.TaskResult) error {
	for _, row := range f.rows {
		if row.eval.ID != id {
			continue
		}
		row.eval.Tasks = tasks
		row.eval.ApplyStats()
		row.rawTasks, _ = json.Marshal(tasks)
		return nil
	}
	return apperrors.ErrNotFound
}

func (f *fakeEvaluationRepo) RepointLocation(_ context.Context, fromLocationID, toLocationID int) (int64, error) {
	var moved int64
	for _, row := range f.rows {
		if row.eval.LocationID == fromLocationID {
			row.eval.LocationID = toLocationID
			moved++
		}
	}
	return moved, nil
}

func (f *fakeEvaluationRepo) Delete(_ context.Context, id int64) error {
	for i, row := range f.rows {
		if row.eval.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type fakeChecklistRepo struct {
	rows    []*models.DailyChecklist
	listErr error
	findErr error
}

var _ repositories.DailyChecklistRepository = (*fakeChecklistRepo)(nil)

func (f *fakeChecklistRepo) List(_ context.Context, companyID *int) ([]*models.DailyChecklist, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []*models.DailyChecklist
	for _, rec := range f.rows {
		if companyID != nil && rec.CompanyID != *companyID {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeChecklistRepo) FindLatest(_ context.Context, filter repositories.EvaluationFilter) (*models.DailyChecklist, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}

	var best *models.DailyChecklist
	for _, rec := range f.rows {
		if rec.LocationID != filter.LocationID || rec.ChecklistDate != filter.Date {
			continue
		}
		if filter.EvaluatorID != nil && rec.UserID != *filter.EvaluatorID {
			continue
		}
		if filter.CompanyID != nil && rec.CompanyID != *filter.CompanyID {
			continue
		}
		if best == nil || ts(rec) > ts(best) || (ts(rec) == ts(best) && rec.ID > best.ID) {
			best = rec
		}
	}
	if best == nil {
		return nil, apperrors.ErrNotFound
	}
	return best, nil
}

func ts(rec *models.DailyChecklist) int64 {
	if rec.Timestamp == nil {
		return -1
	}
	return *rec.Timestamp
}

type fakeUnifiedRepo struct {
	rows    []*models.UnifiedEvaluation
	listErr error
}

var _ repositories.UnifiedEvaluationRepository = (*fakeUnifiedRepo)(nil)

func (f *fakeUnifiedRepo) List(_ context.Context, companyID *int) ([]*models.UnifiedEvaluation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []*models.UnifiedEvaluation
	for _, rec := range f.rows {
		if companyID != nil && rec.CompanyID != *companyID {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeLocationRepo struct {
	locations []*models.Location
	listErr   error

	labelMapCalls int
}

var _ repositories.LocationRepository = (*fakeLocationRepo)(nil)

func (f *fakeLocationRepo) List(_ context.Context, companyID *int) ([]*models.Location, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []*models.Location
	for _, loc := range f.locations {
		if companyID != nil && loc.CompanyID != *companyID {
			continue
		}
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLocationRepo) LabelMap(_ context.Context) (map[int]models.LocationLabels, error) {
	f.labelMapCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	labels := make(map[int]models.LocationLabels, len(f.locations))
	for _, loc := range f.locations {
		labels[loc.ID] = models.LocationLabels{
			NameAr:    loc.NameAr,
			NameEn:    loc.NameEn,
			Icon:      loc.Icon,
			CompanyID: loc.CompanyID,
		}
	}
	return labels, nil
}

func (f *fakeLocationRepo) FindLabels(_ context.Context, id int) (*models.LocationLabels, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	for _, loc := range f.locations {
		if loc.ID == id {
			return &models.LocationLabels{
				NameAr:    loc.NameAr,
				NameEn:    loc.NameEn,
				Icon:      loc.Icon,
				CompanyID: loc.CompanyID,
			}, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeLocationRepo) UpdateLabels(_ context.Context, id int, nameAr, nameEn, icon string) error {
	for _, loc := range f.locations {
		if loc.ID == id {
			loc.NameAr = nameAr
			loc.NameEn = nameEn
			loc.Icon = icon
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (f *fakeLocationRepo) Delete(_ context.Context, id int) error {
	for i, loc := range f.locations {
		if loc.ID == id {
			f.locations = append(f.locations[:i], f.locations[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type fakeTemplateRepo struct {
	templates []*models.ChecklistTemplate
	listErr   error
}

var _ repositories.TemplateRepository = (*fakeTemplateRepo)(nil)

func (f *fakeTemplateRepo) List(_ context.Context, companyID *int) ([]*models.ChecklistTemplate, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	// Company scoping needs the location directory; the fake returns
	// everything, which matches how the integrity tests use it.
	out := make([]*models.ChecklistTemplate, len(f.templates))
	copy(out, f.templates)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTemplateRepo) UpdateText(_ context.Context, id int, category, taskAr, taskEn string) error {
	for _, tpl := range f.templates {
		if tpl.ID == id {
			tpl.Category = category
			tpl.TaskAr = taskAr
			tpl.TaskEn = taskEn
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (f *fakeTemplateRepo) RepointLocation(_ context.Context, fromLocationID, toLocationID int) (int64, error) {
	var moved int64
	for _, tpl := range f.templates {
		if tpl.LocationID == fromLocationID {
			tpl.LocationID = toLocationID
			moved++
		}
	}
	return moved, nil
}

func (f *fakeTemplateRepo) Delete(_ context.Context, id int) error {
	for i, tpl := range f.templates {
		if tpl.ID == id {
			f.templates = append(f.templates[:i], f.templates[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type fakeDirectoryRepo struct {
	users        map[int]models.UserLabels
	companies    map[int]models.CompanyLabels
	usersErr     error
	companiesErr error

	mapCalls int
}

var _ repositories.DirectoryRepository = (*fakeDirectoryRepo)(nil)

func (f *fakeDirectoryRepo) UserLabelMap(_ context.Context) (map[int]models.UserLabels, error) {
	f.mapCalls++
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return f.users, nil
}

func (f *fakeDirectoryRepo) CompanyLabelMap(_ context.Context) (map[int]models.CompanyLabels, error) {
	f.mapCalls++
	if f.companiesErr != nil {
		return nil, f.companiesErr
	}
	return f.companies, nil
}

func (f *fakeDirectoryRepo) FindUser(_ context.Context, id int) (*models.UserLabels, error) {
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	if user, ok := f.users[id]; ok {
		return &user, nil
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeDirectoryRepo) FindCompany(_ context.Context, id int) (*models.CompanyLabels, error) {
	if f.companiesErr != nil {
		return nil, f.companiesErr
	}
	if company, ok := f.companies[id]; ok {
		return &company, nil
	}
	return nil, apperrors.ErrNotFound
}
