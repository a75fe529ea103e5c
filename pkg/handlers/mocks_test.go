package handlers

import (
	"context"

	"github.com/nadhif-app/nadhif-engine/pkg/models"
	"github.com/nadhif-app/nadhif-engine/pkg/services"
)

// passthroughScopes satisfies ScopeProvider without a database. Handler
// tests only care that the cleanup runs, not what the context carries.
type passthroughScopes struct {
	scopeErr error
	cleanups int
}

var _ ScopeProvider = (*passthroughScopes)(nil)

func (p *passthroughScopes) WithCompanyScope(ctx context.Context, _ int) (context.Context, func(), error) {
	if p.scopeErr != nil {
		return nil, nil, p.scopeErr
	}
	return ctx, func() { p.cleanups++ }, nil
}

func (p *passthroughScopes) WithAdminScope(ctx context.Context) (context.Context, func(), error) {
	if p.scopeErr != nil {
		return nil, nil, p.scopeErr
	}
	return ctx, func() { p.cleanups++ }, nil
}

type fakeBridge struct {
	getResult  *models.CanonicalEvaluation
	getErr     error
	saveResult *models.CanonicalEvaluation
	saveErr    error
	listResult []*models.CanonicalEvaluation
	listErr    error

	savedRequest *models.EvaluationWriteRequest
}

var _ services.EvaluationBridge = (*fakeBridge)(nil)

func (f *fakeBridge) GetEvaluation(_ context.Context, _ int, _ string, _, _ *int) (*models.CanonicalEvaluation, error) {
	return f.getResult, f.getErr
}

func (f *fakeBridge) SaveEvaluation(_ context.Context, req *models.EvaluationWriteRequest) (*models.CanonicalEvaluation, error) {
	f.savedRequest = req
	return f.saveResult, f.saveErr
}

func (f *fakeBridge) ListEvaluations(_ context.Context, _ int, _, _ string) ([]*models.CanonicalEvaluation, error) {
	return f.listResult, f.listErr
}

type fakeMigration struct {
	summary   *models.MigrationSummary
	err       error
	companyID *int
}

var _ services.MigrationService = (*fakeMigration)(nil)

func (f *fakeMigration) Run(_ context.Context, companyID *int) (*models.MigrationSummary, error) {
	f.companyID = companyID
	return f.summary, f.err
}

type fakeIntegrity struct {
	scanReport   *models.IntegrityReport
	scanErr      error
	repairReport *models.IntegrityReport
	repairErr    error
}

var _ services.IntegrityService = (*fakeIntegrity)(nil)

func (f *fakeIntegrity) Scan(_ context.Context, _ *int) (*models.IntegrityReport, error) {
	return f.scanReport, f.scanErr
}

func (f *fakeIntegrity) Repair(_ context.Context, _ *int) (*models.IntegrityReport, error) {
	return f.repairReport, f.repairErr
}
