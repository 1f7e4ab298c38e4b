package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anatraz/limsbridge/common/db"
	"github.com/anatraz/limsbridge/common/hl7"
	"github.com/anatraz/limsbridge/common/models"
	"github.com/anatraz/limsbridge/common/redis"
)

// Store aggregates the per-entity repositories behind the surface the
// routing and HL7 services consume.
type Store struct {
	db *db.DB

	Samples       *SampleRepository
	ReportOptions *ReportOptionRepository
	Steps         *WorkflowStepRepository
	Actions       *StepActionRepository
	Departments   *DepartmentRepository
	Accessions    *AccessionRepository
	Staining      *StainingRepository
}

// NewStore creates the repository aggregate. The Redis client may be nil.
func NewStore(database *db.DB, cache *redis.Client, cacheTTL time.Duration) *Store {
	return &Store{
		db:            database,
		Samples:       NewSampleRepository(database),
		ReportOptions: NewReportOptionRepository(database),
		Steps:         NewWorkflowStepRepository(database, cache, cacheTTL),
		Actions:       NewStepActionRepository(database),
		Departments:   NewDepartmentRepository(database, cache, cacheTTL),
		Accessions:    NewAccessionRepository(database),
		Staining:      NewStainingRepository(database),
	}
}

// WithinTx runs fn inside a database transaction
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return s.db.WithinTx(ctx, fn)
}

func (s *Store) querier(q db.Querier) db.Querier {
	if q == nil {
		return s.db.Pool
	}
	return q
}

// LockSamples loads and row-locks a sample batch
func (s *Store) LockSamples(ctx context.Context, q db.Querier, ids []int64) ([]*models.Sample, error) {
	return s.Samples.LockForRouting(ctx, s.querier(q), ids)
}

// GetSample loads a sample without locking
func (s *Store) GetSample(ctx context.Context, id int64) (*models.Sample, error) {
	return s.Samples.GetByID(ctx, id)
}

// UpdateSample persists routing bookkeeping on a sample
func (s *Store) UpdateSample(ctx context.Context, q db.Querier, sample *models.Sample) error {
	return s.Samples.Update(ctx, s.querier(q), sample)
}

// SampleTestMaps lists the test associations of a sample
func (s *Store) SampleTestMaps(ctx context.Context, q db.Querier, sampleID int64) ([]models.SampleTestMap, error) {
	return s.Samples.TestMaps(ctx, s.querier(q), sampleID)
}

// FindSamplesBySlide resolves samples by decomposed slide identity
func (s *Store) FindSamplesBySlide(ctx context.Context, sp hl7.SlideParts) ([]*models.Sample, error) {
	return s.Samples.FindBySlide(ctx, sp)
}

// LockReportOptions loads and row-locks a report option batch
func (s *Store) LockReportOptions(ctx context.Context, q db.Querier, ids []int64) ([]*models.ReportOption, error) {
	return s.ReportOptions.LockForRouting(ctx, s.querier(q), ids)
}

// GetReportOption loads a report option without locking
func (s *Store) GetReportOption(ctx context.Context, id int64) (*models.ReportOption, error) {
	return s.ReportOptions.GetByID(ctx, id)
}

// UpdateReportOption persists routing bookkeeping on a report option
func (s *Store) UpdateReportOption(ctx context.Context, q db.Querier, ro *models.ReportOption) error {
	return s.ReportOptions.Update(ctx, s.querier(q), ro)
}

// StepsForWorkflow resolves the ordered step sequence of a workflow
func (s *Store) StepsForWorkflow(ctx context.Context, workflowID int64, wt models.WorkflowType) ([]models.ResolvedStep, error) {
	return s.Steps.StepsForWorkflow(ctx, workflowID, wt)
}

// StepsForTest resolves the test-scoped fallback step sequence
func (s *Store) StepsForTest(ctx context.Context, key TestStepKey, wt models.WorkflowType) ([]models.ResolvedStep, error) {
	return s.Steps.StepsForTest(ctx, key, wt)
}

// FirstActionForStep resolves the configured action for a routed step
func (s *Store) FirstActionForStep(ctx context.Context, step models.ResolvedStep, byWorkflow bool) (*models.StepAction, error) {
	return s.Actions.FirstForStep(ctx, step, byWorkflow)
}

// DepartmentID resolves a custodial department id by name
func (s *Store) DepartmentID(ctx context.Context, name string) (*int64, error) {
	return s.Departments.IDByName(ctx, name)
}

// GetAccession loads accession demographics for outbound orders
func (s *Store) GetAccession(ctx context.Context, accessionID string) (*models.Accession, error) {
	return s.Accessions.GetByID(ctx, accessionID)
}

// UpdateStainingStatus sets staining status on records matched by slide
func (s *Store) UpdateStainingStatus(ctx context.Context, sp hl7.SlideParts, status string) (int64, error) {
	return s.Staining.UpdateStatusBySlide(ctx, sp, status)
}
