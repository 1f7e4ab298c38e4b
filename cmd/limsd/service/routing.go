package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anatraz/limsbridge/common/db"
	"github.com/anatraz/limsbridge/common/logger"
	"github.com/anatraz/limsbridge/common/metrics"
	"github.com/anatraz/limsbridge/common/models"
	"github.com/anatraz/limsbridge/common/repository"
)

// RoutingCode is the typed per-unit outcome of a routing attempt
type RoutingCode string

const (
	OutcomeAdvanced       RoutingCode = "advanced"
	OutcomeSkipped        RoutingCode = "skipped"
	OutcomeNoNextStep     RoutingCode = "no_next_step"
	OutcomeStepNotFound   RoutingCode = "step_not_found"
	OutcomePendingBlocked RoutingCode = "pending_action_blocked"
)

// Routing errors surfaced to callers. Batch routing translates any of these
// into a full rollback: partial routing of a selection is never persisted.
var (
	ErrPendingAction = errors.New("pending action must be resolved before routing")
	ErrNoNextStep    = errors.New("no next step found")
	ErrStepNotFound  = errors.New("current step not found in resolved sequence")
)

// RouteResult reports one unit's new position after a successful batch
type RouteResult struct {
	UnitID      int64       `json:"unit_id"`
	CurrentStep string      `json:"current_step"`
	Outcome     RoutingCode `json:"outcome"`
}

// RouterStore is the persistence surface the router needs
type RouterStore interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error

	LockSamples(ctx context.Context, q db.Querier, ids []int64) ([]*models.Sample, error)
	GetSample(ctx context.Context, id int64) (*models.Sample, error)
	UpdateSample(ctx context.Context, q db.Querier, s *models.Sample) error
	SampleTestMaps(ctx context.Context, q db.Querier, sampleID int64) ([]models.SampleTestMap, error)

	LockReportOptions(ctx context.Context, q db.Querier, ids []int64) ([]*models.ReportOption, error)
	GetReportOption(ctx context.Context, id int64) (*models.ReportOption, error)
	UpdateReportOption(ctx context.Context, q db.Querier, ro *models.ReportOption) error

	StepsForWorkflow(ctx context.Context, workflowID int64, wt models.WorkflowType) ([]models.ResolvedStep, error)
	StepsForTest(ctx context.Context, key repository.TestStepKey, wt models.WorkflowType) ([]models.ResolvedStep, error)
	FirstActionForStep(ctx context.Context, step models.ResolvedStep, byWorkflow bool) (*models.StepAction, error)
	DepartmentID(ctx context.Context, name string) (*int64, error)
}

// Router drives samples and report options through their workflow step
// sequences. One call covers one batch; all mutations in a batch share a
// single transaction and commit together or not at all.
type Router struct {
	store   RouterStore
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRouter creates a workflow step router. Metrics may be nil.
func NewRouter(store RouterStore, log *logger.Logger, m *metrics.Metrics) *Router {
	return &Router{
		store:   store,
		log:     log.WithComponent("router"),
		metrics: m,
		now:     time.Now,
	}
}

// RouteWetLab advances a batch of samples one workflow step each.
// accessionFlag marks routing performed as part of initial accession
// generation, which additionally seeds default block/slide counts for units
// landing on Grossing.
func (r *Router) RouteWetLab(ctx context.Context, actor models.Actor, sampleIDs []int64, accessionFlag bool) ([]RouteResult, error) {
	var results []RouteResult

	err := r.store.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		samples, err := r.store.LockSamples(ctx, tx, sampleIDs)
		if err != nil {
			return err
		}

		for _, s := range samples {
			if s.Pending() != "" {
				return fmt.Errorf("sample %d: %w", s.SampleID, ErrPendingAction)
			}
		}

		for _, s := range samples {
			outcome, err := r.routeSample(ctx, tx, actor, s, accessionFlag)
			if err != nil {
				return fmt.Errorf("sample %d: %w", s.SampleID, err)
			}
			results = append(results, RouteResult{
				UnitID:      s.SampleID,
				CurrentStep: s.CurrentStep,
				Outcome:     outcome,
			})
		}

		return nil
	})

	r.observeBatch(models.WetLab, results, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// RouteDryLab advances a batch of report options one workflow step each
func (r *Router) RouteDryLab(ctx context.Context, actor models.Actor, reportOptionIDs []int64) ([]RouteResult, error) {
	var results []RouteResult

	err := r.store.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		options, err := r.store.LockReportOptions(ctx, tx, reportOptionIDs)
		if err != nil {
			return err
		}

		for _, ro := range options {
			if ro.Pending() != "" {
				return fmt.Errorf("report option %d: %w", ro.ReportOptionID, ErrPendingAction)
			}
		}

		for _, ro := range options {
			outcome, err := r.routeReportOption(ctx, tx, actor, ro)
			if err != nil {
				return fmt.Errorf("report option %d: %w", ro.ReportOptionID, err)
			}
			results = append(results, RouteResult{
				UnitID:      ro.ReportOptionID,
				CurrentStep: ro.CurrentStep,
				Outcome:     outcome,
			})
		}

		return nil
	})

	r.observeBatch(models.DryLab, results, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Router) routeSample(ctx context.Context, tx pgx.Tx, actor models.Actor, s *models.Sample, accessionFlag bool) (RoutingCode, error) {
	steps, byWorkflow, err := r.resolveSampleSteps(ctx, tx, s)
	if err != nil {
		return "", err
	}
	if len(steps) == 0 {
		// No workflow defined for this lab type: not an error, leave as-is.
		r.log.Debug("no step sequence for sample, skipping", "sample_id", s.SampleID)
		return OutcomeSkipped, nil
	}

	transition, current, err := r.computeAndDecorate(ctx, actor, steps, s, byWorkflow)
	if err != nil {
		return "", err
	}

	s.ApplyTransition(transition)

	if accessionFlag {
		s.AccessionGenerated = true
		s.SampleStatus = models.SampleStatusInProgress
		if current.StepID == models.StepGrossing {
			if err := r.seedGrossingDefaults(ctx, tx, s); err != nil {
				return "", err
			}
		}
	}

	// MoveToStorage bypasses normal sequencing: the unit parks in Storage
	// with no further step.
	if transition.PendingAction == models.ActionMoveToStorage {
		s.PreviousStep = current.StepID
		s.CurrentStep = models.StepStorage
		s.NextStep = ""
	}

	if err := r.store.UpdateSample(ctx, tx, s); err != nil {
		return "", err
	}

	return OutcomeAdvanced, nil
}

func (r *Router) routeReportOption(ctx context.Context, tx pgx.Tx, actor models.Actor, ro *models.ReportOption) (RoutingCode, error) {
	steps, byWorkflow, err := r.resolveReportOptionSteps(ctx, tx, ro)
	if err != nil {
		return "", err
	}
	if len(steps) == 0 {
		r.log.Debug("no step sequence for report option, skipping", "report_option_id", ro.ReportOptionID)
		return OutcomeSkipped, nil
	}

	transition, current, err := r.computeAndDecorate(ctx, actor, steps, ro, byWorkflow)
	if err != nil {
		return "", err
	}

	ro.ApplyTransition(transition)

	if transition.PendingAction == models.ActionMoveToStorage {
		ro.PreviousStep = current.StepID
		ro.CurrentStep = models.StepStorage
		ro.NextStep = ""
	}

	if err := r.store.UpdateReportOption(ctx, tx, ro); err != nil {
		return "", err
	}

	return OutcomeAdvanced, nil
}

// computeAndDecorate runs the pure transition computation and resolves the
// pending action and custodial department for the landing step.
func (r *Router) computeAndDecorate(ctx context.Context, actor models.Actor, steps []models.ResolvedStep, unit models.RoutableUnit, byWorkflow bool) (models.Transition, models.ResolvedStep, error) {
	prev, current, next, code := ComputeTransition(steps, unit.Step())
	switch code {
	case OutcomeAdvanced:
	case OutcomeNoNextStep:
		return models.Transition{}, models.ResolvedStep{}, ErrNoNextStep
	case OutcomeStepNotFound:
		return models.Transition{}, models.ResolvedStep{}, ErrStepNotFound
	default:
		return models.Transition{}, models.ResolvedStep{}, fmt.Errorf("unexpected routing outcome %q", code)
	}

	action, err := r.store.FirstActionForStep(ctx, current, byWorkflow)
	if err != nil {
		return models.Transition{}, models.ResolvedStep{}, err
	}

	pending := ""
	if action != nil {
		pending = action.Action
	}

	deptName := actor.SitePrefix() + "-" + current.Department
	deptID, err := r.store.DepartmentID(ctx, deptName)
	if err != nil {
		return models.Transition{}, models.ResolvedStep{}, err
	}

	nextStep := ""
	if next != nil {
		nextStep = next.StepID
	}

	return models.Transition{
		PreviousStep:          prev,
		CurrentStep:           current.StepID,
		NextStep:              nextStep,
		PendingAction:         pending,
		CustodialDepartmentID: deptID,
		CustodialUserID:       actor.UserID,
		AvailAt:               r.now(),
	}, current, nil
}

func (r *Router) resolveSampleSteps(ctx context.Context, q db.Querier, s *models.Sample) ([]models.ResolvedStep, bool, error) {
	if wf := s.EffectiveWorkflow(); wf != nil {
		steps, err := r.store.StepsForWorkflow(ctx, *wf, models.WetLab)
		return steps, true, err
	}

	maps, err := r.store.SampleTestMaps(ctx, q, s.SampleID)
	if err != nil {
		return nil, false, err
	}
	if len(maps) == 0 {
		return nil, false, nil
	}

	m := maps[0]
	steps, err := r.store.StepsForTest(ctx, repository.TestStepKey{
		SampleTypeID:    s.SampleTypeID,
		ContainerTypeID: s.ContainerTypeID,
		TestID:          m.TestID,
		WorkflowID:      m.WorkflowID,
	}, models.WetLab)
	return steps, false, err
}

func (r *Router) resolveReportOptionSteps(ctx context.Context, q db.Querier, ro *models.ReportOption) ([]models.ResolvedStep, bool, error) {
	if wf := ro.EffectiveWorkflow(); wf != nil {
		steps, err := r.store.StepsForWorkflow(ctx, *wf, models.DryLab)
		return steps, true, err
	}

	maps, err := r.store.SampleTestMaps(ctx, q, ro.RootSampleID)
	if err != nil {
		return nil, false, err
	}

	for _, m := range maps {
		if m.TestID != ro.TestID {
			continue
		}
		steps, err := r.store.StepsForTest(ctx, repository.TestStepKey{
			SampleTypeID:    ro.SampleTypeID,
			ContainerTypeID: ro.ContainerTypeID,
			TestID:          m.TestID,
			WorkflowID:      m.WorkflowID,
		}, models.DryLab)
		return steps, false, err
	}

	return nil, false, nil
}

// seedGrossingDefaults populates default block and slide counts for samples
// landing on Grossing during accession generation. Liquid containers split
// slides by smear process; solid containers get one slide per active test.
func (r *Router) seedGrossingDefaults(ctx context.Context, q db.Querier, s *models.Sample) error {
	maps, err := r.store.SampleTestMaps(ctx, q, s.SampleID)
	if err != nil {
		return err
	}

	active := maps[:0:0]
	for _, m := range maps {
		if m.TestStatus != models.TestStatusCancelled {
			active = append(active, m)
		}
	}

	s.NumOfBlocks = 1
	if s.ContainerIsLiquid {
		thinPrep := 0
		for _, m := range active {
			if m.SmearProcess == models.SmearProcessThinPrep {
				thinPrep++
			}
		}
		s.NumOfThinPrepSlides = thinPrep
		s.NumOfManualSmearSlides = len(active) - thinPrep
	} else {
		s.NumOfSlides = len(active)
	}

	return nil
}

// ValidateNextStepSample reports whether a routing call on the sample could
// advance, without mutating anything. Routing re-validates inside its own
// transaction, so a stale answer here can surface a routing error but never
// a wrong transition.
func (r *Router) ValidateNextStepSample(ctx context.Context, sampleID int64) (bool, error) {
	s, err := r.store.GetSample(ctx, sampleID)
	if err != nil {
		return false, err
	}

	steps, _, err := r.resolveSampleSteps(ctx, nil, s)
	if err != nil {
		return false, err
	}

	return nextStepExists(steps, s.CurrentStep), nil
}

// ValidateNextStepReportOption is the report option variant of
// ValidateNextStepSample.
func (r *Router) ValidateNextStepReportOption(ctx context.Context, reportOptionID int64) (bool, error) {
	ro, err := r.store.GetReportOption(ctx, reportOptionID)
	if err != nil {
		return false, err
	}

	steps, _, err := r.resolveReportOptionSteps(ctx, nil, ro)
	if err != nil {
		return false, err
	}

	return nextStepExists(steps, ro.CurrentStep), nil
}

func (r *Router) observeBatch(wt models.WorkflowType, results []RouteResult, err error) {
	if r.metrics == nil {
		return
	}

	outcome := "ok"
	switch {
	case errors.Is(err, ErrPendingAction):
		outcome = string(OutcomePendingBlocked)
	case err != nil:
		outcome = "failed"
	}
	r.metrics.RoutingBatches.WithLabelValues(string(wt), outcome).Inc()

	if err == nil {
		for _, res := range results {
			if res.Outcome == OutcomeAdvanced {
				r.metrics.UnitsRouted.WithLabelValues(string(wt)).Inc()
			}
		}
	}
}

// ComputeTransition determines the transition for a unit at currentStep over
// a resolved step sequence. The sequence is sorted by step number ascending
// before evaluation. An empty currentStep means first-time routing onto the
// sequence head. Deterministic; no side effects.
func ComputeTransition(steps []models.ResolvedStep, currentStep string) (prev string, current models.ResolvedStep, next *models.ResolvedStep, code RoutingCode) {
	sorted := make([]models.ResolvedStep, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StepNo < sorted[j].StepNo
	})

	if currentStep == "" {
		current = sorted[0]
		if len(sorted) > 1 {
			next = &sorted[1]
		}
		return "", current, next, OutcomeAdvanced
	}

	idx := -1
	for i, step := range sorted {
		if step.StepID == currentStep {
			idx = i
			break
		}
	}

	if idx < 0 {
		return "", models.ResolvedStep{}, nil, OutcomeStepNotFound
	}
	if idx == len(sorted)-1 {
		return "", models.ResolvedStep{}, nil, OutcomeNoNextStep
	}

	prev = currentStep
	current = sorted[idx+1]
	if idx+2 < len(sorted) {
		next = &sorted[idx+2]
	}
	return prev, current, next, OutcomeAdvanced
}

func nextStepExists(steps []models.ResolvedStep, currentStep string) bool {
	if len(steps) == 0 {
		return false
	}

	_, _, _, code := ComputeTransition(steps, currentStep)
	return code == OutcomeAdvanced
}
