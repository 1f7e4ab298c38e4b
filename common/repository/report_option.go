package repository

import (
	"context"
	"fmt"

	"github.com/anatraz/limsbridge/common/db"
	"github.com/anatraz/limsbridge/common/models"
)

// ReportOptionRepository handles database operations for report options
type ReportOptionRepository struct {
	db *db.DB
}

// NewReportOptionRepository creates a new report option repository
func NewReportOptionRepository(database *db.DB) *ReportOptionRepository {
	return &ReportOptionRepository{db: database}
}

const reportOptionColumns = `
	ro.report_option_id, ro.root_sample_id, ro.test_id,
	ro.workflow_id, ro.workflow_id AS effective_workflow_id,
	s.sample_type_id, s.container_type_id,
	COALESCE(ro.current_step, ''), COALESCE(ro.previous_step, ''),
	COALESCE(ro.next_step, ''), COALESCE(ro.pending_action, ''),
	ro.custodial_department_id, ro.custodial_user_id, ro.avail_at`

const reportOptionJoins = `
	FROM report_option ro
	JOIN sample s ON s.sample_id = ro.root_sample_id`

func scanReportOption(row interface{ Scan(dest ...any) error }) (*models.ReportOption, error) {
	ro := &models.ReportOption{}
	err := row.Scan(
		&ro.ReportOptionID, &ro.RootSampleID, &ro.TestID,
		&ro.WorkflowID, &ro.EffectiveWorkflowID,
		&ro.SampleTypeID, &ro.ContainerTypeID,
		&ro.CurrentStep, &ro.PreviousStep,
		&ro.NextStep, &ro.PendingAction,
		&ro.CustodialDepartmentID, &ro.CustodialUserID, &ro.AvailAt,
	)
	if err != nil {
		return nil, err
	}
	return ro, nil
}

// LockForRouting loads the batch inside a routing transaction with row locks
// on the report option rows.
func (r *ReportOptionRepository) LockForRouting(ctx context.Context, q db.Querier, ids []int64) ([]*models.ReportOption, error) {
	query := `SELECT` + reportOptionColumns + reportOptionJoins + `
		WHERE ro.report_option_id = ANY($1)
		ORDER BY ro.report_option_id
		FOR UPDATE OF ro`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock report options: %w", err)
	}
	defer rows.Close()

	var options []*models.ReportOption
	for rows.Next() {
		ro, err := scanReportOption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report option: %w", err)
		}
		options = append(options, ro)
	}

	return options, rows.Err()
}

// GetByID loads a single report option without locking
func (r *ReportOptionRepository) GetByID(ctx context.Context, id int64) (*models.ReportOption, error) {
	query := `SELECT` + reportOptionColumns + reportOptionJoins + `
		WHERE ro.report_option_id = $1`

	ro, err := scanReportOption(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get report option %d: %w", id, err)
	}
	return ro, nil
}

// Update persists the routing bookkeeping of a report option
func (r *ReportOptionRepository) Update(ctx context.Context, q db.Querier, ro *models.ReportOption) error {
	query := `
		UPDATE report_option
		SET current_step = NULLIF($2, ''),
		    previous_step = NULLIF($3, ''),
		    next_step = NULLIF($4, ''),
		    pending_action = NULLIF($5, ''),
		    custodial_department_id = $6,
		    custodial_user_id = $7,
		    avail_at = $8
		WHERE report_option_id = $1
	`

	_, err := q.Exec(ctx, query,
		ro.ReportOptionID,
		ro.CurrentStep, ro.PreviousStep, ro.NextStep, ro.PendingAction,
		ro.CustodialDepartmentID, ro.CustodialUserID, ro.AvailAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update report option %d: %w", ro.ReportOptionID, err)
	}

	return nil
}
