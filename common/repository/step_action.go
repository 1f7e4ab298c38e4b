package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/anatraz/limsbridge/common/db"
	"github.com/anatraz/limsbridge/common/models"
)

// StepActionRepository resolves the configured action for a routed step
type StepActionRepository struct {
	db *db.DB
}

// NewStepActionRepository creates a new step action repository
func NewStepActionRepository(database *db.DB) *StepActionRepository {
	return &StepActionRepository{db: database}
}

// FirstForStep returns the first configured action for a resolved step by
// sequence order, keyed by workflow-step identity when the unit carries an
// effective workflow and by test-workflow-step identity otherwise. Returns
// nil when no action is configured.
func (r *StepActionRepository) FirstForStep(ctx context.Context, step models.ResolvedStep, byWorkflow bool) (*models.StepAction, error) {
	var (
		query string
		arg   int64
	)

	if byWorkflow {
		query = `
			SELECT step_action_id, workflow_step_id, test_workflow_step_id, action, sequence
			FROM test_workflow_step_action_map
			WHERE workflow_step_id = $1
			ORDER BY sequence ASC
			LIMIT 1
		`
		arg = step.WorkflowStepID
	} else {
		if step.TestWorkflowStepID == nil {
			return nil, nil
		}
		query = `
			SELECT step_action_id, workflow_step_id, test_workflow_step_id, action, sequence
			FROM test_workflow_step_action_map
			WHERE test_workflow_step_id = $1
			ORDER BY sequence ASC
			LIMIT 1
		`
		arg = *step.TestWorkflowStepID
	}

	a := &models.StepAction{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&a.StepActionID, &a.WorkflowStepID, &a.TestWorkflowStepID, &a.Action, &a.Sequence,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve step action: %w", err)
	}

	return a, nil
}
