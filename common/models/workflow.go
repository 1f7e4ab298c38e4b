package models

// WorkflowType separates the per-sample and per-report-option step tracks
type WorkflowType string

const (
	WetLab WorkflowType = "WetLab"
	DryLab WorkflowType = "DryLab"
)

// Well-known step and action names
const (
	StepGrossing        = "Grossing"
	StepStorage         = "Storage"
	ActionMoveToStorage = "MoveToStorage"
)

// WorkflowStep is an ordered step belonging to a workflow. Steps are strictly
// ordered by StepNo within a workflow and department.
type WorkflowStep struct {
	WorkflowStepID   int64        `db:"workflow_step_id" json:"workflow_step_id"`
	WorkflowID       int64        `db:"workflow_id" json:"workflow_id"`
	StepID           string       `db:"step_id" json:"step_id"`
	StepNo           int          `db:"step_no" json:"step_no"`
	Department       string       `db:"department" json:"department"`
	WorkflowType     WorkflowType `db:"workflow_type" json:"workflow_type"`
	BackwardMovement bool         `db:"backward_movement" json:"backward_movement"`
}

// TestWorkflowStep scopes a workflow step to a test, sample type and
// container type. Used as the fallback when a unit carries no effective
// workflow of its own.
type TestWorkflowStep struct {
	TestWorkflowStepID int64 `db:"test_workflow_step_id" json:"test_workflow_step_id"`
	SampleTypeID       int64 `db:"sample_type_id" json:"sample_type_id"`
	ContainerTypeID    int64 `db:"container_type_id" json:"container_type_id"`
	TestID             int64 `db:"test_id" json:"test_id"`
	WorkflowID         int64 `db:"workflow_id" json:"workflow_id"`

	Step WorkflowStep `json:"step"`
}

// ResolvedStep is one entry in the step sequence resolved for a unit, from
// either source. TestWorkflowStepID is nil when the step came from the
// unit's own workflow.
type ResolvedStep struct {
	WorkflowStepID     int64  `json:"workflow_step_id"`
	TestWorkflowStepID *int64 `json:"test_workflow_step_id,omitempty"`
	WorkflowID         int64  `json:"workflow_id"`
	StepID             string `json:"step_id"`
	StepNo             int    `json:"step_no"`
	Department         string `json:"department"`
}

// StepAction maps a resolved step to a post-transition action. Actions are
// keyed by workflow-step identity or test-workflow-step identity; the lowest
// Sequence wins.
type StepAction struct {
	StepActionID       int64  `db:"step_action_id" json:"step_action_id"`
	WorkflowStepID     *int64 `db:"workflow_step_id" json:"workflow_step_id,omitempty"`
	TestWorkflowStepID *int64 `db:"test_workflow_step_id" json:"test_workflow_step_id,omitempty"`
	Action             string `db:"action" json:"action"`
	Sequence           int    `db:"sequence" json:"sequence"`
}
