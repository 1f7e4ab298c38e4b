package models

import "time"

// ReportOption is a reporting deliverable tied to a root sample and test,
// routed through the dry lab step track.
type ReportOption struct {
	ReportOptionID int64 `db:"report_option_id" json:"report_option_id"`
	RootSampleID   int64 `db:"root_sample_id" json:"root_sample_id"`
	TestID         int64 `db:"test_id" json:"test_id"`

	WorkflowID          *int64 `db:"workflow_id" json:"workflow_id,omitempty"`
	EffectiveWorkflowID *int64 `db:"effective_workflow_id" json:"effective_workflow_id,omitempty"`

	// Root sample typing, joined in for test-scoped step resolution
	SampleTypeID    int64 `db:"sample_type_id" json:"sample_type_id"`
	ContainerTypeID int64 `db:"container_type_id" json:"container_type_id"`

	CurrentStep   string `db:"current_step" json:"current_step"`
	PreviousStep  string `db:"previous_step" json:"previous_step"`
	NextStep      string `db:"next_step" json:"next_step"`
	PendingAction string `db:"pending_action" json:"pending_action"`

	CustodialDepartmentID *int64     `db:"custodial_department_id" json:"custodial_department_id,omitempty"`
	CustodialUserID       *int64     `db:"custodial_user_id" json:"custodial_user_id,omitempty"`
	AvailAt               *time.Time `db:"avail_at" json:"avail_at,omitempty"`
}

func (r *ReportOption) UnitID() int64 { return r.ReportOptionID }

func (r *ReportOption) Step() string { return r.CurrentStep }

func (r *ReportOption) Pending() string { return r.PendingAction }

func (r *ReportOption) EffectiveWorkflow() *int64 { return r.EffectiveWorkflowID }

func (r *ReportOption) ApplyTransition(t Transition) {
	r.PreviousStep = t.PreviousStep
	r.CurrentStep = t.CurrentStep
	r.NextStep = t.NextStep
	r.PendingAction = t.PendingAction
	r.CustodialDepartmentID = t.CustodialDepartmentID
	r.CustodialUserID = &t.CustodialUserID
	availAt := t.AvailAt
	r.AvailAt = &availAt
}
