package models

import "time"

// Sample statuses touched by routing
const (
	SampleStatusInProgress = "In-progress"
)

// Smear process classification on tests associated with liquid samples
const (
	SmearProcessThinPrep = "Thin Prep"
	TestStatusCancelled  = "Cancelled"
)

// Sample is a physical specimen (or derived block/slide) moving through the
// wet lab. Step fields are mutated only by the workflow router.
type Sample struct {
	SampleID        int64  `db:"sample_id" json:"sample_id"`
	AccessionID     string `db:"accession_id" json:"accession_id"`
	PartNo          string `db:"part_no" json:"part_no"`
	BlockSeq        string `db:"block_or_cassette_seq" json:"block_or_cassette_seq"`
	SlideSeq        string `db:"slide_seq" json:"slide_seq"`
	SampleTypeID    int64  `db:"sample_type_id" json:"sample_type_id"`
	ContainerTypeID int64  `db:"container_type_id" json:"container_type_id"`

	// WorkflowID is the sample's own workflow; the effective workflow falls
	// back to the parent accession sample's workflow when unset.
	WorkflowID          *int64 `db:"workflow_id" json:"workflow_id,omitempty"`
	AccessionSampleID   *int64 `db:"accession_sample_id" json:"accession_sample_id,omitempty"`
	EffectiveWorkflowID *int64 `db:"effective_workflow_id" json:"effective_workflow_id,omitempty"`

	CurrentStep   string `db:"current_step" json:"current_step"`
	PreviousStep  string `db:"previous_step" json:"previous_step"`
	NextStep      string `db:"next_step" json:"next_step"`
	PendingAction string `db:"pending_action" json:"pending_action"`

	CustodialDepartmentID *int64     `db:"custodial_department_id" json:"custodial_department_id,omitempty"`
	CustodialUserID       *int64     `db:"custodial_user_id" json:"custodial_user_id,omitempty"`
	AvailAt               *time.Time `db:"avail_at" json:"avail_at,omitempty"`

	SampleStatus       string `db:"sample_status" json:"sample_status"`
	AccessionGenerated bool   `db:"accession_generated" json:"accession_generated"`

	// Container liquidity, joined from the container type, drives default
	// block/slide seeding when routing to Grossing at accession time.
	ContainerIsLiquid bool `db:"container_is_liquid" json:"container_is_liquid"`

	NumOfBlocks            int `db:"num_of_blocks" json:"num_of_blocks"`
	NumOfSlides            int `db:"num_of_slides" json:"num_of_slides"`
	NumOfManualSmearSlides int `db:"num_of_manualsmear_slides" json:"num_of_manualsmear_slides"`
	NumOfThinPrepSlides    int `db:"num_of_thinprep_slides" json:"num_of_thinprep_slides"`
}

func (s *Sample) UnitID() int64 { return s.SampleID }

func (s *Sample) Step() string { return s.CurrentStep }

func (s *Sample) Pending() string { return s.PendingAction }

func (s *Sample) EffectiveWorkflow() *int64 { return s.EffectiveWorkflowID }

func (s *Sample) ApplyTransition(t Transition) {
	s.PreviousStep = t.PreviousStep
	s.CurrentStep = t.CurrentStep
	s.NextStep = t.NextStep
	s.PendingAction = t.PendingAction
	s.CustodialDepartmentID = t.CustodialDepartmentID
	s.CustodialUserID = &t.CustodialUserID
	availAt := t.AvailAt
	s.AvailAt = &availAt
}

// SampleTestMap associates a sample with an ordered test and its workflow
type SampleTestMap struct {
	SampleID     int64  `db:"sample_id" json:"sample_id"`
	TestID       int64  `db:"test_id" json:"test_id"`
	WorkflowID   int64  `db:"workflow_id" json:"workflow_id"`
	TestStatus   string `db:"test_status" json:"test_status"`
	SmearProcess string `db:"smear_process" json:"smear_process"`
}
