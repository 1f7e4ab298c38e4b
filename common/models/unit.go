package models

import "time"

// Transition is the bookkeeping applied to a unit when it advances one step.
// Empty step strings mean "no such step" (null in the store).
type Transition struct {
	PreviousStep  string
	CurrentStep   string
	NextStep      string
	PendingAction string

	CustodialDepartmentID *int64
	CustodialUserID       int64
	AvailAt               time.Time
}

// RoutableUnit abstracts a Sample or a ReportOption as it moves through
// workflow steps. The router mutates units only through ApplyTransition.
type RoutableUnit interface {
	// UnitID is the unit's primary key
	UnitID() int64

	// Step returns the unit's current step, empty before first routing
	Step() string

	// Pending returns the unit's unresolved pending action, empty when clear
	Pending() string

	// EffectiveWorkflow returns the workflow governing this unit, nil when
	// the unit falls back to test-scoped step definitions
	EffectiveWorkflow() *int64

	// ApplyTransition mutates the unit's step bookkeeping in place
	ApplyTransition(t Transition)
}

// Actor identifies who triggered a routing call and under which job-type
// session, which determines the site prefix for custodial departments.
type Actor struct {
	UserID         int64
	CurrentJobType string
}

// SitePrefix derives the site part of the acting job type ("KSA-Histology"
// yields "KSA").
func (a Actor) SitePrefix() string {
	for i := 0; i < len(a.CurrentJobType); i++ {
		if a.CurrentJobType[i] == '-' {
			return a.CurrentJobType[:i]
		}
	}
	return a.CurrentJobType
}
