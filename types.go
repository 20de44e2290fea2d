package afflow

import (
	"context"

	"github.com/davidroman0O/afflow/state"
)

// TaskMarker identifies the position of a cycle in the stage state machine.
// Exactly one marker is current at a time; the orchestrator maps it to the
// single stage that runs next.
type TaskMarker string

const (
	// MarkerInitial is the marker of a freshly created cycle.
	MarkerInitial TaskMarker = "initial"
	// MarkerProspectsFound follows the scouting stage.
	MarkerProspectsFound TaskMarker = "prospects_found"
	// MarkerTargetsSelected follows outreach target selection.
	MarkerTargetsSelected TaskMarker = "outreach_targets_selected"
	// MarkerOutreachComplete follows the outreach stage.
	MarkerOutreachComplete TaskMarker = "outreach_complete"
	// MarkerCRMUpdated follows the CRM sync stage.
	MarkerCRMUpdated TaskMarker = "crm_updated"
	// MarkerCommissionsProcessed follows the commission tracking stage.
	MarkerCommissionsProcessed TaskMarker = "commissions_processed"
	// MarkerCommissionsApproved follows payment selection.
	MarkerCommissionsApproved TaskMarker = "commissions_approved"
	// MarkerPaymentsProcessed follows the payment stage.
	MarkerPaymentsProcessed TaskMarker = "payments_processed"
	// MarkerCycleComplete terminates a cycle; it routes back to scouting when
	// the orchestrator is invoked again.
	MarkerCycleComplete TaskMarker = "cycle_complete"
)

// Agent is one unit of work in the cycle. Implementations mutate the passed
// state in place and perform their external calls internally.
//
// Agents must treat expected empty-result conditions (no new sales, no
// eligible prospects) as success: record a note on the state and return nil.
// They must also be safe to re-run against the same state after a partial
// failure; work already applied is identified by lead or commission ID and
// skipped.
type Agent interface {
	// Name returns the agent's stage name.
	Name() string

	// Run executes the stage against the shared state.
	Run(ctx context.Context, st *state.State) error
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc struct {
	StageName string
	Fn        func(ctx context.Context, st *state.State) error
}

// Name implements Agent.Name.
func (a AgentFunc) Name() string { return a.StageName }

// Run implements Agent.Run.
func (a AgentFunc) Run(ctx context.Context, st *state.State) error { return a.Fn(ctx, st) }
