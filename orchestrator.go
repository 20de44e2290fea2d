package afflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidroman0O/afflow/crm"
	"github.com/davidroman0O/afflow/salesfeed"
	"github.com/davidroman0O/afflow/state"
)

// transition binds a task marker to the stage that runs next and the marker
// written on that stage's success.
type transition struct {
	stage string
	done  TaskMarker
}

// Stage names used by the dispatch table, logs, and metrics.
const (
	stageScout            = "social_scout"
	stageSelectTargets    = "select_outreach_targets"
	stageOutreach         = "outreach"
	stageCRM              = "crm"
	stageCommission       = "commission"
	stageSelectForPayment = "select_commissions_for_payment"
	stagePayment          = "payment"
	stagePerformance      = "performance"
)

// transitions is the cycle's state machine: exactly one successor stage per
// marker. Markers absent from the table fall back to the performance stage,
// which always re-anchors the cycle at MarkerCycleComplete.
var transitions = map[TaskMarker]transition{
	MarkerInitial:              {stageScout, MarkerProspectsFound},
	MarkerCycleComplete:        {stageScout, MarkerProspectsFound},
	MarkerProspectsFound:       {stageSelectTargets, MarkerTargetsSelected},
	MarkerTargetsSelected:      {stageOutreach, MarkerOutreachComplete},
	MarkerOutreachComplete:     {stageCRM, MarkerCRMUpdated},
	MarkerCRMUpdated:           {stageCommission, MarkerCommissionsProcessed},
	MarkerCommissionsProcessed: {stageSelectForPayment, MarkerCommissionsApproved},
	MarkerCommissionsApproved:  {stagePayment, MarkerPaymentsProcessed},
	MarkerPaymentsProcessed:    {stagePerformance, MarkerCycleComplete},
}

// fallbackTransition routes unrecognized markers to the performance stage so
// a corrupted marker cannot wedge the cycle.
var fallbackTransition = transition{stagePerformance, MarkerCycleComplete}

// Orchestrator drives one campaign's cycle, one stage per Step call. It owns
// the transition table and isolates stage failures: a failed stage leaves
// the marker unchanged so the same stage is retried on the next invocation.
//
// The orchestrator never runs two stages concurrently and holds no internal
// lock; callers must serialize Step calls per state.
type Orchestrator struct {
	id  string
	cfg Config
	log Logger

	oracle     Oracle
	source     ProspectSource
	courier    Courier
	crm        *crm.Store
	ledger     *salesfeed.Ledger
	ownsLedger bool
	treasury   Treasury
	approval   ApprovalPolicy
	now        func() time.Time

	agents map[string]Agent
	tracer trace.Tracer
	met    *pipelineMetrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(log Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithOracle sets the text-generation backend.
func WithOracle(oracle Oracle) Option {
	return func(o *Orchestrator) { o.oracle = oracle }
}

// WithProspectSource sets the platform discovery backend.
func WithProspectSource(src ProspectSource) Option {
	return func(o *Orchestrator) { o.source = src }
}

// WithCourier sets the outreach delivery backend.
func WithCourier(c Courier) Option {
	return func(o *Orchestrator) { o.courier = c }
}

// WithCRMStore sets the external record store synced by the CRM stage.
func WithCRMStore(s *crm.Store) Option {
	return func(o *Orchestrator) { o.crm = s }
}

// WithLedger sets the sales ledger consumed by the commission stage.
func WithLedger(l *salesfeed.Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithTreasury sets the payment provider backend.
func WithTreasury(t Treasury) Option {
	return func(o *Orchestrator) { o.treasury = t }
}

// WithApprovalPolicy replaces the default approve-all commission gate.
func WithApprovalPolicy(p ApprovalPolicy) Option {
	return func(o *Orchestrator) { o.approval = p }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator for one campaign. Stage agents are constructed
// lazily on the first Step; any collaborator not supplied through an option
// gets its mock default at that point.
func New(id string, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		id:     id,
		cfg:    cfg,
		log:    NewDefaultLogger(),
		now:    time.Now,
		tracer: otel.Tracer("github.com/davidroman0O/afflow"),
		met:    sharedMetrics(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ID returns the orchestrator's campaign identifier.
func (o *Orchestrator) ID() string { return o.id }

// Close releases resources the orchestrator created itself. Injected
// collaborators stay open; whoever supplied them closes them.
func (o *Orchestrator) Close() error {
	if o.ownsLedger && o.ledger != nil {
		o.ownsLedger = false
		return o.ledger.Close()
	}
	return nil
}

// ensureAgents builds the stage agents once, filling in mock collaborators
// for anything the caller did not inject.
func (o *Orchestrator) ensureAgents() error {
	if o.agents != nil {
		return nil
	}
	if o.oracle == nil {
		o.oracle = NewCannedOracle()
	}
	if o.source == nil {
		o.source = NewMockProspectSource()
	}
	if o.courier == nil {
		o.courier = NewMockCourier()
	}
	if o.crm == nil {
		o.crm = crm.NewStore(o.cfg.CRM.ToolID)
	}
	if o.ledger == nil {
		ledger, err := salesfeed.Open()
		if err != nil {
			return fmt.Errorf("open sales ledger: %w", err)
		}
		if err := ledger.SeedDemo(); err != nil {
			return fmt.Errorf("seed sales ledger: %w", err)
		}
		o.ledger = ledger
		o.ownsLedger = true
	}
	if o.treasury == nil {
		o.treasury = NewMockTreasury(o.cfg.Payment)
	}
	if o.approval == nil {
		o.approval = ApproveAll{}
	}

	o.agents = map[string]Agent{
		stageScout:       NewScoutAgent(o.cfg.Scout, o.oracle, o.source, o.log),
		stageOutreach:    NewOutreachAgent(o.cfg.Outreach, o.oracle, o.courier, o.log, o.now),
		stageCRM:         NewCRMSyncAgent(o.cfg.CRM, o.crm, o.log, o.now),
		stageCommission:  NewCommissionAgent(o.cfg.Commission, o.ledger, o.treasury, o.log, o.now),
		stagePayment:     NewPaymentAgent(o.cfg.Payment, o.treasury, o.log),
		stagePerformance: NewPerformanceAgent(o.cfg.Performance, o.oracle, o.log, o.now),
	}
	return nil
}

// next resolves the transition for the state's current marker.
func (o *Orchestrator) next(st *state.State) transition {
	marker := TaskMarker(st.CurrentTask)
	if marker == "" {
		marker = MarkerInitial
	}
	if tr, ok := transitions[marker]; ok {
		return tr
	}
	o.log.Error("pipeline %s: unrecognized task marker %q, falling back to %s",
		o.id, st.CurrentTask, fallbackTransition.stage)
	return fallbackTransition
}

// Step advances the cycle by exactly one stage. On stage success the task
// marker moves to the stage's done marker; on stage failure (returned error
// or panic) the failure is captured into the state's LastError and the
// marker stays put, so the next invocation retries the same stage. Stage
// failures are never propagated to the caller.
func (o *Orchestrator) Step(ctx context.Context, st *state.State) {
	if err := o.ensureAgents(); err != nil {
		st.LastError = err.Error()
		o.log.Error("pipeline %s: %v", o.id, err)
		return
	}

	tr := o.next(st)
	ctx, span := o.tracer.Start(ctx, "afflow.step",
		trace.WithAttributes(
			attribute.String("afflow.pipeline", o.id),
			attribute.String("afflow.stage", tr.stage),
			attribute.String("afflow.marker", st.CurrentTask),
		))
	defer span.End()

	o.met.stageRuns.WithLabelValues(o.id, tr.stage).Inc()
	o.log.Debug("pipeline %s: running stage %s", o.id, tr.stage)

	if err := o.runStage(ctx, tr.stage, st); err != nil {
		st.LastError = fmt.Sprintf("error running %s: %v", tr.stage, err)
		o.met.stageFailures.WithLabelValues(o.id, tr.stage).Inc()
		o.log.Error("pipeline %s: %s", o.id, st.LastError)
	} else {
		st.LastError = ""
		st.CurrentTask = string(tr.done)
	}

	o.snapshot(st)
}

// runStage executes one stage or orchestrator-owned transform, converting
// panics into errors so a misbehaving stage cannot take down the host.
func (o *Orchestrator) runStage(ctx context.Context, stage string, st *state.State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()

	switch stage {
	case stageSelectTargets:
		o.selectOutreachTargets(st)
		return nil
	case stageSelectForPayment:
		return o.selectCommissionsForPayment(ctx, st)
	default:
		agent, ok := o.agents[stage]
		if !ok {
			return fmt.Errorf("no agent registered for stage %s", stage)
		}
		return agent.Run(ctx, st)
	}
}

// snapshot records the post-step observability view: a structured log line
// and the state-size gauges.
func (o *Orchestrator) snapshot(st *state.State) {
	o.met.prospects.WithLabelValues(o.id).Set(float64(len(st.Prospects)))
	o.met.affiliates.WithLabelValues(o.id).Set(float64(len(st.ActiveAffiliates)))
	o.met.commissions.WithLabelValues(o.id).Set(float64(len(st.CommissionsLog)))

	o.log.Info("pipeline %s: state at %s: current_task=%s prospects=%d active_affiliates=%d commissions=%d",
		o.id, o.now().UTC().Format(time.RFC3339), st.CurrentTask,
		len(st.Prospects), len(st.ActiveAffiliates), len(st.CommissionsLog))
}

// Done reports whether the state has completed a full cycle.
func Done(st *state.State) bool {
	return TaskMarker(st.CurrentTask) == MarkerCycleComplete
}
