// Package host runs campaigns behind an HTTP surface. Each campaign pairs
// one orchestrator with one state and serializes all access to them.
package host

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/davidroman0O/afflow"
	"github.com/davidroman0O/afflow/state"
)

// Campaign lifecycle statuses.
const (
	StatusInitialized = "initialized"
	StatusRunning     = "running"
	StatusIdle        = "idle"
	StatusError       = "error"
)

// maxStepsPerCycle bounds a RunCycle call. A healthy cycle finishes in
// eight steps; the cap only matters when a stage keeps failing.
const maxStepsPerCycle = 16

// Campaign is one pipeline instance owned by the host. The mutex serializes
// steps and reads; the orchestrator itself is not safe for concurrent use.
type Campaign struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time

	mu      deadlock.Mutex
	orch    *afflow.Orchestrator
	st      *state.State
	status  string
	cycles  int
	lastRun time.Time
	log     afflow.Logger
}

// NewCampaign creates a campaign around a fresh state.
func NewCampaign(name string, cfg afflow.Config, log afflow.Logger, opts ...afflow.Option) *Campaign {
	id := "camp_" + uuid.NewString()
	opts = append([]afflow.Option{afflow.WithLogger(log)}, opts...)
	return &Campaign{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		orch:      afflow.New(id, cfg, opts...),
		st:        state.New(),
		status:    StatusInitialized,
		log:       log,
	}
}

// Step advances the campaign by one stage and returns the resulting status
// snapshot.
func (c *Campaign) Step(ctx context.Context) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusRunning
	c.lastRun = time.Now().UTC()
	c.orch.Step(ctx, c.st)
	c.settleLocked()
	return c.statusLocked()
}

// SelectOutreach manually advances a campaign sitting on freshly scouted
// prospects to its outreach target selection. Any other position is
// rejected so a manual trigger cannot skip a stage.
func (c *Campaign) SelectOutreach(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if afflow.TaskMarker(c.st.CurrentTask) != afflow.MarkerProspectsFound {
		return c.statusLocked(), fmt.Errorf("campaign %s is at %q, not %q",
			c.ID, c.st.CurrentTask, afflow.MarkerProspectsFound)
	}
	c.lastRun = time.Now().UTC()
	c.orch.Step(ctx, c.st)
	c.settleLocked()
	return c.statusLocked(), nil
}

// RunCycle drives the campaign until the cycle completes. It stops early
// when a stage fails twice in a row without the marker moving, leaving the
// campaign in the error status with the failure preserved in the state; a
// later RunCycle retries from the pinned stage.
func (c *Campaign) RunCycle(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = StatusRunning
	c.lastRun = time.Now().UTC()
	failedAt := ""
	for i := 0; i < maxStepsPerCycle; i++ {
		if err := ctx.Err(); err != nil {
			c.status = StatusError
			return c.statusLocked(), err
		}

		before := c.st.CurrentTask
		c.orch.Step(ctx, c.st)

		if c.st.LastError != "" && c.st.CurrentTask == before {
			if failedAt == before {
				c.status = StatusError
				return c.statusLocked(), fmt.Errorf("campaign %s stuck at %q: %s",
					c.ID, before, c.st.LastError)
			}
			failedAt = before
			continue
		}
		failedAt = ""

		if afflow.Done(c.st) {
			c.cycles++
			c.status = StatusIdle
			c.log.Info("campaign %s: cycle %d complete", c.ID, c.cycles)
			return c.statusLocked(), nil
		}
	}

	c.status = StatusError
	return c.statusLocked(), fmt.Errorf("campaign %s: cycle did not complete within %d steps",
		c.ID, maxStepsPerCycle)
}

// Close releases the campaign's orchestrator resources.
func (c *Campaign) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orch.Close()
}

// Snapshot returns the current status without advancing the campaign.
func (c *Campaign) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// View runs fn with the campaign's state under the lock. The callback must
// not retain the state pointer.
func (c *Campaign) View(fn func(st *state.State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.st)
}

func (c *Campaign) settleLocked() {
	switch {
	case c.st.LastError != "":
		c.status = StatusError
	case afflow.Done(c.st):
		c.status = StatusIdle
	default:
		c.status = StatusRunning
	}
}

func (c *Campaign) statusLocked() Status {
	return Status{
		ID:               c.ID,
		Name:             c.Name,
		Description:      c.Description,
		Status:           c.status,
		CurrentTask:      c.st.CurrentTask,
		CyclesCompleted:  c.cycles,
		Prospects:        len(c.st.Prospects),
		ActiveAffiliates: len(c.st.ActiveAffiliates),
		Commissions:      len(c.st.CommissionsLog),
		LastError:        c.st.LastError,
		CreatedAt:        c.CreatedAt,
		LastRun:          c.lastRun,
	}
}
