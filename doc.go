// Package afflow implements a simulated affiliate-marketing pipeline driven
// by a central orchestrator state machine.
//
// A cycle walks a fixed sequence of stages — scouting, outreach, CRM sync,
// commission tracking, payment, performance analysis — over one shared state
// record. The orchestrator advances exactly one stage per Step call, selected
// by the state's task marker, and isolates stage failures so that a failed
// stage is retried on the next invocation instead of corrupting the cycle.
//
// Core components include:
//   - Orchestrator: the marker-keyed transition table and per-step dispatch
//   - Agents: the six stage implementations, all with mocked external I/O
//   - State: the shared record (see the state subpackage)
//   - Host: campaign registry and HTTP management surface (host subpackage)
package afflow
