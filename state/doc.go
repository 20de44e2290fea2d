// Package state defines the shared record threaded through every stage of an
// affiliate recruitment cycle.
//
// The State struct is the single mutable document the orchestrator hands to
// each stage agent. Stages mutate it in place; the orchestrator owns the task
// marker that decides which stage runs next. Leads are never deleted, only
// moved between the prospect pool and the active affiliate roster, and the
// commission log only ever grows.
package state
