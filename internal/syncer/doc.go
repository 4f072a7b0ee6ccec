// Package syncer drives source event streams through the label override
// policy and the reconciliation engine, applies the resulting actions to
// the index and keeps per-source telemetry.
//
// Sources are processed one at a time, in the order given, each with fresh
// counters. A run stops at the first error: a source that cannot be read
// aborts the remaining sources. The orchestrator checks for cancellation
// between events, never inside a source.
//
// Under dry-run nothing is written to the index. Writes land in an
// in-memory overlay instead, and streams read priors through
// Orchestrator.Lookup, so a dry run makes and counts exactly the decisions
// a real run over the same sources would.
package syncer
