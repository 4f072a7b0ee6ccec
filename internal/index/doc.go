// Package index provides the SQLite-backed message index.
//
// The index holds three tables:
//   - sources: registered message sources and their defaults
//   - messages: one record per message id, with its source, location and labels
//   - runs: one row per non-dry sync run, with its totals
//
// Labels are stored as their canonical comma-joined form (labels.Set.String),
// which is also the form the dump format uses.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: a message always belongs to a registered source
//
// Exclusive access across processes is a separate lock file next to the
// database (see Lock), held for the whole of a sync run.
package index
