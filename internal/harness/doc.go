// Package harness runs declarative sync scenarios against the real
// orchestrator, poll layer and engine, backed by an in-memory index.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: restore_overrides_index
//	description: "Snapshot labels replace indexed labels"
//	mode: restore            # asis | discard | restore
//	restore: |               # dump lines, restore mode only
//	  m1@example.com (starred)
//	archive: false           # --archive
//	read: false              # --read
//	extra_labels: [work]     # --extra-labels
//	dry_run: false
//	source:
//	  uri: maildir:///mail
//	  labels: []             # added to every message
//	index:                   # records present before the first scan
//	  - { id: m1@example.com, info: "1", labels: [unread] }
//	scans:                   # successive scans of the source
//	  - messages:            # what the source holds during this scan
//	      - { id: m1@example.com, info: "1", labels: [inbox, unread] }
//	    expect: { scanned: 1, updated: 1, restored: 1 }
//	final_index:             # optional, checked after the last scan
//	  - { id: m1@example.com, info: "1", labels: [starred] }
//
// Message labels are the source's default labels, before overrides.
//
// # Deterministic Testing
//
// Every scenario runs on a fresh MemoryIndex with a FakeClock, so the
// rendered transcript (summary lines of every scan followed by the final
// index in dump format) is byte-identical across runs and suitable for
// golden comparison (RunWithGolden).
package harness
