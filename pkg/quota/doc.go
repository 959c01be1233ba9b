// Package quota is the admission gate: ban, rate-limit, gate-state, daily
// counter, project-slot, disk and concurrent-run checks that precede every
// state-mutating operation.
package quota
