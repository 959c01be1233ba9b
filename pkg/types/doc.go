/*
Package types defines the shared data structures for the hosting service.

These are the entities persisted by pkg/store (users, bans, projects, env
vars, runs, daily usage, audit records) plus the plan model consumed by the
quota layer. Runtime-only state (live child processes) lives in
pkg/supervisor and is deliberately not part of this package.
*/
package types
