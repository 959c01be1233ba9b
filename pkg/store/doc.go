/*
Package store is the durable catalog of the hosting service.

It persists users, bans, admission state, projects, encrypted environment
variables, run history, daily usage counters and the audit trail in a single
SQLite database opened in WAL mode, so an abrupt shutdown never corrupts the
catalog. Initialization is idempotent.

The store exposes narrow typed operations and never returns raw rows. All
multi-statement operations (project delete with its cascades, env upsert plus
audit) commit atomically through WithTx. Mutating operations append an audit
record in the same transaction when the actor is known.

Environment values are sealed by pkg/secretbox before they reach the env
table; GetEnvDecrypted degrades unreadable values to the empty string with a
warning instead of failing the project start.
*/
package store
