/*
Package ingest is the upload pipeline: admission, archive safety, static
validation, entrypoint detection and the atomic source commit.

# Pipeline

	upload ──► admission (ban, daily quota, slots, size cap)
	       ──► staging (zip-slip defense before any byte is written)
	       ──► syntax pre-check (every source file, first offender aborts)
	       ──► entrypoint detection (auto-pick or operator pick)
	       ──► disk-quota projection
	       ──► commit (catalog row + atomic source swap)

No catalog or project-directory mutation happens before admission and
validation pass; a failed ingest leaves no trace. The daily upload counter
increments exactly once, on successful commit.

Uploads whose entrypoint cannot be auto-picked are parked with a pick token;
the janitor reaps parked stagings after their TTL.

The same archive format serves export and import: a zip carrying
hostingbot.json plus a src/ subtree.
*/
package ingest
