// Package layout computes the canonical per-project filesystem layout and
// performs best-effort disk accounting. Paths are always derived from ids,
// never parsed from user input.
package layout
