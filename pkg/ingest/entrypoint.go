package ingest

import (
	"path"
	"strings"
)

// wellKnownStems are the entrypoint names auto-selected when several
// candidates exist, in priority order
var wellKnownStems = []string{"bot", "main", "app", "run", "start", "__main__"}

// DetectEntrypoint picks the project entrypoint from the candidate source
// files. Returns the pick and true when unambiguous; otherwise false and the
// caller must ask the operator. Candidates are relative slash paths, sorted.
func DetectEntrypoint(candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}

	for _, stem := range wellKnownStems {
		best := ""
		for _, c := range candidates {
			if stemOf(c) != stem {
				continue
			}
			// Prefer the shallowest match, then lexicographic order
			if best == "" || depth(c) < depth(best) {
				best = c
			}
		}
		if best != "" {
			return best, true
		}
	}
	return "", false
}

func stemOf(rel string) string {
	return strings.TrimSuffix(path.Base(rel), ".py")
}

func depth(rel string) int {
	return strings.Count(rel, "/")
}
