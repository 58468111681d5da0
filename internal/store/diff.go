package store

import (
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff returns a patch in the diff-match-patch text format that turns
// before into after. It is stored with each edit log entry.
func Diff(before, after string) string {
	if before == after {
		return ""
	}
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = time.Second
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(before, diffs))
}

// ApplyDiff replays a patch produced by Diff onto before.
func ApplyDiff(before, patch string) (string, bool) {
	if patch == "" {
		return before, true
	}
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patch)
	if err != nil {
		return before, false
	}
	out, applied := dmp.PatchApply(patches, before)
	for _, ok := range applied {
		if !ok {
			return out, false
		}
	}
	return out, true
}
