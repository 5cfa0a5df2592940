package pipeline

import (
	"math/rand"

	"batch-translator/internal/checkpoint"
	"batch-translator/internal/model"
)

// Plan selects the items this run will translate: everything not already in
// the checkpoint, optionally reduced to a uniform sample without
// replacement. sampleSize < 0 means all remaining; a sample larger than the
// remainder is capped at it.
func Plan(items []model.WorkItem, rec *checkpoint.Record, sampleSize int, rng *rand.Rand) []model.WorkItem {
	remaining := make([]model.WorkItem, 0, len(items))
	for _, item := range items {
		if !rec.Has(item.ID) {
			remaining = append(remaining, item)
		}
	}
	if sampleSize < 0 || sampleSize >= len(remaining) {
		return remaining
	}

	var order []int
	if rng != nil {
		order = rng.Perm(len(remaining))
	} else {
		order = rand.Perm(len(remaining))
	}
	picked := make([]model.WorkItem, 0, sampleSize)
	for _, idx := range order[:sampleSize] {
		picked = append(picked, remaining[idx])
	}
	return picked
}
