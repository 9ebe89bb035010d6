package staticads

import (
	"sort"

	"adstudio/internal/domain"
)

// MergeResults folds incoming into prev and returns the new accumulated list
// plus the entries that were admitted. Results are keyed by ImageURL; entries
// already present are kept as they are. Admitted entries are tagged with jobID
// when it is non-empty. The merged list is sorted by CreatedAt. Neither input
// is modified.
func MergeResults(prev, incoming []domain.GeneratedResult, jobID string) (merged, added []domain.GeneratedResult) {
	seen := make(map[string]struct{}, len(prev)+len(incoming))
	merged = make([]domain.GeneratedResult, 0, len(prev)+len(incoming))
	for _, r := range prev {
		seen[r.ImageURL] = struct{}{}
		merged = append(merged, r)
	}
	for _, r := range incoming {
		if r.ImageURL == "" {
			continue
		}
		if _, dup := seen[r.ImageURL]; dup {
			continue
		}
		seen[r.ImageURL] = struct{}{}
		if jobID != "" {
			r.JobID = jobID
		}
		merged = append(merged, r)
		added = append(added, r)
	}
	if len(added) > 0 {
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].CreatedAt.Before(merged[j].CreatedAt)
		})
	}
	return merged, added
}
