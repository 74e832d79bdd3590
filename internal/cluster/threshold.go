package cluster

import "github.com/kozaktomas/face-engine/internal/config"

// Feedback is the user-feedback signal that drives threshold selection.
// It is derived from the stores, never cached.
type Feedback struct {
	HasConfirmations bool // at least one confirmed photo on any label
	HasExclusions    bool // at least one exclusion recorded
}

// SelectThreshold picks the clustering distance cutoff for a run.
// Confirmations tighten the cutoff (the user vouched for what is there,
// be conservative about adding more); exclusions loosen it (the user is
// splitting people apart, prefer bigger clusters they can prune).
// Exclusions win when both kinds of feedback exist.
func SelectThreshold(t config.Thresholds, fb Feedback) float64 {
	switch {
	case fb.HasExclusions:
		return t.Clustering.Loosened
	case fb.HasConfirmations:
		return t.Clustering.Tightened
	default:
		return t.Clustering.Default
	}
}
