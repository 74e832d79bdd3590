// Package cluster implements the face-identity clustering engine:
// distance math, adaptive threshold selection, single-link grouping,
// reconciliation of ephemeral groups against durable labels, and the
// label mutations users drive.
package cluster

import "github.com/kozaktomas/face-engine/internal/database"

// Member is one photo inside a person cluster. A photo appears at most
// once per cluster even when several of its faces match; Score and BBox
// come from the best-scoring face.
type Member struct {
	PhotoUID  string
	BBox      []float64
	Score     float64
	Confirmed bool
}

// Person is one externally visible identity cluster: the run's
// algorithmic membership with durable user state applied on top.
type Person struct {
	Key              string
	Name             string
	Hidden           bool
	Members          []Member
	SamplePhotoUID   string // member with the highest detection confidence
	ProfilePhotoUID  string
	RotationOverride int
}

// filterFaces drops faces with a missing embedding or a dimensionality
// that disagrees with the majority of the run. Mixed dimensions mean the
// extraction model changed mid-library; distances across models are
// meaningless, so the minority rows sit out until re-detection.
func filterFaces(faces []database.StoredFace) (valid []database.StoredFace, skipped int) {
	counts := make(map[int]int)
	for _, f := range faces {
		if len(f.Embedding) > 0 {
			counts[len(f.Embedding)]++
		}
	}

	majority := 0
	for dim, c := range counts {
		if majority == 0 || c > counts[majority] || (c == counts[majority] && dim < majority) {
			majority = dim
		}
	}

	for _, f := range faces {
		if len(f.Embedding) == majority && majority > 0 {
			valid = append(valid, f)
		} else {
			skipped++
		}
	}
	return valid, skipped
}
