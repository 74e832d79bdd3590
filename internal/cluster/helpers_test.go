package cluster

import (
	"math"

	"github.com/kozaktomas/face-engine/internal/config"
	"github.com/kozaktomas/face-engine/internal/database"
	"github.com/kozaktomas/face-engine/internal/database/memory"
)

// vec returns a 2D unit vector at the given angle. Cosine distance
// between two of these is 1 - cos(delta), which makes test geometry
// easy to reason about: ~72.5 degrees apart crosses the 0.70 cutoff.
func vec(angleDeg float64) []float32 {
	rad := angleDeg * math.Pi / 180
	return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
}

func face(photoUID string, idx int, angleDeg, score float64) database.StoredFace {
	return database.StoredFace{
		PhotoUID:  photoUID,
		FaceIndex: idx,
		Embedding: vec(angleDeg),
		BBox:      []float64{0, 0, 100, 100},
		DetScore:  score,
		Dim:       2,
	}
}

func testThresholds() config.Thresholds {
	var t config.Thresholds
	t.Clustering.Default = 0.70
	t.Clustering.Tightened = 0.65
	t.Clustering.Loosened = 0.80
	t.AutoAssign = 0.65
	return t
}

func newTestEngine(store *memory.Store) *Engine {
	return NewEngine(store, store, store, store, testThresholds())
}

func memberUIDs(p Person) []string {
	out := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		out = append(out, m.PhotoUID)
	}
	return out
}

func findByMember(persons []Person, photoUID string) *Person {
	for i := range persons {
		for _, m := range persons[i].Members {
			if m.PhotoUID == photoUID {
				return &persons[i]
			}
		}
	}
	return nil
}
