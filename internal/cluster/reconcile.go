package cluster

import (
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-engine/internal/database"
)

// memberMap collects the unique photos of one cluster, keeping the
// best-scoring face per photo.
type memberMap map[string]Member

func (m memberMap) addFace(f database.StoredFace) {
	cur, ok := m[f.PhotoUID]
	if !ok || f.DetScore > cur.Score {
		m[f.PhotoUID] = Member{
			PhotoUID:  f.PhotoUID,
			BBox:      f.BBox,
			Score:     f.DetScore,
			Confirmed: cur.Confirmed,
		}
	}
}

func newClusterKey() string {
	return "person-" + uuid.NewString()
}

func exclusionSet(excls []database.Exclusion) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, ex := range excls {
		if out[ex.ClusterKey] == nil {
			out[ex.ClusterKey] = make(map[string]bool)
		}
		out[ex.ClusterKey][ex.PhotoUID] = true
	}
	return out
}

// reconcile turns the run's raw groups into stable, user-visible people:
// match groups to cluster keys by photo overlap with the previous
// snapshot, fold brand-new groups into confirmed people when their
// centroids agree, overlay confirmations and exclusions, and hide keys
// whose membership ran dry. Exclusion beats confirmation beats the
// algorithm, in that order.
func (e *Engine) reconcile(
	faces []database.StoredFace,
	normalized [][]float32,
	groups [][]int,
	doc database.LabelDoc,
	excls []database.Exclusion,
	prev database.Snapshot,
) ([]Person, database.LabelDoc, database.Snapshot, bool) {
	doc = doc.Clone()
	changed := false
	excluded := exclusionSet(excls)

	// merged keys are tombstones; their old snapshot rows must not pull
	// groups back onto them
	var prevKeys []string
	for key := range prev {
		if label := doc[key]; label != nil && label.MergedInto != "" {
			continue
		}
		prevKeys = append(prevKeys, key)
	}
	sort.Strings(prevKeys)

	// best face per photo across the whole run, for confirmed members
	// whose photo did not land in the cluster algorithmically
	bestFace := make(memberMap)
	for _, f := range faces {
		bestFace.addFace(f)
	}

	// match each group to the previous key it overlaps most; ties go to
	// the lexicographically smaller key, zero overlap mints a fresh one
	assigned := make(map[string][]int)
	var freshKeys []string
	for _, group := range groups {
		inGroup := make(map[string]bool, len(group))
		for _, idx := range group {
			inGroup[faces[idx].PhotoUID] = true
		}

		bestKey, bestOverlap := "", 0
		for _, key := range prevKeys {
			overlap := 0
			for _, uid := range prev[key] {
				if inGroup[uid] {
					overlap++
				}
			}
			if overlap > bestOverlap {
				bestKey, bestOverlap = key, overlap
			}
		}
		if bestOverlap == 0 {
			bestKey = newClusterKey()
			freshKeys = append(freshKeys, bestKey)
		}
		assigned[bestKey] = append(assigned[bestKey], group...)
	}

	// fold fresh unnamed groups into confirmed people when the centroid
	// distance clears the stricter auto-assign cutoff
	facesByPhoto := make(map[string][]int, len(faces))
	for i, f := range faces {
		facesByPhoto[f.PhotoUID] = append(facesByPhoto[f.PhotoUID], i)
	}
	var confirmedKeys []string
	for key, label := range doc {
		if len(label.ConfirmedPhotos) > 0 && label.MergedInto == "" {
			confirmedKeys = append(confirmedKeys, key)
		}
	}
	sort.Strings(confirmedKeys)

	for _, freshKey := range freshKeys {
		var vecs [][]float32
		for _, idx := range assigned[freshKey] {
			vecs = append(vecs, normalized[idx])
		}
		centroid := Centroid(vecs)
		if centroid == nil {
			continue
		}

		bestTarget, bestDist := "", 2.0
		for _, key := range confirmedKeys {
			var cvecs [][]float32
			for _, uid := range doc[key].ConfirmedPhotos {
				for _, idx := range facesByPhoto[uid] {
					cvecs = append(cvecs, normalized[idx])
				}
			}
			tc := Centroid(cvecs)
			if tc == nil {
				continue
			}
			if d := CosineDistance(centroid, tc); d < bestDist {
				bestTarget, bestDist = key, d
			}
		}
		if bestTarget == "" || bestDist >= e.thresholds.AutoAssign {
			continue
		}

		target := doc[bestTarget]
		have := make(map[string]bool, len(target.ConfirmedPhotos))
		for _, uid := range target.ConfirmedPhotos {
			have[uid] = true
		}
		added := 0
		for _, idx := range assigned[freshKey] {
			uid := faces[idx].PhotoUID
			if !have[uid] {
				target.ConfirmedPhotos = append(target.ConfirmedPhotos, uid)
				have[uid] = true
				added++
			}
		}
		sort.Strings(target.ConfirmedPhotos)
		delete(assigned, freshKey)
		changed = true
		log.Printf("[AUTO-ASSIGN] folded new cluster (%d photos) into %q at distance %.3f",
			added, bestTarget, bestDist)
	}

	// overlay durable state and build the visible people
	keySet := make(map[string]bool, len(assigned)+len(doc))
	for key := range assigned {
		keySet[key] = true
	}
	for key := range doc {
		keySet[key] = true
	}
	allKeys := make([]string, 0, len(keySet))
	for key := range keySet {
		allKeys = append(allKeys, key)
	}
	sort.Strings(allKeys)

	var persons []Person
	snap := make(database.Snapshot)
	for _, key := range allKeys {
		label := doc[key]
		members := make(memberMap)
		for _, idx := range assigned[key] {
			members.addFace(faces[idx])
		}
		if label != nil {
			for _, uid := range label.ConfirmedPhotos {
				m, ok := members[uid]
				if !ok {
					if bf, found := bestFace[uid]; found {
						m = bf
					} else {
						m = Member{PhotoUID: uid}
					}
				}
				m.Confirmed = true
				members[uid] = m
			}
		}
		for uid := range excluded[key] {
			delete(members, uid)
		}

		if len(members) == 0 {
			if label != nil && !label.Hidden {
				label.Hidden = true
				changed = true
				log.Printf("[CLUSTERING] hiding empty cluster %q", key)
			}
			continue
		}

		uids := make([]string, 0, len(members))
		for uid := range members {
			uids = append(uids, uid)
		}
		sort.Strings(uids)
		snap[key] = uids

		p := Person{Key: key, Members: make([]Member, 0, len(uids))}
		for _, uid := range uids {
			p.Members = append(p.Members, members[uid])
		}
		for _, m := range p.Members {
			if p.SamplePhotoUID == "" || m.Score > members[p.SamplePhotoUID].Score {
				p.SamplePhotoUID = m.PhotoUID
			}
		}
		if label != nil {
			p.Name = label.Name
			p.Hidden = label.Hidden
			p.ProfilePhotoUID = label.ProfilePhotoUID
			p.RotationOverride = label.RotationOverride
		}
		persons = append(persons, p)
	}

	// biggest clusters first; the key breaks ties so output order is stable
	sort.Slice(persons, func(i, j int) bool {
		if len(persons[i].Members) != len(persons[j].Members) {
			return len(persons[i].Members) > len(persons[j].Members)
		}
		return persons[i].Key < persons[j].Key
	})

	return persons, doc, snap, changed
}
