package cluster

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/kozaktomas/face-engine/internal/database"
)

var validRotations = map[int]bool{0: true, 90: true, 180: true, 270: true}

func ensureLabel(doc database.LabelDoc, key string) *database.PersonLabel {
	if doc[key] == nil {
		doc[key] = &database.PersonLabel{}
	}
	return doc[key]
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// effectiveMembers computes the current membership of a cluster from the
// last snapshot: (algorithmic ∪ confirmed) minus excluded.
func effectiveMembers(snap database.Snapshot, doc database.LabelDoc, excluded map[string]map[string]bool, key string) []string {
	set := make(map[string]bool)
	for _, uid := range snap[key] {
		set[uid] = true
	}
	if label := doc[key]; label != nil {
		for _, uid := range label.ConfirmedPhotos {
			set[uid] = true
		}
	}
	for uid := range excluded[key] {
		delete(set, uid)
	}
	out := make([]string, 0, len(set))
	for uid := range set {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

// Rename sets the display name for a cluster.
func (e *Engine) Rename(ctx context.Context, tenant, key, name string) error {
	doc, err := e.labels.Labels(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading labels: %w", err)
	}
	ensureLabel(doc, key).Name = name
	return e.labels.SaveLabels(ctx, tenant, doc)
}

// SetHidden hides or unhides a cluster.
func (e *Engine) SetHidden(ctx context.Context, tenant, key string, hidden bool) error {
	doc, err := e.labels.Labels(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading labels: %w", err)
	}
	ensureLabel(doc, key).Hidden = hidden
	return e.labels.SaveLabels(ctx, tenant, doc)
}

// SetRotation stores a display rotation override for the cluster's
// thumbnails. Only quarter turns are meaningful.
func (e *Engine) SetRotation(ctx context.Context, tenant, key string, degrees int) error {
	if !validRotations[degrees] {
		return fmt.Errorf("invalid rotation %d: must be 0, 90, 180 or 270", degrees)
	}
	doc, err := e.labels.Labels(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading labels: %w", err)
	}
	ensureLabel(doc, key).RotationOverride = degrees
	return e.labels.SaveLabels(ctx, tenant, doc)
}

// SetProfilePhoto picks the photo shown as the cluster's face.
func (e *Engine) SetProfilePhoto(ctx context.Context, tenant, key, photoUID string) error {
	doc, err := e.labels.Labels(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading labels: %w", err)
	}
	ensureLabel(doc, key).ProfilePhotoUID = photoUID
	return e.labels.SaveLabels(ctx, tenant, doc)
}

// ConfirmPhoto pins a photo to a cluster. Confirmed photos survive every
// re-clustering run, whatever the distance math decides later.
func (e *Engine) ConfirmPhoto(ctx context.Context, tenant, key, photoUID string) error {
	doc, err := e.labels.Labels(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading labels: %w", err)
	}
	label := ensureLabel(doc, key)
	if !containsString(label.ConfirmedPhotos, photoUID) {
		label.ConfirmedPhotos = append(label.ConfirmedPhotos, photoUID)
		sort.Strings(label.ConfirmedPhotos)
	}
	return e.labels.SaveLabels(ctx, tenant, doc)
}

// RemovePhoto takes a photo out of a cluster for good: it records an
// exclusion, drops any confirmation, replaces the profile photo when the
// removed one held that spot, and hides the cluster if nothing is left.
// Removing from an unnamed cluster also excludes the photo from every
// other unnamed cluster that currently holds it, so a rejected face does
// not resurface one cluster over.
func (e *Engine) RemovePhoto(ctx context.Context, tenant, key, photoUID string) error {
	if err := e.exclusions.AddExclusion(ctx, tenant, key, photoUID); err != nil {
		return fmt.Errorf("recording exclusion: %w", err)
	}

	doc, err := e.labels.Labels(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading labels: %w", err)
	}
	snap, err := e.snapshots.Snapshot(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	excls, err := e.exclusions.Exclusions(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading exclusions: %w", err)
	}
	excluded := exclusionSet(excls)

	label := doc[key]
	if label != nil {
		label.ConfirmedPhotos = removeString(label.ConfirmedPhotos, photoUID)
	}

	remaining := effectiveMembers(snap, doc, excluded, key)
	if label != nil && label.ProfilePhotoUID == photoUID {
		if len(remaining) > 0 {
			label.ProfilePhotoUID = remaining[0]
		} else {
			label.ProfilePhotoUID = ""
		}
	}

	if label == nil || IsUnnamed(label.Name) {
		siblings := make([]string, 0, len(snap))
		for other := range snap {
			siblings = append(siblings, other)
		}
		sort.Strings(siblings)
		for _, other := range siblings {
			if other == key || !containsString(snap[other], photoUID) || excluded[other][photoUID] {
				continue
			}
			if ol := doc[other]; ol != nil && !IsUnnamed(ol.Name) {
				continue
			}
			if err := e.exclusions.AddExclusion(ctx, tenant, other, photoUID); err != nil {
				return fmt.Errorf("recording sibling exclusion: %w", err)
			}
			log.Printf("[CLUSTERING] excluded %q from sibling unnamed cluster %q", photoUID, other)
		}
	}

	if len(remaining) == 0 {
		ensureLabel(doc, key).Hidden = true
		log.Printf("[CLUSTERING] hiding empty cluster %q", key)
	}

	return e.labels.SaveLabels(ctx, tenant, doc)
}

// MergeClusters moves everything from one cluster into another and
// tombstones the source. The kept name is the explicit choice if given,
// else the source's real name, else whatever the target already had.
func (e *Engine) MergeClusters(ctx context.Context, tenant, sourceKey, targetKey, keepName string) error {
	if sourceKey == targetKey {
		return fmt.Errorf("cannot merge cluster %q into itself", sourceKey)
	}

	doc, err := e.labels.Labels(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading labels: %w", err)
	}
	snap, err := e.snapshots.Snapshot(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	src := doc[sourceKey]
	tgt := ensureLabel(doc, targetKey)

	name := keepName
	if name == "" && src != nil && !IsUnnamed(src.Name) {
		name = src.Name
	}
	if name != "" {
		tgt.Name = name
	}

	have := make(map[string]bool, len(tgt.ConfirmedPhotos))
	for _, uid := range tgt.ConfirmedPhotos {
		have[uid] = true
	}
	moved := 0
	addPhoto := func(uid string) {
		if !have[uid] {
			tgt.ConfirmedPhotos = append(tgt.ConfirmedPhotos, uid)
			have[uid] = true
			moved++
		}
	}
	for _, uid := range snap[sourceKey] {
		addPhoto(uid)
	}
	if src != nil {
		for _, uid := range src.ConfirmedPhotos {
			addPhoto(uid)
		}
		if tgt.ProfilePhotoUID == "" && src.ProfilePhotoUID != "" {
			tgt.ProfilePhotoUID = src.ProfilePhotoUID
		}
	}
	sort.Strings(tgt.ConfirmedPhotos)

	tombstone := ensureLabel(doc, sourceKey)
	tombstone.Hidden = true
	tombstone.MergedInto = targetKey
	tombstone.ConfirmedPhotos = nil
	tombstone.ProfilePhotoUID = ""

	log.Printf("[CLUSTERING] merged %q into %q (%d photos moved)", sourceKey, targetKey, moved)
	return e.labels.SaveLabels(ctx, tenant, doc)
}

// AddPhotoToClusters confirms a photo into several clusters at once.
// When the photo comes from an unnamed cluster this is a move, not a
// copy: the source loses the photo and gets an exclusion so it cannot
// come back.
func (e *Engine) AddPhotoToClusters(ctx context.Context, tenant, photoUID, sourceKey string, targetKeys []string) error {
	if len(targetKeys) == 0 {
		return fmt.Errorf("no target clusters given")
	}

	doc, err := e.labels.Labels(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading labels: %w", err)
	}

	for _, target := range targetKeys {
		if target == sourceKey {
			continue
		}
		label := ensureLabel(doc, target)
		if !containsString(label.ConfirmedPhotos, photoUID) {
			label.ConfirmedPhotos = append(label.ConfirmedPhotos, photoUID)
			sort.Strings(label.ConfirmedPhotos)
		}
	}

	src := doc[sourceKey]
	if sourceKey != "" && (src == nil || IsUnnamed(src.Name)) {
		if src != nil {
			src.ConfirmedPhotos = removeString(src.ConfirmedPhotos, photoUID)
		}
		if err := e.exclusions.AddExclusion(ctx, tenant, sourceKey, photoUID); err != nil {
			return fmt.Errorf("recording exclusion: %w", err)
		}

		snap, err := e.snapshots.Snapshot(ctx, tenant)
		if err != nil {
			return fmt.Errorf("loading snapshot: %w", err)
		}
		excls, err := e.exclusions.Exclusions(ctx, tenant)
		if err != nil {
			return fmt.Errorf("loading exclusions: %w", err)
		}
		if len(effectiveMembers(snap, doc, exclusionSet(excls), sourceKey)) == 0 {
			ensureLabel(doc, sourceKey).Hidden = true
			log.Printf("[CLUSTERING] hiding empty cluster %q", sourceKey)
		}
	}

	return e.labels.SaveLabels(ctx, tenant, doc)
}
