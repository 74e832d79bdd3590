package cluster

import (
	"context"
	"testing"

	"github.com/kozaktomas/face-engine/internal/database"
	"github.com/kozaktomas/face-engine/internal/database/memory"
)

// seedTwoClusters rebuilds a library with two well-separated clusters
// and returns their keys: one holding p1/p2, the other p3/p4.
func seedTwoClusters(t *testing.T, ctx context.Context, store *memory.Store, engine *Engine) (string, string) {
	t.Helper()
	store.ReplaceFaces(ctx, testTenant, "p1", []database.StoredFace{face("p1", 0, 0, 0.9)})
	store.ReplaceFaces(ctx, testTenant, "p2", []database.StoredFace{face("p2", 0, 5, 0.8)})
	store.ReplaceFaces(ctx, testTenant, "p3", []database.StoredFace{face("p3", 0, 120, 0.9)})
	store.ReplaceFaces(ctx, testTenant, "p4", []database.StoredFace{face("p4", 0, 125, 0.8)})

	persons, err := engine.Rebuild(ctx, testTenant)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if len(persons) != 2 {
		t.Fatalf("Expected 2 clusters, got %d", len(persons))
	}
	first := findByMember(persons, "p1")
	second := findByMember(persons, "p3")
	if first == nil || second == nil {
		t.Fatal("Seed clusters missing expected members")
	}
	return first.Key, second.Key
}

func TestRenameAndSetHidden(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newTestEngine(store)
	keyA, _ := seedTwoClusters(t, ctx, store, engine)

	if err := engine.Rename(ctx, testTenant, keyA, "Alice"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if err := engine.SetHidden(ctx, testTenant, keyA, true); err != nil {
		t.Fatalf("SetHidden failed: %v", err)
	}

	persons, _ := engine.Rebuild(ctx, testTenant)
	p := findByMember(persons, "p1")
	if p == nil {
		t.Fatal("Cluster disappeared after rename")
	}
	if p.Name != "Alice" {
		t.Errorf("Expected name 'Alice', got %q", p.Name)
	}
	if !p.Hidden {
		t.Error("Expected cluster to be hidden")
	}
}

func TestSetRotationValidation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newTestEngine(store)
	keyA, _ := seedTwoClusters(t, ctx, store, engine)

	if err := engine.SetRotation(ctx, testTenant, keyA, 45); err == nil {
		t.Error("Expected error for 45 degree rotation")
	}
	if err := engine.SetRotation(ctx, testTenant, keyA, 270); err != nil {
		t.Errorf("Expected 270 to be accepted, got %v", err)
	}

	doc, _ := store.Labels(ctx, testTenant)
	if doc[keyA].RotationOverride != 270 {
		t.Errorf("Expected rotation 270, got %d", doc[keyA].RotationOverride)
	}
}

func TestMergeClusters(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newTestEngine(store)
	keyA, keyB := seedTwoClusters(t, ctx, store, engine)
	engine.Rename(ctx, testTenant, keyB, "Bob")

	if err := engine.MergeClusters(ctx, testTenant, keyB, keyA, ""); err != nil {
		t.Fatalf("MergeClusters failed: %v", err)
	}

	doc, _ := store.Labels(ctx, testTenant)
	tombstone := doc[keyB]
	if tombstone == nil || !tombstone.Hidden || tombstone.MergedInto != keyA {
		t.Fatalf("Expected hidden tombstone pointing at %q, got %+v", keyA, tombstone)
	}
	// source had the real name, so the merged cluster adopts it
	if doc[keyA].Name != "Bob" {
		t.Errorf("Expected merged cluster named 'Bob', got %q", doc[keyA].Name)
	}
	for _, uid := range []string{"p3", "p4"} {
		if !containsString(doc[keyA].ConfirmedPhotos, uid) {
			t.Errorf("Expected %s confirmed on merge target", uid)
		}
	}

	persons, err := engine.Rebuild(ctx, testTenant)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	var visible []Person
	for _, p := range persons {
		if !p.Hidden {
			visible = append(visible, p)
		}
	}
	if len(visible) != 1 {
		t.Fatalf("Expected 1 visible cluster after merge, got %d", len(visible))
	}
	if len(visible[0].Members) != 4 {
		t.Errorf("Expected 4 members after merge, got %d", len(visible[0].Members))
	}

	if err := engine.MergeClusters(ctx, testTenant, keyA, keyA, ""); err == nil {
		t.Error("Expected error merging a cluster into itself")
	}
}

func TestMergeKeepsExplicitName(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newTestEngine(store)
	keyA, keyB := seedTwoClusters(t, ctx, store, engine)
	engine.Rename(ctx, testTenant, keyA, "Alice")
	engine.Rename(ctx, testTenant, keyB, "Bob")

	if err := engine.MergeClusters(ctx, testTenant, keyB, keyA, "Alice B."); err != nil {
		t.Fatalf("MergeClusters failed: %v", err)
	}

	doc, _ := store.Labels(ctx, testTenant)
	if doc[keyA].Name != "Alice B." {
		t.Errorf("Expected explicit name to win, got %q", doc[keyA].Name)
	}
}

func TestAddPhotoToClustersFromNamedSource(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newTestEngine(store)
	keyA, keyB := seedTwoClusters(t, ctx, store, engine)
	engine.Rename(ctx, testTenant, keyA, "Alice")

	// named source: the photo is shared, not moved
	if err := engine.AddPhotoToClusters(ctx, testTenant, "p1", keyA, []string{keyB}); err != nil {
		t.Fatalf("AddPhotoToClusters failed: %v", err)
	}

	doc, _ := store.Labels(ctx, testTenant)
	if !containsString(doc[keyB].ConfirmedPhotos, "p1") {
		t.Error("Expected p1 confirmed on target cluster")
	}
	excls, _ := store.Exclusions(ctx, testTenant)
	if len(excls) != 0 {
		t.Errorf("Named source must not get an exclusion, got %v", excls)
	}
}

func TestAddPhotoToClustersFromUnnamedSourceMoves(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newTestEngine(store)
	keyA, keyB := seedTwoClusters(t, ctx, store, engine)
	engine.Rename(ctx, testTenant, keyB, "Bob")

	// keyA was never named, so adding elsewhere is a move
	if err := engine.AddPhotoToClusters(ctx, testTenant, "p1", keyA, []string{keyB}); err != nil {
		t.Fatalf("AddPhotoToClusters failed: %v", err)
	}

	excls, _ := store.Exclusions(ctx, testTenant)
	foundSource := false
	for _, ex := range excls {
		if ex.ClusterKey == keyA && ex.PhotoUID == "p1" {
			foundSource = true
		}
	}
	if !foundSource {
		t.Error("Expected exclusion on the unnamed source cluster")
	}

	persons, _ := engine.Rebuild(ctx, testTenant)
	p := findByMember(persons, "p1")
	if p == nil || p.Key != keyB {
		t.Errorf("Expected p1 to live only in %q now", keyB)
	}
}

func TestRemovePhotoReplacesProfile(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newTestEngine(store)
	keyA, _ := seedTwoClusters(t, ctx, store, engine)

	engine.SetProfilePhoto(ctx, testTenant, keyA, "p1")
	if err := engine.RemovePhoto(ctx, testTenant, keyA, "p1"); err != nil {
		t.Fatalf("RemovePhoto failed: %v", err)
	}

	doc, _ := store.Labels(ctx, testTenant)
	if doc[keyA].ProfilePhotoUID != "p2" {
		t.Errorf("Expected profile replaced by p2, got %q", doc[keyA].ProfilePhotoUID)
	}
}

func TestRemoveLastPhotoHidesCluster(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newTestEngine(store)

	store.ReplaceFaces(ctx, testTenant, "p1", []database.StoredFace{face("p1", 0, 0, 0.9)})
	persons, _ := engine.Rebuild(ctx, testTenant)
	key := persons[0].Key

	if err := engine.RemovePhoto(ctx, testTenant, key, "p1"); err != nil {
		t.Fatalf("RemovePhoto failed: %v", err)
	}

	doc, _ := store.Labels(ctx, testTenant)
	if doc[key] == nil || !doc[key].Hidden {
		t.Error("Expected emptied cluster to be hidden")
	}
}

func TestRemovePhotoExcludesFromSiblingUnnamedClusters(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newTestEngine(store)

	// p5 carries two different faces, so it lands in both clusters
	store.ReplaceFaces(ctx, testTenant, "p1", []database.StoredFace{face("p1", 0, 0, 0.9)})
	store.ReplaceFaces(ctx, testTenant, "p6", []database.StoredFace{face("p6", 0, 122, 0.9)})
	store.ReplaceFaces(ctx, testTenant, "p5", []database.StoredFace{
		face("p5", 0, 2, 0.8),
		face("p5", 1, 120, 0.7),
	})

	persons, _ := engine.Rebuild(ctx, testTenant)
	if len(persons) != 2 {
		t.Fatalf("Expected 2 clusters, got %d", len(persons))
	}
	first := findByMember(persons, "p1")

	if err := engine.RemovePhoto(ctx, testTenant, first.Key, "p5"); err != nil {
		t.Fatalf("RemovePhoto failed: %v", err)
	}

	// the rejection propagates to the other unnamed cluster too
	excls, _ := store.Exclusions(ctx, testTenant)
	if len(excls) != 2 {
		t.Fatalf("Expected exclusions in both unnamed clusters, got %v", excls)
	}

	persons, _ = engine.Rebuild(ctx, testTenant)
	if p := findByMember(persons, "p5"); p != nil {
		t.Errorf("Removed photo resurfaced in cluster %q", p.Key)
	}
}
