package relay

import "testing"

func TestTracker_InitialStateIsNovel(t *testing.T) {
	tr := NewTracker()

	if !tr.IsNovel("100") {
		t.Error("first id should be novel")
	}
	// Novelty holds regardless of id value, even empty.
	if !tr.IsNovel("") {
		t.Error("empty id should be novel before any delivery")
	}
	if _, ok := tr.LastID(); ok {
		t.Error("LastID should report no id before any delivery")
	}
}

func TestTracker_MarkDelivered(t *testing.T) {
	tr := NewTracker()
	tr.MarkDelivered("100")

	if tr.IsNovel("100") {
		t.Error("delivered id should not be novel")
	}
	if !tr.IsNovel("101") {
		t.Error("different id should be novel")
	}

	id, ok := tr.LastID()
	if !ok || id != "100" {
		t.Errorf("LastID = %q, %v; want 100, true", id, ok)
	}

	// Marking is unconditional: it overwrites the previous id.
	tr.MarkDelivered("101")
	if tr.IsNovel("101") {
		t.Error("101 should not be novel after second mark")
	}
	if !tr.IsNovel("100") {
		t.Error("100 should be novel again after 101 was delivered")
	}
}
