package labelmatch_test

import (
	"testing"

	"github.com/voicecore/assistant/internal/pipeline/labelmatch"
	"github.com/voicecore/assistant/pkg/store"
)

func TestDedup_MergesNearDuplicateLabels(t *testing.T) {
	nodes := []store.MindMapNode{
		{ID: "1", Label: "Dragon"},
		{ID: "2", Label: "Dragons"},
		{ID: "3", Label: "Castle"},
	}
	edges := []store.MindMapEdge{
		{ID: "e1", Source: "1", Target: "3"},
		{ID: "e2", Source: "2", Target: "3"},
	}

	gotNodes, gotEdges := labelmatch.Dedup(nodes, edges, 0.85)
	if len(gotNodes) != 2 {
		t.Fatalf("expected 2 nodes after dedup, got %d", len(gotNodes))
	}
	for _, e := range gotEdges {
		if e.Source != "1" {
			t.Errorf("expected merged edge to point at surviving node 1, got %q", e.Source)
		}
	}
}

func TestDedup_DistinctLabelsUnaffected(t *testing.T) {
	nodes := []store.MindMapNode{
		{ID: "1", Label: "Dragon"},
		{ID: "2", Label: "Castle"},
	}
	gotNodes, _ := labelmatch.Dedup(nodes, nil, 0.90)
	if len(gotNodes) != 2 {
		t.Fatalf("expected 2 distinct nodes preserved, got %d", len(gotNodes))
	}
}

func TestDedup_DropsSelfLoopCreatedByMerge(t *testing.T) {
	nodes := []store.MindMapNode{
		{ID: "1", Label: "Dragon"},
		{ID: "2", Label: "Dragons"},
	}
	edges := []store.MindMapEdge{
		{ID: "e1", Source: "1", Target: "2"},
	}
	_, gotEdges := labelmatch.Dedup(nodes, edges, 0.85)
	if len(gotEdges) != 0 {
		t.Errorf("expected self-loop edge from merge to be dropped, got %d edges", len(gotEdges))
	}
}

func TestDedup_DefaultThresholdWhenZero(t *testing.T) {
	nodes := []store.MindMapNode{{ID: "1", Label: "Dragon"}, {ID: "2", Label: "Dungeon"}}
	got, _ := labelmatch.Dedup(nodes, nil, 0)
	if len(got) != 2 {
		t.Fatalf("expected distinct labels to remain separate with default threshold, got %d", len(got))
	}
}
