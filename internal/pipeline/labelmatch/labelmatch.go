// Package labelmatch merges near-duplicate mind-map node labels (e.g.
// "Dragon"/"Dragons") using Jaro-Winkler similarity for graph-label
// normalization (§12).
package labelmatch

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/voicecore/assistant/pkg/store"
)

// DefaultSimilarityThreshold is the minimum Jaro-Winkler score at which two
// labels are considered the same concept.
const DefaultSimilarityThreshold = 0.90

// Dedup merges nodes whose labels are near-duplicates under Jaro-Winkler
// similarity (case-insensitive) at or above threshold, keeping the first
// node encountered for each cluster and rewriting edges that referenced a
// merged-away node id to point at the surviving node id.
func Dedup(nodes []store.MindMapNode, edges []store.MindMapEdge, threshold float64) ([]store.MindMapNode, []store.MindMapEdge) {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	idRemap := make(map[string]string, len(nodes))
	var kept []store.MindMapNode

	for _, n := range nodes {
		merged := false
		for _, k := range kept {
			if matchr.JaroWinkler(strings.ToLower(n.Label), strings.ToLower(k.Label), false) >= threshold {
				idRemap[n.ID] = k.ID
				merged = true
				break
			}
		}
		if !merged {
			idRemap[n.ID] = n.ID
			kept = append(kept, n)
		}
	}

	outEdges := make([]store.MindMapEdge, 0, len(edges))
	for _, e := range edges {
		src, ok := idRemap[e.Source]
		if !ok {
			src = e.Source
		}
		dst, ok := idRemap[e.Target]
		if !ok {
			dst = e.Target
		}
		if src == dst {
			continue
		}
		e.Source, e.Target = src, dst
		outEdges = append(outEdges, e)
	}

	return kept, outEdges
}
