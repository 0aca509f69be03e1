package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/voicecore/assistant/pkg/store"
)

// ErrInvalidMindMap is returned when a model response cannot be parsed or
// validated as a mind map, even after one repair attempt (§7).
var ErrInvalidMindMap = fmt.Errorf("pipeline: invalid mind map")

// mindMapDoc is the wire shape the LLM is asked to emit: { nodes, edges }.
type mindMapDoc struct {
	Nodes []store.MindMapNode `json:"nodes"`
	Edges []store.MindMapEdge `json:"edges"`
}

// extractBraceBalanced finds the first '{' and returns the substring up to
// its matching closing brace, scanning string literals so braces inside
// quoted text don't throw off the balance count. This is the "extract the
// largest brace-balanced substring first" algorithm from §4.6, grounded on
// llm_service.py's _preprocess_json_string (§12).
func extractBraceBalanced(raw string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range raw {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("%w: no brace-balanced JSON object found", ErrInvalidMindMap)
}

// parseAndValidateMindMap extracts, parses, and validates raw as a mind-map
// document per §4.6 step 5's invariants: every node has a non-empty id and
// label, node ids are unique, every edge has a unique id, and source/target
// reference node ids present in the map.
func parseAndValidateMindMap(raw string) (mindMapDoc, error) {
	extracted, err := extractBraceBalanced(raw)
	if err != nil {
		return mindMapDoc{}, err
	}

	var doc mindMapDoc
	if err := json.Unmarshal([]byte(extracted), &doc); err != nil {
		return mindMapDoc{}, fmt.Errorf("%w: %w", ErrInvalidMindMap, err)
	}

	if err := validateMindMap(doc); err != nil {
		return mindMapDoc{}, err
	}
	return doc, nil
}

func validateMindMap(doc mindMapDoc) error {
	nodeIDs := make(map[string]struct{}, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if n.ID == "" || n.Label == "" {
			return fmt.Errorf("%w: node missing id or label", ErrInvalidMindMap)
		}
		if _, dup := nodeIDs[n.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidMindMap, n.ID)
		}
		nodeIDs[n.ID] = struct{}{}
	}

	edgeIDs := make(map[string]struct{}, len(doc.Edges))
	for _, e := range doc.Edges {
		if e.ID == "" {
			return fmt.Errorf("%w: edge missing id", ErrInvalidMindMap)
		}
		if _, dup := edgeIDs[e.ID]; dup {
			return fmt.Errorf("%w: duplicate edge id %q", ErrInvalidMindMap, e.ID)
		}
		edgeIDs[e.ID] = struct{}{}
		if _, ok := nodeIDs[e.Source]; !ok {
			return fmt.Errorf("%w: edge %q source %q not in node set", ErrInvalidMindMap, e.ID, e.Source)
		}
		if _, ok := nodeIDs[e.Target]; !ok {
			return fmt.Errorf("%w: edge %q target %q not in node set", ErrInvalidMindMap, e.ID, e.Target)
		}
	}

	return nil
}

// repairPrompt composes a repair request quoting the offending raw output
// (§4.6 "re-invoke the LLM with a repair prompt that quotes the offending
// raw output").
func repairPrompt(raw string) string {
	return fmt.Sprintf(
		"The following response was supposed to be a JSON object with shape "+
			"{\"nodes\": [...], \"edges\": [...]} but failed to parse or validate. "+
			"Return ONLY the corrected JSON object, with no surrounding text.\n\n"+
			"Offending response:\n%s", raw,
	)
}
