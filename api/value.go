package api

import (
	"net/http"

	"github.com/c360/i3xbridge/types"
)

type valueRequest struct {
	ElementIDs []string `json:"elementIds"`
	MaxDepth   *int     `json:"maxDepth,omitempty"`
}

// handleObjectsValue returns last-known values with the composition
// tree nested under each requested element. maxDepth 1 (the default)
// returns the elements alone, 0 lifts the bound, N returns N levels of
// components. Unknown ids produce explicit null entries.
func (s *Server) handleObjectsValue(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	maxDepth := 1
	if req.MaxDepth != nil && *req.MaxDepth >= 0 {
		maxDepth = *req.MaxDepth
	}

	out := make(map[string]any, len(req.ElementIDs))
	for _, id := range req.ElementIDs {
		if id == "" {
			continue
		}
		_, hasValue := s.objects.GetValue(id)
		_, hasInstance := s.objects.GetInstance(id)
		if !hasValue && !hasInstance {
			out[id] = nil
			continue
		}
		visited := make(map[string]struct{})
		out[id] = s.valueNode(id, 1, maxDepth, visited)
	}
	writeJSON(w, http.StatusOK, out)
}

// valueNode builds one element's entry: its VQT under "data" plus one
// key per component child. Component edges can form cycles through
// admin-added relationships, so each root keeps a visited set.
func (s *Server) valueNode(elementID string, depth, maxDepth int, visited map[string]struct{}) map[string]any {
	visited[elementID] = struct{}{}

	node := make(map[string]any, 2)
	if ov, ok := s.objects.GetValue(elementID); ok {
		node["data"] = []types.VQT{types.VQTFromValue(ov)}
	} else {
		node["data"] = []types.VQT{}
	}

	if maxDepth != 0 && depth >= maxDepth {
		return node
	}
	for _, childID := range s.objects.GetRelatedElementIDs(elementID, types.RelHasComponent) {
		if _, seen := visited[childID]; seen {
			continue
		}
		node[childID] = s.valueNode(childID, depth+1, maxDepth, visited)
	}
	return node
}
