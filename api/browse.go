package api

import (
	"net/http"

	"github.com/c360/i3xbridge/types"
)

// objectSummary is the browse-surface projection of an instance, with
// hierarchy facts resolved from the relationship graph.
type objectSummary struct {
	ElementID     string `json:"elementId"`
	DisplayName   string `json:"displayName"`
	TypeID        string `json:"typeId"`
	ParentID      string `json:"parentId,omitempty"`
	HasChildren   bool   `json:"hasChildren"`
	IsComposition bool   `json:"isComposition"`
	NamespaceURI  string `json:"namespaceUri"`
}

func (s *Server) summarize(inst types.ObjectInstance) objectSummary {
	return objectSummary{
		ElementID:     inst.ElementID,
		DisplayName:   inst.DisplayName,
		TypeID:        inst.TypeID,
		ParentID:      s.objects.GetParentID(inst.ElementID),
		HasChildren:   s.objects.HasChildren(inst.ElementID),
		IsComposition: inst.IsComposition,
		NamespaceURI:  inst.NamespaceURI,
	}
}

func (s *Server) summarizeAll(instances []types.ObjectInstance) []objectSummary {
	out := make([]objectSummary, len(instances))
	for i, inst := range instances {
		out[i] = s.summarize(inst)
	}
	return out
}

type elementIDsRequest struct {
	ElementIDs []string `json:"elementIds"`
}

func (s *Server) handleListNamespaces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"namespaces": s.objects.GetAllNamespaces(),
	})
}

func (s *Server) handleListObjectTypes(w http.ResponseWriter, r *http.Request) {
	var out []types.ObjectType
	if uri := r.URL.Query().Get("namespaceUri"); uri != "" {
		out = s.objects.GetObjectTypesByNamespace(uri)
	} else {
		out = s.objects.GetAllObjectTypes()
	}
	writeJSON(w, http.StatusOK, map[string]any{"objectTypes": out})
}

func (s *Server) handleQueryObjectTypes(w http.ResponseWriter, r *http.Request) {
	var req elementIDsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"objectTypes": s.objects.GetObjectTypes(req.ElementIDs),
	})
}

func (s *Server) handleListRelationshipTypes(w http.ResponseWriter, r *http.Request) {
	var out []types.RelationshipType
	if uri := r.URL.Query().Get("namespaceUri"); uri != "" {
		out = s.objects.GetRelationshipTypesByNamespace(uri)
	} else {
		out = s.objects.GetAllRelationshipTypes()
	}
	writeJSON(w, http.StatusOK, map[string]any{"relationshipTypes": out})
}

func (s *Server) handleQueryRelationshipTypes(w http.ResponseWriter, r *http.Request) {
	var req elementIDsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"relationshipTypes": s.objects.GetRelationshipTypes(req.ElementIDs),
	})
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	namespaceURI := r.URL.Query().Get("namespaceUri")
	typeID := r.URL.Query().Get("typeId")

	var instances []types.ObjectInstance
	switch {
	case namespaceURI != "":
		instances = s.objects.GetInstancesByNamespace(namespaceURI)
		if typeID != "" {
			filtered := instances[:0]
			for _, inst := range instances {
				if inst.TypeID == typeID {
					filtered = append(filtered, inst)
				}
			}
			instances = filtered
		}
	case typeID != "":
		instances = s.objects.GetInstancesByType(typeID)
	default:
		instances = s.objects.GetAllInstances()
	}

	writeJSON(w, http.StatusOK, s.summarizeAll(instances))
}

func (s *Server) handleObjectsList(w http.ResponseWriter, r *http.Request) {
	var req elementIDsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.summarizeAll(s.objects.GetInstances(req.ElementIDs)))
}

type relatedRequest struct {
	ElementID          string `json:"elementId"`
	RelationshipTypeID string `json:"relationshipTypeId,omitempty"`
	Depth              int    `json:"depth,omitempty"`
	IncludeMetadata    bool   `json:"includeMetadata,omitempty"`
}

type relatedObject struct {
	objectSummary
	Value *types.VQT `json:"value,omitempty"`
}

// handleObjectsRelated walks the relationship graph breadth-first from
// one element. depth counts extra hops beyond the direct neighbours;
// the visited set keeps cyclic graphs terminating.
func (s *Server) handleObjectsRelated(w http.ResponseWriter, r *http.Request) {
	var req relatedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ElementID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "elementId is required")
		return
	}
	if req.Depth < 0 {
		req.Depth = 0
	}

	visited := map[string]struct{}{req.ElementID: {}}
	frontier := []string{req.ElementID}
	var found []string
	for hop := 0; hop <= req.Depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, related := range s.objects.GetRelatedElementIDs(id, req.RelationshipTypeID) {
				if _, seen := visited[related]; seen {
					continue
				}
				visited[related] = struct{}{}
				found = append(found, related)
				next = append(next, related)
			}
		}
		frontier = next
	}

	out := make([]relatedObject, 0, len(found))
	for _, id := range found {
		inst, ok := s.objects.GetInstance(id)
		if !ok {
			continue
		}
		entry := relatedObject{objectSummary: s.summarize(inst)}
		if req.IncludeMetadata {
			if ov, ok := s.objects.GetValue(id); ok {
				vqt := types.VQTFromValue(ov)
				entry.Value = &vqt
			}
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleObjectsHistory(w http.ResponseWriter, _ *http.Request) {
	writeErrorMessage(w, http.StatusNotImplemented, "history is not implemented")
}
