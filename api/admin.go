package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/i3xbridge/errors"
	"github.com/c360/i3xbridge/ingest"
	"github.com/c360/i3xbridge/mapping"
	"github.com/c360/i3xbridge/store"
	"github.com/c360/i3xbridge/types"
)

// validateObjectType checks the admin payload, compiling any embedded
// JSON Schema so a broken document is rejected at write time instead of
// surfacing to every reader.
func validateObjectType(ot types.ObjectType) error {
	if ot.ElementID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("elementId is required"),
			"api", "validateObjectType", "validate object type")
	}
	if len(ot.Schema) > 0 {
		loader := gojsonschema.NewBytesLoader(ot.Schema)
		if _, err := gojsonschema.NewSchema(loader); err != nil {
			return errors.WrapInvalid(
				fmt.Errorf("schema for %q does not compile: %w", ot.ElementID, err),
				"api", "validateObjectType", "validate object type")
		}
	}
	return nil
}

func (s *Server) handleCreateObjectType(w http.ResponseWriter, r *http.Request) {
	var ot types.ObjectType
	if err := decodeBody(r, &ot); err != nil {
		writeError(w, err)
		return
	}
	if err := validateObjectType(ot); err != nil {
		writeError(w, err)
		return
	}
	if err := s.objects.RegisterObjectType(ot); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("object type created", "element_id", ot.ElementID)
	writeJSON(w, http.StatusCreated, ot)
}

func (s *Server) handleAdminListObjectTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"objectTypes": s.objects.GetAllObjectTypes(),
	})
}

func (s *Server) handleGetObjectType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "typeID")
	ot, ok := s.objects.GetObjectType(id)
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, fmt.Sprintf("object type %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, ot)
}

func (s *Server) handleUpdateObjectType(w http.ResponseWriter, r *http.Request) {
	var ot types.ObjectType
	if err := decodeBody(r, &ot); err != nil {
		writeError(w, err)
		return
	}
	ot.ElementID = chi.URLParam(r, "typeID")
	if err := validateObjectType(ot); err != nil {
		writeError(w, err)
		return
	}
	if err := s.objects.UpdateObjectType(ot); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("object type updated", "element_id", ot.ElementID)
	writeJSON(w, http.StatusOK, ot)
}

func (s *Server) handleDeleteObjectType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "typeID")
	if err := s.objects.DeleteObjectType(id); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("object type deleted", "element_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateMapping(w http.ResponseWriter, r *http.Request) {
	var rule mapping.Rule
	if err := decodeBody(r, &rule); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.Add(rule); err != nil {
		writeError(w, err)
		return
	}
	s.reconcileBrokerTopics()
	s.logger.Info("mapping rule created",
		"rule_id", rule.ID,
		"topic_pattern", rule.TopicPattern)
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleListMappings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"mappings": s.engine.List()})
}

func (s *Server) handleGetMapping(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ruleID")
	rule, ok := s.engine.Get(id)
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, fmt.Sprintf("mapping rule %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateMapping(w http.ResponseWriter, r *http.Request) {
	var rule mapping.Rule
	if err := decodeBody(r, &rule); err != nil {
		writeError(w, err)
		return
	}
	rule.ID = chi.URLParam(r, "ruleID")
	if _, err := s.engine.Update(rule); err != nil {
		writeError(w, err)
		return
	}
	s.reconcileBrokerTopics()
	s.logger.Info("mapping rule updated", "rule_id", rule.ID)
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ruleID")
	if _, err := s.engine.Remove(id); err != nil {
		writeError(w, err)
		return
	}
	s.reconcileBrokerTopics()
	s.logger.Info("mapping rule deleted", "rule_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// reconcileBrokerTopics diffs the engine's required subscription set
// against the broker's tracked set. Two rules can share one topic, so
// unsubscribing blindly on rule removal would starve the survivor.
func (s *Server) reconcileBrokerTopics() {
	if s.broker == nil {
		return
	}

	desired := make(map[string]struct{})
	for _, topic := range s.engine.SubscriptionTopics() {
		desired[topic] = struct{}{}
	}
	current := make(map[string]struct{})
	for _, topic := range s.broker.Topics() {
		current[topic] = struct{}{}
	}

	for topic := range desired {
		if _, ok := current[topic]; ok {
			continue
		}
		if err := s.broker.Subscribe(topic); err != nil {
			s.logger.Error("broker subscribe failed", "topic", topic, "error", err)
		}
	}
	for topic := range current {
		if _, ok := desired[topic]; ok {
			continue
		}
		if err := s.broker.Unsubscribe(topic); err != nil {
			s.logger.Error("broker unsubscribe failed", "topic", topic, "error", err)
		}
	}
}

type statsResponse struct {
	Store         store.Stats   `json:"store"`
	Pipeline      *ingest.Stats `json:"pipeline,omitempty"`
	Subscriptions int           `json:"subscriptions"`
	MQTT          *mqttStats    `json:"mqtt,omitempty"`
	Mappings      int           `json:"mappings"`
	UptimeSeconds float64       `json:"uptimeSeconds"`
}

type mqttStats struct {
	Status     string `json:"status"`
	Reconnects int64  `json:"reconnects"`
	Topics     int    `json:"topics"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{
		Store:         s.objects.Stats(),
		Subscriptions: len(s.subs.List()),
		Mappings:      s.engine.Len(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}
	if s.pipeline != nil {
		stats := s.pipeline.Stats()
		resp.Pipeline = &stats
	}
	if s.broker != nil {
		resp.MQTT = &mqttStats{
			Status:     s.broker.Status().String(),
			Reconnects: s.broker.Reconnects(),
			Topics:     len(s.broker.Topics()),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
