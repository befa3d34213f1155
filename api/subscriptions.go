package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/c360/i3xbridge/subscription"
	"github.com/c360/i3xbridge/types"
)

// sseKeepAliveInterval paces comment frames that hold idle SSE
// connections open through proxies.
const sseKeepAliveInterval = 30 * time.Second

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscription.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	info := s.subs.Create(req)
	if s.metrics != nil {
		s.metrics.Subscriptions.Inc()
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.subs.List())
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	info, err := s.subs.Get(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.subs.Delete(chi.URLParam(r, "subscriptionID")); err != nil {
		writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.Subscriptions.Dec()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegisterItems(w http.ResponseWriter, r *http.Request) {
	s.mutateItems(w, r, s.subs.Register)
}

func (s *Server) handleUnregisterItems(w http.ResponseWriter, r *http.Request) {
	s.mutateItems(w, r, s.subs.Unregister)
}

func (s *Server) mutateItems(w http.ResponseWriter, r *http.Request,
	op func(string, []string) (subscription.Info, error)) {
	var req elementIDsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	info, err := op(chi.URLParam(r, "subscriptionID"), req.ElementIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// syncRecord flattens an ObjectValue into the sync response shape.
type syncRecord struct {
	ElementID string `json:"elementId"`
	types.VQT
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	values, err := s.subs.Sync(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]syncRecord, len(values))
	for i, ov := range values {
		out[i] = syncRecord{ElementID: ov.ElementID, VQT: types.VQTFromValue(ov)}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStream serves one SSE consumer per subscription. Attaching
// displaces any previous consumer; a write failure or client close
// detaches the stream while the pending queue keeps absorbing changes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "subscriptionID")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorMessage(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	stream, gen, err := s.subs.AttachStream(id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer s.subs.DetachStream(id, gen)

	// The server-wide write timeout would sever long-lived streams.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	if s.metrics != nil {
		s.metrics.SSEConnections.Inc()
		defer s.metrics.SSEConnections.Dec()
	}

	keepAlive := time.NewTicker(sseKeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ov, open := <-stream:
			if !open {
				// Displaced by a newer consumer or the subscription was
				// deleted.
				return
			}
			frame, err := subscription.StreamFrame(ov)
			if err != nil {
				s.logger.Error("stream frame encode failed",
					"subscription_id", id,
					"element_id", ov.ElementID,
					"error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
