package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/domain/providers"
)

const defaultHeartbeatInterval = 30 * time.Second

// SSEHandler streams claim events to clients over Server-Sent Events
type SSEHandler struct {
	eventBus  providers.EventBus
	clients   map[string]map[chan *entities.InsuranceEvent]bool // channel -> clients
	mu        sync.RWMutex
	heartbeat time.Duration
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		clients:   make(map[string]map[chan *entities.InsuranceEvent]bool),
		heartbeat: defaultHeartbeatInterval,
	}
}

// StreamClaimUpdates handles GET /api/claims/{id}/stream
func (h *SSEHandler) StreamClaimUpdates(w http.ResponseWriter, r *http.Request) {
	claimID := r.PathValue("id")
	if claimID == "" {
		respondWithError(w, http.StatusBadRequest, "claim ID is required")
		return
	}
	h.stream(w, r, providers.GetClaimChannel(claimID), map[string]interface{}{
		"claim_id": claimID,
	}, nil)
}

// StreamAllClaims handles GET /api/claims/stream with optional provider_id, plan_id
// and patient_id filters
func (h *SSEHandler) StreamAllClaims(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	providerID, planID, patientID := query.Get("provider_id"), query.Get("plan_id"), query.Get("patient_id")

	match := func(event *entities.InsuranceEvent) bool {
		return (providerID == "" || event.ProviderID == providerID) &&
			(planID == "" || event.PlanID == planID) &&
			(patientID == "" || event.PatientID == patientID)
	}
	h.stream(w, r, providers.EventChannelClaimUpdates, map[string]interface{}{
		"provider_id": providerID,
		"plan_id":     planID,
		"patient_id":  patientID,
	}, match)
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request, channel string, hello map[string]interface{}, match func(*entities.InsuranceEvent) bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventChan, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("failed to subscribe to channel")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := make(chan *entities.InsuranceEvent, 50)
	h.registerClient(channel, clientChan)
	defer h.unregisterClient(channel, clientChan)

	hello["timestamp"] = time.Now().UTC()
	h.sendEvent(w, "connected", hello)
	flusher.Flush()

	go h.forwardEvents(r.Context(), eventChan, clientChan, match)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("channel", channel).Msg("client disconnected from claim stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now().UTC(),
			})
			flusher.Flush()
		case event := <-clientChan:
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

// forwardEvents copies bus events to the client, dropping them when the client lags
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.InsuranceEvent, clientChan chan<- *entities.InsuranceEvent, match func(*entities.InsuranceEvent) bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil || (match != nil && !match(event)) {
				continue
			}
			select {
			case clientChan <- event:
			default:
			}
		}
	}
}

func (h *SSEHandler) registerClient(channel string, clientChan chan *entities.InsuranceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[channel] == nil {
		h.clients[channel] = make(map[chan *entities.InsuranceEvent]bool)
	}
	h.clients[channel][clientChan] = true
	log.Debug().Str("channel", channel).Int("clients", len(h.clients[channel])).Msg("client registered")
}

func (h *SSEHandler) unregisterClient(channel string, clientChan chan *entities.InsuranceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[channel]; exists {
		delete(clients, clientChan)
		if len(clients) == 0 {
			delete(h.clients, channel)
		}
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
