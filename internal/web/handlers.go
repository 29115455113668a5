package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"support-dojo/server/internal/engine"
	"support-dojo/server/internal/interfaces"
	"support-dojo/server/internal/models"
	"support-dojo/server/internal/persona"
	"support-dojo/server/internal/resilience"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Handlers is the outward HTTP surface over the generation pipeline. The
// orchestrator and the resilience layer are peers: a generation failure is
// translated into a fallback reply here, never surfaced to the trainee.
type Handlers struct {
	orchestrator *engine.Orchestrator
	tracker      *persona.Tracker
	guard        *resilience.Guard
	fallback     *resilience.Responder
	hub          *ExchangeHub
	log          zerolog.Logger
}

func NewHandlers(orchestrator *engine.Orchestrator, tracker *persona.Tracker, guard *resilience.Guard, fallback *resilience.Responder, hub *ExchangeHub, log zerolog.Logger) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		tracker:      tracker,
		guard:        guard,
		fallback:     fallback,
		hub:          hub,
		log:          log.With().Str("component", "web").Logger(),
	}
}

func NewRouter(h *Handlers, metricsHandler http.Handler, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Msg("request")
			next.ServeHTTP(w, req)
		})
	})
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/chat", func(r chi.Router) {
			r.Post("/respond", h.Respond)
			r.Post("/variations", h.Variations)
			r.Get("/stream", h.Stream)
		})
		r.Route("/persona", func(r chi.Router) {
			r.Post("/validate", h.Validate)
			r.Get("/{conversation_id}/analytics", h.Analytics)
		})
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type respondResponse struct {
	Reply       string                  `json:"reply"`
	Model       string                  `json:"model,omitempty"`
	TokensUsed  int                     `json:"tokens_used"`
	Quality     *models.ResponseQuality `json:"quality,omitempty"`
	WasFallback bool                    `json:"was_fallback"`
	Fallback    *models.FallbackReply   `json:"fallback,omitempty"`
}

// Respond produces the next customer message. Generation failure degrades
// to a persona-appropriate canned reply; the trainee always gets an answer.
func (h *Handlers) Respond(w http.ResponseWriter, r *http.Request) {
	var req engine.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConversationID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "conversation_id and message are required")
		return
	}

	completion, err := h.orchestrator.GenerateCustomerResponse(r.Context(), req)
	if err != nil {
		h.log.Warn().Err(err).Str("conversation", req.ConversationID).Msg("generation failed, serving fallback")
		reply := h.fallback.HandleFailure(err, req.ConversationID, req.Traits, req.Message)
		writeJSON(w, http.StatusOK, respondResponse{
			Reply:       reply.Text,
			WasFallback: true,
			Fallback:    reply,
		})
		return
	}

	writeJSON(w, http.StatusOK, respondResponse{
		Reply:      completion.Text,
		Model:      completion.Model,
		TokensUsed: completion.TokensUsed,
		Quality:    completion.Quality,
	})
}

type variationsRequest struct {
	ConversationID string               `json:"conversation_id"`
	Message        string               `json:"message"`
	Persona        models.PersonaTraits `json:"persona"`
	Count          int                  `json:"count"`
}

func (h *Handlers) Variations(w http.ResponseWriter, r *http.Request) {
	var req variationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConversationID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "conversation_id and message are required")
		return
	}
	if req.Count <= 0 || req.Count > 10 {
		req.Count = 3
	}

	variations, err := h.orchestrator.GenerateVariations(r.Context(), req.ConversationID, req.Message, req.Persona, req.Count)
	if err != nil {
		h.log.Warn().Err(err).Str("conversation", req.ConversationID).Msg("variation generation failed")
		writeError(w, http.StatusBadGateway, "variation generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"variations": variations})
}

type validateRequest struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
	Message        string `json:"message"`
}

func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConversationID == "" || req.Reply == "" {
		writeError(w, http.StatusBadRequest, "conversation_id and reply are required")
		return
	}

	result, err := h.tracker.Validate(r.Context(), req.ConversationID, req.Reply, req.Message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "validation failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversation_id")

	analytics, err := h.tracker.Analytics(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no persona memory for conversation")
			return
		}
		writeError(w, http.StatusInternalServerError, "analytics unavailable")
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.guard.Health()
	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"service": "support-dojo",
		"health":  health,
	})
}

// Stream upgrades the connection and registers an exchange observer.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "stream hub not running")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		ID:   newClientID(),
		Conn: conn,
		Send: make(chan []byte, 64),
		hub:  h.hub,
	}
	h.hub.register <- client
	go client.readPump()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
