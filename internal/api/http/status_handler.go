package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether the request store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QuestionCounter reports how many moderator questions are open
type QuestionCounter interface {
	Len() int
}

type healthResponse struct {
	Status           string `json:"status"`
	Database         string `json:"database"`
	PendingQuestions int    `json:"pending_questions"`
}

// StatusHandler serves liveness information for the bot process
type StatusHandler struct {
	db        Pinger
	questions QuestionCounter
	timeout   time.Duration
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db Pinger, questions QuestionCounter) *StatusHandler {
	return &StatusHandler{
		db:        db,
		questions: questions,
		timeout:   2 * time.Second,
	}
}

// HandleHealth handles GET /healthz
func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.questions != nil {
		resp.PendingQuestions = h.questions.Len()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// RegisterStatusRoutes registers the health and metrics endpoints
func RegisterStatusRoutes(router *mux.Router, db Pinger, questions QuestionCounter) {
	handler := NewStatusHandler(db, questions)
	router.HandleFunc("/healthz", handler.HandleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}
