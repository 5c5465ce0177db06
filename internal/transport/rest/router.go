package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"interviewlab/internal/cache"
	"interviewlab/internal/model"
	"interviewlab/internal/repository"
	"interviewlab/internal/service"
	"interviewlab/internal/session"
	"interviewlab/internal/transport/rest/handler"
	"interviewlab/internal/transport/ws"
)

// Container holds all dependencies for the router.
type Container struct {
	Manager          *session.Manager
	RetentionService *service.RetentionService
	ExportService    *service.ExportService
	SessionRepo      repository.SessionRepo
	MetricsRepo      repository.MetricsRepo
	MetricsCache     cache.MetricsCache
	WSHandler        *ws.Handler
	DefaultPolicy    model.RetentionPolicy
}

// NewRouter creates the API router with all endpoints.
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	sessionHandler := handler.NewSessionHandler(c.Manager, c.SessionRepo, c.MetricsRepo, c.MetricsCache)
	retentionHandler := handler.NewRetentionHandler(c.RetentionService, c.ExportService, c.SessionRepo, c.DefaultPolicy)

	r.Use(corsMiddleware)

	v1 := r.PathPrefix("/v1").Subrouter()

	// Session lifecycle
	v1.HandleFunc("/sessions", sessionHandler.Create).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}", sessionHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}/start", sessionHandler.Start).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}/pause", sessionHandler.Pause).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}/resume", sessionHandler.Resume).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}/complete", sessionHandler.Complete).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}/abandon", sessionHandler.Abandon).Methods("POST", "OPTIONS")

	// Signal ingestion + response windows
	v1.HandleFunc("/sessions/{sessionId}/frames", sessionHandler.IngestFrame).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}/responses/start", sessionHandler.BeginResponse).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}/responses/end", sessionHandler.EndResponse).Methods("POST", "OPTIONS")

	// Metrics
	v1.HandleFunc("/sessions/{sessionId}/metrics/live", sessionHandler.LiveMetrics).Methods("GET", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}/metrics/history", sessionHandler.MetricsHistory).Methods("GET", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}/metrics", sessionHandler.FinalMetrics).Methods("GET", "OPTIONS")

	// Real-time push
	v1.HandleFunc("/ws/sessions/{sessionId}", c.WSHandler.SessionStream).Methods("GET")

	// Retention + export
	v1.HandleFunc("/owners/{ownerId}/retention/stats", retentionHandler.Stats).Methods("GET", "OPTIONS")
	v1.HandleFunc("/owners/{ownerId}/export", retentionHandler.Export).Methods("GET", "OPTIONS")
	v1.HandleFunc("/retention/cleanup", retentionHandler.Cleanup).Methods("POST", "OPTIONS")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
