// Package debugserver exposes a loopback-only HTTP surface for health
// checks and stat dumps, built the way the teacher's internal/web.Server
// wires a chi router (spec §6: an operator-facing debug endpoint
// alongside the public TCP listener and admin UDS).
package debugserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ssuji15/wolf/internal/scheduler"
	"github.com/ssuji15/wolf/internal/session"
)

// Server is the loopback debug HTTP surface. It never binds to a
// non-loopback address; operators reach it via SSH port-forward or a
// sidecar, never directly from clients.
type Server struct {
	router    chi.Router
	roster    *session.Roster
	scheduler *scheduler.Scheduler
	startedAt time.Time
}

// New builds the debug server's router. startedAt feeds the uptime
// field in /debug/stats (spec §3: "Start time of the process").
func New(roster *session.Roster, sched *scheduler.Scheduler, startedAt time.Time) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		roster:    roster,
		scheduler: sched,
		startedAt: startedAt,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "debugserver")
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/debug/stats", s.handleStats)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statsResponse struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	TotalClients  uint64             `json:"total_clients"`
	ActiveClients int                `json:"active_clients"`
	Jobs          scheduler.Stats    `json:"jobs"`
	Clients       []session.Snapshot `json:"clients"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		TotalClients:  s.roster.TotalAccepted(),
		ActiveClients: s.roster.ActiveCount(),
		Jobs:          s.scheduler.Stats(),
		Clients:       s.roster.Snapshots(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
