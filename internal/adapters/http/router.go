package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
	"github.com/kirillkom/support-assistant/internal/observability/metrics"
)

const adminIDHeader = "X-Admin-Id"

type Router struct {
	query   ports.QueryService
	admin   ports.AdminService
	metrics *metrics.HTTPServerMetrics
	service string
	logger  *slog.Logger

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

type RouterOptions struct {
	Service        string
	Metrics        *metrics.HTTPServerMetrics
	Logger         *slog.Logger
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

func NewRouter(query ports.QueryService, admin ports.AdminService, options RouterOptions) *Router {
	service := options.Service
	if service == "" {
		service = "api"
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		query:          query,
		admin:          admin,
		metrics:        options.Metrics,
		service:        service,
		logger:         logger,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxInFlight:    options.MaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.handleQuery)
	mux.HandleFunc("/v1/admin/pause", rt.handlePause)
	mux.HandleFunc("/v1/admin/resume", rt.handleResume)
	mux.HandleFunc("/v1/admin/status", rt.handleStatus)
	mux.HandleFunc("/v1/admin/admins", rt.handleAddAdmin)
	mux.HandleFunc("/v1/kb/entries", rt.handleSubmitEntry)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.maxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.maxInFlight, 100*time.Millisecond)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, rt.onRateLimited)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}

	start := time.Now()
	answer, err := rt.query.Ask(r.Context(), req.Query)
	if err != nil {
		rt.writeError(r, w, "query", err)
		return
	}

	if rt.metrics != nil {
		switch answer.Source {
		case domain.SourcePaused:
			rt.metrics.RecordPausedReject(rt.service)
		case domain.SourceKnowledgeBase:
			rt.metrics.RecordQuery(rt.service, string(answer.Source), answer.Domain, answer.Score, time.Since(start))
		default:
			rt.metrics.RecordQuery(rt.service, string(answer.Source), "", -1, time.Since(start))
		}
	}

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) handlePause(w http.ResponseWriter, r *http.Request) {
	rt.adminCommand(w, r, "pause", func(adminID string) error {
		return rt.admin.Pause(r.Context(), adminID)
	})
}

func (rt *Router) handleResume(w http.ResponseWriter, r *http.Request) {
	rt.adminCommand(w, r, "resume", func(adminID string) error {
		return rt.admin.Resume(r.Context(), adminID)
	})
}

func (rt *Router) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}
	adminID, ok := rt.requireAdminHeader(w, r)
	if !ok {
		return
	}

	status, err := rt.admin.Status(r.Context(), adminID)
	if err != nil {
		rt.writeError(r, w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (rt *Router) handleAddAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}
	adminID, ok := rt.requireAdminHeader(w, r)
	if !ok {
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}

	if err := rt.admin.AddAdmin(r.Context(), req.ID, adminID); err != nil {
		rt.writeError(r, w, "add admin", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}
	adminID, ok := rt.requireAdminHeader(w, r)
	if !ok {
		return
	}

	var req domain.EntryUpsert
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}

	if err := rt.admin.SubmitEntry(r.Context(), req, adminID); err != nil {
		rt.writeError(r, w, "submit entry", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (rt *Router) adminCommand(w http.ResponseWriter, r *http.Request, operation string, run func(adminID string) error) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}
	adminID, ok := rt.requireAdminHeader(w, r)
	if !ok {
		return
	}

	if err := run(adminID); err != nil {
		rt.writeError(r, w, operation, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) requireAdminHeader(w http.ResponseWriter, r *http.Request) (string, bool) {
	adminID := strings.TrimSpace(r.Header.Get(adminIDHeader))
	if adminID == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody("admin identity required"))
		return "", false
	}
	return adminID, true
}

// writeError logs the cause with request context and replies with a generic
// message; internals never leak to clients.
func (rt *Router) writeError(r *http.Request, w http.ResponseWriter, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	rt.logger.Error("request_failed",
		"request_id", requestIDFromContext(r.Context()),
		"operation", operation,
		"status", status,
		"error", err,
	)
	writeJSON(w, status, errorBody(clientMessage(status)))
}

func (rt *Router) onRateLimited() {
	if rt.metrics != nil {
		rt.metrics.RecordRateLimited(rt.service)
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
