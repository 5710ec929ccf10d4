// Package deviceapi wires HTTP device-slot endpoints to the session service.
package deviceapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"devicegate/cmd/internal/device/session"
	"devicegate/cmd/internal/identity"

	"github.com/prometheus/client_golang/prometheus"
)

// Handler serves the four boundary operations: register, force_logout,
// list sessions, and the gated private resource.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	resolver identity.Resolver
	sessions *session.Service
	metrics  *metrics
}

// NewHandler constructs a device API handler. Metrics are registered on reg;
// pass a dedicated registry to keep test handlers isolated.
func NewHandler(log *slog.Logger, cfg Config, resolver identity.Resolver, sessions *session.Service, reg prometheus.Registerer) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:      log,
		cfg:      cfg,
		resolver: resolver,
		sessions: sessions,
		metrics:  newMetrics(reg),
	}
}

// Register wires device routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/register", h.handleRegister)
	mux.HandleFunc("/api/force_logout", h.handleForceLogout)
	mux.HandleFunc("/api/sessions", h.handleListSessions)
	mux.HandleFunc("/api/private", h.handlePrivate)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	subject, _, ok := h.requireSubject(w, r)
	if !ok {
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "device_id is required")
		return
	}

	// limit < 0 means "use the configured default".
	limit := -1
	if raw := r.URL.Query().Get("limit"); raw != "" && h.cfg.AllowLimitOverride {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	now := time.Now().UTC()
	outcome, active, err := h.sessions.Register(r.Context(), subject, deviceID, strings.TrimSpace(req.DeviceName), limit, now)
	if err != nil {
		h.log.Error("register.fail", "err", err, "subject", subject)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.metrics.registrations.WithLabelValues(string(outcome)).Inc()

	if outcome == session.OutcomeLimitReached {
		h.log.Info("register.limit_reached", "subject", subject, "active", len(active))
		sessions := make([]activeSession, 0, len(active))
		for _, row := range active {
			sessions = append(sessions, toActiveSession(row))
		}
		writeJSON(w, http.StatusConflict, limitReachedResponse{
			Status:   "limit_reached",
			Sessions: sessions,
		})
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{Status: "ok", Action: string(outcome)})
}

func (h *Handler) handleForceLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	subject, _, ok := h.requireSubject(w, r)
	if !ok {
		return
	}

	var req forceLogoutRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.LogoutSessionID == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "logout_session_id is required")
		return
	}

	err := h.sessions.ForceLogout(r.Context(), subject, *req.LogoutSessionID)
	switch {
	case errors.Is(err, session.ErrInvalidSessionID):
		writeError(w, http.StatusBadRequest, "invalid_request", "logout_session_id must be a positive integer")
		return
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	case err != nil:
		h.log.Error("force_logout.fail", "err", err, "subject", subject)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.metrics.revocations.Inc()
	h.log.Info("force_logout.ok", "subject", subject, "session_id", *req.LogoutSessionID)
	writeJSON(w, http.StatusOK, forceLogoutResponse{Status: "ok", Message: "session revoked"})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	subject, _, ok := h.requireSubject(w, r)
	if !ok {
		return
	}

	rows, err := h.sessions.List(r.Context(), subject)
	if err != nil {
		h.log.Error("sessions.list.fail", "err", err, "subject", subject)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]sessionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSessionDTO(row))
	}
	writeJSON(w, http.StatusOK, listSessionsResponse{Status: "ok", Sessions: out})
}

func (h *Handler) handlePrivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	subject, claims, ok := h.requireSubject(w, r)
	if !ok {
		return
	}

	// The gate keys on the device the client claims to be; an absent header
	// is indistinguishable from an unregistered device.
	deviceID := strings.TrimSpace(r.Header.Get("X-Device-Id"))

	err := h.sessions.Check(r.Context(), subject, deviceID)
	switch {
	case errors.Is(err, session.ErrNotRegistered):
		h.metrics.gateDenials.WithLabelValues("not_registered").Inc()
		writeError(w, http.StatusUnauthorized, "not_registered", "session not registered")
		return
	case errors.Is(err, session.ErrLoggedOutElsewhere):
		h.metrics.gateDenials.WithLabelValues("logged_out_elsewhere").Inc()
		writeError(w, http.StatusUnauthorized, "logged_out_elsewhere", "logged out by another device")
		return
	case err != nil:
		h.log.Error("private.gate.fail", "err", err, "subject", subject)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	// Claims come from the resolver's output, never from the store.
	writeJSON(w, http.StatusOK, privateResponse{
		FullName: identity.StringClaim(claims, "name", "Demo User"),
		Phone:    identity.StringClaim(claims, "phone_number", "N/A"),
	})
}

// ---- helpers ----

func (h *Handler) requireSubject(w http.ResponseWriter, r *http.Request) (string, identity.Claims, bool) {
	credential := bearerToken(r)
	if credential == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
		return "", nil, false
	}

	subject, claims, err := h.resolver.Resolve(r.Context(), credential)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
		return "", nil, false
	}
	return subject, claims, true
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
