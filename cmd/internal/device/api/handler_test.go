package deviceapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"devicegate/cmd/internal/device/session"
	"devicegate/cmd/internal/identity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const testHMACSecret = "handler-test-secret"

type testEnv struct {
	mux   *http.ServeMux
	store *session.MemoryStore
}

func newTestEnv(t *testing.T, limit int) *testEnv {
	t.Helper()

	resolver, err := identity.NewJWTResolver(identity.Config{
		HMACSecret: testHMACSecret,
		ClockSkew:  30 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewJWTResolver: %v", err)
	}

	store := session.NewMemoryStore()
	svc := session.NewService(session.Config{
		DefaultLimit: limit,
		Retention:    30 * 24 * time.Hour,
	}, store)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := Config{MaxBodyBytes: 1 << 20, AllowLimitOverride: true}
	h := NewHandler(log, cfg, resolver, svc, prometheus.NewRegistry())

	mux := http.NewServeMux()
	h.Register(mux)
	return &testEnv{mux: mux, store: store}
}

func bearerFor(t *testing.T, subject string, extra map[string]any) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testHMACSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func (e *testEnv) do(t *testing.T, method, target, auth, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRegister_NewAndRepeatDevice(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 3)
	auth := bearerFor(t, "alice", nil)

	rec := env.do(t, http.MethodPost, "/api/register", auth, `{"device_id":"d1","device_name":"Pixel"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[map[string]string](t, rec)
	if resp["status"] != "ok" || resp["action"] != "registered" {
		t.Fatalf("unexpected response: %v", resp)
	}

	rec = env.do(t, http.MethodPost, "/api/register", auth, `{"device_id":"d1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat status = %d", rec.Code)
	}
	resp = decodeBody[map[string]string](t, rec)
	if resp["action"] != "already_registered" {
		t.Fatalf("repeat action = %q", resp["action"])
	}
}

func TestRegister_LimitReachedPayload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	auth := bearerFor(t, "alice", nil)

	for _, dev := range []string{"d1", "d2"} {
		rec := env.do(t, http.MethodPost, "/api/register", auth, `{"device_id":"`+dev+`"}`, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("register %s: status %d", dev, rec.Code)
		}
	}

	rec := env.do(t, http.MethodPost, "/api/register", auth, `{"device_id":"d3"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	var resp struct {
		Status   string `json:"status"`
		Sessions []struct {
			ID        int64  `json:"id"`
			DeviceID  string `json:"device_id"`
			CreatedAt int64  `json:"created_at"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "limit_reached" {
		t.Fatalf("status field = %q", resp.Status)
	}
	if len(resp.Sessions) != 2 || resp.Sessions[0].DeviceID != "d1" || resp.Sessions[1].DeviceID != "d2" {
		t.Fatalf("unexpected sessions: %+v", resp.Sessions)
	}
	for _, s := range resp.Sessions {
		if s.ID == 0 || s.CreatedAt == 0 {
			t.Fatalf("session missing id or created_at: %+v", s)
		}
	}
}

func TestRegister_LimitQueryOverride(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 3)
	auth := bearerFor(t, "alice", nil)

	rec := env.do(t, http.MethodPost, "/api/register?limit=1", auth, `{"device_id":"d1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("register d1: status %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/register?limit=1", auth, `{"device_id":"d2"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("register d2 with limit=1: status %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/register?limit=nope", auth, `{"device_id":"d3"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: status %d, want 400", rec.Code)
	}
}

func TestRegister_BadRequests(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 3)
	auth := bearerFor(t, "alice", nil)

	if rec := env.do(t, http.MethodGet, "/api/register", auth, "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET register: status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/register", auth, `{"device_id":""}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty device_id: status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/register", auth, `not json`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/register", auth, `{"device_id":"d1","bogus":true}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/register", "", `{"device_id":"d1"}`, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no auth: status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/register", "Bearer garbage", `{"device_id":"d1"}`, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", rec.Code)
	}
}

func TestForceLogout_Flow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 3)
	aliceAuth := bearerFor(t, "alice", nil)
	bobAuth := bearerFor(t, "bob", nil)

	env.do(t, http.MethodPost, "/api/register", aliceAuth, `{"device_id":"d1"}`, nil)

	var list struct {
		Sessions []struct {
			ID int64 `json:"id"`
		} `json:"sessions"`
	}
	rec := env.do(t, http.MethodGet, "/api/sessions", aliceAuth, "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list.Sessions) != 1 {
		t.Fatalf("list sessions: err=%v body=%s", err, rec.Body.String())
	}
	id := list.Sessions[0].ID

	// Missing id field.
	if rec := env.do(t, http.MethodPost, "/api/force_logout", aliceAuth, `{}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing id: status %d", rec.Code)
	}
	// Non-positive id.
	if rec := env.do(t, http.MethodPost, "/api/force_logout", aliceAuth, `{"logout_session_id":0}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("zero id: status %d", rec.Code)
	}
	// Unknown id.
	if rec := env.do(t, http.MethodPost, "/api/force_logout", aliceAuth, `{"logout_session_id":9999}`, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status %d", rec.Code)
	}
	// Another subject revoking alice's session looks like an unknown id.
	if rec := env.do(t, http.MethodPost, "/api/force_logout", bobAuth, `{"logout_session_id":`+jsonInt(id)+`}`, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign id: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/force_logout", aliceAuth, `{"logout_session_id":`+jsonInt(id)+`}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke own: status %d body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[map[string]string](t, rec)
	if resp["status"] != "ok" || resp["message"] != "session revoked" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestListSessions_IncludesRevoked(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 3)
	auth := bearerFor(t, "alice", nil)

	env.do(t, http.MethodPost, "/api/register", auth, `{"device_id":"d1"}`, nil)
	env.do(t, http.MethodPost, "/api/register", auth, `{"device_id":"d2"}`, nil)

	var list struct {
		Status   string `json:"status"`
		Sessions []struct {
			ID       int64  `json:"id"`
			DeviceID string `json:"device_id"`
			LastSeen int64  `json:"last_seen"`
			Revoked  bool   `json:"revoked"`
		} `json:"sessions"`
	}
	rec := env.do(t, http.MethodGet, "/api/sessions", auth, "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}

	env.do(t, http.MethodPost, "/api/force_logout", auth, `{"logout_session_id":`+jsonInt(list.Sessions[0].ID)+`}`, nil)

	rec = env.do(t, http.MethodGet, "/api/sessions", auth, "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode after revoke: %v", err)
	}
	if list.Status != "ok" || len(list.Sessions) != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if !list.Sessions[0].Revoked || list.Sessions[1].Revoked {
		t.Fatalf("revoked flags wrong: %+v", list.Sessions)
	}
	if list.Sessions[0].LastSeen == 0 {
		t.Fatalf("last_seen missing")
	}
}

func TestPrivate_GateAndClaims(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 3)
	auth := bearerFor(t, "alice", map[string]any{"name": "Ada Lovelace", "phone_number": "+1-555-0100"})

	// No device header: gate rejects as unregistered.
	rec := env.do(t, http.MethodGet, "/api/private", auth, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no device header: status %d", rec.Code)
	}
	errResp := decodeBody[struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}](t, rec)
	if errResp.Error.Code != "not_registered" || errResp.Error.Message != "session not registered" {
		t.Fatalf("unexpected error payload: %+v", errResp)
	}

	env.do(t, http.MethodPost, "/api/register", auth, `{"device_id":"d1"}`, nil)

	rec = env.do(t, http.MethodGet, "/api/private", auth, "", map[string]string{"X-Device-Id": "d1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("registered device: status %d body %s", rec.Code, rec.Body.String())
	}
	priv := decodeBody[map[string]string](t, rec)
	if priv["full_name"] != "Ada Lovelace" || priv["phone"] != "+1-555-0100" {
		t.Fatalf("unexpected claims: %v", priv)
	}

	// Revoke and hit the gate again.
	var list struct {
		Sessions []struct {
			ID int64 `json:"id"`
		} `json:"sessions"`
	}
	rec = env.do(t, http.MethodGet, "/api/sessions", auth, "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list.Sessions) == 0 {
		t.Fatalf("list: err=%v", err)
	}
	env.do(t, http.MethodPost, "/api/force_logout", auth, `{"logout_session_id":`+jsonInt(list.Sessions[0].ID)+`}`, nil)

	rec = env.do(t, http.MethodGet, "/api/private", auth, "", map[string]string{"X-Device-Id": "d1"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked device: status %d", rec.Code)
	}
	errResp = decodeBody[struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}](t, rec)
	if errResp.Error.Code != "logged_out_elsewhere" || errResp.Error.Message != "logged out by another device" {
		t.Fatalf("unexpected error payload: %+v", errResp)
	}
}

func TestPrivate_DefaultClaims(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 3)
	auth := bearerFor(t, "alice", nil)

	env.do(t, http.MethodPost, "/api/register", auth, `{"device_id":"d1"}`, nil)

	rec := env.do(t, http.MethodGet, "/api/private", auth, "", map[string]string{"X-Device-Id": "d1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	priv := decodeBody[map[string]string](t, rec)
	if priv["full_name"] != "Demo User" || priv["phone"] != "N/A" {
		t.Fatalf("defaults not applied: %v", priv)
	}
}

func TestBearerToken_Parsing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		hdr  string
		want string
	}{
		{"empty", "", ""},
		{"bare token", "abc123", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"bearer", "Bearer abc123", "abc123"},
		{"case insensitive", "bearer abc123", "abc123"},
		{"padded", "  Bearer   abc123  ", "abc123"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.hdr != "" {
				req.Header.Set("Authorization", tc.hdr)
			}
			if got := bearerToken(req); got != tc.want {
				t.Fatalf("bearerToken(%q) = %q, want %q", tc.hdr, got, tc.want)
			}
		})
	}
}

func jsonInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
