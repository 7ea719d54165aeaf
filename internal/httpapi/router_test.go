package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/callsim/callsim/internal/audit"
	"github.com/callsim/callsim/internal/auth"
	"github.com/callsim/callsim/internal/cache"
	"github.com/callsim/callsim/internal/chat"
	"github.com/callsim/callsim/internal/config"
	"github.com/callsim/callsim/internal/models"
	"github.com/callsim/callsim/internal/ratelimit"
	"github.com/callsim/callsim/internal/session"
	"github.com/callsim/callsim/internal/tts"
)

func newTestRouter(t *testing.T, rateLimit int) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.APIKey{}, &models.CallSession{},
		&models.ChatMessage{}, &models.AuditLog{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cfg := config.Config{
		JWTSecret:      "test-secret",
		MasterAPIKey:   "master-key-0123456789",
		FallbackMode:   "generic",
		AllowedOrigins: "http://localhost:5500",
	}

	auditLog := audit.NewLogger(db)
	authSvc := auth.NewService(db, auditLog, cfg.JWTSecret, time.Hour, 24*time.Hour)
	sessionSvc := session.NewService(session.NewRepo(db), auditLog, nil, time.Hour)
	chatSvc := chat.NewService(db, nil, chat.NewGenericFallback())
	synth := tts.NewSynthesizer("http://127.0.0.1:0", cache.NewMemory(), time.Hour)

	r := NewRouter(Deps{
		DB:         db,
		Cfg:        cfg,
		Limiter:    ratelimit.NewMemory(rateLimit, time.Minute),
		AuthSvc:    authSvc,
		SessionSvc: sessionSvc,
		ChatSvc:    chatSvc,
		Synth:      synth,
		Audit:      auditLog,
	})
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func registerAndLogin(t *testing.T, r *gin.Engine, email, role string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": email, "password": "Str0ngPass", "full_name": "Test Person", "role": role,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": email, "password": "Str0ngPass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", w.Code, w.Body.String())
	}
	token, _ := decode(t, w)["access_token"].(string)
	if token == "" {
		t.Fatalf("no access token in login response")
	}
	return token
}

func TestFullCallFlow(t *testing.T) {
	r, _ := newTestRouter(t, 100)

	token := registerAndLogin(t, r, "trainee@example.com", "")

	// Start a call.
	w := doJSON(t, r, http.MethodPost, "/api/v1/session/start", token, gin.H{
		"caller_info": gin.H{"scenario": "billing"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("start: status %d body %s", w.Code, w.Body.String())
	}
	start := decode(t, w)
	if start["greeting"] == "" {
		t.Fatalf("greeting missing")
	}
	sess := start["session"].(map[string]any)
	sessionID := sess["id"].(string)

	// One turn. No provider is configured so the canned ladder answers.
	w = doJSON(t, r, http.MethodPost, "/api/v1/chat", token, gin.H{
		"message": "I want a refund for order 123", "session_id": sessionID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("chat: status %d body %s", w.Code, w.Body.String())
	}
	reply, _ := decode(t, w)["response"].(string)
	if !bytes.Contains([]byte(reply), []byte("refund")) {
		t.Fatalf("expected refund-category response, got %q", reply)
	}

	// Hang up.
	w = doJSON(t, r, http.MethodPost, "/api/v1/session/"+sessionID+"/end", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end: status %d body %s", w.Code, w.Body.String())
	}
	end := decode(t, w)
	transcript := end["transcript"].([]any)
	if len(transcript) != 3 {
		t.Fatalf("expected greeting+user+assistant transcript, got %d entries", len(transcript))
	}
	first := transcript[0].(map[string]any)
	if first["role"] != "assistant" {
		t.Fatalf("transcript must open with the greeting, got %+v", first)
	}
	ended := end["session"].(map[string]any)
	if ended["status"] != models.StatusEnded {
		t.Fatalf("expected ended status, got %v", ended["status"])
	}
}

func TestAuthGating(t *testing.T) {
	r, _ := newTestRouter(t, 100)

	// No token.
	w := doJSON(t, r, http.MethodPost, "/api/v1/session/start", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if decode(t, w)["error"] != "unauthorized" {
		t.Fatalf("unexpected error body %s", w.Body.String())
	}

	// Trainee hitting an admin route.
	token := registerAndLogin(t, r, "trainee@example.com", "")
	w = doJSON(t, r, http.MethodGet, "/api/v1/admin/users", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body %s", w.Code, w.Body.String())
	}

	// Admin succeeds.
	adminToken := registerAndLogin(t, r, "admin@example.com", models.RoleAdmin)
	w = doJSON(t, r, http.MethodGet, "/api/v1/admin/users", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", w.Code, w.Body.String())
	}
}

func TestForeignSessionLooksMissing(t *testing.T) {
	r, _ := newTestRouter(t, 100)

	owner := registerAndLogin(t, r, "owner@example.com", "")
	intruder := registerAndLogin(t, r, "intruder@example.com", "")

	w := doJSON(t, r, http.MethodPost, "/api/v1/session/start", owner, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("start: %d", w.Code)
	}
	sessionID := decode(t, w)["session"].(map[string]any)["id"].(string)

	w = doJSON(t, r, http.MethodPost, "/api/v1/session/"+sessionID+"/end", intruder, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign session must 404, got %d", w.Code)
	}
}

func TestRateLimitReturns429AndAudits(t *testing.T) {
	r, db := newTestRouter(t, 2)

	body := gin.H{"email": "nobody@example.com", "password": "Whatever1"}
	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", body)
		if w.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i+1)
		}
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d body %s", w.Code, w.Body.String())
	}
	if decode(t, w)["error"] != "rate_limited" {
		t.Fatalf("unexpected error body %s", w.Body.String())
	}

	var n int64
	if err := db.Model(&models.AuditLog{}).
		Where("event_type = ?", audit.EventRateLimitExceeded).Count(&n).Error; err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 rate_limit_exceeded audit, got %d", n)
	}
}

func TestTTSVoicesWithMasterKey(t *testing.T) {
	r, _ := newTestRouter(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tts/voices", nil)
	req.Header.Set("X-API-Key", "master-key-0123456789")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("voices with master key: %d body %s", w.Code, w.Body.String())
	}
	langs := decode(t, w)["languages"].([]any)
	if len(langs) != 9 || langs[0] != "en" {
		t.Fatalf("unexpected voice list %v", langs)
	}

	// No credentials at all.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/tts/voices", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != "healthy" {
		t.Fatalf("expected healthy, got %v", body["status"])
	}
	components := body["components"].(map[string]any)
	if components["database"] != "up" || components["redis"] != "disabled" {
		t.Fatalf("unexpected components %v", components)
	}
}

func TestUnknownRouteHasUniformBody(t *testing.T) {
	r, _ := newTestRouter(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if decode(t, w)["error"] != "not_found" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}
