package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trade-signal-bot/config"
	"trade-signal-bot/internal/bot"
	"trade-signal-bot/internal/signal"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	authpkg "trade-signal-bot/internal/auth"
)

// ============================================================================
// TEST FIXTURES
// ============================================================================

type memStore struct {
	signals map[string]*signal.Signal
	order   []string
	state   map[string]string
}

func newMemStore() *memStore {
	return &memStore{signals: make(map[string]*signal.Signal), state: make(map[string]string)}
}

func (m *memStore) CreateSignal(ctx context.Context, s *signal.Signal) error {
	m.signals[s.ID] = s.Clone()
	m.order = append(m.order, s.ID)
	return nil
}

func (m *memStore) UpdateSignal(ctx context.Context, s *signal.Signal) error {
	if _, ok := m.signals[s.ID]; !ok {
		return signal.ErrSignalNotFound
	}
	m.signals[s.ID] = s.Clone()
	return nil
}

func (m *memStore) GetSignal(ctx context.Context, id string) (*signal.Signal, error) {
	s, ok := m.signals[id]
	if !ok {
		return nil, signal.ErrSignalNotFound
	}
	return s.Clone(), nil
}

func (m *memStore) ListSignals(ctx context.Context) ([]*signal.Signal, error) {
	out := make([]*signal.Signal, 0, len(m.order))
	for _, id := range m.order {
		if s, ok := m.signals[id]; ok {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (m *memStore) DeleteSignal(ctx context.Context, id string) error {
	delete(m.signals, id)
	return nil
}

func (m *memStore) GetState(ctx context.Context, key string) (string, error) {
	return m.state[key], nil
}

func (m *memStore) SetState(ctx context.Context, key, value string) error {
	m.state[key] = value
	return nil
}

type stubMessenger struct{}

func (stubMessenger) PostMessage(ctx context.Context, channelID, content string, mentionRoles []string) (string, error) {
	return "msg-1", nil
}
func (stubMessenger) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	return nil
}
func (stubMessenger) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return nil
}
func (stubMessenger) MessageExists(ctx context.Context, channelID, messageID string) bool {
	return true
}

func fptr(f float64) *float64 { return &f }

func newTestServer(t *testing.T, authService *authpkg.Service) (*Server, *bot.Bot) {
	t.Helper()
	store := newMemStore()
	tracker := signal.NewTracker(zerolog.Nop())
	b := bot.New(config.DiscordConfig{CurrentTradesChannel: "summary"}, store, stubMessenger{}, tracker, nil, nil)
	srv := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0, AllowedOrigins: "*"}, b, nil, authService)
	return srv, b
}

func seedSignal(t *testing.T, b *bot.Bot) *signal.Signal {
	t.Helper()
	s, err := b.CreateSignal(context.Background(), bot.Draft{
		Asset:       "BTC",
		Direction:   signal.DirectionLong,
		Entry:       fptr(100),
		StopLoss:    fptr(90),
		TakeProfits: map[string]float64{"TP1": 110},
		Plan:        map[string]float64{"TP1": 50},
	})
	if err != nil {
		t.Fatalf("CreateSignal failed: %v", err)
	}
	s, err = b.AttachMessage(context.Background(), s.ID, "chan", "msg-1", "")
	if err != nil {
		t.Fatalf("AttachMessage failed: %v", err)
	}
	return s
}

func doRequest(srv *Server, method, path, body, token string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

// ============================================================================
// HANDLER TESTS
// ============================================================================

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doRequest(srv, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
}

func TestListSignals(t *testing.T) {
	srv, b := newTestServer(t, nil)
	seedSignal(t, b)

	w := doRequest(srv, http.MethodGet, "/api/signals", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count   int          `json:"count"`
		Signals []signalView `json:"signals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Count != 1 || len(resp.Signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", resp.Count)
	}
	if resp.Signals[0].Asset != "BTC" || resp.Signals[0].Status != signal.StatusRunning {
		t.Errorf("unexpected view %+v", resp.Signals[0])
	}
}

func TestGetSignalNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doRequest(srv, http.MethodGet, "/api/signals/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetRiskReturnsMultiples(t *testing.T) {
	srv, b := newTestServer(t, nil)
	s := seedSignal(t, b)

	w := doRequest(srv, http.MethodGet, "/api/signals/"+s.ID+"/risk", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Multiples []signal.RiskMultiple `json:"multiples"`
		Remaining float64               `json:"remaining_percent"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(resp.Multiples) != 1 || resp.Multiples[0].Key != "TP1" || resp.Multiples[0].R != 1.00 {
		t.Errorf("unexpected multiples %+v", resp.Multiples)
	}
	if resp.Remaining != 100 {
		t.Errorf("remaining = %v, want 100", resp.Remaining)
	}
}

func TestRefreshSummaryEndpoint(t *testing.T) {
	srv, b := newTestServer(t, nil)
	seedSignal(t, b)

	w := doRequest(srv, http.MethodPost, "/api/summary/refresh", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

// ============================================================================
// AUTH TESTS
// ============================================================================

func TestAuthGatesAPIRoutes(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	authService := authpkg.NewService(config.AuthConfig{
		JWTSecret:           "secret",
		AccessTokenDuration: time.Hour,
		AdminUsername:       "admin",
		AdminPasswordHash:   string(hash),
	})
	srv, b := newTestServer(t, authService)
	seedSignal(t, b)

	if w := doRequest(srv, http.MethodGet, "/api/signals", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request: status = %d", w.Code)
	}

	w := doRequest(srv, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"hunter2hunter2"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	var pair authpkg.TokenPair
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
		t.Fatalf("bad login response: %v", err)
	}

	if w := doRequest(srv, http.MethodGet, "/api/signals", "", pair.AccessToken); w.Code != http.StatusOK {
		t.Fatalf("authenticated request: status = %d, body %s", w.Code, w.Body.String())
	}

	if w := doRequest(srv, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"wrong"}`, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", w.Code)
	}
}
