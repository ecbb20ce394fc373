package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/aniconnect/internal/chat"
	"github.com/Tyrowin/aniconnect/internal/dispatch"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Cleanup(func() { SetConfig(nil) })
	s, err := New(*NewConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

// TestHealthHandler verifies the health endpoint on both routes.
func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)
	mux := s.SetupRoutes()

	for _, path := range []string{"/", "/health"} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rr.Code)
		}
		if rr.Body.String() != "AniConnect server is running!" {
			t.Errorf("%s: unexpected body %q", path, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != "text/plain" {
			t.Errorf("%s: unexpected content type %q", path, ct)
		}
	}
}

// TestChannelsHandler verifies the channel list is served as JSON in
// creation order.
func TestChannelsHandler(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.SetupRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/channels", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	var channels []chat.Channel
	if err := json.Unmarshal(rr.Body.Bytes(), &channels); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(channels) != len(chat.DefaultChannels()) || channels[0].ID != "general" {
		t.Errorf("unexpected channels %+v", channels)
	}
}

// TestVoiceChannelsHandler verifies voice rooms are listed with empty
// participant arrays.
func TestVoiceChannelsHandler(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.SetupRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/voice-channels", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"participants":[]`) {
		t.Errorf("expected empty participant arrays, got %s", rr.Body.String())
	}
}

// TestStatsHandler verifies the counters endpoint.
func TestStatsHandler(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.SetupRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	var stats dispatch.Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Channels != len(chat.DefaultChannels()) || stats.VoiceChannels != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.TotalMessages != 0 || stats.ActiveUsers != 0 {
		t.Errorf("expected an idle server, got %+v", stats)
	}
}

// TestReadOnlyEndpointsRejectWrites verifies write methods get 405 with an
// Allow header.
func TestReadOnlyEndpointsRejectWrites(t *testing.T) {
	s := newTestServer(t)
	mux := s.SetupRoutes()

	for _, path := range []string{"/api/channels", "/api/voice-channels", "/api/stats"} {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(method, path, nil))

			if rr.Code != http.StatusMethodNotAllowed {
				t.Errorf("%s %s: expected 405, got %d", method, path, rr.Code)
			}
			if rr.Header().Get("Allow") != "GET, HEAD" {
				t.Errorf("%s %s: missing Allow header", method, path)
			}
		}
	}
}

// TestWebSocketHandlerRejectsNonGET verifies the upgrade endpoint only
// accepts GET.
func TestWebSocketHandlerRejectsNonGET(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.WebSocketHandler(rr, httptest.NewRequest(http.MethodPost, "/ws", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

// TestTestPageHandler verifies the manual test page is served.
func TestTestPageHandler(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.SetupRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "send_message") {
		t.Error("test page should speak the event protocol")
	}
}

// TestNewRejectsMalformedModeratorHash verifies a bad bcrypt hash fails
// fast at startup.
func TestNewRejectsMalformedModeratorHash(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	cfg := NewConfig()
	cfg.Chat.ModeratorKeyHash = "plaintext"

	if _, err := New(*cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected an error for a malformed hash")
	}
}
