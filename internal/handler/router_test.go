package handler

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenchat/companion/internal/remote"
	authService "github.com/havenchat/companion/internal/service/auth"
	chatService "github.com/havenchat/companion/internal/service/chat"
	eventsService "github.com/havenchat/companion/internal/service/events"
	prefService "github.com/havenchat/companion/internal/service/preferences"
	"github.com/havenchat/companion/internal/stub"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	backend := httptest.NewServer(stub.New(stub.NewStore(), nil).Router())
	t.Cleanup(backend.Close)

	dir := t.TempDir()
	client := remote.NewClient(backend.URL, 5*time.Second)
	hub := eventsService.NewHub(8)
	session := chatService.NewSession(client, chatService.Options{Sink: hub})

	return NewRouter(Deps{
		Session:     session,
		Auth:        authService.NewService(client, client.Jar(), filepath.Join(dir, "cache"), nil),
		Preferences: prefService.NewStore(filepath.Join(dir, "preferences.toml"), nil),
		Events:      hub,
		Origins:     []string{"http://localhost:3000"},
	})
}

func TestRouterServesAPI(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/api/chat/state", "", http.StatusOK},
		{http.MethodGet, "/api/preferences/theme/", "", http.StatusOK},
		{http.MethodPost, "/api/auth/login", `{"username":"","password":""}`, http.StatusBadRequest},
		{http.MethodGet, "/api/voice/state", "", http.StatusOK},
		{http.MethodPost, "/api/voice/start", "", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/speech/speak", `{"text":"hi"}`, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, tc.status, resp.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouterAppliesCORS(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/messages", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "http://localhost:3000", resp.Header().Get("Access-Control-Allow-Origin"))
}
