package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scopeboard/internal/config"
	"scopeboard/internal/repository"
	"scopeboard/internal/services"
)

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Auth: config.AuthConfig{BootstrapKey: "bootstrap"}}
	auth, err := services.NewAuthService("0123456789abcdef0123456789abcdef", "", time.Hour, nil)
	require.NoError(t, err)
	hub := services.NewRefreshHub(nil)
	t.Cleanup(hub.Stop)
	cache := services.NewWorkspaceCache(repository.NewMemoryDashboardRepo(), hub, time.Hour, nil)

	return &testServer{t: t, engine: NewRouter(cfg, cache, hub, auth, nil)}
}

func (s *testServer) do(method, path string, body interface{}, headers ...string) (int, map[string]interface{}) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (s *testServer) login() {
	s.t.Helper()
	code, body := s.do(http.MethodPost, "/auth/token", gin.H{"editor": "alice"}, "X-Bootstrap-Key", "bootstrap")
	require.Equal(s.t, http.StatusOK, code, body)
	s.token = body["token"].(string)
}

func errorKind(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	kind, _ := e["kind"].(string)
	return kind
}

func TestTokenIssuance(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodPost, "/auth/token", gin.H{"editor": "alice"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(http.MethodPost, "/auth/token", gin.H{"editor": "bad name"}, "X-Bootstrap-Key", "bootstrap")
	assert.Equal(t, http.StatusBadRequest, code)

	s.login()
	code, body := s.do(http.MethodGet, "/auth/token", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", body["editor"])
}

func TestHealthAndStatus(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = s.do(http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "goroutines")
}

func TestEditingRequiresToken(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodPost, "/dashboards", gin.H{"title": "Ops"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(http.MethodGet, "/dashboards", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["dashboards"])

	code, _ = s.do(http.MethodGet, "/dashboards/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDashboardEditAndViewFlow(t *testing.T) {
	s := newTestServer(t)
	s.login()

	code, body := s.do(http.MethodPost, "/dashboards", gin.H{"title": "Ops"})
	require.Equal(t, http.StatusCreated, code, body)
	id := body["id"].(string)
	base := "/dashboards/" + id

	code, body = s.do(http.MethodPost, base+"/sessions", nil)
	require.Equal(t, http.StatusCreated, code, body)
	session := base + "/sessions/" + body["session"].(string)

	code, body = s.do(http.MethodPost, session+"/variables", gin.H{"name": "cluster", "scope": "global", "source": "query_values"})
	require.Equal(t, http.StatusCreated, code, body)
	code, body = s.do(http.MethodPost, session+"/variables", gin.H{"name": "cluster", "scope": "global", "source": "query_values"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate_name", errorKind(body))
	code, body = s.do(http.MethodPost, session+"/variables", gin.H{"name": "2fast", "scope": "global"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "invalid_name", errorKind(body))

	code, body = s.do(http.MethodPost, session+"/panels", gin.H{"title": "Latency", "tab_id": "default"})
	require.Equal(t, http.StatusCreated, code, body)
	panel := body["id"].(string)

	code, body = s.do(http.MethodPut, session+"/panels/"+panel+"/time", gin.H{"panel_time_enabled": true, "panel_time_mode": "individual"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "unconfigured", body["state"])

	code, body = s.do(http.MethodGet, session+"/validate", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["valid"])

	code, body = s.do(http.MethodPost, session+"/save", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "missing_range", errorKind(body))

	code, body = s.do(http.MethodPut, session+"/panels/"+panel+"/time", gin.H{"panel_time_range": "1h"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "individual", body["state"])

	// a rejected field leaves the earlier ones in the same body unapplied
	code, body = s.do(http.MethodPut, session+"/panels/"+panel+"/time", gin.H{"panel_time_enabled": false, "panel_time_range": "2h"})
	assert.Equal(t, http.StatusUnprocessableEntity, code, body)
	assert.Equal(t, "invalid_transition", errorKind(body))
	code, body = s.do(http.MethodGet, session+"/panels/"+panel+"/time", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "individual", body["state"])

	code, body = s.do(http.MethodGet, session+"/changes", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["changes"])

	code, body = s.do(http.MethodPost, session+"/save", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, []interface{}{panel}, body["refreshed"])

	code, _ = s.do(http.MethodGet, session, nil)
	assert.Equal(t, http.StatusNotFound, code, "a saved session is gone")

	code, body = s.do(http.MethodGet, base+"/panels/"+panel+"/resolve", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, map[string]interface{}{"kind": "relative", "amount": float64(1), "unit": "h"}, body["range"])
	require.Len(t, body["variables"], 1)

	// staged ranges stay out of the shared link until applied
	code, _ = s.do(http.MethodPost, base+"/time/stage", gin.H{"range": "6d"})
	require.Equal(t, http.StatusOK, code)
	code, body = s.do(http.MethodGet, base+"/share", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "panel-time-"+panel+"=1h&period=15m", body["query"])

	code, body = s.do(http.MethodPost, base+"/time/apply", gin.H{})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["applied"])

	code, body = s.do(http.MethodGet, base+"/share", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "panel-time-"+panel+"=1h&period=6d", body["query"])

	code, body = s.do(http.MethodGet, base+"/panels/"+panel+"/resolve", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "h", body["range"].(map[string]interface{})["unit"], "individual panels ignore the global range")

	code, body = s.do(http.MethodPut, base+"/variables/cluster/value", gin.H{"values": []string{"eu-1"}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, []interface{}{panel}, body["refreshed"])

	code, _ = s.do(http.MethodPost, base+"/share?period=1d", nil)
	assert.Equal(t, http.StatusOK, code)
	code, body = s.do(http.MethodGet, base+"/time", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["committed"].(map[string]interface{})["amount"])

	code, _ = s.do(http.MethodPost, base+"/time/stage", gin.H{"range": "6y"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = s.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSessionIsScopedToItsDashboard(t *testing.T) {
	s := newTestServer(t)
	s.login()

	_, first := s.do(http.MethodPost, "/dashboards", gin.H{"title": "A"})
	_, second := s.do(http.MethodPost, "/dashboards", gin.H{"title": "B"})
	code, body := s.do(http.MethodPost, "/dashboards/"+first["id"].(string)+"/sessions", nil)
	require.Equal(t, http.StatusCreated, code)

	code, _ = s.do(http.MethodGet, "/dashboards/"+second["id"].(string)+"/sessions/"+body["session"].(string), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSessionValidationListsEveryProblem(t *testing.T) {
	s := newTestServer(t)
	s.login()

	_, dash := s.do(http.MethodPost, "/dashboards", gin.H{"title": "Ops"})
	base := "/dashboards/" + dash["id"].(string)
	_, body := s.do(http.MethodPost, base+"/sessions", nil)
	session := base + "/sessions/" + body["session"].(string)

	_, body = s.do(http.MethodPost, session+"/tabs", gin.H{"title": "Second"})
	tab := body["id"].(string)
	_, body = s.do(http.MethodPost, session+"/panels", gin.H{"title": "p", "tab_id": "default"})
	panel := body["id"].(string)

	code, body := s.do(http.MethodPost, session+"/variables", gin.H{"name": "ns", "scope": "tabs", "assigned_tabs": []string{"default"}})
	require.Equal(t, http.StatusCreated, code, body)
	code, body = s.do(http.MethodPost, session+"/variables", gin.H{
		"name": "pod", "scope": "panels", "assigned_panels": []string{panel},
		"depends_on": gin.H{"variable": "ns", "field": "namespace"},
	})
	require.Equal(t, http.StatusCreated, code, body)

	code, body = s.do(http.MethodPost, session+"/variables/admissible", gin.H{"name": "x", "scope": "tabs", "assigned_tabs": []string{tab}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Empty(t, body["variables"])

	code, _ = s.do(http.MethodPut, session+"/panels/"+panel+"/tab", gin.H{"tab_id": tab})
	require.Equal(t, http.StatusNoContent, code)
	code, body = s.do(http.MethodPut, session+"/panels/"+panel+"/time", gin.H{"panel_time_enabled": true, "panel_time_mode": "individual"})
	require.Equal(t, http.StatusOK, code, body)

	code, body = s.do(http.MethodPost, session+"/save", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Len(t, body["errors"], 2)

	code, _ = s.do(http.MethodDelete, session, nil)
	assert.Equal(t, http.StatusNoContent, code)
}
