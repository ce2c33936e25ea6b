package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/indidrv/internal/plugins"
)

type stubPlugin struct {
	name    string
	status  any
	actions map[string]plugins.Action
}

func (p stubPlugin) Name() string                      { return p.name }
func (p stubPlugin) Status() (any, error)               { return p.status, nil }
func (p stubPlugin) Actions() map[string]plugins.Action { return p.actions }

func TestHealthzReportsDriverName(t *testing.T) {
	s := New("weatherd-test", nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["driver"] != "weatherd-test" {
		t.Fatalf("unexpected driver field: %v", body["driver"])
	}
}

func TestPluginsRouteListsStatuses(t *testing.T) {
	plugins.Register(stubPlugin{name: "admin-test-plugin", status: "ready", actions: map[string]plugins.Action{
		"ping": func() (string, error) { return "pong", nil },
	}})

	s := New("weatherd-test", nil)
	req := httptest.NewRequest(http.MethodGet, "/plugins", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["admin-test-plugin"] != "ready" {
		t.Fatalf("expected plugin status in body, got %v", body)
	}
}

func TestPluginActionRouteInvokesAction(t *testing.T) {
	plugins.Register(stubPlugin{name: "admin-action-plugin", status: "ready", actions: map[string]plugins.Action{
		"ping": func() (string, error) { return "pong", nil },
		"fail": func() (string, error) { return "", errors.New("boom") },
	}})

	s := New("weatherd-test", nil)

	req := httptest.NewRequest(http.MethodPost, "/plugins/admin-action-plugin/actions/ping", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/plugins/admin-action-plugin/actions/fail", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a failing action, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/plugins/unknown-plugin/actions/ping", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown plugin, got %d", rec.Code)
	}
}
