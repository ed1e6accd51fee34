package httpapi

import (
	"net/http"
	"regexp"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"signout/docs/schema/openapi"
	"signout/internal/core"
)

var pathParam = regexp.MustCompile(`:(\w+)`)

func TestEveryRouteIsDocumented(t *testing.T) {
	var doc struct {
		Paths map[string]map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(openapi.Spec(), &doc); err != nil {
		t.Fatalf("parse openapi: %v", err)
	}
	e := NewServer(core.NewInMemoryService(), ServerConfig{Logger: zerolog.Nop(), Metrics: http.NotFoundHandler()})
	for _, r := range e.Routes() {
		if r.Method == echo.RouteNotFound {
			continue
		}
		path := pathParam.ReplaceAllString(r.Path, "{$1}")
		ops, ok := doc.Paths[path]
		if !ok {
			t.Errorf("route %s %s missing from openapi paths", r.Method, path)
			continue
		}
		if _, ok := ops[strings.ToLower(r.Method)]; !ok {
			t.Errorf("method %s missing for %s", r.Method, path)
		}
	}
}

func TestServesOpenAPI(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/openapi.yaml", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != openapi.ContentType {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}
