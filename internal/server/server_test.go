package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/projmigrate/pkg/cache"
	"github.com/matzehuels/projmigrate/pkg/config"
	"github.com/matzehuels/projmigrate/pkg/observability"
	"github.com/matzehuels/projmigrate/pkg/observability/prom"
	"github.com/matzehuels/projmigrate/pkg/pipeline"
)

const appProject = `<Project Sdk="Microsoft.NET.Sdk">
  <ItemGroup>
    <PackageReference Include="Serilog" Version="2.10.0" />
    <ProjectReference Include="..\Shop.Core\Shop.Core.csproj" />
  </ItemGroup>
</Project>
`

const coreProject = `<Project Sdk="Microsoft.NET.Sdk">
  <ItemGroup>
    <PackageReference Include="Serilog" Version="2.8.0" />
  </ItemGroup>
</Project>
`

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"Shop.App/Shop.App.csproj":   appProject,
		"Shop.Core/Shop.Core.csproj": coreProject,
	} {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	mem, err := cache.NewMemoryCache(16)
	if err != nil {
		t.Fatal(err)
	}
	logger := log.NewWithOptions(&bytes.Buffer{}, log.Options{})
	runner := pipeline.NewRunner(mem, nil, logger)
	runner.Hooks = observability.NoopPipelineHooks{}

	reg := prometheus.NewRegistry()
	observability.SetHTTPHooks(prom.New(reg))
	t.Cleanup(observability.Reset)

	return New(dir, config.Default(), runner, logger, reg), dir
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Status != "ok" {
		t.Errorf("body = %s, err %v", rec.Body, err)
	}
}

func TestGraph(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := get(t, h, "/graph.puml")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /graph.puml = %d: %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "[Shop.App] <-down- [Shop.Core]") && !strings.Contains(body, "[Shop.Core] <-down- [Shop.App]") {
		t.Errorf("missing edge in:\n%s", body)
	}
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}
	if got := get(t, h, "/graph.puml").Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", got)
	}

	rec = get(t, h, "/graph.dot?reconciled=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /graph.dot = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "#fff3b0") {
		t.Errorf("reconciled graph has no highlighted module:\n%s", rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/vnd.graphviz") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestGraphBadFormat(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/graph.gif")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET /graph.gif = %d, want 400", rec.Code)
	}
}

func TestGraphMissingWorkspace(t *testing.T) {
	s, dir := newTestServer(t)
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	rec := get(t, s.Handler(), "/graph.json")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /graph.json = %d, want 404", rec.Code)
	}
}

func TestReport(t *testing.T) {
	s, dir := newTestServer(t)
	rec := get(t, s.Handler(), "/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /report = %d: %s", rec.Code, rec.Body)
	}

	var res pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.DryRun || len(res.Reconcile.Upgrades) != 1 {
		t.Errorf("report = %+v", res)
	}
	if u := res.Reconcile.Upgrades[0]; u.Module != "Shop.Core" || u.To != "2.10.0" {
		t.Errorf("upgrade = %+v", u)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "Shop.Core", "Shop.Core.csproj"))
	if string(data) != coreProject {
		t.Error("report modified the workspace")
	}
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	get(t, h, "/healthz")

	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `projmigrate_http_requests_total{code="200",method="GET",route="/healthz"} 1`) {
		t.Errorf("metrics missing request counter:\n%s", rec.Body)
	}
}
