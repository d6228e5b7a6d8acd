package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/projmigrate/pkg/cache"
	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/errors"
	"github.com/matzehuels/projmigrate/pkg/msbuild"
	"github.com/matzehuels/projmigrate/pkg/observability"
)

const coreProject = `<?xml version="1.0" encoding="utf-8"?>
<Project ToolsVersion="15.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup>
    <TargetFrameworkVersion>v4.6.1</TargetFrameworkVersion>
  </PropertyGroup>
  <ItemGroup>
    <Reference Include="Newtonsoft.Json, Version=9.0.0.0, Culture=neutral">
      <HintPath>..\packages\Newtonsoft.Json.9.0.1\lib\net45\Newtonsoft.Json.dll</HintPath>
    </Reference>
  </ItemGroup>
  <ItemGroup>
    <Compile Include="Class1.cs" />
  </ItemGroup>
</Project>
`

const webProject = `<?xml version="1.0" encoding="utf-8"?>
<Project ToolsVersion="15.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup>
    <TargetFrameworkVersion>v4.6.1</TargetFrameworkVersion>
  </PropertyGroup>
  <ItemGroup>
    <Reference Include="Newtonsoft.Json">
      <HintPath>..\packages\Newtonsoft.Json.10.0.3\lib\net45\Newtonsoft.Json.dll</HintPath>
    </Reference>
  </ItemGroup>
  <ItemGroup>
    <None Include="packages.config" />
  </ItemGroup>
  <ItemGroup>
    <ProjectReference Include="..\Contoso.Core\Contoso.Core.csproj" />
  </ItemGroup>
</Project>
`

const sdkProject = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFramework>net461</TargetFramework>
  </PropertyGroup>
  <ItemGroup>
    <PackageReference Include="Newtonsoft.Json" Version="8.0.0" />
  </ItemGroup>
  <ItemGroup>
    <ProjectReference Include="..\Contoso.Core\Contoso.Core.csproj" />
  </ItemGroup>
</Project>
`

const brokenProject = `<Project ToolsVersion="15.0">
  <PropertyGroup>
    <OutputType>Library</OutputType>
  </PropertyGroup>
</Project>
`

// newWorkspace writes a workspace with three valid projects, one project
// without a target framework and one unparseable file.
func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"Contoso.Core/Contoso.Core.csproj": coreProject,
		"Contoso.Core/Class1.cs":           "class Class1 {}",
		"Contoso.Core/Orphan.cs":           "class Orphan {}",
		"Contoso.Web/Contoso.Web.csproj":   webProject,
		"Contoso.Web/packages.config":      "<packages />",
		"Contoso.Sdk/Contoso.Sdk.csproj":   sdkProject,
		"Broken/Broken.csproj":             brokenProject,
		"Bad/Bad.csproj":                   "this is not xml",
	}
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestRunner(c cache.Cache) *Runner {
	r := NewRunner(c, nil, log.NewWithOptions(&bytes.Buffer{}, log.Options{}))
	r.Hooks = observability.NoopPipelineHooks{}
	return r
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func migrateOptions(dir string) Options {
	return Options{
		Dir:     dir,
		Convert: msbuild.DefaultOptions(),
		Prune:   true,
	}
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"puml", false},
		{"dot", false},
		{"json", false},
		{"svg", false},
		{"png", false},
		{"pdf", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestMigrate(t *testing.T) {
	dir := newWorkspace(t)
	r := newTestRunner(nil)

	res, err := r.Migrate(context.Background(), migrateOptions(dir))
	if err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	want := Stats{Discovered: 5, Loaded: 4, Converted: 2, Excluded: 1, Pruned: 1, Saved: 3}
	got := res.Stats
	got.Stages = nil
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}

	if res.Graph.Len() != 3 {
		t.Errorf("Graph.Len() = %d, want 3", res.Graph.Len())
	}
	if !res.Reconcile.Converged || len(res.Reconcile.Upgrades) != 2 {
		t.Errorf("Reconcile = %+v", res.Reconcile)
	}

	broken, ok := res.Project("broken")
	if !ok {
		t.Fatal("Broken missing from result")
	}
	if !broken.Excluded || broken.Saved || broken.Error == "" {
		t.Errorf("Broken = %+v", broken)
	}

	core := readFile(t, filepath.Join(dir, "Contoso.Core", "Contoso.Core.csproj"))
	for _, s := range []string{`Sdk="Microsoft.NET.Sdk"`, `<TargetFramework>net461</TargetFramework>`, `Include="Newtonsoft.Json" Version="10.0.3"`} {
		if !strings.Contains(core, s) {
			t.Errorf("Contoso.Core.csproj missing %s:\n%s", s, core)
		}
	}
	sdk := readFile(t, filepath.Join(dir, "Contoso.Sdk", "Contoso.Sdk.csproj"))
	if !strings.Contains(sdk, `Version="10.0.3"`) {
		t.Errorf("Contoso.Sdk.csproj not upgraded:\n%s", sdk)
	}
	if readFile(t, filepath.Join(dir, "Broken", "Broken.csproj")) != brokenProject {
		t.Error("excluded project was rewritten")
	}

	if exists(filepath.Join(dir, "Contoso.Core", "Orphan.cs")) {
		t.Error("unreferenced file was not pruned")
	}
	if !exists(filepath.Join(dir, "Contoso.Core", "Class1.cs")) {
		t.Error("referenced file was pruned")
	}
	if exists(filepath.Join(dir, "Contoso.Web", "packages.config")) {
		t.Error("packages.config was not deleted")
	}

	errs := 0
	for _, d := range res.Diagnostics {
		if d.Severity == diag.Error {
			errs++
		}
	}
	if errs != 2 {
		t.Errorf("error diagnostics = %d, want 2 (Bad, Broken): %v", errs, res.Diagnostics)
	}
}

func TestMigrateDryRun(t *testing.T) {
	dir := newWorkspace(t)
	corePath := filepath.Join(dir, "Contoso.Core", "Contoso.Core.csproj")

	opts := migrateOptions(dir)
	opts.DryRun = true
	res, err := newTestRunner(nil).Migrate(context.Background(), opts)
	if err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	if res.Stats.Saved != 0 {
		t.Errorf("Saved = %d, want 0", res.Stats.Saved)
	}
	if readFile(t, corePath) != coreProject {
		t.Error("dry run rewrote a project")
	}
	if !exists(filepath.Join(dir, "Contoso.Core", "Orphan.cs")) {
		t.Error("dry run pruned a file")
	}
	if !exists(filepath.Join(dir, "Contoso.Web", "packages.config")) {
		t.Error("dry run deleted packages.config")
	}

	core, _ := res.Project("Contoso.Core")
	if len(core.Pruned) != 1 || filepath.Base(core.Pruned[0]) != "Orphan.cs" {
		t.Errorf("Pruned = %v, want Orphan.cs", core.Pruned)
	}
	if core.Upgrades != 1 || !core.Changed() {
		t.Errorf("Contoso.Core = %+v", core)
	}
	web, _ := res.Project("Contoso.Web")
	if len(web.Deleted) != 1 || filepath.Base(web.Deleted[0]) != "packages.config" {
		t.Errorf("Deleted = %v, want packages.config", web.Deleted)
	}
}

func TestMigrateSkipConvert(t *testing.T) {
	dir := newWorkspace(t)
	opts := migrateOptions(dir)
	opts.SkipConvert = true

	res, err := newTestRunner(nil).Migrate(context.Background(), opts)
	if err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if res.Stats.Converted != 0 || res.Stats.Pruned != 0 {
		t.Errorf("Stats = %+v", res.Stats)
	}
	if res.Graph.Len() != 4 {
		t.Errorf("Graph.Len() = %d, want 4", res.Graph.Len())
	}
	if res.Stats.Duration(StagePrune) != 0 {
		t.Error("prune stage ran")
	}
	if readFile(t, filepath.Join(dir, "Contoso.Core", "Contoso.Core.csproj")) != coreProject {
		t.Error("legacy project was rewritten")
	}
}

func TestMigrateProjectFilter(t *testing.T) {
	dir := newWorkspace(t)
	opts := migrateOptions(dir)
	opts.Projects = []string{"contoso.core", "Contoso.Sdk"}

	res, err := newTestRunner(nil).Migrate(context.Background(), opts)
	if err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if res.Stats.Loaded != 2 {
		t.Fatalf("Loaded = %d, want 2", res.Stats.Loaded)
	}
	if _, ok := res.Project("Contoso.Web"); ok {
		t.Error("filtered project included")
	}
	sdk := readFile(t, filepath.Join(dir, "Contoso.Sdk", "Contoso.Sdk.csproj"))
	if !strings.Contains(sdk, `Version="9.0.1"`) {
		t.Errorf("Contoso.Sdk.csproj = %s, want 9.0.1", sdk)
	}
	if readFile(t, filepath.Join(dir, "Contoso.Web", "Contoso.Web.csproj")) != webProject {
		t.Error("filtered project was rewritten")
	}
}

func TestMigrateDuplicateNameExcluded(t *testing.T) {
	sdkCore := func(version string) string {
		return `<Project Sdk="Microsoft.NET.Sdk">
  <ItemGroup>
    <PackageReference Include="Newtonsoft.Json" Version="` + version + `" />
  </ItemGroup>
</Project>
`
	}
	app := `<Project Sdk="Microsoft.NET.Sdk">
  <ItemGroup>
    <PackageReference Include="Newtonsoft.Json" Version="12.0.1" />
  </ItemGroup>
  <ItemGroup>
    <ProjectReference Include="..\Contoso.Core\Contoso.Core.csproj" />
  </ItemGroup>
</Project>
`
	dir := t.TempDir()
	// Discovery is sorted, so the archived copy takes the name and the original is
	// left out of the graph.
	files := map[string]string{
		"Archive/Contoso.Core.csproj":      sdkCore("11.0.1"),
		"Contoso.Core/Contoso.Core.csproj": sdkCore("11.0.2"),
		"Contoso.Web/Contoso.Web.csproj":   app,
	}
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	res, err := newTestRunner(nil).Migrate(context.Background(), migrateOptions(dir))
	if err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	if res.Graph.Len() != 2 {
		t.Errorf("Graph.Len() = %d, want 2", res.Graph.Len())
	}
	if res.Stats.Saved != 1 || res.Stats.Excluded != 1 {
		t.Errorf("Stats = %+v, want Saved 1, Excluded 1", res.Stats)
	}
	for _, pr := range res.Projects {
		if pr.Name != "Contoso.Core" {
			continue
		}
		switch filepath.Base(filepath.Dir(pr.Path)) {
		case "Archive":
			if pr.Excluded || pr.Upgrades != 1 || !pr.Saved {
				t.Errorf("graphed duplicate = %+v", pr)
			}
		default:
			if !pr.Excluded || pr.Upgrades != 0 || pr.Saved {
				t.Errorf("excluded duplicate = %+v", pr)
			}
		}
	}

	if got := readFile(t, filepath.Join(dir, "Contoso.Core", "Contoso.Core.csproj")); got != sdkCore("11.0.2") {
		t.Errorf("excluded duplicate was rewritten:\n%s", got)
	}
	if got := readFile(t, filepath.Join(dir, "Archive", "Contoso.Core.csproj")); !strings.Contains(got, `Version="12.0.1"`) {
		t.Errorf("graphed duplicate not upgraded:\n%s", got)
	}
}

func TestMigrateWarnsOnLegacyMarkers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Mixed", "Mixed.csproj")
	body := `<Project Sdk="Microsoft.NET.Sdk" ToolsVersion="15.0">
  <PropertyGroup>
    <TargetFramework>net461</TargetFramework>
  </PropertyGroup>
</Project>
`
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := newTestRunner(nil).Migrate(context.Background(), migrateOptions(dir))
	if err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if res.Stats.Converted != 0 {
		t.Errorf("Converted = %d, want 0", res.Stats.Converted)
	}
	found := false
	for _, d := range res.Diagnostics {
		if d.Severity == diag.Warning && d.Module == "Mixed" && strings.Contains(d.Message, "legacy markers") {
			found = true
		}
	}
	if !found {
		t.Errorf("no legacy marker warning in %v", res.Diagnostics)
	}
}

func TestMigrateInvalidWorkspace(t *testing.T) {
	r := newTestRunner(nil)
	tests := []struct {
		dir  string
		code errors.Code
	}{
		{"", errors.ErrCodeInvalidInput},
		{filepath.Join(t.TempDir(), "missing"), errors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		_, err := r.Migrate(context.Background(), Options{Dir: tt.dir})
		if !errors.Is(err, tt.code) {
			t.Errorf("Migrate(%q) error = %v, want %s", tt.dir, err, tt.code)
		}
	}
}

func TestMigrateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestRunner(nil).Migrate(ctx, migrateOptions(newWorkspace(t)))
	if err != context.Canceled {
		t.Errorf("Migrate() error = %v, want context.Canceled", err)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	mu        sync.Mutex
	stages    []string
	converted []string
}

func (h *recordingHooks) OnStageComplete(_ context.Context, stage string, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stages = append(h.stages, stage)
}

func (h *recordingHooks) OnModuleConverted(_ context.Context, module string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		h.converted = append(h.converted, module)
	}
}

func TestMigrateHooks(t *testing.T) {
	h := &recordingHooks{}
	r := newTestRunner(nil)
	r.Hooks = h

	opts := migrateOptions(newWorkspace(t))
	opts.DryRun = true
	res, err := r.Migrate(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{StageDiscover, StageLoad, StageConvert, StageBuild, StageReconcile, StagePrune, StageSave}
	if !slices.Equal(h.stages, want) {
		t.Errorf("stages = %v, want %v", h.stages, want)
	}
	if len(res.Stats.Stages) != len(want) {
		t.Errorf("Stats.Stages = %v", res.Stats.Stages)
	}
	if !slices.Equal(h.converted, []string{"Contoso.Core", "Contoso.Web"}) {
		t.Errorf("converted = %v", h.converted)
	}
}

func TestGraph(t *testing.T) {
	dir := newWorkspace(t)
	sink := &diag.Collector{}

	g, err := newTestRunner(nil).Graph(context.Background(), dir, sink)
	if err != nil {
		t.Fatalf("Graph() error: %v", err)
	}
	if g.Len() != 4 {
		t.Errorf("Len() = %d, want 4", g.Len())
	}
	if sink.Count(diag.Error) != 1 {
		t.Errorf("errors = %v, want Bad.csproj only", sink.All())
	}
	if readFile(t, filepath.Join(dir, "Contoso.Core", "Contoso.Core.csproj")) != coreProject {
		t.Error("Graph() rewrote a project")
	}
}

func TestDiagramCaching(t *testing.T) {
	ctx := context.Background()
	mem, err := cache.NewMemoryCache(16)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRunner(mem)

	g, err := r.Graph(ctx, newWorkspace(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	opts := DiagramOptions{Format: FormatPUML}
	first, hit, err := r.DiagramWithCacheInfo(ctx, g, opts)
	if err != nil || hit {
		t.Fatalf("first render: hit %v, err %v", hit, err)
	}
	if !strings.HasPrefix(string(first), "@startuml") {
		t.Errorf("puml output = %q", first)
	}

	second, hit, err := r.DiagramWithCacheInfo(ctx, g, opts)
	if err != nil || !hit {
		t.Errorf("second render: hit %v, err %v", hit, err)
	}
	if !bytes.Equal(first, second) {
		t.Error("cached diagram differs")
	}

	opts.Refresh = true
	if _, hit, _ := r.DiagramWithCacheInfo(ctx, g, opts); hit {
		t.Error("Refresh served from cache")
	}

	if _, hit, _ := r.DiagramWithCacheInfo(ctx, g, DiagramOptions{Format: FormatDOT}); hit {
		t.Error("different format served from cache")
	}

	if _, err := r.Diagram(ctx, g, DiagramOptions{Format: "gif"}); err == nil {
		t.Error("Diagram(gif) should fail")
	}
}

func TestRenderFormats(t *testing.T) {
	g, err := newTestRunner(nil).Graph(context.Background(), newWorkspace(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		format string
		prefix string
	}{
		{FormatPUML, "@startuml"},
		{FormatDOT, "digraph G {"},
		{FormatJSON, "{"},
	}
	for _, tt := range tests {
		data, err := Render(context.Background(), g, DiagramOptions{Format: tt.format})
		if err != nil {
			t.Errorf("Render(%s) error: %v", tt.format, err)
			continue
		}
		if !strings.HasPrefix(strings.TrimSpace(string(data)), tt.prefix) {
			t.Errorf("Render(%s) = %.40q, want prefix %q", tt.format, data, tt.prefix)
		}
	}
}
