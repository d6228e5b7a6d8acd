package project

import "testing"

func TestPackageReferenceEqual(t *testing.T) {
	tests := []struct {
		a, b PackageReference
		want bool
	}{
		{Ref("Newtonsoft.Json", "1.0.0"), Ref("newtonsoft.json", "1.0.0"), true},
		{Ref("Json", "1.0.0-BETA"), Ref("json", "1.0.0-beta"), true},
		{Ref("Json", "1.0.0"), Ref("Json", "1.0.1"), false},
		{Ref("Json", "1.0.0"), Ref("Yaml", "1.0.0"), false},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestStaticSetPackageVersion(t *testing.T) {
	m := NewStatic("App", nil, Ref("Json", "1.0.0"))

	if m.SetPackageVersion("Missing", "2.0.0") {
		t.Error("SetPackageVersion(absent) = true, want false")
	}
	if !m.SetPackageVersion("JSON", "1.2.0") {
		t.Error("SetPackageVersion(case-insensitive) = false, want true")
	}
	if got := m.Version("json"); got != "1.2.0" {
		t.Errorf("Version() = %q, want %q", got, "1.2.0")
	}
	if m.SetPackageVersion("Json", "1.2.0") {
		t.Error("SetPackageVersion(same version) = true, want false")
	}
}

func TestStaticCopies(t *testing.T) {
	deps := []string{"Core"}
	m := NewStatic("App", deps, Ref("Json", "1.0.0"))
	deps[0] = "Changed"

	if got := m.DependsOn()[0]; got != "Core" {
		t.Errorf("DependsOn()[0] = %q, want %q", got, "Core")
	}

	pkgs := m.Packages()
	pkgs[0].Version = "9.9.9"
	if got := m.Version("Json"); got != "1.0.0" {
		t.Errorf("Version() after mutating Packages() copy = %q, want %q", got, "1.0.0")
	}
}

func TestFind(t *testing.T) {
	refs := []PackageReference{Ref("A", "1"), Ref("B", "2")}
	if r, ok := Find(refs, "b"); !ok || r.Version != "2" {
		t.Errorf("Find(b) = %v, %v", r, ok)
	}
	if _, ok := Find(refs, "c"); ok {
		t.Error("Find(c) found a reference")
	}
}
