// Package project defines the module descriptor model shared by the graph
// builder, the version reconciler and the descriptor collaborators.
//
// A [Module] is the minimal view of one build descriptor that the core needs:
// a stable name, the names of the modules it depends on, and the external
// packages it references. Descriptors are mutated in place through
// [Module.SetPackageVersion] and persisted by whoever loaded them.
//
// [Static] is an in-memory implementation used by tests, examples and the
// HTTP report endpoint.
package project

import (
	"slices"
	"strings"
)

// Module is a unit of the workspace with its own descriptor.
//
// Name is the module's identity and is compared case-insensitively. DependsOn
// returns the declared module dependencies in declaration order; names may
// refer to modules that are not part of the workspace. Packages returns the
// module's current package references, with names unique within the module.
//
// SetPackageVersion rewrites the version of an existing reference, matching
// the package name case-insensitively. It returns false, and does nothing,
// when the package is absent or already at the given version.
type Module interface {
	Name() string
	DependsOn() []string
	Packages() []PackageReference
	SetPackageVersion(name, version string) bool
}

// PackageReference is a declared dependency on an external, versioned package.
type PackageReference struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Equal reports whether r and o refer to the same package at the same
// version, ignoring case on both fields.
func (r PackageReference) Equal(o PackageReference) bool {
	return strings.EqualFold(r.Name, o.Name) && strings.EqualFold(r.Version, o.Version)
}

// Key returns the case-folded package name used for lookups.
func (r PackageReference) Key() string {
	return Key(r.Name)
}

func (r PackageReference) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "@" + r.Version
}

// Key folds a module or package name for case-insensitive indexing.
func Key(name string) string {
	return strings.ToLower(name)
}

// Find returns the reference named name, ignoring case.
func Find(refs []PackageReference, name string) (PackageReference, bool) {
	i := slices.IndexFunc(refs, func(r PackageReference) bool {
		return strings.EqualFold(r.Name, name)
	})
	if i < 0 {
		return PackageReference{}, false
	}
	return refs[i], true
}

// Static is an in-memory [Module].
type Static struct {
	ModuleName string
	Deps       []string
	Refs       []PackageReference
}

// NewStatic creates a Static module. Package references are copied.
func NewStatic(name string, deps []string, refs ...PackageReference) *Static {
	return &Static{
		ModuleName: name,
		Deps:       slices.Clone(deps),
		Refs:       slices.Clone(refs),
	}
}

func (s *Static) Name() string        { return s.ModuleName }
func (s *Static) DependsOn() []string { return slices.Clone(s.Deps) }

func (s *Static) Packages() []PackageReference { return slices.Clone(s.Refs) }

func (s *Static) SetPackageVersion(name, version string) bool {
	for i := range s.Refs {
		if !strings.EqualFold(s.Refs[i].Name, name) {
			continue
		}
		if s.Refs[i].Version == version {
			return false
		}
		s.Refs[i].Version = version
		return true
	}
	return false
}

// Version returns the version of package name, or "" when absent.
func (s *Static) Version(name string) string {
	ref, _ := Find(s.Refs, name)
	return ref.Version
}

// Ref is shorthand for constructing a PackageReference.
func Ref(name, version string) PackageReference {
	return PackageReference{Name: name, Version: version}
}
