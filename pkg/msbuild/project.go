package msbuild

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"github.com/matzehuels/projmigrate/pkg/errors"
	"github.com/matzehuels/projmigrate/pkg/project"
)

// LegacyNamespace is the XML namespace of pre-SDK project files.
const LegacyNamespace = "http://schemas.microsoft.com/developer/msbuild/2003"

var utf8BOM = []byte("\xef\xbb\xbf")

// Style is the project file format.
type Style int

const (
	// Legacy projects carry ToolsVersion, the 2003 namespace or a
	// TargetFrameworkVersion property.
	Legacy Style = iota
	// SDK projects name an Sdk on the root element.
	SDK
)

func (s Style) String() string {
	if s == SDK {
		return "sdk"
	}
	return "legacy"
}

// Project is one loaded .csproj file.
//
// Project is not safe for concurrent use.
type Project struct {
	path    string
	name    string
	doc     *etree.Document
	deletes []string // files removed on Save
}

var _ project.Module = (*Project)(nil)

// Load reads and parses the project file at path.
// Unreadable files and documents without a <Project> root are reported as
// errors.ErrCodeInvalidProject.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidProject, err, "read %s", path)
	}
	return Parse(path, data)
}

// Parse builds a Project from data as if it had been read from path.
func Parse(path string, data []byte) (*Project, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(bytes.TrimPrefix(data, utf8BOM)); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidProject, err, "parse %s", filepath.Base(path))
	}
	root := doc.Root()
	if root == nil || root.Tag != "Project" {
		return nil, errors.New(errors.ErrCodeInvalidProject, "%s: root element is not <Project>", filepath.Base(path))
	}
	return &Project{
		path: path,
		name: stem(path),
		doc:  doc,
	}, nil
}

// Name returns the file name without its extension.
func (p *Project) Name() string { return p.name }

// Path returns the project file path.
func (p *Project) Path() string { return p.path }

// Dir returns the directory containing the project file.
func (p *Project) Dir() string { return filepath.Dir(p.path) }

// Style reports whether the project is already in SDK format.
func (p *Project) Style() Style {
	root := p.root()
	if root.SelectAttr("Sdk") != nil {
		return SDK
	}
	return Legacy
}

// IsLegacy reports whether the document carries any legacy marker.
func (p *Project) IsLegacy() bool {
	root := p.root()
	if root.SelectAttr("ToolsVersion") != nil {
		return true
	}
	if root.SelectAttrValue("xmlns", "") == LegacyNamespace {
		return true
	}
	_, ok := p.Property("TargetFrameworkVersion")
	return ok
}

// DependsOn returns the file stems of all ProjectReference items.
func (p *Project) DependsOn() []string {
	var out []string
	for _, item := range p.Items("ProjectReference") {
		if inc := item.SelectAttrValue("Include", ""); inc != "" {
			out = append(out, stem(inc))
		}
	}
	return out
}

// Packages returns all PackageReference items with an Include.
// Update items modify references declared elsewhere and are not listed.
func (p *Project) Packages() []project.PackageReference {
	var out []project.PackageReference
	for _, item := range p.Items("PackageReference") {
		name := item.SelectAttrValue("Include", "")
		if name == "" {
			continue
		}
		out = append(out, project.PackageReference{Name: name, Version: metadata(item, "Version")})
	}
	return out
}

// SetPackageVersion rewrites the version of the named PackageReference,
// wherever the version is stored. It reports whether anything changed.
func (p *Project) SetPackageVersion(name, version string) bool {
	for _, item := range p.Items("PackageReference") {
		if !strings.EqualFold(item.SelectAttrValue("Include", ""), name) {
			continue
		}
		if metadata(item, "Version") == version {
			return false
		}
		setMetadata(item, "Version", version)
		return true
	}
	return false
}

// Bytes serializes the document with two-space indentation.
func (p *Project) Bytes() ([]byte, error) {
	p.doc.Indent(2)
	var buf bytes.Buffer
	if _, err := p.doc.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "serialize %s", p.name)
	}
	return buf.Bytes(), nil
}

// Save writes the project back to its path and removes files the
// conversion dropped from the project, such as packages.config.
func (p *Project) Save() error {
	data, err := p.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeSaveFailed, err, "write %s", p.path)
	}
	for _, f := range p.deletes {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(errors.ErrCodeSaveFailed, err, "remove %s", f)
		}
	}
	p.deletes = nil
	return nil
}

// PendingDeletes lists the files Save will remove.
func (p *Project) PendingDeletes() []string {
	return append([]string(nil), p.deletes...)
}

func (p *Project) root() *etree.Element { return p.doc.Root() }

// stem returns the base name of an MSBuild path without its extension.
// Backslash separators are accepted on every platform.
func stem(s string) string {
	base := path.Base(strings.ReplaceAll(s, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}
