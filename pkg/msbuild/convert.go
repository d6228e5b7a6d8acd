package msbuild

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/errors"
	"github.com/matzehuels/projmigrate/pkg/project"
	"github.com/matzehuels/projmigrate/pkg/version"
)

// Property is a name/value pair written by [AddRequiredProperties].
type Property struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

// Options configures [Convert].
type Options struct {
	// Sdk is written to the root element's Sdk attribute.
	Sdk string

	// Properties are set on every converted project.
	Properties []Property

	// TestMarker selects test projects by a substring of their name.
	TestMarker string

	// TestPackages are added to test projects that lack them.
	TestPackages []project.PackageReference

	// WebTargetsVersion is the version of the
	// MSBuild.Microsoft.VisualStudio.Web.targets package added to web
	// application projects.
	WebTargetsVersion string

	// Sink receives per-step diagnostics. Nil discards them.
	Sink diag.Sink
}

// DefaultOptions returns the conversion settings used by the CLI when no
// configuration overrides them.
func DefaultOptions() Options {
	return Options{
		Sdk: "Microsoft.NET.Sdk",
		Properties: []Property{
			{"RestoreProjectStyle", "PackageReference"},
			{"EnableDefaultEmbeddedResourceItems", "false"},
			{"AutoGenerateBindingRedirects", "true"},
			{"GenerateBindingRedirectsOutputType", "true"},
		},
		TestMarker: "Tests",
		TestPackages: []project.PackageReference{
			{Name: "MSTest.TestAdapter", Version: "1.1.18"},
			{Name: "MSTest.TestFramework", Version: "1.1.18"},
		},
		WebTargetsVersion: "14.0.0.3",
	}
}

// Step is one named conversion stage.
type Step struct {
	Name  string
	Apply func(p *Project, opts Options) error
}

// Steps lists the conversion stages in the order [Convert] runs them.
var Steps = []Step{
	{"transform-references", TransformReferences},
	{"transform-project-type", TransformProjectType},
	{"delete-packages-config", DeletePackagesConfig},
	{"remove-compile-items", RemoveCompileItems},
	{"update-none-items", UpdateNoneItems},
	{"remove-assembly-info", RemoveAssemblyInfo},
	{"add-required-properties", AddRequiredProperties},
	{"remove-project-reference-guids", RemoveProjectReferenceGuids},
	{"add-migration-packages", AddMigrationPackages},
	{"strip-legacy-header", StripLegacyHeader},
	{"inline-package-versions", InlinePackageVersions},
}

// Convert rewrites a legacy project into SDK style in memory.
//
// Projects already in SDK style are rejected with
// errors.ErrCodeNotConvertible, as are legacy projects without a
// TargetFrameworkVersion. A failed conversion may leave the document partly
// rewritten; such a project must not be saved.
func Convert(p *Project, opts Options) error {
	if p.Style() == SDK {
		return errors.New(errors.ErrCodeNotConvertible, "%s is already an SDK-style project", p.Name())
	}
	for _, s := range Steps {
		if err := s.Apply(p, opts); err != nil {
			return err
		}
	}
	p.removeEmptyGroups()
	return nil
}

// TransformReferences replaces assembly references resolved from a
// packages folder with PackageReference items. The package name and version
// are read from the HintPath folder, for example
// ..\packages\Newtonsoft.Json.9.0.1\lib\net45\Newtonsoft.Json.dll. When the
// same package is referenced at several versions the highest one is kept.
// References without a package HintPath are left alone.
func TransformReferences(p *Project, opts Options) error {
	var order []string
	found := make(map[string]project.PackageReference)

	for _, ref := range p.Items("Reference") {
		hint := metadata(ref, "HintPath")
		if hint == "" {
			continue
		}
		pkg, ok := ParseHintPath(hint)
		if !ok {
			continue
		}

		key := pkg.Key()
		if prev, seen := found[key]; seen {
			c, err := version.Compare(pkg.Version, prev.Version)
			switch {
			case err != nil:
				diag.Warnf(opts.Sink, p.Name(), "keeping %s: %v", prev, err)
			case c > 0:
				diag.Infof(opts.Sink, p.Name(), "%s raised from %s to %s, a higher version is referenced", prev.Name, prev.Version, pkg.Version)
				found[key] = project.PackageReference{Name: prev.Name, Version: pkg.Version}
			}
		} else {
			order = append(order, key)
			found[key] = pkg
		}
		RemoveItem(ref)
	}

	existing := p.Packages()
	for _, key := range order {
		pkg := found[key]
		if cur, ok := project.Find(existing, pkg.Name); ok {
			if less, err := version.Less(cur.Version, pkg.Version); err == nil && less {
				p.SetPackageVersion(cur.Name, pkg.Version)
			}
			continue
		}
		p.AddItem("PackageReference", pkg.Name, "Version", pkg.Version)
	}
	return nil
}

// ParseHintPath extracts a package reference from a HintPath pointing into
// a packages folder. The folder name after "packages" is split on dots; the
// version starts at the first all-numeric segment, moving right while the
// candidate name or version does not parse, so numeric segments inside a
// package name such as Foo.2.Bar stay in the name.
func ParseHintPath(hint string) (project.PackageReference, bool) {
	segs := strings.Split(strings.ReplaceAll(hint, `\`, "/"), "/")
	i := slices.IndexFunc(segs, func(s string) bool { return strings.EqualFold(s, "packages") })
	if i < 0 || i+1 >= len(segs) {
		return project.PackageReference{}, false
	}

	parts := strings.Split(segs[i+1], ".")
	first := slices.IndexFunc(parts, isNumeric)
	if first < 0 {
		return project.PackageReference{}, false
	}
	for k := max(first, 1); k < len(parts); k++ {
		name := strings.Join(parts[:k], ".")
		ver := strings.Join(parts[k:], ".")
		if version.Valid(ver) && errors.ValidatePackageName(name) == nil {
			return project.PackageReference{Name: name, Version: ver}, true
		}
	}
	return project.PackageReference{}, false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// frameworkImports are the legacy imports replaced by the SDK.
var frameworkImports = []string{
	"Microsoft.Common.props",
	"Microsoft.CSharp.targets",
	"Microsoft.Web.Publishing.targets",
	"Microsoft.TestTools.targets",
}

// TransformProjectType switches the project to the SDK: it sets the Sdk
// attribute, drops ToolsVersion and the framework imports, and rewrites
// TargetFrameworkVersion (v4.6.1) as TargetFramework (net461). Web
// application projects get the Visual Studio web targets package.
func TransformProjectType(p *Project, opts Options) error {
	root := p.root()

	var fw []*etree.Element
	for _, group := range root.SelectElements("PropertyGroup") {
		fw = append(fw, group.SelectElements("TargetFrameworkVersion")...)
	}
	if len(fw) == 0 {
		return errors.New(errors.ErrCodeNotConvertible, "%s has no TargetFrameworkVersion; not a .NET Framework project", p.Name())
	}

	sdk := opts.Sdk
	if sdk == "" {
		sdk = "Microsoft.NET.Sdk"
	}
	if a := root.SelectAttr("Sdk"); a != nil {
		a.Value = sdk
	} else {
		root.CreateAttr("Sdk", sdk)
		// Sdk leads the root element's attributes.
		n := len(root.Attr)
		sdkAttr := root.Attr[n-1]
		copy(root.Attr[1:], root.Attr[:n-1])
		root.Attr[0] = sdkAttr
	}
	root.RemoveAttr("ToolsVersion")

	web := false
	for _, imp := range root.FindElements("//Import") {
		target := imp.SelectAttrValue("Project", "")
		if strings.Contains(target, "Microsoft.WebApplication.targets") && strings.Contains(target, "VSToolsPath") {
			web = true
		}
		if slices.ContainsFunc(frameworkImports, func(s string) bool { return strings.Contains(target, s) }) {
			RemoveItem(imp)
		}
	}
	if web && opts.WebTargetsVersion != "" {
		if _, ok := project.Find(p.Packages(), "MSBuild.Microsoft.VisualStudio.Web.targets"); !ok {
			p.AddItem("PackageReference", "MSBuild.Microsoft.VisualStudio.Web.targets", "Version", opts.WebTargetsVersion)
		}
	}

	for _, el := range fw {
		v := strings.TrimSpace(el.Text())
		el.Tag = "TargetFramework"
		el.SetText(TargetFramework(v))
	}
	return nil
}

// TargetFramework converts a TargetFrameworkVersion value such as v4.6.1
// to its target framework moniker, net461.
func TargetFramework(frameworkVersion string) string {
	v := strings.TrimPrefix(strings.TrimSpace(frameworkVersion), "v")
	return "net" + strings.ReplaceAll(v, ".", "")
}

// DeletePackagesConfig removes the packages.config item. The file itself is
// deleted when the project is saved.
func DeletePackagesConfig(p *Project, opts Options) error {
	for _, item := range p.AllItems() {
		inc := item.SelectAttrValue("Include", "")
		if !strings.EqualFold(stemWithExt(inc), "packages.config") {
			continue
		}
		RemoveItem(item)
		p.deletes = append(p.deletes, filepath.Join(p.Dir(), filepath.FromSlash(strings.ReplaceAll(inc, `\`, "/"))))
	}
	return nil
}

func stemWithExt(s string) string {
	s = strings.ReplaceAll(s, `\`, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// RemoveCompileItems drops Compile items the SDK globs pick up anyway and
// turns the ones carrying metadata into Update items.
func RemoveCompileItems(p *Project, opts Options) error {
	for _, item := range p.Items("Compile") {
		if !HasMetadata(item) {
			RemoveItem(item)
			continue
		}
		includeToUpdate(item)
	}
	return nil
}

// UpdateNoneItems turns None items carrying metadata into Update items.
func UpdateNoneItems(p *Project, opts Options) error {
	for _, item := range p.Items("None") {
		if HasMetadata(item) {
			includeToUpdate(item)
		}
	}
	return nil
}

func includeToUpdate(item *etree.Element) {
	inc := item.SelectAttr("Include")
	if inc == nil {
		return
	}
	v := inc.Value
	item.RemoveAttr("Include")
	item.CreateAttr("Update", v)
}

// RemoveAssemblyInfo drops items including AssemblyInfo.cs; the SDK
// generates assembly attributes.
func RemoveAssemblyInfo(p *Project, opts Options) error {
	for _, item := range p.AllItems() {
		if strings.Contains(item.SelectAttrValue("Include", ""), "AssemblyInfo.cs") ||
			strings.Contains(item.SelectAttrValue("Update", ""), "AssemblyInfo.cs") {
			RemoveItem(item)
		}
	}
	return nil
}

// AddRequiredProperties sets the configured properties.
func AddRequiredProperties(p *Project, opts Options) error {
	for _, prop := range opts.Properties {
		p.SetProperty(prop.Name, prop.Value)
	}
	return nil
}

// RemoveProjectReferenceGuids drops the Project and Name metadata SDK
// projects no longer need.
func RemoveProjectReferenceGuids(p *Project, opts Options) error {
	for _, item := range p.Items("ProjectReference") {
		removeMetadata(item, "Project")
		removeMetadata(item, "Name")
	}
	return nil
}

// AddMigrationPackages adds the test packages to projects whose name
// contains the test marker.
func AddMigrationPackages(p *Project, opts Options) error {
	if opts.TestMarker == "" || !strings.Contains(p.Name(), opts.TestMarker) {
		return nil
	}
	existing := p.Packages()
	for _, pkg := range opts.TestPackages {
		if _, ok := project.Find(existing, pkg.Name); ok {
			continue
		}
		p.AddItem("PackageReference", pkg.Name, "Version", pkg.Version)
		diag.Infof(opts.Sink, p.Name(), "added test package %s", pkg)
	}
	return nil
}

// StripLegacyHeader removes the XML declaration and the msbuild 2003
// namespace.
func StripLegacyHeader(p *Project, opts Options) error {
	root := p.root()
	if root.SelectAttrValue("xmlns", "") == LegacyNamespace {
		root.RemoveAttr("xmlns")
	}
	for _, tok := range slices.Clone(p.doc.Child) {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			p.doc.RemoveChild(pi)
		}
	}
	return nil
}

// InlinePackageVersions moves a PackageReference's Version child element
// into a Version attribute.
func InlinePackageVersions(p *Project, opts Options) error {
	for _, item := range p.Items("PackageReference") {
		child := item.SelectElement("Version")
		if child == nil || item.SelectAttr("Version") != nil {
			continue
		}
		v := strings.TrimSpace(child.Text())
		item.RemoveChild(child)
		item.CreateAttr("Version", v)
	}
	return nil
}
