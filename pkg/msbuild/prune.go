package msbuild

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/projmigrate/pkg/errors"
)

// DefaultPruneItemTypes are the item types whose files count as referenced.
var DefaultPruneItemTypes = []string{"Compile", "None", "Content", "EmbeddedResource"}

// skipDirs are never searched for unreferenced files.
var skipDirs = map[string]bool{
	"bin":          true,
	"obj":          true,
	"node_modules": true,
	"packages":     true,
}

// UnreferencedFiles lists the files under the project directory that no item
// of the given types (DefaultPruneItemTypes when empty) references, directly
// or through DependentUpon. Build output, hidden directories and directories
// holding another project file are not searched.
//
// The plan must be computed before [Convert], while the project still lists
// its files explicitly. Projects using wildcard items are rejected with
// errors.ErrCodeUnsupported.
func UnreferencedFiles(p *Project, itemTypes []string) ([]string, error) {
	if len(itemTypes) == 0 {
		itemTypes = DefaultPruneItemTypes
	}
	dir := p.Dir()

	keep := map[string]bool{fileKey(filepath.Base(p.path)): true}
	addRef := func(rel string) {
		keep[fileKey(rel)] = true
	}

	for _, item := range p.AllItems() {
		incs := itemPaths(item.SelectAttrValue("Include", "") + ";" + item.SelectAttrValue("Update", ""))
		if slices.Contains(itemTypes, item.Tag) {
			for _, inc := range incs {
				if strings.ContainsAny(inc, "*?") {
					return nil, errors.New(errors.ErrCodeUnsupported, "%s uses wildcard item %q; not pruned", p.Name(), inc)
				}
				addRef(inc)
			}
		}
		if dep := metadata(item, "DependentUpon"); dep != "" {
			for _, inc := range incs {
				addRef(filepath.Join(filepath.Dir(filepath.FromSlash(inc)), dep))
			}
		}
	}

	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if skipDirs[strings.ToLower(d.Name())] || strings.HasPrefix(d.Name(), ".") || holdsProject(path) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if !keep[fileKey(rel)] {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePruneFailed, err, "scan %s", dir)
	}
	slices.Sort(out)
	return out, nil
}

// RemoveFiles deletes files, continuing past failures. It returns the first
// failure.
func RemoveFiles(files []string) error {
	var first error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) && first == nil {
			first = errors.Wrap(errors.ErrCodePruneFailed, err, "remove %s", f)
		}
	}
	return first
}

// itemPaths splits a semicolon separated item specification into
// slash-separated paths.
func itemPaths(spec string) []string {
	var out []string
	for _, s := range strings.Split(spec, ";") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, filepath.ToSlash(strings.ReplaceAll(s, `\`, "/")))
		}
	}
	return out
}

// fileKey normalizes a project-relative path for case-insensitive matching.
func fileKey(rel string) string {
	rel = strings.ReplaceAll(rel, `\`, "/")
	return strings.ToLower(filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel))))
}

func holdsProject(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	return slices.ContainsFunc(entries, func(e fs.DirEntry) bool {
		return !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csproj")
	})
}
