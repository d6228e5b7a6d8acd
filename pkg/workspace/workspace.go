// Package workspace discovers and loads the project files under a directory.
package workspace

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/errors"
	"github.com/matzehuels/projmigrate/pkg/msbuild"
	"github.com/matzehuels/projmigrate/pkg/project"
)

// ProjectExt is the extension of the project files searched for.
const ProjectExt = ".csproj"

// ignoredDirs are never descended into.
var ignoredDirs = map[string]bool{
	"bin":          true,
	"obj":          true,
	"packages":     true,
	"node_modules": true,
}

// Discover returns the paths of all project files under root, sorted.
// Build output, package folders and hidden directories are skipped.
func Discover(ctx context.Context, root string) ([]string, error) {
	if err := errors.ValidateWorkspaceDir(root); err != nil {
		return nil, err
	}

	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (ignoredDirs[strings.ToLower(d.Name())] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ProjectExt) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "search %s", root)
	}
	slices.Sort(out)
	return out, nil
}

// Load loads every path. Projects that fail to load are reported to sink as
// errors and left out; the returned slice keeps the order of paths.
func Load(ctx context.Context, paths []string, sink diag.Sink) ([]*msbuild.Project, error) {
	out := make([]*msbuild.Project, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := msbuild.Load(path)
		if err != nil {
			diag.Errorf(sink, stemOf(path), "skipped: %s", errors.UserMessage(err))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Modules adapts loaded projects for the graph builder.
func Modules(projects []*msbuild.Project) []project.Module {
	out := make([]project.Module, len(projects))
	for i, p := range projects {
		out[i] = p
	}
	return out
}

// Filter keeps the projects whose names are in names, ignoring case.
// A nil names keeps everything.
func Filter(projects []*msbuild.Project, names []string) []*msbuild.Project {
	if names == nil {
		return projects
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[project.Key(n)] = true
	}
	var out []*msbuild.Project
	for _, p := range projects {
		if keep[project.Key(p.Name())] {
			out = append(out, p)
		}
	}
	return out
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
