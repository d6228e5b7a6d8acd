package errors

import (
	"os"
	"strings"
	"unicode"
)

// ValidateWorkspaceDir checks that dir names an existing directory that can
// be searched for project files. It is the only run-fatal validation: every
// other input problem is scoped to a single project.
func ValidateWorkspaceDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return New(ErrCodeInvalidInput, "a target directory is required")
	}

	for _, r := range dir {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return New(ErrCodeNotFound, "directory %s does not exist", dir)
	}
	if err != nil {
		return Wrap(ErrCodeInvalidPath, err, "stat %s", dir)
	}
	if !info.IsDir() {
		return New(ErrCodeInvalidPath, "%s is not a directory", dir)
	}
	return nil
}

// ValidateModuleName validates a project name taken from a descriptor file.
// Names become graph identities and diagram labels, so they must be
// non-empty, single-line and free of path separators.
func ValidateModuleName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidProject, "project name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidProject, "project name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidProject, "project name contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidProject, "project name %q contains path separators", name)
	}

	return nil
}

// ValidatePackageName validates a package identifier read from a
// PackageReference or a legacy HintPath.
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidProject, "package name cannot be empty")
	}

	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidProject, "package name %q contains invalid characters", name)
		}
	}

	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return New(ErrCodeInvalidProject, "package name %q contains path characters", name)
	}

	return nil
}
