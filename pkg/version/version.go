// Package version orders package version strings.
//
// Versions are compared with strict semantic-version precedence using
// Masterminds/semver. Strings that are not strict semantic versions, such as the
// four-part "14.0.0.3" common in NuGet feeds, fall back to a dot-separated
// numeric tuple comparison. When neither form applies to both operands the
// comparison is unresolved and [Compare] returns [ErrUnresolved].
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// ErrUnresolved is returned when two versions cannot be ordered.
var ErrUnresolved = errors.New("version comparison unresolved")

// Compare compares a and b, returning:
//
//	-1 if a < b
//	 0 if a == b
//	 1 if a > b
//
// Build metadata does not take part in the comparison.
func Compare(a, b string) (int, error) {
	va, errA := mm.StrictNewVersion(a)
	vb, errB := mm.StrictNewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb), nil
	}

	ta, okA := parseTuple(a)
	tb, okB := parseTuple(b)
	if okA && okB {
		return compareTuples(ta, tb), nil
	}
	return 0, fmt.Errorf("%w: %q and %q", ErrUnresolved, a, b)
}

// Less reports whether a orders strictly below b. Unresolved comparisons
// report false together with the error.
func Less(a, b string) (bool, error) {
	c, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	return c < 0, nil
}

// Max returns the highest of the versions that can be ordered, together
// with the indexes of the versions that cannot be ordered against it. On
// ties the first occurrence wins. Max fails only when versions is empty or
// none of them can be ordered at all.
func Max(versions []string) (string, []int, error) {
	best := -1
	for i, v := range versions {
		if !Valid(v) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		if c, err := Compare(v, versions[best]); err == nil && c > 0 {
			best = i
		}
	}
	if best < 0 {
		if len(versions) == 0 {
			return "", nil, errors.New("version: max of empty set")
		}
		return "", nil, fmt.Errorf("%w: no orderable version in %q", ErrUnresolved, versions)
	}

	var unordered []int
	for i, v := range versions {
		if _, err := Compare(v, versions[best]); err != nil {
			unordered = append(unordered, i)
		}
	}
	return versions[best], unordered, nil
}

// Valid reports whether v can take part in ordering at all.
func Valid(v string) bool {
	if _, err := mm.StrictNewVersion(v); err == nil {
		return true
	}
	_, ok := parseTuple(v)
	return ok
}

func parseTuple(s string) ([]uint64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ".")
	out := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func compareTuples(a, b []uint64) int {
	n := max(len(a), len(b))
	for i := range n {
		var x, y uint64
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}
