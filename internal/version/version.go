// Package version orders Android Studio version and build strings and checks
// the tool's own semantic version.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	goversion "github.com/hashicorp/go-version"
)

// String constants for operations (used in ErrVersionParseFailed)
const (
	OpParseConstraint = "parse_constraint"
	OpCheckConstraint = "check_constraint"
	OpParseCurrent    = "parse_current"
	OpParseCandidate  = "parse_candidate"
)

// Custom error types for better error handling and comparison
var (
	ErrInvalidVersion    = errors.New("invalid version format")
	ErrInvalidConstraint = errors.New("invalid version constraint")
)

// ErrVersionParseFailed represents a version parsing error
type ErrVersionParseFailed struct {
	Version string
	Op      string
	Cause   error
}

func (e ErrVersionParseFailed) Error() string {
	return fmt.Sprintf("failed to parse version %s in operation %s: %v", e.Version, e.Op, e.Cause)
}

func (e ErrVersionParseFailed) Unwrap() error {
	return e.Cause
}

func (e ErrVersionParseFailed) Is(target error) bool {
	var parseErr ErrVersionParseFailed
	return errors.As(target, &parseErr)
}

// Compare orders two dotted version strings by their numeric segments, so
// "2025.10" sorts after "2025.9". It returns -1, 0 or +1.
//
// Strings that are not plain dotted numbers fall back to a segment-wise
// comparison where numeric segments compare as numbers and everything else
// compares lexicographically.
func Compare(a, b string) int {
	va, errA := goversion.NewVersion(a)
	vb, errB := goversion.NewVersion(b)
	if errA == nil && errB == nil {
		if c := va.Compare(vb); c != 0 {
			return c
		}
		// go-version treats "1.0" and "1.0.0" as equal; keep the order total
		return strings.Compare(a, b)
	}
	return compareSegments(a, b)
}

// CompareBuild orders build identifiers such as "AI-251.26094.121.2513.14007798"
// after stripping their product-code prefix.
func CompareBuild(a, b string) int {
	c := Compare(StripProductCode(a), StripProductCode(b))
	if c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// StripProductCode removes a leading alphabetic product code and its
// separator ("AI-233.1" -> "233.1"). Builds without one are returned as is.
func StripProductCode(build string) string {
	code, rest, found := strings.Cut(build, "-")
	if !found || code == "" {
		return build
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return build
		}
	}
	return rest
}

// ProductCode returns the product code prefix of a build identifier, or def
// when the build carries none.
func ProductCode(build, def string) string {
	code, _, found := strings.Cut(build, "-")
	if !found || code == "" {
		return def
	}
	return code
}

func compareSegments(a, b string) int {
	sa := strings.FieldsFunc(a, isSeparator)
	sb := strings.FieldsFunc(b, isSeparator)
	for i := 0; i < len(sa) && i < len(sb); i++ {
		na, errA := strconv.ParseUint(sa[i], 10, 64)
		nb, errB := strconv.ParseUint(sb[i], 10, 64)
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		default:
			if c := strings.Compare(sa[i], sb[i]); c != 0 {
				return c
			}
		}
	}
	switch {
	case len(sa) < len(sb):
		return -1
	case len(sa) > len(sb):
		return 1
	}
	return strings.Compare(a, b)
}

func isSeparator(r rune) bool {
	return r == '.' || r == '-' || r == ' ' || r == '_'
}

// Constraint filters versions against an expression such as ">= 2024.1, < 2025".
type Constraint struct {
	raw         string
	constraints goversion.Constraints
}

// ParseConstraint parses a comma separated constraint expression.
func ParseConstraint(expr string) (*Constraint, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidConstraint)
	}
	c, err := goversion.NewConstraint(expr)
	if err != nil {
		return nil, ErrVersionParseFailed{Version: expr, Op: OpParseConstraint, Cause: fmt.Errorf("%w: %v", ErrInvalidConstraint, err)}
	}
	return &Constraint{raw: expr, constraints: c}, nil
}

// Check reports whether v satisfies the constraint. Versions that cannot be
// parsed never satisfy it.
func (c *Constraint) Check(v string) bool {
	parsed, err := goversion.NewVersion(v)
	if err != nil {
		return false
	}
	return c.constraints.Check(parsed)
}

func (c *Constraint) String() string {
	return c.raw
}

// IsNewer reports whether candidate is a newer semantic version than current.
// Both may carry a leading "v".
func IsNewer(current, candidate string) (bool, error) {
	cur, err := semver.NewVersion(current)
	if err != nil {
		return false, ErrVersionParseFailed{Version: current, Op: OpParseCurrent, Cause: fmt.Errorf("%w: %v", ErrInvalidVersion, err)}
	}
	cand, err := semver.NewVersion(candidate)
	if err != nil {
		return false, ErrVersionParseFailed{Version: candidate, Op: OpParseCandidate, Cause: fmt.Errorf("%w: %v", ErrInvalidVersion, err)}
	}
	return cand.GreaterThan(cur), nil
}

// MajorMinorPatch extracts the first three numeric components of a dotted
// version, padding missing ones with zero. Extra segments ("2024.3.1.15")
// are ignored.
func MajorMinorPatch(v string) (major, minor, patch int64, err error) {
	parsed, err := goversion.NewVersion(v)
	if err != nil {
		return 0, 0, 0, ErrVersionParseFailed{Version: v, Op: OpParseCandidate, Cause: fmt.Errorf("%w: %v", ErrInvalidVersion, err)}
	}
	segments := parsed.Segments64()
	for len(segments) < 3 {
		segments = append(segments, 0)
	}
	return segments[0], segments[1], segments[2], nil
}
