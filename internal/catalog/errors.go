package catalog

import (
	"errors"
	"fmt"
)

// Sources a ParseError can originate from.
const (
	SourceFeed  = "feed"
	SourceCache = "cache"
)

// Sentinel errors
var (
	// ErrParse matches every *ParseError via errors.Is.
	ErrParse = errors.New("catalog parse error")

	// ErrVersionNotFound matches every *VersionNotFoundError via errors.Is.
	ErrVersionNotFound = errors.New("version not found")
)

// ParseError reports a feed or cache document that could not be turned into
// a catalog.
type ParseError struct {
	Source string
	Item   int
	Field  string
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("failed to parse %s: %s", e.Source, e.Reason)
	if e.Field != "" {
		msg = fmt.Sprintf("%s %q in item %d", msg, e.Field, e.Item)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// VersionNotFoundError is returned when no release matches a query.
type VersionNotFoundError struct {
	Query string
}

func (e *VersionNotFoundError) Error() string {
	if e.Query == "" {
		return "no matching Android Studio release found; run 'astudios list' to see available versions"
	}
	return fmt.Sprintf("Android Studio version %q not found; run 'astudios list' to see available versions", e.Query)
}

func (e *VersionNotFoundError) Is(target error) bool {
	return target == ErrVersionNotFound
}
