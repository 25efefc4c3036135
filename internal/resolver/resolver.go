package resolver

import (
	"context"
	"errors"
	"fmt"
)

// ResolvedFile is the product of a successful folder resolution.
type ResolvedFile struct {
	// FileURL is a directly downloadable URL for the folder's
	// representative file.
	FileURL string

	// NameHint is the file name as shown in the folder listing, when
	// available. Used to pick the output file extension; may be empty.
	NameHint string
}

// Resolver maps a shared-folder reference to a concrete downloadable
// file URL. Implementations may be arbitrarily expensive (the Dropbox
// resolver drives a headless browser) and must honor ctx cancellation.
//
// The orchestrator core depends only on this interface, so it can be
// tested with a stub resolver.
type Resolver interface {
	Resolve(ctx context.Context, folderRef string) (ResolvedFile, error)
}

// Sentinel errors classifying resolution failures. Implementations
// return an *Error whose Kind matches one of these, so callers can use
// errors.Is without depending on a concrete resolver:
//
//	if errors.Is(err, resolver.ErrTimeout) { ... }
var (
	ErrNotFound     = errors.New("folder or file not found")
	ErrTimeout      = errors.New("resolution timed out")
	ErrUnauthorized = errors.New("folder requires authorization")
)

// Error is a resolution failure with its classification and the folder
// reference that failed.
type Error struct {
	Ref  string
	Kind error // one of the sentinel errors above, or nil for unknown
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("resolve %s: %v: %v", e.Ref, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("resolve %s: %v", e.Ref, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("resolve %s: %v", e.Ref, e.Err)
	default:
		return fmt.Sprintf("resolve %s: unknown error", e.Ref)
	}
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error against its kind sentinel.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// newError wraps cause with a classification for folderRef.
func newError(folderRef string, kind, cause error) *Error {
	return &Error{Ref: folderRef, Kind: kind, Err: cause}
}
