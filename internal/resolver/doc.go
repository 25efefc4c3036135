// Package resolver maps shared-folder references to downloadable file
// URLs.
//
// The Resolver interface is the boundary the download manager depends
// on; the concrete DropboxResolver drives a headless Chromium via rod
// because Dropbox folder listings only exist after client-side
// rendering.
//
// # Error Taxonomy
//
// Failures are classified with sentinel errors so callers can branch
// without knowing the implementation:
//
//	file, err := res.Resolve(ctx, folderRef)
//	switch {
//	case errors.Is(err, resolver.ErrNotFound):     // empty or dead folder
//	case errors.Is(err, resolver.ErrTimeout):      // page never settled
//	case errors.Is(err, resolver.ErrUnauthorized): // password / sign-in gate
//	}
//
// Anything else is an unclassified resolver failure.
package resolver
