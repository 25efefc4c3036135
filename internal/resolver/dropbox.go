package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Options configures the Dropbox resolver's browser.
type Options struct {
	// Headless runs the browser without a visible window. On by default
	// outside of debugging sessions.
	Headless bool

	// BrowserPath points at a Chrome/Chromium binary. Empty means
	// rod's launcher locates one itself.
	BrowserPath string

	// Timeout bounds a single resolution, from navigation to the file
	// link being located.
	Timeout time.Duration
}

// DropboxResolver resolves Dropbox shared-folder links by rendering the
// folder page in a headless Chromium and picking the first file entry.
//
// Dropbox folder pages are built client-side, so a plain HTTP GET never
// sees the file listing. The browser is launched lazily on the first
// Resolve call and shared across calls; each resolution gets its own
// page. Safe for concurrent use.
type DropboxResolver struct {
	mu      sync.Mutex
	opts    Options
	browser *rod.Browser
}

// NewDropboxResolver creates a resolver with the given options.
// The browser is not started until Resolve is first called.
func NewDropboxResolver(opts Options) *DropboxResolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	return &DropboxResolver{opts: opts}
}

// ensureBrowser starts the shared browser if it is not already running.
// Must be called with r.mu held.
func (r *DropboxResolver) ensureBrowser() error {
	if r.browser != nil {
		return nil
	}

	l := launcher.New().Headless(r.opts.Headless)
	if r.opts.BrowserPath != "" {
		l = l.Bin(r.opts.BrowserPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}

	r.browser = browser
	return nil
}

// Resolve renders the shared folder page and returns a direct-download
// URL for its first file entry.
func (r *DropboxResolver) Resolve(ctx context.Context, folderRef string) (ResolvedFile, error) {
	ref, err := url.Parse(folderRef)
	if err != nil || ref.Host == "" {
		return ResolvedFile{}, newError(folderRef, ErrNotFound, fmt.Errorf("not a valid URL"))
	}

	r.mu.Lock()
	err = r.ensureBrowser()
	browser := r.browser
	r.mu.Unlock()
	if err != nil {
		return ResolvedFile{}, newError(folderRef, nil, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return ResolvedFile{}, newError(folderRef, nil, fmt.Errorf("create page: %w", err))
	}
	defer page.Close()

	page = page.Context(ctx)

	if err := page.Navigate(folderRef); err != nil {
		return ResolvedFile{}, r.classify(folderRef, err)
	}
	if err := page.WaitLoad(); err != nil {
		return ResolvedFile{}, r.classify(folderRef, err)
	}

	// The listing is populated asynchronously after load; poll for the
	// first anchor that looks like a file entry.
	link, name, err := r.waitForFileLink(ctx, page)
	if err != nil {
		return ResolvedFile{}, r.classify(folderRef, err)
	}
	if link == "" {
		if locked, _ := r.pageLocked(page); locked {
			return ResolvedFile{}, newError(folderRef, ErrUnauthorized, nil)
		}
		return ResolvedFile{}, newError(folderRef, ErrNotFound, fmt.Errorf("no file entries in folder listing"))
	}

	return ResolvedFile{
		FileURL:  toDirectDownload(link),
		NameHint: fileNameHint(link, name),
	}, nil
}

// Close shuts down the shared browser. Subsequent Resolve calls will
// relaunch it.
func (r *DropboxResolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}

const findFileLinkJS = `() => {
	const anchors = document.querySelectorAll('a[href*="dropbox.com/s"], a[href*="?dl=0"]');
	for (const a of anchors) {
		if (a.href.includes("/sh/") || a.href.includes("/s/") || a.href.includes("/scl/fi/")) {
			return { href: a.href, name: a.textContent.trim() };
		}
	}
	return null;
}`

// waitForFileLink polls the rendered page for the first file anchor.
// Returns empty strings when the page settled without one.
func (r *DropboxResolver) waitForFileLink(ctx context.Context, page *rod.Page) (link, name string, err error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		res, err := page.Eval(findFileLinkJS)
		if err != nil {
			return "", "", err
		}
		if !res.Value.Nil() {
			return res.Value.Get("href").Str(), res.Value.Get("name").Str(), nil
		}

		select {
		case <-ctx.Done():
			// Page settled without a file entry; let the caller decide
			// between not-found and timeout.
			return "", "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// pageLocked checks whether the rendered page is a password or sign-in
// gate rather than a folder listing.
func (r *DropboxResolver) pageLocked(page *rod.Page) (bool, error) {
	res, err := page.Eval(`() => {
		const t = (document.title + " " + document.body.innerText.slice(0, 500)).toLowerCase();
		return t.includes("password") || t.includes("sign in") || t.includes("log in");
	}`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// classify maps browser-level failures onto the resolver error taxonomy.
func (r *DropboxResolver) classify(folderRef string, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(folderRef, ErrTimeout, err)
	case strings.Contains(err.Error(), "net::ERR_NAME_NOT_RESOLVED"),
		strings.Contains(err.Error(), "net::ERR_ABORTED"):
		return newError(folderRef, ErrNotFound, err)
	default:
		return newError(folderRef, nil, err)
	}
}

// toDirectDownload rewrites a Dropbox share link into a direct-download
// link (dl=1 serves the raw bytes instead of the preview page).
func toDirectDownload(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	q := u.Query()
	q.Set("dl", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

// fileNameHint derives a file name from the link path, falling back to
// the anchor text.
func fileNameHint(link, anchorText string) string {
	if u, err := url.Parse(link); err == nil {
		if base := path.Base(u.Path); strings.Contains(base, ".") {
			return base
		}
	}
	return anchorText
}
