// Package http provides the HTTP client used to fetch resolved files.
//
// The Client in this package handles:
//   - User-Agent headers and timeout handling
//   - Streaming downloads to disk with progress tracking
//   - Extension detection from the response Content-Type
//
// # Basic Usage
//
//	client := http.NewClient(60*time.Second, "dropfetch")
//
//	written, ext, err := client.Download(ctx, fileURL, tempPath, func(written, total int64) {
//	    fmt.Printf("%.1f%%\n", float64(written)/float64(total)*100)
//	})
//
// # Progress Tracking
//
// The ProgressWriter type can be used to wrap any io.Writer for progress tracking:
//
//	pw := &http.ProgressWriter{
//	    Writer:   file,
//	    Total:    contentLength,
//	    OnUpdate: func(written, total int64) { /* update UI */ },
//	}
package http
