package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davidmtr/dropfetch/internal/config"
	"github.com/davidmtr/dropfetch/internal/model"
	"github.com/davidmtr/dropfetch/internal/resolver"
)

// stubResolver resolves every folder reference to a fake file URL,
// optionally failing per reference. It tracks call counts and the
// maximum number of concurrent resolutions.
type stubResolver struct {
	mu    sync.Mutex
	calls map[string]int

	inFlight    int64
	maxInFlight int64

	delay time.Duration

	// failFor returns an error for the given reference and 1-based
	// call number; nil means resolve normally.
	failFor func(ref string, call int) error
}

func newStubResolver() *stubResolver {
	return &stubResolver{calls: make(map[string]int)}
}

func (s *stubResolver) Resolve(ctx context.Context, folderRef string) (resolver.ResolvedFile, error) {
	cur := atomic.AddInt64(&s.inFlight, 1)
	for {
		max := atomic.LoadInt64(&s.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt64(&s.maxInFlight, max, cur) {
			break
		}
	}
	defer atomic.AddInt64(&s.inFlight, -1)

	s.mu.Lock()
	s.calls[folderRef]++
	call := s.calls[folderRef]
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return resolver.ResolvedFile{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	if s.failFor != nil {
		if err := s.failFor(folderRef, call); err != nil {
			return resolver.ResolvedFile{}, err
		}
	}

	return resolver.ResolvedFile{
		FileURL:  "http://files.example/payload.jpg",
		NameHint: "payload.jpg",
	}, nil
}

func (s *stubResolver) callCount(ref string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[ref]
}

func (s *stubResolver) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// stubFetcher writes a small payload to the destination path. A custom
// fn can simulate transfer failures, including partial writes.
type stubFetcher struct {
	delay time.Duration
	fn    func(destPath string) (int64, string, error)
}

func (f *stubFetcher) Download(ctx context.Context, url, destPath string, onProgress func(written, total int64)) (int64, string, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return 0, "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.fn != nil {
		return f.fn(destPath)
	}
	payload := []byte("image-bytes")
	if err := os.WriteFile(destPath, payload, 0644); err != nil {
		return 0, "", err
	}
	return int64(len(payload)), ".jpg", nil
}

func testSettings(workers, retry int) *config.Settings {
	s := config.DefaultSettings()
	s.Workers = workers
	s.RetryAttempts = retry
	s.RetryCooldown = 0 // no backoff delays in tests
	return s
}

func newTestManager(t *testing.T, settings *config.Settings, outputRoot string, res resolver.Resolver) *Manager {
	t.Helper()
	paths := settings.ToPathConfig(outputRoot)
	m, err := NewManager(settings, paths, res, &stubFetcher{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func task(row int, id, ref, category string) *model.Task {
	return model.NewTask(row, id, ref, category)
}

func TestRun_SequentialWithOneFailure(t *testing.T) {
	out := t.TempDir()
	res := newStubResolver()
	res.failFor = func(ref string, call int) error {
		if ref == "ref-B" {
			return resolver.ErrNotFound
		}
		return nil
	}

	m := newTestManager(t, testSettings(1, 0), out, res)
	tasks := []*model.Task{
		task(0, "A", "ref-A", ""),
		task(1, "B", "ref-B", ""),
		task(2, "C", "ref-C", ""),
	}

	summary, err := m.Run(context.Background(), tasks)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Succeeded != 2 || summary.Skipped != 0 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 2 succeeded, 0 skipped, 1 failed", summary)
	}

	for _, id := range []string{"A", "C"} {
		if _, err := os.Stat(filepath.Join(out, id+".jpg")); err != nil {
			t.Errorf("expected %s.jpg on disk: %v", id, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "B.jpg")); err == nil {
		t.Error("B must not produce a file")
	}

	failed := m.FailedTasks()
	if len(failed) != 1 || failed[0].Identifier != "B" {
		t.Errorf("FailedTasks = %v, want exactly B", failed)
	}

	outcomes := m.Exhausted()
	if len(outcomes) != 1 {
		t.Fatalf("Exhausted = %d outcomes, want 1", len(outcomes))
	}
	if outcomes[0].Status != model.StatusResolutionFailed {
		t.Errorf("status = %v, want resolution failed", outcomes[0].Status)
	}
	if outcomes[0].Err == "" {
		t.Error("exhausted outcome must carry error detail")
	}
}

func TestRun_SkipsExistingFile(t *testing.T) {
	out := t.TempDir()
	if err := os.WriteFile(filepath.Join(out, "A.png"), []byte("already here"), 0644); err != nil {
		t.Fatal(err)
	}

	res := newStubResolver()
	m := newTestManager(t, testSettings(1, 0), out, res)

	summary, err := m.Run(context.Background(), []*model.Task{task(0, "A", "ref-A", "")})
	if err != nil {
		t.Fatal(err)
	}

	if res.totalCalls() != 0 {
		t.Errorf("resolver called %d times, want 0 for satisfied task", res.totalCalls())
	}
	if summary.Skipped != 1 || summary.Succeeded != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 1 skipped only", summary)
	}
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	out := t.TempDir()
	tasks := []*model.Task{
		task(0, "A", "ref-A", ""),
		task(1, "B", "ref-B", "Snacks"),
	}

	first := newStubResolver()
	m1 := newTestManager(t, testSettings(2, 0), out, first)
	if _, err := m1.Run(context.Background(), tasks); err != nil {
		t.Fatal(err)
	}
	if first.totalCalls() != 2 {
		t.Fatalf("first run resolved %d, want 2", first.totalCalls())
	}

	second := newStubResolver()
	m2 := newTestManager(t, testSettings(2, 0), out, second)
	summary, err := m2.Run(context.Background(), tasks)
	if err != nil {
		t.Fatal(err)
	}

	if second.totalCalls() != 0 {
		t.Errorf("second run resolved %d, want 0", second.totalCalls())
	}
	if summary.Skipped != 2 || len(m2.FailedTasks()) != 0 {
		t.Errorf("second run summary = %+v, want everything skipped", summary)
	}
}

func TestRun_DuplicateIdentifierFirstWins(t *testing.T) {
	out := t.TempDir()
	res := newStubResolver()
	m := newTestManager(t, testSettings(1, 0), out, res)

	summary, err := m.Run(context.Background(), []*model.Task{
		task(0, "A", "ref-first", ""),
		task(1, "A", "ref-second", ""),
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.callCount("ref-first") != 1 || res.callCount("ref-second") != 0 {
		t.Errorf("calls = first:%d second:%d, want first task to win",
			res.callCount("ref-first"), res.callCount("ref-second"))
	}
	if summary.Succeeded != 1 || summary.Skipped != 1 {
		t.Errorf("summary = %+v, want 1 succeeded + 1 skipped duplicate", summary)
	}
}

func TestRun_CategoryGrouping(t *testing.T) {
	out := t.TempDir()
	res := newStubResolver()
	m := newTestManager(t, testSettings(1, 0), out, res)

	if _, err := m.Run(context.Background(), []*model.Task{
		task(0, "A", "ref-A", "Beverages"),
		task(1, "B", "ref-B", ""),
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(out, "Beverages", "A.jpg")); err != nil {
		t.Errorf("categorized file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "B.jpg")); err != nil {
		t.Errorf("uncategorized file missing: %v", err)
	}
}

func TestRun_RetryCeiling(t *testing.T) {
	out := t.TempDir()
	res := newStubResolver()
	res.failFor = func(ref string, call int) error {
		return resolver.ErrTimeout
	}

	m := newTestManager(t, testSettings(1, 3), out, res)
	summary, err := m.Run(context.Background(), []*model.Task{task(0, "A", "ref-A", "")})
	if err != nil {
		t.Fatal(err)
	}

	if got := res.callCount("ref-A"); got != 3 {
		t.Errorf("always-failing task attempted %d times, want exactly 3", got)
	}
	if summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}

	outcomes := m.Exhausted()
	if len(outcomes) != 1 || outcomes[0].Attempt != 3 {
		t.Errorf("exhausted outcome = %+v, want attempt 3", outcomes)
	}
}

func TestRun_UnboundedRetrySucceedsEventually(t *testing.T) {
	out := t.TempDir()
	const failures = 4

	res := newStubResolver()
	res.failFor = func(ref string, call int) error {
		if call <= failures {
			return fmt.Errorf("transient failure %d", call)
		}
		return nil
	}

	m := newTestManager(t, testSettings(2, -1), out, res)
	summary, err := m.Run(context.Background(), []*model.Task{task(0, "A", "ref-A", "")})
	if err != nil {
		t.Fatal(err)
	}

	if got := res.callCount("ref-A"); got != failures+1 {
		t.Errorf("attempted %d times, want %d", got, failures+1)
	}
	if summary.Succeeded != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want success after retries", summary)
	}
	if _, err := os.Stat(filepath.Join(out, "A.jpg")); err != nil {
		t.Errorf("file missing after eventual success: %v", err)
	}
}

func TestRun_ConcurrencyBound(t *testing.T) {
	out := t.TempDir()
	res := newStubResolver()
	res.delay = 10 * time.Millisecond

	const workers = 3
	m := newTestManager(t, testSettings(workers, 0), out, res)

	var tasks []*model.Task
	for i := 0; i < 20; i++ {
		tasks = append(tasks, task(i, fmt.Sprintf("item-%02d", i), fmt.Sprintf("ref-%02d", i), ""))
	}

	if _, err := m.Run(context.Background(), tasks); err != nil {
		t.Fatal(err)
	}

	if max := atomic.LoadInt64(&res.maxInFlight); max > workers {
		t.Errorf("observed %d concurrent resolutions, want at most %d", max, workers)
	}
}

func TestRun_NoPartialFileAfterDownloadFailure(t *testing.T) {
	out := t.TempDir()
	res := newStubResolver()
	fetcher := &stubFetcher{fn: func(destPath string) (int64, string, error) {
		// Simulate a connection dropped mid-transfer: partial bytes on
		// disk, then an error.
		if err := os.WriteFile(destPath, []byte("partial"), 0644); err != nil {
			return 0, "", err
		}
		return 7, "", fmt.Errorf("connection reset")
	}}

	settings := testSettings(1, 0)
	m, err := NewManager(settings, settings.ToPathConfig(out), res, fetcher, nil)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := m.Run(context.Background(), []*model.Task{task(0, "A", "ref-A", "")})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("unexpected file left behind: %s", e.Name())
	}

	outcomes := m.Exhausted()
	if len(outcomes) != 1 || outcomes[0].Status != model.StatusDownloadFailed {
		t.Errorf("exhausted = %+v, want one download failure", outcomes)
	}
}

func TestRun_CancellationLeavesNoPartialFiles(t *testing.T) {
	out := t.TempDir()
	res := newStubResolver()
	res.delay = 50 * time.Millisecond

	m := newTestManager(t, testSettings(2, 0), out, res)

	var tasks []*model.Task
	for i := 0; i < 10; i++ {
		tasks = append(tasks, task(i, fmt.Sprintf("item-%02d", i), fmt.Sprintf("ref-%02d", i), ""))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	summary, err := m.Run(ctx, tasks)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if !summary.Cancelled {
		t.Error("summary must report cancellation")
	}
	if len(m.FailedTasks()) != 0 {
		t.Errorf("cancelled attempts must not be recorded as exhausted, got %v", m.FailedTasks())
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if len(e.Name()) >= 5 && e.Name()[:5] == ".tmp-" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestRun_ProgressEventsDoNotBlock(t *testing.T) {
	out := t.TempDir()
	res := newStubResolver()

	var events []ProgressEvent
	var mu sync.Mutex
	paths := testSettings(1, 0).ToPathConfig(out)
	m, err := NewManager(testSettings(1, 0), paths, res, &stubFetcher{}, func(e ProgressEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Run(context.Background(), []*model.Task{task(0, "A", "ref-A", "")}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) == 0 {
		t.Fatal("expected at least one progress event")
	}
	found := false
	for _, e := range events {
		if e.Level == LevelSuccess {
			found = true
		}
	}
	if !found {
		t.Error("expected a success-level event for the completed task")
	}
}
