package download

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/davidmtr/dropfetch/internal/config"
	httpx "github.com/davidmtr/dropfetch/internal/http"
	ioutils "github.com/davidmtr/dropfetch/internal/io"
	"github.com/davidmtr/dropfetch/internal/model"
	"github.com/davidmtr/dropfetch/internal/resolver"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a progress update during a run.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Fetcher streams a URL to a local file. Implemented by the internal
// HTTP client; tests substitute a stub.
type Fetcher interface {
	Download(ctx context.Context, url, destPath string, onProgress func(written, total int64)) (int64, string, error)
}

// attempt is one scheduled execution of a task's fetch pipeline.
type attempt struct {
	task   *model.Task
	number int // 1-based
}

// Manager coordinates a batch download run: it admits tasks, runs their
// fetch pipelines on a bounded worker pool, retries failures according
// to the retry policy and keeps the run bookkeeping.
type Manager struct {
	settings *config.Settings
	paths    *model.PathConfig
	resolver resolver.Resolver
	fetcher  Fetcher
	images   *ioutils.ImageService
	policy   model.RetryPolicy

	state     *runState
	queue     chan *attempt
	remaining int64

	onProgress func(ProgressEvent)
}

// NewManager creates a Manager for one run. A nil fetcher gets the
// default HTTP client built from the settings.
func NewManager(settings *config.Settings, paths *model.PathConfig, res resolver.Resolver, fetcher Fetcher, onProgress func(ProgressEvent)) (*Manager, error) {
	policy, err := settings.RetryPolicy()
	if err != nil {
		return nil, err
	}
	if fetcher == nil {
		fetcher = httpx.NewClient(settings.HTTPTimeout(), settings.UserAgent)
	}

	return &Manager{
		settings:   settings,
		paths:      paths,
		resolver:   res,
		fetcher:    fetcher,
		images:     ioutils.NewImageService(),
		policy:     policy,
		state:      newRunState(),
		onProgress: onProgress,
	}, nil
}

// Run executes all tasks and blocks until every task reached a terminal
// state or ctx was cancelled. The returned Summary is valid in both
// cases; on cancellation the error is ctx's error and the summary
// reflects the work finished so far.
//
// A Manager runs once; create a new one for another batch.
func (m *Manager) Run(ctx context.Context, tasks []*model.Task) (*Summary, error) {
	workers := m.settings.Workers
	if workers < 1 {
		workers = 1
	}

	m.state.mu.Lock()
	m.state.total = len(tasks)
	m.state.mu.Unlock()

	pending := m.admit(tasks)
	if len(pending) == 0 {
		return m.summary(ctx), ctx.Err()
	}

	// Each task has at most one queued attempt at a time, so the
	// buffer never fills and re-enqueues cannot block.
	m.queue = make(chan *attempt, len(pending))
	atomic.StoreInt64(&m.remaining, int64(len(pending)))
	for _, a := range pending {
		m.queue <- a
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return m.worker(gctx)
		})
	}

	err := g.Wait()
	return m.summary(ctx), err
}

// admit filters the task list down to the attempts that need work:
// duplicate identifiers and tasks already satisfied on disk are skipped
// up front.
func (m *Manager) admit(tasks []*model.Task) []*attempt {
	var pending []*attempt
	for _, task := range tasks {
		if !m.state.claim(task.Identifier) {
			// First task to claim an identifier wins; later
			// duplicates never reach a worker.
			m.state.noteSkipped(task.Identifier)
			m.progress(ProgressEvent{Message: fmt.Sprintf("%s: duplicate identifier, skipping", task.Identifier), Level: LevelVerbose})
			continue
		}

		existing, err := ioutils.FindByStem(m.paths.DestinationDir(task), m.paths.Stem(task))
		if err != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("%s: cannot check existing files: %v", task.Identifier, err), Level: LevelWarning})
		}
		if existing != "" {
			m.state.noteSkipped(task.Identifier)
			m.progress(ProgressEvent{Message: fmt.Sprintf("%s: skipped (already exists: %s)", task.Identifier, filepath.Base(existing)), Level: LevelInfo})
			continue
		}

		pending = append(pending, &attempt{task: task, number: 1})
	}
	return pending
}

func (m *Manager) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a, ok := <-m.queue:
			if !ok {
				return nil
			}
			outcome := m.execute(ctx, a)
			m.dispatch(ctx, a, outcome)
		}
	}
}

// dispatch routes an attempt's outcome: terminal success, terminal
// failure, or re-enqueue under the retry policy.
func (m *Manager) dispatch(ctx context.Context, a *attempt, outcome *model.Outcome) {
	task := a.task

	if !outcome.Status.Failure() {
		m.state.noteSuccess(task.Identifier)
		m.taskDone()
		m.progress(ProgressEvent{Message: successMessage(outcome), Level: LevelSuccess})
		return
	}

	if ctx.Err() != nil {
		// The run is shutting down; this attempt aborted rather than
		// failed, so the task stays non-terminal instead of being
		// misrecorded as exhausted.
		return
	}

	if m.policy.Allows(a.number) {
		cooldown := m.retryCooldown(a.number)
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("%s: attempt %d failed (%s), retrying in %s", task.Identifier, a.number, outcome.Err, cooldown.Round(time.Millisecond)),
			Level:   LevelWarning,
		})
		m.scheduleRetry(ctx, a, cooldown)
		return
	}

	m.state.noteExhausted(outcome)
	m.taskDone()
	m.progress(ProgressEvent{
		Message: fmt.Sprintf("%s: %s after %d attempt(s): %s", task.Identifier, outcome.Status, a.number, outcome.Err),
		Level:   LevelError,
	})
}

// taskDone marks one task terminal; the last one closes the queue so
// idle workers drain out.
func (m *Manager) taskDone() {
	if atomic.AddInt64(&m.remaining, -1) == 0 {
		close(m.queue)
	}
}

// retryCooldown computes the delay before re-attempting, growing
// exponentially with the attempt count. Capped so unbounded retry
// cannot escalate into hour-long sleeps.
func (m *Manager) retryCooldown(attemptsSoFar int) time.Duration {
	cooldown := m.settings.RetryCooldown * math.Pow(m.settings.RetryExponent, float64(attemptsSoFar-1))
	d := time.Duration(cooldown * float64(time.Second))
	if d > time.Minute {
		d = time.Minute
	}
	if d < 0 {
		d = 0
	}
	return d
}

// scheduleRetry re-enqueues the task after a cooldown without holding a
// worker slot. If the run is cancelled first, the task simply stays
// non-terminal.
func (m *Manager) scheduleRetry(ctx context.Context, a *attempt, cooldown time.Duration) {
	next := &attempt{task: a.task, number: a.number + 1}
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(cooldown):
			m.queue <- next
		}
	}()
}

// execute runs one fetch pipeline: resolve, stream to a temp file in
// the destination directory, post-process, atomically move into place.
// Failures clean up the temp file so partial content never lands at a
// final path.
func (m *Manager) execute(ctx context.Context, a *attempt) *model.Outcome {
	task := a.task

	destDir := m.paths.DestinationDir(task)
	if err := ioutils.EnsureDir(destDir); err != nil {
		return m.failure(a, model.StatusDownloadFailed, fmt.Errorf("create directory: %w", err))
	}

	resolved, err := m.resolver.Resolve(ctx, task.FolderRef)
	if err != nil {
		return m.failure(a, model.StatusResolutionFailed, err)
	}

	tempPath := filepath.Join(destDir, ".tmp-"+uuid.NewString())
	written, contentExt, err := m.fetcher.Download(ctx, resolved.FileURL, tempPath, nil)
	if err != nil {
		ioutils.RemoveQuiet(tempPath)
		if errors.Is(err, syscall.ENOSPC) {
			// Likely affects every task that follows, so call it out
			// beyond the per-task outcome.
			m.progress(ProgressEvent{Message: fmt.Sprintf("disk full while writing to %s", destDir), Level: LevelError})
		}
		return m.failure(a, model.StatusDownloadFailed, err)
	}
	if written == 0 {
		ioutils.RemoveQuiet(tempPath)
		return m.failure(a, model.StatusDownloadFailed, fmt.Errorf("empty response body"))
	}

	ext := pickExtension(resolved, contentExt)

	if newExt, err := m.postProcess(ctx, tempPath); err != nil {
		m.progress(ProgressEvent{Message: fmt.Sprintf("%s: image post-processing failed, keeping original: %v", task.Identifier, err), Level: LevelWarning})
	} else if newExt != "" {
		ext = newExt
	}

	finalPath := m.paths.FinalPath(task, ext)
	if err := os.Rename(tempPath, finalPath); err != nil {
		ioutils.RemoveQuiet(tempPath)
		return m.failure(a, model.StatusDownloadFailed, fmt.Errorf("move into place: %w", err))
	}

	return &model.Outcome{
		Task:    task,
		Attempt: a.number,
		Status:  model.StatusSuccess,
		Path:    finalPath,
	}
}

// postProcess applies the configured image transformations to the temp
// file in place. Returns the extension the processed payload should
// carry, or "" when nothing changed.
func (m *Manager) postProcess(ctx context.Context, tempPath string) (string, error) {
	if m.settings.ResizeMaxSize <= 0 && !m.settings.ConvertToJPG {
		return "", nil
	}

	data, err := os.ReadFile(tempPath)
	if err != nil {
		return "", err
	}

	processed, newExt, err := m.images.Process(ctx, data, m.settings.ResizeMaxSize, m.settings.ConvertToJPG)
	if err != nil {
		return "", err
	}
	if newExt == "" {
		return "", nil
	}

	if err := os.WriteFile(tempPath, processed, 0644); err != nil {
		return "", err
	}
	return newExt, nil
}

func (m *Manager) failure(a *attempt, status model.Status, err error) *model.Outcome {
	return &model.Outcome{
		Task:    a.task,
		Attempt: a.number,
		Status:  status,
		Err:     err.Error(),
	}
}

// GetProgress returns the current run counters.
func (m *Manager) GetProgress() (succeeded, skipped, failed, total int) {
	return m.state.counts()
}

// Exhausted returns the final outcomes of tasks that used up their
// retry budget, in manifest order.
func (m *Manager) Exhausted() []*model.Outcome {
	return m.state.exhaustedOutcomes()
}

// FailedTasks returns the exhausted tasks in manifest order, ready to
// be written back as a failure ledger.
func (m *Manager) FailedTasks() []*model.Task {
	outcomes := m.state.exhaustedOutcomes()
	tasks := make([]*model.Task, len(outcomes))
	for i, o := range outcomes {
		tasks[i] = o.Task
	}
	return tasks
}

func (m *Manager) summary(ctx context.Context) *Summary {
	succeeded, skipped, failed, total := m.state.counts()
	return &Summary{
		Total:     total,
		Succeeded: succeeded,
		Skipped:   skipped,
		Failed:    failed,
		Cancelled: ctx.Err() != nil,
	}
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}

func successMessage(o *model.Outcome) string {
	msg := fmt.Sprintf("%s: downloaded as %s", o.Task.Identifier, filepath.Base(o.Path))
	if o.Attempt > 1 {
		msg += fmt.Sprintf(" (attempt %d)", o.Attempt)
	}
	return msg
}

// pickExtension chooses the output extension: resolver name hint first,
// then the URL path, then the response Content-Type, then a generic
// fallback. FindByStem matches on the stem alone, so the choice only
// affects cosmetics, not idempotence.
func pickExtension(file resolver.ResolvedFile, contentExt string) string {
	if ext := filepath.Ext(file.NameHint); ext != "" {
		return strings.ToLower(ext)
	}
	if u, err := url.Parse(file.FileURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return strings.ToLower(ext)
		}
	}
	if contentExt != "" {
		return contentExt
	}
	return ".bin"
}
