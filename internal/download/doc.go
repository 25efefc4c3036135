// Package download provides the batch orchestration core of dropfetch:
// turning a list of manifest tasks into completed files on disk under
// bounded parallelism.
//
// # Manager
//
// The Manager coordinates one run:
//
//  1. Admit tasks: claim identifiers (first duplicate wins), skip tasks
//     already satisfied by a file on disk
//  2. Feed the remaining tasks to a fixed-size worker pool
//  3. Per task: resolve the shared folder, stream the file to a temp
//     path, optionally post-process the image, atomically rename into
//     place
//  4. Re-enqueue failures according to the retry policy
//  5. Record exhausted tasks for the failure ledger
//
// # Basic Usage
//
//	manager, err := download.NewManager(settings, pathCfg, res, nil,
//	    func(event download.ProgressEvent) {
//	        fmt.Println(event.Message)
//	    })
//
//	summary, err := manager.Run(ctx, tasks)
//	for _, task := range manager.FailedTasks() {
//	    // write to the failure ledger
//	}
//
// # Concurrency
//
// Settings.Workers bounds the number of fetch pipelines in flight; with
// one worker the run is strictly sequential. Workers share a single
// buffered queue. Retry re-enqueues happen on a timer goroutine so a
// cooling-down task never occupies a worker slot.
//
// # Bookkeeping
//
// Every admitted identifier ends in exactly one of the completed or
// failed sets (or stays pending if the run is cancelled). Counters are
// monotonic and can be polled concurrently via GetProgress; progress
// messages are delivered through a fire-and-forget callback that must
// not block.
//
// # Retry Logic
//
// The retry decision is a model.RetryPolicy (off, bounded attempt
// budget, or unbounded). Cooldowns grow exponentially from
// Settings.RetryCooldown by Settings.RetryExponent, capped at one
// minute.
package download
