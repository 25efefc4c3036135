// Package model defines the core data structures used throughout
// dropfetch.
//
// # Task
//
// Task represents one manifest row: an identifier, a shared-folder
// reference and an optional category:
//
//	task := model.NewTask(0, "012345678905", "https://www.dropbox.com/sh/abc", "Beverages")
//
// # Path Resolution
//
// PathConfig deterministically maps a task to its on-disk destination.
// The extension is attached only once it is known, after a successful
// fetch:
//
//	cfg := &model.PathConfig{OutputRoot: "/out", CategoriesEnabled: true}
//	cfg.DestinationDir(task)    // "/out/Beverages"
//	cfg.FinalPath(task, ".jpg") // "/out/Beverages/012345678905.jpg"
//
// # Outcome and RetryPolicy
//
// Outcome records the result of one attempt at a task. RetryPolicy is
// the tagged variant consumed by the download manager's retry decision:
//
//	model.NoRetry()
//	model.Bounded(3)
//	model.Unbounded()
package model
