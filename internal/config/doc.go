// Package config provides configuration management for dropfetch.
//
// This package handles:
//   - Loading and saving settings from JSON files
//   - Default configuration values
//   - Conversion to model.PathConfig and model.RetryPolicy
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Single worker, retry disabled, category grouping enabled
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/config.json")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// # Saving Settings
//
//	settings.Workers = 4
//	err := settings.Save("/path/to/config.json")
//
// # Configuration Options
//
// Settings includes options for:
//   - Worker pool size and retry behavior
//   - Category grouping of the output tree
//   - HTTP transfer timeout and User-Agent
//   - Headless browser resolution (binary path, headless mode, timeout)
//   - Optional image resizing / JPEG conversion of fetched files
//
// Command-line flags override values loaded from the settings file.
package config
