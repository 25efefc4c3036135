package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/davidmtr/dropfetch/internal/model"
)

// Settings holds all configuration options.
type Settings struct {
	// Worker pool settings
	Workers       int     `json:"workers"`
	RetryAttempts int     `json:"retry_attempts"` // -1 unlimited, 0 off, n max attempts
	RetryCooldown float64 `json:"retry_cooldown"`
	RetryExponent float64 `json:"retry_exponent"`

	// Output settings
	GroupByCategory bool `json:"group_by_category"`

	// Transfer settings
	HTTPTimeoutSeconds int    `json:"http_timeout_seconds"`
	UserAgent          string `json:"user_agent"`

	// Resolver settings
	ResolveTimeoutSeconds int    `json:"resolve_timeout_seconds"`
	BrowserHeadless       bool   `json:"browser_headless"`
	BrowserPath           string `json:"browser_path"` // empty = auto-detect

	// Image post-processing (the fetched catalog files are images)
	ResizeMaxSize int  `json:"resize_max_size"` // 0 disables resizing
	ConvertToJPG  bool `json:"convert_to_jpg"`

	// Debug output
	Verbose bool `json:"verbose"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		Workers:       1,
		RetryAttempts: 0,
		RetryCooldown: 0.2,
		RetryExponent: 4.0,

		GroupByCategory: true,

		HTTPTimeoutSeconds: 60,
		UserAgent:          "dropfetch",

		ResolveTimeoutSeconds: 45,
		BrowserHeadless:       true,

		ResizeMaxSize: 0,
		ConvertToJPG:  false,
	}
}

// Load reads settings from a JSON file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// RetryPolicy converts the configured retry value to a model.RetryPolicy.
func (s *Settings) RetryPolicy() (model.RetryPolicy, error) {
	return model.RetryFromFlag(s.RetryAttempts)
}

// ToPathConfig builds the path configuration for the given output root.
func (s *Settings) ToPathConfig(outputRoot string) *model.PathConfig {
	return &model.PathConfig{
		OutputRoot:        outputRoot,
		CategoriesEnabled: s.GroupByCategory,
	}
}

// HTTPTimeout returns the transfer timeout as a duration.
func (s *Settings) HTTPTimeout() time.Duration {
	return time.Duration(s.HTTPTimeoutSeconds) * time.Second
}

// ResolveTimeout returns the per-resolution timeout as a duration.
func (s *Settings) ResolveTimeout() time.Duration {
	return time.Duration(s.ResolveTimeoutSeconds) * time.Second
}
