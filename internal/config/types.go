// internal/config/types.go

// Package config provides configuration types and structures for browser
// tab sessions. It defines the options available for launching the browser,
// opening the initial set of tabs, scheduling periodic tab tasks, and the
// monitoring, API, store and logging surfaces around a session.
package config

import (
	"fmt"
	"time"
)

// Default durations applied when the corresponding fields are unset or invalid.
const (
	DefaultPageLoadTimeout = 30 * time.Second
	DefaultPartialLoadWait = 1 * time.Second
)

// Config represents the main configuration structure for a tab session.
// It contains all the settings needed to launch a browser, open tabs and
// run periodic tasks against them.
type Config struct {
	// Name identifies this session configuration
	Name string `yaml:"name" json:"name"`

	// Version of the configuration format
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Description provides human-readable information about this config
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Browser defines how the underlying browser is launched
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Tabs opened when the session starts
	Tabs []TabSpec `yaml:"tabs,omitempty" json:"tabs,omitempty"`

	// Scheduler settings for periodic tab tasks
	Scheduler SchedulerConfig `yaml:"scheduler,omitempty" json:"scheduler,omitempty"`

	// Monitoring configuration for the metrics endpoint
	Monitoring MonitoringConfig `yaml:"monitoring,omitempty" json:"monitoring,omitempty"`

	// API configuration for the status server
	API APIConfig `yaml:"api,omitempty" json:"api,omitempty"`

	// Store configuration for session persistence
	Store StoreConfig `yaml:"store,omitempty" json:"store,omitempty"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`
}

// BrowserConfig defines browser launch settings.
type BrowserConfig struct {
	// Headless mode
	Headless bool `yaml:"headless" json:"headless"`

	// WindowWidth of the browser window in pixels
	WindowWidth int `yaml:"window_width,omitempty" json:"window_width,omitempty"`

	// WindowHeight of the browser window in pixels
	WindowHeight int `yaml:"window_height,omitempty" json:"window_height,omitempty"`

	// UserAgent to use; takes precedence over rotation when set
	UserAgent string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`

	// UserAgents to rotate across sessions; empty uses the built-in set
	UserAgents []string `yaml:"user_agents,omitempty" json:"user_agents,omitempty"`

	// RotateUserAgent picks a fresh user agent for each session
	RotateUserAgent bool `yaml:"rotate_user_agent,omitempty" json:"rotate_user_agent,omitempty"`

	// UserDataDir holds a persistent browser profile
	UserDataDir string `yaml:"user_data_dir,omitempty" json:"user_data_dir,omitempty"`

	// Proxy server URL for all browser traffic
	Proxy string `yaml:"proxy,omitempty" json:"proxy,omitempty"`

	// ExecPath overrides the browser binary location
	ExecPath string `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`

	// Stealth injects the automation-masking script into every new document
	Stealth bool `yaml:"stealth,omitempty" json:"stealth,omitempty"`

	// NoSandbox disables the browser sandbox (required in some containers)
	NoSandbox bool `yaml:"no_sandbox,omitempty" json:"no_sandbox,omitempty"`

	// PageLoadTimeout bounds full page loads, e.g. "30s"
	PageLoadTimeout string `yaml:"page_load_timeout,omitempty" json:"page_load_timeout,omitempty"`

	// PartialLoadWait is how long a partially loaded page may settle after
	// loading is stopped, e.g. "1s"
	PartialLoadWait string `yaml:"partial_load_wait,omitempty" json:"partial_load_wait,omitempty"`
}

// TabSpec describes a tab opened when the session starts.
type TabSpec struct {
	// URL to open in the tab
	URL string `yaml:"url" json:"url"`

	// Name labels the tab in logs and status output
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Task optionally schedules a periodic action on this tab
	Task *TaskSpec `yaml:"task,omitempty" json:"task,omitempty"`
}

// TaskSpec describes a periodic task bound to a tab.
type TaskSpec struct {
	// Name of the task
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Every is the period between runs, e.g. "30s"
	Every string `yaml:"every" json:"every"`

	// Action is the built-in action to run (refresh, scroll_bottom, screenshot)
	Action string `yaml:"action,omitempty" json:"action,omitempty"`
}

// SchedulerConfig defines settings for the periodic task runner.
type SchedulerConfig struct {
	// MaxRunTime bounds how long ExecuteTasks blocks, e.g. "10m".
	// Empty or zero runs until the context is cancelled.
	MaxRunTime string `yaml:"max_run_time,omitempty" json:"max_run_time,omitempty"`

	// TasksPerSecond paces task launches across all tabs
	TasksPerSecond float64 `yaml:"tasks_per_second,omitempty" json:"tasks_per_second,omitempty"`
}

// MonitoringConfig defines the Prometheus metrics endpoint settings.
type MonitoringConfig struct {
	// Enabled turns on the metrics endpoint
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Address to listen on, e.g. ":9090"
	Address string `yaml:"address,omitempty" json:"address,omitempty"`

	// Path of the metrics endpoint
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Namespace prefixes all metric names
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// APIConfig defines the status API server settings.
type APIConfig struct {
	// Enabled turns on the status API
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Address to listen on, e.g. ":8080"
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
}

// StoreConfig defines session persistence settings.
type StoreConfig struct {
	// Path of the SQLite database file
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Restore reopens the tabs saved under Session on startup
	Restore bool `yaml:"restore,omitempty" json:"restore,omitempty"`

	// Session names the saved tab set
	Session string `yaml:"session,omitempty" json:"session,omitempty"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error)
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// Format is the log output format (text, json)
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// PageLoadTimeoutDuration returns the parsed full page load timeout, falling
// back to DefaultPageLoadTimeout when the field is empty or invalid.
func (bc BrowserConfig) PageLoadTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(bc.PageLoadTimeout)
	if err != nil || d <= 0 {
		return DefaultPageLoadTimeout
	}
	return d
}

// PartialLoadWaitDuration returns the parsed partial load settle delay,
// falling back to DefaultPartialLoadWait when the field is empty or invalid.
func (bc BrowserConfig) PartialLoadWaitDuration() time.Duration {
	d, err := time.ParseDuration(bc.PartialLoadWait)
	if err != nil || d < 0 {
		return DefaultPartialLoadWait
	}
	return d
}

// MaxRunTimeDuration returns the parsed run bound, zero when unbounded.
func (sc SchedulerConfig) MaxRunTimeDuration() time.Duration {
	if sc.MaxRunTime == "" {
		return 0
	}
	d, err := time.ParseDuration(sc.MaxRunTime)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// EveryDuration returns the parsed task period.
func (ts TaskSpec) EveryDuration() (time.Duration, error) {
	d, err := time.ParseDuration(ts.Every)
	if err != nil {
		return 0, fmt.Errorf("invalid task period %q: %v", ts.Every, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("task period must be positive, got %q", ts.Every)
	}
	return d, nil
}
