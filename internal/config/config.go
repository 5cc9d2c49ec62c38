// internal/config/config.go
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	// Check if file exists
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	// Read file content
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %v", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes
func LoadFromBytes(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	// Substitute environment variables
	expandedData := expandEnvironmentVariables(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %v", err)
	}

	// Apply defaults
	applyDefaults(&config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}

	return &config, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %v", err)
	}

	return LoadFromBytes(data)
}

// SaveToFile saves configuration to a YAML file
func SaveToFile(config *Config, filename string) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	// Validate configuration before saving
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %v", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %v", dir, err)
	}

	// Write to file
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %v", err)
	}

	return nil
}

// SaveToWriter saves configuration to an io.Writer
func SaveToWriter(config *Config, writer io.Writer) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if writer == nil {
		return fmt.Errorf("writer cannot be nil")
	}

	// Validate configuration before saving
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %v", err)
	}

	// Write to writer
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write configuration: %v", err)
	}

	return nil
}

// MergeConfigs merges multiple configurations, with later configs overriding earlier ones
func MergeConfigs(configs ...*Config) (*Config, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("at least one configuration is required")
	}

	// Start with the first config
	merged := *configs[0]

	// Merge each subsequent config
	for i := 1; i < len(configs); i++ {
		if configs[i] == nil {
			continue
		}

		mergeConfig(&merged, configs[i])
	}

	// Apply defaults to merged config
	applyDefaults(&merged)

	// Validate merged configuration
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("merged configuration is invalid: %v", err)
	}

	return &merged, nil
}

// MergeFiles loads every file and merges them in order, later files
// overriding earlier ones. Defaults and validation are applied once to
// the merged result, so partial override files stay partial.
func MergeFiles(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one configuration file is required")
	}

	merged := &Config{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %v", err)
		}

		var cfg Config
		expanded := expandEnvironmentVariables(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %v", path, err)
		}
		mergeConfig(merged, &cfg)
	}

	applyDefaults(merged)

	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("merged configuration is invalid: %v", err)
	}

	return merged, nil
}

// GenerateTemplate generates a template configuration for the specified type
func GenerateTemplate(templateType string) Config {
	switch strings.ToLower(templateType) {
	case "tasks":
		return generateTasksTemplate()
	case "monitored":
		return generateMonitoredTemplate()
	case "basic":
		return generateBasicTemplate()
	default:
		return generateBasicTemplate()
	}
}

// ValidateConfig validates a configuration and returns detailed error information
func ValidateConfig(config *Config) []ValidationError {
	if config == nil {
		return []ValidationError{{
			Field:   "config",
			Message: "configuration cannot be nil",
		}}
	}

	return config.ValidateWithDetails().Errors
}

// Helper functions

// expandEnvironmentVariables substitutes environment variables in the
// configuration. Both ${VAR} and ${VAR:-default} forms are supported;
// the default applies when the variable is unset or empty.
func expandEnvironmentVariables(content string) string {
	return os.Expand(content, func(name string) string {
		name, fallback, hasFallback := strings.Cut(name, ":-")
		value := os.Getenv(name)
		if value == "" && hasFallback {
			return fallback
		}
		return value
	})
}

// applyDefaults applies default values to the configuration
func applyDefaults(config *Config) {
	if config.Name == "" {
		config.Name = "default"
	}

	if config.Browser.WindowWidth == 0 {
		config.Browser.WindowWidth = 1920
	}

	if config.Browser.WindowHeight == 0 {
		config.Browser.WindowHeight = 1080
	}

	if config.Browser.PageLoadTimeout == "" {
		config.Browser.PageLoadTimeout = DefaultPageLoadTimeout.String()
	}

	if config.Browser.PartialLoadWait == "" {
		config.Browser.PartialLoadWait = DefaultPartialLoadWait.String()
	}

	// Apply defaults to tab specs
	for i := range config.Tabs {
		if config.Tabs[i].Name == "" {
			config.Tabs[i].Name = fmt.Sprintf("tab-%d", i+1)
		}

		if task := config.Tabs[i].Task; task != nil {
			if task.Name == "" {
				task.Name = config.Tabs[i].Name + "-task"
			}
			if task.Action == "" {
				task.Action = "refresh"
			}
		}
	}

	if config.Scheduler.TasksPerSecond == 0 {
		config.Scheduler.TasksPerSecond = 1.0
	}

	// Apply defaults to monitoring configuration
	if config.Monitoring.Address == "" {
		config.Monitoring.Address = ":9090"
	}

	if config.Monitoring.Path == "" {
		config.Monitoring.Path = "/metrics"
	}

	if config.Monitoring.Namespace == "" {
		config.Monitoring.Namespace = "browsertabs"
	}

	if config.API.Address == "" {
		config.API.Address = ":8080"
	}

	// Apply defaults to store configuration
	if config.Store.Path == "" {
		config.Store.Path = "browsertabs.db"
	}

	if config.Store.Session == "" {
		config.Store.Session = config.Name
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
}

// mergeConfig merges source configuration into target
func mergeConfig(target, source *Config) {
	if source.Name != "" {
		target.Name = source.Name
	}
	if source.Version != "" {
		target.Version = source.Version
	}
	if source.Description != "" {
		target.Description = source.Description
	}
	mergeBrowser(&target.Browser, &source.Browser)
	if len(source.Tabs) > 0 {
		target.Tabs = source.Tabs
	}
	if source.Scheduler.MaxRunTime != "" {
		target.Scheduler.MaxRunTime = source.Scheduler.MaxRunTime
	}
	if source.Scheduler.TasksPerSecond > 0 {
		target.Scheduler.TasksPerSecond = source.Scheduler.TasksPerSecond
	}
	if source.Monitoring.Enabled {
		target.Monitoring = source.Monitoring
	}
	if source.API.Enabled {
		target.API = source.API
	}
	if source.Store.Path != "" || source.Store.Restore {
		target.Store = source.Store
	}
	if source.Logging.Level != "" {
		target.Logging.Level = source.Logging.Level
	}
	if source.Logging.Format != "" {
		target.Logging.Format = source.Logging.Format
	}
}

// mergeBrowser merges browser settings field-wise. Boolean flags only
// override when set to true; a false in a later config cannot unset an
// earlier true.
func mergeBrowser(target, source *BrowserConfig) {
	if source.Headless {
		target.Headless = true
	}
	if source.WindowWidth > 0 {
		target.WindowWidth = source.WindowWidth
	}
	if source.WindowHeight > 0 {
		target.WindowHeight = source.WindowHeight
	}
	if source.UserAgent != "" {
		target.UserAgent = source.UserAgent
	}
	if len(source.UserAgents) > 0 {
		target.UserAgents = source.UserAgents
	}
	if source.RotateUserAgent {
		target.RotateUserAgent = true
	}
	if source.UserDataDir != "" {
		target.UserDataDir = source.UserDataDir
	}
	if source.Proxy != "" {
		target.Proxy = source.Proxy
	}
	if source.ExecPath != "" {
		target.ExecPath = source.ExecPath
	}
	if source.Stealth {
		target.Stealth = true
	}
	if source.NoSandbox {
		target.NoSandbox = true
	}
	if source.PageLoadTimeout != "" {
		target.PageLoadTimeout = source.PageLoadTimeout
	}
	if source.PartialLoadWait != "" {
		target.PartialLoadWait = source.PartialLoadWait
	}
}

// Template generation functions

func generateBasicTemplate() Config {
	return Config{
		Name:        "basic_session",
		Version:     "1",
		Description: "Single tab session with default browser settings",
		Browser: BrowserConfig{
			Headless:        true,
			WindowWidth:     1920,
			WindowHeight:    1080,
			PageLoadTimeout: "30s",
			PartialLoadWait: "1s",
		},
		Tabs: []TabSpec{
			{
				Name: "home",
				URL:  "https://example.com",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func generateTasksTemplate() Config {
	return Config{
		Name:        "task_session",
		Version:     "1",
		Description: "Tabs with periodic refresh and scroll tasks",
		Browser: BrowserConfig{
			Headless:        true,
			WindowWidth:     1920,
			WindowHeight:    1080,
			PageLoadTimeout: "30s",
			PartialLoadWait: "1s",
		},
		Tabs: []TabSpec{
			{
				Name: "home",
				URL:  "https://example.com",
				Task: &TaskSpec{
					Name:   "refresh-home",
					Every:  "30s",
					Action: "refresh",
				},
			},
			{
				Name: "feed",
				URL:  "https://example.com/feed",
				Task: &TaskSpec{
					Name:   "scroll-feed",
					Every:  "45s",
					Action: "scroll_bottom",
				},
			},
		},
		Scheduler: SchedulerConfig{
			MaxRunTime:     "10m",
			TasksPerSecond: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func generateMonitoredTemplate() Config {
	return Config{
		Name:        "monitored_session",
		Version:     "1",
		Description: "Session with metrics, status API and persistence enabled",
		Browser: BrowserConfig{
			Headless:        true,
			WindowWidth:     1920,
			WindowHeight:    1080,
			RotateUserAgent: true,
			Stealth:         true,
			PageLoadTimeout: "30s",
			PartialLoadWait: "1s",
		},
		Tabs: []TabSpec{
			{
				Name: "home",
				URL:  "https://example.com",
				Task: &TaskSpec{
					Name:   "refresh-home",
					Every:  "1m",
					Action: "refresh",
				},
			},
		},
		Scheduler: SchedulerConfig{
			TasksPerSecond: 1,
		},
		Monitoring: MonitoringConfig{
			Enabled:   true,
			Address:   ":9090",
			Path:      "/metrics",
			Namespace: "browsertabs",
		},
		API: APIConfig{
			Enabled: true,
			Address: ":8080",
		},
		Store: StoreConfig{
			Path:    "browsertabs.db",
			Restore: true,
			Session: "monitored_session",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
