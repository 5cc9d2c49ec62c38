// internal/config/validation.go - Detailed validation with actionable error messages
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a detailed validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

var (
	validTaskActions = []string{"refresh", "scroll_bottom", "screenshot"}
	validLogLevels   = []string{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"}
	validLogFormats  = []string{"text", "json"}

	metricNamespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Validate checks the configuration and returns a single error summarizing
// every problem found.
func (c *Config) Validate() error {
	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]ValidationError, 0),
		Warnings: make([]string, 0),
	}

	c.validateBasicFields(result)
	c.validateBrowser(result)
	c.validateTabs(result)
	c.validateScheduler(result)
	c.validateEndpoints(result)
	c.validateLogging(result)

	if len(result.Errors) > 0 {
		return c.formatValidationError(result)
	}

	return nil
}

// validateBasicFields checks required top-level fields
func (c *Config) validateBasicFields(result *ValidationResult) {
	if c.Name == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "name",
			Value:   "",
			Message: "Session name is required",
		})
	}

	if len(c.Tabs) == 0 {
		result.Warnings = append(result.Warnings,
			"No tabs configured, the session will start with a single blank tab")
	}
}

// validateBrowser checks browser launch settings
func (c *Config) validateBrowser(result *ValidationResult) {
	if c.Browser.WindowWidth < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "browser.window_width",
			Value:   fmt.Sprintf("%d", c.Browser.WindowWidth),
			Message: "Window width cannot be negative",
		})
	}

	if c.Browser.WindowHeight < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "browser.window_height",
			Value:   fmt.Sprintf("%d", c.Browser.WindowHeight),
			Message: "Window height cannot be negative",
		})
	}

	// Validate PageLoadTimeout if provided
	if c.Browser.PageLoadTimeout != "" {
		if duration, err := time.ParseDuration(c.Browser.PageLoadTimeout); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "browser.page_load_timeout",
				Value:   c.Browser.PageLoadTimeout,
				Message: fmt.Sprintf("Invalid duration format: %s", err.Error()),
			})
		} else if duration <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "browser.page_load_timeout",
				Value:   c.Browser.PageLoadTimeout,
				Message: "Page load timeout must be positive",
			})
		} else if duration > 2*time.Minute {
			result.Warnings = append(result.Warnings,
				"Page load timeout above 2 minutes may cause long hangs on slow pages")
		}
	}

	// Validate PartialLoadWait if provided
	if c.Browser.PartialLoadWait != "" {
		if duration, err := time.ParseDuration(c.Browser.PartialLoadWait); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "browser.partial_load_wait",
				Value:   c.Browser.PartialLoadWait,
				Message: fmt.Sprintf("Invalid duration format: %s", err.Error()),
			})
		} else if duration < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "browser.partial_load_wait",
				Value:   c.Browser.PartialLoadWait,
				Message: "Partial load wait cannot be negative",
			})
		}
	}

	if c.Browser.Proxy != "" {
		parsed, err := url.Parse(c.Browser.Proxy)
		if err != nil || parsed.Host == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "browser.proxy",
				Value:   c.Browser.Proxy,
				Message: "Proxy must be a URL with a host, e.g. http://proxy:8080",
			})
		}
	}

	for i, agent := range c.Browser.UserAgents {
		if strings.TrimSpace(agent) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("browser.user_agents[%d]", i),
				Value:   "",
				Message: "User agent entries cannot be empty",
			})
		}
	}

	if c.Browser.RotateUserAgent && c.Browser.UserAgent != "" {
		result.Warnings = append(result.Warnings,
			"Both user_agent and rotate_user_agent are set, the fixed user agent wins")
	}
}

// validateTabs checks the initial tab specs
func (c *Config) validateTabs(result *ValidationResult) {
	tabNames := make(map[string]bool)

	for i, tab := range c.Tabs {
		tabPrefix := fmt.Sprintf("tabs[%d]", i)

		if tab.URL == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("%s.url", tabPrefix),
				Value:   "",
				Message: "Tab URL is required",
			})
		} else if err := validateTabURL(tab.URL); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("%s.url", tabPrefix),
				Value:   tab.URL,
				Message: err.Error(),
			})
		} else if strings.HasPrefix(tab.URL, "http://") {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Tab %q uses HTTP instead of HTTPS", tab.URL))
		}

		// Check for duplicate tab names
		if tab.Name != "" {
			if tabNames[tab.Name] {
				result.Errors = append(result.Errors, ValidationError{
					Field:   fmt.Sprintf("%s.name", tabPrefix),
					Value:   tab.Name,
					Message: fmt.Sprintf("Duplicate tab name: %s", tab.Name),
				})
			}
			tabNames[tab.Name] = true
		}

		if tab.Task != nil {
			c.validateTabTask(tab.Task, tabPrefix, result)
		}
	}
}

// validateTabTask checks a periodic task spec
func (c *Config) validateTabTask(task *TaskSpec, tabPrefix string, result *ValidationResult) {
	taskPrefix := tabPrefix + ".task"

	if task.Every == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fmt.Sprintf("%s.every", taskPrefix),
			Value:   "",
			Message: "Task period is required",
		})
	} else if duration, err := time.ParseDuration(task.Every); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fmt.Sprintf("%s.every", taskPrefix),
			Value:   task.Every,
			Message: fmt.Sprintf("Invalid duration format: %s", err.Error()),
		})
	} else if duration <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fmt.Sprintf("%s.every", taskPrefix),
			Value:   task.Every,
			Message: "Task period must be positive",
		})
	} else if duration < time.Second {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Task period %s is below one second and may overload the page", task.Every))
	}

	if task.Action != "" && !contains(validTaskActions, task.Action) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fmt.Sprintf("%s.action", taskPrefix),
			Value:   task.Action,
			Message: fmt.Sprintf("Invalid task action. Valid actions: %s", strings.Join(validTaskActions, ", ")),
		})
	}
}

// validateScheduler checks scheduler settings
func (c *Config) validateScheduler(result *ValidationResult) {
	if c.Scheduler.MaxRunTime != "" {
		if duration, err := time.ParseDuration(c.Scheduler.MaxRunTime); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "scheduler.max_run_time",
				Value:   c.Scheduler.MaxRunTime,
				Message: fmt.Sprintf("Invalid duration format: %s", err.Error()),
			})
		} else if duration < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "scheduler.max_run_time",
				Value:   c.Scheduler.MaxRunTime,
				Message: "Max run time cannot be negative",
			})
		}
	}

	if c.Scheduler.TasksPerSecond < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "scheduler.tasks_per_second",
			Value:   fmt.Sprintf("%g", c.Scheduler.TasksPerSecond),
			Message: "Tasks per second cannot be negative",
		})
	}
}

// validateEndpoints checks monitoring, API and store settings
func (c *Config) validateEndpoints(result *ValidationResult) {
	if c.Monitoring.Enabled {
		if c.Monitoring.Address == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "monitoring.address",
				Value:   "",
				Message: "Monitoring address is required when monitoring is enabled",
			})
		}

		if c.Monitoring.Path != "" && !strings.HasPrefix(c.Monitoring.Path, "/") {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "monitoring.path",
				Value:   c.Monitoring.Path,
				Message: "Monitoring path must start with /",
			})
		}

		if c.Monitoring.Namespace != "" && !metricNamespacePattern.MatchString(c.Monitoring.Namespace) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "monitoring.namespace",
				Value:   c.Monitoring.Namespace,
				Message: "Namespace must match [a-zA-Z_][a-zA-Z0-9_]*",
			})
		}
	}

	if c.API.Enabled && c.API.Address == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "api.address",
			Value:   "",
			Message: "API address is required when the API is enabled",
		})
	}

	if c.Store.Restore && c.Store.Path == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "store.path",
			Value:   "",
			Message: "Store path is required when restore is enabled",
		})
	}
}

// validateLogging checks logging settings
func (c *Config) validateLogging(result *ValidationResult) {
	if c.Logging.Level != "" && !contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("Invalid log level. Valid levels: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	if c.Logging.Format != "" && !contains(validLogFormats, strings.ToLower(c.Logging.Format)) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("Invalid log format. Valid formats: %s", strings.Join(validLogFormats, ", ")),
		})
	}
}

// validateTabURL performs basic tab URL validation. about:blank is allowed
// as the conventional empty tab target.
func validateTabURL(rawURL string) error {
	if rawURL == "about:blank" {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("Invalid URL format: %s", err.Error())
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must use http or https, got %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must include hostname")
	}

	return nil
}

// formatValidationError creates a comprehensive error message
func (c *Config) formatValidationError(result *ValidationResult) error {
	var errorMsg strings.Builder

	errorMsg.WriteString("Configuration validation failed:\n")

	for i, err := range result.Errors {
		errorMsg.WriteString(fmt.Sprintf("  %d. %s", i+1, err.Message))
		if err.Field != "" {
			errorMsg.WriteString(fmt.Sprintf(" (field: %s)", err.Field))
		}
		if err.Value != "" {
			errorMsg.WriteString(fmt.Sprintf(" (value: %s)", err.Value))
		}
		errorMsg.WriteString("\n")
	}

	if len(result.Warnings) > 0 {
		errorMsg.WriteString("\nWarnings:\n")
		for i, warning := range result.Warnings {
			errorMsg.WriteString(fmt.Sprintf("  %d. %s\n", i+1, warning))
		}
	}

	return fmt.Errorf("%s", errorMsg.String())
}

// ValidateWithDetails provides detailed validation results
func (c *Config) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]ValidationError, 0),
		Warnings: make([]string, 0),
	}

	c.validateBasicFields(result)
	c.validateBrowser(result)
	c.validateTabs(result)
	c.validateScheduler(result)
	c.validateEndpoints(result)
	c.validateLogging(result)

	result.Valid = len(result.Errors) == 0
	return result
}

// GetValidationSuggestions provides actionable suggestions for fixing validation errors
func (c *Config) GetValidationSuggestions(result *ValidationResult) []string {
	suggestions := make([]string, 0)

	hasURLError := false
	hasDurationError := false
	hasLoggingError := false

	for _, err := range result.Errors {
		if strings.Contains(err.Field, "url") || strings.Contains(err.Field, "proxy") {
			hasURLError = true
		}
		if strings.Contains(err.Message, "duration") || strings.Contains(err.Message, "period") {
			hasDurationError = true
		}
		if strings.Contains(err.Field, "logging") {
			hasLoggingError = true
		}
	}

	if hasURLError {
		suggestions = append(suggestions,
			"Ensure URLs include protocol (http:// or https://)",
			"Verify domain names are correct",
			"Test URLs in a browser first")
	}

	if hasDurationError {
		suggestions = append(suggestions,
			"Durations use Go syntax: 30s, 1m30s, 2h",
			"Task periods and timeouts must be positive")
	}

	if hasLoggingError {
		suggestions = append(suggestions,
			"Valid log levels: "+strings.Join(validLogLevels, ", "),
			"Valid log formats: "+strings.Join(validLogFormats, ", "))
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions,
			"Review the configuration file for syntax errors",
			"Check YAML indentation and formatting",
			"Ensure all required fields are present")
	}

	return suggestions
}

// Helper function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
