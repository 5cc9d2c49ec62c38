// internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadFromBytes(t *testing.T) {
	configYAML := `
name: "bytes_test"
browser:
  headless: true
tabs:
  - url: "https://test.com"
    name: "main"
`

	config, err := LoadFromBytes([]byte(configYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	if config.Name != "bytes_test" {
		t.Errorf("expected name 'bytes_test', got %q", config.Name)
	}

	if !config.Browser.Headless {
		t.Error("expected headless browser")
	}

	if len(config.Tabs) != 1 || config.Tabs[0].URL != "https://test.com" {
		t.Errorf("unexpected tabs: %+v", config.Tabs)
	}
}

func TestLoadFromFile(t *testing.T) {
	configYAML := `
name: "test_session"
browser:
  headless: true
  page_load_timeout: "20s"
tabs:
  - url: "https://example.com"
    name: "home"
`

	tmpFile, err := os.CreateTemp("", "test_config_*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(configYAML); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	tmpFile.Close()

	config, err := LoadFromFile(tmpFile.Name())
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Name != "test_session" {
		t.Errorf("expected name 'test_session', got %q", config.Name)
	}

	if got := config.Browser.PageLoadTimeoutDuration(); got != 20*time.Second {
		t.Errorf("expected 20s page load timeout, got %v", got)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	config, err := LoadFromBytes([]byte(`name: defaults_test`))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	if config.Browser.WindowWidth != 1920 || config.Browser.WindowHeight != 1080 {
		t.Errorf("expected default window size 1920x1080, got %dx%d",
			config.Browser.WindowWidth, config.Browser.WindowHeight)
	}

	if config.Browser.PageLoadTimeout != "30s" {
		t.Errorf("expected default page load timeout 30s, got %q", config.Browser.PageLoadTimeout)
	}

	if config.Logging.Level != "info" || config.Logging.Format != "text" {
		t.Errorf("expected default logging info/text, got %s/%s",
			config.Logging.Level, config.Logging.Format)
	}

	if config.Store.Session != "defaults_test" {
		t.Errorf("expected store session to default to config name, got %q", config.Store.Session)
	}

	if config.Scheduler.TasksPerSecond != 1.0 {
		t.Errorf("expected default pacing 1.0, got %g", config.Scheduler.TasksPerSecond)
	}
}

func TestLoadAppliesTabDefaults(t *testing.T) {
	configYAML := `
name: tab_defaults
tabs:
  - url: "https://example.com"
  - url: "https://example.org"
    task:
      every: "30s"
`

	config, err := LoadFromBytes([]byte(configYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	if config.Tabs[0].Name != "tab-1" || config.Tabs[1].Name != "tab-2" {
		t.Errorf("expected generated tab names, got %q and %q",
			config.Tabs[0].Name, config.Tabs[1].Name)
	}

	task := config.Tabs[1].Task
	if task == nil {
		t.Fatal("expected task on second tab")
	}
	if task.Name != "tab-2-task" {
		t.Errorf("expected generated task name 'tab-2-task', got %q", task.Name)
	}
	if task.Action != "refresh" {
		t.Errorf("expected default action 'refresh', got %q", task.Action)
	}
}

func TestEnvironmentExpansion(t *testing.T) {
	os.Setenv("BROWSERTABS_TEST_URL", "https://env.example.com")
	defer os.Unsetenv("BROWSERTABS_TEST_URL")

	configYAML := `
name: env_test
tabs:
  - url: "${BROWSERTABS_TEST_URL}"
  - url: "${BROWSERTABS_TEST_MISSING:-https://fallback.example.com}"
`

	config, err := LoadFromBytes([]byte(configYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	if config.Tabs[0].URL != "https://env.example.com" {
		t.Errorf("expected expanded URL, got %q", config.Tabs[0].URL)
	}

	if config.Tabs[1].URL != "https://fallback.example.com" {
		t.Errorf("expected fallback URL, got %q", config.Tabs[1].URL)
	}
}

func TestGenerateTemplate(t *testing.T) {
	config := GenerateTemplate("basic")

	if config.Name != "basic_session" {
		t.Errorf("expected name 'basic_session', got %q", config.Name)
	}

	if len(config.Tabs) == 0 {
		t.Error("template should have tabs")
	}

	if err := config.Validate(); err != nil {
		t.Errorf("generated template should be valid: %v", err)
	}
}

func TestGenerateTemplateTypes(t *testing.T) {
	tasks := GenerateTemplate("tasks")
	if tasks.Name != "task_session" {
		t.Errorf("expected name 'task_session', got %q", tasks.Name)
	}
	hasTask := false
	for _, tab := range tasks.Tabs {
		if tab.Task != nil {
			hasTask = true
		}
	}
	if !hasTask {
		t.Error("tasks template should schedule at least one task")
	}

	monitored := GenerateTemplate("monitored")
	if !monitored.Monitoring.Enabled || !monitored.API.Enabled {
		t.Error("monitored template should enable monitoring and the API")
	}
	if err := monitored.Validate(); err != nil {
		t.Errorf("monitored template should be valid: %v", err)
	}

	fallback := GenerateTemplate("nonsense")
	if fallback.Name != "basic_session" {
		t.Errorf("unknown template type should fall back to basic, got %q", fallback.Name)
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name: "bad tab url scheme",
			yaml: `
name: test
tabs:
  - url: "ftp://example.com"
`,
			wantMsg: "http or https",
		},
		{
			name: "missing tab url",
			yaml: `
name: test
tabs:
  - name: "empty"
`,
			wantMsg: "Tab URL is required",
		},
		{
			name: "bad task period",
			yaml: `
name: test
tabs:
  - url: "https://example.com"
    task:
      every: "often"
`,
			wantMsg: "Invalid duration",
		},
		{
			name: "negative task period",
			yaml: `
name: test
tabs:
  - url: "https://example.com"
    task:
      every: "-5s"
`,
			wantMsg: "must be positive",
		},
		{
			name: "unknown task action",
			yaml: `
name: test
tabs:
  - url: "https://example.com"
    task:
      every: "30s"
      action: "explode"
`,
			wantMsg: "Invalid task action",
		},
		{
			name: "duplicate tab names",
			yaml: `
name: test
tabs:
  - url: "https://example.com"
    name: "same"
  - url: "https://example.org"
    name: "same"
`,
			wantMsg: "Duplicate tab name",
		},
		{
			name: "bad log level",
			yaml: `
name: test
logging:
  level: "loud"
`,
			wantMsg: "Invalid log level",
		},
		{
			name: "bad page load timeout",
			yaml: `
name: test
browser:
  page_load_timeout: "soon"
`,
			wantMsg: "Invalid duration",
		},
		{
			name: "bad proxy",
			yaml: `
name: test
browser:
  proxy: "not a proxy"
`,
			wantMsg: "Proxy must be a URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error but got none")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error to contain %q, got: %v", tt.wantMsg, err)
			}
		})
	}
}

func TestMergeConfigs(t *testing.T) {
	base := GenerateTemplate("basic")
	override := Config{
		Name: "merged",
		Browser: BrowserConfig{
			Headless:        true,
			PageLoadTimeout: "45s",
		},
		Logging: LoggingConfig{Level: "debug"},
	}

	merged, err := MergeConfigs(&base, &override)
	if err != nil {
		t.Fatalf("MergeConfigs failed: %v", err)
	}

	if merged.Name != "merged" {
		t.Errorf("expected overridden name 'merged', got %q", merged.Name)
	}

	if merged.Browser.PageLoadTimeout != "45s" {
		t.Errorf("expected overridden timeout 45s, got %q", merged.Browser.PageLoadTimeout)
	}

	if merged.Logging.Level != "debug" {
		t.Errorf("expected overridden log level debug, got %q", merged.Logging.Level)
	}

	// Fields absent from the override keep the base values
	if len(merged.Tabs) != len(base.Tabs) {
		t.Errorf("expected base tabs to survive the merge, got %d", len(merged.Tabs))
	}

	if merged.Logging.Format != "text" {
		t.Errorf("expected base log format to survive, got %q", merged.Logging.Format)
	}
}

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()

	base := dir + "/base.yaml"
	if err := os.WriteFile(base, []byte(`
name: file_base
browser:
  window_width: 1024
  window_height: 768
tabs:
  - url: "https://example.com"
    name: "home"
`), 0644); err != nil {
		t.Fatalf("failed to write base config: %v", err)
	}

	override := dir + "/override.yaml"
	if err := os.WriteFile(override, []byte(`
browser:
  headless: true
logging:
  level: debug
`), 0644); err != nil {
		t.Fatalf("failed to write override config: %v", err)
	}

	merged, err := MergeFiles(base, override)
	if err != nil {
		t.Fatalf("MergeFiles failed: %v", err)
	}

	if merged.Name != "file_base" {
		t.Errorf("expected base name to survive, got %q", merged.Name)
	}

	if !merged.Browser.Headless {
		t.Error("expected override to enable headless")
	}

	// The override never mentions window size, so the base values stay
	// rather than being replaced by defaults.
	if merged.Browser.WindowWidth != 1024 {
		t.Errorf("expected base window width 1024 to survive, got %d", merged.Browser.WindowWidth)
	}

	if merged.Logging.Level != "debug" {
		t.Errorf("expected override log level debug, got %q", merged.Logging.Level)
	}

	// Defaults still apply to fields no file sets
	if merged.Browser.PageLoadTimeout != "30s" {
		t.Errorf("expected default page load timeout, got %q", merged.Browser.PageLoadTimeout)
	}

	if _, err := MergeFiles(); err == nil {
		t.Error("expected error for empty path list")
	}

	if _, err := MergeFiles(dir + "/missing.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	config := GenerateTemplate("tasks")

	var buf bytes.Buffer
	if err := SaveToWriter(&config, &buf); err != nil {
		t.Fatalf("SaveToWriter failed: %v", err)
	}

	loaded, err := LoadFromReader(&buf)
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}

	if loaded.Name != config.Name {
		t.Errorf("expected name %q after round trip, got %q", config.Name, loaded.Name)
	}

	if len(loaded.Tabs) != len(config.Tabs) {
		t.Errorf("expected %d tabs after round trip, got %d", len(config.Tabs), len(loaded.Tabs))
	}
}

func TestDurationAccessors(t *testing.T) {
	bc := BrowserConfig{}
	if got := bc.PageLoadTimeoutDuration(); got != DefaultPageLoadTimeout {
		t.Errorf("expected default page load timeout, got %v", got)
	}
	if got := bc.PartialLoadWaitDuration(); got != DefaultPartialLoadWait {
		t.Errorf("expected default partial load wait, got %v", got)
	}

	bc.PageLoadTimeout = "90s"
	if got := bc.PageLoadTimeoutDuration(); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}

	sc := SchedulerConfig{}
	if got := sc.MaxRunTimeDuration(); got != 0 {
		t.Errorf("expected unbounded run time, got %v", got)
	}
	sc.MaxRunTime = "5m"
	if got := sc.MaxRunTimeDuration(); got != 5*time.Minute {
		t.Errorf("expected 5m, got %v", got)
	}

	ts := TaskSpec{Every: "1m30s"}
	d, err := ts.EveryDuration()
	if err != nil {
		t.Fatalf("EveryDuration failed: %v", err)
	}
	if d != 90*time.Second {
		t.Errorf("expected 90s, got %v", d)
	}

	if _, err := (TaskSpec{Every: "0s"}).EveryDuration(); err == nil {
		t.Error("expected error for zero period")
	}
}
