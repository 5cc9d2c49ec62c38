// cmd/browsertabs/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/inquilabee/browsertabs/internal/config"
	"github.com/inquilabee/browsertabs/internal/monitoring"
	"github.com/inquilabee/browsertabs/internal/sessionstore"
	"github.com/inquilabee/browsertabs/internal/utils"
	"github.com/inquilabee/browsertabs/pkg/api"
	"github.com/inquilabee/browsertabs/pkg/scheduler"
	"github.com/inquilabee/browsertabs/pkg/tabs"
	"gopkg.in/yaml.v3"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// runSession loads and merges the configuration files, then runs the tab
// session until the scheduler run bound elapses or the process is signalled.
func runSession(configFiles []string) {
	cfg, err := loadConfigs(configFiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if hasFlag("-v") || hasFlag("--verbose") {
		cfg.Logging.Level = "debug"
	}
	if hasFlag("--headless") {
		cfg.Browser.Headless = true
	}

	logger, err := utils.NewLoggerFromConfig(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := executeSession(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfigs loads each file and merges them in order, later files
// overriding earlier ones.
func loadConfigs(paths []string) (*config.Config, error) {
	cfg, err := config.MergeFiles(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// executeSession wires the browser, store, scheduler and servers together
// and blocks until the run finishes.
func executeSession(cfg *config.Config, logger utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.SetDefault(scheduler.New(
		scheduler.WithLogger(logger),
		scheduler.WithRateLimit(cfg.Scheduler.TasksPerSecond),
	))

	opts := append(tabs.FromConfig(cfg.Browser), tabs.WithLogger(logger))
	b, err := tabs.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer b.Close()

	logger.WithFields(map[string]interface{}{
		"session": b.ID(),
		"name":    cfg.Name,
	}).Info("session started")

	var store *sessionstore.Store
	if cfg.Store.Path != "" {
		store, err = sessionstore.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}
		defer store.Close()

		if cfg.Store.Restore {
			if err := restoreTabs(ctx, b, store, cfg.Store.Session, logger); err != nil {
				logger.Warnf("session restore failed: %v", err)
			}
		}
	}

	if err := openTabs(b, cfg.Tabs, logger); err != nil {
		return err
	}

	hm := startHealthChecks(ctx, b, store)
	defer hm.Stop()

	if cfg.Monitoring.Enabled {
		go func() {
			err := monitoring.Default().StartMetricsServer(ctx, cfg.Monitoring.Address, cfg.Monitoring.Path)
			if err != nil && err != http.ErrServerClosed {
				logger.Errorf("metrics server failed: %v", err)
			}
		}()
		go collectSystemMetrics(ctx, monitoring.Default())
	}

	if cfg.API.Enabled {
		srv := api.NewServer(api.LiveSources(),
			api.WithLogger(logger),
			api.WithHealthManager(hm),
		)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.API.Address); err != nil {
				logger.Errorf("status API failed: %v", err)
			}
		}()
	}

	runErr := b.ExecuteTasks(ctx, cfg.Scheduler.MaxRunTimeDuration())
	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("task execution failed: %w", runErr)
	}

	if store != nil && cfg.Store.Session != "" {
		if err := saveTabs(b, store, cfg.Store.Session, logger); err != nil {
			logger.Warnf("session save failed: %v", err)
		}
	}

	return nil
}

// restoreTabs reopens the tabs saved under the named session.
func restoreTabs(ctx context.Context, b *tabs.Browser, store *sessionstore.Store, session string, logger utils.Logger) error {
	records, err := store.Load(ctx, session)
	if err != nil {
		return err
	}
	opened := 0
	for _, rec := range records {
		if err := utils.ValidateURL(rec.URL); err != nil {
			logger.WithField("url", rec.URL).Warnf("skipping saved tab: %v", err)
			continue
		}
		if _, err := b.Open(rec.URL); err != nil {
			logger.WithField("url", rec.URL).Warnf("failed to restore tab: %v", err)
			continue
		}
		opened++
	}
	if opened > 0 {
		logger.WithField("tabs", opened).Info("session restored")
	}
	return nil
}

// openTabs opens the configured tabs and schedules their periodic tasks.
// A navigation error keeps the tab and continues; only a tab that could
// not be created at all aborts the session.
func openTabs(b *tabs.Browser, specs []config.TabSpec, logger utils.Logger) error {
	for _, spec := range specs {
		tab, err := b.Open(spec.URL)
		if err != nil {
			if tab == nil {
				return fmt.Errorf("failed to open tab %q: %w", spec.Name, err)
			}
			logger.WithField("tab", spec.Name).Warnf("tab opened with navigation error: %v", err)
		}

		if spec.Task == nil {
			continue
		}
		period, err := spec.Task.EveryDuration()
		if err != nil {
			return fmt.Errorf("tab %q: %w", spec.Name, err)
		}
		action, err := taskAction(spec.Task.Action)
		if err != nil {
			return fmt.Errorf("tab %q: %w", spec.Name, err)
		}
		if _, err := tab.ScheduleNamedTask(spec.Task.Name, period, action); err != nil {
			return fmt.Errorf("failed to schedule task %q: %w", spec.Task.Name, err)
		}
		logger.WithFields(map[string]interface{}{
			"tab":    spec.Name,
			"task":   spec.Task.Name,
			"period": utils.FormatDuration(period),
		}).Info("task scheduled")
	}
	return nil
}

// taskAction maps a configured action name to a tab operation.
func taskAction(action string) (func(*tabs.Tab) error, error) {
	switch action {
	case "refresh":
		return func(t *tabs.Tab) error { return t.Refresh() }, nil
	case "scroll_bottom":
		return func(t *tabs.Tab) error { return t.ScrollToBottom() }, nil
	case "screenshot":
		return func(t *tabs.Tab) error {
			url, err := t.URL()
			if err != nil || url == "" {
				url = t.StartURL()
			}
			return t.SaveScreenshot(utils.ScreenshotFileName(url))
		}, nil
	default:
		return nil, fmt.Errorf("unknown task action %q", action)
	}
}

// startHealthChecks registers the standard liveness checks for the session
// and starts the periodic check loop.
func startHealthChecks(ctx context.Context, b *tabs.Browser, store *sessionstore.Store) *monitoring.HealthManager {
	hm := monitoring.NewHealthManager(monitoring.HealthConfig{})

	hm.RegisterCheck(monitoring.BrowserHealthCheck("browser", func(ctx context.Context) error {
		if len(b.Tabs()) == 0 {
			return fmt.Errorf("no open tabs")
		}
		return nil
	}))
	if store != nil {
		hm.RegisterCheck(monitoring.StoreHealthCheck("store", store.Ping))
	}
	hm.RegisterCheck(monitoring.MemoryHealthCheck(90))
	hm.RegisterCheck(monitoring.GoroutineHealthCheck(10000))

	hm.Start(ctx)
	return hm
}

// collectSystemMetrics refreshes the runtime gauges while the session runs.
func collectSystemMetrics(ctx context.Context, mm *monitoring.MetricsManager) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mm.CollectSystemMetrics()
		}
	}
}

// saveTabs persists the current tab set under the configured session name.
func saveTabs(b *tabs.Browser, store *sessionstore.Store, session string, logger utils.Logger) error {
	open := b.Tabs()
	records := make([]sessionstore.TabRecord, 0, len(open))
	for _, tab := range open {
		url, err := tab.URL()
		if err != nil || url == "" {
			url = tab.StartURL()
		}
		// Blank tabs carry no address worth restoring.
		if !utils.IsValidURL(url) {
			continue
		}
		title, _ := tab.Title()
		records = append(records, sessionstore.TabRecord{
			Position: len(records),
			URL:      url,
			Title:    title,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Save(ctx, session, records); err != nil {
		return err
	}
	logger.WithFields(map[string]interface{}{
		"session": session,
		"tabs":    len(records),
	}).Info("session saved")
	return nil
}

// validateConfig loads a configuration file and reports whether it is valid.
func validateConfig(configFile string) {
	verbose := hasFlag("-v") || hasFlag("--verbose")

	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if verbose {
		fmt.Printf("Configuration details:\n")
		fmt.Printf("  Name: %s\n", cfg.Name)
		fmt.Printf("  Tabs: %d\n", len(cfg.Tabs))
		fmt.Printf("  Headless: %v\n", cfg.Browser.Headless)
		fmt.Printf("  Page load timeout: %s\n", cfg.Browser.PageLoadTimeoutDuration())
	}

	fmt.Printf("✓ Configuration file '%s' is valid\n", configFile)
}

// generateTemplate renders a configuration template as YAML.
func generateTemplate(args []string) (string, error) {
	templateType := "basic"
	if len(args) > 0 && args[0] == "--type" && len(args) > 1 {
		templateType = args[1]
	}

	template := config.GenerateTemplate(templateType)

	yamlData, err := yaml.Marshal(template)
	if err != nil {
		return "", fmt.Errorf("failed to marshal template to YAML: %w", err)
	}

	return string(yamlData), nil
}

// hasFlag checks if a flag is present in command line arguments
func hasFlag(flag string) bool {
	for _, arg := range os.Args {
		if arg == flag {
			return true
		}
	}
	return false
}

// configArgs filters flags out of an argument list, leaving config paths.
func configArgs(args []string) []string {
	var files []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			files = append(files, arg)
		}
	}
	return files
}

// main handles CLI arguments and routes to the appropriate command.
func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "run":
		files := configArgs(os.Args[2:])
		if len(files) == 0 {
			fmt.Fprintf(os.Stderr, "Error: config file required\n")
			fmt.Fprintf(os.Stderr, "Usage: browsertabs run <config.yaml> [more.yaml...]\n")
			os.Exit(1)
		}
		runSession(files)

	case "validate":
		if len(os.Args) < 3 {
			fmt.Fprintf(os.Stderr, "Error: config file required\n")
			fmt.Fprintf(os.Stderr, "Usage: browsertabs validate <config.yaml>\n")
			os.Exit(1)
		}
		validateConfig(os.Args[2])

	case "template":
		template, err := generateTemplate(os.Args[2:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(template)

	case "version", "--version":
		printVersion()

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		printUsage()
		os.Exit(1)
	}
}

// printUsage displays help information
func printUsage() {
	fmt.Println("BrowserTabs - Managed Browser Tab Sessions")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  browsertabs run <config.yaml>...        Run a tab session from configuration files")
	fmt.Println("  browsertabs validate <config.yaml>      Validate a configuration file")
	fmt.Println("  browsertabs template [--type <type>]    Generate a configuration template")
	fmt.Println("  browsertabs version                     Show version information")
	fmt.Println("  browsertabs help                        Show this help message")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -v, --verbose                           Enable verbose output")
	fmt.Println("  --headless                              Force headless mode")
	fmt.Println()
	fmt.Println("Template types:")
	fmt.Println("  basic       Single tab session (default)")
	fmt.Println("  tasks       Tabs with periodic refresh and scroll tasks")
	fmt.Println("  monitored   Session with metrics, status API and persistence")
}

// printVersion displays version information
func printVersion() {
	fmt.Printf("BrowserTabs %s\n", version)
	fmt.Printf("Build time: %s\n", buildTime)
	fmt.Printf("Git commit: %s\n", gitCommit)
}
