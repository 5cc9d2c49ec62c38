// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name      string                 `json:"name"`
	Status    HealthStatus           `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	LastCheck time.Time              `json:"last_check"`
	Duration  time.Duration          `json:"duration"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Critical  bool                   `json:"critical"`

	CheckFunc func(ctx context.Context) HealthCheckResult `json:"-"`
	Timeout   time.Duration                               `json:"-"`
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status   HealthStatus           `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Error    error                  `json:"-"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// HealthConfig configuration for health monitoring
type HealthConfig struct {
	CheckInterval    time.Duration `json:"check_interval"`
	DefaultTimeout   time.Duration `json:"default_timeout"`
	DetailedResponse bool          `json:"detailed_response"`
}

// HealthManager runs registered health checks on an interval and serves
// an aggregated view of the session's health.
type HealthManager struct {
	checks      map[string]*HealthCheck
	checksMutex sync.RWMutex
	ticker      *time.Ticker
	stopCh      chan struct{}
	stopOnce    sync.Once
	config      HealthConfig
}

// SystemHealth represents overall health information
type SystemHealth struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    time.Duration          `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks,omitempty"`
	Summary   HealthSummary          `json:"summary"`
	System    SystemMetrics          `json:"system"`
}

// HealthSummary provides a summary of health checks
type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
	Unknown   int `json:"unknown"`
	Critical  int `json:"critical"`
}

// SystemMetrics provides system-level metrics
type SystemMetrics struct {
	MemoryUsage    MemoryMetrics `json:"memory"`
	GoroutineCount int           `json:"goroutine_count"`
	Uptime         time.Duration `json:"uptime"`
}

// MemoryMetrics provides memory usage information
type MemoryMetrics struct {
	Allocated    uint64  `json:"allocated_bytes"`
	TotalAlloc   uint64  `json:"total_alloc_bytes"`
	System       uint64  `json:"system_bytes"`
	NumGC        uint32  `json:"num_gc"`
	UsagePercent float64 `json:"usage_percent"`
}

// NewHealthManager creates a new health manager
func NewHealthManager(config HealthConfig) *HealthManager {
	if config.CheckInterval == 0 {
		config.CheckInterval = 30 * time.Second
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = 10 * time.Second
	}

	return &HealthManager{
		checks: make(map[string]*HealthCheck),
		stopCh: make(chan struct{}),
		config: config,
	}
}

// RegisterCheck registers a new health check
func (hm *HealthManager) RegisterCheck(check *HealthCheck) {
	if check.Timeout == 0 {
		check.Timeout = hm.config.DefaultTimeout
	}
	if check.Status == "" {
		check.Status = HealthStatusUnknown
	}

	hm.checksMutex.Lock()
	hm.checks[check.Name] = check
	hm.checksMutex.Unlock()
}

// RemoveCheck removes a health check
func (hm *HealthManager) RemoveCheck(name string) {
	hm.checksMutex.Lock()
	delete(hm.checks, name)
	hm.checksMutex.Unlock()
}

// Start starts the periodic health check loop
func (hm *HealthManager) Start(ctx context.Context) {
	hm.ticker = time.NewTicker(hm.config.CheckInterval)

	go func() {
		// Run initial checks
		hm.runAllChecks(ctx)

		for {
			select {
			case <-hm.ticker.C:
				hm.runAllChecks(ctx)
			case <-hm.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the health check loop. Safe to call more than once.
func (hm *HealthManager) Stop() {
	hm.stopOnce.Do(func() {
		if hm.ticker != nil {
			hm.ticker.Stop()
		}
		close(hm.stopCh)
	})
}

// RunChecks runs all registered checks immediately
func (hm *HealthManager) RunChecks(ctx context.Context) {
	hm.runAllChecks(ctx)
}

// runAllChecks runs all registered health checks
func (hm *HealthManager) runAllChecks(ctx context.Context) {
	hm.checksMutex.RLock()
	checks := make([]*HealthCheck, 0, len(hm.checks))
	for _, check := range hm.checks {
		checks = append(checks, check)
	}
	hm.checksMutex.RUnlock()

	// Run checks concurrently
	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(c *HealthCheck) {
			defer wg.Done()
			hm.runCheck(ctx, c)
		}(check)
	}
	wg.Wait()
}

// runCheck runs a single health check
func (hm *HealthManager) runCheck(ctx context.Context, check *HealthCheck) {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	var result HealthCheckResult

	if check.CheckFunc != nil {
		result = check.CheckFunc(checkCtx)
	} else {
		result = HealthCheckResult{
			Status:  HealthStatusUnknown,
			Message: "No check function defined",
		}
	}

	duration := time.Since(start)

	hm.checksMutex.Lock()
	check.LastCheck = start
	check.Duration = duration
	check.Status = result.Status
	check.Message = result.Message
	if result.Error != nil {
		check.Error = result.Error.Error()
	} else {
		check.Error = ""
	}
	if result.Metadata != nil {
		check.Metadata = result.Metadata
	}
	hm.checksMutex.Unlock()
}

// GetHealth returns the overall health status
func (hm *HealthManager) GetHealth() SystemHealth {
	hm.checksMutex.RLock()
	defer hm.checksMutex.RUnlock()

	health := SystemHealth{
		Timestamp: time.Now(),
		Uptime:    time.Since(startTime),
		System:    getSystemMetrics(),
	}

	if hm.config.DetailedResponse {
		health.Checks = make(map[string]HealthCheck)
		for name, check := range hm.checks {
			health.Checks[name] = *check
		}
	}

	// Calculate overall status and summary
	summary := HealthSummary{}
	overallStatus := HealthStatusHealthy

	for _, check := range hm.checks {
		summary.Total++

		switch check.Status {
		case HealthStatusHealthy:
			summary.Healthy++
		case HealthStatusUnhealthy:
			summary.Unhealthy++
			if check.Critical {
				overallStatus = HealthStatusUnhealthy
			} else if overallStatus == HealthStatusHealthy {
				overallStatus = HealthStatusDegraded
			}
		case HealthStatusDegraded:
			summary.Degraded++
			if overallStatus == HealthStatusHealthy {
				overallStatus = HealthStatusDegraded
			}
		case HealthStatusUnknown:
			summary.Unknown++
			if overallStatus == HealthStatusHealthy {
				overallStatus = HealthStatusDegraded
			}
		}

		if check.Critical {
			summary.Critical++
		}
	}

	health.Status = overallStatus
	health.Summary = summary

	return health
}

// getSystemMetrics collects system-level metrics
func getSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	usagePercent := 0.0
	if m.Sys > 0 {
		usagePercent = float64(m.Alloc) / float64(m.Sys) * 100
	}

	return SystemMetrics{
		MemoryUsage: MemoryMetrics{
			Allocated:    m.Alloc,
			TotalAlloc:   m.TotalAlloc,
			System:       m.Sys,
			NumGC:        m.NumGC,
			UsagePercent: usagePercent,
		},
		GoroutineCount: runtime.NumGoroutine(),
		Uptime:         time.Since(startTime),
	}
}

// HealthHandler returns an HTTP handler for the health endpoint
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.GetHealth()

		w.Header().Set("Content-Type", "application/json")

		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		json.NewEncoder(w).Encode(health)
	}
}

var startTime time.Time

func init() {
	startTime = time.Now()
}

// BrowserHealthCheck creates a health check probing the browser session.
// The probe should perform a cheap driver round trip, such as listing targets.
func BrowserHealthCheck(name string, probe func(ctx context.Context) error) *HealthCheck {
	return &HealthCheck{
		Name:     name,
		Critical: true,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			if err := probe(ctx); err != nil {
				return HealthCheckResult{
					Status:  HealthStatusUnhealthy,
					Message: "Browser session is not responding",
					Error:   err,
				}
			}
			return HealthCheckResult{
				Status:  HealthStatusHealthy,
				Message: "Browser session responding",
			}
		},
	}
}

// StoreHealthCheck creates a health check probing the session store.
func StoreHealthCheck(name string, ping func(ctx context.Context) error) *HealthCheck {
	return &HealthCheck{
		Name:     name,
		Critical: false,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			if err := ping(ctx); err != nil {
				return HealthCheckResult{
					Status:  HealthStatusDegraded,
					Message: "Session store unavailable",
					Error:   err,
				}
			}
			return HealthCheckResult{
				Status:  HealthStatusHealthy,
				Message: "Session store reachable",
			}
		},
	}
}

// MemoryHealthCheck creates a memory usage health check
func MemoryHealthCheck(maxUsagePercent float64) *HealthCheck {
	return &HealthCheck{
		Name:     "memory",
		Critical: false,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			usagePercent := 0.0
			if m.Sys > 0 {
				usagePercent = float64(m.Alloc) / float64(m.Sys) * 100
			}

			metadata := map[string]interface{}{
				"allocated_bytes": m.Alloc,
				"system_bytes":    m.Sys,
				"usage_percent":   usagePercent,
			}

			if usagePercent > maxUsagePercent {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("High memory usage: %.2f%%", usagePercent),
					Metadata: metadata,
				}
			}

			return HealthCheckResult{
				Status:   HealthStatusHealthy,
				Message:  fmt.Sprintf("Memory usage normal: %.2f%%", usagePercent),
				Metadata: metadata,
			}
		},
	}
}

// GoroutineHealthCheck creates a goroutine count health check
func GoroutineHealthCheck(maxGoroutines int) *HealthCheck {
	return &HealthCheck{
		Name:     "goroutines",
		Critical: false,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			count := runtime.NumGoroutine()

			metadata := map[string]interface{}{
				"goroutine_count": count,
				"max_allowed":     maxGoroutines,
			}

			if count > maxGoroutines {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("High goroutine count: %d", count),
					Metadata: metadata,
				}
			}

			return HealthCheckResult{
				Status:   HealthStatusHealthy,
				Message:  fmt.Sprintf("Goroutine count normal: %d", count),
				Metadata: metadata,
			}
		},
	}
}
