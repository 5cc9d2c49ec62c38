// pkg/scheduler/scheduler.go

// Package scheduler runs periodic tasks against browser tabs. It wraps a
// cron runner with owner-based bookkeeping so a closing tab or session can
// cancel its tasks in one call, and paces task starts so a burst of due
// tasks cannot hammer the browser all at once.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/inquilabee/browsertabs/internal/monitoring"
	"github.com/inquilabee/browsertabs/internal/utils"
)

// TaskID identifies one scheduled task.
type TaskID cron.EntryID

// OwnerKey groups tasks by the thing that scheduled them. Owners form a
// path hierarchy separated by slashes: cancelling "session-1" also
// cancels tasks owned by "session-1/tab-2".
type OwnerKey string

// TaskSnapshot is a point-in-time view of one scheduled task. NextRun is
// zero while the scheduler is stopped.
type TaskSnapshot struct {
	ID        TaskID        `json:"id"`
	Owner     OwnerKey      `json:"owner"`
	Name      string        `json:"name"`
	Period    time.Duration `json:"period"`
	Runs      int64         `json:"runs"`
	Errors    int64         `json:"errors"`
	LastRun   time.Time     `json:"last_run"`
	NextRun   time.Time     `json:"next_run"`
	LastError string        `json:"last_error,omitempty"`
}

type taskEntry struct {
	id      TaskID
	owner   OwnerKey
	name    string
	period  time.Duration
	runs    int64
	errs    int64
	lastRun time.Time
	lastErr string
}

// Scheduler runs registered tasks on their periods. Task failures are
// logged and counted; they never stop the schedule or affect other tasks.
type Scheduler struct {
	cron    *cron.Cron
	logger  utils.Logger
	metrics *monitoring.MetricsManager
	limiter *utils.RateLimiter

	mu      sync.Mutex
	tasks   map[TaskID]*taskEntry
	running bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger routes scheduler logs to logger.
func WithLogger(logger utils.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithMetrics routes task metrics to mm.
func WithMetrics(mm *monitoring.MetricsManager) Option {
	return func(s *Scheduler) { s.metrics = mm }
}

// WithRateLimit paces task starts across all tasks to tasksPerSecond.
// A non-positive rate disables pacing.
func WithRateLimit(tasksPerSecond float64) Option {
	return func(s *Scheduler) {
		if tasksPerSecond > 0 {
			s.limiter = utils.NewRateLimiter(tasksPerSecond)
		}
	}
}

// New creates a scheduler. Tasks do not fire until Start or Run is called.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks: make(map[TaskID]*taskEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = utils.NewLogger()
	}
	if s.metrics == nil {
		s.metrics = monitoring.Default()
	}
	s.logger = s.logger.WithField("component", "scheduler")
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger})))
	return s
}

// Schedule registers fn to run every period. Periods below one second are
// rejected rather than silently rounded up by the cron runner. The task
// does not fire until the scheduler runs.
func (s *Scheduler) Schedule(owner OwnerKey, name string, period time.Duration, fn func() error) (TaskID, error) {
	if fn == nil {
		return 0, utils.NewError(utils.ErrCodeValidation, "task function cannot be nil").Build()
	}
	if period <= 0 {
		return 0, utils.NewError(utils.ErrCodeInvalidPeriod, "task period must be positive").
			WithContext("period", period.String()).Build()
	}
	if period < time.Second {
		return 0, utils.NewError(utils.ErrCodeInvalidPeriod, "task periods below one second are not supported").
			WithContext("period", period.String()).Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &taskEntry{
		owner:  owner,
		name:   name,
		period: period,
	}
	id := TaskID(s.cron.Schedule(cron.Every(period), cron.FuncJob(func() {
		s.runTask(entry, fn)
	})))
	entry.id = id
	if entry.name == "" {
		entry.name = fmt.Sprintf("task-%d", id)
	}
	s.tasks[id] = entry
	s.metrics.SetTasksScheduled(len(s.tasks))

	s.logger.WithFields(map[string]interface{}{
		"task":   entry.name,
		"owner":  string(owner),
		"period": period.String(),
	}).Debug("scheduled task")
	return id, nil
}

// runTask wraps one task fire: pacing, timing, counting. The scheduler
// lock is not held while fn runs, so tasks may schedule or cancel tasks.
func (s *Scheduler) runTask(entry *taskEntry, fn func() error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(context.Background()); err != nil {
			return
		}
	}

	start := time.Now()
	err := fn()
	duration := time.Since(start)

	s.mu.Lock()
	entry.runs++
	entry.lastRun = start
	if err != nil {
		entry.errs++
		entry.lastErr = err.Error()
	}
	name, owner := entry.name, entry.owner
	s.mu.Unlock()

	if err != nil {
		s.metrics.RecordTaskRun("error", duration)
		s.logger.WithFields(map[string]interface{}{
			"task":  name,
			"owner": string(owner),
		}).Warnf("task run failed: %v", err)
		return
	}
	s.metrics.RecordTaskRun("success", duration)
}

// Cancel removes one task. Unknown ids are a no-op.
func (s *Scheduler) Cancel(id TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return
	}
	s.cron.Remove(cron.EntryID(id))
	delete(s.tasks, id)
	s.metrics.SetTasksScheduled(len(s.tasks))
}

// CancelOwner removes every task registered under owner, including tasks
// owned below it in the hierarchy.
func (s *Scheduler) CancelOwner(owner OwnerKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := string(owner) + "/"
	removed := 0
	for id, entry := range s.tasks {
		if entry.owner != owner && !strings.HasPrefix(string(entry.owner), prefix) {
			continue
		}
		s.cron.Remove(cron.EntryID(id))
		delete(s.tasks, id)
		removed++
	}
	if removed > 0 {
		s.metrics.SetTasksScheduled(len(s.tasks))
		s.logger.WithFields(map[string]interface{}{
			"owner": string(owner),
			"tasks": removed,
		}).Debug("cancelled owner tasks")
	}
}

// CancelAll removes every task.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.tasks {
		s.cron.Remove(cron.EntryID(id))
		delete(s.tasks, id)
	}
	s.metrics.SetTasksScheduled(0)
}

// Tasks returns a snapshot of the scheduled tasks, ordered by id.
func (s *Scheduler) Tasks() []TaskSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskSnapshot, 0, len(s.tasks))
	for id, entry := range s.tasks {
		out = append(out, TaskSnapshot{
			ID:        entry.id,
			Owner:     entry.owner,
			Name:      entry.name,
			Period:    entry.period,
			Runs:      entry.runs,
			Errors:    entry.errs,
			LastRun:   entry.lastRun,
			NextRun:   s.cron.Entry(cron.EntryID(id)).Next,
			LastError: entry.lastErr,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsScheduled reports whether the task is still registered.
func (s *Scheduler) IsScheduled(id TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	return ok
}

// IsRunning reports whether the scheduler is firing tasks.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins firing tasks in the background. Starting a running
// scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Debug("scheduler started")
}

// Stop stops firing tasks and waits for in-flight runs to finish. The
// registered tasks stay scheduled for the next Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCtx := s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	<-stopCtx.Done()
	s.logger.Debug("scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is cancelled or maxTime
// elapses, whichever comes first, then stops it. A non-positive maxTime
// runs until cancellation. Reaching maxTime is the planned outcome and
// returns nil; external cancellation returns the context error.
func (s *Scheduler) Run(ctx context.Context, maxTime time.Duration) error {
	runCtx := ctx
	if maxTime > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, maxTime)
		defer cancel()
	}

	s.Start()
	defer s.Stop()

	<-runCtx.Done()
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// cronLogger adapts the session logger to the cron runner's logger
// interface, which reports key/value pairs.
type cronLogger struct {
	logger utils.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Errorf("cron: %s: %v", msg, err)
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}

// Process-wide default scheduler. Tab tasks register here so one runner
// paces tasks across every session in the process.
var (
	defaultMu        sync.Mutex
	defaultScheduler *Scheduler
)

// Default returns the process-wide scheduler, creating it on first use.
func Default() *Scheduler {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultScheduler == nil {
		defaultScheduler = New()
	}
	return defaultScheduler
}

// SetDefault replaces the process-wide scheduler, returning the previous
// one. Tasks on the previous scheduler keep running until it is stopped.
func SetDefault(s *Scheduler) *Scheduler {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	prev := defaultScheduler
	defaultScheduler = s
	return prev
}
