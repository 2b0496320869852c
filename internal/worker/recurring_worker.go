package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the recurring catch-up over every rule.
type Sweeper interface {
	ProcessAll(ctx context.Context, now time.Time) (int, error)
}

// RecurringWorker runs the sweep on a cron schedule.
type RecurringWorker struct {
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	now      func() time.Time
}

// NewRecurringWorker checks schedule, a standard cron spec or a descriptor
// such as "@every 1h", and returns an idle worker.
func NewRecurringWorker(sweeper Sweeper, schedule string, timeout time.Duration) (*RecurringWorker, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &RecurringWorker{
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  timeout,
		cron:     newScheduler(newCronLogger(slog.Default())),
		now:      time.Now,
	}, nil
}

// cronLogger routes the scheduler's own messages, such as skipped runs and
// recovered panics, through slog.
type cronLogger struct {
	log *slog.Logger
}

func newCronLogger(l *slog.Logger) cronLogger {
	return cronLogger{log: l.With("component", "cron")}
}

// Info carries the scheduler's loop chatter (wake, run, skip) and is kept at debug.
func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}

func newScheduler(logger cron.Logger) *cron.Cron {
	return cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
}

// RunOnce performs a single sweep bounded by the worker timeout.
func (w *RecurringWorker) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	n, err := w.sweeper.ProcessAll(ctx, w.now())
	if err != nil {
		slog.ErrorContext(ctx, "Failed to process recurring expenses", "error", err)
		return 0, err
	}
	if n > 0 {
		slog.InfoContext(ctx, "Processed recurring expenses",
			"count", n,
			"duration_ms", time.Since(start).Milliseconds())
	}
	return n, nil
}

// Start runs one sweep immediately, then schedules the rest. Scheduled runs
// use ctx and are skipped while a previous run is still going.
func (w *RecurringWorker) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "Running initial recurring expense sweep")
	_, _ = w.RunOnce(ctx)

	if _, err := w.cron.AddFunc(w.schedule, func() {
		_, _ = w.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	w.cron.Start()
	slog.InfoContext(ctx, "Recurring expense worker scheduled", "schedule", w.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (w *RecurringWorker) Stop() {
	<-w.cron.Stop().Done()
}
