package notifier

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marcellovf/teste-lista-filmes/internal/jsonlog"
)

// DefaultSchedule runs the job at minute 0 every 12 hours.
const DefaultSchedule = "0 */12 * * *"

// Scheduler owns the recurring timer of a Job. The timer is registered at
// most once per Scheduler; there is no way to unregister it.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	spec     string
	job      *Job
	logger   *jsonlog.Logger
	started  atomic.Bool

	// ctx is handed to every tick and cancelled when Stop gives up waiting.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler parses spec as a standard 5-field cron expression. Ticks
// that would overlap a run still in progress are skipped.
func NewScheduler(spec string, job *Job, logger *jsonlog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid notifier schedule %q: %w", spec, err)
	}

	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		schedule: schedule,
		spec:     spec,
		job:      job,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// EnsureStarted registers the recurring job and starts the timer on the
// first call and reports true. Later calls do nothing and report false.
// It is safe for concurrent use.
func (s *Scheduler) EnsureStarted() bool {
	if !s.started.CompareAndSwap(false, true) {
		return false
	}

	s.cron.Schedule(s.schedule, cron.FuncJob(s.tick))
	s.cron.Start()

	s.logger.PrintInfo("release notifier started", map[string]string{
		"schedule": s.spec,
	})

	return true
}

// Started reports whether EnsureStarted has armed the timer.
func (s *Scheduler) Started() bool {
	return s.started.Load()
}

// NextRun returns the time of the next tick, or false if the timer is not armed.
func (s *Scheduler) NextRun() (time.Time, bool) {
	if !s.Started() {
		return time.Time{}, false
	}

	return s.schedule.Next(time.Now()), true
}

// Stop halts the timer and waits for a running tick to finish. When ctx
// expires first the tick is cancelled and ctx's error returned. The
// Scheduler stays marked as started.
func (s *Scheduler) Stop(ctx context.Context) error {
	if !s.Started() {
		return nil
	}

	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

func (s *Scheduler) tick() {
	s.logger.PrintInfo("running release notifier", nil)
	s.job.Run(s.ctx)
}

// cronLogger adapts jsonlog.Logger to cron.Logger. The library's routine
// info messages (wake, run, schedule) are dropped; skipped ticks are kept.
type cronLogger struct {
	logger *jsonlog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	if msg != "skip" {
		return
	}
	l.logger.PrintWarn("release notifier tick skipped, previous run still in progress", toProperties(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	props := toProperties(keysAndValues)
	if props == nil {
		props = map[string]string{}
	}
	props["cron"] = msg
	l.logger.PrintError(err, props)
}

func toProperties(keysAndValues []any) map[string]string {
	if len(keysAndValues) == 0 {
		return nil
	}

	props := make(map[string]string, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		props[fmt.Sprint(keysAndValues[i])] = fmt.Sprint(keysAndValues[i+1])
	}
	return props
}
