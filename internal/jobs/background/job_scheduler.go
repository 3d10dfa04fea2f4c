package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"momoinvoice/internal/logger"
	"momoinvoice/internal/models"
	"momoinvoice/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

const reminderJobName = "reminders-run-due"

// ReminderRunner runs every reminder that is due.
type ReminderRunner interface {
	RunDue(ctx context.Context, opts services.RunOptions) (*models.ReminderRunResult, error)
}

// JobLocker is the lock store shared by every scheduler instance.
type JobLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// JobScheduler runs the periodic reminder sweep. With a JobLocker only one
// replica runs a given tick.
type JobScheduler struct {
	scheduler gocron.Scheduler
	reminders ReminderRunner
	logger    zerolog.Logger
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
}

// NewJobScheduler creates a scheduler that sweeps reminders every interval.
// locker may be nil for single-instance deployments.
func NewJobScheduler(reminders ReminderRunner, locker JobLocker, interval, lockTTL time.Duration) (*JobScheduler, error) {
	log := logger.WithComponent("scheduler")

	opts := []gocron.SchedulerOption{
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(gocronLogger{log: log}),
	}
	if locker != nil {
		opts = append(opts, gocron.WithDistributedLocker(&distributedLocker{store: locker, ttl: lockTTL}))
	}

	scheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler: scheduler,
		reminders: reminders,
		logger:    log,
		jobs:      make(map[string]gocron.Job),
	}

	job, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(js.runDueReminders, context.Background()),
		gocron.WithName(reminderJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder job: %w", err)
	}
	js.jobs[reminderJobName] = job

	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.logger.Info().Int("jobs", len(js.jobs)).Msg("starting background job scheduler")
	js.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler
func (js *JobScheduler) Stop() error {
	js.logger.Info().Msg("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// RunNow triggers the named job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %q is not registered", name)
	}
	return job.RunNow()
}

// runDueReminders is one tick of the reminder sweep across all businesses.
func (js *JobScheduler) runDueReminders(ctx context.Context) error {
	started := time.Now()

	result, err := js.reminders.RunDue(ctx, services.RunOptions{})
	if err != nil {
		js.logger.Error().Err(err).Msg("reminder sweep failed")
		return err
	}

	js.logger.Info().
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Dur("took", time.Since(started)).
		Msg("reminder sweep completed")
	return nil
}

var errJobLocked = errors.New("job is locked by another instance")

// distributedLocker adapts the cache lock to gocron's Locker.
type distributedLocker struct {
	store JobLocker
	ttl   time.Duration
}

func (l *distributedLocker) Lock(ctx context.Context, key string) (gocron.Lock, error) {
	token, ok, err := l.store.AcquireLock(ctx, "job:"+key, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errJobLocked
	}
	return &heldLock{store: l.store, key: "job:" + key, token: token}, nil
}

type heldLock struct {
	store JobLocker
	key   string
	token string
}

func (h *heldLock) Unlock(ctx context.Context) error {
	return h.store.ReleaseLock(ctx, h.key, h.token)
}

// gocronLogger routes scheduler logs through zerolog.
type gocronLogger struct {
	log zerolog.Logger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.log.Debug().Fields(args).Msg(msg) }
func (g gocronLogger) Error(msg string, args ...any) { g.log.Error().Fields(args).Msg(msg) }
func (g gocronLogger) Info(msg string, args ...any)  { g.log.Info().Fields(args).Msg(msg) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.log.Warn().Fields(args).Msg(msg) }
