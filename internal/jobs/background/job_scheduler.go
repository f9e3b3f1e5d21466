package background

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"scangate/internal/metrics"
	"scangate/internal/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	JobExpirySweep  = "subscription-expiry-sweep"
	JobMonthlyReset = "monthly-counter-reset"
	JobYearlyReset  = "yearly-counter-reset"

	resetConcurrency = 5
)

// CounterResetter is the part of the usage meter the resets need.
type CounterResetter interface {
	StaleCounterSubscriptions(ctx context.Context, period string, olderThan time.Time) ([]uuid.UUID, error)
	ResetCounters(ctx context.Context, subscriptionID uuid.UUID, period string) (int64, error)
}

// ExpirySweeper flips overdue subscriptions to expired.
type ExpirySweeper interface {
	ExpireDue(ctx context.Context) (int64, error)
}

// JobScheduler runs the period-boundary counter resets and the expiry sweep.
type JobScheduler struct {
	scheduler     gocron.Scheduler
	usage         CounterResetter
	subscriptions ExpirySweeper
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
	jobs          map[string]gocron.Job
	mu            sync.RWMutex
}

func NewJobScheduler(
	usage CounterResetter,
	subscriptions ExpirySweeper,
	m *metrics.Metrics,
	logger zerolog.Logger,
) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler:     scheduler,
		usage:         usage,
		subscriptions: subscriptions,
		metrics:       m,
		logger:        logger.With().Str("component", "scheduler").Logger(),
		now:           time.Now,
		jobs:          make(map[string]gocron.Job),
	}

	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	js.logger.Info().Int("jobs", len(js.jobs)).Msg("Starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.logger.Info().Msg("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// registerJobs schedules the resets at the start of each period. Both also run once
// at startup; a reset only touches counters whose window began before the current
// period, so catching up a missed boundary is harmless.
func (js *JobScheduler) registerJobs() error {
	definitions := []struct {
		name string
		def  gocron.JobDefinition
		task func(ctx context.Context) error
		opts []gocron.JobOption
	}{
		{
			name: JobExpirySweep,
			def:  gocron.DurationJob(time.Hour),
			task: js.SweepExpired,
		},
		{
			name: JobMonthlyReset,
			def:  gocron.CronJob("5 0 1 * *", false),
			task: func(ctx context.Context) error { return js.ResetCounters(ctx, models.PeriodMonth) },
			opts: []gocron.JobOption{gocron.WithStartAt(gocron.WithStartImmediately())},
		},
		{
			name: JobYearlyReset,
			def:  gocron.CronJob("10 0 1 1 *", false),
			task: func(ctx context.Context) error { return js.ResetCounters(ctx, models.PeriodYear) },
			opts: []gocron.JobOption{gocron.WithStartAt(gocron.WithStartImmediately())},
		},
	}

	for _, d := range definitions {
		opts := append([]gocron.JobOption{
			gocron.WithName(d.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		}, d.opts...)

		job, err := js.scheduler.NewJob(d.def, gocron.NewTask(js.run(d.name, d.task)), opts...)
		if err != nil {
			return fmt.Errorf("failed to create %s job: %w", d.name, err)
		}
		js.jobs[d.name] = job
	}

	js.logger.Debug().Int("jobs", len(js.jobs)).Msg("Registered background jobs")
	return nil
}

// run wraps a task with logging and the job-run metric.
func (js *JobScheduler) run(name string, task func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		start := time.Now()
		err := task(ctx)

		status := "success"
		if err != nil {
			status = "error"
			js.logger.Error().Err(err).Str("job", name).Msg("Background job failed")
		} else {
			js.logger.Info().Str("job", name).Dur("took", time.Since(start)).Msg("Background job finished")
		}
		js.metrics.JobRunsTotal.WithLabelValues(name, status).Inc()
	}
}

// SweepExpired flips every active subscription past its end date to expired.
func (js *JobScheduler) SweepExpired(ctx context.Context) error {
	n, err := js.subscriptions.ExpireDue(ctx)
	if err != nil {
		return err
	}
	js.metrics.ExpiredSweptTotal.Add(float64(n))
	if n > 0 {
		js.logger.Info().Int64("expired", n).Msg("Expired subscriptions past their end date")
	}
	return nil
}

// ResetCounters zeroes the period's counters for every subscription whose window
// began before the current period boundary.
func (js *JobScheduler) ResetCounters(ctx context.Context, period string) error {
	boundary := PeriodStart(js.now(), period)

	ids, err := js.usage.StaleCounterSubscriptions(ctx, period, boundary)
	if err != nil {
		return fmt.Errorf("failed to list stale %s counters: %w", period, err)
	}
	if len(ids) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resetConcurrency)

	var mu sync.Mutex
	var reset int64
	for _, id := range ids {
		id := id
		g.Go(func() error {
			n, err := js.usage.ResetCounters(gctx, id, period)
			if err != nil {
				return fmt.Errorf("subscription %s: %w", id, err)
			}
			mu.Lock()
			reset += n
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()

	js.metrics.CountersResetTotal.WithLabelValues(period).Add(float64(reset))
	js.logger.Info().
		Str("period", period).
		Int("subscriptions", len(ids)).
		Int64("counters", reset).
		Msg("Reset usage counters")
	return err
}

// RunNow triggers a registered job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

type JobStatus struct {
	Name    string    `json:"name"`
	ID      uuid.UUID `json:"id"`
	LastRun time.Time `json:"last_run"`
	NextRun time.Time `json:"next_run"`
}

// Status lists the registered jobs sorted by name.
func (js *JobScheduler) Status() []JobStatus {
	js.mu.RLock()
	defer js.mu.RUnlock()

	out := make([]JobStatus, 0, len(js.jobs))
	for name, job := range js.jobs {
		s := JobStatus{Name: name, ID: job.ID()}
		s.LastRun, _ = job.LastRun()
		s.NextRun, _ = job.NextRun()
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PeriodStart returns the UTC start of the month or year containing t.
func PeriodStart(t time.Time, period string) time.Time {
	t = t.UTC()
	if period == models.PeriodYear {
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
