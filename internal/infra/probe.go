package infra

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Pinger is the subset of a client a Probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Probe tracks whether a dependency answers pings. A gocron job re-checks it on
// a fixed interval so request paths can read the result without blocking.
type Probe struct {
	name      string
	target    Pinger
	timeout   time.Duration
	logger    *slog.Logger
	healthy   atomic.Bool
	scheduler gocron.Scheduler
}

// NewProbe creates a probe that starts out unhealthy until the first Check.
func NewProbe(name string, target Pinger, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{name: name, target: target, timeout: time.Second, logger: logger}
}

// Healthy reports the result of the most recent check.
func (p *Probe) Healthy() bool {
	return p.healthy.Load()
}

// Check pings the target once and records the outcome. Transitions are logged.
func (p *Probe) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.target.Ping(ctx)
	was := p.healthy.Swap(err == nil)
	switch {
	case err != nil && was:
		p.logger.Warn("dependency unavailable", "dependency", p.name, "error", err)
	case err == nil && !was:
		p.logger.Info("dependency available", "dependency", p.name)
	}
	return err
}

// Start runs Check immediately and then every interval.
func (p *Probe) Start(interval time.Duration) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { _ = p.Check(context.Background()) }),
		gocron.WithName(p.name+"-probe"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule %s probe: %w", p.name, err)
	}
	scheduler.Start()
	p.scheduler = scheduler
	return nil
}

// Shutdown stops the periodic job.
func (p *Probe) Shutdown() error {
	if p.scheduler == nil {
		return nil
	}
	return p.scheduler.Shutdown()
}
