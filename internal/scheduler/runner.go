package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/apihealth/internal/domain"
	"github.com/hamed0406/apihealth/internal/metrics"
	"github.com/hamed0406/apihealth/internal/notify"
	"github.com/hamed0406/apihealth/internal/probe"
	"github.com/hamed0406/apihealth/internal/repo"
)

type RunnerConfig struct {
	// Environment is appended to alert bodies when set.
	Environment string
	// Concurrency > 1 probes that many endpoints at once. Each endpoint only touches its own key.
	Concurrency int
}

// Runner performs one monitoring pass per RunOnce call: probe, compare with the stored
// record, notify on change, store the new record.
type Runner struct {
	Logger    *zap.Logger
	Endpoints repo.EndpointSource
	States    repo.StateStore
	Prober    probe.Prober
	Publisher *notify.Publisher
	Metrics   *metrics.Metrics
	cfg       RunnerConfig

	now func() time.Time
}

func NewRunner(
	logger *zap.Logger,
	endpoints repo.EndpointSource,
	states repo.StateStore,
	prober probe.Prober,
	publisher *notify.Publisher,
	m *metrics.Metrics,
	cfg RunnerConfig,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Runner{
		Logger:    logger,
		Endpoints: endpoints,
		States:    states,
		Prober:    prober,
		Publisher: publisher,
		Metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RunOnce returns an error only when the endpoint configuration can't be loaded or the pass
// was interrupted. Per-endpoint store and notify failures end up in the Summary.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	t := &tally{s: Summary{RunID: uuid.NewString(), StartedAt: r.now().UTC()}}
	log := r.Logger.With(zap.String("run_id", t.s.RunID))
	log.Info("run_started")

	specs, err := r.Endpoints.ListEndpoints(ctx)
	if err == nil {
		specs, err = r.prepare(log, t, specs)
	}
	if err != nil {
		t.s.FinishedAt = r.now().UTC()
		r.Metrics.ObserveRun("error", t.s.Duration())
		log.Error("run_config_error", zap.Error(err))
		return t.s, fmt.Errorf("load endpoint configuration: %w", err)
	}
	t.s.Endpoints = len(specs)

	if r.cfg.Concurrency == 1 {
		for _, spec := range specs {
			if ctx.Err() != nil {
				break
			}
			r.checkEndpoint(ctx, log, t, spec)
		}
	} else {
		sem := make(chan struct{}, r.cfg.Concurrency)
		var wg sync.WaitGroup
	dispatch:
		for _, spec := range specs {
			select {
			case <-ctx.Done():
				break dispatch
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(spec domain.EndpointSpec) {
				defer func() { <-sem }()
				defer wg.Done()
				r.checkEndpoint(ctx, log, t, spec)
			}(spec)
		}
		wg.Wait()
	}

	t.s.FinishedAt = r.now().UTC()
	sum := t.s

	result := "ok"
	if sum.Errors != nil {
		result = "partial"
	}
	if ctx.Err() != nil {
		result = "interrupted"
	}
	r.Metrics.ObserveRun(result, sum.Duration())
	log.Info("run_finished",
		zap.String("result", result),
		zap.Int("endpoints", sum.Endpoints),
		zap.Int("up", sum.Up),
		zap.Int("down", sum.Down),
		zap.Int("changed", sum.Changed),
		zap.Int("notified", sum.Notified),
		zap.Int("notify_failures", sum.NotifyFailures),
		zap.Int("store_failures", sum.StoreFailures),
		zap.Int("invalid", sum.Invalid),
		zap.Duration("duration", sum.Duration()),
	)
	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("run interrupted: %w", err)
	}
	return sum, nil
}

// prepare normalizes the snapshot and drops entries that can't be probed.
func (r *Runner) prepare(log *zap.Logger, t *tally, specs []domain.EndpointSpec) ([]domain.EndpointSpec, error) {
	for i := range specs {
		specs[i].ApplyDefaults()
	}
	valid, invalid, err := domain.ValidateSnapshot(specs)
	if err != nil {
		return nil, err
	}
	for _, e := range invalid {
		log.Warn("endpoint_invalid", zap.Error(e))
		t.fail(e, func(s *Summary) { s.Invalid++ })
	}
	return valid, nil
}

func (r *Runner) checkEndpoint(ctx context.Context, log *zap.Logger, t *tally, spec domain.EndpointSpec) {
	log = log.With(zap.String("endpoint_id", spec.ID))

	out := r.Prober.Probe(ctx, spec)
	if ctx.Err() != nil {
		// outcome is an artifact of the cancellation, not of the endpoint
		log.Warn("endpoint_skipped_cancelled")
		return
	}
	r.Metrics.SetEndpointUp(spec.ID, out.State == domain.StateUp)
	if out.LatencyMillis.Valid {
		r.Metrics.ProbeLatency(spec.ID, out.LatencyMillis.Int64)
	}
	t.update(func(s *Summary) {
		if out.State == domain.StateUp {
			s.Up++
		} else {
			s.Down++
		}
	})

	previous, err := r.States.Get(ctx, spec.ID)
	if err != nil {
		r.Metrics.StoreError("get")
		log.Warn("endpoint_store_get_error", zap.Error(err))
		t.fail(fmt.Errorf("%s: get state: %w", spec.ID, err), func(s *Summary) { s.StoreFailures++ })
		return
	}

	checkedAt := r.now().UTC()
	changed := stateChanged(previous, out.State)
	if changed {
		t.update(func(s *Summary) { s.Changed++ })
		r.Metrics.Transition(spec.ID, string(out.State))
		r.notify(ctx, log, t, buildAlert(spec, previous, out, checkedAt, r.cfg.Environment))
	}

	rec := nextRecord(spec.ID, previous, out, checkedAt)
	if err := r.States.Put(ctx, rec); err != nil {
		r.Metrics.StoreError("put")
		log.Warn("endpoint_store_put_error", zap.Error(err))
		t.fail(fmt.Errorf("%s: put state: %w", spec.ID, err), func(s *Summary) { s.StoreFailures++ })
		return
	}

	log.Debug("endpoint_checked",
		zap.String("url", spec.URL),
		zap.String("state", string(out.State)),
		zap.Bool("changed", changed),
		zap.Int64("status", out.StatusCode.Int64),
		zap.Int64("latency_ms", out.LatencyMillis.Int64),
		zap.String("error", out.Error.String),
	)
}

// notify is best-effort: the result is logged and counted, never returned.
func (r *Runner) notify(ctx context.Context, log *zap.Logger, t *tally, msg notify.Message) {
	res := r.Publisher.Publish(ctx, msg)
	switch {
	case res.Err != nil:
		r.Metrics.Notification("failed")
		log.Warn("notify_failed", zap.String("subject", msg.Subject), zap.Error(res.Err))
		t.update(func(s *Summary) { s.NotifyFailures++ })
	case res.Skipped:
		r.Metrics.Notification("skipped")
		log.Info("notify_skipped", zap.String("subject", msg.Subject))
	default:
		r.Metrics.Notification("sent")
		log.Info("notify_sent", zap.String("subject", msg.Subject))
		t.update(func(s *Summary) { s.Notified++ })
	}
}
