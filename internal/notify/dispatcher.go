package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	BatchSize   int
	Concurrency int
	Timeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// Dispatcher runs fan-out after a transition has committed. Failures are
// logged and counted, never returned to the request that caused them.
type Dispatcher struct {
	resolver Resolver
	notifier Notifier
	opts     Options
	metrics  *telemetry.Metrics
	log      *zap.Logger

	wg sync.WaitGroup
}

func NewDispatcher(resolver Resolver, notifier Notifier, opts Options, metrics *telemetry.Metrics, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		notifier: notifier,
		opts:     opts.withDefaults(),
		metrics:  metrics,
		log:      log,
	}
}

// Dispatch delivers the notices of t in the background.
func (d *Dispatcher) Dispatch(t Transition) {
	notices := Plan(t)
	if len(notices) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
		defer cancel()
		if err := d.deliver(ctx, t, notices); err != nil {
			d.log.Warn("notification fan-out incomplete",
				zap.String("entity_type", string(t.Entity.Type)),
				zap.String("entity_id", t.Entity.ID.String()),
				zap.String("to_status", t.To),
				zap.Error(err),
			)
		}
	}()
}

// Deliver runs fan-out for t synchronously and reports what failed.
func (d *Dispatcher) Deliver(ctx context.Context, t Transition) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()
	return d.deliver(ctx, t, Plan(t))
}

// Wait blocks until every background dispatch has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, t Transition, notices []Notice) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)

	for _, n := range notices {
		msg := Message{Text: n.Message, Link: n.Link, Entity: n.Entity}
		err := d.resolver.Resolve(ctx, n.Audience, d.opts.BatchSize, func(ids []uuid.UUID) error {
			batch := withoutActor(ids, t.Actor.ID)
			if len(batch) == 0 {
				return nil
			}
			g.Go(func() error {
				if err := d.notifier.Notify(ctx, batch, msg); err != nil {
					d.metrics.RecordNotifications("failed", len(batch))
					d.log.Warn("notification batch failed",
						zap.String("entity_id", t.Entity.ID.String()),
						zap.Int("recipients", len(batch)),
						zap.Error(err),
					)
					fail(fmt.Errorf("notify %d recipients: %w", len(batch), err))
					return nil
				}
				d.metrics.RecordNotifications("sent", len(batch))
				return nil
			})
			return ctx.Err()
		})
		if err != nil {
			fail(fmt.Errorf("resolve audience: %w", err))
		}
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

// withoutActor drops the user who triggered the transition. The input slice
// belongs to the resolver so a copy is always returned.
func withoutActor(ids []uuid.UUID, actor uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != actor {
			out = append(out, id)
		}
	}
	return out
}
