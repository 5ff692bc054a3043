package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xunique/pkg/observability/xlog"
	"github.com/omeyang/xunique/pkg/observability/xmetrics"
	"github.com/omeyang/xunique/pkg/util/xunique"
)

// defaultSeed 未指定 --seed 时使用，保证多次运行可复现。
const defaultSeed = 0x5eed

// workload 描述一次负载。
type workload struct {
	Workers int
	Keys    int
	Ops     int
	Hold    int
	Leak    int
	Seed    uint64
}

func (w workload) validate() error {
	switch {
	case w.Workers <= 0:
		return usagef("--workers must be positive, got %d", w.Workers)
	case w.Keys <= 0:
		return usagef("--keys must be positive, got %d", w.Keys)
	case w.Ops < 0:
		return usagef("--ops must not be negative, got %d", w.Ops)
	case w.Hold < 0:
		return usagef("--hold must not be negative, got %d", w.Hold)
	case w.Leak < 0:
		return usagef("--leak must not be negative, got %d", w.Leak)
	}
	return nil
}

// payload 是负载中缓存的值。
type payload struct {
	key int
	seq int64
}

// stats 汇总一次负载的结果。
type stats struct {
	Ops           int64
	Constructions int64
	Hits          int64
	Misses        int64
	Evictions     int64
	Released      int64
	Orphaned      int64
	Entries       int
	Elapsed       time.Duration
}

func (s stats) String() string {
	hitRate := 0.0
	if total := s.Hits + s.Misses; total > 0 {
		hitRate = float64(s.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("ops=%d constructions=%d hits=%d misses=%d hit_rate=%.1f%% "+
		"evictions=%d released=%d entries_before_close=%d orphaned=%d elapsed=%s",
		s.Ops, s.Constructions, s.Hits, s.Misses, hitRate,
		s.Evictions, s.Released, s.Entries, s.Orphaned, s.Elapsed.Round(time.Millisecond))
}

// counter 是进程内的 xmetrics.Observer，只做计数。
type counter struct {
	xmetrics.NoopObserver
	constructions atomic.Int64
	hits          atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	orphaned      atomic.Int64
}

func (c *counter) Start(ctx context.Context, opts xmetrics.SpanOptions) (context.Context, xmetrics.Span) {
	c.constructions.Add(1)
	return c.NoopObserver.Start(ctx, opts)
}

func (c *counter) Record(_ context.Context, ev xmetrics.Event) {
	switch ev.Name {
	case xunique.EventHit:
		c.hits.Add(1)
	case xunique.EventMiss:
		c.misses.Add(1)
	case xunique.EventEvict:
		c.evictions.Add(1)
	case xunique.EventOrphan:
		for _, a := range ev.Attrs {
			if n, ok := a.Value.(int); ok && a.Key == "count" {
				c.orphaned.Add(int64(n))
			}
		}
	}
}

// runWorkload 创建 Factory，并发执行负载，关闭后返回统计。
func runWorkload(ctx context.Context, cfg xunique.Config, wl workload, logger xlog.Logger) (stats, error) {
	obs := &counter{}
	var released, seq atomic.Int64
	f, err := xunique.New(cfg,
		xunique.WithLogger[*payload](logger),
		xunique.WithObserver[*payload](obs),
		xunique.WithOnRelease(func(xunique.Key, *payload) { released.Add(1) }),
	)
	if err != nil {
		return stats{}, err
	}

	seed := wl.Seed
	if seed == 0 {
		seed = defaultSeed
	}

	logger.Info(ctx, "workload started",
		xlog.Factory(cfg.Name),
		xlog.Count(int64(wl.Workers*wl.Ops)))
	start := time.Now()

	var ops atomic.Int64
	leaked := make([][]*xunique.Ref[*payload], wl.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := range wl.Workers {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seed, uint64(w)))
			held := make([]*xunique.Ref[*payload], 0, wl.Hold)
			defer func() {
				// 最后 Leak 个引用留到 Factory 关闭之后。
				keep := min(wl.Leak, len(held))
				for _, r := range held[:len(held)-keep] {
					_ = r.Release()
				}
				leaked[w] = held[len(held)-keep:]
			}()

			for range wl.Ops {
				if err := gctx.Err(); err != nil {
					return err
				}
				k := rng.IntN(wl.Keys)
				ref, err := f.Get(gctx, xunique.KeyOf(k), func() (*payload, error) {
					return &payload{key: k, seq: seq.Add(1)}, nil
				})
				if err != nil {
					return fmt.Errorf("worker %d: %w", w, err)
				}
				if ref.Value().key != k {
					_ = ref.Release()
					return fmt.Errorf("worker %d: key %d resolved to value of key %d", w, k, ref.Value().key)
				}
				ops.Add(1)

				if wl.Hold == 0 && wl.Leak == 0 {
					_ = ref.Release()
					continue
				}
				held = append(held, ref)
				if len(held) > max(wl.Hold, wl.Leak) {
					_ = held[0].Release()
					held = held[1:]
				}
			}
			return nil
		})
	}
	runErr := g.Wait()

	entries := f.Len()
	if err := f.Close(); err != nil {
		return stats{}, err
	}
	for _, refs := range leaked {
		for _, r := range refs {
			_ = r.Release()
		}
	}
	if runErr != nil {
		return stats{}, runErr
	}

	return stats{
		Ops:           ops.Load(),
		Constructions: obs.constructions.Load(),
		Hits:          obs.hits.Load(),
		Misses:        obs.misses.Load(),
		Evictions:     obs.evictions.Load(),
		Released:      released.Load(),
		Orphaned:      obs.orphaned.Load(),
		Entries:       entries,
		Elapsed:       time.Since(start),
	}, nil
}
