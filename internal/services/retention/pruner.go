// Package retention deletes old runs from the audit log in the background.
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"news-agent/internal/metrics"
)

// RunPruner is implemented by repo.RunRepository.
type RunPruner interface {
	PruneRuns(ctx context.Context, cutoff time.Time) (int64, error)
}

type Pruner struct {
	repo      RunPruner
	retention time.Duration
	now       func() time.Time

	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPruner(repo RunPruner, retention time.Duration) *Pruner {
	return &Pruner{
		repo:      repo,
		retention: retention,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start prunes once immediately and then every interval until Stop is called
// or ctx is done. A non-positive retention or interval disables the worker.
func (p *Pruner) Start(ctx context.Context, interval time.Duration) {
	if p.retention <= 0 || interval <= 0 {
		log.Info().Msg("Run retention disabled")
		return
	}

	p.ticker = time.NewTicker(interval)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.PruneOnce(ctx)
		for {
			select {
			case <-p.ticker.C:
				p.PruneOnce(ctx)
			case <-p.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info().Dur("interval", interval).Dur("retention", p.retention).Msg("Run pruner started")
}

// Stop halts the worker and waits for an in-flight prune to finish.
func (p *Pruner) Stop() {
	p.stopOnce.Do(func() {
		if p.ticker != nil {
			p.ticker.Stop()
		}
		close(p.done)
	})
	p.wg.Wait()
}

// PruneOnce deletes runs older than the retention window.
func (p *Pruner) PruneOnce(ctx context.Context) int64 {
	start := time.Now()
	cutoff := p.now().Add(-p.retention)

	n, err := p.repo.PruneRuns(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("Failed to prune runs")
		return 0
	}

	metrics.RunsPrunedTotal.Add(float64(n))
	log.Debug().
		Int64("deleted", n).
		Time("cutoff", cutoff).
		Dur("duration", time.Since(start)).
		Msg("Pruned audit log")
	return n
}
