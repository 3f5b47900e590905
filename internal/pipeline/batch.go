package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/enviroscan/logsheet/internal/entity"
)

// ProcessBatch processes each request independently under bounded
// concurrency. The returned slice corresponds 1:1, slot for slot, with the
// input order; one request's failure never disturbs its neighbors.
func (o *Orchestrator) ProcessBatch(ctx context.Context, reqs []Request) []entity.IntegrationResult {
	results := make([]entity.IntegrationResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.batchCfg.Concurrency)
	for i, req := range reqs {
		i, req := i, req
		eg.Go(func() error {
			results[i] = o.Process(gctx, req)
			return nil // failures are values in the slot, never group errors
		})
	}
	// workers only return nil; Wait just joins them
	_ = eg.Wait()

	o.logger.Info("pipeline.batch.done", "requests", len(reqs))
	return results
}
