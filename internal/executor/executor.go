package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/p3dr-dev/hydra/internal/graph"
	"github.com/p3dr-dev/hydra/internal/models"
	"github.com/p3dr-dev/hydra/pkg/utils"
)

const maxConcurrentPaths = 5

// PathExecutor runs whole multi-hop instructions: each hop within a path
// is sequential, since hop N+1's quantity depends on hop N's actual fill,
// but independent paths run concurrently across a bounded worker pool.
type PathExecutor struct {
	hops    *HopExecutor
	history *History
	logger  *utils.Logger
}

func NewPathExecutor(hops *HopExecutor, history *History) *PathExecutor {
	return &PathExecutor{hops: hops, history: history, logger: utils.L().WithComponent("executor")}
}

// SetFilters hands the hop executor the current cycle's LOT_SIZE metadata.
func (p *PathExecutor) SetFilters(filters map[string]models.Filters) {
	p.hops.SetFilters(filters)
}

// History exposes the trade-history store backing this executor, for
// callers that need to read aggregate stats (e.g. kelly sizing). Nil if
// this PathExecutor was built without persistence.
func (p *PathExecutor) History() *History {
	return p.history
}

// ExecutePath runs one instruction's hops in sequence, feeding each hop
// the asset amount actually received from the previous one rather than
// the path engine's prediction. The first hop failing aborts the whole
// path; later hops are not attempted with a zero balance.
func (p *PathExecutor) ExecutePath(ctx context.Context, instr models.TradeInstruction) models.PathExecutionResult {
	start := time.Now()
	amount := instr.InitialAmount
	result := models.PathExecutionResult{
		Path:               instr.Path,
		InitialAmount:      instr.InitialAmount,
		PredictedProfitPct: instr.PredictedPct,
	}

	var errs error
	for i := 0; i+1 < len(instr.Path); i++ {
		from, to := instr.Path[i], instr.Path[i+1]
		hop := p.hops.ExecuteHopWithRetry(ctx, from, to, amount)
		result.Hops = append(result.Hops, hop)
		result.TotalCommission += hop.CommissionInQuote

		if !hop.Success {
			errs = multierr.Append(errs, fmt.Errorf("hop %s->%s: %s", from, to, hop.Error))
			break
		}

		amount = hop.NextHopAmount
		if amount <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("hop %s->%s: zero output", from, to))
			break
		}
	}

	result.FinalAmount = amount
	result.ProfitLoss = amount - instr.InitialAmount
	result.Success = errs == nil && len(result.Hops) == len(instr.Path)-1
	result.WallTime = time.Since(start)

	if errs != nil {
		p.logger.Warn("path execution incomplete", utils.String("path", instr.Path.String()), utils.Err(errs))
	}

	if p.history != nil {
		if err := p.history.Record(ctx, result, instr.Regime); err != nil {
			p.logger.Error("failed to persist trade history", utils.Err(err))
		}
	}

	return result
}

// Dispatch runs min(len(instructions), maxConcurrentPaths) workers pulling
// from instructions, returning one PathExecutionResult per instruction in
// no particular order.
func (p *PathExecutor) Dispatch(ctx context.Context, instructions []models.TradeInstruction) []models.PathExecutionResult {
	if len(instructions) == 0 {
		return nil
	}

	workers := maxConcurrentPaths
	if len(instructions) < workers {
		workers = len(instructions)
	}

	jobs := make(chan models.TradeInstruction, len(instructions))
	for _, instr := range instructions {
		jobs <- instr
	}
	close(jobs)

	results := make([]models.PathExecutionResult, 0, len(instructions))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for instr := range jobs {
				res := p.ExecutePath(ctx, instr)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return results
}

// Graph exposes the graph used by the hop executor, for callers that
// need to pre-resolve a path before building a TradeInstruction.
func (p *PathExecutor) Graph() *graph.Graph {
	return p.hops.graph
}
