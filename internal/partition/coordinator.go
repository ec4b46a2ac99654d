package partition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stop reasons reported by a finished run. Budget exhaustion is the normal
// way a run ends, never an error.
const (
	StopGenerationLimit = "generation_limit"
	StopTimeLimit       = "time_limit"
	StopCancelled       = "cancelled"
)

// Progress is the per-cycle signal handed to the progress callback. How it
// is rendered or stored is the caller's concern.
type Progress struct {
	Cycle             int           `json:"cycle"`
	Generations       int           `json:"generations"`
	BestFitness       float64       `json:"best_fitness"`
	CompliantSections int           `json:"compliant_sections"`
	TotalSections     int           `json:"total_sections"`
	ActiveEras        int           `json:"active_eras"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Result is the best assignment found across all eras.
type Result struct {
	Assignment  map[string]string
	Evaluation  *Evaluation
	Fitness     float64
	Generations int
	Cycles      int
	Elapsed     time.Duration
	EraIndex    int
	FailedEras  int
	StopReason  string
}

// Coordinator drives the island-model search: one goroutine per era, a
// rendezvous at every cycle boundary where the top individuals migrate
// between eras, and cooperative termination on the generation or wall-clock
// budget.
type Coordinator struct {
	cfg    Config
	codec  *Codec
	eval   *Evaluator
	logger *zap.Logger
}

// NewCoordinator validates the configuration and binds it to the run's codec
// and evaluator. Configuration errors are fatal here, before any era starts.
func NewCoordinator(cfg Config, codec *Codec, eval *Evaluator, logger *zap.Logger) (*Coordinator, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, codec: codec, eval: eval, logger: logger}, nil
}

type cycleResult struct {
	era      *era
	migrants []*Individual
	err      error
}

// Run executes (generate -> migrate) cycles until the budget is exhausted or
// ctx is cancelled, then decodes the single best individual. Cancellation is
// cooperative: in-flight generations finish before the check, so the time
// limit may be overshot by up to one cycle's compute.
func (c *Coordinator) Run(ctx context.Context, onProgress func(Progress)) (*Result, error) {
	eras := make([]*era, c.cfg.Eras)
	for i := range eras {
		eras[i] = newEra(i, c.cfg, c.codec, c.eval)
	}
	return c.run(ctx, onProgress, eras)
}

func (c *Coordinator) run(ctx context.Context, onProgress func(Progress), eras []*era) (*Result, error) {
	start := time.Now()

	var (
		best       *Individual
		bestEra    int
		cycle      int
		failedEras int
		stopReason string
	)

	for {
		cycle++

		live := liveEras(eras)
		if len(live) == 0 {
			return nil, fmt.Errorf("all %d eras failed", c.cfg.Eras)
		}

		results := make([]cycleResult, len(live))
		var wg sync.WaitGroup
		for i, e := range live {
			wg.Add(1)
			go func(slot int, e *era) {
				defer wg.Done()
				migrants, err := e.runCycle(c.cfg.GenerationsPerEra, c.cfg.MigrantsPerEra)
				results[slot] = cycleResult{era: e, migrants: migrants, err: err}
			}(i, e)
		}
		wg.Wait() // migration rendezvous: no era advances past this point early

		totalGenerations := 0
		for _, e := range eras {
			totalGenerations += e.generations
		}

		for _, res := range results {
			if res.err != nil {
				failedEras++
				c.logger.Warn("era failed, continuing with degraded parallelism",
					zap.Int("era", res.era.index), zap.Error(res.err))
				continue
			}
			candidate := res.era.pop.Best()
			if best == nil || candidate.Fitness(c.eval) > best.Fitness(c.eval) {
				best = candidate.Clone()
				bestEra = res.era.index
			}
		}

		if best == nil {
			return nil, fmt.Errorf("all %d eras failed", c.cfg.Eras)
		}

		evaluation := best.Evaluation(c.eval)
		elapsed := time.Since(start)
		if onProgress != nil {
			onProgress(Progress{
				Cycle:             cycle,
				Generations:       totalGenerations,
				BestFitness:       evaluation.Score,
				CompliantSections: evaluation.CompliantSections,
				TotalSections:     evaluation.TotalSections,
				ActiveEras:        len(liveEras(eras)),
				Elapsed:           elapsed,
			})
		}
		c.logger.Info("era cycle finished",
			zap.Int("cycle", cycle),
			zap.Int("generations", totalGenerations),
			zap.Float64("best_fitness", evaluation.Score),
			zap.Int("compliant", evaluation.CompliantSections),
			zap.Int("sections", evaluation.TotalSections),
			zap.Duration("elapsed", elapsed))

		switch {
		case ctx.Err() != nil:
			stopReason = StopCancelled
		case c.cfg.TimeLimit > 0 && elapsed >= c.cfg.TimeLimit:
			stopReason = StopTimeLimit
		case c.cfg.MaxGenerations > 0 && totalGenerations >= c.cfg.MaxGenerations:
			stopReason = StopGenerationLimit
		}
		if stopReason != "" {
			assignment, err := c.codec.Decode(best.Genes())
			if err != nil {
				return nil, err
			}
			return &Result{
				Assignment:  assignment,
				Evaluation:  evaluation,
				Fitness:     evaluation.Score,
				Generations: totalGenerations,
				Cycles:      cycle,
				Elapsed:     time.Since(start),
				EraIndex:    bestEra,
				FailedEras:  failedEras,
				StopReason:  stopReason,
			}, nil
		}

		c.migrate(results)
	}
}

// migrate hands each surviving era the fittest foreign candidates, replacing
// its worst individuals. This is the only cross-era communication.
func (c *Coordinator) migrate(results []cycleResult) {
	for _, target := range results {
		if target.err != nil {
			continue
		}
		var foreign []*Individual
		for _, source := range results {
			if source.err != nil || source.era.index == target.era.index {
				continue
			}
			foreign = append(foreign, source.migrants...)
		}
		if len(foreign) == 0 {
			continue
		}
		incoming := bestOf(foreign, c.cfg.MigrantsPerEra, c.eval)
		target.era.pop.Inject(incoming)
	}
}

func bestOf(candidates []*Individual, n int, eval *Evaluator) []*Individual {
	picked := make([]*Individual, 0, n)
	taken := make(map[int]bool, n)
	for len(picked) < n && len(picked) < len(candidates) {
		bestIdx := -1
		for i, candidate := range candidates {
			if taken[i] {
				continue
			}
			if bestIdx < 0 || candidate.Fitness(eval) > candidates[bestIdx].Fitness(eval) {
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		taken[bestIdx] = true
		picked = append(picked, candidates[bestIdx])
	}
	return picked
}

func liveEras(eras []*era) []*era {
	live := make([]*era, 0, len(eras))
	for _, e := range eras {
		if !e.failed {
			live = append(live, e)
		}
	}
	return live
}
