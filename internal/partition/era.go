package partition

import (
	"fmt"
	"math/rand"
)

// era is one independently evolving population with its own random stream.
// Eras share nothing mutable; the coordinator touches an era only between
// cycles, at the migration rendezvous.
type era struct {
	index       int
	pop         *Population
	generations int
	failed      bool
}

func newEra(index int, cfg Config, codec *Codec, eval *Evaluator) *era {
	rng := rand.New(rand.NewSource(cfg.Seed + int64(index)))
	return &era{
		index: index,
		pop:   NewPopulation(cfg, codec, eval, rng),
	}
}

// runCycle executes n strictly sequential generations and returns clones of
// the era's top individuals as migration candidates. A panic inside the
// cycle is converted into an error so one broken era degrades parallelism
// instead of taking the run down.
func (e *era) runCycle(n, migrants int) (top []*Individual, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.failed = true
			err = fmt.Errorf("era %d panicked: %v", e.index, r)
		}
	}()

	for i := 0; i < n; i++ {
		e.pop.Evolve()
		e.generations++
	}
	return e.pop.Top(migrants), nil
}
