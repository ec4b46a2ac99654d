package partition

import (
	"math/rand"
	"sort"
)

// Population is one era's fixed-size set of individuals. It is kept sorted
// by descending fitness (stable, so equal scores keep their insertion order
// and runs stay reproducible for a fixed seed). The size never changes
// across generations or migrations.
type Population struct {
	cfg         Config
	codec       *Codec
	eval        *Evaluator
	rng         *rand.Rand
	individuals []*Individual
}

// NewPopulation seeds a population with uniformly random chromosomes.
func NewPopulation(cfg Config, codec *Codec, eval *Evaluator, rng *rand.Rand) *Population {
	individuals := make([]*Individual, cfg.PopulationSize)
	for i := range individuals {
		individuals[i] = NewIndividual(codec.Random(rng))
	}
	p := &Population{cfg: cfg, codec: codec, eval: eval, rng: rng, individuals: individuals}
	p.sortByFitness()
	return p
}

// Size reports the constant population size.
func (p *Population) Size() int {
	return len(p.individuals)
}

// Best returns the fittest individual of the current generation.
func (p *Population) Best() *Individual {
	return p.individuals[0]
}

// Top clones the n fittest individuals for migration.
func (p *Population) Top(n int) []*Individual {
	if n > len(p.individuals) {
		n = len(p.individuals)
	}
	top := make([]*Individual, n)
	for i := 0; i < n; i++ {
		top[i] = p.individuals[i].Clone()
	}
	return top
}

// Evolve advances the population one generation: the elite fraction carries
// over unchanged, a small new-blood fraction re-enters at random, and the
// remainder is bred by tournament selection, single-point crossover and
// per-gene mutation. Elitism makes the best fitness monotonically
// non-decreasing within an era.
func (p *Population) Evolve() {
	size := len(p.individuals)
	eliteCount := int(p.cfg.EliteFraction * float64(size))
	if eliteCount < 1 {
		eliteCount = 1
	}
	newBloodCount := int(p.cfg.NewBloodFraction * float64(size))
	if eliteCount+newBloodCount > size {
		newBloodCount = size - eliteCount
	}

	next := make([]*Individual, 0, size)
	next = append(next, p.individuals[:eliteCount]...)

	for i := 0; i < newBloodCount; i++ {
		next = append(next, NewIndividual(p.codec.Random(p.rng)))
	}

	for len(next) < size {
		parent1 := p.tournament()
		parent2 := p.tournament()
		child1, child2 := p.crossover(parent1, parent2)
		p.mutate(child1)
		p.mutate(child2)
		next = append(next, child1)
		if len(next) < size {
			next = append(next, child2)
		}
	}

	p.individuals = next
	p.sortByFitness()
}

// Inject replaces the worst individuals with migrants from other eras. The
// population size is identical before and after.
func (p *Population) Inject(migrants []*Individual) {
	if len(migrants) == 0 {
		return
	}
	if len(migrants) > len(p.individuals) {
		migrants = migrants[:len(p.individuals)]
	}
	for i, migrant := range migrants {
		p.individuals[len(p.individuals)-1-i] = migrant.Clone()
	}
	p.sortByFitness()
}

// tournament picks the fittest of TournamentSize random entrants. The
// population is sorted, so the winner is simply the smallest index drawn;
// ties cannot arise, which keeps selection reproducible.
func (p *Population) tournament() *Individual {
	winner := p.rng.Intn(len(p.individuals))
	for i := 1; i < p.cfg.TournamentSize; i++ {
		entrant := p.rng.Intn(len(p.individuals))
		if entrant < winner {
			winner = entrant
		}
	}
	return p.individuals[winner]
}

// crossover swaps the gene tails of two parents at a random cut point. It
// operates purely on unit-indexed labels, so required subgroups can never be
// split.
func (p *Population) crossover(parent1, parent2 *Individual) (*Individual, *Individual) {
	length := p.codec.GenomeLength()
	child1 := parent1.Clone()
	child2 := parent2.Clone()
	if length < 2 {
		return child1, child2
	}

	cut := 1 + p.rng.Intn(length-1)
	genes1 := child1.Genes()
	genes2 := child2.Genes()
	for i := cut; i < length; i++ {
		genes1[i], genes2[i] = genes2[i], genes1[i]
	}
	child1.Invalidate()
	child2.Invalidate()
	return child1, child2
}

// mutate reassigns each gene with probability MutationRate to a different
// label drawn uniformly from the remaining ones.
func (p *Population) mutate(in *Individual) {
	for i, gene := range in.Genes() {
		if p.rng.Float64() >= p.cfg.MutationRate {
			continue
		}
		offset := 1 + p.rng.Intn(p.cfg.Partitions-1)
		in.SetGene(i, uint8((int(gene)+offset)%p.cfg.Partitions))
	}
}

func (p *Population) sortByFitness() {
	sort.SliceStable(p.individuals, func(i, j int) bool {
		return p.individuals[i].Fitness(p.eval) > p.individuals[j].Fitness(p.eval)
	})
}
