package partition

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populationFixture(t *testing.T, seed int64) (*Population, *Evaluator) {
	t.Helper()

	ids := make([]string, 24)
	for i := range ids {
		ids[i] = fmt.Sprintf("s%d", i+1)
	}
	units, err := ReduceUnits(ids, []Pair{{A: "s1", B: "s2"}, {A: "s3", B: "s4"}})
	require.NoError(t, err)
	codec, err := NewCodec(units, 4)
	require.NoError(t, err)

	cfg := Config{
		Partitions:        4,
		MutationRate:      0.05,
		PopulationSize:    40,
		Eras:              1,
		GenerationsPerEra: 10,
		MaxGenerations:    1000,
		HalfClassMax:      15,
		QuarterClassMax:   9,
		Seed:              seed,
	}.Normalized()

	eval, err := NewEvaluator(codec, cfg, []Section{
		{Key: SectionKey{Room: "101", Period: "1"}, Courses: []string{"ALG1"}, Roster: ids[:16]},
		{Key: SectionKey{Room: "102", Period: "2"}, Courses: []string{"GEO"}, Roster: ids[8:]},
	}, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(seed))
	return NewPopulation(cfg, codec, eval, rng), eval
}

func TestPopulationStaysSortedByFitness(t *testing.T) {
	pop, eval := populationFixture(t, 11)
	for i := 1; i < pop.Size(); i++ {
		assert.GreaterOrEqual(t,
			pop.individuals[i-1].Fitness(eval),
			pop.individuals[i].Fitness(eval))
	}
}

func TestPopulationBestNeverRegresses(t *testing.T) {
	pop, eval := populationFixture(t, 42)

	best := pop.Best().Fitness(eval)
	for g := 0; g < 30; g++ {
		pop.Evolve()
		current := pop.Best().Fitness(eval)
		assert.GreaterOrEqual(t, current, best, "generation %d", g)
		best = current
	}
}

func TestPopulationSizeConstantAcrossGenerations(t *testing.T) {
	pop, _ := populationFixture(t, 7)
	size := pop.Size()
	for g := 0; g < 10; g++ {
		pop.Evolve()
		assert.Equal(t, size, pop.Size())
	}
}

func TestPopulationInjectKeepsSizeAndAdoptsStrongMigrant(t *testing.T) {
	pop, eval := populationFixture(t, 3)
	donor, _ := populationFixture(t, 99)
	for g := 0; g < 20; g++ {
		donor.Evolve()
	}

	migrant := donor.Best().Clone()
	size := pop.Size()
	pop.Inject([]*Individual{migrant})

	assert.Equal(t, size, pop.Size())
	if migrant.Fitness(eval) > pop.individuals[1].Fitness(eval) {
		assert.Equal(t, migrant.Fitness(eval), pop.Best().Fitness(eval))
	}
}

func TestPopulationInjectEmptyIsNoOp(t *testing.T) {
	pop, _ := populationFixture(t, 5)
	before := pop.Best().Genes()
	pop.Inject(nil)
	assert.Equal(t, before, pop.Best().Genes())
}

func TestEvolutionNeverSplitsRequiredSubgroups(t *testing.T) {
	pop, _ := populationFixture(t, 13)
	codec := pop.codec

	for g := 0; g < 20; g++ {
		pop.Evolve()
	}
	for _, in := range pop.individuals {
		assignment, err := codec.Decode(in.Genes())
		require.NoError(t, err)
		assert.Equal(t, assignment["s1"], assignment["s2"])
		assert.Equal(t, assignment["s3"], assignment["s4"])
	}
}

func TestEvolutionIsReproducibleForFixedSeed(t *testing.T) {
	popA, evalA := populationFixture(t, 21)
	popB, evalB := populationFixture(t, 21)

	for g := 0; g < 15; g++ {
		popA.Evolve()
		popB.Evolve()
	}
	assert.Equal(t, popA.Best().Genes(), popB.Best().Genes())
	assert.Equal(t, popA.Best().Fitness(evalA), popB.Best().Fitness(evalB))
}

func TestCrossoverSwapsTails(t *testing.T) {
	pop, _ := populationFixture(t, 17)
	length := pop.codec.GenomeLength()

	parent1 := NewIndividual(make([]uint8, length))
	ones := make([]uint8, length)
	for i := range ones {
		ones[i] = 1
	}
	parent2 := NewIndividual(ones)

	child1, child2 := pop.crossover(parent1, parent2)
	for i := 0; i < length; i++ {
		assert.Equal(t, uint8(1), child1.Genes()[i]+child2.Genes()[i],
			"each position holds one gene from each parent")
	}
	assert.Equal(t, uint8(0), child1.Genes()[0], "cut point is never zero")
}

func TestMutateOnlyProducesValidGenes(t *testing.T) {
	pop, _ := populationFixture(t, 29)
	pop.cfg.MutationRate = 1.0

	in := NewIndividual(make([]uint8, pop.codec.GenomeLength()))
	pop.mutate(in)
	for _, gene := range in.Genes() {
		assert.NotEqual(t, uint8(0), gene, "mutation must pick a different label")
		assert.Less(t, int(gene), 4)
	}
}
