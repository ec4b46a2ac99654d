package partition

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func coordinatorFixture(t *testing.T, cfg Config) *Coordinator {
	t.Helper()

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("s%d", i+1)
	}
	units, err := ReduceUnits(ids, []Pair{{A: "s1", B: "s2"}})
	require.NoError(t, err)
	codec, err := NewCodec(units, cfg.Partitions)
	require.NoError(t, err)

	eval, err := NewEvaluator(codec, cfg.Normalized(), []Section{
		{Key: SectionKey{Room: "101", Period: "1"}, Courses: []string{"ALG1"}, Roster: ids[:12]},
		{Key: SectionKey{Room: "102", Period: "2"}, Courses: []string{"GEO"}, Roster: ids[8:]},
	}, []Pair{{A: "s5", B: "s6"}})
	require.NoError(t, err)

	coordinator, err := NewCoordinator(cfg, codec, eval, zap.NewNop())
	require.NoError(t, err)
	return coordinator
}

func smallRunConfig(seed int64) Config {
	return Config{
		Partitions:        2,
		MutationRate:      0.05,
		PopulationSize:    30,
		Eras:              3,
		GenerationsPerEra: 5,
		MaxGenerations:    90,
		TimeLimit:         time.Minute,
		HalfClassMax:      15,
		Seed:              seed,
	}
}

func TestCoordinatorStopsOnGenerationBudget(t *testing.T) {
	coordinator := coordinatorFixture(t, smallRunConfig(1))

	var progress []Progress
	result, err := coordinator.Run(context.Background(), func(p Progress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	assert.Equal(t, StopGenerationLimit, result.StopReason)
	assert.GreaterOrEqual(t, result.Generations, 90)
	assert.Equal(t, 0, result.FailedEras)
	assert.Len(t, result.Assignment, 20)

	require.NotEmpty(t, progress)
	for i, p := range progress {
		assert.Equal(t, i+1, p.Cycle)
		assert.Equal(t, 3, p.ActiveEras)
		assert.Equal(t, 2, p.TotalSections)
	}
}

func TestCoordinatorFindsCompliantAssignmentOnSmallRoster(t *testing.T) {
	cfg := smallRunConfig(2)
	cfg.MaxGenerations = 600

	coordinator := coordinatorFixture(t, cfg)
	result, err := coordinator.Run(context.Background(), nil)
	require.NoError(t, err)

	// both sections hold at most 12 students, so any split is within the
	// half-class capacity and the run should report full compliance
	assert.Equal(t, 2, result.Evaluation.CompliantSections)
	assert.Greater(t, result.Fitness, 0.0)
	assert.Equal(t, result.Assignment["s1"], result.Assignment["s2"],
		"required subgroup shares a letter")
}

func TestCoordinatorTwoPairedStudents(t *testing.T) {
	units, err := ReduceUnits([]string{"s1", "s2"}, []Pair{{A: "s1", B: "s2"}})
	require.NoError(t, err)
	codec, err := NewCodec(units, 2)
	require.NoError(t, err)

	cfg := smallRunConfig(7)
	cfg.MaxGenerations = 30
	eval, err := NewEvaluator(codec, cfg.Normalized(), []Section{
		{Key: SectionKey{Room: "101", Period: "1"}, Courses: []string{"ALG1"}, Roster: []string{"s1", "s2"}},
	}, nil)
	require.NoError(t, err)

	coordinator, err := NewCoordinator(cfg, codec, eval, zap.NewNop())
	require.NoError(t, err)
	result, err := coordinator.Run(context.Background(), nil)
	require.NoError(t, err)

	// a single paired unit can only land whole on one side, which is always
	// within capacity
	assert.Equal(t, 1, result.Evaluation.CompliantSections)
	assert.Equal(t, result.Assignment["s1"], result.Assignment["s2"])
	assert.InDelta(t, 0.5, result.Fitness, 1e-12)
}

func TestCoordinatorContinuesWhenOneEraFails(t *testing.T) {
	coordinator := coordinatorFixture(t, smallRunConfig(9))

	eras := make([]*era, coordinator.cfg.Eras)
	for i := range eras {
		eras[i] = newEra(i, coordinator.cfg, coordinator.codec, coordinator.eval)
	}
	// cripple one era with chromosomes shorter than the genome so its first
	// crossover panics mid-cycle
	eras[0].pop.individuals = []*Individual{
		NewIndividual([]uint8{0}),
		NewIndividual([]uint8{1}),
	}

	var progress []Progress
	result, err := coordinator.run(context.Background(), func(p Progress) {
		progress = append(progress, p)
	}, eras)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedEras)
	assert.Equal(t, StopGenerationLimit, result.StopReason)
	assert.Len(t, result.Assignment, 20)
	assert.NotEqual(t, 0, result.EraIndex, "best cannot come from the failed era")

	require.NotEmpty(t, progress)
	assert.Equal(t, 2, progress[len(progress)-1].ActiveEras)
}

func TestCoordinatorIsReproducibleForFixedSeed(t *testing.T) {
	first, err := coordinatorFixture(t, smallRunConfig(33)).Run(context.Background(), nil)
	require.NoError(t, err)
	second, err := coordinatorFixture(t, smallRunConfig(33)).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, first.Fitness, second.Fitness)
	assert.Equal(t, first.Assignment, second.Assignment)
	assert.Equal(t, first.Generations, second.Generations)
	assert.Equal(t, first.Cycles, second.Cycles)
	assert.Equal(t, first.EraIndex, second.EraIndex)
}

func TestCoordinatorStopsOnTimeLimit(t *testing.T) {
	cfg := smallRunConfig(4)
	cfg.MaxGenerations = 1 << 30
	cfg.TimeLimit = time.Nanosecond

	result, err := coordinatorFixture(t, cfg).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StopTimeLimit, result.StopReason)
	assert.Equal(t, 1, result.Cycles)
}

func TestCoordinatorHonoursCancellation(t *testing.T) {
	cfg := smallRunConfig(5)
	cfg.MaxGenerations = 1 << 30

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := coordinatorFixture(t, cfg).Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, result.StopReason)
	assert.NotNil(t, result.Evaluation, "a cancelled run still reports its best so far")
}

func TestNewCoordinatorRejectsInvalidConfig(t *testing.T) {
	cfg := smallRunConfig(6)
	cfg.Partitions = 3

	units, err := ReduceUnits([]string{"s1"}, nil)
	require.NoError(t, err)
	codec, err := NewCodec(units, 2)
	require.NoError(t, err)
	eval, err := NewEvaluator(codec, smallRunConfig(6).Normalized(), nil, nil)
	require.NoError(t, err)

	_, err = NewCoordinator(cfg, codec, eval, zap.NewNop())
	assert.Error(t, err)
}
