package partition

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// singleSectionEvaluator builds one section enrolling `total` singleton
// students so tests can dial in exact per-letter counts.
func singleSectionEvaluator(t *testing.T, partitions, total int, preferred []Pair) (*Codec, *Evaluator) {
	t.Helper()

	ids := make([]string, total)
	for i := range ids {
		ids[i] = fmt.Sprintf("s%d", i+1)
	}
	units, err := ReduceUnits(ids, nil)
	require.NoError(t, err)
	codec, err := NewCodec(units, partitions)
	require.NoError(t, err)

	cfg := Config{
		Partitions:        partitions,
		PopulationSize:    10,
		Eras:              1,
		GenerationsPerEra: 1,
		MaxGenerations:    10,
		MutationRate:      0.015,
		HalfClassMax:      15,
		QuarterClassMax:   9,
	}.Normalized()

	eval, err := NewEvaluator(codec, cfg, []Section{
		{Key: SectionKey{Room: "101", Period: "3"}, Courses: []string{"ALG1"}, Roster: ids},
	}, preferred)
	require.NoError(t, err)
	return codec, eval
}

// genesForCounts lays out a chromosome that assigns counts[i] students to
// letter i, in roster order.
func genesForCounts(counts []int) []uint8 {
	var genes []uint8
	for letter, n := range counts {
		for i := 0; i < n; i++ {
			genes = append(genes, uint8(letter))
		}
	}
	return genes
}

func TestNewEvaluatorRejectsPartitionMismatch(t *testing.T) {
	units, err := ReduceUnits([]string{"s1", "s2"}, nil)
	require.NoError(t, err)
	codec, err := NewCodec(units, 2)
	require.NoError(t, err)

	cfg := Config{Partitions: 4, HalfClassMax: 15, QuarterClassMax: 9}.Normalized()
	_, err = NewEvaluator(codec, cfg, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "codec encodes 2")
}

func TestEvaluateTwoWayCompliantSection(t *testing.T) {
	_, eval := singleSectionEvaluator(t, 2, 30, nil)

	result := eval.Evaluate(genesForCounts([]int{15, 15}))
	assert.Equal(t, 1, result.CompliantSections)
	assert.Equal(t, 1, result.TotalSections)
	assert.Equal(t, 0, result.PenaltyCount)
	assert.InDelta(t, 1.0/30.0, result.Score, 1e-12)

	report := result.Reports[0]
	assert.True(t, report.Compliant)
	assert.InDelta(t, 0.0, report.MaxDeviation, 1e-12)
}

func TestEvaluateTwoWayOneSideOverCapacity(t *testing.T) {
	_, eval := singleSectionEvaluator(t, 2, 30, nil)

	result := eval.Evaluate(genesForCounts([]int{16, 14}))
	assert.Equal(t, 0, result.CompliantSections)
	assert.Equal(t, 1, result.PenaltyCount)
	assert.InDelta(t, -(16.0-14.0)/30.0, result.Score, 1e-12)
}

func TestEvaluateTwoWayBothSidesOverCapacity(t *testing.T) {
	_, eval := singleSectionEvaluator(t, 2, 36, nil)

	// 20 vs 16: both halves exceed the capacity and the larger share is
	// past the pair-share limit, so only the imbalance is penalized.
	result := eval.Evaluate(genesForCounts([]int{20, 16}))
	assert.Equal(t, 0, result.CompliantSections)
	assert.Equal(t, 1, result.PenaltyCount)
	assert.InDelta(t, -(20.0-16.0)/36.0, result.Score, 1e-12)
}

func TestEvaluateTwoWayAllStudentsOnOneSide(t *testing.T) {
	_, eval := singleSectionEvaluator(t, 2, 16, nil)

	result := eval.Evaluate(genesForCounts([]int{16, 0}))
	assert.Equal(t, 0, result.CompliantSections)
	assert.Equal(t, 1, result.PenaltyCount)
	assert.InDelta(t, -1.0, result.Score, 1e-12)
	assert.InDelta(t, 0.5, result.Reports[0].MaxDeviation, 1e-12)
}

func TestEvaluateFourWayCompliantAtBoundary(t *testing.T) {
	_, eval := singleSectionEvaluator(t, 4, 36, nil)

	result := eval.Evaluate(genesForCounts([]int{9, 9, 9, 9}))
	assert.Equal(t, 1, result.CompliantSections)
	assert.InDelta(t, 1.0/36.0, result.Score, 1e-12)
	assert.InDelta(t, 0.0, result.Reports[0].MaxDeviation, 1e-12)
}

func TestEvaluateFourWaySingleLetterOverByOne(t *testing.T) {
	_, eval := singleSectionEvaluator(t, 4, 36, nil)

	// one letter at 10 breaks compliance even though every share stays
	// below the penalty thresholds
	result := eval.Evaluate(genesForCounts([]int{10, 9, 9, 8}))
	assert.Equal(t, 0, result.CompliantSections)
	assert.Equal(t, 0, result.PenaltyCount)
	assert.InDelta(t, 0.0, result.Score, 1e-12)
	assert.InDelta(t, 10.0/36.0-0.25, result.Reports[0].MaxDeviation, 1e-12)
}

func TestEvaluateFourWayOneQuarterOverAtFullCapacity(t *testing.T) {
	_, eval := singleSectionEvaluator(t, 4, 37, nil)

	// 10/9/9/9: one quarter over the cap, but no share crosses the penalty
	// thresholds, so the section is non-compliant yet penalty-free
	result := eval.Evaluate(genesForCounts([]int{10, 9, 9, 9}))
	assert.Equal(t, 0, result.CompliantSections)
	assert.Equal(t, 0, result.PenaltyCount)
	assert.InDelta(t, 0.0, result.Score, 1e-12)
	assert.InDelta(t, 10.0/37.0-0.25, result.Reports[0].MaxDeviation, 1e-12)
}

func TestEvaluateFourWayStackedPenalties(t *testing.T) {
	_, eval := singleSectionEvaluator(t, 4, 20, nil)

	// 8/8/2/2: the A+B pair holds 80% of the section and both A and B
	// individually exceed the single-share limit
	result := eval.Evaluate(genesForCounts([]int{8, 8, 2, 2}))
	assert.Equal(t, 0, result.CompliantSections)
	assert.Equal(t, 3, result.PenaltyCount)

	expected := -0.5*(0.8-0.5) - 2*0.25*(0.4-0.25)
	assert.InDelta(t, expected, result.Score, 1e-12)
}

func TestEvaluateFourWayPairOverCapacityWithinQuarters(t *testing.T) {
	_, eval := singleSectionEvaluator(t, 4, 32, nil)

	// every letter is within the quarter maximum but A+B holds 16 > 15
	result := eval.Evaluate(genesForCounts([]int{8, 8, 8, 8}))
	assert.Equal(t, 0, result.CompliantSections)
	assert.Equal(t, 0, result.PenaltyCount, "shares at an even split trip no penalty")
	assert.InDelta(t, 0.0, result.Score, 1e-12)
}

func TestEvaluatePreferredPairsAddBonus(t *testing.T) {
	_, eval := singleSectionEvaluator(t, 2, 4, []Pair{
		{A: "s1", B: "s2"},
		{A: "s3", B: "s4"},
	})

	result := eval.Evaluate([]uint8{0, 0, 0, 1})
	assert.Equal(t, 1, result.PreferredMatched)
	assert.Equal(t, 2, result.PreferredTotal)
	assert.InDelta(t, 1.0/4.0+0.001, result.Score, 1e-12)
}

func TestEvaluateEmptySectionIsVacuouslyCompliant(t *testing.T) {
	units, err := ReduceUnits([]string{"s1"}, nil)
	require.NoError(t, err)
	codec, err := NewCodec(units, 2)
	require.NoError(t, err)

	cfg := Config{
		Partitions: 2, PopulationSize: 10, Eras: 1, GenerationsPerEra: 1,
		MaxGenerations: 10, HalfClassMax: 15,
	}.Normalized()
	eval, err := NewEvaluator(codec, cfg, []Section{
		{Key: SectionKey{Room: "GYM", Period: "1"}},
		{Key: SectionKey{Room: "101", Period: "1"}, Roster: []string{"s1"}},
	}, nil)
	require.NoError(t, err)

	result := eval.Evaluate([]uint8{0})
	assert.Equal(t, 2, result.CompliantSections)
	assert.True(t, result.Reports[0].Compliant)
	assert.InDelta(t, 1.0, result.Score, 1e-12)
}

func TestEvaluatorRejectsUnknownStudents(t *testing.T) {
	units, err := ReduceUnits([]string{"s1"}, nil)
	require.NoError(t, err)
	codec, err := NewCodec(units, 2)
	require.NoError(t, err)
	cfg := Config{
		Partitions: 2, PopulationSize: 10, Eras: 1, GenerationsPerEra: 1,
		MaxGenerations: 10, HalfClassMax: 15,
	}.Normalized()

	_, err = NewEvaluator(codec, cfg, []Section{
		{Key: SectionKey{Room: "101", Period: "1"}, Roster: []string{"ghost"}},
	}, nil)
	assert.Error(t, err)

	_, err = NewEvaluator(codec, cfg, nil, []Pair{{A: "s1", B: "ghost"}})
	assert.Error(t, err)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	_, eval := singleSectionEvaluator(t, 4, 20, nil)
	genes := genesForCounts([]int{5, 5, 5, 5})

	first := eval.Evaluate(genes)
	second := eval.Evaluate(genes)
	assert.True(t, math.Abs(first.Score-second.Score) == 0)
	assert.Equal(t, first, second)
}
