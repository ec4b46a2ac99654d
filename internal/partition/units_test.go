package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceUnitsSingletonsWithoutPairs(t *testing.T) {
	units, err := ReduceUnits([]string{"s1", "s2", "s3"}, nil)
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, []string{"s1"}, units[0].Students)
	assert.Equal(t, []string{"s2"}, units[1].Students)
	assert.Equal(t, []string{"s3"}, units[2].Students)
}

func TestReduceUnitsMergesTransitively(t *testing.T) {
	units, err := ReduceUnits([]string{"s1", "s2", "s3", "s4"}, []Pair{
		{A: "s1", B: "s2"},
		{A: "s2", B: "s3"},
	})
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, []string{"s1", "s2", "s3"}, units[0].Students)
	assert.Equal(t, []string{"s4"}, units[1].Students)
}

func TestReduceUnitsIndependentOfPairOrder(t *testing.T) {
	ids := []string{"s1", "s2", "s3", "s4", "s5"}
	forward := []Pair{{A: "s1", B: "s2"}, {A: "s4", B: "s5"}, {A: "s2", B: "s4"}}
	reversed := []Pair{{A: "s2", B: "s4"}, {A: "s4", B: "s5"}, {A: "s1", B: "s2"}}

	unitsA, err := ReduceUnits(ids, forward)
	require.NoError(t, err)
	unitsB, err := ReduceUnits(ids, reversed)
	require.NoError(t, err)

	assert.Equal(t, unitsA, unitsB)
	require.Len(t, unitsA, 2)
	assert.Equal(t, []string{"s1", "s2", "s4", "s5"}, unitsA[0].Students)
	assert.Equal(t, []string{"s3"}, unitsA[1].Students)
}

func TestReduceUnitsIgnoresRedundantPairs(t *testing.T) {
	units, err := ReduceUnits([]string{"s1", "s2"}, []Pair{
		{A: "s1", B: "s2"},
		{A: "s2", B: "s1"},
		{A: "s1", B: "s2"},
	})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, []string{"s1", "s2"}, units[0].Students)
}

func TestReduceUnitsRejectsUnknownStudent(t *testing.T) {
	_, err := ReduceUnits([]string{"s1"}, []Pair{{A: "s1", B: "ghost"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestReduceUnitsRejectsDuplicateStudent(t *testing.T) {
	_, err := ReduceUnits([]string{"s1", "s1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
