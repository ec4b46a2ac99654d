package partition

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec(t *testing.T, partitions int) *Codec {
	t.Helper()
	units, err := ReduceUnits([]string{"s1", "s2", "s3", "s4"}, []Pair{{A: "s3", B: "s4"}})
	require.NoError(t, err)
	codec, err := NewCodec(units, partitions)
	require.NoError(t, err)
	return codec
}

func TestCodecRejectsUnsupportedPartitionCount(t *testing.T) {
	for _, partitions := range []int{0, 1, 3, 5} {
		_, err := NewCodec([]Unit{{Students: []string{"s1"}}}, partitions)
		assert.Error(t, err, "partitions=%d", partitions)
	}
}

func TestCodecDecodeAssignsWholeUnitsTogether(t *testing.T) {
	codec := testCodec(t, 4)
	require.Equal(t, 3, codec.GenomeLength())

	assignment, err := codec.Decode([]uint8{0, 1, 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"s1": "A",
		"s2": "B",
		"s3": "D",
		"s4": "D",
	}, assignment)
}

func TestCodecEncodeRoundTrip(t *testing.T) {
	codec := testCodec(t, 4)
	genes := []uint8{2, 0, 1}

	assignment, err := codec.Decode(genes)
	require.NoError(t, err)
	back, err := codec.Encode(assignment)
	require.NoError(t, err)
	assert.Equal(t, genes, back)
}

func TestCodecEncodeRejectsSplitUnit(t *testing.T) {
	codec := testCodec(t, 4)
	_, err := codec.Encode(map[string]string{
		"s1": "A",
		"s2": "B",
		"s3": "C",
		"s4": "D",
	})
	require.Error(t, err)
}

func TestCodecDecodeRejectsBadChromosome(t *testing.T) {
	codec := testCodec(t, 2)

	_, err := codec.Decode([]uint8{0, 1})
	assert.Error(t, err, "length mismatch")

	_, err = codec.Decode([]uint8{0, 1, 2})
	assert.Error(t, err, "gene out of range for 2 partitions")
}

func TestCodecRandomStaysInRange(t *testing.T) {
	codec := testCodec(t, 2)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		genes := codec.Random(rng)
		require.Len(t, genes, codec.GenomeLength())
		for _, gene := range genes {
			assert.Less(t, int(gene), 2)
		}
	}
}

func TestCodecUnitIndexUnknownStudent(t *testing.T) {
	codec := testCodec(t, 2)
	assert.Equal(t, -1, codec.UnitIndex("ghost"))
	assert.Equal(t, 2, codec.UnitIndex("s4"))
}
