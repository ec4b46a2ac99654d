package partition

import (
	"fmt"
	"math/rand"
)

// Codec translates between unit-indexed chromosomes and per-student cohort
// assignments. Every chromosome of a run shares one Codec, so gene positions
// stay structurally comparable for the whole run.
type Codec struct {
	units      []Unit
	partitions int
	unitOf     map[string]int // student id -> gene index
}

// NewCodec fixes the unit ordering and label set for a run.
func NewCodec(units []Unit, partitions int) (*Codec, error) {
	if partitions != 2 && partitions != 4 {
		return nil, fmt.Errorf("partitions must be 2 or 4, got %d", partitions)
	}
	unitOf := make(map[string]int)
	for i, unit := range units {
		for _, id := range unit.Students {
			if _, dup := unitOf[id]; dup {
				return nil, fmt.Errorf("student %q appears in two units", id)
			}
			unitOf[id] = i
		}
	}
	return &Codec{units: units, partitions: partitions, unitOf: unitOf}, nil
}

// GenomeLength is the number of genes: one per assignment unit.
func (c *Codec) GenomeLength() int {
	return len(c.units)
}

// Partitions is the cohort count.
func (c *Codec) Partitions() int {
	return c.partitions
}

// UnitIndex returns the gene index carrying the given student, or -1.
func (c *Codec) UnitIndex(studentID string) int {
	if i, ok := c.unitOf[studentID]; ok {
		return i
	}
	return -1
}

// Decode expands a chromosome into a student -> letter assignment, giving
// each unit's letter to all of its members.
func (c *Codec) Decode(genes []uint8) (map[string]string, error) {
	if len(genes) != len(c.units) {
		return nil, fmt.Errorf("chromosome length %d does not match %d units", len(genes), len(c.units))
	}
	assignment := make(map[string]string, len(c.unitOf))
	for i, gene := range genes {
		if int(gene) >= c.partitions {
			return nil, fmt.Errorf("gene %d carries letter index %d beyond %d partitions", i, gene, c.partitions)
		}
		for _, id := range c.units[i].Students {
			assignment[id] = letters[gene]
		}
	}
	return assignment, nil
}

// Encode rebuilds a chromosome from a student -> letter assignment. It is
// the inverse of Decode for assignments produced against the same Codec:
// members of a unit must agree on their letter.
func (c *Codec) Encode(assignment map[string]string) ([]uint8, error) {
	genes := make([]uint8, len(c.units))
	for i, unit := range c.units {
		letter, ok := assignment[unit.Students[0]]
		if !ok {
			return nil, fmt.Errorf("assignment is missing student %q", unit.Students[0])
		}
		gene, err := c.geneOf(letter)
		if err != nil {
			return nil, err
		}
		for _, id := range unit.Students[1:] {
			other, ok := assignment[id]
			if !ok {
				return nil, fmt.Errorf("assignment is missing student %q", id)
			}
			if other != letter {
				return nil, fmt.Errorf("students %q and %q share a unit but carry %s and %s", unit.Students[0], id, letter, other)
			}
		}
		genes[i] = gene
	}
	return genes, nil
}

// Random draws each gene independently and uniformly from the label set.
func (c *Codec) Random(rng *rand.Rand) []uint8 {
	genes := make([]uint8, len(c.units))
	for i := range genes {
		genes[i] = uint8(rng.Intn(c.partitions))
	}
	return genes
}

func (c *Codec) geneOf(letter string) (uint8, error) {
	for i := 0; i < c.partitions; i++ {
		if letters[i] == letter {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("letter %q is not in the %d-way label set", letter, c.partitions)
}
