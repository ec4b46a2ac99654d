package partition

// Individual is one candidate assignment: a label per assignment unit plus a
// memoized evaluation. The cache is invalidated explicitly whenever a gene
// changes, so fitness is computed at most once per distinct genome.
type Individual struct {
	genes []uint8
	eval  *Evaluation
}

// NewIndividual wraps a chromosome. The slice is owned by the individual
// afterwards.
func NewIndividual(genes []uint8) *Individual {
	return &Individual{genes: genes}
}

// Genes exposes the chromosome for read-only use.
func (in *Individual) Genes() []uint8 {
	return in.genes
}

// Clone copies the chromosome and carries the cached evaluation over, since
// an identical genome scores identically.
func (in *Individual) Clone() *Individual {
	return &Individual{
		genes: append([]uint8(nil), in.genes...),
		eval:  in.eval,
	}
}

// SetGene overwrites one gene and drops the cached evaluation.
func (in *Individual) SetGene(i int, gene uint8) {
	if in.genes[i] == gene {
		return
	}
	in.genes[i] = gene
	in.eval = nil
}

// Invalidate drops the cached evaluation after bulk gene edits.
func (in *Individual) Invalidate() {
	in.eval = nil
}

// Evaluation returns the memoized evaluation, computing it on first use.
func (in *Individual) Evaluation(ev *Evaluator) *Evaluation {
	if in.eval == nil {
		in.eval = ev.Evaluate(in.genes)
	}
	return in.eval
}

// Fitness is the scalar score of the memoized evaluation.
func (in *Individual) Fitness(ev *Evaluator) float64 {
	return in.Evaluation(ev).Score
}
