package partition

import (
	"fmt"
	"time"
)

// Letters available for cohort assignment, in gene-value order. Only the
// first Partitions entries of a run are in play.
var letters = [...]string{"A", "B", "C", "D"}

// Weights tunes the relative influence of compliance, balance deviation and
// subgroup preference on the fitness score. The compliance term always
// dominates: a compliant section contributes 1/total, while PreferredBonus
// defaults to a value no satisfied pair count can stack past one section's
// worth of compliance.
type Weights struct {
	// PairwiseMultiplier scales the penalty when a paired-letter share
	// (A+B or C+D) exceeds PairShareLimit of a non-compliant section.
	PairwiseMultiplier float64 `json:"pairwise_multiplier"`
	// IndividualMultiplier scales the penalty when a single letter's share
	// exceeds SingleShareLimit of a non-compliant section.
	IndividualMultiplier float64 `json:"individual_multiplier"`
	// PairShareLimit is the paired-letter share above which the pairwise
	// penalty applies.
	PairShareLimit float64 `json:"pair_share_limit"`
	// SingleShareLimit is the single-letter share above which the
	// individual penalty applies.
	SingleShareLimit float64 `json:"single_share_limit"`
	// PreferredBonus is added once per preferred pair sharing a letter.
	PreferredBonus float64 `json:"preferred_bonus"`
}

// DefaultWeights returns the tuning the original optimizer shipped with.
func DefaultWeights() Weights {
	return Weights{
		PairwiseMultiplier:   0.5,
		IndividualMultiplier: 0.25,
		PairShareLimit:       0.55,
		SingleShareLimit:     0.30,
		PreferredBonus:       0.001,
	}
}

// Config fixes every tunable of one optimization run. It is immutable once
// handed to the Coordinator; nothing in the run reads process-wide state.
type Config struct {
	Partitions        int           `json:"partitions"`
	MutationRate      float64       `json:"mutation_rate"`
	PopulationSize    int           `json:"population_size"`
	Eras              int           `json:"eras"`
	GenerationsPerEra int           `json:"generations_per_era"`
	MaxGenerations    int           `json:"max_generations"`
	TimeLimit         time.Duration `json:"time_limit"`
	HalfClassMax      int           `json:"half_class_max"`
	QuarterClassMax   int           `json:"quarter_class_max"`
	EliteFraction     float64       `json:"elite_fraction"`
	NewBloodFraction  float64       `json:"new_blood_fraction"`
	TournamentSize    int           `json:"tournament_size"`
	MigrantsPerEra    int           `json:"migrants_per_era"`
	Seed              int64         `json:"seed"`
	Weights           Weights       `json:"weights"`
}

// Normalized fills unset optional knobs with their defaults and returns the
// completed copy. Required fields are left untouched for Validate to reject.
func (c Config) Normalized() Config {
	if c.EliteFraction == 0 {
		c.EliteFraction = 0.2
	}
	if c.NewBloodFraction == 0 {
		c.NewBloodFraction = 0.1
	}
	if c.TournamentSize == 0 {
		c.TournamentSize = 3
	}
	if c.MigrantsPerEra == 0 {
		c.MigrantsPerEra = 1
	}
	if c.Weights == (Weights{}) {
		c.Weights = DefaultWeights()
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Validate rejects contradictory configuration before any era starts.
func (c Config) Validate() error {
	if c.Partitions != 2 && c.Partitions != 4 {
		return fmt.Errorf("partitions must be 2 or 4, got %d", c.Partitions)
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("mutation rate must be within [0,1], got %g", c.MutationRate)
	}
	if c.PopulationSize <= 0 {
		return fmt.Errorf("population size must be positive, got %d", c.PopulationSize)
	}
	if c.Eras <= 0 {
		return fmt.Errorf("eras must be positive, got %d", c.Eras)
	}
	if c.GenerationsPerEra <= 0 {
		return fmt.Errorf("generations per era must be positive, got %d", c.GenerationsPerEra)
	}
	if c.MaxGenerations <= 0 && c.TimeLimit <= 0 {
		return fmt.Errorf("either a generation budget or a time limit is required")
	}
	if c.HalfClassMax <= 0 {
		return fmt.Errorf("half class maximum must be positive, got %d", c.HalfClassMax)
	}
	if c.Partitions == 4 && c.QuarterClassMax <= 0 {
		return fmt.Errorf("quarter class maximum must be positive, got %d", c.QuarterClassMax)
	}
	if c.EliteFraction < 0 || c.NewBloodFraction < 0 || c.EliteFraction+c.NewBloodFraction >= 1 {
		return fmt.Errorf("elite and new-blood fractions must leave room for offspring")
	}
	if c.TournamentSize <= 0 {
		return fmt.Errorf("tournament size must be positive, got %d", c.TournamentSize)
	}
	if c.MigrantsPerEra <= 0 || c.MigrantsPerEra >= c.PopulationSize {
		return fmt.Errorf("migrants per era must be positive and below the population size")
	}
	return nil
}

// Letters returns the cohort letters in play for this configuration.
func (c Config) Letters() []string {
	return letters[:c.Partitions]
}
