package partition

import "fmt"

// SectionKey identifies a course section by the room it meets in and the
// period it meets during.
type SectionKey struct {
	Room   string `json:"room"`
	Period string `json:"period"`
}

// Section is one course section as the fitness engine consumes it: the
// (room, period) identity, the course numbers meeting there, and the ids of
// the enrolled students. A student appears at most once per section.
type Section struct {
	Key     SectionKey
	Courses []string
	Roster  []string
}

// SectionReport is the per-section breakdown of one evaluated assignment:
// counts per letter, the share-based deviation from an even split, and
// whether the section satisfies the distancing capacity rules.
type SectionReport struct {
	Key          SectionKey `json:"key"`
	Courses      []string   `json:"courses"`
	Total        int        `json:"total"`
	Counts       []int      `json:"counts"`
	Ratios       []float64  `json:"ratios"`
	MaxDeviation float64    `json:"max_deviation"`
	Compliant    bool       `json:"compliant"`
}

// Evaluation is the full scoring of one chromosome. It is derived data:
// recomputed on demand and never mutated in place.
type Evaluation struct {
	Score             float64         `json:"score"`
	CompliantSections int             `json:"compliant_sections"`
	TotalSections     int             `json:"total_sections"`
	PenaltyCount      int             `json:"penalty_count"`
	PreferredMatched  int             `json:"preferred_matched"`
	PreferredTotal    int             `json:"preferred_total"`
	Reports           []SectionReport `json:"reports"`
}

// Evaluator scores chromosomes against the fixed roster data. Construction
// resolves every student reference to a gene index once, so evaluation is a
// pure function of the gene array. The evaluator is read-only after
// construction and safe to share across eras.
type Evaluator struct {
	codec      *Codec
	cfg        Config
	sections   []evalSection
	preferred  [][2]int
	partitions int
}

type evalSection struct {
	key     SectionKey
	courses []string
	units   []int // one gene index per enrolled student
}

// NewEvaluator binds sections and preferred pairs to the codec's unit
// ordering. A section or preferred pair referencing a student outside the
// codec is a data error.
func NewEvaluator(codec *Codec, cfg Config, sections []Section, preferred []Pair) (*Evaluator, error) {
	if cfg.Partitions != codec.Partitions() {
		return nil, fmt.Errorf("configured for %d partitions but codec encodes %d", cfg.Partitions, codec.Partitions())
	}
	ev := &Evaluator{
		codec:      codec,
		cfg:        cfg,
		partitions: cfg.Partitions,
	}
	for _, section := range sections {
		es := evalSection{key: section.Key, courses: section.Courses, units: make([]int, 0, len(section.Roster))}
		for _, id := range section.Roster {
			unit := codec.UnitIndex(id)
			if unit < 0 {
				return nil, fmt.Errorf("section %s period %s enrolls unknown student %q", section.Key.Room, section.Key.Period, id)
			}
			es.units = append(es.units, unit)
		}
		ev.sections = append(ev.sections, es)
	}
	for _, p := range preferred {
		ua := codec.UnitIndex(p.A)
		ub := codec.UnitIndex(p.B)
		if ua < 0 {
			return nil, fmt.Errorf("preferred subgroup references unknown student %q", p.A)
		}
		if ub < 0 {
			return nil, fmt.Errorf("preferred subgroup references unknown student %q", p.B)
		}
		ev.preferred = append(ev.preferred, [2]int{ua, ub})
	}
	return ev, nil
}

// Evaluate scores one chromosome. Higher is better; a school whose every
// section is compliant scores positive, and penalty-dominated assignments go
// negative. The function has no side effects and is deterministic for a
// given chromosome.
func (ev *Evaluator) Evaluate(genes []uint8) *Evaluation {
	result := &Evaluation{
		TotalSections:  len(ev.sections),
		PreferredTotal: len(ev.preferred),
		Reports:        make([]SectionReport, 0, len(ev.sections)),
	}

	counts := make([]int, ev.partitions)
	for _, section := range ev.sections {
		for i := range counts {
			counts[i] = 0
		}
		for _, unit := range section.units {
			counts[genes[unit]]++
		}
		report := ev.scoreSection(section, counts, result)
		result.Reports = append(result.Reports, report)
	}

	for _, pair := range ev.preferred {
		if genes[pair[0]] == genes[pair[1]] {
			result.Score += ev.cfg.Weights.PreferredBonus
			result.PreferredMatched++
		}
	}

	return result
}

func (ev *Evaluator) scoreSection(section evalSection, counts []int, result *Evaluation) SectionReport {
	total := 0
	for _, n := range counts {
		total += n
	}

	report := SectionReport{
		Key:     section.key,
		Courses: section.courses,
		Total:   total,
		Counts:  append([]int(nil), counts...),
		Ratios:  make([]float64, len(counts)),
	}

	// An empty section is vacuously compliant and contributes nothing.
	if total == 0 {
		report.Compliant = true
		result.CompliantSections++
		return report
	}

	even := 1.0 / float64(len(counts))
	maxRatio := 0.0
	for i, n := range counts {
		ratio := float64(n) / float64(total)
		report.Ratios[i] = ratio
		if ratio > maxRatio {
			maxRatio = ratio
		}
	}
	report.MaxDeviation = maxRatio - even

	w := ev.cfg.Weights
	switch ev.partitions {
	case 2:
		a, b := counts[0], counts[1]
		aPct, bPct := report.Ratios[0], report.Ratios[1]
		diff := aPct - bPct
		if diff < 0 {
			diff = -diff
		}
		switch {
		case a <= ev.cfg.HalfClassMax && b <= ev.cfg.HalfClassMax:
			report.Compliant = true
			result.CompliantSections++
			result.Score += 1.0 / float64(total)
		case a <= ev.cfg.HalfClassMax || b <= ev.cfg.HalfClassMax:
			result.Score -= diff
			result.PenaltyCount++
		case aPct > w.PairShareLimit || bPct > w.PairShareLimit:
			// both halves overflow; all that is left to optimize is the
			// ratio between them
			result.Score -= diff
			result.PenaltyCount++
		}
	case 4:
		withinEach := true
		for _, n := range counts {
			if n > ev.cfg.QuarterClassMax {
				withinEach = false
				break
			}
		}
		firstPair := counts[0] + counts[1]
		secondPair := counts[2] + counts[3]
		withinPairs := firstPair <= ev.cfg.HalfClassMax && secondPair <= ev.cfg.HalfClassMax

		if withinEach && withinPairs {
			report.Compliant = true
			result.CompliantSections++
			result.Score += 1.0 / float64(total)
			break
		}

		firstShare := report.Ratios[0] + report.Ratios[1]
		secondShare := report.Ratios[2] + report.Ratios[3]
		if firstShare > w.PairShareLimit {
			result.Score -= w.PairwiseMultiplier * (firstShare - 0.5)
			result.PenaltyCount++
		}
		if secondShare > w.PairShareLimit {
			result.Score -= w.PairwiseMultiplier * (secondShare - 0.5)
			result.PenaltyCount++
		}
		for _, ratio := range report.Ratios {
			if ratio > w.SingleShareLimit {
				result.Score -= w.IndividualMultiplier * (ratio - even)
				result.PenaltyCount++
			}
		}
	}

	return report
}
