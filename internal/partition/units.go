package partition

import "fmt"

// Pair links two students by id.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Unit is the smallest indivisible assignment group: every student in a unit
// receives the same cohort letter, so a required subgroup can never be split
// by any operator. Units partition the full student set.
type Unit struct {
	Students []string // student ids in first-seen roster order
}

// ReduceUnits collapses required pairs into disjoint assignment units using
// union-find over the student index. studentIDs fixes the deterministic
// ordering: units are emitted in order of their first-seen member, and every
// student absent from the pairs becomes a singleton unit. The result is
// independent of pair order. A pair naming an unknown student is a data
// error; the roster is never silently extended.
func ReduceUnits(studentIDs []string, required []Pair) ([]Unit, error) {
	index := make(map[string]int, len(studentIDs))
	for i, id := range studentIDs {
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("duplicate student id %q", id)
		}
		index[id] = i
	}

	parent := make([]int, len(studentIDs))
	for i := range parent {
		parent[i] = i
	}

	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	for _, p := range required {
		ia, ok := index[p.A]
		if !ok {
			return nil, fmt.Errorf("required subgroup references unknown student %q", p.A)
		}
		ib, ok := index[p.B]
		if !ok {
			return nil, fmt.Errorf("required subgroup references unknown student %q", p.B)
		}
		ra, rb := find(ia), find(ib)
		if ra == rb {
			continue
		}
		// the earlier-seen student stays the representative, keeping unit
		// order independent of pair order
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	members := make(map[int][]string, len(studentIDs))
	order := make([]int, 0, len(studentIDs))
	for i, id := range studentIDs {
		root := find(i)
		if _, seen := members[root]; !seen {
			order = append(order, root)
		}
		members[root] = append(members[root], id)
	}

	units := make([]Unit, 0, len(order))
	for _, root := range order {
		units = append(units, Unit{Students: members[root]})
	}
	return units, nil
}
