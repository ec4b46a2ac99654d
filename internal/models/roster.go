package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Roster is one imported set of student enrollments against which
// optimization runs are launched. The enrollment data is immutable once
// imported.
type Roster struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	StudentCount  int       `db:"student_count" json:"student_count"`
	SectionCount  int       `db:"section_count" json:"section_count"`
	RequiredPairs int       `db:"required_pairs" json:"required_pairs"`
	PreferredPair int       `db:"preferred_pairs" json:"preferred_pairs"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Student mirrors one student from the enrollment CSV. Position is the
// first-seen row order, which fixes the chromosome gene ordering for every
// run on this roster.
type Student struct {
	RosterID   string `db:"roster_id" json:"-"`
	StudentID  string `db:"student_id" json:"student_id"`
	LastName   string `db:"last_name" json:"last_name"`
	FirstName  string `db:"first_name" json:"first_name"`
	MiddleName string `db:"middle_name" json:"middle_name"`
	Position   int    `db:"position" json:"-"`
}

// CourseSection is a class meeting in a particular room during a particular
// period; the (room, period) pair is its identity within a roster. Courses
// holds the JSON-encoded list of course numbers meeting in the section.
type CourseSection struct {
	RosterID string         `db:"roster_id" json:"-"`
	Room     string         `db:"room" json:"room"`
	Period   string         `db:"period" json:"period"`
	Courses  types.JSONText `db:"courses" json:"courses"`
}

// Enrollment places one student on one section roster.
type Enrollment struct {
	RosterID  string `db:"roster_id" json:"-"`
	StudentID string `db:"student_id" json:"student_id"`
	Room      string `db:"room" json:"room"`
	Period    string `db:"period" json:"period"`
}

// SubgroupKind distinguishes pairs that must share a cohort from pairs that
// merely prefer to.
type SubgroupKind string

const (
	SubgroupRequired  SubgroupKind = "REQUIRED"
	SubgroupPreferred SubgroupKind = "PREFERRED"
)

// SubgroupPair links two students of one roster.
type SubgroupPair struct {
	RosterID string       `db:"roster_id" json:"-"`
	Kind     SubgroupKind `db:"kind" json:"kind"`
	StudentA string       `db:"student_a" json:"student_a"`
	StudentB string       `db:"student_b" json:"student_b"`
}

// RosterBundle aggregates everything a run needs from one roster.
type RosterBundle struct {
	Roster      Roster
	Students    []Student
	Sections    []CourseSection
	Enrollments []Enrollment
	Subgroups   []SubgroupPair
}
