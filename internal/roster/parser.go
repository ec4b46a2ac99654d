// Package roster parses student information system exports into roster
// models. The enrollment format is one row per student course enrollment,
// the shape Infinite Campus and comparable systems produce:
//
//	LAST,FIRST,MIDDLE,STUDENT_ID,COURSE_NUMBER,COURSE_NAME,COURSE_ID,ROOM_NUMBER,PERIOD
//
// STUDENT_ID identifies a student and the (ROOM_NUMBER, PERIOD) pair
// identifies a course section; the remaining columns are descriptive.
package roster

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/models"
)

const enrollmentColumns = 9

type sectionAccumulator struct {
	room    string
	period  string
	courses []string
	roster  []string
	seen    map[string]bool
}

// ParseEnrollments reads an enrollment CSV and produces the students,
// sections and enrollments of a roster, all in first-seen order. The header
// row is required. A student enrolled twice in the same (room, period) is
// collapsed to a single seat.
func ParseEnrollments(r io.Reader) ([]models.Student, []models.CourseSection, []models.Enrollment, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = enrollmentColumns
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		return nil, nil, nil, fmt.Errorf("read enrollment header: %w", err)
	}

	var (
		students    []models.Student
		enrollments []models.Enrollment
		studentSeen = make(map[string]bool)
		sections    = make(map[[2]string]*sectionAccumulator)
		order       [][2]string
	)

	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read enrollment row %d: %w", line, err)
		}

		studentID := strings.TrimSpace(row[3])
		room := strings.TrimSpace(row[7])
		period := strings.TrimSpace(row[8])
		if studentID == "" || room == "" || period == "" {
			return nil, nil, nil, fmt.Errorf("enrollment row %d: student id, room and period are required", line)
		}

		if !studentSeen[studentID] {
			studentSeen[studentID] = true
			students = append(students, models.Student{
				StudentID:  studentID,
				LastName:   strings.TrimSpace(row[0]),
				FirstName:  strings.TrimSpace(row[1]),
				MiddleName: strings.TrimSpace(row[2]),
				Position:   len(students),
			})
		}

		key := [2]string{room, period}
		section, ok := sections[key]
		if !ok {
			section = &sectionAccumulator{room: room, period: period, seen: make(map[string]bool)}
			sections[key] = section
			order = append(order, key)
		}

		courseNumber := strings.TrimSpace(row[4])
		if courseNumber != "" && !contains(section.courses, courseNumber) {
			section.courses = append(section.courses, courseNumber)
		}

		if section.seen[studentID] {
			continue
		}
		section.seen[studentID] = true
		section.roster = append(section.roster, studentID)
		enrollments = append(enrollments, models.Enrollment{
			StudentID: studentID,
			Room:      room,
			Period:    period,
		})
	}

	if len(students) == 0 {
		return nil, nil, nil, fmt.Errorf("enrollment file contains no student rows")
	}

	courseSections := make([]models.CourseSection, 0, len(order))
	for _, key := range order {
		section := sections[key]
		courses, err := json.Marshal(section.courses)
		if err != nil {
			return nil, nil, nil, err
		}
		courseSections = append(courseSections, models.CourseSection{
			Room:    section.room,
			Period:  section.period,
			Courses: courses,
		})
	}

	return students, courseSections, enrollments, nil
}

// ParseSubgroups reads a two-column CSV of student id pairs, one pair per
// row after the header, and tags each with the given kind. Pairs referencing
// students outside knownIDs are rejected so a typo in a counselor's sheet
// surfaces at import time rather than mid-run.
func ParseSubgroups(r io.Reader, kind models.SubgroupKind, knownIDs map[string]bool) ([]models.SubgroupPair, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read subgroup header: %w", err)
	}

	var pairs []models.SubgroupPair
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read subgroup row %d: %w", line, err)
		}

		a := strings.TrimSpace(row[0])
		b := strings.TrimSpace(row[1])
		if a == "" || b == "" {
			return nil, fmt.Errorf("subgroup row %d: both student ids are required", line)
		}
		if a == b {
			return nil, fmt.Errorf("subgroup row %d: student %q paired with itself", line, a)
		}
		if !knownIDs[a] {
			return nil, fmt.Errorf("subgroup row %d: unknown student %q", line, a)
		}
		if !knownIDs[b] {
			return nil, fmt.Errorf("subgroup row %d: unknown student %q", line, b)
		}
		pairs = append(pairs, models.SubgroupPair{Kind: kind, StudentA: a, StudentB: b})
	}
	return pairs, nil
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
