package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/models"
)

// RosterRepository manages persistence for rosters and their enrollment
// data. A roster is written once at import and read many times by runs, so
// there are no update paths.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs a RosterRepository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// Create persists a full roster bundle in one transaction. The generated
// roster id is filled into the bundle before the inserts.
func (r *RosterRepository) Create(ctx context.Context, bundle *models.RosterBundle) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster import: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	bundle.Roster.ID = uuid.NewString()
	bundle.Roster.CreatedAt = time.Now().UTC()
	bundle.Roster.StudentCount = len(bundle.Students)
	bundle.Roster.SectionCount = len(bundle.Sections)
	bundle.Roster.RequiredPairs = 0
	bundle.Roster.PreferredPair = 0
	for _, pair := range bundle.Subgroups {
		if pair.Kind == models.SubgroupRequired {
			bundle.Roster.RequiredPairs++
		} else {
			bundle.Roster.PreferredPair++
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rosters (id, name, student_count, section_count, required_pairs, preferred_pairs, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		bundle.Roster.ID, bundle.Roster.Name, bundle.Roster.StudentCount, bundle.Roster.SectionCount,
		bundle.Roster.RequiredPairs, bundle.Roster.PreferredPair, bundle.Roster.CreatedAt); err != nil {
		return fmt.Errorf("insert roster: %w", err)
	}

	for i := range bundle.Students {
		s := &bundle.Students[i]
		s.RosterID = bundle.Roster.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO roster_students (roster_id, student_id, last_name, first_name, middle_name, position)
             VALUES ($1, $2, $3, $4, $5, $6)`,
			s.RosterID, s.StudentID, s.LastName, s.FirstName, s.MiddleName, s.Position); err != nil {
			return fmt.Errorf("insert student %s: %w", s.StudentID, err)
		}
	}

	for i := range bundle.Sections {
		section := &bundle.Sections[i]
		section.RosterID = bundle.Roster.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO course_sections (roster_id, room, period, courses) VALUES ($1, $2, $3, $4)`,
			section.RosterID, section.Room, section.Period, section.Courses); err != nil {
			return fmt.Errorf("insert section %s/%s: %w", section.Room, section.Period, err)
		}
	}

	for i := range bundle.Enrollments {
		e := &bundle.Enrollments[i]
		e.RosterID = bundle.Roster.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO enrollments (roster_id, student_id, room, period) VALUES ($1, $2, $3, $4)`,
			e.RosterID, e.StudentID, e.Room, e.Period); err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
	}

	for i := range bundle.Subgroups {
		pair := &bundle.Subgroups[i]
		pair.RosterID = bundle.Roster.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subgroup_pairs (roster_id, kind, student_a, student_b) VALUES ($1, $2, $3, $4)`,
			pair.RosterID, pair.Kind, pair.StudentA, pair.StudentB); err != nil {
			return fmt.Errorf("insert subgroup pair: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster import: %w", err)
	}
	return nil
}

// FindByID fetches a roster summary by ID.
func (r *RosterRepository) FindByID(ctx context.Context, id string) (*models.Roster, error) {
	query := `SELECT id, name, student_count, section_count, required_pairs, preferred_pairs, created_at
        FROM rosters WHERE id = $1`
	var roster models.Roster
	if err := r.db.GetContext(ctx, &roster, query, id); err != nil {
		return nil, err
	}
	return &roster, nil
}

// List returns roster summaries newest first.
func (r *RosterRepository) List(ctx context.Context, page, pageSize int) ([]models.Roster, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	query := `SELECT id, name, student_count, section_count, required_pairs, preferred_pairs, created_at
        FROM rosters ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	var rosters []models.Roster
	if err := r.db.SelectContext(ctx, &rosters, query, pageSize, (page-1)*pageSize); err != nil {
		return nil, 0, fmt.Errorf("list rosters: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM rosters`); err != nil {
		return nil, 0, fmt.Errorf("count rosters: %w", err)
	}
	return rosters, total, nil
}

// LoadBundle fetches everything a run needs from one roster. Students come
// back in chromosome position order.
func (r *RosterRepository) LoadBundle(ctx context.Context, id string) (*models.RosterBundle, error) {
	roster, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	bundle := &models.RosterBundle{Roster: *roster}

	if err := r.db.SelectContext(ctx, &bundle.Students,
		`SELECT roster_id, student_id, last_name, first_name, middle_name, position
         FROM roster_students WHERE roster_id = $1 ORDER BY position`, id); err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	if err := r.db.SelectContext(ctx, &bundle.Sections,
		`SELECT roster_id, room, period, courses
         FROM course_sections WHERE roster_id = $1 ORDER BY room, period`, id); err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	if err := r.db.SelectContext(ctx, &bundle.Enrollments,
		`SELECT roster_id, student_id, room, period
         FROM enrollments WHERE roster_id = $1`, id); err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	if err := r.db.SelectContext(ctx, &bundle.Subgroups,
		`SELECT roster_id, kind, student_a, student_b
         FROM subgroup_pairs WHERE roster_id = $1`, id); err != nil {
		return nil, fmt.Errorf("load subgroup pairs: %w", err)
	}
	return bundle, nil
}
