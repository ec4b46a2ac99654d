package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/dto"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/models"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/partition"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/roster"
	appErrors "github.com/ChrisGrattoni/partitionoptimizer/pkg/errors"
)

type rosterRepository interface {
	Create(ctx context.Context, bundle *models.RosterBundle) error
	FindByID(ctx context.Context, id string) (*models.Roster, error)
	List(ctx context.Context, page, pageSize int) ([]models.Roster, int, error)
	LoadBundle(ctx context.Context, id string) (*models.RosterBundle, error)
}

// RosterService imports student information system exports and serves roster
// summaries.
type RosterService struct {
	repo      rosterRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(repo rosterRepository, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{repo: repo, validator: validate, logger: logger}
}

// Import parses the uploaded CSV exports, validates their cross references
// and persists the roster. Subgroup pairs are checked against the enrollment
// data here so a run can assume a closed roster.
func (s *RosterService) Import(ctx context.Context, req dto.ImportRosterRequest) (*dto.RosterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}

	students, sections, enrollments, err := roster.ParseEnrollments(strings.NewReader(req.EnrollmentCSV))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRosterData.Code, appErrors.ErrRosterData.Status, "enrollment data is invalid")
	}

	knownIDs := make(map[string]bool, len(students))
	studentIDs := make([]string, len(students))
	for i, student := range students {
		knownIDs[student.StudentID] = true
		studentIDs[i] = student.StudentID
	}

	var subgroups []models.SubgroupPair
	if req.RequiredCSV != "" {
		pairs, err := roster.ParseSubgroups(strings.NewReader(req.RequiredCSV), models.SubgroupRequired, knownIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrRosterData.Code, appErrors.ErrRosterData.Status, "required subgroup data is invalid")
		}
		subgroups = append(subgroups, pairs...)
	}
	if req.PreferredCSV != "" {
		pairs, err := roster.ParseSubgroups(strings.NewReader(req.PreferredCSV), models.SubgroupPreferred, knownIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrRosterData.Code, appErrors.ErrRosterData.Status, "preferred subgroup data is invalid")
		}
		subgroups = append(subgroups, pairs...)
	}

	// run the reducer once at import so an unpartitionable roster is
	// rejected before anything is stored
	if _, err := partition.ReduceUnits(studentIDs, requiredPairs(subgroups)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRosterData.Code, appErrors.ErrRosterData.Status, "required subgroups are inconsistent")
	}

	bundle := &models.RosterBundle{
		Roster:      models.Roster{Name: req.Name},
		Students:    students,
		Sections:    sections,
		Enrollments: enrollments,
		Subgroups:   subgroups,
	}
	if err := s.repo.Create(ctx, bundle); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist roster")
	}

	s.logger.Info("roster imported",
		zap.String("roster_id", bundle.Roster.ID),
		zap.Int("students", len(students)),
		zap.Int("sections", len(sections)),
		zap.Int("subgroup_pairs", len(subgroups)))

	resp := rosterResponse(&bundle.Roster)
	return &resp, nil
}

// Get returns one roster summary.
func (s *RosterService) Get(ctx context.Context, id string) (*dto.RosterResponse, error) {
	summary, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch roster")
	}
	resp := rosterResponse(summary)
	return &resp, nil
}

// List returns roster summaries with pagination metadata.
func (s *RosterService) List(ctx context.Context, query dto.RosterListQuery) ([]dto.RosterResponse, *models.Pagination, error) {
	rosters, total, err := s.repo.List(ctx, query.Page, query.PageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rosters")
	}

	responses := make([]dto.RosterResponse, len(rosters))
	for i := range rosters {
		responses[i] = rosterResponse(&rosters[i])
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return responses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func rosterResponse(r *models.Roster) dto.RosterResponse {
	return dto.RosterResponse{
		ID:             r.ID,
		Name:           r.Name,
		StudentCount:   r.StudentCount,
		SectionCount:   r.SectionCount,
		RequiredPairs:  r.RequiredPairs,
		PreferredPairs: r.PreferredPair,
		CreatedAt:      r.CreatedAt,
	}
}

func requiredPairs(subgroups []models.SubgroupPair) []partition.Pair {
	var pairs []partition.Pair
	for _, pair := range subgroups {
		if pair.Kind == models.SubgroupRequired {
			pairs = append(pairs, partition.Pair{A: pair.StudentA, B: pair.StudentB})
		}
	}
	return pairs
}
