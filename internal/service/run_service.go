package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/dto"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/models"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/partition"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/repository"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/config"
	appErrors "github.com/ChrisGrattoni/partitionoptimizer/pkg/errors"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/jobs"
)

type runRepository interface {
	Create(ctx context.Context, run *models.PartitionRun) error
	FindByID(ctx context.Context, id string) (*models.PartitionRun, error)
	List(ctx context.Context, filter models.RunFilter) ([]models.PartitionRun, int, error)
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error
	Complete(ctx context.Context, id string, outcome repository.RunOutcome, finishedAt time.Time) error
	Fail(ctx context.Context, id string, message string, finishedAt time.Time) error
}

type runEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type progressCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RunService owns the lifecycle of optimization runs: creation, background
// execution, progress reporting and result access.
type RunService struct {
	runs      runRepository
	rosters   rosterRepository
	cache     progressCache
	metrics   *MetricsService
	queue     runEnqueuer
	validator *validator.Validate
	logger    *zap.Logger

	defaults    config.OptimizerConfig
	progressTTL time.Duration
}

// NewRunService constructs a RunService. The queue is attached separately
// because the queue's handler is the service itself.
func NewRunService(
	runs runRepository,
	rosters rosterRepository,
	cache progressCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	defaults config.OptimizerConfig,
	progressTTL time.Duration,
) *RunService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if progressTTL <= 0 {
		progressTTL = time.Hour
	}
	return &RunService{
		runs:        runs,
		rosters:     rosters,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		defaults:    defaults,
		progressTTL: progressTTL,
	}
}

// AttachQueue wires the background queue that executes runs.
func (s *RunService) AttachQueue(queue runEnqueuer) {
	s.queue = queue
}

// Create validates the request, persists a queued run and hands it to the
// worker pool.
func (s *RunService) Create(ctx context.Context, req dto.CreateRunRequest) (*dto.RunResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run payload")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "run queue is not available")
	}

	if _, err := s.rosters.FindByID(ctx, req.RosterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch roster")
	}

	cfg := s.buildConfig(req)
	if err := cfg.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	encoded, err := json.Marshal(cfg)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run configuration")
	}

	run := &models.PartitionRun{RosterID: req.RosterID, Config: encoded}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist run")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: "optimize", Payload: run.ID}); err != nil {
		now := time.Now().UTC()
		if failErr := s.runs.Fail(ctx, run.ID, "failed to enqueue run", now); failErr != nil {
			s.logger.Error("failed to mark unqueued run as failed", zap.String("run_id", run.ID), zap.Error(failErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue run")
	}

	s.logger.Info("run queued", zap.String("run_id", run.ID), zap.String("roster_id", run.RosterID))
	resp := runResponse(run)
	return &resp, nil
}

// HandleJob is the queue handler executing one optimization run.
func (s *RunService) HandleJob(ctx context.Context, job jobs.Job) error {
	runID, ok := job.Payload.(string)
	if !ok || runID == "" {
		return fmt.Errorf("run job %s carries no run id", job.ID)
	}
	return s.execute(ctx, runID)
}

func (s *RunService) execute(ctx context.Context, runID string) error {
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}

	if err := s.runs.MarkRunning(ctx, runID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark run %s running: %w", runID, err)
	}
	s.metrics.RunStarted()

	var cfg partition.Config
	if err := json.Unmarshal(run.Config, &cfg); err != nil {
		return s.fail(ctx, runID, fmt.Errorf("decode run configuration: %w", err))
	}

	bundle, err := s.rosters.LoadBundle(ctx, run.RosterID)
	if err != nil {
		return s.fail(ctx, runID, fmt.Errorf("load roster %s: %w", run.RosterID, err))
	}

	coordinator, err := s.assemble(cfg, bundle)
	if err != nil {
		return s.fail(ctx, runID, err)
	}

	result, err := coordinator.Run(ctx, func(p partition.Progress) {
		s.metrics.RunProgress(runID, 0, p.BestFitness)
		s.storeProgress(ctx, runID, p)
	})
	if err != nil {
		return s.fail(ctx, runID, err)
	}
	s.metrics.RunProgress(runID, result.Generations, result.Fitness)

	assignment, err := json.Marshal(result.Assignment)
	if err != nil {
		return s.fail(ctx, runID, fmt.Errorf("encode assignment: %w", err))
	}
	reports, err := json.Marshal(result.Evaluation.Reports)
	if err != nil {
		return s.fail(ctx, runID, fmt.Errorf("encode section reports: %w", err))
	}

	outcome := repository.RunOutcome{
		BestFitness:       result.Fitness,
		Generations:       result.Generations,
		CompliantSections: result.Evaluation.CompliantSections,
		TotalSections:     result.Evaluation.TotalSections,
		FailedEras:        result.FailedEras,
		StopReason:        result.StopReason,
		Elapsed:           result.Elapsed,
		Assignment:        assignment,
		Reports:           reports,
	}
	if err := s.runs.Complete(ctx, runID, outcome, time.Now().UTC()); err != nil {
		return fmt.Errorf("complete run %s: %w", runID, err)
	}
	s.metrics.RunCompleted(runID, result.Elapsed)

	s.logger.Info("run completed",
		zap.String("run_id", runID),
		zap.Float64("best_fitness", result.Fitness),
		zap.Int("generations", result.Generations),
		zap.Int("compliant", result.Evaluation.CompliantSections),
		zap.Int("sections", result.Evaluation.TotalSections),
		zap.String("stop_reason", result.StopReason),
		zap.Duration("elapsed", result.Elapsed))
	return nil
}

// assemble builds the optimizer pipeline for one roster: subgroup reduction,
// codec, evaluator and coordinator.
func (s *RunService) assemble(cfg partition.Config, bundle *models.RosterBundle) (*partition.Coordinator, error) {
	studentIDs := make([]string, len(bundle.Students))
	for i, student := range bundle.Students {
		studentIDs[i] = student.StudentID
	}

	var required, preferred []partition.Pair
	for _, pair := range bundle.Subgroups {
		p := partition.Pair{A: pair.StudentA, B: pair.StudentB}
		if pair.Kind == models.SubgroupRequired {
			required = append(required, p)
		} else {
			preferred = append(preferred, p)
		}
	}

	units, err := partition.ReduceUnits(studentIDs, required)
	if err != nil {
		return nil, fmt.Errorf("reduce subgroups: %w", err)
	}
	codec, err := partition.NewCodec(units, cfg.Partitions)
	if err != nil {
		return nil, err
	}

	sections, err := buildSections(bundle)
	if err != nil {
		return nil, err
	}
	eval, err := partition.NewEvaluator(codec, cfg.Normalized(), sections, preferred)
	if err != nil {
		return nil, fmt.Errorf("build evaluator: %w", err)
	}

	return partition.NewCoordinator(cfg, codec, eval, s.logger)
}

func (s *RunService) fail(ctx context.Context, runID string, cause error) error {
	s.logger.Error("run failed", zap.String("run_id", runID), zap.Error(cause))
	s.metrics.RunFailed(runID)
	if err := s.runs.Fail(ctx, runID, cause.Error(), time.Now().UTC()); err != nil {
		return fmt.Errorf("record failure of run %s: %w", runID, err)
	}
	return cause
}

func (s *RunService) storeProgress(ctx context.Context, runID string, p partition.Progress) {
	if s.cache == nil {
		return
	}
	snapshot := dto.ProgressResponse{
		RunID:             runID,
		Status:            string(models.RunStatusRunning),
		Cycle:             p.Cycle,
		Generations:       p.Generations,
		BestFitness:       p.BestFitness,
		CompliantSections: p.CompliantSections,
		TotalSections:     p.TotalSections,
		ActiveEras:        p.ActiveEras,
		ElapsedMS:         p.Elapsed.Milliseconds(),
	}
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, progressKey(runID), encoded, s.progressTTL).Err(); err != nil {
		s.logger.Warn("failed to store progress snapshot", zap.String("run_id", runID), zap.Error(err))
	}
}

// Get returns one run.
func (s *RunService) Get(ctx context.Context, id string) (*dto.RunResponse, error) {
	run, err := s.findRun(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := runResponse(run)
	return &resp, nil
}

// List returns runs matching the query with pagination metadata.
func (s *RunService) List(ctx context.Context, query dto.RunListQuery) ([]dto.RunResponse, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run query")
	}

	filter := models.RunFilter{
		RosterID: query.RosterID,
		Status:   models.RunStatus(query.Status),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	runs, total, err := s.runs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list runs")
	}

	responses := make([]dto.RunResponse, len(runs))
	for i := range runs {
		responses[i] = runResponse(&runs[i])
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return responses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Progress returns the live snapshot of a running run, or the final numbers
// once it has finished.
func (s *RunService) Progress(ctx context.Context, id string) (*dto.ProgressResponse, error) {
	run, err := s.findRun(ctx, id)
	if err != nil {
		return nil, err
	}

	if run.Status == models.RunStatusRunning && s.cache != nil {
		raw, err := s.cache.Get(ctx, progressKey(id)).Bytes()
		if err == nil {
			var snapshot dto.ProgressResponse
			if err := json.Unmarshal(raw, &snapshot); err == nil {
				return &snapshot, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("failed to read progress snapshot", zap.String("run_id", id), zap.Error(err))
		}
	}

	snapshot := dto.ProgressResponse{
		RunID:             run.ID,
		Status:            string(run.Status),
		Generations:       run.Generations,
		CompliantSections: run.CompliantSections,
		TotalSections:     run.TotalSections,
		ElapsedMS:         run.ElapsedMS,
	}
	if run.BestFitness != nil {
		snapshot.BestFitness = *run.BestFitness
	}
	return &snapshot, nil
}

// Assignments returns the per-student cohort letters of a completed run in
// roster order.
func (s *RunService) Assignments(ctx context.Context, id string) ([]dto.AssignmentEntry, error) {
	run, err := s.findRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrRunNotFinished, "run has no assignment yet")
	}

	var assignment map[string]string
	if err := json.Unmarshal(run.Assignment, &assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode assignment")
	}

	bundle, err := s.rosters.LoadBundle(ctx, run.RosterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	entries := make([]dto.AssignmentEntry, 0, len(bundle.Students))
	for _, student := range bundle.Students {
		letter, ok := assignment[student.StudentID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("student %s has no letter in run %s", student.StudentID, id))
		}
		entries = append(entries, dto.AssignmentEntry{
			StudentID:  student.StudentID,
			LastName:   student.LastName,
			FirstName:  student.FirstName,
			MiddleName: student.MiddleName,
			Letter:     letter,
		})
	}
	return entries, nil
}

func (s *RunService) findRun(ctx context.Context, id string) (*models.PartitionRun, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch run")
	}
	return run, nil
}

func (s *RunService) buildConfig(req dto.CreateRunRequest) partition.Config {
	cfg := partition.Config{
		Partitions:        s.defaults.Partitions,
		MutationRate:      s.defaults.MutationRate,
		PopulationSize:    s.defaults.PopulationSize,
		Eras:              s.defaults.Eras,
		GenerationsPerEra: s.defaults.GenerationsPerEra,
		MaxGenerations:    s.defaults.MaxGenerations,
		TimeLimit:         s.defaults.TimeLimit,
		HalfClassMax:      s.defaults.HalfClassMax,
		QuarterClassMax:   s.defaults.QuarterClassMax,
		Seed:              req.Seed,
	}
	if req.Partitions != 0 {
		cfg.Partitions = req.Partitions
	}
	if req.MutationRate != 0 {
		cfg.MutationRate = req.MutationRate
	}
	if req.PopulationSize != 0 {
		cfg.PopulationSize = req.PopulationSize
	}
	if req.Eras != 0 {
		cfg.Eras = req.Eras
	}
	if req.GenerationsPerEra != 0 {
		cfg.GenerationsPerEra = req.GenerationsPerEra
	}
	if req.MaxGenerations != 0 {
		cfg.MaxGenerations = req.MaxGenerations
	}
	if req.TimeLimitSeconds != 0 {
		cfg.TimeLimit = time.Duration(req.TimeLimitSeconds) * time.Second
	}
	if req.HalfClassMax != 0 {
		cfg.HalfClassMax = req.HalfClassMax
	}
	if req.QuarterClassMax != 0 {
		cfg.QuarterClassMax = req.QuarterClassMax
	}
	return cfg.Normalized()
}

func buildSections(bundle *models.RosterBundle) ([]partition.Section, error) {
	rosters := make(map[partition.SectionKey][]string, len(bundle.Sections))
	for _, enrollment := range bundle.Enrollments {
		key := partition.SectionKey{Room: enrollment.Room, Period: enrollment.Period}
		rosters[key] = append(rosters[key], enrollment.StudentID)
	}

	sections := make([]partition.Section, 0, len(bundle.Sections))
	for _, section := range bundle.Sections {
		var courses []string
		if len(section.Courses) > 0 {
			if err := json.Unmarshal(section.Courses, &courses); err != nil {
				return nil, fmt.Errorf("decode courses of section %s/%s: %w", section.Room, section.Period, err)
			}
		}
		key := partition.SectionKey{Room: section.Room, Period: section.Period}
		sections = append(sections, partition.Section{
			Key:     key,
			Courses: courses,
			Roster:  rosters[key],
		})
	}
	return sections, nil
}

func runResponse(run *models.PartitionRun) dto.RunResponse {
	return dto.RunResponse{
		ID:                run.ID,
		RosterID:          run.RosterID,
		Status:            string(run.Status),
		BestFitness:       run.BestFitness,
		Generations:       run.Generations,
		CompliantSections: run.CompliantSections,
		TotalSections:     run.TotalSections,
		FailedEras:        run.FailedEras,
		StopReason:        run.StopReason,
		ElapsedMS:         run.ElapsedMS,
		Error:             run.Error,
		CreatedAt:         run.CreatedAt,
		StartedAt:         run.StartedAt,
		FinishedAt:        run.FinishedAt,
	}
}

func progressKey(runID string) string {
	return "runs:progress:" + runID
}
