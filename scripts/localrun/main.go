// Command localrun executes one optimization directly against CSV exports,
// without the API server or database. It covers the offline workflow: point
// it at an enrollment export, wait, and collect the two reports.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/models"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/partition"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/roster"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/export"
)

func main() {
	var (
		enrollmentPath  string
		requiredPath    string
		preferredPath   string
		outDir          string
		partitions      int
		populationSize  int
		mutationRate    float64
		eras            int
		generations     int
		maxGenerations  int
		timeLimit       time.Duration
		halfClassMax    int
		quarterClassMax int
		seed            int64
	)

	flag.StringVar(&enrollmentPath, "enrollments", "", "Path to the enrollment CSV export (required)")
	flag.StringVar(&requiredPath, "required", "", "Path to the required subgroup pair CSV")
	flag.StringVar(&preferredPath, "preferred", "", "Path to the preferred subgroup pair CSV")
	flag.StringVar(&outDir, "out", ".", "Directory for the rendered reports")
	flag.IntVar(&partitions, "partitions", 4, "Cohort count, 2 or 4")
	flag.IntVar(&populationSize, "population", 200, "Population size per era")
	flag.Float64Var(&mutationRate, "mutation-rate", 0.015, "Per-gene mutation probability")
	flag.IntVar(&eras, "eras", 4, "Parallel eras")
	flag.IntVar(&generations, "generations-per-era", 50, "Generations per migration cycle")
	flag.IntVar(&maxGenerations, "max-generations", 100000, "Total generation budget")
	flag.DurationVar(&timeLimit, "time-limit", 8*time.Hour, "Wall-clock budget")
	flag.IntVar(&halfClassMax, "half-class-max", 15, "Capacity per cohort in a two-way split")
	flag.IntVar(&quarterClassMax, "quarter-class-max", 9, "Capacity per cohort in a four-way split")
	flag.Int64Var(&seed, "seed", 0, "Random seed, 0 picks one from the clock")
	flag.Parse()

	if enrollmentPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	students, sections, enrollments, err := parseEnrollmentFile(enrollmentPath)
	if err != nil {
		logger.Sugar().Fatalw("failed to parse enrollments", "error", err)
	}

	knownIDs := make(map[string]bool, len(students))
	studentIDs := make([]string, len(students))
	for i, student := range students {
		knownIDs[student.StudentID] = true
		studentIDs[i] = student.StudentID
	}

	required, err := parsePairFile(requiredPath, models.SubgroupRequired, knownIDs)
	if err != nil {
		logger.Sugar().Fatalw("failed to parse required subgroups", "error", err)
	}
	preferred, err := parsePairFile(preferredPath, models.SubgroupPreferred, knownIDs)
	if err != nil {
		logger.Sugar().Fatalw("failed to parse preferred subgroups", "error", err)
	}

	cfg := partition.Config{
		Partitions:        partitions,
		MutationRate:      mutationRate,
		PopulationSize:    populationSize,
		Eras:              eras,
		GenerationsPerEra: generations,
		MaxGenerations:    maxGenerations,
		TimeLimit:         timeLimit,
		HalfClassMax:      halfClassMax,
		QuarterClassMax:   quarterClassMax,
		Seed:              seed,
	}.Normalized()

	units, err := partition.ReduceUnits(studentIDs, required)
	if err != nil {
		logger.Sugar().Fatalw("failed to reduce subgroups", "error", err)
	}
	codec, err := partition.NewCodec(units, cfg.Partitions)
	if err != nil {
		logger.Sugar().Fatalw("failed to build codec", "error", err)
	}
	eval, err := partition.NewEvaluator(codec, cfg, buildSections(sections, enrollments), preferred)
	if err != nil {
		logger.Sugar().Fatalw("failed to build evaluator", "error", err)
	}
	coordinator, err := partition.NewCoordinator(cfg, codec, eval, logger)
	if err != nil {
		logger.Sugar().Fatalw("invalid configuration", "error", err)
	}

	logger.Sugar().Infow("optimization starting",
		"students", len(students), "sections", len(sections), "units", codec.GenomeLength(),
		"partitions", cfg.Partitions, "seed", cfg.Seed)

	result, err := coordinator.Run(context.Background(), nil)
	if err != nil {
		logger.Sugar().Fatalw("optimization failed", "error", err)
	}
	logger.Sugar().Infow("optimization finished",
		"best_fitness", result.Fitness,
		"compliant", result.Evaluation.CompliantSections,
		"sections", result.Evaluation.TotalSections,
		"generations", result.Generations,
		"stop_reason", result.StopReason,
		"elapsed", result.Elapsed)

	csvExporter := export.NewCSVExporter()
	if err := writeAssignments(csvExporter, outDir, students, result.Assignment); err != nil {
		logger.Sugar().Fatalw("failed to write assignment report", "error", err)
	}
	if err := writeAnalysis(csvExporter, outDir, cfg, result.Evaluation.Reports); err != nil {
		logger.Sugar().Fatalw("failed to write analysis report", "error", err)
	}
	logger.Sugar().Infow("reports written", "dir", outDir)
}

func parseEnrollmentFile(path string) ([]models.Student, []models.CourseSection, []models.Enrollment, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer file.Close()
	return roster.ParseEnrollments(file)
}

func parsePairFile(path string, kind models.SubgroupKind, knownIDs map[string]bool) ([]partition.Pair, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	subgroups, err := roster.ParseSubgroups(file, kind, knownIDs)
	if err != nil {
		return nil, err
	}
	pairs := make([]partition.Pair, len(subgroups))
	for i, pair := range subgroups {
		pairs[i] = partition.Pair{A: pair.StudentA, B: pair.StudentB}
	}
	return pairs, nil
}

func buildSections(sections []models.CourseSection, enrollments []models.Enrollment) []partition.Section {
	rosters := make(map[partition.SectionKey][]string, len(sections))
	for _, enrollment := range enrollments {
		key := partition.SectionKey{Room: enrollment.Room, Period: enrollment.Period}
		rosters[key] = append(rosters[key], enrollment.StudentID)
	}

	out := make([]partition.Section, 0, len(sections))
	for _, section := range sections {
		key := partition.SectionKey{Room: section.Room, Period: section.Period}
		var courses []string
		if len(section.Courses) > 0 {
			_ = json.Unmarshal(section.Courses, &courses)
		}
		out = append(out, partition.Section{Key: key, Courses: courses, Roster: rosters[key]})
	}
	return out
}

func writeAssignments(exporter *export.CSVExporter, outDir string, students []models.Student, assignment map[string]string) error {
	dataset := export.Dataset{Headers: []string{"id", "last name", "first name", "middle name", "letter"}}
	for _, student := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"id":          student.StudentID,
			"last name":   student.LastName,
			"first name":  student.FirstName,
			"middle name": student.MiddleName,
			"letter":      assignment[student.StudentID],
		})
	}
	payload, err := exporter.Render(dataset)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "student_assignments.csv"), payload, 0o644)
}

func writeAnalysis(exporter *export.CSVExporter, outDir string, cfg partition.Config, reports []partition.SectionReport) error {
	letters := cfg.Letters()
	headers := []string{"room", "period", "section list", "total students"}
	for _, letter := range letters {
		headers = append(headers, letter+" count")
	}
	for _, letter := range letters {
		headers = append(headers, letter+" ratio")
	}
	headers = append(headers, "max deviation", "in compliance?")

	dataset := export.Dataset{Headers: headers}
	for _, report := range reports {
		row := map[string]string{
			"room":           report.Key.Room,
			"period":         report.Key.Period,
			"section list":   strings.Join(report.Courses, "; "),
			"total students": strconv.Itoa(report.Total),
			"max deviation":  fmt.Sprintf("%.4f", report.MaxDeviation),
		}
		for i, letter := range letters {
			row[letter+" count"] = strconv.Itoa(report.Counts[i])
			row[letter+" ratio"] = fmt.Sprintf("%.4f", report.Ratios[i])
		}
		if report.Compliant {
			row["in compliance?"] = "Yes"
		} else {
			row["in compliance?"] = "No"
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	payload, err := exporter.Render(dataset)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "course_analysis.csv"), payload, 0o644)
}
