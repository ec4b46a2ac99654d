package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RunStatus is the lifecycle of an optimization run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "QUEUED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// PartitionRun is one optimization run over a roster. Config holds the
// JSON-encoded run configuration; Assignment and Reports are populated when
// the run completes.
type PartitionRun struct {
	ID                string         `db:"id" json:"id"`
	RosterID          string         `db:"roster_id" json:"roster_id"`
	Status            RunStatus      `db:"status" json:"status"`
	Config            types.JSONText `db:"config" json:"config"`
	BestFitness       *float64       `db:"best_fitness" json:"best_fitness,omitempty"`
	Generations       int            `db:"generations" json:"generations"`
	CompliantSections int            `db:"compliant_sections" json:"compliant_sections"`
	TotalSections     int            `db:"total_sections" json:"total_sections"`
	FailedEras        int            `db:"failed_eras" json:"failed_eras"`
	StopReason        string         `db:"stop_reason" json:"stop_reason,omitempty"`
	ElapsedMS         int64          `db:"elapsed_ms" json:"elapsed_ms"`
	Assignment        types.JSONText `db:"assignment" json:"-"`
	Reports           types.JSONText `db:"reports" json:"-"`
	Error             *string        `db:"error" json:"error,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	StartedAt         *time.Time     `db:"started_at" json:"started_at,omitempty"`
	FinishedAt        *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
}

// RunFilter provides filters for listing runs.
type RunFilter struct {
	RosterID string
	Status   RunStatus
	Page     int
	PageSize int
}
