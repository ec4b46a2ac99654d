package dto

import "time"

// CreateRunRequest launches an optimization run against a roster. Every
// knob is optional; unset values fall back to the server configuration.
type CreateRunRequest struct {
	RosterID          string  `json:"rosterId" validate:"required"`
	Partitions        int     `json:"partitions" validate:"omitempty,oneof=2 4"`
	MutationRate      float64 `json:"mutationRate" validate:"omitempty,gt=0,lt=1"`
	PopulationSize    int     `json:"populationSize" validate:"omitempty,min=2,max=100000"`
	Eras              int     `json:"eras" validate:"omitempty,min=1,max=64"`
	GenerationsPerEra int     `json:"generationsPerEra" validate:"omitempty,min=1"`
	MaxGenerations    int     `json:"maxGenerations" validate:"omitempty,min=1"`
	TimeLimitSeconds  int     `json:"timeLimitSeconds" validate:"omitempty,min=1"`
	HalfClassMax      int     `json:"halfClassMax" validate:"omitempty,min=1"`
	QuarterClassMax   int     `json:"quarterClassMax" validate:"omitempty,min=1"`
	Seed              int64   `json:"seed"`
}

// RunResponse is the API view of an optimization run.
type RunResponse struct {
	ID                string     `json:"id"`
	RosterID          string     `json:"rosterId"`
	Status            string     `json:"status"`
	BestFitness       *float64   `json:"bestFitness,omitempty"`
	Generations       int        `json:"generations"`
	CompliantSections int        `json:"compliantSections"`
	TotalSections     int        `json:"totalSections"`
	FailedEras        int        `json:"failedEras"`
	StopReason        string     `json:"stopReason,omitempty"`
	ElapsedMS         int64      `json:"elapsedMs"`
	Error             *string    `json:"error,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	StartedAt         *time.Time `json:"startedAt,omitempty"`
	FinishedAt        *time.Time `json:"finishedAt,omitempty"`
}

// RunListQuery filters run listings.
type RunListQuery struct {
	RosterID string `form:"rosterId" json:"rosterId"`
	Status   string `form:"status" json:"status" validate:"omitempty,oneof=QUEUED RUNNING COMPLETED FAILED"`
	Page     int    `form:"page" json:"page"`
	PageSize int    `form:"pageSize" json:"pageSize"`
}

// ProgressResponse is the live progress snapshot of a running optimization.
type ProgressResponse struct {
	RunID             string  `json:"runId"`
	Status            string  `json:"status"`
	Cycle             int     `json:"cycle"`
	Generations       int     `json:"generations"`
	BestFitness       float64 `json:"bestFitness"`
	CompliantSections int     `json:"compliantSections"`
	TotalSections     int     `json:"totalSections"`
	ActiveEras        int     `json:"activeEras"`
	ElapsedMS         int64   `json:"elapsedMs"`
}

// ReportLink is a signed download link for one archived run report.
type ReportLink struct {
	File      string `json:"file"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

// AssignmentEntry is one student's cohort letter in a completed run.
type AssignmentEntry struct {
	StudentID  string `json:"studentId"`
	LastName   string `json:"lastName"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	Letter     string `json:"letter"`
}
