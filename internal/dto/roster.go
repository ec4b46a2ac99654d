package dto

import "time"

// ImportRosterRequest carries the raw CSV exports for one roster import. The
// enrollment CSV is required; the subgroup CSVs are optional two-column
// files pairing student ids.
type ImportRosterRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=120"`
	EnrollmentCSV string `json:"enrollmentCsv" validate:"required"`
	RequiredCSV   string `json:"requiredSubgroupsCsv"`
	PreferredCSV  string `json:"preferredSubgroupsCsv"`
}

// RosterResponse summarises one imported roster.
type RosterResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	StudentCount   int       `json:"studentCount"`
	SectionCount   int       `json:"sectionCount"`
	RequiredPairs  int       `json:"requiredPairs"`
	PreferredPairs int       `json:"preferredPairs"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RosterListQuery filters roster listings.
type RosterListQuery struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"pageSize" json:"pageSize"`
}
