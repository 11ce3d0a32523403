package models

import (
	"fmt"
	"time"

	id "refsync/pkg/domain"
)

type RefsetType string

const (
	RefsetTypeExtensional RefsetType = "extensional"
	RefsetTypeIntensional RefsetType = "intensional"
)

type VersionStatus string

const (
	VersionStatusPublished     VersionStatus = "published"
	VersionStatusInDevelopment VersionStatus = "in_development"
)

// Refset is one version of a reference set. RefsetID together with VersionDate
// is the identity; ID is the row key.
//
// Invariants:
//   - at most one active row per (RefsetID, VersionDate)
//   - among published rows of a RefsetID at most one has LatestPublishedVersion set
//   - BranchPath is immutable once set; a change is logged as suspicious
type Refset struct {
	ID                     id.RefsetRowID
	RefsetID               string
	VersionDate            time.Time
	Name                   string
	BranchPath             string
	ModuleID               string
	Type                   RefsetType
	Narrative              string
	Tags                   []string
	EditionID              id.EditionID
	ProjectID              *id.ProjectID
	VersionStatus          VersionStatus
	WorkflowStatus         string
	Active                 bool
	LatestPublishedVersion bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Key renders the refset id and version day for logs and audit subjects.
func (r *Refset) Key() string {
	return fmt.Sprintf("%s@%s", r.RefsetID, r.VersionDate.Format(time.DateOnly))
}

func (r *Refset) IsPublished() bool {
	return r.VersionStatus == VersionStatusPublished
}
