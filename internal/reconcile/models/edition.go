package models

import (
	"strings"
	"time"

	id "refsync/pkg/domain"
	dErrors "refsync/pkg/domain-errors"
)

// InternationalShortName is the short name of the international edition.
const InternationalShortName = "SNOMEDCT"

// Edition is the local publishing context of one remote code system.
//
// Invariants:
//   - ShortName is non-empty and immutable; exactly one active row per ShortName
//   - OrganizationID always references an existing organization
//   - Affiliate copies (Affiliate == true) are never matched against remote code systems
type Edition struct {
	ID                     id.EditionID
	ShortName              string
	Name                   string
	BranchPath             string
	OrganizationID         id.OrganizationID
	Modules                []string
	MaintainerType         string
	DefaultLanguageCode    string
	DefaultLanguageRefsets []string
	Active                 bool
	Affiliate              bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func NewEdition(shortName string, orgID id.OrganizationID, now time.Time) (*Edition, error) {
	if shortName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "edition short name cannot be empty")
	}
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "edition requires an organization")
	}
	return &Edition{
		ID:             id.NewEditionID(),
		ShortName:      shortName,
		OrganizationID: orgID,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsInternational reports whether this is the international edition.
func (e *Edition) IsInternational() bool {
	return e.ShortName == InternationalShortName
}

// IsMainRooted reports whether the edition's branch lives under MAIN. Remote
// failures are tolerated for editions that are not.
func (e *Edition) IsMainRooted() bool {
	return e.BranchPath == "MAIN" || strings.HasPrefix(e.BranchPath, "MAIN/")
}

// HasModule reports whether moduleID is one of the edition's modules.
func (e *Edition) HasModule(moduleID string) bool {
	for _, m := range e.Modules {
		if m == moduleID {
			return true
		}
	}
	return false
}
