// Package domain holds typed identifiers shared by the reconciliation packages.
//
// Typed IDs keep an organization id from being passed where an edition id is
// expected. New* mints fresh values for records created locally; stores convert
// scanned uuids directly.
package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "refsync/pkg/domain-errors"
)

type (
	OrganizationID uuid.UUID
	EditionID      uuid.UUID
	RefsetRowID    uuid.UUID
	ProjectID      uuid.UUID
	TeamID         uuid.UUID
	UserID         uuid.UUID
)

func NewOrganizationID() OrganizationID { return OrganizationID(uuid.New()) }
func NewEditionID() EditionID           { return EditionID(uuid.New()) }
func NewRefsetRowID() RefsetRowID       { return RefsetRowID(uuid.New()) }
func NewProjectID() ProjectID           { return ProjectID(uuid.New()) }
func NewTeamID() TeamID                 { return TeamID(uuid.New()) }
func NewUserID() UserID                 { return UserID(uuid.New()) }

func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id EditionID) String() string      { return uuid.UUID(id).String() }
func (id RefsetRowID) String() string    { return uuid.UUID(id).String() }
func (id ProjectID) String() string      { return uuid.UUID(id).String() }
func (id TeamID) String() string         { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }

func (id OrganizationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EditionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id RefsetRowID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProjectID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id TeamID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

// ConceptID is a SNOMED CT concept identifier (a reference set id, a module id).
// Invariant: 6 to 18 decimal digits without a leading zero.
type ConceptID string

func ParseConceptID(s string) (ConceptID, error) {
	s = strings.TrimSpace(s)
	if len(s) < 6 || len(s) > 18 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "concept id must have 6 to 18 digits")
	}
	if s[0] == '0' {
		return "", dErrors.New(dErrors.CodeInvalidInput, "concept id cannot start with zero")
	}
	for _, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return "", dErrors.New(dErrors.CodeInvalidInput, "concept id must be numeric")
		}
	}
	return ConceptID(s), nil
}

func (c ConceptID) String() string { return string(c) }
