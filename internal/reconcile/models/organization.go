package models

import (
	"slices"
	"time"

	id "refsync/pkg/domain"
	dErrors "refsync/pkg/domain-errors"
)

// Organization owns editions, projects and teams.
//
// Invariants:
//   - Name is non-empty and unique across active and inactive rows
//   - Active transitions: active ↔ inactive only
//   - An organization may be inactivated only when no active edition references it
//     (enforced by the edition reconciler, which owns the edition count)
//
// Affiliate organizations hold template editions that are copied to every
// organization created by a later reconciliation run.
type Organization struct {
	ID        id.OrganizationID
	Name      string
	Active    bool
	Affiliate bool
	Members   []string // usernames
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewOrganization(name string, now time.Time) (*Organization, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name cannot be empty")
	}
	return &Organization{
		ID:        id.NewOrganizationID(),
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanDeactivate reports whether the organization can become inactive given
// the number of editions that still point at it.
func (o *Organization) CanDeactivate(editionCount int) error {
	if !o.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization is already inactive")
	}
	if editionCount > 0 {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "organization %q still has %d editions", o.Name, editionCount)
	}
	return nil
}

func (o *Organization) ApplyDeactivation(now time.Time) {
	o.Active = false
	o.UpdatedAt = now
}

func (o *Organization) CanReactivate() error {
	if o.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization is already active")
	}
	return nil
}

func (o *Organization) ApplyReactivation(now time.Time) {
	o.Active = true
	o.UpdatedAt = now
}

// HasMember reports whether username belongs to the organization.
func (o *Organization) HasMember(username string) bool {
	return slices.Contains(o.Members, username)
}

// AddMember adds username and reports whether membership changed.
func (o *Organization) AddMember(username string) bool {
	if username == "" || o.HasMember(username) {
		return false
	}
	o.Members = append(o.Members, username)
	return true
}
