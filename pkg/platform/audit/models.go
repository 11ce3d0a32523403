package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so stores can
// apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers changes to who can access what: user
	// creation, organization membership, team moves and migrations.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine reconciliation activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted by the reconcilers for every entity change and for the
// start and end of a run. Keep it transport-agnostic so stores can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	RunID      string
	EntityType string // organization, edition, refset, user, project, team, sync
	Subject    string // human-readable key: org name, edition short name, refset id@date, username
	Action     string
	Reason     string // free-form detail, e.g. "name: before -> after"
	ActorID    string
}

// Store persists audit events. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRun(ctx context.Context, runID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

type AuditEvent string

const (
	EventSyncStarted  AuditEvent = "sync_started"
	EventSyncFinished AuditEvent = "sync_finished"
	EventSyncFailed   AuditEvent = "sync_failed"

	EventOrganizationCreated     AuditEvent = "organization_created"
	EventOrganizationReactivated AuditEvent = "organization_reactivated"
	EventOrganizationInactivated AuditEvent = "organization_inactivated"
	EventOrganizationMigrated    AuditEvent = "organization_migrated"
	EventOrganizationMemberAdded AuditEvent = "organization_member_added"

	EventEditionCreated     AuditEvent = "edition_created"
	EventEditionReactivated AuditEvent = "edition_reactivated"
	EventEditionInactivated AuditEvent = "edition_inactivated"
	EventEditionUpdated     AuditEvent = "edition_updated"

	EventRefsetCreated     AuditEvent = "refset_created"
	EventRefsetReactivated AuditEvent = "refset_reactivated"
	EventRefsetInactivated AuditEvent = "refset_inactivated"
	EventRefsetUpdated     AuditEvent = "refset_updated"

	EventUserCreated AuditEvent = "user_created"
	EventUserUpdated AuditEvent = "user_updated"

	EventProjectCreated  AuditEvent = "project_created"
	EventTeamCreated     AuditEvent = "team_created"
	EventTeamMoved       AuditEvent = "team_moved"
	EventTeamDeactivated AuditEvent = "team_deactivated"
	EventTeamReactivated AuditEvent = "team_reactivated"
	EventTeamMemberAdded AuditEvent = "team_member_added"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventOrganizationMigrated:    CategoryCompliance,
	EventOrganizationMemberAdded: CategoryCompliance,
	EventUserCreated:             CategoryCompliance,
	EventUserUpdated:             CategoryCompliance,
	EventTeamMoved:               CategoryCompliance,
	EventTeamDeactivated:         CategoryCompliance,
	EventTeamReactivated:         CategoryCompliance,
	EventTeamMemberAdded:         CategoryCompliance,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
