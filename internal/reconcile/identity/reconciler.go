package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"refsync/internal/reconcile/catalog"
	"refsync/internal/reconcile/models"
	"refsync/internal/reconcile/ports"
	"refsync/internal/reconcile/recorder"
	"refsync/internal/reconcile/stats"
	idp "refsync/internal/remote/identity"
	id "refsync/pkg/domain"
	dErrors "refsync/pkg/domain-errors"
	"refsync/pkg/platform/audit"
	"refsync/pkg/platform/sentinel"
	pstrings "refsync/pkg/platform/strings"
	"refsync/pkg/requestcontext"
)

// Directory is the identity-provider view the reconciler needs.
type Directory interface {
	IdentityRules(ctx context.Context) (map[string][]string, error)
	UserProfile(ctx context.Context, username string) (*idp.Profile, error)
}

type Reconciler struct {
	store          ports.Store
	directory      Directory
	stats          *stats.Stats
	catalog        *catalog.Catalog
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	rec            *recorder.Recorder
}

type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(r *Reconciler) {
		r.auditPublisher = publisher
	}
}

// WithCatalog supplies project names keyed by edition and project code.
func WithCatalog(c *catalog.Catalog) Option {
	return func(r *Reconciler) {
		r.catalog = c
	}
}

func New(store ports.Store, directory Directory, st *stats.Stats, opts ...Option) (*Reconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if directory == nil {
		return nil, fmt.Errorf("directory is required")
	}
	r := &Reconciler{
		store:     store,
		directory: directory,
		stats:     st,
		catalog:   catalog.Empty(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.catalog == nil {
		r.catalog = catalog.Empty()
	}
	r.rec = recorder.New(r.logger, r.auditPublisher, r.stats)
	return r, nil
}

// scopedEdition is a qualifying edition with its organization and the rules
// that apply to it.
type scopedEdition struct {
	edition *models.Edition
	org     *models.Organization
	rules   []ruleMembers
}

type ruleMembers struct {
	rule    GroupRule
	members []string
}

// Reconcile derives identity state for the given editions. Only editions with
// no local projects qualify; curated editions are left alone.
func (r *Reconciler) Reconcile(ctx context.Context, cfg models.Config, editions []*models.Edition) error {
	qualifying, err := r.qualifying(ctx, editions)
	if err != nil || len(qualifying) == 0 {
		return err
	}

	raw, err := r.directory.IdentityRules(ctx)
	if err != nil {
		return err
	}
	rules := r.parseRules(ctx, raw)

	scoped := make([]*scopedEdition, 0, len(qualifying))
	for _, e := range qualifying {
		org, err := r.store.GetOrganization(ctx, e.OrganizationID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to load organization of %q", e.ShortName))
		}
		se := &scopedEdition{edition: e, org: org}
		for _, rm := range rules {
			if rm.rule.MatchesOrganization(org.Name) && rm.rule.MatchesEdition(e.ShortName) {
				se.rules = append(se.rules, rm)
			}
		}
		scoped = append(scoped, se)
	}

	if err := r.syncUsers(ctx, scoped); err != nil {
		return err
	}
	if err := r.assignOrganizations(ctx, cfg, scoped, rules); err != nil {
		return err
	}
	return r.deriveProjects(ctx, scoped)
}

func (r *Reconciler) qualifying(ctx context.Context, editions []*models.Edition) ([]*models.Edition, error) {
	var out []*models.Edition
	for _, e := range editions {
		n, err := r.store.CountProjectsByEdition(ctx, e.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count projects")
		}
		if n == 0 {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *Reconciler) parseRules(ctx context.Context, raw map[string][]string) []ruleMembers {
	groups := make([]string, 0, len(raw))
	for g := range raw {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	out := make([]ruleMembers, 0, len(groups))
	for _, g := range groups {
		rule, err := ParseGroupRule(g)
		if err != nil {
			r.logger.WarnContext(ctx, "ignoring malformed group rule", "group", g, "error", err)
			continue
		}
		out = append(out, ruleMembers{rule: rule, members: pstrings.DedupeAndTrimLower(raw[g])})
	}
	return out
}

// =============================================================================
// Users
// =============================================================================

func (r *Reconciler) syncUsers(ctx context.Context, scoped []*scopedEdition) error {
	var usernames []string
	for _, se := range scoped {
		for _, rm := range se.rules {
			usernames = append(usernames, rm.members...)
		}
	}
	for _, username := range pstrings.SortedSet(usernames) {
		if err := r.syncUser(ctx, username); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) syncUser(ctx context.Context, username string) error {
	profile, err := r.directory.UserProfile(ctx, username)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	user, err := r.store.FindUserByUsername(ctx, username)
	if errors.Is(err, sentinel.ErrNotFound) {
		user, err = models.NewUser(username, now)
		if err != nil {
			return err
		}
		user.Name = profile.DisplayName
		user.Email = profile.Email
		user.Roles = slices.Clone(profile.Roles)
		if err := r.store.CreateUser(ctx, user); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to create user %q", username))
		}
		r.rec.Count(stats.LayerUser, stats.Added)
		r.rec.Audit(ctx, audit.EventUserCreated, "user", username)
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	var changes []recorder.FieldChange
	if user.Name != profile.DisplayName {
		changes = append(changes, recorder.FieldChange{Field: "name", Before: user.Name, After: profile.DisplayName})
		user.Name = profile.DisplayName
	}
	if user.Email != profile.Email {
		changes = append(changes, recorder.FieldChange{Field: "email", Before: user.Email, After: profile.Email})
		user.Email = profile.Email
	}
	if len(changes) == 0 {
		return nil
	}
	r.rec.Drift(ctx, "user", username, changes)
	user.UpdatedAt = now
	if err := r.store.UpdateUser(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to update user %q", username))
	}
	r.rec.Count(stats.LayerUser, stats.Modified)
	r.rec.Audit(ctx, audit.EventUserUpdated, "user", username, "reason", recorder.Reason(changes))
	return nil
}

// =============================================================================
// Organization membership
// =============================================================================

// assignOrganizations adds rule members to the organizations their rules
// resolve to. Catch-all members and admins go to every active organization.
func (r *Reconciler) assignOrganizations(ctx context.Context, cfg models.Config, scoped []*scopedEdition, rules []ruleMembers) error {
	catchAll := slices.Clone(cfg.AdminUsernames)
	for _, rm := range rules {
		if rm.rule.CatchAll() {
			catchAll = append(catchAll, rm.members...)
		}
	}

	byOrg := make(map[id.OrganizationID][]string)
	for _, se := range scoped {
		for _, rm := range se.rules {
			if !rm.rule.CatchAll() {
				byOrg[se.org.ID] = append(byOrg[se.org.ID], rm.members...)
			}
		}
	}

	orgs, err := r.store.ListOrganizations(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list organizations")
	}
	for _, org := range orgs {
		if !org.Active {
			continue
		}
		members := pstrings.DedupeAndTrim(append(slices.Clone(catchAll), byOrg[org.ID]...))
		if err := r.addMembers(ctx, org, members); err != nil {
			return err
		}
		if err := r.ensureAdminTeam(ctx, cfg, org); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) addMembers(ctx context.Context, org *models.Organization, usernames []string) error {
	var added []string
	for _, u := range usernames {
		if org.AddMember(u) {
			added = append(added, u)
		}
	}
	if len(added) == 0 {
		return nil
	}
	org.UpdatedAt = requestcontext.Now(ctx)
	if err := r.store.UpdateOrganization(ctx, org); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to update members of %q", org.Name))
	}
	for _, u := range added {
		r.rec.Audit(ctx, audit.EventOrganizationMemberAdded, "organization", org.Name, "username", u)
	}
	return nil
}

func (r *Reconciler) ensureAdminTeam(ctx context.Context, cfg models.Config, org *models.Organization) error {
	teams, err := r.store.ListTeams(ctx, org.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list teams")
	}
	now := requestcontext.Now(ctx)
	var admin *models.Team
	for _, t := range teams {
		if t.IsAdmin() {
			admin = t
			break
		}
	}
	if admin == nil {
		admin = models.NewTeam(models.AdminTeamName(org.Name), models.TeamTypeAdmin, org.ID, nil, now)
		admin.Members = slices.Clone(cfg.AdminUsernames)
		if err := r.store.CreateTeam(ctx, admin); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create admin team")
		}
		r.rec.Count(stats.LayerTeam, stats.Added)
		r.rec.Audit(ctx, audit.EventTeamCreated, "team", admin.Name, "organization", org.Name)
		return nil
	}

	var added []string
	for _, u := range cfg.AdminUsernames {
		if admin.AddMember(u) {
			added = append(added, u)
		}
	}
	if len(added) == 0 {
		return nil
	}
	admin.UpdatedAt = now
	if err := r.store.UpdateTeam(ctx, admin); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update admin team")
	}
	for _, u := range added {
		r.rec.Audit(ctx, audit.EventTeamMemberAdded, "team", admin.Name, "username", u)
	}
	return nil
}

// =============================================================================
// Projects
// =============================================================================

// deriveProjects creates one project, with a project team, per edition and
// project code named by a non-wildcard rule.
func (r *Reconciler) deriveProjects(ctx context.Context, scoped []*scopedEdition) error {
	for _, se := range scoped {
		codes := make(map[string][]string)
		var order []string
		for _, rm := range se.rules {
			if rm.rule.Project.Wildcard {
				continue
			}
			code := rm.rule.Project.Name
			if _, seen := codes[code]; !seen {
				order = append(order, code)
			}
			codes[code] = append(codes[code], rm.members...)
		}
		if len(order) == 0 {
			continue
		}

		existing, err := r.store.ListProjects(ctx, se.org.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list projects")
		}
		names := make(map[string]struct{}, len(existing))
		for _, p := range existing {
			names[p.Name] = struct{}{}
		}

		for _, code := range order {
			name := r.projectName(se.edition, code)
			if _, dup := names[name]; dup {
				r.logger.DebugContext(ctx, "project already exists", "organization", se.org.Name, "project", name)
				continue
			}
			if err := r.createProject(ctx, se, name, code, pstrings.DedupeAndTrim(codes[code])); err != nil {
				return err
			}
			names[name] = struct{}{}
		}
	}
	return nil
}

func (r *Reconciler) projectName(e *models.Edition, code string) string {
	if name, ok := r.catalog.ProjectName(e.ShortName, code); ok {
		return name
	}
	return strings.ToUpper(code)
}

func (r *Reconciler) createProject(ctx context.Context, se *scopedEdition, name, code string, members []string) error {
	now := requestcontext.Now(ctx)
	editionID := se.edition.ID
	project, err := models.NewProject(name, code, se.org.ID, &editionID, now)
	if err != nil {
		return err
	}
	team := models.NewTeam(name+" Team", models.TeamTypeProject, se.org.ID, &project.ID, now)
	team.Members = members

	err = r.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.store.CreateProject(ctx, project); err != nil {
			return err
		}
		return r.store.CreateTeam(ctx, team)
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to create project %q", name))
	}
	r.rec.Count(stats.LayerProject, stats.Added)
	r.rec.Count(stats.LayerTeam, stats.Added)
	r.rec.Audit(ctx, audit.EventProjectCreated, "project", name,
		"organization", se.org.Name, "edition", se.edition.ShortName, "reason", "identity rule project "+code)
	r.rec.Audit(ctx, audit.EventTeamCreated, "team", team.Name, "organization", se.org.Name)
	return nil
}
