// Package fetcher reads remote state from the terminology server and the
// identity provider and returns it as plain, normalized structures. It never
// touches the local store.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"refsync/internal/reconcile/models"
	"refsync/internal/reconcile/ports"
	"refsync/internal/remote/identity"
	"refsync/internal/remote/terminology"
	"refsync/pkg/requestcontext"
)

// RulePrefix selects identity-provider groups that encode membership rules.
const RulePrefix = "rt2-"

// MinSupportedVersionDate is the earliest dated branch considered.
var MinSupportedVersionDate = time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC)

var datedBranchSuffix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// RemoteState is the filtered code-system view a run reconciles against.
type RemoteState struct {
	CodeSystems []terminology.CodeSystem
	// EditionsByOrganization maps organization name to edition short names.
	EditionsByOrganization map[string][]string
}

// OrganizationNames returns the remote organization names in sorted order.
func (r RemoteState) OrganizationNames() []string {
	names := make([]string, 0, len(r.EditionsByOrganization))
	for n := range r.EditionsByOrganization {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ShortNames returns the short names of every filtered code system.
func (r RemoteState) ShortNames() []string {
	out := make([]string, 0, len(r.CodeSystems))
	for _, cs := range r.CodeSystems {
		out = append(out, cs.ShortName)
	}
	return out
}

// CodeSystem looks up a filtered code system by short name.
func (r RemoteState) CodeSystem(shortName string) (terminology.CodeSystem, bool) {
	for _, cs := range r.CodeSystems {
		if cs.ShortName == shortName {
			return cs, true
		}
	}
	return terminology.CodeSystem{}, false
}

// DatedBranch is a published version branch of an edition.
type DatedBranch struct {
	Date time.Time
	Path string
}

type Fetcher struct {
	terminology ports.Terminology
	identity    ports.IdentityProvider
	cache       ports.ConceptCache
	logger      *slog.Logger
	location    *time.Location
}

type Option func(*Fetcher)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

func WithConceptCache(c ports.ConceptCache) Option {
	return func(f *Fetcher) {
		f.cache = c
	}
}

// WithLocation sets the zone in which branch dates are interpreted.
func WithLocation(loc *time.Location) Option {
	return func(f *Fetcher) {
		f.location = loc
	}
}

func New(term ports.Terminology, idp ports.IdentityProvider, opts ...Option) (*Fetcher, error) {
	if term == nil {
		return nil, fmt.Errorf("terminology client is required")
	}
	f := &Fetcher{
		terminology: term,
		identity:    idp,
		logger:      slog.Default(),
		location:    time.UTC,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// CodeSystems fetches and filters the remote code systems for cfg.
func (f *Fetcher) CodeSystems(ctx context.Context, cfg models.Config) (RemoteState, error) {
	all, err := f.terminology.CodeSystems(ctx)
	if err != nil {
		return RemoteState{}, fmt.Errorf("fetch code systems: %w", err)
	}
	state := RemoteState{EditionsByOrganization: make(map[string][]string)}
	for _, cs := range all {
		if !keepCodeSystem(cs, cfg) {
			continue
		}
		org := cs.OrganizationName()
		if org == "" {
			f.logger.WarnContext(ctx, "code system has no owner or name, skipping", "short_name", cs.ShortName)
			continue
		}
		state.CodeSystems = append(state.CodeSystems, cs)
		state.EditionsByOrganization[org] = append(state.EditionsByOrganization[org], cs.ShortName)
	}
	f.logger.InfoContext(ctx, "fetched code systems",
		"remote", len(all),
		"kept", len(state.CodeSystems),
		"organizations", len(state.EditionsByOrganization),
	)
	return state, nil
}

func keepCodeSystem(cs terminology.CodeSystem, cfg models.Config) bool {
	if cs.ShortName == "" || cs.BranchPath == "" {
		return false
	}
	if cfg.Testing() {
		return cs.ShortName == cfg.TestingEdition
	}
	if !cfg.Production && len(cfg.NonProductionEditions) > 0 {
		return slices.Contains(cfg.NonProductionEditions, cs.ShortName)
	}
	return true
}

// DatedBranches lists the edition's version branches in ascending date order.
// Only children named yyyy-MM-dd dated after MinSupportedVersionDate and
// before now are kept.
func (f *Fetcher) DatedBranches(ctx context.Context, edition *models.Edition) ([]DatedBranch, error) {
	children, err := f.terminology.BranchChildren(ctx, edition.BranchPath)
	if err != nil {
		if f.tolerate(ctx, edition, "branch children", err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list branches of %s: %w", edition.BranchPath, err)
	}
	now := requestcontext.Now(ctx)
	var out []DatedBranch
	for _, child := range children {
		suffix := child.Path[strings.LastIndex(child.Path, "/")+1:]
		if !datedBranchSuffix.MatchString(suffix) {
			continue
		}
		d, err := time.ParseInLocation(time.DateOnly, suffix, f.location)
		if err != nil {
			continue
		}
		if !d.After(MinSupportedVersionDate) || !d.Before(now) {
			continue
		}
		out = append(out, DatedBranch{Date: d, Path: child.Path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// RefsetMembership fetches active membership on branch for the refsets
// selected by ecl.
func (f *Fetcher) RefsetMembership(ctx context.Context, edition *models.Edition, branch, ecl string) (*terminology.RefsetMembership, error) {
	m, err := f.terminology.RefsetMembership(ctx, branch, ecl)
	if err != nil {
		if f.tolerate(ctx, edition, "refset membership", err) {
			return &terminology.RefsetMembership{}, nil
		}
		return nil, fmt.Errorf("refset membership on %s: %w", branch, err)
	}
	return m, nil
}

// ModuleID resolves the module of conceptID on branch, consulting the cache first.
func (f *Fetcher) ModuleID(ctx context.Context, edition *models.Edition, branch, conceptID string) (string, error) {
	c, err := f.concept(ctx, branch, conceptID)
	if err != nil {
		if f.tolerate(ctx, edition, "concept", err) {
			return "", nil
		}
		return "", fmt.Errorf("concept %s on %s: %w", conceptID, branch, err)
	}
	return c.ModuleID, nil
}

func (f *Fetcher) concept(ctx context.Context, branch, conceptID string) (*terminology.ConceptSummary, error) {
	if f.cache != nil {
		if c, ok := f.cache.Get(ctx, branch, conceptID); ok {
			return c, nil
		}
	}
	c, err := f.terminology.Concept(ctx, branch, conceptID)
	if err != nil {
		return nil, err
	}
	if f.cache != nil {
		f.cache.Set(ctx, branch, conceptID, c)
	}
	return c, nil
}

// LatestMemberChange returns the most recent member effective time of
// refsetID on branch, or nil when none is published.
func (f *Fetcher) LatestMemberChange(ctx context.Context, edition *models.Edition, branch, refsetID string) (*time.Time, error) {
	t, err := f.terminology.LatestMemberChange(ctx, branch, refsetID)
	if err != nil {
		if f.tolerate(ctx, edition, "member changes", err) {
			return nil, nil
		}
		return nil, fmt.Errorf("member changes of %s on %s: %w", refsetID, branch, err)
	}
	if t == nil {
		return nil, nil
	}
	local := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, f.location)
	return &local, nil
}

// RefsetName resolves the display name of a refset concept. The embedded
// preferred term wins; otherwise descriptions are walked for the edition's
// language preferences.
func (f *Fetcher) RefsetName(ctx context.Context, edition *models.Edition, branch string, summary terminology.ConceptSummary) (string, error) {
	if pt := summary.PreferredTerm(); pt != "" {
		return pt, nil
	}
	detail, err := f.terminology.BrowserConcept(ctx, branch, summary.ConceptID)
	if err != nil {
		if f.tolerate(ctx, edition, "browser concept", err) {
			return "", nil
		}
		return "", fmt.Errorf("browser concept %s on %s: %w", summary.ConceptID, branch, err)
	}
	return PreferredName(detail, edition.DefaultLanguageCode, edition.DefaultLanguageRefsets), nil
}

// PreferredName picks a display term from detail: the synonym preferred in one
// of langRefsets, in langCode when possible; then any preferred synonym; then
// the FSN.
func PreferredName(detail *terminology.ConceptDetail, langCode string, langRefsets []string) string {
	var inLang, anyLang, fsn string
	for _, d := range detail.Descriptions {
		if !d.Active {
			continue
		}
		if d.Type == terminology.DescriptionTypeFSN {
			if fsn == "" {
				fsn = d.Term
			}
			continue
		}
		if d.Type != terminology.DescriptionTypeSynonym || !preferredIn(d, langRefsets) {
			continue
		}
		if inLang == "" && (langCode == "" || d.Lang == langCode) {
			inLang = d.Term
		}
		if anyLang == "" {
			anyLang = d.Term
		}
	}
	switch {
	case inLang != "":
		return inLang
	case anyLang != "":
		return anyLang
	case fsn != "":
		return fsn
	case detail.FSN != nil:
		return detail.FSN.Term
	}
	return ""
}

func preferredIn(d terminology.Description, langRefsets []string) bool {
	if len(langRefsets) == 0 {
		for _, a := range d.AcceptabilityMap {
			if a == terminology.AcceptabilityPreferred {
				return true
			}
		}
		return false
	}
	for _, r := range langRefsets {
		if d.AcceptabilityMap[r] == terminology.AcceptabilityPreferred {
			return true
		}
	}
	return false
}

// IdentityRules returns rule group name → member usernames.
func (f *Fetcher) IdentityRules(ctx context.Context) (map[string][]string, error) {
	if f.identity == nil {
		return map[string][]string{}, nil
	}
	rules, err := f.identity.GroupMembers(ctx, RulePrefix)
	if err != nil {
		return nil, fmt.Errorf("fetch identity rules: %w", err)
	}
	return rules, nil
}

func (f *Fetcher) UserProfile(ctx context.Context, username string) (*identity.Profile, error) {
	if f.identity == nil {
		return nil, fmt.Errorf("identity provider is not configured")
	}
	p, err := f.identity.User(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", username, err)
	}
	return p, nil
}

// tolerate reports whether err may be treated as "no data": only editions
// whose primary branch is not MAIN-rooted get that leniency.
func (f *Fetcher) tolerate(ctx context.Context, edition *models.Edition, what string, err error) bool {
	if edition == nil || edition.IsMainRooted() {
		return false
	}
	f.logger.WarnContext(ctx, "remote call failed on non-primary branch, treating as no data",
		"edition", edition.ShortName,
		"branch", edition.BranchPath,
		"call", what,
		"error", err,
	)
	return true
}
