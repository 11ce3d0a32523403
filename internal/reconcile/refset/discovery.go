package refset

import (
	"context"
	"sort"
	"time"

	"refsync/internal/reconcile/fetcher"
	"refsync/internal/reconcile/models"
	"refsync/internal/remote/terminology"
)

// Version is one refset version discovered on a dated branch.
type Version struct {
	RefsetID string
	Date     time.Time
	Branch   string
	ModuleID string
	Name     string
}

// discover walks the edition's dated branches oldest first and returns the
// versions to reconcile, grouped by refset id in discovery order.
func (r *Reconciler) discover(ctx context.Context, cfg models.Config, e *models.Edition, branches []fetcher.DatedBranch) (map[string][]Version, []string, error) {
	latest := branches[len(branches)-1]
	latestMembership, err := r.source.RefsetMembership(ctx, e, latest.Path, r.ecl)
	if err != nil {
		return nil, nil, err
	}
	counts := latestMembership.MemberCountsByReferenceSet

	type sighting struct {
		moduleID string
	}
	last := make(map[string]sighting)
	out := make(map[string][]Version)
	var order []string

	for _, b := range branches {
		membership := latestMembership
		if b.Path != latest.Path {
			if membership, err = r.source.RefsetMembership(ctx, e, b.Path, r.ecl); err != nil {
				return nil, nil, err
			}
		}
		for _, refsetID := range sortedRefsetIDs(membership) {
			if cfg.TestingRefset != "" && refsetID != cfg.TestingRefset {
				continue
			}
			summary := membership.ReferenceSets[refsetID]
			if summary.ConceptID == "" {
				summary.ConceptID = refsetID
			}
			moduleID := summary.ModuleID
			if moduleID == "" {
				if moduleID, err = r.source.ModuleID(ctx, e, b.Path, refsetID); err != nil {
					return nil, nil, err
				}
			}
			ok, reason := Include(cfg, e, Candidate{RefsetID: refsetID, ModuleID: moduleID, MemberCount: counts[refsetID]})
			if !ok {
				r.rec.Skip(ctx, reason, "edition", e.ShortName, "refset_id", refsetID, "branch", b.Path)
				continue
			}

			prev, seen := last[refsetID]
			last[refsetID] = sighting{moduleID: moduleID}
			keep := !seen || prev.moduleID != moduleID || cfg.PerVersionSync
			if !keep {
				if keep, err = r.hasChanges(ctx, e, b, refsetID, branches); err != nil {
					return nil, nil, err
				}
			}
			if !keep {
				continue
			}

			name, err := r.source.RefsetName(ctx, e, b.Path, summary)
			if err != nil {
				return nil, nil, err
			}
			if _, known := out[refsetID]; !known {
				order = append(order, refsetID)
			}
			out[refsetID] = append(out[refsetID], Version{
				RefsetID: refsetID,
				Date:     b.Date,
				Branch:   b.Path,
				ModuleID: moduleID,
				Name:     name,
			})
		}
	}
	return out, order, nil
}

// hasChanges reports whether refsetID has member changes published with the
// version on branch b. The latest member change date is snapped to the
// closest branch date not after it; the version has changes when that is b.
func (r *Reconciler) hasChanges(ctx context.Context, e *models.Edition, b fetcher.DatedBranch, refsetID string, branches []fetcher.DatedBranch) (bool, error) {
	changed, err := r.source.LatestMemberChange(ctx, e, b.Path, refsetID)
	if err != nil || changed == nil {
		return false, err
	}
	snapped, ok := SnapToBranch(*changed, branches)
	if !ok {
		return false, nil
	}
	if snapped.Path == "" {
		r.rec.Skip(ctx, SkipBadChangeDates,
			"edition", e.ShortName, "refset_id", refsetID, "branch", b.Path, "member_change", changed.Format(time.DateOnly))
		return false, nil
	}
	return snapped.Path == b.Path, nil
}

// SnapToBranch returns the latest branch dated on or before t. ok is false
// when t precedes every branch. A t after the last branch day returns a zero
// branch with ok true; such dates are treated as bad content.
func SnapToBranch(t time.Time, branches []fetcher.DatedBranch) (fetcher.DatedBranch, bool) {
	if len(branches) == 0 {
		return fetcher.DatedBranch{}, false
	}
	last := branches[len(branches)-1]
	if t.After(last.Date.AddDate(0, 0, 1).Add(-time.Nanosecond)) {
		return fetcher.DatedBranch{}, true
	}
	i := sort.Search(len(branches), func(i int) bool { return branches[i].Date.After(t) })
	if i == 0 {
		return fetcher.DatedBranch{}, false
	}
	return branches[i-1], true
}

func sortedRefsetIDs(m *terminology.RefsetMembership) []string {
	ids := make([]string, 0, len(m.ReferenceSets))
	for id := range m.ReferenceSets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
