// Package partition computes the three-way split between remote state and the
// active and inactive halves of local state. Every reconciliation layer runs
// its keys through here so the classification rules live in one place.
package partition

import (
	"slices"

	dErrors "refsync/pkg/domain-errors"
)

// Result classifies keys for one reconciliation layer.
//
// Every remote key lands in exactly one of Added, Reactivated or Existing.
// Every locally active key with no remote counterpart lands in Inactivated.
// The four slices are pairwise disjoint.
type Result[K comparable] struct {
	Added       []K
	Reactivated []K
	Inactivated []K
	Existing    []K
}

// Empty reports whether the result carries no keys at all.
func (r Result[K]) Empty() bool {
	return len(r.Added)+len(r.Reactivated)+len(r.Inactivated)+len(r.Existing) == 0
}

// Keys partitions remote keys against local active and inactive keys.
// A key present in both local sets is treated as active. Output order follows
// input order and duplicates are dropped.
func Keys[K comparable](remote, localActive, localInactive []K) Result[K] {
	active := toSet(localActive)
	inactive := toSet(localInactive)
	seen := make(map[K]struct{}, len(remote))

	var res Result[K]
	for _, k := range remote {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		switch {
		case contains(active, k):
			res.Existing = append(res.Existing, k)
		case contains(inactive, k):
			res.Reactivated = append(res.Reactivated, k)
		default:
			res.Added = append(res.Added, k)
		}
	}

	done := make(map[K]struct{}, len(localActive))
	for _, k := range localActive {
		if _, dup := done[k]; dup {
			continue
		}
		done[k] = struct{}{}
		if !contains(seen, k) {
			res.Inactivated = append(res.Inactivated, k)
		}
	}
	return res
}

// Pair links a local row to the remote item it matched.
type Pair[L, R any] struct {
	Local  L
	Remote R
}

// MatchResult is the fuzzy counterpart of Result for layers whose identity
// cannot be hashed directly, such as version dates.
type MatchResult[L, R any] struct {
	Added       []R
	Reactivated []Pair[L, R]
	Inactivated []L
	Existing    []Pair[L, R]
}

// Match partitions remote items against local rows using rank, which returns
// 0 for no match and a positive strength otherwise, lower being stronger.
// Matching runs strongest rank first across all remote items, and a local row
// claimed by one remote item is never paired again. A remote item that ties
// between several unclaimed active rows at its best rank indicates duplicated
// local state and is reported as an invariant violation. Inactive rows are
// only considered for items left over once active rows are exhausted.
func Match[L, R any](remote []R, localActive, localInactive []L, rank func(L, R) int) (MatchResult[L, R], error) {
	var res MatchResult[L, R]
	resolved := make([]bool, len(remote))

	activeRanks := rankAll(remote, localActive, rank)
	claimed := make([]bool, len(localActive))
	for _, level := range levels(activeRanks) {
		for ri, r := range remote {
			if resolved[ri] {
				continue
			}
			idx := -1
			for li := range localActive {
				if claimed[li] || activeRanks[ri][li] != level {
					continue
				}
				if idx >= 0 {
					return MatchResult[L, R]{}, dErrors.New(dErrors.CodeInvariantViolation,
						"remote item matches more than one active local row")
				}
				idx = li
			}
			if idx < 0 {
				continue
			}
			claimed[idx] = true
			resolved[ri] = true
			res.Existing = append(res.Existing, Pair[L, R]{Local: localActive[idx], Remote: r})
		}
	}

	inactiveRanks := rankAll(remote, localInactive, rank)
	revived := make([]bool, len(localInactive))
	for _, level := range levels(inactiveRanks) {
		for ri, r := range remote {
			if resolved[ri] {
				continue
			}
			for li, l := range localInactive {
				if revived[li] || inactiveRanks[ri][li] != level {
					continue
				}
				revived[li] = true
				resolved[ri] = true
				res.Reactivated = append(res.Reactivated, Pair[L, R]{Local: l, Remote: r})
				break
			}
		}
	}

	for ri, r := range remote {
		if !resolved[ri] {
			res.Added = append(res.Added, r)
		}
	}
	for li, l := range localActive {
		if !claimed[li] {
			res.Inactivated = append(res.Inactivated, l)
		}
	}
	return res, nil
}

func rankAll[L, R any](remote []R, local []L, rank func(L, R) int) [][]int {
	out := make([][]int, len(remote))
	for ri, r := range remote {
		out[ri] = make([]int, len(local))
		for li, l := range local {
			out[ri][li] = rank(l, r)
		}
	}
	return out
}

// levels returns the distinct positive ranks in ascending order.
func levels(ranks [][]int) []int {
	var out []int
	for _, row := range ranks {
		for _, v := range row {
			if v > 0 && !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
	}
	slices.Sort(out)
	return out
}

func toSet[K comparable](keys []K) map[K]struct{} {
	set := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func contains[K comparable](set map[K]struct{}, k K) bool {
	_, ok := set[k]
	return ok
}
