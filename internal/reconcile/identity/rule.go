// Package identity derives users, organization membership and projects from
// identity-provider group rules.
package identity

import (
	"strings"
	"unicode"

	dErrors "refsync/pkg/domain-errors"
)

const (
	rulePrefix = "rt2"
	wildcard   = "all"
)

// Scope is one segment of a group rule: either the wildcard or a named token.
type Scope struct {
	Wildcard bool
	Name     string
}

// Matches reports whether the scope selects any of the candidate names.
// Candidates are normalized before comparison.
func (s Scope) Matches(candidates ...string) bool {
	if s.Wildcard {
		return true
	}
	for _, c := range candidates {
		if normalize(c) == s.Name {
			return true
		}
	}
	return false
}

func (s Scope) String() string {
	if s.Wildcard {
		return wildcard
	}
	return s.Name
}

// GroupRule is a parsed group name of the form
// rt2-<organization>-<edition>-<project>-<role>.
type GroupRule struct {
	Group        string
	Organization Scope
	Edition      Scope
	Project      Scope
	Role         string
}

// ParseGroupRule parses a group name. Tokens are normalized to lowercase
// letters and digits.
func ParseGroupRule(group string) (GroupRule, error) {
	parts := strings.Split(group, "-")
	if len(parts) != 5 || !strings.EqualFold(parts[0], rulePrefix) {
		return GroupRule{}, dErrors.Newf(dErrors.CodeValidation, "group %q is not a %s-org-edition-project-role rule", group, rulePrefix)
	}
	scopes := make([]Scope, 3)
	for i, token := range parts[1:4] {
		n := normalize(token)
		if n == "" {
			return GroupRule{}, dErrors.Newf(dErrors.CodeValidation, "group %q has an empty segment", group)
		}
		scopes[i] = Scope{Wildcard: n == wildcard, Name: n}
		if scopes[i].Wildcard {
			scopes[i].Name = ""
		}
	}
	role := normalize(parts[4])
	if role == "" {
		return GroupRule{}, dErrors.Newf(dErrors.CodeValidation, "group %q has no role", group)
	}
	return GroupRule{
		Group:        group,
		Organization: scopes[0],
		Edition:      scopes[1],
		Project:      scopes[2],
		Role:         role,
	}, nil
}

// MatchesOrganization reports whether the rule applies to the organization.
func (g GroupRule) MatchesOrganization(name string) bool {
	return g.Organization.Matches(name)
}

// MatchesEdition reports whether the rule applies to the edition. The short
// name matches with or without its "SNOMEDCT-" prefix.
func (g GroupRule) MatchesEdition(shortName string) bool {
	trimmed := shortName
	if i := strings.IndexByte(shortName, '-'); i > 0 && strings.EqualFold(shortName[:i], "snomedct") {
		trimmed = shortName[i+1:]
	}
	return g.Edition.Matches(shortName, trimmed)
}

// CatchAll reports whether the rule applies to every organization.
func (g GroupRule) CatchAll() bool {
	return g.Organization.Wildcard && g.Edition.Wildcard
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
