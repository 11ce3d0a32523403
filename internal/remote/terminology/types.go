package terminology

import (
	"strings"
	"time"
)

// CodeSystem describes one edition as published by the terminology server.
type CodeSystem struct {
	Name                         string   `json:"name"`
	ShortName                    string   `json:"shortName"`
	BranchPath                   string   `json:"branchPath"`
	Owner                        string   `json:"owner"`
	MaintainerType               string   `json:"maintainerType"`
	DefaultLanguageCode          string   `json:"defaultLanguageCode"`
	DefaultLanguageReferenceSets []string `json:"defaultLanguageReferenceSets"`
	Modules                      []Module `json:"modules"`
}

type Module struct {
	ConceptID string `json:"conceptId"`
}

// OrganizationName is the owner when present, otherwise the code system name.
func (c CodeSystem) OrganizationName() string {
	if owner := strings.TrimSpace(c.Owner); owner != "" {
		return owner
	}
	return strings.TrimSpace(c.Name)
}

func (c CodeSystem) ModuleIDs() []string {
	ids := make([]string, 0, len(c.Modules))
	for _, m := range c.Modules {
		if m.ConceptID != "" {
			ids = append(ids, m.ConceptID)
		}
	}
	return ids
}

type codeSystemPage struct {
	Items []CodeSystem `json:"items"`
}

// BranchChild is one entry of a branch's child listing.
type BranchChild struct {
	Path string `json:"path"`
}

// Term is a term with its language, as embedded for preferred terms.
type Term struct {
	Term string `json:"term"`
	Lang string `json:"lang"`
}

// ConceptSummary is the minimal concept view used for module and name lookup.
type ConceptSummary struct {
	ConceptID string `json:"conceptId"`
	ModuleID  string `json:"moduleId"`
	Active    bool   `json:"active"`
	PT        *Term  `json:"pt,omitempty"`
	FSN       *Term  `json:"fsn,omitempty"`
}

// PreferredTerm returns the embedded preferred term, if any.
func (c ConceptSummary) PreferredTerm() string {
	if c.PT == nil {
		return ""
	}
	return c.PT.Term
}

const (
	DescriptionTypeSynonym = "SYNONYM"
	DescriptionTypeFSN     = "FSN"

	AcceptabilityPreferred  = "PREFERRED"
	AcceptabilityAcceptable = "ACCEPTABLE"
)

type Description struct {
	Term             string            `json:"term"`
	Lang             string            `json:"lang"`
	Type             string            `json:"type"`
	Active           bool              `json:"active"`
	AcceptabilityMap map[string]string `json:"acceptabilityMap"`
}

// ConceptDetail is the browser view of a concept with its descriptions.
type ConceptDetail struct {
	ConceptSummary
	Descriptions []Description `json:"descriptions"`
}

// RefsetMembership is the aggregated member listing of a branch, keyed by
// reference set concept id.
type RefsetMembership struct {
	MemberCountsByReferenceSet map[string]int            `json:"memberCountsByReferenceSet"`
	ReferenceSets              map[string]ConceptSummary `json:"referenceSets"`
}

// Member is a single reference set member row.
type Member struct {
	MemberID      string `json:"memberId"`
	Active        bool   `json:"active"`
	EffectiveTime string `json:"effectiveTime"`
	ModuleID      string `json:"moduleId"`
	RefsetID      string `json:"refsetId"`
}

// EffectiveDate parses EffectiveTime (yyyyMMdd). Unpublished members have none.
func (m Member) EffectiveDate() (time.Time, bool) {
	if m.EffectiveTime == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(effectiveTimeLayout, m.EffectiveTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

const effectiveTimeLayout = "20060102"

type MemberPage struct {
	Items []Member `json:"items"`
	Total int      `json:"total"`
}
