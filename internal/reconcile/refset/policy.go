package refset

import (
	"slices"

	"refsync/internal/reconcile/models"
)

const (
	// MaxMembers is the largest latest-branch member count a refset may have.
	MaxMembers = 10000
	// LateralityRefsetID is exempt from the size cap.
	LateralityRefsetID = "723264001"
	// DefaultECL selects simple type reference sets.
	DefaultECL = "< 446609009 |Simple type reference set|"
)

// CoreRefsets are maintained by the international edition and never tracked
// as part of another edition.
var CoreRefsets = []string{
	"900000000000509007", // US English language
	"900000000000508004", // GB English language
	"733073007",          // OWL axiom
	"762676003",          // OWL ontology
	"900000000000527005", // association type
	"900000000000489007", // concept inactivation indicator
	"900000000000490003", // description inactivation indicator
	"900000000000497000", // CTV3 simple map
	"900000000000498005", // SNOMED RT identifier simple map
	"447562003",          // ICD-10 complex map
	"446608001",          // ICD-O simple map
	"900000000000534007", // module dependency
	"900000000000538005", // description format
	"900000000000456007", // reference set descriptor
}

// IsCore reports whether refsetID is in the core registry.
func IsCore(refsetID string) bool {
	return slices.Contains(CoreRefsets, refsetID)
}

// Skip reasons, also used as statistics keys.
const (
	SkipCore           = "core refset"
	SkipModule         = "module not in edition"
	SkipSize           = "member count over cap"
	SkipTestingRefset  = "not the testing refset"
	SkipNoModule       = "module unknown"
	SkipBadChangeDates = "member change after latest branch"
)

// Candidate describes one refset sighting subject to the inclusion policy.
type Candidate struct {
	RefsetID    string
	ModuleID    string
	MemberCount int
}

// Include applies the inclusion policy for edition e and returns the skip
// reason when the candidate is excluded.
func Include(cfg models.Config, e *models.Edition, c Candidate) (bool, string) {
	if IsCore(c.RefsetID) && !e.IsInternational() {
		// Testing mode may pull a core refset in unless cores are ignored outright.
		if cfg.IgnoreCoreRefsets || !cfg.TargetsRefset(c.RefsetID) {
			return false, SkipCore
		}
	}
	if cfg.IgnoreCoreRefsets && IsCore(c.RefsetID) {
		return false, SkipCore
	}
	if cfg.TargetsRefset(c.RefsetID) {
		return true, ""
	}
	if c.ModuleID == "" {
		return false, SkipNoModule
	}
	if !e.HasModule(c.ModuleID) {
		return false, SkipModule
	}
	if c.MemberCount > MaxMembers && c.RefsetID != LateralityRefsetID {
		return false, SkipSize
	}
	return true, ""
}
