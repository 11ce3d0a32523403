package models

// Config is the execution mode of one reconciliation run. It is built once by
// the entry point and passed by value to every stage.
type Config struct {
	Production        bool
	PerVersionSync    bool
	IgnoreCoreRefsets bool

	// TestingEdition restricts the run to a single edition short name.
	TestingEdition string
	// TestingRefset restricts refset discovery to a single refset id.
	TestingRefset string

	// NonProductionEditions limits non-production runs to these short names
	// when non-empty.
	NonProductionEditions []string
	// AdminUsernames are added to every organization and admin team.
	AdminUsernames []string
}

// Testing reports whether the run is restricted to a single edition.
func (c Config) Testing() bool {
	return c.TestingEdition != ""
}

// TargetsRefset reports whether testing mode singles out refsetID.
func (c Config) TargetsRefset(refsetID string) bool {
	return c.Testing() && c.TestingRefset != "" && c.TestingRefset == refsetID
}
