package identity

// Group is a named identity-provider group with its direct members.
type Group struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type groupPage struct {
	Groups []Group `json:"groups"`
	// Next is the offset of the next page; zero when exhausted.
	Next int `json:"next"`
}

// Profile is the canonical identity of a user.
type Profile struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Active      bool     `json:"active"`
}
