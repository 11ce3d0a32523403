// Package catalog holds project metadata that the terminology server does not
// publish: which project owns a refset, human project names for identity
// provider project codes, and refset narratives.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Catalog struct {
	Version    int               `yaml:"version"`
	Projects   []Project         `yaml:"projects"`
	Narratives map[string]string `yaml:"narratives"`
}

type Project struct {
	Edition string   `yaml:"edition"`
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	Refsets []string `yaml:"refsets"`
}

// Empty returns a catalog with no entries.
func Empty() *Catalog {
	return &Catalog{Version: 1, Narratives: map[string]string{}}
}

func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if c.Version != 1 {
		return nil, errors.New("catalog: unsupported version")
	}
	seen := make(map[string]struct{}, len(c.Projects))
	for i, p := range c.Projects {
		if p.Edition == "" || p.Code == "" || p.Name == "" {
			return nil, fmt.Errorf("catalog: project %d needs edition, code and name", i)
		}
		k := projectKey(p.Edition, p.Code)
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("catalog: duplicate project %s/%s", p.Edition, p.Code)
		}
		seen[k] = struct{}{}
	}
	if c.Narratives == nil {
		c.Narratives = map[string]string{}
	}
	return &c, nil
}

// Load reads a catalog file. An empty path yields an empty catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Empty(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func projectKey(edition, code string) string {
	return strings.ToLower(edition) + "/" + strings.ToLower(code)
}

// ProjectName resolves the display name of an identity-provider project code
// within an edition. Codes compare case-insensitively.
func (c *Catalog) ProjectName(edition, code string) (string, bool) {
	want := projectKey(edition, code)
	for _, p := range c.Projects {
		if projectKey(p.Edition, p.Code) == want {
			return p.Name, true
		}
	}
	return "", false
}

// ProjectForRefset returns the project that owns refsetID in edition.
func (c *Catalog) ProjectForRefset(edition, refsetID string) (Project, bool) {
	for _, p := range c.Projects {
		if !strings.EqualFold(p.Edition, edition) {
			continue
		}
		for _, r := range p.Refsets {
			if r == refsetID {
				return p, true
			}
		}
	}
	return Project{}, false
}

func (c *Catalog) Narrative(refsetID string) string {
	return c.Narratives[refsetID]
}
