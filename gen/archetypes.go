package gen

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed archetypes.yaml
var defaultArchetypesYAML []byte

// Archetype is a named stylistic persona used to steer comment generation.
// The taxonomy is data, not logic: it lives in archetypes.yaml and can be
// replaced wholesale without touching code.
type Archetype struct {
	Key         string `yaml:"-"`
	Description string `yaml:"description"`
	Prompt      string `yaml:"prompt"`
}

// Catalog maps subreddits to their archetypes. Keys take the form
// "<subreddit>:<name>", with "generic" archetypes available everywhere.
type Catalog struct {
	byKey map[string]Archetype
	keys  []string
}

// DefaultCatalog loads the embedded archetype taxonomy.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultArchetypesYAML)
}

func ParseCatalog(content []byte) (*Catalog, error) {
	var raw map[string]map[string]Archetype

	err := yaml.Unmarshal(content, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse archetype config: %w", err)
	}

	catalog := &Catalog{byKey: make(map[string]Archetype)}

	for section, archetypes := range raw {
		for name, archetype := range archetypes {
			key := section + ":" + name
			archetype.Key = key
			catalog.byKey[key] = archetype
			catalog.keys = append(catalog.keys, key)
		}
	}

	if len(catalog.byKey) == 0 {
		return nil, fmt.Errorf("archetype config defines no archetypes")
	}

	sort.Strings(catalog.keys)

	return catalog, nil
}

func (c *Catalog) Get(key string) (Archetype, bool) {
	archetype, ok := c.byKey[key]
	return archetype, ok
}

// For returns the archetypes available for a subreddit: its own section plus
// the generic ones.
func (c *Catalog) For(subreddit string) []Archetype {
	subreddit = strings.ToLower(subreddit)

	available := make([]Archetype, 0, len(c.keys))

	for _, key := range c.keys {
		section, _, _ := strings.Cut(key, ":")
		if section == subreddit || section == "generic" {
			available = append(available, c.byKey[key])
		}
	}

	return available
}

// Generic returns only the subreddit-independent archetypes, used as a
// fallback when archetype selection fails.
func (c *Catalog) Generic() []Archetype {
	return c.For("")
}
