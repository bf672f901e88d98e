// Package catalog resolves resource ids to display names and tier gates.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"pgt-ticketing/internal/common/config"
	"pgt-ticketing/internal/tier"
	"pgt-ticketing/pkg/registry"
)

// Resource is a gated venue. HasTier is false when any holder above the
// minimum balance may enter.
type Resource struct {
	ID           string
	DisplayName  string
	RequiredTier tier.Tier
	HasTier      bool
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	resources map[string]Resource
}

// Load merges config resources with the optional registry file; registry
// entries win on id collisions.
func Load(cfg *config.Config) (*Catalog, error) {
	var reg *registry.ResourceRegistry
	if cfg.Catalog.RegistryPath != "" {
		loaded, err := registry.LoadRegistry(cfg.Catalog.RegistryPath)
		if err != nil {
			return nil, fmt.Errorf("load resource registry: %w", err)
		}
		reg = loaded
	}
	return New(cfg.Access.Resources, reg)
}

func New(fromConfig map[string]config.ResourceConfig, reg *registry.ResourceRegistry) (*Catalog, error) {
	c := &Catalog{resources: make(map[string]Resource)}

	for id, rc := range fromConfig {
		if err := c.put(id, rc.DisplayName, rc.RequiredTier); err != nil {
			return nil, err
		}
	}

	if reg != nil {
		for _, r := range reg.Resources {
			if err := c.put(r.ID, r.DisplayName, r.RequiredTier); err != nil {
				return nil, err
			}
		}
	}

	return c, nil
}

// NormalizeID is the canonical form of a resource id. Config keys arrive
// lowercased, so every id is compared lowercased.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func (c *Catalog) put(id, displayName, requiredTier string) error {
	id = NormalizeID(id)
	if id == "" {
		return fmt.Errorf("resource with empty id")
	}
	res := Resource{ID: id, DisplayName: displayName}
	if res.DisplayName == "" {
		res.DisplayName = id
	}
	if requiredTier != "" {
		t, err := tier.ParseTier(requiredTier)
		if err != nil {
			return fmt.Errorf("resource %s: %w", id, err)
		}
		res.RequiredTier = t
		res.HasTier = true
	}
	c.resources[id] = res
	return nil
}

func (c *Catalog) Lookup(resourceID string) (Resource, bool) {
	res, ok := c.resources[NormalizeID(resourceID)]
	return res, ok
}

// RequiredTier returns the gate for resourceID; false means no tier gate.
func (c *Catalog) RequiredTier(resourceID string) (tier.Tier, bool) {
	res, ok := c.resources[NormalizeID(resourceID)]
	if !ok || !res.HasTier {
		return tier.Base, false
	}
	return res.RequiredTier, true
}

// DisplayName falls back to the id for unknown resources.
func (c *Catalog) DisplayName(resourceID string) string {
	if res, ok := c.resources[NormalizeID(resourceID)]; ok {
		return res.DisplayName
	}
	return resourceID
}

func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.resources))
	for id := range c.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
