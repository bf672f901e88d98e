// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var validTiers = map[string]bool{
	"":         true,
	"base":     true,
	"silver":   true,
	"gold":     true,
	"platinum": true,
}

func LoadRegistry(path string) (*ResourceRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ResourceRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &reg, nil
}

// New returns an empty registry stamped with the current time.
func New() *ResourceRegistry {
	return &ResourceRegistry{
		Version:     "1.0.0",
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Resources:   []Resource{},
	}
}

// Find returns the resource with id, if present.
func (r *ResourceRegistry) Find(id string) (*Resource, bool) {
	for i := range r.Resources {
		if r.Resources[i].ID == id {
			return &r.Resources[i], true
		}
	}
	return nil, false
}

// Add appends res, refusing duplicates.
func (r *ResourceRegistry) Add(res Resource) error {
	if _, exists := r.Find(res.ID); exists {
		return fmt.Errorf("resource with ID %s already exists", res.ID)
	}
	r.Resources = append(r.Resources, res)
	r.touch()
	return nil
}

// Update sets one named field on an existing resource.
func (r *ResourceRegistry) Update(id, field, value string) error {
	res, ok := r.Find(id)
	if !ok {
		return fmt.Errorf("resource with ID %s not found", id)
	}

	switch field {
	case "displayName":
		res.DisplayName = value
	case "description":
		res.Description = value
	case "requiredTier":
		value = strings.ToLower(value)
		if !validTiers[value] {
			return fmt.Errorf("invalid requiredTier %q", value)
		}
		res.RequiredTier = value
	case "location":
		res.Location = value
	case "tags":
		res.Tags = splitTags(value)
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	r.touch()
	return nil
}

// Validate checks ids are present and unique and tiers are known.
func (r *ResourceRegistry) Validate() error {
	if len(r.Resources) == 0 {
		return fmt.Errorf("registry contains no resources")
	}

	ids := make(map[string]bool)
	for _, res := range r.Resources {
		if res.ID == "" {
			return fmt.Errorf("resource missing required field: id")
		}
		if ids[res.ID] {
			return fmt.Errorf("duplicate resource ID: %s", res.ID)
		}
		ids[res.ID] = true

		if res.DisplayName == "" {
			return fmt.Errorf("resource %s missing required field: displayName", res.ID)
		}
		if !validTiers[strings.ToLower(res.RequiredTier)] {
			return fmt.Errorf("resource %s has invalid requiredTier %q", res.ID, res.RequiredTier)
		}
	}
	return nil
}

// Save writes the registry as indented JSON, creating parent directories.
func (r *ResourceRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func (r *ResourceRegistry) touch() {
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
}

func splitTags(value string) []string {
	var tags []string
	for _, t := range strings.Split(value, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
