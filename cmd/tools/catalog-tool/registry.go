package main

import (
	"fmt"
	"os"
	"strings"

	"pgt-ticketing/pkg/registry"
)

const defaultRegistryPath = "configs/resource-registry.json"

func addResource(path string, res registry.Resource, tags string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		// If file doesn't exist, create new registry
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = registry.New()
	}

	if err := reg.Add(registry.Resource{ID: res.ID, DisplayName: res.DisplayName}); err != nil {
		return err
	}
	// Optional fields go through Update so tiers and tags are normalised.
	optional := map[string]string{
		"description":  res.Description,
		"requiredTier": res.RequiredTier,
		"location":     res.Location,
		"tags":         tags,
	}
	for field, value := range optional {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if err := reg.Update(res.ID, field, value); err != nil {
			return err
		}
	}

	return reg.Save(path)
}

func updateResource(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Update(id, field, value); err != nil {
		return err
	}
	return reg.Save(path)
}

func validateRegistry(path string) (int, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return 0, fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return 0, err
	}
	return len(reg.Resources), nil
}
