// pkg/registry/schema.go
package registry

// ResourceRegistry is the on-disk catalog of gated resources.
type ResourceRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Resources   []Resource `json:"resources"`
}

// Resource is one gated venue or exhibition. RequiredTier is one of
// base, silver, gold, platinum; empty means any holder above the minimum.
type Resource struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"displayName"`
	Description  string   `json:"description,omitempty"`
	RequiredTier string   `json:"requiredTier,omitempty"`
	Location     string   `json:"location,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}
