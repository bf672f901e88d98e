package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddUpdateSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "resources.json")

	reg := New()
	require.NoError(t, reg.Add(Resource{ID: "museumX", DisplayName: "Museum X", RequiredTier: "silver"}))
	require.NoError(t, reg.Add(Resource{ID: "vault", DisplayName: "The Vault", RequiredTier: "platinum"}))
	assert.Error(t, reg.Add(Resource{ID: "museumX", DisplayName: "dup"}))

	require.NoError(t, reg.Update("vault", "requiredTier", "GOLD"))
	require.NoError(t, reg.Update("vault", "tags", "night, vip ,"))
	assert.Error(t, reg.Update("vault", "requiredTier", "diamond"))
	assert.Error(t, reg.Update("vault", "price", "10"))
	assert.Error(t, reg.Update("missing", "displayName", "x"))

	require.NoError(t, reg.Validate())
	require.NoError(t, reg.Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)

	vault, ok := loaded.Find("vault")
	require.True(t, ok)
	assert.Equal(t, "gold", vault.RequiredTier)
	assert.Equal(t, []string{"night", "vip"}, vault.Tags)
	assert.Len(t, loaded.Resources, 2)
}

func TestRegistry_Validate(t *testing.T) {
	tests := []struct {
		name      string
		resources []Resource
		wantErr   string
	}{
		{name: "empty", resources: nil, wantErr: "no resources"},
		{name: "missing id", resources: []Resource{{DisplayName: "x"}}, wantErr: "id"},
		{name: "duplicate", resources: []Resource{{ID: "a", DisplayName: "A"}, {ID: "a", DisplayName: "B"}}, wantErr: "duplicate"},
		{name: "missing name", resources: []Resource{{ID: "a"}}, wantErr: "displayName"},
		{name: "bad tier", resources: []Resource{{ID: "a", DisplayName: "A", RequiredTier: "bronze"}}, wantErr: "requiredTier"},
		{name: "no tier is fine", resources: []Resource{{ID: "a", DisplayName: "A"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&ResourceRegistry{Resources: tt.resources}).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRegistry_Errors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, os.IsNotExist(err))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0644))
	_, err = LoadRegistry(bad)
	assert.Error(t, err)
}
