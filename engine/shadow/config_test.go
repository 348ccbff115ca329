package shadow_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/umbra-go/engine/shadow"
)

func Test_DefaultConfig_Is_Valid(t *testing.T) {
	t.Parallel()

	require.NoError(t, shadow.DefaultConfig().Validate())
}

func Test_Validate_Rejects_Zero_Fields(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*shadow.Config)
	}{
		{name: "TileResolution", mutate: func(c *shadow.Config) { c.TileResolution = 0 }},
		{name: "AtlasTilesW", mutate: func(c *shadow.Config) { c.AtlasTilesW = 0 }},
		{name: "AtlasTilesH", mutate: func(c *shadow.Config) { c.AtlasTilesH = 0 }},
		{name: "AtlasLayers", mutate: func(c *shadow.Config) { c.AtlasLayers = 0 }},
		{name: "VirtualGridSize", mutate: func(c *shadow.Config) { c.VirtualGridSize = 0 }},
		{name: "TableCapacity", mutate: func(c *shadow.Config) { c.TableCapacity = 0 }},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := shadow.DefaultConfig()
			testCase.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func Test_AtlasShapeChanged_Detects_Destructive_Fields(t *testing.T) {
	t.Parallel()

	base := shadow.DefaultConfig()

	shape := base
	shape.AtlasLayers = 8
	assert.True(t, shape.AtlasShapeChanged(base))

	params := base
	params.Smoothing = 3
	params.TableCapacity = 8192
	params.BiasMin = 0.01
	assert.False(t, params.AtlasShapeChanged(base))
}

func Test_LoadConfig_Merges_File_Over_Defaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shadow.yaml")
	content := "tile_resolution: 512\nvirtual_grid_size: 16\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := shadow.LoadConfig(path)
	require.NoError(t, err)

	want := shadow.DefaultConfig()
	want.TileResolution = 512
	want.VirtualGridSize = 16
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func Test_LoadConfig_Rejects_Invalid_Values(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shadow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("table_capacity: 0\n"), 0o600))

	_, err := shadow.LoadConfig(path)
	assert.Error(t, err)
}

func Test_LoadConfig_Reports_Missing_File(t *testing.T) {
	t.Parallel()

	_, err := shadow.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "loading shadow config")
}

func Test_LoadConfig_Reports_Malformed_YAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shadow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tile_resolution: [not a number\n"), 0o600))

	_, err := shadow.LoadConfig(path)
	assert.ErrorContains(t, err, "parsing shadow config")
}
