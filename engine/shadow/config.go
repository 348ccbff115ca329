package shadow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all shadow paging settings. Atlas-shape fields (tile resolution,
// grid dimensions, layer count) are destructive to change at runtime: applying
// them through ShadowManager.Reconfigure rebuilds the atlas texture and clears
// the page cache. The remaining fields only rewrite the GPU parameter block.
type Config struct {
	// TileResolution is the usable tile content size in pixels (guard border excluded).
	TileResolution uint32 `yaml:"tile_resolution"`
	// AtlasTilesW is the atlas grid width in tiles per layer.
	AtlasTilesW uint32 `yaml:"atlas_tiles_w"`
	// AtlasTilesH is the atlas grid height in tiles per layer.
	AtlasTilesH uint32 `yaml:"atlas_tiles_h"`
	// AtlasLayers is the number of texture array layers.
	AtlasLayers uint32 `yaml:"atlas_layers"`
	// VirtualGridSize is the per-light virtual grid dimension: each light face is
	// subdivided into VirtualGridSize² independently paged cells.
	VirtualGridSize uint32 `yaml:"virtual_grid_size"`
	// Smoothing is the PCF sample radius used by the sampling shader.
	Smoothing uint32 `yaml:"smoothing"`
	// TableCapacity is the fixed GPU page table entry count. Keys hash into the
	// table modulo this capacity, so undersizing it causes silent collisions.
	TableCapacity uint32 `yaml:"table_capacity"`

	// BiasMin and BiasSlope control depth comparison bias for directional and
	// spot light shadows.
	BiasMin   float32 `yaml:"bias_min"`
	BiasSlope float32 `yaml:"bias_slope"`
	// PointBiasMin and PointBiasSlope control depth comparison bias for point
	// light shadows, which need larger values due to the 90° face projections.
	PointBiasMin   float32 `yaml:"point_bias_min"`
	PointBiasSlope float32 `yaml:"point_bias_slope"`
}

// DefaultConfig returns a Config with sensible default values.
//
// Returns:
//   - Config: the default configuration
func DefaultConfig() Config {
	return Config{
		TileResolution:  256,
		AtlasTilesW:     8,
		AtlasTilesH:     8,
		AtlasLayers:     4,
		VirtualGridSize: 8,
		Smoothing:       1,
		TableCapacity:   4096,
		BiasMin:         0.0005,
		BiasSlope:       0.002,
		PointBiasMin:    0.001,
		PointBiasSlope:  0.004,
	}
}

// Validate checks the configuration for values the paging subsystem cannot
// operate with.
//
// Returns:
//   - error: the first validation failure found, or nil
func (c Config) Validate() error {
	if c.TileResolution == 0 {
		return fmt.Errorf("shadow config: tile_resolution must be positive")
	}
	if c.AtlasTilesW == 0 || c.AtlasTilesH == 0 {
		return fmt.Errorf("shadow config: atlas grid dimensions must be positive")
	}
	if c.AtlasLayers == 0 {
		return fmt.Errorf("shadow config: atlas_layers must be positive")
	}
	if c.VirtualGridSize == 0 {
		return fmt.Errorf("shadow config: virtual_grid_size must be positive")
	}
	if c.TableCapacity == 0 {
		return fmt.Errorf("shadow config: table_capacity must be positive")
	}
	return nil
}

// AtlasShapeChanged reports whether applying this configuration over prev
// requires a destructive atlas rebuild (texture recreation plus cache clear).
//
// Parameters:
//   - prev: the previously applied configuration
//
// Returns:
//   - bool: true if any atlas-shape field differs
func (c Config) AtlasShapeChanged(prev Config) bool {
	return c.TileResolution != prev.TileResolution ||
		c.AtlasTilesW != prev.AtlasTilesW ||
		c.AtlasTilesH != prev.AtlasTilesH ||
		c.AtlasLayers != prev.AtlasLayers
}

// LoadConfig loads a shadow configuration from a YAML file, starting from
// defaults so absent fields keep their default values.
//
// Parameters:
//   - path: path to the YAML configuration file
//
// Returns:
//   - Config: the loaded configuration
//   - error: error if the file cannot be read, parsed, or validated
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("loading shadow config from %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing shadow config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
