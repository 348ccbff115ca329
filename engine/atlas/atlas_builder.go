package atlas

import (
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// DefaultTilePixels is the default usable tile content size in pixels.
const DefaultTilePixels = 256

// DefaultTilesPerSide is the default grid width and height in tiles per layer.
const DefaultTilesPerSide = 8

// DefaultLayers is the default number of texture array layers.
const DefaultLayers = 4

// TileAtlasBuilderOption is a function that configures a TileAtlas during construction.
type TileAtlasBuilderOption func(*tileAtlasImpl)

// WithTileResolution is an option builder that sets the usable tile content
// size in pixels (the guard border is added on top of this).
//
// Parameters:
//   - px: tile content size in pixels
//
// Returns:
//   - TileAtlasBuilderOption: a function that applies the tile resolution option
func WithTileResolution(px uint32) TileAtlasBuilderOption {
	return func(a *tileAtlasImpl) {
		if px > 0 {
			a.tilePx = px
		}
	}
}

// WithGridSize is an option builder that sets the tile grid dimensions per layer.
//
// Parameters:
//   - tilesW: grid width in tiles
//   - tilesH: grid height in tiles
//
// Returns:
//   - TileAtlasBuilderOption: a function that applies the grid size option
func WithGridSize(tilesW, tilesH uint32) TileAtlasBuilderOption {
	return func(a *tileAtlasImpl) {
		if tilesW > 0 {
			a.tilesW = tilesW
		}
		if tilesH > 0 {
			a.tilesH = tilesH
		}
	}
}

// WithLayers is an option builder that sets the number of texture array layers.
//
// Parameters:
//   - layers: the array layer count
//
// Returns:
//   - TileAtlasBuilderOption: a function that applies the layer count option
func WithLayers(layers uint32) TileAtlasBuilderOption {
	return func(a *tileAtlasImpl) {
		if layers > 0 {
			a.layers = layers
		}
	}
}

// WithLogger is an option builder that sets the logger used for allocator
// diagnostics (repack fallback warnings). Defaults to a no-op logger.
//
// Parameters:
//   - log: the zap logger to use
//
// Returns:
//   - TileAtlasBuilderOption: a function that applies the logger option
func WithLogger(log *zap.Logger) TileAtlasBuilderOption {
	return func(a *tileAtlasImpl) {
		if log != nil {
			a.log = log
		}
	}
}

// WithDeviceLimits is an option builder that clamps the atlas shape to the host
// GPU's maximum 2D texture dimension and maximum array layer count. Apply this
// after any shape options so the final shape is what gets clamped.
//
// Parameters:
//   - limits: the wgpu device limits to clamp against
//
// Returns:
//   - TileAtlasBuilderOption: a function that applies the clamping option
func WithDeviceLimits(limits wgpu.Limits) TileAtlasBuilderOption {
	return func(a *tileAtlasImpl) {
		pitch := a.CellPitch()
		if maxDim := limits.MaxTextureDimension2D; maxDim > 0 {
			if maxTiles := maxDim / pitch; maxTiles > 0 {
				if a.tilesW > maxTiles {
					a.tilesW = maxTiles
				}
				if a.tilesH > maxTiles {
					a.tilesH = maxTiles
				}
			}
		}
		if maxLayers := limits.MaxTextureArrayLayers; maxLayers > 0 && a.layers > maxLayers {
			a.layers = maxLayers
		}
	}
}

// NewTileAtlas creates a new TileAtlas with sensible defaults and any provided
// options applied. The occupancy grid and free-tile accounting are initialized
// to a fully empty atlas.
//
// Parameters:
//   - opts: variadic list of TileAtlasBuilderOption functions to configure the atlas
//
// Returns:
//   - TileAtlas: a new TileAtlas instance
func NewTileAtlas(opts ...TileAtlasBuilderOption) TileAtlas {
	a := &tileAtlasImpl{
		tilesW: DefaultTilesPerSide,
		tilesH: DefaultTilesPerSide,
		layers: DefaultLayers,
		tilePx: DefaultTilePixels,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.occupied = make([]bool, a.tilesW*a.tilesH*a.layers)
	a.freeTiles = a.TotalTiles()
	return a
}
