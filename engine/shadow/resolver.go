package shadow

import (
	"github.com/Carmen-Shannon/umbra-go/common"
)

// CellCoord identifies one cell of a light's virtual shadow grid.
type CellCoord struct {
	X, Y uint32
}

// RequiredPages computes which virtual grid cells of a light are visible from
// the camera and therefore need a physical shadow page this frame.
//
// The camera frustum's 8 corners (the full NDC cube across the [0,1] depth
// range) are unprojected to world space, projected into light clip space, and
// the 2D bounding box of the projected points is intersected with the light's valid
// NDC range [-1,1]². Points behind or outside the light frustum are excluded
// by this clamp rather than by explicit culling. The surviving box is mapped
// onto the virtual grid (NDC top = row 0) and every covered cell is returned.
//
// Parameters:
//   - lightViewProj: the light's combined view-projection matrix (16 elements, column-major)
//   - camInvViewProj: the camera's inverse view-projection matrix (16 elements, column-major)
//   - gridSize: the virtual grid dimension
//
// Returns:
//   - []CellCoord: the covered cells, empty when the frusta do not intersect
func RequiredPages(lightViewProj, camInvViewProj []float32, gridSize uint32) []CellCoord {
	if gridSize == 0 {
		return nil
	}

	corners := common.FrustumCornersWorld(camInvViewProj)

	minX, minY := float32(1), float32(1)
	maxX, maxY := float32(-1), float32(-1)
	first := true
	for _, c := range corners {
		p, _ := common.TransformPoint(lightViewProj, c[0], c[1], c[2])
		if first {
			minX, maxX = p[0], p[0]
			minY, maxY = p[1], p[1]
			first = false
			continue
		}
		if p[0] < minX {
			minX = p[0]
		}
		if p[0] > maxX {
			maxX = p[0]
		}
		if p[1] < minY {
			minY = p[1]
		}
		if p[1] > maxY {
			maxY = p[1]
		}
	}

	// Entirely outside the light's NDC range: no intersection, no pages.
	if maxX < -1 || minX > 1 || maxY < -1 || minY > 1 {
		return nil
	}

	minX = clampF32(minX, -1, 1)
	maxX = clampF32(maxX, -1, 1)
	minY = clampF32(minY, -1, 1)
	maxY = clampF32(maxY, -1, 1)
	if minX > maxX || minY > maxY {
		return nil
	}

	grid := float32(gridSize)

	// NDC X maps left-to-right onto columns; NDC Y is inverted relative to
	// grid rows (NDC top = row 0).
	x0 := cellIndex((minX+1)*0.5*grid, gridSize)
	x1 := cellIndex((maxX+1)*0.5*grid, gridSize)
	y0 := cellIndex((1-maxY)*0.5*grid, gridSize)
	y1 := cellIndex((1-minY)*0.5*grid, gridSize)

	cells := make([]CellCoord, 0, (x1-x0+1)*(y1-y0+1))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			cells = append(cells, CellCoord{X: x, Y: y})
		}
	}
	return cells
}

// AllPages returns every cell of the virtual grid. Point lights bypass
// frustum-based requirement resolution entirely and always request all cells
// on all faces, trading residency for a much simpler per-face visibility
// story.
//
// Parameters:
//   - gridSize: the virtual grid dimension
//
// Returns:
//   - []CellCoord: all gridSize² cells in row-major order
func AllPages(gridSize uint32) []CellCoord {
	cells := make([]CellCoord, 0, gridSize*gridSize)
	for y := uint32(0); y < gridSize; y++ {
		for x := uint32(0); x < gridSize; x++ {
			cells = append(cells, CellCoord{X: x, Y: y})
		}
	}
	return cells
}

// PageViewProjection builds the view-projection matrix that renders exactly
// virtual cell (x, y) of a light's shadow coverage: a scale+offset "zoom"
// matrix maps the cell's NDC sub-rectangle to the full clip range, and the
// result is zoom * proj * view. Pure function of the grid size and cell
// coordinate, independent of allocator state.
//
// Parameters:
//   - lightView: the light's view matrix (16 elements, column-major)
//   - lightProj: the light's projection matrix (16 elements, column-major)
//   - x, y: the virtual cell coordinate
//   - gridSize: the virtual grid dimension
//
// Returns:
//   - [16]float32: the per-page view-projection matrix (column-major)
func PageViewProjection(lightView, lightProj []float32, x, y, gridSize uint32) [16]float32 {
	grid := float32(gridSize)

	// Cell (x, y) owns the NDC sub-rectangle centered at (cx, cy) with extent
	// 2/grid; row 0 sits at NDC top.
	cx := -1.0 + 2.0*(float32(x)+0.5)/grid
	cy := 1.0 - 2.0*(float32(y)+0.5)/grid

	var zoom [16]float32
	common.Identity(zoom[:])
	zoom[0] = grid
	zoom[5] = grid
	zoom[12] = -cx * grid
	zoom[13] = -cy * grid

	var vp [16]float32
	common.Mul4(vp[:], lightProj, lightView)

	var out [16]float32
	common.Mul4(out[:], zoom[:], vp[:])
	return out
}

// cellIndex converts a continuous grid coordinate to a clamped cell index.
func cellIndex(v float32, gridSize uint32) uint32 {
	if v <= 0 {
		return 0
	}
	idx := uint32(v)
	if idx >= gridSize {
		return gridSize - 1
	}
	return idx
}

// clampF32 clamps v into [lo, hi].
func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
