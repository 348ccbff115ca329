// Package atlas implements a generation-checked tile sub-allocator over a single
// 2D texture-array resource. The texture is divided into fixed-size square tiles,
// each padded by a guard border so bilinear filtering near a region edge never
// samples a neighboring allocation. Rectangular multi-tile regions are handed out
// via opaque handles; freeing and repacking never invalidates the handle itself,
// only its physical location, which is reported back as relocations.
package atlas

import (
	"sort"

	"go.uber.org/zap"
)

// GuardPixels is the guard border width in pixels applied on every side of each
// tile. The per-cell pitch is therefore TilePixels + 2*GuardPixels.
const GuardPixels = 8

// Handle is an opaque reference to one atlas allocation. A handle is valid only
// while its generation matches the live slot's current generation; this is the
// sole defense against using a freed or reused allocation.
type Handle struct {
	Index      uint32
	Generation uint32
}

// Rect is a rectangle in tile units within one atlas layer.
type Rect struct {
	X, Y, W, H uint32
}

// Area returns the rectangle's area in tiles.
func (r Rect) Area() uint32 {
	return r.W * r.H
}

// Relocation reports that an alive allocation's physical location changed as a
// side effect of defragmentation. The handle's generation is unchanged: it is
// the same logical allocation at a new location, and its tile contents must be
// re-rendered by the caller.
type Relocation struct {
	Handle   Handle
	OldLayer uint32
	OldRect  Rect
	NewLayer uint32
	NewRect  Rect
}

// UVTransform maps a [0,1] region-local UV coordinate into atlas UV space,
// addressing the inner (guard-excluded) rectangle of an allocation:
//
//	atlasUV = pageUV * Scale + Bias
type UVTransform struct {
	ScaleX, ScaleY float32
	BiasX, BiasY   float32
	Layer          uint32
}

// slot is the internal record backing one handle index. Slots are never removed;
// freed indices are pushed onto a free stack and revived with a bumped
// generation, which is what invalidates stale handles.
type slot struct {
	generation uint32
	alive      bool
	layer      uint32
	rect       Rect
}

// TileAtlas is a sub-allocator over one fixed-capacity 2D texture array divided
// into tilesW × tilesH × layers cells. All operations are synchronous CPU-side
// bookkeeping; allocation failure is a normal, recoverable outcome and is
// reported through ok-style returns, never panics.
type TileAtlas interface {
	// Alloc attempts to place a w×h tile region. The scan is deterministic
	// first-fit: layer-major, then row-major, then column-major. If the scan
	// fails while enough total free tiles remain (fragmentation), a single
	// global repack is performed and the scan retried once.
	//
	// Parameters:
	//   - w: region width in tiles
	//   - h: region height in tiles
	//
	// Returns:
	//   - Handle: the new allocation's handle (zero value when ok is false)
	//   - []Relocation: relocations of other alive slots caused by a repack,
	//     returned even when the retry ultimately fails
	//   - bool: false if the region cannot be placed
	Alloc(w, h uint32) (Handle, []Relocation, bool)

	// Free releases an allocation. Stale handles (freed, or freed and reused)
	// are rejected.
	//
	// Parameters:
	//   - h: the handle to free
	//
	// Returns:
	//   - bool: true if the handle was valid and the region was released
	Free(h Handle) bool

	// Repack performs a global defragmentation: all alive slots are re-placed
	// largest-area-first using the same deterministic first-fit scan. Every
	// slot whose location changed is reported as a relocation.
	Repack() []Relocation

	// UVTransform returns the scale/bias pair mapping [0,1] page-local UVs to
	// the allocation's inner (guard-excluded) rectangle in atlas UV space,
	// plus the physical layer index.
	//
	// Parameters:
	//   - h: the handle to query
	//
	// Returns:
	//   - UVTransform: the UV mapping (zero value when ok is false)
	//   - bool: false for invalid or freed handles
	UVTransform(h Handle) (UVTransform, bool)

	// FreeTiles returns the number of currently unoccupied tiles.
	FreeTiles() uint32

	// TotalTiles returns tilesW * tilesH * layers.
	TotalTiles() uint32

	// Utilization returns the fraction of tiles occupied (0.0 to 1.0).
	Utilization() float64

	// TilesW returns the grid width in tiles per layer.
	TilesW() uint32

	// TilesH returns the grid height in tiles per layer.
	TilesH() uint32

	// Layers returns the number of array layers.
	Layers() uint32

	// TilePixels returns the usable tile content size in pixels.
	TilePixels() uint32

	// CellPitch returns the per-cell pixel pitch: TilePixels + 2*GuardPixels.
	CellPitch() uint32

	// Stats returns lifetime allocator statistics.
	Stats() Stats
}

// Stats holds lifetime counters for profiling allocator churn.
type Stats struct {
	// Repacks is the number of global defragmentation passes performed.
	Repacks uint64
	// Relocations is the total number of slot moves reported across all repacks.
	Relocations uint64
	// DroppedSlots counts repack-fallback drops. Non-zero values indicate a
	// free-space accounting bug and are logged at Warn when they occur.
	DroppedSlots uint64
}

// tileAtlasImpl is the implementation of TileAtlas.
type tileAtlasImpl struct {
	tilesW, tilesH uint32
	layers         uint32
	tilePx         uint32

	slots     []slot
	freeSlots []uint32 // free slot indices pending reuse

	occupied  []bool // (layer*tilesH + y)*tilesW + x
	freeTiles uint32

	repacks        uint64 // lifetime repack count, surfaced to the profiler
	droppedSlots   uint64 // lifetime repack-fallback drops (should stay 0)
	relocatedAccum uint64 // lifetime relocation count

	log *zap.Logger
}

var _ TileAtlas = &tileAtlasImpl{}

func (a *tileAtlasImpl) TilesW() uint32     { return a.tilesW }
func (a *tileAtlasImpl) TilesH() uint32     { return a.tilesH }
func (a *tileAtlasImpl) Layers() uint32     { return a.layers }
func (a *tileAtlasImpl) TilePixels() uint32 { return a.tilePx }
func (a *tileAtlasImpl) CellPitch() uint32  { return a.tilePx + 2*GuardPixels }

func (a *tileAtlasImpl) FreeTiles() uint32 {
	return a.freeTiles
}

func (a *tileAtlasImpl) Stats() Stats {
	return Stats{
		Repacks:      a.repacks,
		Relocations:  a.relocatedAccum,
		DroppedSlots: a.droppedSlots,
	}
}

func (a *tileAtlasImpl) TotalTiles() uint32 {
	return a.tilesW * a.tilesH * a.layers
}

func (a *tileAtlasImpl) Utilization() float64 {
	total := a.TotalTiles()
	if total == 0 {
		return 0
	}
	return float64(total-a.freeTiles) / float64(total)
}

func (a *tileAtlasImpl) Alloc(w, h uint32) (Handle, []Relocation, bool) {
	if w == 0 || h == 0 || w > a.tilesW || h > a.tilesH {
		return Handle{}, nil, false
	}
	if a.freeTiles < w*h {
		return Handle{}, nil, false
	}

	layer, rect, found := a.findFit(w, h)
	var relocations []Relocation
	if !found {
		// Enough aggregate free space exists but no contiguous rectangle does:
		// defragment once and retry. This bounds repack cost to at most one
		// repack per failed placement.
		relocations = a.Repack()
		layer, rect, found = a.findFit(w, h)
		if !found {
			return Handle{}, relocations, false
		}
	}

	a.occupy(layer, rect)
	idx := a.takeSlot()
	s := &a.slots[idx]
	s.alive = true
	s.layer = layer
	s.rect = rect

	return Handle{Index: idx, Generation: s.generation}, relocations, true
}

func (a *tileAtlasImpl) Free(h Handle) bool {
	s, ok := a.lookup(h)
	if !ok {
		return false
	}
	a.release(s.layer, s.rect)
	s.alive = false
	a.freeSlots = append(a.freeSlots, h.Index)
	return true
}

func (a *tileAtlasImpl) Repack() []Relocation {
	a.repacks++

	// Gather alive slots and sort largest-area-first; equal areas keep index
	// order so repeated repacks with unchanged contents are stable.
	order := make([]uint32, 0, len(a.slots))
	for i := range a.slots {
		if a.slots[i].alive {
			order = append(order, uint32(i))
		}
	}
	sort.Slice(order, func(i, j int) bool {
		ai := a.slots[order[i]].rect.Area()
		aj := a.slots[order[j]].rect.Area()
		if ai != aj {
			return ai > aj
		}
		return order[i] < order[j]
	})

	// Clear the occupancy grid and re-place everything.
	for i := range a.occupied {
		a.occupied[i] = false
	}
	a.freeTiles = a.TotalTiles()

	var relocations []Relocation
	for _, idx := range order {
		s := &a.slots[idx]
		layer, rect, found := a.findFit(s.rect.W, s.rect.H)
		if !found {
			// Unreachable with correct free-space accounting; the slot is
			// dropped and the counter makes the condition visible in stats.
			a.droppedSlots++
			a.log.Warn("atlas repack could not re-place slot, dropping allocation",
				zap.Uint32("index", idx),
				zap.Uint32("width", s.rect.W),
				zap.Uint32("height", s.rect.H),
			)
			s.alive = false
			a.freeSlots = append(a.freeSlots, idx)
			continue
		}
		a.occupy(layer, rect)
		if layer != s.layer || rect != s.rect {
			relocations = append(relocations, Relocation{
				Handle:   Handle{Index: idx, Generation: s.generation},
				OldLayer: s.layer,
				OldRect:  s.rect,
				NewLayer: layer,
				NewRect:  rect,
			})
			s.layer = layer
			s.rect = rect
		}
	}

	a.relocatedAccum += uint64(len(relocations))
	return relocations
}

func (a *tileAtlasImpl) UVTransform(h Handle) (UVTransform, bool) {
	s, ok := a.lookup(h)
	if !ok {
		return UVTransform{}, false
	}

	pitch := a.CellPitch()
	atlasW := float32(a.tilesW * pitch)
	atlasH := float32(a.tilesH * pitch)

	// Inner rectangle: the region in pixels with the guard border excluded on
	// all four sides.
	innerX := float32(s.rect.X*pitch + GuardPixels)
	innerY := float32(s.rect.Y*pitch + GuardPixels)
	innerW := float32(s.rect.W*pitch - 2*GuardPixels)
	innerH := float32(s.rect.H*pitch - 2*GuardPixels)

	return UVTransform{
		ScaleX: innerW / atlasW,
		ScaleY: innerH / atlasH,
		BiasX:  innerX / atlasW,
		BiasY:  innerY / atlasH,
		Layer:  s.layer,
	}, true
}

// lookup resolves a handle to its slot, enforcing the generation check.
func (a *tileAtlasImpl) lookup(h Handle) (*slot, bool) {
	if int(h.Index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[h.Index]
	if !s.alive || s.generation != h.Generation {
		return nil, false
	}
	return s, true
}

// takeSlot reuses a freed slot index (bumping its generation so stale handles
// fail the generation check) or appends a fresh slot.
func (a *tileAtlasImpl) takeSlot() uint32 {
	if n := len(a.freeSlots); n > 0 {
		idx := a.freeSlots[n-1]
		a.freeSlots = a.freeSlots[:n-1]
		a.slots[idx].generation++
		return idx
	}
	a.slots = append(a.slots, slot{})
	return uint32(len(a.slots) - 1)
}

// findFit scans for a free w×h rectangle: layer-major, then row-major, then
// column-major. The scan order is deterministic so repacks are reproducible.
func (a *tileAtlasImpl) findFit(w, h uint32) (uint32, Rect, bool) {
	for layer := uint32(0); layer < a.layers; layer++ {
		for y := uint32(0); y+h <= a.tilesH; y++ {
			for x := uint32(0); x+w <= a.tilesW; x++ {
				if a.regionFree(layer, Rect{X: x, Y: y, W: w, H: h}) {
					return layer, Rect{X: x, Y: y, W: w, H: h}, true
				}
			}
		}
	}
	return 0, Rect{}, false
}

func (a *tileAtlasImpl) regionFree(layer uint32, r Rect) bool {
	for y := r.Y; y < r.Y+r.H; y++ {
		base := (layer*a.tilesH + y) * a.tilesW
		for x := r.X; x < r.X+r.W; x++ {
			if a.occupied[base+x] {
				return false
			}
		}
	}
	return true
}

func (a *tileAtlasImpl) occupy(layer uint32, r Rect) {
	for y := r.Y; y < r.Y+r.H; y++ {
		base := (layer*a.tilesH + y) * a.tilesW
		for x := r.X; x < r.X+r.W; x++ {
			a.occupied[base+x] = true
		}
	}
	a.freeTiles -= r.Area()
}

func (a *tileAtlasImpl) release(layer uint32, r Rect) {
	for y := r.Y; y < r.Y+r.H; y++ {
		base := (layer*a.tilesH + y) * a.tilesW
		for x := r.X; x < r.X+r.W; x++ {
			a.occupied[base+x] = false
		}
	}
	a.freeTiles += r.Area()
}
