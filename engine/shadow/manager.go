// Package shadow implements virtual shadow map paging: each light face is
// subdivided into a virtual grid of independently paged cells, and only the
// cells visible from the camera are backed by physical tiles in a shared depth
// atlas. The manager tracks page residency, dirtiness and recency on the CPU
// and serializes a fixed-capacity page table for the sampling shader.
package shadow

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/umbra-go/common"
	"github.com/Carmen-Shannon/umbra-go/engine/atlas"
	"github.com/Carmen-Shannon/umbra-go/engine/light"
	"github.com/Carmen-Shannon/umbra-go/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// Bind group binding indices for the shadow sampling bind group. The table and
// parameter buffers are staged through the manager's provider; the atlas
// texture and comparison sampler are installed by the owning renderer from the
// atlas texture backend.
const (
	BindingPageTable    = 0
	BindingShadowParams = 1
	BindingAtlasTexture = 2
	BindingAtlasSampler = 3
)

// PageKey identifies one virtual shadow page: a cell of a light face's virtual
// grid. Face is always 0 for directional and spot lights.
type PageKey struct {
	LightID uint32
	Face    uint32
	X, Y    uint32
}

// PageRender describes one page that must be re-rendered this frame: the
// target atlas allocation and the view-projection matrix covering exactly the
// page's virtual cell.
type PageRender struct {
	Key      PageKey
	Handle   atlas.Handle
	ViewProj [16]float32
}

// pageState is the CPU-side cache record for one resident page.
type pageState struct {
	handle        atlas.Handle
	dirty         bool
	lastFrameUsed uint64
}

// lightState holds the shadow-relevant transform state of a registered light.
// Directional and spot lights carry a single view/proj pair; point lights
// carry a position and shared 90° projection, with per-face views derived on
// demand.
type lightState struct {
	isPoint  bool
	view     [16]float32
	proj     [16]float32
	viewProj [16]float32
	position [3]float32
}

// ShadowManager is the frame-loop entry point for virtual shadow paging. It
// owns the tile atlas, the page cache and the GPU page table serialization.
// Not safe for concurrent use: all mutation happens on the frame thread, and
// only requirement resolution fans out internally to a worker pool over
// read-only state.
//
// Per-frame usage pattern:
//  1. BeginFrame(frame)
//  2. update light transforms (SetLightMatrices / SetPointLight)
//  3. IdentifyRequiredPages(camInvViewProj)
//  4. render every PageRender from DirtyPages, calling PageRendered after each
//  5. SyncTable / SyncParams, flush the staged writes via the renderer
type ShadowManager interface {
	// Release frees the atlas texture backend's GPU resources and the
	// manager's bind group provider. The resolver worker pool drains on its
	// own idle timeout.
	Release()

	// Config returns the currently applied configuration.
	Config() Config

	// Atlas returns the underlying tile atlas.
	Atlas() atlas.TileAtlas

	// Backend returns the atlas texture backend, or nil when the manager was
	// built without a device. The renderer renders depth passes into
	// Backend().LayerView(layer) and binds ArrayView/Sampler for sampling.
	Backend() atlas.TextureBackend

	// Provider returns the bind group provider holding the page table and
	// parameter buffers. The owning renderer initializes its GPU resources
	// and flushes the writes staged by SyncTable and SyncParams.
	Provider() bind_group_provider.BindGroupProvider

	// RegisterLight derives and stores shadow matrices for a light based on
	// its type. Directional lights get an orthographic frustum centered on
	// focus; spot lights a perspective frustum matching their outer cone;
	// point lights store only their position, faces are derived per page.
	// Non-casting lights are unregistered instead: they are never paged.
	// Re-registering an existing ID replaces its transform state.
	//
	// Parameters:
	//   - id: the light's stable identifier
	//   - l: the light to register
	//   - focus: world-space shadow focus point (used for directional lights)
	RegisterLight(id uint32, l light.Light, focus [3]float32)

	// SetLightMatrices stores an explicit view and projection pair for a
	// directional or spot light, replacing any previously registered state.
	//
	// Parameters:
	//   - id: the light's stable identifier
	//   - view: the light view matrix (column-major)
	//   - proj: the light projection matrix (column-major)
	SetLightMatrices(id uint32, view, proj [16]float32)

	// SetPointLight stores a point light's position, replacing any previously
	// registered state. All six cube faces share the standard 90° projection.
	//
	// Parameters:
	//   - id: the light's stable identifier
	//   - position: the light's world-space position
	//   - near: near plane distance
	//   - far: far plane distance (typically the light's range)
	SetPointLight(id uint32, position [3]float32, near, far float32)

	// FreeLight unregisters a light and releases every resident page belonging
	// to it. Unknown IDs are a no-op.
	//
	// Parameters:
	//   - id: the light's stable identifier
	FreeLight(id uint32)

	// BeginFrame advances the manager's frame counter. Page recency tracking
	// and stale eviction are expressed in these frame numbers.
	//
	// Parameters:
	//   - frame: the monotonically increasing frame number
	BeginFrame(frame uint64)

	// MarkSceneDirty flags every resident page for re-render. Called when any
	// shadow-casting geometry changed this frame; invalidation is deliberately
	// conservative, there is no per-page geometry tracking.
	MarkSceneDirty()

	// IdentifyRequiredPages resolves which pages every registered light needs
	// for the given camera and requests them, allocating atlas tiles for cache
	// misses. Pages touched this frame have their recency updated; pages that
	// cannot be allocated (atlas exhausted even after repack) are skipped and
	// counted.
	//
	// Parameters:
	//   - camInvViewProj: the camera's inverse view-projection matrix (16 elements, column-major)
	//
	// Returns:
	//   - int: the number of required pages that could not be made resident
	IdentifyRequiredPages(camInvViewProj []float32) int

	// RequestPage ensures a single page is resident, allocating an atlas tile
	// on a cache miss. Relocations caused by an allocation-triggered repack
	// are applied to the cache (relocated pages are marked dirty).
	//
	// Parameters:
	//   - lightID: the light's stable identifier
	//   - face: the cube face index (0 for directional/spot)
	//   - x, y: the virtual cell coordinate
	//
	// Returns:
	//   - atlas.Handle: the page's atlas allocation (zero value when ok is false)
	//   - bool: false if the light is unknown, the cell is out of range, or
	//     the atlas cannot place the page
	RequestPage(lightID, face, x, y uint32) (atlas.Handle, bool)

	// DirtyPages returns every resident page that needs re-rendering, with the
	// per-page view-projection matrix to render it with. A pending scene-wide
	// invalidation is applied first. Order is deterministic.
	//
	// Returns:
	//   - []PageRender: the pages to render, sorted by key
	DirtyPages() []PageRender

	// PageRendered clears a page's dirty flag after its depth pass completed.
	// Unknown keys are a no-op.
	//
	// Parameters:
	//   - key: the page that was rendered
	PageRendered(key PageKey)

	// EvictStale frees every resident page not used for more than maxAge
	// frames, returning their tiles to the atlas.
	//
	// Parameters:
	//   - maxAge: the maximum allowed age in frames
	//
	// Returns:
	//   - int: the number of pages evicted
	EvictStale(maxAge uint64) int

	// Reconfigure applies a new configuration. Changes to atlas-shape fields
	// rebuild the atlas and drop every resident page (the next frame re-pages
	// on demand); a virtual grid resize drops pages without a texture rebuild
	// since every cell is re-keyed; other changes only affect the GPU
	// parameter block on the next SyncParams.
	//
	// Parameters:
	//   - cfg: the configuration to apply
	//
	// Returns:
	//   - error: validation error, or a texture rebuild failure
	Reconfigure(cfg Config) error

	// ResidentPages returns the number of pages currently backed by an atlas
	// tile.
	ResidentPages() int

	// SyncTable serializes the full page table and stages it as a buffer
	// write at offset 0 of the table binding. The table is rebuilt from
	// scratch every call; slot collisions overwrite silently.
	//
	// Returns:
	//   - bind_group_provider.BufferWrite: the staged page table write
	SyncTable() bind_group_provider.BufferWrite

	// SyncParams serializes the GPU parameter block and stages it as a buffer
	// write on the params binding.
	//
	// Returns:
	//   - bind_group_provider.BufferWrite: the staged parameter write
	SyncParams() bind_group_provider.BufferWrite
}

// shadowManagerImpl is the implementation of ShadowManager.
type shadowManagerImpl struct {
	cfg Config

	device  *wgpu.Device
	limits  *wgpu.Limits
	atlas   atlas.TileAtlas
	backend atlas.TextureBackend

	lights   map[uint32]*lightState
	pages    map[PageKey]*pageState
	byHandle map[atlas.Handle]PageKey

	provider bind_group_provider.BindGroupProvider

	frame      uint64
	sceneDirty bool

	resolveWorkers int
	resolvePool    worker.DynamicWorkerPool

	log *zap.Logger
}

var _ ShadowManager = &shadowManagerImpl{}

func (m *shadowManagerImpl) Config() Config {
	return m.cfg
}

func (m *shadowManagerImpl) Atlas() atlas.TileAtlas {
	return m.atlas
}

func (m *shadowManagerImpl) Backend() atlas.TextureBackend {
	return m.backend
}

func (m *shadowManagerImpl) Provider() bind_group_provider.BindGroupProvider {
	return m.provider
}

func (m *shadowManagerImpl) RegisterLight(id uint32, l light.Light, focus [3]float32) {
	if !l.CastsShadows() {
		m.FreeLight(id)
		return
	}
	st := &lightState{}
	switch l.Type() {
	case light.LightTypePoint:
		st.isPoint = true
		st.position = l.Position()
		st.proj = light.PointShadowProjection(light.DefaultShadowNear, l.Range())
	case light.LightTypeSpot:
		st.view, st.proj = light.SpotShadowMatrices(
			l.Position(), l.Direction(), l.OuterCone(),
			light.DefaultShadowNear, l.Range(),
		)
	default:
		st.view, st.proj = light.DirectionalShadowMatrices(
			l.Direction(), focus[0], focus[1], focus[2],
			light.DefaultShadowHalfExtent, light.DefaultShadowNear, light.DefaultShadowFar,
		)
	}
	if !st.isPoint {
		common.Mul4(st.viewProj[:], st.proj[:], st.view[:])
	}
	m.lights[id] = st
}

func (m *shadowManagerImpl) SetLightMatrices(id uint32, view, proj [16]float32) {
	st := &lightState{view: view, proj: proj}
	common.Mul4(st.viewProj[:], proj[:], view[:])
	m.lights[id] = st
}

func (m *shadowManagerImpl) SetPointLight(id uint32, position [3]float32, near, far float32) {
	m.lights[id] = &lightState{
		isPoint:  true,
		position: position,
		proj:     light.PointShadowProjection(near, far),
	}
}

func (m *shadowManagerImpl) FreeLight(id uint32) {
	if _, ok := m.lights[id]; !ok {
		return
	}
	freed := 0
	for key, page := range m.pages {
		if key.LightID != id {
			continue
		}
		m.atlas.Free(page.handle)
		delete(m.byHandle, page.handle)
		delete(m.pages, key)
		freed++
	}
	delete(m.lights, id)
	if freed > 0 {
		// Freed tiles may be handed to other lights before the next table
		// sync; conservative scene invalidation keeps stale depth data from
		// being sampled through a reused tile.
		m.sceneDirty = true
		m.log.Debug("freed light shadow pages",
			zap.Uint32("light_id", id),
			zap.Int("pages", freed),
		)
	}
}

func (m *shadowManagerImpl) BeginFrame(frame uint64) {
	m.frame = frame
}

func (m *shadowManagerImpl) MarkSceneDirty() {
	m.sceneDirty = true
}

func (m *shadowManagerImpl) RequestPage(lightID, face, x, y uint32) (atlas.Handle, bool) {
	st, ok := m.lights[lightID]
	if !ok {
		return atlas.Handle{}, false
	}
	grid := m.cfg.VirtualGridSize
	if x >= grid || y >= grid {
		return atlas.Handle{}, false
	}
	if st.isPoint {
		if face >= light.PointFaceCount {
			return atlas.Handle{}, false
		}
	} else if face != 0 {
		return atlas.Handle{}, false
	}

	key := PageKey{LightID: lightID, Face: face, X: x, Y: y}
	if page, hit := m.pages[key]; hit {
		page.lastFrameUsed = m.frame
		return page.handle, true
	}

	handle, relocations, ok := m.atlas.Alloc(1, 1)
	m.applyRelocations(relocations)
	if !ok {
		m.log.Warn("shadow atlas exhausted, page dropped this frame",
			zap.Uint32("light_id", lightID),
			zap.Uint32("face", face),
			zap.Uint32("x", x),
			zap.Uint32("y", y),
			zap.Float64("utilization", m.atlas.Utilization()),
		)
		return atlas.Handle{}, false
	}

	m.pages[key] = &pageState{
		handle:        handle,
		dirty:         true,
		lastFrameUsed: m.frame,
	}
	m.byHandle[handle] = key
	return handle, true
}

func (m *shadowManagerImpl) DirtyPages() []PageRender {
	if m.sceneDirty {
		for _, page := range m.pages {
			page.dirty = true
		}
		m.sceneDirty = false
	}

	keys := make([]PageKey, 0, len(m.pages))
	for key, page := range m.pages {
		if page.dirty {
			keys = append(keys, key)
		}
	}
	sortPageKeys(keys)

	renders := make([]PageRender, 0, len(keys))
	for _, key := range keys {
		st, ok := m.lights[key.LightID]
		if !ok {
			continue
		}
		view := st.view
		if st.isPoint {
			view = light.PointShadowFaceView(st.position, key.Face)
		}
		renders = append(renders, PageRender{
			Key:      key,
			Handle:   m.pages[key].handle,
			ViewProj: PageViewProjection(view[:], st.proj[:], key.X, key.Y, m.cfg.VirtualGridSize),
		})
	}
	return renders
}

func (m *shadowManagerImpl) PageRendered(key PageKey) {
	if page, ok := m.pages[key]; ok {
		page.dirty = false
	}
}

func (m *shadowManagerImpl) EvictStale(maxAge uint64) int {
	evicted := 0
	for key, page := range m.pages {
		if m.frame-page.lastFrameUsed <= maxAge {
			continue
		}
		m.atlas.Free(page.handle)
		delete(m.byHandle, page.handle)
		delete(m.pages, key)
		evicted++
	}
	if evicted > 0 {
		m.log.Debug("evicted stale shadow pages",
			zap.Int("pages", evicted),
			zap.Uint64("max_age", maxAge),
		)
	}
	return evicted
}

func (m *shadowManagerImpl) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !cfg.AtlasShapeChanged(m.cfg) {
		// A grid resize re-keys every virtual cell, so resident pages are
		// released even though the atlas itself is untouched.
		if cfg.VirtualGridSize != m.cfg.VirtualGridSize {
			m.dropAllPages()
		}
		m.cfg = cfg
		return nil
	}

	// Destructive path: new atlas shape means every resident page's physical
	// location is meaningless. Drop the cache wholesale and let the next
	// IdentifyRequiredPages re-page on demand.
	newAtlas := NewAtlasForConfig(cfg, m.log, m.atlasLimitOptions()...)
	if m.backend != nil {
		if err := m.backend.Rebuild(newAtlas); err != nil {
			return fmt.Errorf("rebuilding shadow atlas texture: %w", err)
		}
	}
	m.atlas = newAtlas
	m.pages = make(map[PageKey]*pageState)
	m.byHandle = make(map[atlas.Handle]PageKey)
	m.cfg = cfg
	m.sceneDirty = false

	m.log.Info("shadow atlas reconfigured",
		zap.Uint32("tile_resolution", cfg.TileResolution),
		zap.Uint32("tiles_w", cfg.AtlasTilesW),
		zap.Uint32("tiles_h", cfg.AtlasTilesH),
		zap.Uint32("layers", cfg.AtlasLayers),
	)
	return nil
}

func (m *shadowManagerImpl) ResidentPages() int {
	return len(m.pages)
}

func (m *shadowManagerImpl) Release() {
	if m.backend != nil {
		m.backend.Release()
		m.backend = nil
	}
	if m.provider != nil {
		m.provider.Release()
	}
}

// atlasLimitOptions returns the device-limit clamp for atlas construction, or
// nothing when the manager has no limits to honor.
func (m *shadowManagerImpl) atlasLimitOptions() []atlas.TileAtlasBuilderOption {
	if m.limits == nil {
		return nil
	}
	return []atlas.TileAtlasBuilderOption{atlas.WithDeviceLimits(*m.limits)}
}

// dropAllPages frees every resident page back to the atlas and clears the
// cache maps.
func (m *shadowManagerImpl) dropAllPages() {
	for key, page := range m.pages {
		m.atlas.Free(page.handle)
		delete(m.byHandle, page.handle)
		delete(m.pages, key)
	}
}

// applyRelocations updates the page cache after an atlas repack: every moved
// allocation keeps its handle but its tile contents are stale, so the owning
// page is marked dirty for re-render.
func (m *shadowManagerImpl) applyRelocations(relocations []atlas.Relocation) {
	for _, rel := range relocations {
		key, ok := m.byHandle[rel.Handle]
		if !ok {
			continue
		}
		if page, ok := m.pages[key]; ok {
			page.dirty = true
		}
	}
	if len(relocations) > 0 {
		m.log.Debug("shadow pages relocated by atlas repack",
			zap.Int("relocations", len(relocations)),
		)
	}
}

// sortPageKeys sorts keys by (LightID, Face, Y, X) so per-frame render order
// is deterministic regardless of map iteration order.
func sortPageKeys(keys []PageKey) {
	sort.Slice(keys, func(i, j int) bool {
		return pageKeyLess(keys[i], keys[j])
	})
}

func pageKeyLess(a, b PageKey) bool {
	if a.LightID != b.LightID {
		return a.LightID < b.LightID
	}
	if a.Face != b.Face {
		return a.Face < b.Face
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
