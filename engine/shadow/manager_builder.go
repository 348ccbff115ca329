package shadow

import (
	"fmt"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/umbra-go/engine/atlas"
	"github.com/Carmen-Shannon/umbra-go/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// ShadowManagerOption is a functional option used to configure a ShadowManager
// during construction.
type ShadowManagerOption func(*shadowManagerImpl)

// WithConfig sets the shadow paging configuration. Invalid configurations are
// rejected by NewShadowManager.
//
// Parameters:
//   - cfg: the configuration to apply
//
// Returns:
//   - ShadowManagerOption: a function that applies the configuration option
func WithConfig(cfg Config) ShadowManagerOption {
	return func(m *shadowManagerImpl) {
		m.cfg = cfg
	}
}

// WithManagerLogger sets the logger used for paging diagnostics. Defaults to a
// no-op logger.
//
// Parameters:
//   - log: the zap logger to use
//
// Returns:
//   - ShadowManagerOption: a function that applies the logger option
func WithManagerLogger(log *zap.Logger) ShadowManagerOption {
	return func(m *shadowManagerImpl) {
		if log != nil {
			m.log = log
		}
	}
}

// WithResolveWorkers sets the number of worker goroutines used for parallel
// per-light requirement resolution. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of resolver workers (minimum 1)
//
// Returns:
//   - ShadowManagerOption: a function that applies the worker count option
func WithResolveWorkers(n int) ShadowManagerOption {
	return func(m *shadowManagerImpl) {
		if n < 1 {
			n = 1
		}
		m.resolveWorkers = n
	}
}

// WithDevice creates the atlas texture backend on the given device during
// construction. Without this option the manager runs headless: all paging
// bookkeeping works, but no GPU texture is created and Provider() writes have
// nowhere to land until a renderer installs buffers.
//
// Parameters:
//   - device: the wgpu device to allocate the atlas texture on
//
// Returns:
//   - ShadowManagerOption: a function that applies the device option
func WithDevice(device *wgpu.Device) ShadowManagerOption {
	return func(m *shadowManagerImpl) {
		m.device = device
	}
}

// WithDeviceLimits clamps the atlas shape to the given device limits on every
// atlas build, including rebuilds through Reconfigure. When a device is
// attached without this option the WebGPU default limits (wgpu.DefaultLimits)
// are assumed, so an oversized configuration degrades to a smaller atlas
// instead of a texture creation error.
//
// Parameters:
//   - limits: the wgpu limits to clamp the atlas shape against
//
// Returns:
//   - ShadowManagerOption: a function that applies the limits option
func WithDeviceLimits(limits wgpu.Limits) ShadowManagerOption {
	return func(m *shadowManagerImpl) {
		m.limits = &limits
	}
}

// NewAtlasForConfig builds a TileAtlas shaped by the atlas fields of a shadow
// configuration. Extra options are applied after the shape options, so a
// trailing atlas.WithDeviceLimits clamps the final shape.
//
// Parameters:
//   - cfg: the configuration describing the atlas shape
//   - log: the logger passed through to the allocator
//   - options: additional atlas options applied after the config-derived ones
//
// Returns:
//   - atlas.TileAtlas: the new atlas
func NewAtlasForConfig(cfg Config, log *zap.Logger, options ...atlas.TileAtlasBuilderOption) atlas.TileAtlas {
	opts := []atlas.TileAtlasBuilderOption{
		atlas.WithTileResolution(cfg.TileResolution),
		atlas.WithGridSize(cfg.AtlasTilesW, cfg.AtlasTilesH),
		atlas.WithLayers(cfg.AtlasLayers),
		atlas.WithLogger(log),
	}
	opts = append(opts, options...)
	return atlas.NewTileAtlas(opts...)
}

// NewShadowManager creates a new ShadowManager with the provided options. The
// default configuration is DefaultConfig; the resolver worker pool is started
// immediately.
//
// Parameters:
//   - options: a variadic list of options to configure the manager
//
// Returns:
//   - ShadowManager: a new instance of ShadowManager configured with the provided options
//   - error: configuration validation or GPU resource creation failure
func NewShadowManager(options ...ShadowManagerOption) (ShadowManager, error) {
	m := &shadowManagerImpl{
		cfg:            DefaultConfig(),
		lights:         make(map[uint32]*lightState),
		pages:          make(map[PageKey]*pageState),
		byHandle:       make(map[atlas.Handle]PageKey),
		resolveWorkers: max(runtime.NumCPU()-1, 1),
		log:            zap.NewNop(),
	}
	for _, opt := range options {
		opt(m)
	}

	if err := m.cfg.Validate(); err != nil {
		return nil, err
	}
	if m.device != nil && m.limits == nil {
		// The texture must fit whatever the device was created with; without
		// explicit limits the WebGPU defaults are the only safe assumption.
		limits := wgpu.DefaultLimits()
		m.limits = &limits
	}
	if linear := uint64(m.cfg.VirtualGridSize) * uint64(m.cfg.VirtualGridSize) * 6; linear > uint64(m.cfg.TableCapacity) {
		m.log.Warn("page table capacity below one light's full address space, collisions likely",
			zap.Uint32("table_capacity", m.cfg.TableCapacity),
			zap.Uint64("pages_per_light", linear),
		)
	}

	m.atlas = NewAtlasForConfig(m.cfg, m.log, m.atlasLimitOptions()...)
	m.provider = bind_group_provider.NewBindGroupProvider("Shadow Page Table")

	if m.device != nil {
		backend, err := atlas.NewTextureBackend(m.device, m.atlas)
		if err != nil {
			return nil, fmt.Errorf("creating shadow atlas backend: %w", err)
		}
		m.backend = backend
	}

	m.resolvePool = worker.NewDynamicWorkerPool(m.resolveWorkers, 256, 1*time.Second)
	return m, nil
}
