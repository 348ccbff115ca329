package atlas

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/umbra-go/common"
)

// TextureFormat is the depth format used for the shadow atlas texture array.
// Depth32Float is universally renderable and comparison-sampleable on WebGPU.
const TextureFormat = wgpu.TextureFormatDepth32Float

// TextureBackend owns the GPU texture-array resource behind a TileAtlas: the
// depth texture itself, one render-target view per layer for depth-only passes,
// a whole-array view for binding as a sampled texture, and the comparison
// sampler used to read it.
//
// The resource is rebuilt in full only on explicit reconfiguration; normal
// allocation pressure never recreates it. Rebuilding invalidates every layer
// view previously handed out.
type TextureBackend interface {
	// LayerView returns the single-layer render-target view for depth-only
	// rendering into one physical layer.
	//
	// Parameters:
	//   - layer: the array layer index
	//
	// Returns:
	//   - *wgpu.TextureView: the layer view, or nil if layer is out of range
	LayerView(layer uint32) *wgpu.TextureView

	// ArrayView returns the whole-array view for binding the atlas as a
	// sampled depth texture.
	ArrayView() *wgpu.TextureView

	// Sampler returns the comparison sampler for shadow lookups.
	Sampler() *wgpu.Sampler

	// Rebuild destroys and recreates the texture resource for a new atlas
	// shape. Destructive: all previously returned views are invalid afterward.
	//
	// Parameters:
	//   - a: the TileAtlas describing the new shape
	//
	// Returns:
	//   - error: error if GPU resource creation fails
	Rebuild(a TileAtlas) error

	// Release releases all GPU resources held by the backend.
	Release()
}

// textureBackendImpl is the implementation of TextureBackend.
type textureBackendImpl struct {
	device *wgpu.Device

	texture    *wgpu.Texture
	layerViews []*wgpu.TextureView
	arrayView  *wgpu.TextureView
	sampler    *wgpu.Sampler
}

var _ TextureBackend = &textureBackendImpl{}

// NewTextureBackend creates the GPU resources for the given atlas shape on the
// provided device.
//
// Parameters:
//   - device: the wgpu device to allocate on
//   - a: the TileAtlas describing the texture shape
//
// Returns:
//   - TextureBackend: the backend owning the created resources
//   - error: error if GPU resource creation fails
func NewTextureBackend(device *wgpu.Device, a TileAtlas) (TextureBackend, error) {
	b := &textureBackendImpl{device: device}
	if err := b.Rebuild(a); err != nil {
		return nil, err
	}

	staging := common.ShadowSamplerStagingData()
	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Shadow Atlas Sampler",
		AddressModeU:  common.Coalesce(staging.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(staging.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(staging.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(staging.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(staging.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(staging.MipmapFilter, wgpu.MipmapFilterModeNearest),
		LodMinClamp:   staging.LodMinClamp,
		LodMaxClamp:   common.Coalesce(staging.LodMaxClamp, 1.0),
		MaxAnisotropy: common.Coalesce(staging.MaxAnisotropy, 1),
		Compare:       staging.Compare,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("failed to create shadow atlas sampler: %w", err)
	}
	b.sampler = sampler

	return b, nil
}

func (b *textureBackendImpl) Rebuild(a TileAtlas) error {
	b.releaseTexture()

	pitch := a.CellPitch()
	texture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Shadow Atlas Texture",
		Size: wgpu.Extent3D{
			Width:              a.TilesW() * pitch,
			Height:             a.TilesH() * pitch,
			DepthOrArrayLayers: a.Layers(),
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        TextureFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("failed to create shadow atlas texture: %w", err)
	}
	b.texture = texture

	b.layerViews = make([]*wgpu.TextureView, a.Layers())
	for layer := uint32(0); layer < a.Layers(); layer++ {
		view, viewErr := texture.CreateView(&wgpu.TextureViewDescriptor{
			Label:           fmt.Sprintf("Shadow Atlas Layer %d", layer),
			Format:          TextureFormat,
			Dimension:       wgpu.TextureViewDimension2D,
			BaseMipLevel:    0,
			MipLevelCount:   1,
			BaseArrayLayer:  layer,
			ArrayLayerCount: 1,
			Aspect:          wgpu.TextureAspectDepthOnly,
		})
		if viewErr != nil {
			b.releaseTexture()
			return fmt.Errorf("failed to create shadow atlas layer view %d: %w", layer, viewErr)
		}
		b.layerViews[layer] = view
	}

	arrayView, err := texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           "Shadow Atlas Array View",
		Format:          TextureFormat,
		Dimension:       wgpu.TextureViewDimension2DArray,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: a.Layers(),
		Aspect:          wgpu.TextureAspectDepthOnly,
	})
	if err != nil {
		b.releaseTexture()
		return fmt.Errorf("failed to create shadow atlas array view: %w", err)
	}
	b.arrayView = arrayView

	return nil
}

func (b *textureBackendImpl) LayerView(layer uint32) *wgpu.TextureView {
	if int(layer) >= len(b.layerViews) {
		return nil
	}
	return b.layerViews[layer]
}

func (b *textureBackendImpl) ArrayView() *wgpu.TextureView {
	return b.arrayView
}

func (b *textureBackendImpl) Sampler() *wgpu.Sampler {
	return b.sampler
}

func (b *textureBackendImpl) releaseTexture() {
	for i, view := range b.layerViews {
		if view != nil {
			view.Release()
			b.layerViews[i] = nil
		}
	}
	b.layerViews = nil
	if b.arrayView != nil {
		b.arrayView.Release()
		b.arrayView = nil
	}
	if b.texture != nil {
		b.texture.Release()
		b.texture = nil
	}
}

func (b *textureBackendImpl) Release() {
	b.releaseTexture()
	if b.sampler != nil {
		b.sampler.Release()
		b.sampler = nil
	}
}
