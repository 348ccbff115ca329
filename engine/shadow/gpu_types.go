package shadow

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUPageEntrySource is the canonical WGSL definition of the PageEntry struct.
// Matches GPUPageEntry layout exactly (32 bytes, std430 aligned).
//
//go:embed assets/page_entry.wgsl
var GPUPageEntrySource string

// GPUPageEntry is the GPU-aligned representation of a single page table slot.
// The shader reads ScaleOffset to remap a fragment's virtual-cell UV into the
// atlas inner rectangle of the resident tile, and LayerIndex to select the
// texture array layer. Valid == 0 marks the slot empty; the shader treats
// empty slots as fully lit. The nominal layout reserves 12 bytes of padding
// after LayerIndex; Valid occupies the first of those words so a zeroed
// buffer reads as an empty table without a separate occupancy mask.
// Matches the WGSL PageEntry struct layout exactly (see GPUPageEntrySource).
// Size: 32 bytes (std430 / WGSL aligned).
type GPUPageEntry struct {
	ScaleOffset [4]float32 // offset  0: xy = UV scale, zw = UV bias into the atlas
	LayerIndex  uint32     // offset 16: atlas texture array layer
	Valid       uint32     // offset 20: 1 = resident page, 0 = empty slot
	_pad0       uint32     // offset 24: padding to 32-byte alignment
	_pad1       uint32     // offset 28: padding to 32-byte alignment
}

// Size returns the size of the GPUPageEntry struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (e *GPUPageEntry) Size() int {
	return int(unsafe.Sizeof(*e))
}

// Marshal serializes the GPUPageEntry struct into a byte buffer suitable for
// GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (e *GPUPageEntry) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(e.ScaleOffset[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(e.ScaleOffset[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(e.ScaleOffset[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(e.ScaleOffset[3]))
	binary.LittleEndian.PutUint32(buf[16:20], e.LayerIndex)
	binary.LittleEndian.PutUint32(buf[20:24], e.Valid)
	binary.LittleEndian.PutUint32(buf[24:28], 0) // padding
	binary.LittleEndian.PutUint32(buf[28:32], 0) // padding
	return buf
}

// GPUShadowParamsSource is the canonical WGSL definition of the ShadowParams struct.
// Matches GPUShadowParams layout exactly (32 bytes, std430 aligned).
//
//go:embed assets/shadow_params.wgsl
var GPUShadowParamsSource string

// GPUShadowParams is the GPU-aligned parameter block read by the shadow
// sampling shader.
// Matches the WGSL ShadowParams struct layout exactly (see GPUShadowParamsSource).
// Size: 32 bytes (std430 / WGSL aligned).
//
// Layout:
//
//	f32 virtual_grid_size  (4 bytes, offset  0)
//	i32 pcf_range          (4 bytes, offset  4)
//	u32 table_capacity     (4 bytes, offset  8)
//	f32 bias_min           (4 bytes, offset 12)
//	f32 bias_slope         (4 bytes, offset 16)
//	f32 point_bias_min     (4 bytes, offset 20)
//	f32 point_bias_slope   (4 bytes, offset 24)
//	u32 _pad               (4 bytes, offset 28)
type GPUShadowParams struct {
	VirtualGridSize float32 // grid dimension as float, saves a conversion per fragment
	PCFRange        int32   // PCF sample radius in texels
	TableCapacity   uint32  // page table slot count, the shader hashes modulo this
	BiasMin         float32 // minimum depth bias for directional/spot shadows
	BiasSlope       float32 // slope-scaled depth bias for directional/spot shadows
	PointBiasMin    float32 // minimum depth bias for point shadows
	PointBiasSlope  float32 // slope-scaled depth bias for point shadows
	_pad            uint32  // padding to 32-byte alignment
}

// Size returns the size of the GPUShadowParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (p *GPUShadowParams) Size() int {
	return int(unsafe.Sizeof(*p))
}

// Marshal serializes the GPUShadowParams struct into a byte buffer suitable
// for GPU uniform upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (p *GPUShadowParams) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(p.VirtualGridSize))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.PCFRange))
	binary.LittleEndian.PutUint32(buf[8:12], p.TableCapacity)
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(p.BiasMin))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(p.BiasSlope))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(p.PointBiasMin))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(p.PointBiasSlope))
	binary.LittleEndian.PutUint32(buf[28:32], 0) // padding
	return buf
}

// ParamsFromConfig builds the GPU parameter block from a shadow configuration.
//
// Parameters:
//   - cfg: the active shadow configuration
//
// Returns:
//   - GPUShadowParams: the GPU-aligned parameter block
func ParamsFromConfig(cfg Config) GPUShadowParams {
	return GPUShadowParams{
		VirtualGridSize: float32(cfg.VirtualGridSize),
		PCFRange:        int32(cfg.Smoothing),
		TableCapacity:   cfg.TableCapacity,
		BiasMin:         cfg.BiasMin,
		BiasSlope:       cfg.BiasSlope,
		PointBiasMin:    cfg.PointBiasMin,
		PointBiasSlope:  cfg.PointBiasSlope,
	}
}

// PageTableIndex maps a virtual page key to its fixed slot in the GPU page
// table. The mapping must match the WGSL lookup exactly: the shader computes
// the same linearization and modulo from the fragment's light, face and cell.
// Distinct keys can collide when the linear key space exceeds the table
// capacity; collisions overwrite rather than chain, so capacity should be
// sized to cover every addressable page of the active lights.
//
// Parameters:
//   - lightID: the light's stable identifier
//   - face: the cube face index (always 0 for directional/spot)
//   - x, y: the virtual cell coordinate
//   - gridSize: the virtual grid dimension
//   - capacity: the page table slot count
//
// Returns:
//   - uint32: the table slot index in [0, capacity)
func PageTableIndex(lightID, face, x, y, gridSize, capacity uint32) uint32 {
	linear := ((lightID*6+face)*gridSize*gridSize + y*gridSize + x)
	return linear % capacity
}
