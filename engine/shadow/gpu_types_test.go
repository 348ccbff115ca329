package shadow_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/umbra-go/engine/shadow"
)

func Test_GPUPageEntry_Marshal_Layout(t *testing.T) {
	t.Parallel()

	entry := shadow.GPUPageEntry{
		ScaleOffset: [4]float32{0.25, 0.5, 0.125, 0.0625},
		LayerIndex:  3,
		Valid:       1,
	}
	require.Equal(t, 32, entry.Size())

	buf := entry.Marshal()
	require.Len(t, buf, 32)

	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])))
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])))
	assert.Equal(t, float32(0.125), math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12])))
	assert.Equal(t, float32(0.0625), math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16])))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[16:20]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[20:24]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[24:28]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[28:32]))
}

func Test_GPUShadowParams_Marshal_Layout(t *testing.T) {
	t.Parallel()

	params := shadow.GPUShadowParams{
		VirtualGridSize: 8,
		PCFRange:        2,
		TableCapacity:   4096,
		BiasMin:         0.0005,
		BiasSlope:       0.002,
		PointBiasMin:    0.001,
		PointBiasSlope:  0.004,
	}
	require.Equal(t, 32, params.Size())

	buf := params.Marshal()
	require.Len(t, buf, 32)

	assert.Equal(t, float32(8), math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])))
	assert.Equal(t, int32(2), int32(binary.LittleEndian.Uint32(buf[4:8])))
	assert.Equal(t, uint32(4096), binary.LittleEndian.Uint32(buf[8:12]))
	assert.Equal(t, float32(0.0005), math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16])))
	assert.Equal(t, float32(0.004), math.Float32frombits(binary.LittleEndian.Uint32(buf[24:28])))
}

func Test_ParamsFromConfig_Copies_All_Fields(t *testing.T) {
	t.Parallel()

	cfg := shadow.DefaultConfig()
	cfg.VirtualGridSize = 16
	cfg.Smoothing = 2

	params := shadow.ParamsFromConfig(cfg)
	assert.Equal(t, float32(16), params.VirtualGridSize)
	assert.Equal(t, int32(2), params.PCFRange)
	assert.Equal(t, cfg.TableCapacity, params.TableCapacity)
	assert.Equal(t, cfg.BiasMin, params.BiasMin)
	assert.Equal(t, cfg.BiasSlope, params.BiasSlope)
	assert.Equal(t, cfg.PointBiasMin, params.PointBiasMin)
	assert.Equal(t, cfg.PointBiasSlope, params.PointBiasSlope)
}

func Test_PageTableIndex_Linearizes_Key_Space(t *testing.T) {
	t.Parallel()

	const grid, capacity = 4, 4096

	// With capacity above the addressed key space, every key gets a distinct
	// slot and the linearization matches (light*6+face)*grid² + y*grid + x.
	seen := make(map[uint32]bool)
	for lightID := uint32(0); lightID < 3; lightID++ {
		for face := uint32(0); face < 6; face++ {
			for y := uint32(0); y < grid; y++ {
				for x := uint32(0); x < grid; x++ {
					slot := shadow.PageTableIndex(lightID, face, x, y, grid, capacity)
					want := (lightID*6+face)*grid*grid + y*grid + x
					assert.Equal(t, want, slot)
					assert.False(t, seen[slot], "slot %d assigned twice", slot)
					seen[slot] = true
				}
			}
		}
	}
}

func Test_PageTableIndex_Wraps_At_Capacity(t *testing.T) {
	t.Parallel()

	const grid, capacity = 8, 16

	slot := shadow.PageTableIndex(10, 3, 7, 7, grid, capacity)
	assert.Less(t, slot, uint32(capacity))

	// Keys separated by exactly the capacity in linear space collide.
	a := shadow.PageTableIndex(0, 0, 0, 0, grid, capacity)
	b := shadow.PageTableIndex(0, 0, 0, 2, grid, capacity) // linear 16
	assert.Equal(t, a, b)
}

func Test_WGSL_Sources_Are_Embedded(t *testing.T) {
	t.Parallel()

	assert.Contains(t, shadow.GPUPageEntrySource, "struct PageEntry")
	assert.Contains(t, shadow.GPUShadowParamsSource, "struct ShadowParams")
}
