package atlas_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/umbra-go/engine/atlas"
	"github.com/cogentcore/webgpu/wgpu"
)

func Test_Alloc_Scans_Deterministically(t *testing.T) {
	t.Parallel()

	a := atlas.NewTileAtlas(
		atlas.WithGridSize(2, 2),
		atlas.WithLayers(2),
	)

	// First-fit is layer-major, then row-major, then column-major: four 1x1
	// allocations fill layer 0 before touching layer 1.
	var handles []atlas.Handle
	for i := 0; i < 4; i++ {
		h, relocations, ok := a.Alloc(1, 1)
		require.True(t, ok, "alloc %d", i)
		require.Empty(t, relocations, "no repack expected while space is contiguous")
		handles = append(handles, h)
	}

	for i, h := range handles {
		uv, ok := a.UVTransform(h)
		require.True(t, ok)
		assert.Equal(t, uint32(0), uv.Layer, "allocation %d should land on layer 0", i)
	}

	h, _, ok := a.Alloc(2, 2)
	require.True(t, ok)
	uv, ok := a.UVTransform(h)
	require.True(t, ok)
	assert.Equal(t, uint32(1), uv.Layer, "full-layer region must spill to layer 1")
}

func Test_Alloc_Repacks_Once_On_Fragmentation(t *testing.T) {
	t.Parallel()

	a := atlas.NewTileAtlas(
		atlas.WithGridSize(4, 1),
		atlas.WithLayers(1),
	)

	var handles []atlas.Handle
	for i := 0; i < 4; i++ {
		h, _, ok := a.Alloc(1, 1)
		require.True(t, ok)
		handles = append(handles, h)
	}

	// Free the 2nd and 4th tiles: two free tiles remain but no contiguous
	// 2x1 rectangle does.
	require.True(t, a.Free(handles[1]))
	require.True(t, a.Free(handles[3]))
	require.Equal(t, uint32(2), a.FreeTiles())

	h, relocations, ok := a.Alloc(2, 1)
	require.True(t, ok, "2x1 must fit after defragmentation")
	require.NotEmpty(t, relocations, "defragmentation must move at least one slot")

	// The surviving allocations and the new region must all be resolvable.
	for _, rel := range relocations {
		_, ok := a.UVTransform(rel.Handle)
		assert.True(t, ok, "relocated handle must stay valid")
	}
	_, ok = a.UVTransform(h)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), a.FreeTiles())

	stats := a.Stats()
	assert.Equal(t, uint64(1), stats.Repacks)
	assert.Equal(t, uint64(0), stats.DroppedSlots)
}

func Test_Alloc_Fails_Without_Space(t *testing.T) {
	t.Parallel()

	a := atlas.NewTileAtlas(
		atlas.WithGridSize(2, 2),
		atlas.WithLayers(1),
	)

	_, _, ok := a.Alloc(2, 2)
	require.True(t, ok)

	_, relocations, ok := a.Alloc(1, 1)
	assert.False(t, ok)
	assert.Empty(t, relocations, "a full atlas must fail fast without repacking")

	stats := a.Stats()
	assert.Equal(t, uint64(0), stats.Repacks)
}

func Test_Alloc_Fills_To_Capacity_Then_Fails_Cleanly(t *testing.T) {
	t.Parallel()

	a := atlas.NewTileAtlas(
		atlas.WithGridSize(2, 2),
		atlas.WithLayers(1),
	)

	for i := 0; i < 4; i++ {
		_, _, ok := a.Alloc(1, 1)
		require.True(t, ok, "alloc %d", i)
	}

	_, _, ok := a.Alloc(1, 1)
	assert.False(t, ok, "a full atlas rejects the fifth allocation")
	assert.Equal(t, uint32(0), a.FreeTiles())
}

func Test_WithDeviceLimits_Clamps_Atlas_Shape(t *testing.T) {
	t.Parallel()

	// 16 tiles of 256px content plus guards exceed a 2048px texture limit;
	// the grid must shrink to what the device can hold.
	a := atlas.NewTileAtlas(
		atlas.WithTileResolution(256),
		atlas.WithGridSize(16, 16),
		atlas.WithLayers(64),
		atlas.WithDeviceLimits(wgpu.Limits{
			MaxTextureDimension2D: 2048,
			MaxTextureArrayLayers: 8,
		}),
	)

	wantTiles := 2048 / a.CellPitch()
	assert.Equal(t, wantTiles, a.TilesW())
	assert.Equal(t, wantTiles, a.TilesH())
	assert.Equal(t, uint32(8), a.Layers())
	assert.Equal(t, wantTiles*wantTiles*8, a.TotalTiles())
}

func Test_Free_Makes_Region_Reallocatable(t *testing.T) {
	t.Parallel()

	a := atlas.NewTileAtlas(
		atlas.WithGridSize(2, 2),
		atlas.WithLayers(1),
	)

	h, _, ok := a.Alloc(2, 2)
	require.True(t, ok)
	require.True(t, a.Free(h))
	require.Equal(t, uint32(4), a.FreeTiles())

	// The freed region is immediately reusable for smaller allocations.
	_, _, ok = a.Alloc(1, 1)
	require.True(t, ok)
	_, _, ok = a.Alloc(1, 1)
	require.True(t, ok)
	assert.Equal(t, uint32(2), a.FreeTiles())
}

func Test_Alloc_Rejects_Oversized_And_Empty_Regions(t *testing.T) {
	t.Parallel()

	a := atlas.NewTileAtlas(
		atlas.WithGridSize(4, 4),
		atlas.WithLayers(1),
	)

	testCases := []struct {
		name string
		w, h uint32
	}{
		{name: "ZeroWidth", w: 0, h: 1},
		{name: "ZeroHeight", w: 1, h: 0},
		{name: "WiderThanGrid", w: 5, h: 1},
		{name: "TallerThanGrid", w: 1, h: 5},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, _, ok := a.Alloc(testCase.w, testCase.h)
			assert.False(t, ok)
		})
	}
}

func Test_Free_Rejects_Stale_Handles(t *testing.T) {
	t.Parallel()

	a := atlas.NewTileAtlas(
		atlas.WithGridSize(2, 2),
		atlas.WithLayers(1),
	)

	h1, _, ok := a.Alloc(1, 1)
	require.True(t, ok)

	require.True(t, a.Free(h1))
	assert.False(t, a.Free(h1), "double free must be rejected")

	// The freed index is reused with a bumped generation; the stale handle
	// must not resolve to the new allocation.
	h2, _, ok := a.Alloc(1, 1)
	require.True(t, ok)
	require.Equal(t, h1.Index, h2.Index, "freed index should be reused")
	require.NotEqual(t, h1.Generation, h2.Generation)

	_, ok = a.UVTransform(h1)
	assert.False(t, ok, "stale handle must not resolve")
	assert.False(t, a.Free(h1), "stale handle must not free the reused slot")

	_, ok = a.UVTransform(h2)
	assert.True(t, ok)
}

func Test_Free_Conserves_Tile_Accounting(t *testing.T) {
	t.Parallel()

	a := atlas.NewTileAtlas(
		atlas.WithGridSize(4, 4),
		atlas.WithLayers(2),
	)
	total := a.TotalTiles()
	require.Equal(t, uint32(32), total)
	require.Equal(t, total, a.FreeTiles())

	h1, _, ok := a.Alloc(2, 3)
	require.True(t, ok)
	h2, _, ok := a.Alloc(1, 1)
	require.True(t, ok)
	assert.Equal(t, total-7, a.FreeTiles())
	assert.InDelta(t, 7.0/32.0, a.Utilization(), 1e-9)

	require.True(t, a.Free(h1))
	require.True(t, a.Free(h2))
	assert.Equal(t, total, a.FreeTiles())
	assert.InDelta(t, 0.0, a.Utilization(), 1e-9)
}

func Test_Repack_Is_Idempotent(t *testing.T) {
	t.Parallel()

	a := atlas.NewTileAtlas(
		atlas.WithGridSize(4, 4),
		atlas.WithLayers(1),
	)

	var handles []atlas.Handle
	for _, dims := range [][2]uint32{{2, 2}, {1, 1}, {2, 1}, {1, 2}} {
		h, _, ok := a.Alloc(dims[0], dims[1])
		require.True(t, ok)
		handles = append(handles, h)
	}
	require.True(t, a.Free(handles[1]))

	a.Repack()
	second := a.Repack()
	assert.Empty(t, second, "a packed atlas must not move anything on repack")
}

func Test_UVTransform_Excludes_Guard_Border(t *testing.T) {
	t.Parallel()

	a := atlas.NewTileAtlas(
		atlas.WithGridSize(2, 2),
		atlas.WithLayers(1),
		atlas.WithTileResolution(256),
	)
	require.Equal(t, uint32(256+2*atlas.GuardPixels), a.CellPitch())

	h, _, ok := a.Alloc(1, 1)
	require.True(t, ok)

	uv, ok := a.UVTransform(h)
	require.True(t, ok)

	pitch := float32(a.CellPitch())
	atlasPx := 2 * pitch
	want := atlas.UVTransform{
		ScaleX: 256 / atlasPx,
		ScaleY: 256 / atlasPx,
		BiasX:  atlas.GuardPixels / atlasPx,
		BiasY:  atlas.GuardPixels / atlasPx,
		Layer:  0,
	}
	if diff := cmp.Diff(want, uv); diff != "" {
		t.Errorf("UVTransform mismatch (-want +got):\n%s", diff)
	}

	// The inner rectangle must sit strictly inside the cell: uv=0 maps past
	// the guard, uv=1 stays short of the cell edge.
	assert.Greater(t, uv.BiasX, float32(0))
	assert.Less(t, uv.BiasX+uv.ScaleX, float32(0.5))
}

func Test_UVTransform_Spans_MultiTile_Regions(t *testing.T) {
	t.Parallel()

	a := atlas.NewTileAtlas(
		atlas.WithGridSize(4, 4),
		atlas.WithLayers(1),
		atlas.WithTileResolution(128),
	)

	h, _, ok := a.Alloc(2, 1)
	require.True(t, ok)

	uv, ok := a.UVTransform(h)
	require.True(t, ok)

	pitch := float32(a.CellPitch())
	atlasPx := 4 * pitch
	assert.InDelta(t, (2*pitch-2*atlas.GuardPixels)/atlasPx, uv.ScaleX, 1e-6,
		"a 2-tile-wide region keeps one guard inset per side, not per tile")
	assert.InDelta(t, (pitch-2*atlas.GuardPixels)/atlasPx, uv.ScaleY, 1e-6)
}
