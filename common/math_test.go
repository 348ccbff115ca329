package common_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/umbra-go/common"
)

func Test_Mul4_Identity_Is_Neutral(t *testing.T) {
	t.Parallel()

	var ident, m, out [16]float32
	common.Identity(ident[:])
	common.LookAt(m[:], 3, 4, 5, 0, 0, 0, 0, 1, 0)

	common.Mul4(out[:], ident[:], m[:])
	assert.Equal(t, m, out)

	common.Mul4(out[:], m[:], ident[:])
	assert.Equal(t, m, out)
}

func Test_Invert4_Roundtrips_View_Projection(t *testing.T) {
	t.Parallel()

	var view, proj, viewProj, inv, out [16]float32
	common.LookAt(view[:], 10, 6, -4, 0, 1, 0, 0, 1, 0)
	common.Perspective(proj[:], float32(math.Pi)/3, 16.0/9.0, 0.1, 200)
	common.Mul4(viewProj[:], proj[:], view[:])

	require.True(t, common.Invert4(inv[:], viewProj[:]))
	common.Mul4(out[:], viewProj[:], inv[:])

	var ident [16]float32
	common.Identity(ident[:])
	for i := range out {
		assert.InDelta(t, ident[i], out[i], 1e-4, "element %d", i)
	}
}

func Test_Invert4_Rejects_Singular_Matrix(t *testing.T) {
	t.Parallel()

	var zero, out [16]float32
	assert.False(t, common.Invert4(out[:], zero[:]))
}

func Test_TransformPoint_Applies_Translation(t *testing.T) {
	t.Parallel()

	var m [16]float32
	common.Identity(m[:])
	m[12], m[13], m[14] = 2, -3, 7

	p, w := common.TransformPoint(m[:], 1, 1, 1)
	assert.Equal(t, [3]float32{3, -2, 8}, p)
	assert.Equal(t, float32(1), w)
}

func Test_TransformPoint_Performs_Perspective_Divide(t *testing.T) {
	t.Parallel()

	var proj [16]float32
	common.Perspective(proj[:], float32(math.Pi)/2, 1, 1, 100)

	// A point on the view axis at z = -10 projects to the NDC center with
	// positive clip w equal to the view-space distance.
	p, w := common.TransformPoint(proj[:], 0, 0, -10)
	assert.InDelta(t, 0, p[0], 1e-6)
	assert.InDelta(t, 0, p[1], 1e-6)
	assert.InDelta(t, 10, w, 1e-5)
}

func Test_Ortho_Maps_Depth_To_WebGPU_Range(t *testing.T) {
	t.Parallel()

	var proj [16]float32
	common.Ortho(proj[:], -5, 5, -5, 5, 1, 101)

	near, _ := common.TransformPoint(proj[:], 0, 0, -1)
	far, _ := common.TransformPoint(proj[:], 0, 0, -101)
	assert.InDelta(t, 0, near[2], 1e-6, "near plane maps to depth 0")
	assert.InDelta(t, 1, far[2], 1e-6, "far plane maps to depth 1")

	corner, _ := common.TransformPoint(proj[:], 5, -5, -1)
	assert.InDelta(t, 1, corner[0], 1e-6)
	assert.InDelta(t, -1, corner[1], 1e-6)
}

func Test_FrustumCornersWorld_Orders_Depth_Planes(t *testing.T) {
	t.Parallel()

	var ident [16]float32
	common.Identity(ident[:])

	corners := common.FrustumCornersWorld(ident[:])

	// The first four corners sit on the z=1 plane, the last four on z=0, so
	// the set spans the full [0,1] depth range.
	for i := 0; i < 4; i++ {
		assert.Equal(t, float32(1), corners[i][2], "corner %d", i)
	}
	for i := 4; i < 8; i++ {
		assert.Equal(t, float32(0), corners[i][2], "corner %d", i)
	}

	assert.Equal(t, [3]float32{-1, -1, 1}, corners[0])
	assert.Equal(t, [3]float32{1, 1, 0}, corners[7])
}

func Test_FrustumCornersWorld_Unprojects_Through_Inverse(t *testing.T) {
	t.Parallel()

	var view, proj, viewProj, inv [16]float32
	common.LookAt(view[:], 0, 0, 10, 0, 0, 0, 0, 1, 0)
	common.Perspective(proj[:], float32(math.Pi)/2, 1, 1, 100)
	common.Mul4(viewProj[:], proj[:], view[:])
	require.True(t, common.Invert4(inv[:], viewProj[:]))

	corners := common.FrustumCornersWorld(inv[:])

	// Re-projecting every world corner must land back on the NDC cube, with
	// depth matching the source plane. Perspective writes near depth as 0, so
	// the z=1 corners are the far plane here.
	for i, c := range corners {
		p, w := common.TransformPoint(viewProj[:], c[0], c[1], c[2])
		assert.Greater(t, w, float32(0), "corner %d must sit in front of the camera", i)
		assert.InDelta(t, 1, absf(p[0]), 1e-3, "corner %d x", i)
		assert.InDelta(t, 1, absf(p[1]), 1e-3, "corner %d y", i)
		wantZ := float32(1)
		if i >= 4 {
			wantZ = 0
		}
		assert.InDelta(t, wantZ, p[2], 1e-3, "corner %d depth", i)
	}
}

func Test_SliceToBytes_Views_Backing_Memory(t *testing.T) {
	t.Parallel()

	assert.Nil(t, common.SliceToBytes([]float32(nil)))

	data := []float32{1, 2}
	raw := common.SliceToBytes(data)
	require.Len(t, raw, 8)
	// 1.0f little-endian is 0x3f800000.
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, raw[:4])

	// The view shares memory with the slice, no copy happens.
	data[0] = 0
	assert.Equal(t, []byte{0, 0, 0, 0}, raw[:4])
}

func Test_StructToBytes_Covers_Full_Struct(t *testing.T) {
	t.Parallel()

	v := struct {
		A uint32
		B uint32
	}{A: 0x01020304, B: 0xAABBCCDD}

	raw := common.StructToBytes(&v)
	require.Len(t, raw, 8)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, raw[:4])
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
