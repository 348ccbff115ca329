package light_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/umbra-go/common"
	"github.com/Carmen-Shannon/umbra-go/engine/light"
)

func Test_DirectionalShadowMatrices_Center_Projects_To_Origin(t *testing.T) {
	t.Parallel()

	view, proj := light.DirectionalShadowMatrices(
		[3]float32{0.3, -0.8, 0.5}, 4, 0, -2, 40, 0.1, 200,
	)

	var viewProj [16]float32
	common.Mul4(viewProj[:], proj[:], view[:])

	// The frustum is centered on the focus point, so it lands on the NDC
	// origin in x/y.
	p, _ := common.TransformPoint(viewProj[:], 4, 0, -2)
	assert.InDelta(t, 0, p[0], 1e-4)
	assert.InDelta(t, 0, p[1], 1e-4)
}

func Test_DirectionalShadowMatrices_Handles_Vertical_Light(t *testing.T) {
	t.Parallel()

	// A straight-down light is parallel to the default up vector; the fallback
	// must still produce a usable (finite) matrix.
	view, proj := light.DirectionalShadowMatrices(
		[3]float32{0, -1, 0}, 0, 0, 0, 40, 0.1, 200,
	)

	var viewProj [16]float32
	common.Mul4(viewProj[:], proj[:], view[:])
	for i, v := range viewProj {
		require.False(t, math.IsNaN(float64(v)), "element %d is NaN", i)
	}

	p, _ := common.TransformPoint(viewProj[:], 0, 0, 0)
	assert.InDelta(t, 0, p[0], 1e-4)
	assert.InDelta(t, 0, p[1], 1e-4)
}

func Test_SpotShadowMatrices_Cone_Edge_Reaches_Clip_Boundary(t *testing.T) {
	t.Parallel()

	position := [3]float32{0, 5, 0}
	direction := [3]float32{0, -1, 0}
	outerCos := float32(math.Cos(math.Pi / 6)) // 30° half-angle

	view, proj := light.SpotShadowMatrices(position, direction, outerCos, 0.1, 50)

	var viewProj [16]float32
	common.Mul4(viewProj[:], proj[:], view[:])

	// A point on the cone axis projects to the NDC center.
	center, w := common.TransformPoint(viewProj[:], 0, 0, 0)
	assert.Greater(t, w, float32(0))
	assert.InDelta(t, 0, center[0], 1e-4)
	assert.InDelta(t, 0, center[1], 1e-4)

	// The fovY equals the full cone angle (2x the half-angle), so a ray at
	// the half-angle from the axis hits the NDC edge.
	offset := 4 * float32(math.Tan(math.Pi/6))
	edge, _ := common.TransformPoint(viewProj[:], 0, 1, offset)
	assert.InDelta(t, 1, absf(edge[0]), 1e-3)
}

func Test_PointShadowFaceView_Looks_Along_Each_Axis(t *testing.T) {
	t.Parallel()

	position := [3]float32{2, 3, 4}
	axes := [][3]float32{
		{1, 0, 0}, {-1, 0, 0},
		{0, 1, 0}, {0, -1, 0},
		{0, 0, 1}, {0, 0, -1},
	}

	for face := uint32(0); face < light.PointFaceCount; face++ {
		view := light.PointShadowFaceView(position, face)

		// A point one unit along the face axis must sit straight ahead in
		// view space (the view convention looks down -Z).
		target := [3]float32{
			position[0] + axes[face][0],
			position[1] + axes[face][1],
			position[2] + axes[face][2],
		}
		p, _ := common.TransformPoint(view[:], target[0], target[1], target[2])
		assert.InDelta(t, 0, p[0], 1e-5, "face %d x", face)
		assert.InDelta(t, 0, p[1], 1e-5, "face %d y", face)
		assert.InDelta(t, -1, p[2], 1e-5, "face %d z", face)
	}
}

func Test_PointShadowProjection_Is_Square_90_Degrees(t *testing.T) {
	t.Parallel()

	proj := light.PointShadowProjection(0.1, 25)

	// tan(45°) = 1: a view-space point offset by exactly its distance hits
	// the NDC edge on both axes.
	p, _ := common.TransformPoint(proj[:], 5, 0, -5)
	assert.InDelta(t, 1, p[0], 1e-5)
	p, _ = common.TransformPoint(proj[:], 0, -5, -5)
	assert.InDelta(t, -1, p[1], 1e-5)
}

func Test_NewLight_Stores_Cone_As_Cosine(t *testing.T) {
	t.Parallel()

	l := light.NewLight(light.LightTypeSpot, light.WithOuterCone(60))
	assert.InDelta(t, 0.5, l.OuterCone(), 1e-5)

	l.SetOuterCone(0)
	assert.InDelta(t, 1.0, l.OuterCone(), 1e-6)
}

func Test_SetDirection_Normalizes(t *testing.T) {
	t.Parallel()

	l := light.NewLight(light.LightTypeDirectional)
	l.SetDirection(0, -2, 0)
	assert.Equal(t, [3]float32{0, -1, 0}, l.Direction())

	l.SetDirection(0, 0, 0)
	assert.Equal(t, [3]float32{0, -1, 0}, l.Direction(), "zero direction falls back to straight down")
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
