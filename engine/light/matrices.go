package light

import (
	"math"

	"github.com/Carmen-Shannon/umbra-go/common"
)

// cubeFaces holds the look direction and up vector for each of the six point
// light shadow faces, in the standard cubemap face order:
// +X, -X, +Y, -Y, +Z, -Z.
var cubeFaces = [PointFaceCount]struct {
	dir [3]float32
	up  [3]float32
}{
	{dir: [3]float32{1, 0, 0}, up: [3]float32{0, -1, 0}},
	{dir: [3]float32{-1, 0, 0}, up: [3]float32{0, -1, 0}},
	{dir: [3]float32{0, 1, 0}, up: [3]float32{0, 0, 1}},
	{dir: [3]float32{0, -1, 0}, up: [3]float32{0, 0, -1}},
	{dir: [3]float32{0, 0, 1}, up: [3]float32{0, -1, 0}},
	{dir: [3]float32{0, 0, -1}, up: [3]float32{0, -1, 0}},
}

// DirectionalShadowMatrices builds the view and orthographic projection
// matrices for a directional light's shadow pass. The frustum is centered on
// the provided center position (typically the camera position) and aligned to
// look along the light's direction.
//
// Parameters:
//   - lightDir: normalized direction the light points (from light toward scene)
//   - centerX, centerY, centerZ: world-space center of the shadow frustum
//   - halfExtent: half-size of the orthographic frustum in world units
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - [16]float32: the light view matrix (column-major)
//   - [16]float32: the orthographic projection matrix (column-major)
func DirectionalShadowMatrices(lightDir [3]float32, centerX, centerY, centerZ, halfExtent, near, far float32) ([16]float32, [16]float32) {
	// Position the "eye" behind the center, opposite the light direction,
	// so we look from behind the scene toward the lit area.
	eyeX := centerX - lightDir[0]*far*0.5
	eyeY := centerY - lightDir[1]*far*0.5
	eyeZ := centerZ - lightDir[2]*far*0.5

	// Choose a stable up vector that isn't parallel to the light direction.
	// If the light points nearly straight up or down, use X-axis as up.
	upX, upY, upZ := float32(0), float32(1), float32(0)
	if absF32(lightDir[1]) > 0.99 {
		upX, upY, upZ = 1, 0, 0
	}

	var view [16]float32
	common.LookAt(view[:],
		eyeX, eyeY, eyeZ,
		centerX, centerY, centerZ,
		upX, upY, upZ,
	)

	var proj [16]float32
	common.Ortho(proj[:], -halfExtent, halfExtent, -halfExtent, halfExtent, near, far)

	return view, proj
}

// SpotShadowMatrices builds the view and perspective projection matrices for a
// spot light's shadow pass. The field of view matches the light's outer cone
// so the shadow map covers exactly the lit region.
//
// Parameters:
//   - position: world-space position of the light
//   - direction: normalized cone axis
//   - outerConeCos: cosine of the outer cone half-angle
//   - near: near plane distance
//   - far: far plane distance (typically the light's range)
//
// Returns:
//   - [16]float32: the light view matrix (column-major)
//   - [16]float32: the perspective projection matrix (column-major)
func SpotShadowMatrices(position, direction [3]float32, outerConeCos, near, far float32) ([16]float32, [16]float32) {
	upX, upY, upZ := float32(0), float32(1), float32(0)
	if absF32(direction[1]) > 0.99 {
		upX, upY, upZ = 1, 0, 0
	}

	var view [16]float32
	common.LookAt(view[:],
		position[0], position[1], position[2],
		position[0]+direction[0], position[1]+direction[1], position[2]+direction[2],
		upX, upY, upZ,
	)

	// Full cone angle; clamp the cosine into valid acos domain first.
	c := outerConeCos
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	fovY := 2.0 * float32(math.Acos(float64(c)))

	var proj [16]float32
	common.Perspective(proj[:], fovY, 1.0, near, far)

	return view, proj
}

// PointShadowFaceView builds the view matrix for one cube face of a point
// light's shadow pass.
//
// Parameters:
//   - position: world-space position of the light
//   - face: cube face index in +X, -X, +Y, -Y, +Z, -Z order (0-5)
//
// Returns:
//   - [16]float32: the face view matrix (column-major)
func PointShadowFaceView(position [3]float32, face uint32) [16]float32 {
	f := cubeFaces[face%PointFaceCount]

	var view [16]float32
	common.LookAt(view[:],
		position[0], position[1], position[2],
		position[0]+f.dir[0], position[1]+f.dir[1], position[2]+f.dir[2],
		f.up[0], f.up[1], f.up[2],
	)
	return view
}

// PointShadowProjection builds the 90° square perspective projection shared by
// all six cube faces of a point light's shadow pass.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance (typically the light's range)
//
// Returns:
//   - [16]float32: the projection matrix (column-major)
func PointShadowProjection(near, far float32) [16]float32 {
	var proj [16]float32
	common.Perspective(proj[:], float32(math.Pi)/2.0, 1.0, near, far)
	return proj
}

// absF32 returns the absolute value of a float32.
func absF32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
