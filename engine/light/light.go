// Package light provides the light-side collaborator types for the shadow
// paging subsystem: a minimal shadow-casting light description and the view/
// projection matrix builders the pager and its callers use to render shadow
// pages. Scene-level light management (color, intensity, prioritization) is
// out of scope here; the pager only reads transforms.
package light

import "math"

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Shadowed with a single orthographic projection.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// Shadowed with six 90° perspective cube faces.
	LightTypePoint

	// LightTypeSpot represents a light that emits in a cone from a position along a direction.
	// Shadowed with a single perspective projection matching the outer cone.
	LightTypeSpot
)

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	lightType    LightType
	position     [3]float32
	direction    [3]float32
	lightRange   float32
	outerCone    float32 // stored as cos(angle in radians)
	castsShadows bool
}

// Light describes a shadow-casting light source as seen by the paging
// subsystem: its type, transform inputs, and whether it is eligible for
// shadow map generation at all.
type Light interface {
	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type (directional, point, or spot)
	Type() LightType

	// Position returns the world-space position of the light.
	// Meaningless for directional lights.
	//
	// Returns:
	//   - [3]float32: position as (x, y, z)
	Position() [3]float32

	// Direction returns the normalized direction of the light.
	// For directional lights this is the light direction. For spot lights this
	// is the cone axis. Meaningless for point lights.
	//
	// Returns:
	//   - [3]float32: normalized direction as (x, y, z)
	Direction() [3]float32

	// Range returns the maximum attenuation distance for point and spot lights,
	// used as the far plane of their shadow projections.
	//
	// Returns:
	//   - float32: the range value
	Range() float32

	// OuterCone returns the cosine of the outer cone half-angle for spot lights.
	// Drives the field of view of the spot shadow projection.
	//
	// Returns:
	//   - float32: cos(outer half-angle)
	OuterCone() float32

	// CastsShadows returns whether this light is eligible for shadow map
	// generation. Non-casting lights are never paged.
	//
	// Returns:
	//   - bool: true if the light casts shadows
	CastsShadows() bool

	// SetPosition sets the world-space position of the light.
	//
	// Parameters:
	//   - x, y, z: position components
	SetPosition(x, y, z float32)

	// SetDirection sets the direction of the light and normalizes it.
	//
	// Parameters:
	//   - x, y, z: direction components (will be normalized)
	SetDirection(x, y, z float32)

	// SetRange sets the maximum attenuation distance.
	//
	// Parameters:
	//   - lightRange: the range value
	SetRange(lightRange float32)

	// SetOuterCone sets the outer cone half-angle for spot lights.
	// The angle is specified in degrees and stored internally as its cosine.
	//
	// Parameters:
	//   - outerDeg: outer cone half-angle in degrees
	SetOuterCone(outerDeg float32)

	// SetCastsShadows sets whether the light is eligible for shadow mapping.
	//
	// Parameters:
	//   - castsShadows: true to enable shadow casting
	SetCastsShadows(castsShadows bool)
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the specified type with sensible defaults and
// any provided options applied.
//
// Parameters:
//   - lightType: the kind of light to create (directional, point, or spot)
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		lightType:    lightType,
		position:     [3]float32{0, 0, 0},
		direction:    [3]float32{0, -1, 0},
		lightRange:   10.0,
		outerCone:    0.8192, // cos(35°)
		castsShadows: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() [3]float32 {
	return l.position
}

func (l *lightImpl) Direction() [3]float32 {
	return l.direction
}

func (l *lightImpl) Range() float32 {
	return l.lightRange
}

func (l *lightImpl) OuterCone() float32 {
	return l.outerCone
}

func (l *lightImpl) CastsShadows() bool {
	return l.castsShadows
}

func (l *lightImpl) SetPosition(x, y, z float32) {
	l.position = [3]float32{x, y, z}
}

func (l *lightImpl) SetDirection(x, y, z float32) {
	l.direction = normalize3(x, y, z)
}

func (l *lightImpl) SetRange(lightRange float32) {
	l.lightRange = lightRange
}

func (l *lightImpl) SetOuterCone(outerDeg float32) {
	l.outerCone = cosDeg(outerDeg)
}

func (l *lightImpl) SetCastsShadows(castsShadows bool) {
	l.castsShadows = castsShadows
}

// normalize3 normalizes a 3-component vector, falling back to straight down
// when the input has zero length.
func normalize3(x, y, z float32) [3]float32 {
	lenSq := float64(x*x + y*y + z*z)
	if lenSq == 0 {
		return [3]float32{0, -1, 0}
	}
	inv := 1.0 / float32(math.Sqrt(lenSq))
	return [3]float32{x * inv, y * inv, z * inv}
}

// cosDeg returns the cosine of an angle given in degrees.
func cosDeg(deg float32) float32 {
	return float32(math.Cos(float64(deg) * math.Pi / 180.0))
}
