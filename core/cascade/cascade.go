// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package cascade computes shadow map cascade splits and the
// light-space matrix for every cascade of a directional light.
// It is pure math over mgl32 values and holds no GPU state, so
// callers can recompute it every frame and tests can run it
// without a device.
package cascade

import (
	"errors"
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Count is the number of shadow cascades. Every cascade-indexed
// array in the renderer and in the shader interface uses it.
const Count = 4

// ErrDegenerateFrustum is returned by Compute when the camera or
// light parameters cannot produce a valid cascade set.
var ErrDegenerateFrustum = errors.New("cascade: degenerate frustum")

// Cascade is the result for a single shadow slice: the view-space
// depth where the slice ends and the matrix that renders into its
// layer of the shadow map.
type Cascade struct {
	SplitDepth float32
	ViewProj   glm.Mat4
}

// Frustum carries the per-frame camera and light state Compute
// works from. It is passed by value, the caller keeps ownership.
type Frustum struct {
	Near, Far float32
	Lambda    float32
	View      glm.Mat4
	Proj      glm.Mat4
	LightDir  glm.Vec3
}

// Splits returns the normalised split fractions for Count cascades.
// Fractions are strictly increasing and lie in (0, 1].
func Splits(near, far, lambda float32) [Count]float32 {
	var out [Count]float32
	copy(out[:], splitFractions(Count, near, far, lambda))
	return out
}

// SplitsN is Splits for an arbitrary cascade count. Tooling that
// previews alternative schedules uses it, the renderer itself is
// fixed at Count.
func SplitsN(count int, near, far, lambda float32) []float32 {
	if count < 1 {
		return nil
	}
	return splitFractions(count, near, far, lambda)
}

// splitFractions blends logarithmic and uniform split schemes with
// lambda, after the practical split scheme of GPU Gems 3, ch. 10.
func splitFractions(count int, near, far, lambda float32) []float32 {
	clipRange := far - near
	minZ := near
	maxZ := near + clipRange
	ratio := float64(maxZ / minZ)

	out := make([]float32, count)
	for i := 0; i < count; i++ {
		p := float64(i+1) / float64(count)
		logSplit := minZ * float32(math.Pow(ratio, p))
		uniformSplit := minZ + clipRange*float32(p)
		d := lambda*(logSplit-uniformSplit) + uniformSplit
		out[i] = (d - near) / clipRange
	}
	return out
}

// Compute derives the full cascade set for one frame. The output
// depends on nothing but the receiver, identical frustums yield
// bit-identical cascades.
func (f Frustum) Compute() ([Count]Cascade, error) {
	var cascades [Count]Cascade
	if err := f.validate(); err != nil {
		return cascades, err
	}

	clipRange := f.Far - f.Near
	fractions := Splits(f.Near, f.Far, f.Lambda)

	invCam := f.Proj.Mul4(f.View).Inv()
	lightDir := f.LightDir.Normalize()
	up := glm.Vec3{0, 1, 0}
	if math.Abs(float64(lightDir.Dot(up))) > 0.999 {
		up = glm.Vec3{0, 0, 1}
	}

	var lastSplitDist float32
	for i := 0; i < Count; i++ {
		splitDist := fractions[i]

		corners := [8]glm.Vec3{
			{-1, 1, -1},
			{1, 1, -1},
			{1, -1, -1},
			{-1, -1, -1},
			{-1, 1, 1},
			{1, 1, 1},
			{1, -1, 1},
			{-1, -1, 1},
		}

		// Unproject the NDC cube into world space.
		for j := 0; j < 8; j++ {
			corner := invCam.Mul4x1(corners[j].Vec4(1))
			corners[j] = corner.Vec3().Mul(1 / corner.W())
		}

		// Slide near and far faces to this cascade's slice.
		for j := 0; j < 4; j++ {
			dist := corners[j+4].Sub(corners[j])
			corners[j+4] = corners[j].Add(dist.Mul(splitDist))
			corners[j] = corners[j].Add(dist.Mul(lastSplitDist))
		}

		var center glm.Vec3
		for j := 0; j < 8; j++ {
			center = center.Add(corners[j])
		}
		center = center.Mul(1.0 / 8.0)

		var radius float32
		for j := 0; j < 8; j++ {
			if d := corners[j].Sub(center).Len(); d > radius {
				radius = d
			}
		}
		radius = float32(math.Ceil(float64(radius)*16)) / 16

		lightView := glm.LookAtV(center.Sub(lightDir.Mul(radius)), center, up)
		lightProj := glm.Ortho(-radius, radius, -radius, radius, 0, 2*radius)

		cascades[i].SplitDepth = (f.Near + splitDist*clipRange) * -1
		cascades[i].ViewProj = lightProj.Mul4(lightView)

		lastSplitDist = splitDist
	}
	return cascades, nil
}

func (f Frustum) validate() error {
	switch {
	case !(f.Near > 0):
		return ErrDegenerateFrustum
	case !(f.Far > f.Near):
		return ErrDegenerateFrustum
	case !(f.Lambda >= 0 && f.Lambda <= 1):
		return ErrDegenerateFrustum
	case !(f.LightDir.Len() > 0):
		return ErrDegenerateFrustum
	}
	return nil
}
