// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cascade_test

import (
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/mirage/core/cascade"
)

func testFrustum() cascade.Frustum {
	return cascade.Frustum{
		Near:     0.5,
		Far:      48,
		Lambda:   0.95,
		View:     glm.LookAtV(glm.Vec3{-0.12, 1.14, -2.25}, glm.Vec3{0, 0.8, 0}, glm.Vec3{0, 1, 0}),
		Proj:     glm.Perspective(glm.DegToRad(45), 1280.0/720.0, 0.5, 48),
		LightDir: glm.Vec3{20, 15, 15}.Normalize(),
	}
}

func TestComputeSplitDepths(t *testing.T) {
	c := qt.New(t)
	frustum := testFrustum()
	cascades, err := frustum.Compute()
	c.Assert(err, qt.IsNil)

	fractions := cascade.Splits(frustum.Near, frustum.Far, frustum.Lambda)
	clipRange := frustum.Far - frustum.Near
	prev := -frustum.Near
	for i, cs := range cascades {
		want := (frustum.Near + fractions[i]*clipRange) * -1
		if math.Abs(float64(cs.SplitDepth-want)) > 1e-4 {
			t.Errorf("cascade %d split depth %f, want %f", i, cs.SplitDepth, want)
		}
		if cs.SplitDepth >= prev {
			t.Errorf("cascade %d split depth %f does not advance past %f", i, cs.SplitDepth, prev)
		}
		prev = cs.SplitDepth
	}
	if math.Abs(float64(cascades[cascade.Count-1].SplitDepth+frustum.Far)) > 1e-3 {
		t.Errorf("final cascade ends at %f, want %f", cascades[cascade.Count-1].SplitDepth, -frustum.Far)
	}
}

// The midpoint of every cascade slice along the view ray has to land
// inside that cascade's light clip box, otherwise the ortho bounds were
// fitted to the wrong slice.
func TestComputeCoversViewRay(t *testing.T) {
	c := qt.New(t)
	frustum := testFrustum()
	cascades, err := frustum.Compute()
	c.Assert(err, qt.IsNil)

	eye := glm.Vec3{-0.12, 1.14, -2.25}
	forward := glm.Vec3{0, 0.8, 0}.Sub(eye).Normalize()

	fractions := cascade.Splits(frustum.Near, frustum.Far, frustum.Lambda)
	clipRange := frustum.Far - frustum.Near
	var lastFraction float32
	for i, cs := range cascades {
		mid := frustum.Near + (lastFraction+fractions[i])/2*clipRange
		world := eye.Add(forward.Mul(mid)).Vec4(1)
		clip := cs.ViewProj.Mul4x1(world)
		for axis := 0; axis < 3; axis++ {
			if v := clip[axis]; v < -1.001 || v > 1.001 {
				t.Errorf("cascade %d: view ray depth %f projects outside clip space: %v", i, mid, clip)
				break
			}
		}
		lastFraction = fractions[i]
	}
}

func TestComputeIdempotent(t *testing.T) {
	c := qt.New(t)
	frustum := testFrustum()
	first, err := frustum.Compute()
	c.Assert(err, qt.IsNil)
	second, err := frustum.Compute()
	c.Assert(err, qt.IsNil)
	c.Assert(second, qt.DeepEquals, first)
}

func TestComputeDegenerate(t *testing.T) {
	base := testFrustum()
	tests := []struct {
		name   string
		mutate func(*cascade.Frustum)
	}{
		{"zero near", func(f *cascade.Frustum) { f.Near = 0 }},
		{"negative near", func(f *cascade.Frustum) { f.Near = -1 }},
		{"far at near", func(f *cascade.Frustum) { f.Far = f.Near }},
		{"lambda below range", func(f *cascade.Frustum) { f.Lambda = -0.1 }},
		{"lambda above range", func(f *cascade.Frustum) { f.Lambda = 1.5 }},
		{"lambda NaN", func(f *cascade.Frustum) { f.Lambda = float32(math.NaN()) }},
		{"zero light dir", func(f *cascade.Frustum) { f.LightDir = glm.Vec3{} }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := qt.New(t)
			frustum := base
			test.mutate(&frustum)
			_, err := frustum.Compute()
			c.Assert(err, qt.Equals, cascade.ErrDegenerateFrustum)
		})
	}
}

func TestComputeVerticalLight(t *testing.T) {
	c := qt.New(t)
	frustum := testFrustum()
	frustum.LightDir = glm.Vec3{0, -1, 0}
	cascades, err := frustum.Compute()
	c.Assert(err, qt.IsNil)
	for i, cs := range cascades {
		for j, v := range cs.ViewProj {
			if math.IsNaN(float64(v)) {
				t.Fatalf("cascade %d matrix element %d is NaN", i, j)
			}
		}
	}
}

func TestFrustumCornerRoundTrip(t *testing.T) {
	frustum := testFrustum()
	camera := frustum.Proj.Mul4(frustum.View)
	invCam := camera.Inv()
	for _, z := range []float32{-1, 1} {
		for _, y := range []float32{-1, 1} {
			for _, x := range []float32{-1, 1} {
				ndc := glm.Vec4{x, y, z, 1}
				world := invCam.Mul4x1(ndc)
				world = world.Mul(1 / world.W())
				back := camera.Mul4x1(world)
				back = back.Mul(1 / back.W())
				for axis := 0; axis < 3; axis++ {
					if diff := math.Abs(float64(back[axis] - ndc[axis])); diff > 1e-2 {
						t.Errorf("corner (%.0f,%.0f,%.0f) drifted on axis %d: %v", x, y, z, axis, back)
					}
				}
			}
		}
	}
}

func BenchmarkCompute(b *testing.B) {
	frustum := testFrustum()
	b.ReportAllocs()
	for n := 0; n < b.N; n++ {
		if _, err := frustum.Compute(); err != nil {
			b.Fatal(err)
		}
	}
}
