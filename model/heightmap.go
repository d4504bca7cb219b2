// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"image"

	glm "github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/rand"
	"golang.org/x/image/draw"
)

// Heightmap is a square height field with values in [0, 1],
// sampled with normalised coordinates.
type Heightmap struct {
	size    int
	heights []float32
}

// NewHeightmapFromImage resamples an image into a size by size height
// field. Luminance becomes height.
func NewHeightmapFromImage(img image.Image, size int) *Heightmap {
	if size < 2 {
		size = 2
	}
	canvas := image.NewGray16(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), img, img.Bounds(), draw.Src, nil)

	heightmap := &Heightmap{
		size:    size,
		heights: make([]float32, size*size),
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			heightmap.heights[y*size+x] = float32(canvas.Gray16At(x, y).Y) / 65535
		}
	}
	return heightmap
}

// NewProceduralHeightmap builds a height field from interpolated
// value noise. The same seed always produces the same terrain.
func NewProceduralHeightmap(seed uint64, size int) *Heightmap {
	if size < 2 {
		size = 2
	}
	rng := rand.New(rand.NewSource(seed))

	const lattice = 17
	control := make([]float32, lattice*lattice)
	for i := range control {
		control[i] = rng.Float32()
	}

	heightmap := &Heightmap{
		size:    size,
		heights: make([]float32, size*size),
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fx := float32(x) / float32(size-1) * (lattice - 1)
			fy := float32(y) / float32(size-1) * (lattice - 1)
			heightmap.heights[y*size+x] = latticeSample(control, lattice, fx, fy)
		}
	}
	return heightmap
}

func latticeSample(control []float32, lattice int, fx, fy float32) float32 {
	x0, y0 := int(fx), int(fy)
	x1, y1 := x0+1, y0+1
	if x1 >= lattice {
		x1 = lattice - 1
	}
	if y1 >= lattice {
		y1 = lattice - 1
	}
	tx := smoothstep(fx - float32(x0))
	ty := smoothstep(fy - float32(y0))

	top := lerp(control[y0*lattice+x0], control[y0*lattice+x1], tx)
	bottom := lerp(control[y1*lattice+x0], control[y1*lattice+x1], tx)
	return lerp(top, bottom, ty)
}

func smoothstep(t float32) float32 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Size returns the side length of the height field.
func (h *Heightmap) Size() int {
	return h.size
}

// Sample returns the height at normalised coordinates, bilinearly
// filtered and clamped to the edges.
func (h *Heightmap) Sample(u, v float32) float32 {
	fx := clamp01(u) * float32(h.size-1)
	fy := clamp01(v) * float32(h.size-1)
	x0, y0 := int(fx), int(fy)
	x1, y1 := x0+1, y0+1
	if x1 >= h.size {
		x1 = h.size - 1
	}
	if y1 >= h.size {
		y1 = h.size - 1
	}
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	top := lerp(h.heights[y0*h.size+x0], h.heights[y0*h.size+x1], tx)
	bottom := lerp(h.heights[y1*h.size+x0], h.heights[y1*h.size+x1], tx)
	return lerp(top, bottom, ty)
}

// Normal returns the surface normal at normalised coordinates for a
// terrain spanning worldExtent units and scaled by heightScale,
// from central differences over one field texel.
func (h *Heightmap) Normal(u, v, worldExtent, heightScale float32) glm.Vec3 {
	step := 1 / float32(h.size-1)
	texel := worldExtent * step
	sx := (h.Sample(u+step, v) - h.Sample(u-step, v)) * heightScale
	sz := (h.Sample(u, v+step) - h.Sample(u, v-step)) * heightScale
	return glm.Vec3{-sx, 2 * texel, -sz}.Normalize()
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
