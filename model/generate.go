// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// NewTerrainPatch builds a grid mesh displaced by the height field.
// The grid is gridSize vertices on a side and centered on the origin,
// scale stretches the patch per axis with Y as the height scale.
func NewTerrainPatch(heights *Heightmap, gridSize int, scale glm.Vec3) Mesh {
	if gridSize < 2 {
		gridSize = 2
	}
	half := float32(gridSize-1) / 2
	worldExtent := float32(gridSize-1) * scale.X()

	vertices := make([]Vertex, 0, gridSize*gridSize)
	for z := 0; z < gridSize; z++ {
		for x := 0; x < gridSize; x++ {
			u := float32(x) / float32(gridSize-1)
			v := float32(z) / float32(gridSize-1)
			vertices = append(vertices, Vertex{
				Pos: glm.Vec3{
					(float32(x) - half) * scale.X(),
					heights.Sample(u, v) * scale.Y(),
					(float32(z) - half) * scale.Z(),
				},
				Normal: heights.Normal(u, v, worldExtent, scale.Y()),
				UV:     glm.Vec2{u, v},
			})
		}
	}

	indices := make([]uint32, 0, (gridSize-1)*(gridSize-1)*6)
	for z := 0; z < gridSize-1; z++ {
		for x := 0; x < gridSize-1; x++ {
			topLeft := uint32(z*gridSize + x)
			topRight := topLeft + 1
			bottomLeft := topLeft + uint32(gridSize)
			bottomRight := bottomLeft + 1
			indices = append(indices,
				topLeft, bottomLeft, topRight,
				topRight, bottomLeft, bottomRight,
			)
		}
	}

	return Mesh{Vertices: vertices, Indices: indices}
}

// NewWaterPlane builds a single quad mirror plane on Y zero.
func NewWaterPlane(extent float32) Mesh {
	half := extent / 2
	up := glm.Vec3{0, 1, 0}
	return Mesh{
		Vertices: []Vertex{
			{Pos: glm.Vec3{-half, 0, -half}, Normal: up, UV: glm.Vec2{0, 0}},
			{Pos: glm.Vec3{half, 0, -half}, Normal: up, UV: glm.Vec2{1, 0}},
			{Pos: glm.Vec3{half, 0, half}, Normal: up, UV: glm.Vec2{1, 1}},
			{Pos: glm.Vec3{-half, 0, half}, Normal: up, UV: glm.Vec2{0, 1}},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

// NewSkySphere builds a UV sphere with normals facing inward,
// the camera sits inside it.
func NewSkySphere(radius float32, rings, sectors int) Mesh {
	if rings < 3 {
		rings = 3
	}
	if sectors < 3 {
		sectors = 3
	}

	vertices := make([]Vertex, 0, (rings+1)*(sectors+1))
	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		for s := 0; s <= sectors; s++ {
			theta := 2 * math.Pi * float64(s) / float64(sectors)
			dir := glm.Vec3{
				float32(math.Sin(phi) * math.Cos(theta)),
				float32(math.Cos(phi)),
				float32(math.Sin(phi) * math.Sin(theta)),
			}
			vertices = append(vertices, Vertex{
				Pos:    dir.Mul(radius),
				Normal: dir.Mul(-1),
				UV: glm.Vec2{
					float32(s) / float32(sectors),
					float32(r) / float32(rings),
				},
			})
		}
	}

	indices := make([]uint32, 0, rings*sectors*6)
	for r := 0; r < rings; r++ {
		for s := 0; s < sectors; s++ {
			a := uint32(r*(sectors+1) + s)
			b := a + uint32(sectors) + 1
			indices = append(indices, a, a+1, b, a+1, b+1, b)
		}
	}

	return Mesh{Vertices: vertices, Indices: indices}
}
