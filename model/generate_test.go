// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model_test

import (
	"math"
	"testing"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/mirage/model"
)

func TestNewTerrainPatch(t *testing.T) {
	heights := model.NewProceduralHeightmap(12, 64)
	scale := glm.Vec3{0.0375, 1, 0.0375}
	mesh := model.NewTerrainPatch(heights, 128, scale)

	if len(mesh.Vertices) != 128*128 {
		t.Fatalf("expected %d vertices, got %d", 128*128, len(mesh.Vertices))
	}
	if len(mesh.Indices) != 127*127*6 {
		t.Fatalf("expected %d indices, got %d", 127*127*6, len(mesh.Indices))
	}
	for i, idx := range mesh.Indices {
		if idx >= uint32(len(mesh.Vertices)) {
			t.Fatalf("index %d out of bounds at %d", idx, i)
		}
	}

	half := float32(127) / 2 * scale.X()
	for _, vert := range mesh.Vertices {
		if vert.Pos.X() < -half-1e-5 || vert.Pos.X() > half+1e-5 {
			t.Fatalf("vertex X %f outside the patch", vert.Pos.X())
		}
		if vert.UV.X() < 0 || vert.UV.X() > 1 || vert.UV.Y() < 0 || vert.UV.Y() > 1 {
			t.Fatalf("vertex UV %v outside [0,1]", vert.UV)
		}
		if vert.Pos.Y() != heights.Sample(vert.UV.X(), vert.UV.Y())*scale.Y() {
			t.Fatal("vertex height does not match the height field")
		}
	}
}

func TestNewWaterPlane(t *testing.T) {
	mesh := model.NewWaterPlane(20)
	if len(mesh.Vertices) != 4 || len(mesh.Indices) != 6 {
		t.Fatalf("unexpected mesh dimensions: %d vertices %d indices", len(mesh.Vertices), len(mesh.Indices))
	}
	for _, vert := range mesh.Vertices {
		if vert.Pos.Y() != 0 {
			t.Errorf("water plane vertex off the mirror plane: %v", vert.Pos)
		}
		if math.Abs(float64(vert.Pos.X())) != 10 || math.Abs(float64(vert.Pos.Z())) != 10 {
			t.Errorf("water plane vertex outside extent: %v", vert.Pos)
		}
	}
}

func TestNewSkySphere(t *testing.T) {
	const radius = 24
	mesh := model.NewSkySphere(radius, 16, 32)
	if len(mesh.Vertices) != 17*33 {
		t.Fatalf("expected %d vertices, got %d", 17*33, len(mesh.Vertices))
	}
	for i, vert := range mesh.Vertices {
		if diff := math.Abs(float64(vert.Pos.Len() - radius)); diff > 1e-3 {
			t.Fatalf("vertex %d off the sphere surface by %f", i, diff)
		}
		// Normals face the camera inside the sphere.
		if vert.Pos.Dot(vert.Normal) >= 0 {
			t.Fatalf("vertex %d normal points outward", i)
		}
	}
	for i, idx := range mesh.Indices {
		if idx >= uint32(len(mesh.Vertices)) {
			t.Fatalf("index %d out of bounds at %d", idx, i)
		}
	}
}

func TestTerrainLayerTextures(t *testing.T) {
	for layer := 0; layer < model.TerrainLayerCount; layer++ {
		img := model.NewTerrainLayer(32, layer)
		bounds := img.Bounds()
		if bounds.Dx() != 32 || bounds.Dy() != 32 {
			t.Fatalf("layer %d has bounds %v", layer, bounds)
		}
	}
	// Out of range layers wrap instead of panicking.
	model.NewTerrainLayer(8, model.TerrainLayerCount+2)
}

func TestWaterNormalNeutral(t *testing.T) {
	img := model.NewWaterNormal(64)
	r, g, b, _ := img.At(0, 0).RGBA()
	// Blue dominates a tangent space normal map.
	if b <= r || b <= g {
		t.Errorf("normal map corner not blue dominant: %d %d %d", r, g, b)
	}
}
