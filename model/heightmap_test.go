// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model_test

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/devblok/mirage/model"
)

func TestProceduralHeightmapDeterminism(t *testing.T) {
	first := model.NewProceduralHeightmap(42, 64)
	second := model.NewProceduralHeightmap(42, 64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			u := float32(x) / 63
			v := float32(y) / 63
			if first.Sample(u, v) != second.Sample(u, v) {
				t.Fatalf("same seed diverged at (%d,%d)", x, y)
			}
		}
	}

	other := model.NewProceduralHeightmap(43, 64)
	var differs bool
	for x := 0; x < 64 && !differs; x++ {
		if first.Sample(float32(x)/63, 0.5) != other.Sample(float32(x)/63, 0.5) {
			differs = true
		}
	}
	if !differs {
		t.Error("different seeds produced identical terrain")
	}
}

func TestProceduralHeightmapRange(t *testing.T) {
	heightmap := model.NewProceduralHeightmap(7, 128)
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			h := heightmap.Sample(float32(x)/127, float32(y)/127)
			if h < 0 || h > 1 {
				t.Fatalf("height %f at (%d,%d) out of range", h, x, y)
			}
		}
	}
}

func TestHeightmapSampleClamps(t *testing.T) {
	heightmap := model.NewProceduralHeightmap(7, 32)
	if got, want := heightmap.Sample(-0.5, 0), heightmap.Sample(0, 0); got != want {
		t.Errorf("negative coordinate did not clamp: %f != %f", got, want)
	}
	if got, want := heightmap.Sample(2, 1), heightmap.Sample(1, 1); got != want {
		t.Errorf("coordinate above one did not clamp: %f != %f", got, want)
	}
}

func TestHeightmapFromImage(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(y) * 4369})
		}
	}

	heightmap := model.NewHeightmapFromImage(img, 16)
	if heightmap.Size() != 16 {
		t.Fatalf("expected size 16, got %d", heightmap.Size())
	}
	if top := heightmap.Sample(0.5, 0); top > 0.1 {
		t.Errorf("top row should be near zero, got %f", top)
	}
	if bottom := heightmap.Sample(0.5, 1); bottom < 0.9 {
		t.Errorf("bottom row should be near one, got %f", bottom)
	}
}

func TestHeightmapNormal(t *testing.T) {
	flat := model.NewHeightmapFromImage(image.NewGray16(image.Rect(0, 0, 8, 8)), 8)
	normal := flat.Normal(0.5, 0.5, 10, 1)
	if math.Abs(float64(normal.Y()-1)) > 1e-5 {
		t.Errorf("flat terrain normal should point up, got %v", normal)
	}

	bumpy := model.NewProceduralHeightmap(3, 64)
	for _, uv := range [][2]float32{{0.2, 0.3}, {0.5, 0.5}, {0.9, 0.1}} {
		n := bumpy.Normal(uv[0], uv[1], 10, 2)
		if math.Abs(float64(n.Len()-1)) > 1e-5 {
			t.Errorf("normal at %v is not unit length: %f", uv, n.Len())
		}
		if n.Y() <= 0 {
			t.Errorf("normal at %v points down: %v", uv, n)
		}
	}
}
