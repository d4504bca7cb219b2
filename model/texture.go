// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"image"
	"image/color"
	"math"
)

// TerrainLayerCount is the number of blended terrain textures,
// matches the layer table in the terrain shader.
const TerrainLayerCount = 6

// terrainLayerColors tints the terrain texture layers, ordered from
// shoreline to peak.
var terrainLayerColors = [TerrainLayerCount]color.NRGBA{
	{R: 201, G: 178, B: 99, A: 255},
	{R: 98, G: 135, B: 78, A: 255},
	{R: 70, G: 106, B: 58, A: 255},
	{R: 121, G: 108, B: 92, A: 255},
	{R: 93, G: 84, B: 76, A: 255},
	{R: 235, G: 237, B: 240, A: 255},
}

// NewTerrainLayer renders the detail texture for one terrain layer,
// a tinted noise pattern. The layer index wraps around.
func NewTerrainLayer(size, layer int) image.Image {
	tint := terrainLayerColors[layer%TerrainLayerCount]
	noise := NewProceduralHeightmap(uint64(layer)+11, size)

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			u := float32(x) / float32(size-1)
			v := float32(y) / float32(size-1)
			shade := 0.75 + 0.25*noise.Sample(u, v)
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(float32(tint.R) * shade),
				G: uint8(float32(tint.G) * shade),
				B: uint8(float32(tint.B) * shade),
				A: 255,
			})
		}
	}
	return img
}

// NewWaterNormal renders a rippled tangent space normal map for the
// water surface.
func NewWaterNormal(size int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fx := float64(x) / float64(size) * 2 * math.Pi
			fy := float64(y) / float64(size) * 2 * math.Pi
			dx := 0.2 * math.Sin(4*fx) * math.Cos(3*fy)
			dy := 0.2 * math.Cos(3*fx) * math.Sin(5*fy)
			norm := math.Sqrt(dx*dx + dy*dy + 1)
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((dx/norm + 1) / 2 * 255),
				G: uint8((dy/norm + 1) / 2 * 255),
				B: uint8((1/norm + 1) / 2 * 255),
				A: 255,
			})
		}
	}
	return img
}

// NewSkyGradient renders a vertical gradient for the sky sphere,
// horizon at the bottom edge.
func NewSkyGradient(size int) image.Image {
	zenith := [3]float32{0.22, 0.4, 0.72}
	horizon := [3]float32{0.78, 0.86, 0.95}

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		t := float32(y) / float32(size-1)
		shade := color.NRGBA{
			R: uint8(lerp(zenith[0], horizon[0], t) * 255),
			G: uint8(lerp(zenith[1], horizon[1], t) * 255),
			B: uint8(lerp(zenith[2], horizon[2], t) * 255),
			A: 255,
		}
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, shade)
		}
	}
	return img
}
