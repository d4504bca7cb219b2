// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"github.com/devblok/mirage/core"
)

// Render target dimensions. Offscreen targets are fixed size and
// never follow the swapchain, the shadow map resolution is shared
// by every cascade layer.
const (
	OffscreenDim = 1024
	ShadowMapDim = 4096
)

// Camera clip planes the cascade schedule is derived from.
const (
	NearClip = 0.5
	FarClip  = 48.0
)

const defaultCascadeLambda = 0.95

// defaultLightPosition is the world position of the directional
// light, the light direction points from it towards the origin.
var defaultLightPosition = [3]float32{20, -10, 20}

// applyDefaults fills the zero values of a renderer configuration
// so a partially filled struct still produces a working renderer.
func applyDefaults(cfg *core.RendererConfiguration) {
	if cfg.SwapchainSize == 0 {
		cfg.SwapchainSize = 3
	}
	if cfg.ScreenWidth == 0 {
		cfg.ScreenWidth = 1280
	}
	if cfg.ScreenHeight == 0 {
		cfg.ScreenHeight = 720
	}
	if cfg.ShaderDirectory == "" {
		cfg.ShaderDirectory = "./shaders"
	}
	if cfg.CascadeLambda == 0 {
		cfg.CascadeLambda = defaultCascadeLambda
	}
	if cfg.LightPosition == [3]float32{} {
		cfg.LightPosition = defaultLightPosition
	}
	if len(cfg.DeviceExtensions) == 0 {
		cfg.DeviceExtensions = []string{"VK_KHR_swapchain"}
	}
}

// clampLambda keeps the split blend factor inside the range the
// split schedule is defined for.
func clampLambda(lambda float32) float32 {
	if lambda < 0.1 {
		return 0.1
	}
	if lambda > 1 {
		return 1
	}
	return lambda
}
