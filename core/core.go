// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"unsafe"

	vk "github.com/devblok/vulkan"

	"github.com/devblok/mirage/core/cascade"
	"github.com/devblok/mirage/core/scene"
)

// Instance describes a Vulkan instance and supporting methods.
// Once created it is ready to use.
type Instance interface {
	// PhysicalDevicesInfo returns a struct for each Physical Device
	// along with info about those devices
	PhysicalDevicesInfo() []PhysicalDeviceInfo

	// AvailableDevices returns handles of Physical Devices
	// from the Vulkan API
	AvailableDevices() []vk.PhysicalDevice

	// SetSurface sets the window surface for rendering
	SetSurface(unsafe.Pointer)

	// Surface returns the window surface, if it's not set
	// it should return a valid but empty surface
	Surface() vk.Surface

	// Extensions returns available instance extensions
	Extensions() []string

	// Inner returns the inner handle of the underlying API
	Inner() interface{}

	// Destroy destroys internal members
	Destroy()
}

// Renderer describes the rendering machinery.
// It's created only with internal values set,
// it needs to be initialised with Initialise() before use.
type Renderer interface {
	// Initialise sets up the configured rendering pipeline
	Initialise() error

	// DeviceIsSuitable checks if the device given is suitable
	// for the rendering pipeline. If not suitable string contains the reason
	DeviceIsSuitable(vk.PhysicalDevice) (bool, string)

	// Draw renders one frame and submits it to the device queue
	Draw() error

	// Present hands the rendered frame to the presentation engine
	Present() error

	// Camera returns the camera the renderer draws with
	Camera() *scene.Camera

	// Cascades returns the shadow cascade set of the current frame
	Cascades() [cascade.Count]cascade.Cascade

	// SetCascadeLambda changes the shadow split blend factor.
	// Takes effect on the next frame without a command stream rebuild
	SetCascadeLambda(float32)

	// SetPaused stops scene state updates, drawing continues
	SetPaused(bool)

	// SetDebugReflection toggles the reflection preview quad.
	// Rebuilds the command stream
	SetDebugReflection(bool) error

	// SetDebugRefraction toggles the refraction preview quad.
	// Rebuilds the command stream
	SetDebugRefraction(bool) error

	// SetDebugCascades toggles the shadow cascade preview quad.
	// Rebuilds the command stream
	SetDebugCascades(bool) error

	// SetDebugCascadeIndex selects the cascade layer the preview
	// quad samples. Rebuilds the command stream
	SetDebugCascadeIndex(int) error

	// SetUIOverlay registers a hook that records extra draw commands
	// at the end of the final pass, nil disables it.
	// Rebuilds the command stream
	SetUIOverlay(func(vk.CommandBuffer)) error

	// Screenshot writes the most recently presented image to a file
	Screenshot(path string) error

	// Destroy destroys internal members
	Destroy()
}

// Destroyable describes anything that holds handles which have
// to be released explicitly
type Destroyable interface {
	Destroy()
}

// Shader describes a shader module of any type
type Shader interface {
	// Type returns the type of the shader
	Type() ShaderType

	// ShaderModule returns the underlying API handle
	ShaderModule() interface{}

	// Name returns the name the shader is addressed by
	Name() string

	// Destroy destroys internal members
	Destroy()
}

// ShaderType represents the type of shader thats loaded
type ShaderType int

// Identifies shader objects with their types
const (
	VertexShaderType ShaderType = iota
	FragmentShaderType
	UnknownShaderType
)

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        uint
}
