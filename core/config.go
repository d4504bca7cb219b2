package core

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Instance InstanceConfiguration
	Renderer RendererConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the delay between input event polls,
	// in milliseconds
	EventPollDelay int
}

// InstanceConfiguration is used to configure the Vulkan instance
type InstanceConfiguration struct {
	DebugMode bool

	Extensions []string
	Layers     []string
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	SwapchainSize    uint32
	DeviceExtensions []string

	ScreenWidth  uint32
	ScreenHeight uint32

	// ShaderDirectory holds compiled .spv shaders, loaded on Initialise
	ShaderDirectory string

	// CascadeLambda blends logarithmic and uniform shadow splits,
	// valid values lie in [0.1, 1]
	CascadeLambda float32

	// LightPosition is the world position of the directional light,
	// its direction is towards the origin
	LightPosition [3]float32

	// DisableVSync picks the fastest supported present mode instead
	// of the always-available FIFO mode
	DisableVSync bool
}
