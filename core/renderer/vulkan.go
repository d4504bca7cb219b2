// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package renderer drives the Vulkan frame: four shadow cascade
// passes, refraction and reflection offscreen passes and the final
// composite, recorded once and replayed until a debug toggle forces
// a rebuild.
package renderer

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"unsafe"

	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/mirage/core"
	"github.com/devblok/mirage/core/cascade"
	"github.com/devblok/mirage/core/scene"
	"github.com/devblok/mirage/model"
)

// NewVulkan creates a not yet initialised Vulkan API renderer. The
// clock supplies the animation time base shared with the app loop.
func NewVulkan(instance core.Instance, clock *core.Time, cfg core.RendererConfiguration) (core.Renderer, error) {
	applyDefaults(&cfg)

	devices := instance.AvailableDevices()
	if len(devices) == 0 {
		return nil, errors.New("no Vulkan capable devices available")
	}
	if clock == nil {
		return nil, errors.New("renderer needs a time service")
	}

	return &Vulkan{
		configuration:        cfg,
		currentSurfaceWidth:  cfg.ScreenWidth,
		currentSurfaceHeight: cfg.ScreenHeight,
		surface:              instance.Surface(),
		physicalDevice:       devices[0],
		camera: scene.NewCamera(
			45,
			float32(cfg.ScreenWidth)/float32(cfg.ScreenHeight),
			NearClip,
			FarClip,
		),
		cascadeLambda: clampLambda(cfg.CascadeLambda),
		lightPosition: cfg.LightPosition,
		terrainLayers: defaultTerrainLayers,
		clock:         clock,
		lastTick:      clock.Elapsed(),
	}, nil
}

// texture is a sampled device local image with its own sampler.
type texture struct {
	image       vk.Image
	memory      vk.DeviceMemory
	view        vk.ImageView
	sampler     vk.Sampler
	descriptor  vk.DescriptorImageInfo
	arrayLayers uint32
}

// meshBuffer is an uploaded model.Mesh.
type meshBuffer struct {
	vertexBuffer vk.Buffer
	vertexMemory vk.DeviceMemory
	indexBuffer  vk.Buffer
	indexMemory  vk.DeviceMemory
	indexCount   uint32
}

// Vulkan is a Vulkan API renderer
type Vulkan struct {
	core.Destroyable

	configuration core.RendererConfiguration

	surface              vk.Surface
	shaders              []core.Shader
	currentSurfaceWidth  uint32
	currentSurfaceHeight uint32

	swapchain           vk.Swapchain
	swapchainImages     []vk.Image
	swapchainImageViews []vk.ImageView
	framebuffers        []vk.Framebuffer

	logicalDevice  vk.Device
	physicalDevice vk.PhysicalDevice
	deviceQueue    vk.Queue

	imageFormat     vk.Format
	imageColorspace vk.ColorSpace

	renderPass    vk.RenderPass
	pipelineCache vk.PipelineCache

	setLayouts      descriptorSetLayouts
	pipelineLayouts pipelineLayouts
	pipelines       pipelineSet
	descriptorPool  vk.DescriptorPool
	descriptorSets  descriptorSets

	offscreen *offscreenPass
	shadow    *shadowPass

	uniformBuffers struct {
		water   uniformBuffer
		terrain uniformBuffer
		sky     uniformBuffer
		csm     uniformBuffer
		depth   uniformBuffer
	}

	textures struct {
		heightmap    texture
		terrainArray texture
		waterNormal  texture
		sky          texture
	}

	meshes struct {
		terrain meshBuffer
		water   meshBuffer
		sky     meshBuffer
	}

	heightmap *model.Heightmap

	depthImage       vk.Image
	depthImageView   vk.ImageView
	depthImageFormat vk.Format
	depthImageMemory vk.DeviceMemory

	commandPool    vk.CommandPool
	commandBuffers []vk.CommandBuffer

	imageFence              vk.Fence
	renderFinishedSemphore  vk.Semaphore
	imageAvailableSemaphore vk.Semaphore
	imageIndex              uint32

	currentQueueIndex  uint32
	graphicsQueueIndex uint32

	depthClampAvailable bool

	// frameLock orders Draw against the setters that stop the
	// device and rebuild the command stream.
	frameLock sync.Mutex

	camera *scene.Camera

	// clock drives the water animation phase, lastTick holds the
	// Elapsed() reading of the previous frame.
	clock    *core.Time
	lastTick float64
	timer    float32
	paused   bool

	cascadeLock   sync.Mutex
	cascadeLambda float32
	cascades      [cascade.Count]cascade.Cascade

	lightPosition [3]float32
	terrainLayers [model.TerrainLayerCount]glm.Vec4

	debug     debugToggles
	uiOverlay func(vk.CommandBuffer)

	cleanup cleanupStack
}

// Heights the terrain layers start and blend at, X is the base,
// Y the blend range.
var defaultTerrainLayers = [model.TerrainLayerCount]glm.Vec4{
	{12.5, 45, 0, 0},
	{50, 30, 0, 0},
	{62.5, 35, 0, 0},
	{87.5, 25, 0, 0},
	{117.5, 45, 0, 0},
	{165, 50, 0, 0},
}

// Initialise implements interface
func (v *Vulkan) Initialise() error {
	requiredExtensions := v.configuration.DeviceExtensions

	if err := v.selectQueueFamilies(); err != nil {
		return err
	}

	if err := v.createLogicalDevice(requiredExtensions); err != nil {
		return err
	}

	if err := v.selectSurfaceFormat(); err != nil {
		return err
	}

	if err := v.createSwapchain(nil); err != nil {
		return err
	}

	if err := v.prepareDepthImage(); err != nil {
		return err
	}

	if err := v.createRenderPass(); err != nil {
		return err
	}

	if err := v.prepareOffscreen(); err != nil {
		return err
	}

	if err := v.prepareShadowMap(); err != nil {
		return err
	}

	if err := v.loadShaders(); err != nil {
		return err
	}

	if err := v.createPipelineCache(); err != nil {
		return err
	}

	if err := v.createDescriptorSetLayouts(); err != nil {
		return err
	}

	if err := v.createPipelineLayouts(); err != nil {
		return err
	}

	if err := v.createGraphicsPipelines(); err != nil {
		return err
	}

	if err := v.createImageViews(); err != nil {
		return err
	}

	if err := v.createFramebuffers(); err != nil {
		return err
	}

	if err := v.createCommandPool(); err != nil {
		return err
	}

	if err := v.loadAssets(); err != nil {
		return err
	}

	if err := v.prepareUniformBuffers(); err != nil {
		return err
	}

	if err := v.createDescriptorPool(); err != nil {
		return err
	}

	if err := v.createDescriptorSets(); err != nil {
		return err
	}

	if err := v.allocateCommandBuffers(); err != nil {
		return err
	}

	if err := v.createSynchronization(); err != nil {
		return err
	}

	v.updateCascades()

	return v.buildCommandBuffers()
}

func (v *Vulkan) selectQueueFamilies() error {
	var (
		queueFamilyCount uint32
		queueFamilies    []vk.QueueFamilyProperties
	)
	vk.GetPhysicalDeviceQueueFamilyProperties(v.physicalDevice, &queueFamilyCount, nil)
	queueFamilies = make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(v.physicalDevice, &queueFamilyCount, queueFamilies)

	if queueFamilyCount == 0 {
		return errors.New("vk.GetPhysicalDeviceQueueFamilyProperties(): no queuefamilies on GPU")
	}

	/* Find a suitable queue family for the target Vulkan mode */
	var graphicsFound bool
	var presentFound bool
	var separateQueue bool
	for i := uint32(0); i < queueFamilyCount; i++ {
		var (
			required        vk.QueueFlags
			supportsPresent vk.Bool32
			needsPresent    bool
		)
		if graphicsFound {
			// looking for separate present queue
			separateQueue = true
			vk.GetPhysicalDeviceSurfaceSupport(v.physicalDevice, i, v.surface, &supportsPresent)
			if supportsPresent.B() {
				v.currentQueueIndex = i
				presentFound = true
				break
			}
		}

		required |= vk.QueueFlags(vk.QueueGraphicsBit)
		vk.GetPhysicalDeviceSurfaceSupport(v.physicalDevice, i, v.surface, &supportsPresent)
		queueFamilies[i].Deref()
		if queueFamilies[i].QueueFlags&required != 0 {
			if !needsPresent || (needsPresent && supportsPresent.B()) {
				v.graphicsQueueIndex = i
				graphicsFound = true
				break
			} else if needsPresent {
				v.graphicsQueueIndex = i
				graphicsFound = true
				// need present, but this one doesn't support
				// continue lookup
			}
		}
	}
	if separateQueue && !presentFound {
		return errors.New("vulkan error: could not found separate queue with present capabilities")
	}
	if !graphicsFound {
		return errors.New("vulkan error: could not find a suitable queue family for the target Vulkan mode")
	}
	return nil
}

func (v *Vulkan) createLogicalDevice(requiredExtensions []string) error {
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(v.physicalDevice, &features)
	features.Deref()
	v.depthClampAvailable = features.DepthClamp.B()

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: v.graphicsQueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1, 0},
	}}

	enabledFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
	}
	if v.depthClampAvailable {
		enabledFeatures.DepthClamp = vk.True
	}

	var vkDevice vk.Device
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: terminatedStrings(requiredExtensions),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{enabledFeatures},
	}
	if err := vk.Error(vk.CreateDevice(v.physicalDevice, &dci, nil, &vkDevice)); err != nil {
		return errors.New("vk.CreateDevice(): " + err.Error())
	}

	var deviceQueue vk.Queue
	vk.GetDeviceQueue(vkDevice, v.graphicsQueueIndex, 0, &deviceQueue)

	v.deviceQueue = deviceQueue
	v.logicalDevice = vkDevice
	v.cleanup.push("logicalDevice", func() {
		vk.DestroyDevice(v.logicalDevice, nil)
	})
	return nil
}

func (v *Vulkan) selectSurfaceFormat() error {
	var (
		surfaceFormatCount uint32
		surfaceFormats     []vk.SurfaceFormat
	)

	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(v.physicalDevice, v.surface, &surfaceFormatCount, nil)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}

	surfaceFormats = make([]vk.SurfaceFormat, surfaceFormatCount)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(v.physicalDevice, v.surface, &surfaceFormatCount, surfaceFormats)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}

	surfaceFormats[0].Deref()

	var supported vk.Bool32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceSupport(v.physicalDevice, v.graphicsQueueIndex, v.surface, &supported)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceSupport(): " + err.Error())
	}
	if !supported.B() {
		return errors.New("vk.GetPhysicalDeviceSurfaceSupport(): surface is not supported")
	}

	v.imageFormat = surfaceFormats[0].Format
	v.imageColorspace = surfaceFormats[0].ColorSpace
	return nil
}

func (v *Vulkan) createSwapchain(oldSwapchain vk.Swapchain) error {
	var surfaceCapabilities vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(v.physicalDevice, v.surface, &surfaceCapabilities)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + err.Error())
	}

	// In case swapchain is being recreated
	if oldSwapchain != nil {
		surfaceCapabilities.Deref()
		surfaceCapabilities.CurrentExtent.Deref()
		v.currentSurfaceHeight = surfaceCapabilities.CurrentExtent.Height
		v.currentSurfaceWidth = surfaceCapabilities.CurrentExtent.Width
		v.camera.SetAspect(float32(v.currentSurfaceWidth) / float32(v.currentSurfaceHeight))
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	compositeAlphaFlags := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}

	for i := 0; i < len(compositeAlphaFlags); i++ {
		alphaFlags := vk.CompositeAlphaFlags(compositeAlphaFlags[i])
		flagSupported := surfaceCapabilities.SupportedCompositeAlpha&alphaFlags != 0
		if flagSupported {
			compositeAlpha = compositeAlphaFlags[i]
			break
		}
	}

	presentMode := vk.PresentModeFifo
	if v.configuration.DisableVSync {
		presentMode = v.fastestPresentMode()
	}

	var swapchain vk.Swapchain
	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         v.surface,
		MinImageCount:   v.configuration.SwapchainSize,
		ImageFormat:     v.imageFormat,
		ImageColorSpace: v.imageColorspace,
		ImageExtent: vk.Extent2D{
			Width:  v.currentSurfaceWidth,
			Height: v.currentSurfaceHeight,
		},
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit),
		PreTransform:     vk.SurfaceTransformIdentityBit,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     oldSwapchain,
	}

	if err := vk.Error(vk.CreateSwapchain(v.logicalDevice, &scci, nil, &swapchain)); err != nil {
		return errors.New("vk.CreateSwapchain(): " + err.Error())
	}
	v.swapchain = swapchain

	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(v.logicalDevice, v.swapchain, &numImages, nil)); err != nil {
		return errors.New("vk.GetSwapchainImages(num): " + err.Error())
	}

	v.swapchainImages = make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(v.logicalDevice, v.swapchain, &numImages, v.swapchainImages)); err != nil {
		return errors.New("vk.GetSwapchainImages(images): " + err.Error())
	}
	return nil
}

// fastestPresentMode prefers mailbox over immediate presentation,
// falling back to FIFO which every surface supports.
func (v *Vulkan) fastestPresentMode() vk.PresentMode {
	var numModes uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(v.physicalDevice, v.surface, &numModes, nil)); err != nil {
		return vk.PresentModeFifo
	}

	modes := make([]vk.PresentMode, numModes)
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(v.physicalDevice, v.surface, &numModes, modes)); err != nil {
		return vk.PresentModeFifo
	}

	supported := make(map[vk.PresentMode]bool, numModes)
	for _, mode := range modes {
		supported[mode] = true
	}
	if supported[vk.PresentModeMailbox] {
		return vk.PresentModeMailbox
	}
	if supported[vk.PresentModeImmediate] {
		return vk.PresentModeImmediate
	}
	return vk.PresentModeFifo
}

func (v *Vulkan) prepareDepthImage() error {
	depthFormat := vk.FormatD32Sfloat
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    depthFormat,
		Extent: vk.Extent3D{
			Width:  v.currentSurfaceWidth,
			Height: v.currentSurfaceHeight,
			Depth:  1,
		},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
	}

	var image vk.Image
	if err := vk.Error(vk.CreateImage(v.logicalDevice, &ici, nil, &image)); err != nil {
		return errors.New("vk.CreateImage(depth): " + err.Error())
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(v.logicalDevice, image, &memoryRequirements)
	memoryRequirements.Deref()

	var memory vk.DeviceMemory
	if err := v.allocateMemory(&memory, memoryRequirements.Size, memoryRequirements.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit); err != nil {
		return err
	}

	if err := vk.Error(vk.BindImageMemory(v.logicalDevice, image, memory, 0)); err != nil {
		return errors.New("vk.BindImageMemory(depth): " + err.Error())
	}

	ivci := vk.ImageViewCreateInfo{
		SType:  vk.StructureTypeImageViewCreateInfo,
		Format: depthFormat,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			LevelCount: 1,
			LayerCount: 1,
		},
		ViewType: vk.ImageViewType2d,
		Image:    image,
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(v.logicalDevice, &ivci, nil, &view)); err != nil {
		return errors.New("vk.CreateImageView(depth): " + err.Error())
	}

	v.depthImage = image
	v.depthImageView = view
	v.depthImageMemory = memory
	v.depthImageFormat = depthFormat

	return nil
}

func (v *Vulkan) createRenderPass() error {
	attachments := []vk.AttachmentDescription{
		{
			Format:         v.imageFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		},
		{
			Format:         v.depthImageFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	colorAttachmentRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}

	depthAttachmentRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpassDependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorAttachmentRef)),
		PColorAttachments:       colorAttachmentRef,
		PDepthStencilAttachment: &depthAttachmentRef,
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{subpassDependency},
	}

	var renderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(v.logicalDevice, &rpci, nil, &renderPass)); err != nil {
		return errors.New("vk.CreateRenderPass(): " + err.Error())
	}
	v.renderPass = renderPass
	return nil
}

func (v *Vulkan) createImageViews() error {
	for idx := 0; idx < len(v.swapchainImages); idx++ {
		var imageView vk.ImageView
		ivci := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    v.swapchainImages[idx],
			ViewType: vk.ImageViewType2d,
			Format:   v.imageFormat,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}

		if err := vk.Error(vk.CreateImageView(v.logicalDevice, &ivci, nil, &imageView)); err != nil {
			return fmt.Errorf("vk.CreateImageView()[%d]: %s", idx, err.Error())
		}

		v.swapchainImageViews = append(v.swapchainImageViews, imageView)
	}
	return nil
}

func (v *Vulkan) createFramebuffers() error {
	for _, image := range v.swapchainImageViews {
		attachments := []vk.ImageView{
			image,
			v.depthImageView,
		}
		fci := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      v.renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           v.currentSurfaceWidth,
			Height:          v.currentSurfaceHeight,
			Layers:          1,
		}

		var framebuffer vk.Framebuffer
		if err := vk.Error(vk.CreateFramebuffer(v.logicalDevice, &fci, nil, &framebuffer)); err != nil {
			return errors.New("vk.CreateFramebuffer(): " + err.Error())
		}
		v.framebuffers = append(v.framebuffers, framebuffer)
	}
	return nil
}

func (v *Vulkan) createPipelineCache() error {
	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}

	var pipelineCache vk.PipelineCache
	if err := vk.Error(vk.CreatePipelineCache(v.logicalDevice, &pcci, nil, &pipelineCache)); err != nil {
		return errors.New("vk.CreatePipelineCache(): " + err.Error())
	}
	v.pipelineCache = pipelineCache
	v.cleanup.push("pipelineCache", func() {
		vk.DestroyPipelineCache(v.logicalDevice, v.pipelineCache, nil)
	})
	return nil
}

func (v *Vulkan) createCommandPool() error {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: v.graphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}

	var commandPool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(v.logicalDevice, &cpci, nil, &commandPool)); err != nil {
		return errors.New("vk.CreateCommandPool(): " + err.Error())
	}
	v.commandPool = commandPool
	return nil
}

func (v *Vulkan) allocateCommandBuffers() error {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        v.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(len(v.swapchainImageViews)),
	}

	commandBuffers := make([]vk.CommandBuffer, len(v.swapchainImageViews))
	if err := vk.Error(vk.AllocateCommandBuffers(v.logicalDevice, &cbai, commandBuffers)); err != nil {
		return errors.New("vk.AllocateCommandBuffers(): " + err.Error())
	}
	v.commandBuffers = commandBuffers
	return nil
}

func (v *Vulkan) createSynchronization() error {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}

	var (
		imageAvailableSemaphore vk.Semaphore
		renderFinishedSemphore  vk.Semaphore
		fence                   vk.Fence
	)

	if err := vk.Error(vk.CreateSemaphore(v.logicalDevice, &sci, nil, &imageAvailableSemaphore)); err != nil {
		return errors.New("vk.CreateSemaphore(): " + err.Error())
	}
	if err := vk.Error(vk.CreateSemaphore(v.logicalDevice, &sci, nil, &renderFinishedSemphore)); err != nil {
		return errors.New("vk.CreateSemaphore(): " + err.Error())
	}
	if err := vk.Error(vk.CreateFence(v.logicalDevice, &fci, nil, &fence)); err != nil {
		return errors.New("vk.CreateFence(): " + err.Error())
	}

	v.imageAvailableSemaphore = imageAvailableSemaphore
	v.renderFinishedSemphore = renderFinishedSemphore
	v.imageFence = fence
	return nil
}

func (v *Vulkan) loadShaders() error {
	var shaders []core.Shader
	shaderFiles, shaderTypes, err := core.ShaderFilesFromDirectory(v.configuration.ShaderDirectory)
	if err != nil {
		return err
	}

	for idx, val := range shaderFiles {
		shader, err := core.NewVulkanShader(val, shaderTypes[idx], v.logicalDevice)
		if err != nil {
			return err
		}
		shaders = append(shaders, shader)
	}
	v.shaders = shaders
	return nil
}

// loadAssets generates the terrain, water and sky geometry and
// textures and uploads them to the device.
func (v *Vulkan) loadAssets() error {
	v.heightmap = model.NewProceduralHeightmap(1, 256)

	meshes := []struct {
		out  *meshBuffer
		mesh model.Mesh
		name string
	}{
		{&v.meshes.terrain, model.NewTerrainPatch(v.heightmap, 128, glm.Vec3{0.0375, 1, 0.0375}), "terrain"},
		{&v.meshes.water, model.NewWaterPlane(FarClip), "water"},
		{&v.meshes.sky, model.NewSkySphere(FarClip*0.9, 32, 32), "sky"},
	}
	for _, m := range meshes {
		if err := v.uploadMesh(m.out, m.mesh, m.name); err != nil {
			return err
		}
	}

	if err := v.createTexture(&v.textures.heightmap, []image.Image{heightmapImage(v.heightmap)}, "heightmap"); err != nil {
		return err
	}

	layers := make([]image.Image, model.TerrainLayerCount)
	for idx := range layers {
		layers[idx] = model.NewTerrainLayer(256, idx)
	}
	if err := v.createTexture(&v.textures.terrainArray, layers, "terrainArray"); err != nil {
		return err
	}

	if err := v.createTexture(&v.textures.waterNormal, []image.Image{model.NewWaterNormal(256)}, "waterNormal"); err != nil {
		return err
	}

	return v.createTexture(&v.textures.sky, []image.Image{model.NewSkyGradient(512)}, "sky")
}

// heightmapImage renders the heightmap into a grayscale image for
// sampling in the terrain shaders.
func heightmapImage(heights *model.Heightmap) image.Image {
	size := heights.Size()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			value := heights.Sample(float32(x)/float32(size-1), float32(y)/float32(size-1))
			gray := uint8(clampUnit(value) * 255)
			offset := img.PixOffset(x, y)
			img.Pix[offset+0] = gray
			img.Pix[offset+1] = gray
			img.Pix[offset+2] = gray
			img.Pix[offset+3] = 255
		}
	}
	return img
}

func clampUnit(value float32) float32 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func (v *Vulkan) createBuffer(buffer *vk.Buffer, size int, usage vk.BufferUsageFlagBits, sharingMode vk.SharingMode) error {
	bci := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: sharingMode,
	}
	if err := vk.Error(vk.CreateBuffer(v.logicalDevice, &bci, nil, buffer)); err != nil {
		return fmt.Errorf("vk.CreateBuffer(): %s", err.Error())
	}
	return nil
}

func (v *Vulkan) allocateMemory(memory *vk.DeviceMemory, size vk.DeviceSize, memoryType uint32, properties vk.MemoryPropertyFlagBits) error {
	memTypeIdx, err := findMemoryType(v.physicalDevice, memoryType, vk.MemoryPropertyFlags(properties))
	if err != nil {
		return err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  size,
		MemoryTypeIndex: memTypeIdx,
	}

	if err := vk.Error(vk.AllocateMemory(v.logicalDevice, &mai, nil, memory)); err != nil {
		return fmt.Errorf("vk.AllocateMemory(): %s", err.Error())
	}
	return nil
}

// terminatedStrings null terminates strings for C interop.
func terminatedStrings(strs []string) []string {
	out := make([]string, len(strs))
	for idx, str := range strs {
		out[idx] = str + "\x00"
	}
	return out
}

func findMemoryType(device vk.PhysicalDevice, filter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	memoryProperties := vk.PhysicalDeviceMemoryProperties{}
	vk.GetPhysicalDeviceMemoryProperties(device, &memoryProperties)
	memoryProperties.Deref()

	for idx := uint32(0); idx < memoryProperties.MemoryTypeCount; idx++ {
		memoryProperties.MemoryTypes[idx].Deref()
		if filter&(1<<idx) != 0 && (memoryProperties.MemoryTypes[idx].PropertyFlags&properties) == properties {
			return idx, nil
		}
	}
	return 0, errors.New("requested memory type not found")
}

// uploadMesh copies a mesh into host visible vertex and index
// buffers.
func (v *Vulkan) uploadMesh(out *meshBuffer, mesh model.Mesh, name string) error {
	vertexSize := int(unsafe.Sizeof(model.Vertex{})) * len(mesh.Vertices)
	if err := v.createBuffer(&out.vertexBuffer, vertexSize, vk.BufferUsageVertexBufferBit, vk.SharingModeExclusive); err != nil {
		return fmt.Errorf("uploadMesh(%s): %s", name, err.Error())
	}
	v.cleanup.push(name+".vertexBuffer", func() {
		vk.DestroyBuffer(v.logicalDevice, out.vertexBuffer, nil)
	})

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(v.logicalDevice, out.vertexBuffer, &memoryRequirements)
	memoryRequirements.Deref()

	if err := v.allocateMemory(&out.vertexMemory, memoryRequirements.Size, memoryRequirements.MemoryTypeBits, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit); err != nil {
		return fmt.Errorf("uploadMesh(%s): %s", name, err.Error())
	}
	v.cleanup.push(name+".vertexMemory", func() {
		vk.FreeMemory(v.logicalDevice, out.vertexMemory, nil)
	})

	if err := vk.Error(vk.BindBufferMemory(v.logicalDevice, out.vertexBuffer, out.vertexMemory, 0)); err != nil {
		return fmt.Errorf("vk.BindBufferMemory(%s): %s", name, err.Error())
	}

	var vertexMappedMemory unsafe.Pointer
	vk.MapMemory(v.logicalDevice, out.vertexMemory, 0, vk.DeviceSize(vertexSize), 0, &vertexMappedMemory)
	vertexCastMemory := *(*[]model.Vertex)(unsafe.Pointer(&sliceHeader{
		Data: uintptr(vertexMappedMemory),
		Cap:  len(mesh.Vertices),
		Len:  len(mesh.Vertices),
	}))
	copy(vertexCastMemory, mesh.Vertices[:])
	vk.UnmapMemory(v.logicalDevice, out.vertexMemory)

	indexSize := int(unsafe.Sizeof(uint32(0))) * len(mesh.Indices)
	if err := v.createBuffer(&out.indexBuffer, indexSize, vk.BufferUsageIndexBufferBit, vk.SharingModeExclusive); err != nil {
		return fmt.Errorf("uploadMesh(%s): %s", name, err.Error())
	}
	v.cleanup.push(name+".indexBuffer", func() {
		vk.DestroyBuffer(v.logicalDevice, out.indexBuffer, nil)
	})

	vk.GetBufferMemoryRequirements(v.logicalDevice, out.indexBuffer, &memoryRequirements)
	memoryRequirements.Deref()

	if err := v.allocateMemory(&out.indexMemory, memoryRequirements.Size, memoryRequirements.MemoryTypeBits, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit); err != nil {
		return fmt.Errorf("uploadMesh(%s): %s", name, err.Error())
	}
	v.cleanup.push(name+".indexMemory", func() {
		vk.FreeMemory(v.logicalDevice, out.indexMemory, nil)
	})

	if err := vk.Error(vk.BindBufferMemory(v.logicalDevice, out.indexBuffer, out.indexMemory, 0)); err != nil {
		return fmt.Errorf("vk.BindBufferMemory(%s): %s", name, err.Error())
	}

	var indexMappedMemory unsafe.Pointer
	vk.MapMemory(v.logicalDevice, out.indexMemory, 0, vk.DeviceSize(indexSize), 0, &indexMappedMemory)
	indexCastMemory := *(*[]uint32)(unsafe.Pointer(&sliceHeader{
		Data: uintptr(indexMappedMemory),
		Cap:  len(mesh.Indices),
		Len:  len(mesh.Indices),
	}))
	copy(indexCastMemory, mesh.Indices[:])
	vk.UnmapMemory(v.logicalDevice, out.indexMemory)

	out.indexCount = uint32(len(mesh.Indices))
	return nil
}

// createTexture uploads one or more equally sized images into a
// sampled device local image, one array layer per image.
func (v *Vulkan) createTexture(out *texture, images []image.Image, name string) error {
	if len(images) == 0 {
		return errors.New("createTexture(" + name + "): no images")
	}

	bounds := images[0].Bounds()
	width, height := uint32(bounds.Max.X), uint32(bounds.Max.Y)
	layerSize := bounds.Max.X * bounds.Max.Y * 4
	bufSize := layerSize * len(images)
	out.arrayLayers = uint32(len(images))

	var stagingBuffer vk.Buffer
	if err := v.createBuffer(&stagingBuffer, bufSize, vk.BufferUsageTransferSrcBit, vk.SharingModeExclusive); err != nil {
		return fmt.Errorf("createTexture(%s): %s", name, err.Error())
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(v.logicalDevice, stagingBuffer, &memoryRequirements)
	memoryRequirements.Deref()

	var stagingMemory vk.DeviceMemory
	if err := v.allocateMemory(&stagingMemory, memoryRequirements.Size, memoryRequirements.MemoryTypeBits, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit); err != nil {
		return fmt.Errorf("createTexture(%s): %s", name, err.Error())
	}
	vk.BindBufferMemory(v.logicalDevice, stagingBuffer, stagingMemory, 0)

	var mappedMemory unsafe.Pointer
	vk.MapMemory(v.logicalDevice, stagingMemory, 0, vk.DeviceSize(bufSize), 0, &mappedMemory)
	castMappedMemory := *(*[]uint8)(unsafe.Pointer(&sliceHeader{
		Data: uintptr(mappedMemory),
		Cap:  bufSize,
		Len:  bufSize,
	}))
	for idx, img := range images {
		pixels, err := core.GetPixels(img, bounds.Max.X*4)
		if err != nil {
			return err
		}
		copy(castMappedMemory[idx*layerSize:(idx+1)*layerSize], pixels[:])
	}
	vk.UnmapMemory(v.logicalDevice, stagingMemory)

	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   out.arrayLayers,
		Format:        vk.FormatR8g8b8a8Unorm,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}

	var textureImage vk.Image
	if err := vk.Error(vk.CreateImage(v.logicalDevice, &ici, nil, &textureImage)); err != nil {
		return fmt.Errorf("vk.CreateImage(%s): %s", name, err.Error())
	}
	out.image = textureImage
	v.cleanup.push(name+".image", func() {
		vk.DestroyImage(v.logicalDevice, out.image, nil)
	})

	vk.GetImageMemoryRequirements(v.logicalDevice, out.image, &memoryRequirements)
	memoryRequirements.Deref()

	if err := v.allocateMemory(&out.memory, memoryRequirements.Size, memoryRequirements.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit); err != nil {
		return fmt.Errorf("createTexture(%s): %s", name, err.Error())
	}
	v.cleanup.push(name+".memory", func() {
		vk.FreeMemory(v.logicalDevice, out.memory, nil)
	})

	vk.BindImageMemory(v.logicalDevice, out.image, out.memory, 0)

	if err := v.transitionLayout(out.image, out.arrayLayers, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		return err
	}
	if err := v.copyBufferToImage(stagingBuffer, out.image, width, height, out.arrayLayers); err != nil {
		return err
	}
	if err := v.transitionLayout(out.image, out.arrayLayers, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
		return err
	}

	vk.DestroyBuffer(v.logicalDevice, stagingBuffer, nil)
	vk.FreeMemory(v.logicalDevice, stagingMemory, nil)

	viewType := vk.ImageViewType2d
	if out.arrayLayers > 1 {
		viewType = vk.ImageViewType2dArray
	}
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    out.image,
		ViewType: viewType,
		Format:   vk.FormatR8g8b8a8Unorm,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     out.arrayLayers,
		},
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(v.logicalDevice, &ivci, nil, &view)); err != nil {
		return fmt.Errorf("vk.CreateImageView(%s): %s", name, err.Error())
	}
	out.view = view
	v.cleanup.push(name+".view", func() {
		vk.DestroyImageView(v.logicalDevice, out.view, nil)
	})

	sci := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           16,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}

	var sampler vk.Sampler
	if err := vk.Error(vk.CreateSampler(v.logicalDevice, &sci, nil, &sampler)); err != nil {
		return fmt.Errorf("vk.CreateSampler(%s): %s", name, err.Error())
	}
	out.sampler = sampler
	v.cleanup.push(name+".sampler", func() {
		vk.DestroySampler(v.logicalDevice, out.sampler, nil)
	})

	out.descriptor = vk.DescriptorImageInfo{
		Sampler:     out.sampler,
		ImageView:   out.view,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
	return nil
}

func (v *Vulkan) beginSingleTimeCommands() (vk.CommandBuffer, error) {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		Level:              vk.CommandBufferLevelPrimary,
		CommandPool:        v.commandPool,
		CommandBufferCount: 1,
	}

	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(v.logicalDevice, &cbai, commandBuffers)); err != nil {
		return nil, fmt.Errorf("vk.AllocateCommandBuffers(): %s", err.Error())
	}
	commandBuffer := commandBuffers[0]

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}

	if err := vk.Error(vk.BeginCommandBuffer(commandBuffer, &cbbi)); err != nil {
		vk.FreeCommandBuffers(v.logicalDevice, v.commandPool, 1, []vk.CommandBuffer{commandBuffer})
		return nil, fmt.Errorf("vk.BeginCommandBuffer(): %s", err.Error())
	}

	return commandBuffer, nil
}

func (v *Vulkan) endSingleTimeCommands(commandBuffer vk.CommandBuffer) error {
	if err := vk.Error(vk.EndCommandBuffer(commandBuffer)); err != nil {
		return fmt.Errorf("vk.EndCommandBuffer(): %s", err.Error())
	}

	si := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{commandBuffer},
	}

	if err := vk.Error(vk.QueueSubmit(v.deviceQueue, 1, []vk.SubmitInfo{si}, nil)); err != nil {
		return fmt.Errorf("vk.QueueSubmit(): %s", err.Error())
	}

	vk.QueueWaitIdle(v.deviceQueue)

	vk.FreeCommandBuffers(v.logicalDevice, v.commandPool, 1, []vk.CommandBuffer{commandBuffer})
	return nil
}

func (v *Vulkan) transitionLayout(img vk.Image, layers uint32, old vk.ImageLayout, new vk.ImageLayout) error {
	cmd, err := v.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           old,
		NewLayout:           new,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     layers,
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		},
	}

	var srcStage, dstStage vk.PipelineStageFlags
	if old == vk.ImageLayoutUndefined && new == vk.ImageLayoutTransferDstOptimal {
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	} else if old == vk.ImageLayoutTransferDstOptimal && new == vk.ImageLayoutShaderReadOnlyOptimal {
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	} else {
		return fmt.Errorf("unsupported layout transition")
	}

	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})

	return v.endSingleTimeCommands(cmd)
}

func (v *Vulkan) copyBufferToImage(buf vk.Buffer, img vk.Image, width, height, layers uint32) error {
	cmd, err := v.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	regions := make([]vk.BufferImageCopy, layers)
	layerSize := vk.DeviceSize(width * height * 4)
	for idx := uint32(0); idx < layers; idx++ {
		regions[idx] = vk.BufferImageCopy{
			BufferOffset: layerSize * vk.DeviceSize(idx),
			ImageOffset:  vk.Offset3D{},
			ImageExtent: vk.Extent3D{
				Width:  width,
				Height: height,
				Depth:  1,
			},
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:       0,
				BaseArrayLayer: idx,
				LayerCount:     1,
			},
		}
	}
	vk.CmdCopyBufferToImage(cmd, buf, img, vk.ImageLayoutTransferDstOptimal, uint32(len(regions)), regions)

	return v.endSingleTimeCommands(cmd)
}

// updateCascades recomputes the shadow cascade set from the current
// camera and light.
func (v *Vulkan) updateCascades() {
	v.cascadeLock.Lock()
	defer v.cascadeLock.Unlock()

	lightDir := glm.Vec3{-v.lightPosition[0], -v.lightPosition[1], -v.lightPosition[2]}.Normalize()
	frustum := cascade.Frustum{
		Near:     NearClip,
		Far:      FarClip,
		Lambda:   v.cascadeLambda,
		View:     v.camera.View(),
		Proj:     v.camera.Perspective(),
		LightDir: lightDir,
	}

	cascades, err := frustum.Compute()
	if err != nil {
		// Degenerate camera state, keep the previous frame's set.
		return
	}
	v.cascades = cascades
}

// waterClockRate scales elapsed seconds into the normalised water
// animation phase the water uniform samples from.
const waterClockRate = 0.0125

// advanceWaterClock moves the water phase forward by delta seconds,
// wrapping into [0, 1).
func advanceWaterClock(timer, delta float32) float32 {
	timer += delta * waterClockRate
	for timer >= 1 {
		timer -= 1
	}
	return timer
}

// Draw implements interface
func (v *Vulkan) Draw() error {
	v.frameLock.Lock()
	defer v.frameLock.Unlock()

	vk.WaitForFences(v.logicalDevice, 1, []vk.Fence{v.imageFence}, 0, math.MaxUint32)
	vk.ResetFences(v.logicalDevice, 1, []vk.Fence{v.imageFence})

	if result := vk.AcquireNextImage(v.logicalDevice, v.swapchain, math.MaxUint64, v.imageAvailableSemaphore, nil, &v.imageIndex); result == vk.ErrorOutOfDate {
		if err := v.recreatePipeline(); err != nil {
			return err
		}
		return nil
	}

	now := v.clock.Elapsed()
	delta := float32(now - v.lastTick)
	v.lastTick = now
	if !v.paused {
		v.timer = advanceWaterClock(v.timer, delta)
	}

	if !v.paused || v.camera.Updated() {
		v.updateCascades()
	}
	v.updateUniformBuffers()

	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{v.imageAvailableSemaphore},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{v.commandBuffers[v.imageIndex]},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{v.renderFinishedSemphore},
	}}

	if err := vk.Error(vk.QueueSubmit(v.deviceQueue, 1, submit, v.imageFence)); err != nil {
		return errors.New("vk.QueueSubmit(): " + err.Error())
	}

	return nil
}

// Present implements interface
func (v *Vulkan) Present() error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{v.renderFinishedSemphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{v.swapchain},
		PImageIndices:      []uint32{v.imageIndex},
	}

	presentResult := vk.QueuePresent(v.deviceQueue, &presentInfo)
	if presentResult == vk.ErrorOutOfDate {
		v.frameLock.Lock()
		defer v.frameLock.Unlock()
		if err := v.recreatePipeline(); err != nil {
			return err
		}
		return nil
	}

	if err := vk.Error(presentResult); err != nil {
		return errors.New("vk.QueuePresent(): " + err.Error())
	}

	return nil
}

func (v *Vulkan) destroyBeforeRecreatePipeline() {
	vk.FreeCommandBuffers(v.logicalDevice, v.commandPool, uint32(len(v.commandBuffers)), v.commandBuffers)
	v.commandBuffers = nil

	for _, fb := range v.framebuffers {
		vk.DestroyFramebuffer(v.logicalDevice, fb, nil)
	}
	v.framebuffers = nil

	for _, iv := range v.swapchainImageViews {
		vk.DestroyImageView(v.logicalDevice, iv, nil)
	}
	v.swapchainImageViews = nil

	// Depth image resources
	vk.DestroyImageView(v.logicalDevice, v.depthImageView, nil)
	vk.DestroyImage(v.logicalDevice, v.depthImage, nil)
	vk.FreeMemory(v.logicalDevice, v.depthImageMemory, nil)

	vk.DestroyRenderPass(v.logicalDevice, v.renderPass, nil)
}

// recreatePipeline rebuilds the swapchain sized resources after a
// resize or an out of date surface. Offscreen and shadow targets
// are fixed size and survive.
func (v *Vulkan) recreatePipeline() error {
	vk.DeviceWaitIdle(v.logicalDevice)
	v.destroyBeforeRecreatePipeline()

	if err := v.createSwapchain(v.swapchain); err != nil {
		return err
	}

	if err := v.prepareDepthImage(); err != nil {
		return err
	}

	if err := v.createRenderPass(); err != nil {
		return err
	}

	if err := v.createImageViews(); err != nil {
		return err
	}

	if err := v.createFramebuffers(); err != nil {
		return err
	}

	if err := v.allocateCommandBuffers(); err != nil {
		return err
	}

	return v.buildCommandBuffers()
}

// Camera implements interface
func (v *Vulkan) Camera() *scene.Camera {
	return v.camera
}

// Cascades implements interface
func (v *Vulkan) Cascades() [cascade.Count]cascade.Cascade {
	v.cascadeLock.Lock()
	defer v.cascadeLock.Unlock()
	return v.cascades
}

// SetCascadeLambda implements interface
func (v *Vulkan) SetCascadeLambda(lambda float32) {
	v.cascadeLock.Lock()
	v.cascadeLambda = clampLambda(lambda)
	v.cascadeLock.Unlock()
	v.updateCascades()
}

// SetPaused implements interface
func (v *Vulkan) SetPaused(paused bool) {
	v.frameLock.Lock()
	defer v.frameLock.Unlock()
	v.paused = paused
}

// DeviceIsSuitable implements interface
func (v *Vulkan) DeviceIsSuitable(device vk.PhysicalDevice) (bool, string) {
	var numExtensions uint32
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &numExtensions, nil)); err != nil {
		return false, "vk.EnumerateDeviceExtensionProperties(): " + err.Error()
	}
	extensions := make([]vk.ExtensionProperties, numExtensions)
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &numExtensions, extensions)); err != nil {
		return false, "vk.EnumerateDeviceExtensionProperties(): " + err.Error()
	}

	available := make(map[string]bool, numExtensions)
	for _, ext := range extensions {
		ext.Deref()
		available[vk.ToString(ext.ExtensionName[:])] = true
	}

	for _, required := range v.configuration.DeviceExtensions {
		if !available[required] {
			return false, "missing device extension " + required
		}
	}
	return true, ""
}

// Destroy implements interface
func (v *Vulkan) Destroy() {
	vk.DeviceWaitIdle(v.logicalDevice)

	for _, shader := range v.shaders {
		shader.Destroy()
	}
	v.shaders = nil

	vk.DestroySemaphore(v.logicalDevice, v.imageAvailableSemaphore, nil)
	vk.DestroySemaphore(v.logicalDevice, v.renderFinishedSemphore, nil)
	vk.DestroyFence(v.logicalDevice, v.imageFence, nil)

	vk.DestroyCommandPool(v.logicalDevice, v.commandPool, nil)

	for _, f := range v.framebuffers {
		vk.DestroyFramebuffer(v.logicalDevice, f, nil)
	}
	v.framebuffers = nil

	for _, i := range v.swapchainImageViews {
		vk.DestroyImageView(v.logicalDevice, i, nil)
	}
	v.swapchainImageViews = nil

	vk.DestroyRenderPass(v.logicalDevice, v.renderPass, nil)

	vk.FreeMemory(v.logicalDevice, v.depthImageMemory, nil)
	vk.DestroyImageView(v.logicalDevice, v.depthImageView, nil)
	vk.DestroyImage(v.logicalDevice, v.depthImage, nil)

	if v.offscreen != nil {
		v.offscreen.destroy()
	}
	if v.shadow != nil {
		v.shadow.destroy()
	}

	vk.DestroySwapchain(v.logicalDevice, v.swapchain, nil)

	// Pipelines, layouts, buffers, textures and finally the device,
	// in reverse creation order.
	v.cleanup.run()
}
