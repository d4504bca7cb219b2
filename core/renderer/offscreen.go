// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"

	vk "github.com/devblok/vulkan"
)

// offscreenTarget is one sampleable color target of the offscreen
// pass. Reflection and refraction each get one, both share the
// pass depth attachment and sampler.
type offscreenTarget struct {
	image       vk.Image
	memory      vk.DeviceMemory
	view        vk.ImageView
	framebuffer vk.Framebuffer
	descriptor  vk.DescriptorImageInfo
}

// offscreenPass owns the reflection and refraction render targets.
// The render pass leaves the color attachments in shader read only
// layout so the very next pass can sample them without extra
// barriers on the CPU side.
type offscreenPass struct {
	width, height uint32

	renderPass vk.RenderPass
	sampler    vk.Sampler

	reflection offscreenTarget
	refraction offscreenTarget

	depthImage  vk.Image
	depthMemory vk.DeviceMemory
	depthView   vk.ImageView
	depthFormat vk.Format

	cleanup cleanupStack
}

func (v *Vulkan) prepareOffscreen() error {
	pass := &offscreenPass{
		width:       OffscreenDim,
		height:      OffscreenDim,
		depthFormat: v.depthImageFormat,
	}

	if err := pass.createRenderPass(v.logicalDevice, v.imageFormat); err != nil {
		pass.destroy()
		return err
	}
	if err := pass.createSampler(v.logicalDevice); err != nil {
		pass.destroy()
		return err
	}
	if err := pass.createDepth(v); err != nil {
		pass.destroy()
		return err
	}
	if err := pass.createTarget(v, &pass.refraction, "refraction"); err != nil {
		pass.destroy()
		return err
	}
	if err := pass.createTarget(v, &pass.reflection, "reflection"); err != nil {
		pass.destroy()
		return err
	}
	if err := pass.createFramebuffer(v.logicalDevice, &pass.refraction, "refraction"); err != nil {
		pass.destroy()
		return err
	}
	if err := pass.createFramebuffer(v.logicalDevice, &pass.reflection, "reflection"); err != nil {
		pass.destroy()
		return err
	}

	v.offscreen = pass
	return nil
}

func (o *offscreenPass) createRenderPass(device vk.Device, colorFormat vk.Format) error {
	attachments := []vk.AttachmentDescription{
		{
			Format:         colorFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutShaderReadOnlyOptimal,
		},
		{
			Format:         o.depthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	colorReference := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	depthReference := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       colorReference,
		PDepthStencilAttachment: &depthReference,
	}

	// The previous frame samples these targets in its fragment
	// stage, writes must not start before those reads retire, and
	// this frame's reads must wait for the writes. By-region keeps
	// the hazard tracking local instead of a full pipeline flush.
	dependencies := []vk.SubpassDependency{
		{
			SrcSubpass:      vk.SubpassExternal,
			DstSubpass:      0,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessShaderReadBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
		{
			SrcSubpass:      0,
			DstSubpass:      vk.SubpassExternal,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessShaderReadBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var renderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(device, &rpci, nil, &renderPass)); err != nil {
		return fmt.Errorf("vk.CreateRenderPass(offscreen): %s", err.Error())
	}
	o.renderPass = renderPass
	o.cleanup.push("renderPass", func() {
		vk.DestroyRenderPass(device, o.renderPass, nil)
	})
	return nil
}

func (o *offscreenPass) createSampler(device vk.Device) error {
	sci := vk.SamplerCreateInfo{
		SType:         vk.StructureTypeSamplerCreateInfo,
		MagFilter:     vk.FilterLinear,
		MinFilter:     vk.FilterLinear,
		MipmapMode:    vk.SamplerMipmapModeLinear,
		AddressModeU:  vk.SamplerAddressModeClampToEdge,
		AddressModeV:  vk.SamplerAddressModeClampToEdge,
		AddressModeW:  vk.SamplerAddressModeClampToEdge,
		MipLodBias:    0,
		MaxAnisotropy: 1,
		MinLod:        0,
		MaxLod:        1,
		BorderColor:   vk.BorderColorFloatOpaqueWhite,
	}

	var sampler vk.Sampler
	if err := vk.Error(vk.CreateSampler(device, &sci, nil, &sampler)); err != nil {
		return fmt.Errorf("vk.CreateSampler(offscreen): %s", err.Error())
	}
	o.sampler = sampler
	o.cleanup.push("sampler", func() {
		vk.DestroySampler(device, o.sampler, nil)
	})
	return nil
}

// createTarget allocates one device local color image of fixed
// dimensions and exposes it through a sampleable descriptor.
func (o *offscreenPass) createTarget(v *Vulkan, target *offscreenTarget, name string) error {
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    v.imageFormat,
		Extent: vk.Extent3D{
			Width:  o.width,
			Height: o.height,
			Depth:  1,
		},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit),
	}

	var image vk.Image
	if err := vk.Error(vk.CreateImage(v.logicalDevice, &ici, nil, &image)); err != nil {
		return fmt.Errorf("vk.CreateImage(%s): %s", name, err.Error())
	}
	target.image = image
	o.cleanup.push(name+".image", func() {
		vk.DestroyImage(v.logicalDevice, target.image, nil)
	})

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(v.logicalDevice, target.image, &memoryRequirements)
	memoryRequirements.Deref()

	var memory vk.DeviceMemory
	if err := v.allocateMemory(&memory, memoryRequirements.Size, memoryRequirements.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit); err != nil {
		return err
	}
	target.memory = memory
	o.cleanup.push(name+".memory", func() {
		vk.FreeMemory(v.logicalDevice, target.memory, nil)
	})

	if err := vk.Error(vk.BindImageMemory(v.logicalDevice, target.image, target.memory, 0)); err != nil {
		return fmt.Errorf("vk.BindImageMemory(%s): %s", name, err.Error())
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    target.image,
		ViewType: vk.ImageViewType2d,
		Format:   v.imageFormat,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(v.logicalDevice, &ivci, nil, &view)); err != nil {
		return fmt.Errorf("vk.CreateImageView(%s): %s", name, err.Error())
	}
	target.view = view
	o.cleanup.push(name+".view", func() {
		vk.DestroyImageView(v.logicalDevice, target.view, nil)
	})

	target.descriptor = vk.DescriptorImageInfo{
		Sampler:     o.sampler,
		ImageView:   target.view,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
	return nil
}

func (o *offscreenPass) createDepth(v *Vulkan) error {
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    o.depthFormat,
		Extent: vk.Extent3D{
			Width:  o.width,
			Height: o.height,
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
		return fmt.Errorf("vk.CreateImage(offscreen depth): %s", err.Error())
	}
	o.depthImage = image
	o.cleanup.push("depth.image", func() {
		vk.DestroyImage(v.logicalDevice, o.depthImage, nil)
	})

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(v.logicalDevice, o.depthImage, &memoryRequirements)
	memoryRequirements.Deref()

	var memory vk.DeviceMemory
	if err := v.allocateMemory(&memory, memoryRequirements.Size, memoryRequirements.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit); err != nil {
		return err
	}
	o.depthMemory = memory
	o.cleanup.push("depth.memory", func() {
		vk.FreeMemory(v.logicalDevice, o.depthMemory, nil)
	})

	if err := vk.Error(vk.BindImageMemory(v.logicalDevice, o.depthImage, o.depthMemory, 0)); err != nil {
		return fmt.Errorf("vk.BindImageMemory(offscreen depth): %s", err.Error())
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    o.depthImage,
		ViewType: vk.ImageViewType2d,
		Format:   o.depthFormat,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(v.logicalDevice, &ivci, nil, &view)); err != nil {
		return fmt.Errorf("vk.CreateImageView(offscreen depth): %s", err.Error())
	}
	o.depthView = view
	o.cleanup.push("depth.view", func() {
		vk.DestroyImageView(v.logicalDevice, o.depthView, nil)
	})
	return nil
}

// createFramebuffer binds a target's color view together with the
// shared depth view into a framebuffer for the offscreen pass.
func (o *offscreenPass) createFramebuffer(device vk.Device, target *offscreenTarget, name string) error {
	attachments := []vk.ImageView{
		target.view,
		o.depthView,
	}
	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      o.renderPass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           o.width,
		Height:          o.height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if err := vk.Error(vk.CreateFramebuffer(device, &fci, nil, &framebuffer)); err != nil {
		return fmt.Errorf("vk.CreateFramebuffer(%s): %s", name, err.Error())
	}
	target.framebuffer = framebuffer
	o.cleanup.push(name+".framebuffer", func() {
		vk.DestroyFramebuffer(device, target.framebuffer, nil)
	})
	return nil
}

// destroy releases every resource the pass allocated, in reverse
// creation order. Safe to call on a partially constructed pass.
func (o *offscreenPass) destroy() {
	o.cleanup.run()
}
