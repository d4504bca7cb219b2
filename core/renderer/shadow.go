// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"

	vk "github.com/devblok/vulkan"

	"github.com/devblok/mirage/core/cascade"
)

// shadowCascade is the render target side of one cascade: a view
// restricted to a single layer of the shadow map array and the
// framebuffer built on it. Shaders never sample these, they sample
// the full array view owned by shadowPass.
type shadowCascade struct {
	view        vk.ImageView
	framebuffer vk.Framebuffer
}

// shadowPass owns the layered depth image the cascades render into
// and the single array view every material samples from.
type shadowPass struct {
	dim uint32

	renderPass vk.RenderPass
	sampler    vk.Sampler

	image     vk.Image
	memory    vk.DeviceMemory
	arrayView vk.ImageView

	depthFormat vk.Format
	cascades    [cascade.Count]shadowCascade

	descriptor vk.DescriptorImageInfo

	cleanup cleanupStack
}

func (v *Vulkan) prepareShadowMap() error {
	pass := &shadowPass{
		dim:         ShadowMapDim,
		depthFormat: v.depthImageFormat,
	}

	if err := pass.createRenderPass(v.logicalDevice); err != nil {
		pass.destroy()
		return err
	}
	if err := pass.createImage(v); err != nil {
		pass.destroy()
		return err
	}
	if err := pass.createSampler(v.logicalDevice); err != nil {
		pass.destroy()
		return err
	}
	if err := pass.createCascades(v.logicalDevice); err != nil {
		pass.destroy()
		return err
	}

	v.shadow = pass
	return nil
}

func (s *shadowPass) createRenderPass(device vk.Device) error {
	attachment := vk.AttachmentDescription{
		Format:         s.depthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilReadOnlyOptimal,
	}

	depthReference := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    0,
		PDepthStencilAttachment: &depthReference,
	}

	// Sampling of the previous frame's map happens in the fragment
	// stage, depth writes happen in the fragment test stages. Order
	// writes after the reads retire and expose them back to the
	// samplers once the pass ends.
	dependencies := []vk.SubpassDependency{
		{
			SrcSubpass:      vk.SubpassExternal,
			DstSubpass:      0,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessShaderReadBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
		{
			SrcSubpass:      0,
			DstSubpass:      vk.SubpassExternal,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessShaderReadBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{attachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var renderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(device, &rpci, nil, &renderPass)); err != nil {
		return fmt.Errorf("vk.CreateRenderPass(shadow): %s", err.Error())
	}
	s.renderPass = renderPass
	s.cleanup.push("renderPass", func() {
		vk.DestroyRenderPass(device, s.renderPass, nil)
	})
	return nil
}

// createImage allocates the shadow map as a single depth image with
// one array layer per cascade, plus the full array view used as the
// sampling descriptor.
func (s *shadowPass) createImage(v *Vulkan) error {
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    s.depthFormat,
		Extent: vk.Extent3D{
			Width:  s.dim,
			Height: s.dim,
			Depth:  1,
		},
		MipLevels:   1,
		ArrayLayers: cascade.Count,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit),
	}

	var image vk.Image
	if err := vk.Error(vk.CreateImage(v.logicalDevice, &ici, nil, &image)); err != nil {
		return fmt.Errorf("vk.CreateImage(shadow): %s", err.Error())
	}
	s.image = image
	s.cleanup.push("image", func() {
		vk.DestroyImage(v.logicalDevice, s.image, nil)
	})

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(v.logicalDevice, s.image, &memoryRequirements)
	memoryRequirements.Deref()

	var memory vk.DeviceMemory
	if err := v.allocateMemory(&memory, memoryRequirements.Size, memoryRequirements.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit); err != nil {
		return err
	}
	s.memory = memory
	s.cleanup.push("memory", func() {
		vk.FreeMemory(v.logicalDevice, s.memory, nil)
	})

	if err := vk.Error(vk.BindImageMemory(v.logicalDevice, s.image, s.memory, 0)); err != nil {
		return fmt.Errorf("vk.BindImageMemory(shadow): %s", err.Error())
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    s.image,
		ViewType: vk.ImageViewType2dArray,
		Format:   s.depthFormat,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     cascade.Count,
		},
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(v.logicalDevice, &ivci, nil, &view)); err != nil {
		return fmt.Errorf("vk.CreateImageView(shadow array): %s", err.Error())
	}
	s.arrayView = view
	s.cleanup.push("arrayView", func() {
		vk.DestroyImageView(v.logicalDevice, s.arrayView, nil)
	})
	return nil
}

func (s *shadowPass) createSampler(device vk.Device) error {
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
		return fmt.Errorf("vk.CreateSampler(shadow): %s", err.Error())
	}
	s.sampler = sampler
	s.cleanup.push("sampler", func() {
		vk.DestroySampler(device, s.sampler, nil)
	})

	s.descriptor = vk.DescriptorImageInfo{
		Sampler:     s.sampler,
		ImageView:   s.arrayView,
		ImageLayout: vk.ImageLayoutDepthStencilReadOnlyOptimal,
	}
	return nil
}

// createCascades builds one single-layer view and framebuffer per
// cascade, so each depth pass renders into its own layer of the
// shared image.
func (s *shadowPass) createCascades(device vk.Device) error {
	for idx := range s.cascades {
		layer := uint32(idx)

		ivci := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    s.image,
			ViewType: vk.ImageViewType2dArray,
			Format:   s.depthFormat,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectDepthBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: layer,
				LayerCount:     1,
			},
		}

		var view vk.ImageView
		if err := vk.Error(vk.CreateImageView(device, &ivci, nil, &view)); err != nil {
			return fmt.Errorf("vk.CreateImageView(cascade %d): %s", idx, err.Error())
		}
		s.cascades[idx].view = view
		s.cleanup.push(fmt.Sprintf("cascade[%d].view", idx), func() {
			vk.DestroyImageView(device, view, nil)
		})

		fci := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      s.renderPass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{view},
			Width:           s.dim,
			Height:          s.dim,
			Layers:          1,
		}

		var framebuffer vk.Framebuffer
		if err := vk.Error(vk.CreateFramebuffer(device, &fci, nil, &framebuffer)); err != nil {
			return fmt.Errorf("vk.CreateFramebuffer(cascade %d): %s", idx, err.Error())
		}
		s.cascades[idx].framebuffer = framebuffer
		s.cleanup.push(fmt.Sprintf("cascade[%d].framebuffer", idx), func() {
			vk.DestroyFramebuffer(device, framebuffer, nil)
		})
	}
	return nil
}

func (s *shadowPass) destroy() {
	s.cleanup.run()
}
