// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"unsafe"

	vk "github.com/devblok/vulkan"
	"github.com/lmittmann/ppm"
)

// Screenshot copies the most recently presented swapchain image
// into a host visible linear image and writes it out as PPM.
func (v *Vulkan) Screenshot(path string) error {
	v.frameLock.Lock()
	defer v.frameLock.Unlock()

	vk.DeviceWaitIdle(v.logicalDevice)

	source := v.swapchainImages[v.imageIndex]
	width, height := v.currentSurfaceWidth, v.currentSurfaceHeight

	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.FormatR8g8b8a8Unorm,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingLinear,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var copyImage vk.Image
	if err := vk.Error(vk.CreateImage(v.logicalDevice, &ici, nil, &copyImage)); err != nil {
		return errors.New("vk.CreateImage(screenshot): " + err.Error())
	}
	defer vk.DestroyImage(v.logicalDevice, copyImage, nil)

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(v.logicalDevice, copyImage, &memoryRequirements)
	memoryRequirements.Deref()

	var copyMemory vk.DeviceMemory
	if err := v.allocateMemory(&copyMemory, memoryRequirements.Size, memoryRequirements.MemoryTypeBits, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit); err != nil {
		return err
	}
	defer vk.FreeMemory(v.logicalDevice, copyMemory, nil)

	if err := vk.Error(vk.BindImageMemory(v.logicalDevice, copyImage, copyMemory, 0)); err != nil {
		return errors.New("vk.BindImageMemory(screenshot): " + err.Error())
	}

	cmd, err := v.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	subresource := vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}

	barriers := []vk.ImageMemoryBarrier{
		{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               copyImage,
			OldLayout:           vk.ImageLayoutUndefined,
			NewLayout:           vk.ImageLayoutTransferDstOptimal,
			SrcAccessMask:       0,
			DstAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
			SubresourceRange:    subresource,
		},
		{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               source,
			OldLayout:           vk.ImageLayoutPresentSrc,
			NewLayout:           vk.ImageLayoutTransferSrcOptimal,
			SrcAccessMask:       vk.AccessFlags(vk.AccessMemoryReadBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessTransferReadBit),
			SubresourceRange:    subresource,
		},
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, uint32(len(barriers)), barriers)

	region := vk.ImageCopy{
		SrcSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		DstSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
	}
	vk.CmdCopyImage(cmd,
		source, vk.ImageLayoutTransferSrcOptimal,
		copyImage, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageCopy{region})

	barriers = []vk.ImageMemoryBarrier{
		{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               copyImage,
			OldLayout:           vk.ImageLayoutTransferDstOptimal,
			NewLayout:           vk.ImageLayoutGeneral,
			SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessMemoryReadBit),
			SubresourceRange:    subresource,
		},
		{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               source,
			OldLayout:           vk.ImageLayoutTransferSrcOptimal,
			NewLayout:           vk.ImageLayoutPresentSrc,
			SrcAccessMask:       vk.AccessFlags(vk.AccessTransferReadBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessMemoryReadBit),
			SubresourceRange:    subresource,
		},
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, uint32(len(barriers)), barriers)

	if err := v.endSingleTimeCommands(cmd); err != nil {
		return err
	}

	var layout vk.SubresourceLayout
	vk.GetImageSubresourceLayout(v.logicalDevice, copyImage, &vk.ImageSubresource{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	}, &layout)
	layout.Deref()

	var mappedMemory unsafe.Pointer
	if err := vk.Error(vk.MapMemory(v.logicalDevice, copyMemory, 0, memoryRequirements.Size, 0, &mappedMemory)); err != nil {
		return errors.New("vk.MapMemory(screenshot): " + err.Error())
	}
	defer vk.UnmapMemory(v.logicalDevice, copyMemory)

	size := int(layout.Offset) + int(layout.RowPitch)*int(height)
	pixels := *(*[]uint8)(unsafe.Pointer(&sliceHeader{
		Data: uintptr(mappedMemory),
		Cap:  size,
		Len:  size,
	}))

	// The swapchain format is usually BGRA, swizzle while reading.
	swizzle := swapchainFormatIsBGR(v.imageFormat)

	img := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	for y := 0; y < int(height); y++ {
		row := pixels[int(layout.Offset)+y*int(layout.RowPitch):]
		for x := 0; x < int(width); x++ {
			r, g, b := row[x*4], row[x*4+1], row[x*4+2]
			if swizzle {
				r, b = b, r
			}
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("screenshot: %s", err.Error())
	}
	defer file.Close()

	if err := ppm.Encode(file, img); err != nil {
		return fmt.Errorf("ppm.Encode(): %s", err.Error())
	}
	return nil
}

func swapchainFormatIsBGR(format vk.Format) bool {
	switch format {
	case vk.FormatB8g8r8a8Unorm, vk.FormatB8g8r8a8Srgb, vk.FormatB8g8r8a8Snorm:
		return true
	}
	return false
}
