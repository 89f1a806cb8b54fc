package render

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Buffer pairs a buffer handle with its backing memory allocation.
type Buffer struct {
	Handle core1_0.Buffer
	Memory core1_0.DeviceMemory
}

// Image pairs an image handle with its backing memory and default view.
type Image struct {
	Handle core1_0.Image
	Memory core1_0.DeviceMemory
	View   core1_0.ImageView
}

// Allocator creates device resources and runs staged uploads over the
// graphics queue. Uploads block until the transfer has completed, so the
// caller may free its CPU copy as soon as the method returns.
type Allocator struct {
	ctx *Context
}

func NewAllocator(ctx *Context) *Allocator {
	return &Allocator{ctx: ctx}
}

func (a *Allocator) CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (Buffer, error) {
	buffer, _, err := a.ctx.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return Buffer{}, err
	}

	memRequirements := a.ctx.deviceDriver.GetBufferMemoryRequirements(buffer)
	memoryTypeIndex, err := findMemoryType(a.ctx.device.MemoryProperties, memRequirements.MemoryTypeBits, properties)
	if err != nil {
		a.ctx.deviceDriver.DestroyBuffer(buffer, nil)
		return Buffer{}, err
	}

	memory, _, err := a.ctx.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		a.ctx.deviceDriver.DestroyBuffer(buffer, nil)
		return Buffer{}, err
	}

	_, err = a.ctx.deviceDriver.BindBufferMemory(buffer, memory, 0)
	if err != nil {
		a.ctx.deviceDriver.DestroyBuffer(buffer, nil)
		a.ctx.deviceDriver.FreeMemory(memory, nil)
		return Buffer{}, err
	}

	return Buffer{Handle: buffer, Memory: memory}, nil
}

// UploadBuffer creates a device-local buffer and fills it with data through
// a throwaway staging buffer.
func (a *Allocator) UploadBuffer(data any, usage core1_0.BufferUsageFlags) (Buffer, error) {
	size := binary.Size(data)
	if size <= 0 {
		return Buffer{}, errors.Errorf("uploadBuffer: data has no fixed binary size")
	}

	staging, err := a.CreateBuffer(size, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return Buffer{}, err
	}
	defer a.DestroyBuffer(staging)

	err = a.writeMemory(staging.Memory, 0, data)
	if err != nil {
		return Buffer{}, err
	}

	buffer, err := a.CreateBuffer(size, core1_0.BufferUsageTransferDst|usage, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return Buffer{}, err
	}

	err = a.copyBuffer(staging.Handle, buffer.Handle, size)
	if err != nil {
		a.DestroyBuffer(buffer)
		return Buffer{}, err
	}

	return buffer, nil
}

func (a *Allocator) CreateImage(width, height int, format core1_0.Format, tiling core1_0.ImageTiling, usage core1_0.ImageUsageFlags, properties core1_0.MemoryPropertyFlags, aspect core1_0.ImageAspectFlags) (Image, error) {
	image, _, err := a.ctx.deviceDriver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return Image{}, err
	}

	memRequirements := a.ctx.deviceDriver.GetImageMemoryRequirements(image)
	memoryTypeIndex, err := findMemoryType(a.ctx.device.MemoryProperties, memRequirements.MemoryTypeBits, properties)
	if err != nil {
		a.ctx.deviceDriver.DestroyImage(image, nil)
		return Image{}, err
	}

	memory, _, err := a.ctx.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		a.ctx.deviceDriver.DestroyImage(image, nil)
		return Image{}, err
	}

	_, err = a.ctx.deviceDriver.BindImageMemory(image, memory, 0)
	if err != nil {
		a.ctx.deviceDriver.DestroyImage(image, nil)
		a.ctx.deviceDriver.FreeMemory(memory, nil)
		return Image{}, err
	}

	view, _, err := a.ctx.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		a.ctx.deviceDriver.DestroyImage(image, nil)
		a.ctx.deviceDriver.FreeMemory(memory, nil)
		return Image{}, err
	}

	return Image{Handle: image, Memory: memory, View: view}, nil
}

// UploadImage creates a sampled device-local image from RGBA pixel data and
// leaves it in the shader-read-only layout.
func (a *Allocator) UploadImage(pixels []byte, width, height int, format core1_0.Format) (Image, error) {
	staging, err := a.CreateBuffer(len(pixels), core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return Image{}, err
	}
	defer a.DestroyBuffer(staging)

	err = a.writeMemory(staging.Memory, 0, pixels)
	if err != nil {
		return Image{}, err
	}

	image, err := a.CreateImage(width, height, format, core1_0.ImageTilingOptimal,
		core1_0.ImageUsageTransferDst|core1_0.ImageUsageSampled,
		core1_0.MemoryPropertyDeviceLocal, core1_0.ImageAspectColor)
	if err != nil {
		return Image{}, err
	}

	err = a.TransitionImageLayout(image.Handle, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal)
	if err != nil {
		a.DestroyImage(image)
		return Image{}, err
	}

	err = a.copyBufferToImage(staging.Handle, image.Handle, width, height)
	if err != nil {
		a.DestroyImage(image)
		return Image{}, err
	}

	err = a.TransitionImageLayout(image.Handle, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		a.DestroyImage(image)
		return Image{}, err
	}

	return image, nil
}

func (a *Allocator) TransitionImageLayout(image core1_0.Image, oldLayout, newLayout core1_0.ImageLayout) error {
	masks, err := transitionMasks(oldLayout, newLayout)
	if err != nil {
		return err
	}

	buffer, err := a.beginOneTime()
	if err != nil {
		return err
	}

	err = a.ctx.deviceDriver.CmdPipelineBarrier(buffer, masks.SrcStage, masks.DstStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			SrcAccessMask: masks.SrcAccess,
			DstAccessMask: masks.DstAccess,
		},
	})
	if err != nil {
		return err
	}

	return a.endOneTime(buffer)
}

func (a *Allocator) DestroyBuffer(buffer Buffer) {
	if buffer.Handle.Initialized() {
		a.ctx.deviceDriver.DestroyBuffer(buffer.Handle, nil)
	}
	if buffer.Memory.Initialized() {
		a.ctx.deviceDriver.FreeMemory(buffer.Memory, nil)
	}
}

func (a *Allocator) DestroyImage(image Image) {
	if image.View.Initialized() {
		a.ctx.deviceDriver.DestroyImageView(image.View, nil)
	}
	if image.Handle.Initialized() {
		a.ctx.deviceDriver.DestroyImage(image.Handle, nil)
	}
	if image.Memory.Initialized() {
		a.ctx.deviceDriver.FreeMemory(image.Memory, nil)
	}
}

func (a *Allocator) writeMemory(memory core1_0.DeviceMemory, offset int, data any) error {
	size := binary.Size(data)

	memoryPtr, _, err := a.ctx.deviceDriver.MapMemory(memory, offset, size, 0)
	if err != nil {
		return err
	}
	defer a.ctx.deviceDriver.UnmapMemory(memory)

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), size)

	buf := &bytes.Buffer{}
	err = binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return err
	}

	copy(dataBuffer, buf.Bytes())
	return nil
}

func (a *Allocator) copyBuffer(src core1_0.Buffer, dst core1_0.Buffer, size int) error {
	buffer, err := a.beginOneTime()
	if err != nil {
		return err
	}

	err = a.ctx.deviceDriver.CmdCopyBuffer(buffer, src, dst,
		core1_0.BufferCopy{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	)
	if err != nil {
		return err
	}

	return a.endOneTime(buffer)
}

func (a *Allocator) copyBufferToImage(buffer core1_0.Buffer, image core1_0.Image, width, height int) error {
	cmdBuffer, err := a.beginOneTime()
	if err != nil {
		return err
	}

	err = a.ctx.deviceDriver.CmdCopyBufferToImage(cmdBuffer, buffer, image, core1_0.ImageLayoutTransferDstOptimal,
		core1_0.BufferImageCopy{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,

			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		},
	)
	if err != nil {
		return err
	}

	return a.endOneTime(cmdBuffer)
}

func (a *Allocator) beginOneTime() (core1_0.CommandBuffer, error) {
	buffers, _, err := a.ctx.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        a.ctx.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return core1_0.CommandBuffer{}, err
	}

	buffer := buffers[0]
	_, err = a.ctx.deviceDriver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	return buffer, err
}

// endOneTime submits the buffer and waits for the queue to drain before
// freeing it. Uploads happen at load time, so the stall is acceptable.
func (a *Allocator) endOneTime(buffer core1_0.CommandBuffer) error {
	_, err := a.ctx.deviceDriver.EndCommandBuffer(buffer)
	if err != nil {
		return err
	}

	_, err = a.ctx.deviceDriver.QueueSubmit(a.ctx.graphicsQueue, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	)
	if err != nil {
		return err
	}

	_, err = a.ctx.deviceDriver.QueueWaitIdle(a.ctx.graphicsQueue)
	if err != nil {
		return err
	}

	a.ctx.deviceDriver.FreeCommandBuffers(buffer)
	return nil
}

type layoutTransition struct {
	SrcAccess core1_0.AccessFlags
	DstAccess core1_0.AccessFlags
	SrcStage  core1_0.PipelineStageFlags
	DstStage  core1_0.PipelineStageFlags
}

func transitionMasks(oldLayout, newLayout core1_0.ImageLayout) (layoutTransition, error) {
	if oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal {
		return layoutTransition{
			SrcAccess: 0,
			DstAccess: core1_0.AccessTransferWrite,
			SrcStage:  core1_0.PipelineStageTopOfPipe,
			DstStage:  core1_0.PipelineStageTransfer,
		}, nil
	}

	if oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal {
		return layoutTransition{
			SrcAccess: core1_0.AccessTransferWrite,
			DstAccess: core1_0.AccessShaderRead,
			SrcStage:  core1_0.PipelineStageTransfer,
			DstStage:  core1_0.PipelineStageFragmentShader,
		}, nil
	}

	return layoutTransition{}, errors.Errorf("unsupported layout transition: %s -> %s", oldLayout, newLayout)
}

func findMemoryType(memProperties *core1_0.PhysicalDeviceMemoryProperties, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Errorf("failed to find a suitable memory type")
}
