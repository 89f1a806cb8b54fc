package render

import (
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// Swapchain wraps the presentation chain together with its image views, a
// depth buffer sized to match, and a lazy framebuffer cache. It owns the
// surface it presents to, including any replacement surface adopted through
// Recreate.
type Swapchain struct {
	ctx   *Context
	alloc *Allocator

	extension khr_swapchain.ExtensionDriver
	surface   khr_surface.Surface

	handle khr_swapchain.Swapchain
	images []core1_0.Image
	views  []core1_0.ImageView
	format core1_0.Format
	extent core1_0.Extent2D

	depth Image

	framebuffers framebufferCache
}

// NewSwapchain builds a swapchain over the context's surface. fallbackExtent
// is only consulted when the surface does not report a fixed extent.
func NewSwapchain(ctx *Context, alloc *Allocator, fallbackExtent core1_0.Extent2D) (*Swapchain, error) {
	s := &Swapchain{
		ctx:       ctx,
		alloc:     alloc,
		extension: khr_swapchain.CreateExtensionDriverFromCoreDriver(ctx.deviceDriver),
		surface:   ctx.Surface(),
	}
	s.framebuffers.build = s.buildFramebuffers
	s.framebuffers.destroy = s.destroyFramebuffers

	err := s.create(khr_swapchain.Swapchain{}, fallbackExtent)
	if err != nil {
		s.Destroy()
		return nil, err
	}

	return s, nil
}

func (s *Swapchain) create(oldSwapchain khr_swapchain.Swapchain, fallbackExtent core1_0.Extent2D) error {
	capabilities := s.ctx.device.Capabilities
	extent := resolveExtent(capabilities, fallbackExtent)
	imageCount := selectImageCount(capabilities)

	swapchain, _, err := s.extension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: s.surface,

		MinImageCount:    imageCount,
		ImageFormat:      s.ctx.device.SurfaceFormat.Format,
		ImageColorSpace:  s.ctx.device.SurfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode: core1_0.SharingModeExclusive,

		PreTransform:   capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    s.ctx.device.PresentMode,
		Clipped:        true,

		OldSwapchain: oldSwapchain,
	})
	if err != nil {
		return err
	}

	s.handle = swapchain
	s.extent = extent
	s.format = s.ctx.device.SurfaceFormat.Format

	s.images, _, err = s.extension.GetSwapchainImages(s.handle)
	if err != nil {
		return err
	}

	for _, image := range s.images {
		view, _, err := s.ctx.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   s.format,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err != nil {
			return err
		}

		s.views = append(s.views, view)
	}

	s.depth, err = s.alloc.CreateImage(extent.Width, extent.Height, s.ctx.device.DepthFormat,
		core1_0.ImageTilingOptimal, core1_0.ImageUsageDepthStencilAttachment,
		core1_0.MemoryPropertyDeviceLocal, core1_0.ImageAspectDepth)
	return err
}

func (s *Swapchain) Extent() core1_0.Extent2D {
	return s.extent
}

func (s *Swapchain) Format() core1_0.Format {
	return s.format
}

func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

// AcquireNextImage waits for the next presentable image. outdated is true
// when the swapchain no longer matches the surface and must be recreated
// before any image can be acquired.
func (s *Swapchain) AcquireNextImage(semaphore core1_0.Semaphore) (imageIndex int, outdated bool, err error) {
	imageIndex, res, err := s.extension.AcquireNextImage(s.handle, common.NoTimeout, &semaphore, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return 0, true, nil
	}

	return imageIndex, false, err
}

// Present queues the image for presentation. outdated is true when the
// presented swapchain is stale or suboptimal and should be recreated.
func (s *Swapchain) Present(queue core1_0.Queue, waitSemaphore core1_0.Semaphore, imageIndex int) (outdated bool, err error) {
	res, err := s.extension.QueuePresent(queue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{waitSemaphore},
		Swapchains:     []khr_swapchain.Swapchain{s.handle},
		ImageIndices:   []int{imageIndex},
	})
	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal {
		return true, nil
	}

	return false, err
}

// Recreate rebuilds the swapchain after a resize or surface loss. When
// newSurface is non-nil the old surface is destroyed and the replacement
// adopted; otherwise the old swapchain is passed as a reuse hint. The caller
// must ensure the device is idle.
func (s *Swapchain) Recreate(newSurface *khr_surface.Surface, fallbackExtent core1_0.Extent2D) error {
	s.releaseImages()

	oldSwapchain := s.handle
	if newSurface != nil {
		// A swapchain cannot be reused across surfaces.
		s.extension.DestroySwapchain(oldSwapchain, nil)
		oldSwapchain = khr_swapchain.Swapchain{}

		s.ctx.surfaceExtension.DestroySurface(s.surface, nil)
		s.surface = *newSurface
		s.ctx.surface = *newSurface
	}

	err := s.ctx.RefreshSurfaceCapabilities(s.surface)
	if err != nil {
		return err
	}

	err = s.create(oldSwapchain, fallbackExtent)
	if oldSwapchain.Initialized() {
		s.extension.DestroySwapchain(oldSwapchain, nil)
	}
	return err
}

// Framebuffers returns one framebuffer per swapchain image for the given
// render pass, building them on first use after each recreation.
func (s *Swapchain) Framebuffers(renderPass core1_0.RenderPass) ([]core1_0.Framebuffer, error) {
	return s.framebuffers.get(renderPass)
}

func (s *Swapchain) buildFramebuffers(renderPass core1_0.RenderPass) ([]core1_0.Framebuffer, error) {
	var framebuffers []core1_0.Framebuffer
	for _, view := range s.views {
		framebuffer, _, err := s.ctx.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: renderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				view,
				s.depth.View,
			},
			Width:  s.extent.Width,
			Height: s.extent.Height,
		})
		if err != nil {
			s.destroyFramebuffers(framebuffers)
			return nil, err
		}

		framebuffers = append(framebuffers, framebuffer)
	}

	return framebuffers, nil
}

func (s *Swapchain) destroyFramebuffers(framebuffers []core1_0.Framebuffer) {
	for _, framebuffer := range framebuffers {
		s.ctx.deviceDriver.DestroyFramebuffer(framebuffer, nil)
	}
}

func (s *Swapchain) releaseImages() {
	s.framebuffers.invalidate()

	for _, view := range s.views {
		s.ctx.deviceDriver.DestroyImageView(view, nil)
	}
	s.views = nil
	s.images = nil

	s.alloc.DestroyImage(s.depth)
	s.depth = Image{}
}

func (s *Swapchain) Destroy() {
	s.releaseImages()

	if s.handle.Initialized() {
		s.extension.DestroySwapchain(s.handle, nil)
		s.handle = khr_swapchain.Swapchain{}
	}

	if s.surface.Initialized() {
		s.ctx.surfaceExtension.DestroySurface(s.surface, nil)
		s.surface = khr_surface.Surface{}
		s.ctx.surface = khr_surface.Surface{}
	}
}

// framebufferCache rebuilds framebuffers lazily after invalidation. The
// build and destroy funcs are injected so the cache itself stays free of
// device state.
type framebufferCache struct {
	build   func(renderPass core1_0.RenderPass) ([]core1_0.Framebuffer, error)
	destroy func([]core1_0.Framebuffer)

	renderPass   core1_0.RenderPass
	framebuffers []core1_0.Framebuffer
	valid        bool
}

func (c *framebufferCache) get(renderPass core1_0.RenderPass) ([]core1_0.Framebuffer, error) {
	if c.valid && c.renderPass == renderPass {
		return c.framebuffers, nil
	}

	c.invalidate()

	framebuffers, err := c.build(renderPass)
	if err != nil {
		return nil, err
	}

	c.renderPass = renderPass
	c.framebuffers = framebuffers
	c.valid = true
	return framebuffers, nil
}

func (c *framebufferCache) invalidate() {
	if !c.valid {
		return
	}

	c.destroy(c.framebuffers)
	c.framebuffers = nil
	c.renderPass = core1_0.RenderPass{}
	c.valid = false
}

// selectImageCount requests one image over the surface minimum so a frame
// can be recorded while the compositor holds the previous one, clamped to
// the surface maximum when one is reported.
func selectImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// resolveExtent returns the surface's fixed extent when it reports one, and
// otherwise clamps the fallback extent into the supported range.
func resolveExtent(capabilities *khr_surface.SurfaceCapabilities, fallback core1_0.Extent2D) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width := fallback.Width
	height := fallback.Height

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return core1_0.Extent2D{Width: width, Height: height}
}
