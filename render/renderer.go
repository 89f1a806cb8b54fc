package render

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkngmath "github.com/vkngwrapper/math"

	"github.com/argus-engine/argus/asset"
)

const (
	DefaultFramesInFlight = 2
	DefaultMaxTextures    = 16
)

// Drawable asks for one mesh to be drawn with the given model transform.
// Every submesh of the mesh is drawn with its own texture.
type Drawable struct {
	Mesh      asset.ID
	Transform vkngmath.Mat4x4[float32]
}

type RendererConfig struct {
	VertexShader   *asset.Shader
	FragmentShader *asset.Shader

	Assets *asset.Library

	// InitialExtent seeds the swapchain size when the surface does not
	// report a fixed extent.
	InitialExtent core1_0.Extent2D

	// FramesInFlight caps how many frames may be recorded ahead of the
	// GPU. Zero selects DefaultFramesInFlight.
	FramesInFlight int

	// MaxTextures bounds the number of GPU-resident textures. Zero
	// selects DefaultMaxTextures.
	MaxTextures int
}

// Renderer drives the per-frame loop: acquire an image, record draws,
// submit, present. Assets must be made resident through UseMeshes and
// UseTextures before they can be drawn.
type Renderer struct {
	ctx       *Context
	alloc     *Allocator
	syncPool  *SyncPool
	swapchain *Swapchain

	descriptors *descriptorAllocator
	pipeline    *pipeline

	assets *asset.Library

	meshes      map[asset.ID]meshBuffers
	textures    map[asset.ID]gpuTexture
	textureSets *textureSetCache

	commandBuffers []core1_0.CommandBuffer
	imageAvailable []core1_0.Semaphore
	renderFinished []core1_0.Semaphore
	inFlight       []core1_0.Fence

	framesInFlight int
	currentFrame   int

	resizePending  bool
	pendingExtent  core1_0.Extent2D
	pendingSurface *khr_surface.Surface
}

func NewRenderer(ctx *Context, config RendererConfig) (*Renderer, error) {
	if config.VertexShader == nil || config.FragmentShader == nil {
		return nil, errors.Errorf("renderer: both vertex and fragment shaders are required")
	}
	if config.Assets == nil {
		return nil, errors.Errorf("renderer: an asset library is required")
	}

	framesInFlight := config.FramesInFlight
	if framesInFlight == 0 {
		framesInFlight = DefaultFramesInFlight
	}
	maxTextures := config.MaxTextures
	if maxTextures == 0 {
		maxTextures = DefaultMaxTextures
	}

	r := &Renderer{
		ctx:      ctx,
		alloc:    NewAllocator(ctx),
		syncPool: NewSyncPool(ctx),

		assets: config.Assets,

		meshes:   make(map[asset.ID]meshBuffers),
		textures: make(map[asset.ID]gpuTexture),

		framesInFlight: framesInFlight,
		pendingExtent:  config.InitialExtent,
	}

	var err error
	r.swapchain, err = NewSwapchain(ctx, r.alloc, config.InitialExtent)
	if err != nil {
		return nil, err
	}

	r.descriptors, err = newDescriptorAllocator(ctx, maxTextures)
	if err != nil {
		r.Destroy()
		return nil, err
	}
	r.textureSets = &textureSetCache{
		allocate: r.descriptors.allocateTextureSet,
		free:     r.descriptors.freeSets,
		sets:     make(map[asset.ID]core1_0.DescriptorSet),
	}

	r.pipeline, err = newPipeline(ctx, r.descriptors.layout, config.VertexShader, config.FragmentShader, r.swapchain.Format(), r.swapchain.Extent())
	if err != nil {
		r.Destroy()
		return nil, err
	}

	err = r.createFrameResources()
	if err != nil {
		r.Destroy()
		return nil, err
	}

	return r, nil
}

func (r *Renderer) createFrameResources() error {
	buffers, _, err := r.ctx.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.ctx.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: r.framesInFlight,
	})
	if err != nil {
		return err
	}
	r.commandBuffers = buffers

	for i := 0; i < r.framesInFlight; i++ {
		imageAvailable, err := r.syncPool.Semaphore()
		if err != nil {
			return err
		}
		r.imageAvailable = append(r.imageAvailable, imageAvailable)

		renderFinished, err := r.syncPool.Semaphore()
		if err != nil {
			return err
		}
		r.renderFinished = append(r.renderFinished, renderFinished)

		fence, err := r.syncPool.Fence(true)
		if err != nil {
			return err
		}
		r.inFlight = append(r.inFlight, fence)
	}

	return nil
}

// UseTextures uploads any texture in ids that is not yet GPU-resident and
// binds a descriptor set for it. Sets already bound are never rebound, so
// textures may become resident mid-frame while earlier frames still
// execute against their sets.
func (r *Renderer) UseTextures(ids []asset.ID) error {
	for _, id := range ids {
		_, resident := r.textures[id]
		if resident {
			continue
		}

		texture, err := r.assets.Texture(id)
		if err != nil {
			return err
		}

		uploaded, err := uploadTexture(r.ctx, r.alloc, texture)
		if err != nil {
			return err
		}

		r.textures[id] = uploaded

		err = r.textureSets.bind(id, uploaded)
		if err != nil {
			return err
		}
	}

	return nil
}

// UseMeshes uploads any mesh in ids that is not yet GPU-resident.
func (r *Renderer) UseMeshes(ids []asset.ID) error {
	for _, id := range ids {
		_, resident := r.meshes[id]
		if resident {
			continue
		}

		mesh, err := r.assets.Mesh(id)
		if err != nil {
			return err
		}

		uploaded, err := uploadMesh(r.alloc, mesh)
		if err != nil {
			return err
		}

		r.meshes[id] = uploaded
	}

	return nil
}

// HandleResize records a new target extent. The swapchain is rebuilt at the
// start of the next frame; repeated resizes before then coalesce into one
// rebuild.
func (r *Renderer) HandleResize(extent core1_0.Extent2D) {
	r.resizePending = true
	r.pendingExtent = extent
}

// HandleSurfaceLost replaces the presentation surface. The platform layer
// calls this when the old surface becomes unusable, such as when a mobile
// app returns to the foreground.
func (r *Renderer) HandleSurfaceLost() error {
	surface, err := r.ctx.CreateSurface()
	if err != nil {
		return err
	}

	r.pendingSurface = &surface
	r.resizePending = true
	return nil
}

// DrawFrame renders one frame of drawables viewed through camera. A frame
// may be skipped without error while the swapchain is being rebuilt.
func (r *Renderer) DrawFrame(camera *vkngmath.Mat4x4[float32], drawables []Drawable) error {
	if skipFrameForRebuild(r.resizePending) {
		return r.recreateSwapchain()
	}

	fence := r.inFlight[r.currentFrame]
	_, err := r.ctx.deviceDriver.WaitForFences(true, common.NoTimeout, fence)
	if err != nil {
		return err
	}

	imageIndex, outdated, err := r.swapchain.AcquireNextImage(r.imageAvailable[r.currentFrame])
	if err != nil {
		return err
	}
	if outdated {
		r.flagRebuild()
		return nil
	}

	err = r.ensureResident(drawables)
	if err != nil {
		return err
	}

	plan, err := buildDrawPlan(camera, drawables, r.assets, r.meshes, r.textureSets.sets)
	if err != nil {
		return err
	}

	_, err = r.ctx.deviceDriver.ResetFences(fence)
	if err != nil {
		return err
	}

	commandBuffer := r.commandBuffers[r.currentFrame]
	err = r.recordFrame(commandBuffer, imageIndex, plan)
	if err != nil {
		return err
	}

	_, err = r.ctx.deviceDriver.QueueSubmit(r.ctx.graphicsQueue, &fence,
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{r.imageAvailable[r.currentFrame]},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{commandBuffer},
			SignalSemaphores: []core1_0.Semaphore{r.renderFinished[r.currentFrame]},
		},
	)
	if err != nil {
		return err
	}

	outdated, err = r.swapchain.Present(r.ctx.graphicsQueue, r.renderFinished[r.currentFrame], imageIndex)
	if err != nil {
		return err
	}
	if outdated {
		r.flagRebuild()
	}

	r.currentFrame = nextFrameIndex(r.currentFrame, r.framesInFlight)
	return nil
}

// ensureResident uploads anything the draw list references that is not yet
// on the GPU. Assets missing from the library are reported as errors, not
// skipped.
func (r *Renderer) ensureResident(drawables []Drawable) error {
	for _, drawable := range drawables {
		err := r.UseMeshes([]asset.ID{drawable.Mesh})
		if err != nil {
			return err
		}

		mesh, err := r.assets.Mesh(drawable.Mesh)
		if err != nil {
			return err
		}

		for _, submesh := range mesh.Submeshes {
			err = r.UseTextures([]asset.ID{submesh.Texture})
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func nextFrameIndex(current, framesInFlight int) int {
	return (current + 1) % framesInFlight
}

// skipFrameForRebuild reports whether this tick is spent rebuilding the
// swapchain instead of drawing. Nothing is recorded or submitted against
// the retiring swapchain; the next tick draws with the rebuilt one.
func skipFrameForRebuild(resizePending bool) bool {
	return resizePending
}

// flagRebuild schedules a swapchain rebuild keeping the last window size
// reported through HandleResize. A stale swapchain does not know the new
// size, so its own extent is never echoed back.
func (r *Renderer) flagRebuild() {
	r.resizePending = true
}

func (r *Renderer) recreateSwapchain() error {
	err := r.ctx.WaitIdle()
	if err != nil {
		return err
	}

	err = r.swapchain.Recreate(r.pendingSurface, r.pendingExtent)
	if err != nil {
		return err
	}

	r.resizePending = false
	r.pendingSurface = nil
	return nil
}

func (r *Renderer) recordFrame(commandBuffer core1_0.CommandBuffer, imageIndex int, plan []drawCommand) error {
	framebuffers, err := r.swapchain.Framebuffers(r.pipeline.renderPass)
	if err != nil {
		return err
	}

	_, err = r.ctx.deviceDriver.ResetCommandBuffer(commandBuffer, 0)
	if err != nil {
		return err
	}

	_, err = r.ctx.deviceDriver.BeginCommandBuffer(commandBuffer, core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return err
	}

	extent := r.swapchain.Extent()
	err = r.ctx.deviceDriver.CmdBeginRenderPass(commandBuffer, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  r.pipeline.renderPass,
			Framebuffer: framebuffers[imageIndex],
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat{0, 0, 0, 1},
				core1_0.ClearValueDepthStencil{Depth: 1.0, Stencil: 0},
			},
		})
	if err != nil {
		return err
	}

	r.ctx.deviceDriver.CmdBindPipeline(commandBuffer, core1_0.PipelineBindPointGraphics, r.pipeline.handle)
	r.ctx.deviceDriver.CmdSetViewport(commandBuffer, core1_0.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	r.ctx.deviceDriver.CmdSetScissor(commandBuffer, core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 0, Y: 0},
		Extent: extent,
	})

	for _, draw := range plan {
		r.ctx.deviceDriver.CmdBindVertexBuffers(commandBuffer, 0, []core1_0.Buffer{draw.vertexBuffer}, []int{0})
		r.ctx.deviceDriver.CmdBindIndexBuffer(commandBuffer, draw.indexBuffer, 0, core1_0.IndexTypeUInt16)
		r.ctx.deviceDriver.CmdBindDescriptorSets(commandBuffer, core1_0.PipelineBindPointGraphics, r.pipeline.layout, 0, []core1_0.DescriptorSet{draw.descriptorSet}, nil)

		pushWriter := &bytes.Buffer{}
		err = binary.Write(pushWriter, common.ByteOrder, &draw.pushConstant)
		if err != nil {
			return err
		}

		r.ctx.deviceDriver.CmdPushConstants(commandBuffer, r.pipeline.layout, core1_0.StageVertex, 0, pushWriter.Bytes())
		r.ctx.deviceDriver.CmdDrawIndexed(commandBuffer, draw.indexCount, 1, uint32(draw.firstIndex), 0, 0)
	}

	r.ctx.deviceDriver.CmdEndRenderPass(commandBuffer)

	_, err = r.ctx.deviceDriver.EndCommandBuffer(commandBuffer)
	return err
}

// drawCommand is one submesh draw with everything already resolved, so
// command recording is a straight replay.
type drawCommand struct {
	vertexBuffer  core1_0.Buffer
	indexBuffer   core1_0.Buffer
	descriptorSet core1_0.DescriptorSet

	pushConstant vkngmath.Mat4x4[float32]

	indexCount int
	firstIndex int
}

// buildDrawPlan resolves drawables into submesh draw commands. Every
// referenced mesh must already be resident and every submesh texture must
// have a descriptor set.
func buildDrawPlan(camera *vkngmath.Mat4x4[float32], drawables []Drawable, assets *asset.Library, meshes map[asset.ID]meshBuffers, textureSets map[asset.ID]core1_0.DescriptorSet) ([]drawCommand, error) {
	var plan []drawCommand

	for _, drawable := range drawables {
		mesh, err := assets.Mesh(drawable.Mesh)
		if err != nil {
			return nil, err
		}

		buffers, resident := meshes[drawable.Mesh]
		if !resident {
			return nil, errors.Errorf("draw: mesh %s is not GPU-resident", drawable.Mesh)
		}

		pushConstant := composeTransform(camera, &drawable.Transform)

		for _, submesh := range mesh.Submeshes {
			set, bound := textureSets[submesh.Texture]
			if !bound {
				return nil, errors.Errorf("draw: texture %s of mesh %s is not GPU-resident", submesh.Texture, drawable.Mesh)
			}

			plan = append(plan, drawCommand{
				vertexBuffer:  buffers.vertices.Handle,
				indexBuffer:   buffers.indices.Handle,
				descriptorSet: set,
				pushConstant:  pushConstant,
				indexCount:    submesh.End - submesh.Start,
				firstIndex:    submesh.Start,
			})
		}
	}

	return plan, nil
}

// composeTransform multiplies with the camera on the left so the model
// transform is applied first.
func composeTransform(camera *vkngmath.Mat4x4[float32], model *vkngmath.Mat4x4[float32]) vkngmath.Mat4x4[float32] {
	var result vkngmath.Mat4x4[float32]
	result.SetMultMat4x4(camera, model)
	return result
}

// Destroy waits for the device to go idle and releases every resource the
// renderer owns, including the swapchain and its surface.
func (r *Renderer) Destroy() {
	_ = r.ctx.WaitIdle()

	for id, buffers := range r.meshes {
		buffers.destroy(r.alloc)
		delete(r.meshes, id)
	}

	if r.textureSets != nil {
		r.textureSets.release()
		r.textureSets = nil
	}

	for id, texture := range r.textures {
		texture.destroy(r.ctx, r.alloc)
		delete(r.textures, id)
	}

	if len(r.commandBuffers) > 0 {
		r.ctx.deviceDriver.FreeCommandBuffers(r.commandBuffers...)
		r.commandBuffers = nil
	}

	r.syncPool.DestroyAll()

	if r.pipeline != nil {
		r.pipeline.destroy()
		r.pipeline = nil
	}

	if r.descriptors != nil {
		r.descriptors.destroy()
		r.descriptors = nil
	}

	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
	}
}
