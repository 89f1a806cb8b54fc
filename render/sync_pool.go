package render

import (
	"github.com/vkngwrapper/core/v3/core1_0"
)

// SyncPool hands out semaphores and fences and remembers every one it
// created so they can all be destroyed in a single call.
type SyncPool struct {
	ctx *Context

	semaphores []core1_0.Semaphore
	fences     []core1_0.Fence
}

func NewSyncPool(ctx *Context) *SyncPool {
	return &SyncPool{ctx: ctx}
}

func (p *SyncPool) Semaphore() (core1_0.Semaphore, error) {
	semaphore, _, err := p.ctx.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return core1_0.Semaphore{}, err
	}

	p.semaphores = append(p.semaphores, semaphore)
	return semaphore, nil
}

// Fence creates a fence, optionally in the signaled state so the first wait
// on it returns immediately.
func (p *SyncPool) Fence(signaled bool) (core1_0.Fence, error) {
	createInfo := core1_0.FenceCreateInfo{}
	if signaled {
		createInfo.Flags = core1_0.FenceCreateSignaled
	}

	fence, _, err := p.ctx.deviceDriver.CreateFence(nil, createInfo)
	if err != nil {
		return core1_0.Fence{}, err
	}

	p.fences = append(p.fences, fence)
	return fence, nil
}

func (p *SyncPool) DestroyAll() {
	for _, semaphore := range p.semaphores {
		p.ctx.deviceDriver.DestroySemaphore(semaphore, nil)
	}
	p.semaphores = nil

	for _, fence := range p.fences {
		p.ctx.deviceDriver.DestroyFence(fence, nil)
	}
	p.fences = nil
}
