package render

import (
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/argus-engine/argus/asset"
)

// descriptorAllocator manages the per-texture descriptor sets. Each texture
// gets one set with a single combined image sampler at binding zero. Sets
// are allocated one at a time as textures become resident and stay bound
// until the renderer shuts down.
type descriptorAllocator struct {
	ctx *Context

	layout core1_0.DescriptorSetLayout
	pool   core1_0.DescriptorPool
}

func newDescriptorAllocator(ctx *Context, maxSets int) (*descriptorAllocator, error) {
	layout, _, err := ctx.deviceDriver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         0,
				DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,
				StageFlags:      core1_0.StageFragment,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	pool, _, err := ctx.deviceDriver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		Flags:   core1_0.DescriptorPoolCreateFreeDescriptorSet,
		MaxSets: maxSets,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: maxSets,
			},
		},
	})
	if err != nil {
		ctx.deviceDriver.DestroyDescriptorSetLayout(layout, nil)
		return nil, err
	}

	return &descriptorAllocator{ctx: ctx, layout: layout, pool: pool}, nil
}

func (d *descriptorAllocator) allocateTextureSet(texture gpuTexture) (core1_0.DescriptorSet, error) {
	allocated, _, err := d.ctx.deviceDriver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: d.pool,
		SetLayouts:     []core1_0.DescriptorSetLayout{d.layout},
	})
	if err != nil {
		return core1_0.DescriptorSet{}, err
	}

	set := allocated[0]
	err = d.ctx.deviceDriver.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
		{
			DstSet:          set,
			DstBinding:      0,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

			ImageInfo: []core1_0.DescriptorImageInfo{
				{
					ImageView:   texture.image.View,
					Sampler:     texture.sampler,
					ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
				},
			},
		},
	}, nil)
	if err != nil {
		d.ctx.deviceDriver.FreeDescriptorSets(set)
		return core1_0.DescriptorSet{}, err
	}

	return set, nil
}

func (d *descriptorAllocator) freeSets(sets map[asset.ID]core1_0.DescriptorSet) {
	for _, set := range sets {
		d.ctx.deviceDriver.FreeDescriptorSets(set)
	}
}

func (d *descriptorAllocator) destroy() {
	if d.pool.Initialized() {
		d.ctx.deviceDriver.DestroyDescriptorPool(d.pool, nil)
		d.pool = core1_0.DescriptorPool{}
	}

	if d.layout.Initialized() {
		d.ctx.deviceDriver.DestroyDescriptorSetLayout(d.layout, nil)
		d.layout = core1_0.DescriptorSetLayout{}
	}
}

// textureSetCache maps resident textures to their descriptor sets. Entries
// are only ever added while the renderer runs; an existing set is never
// freed or rebound, so command buffers from frames still in flight keep
// referencing valid sets.
type textureSetCache struct {
	allocate func(texture gpuTexture) (core1_0.DescriptorSet, error)
	free     func(sets map[asset.ID]core1_0.DescriptorSet)

	sets map[asset.ID]core1_0.DescriptorSet
}

func (c *textureSetCache) bind(id asset.ID, texture gpuTexture) error {
	_, bound := c.sets[id]
	if bound {
		return nil
	}

	set, err := c.allocate(texture)
	if err != nil {
		return err
	}

	c.sets[id] = set
	return nil
}

func (c *textureSetCache) release() {
	c.free(c.sets)
	c.sets = make(map[asset.ID]core1_0.DescriptorSet)
}
