package render

import (
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/argus-engine/argus/asset"
)

// gpuTexture is the device-resident form of an asset texture: a sampled
// image in the shader-read-only layout plus a sampler configured for it.
type gpuTexture struct {
	image   Image
	sampler core1_0.Sampler
}

func uploadTexture(ctx *Context, alloc *Allocator, texture *asset.Texture) (gpuTexture, error) {
	image, err := alloc.UploadImage(texture.Pixels, texture.Width, texture.Height, core1_0.FormatR8G8B8A8SRGB)
	if err != nil {
		return gpuTexture{}, err
	}

	sampler, _, err := ctx.deviceDriver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    ctx.device.Properties.Limits.MaxSamplerAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MinLod:     0,
		MaxLod:     1,
	})
	if err != nil {
		alloc.DestroyImage(image)
		return gpuTexture{}, err
	}

	return gpuTexture{image: image, sampler: sampler}, nil
}

func (t gpuTexture) destroy(ctx *Context, alloc *Allocator) {
	if t.sampler.Initialized() {
		ctx.deviceDriver.DestroySampler(t.sampler, nil)
	}
	alloc.DestroyImage(t.image)
}
