package render

import (
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/argus-engine/argus/asset"
)

func newShaderModule(ctx *Context, shader *asset.Shader) (core1_0.ShaderModule, error) {
	module, _, err := ctx.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: spirvWords(shader.Code),
	})
	return module, err
}

// spirvWords reassembles little-endian SPIR-V bytes into the 32-bit words
// the module create info expects.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := 0; i < len(words); i++ {
		byteIndex := i * 4
		words[i] = 0
		words[i] |= uint32(b[byteIndex])
		words[i] |= uint32(b[byteIndex+1]) << 8
		words[i] |= uint32(b[byteIndex+2]) << 16
		words[i] |= uint32(b[byteIndex+3]) << 24
	}

	return words
}
