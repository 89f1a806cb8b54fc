package render

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/argus-engine/argus/asset"
)

func TestTextureSetCacheNeverFreesWhileBinding(t *testing.T) {
	allocations := 0
	frees := 0

	cache := &textureSetCache{
		allocate: func(gpuTexture) (core1_0.DescriptorSet, error) {
			allocations++
			return core1_0.DescriptorSet{}, nil
		},
		free: func(map[asset.ID]core1_0.DescriptorSet) {
			frees++
		},
		sets: make(map[asset.ID]core1_0.DescriptorSet),
	}

	first := asset.NewID()
	second := asset.NewID()

	require.NoError(t, cache.bind(first, gpuTexture{}))
	require.NoError(t, cache.bind(second, gpuTexture{}))
	require.NoError(t, cache.bind(first, gpuTexture{}))

	require.Equal(t, 2, allocations)
	require.Zero(t, frees)
	require.Len(t, cache.sets, 2)
}

func TestTextureSetCacheReleaseFreesEverything(t *testing.T) {
	freed := 0

	cache := &textureSetCache{
		allocate: func(gpuTexture) (core1_0.DescriptorSet, error) {
			return core1_0.DescriptorSet{}, nil
		},
		free: func(sets map[asset.ID]core1_0.DescriptorSet) {
			freed += len(sets)
		},
		sets: make(map[asset.ID]core1_0.DescriptorSet),
	}

	require.NoError(t, cache.bind(asset.NewID(), gpuTexture{}))
	require.NoError(t, cache.bind(asset.NewID(), gpuTexture{}))

	cache.release()

	require.Equal(t, 2, freed)
	require.Empty(t, cache.sets)
}
