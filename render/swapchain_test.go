package render

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

func TestSelectImageCount(t *testing.T) {
	tests := []struct {
		name string
		min  int
		max  int
		want int
	}{
		{name: "one over minimum", min: 2, max: 8, want: 3},
		{name: "clamped to maximum", min: 3, max: 3, want: 3},
		{name: "unbounded maximum", min: 2, max: 0, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capabilities := &khr_surface.SurfaceCapabilities{
				MinImageCount: tt.min,
				MaxImageCount: tt.max,
			}
			require.Equal(t, tt.want, selectImageCount(capabilities))
		})
	}
}

func TestResolveExtentUsesFixedExtent(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent: core1_0.Extent2D{Width: 1920, Height: 1080},
	}

	extent := resolveExtent(capabilities, core1_0.Extent2D{Width: 800, Height: 600})
	require.Equal(t, core1_0.Extent2D{Width: 1920, Height: 1080}, extent)
}

func TestResolveExtentClampsFallback(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: -1, Height: -1},
		MinImageExtent: core1_0.Extent2D{Width: 200, Height: 200},
		MaxImageExtent: core1_0.Extent2D{Width: 1000, Height: 1000},
	}

	small := resolveExtent(capabilities, core1_0.Extent2D{Width: 10, Height: 10})
	require.Equal(t, core1_0.Extent2D{Width: 200, Height: 200}, small)

	large := resolveExtent(capabilities, core1_0.Extent2D{Width: 4000, Height: 4000})
	require.Equal(t, core1_0.Extent2D{Width: 1000, Height: 1000}, large)

	inRange := resolveExtent(capabilities, core1_0.Extent2D{Width: 800, Height: 600})
	require.Equal(t, core1_0.Extent2D{Width: 800, Height: 600}, inRange)
}

func TestFramebufferCacheBuildsOnce(t *testing.T) {
	builds := 0
	cache := framebufferCache{
		build: func(renderPass core1_0.RenderPass) ([]core1_0.Framebuffer, error) {
			builds++
			return make([]core1_0.Framebuffer, 3), nil
		},
		destroy: func([]core1_0.Framebuffer) {},
	}

	renderPass := core1_0.RenderPass{}

	first, err := cache.get(renderPass)
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.Equal(t, 1, builds)

	_, err = cache.get(renderPass)
	require.NoError(t, err)
	require.Equal(t, 1, builds)
}

func TestFramebufferCacheRebuildsAfterInvalidate(t *testing.T) {
	builds := 0
	destroys := 0
	cache := framebufferCache{
		build: func(renderPass core1_0.RenderPass) ([]core1_0.Framebuffer, error) {
			builds++
			return make([]core1_0.Framebuffer, 2), nil
		},
		destroy: func([]core1_0.Framebuffer) {
			destroys++
		},
	}

	renderPass := core1_0.RenderPass{}

	_, err := cache.get(renderPass)
	require.NoError(t, err)

	cache.invalidate()
	require.Equal(t, 1, destroys)

	// Invalidating an empty cache must not destroy anything.
	cache.invalidate()
	require.Equal(t, 1, destroys)

	_, err = cache.get(renderPass)
	require.NoError(t, err)
	require.Equal(t, 2, builds)
}
