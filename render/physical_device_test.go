package render

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

func TestPickSurfaceFormatPrefersSRGB(t *testing.T) {
	formats := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR5G6B5UnsignedNormalizedPacked, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	format, ok := pickSurfaceFormat(formats)
	require.True(t, ok)
	require.Equal(t, core1_0.FormatB8G8R8A8SRGB, format.Format)
}

func TestPickSurfaceFormatAcceptsRGBAVariant(t *testing.T) {
	formats := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	format, ok := pickSurfaceFormat(formats)
	require.True(t, ok)
	require.Equal(t, core1_0.FormatR8G8B8A8SRGB, format.Format)
}

func TestPickSurfaceFormatFallsBackToFirst(t *testing.T) {
	formats := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR5G6B5UnsignedNormalizedPacked, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	format, ok := pickSurfaceFormat(formats)
	require.True(t, ok)
	require.Equal(t, formats[0], format)
}

func TestPickSurfaceFormatEmpty(t *testing.T) {
	_, ok := pickSurfaceFormat(nil)
	require.False(t, ok)
}

func TestPickPresentMode(t *testing.T) {
	mailbox := pickPresentMode([]khr_surface.PresentMode{
		khr_surface.PresentModeFIFO,
		khr_surface.PresentModeMailbox,
	})
	require.Equal(t, khr_surface.PresentModeMailbox, mailbox)

	fifo := pickPresentMode([]khr_surface.PresentMode{
		khr_surface.PresentModeImmediate,
		khr_surface.PresentModeFIFORelaxed,
	})
	require.Equal(t, khr_surface.PresentModeFIFO, fifo)

	require.Equal(t, khr_surface.PresentModeFIFO, pickPresentMode(nil))
}

func TestDeviceTypeScore(t *testing.T) {
	require.Equal(t, 2, deviceTypeScore(core1_0.PhysicalDeviceTypeDiscreteGPU))
	require.Equal(t, 1, deviceTypeScore(core1_0.PhysicalDeviceTypeIntegratedGPU))
	require.Equal(t, 0, deviceTypeScore(core1_0.PhysicalDeviceTypeCPU))
	require.Equal(t, 0, deviceTypeScore(core1_0.PhysicalDeviceTypeVirtualGPU))

	require.Greater(t, deviceTypeScore(core1_0.PhysicalDeviceTypeDiscreteGPU),
		deviceTypeScore(core1_0.PhysicalDeviceTypeIntegratedGPU))
}
