package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

// DeviceInfo records the capabilities of the selected physical device that
// the rest of the core keys off: the combined graphics/present queue family,
// the chosen surface format and present mode, surface capabilities, memory
// properties, and the depth buffer format.
type DeviceInfo struct {
	Handle              core1_0.PhysicalDevice
	GraphicsQueueFamily int
	SurfaceFormat       khr_surface.SurfaceFormat
	PresentMode         khr_surface.PresentMode
	Capabilities        *khr_surface.SurfaceCapabilities
	Properties          *core1_0.PhysicalDeviceProperties
	MemoryProperties    *core1_0.PhysicalDeviceMemoryProperties
	DepthFormat         core1_0.Format
}

// SelectPhysicalDevice enumerates adapters and deterministically picks the
// best one that satisfies the hard constraints: a queue family supporting
// both graphics and presentation to the surface, every required device
// extension, and sampler anisotropy. Survivors are ranked discrete >
// integrated > other, ties broken by enumeration order. Failure here is a
// non-recoverable startup error.
func SelectPhysicalDevice(
	instanceDriver core1_0.CoreInstanceDriver,
	surfaceExtension khr_surface.ExtensionDriver,
	surface khr_surface.Surface,
	requiredExtensions []string,
) (DeviceInfo, error) {
	physicalDevices, _, err := instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return DeviceInfo{}, errors.Wrap(err, "enumerating physical devices")
	}

	var best DeviceInfo
	bestScore := -1
	for _, device := range physicalDevices {
		info, ok, err := evaluateDevice(instanceDriver, surfaceExtension, surface, device, requiredExtensions)
		if err != nil {
			return DeviceInfo{}, err
		}
		if !ok {
			continue
		}

		if score := deviceTypeScore(info.Properties.DriverType); score > bestScore {
			best = info
			bestScore = score
		}
	}

	if bestScore < 0 {
		return DeviceInfo{}, errors.New("no physical device satisfies the required queue, extension, and feature constraints")
	}

	return best, nil
}

func evaluateDevice(
	instanceDriver core1_0.CoreInstanceDriver,
	surfaceExtension khr_surface.ExtensionDriver,
	surface khr_surface.Surface,
	device core1_0.PhysicalDevice,
	requiredExtensions []string,
) (DeviceInfo, bool, error) {
	queueFamily, ok, err := findGraphicsPresentFamily(instanceDriver, surfaceExtension, surface, device)
	if err != nil || !ok {
		return DeviceInfo{}, false, err
	}

	extensions, _, err := instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return DeviceInfo{}, false, errors.Wrap(err, "enumerating device extensions")
	}
	for _, required := range requiredExtensions {
		if _, has := extensions[required]; !has {
			return DeviceInfo{}, false, nil
		}
	}

	features := instanceDriver.GetPhysicalDeviceFeatures(device)
	if !features.SamplerAnisotropy {
		return DeviceInfo{}, false, nil
	}

	formats, _, err := surfaceExtension.GetPhysicalDeviceSurfaceFormats(surface, device)
	if err != nil {
		return DeviceInfo{}, false, errors.Wrap(err, "querying surface formats")
	}
	surfaceFormat, ok := pickSurfaceFormat(formats)
	if !ok {
		return DeviceInfo{}, false, nil
	}

	presentModes, _, err := surfaceExtension.GetPhysicalDeviceSurfacePresentModes(surface, device)
	if err != nil {
		return DeviceInfo{}, false, errors.Wrap(err, "querying present modes")
	}
	if len(presentModes) == 0 {
		return DeviceInfo{}, false, nil
	}

	capabilities, _, err := surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(surface, device)
	if err != nil {
		return DeviceInfo{}, false, errors.Wrap(err, "querying surface capabilities")
	}

	properties, err := instanceDriver.GetPhysicalDeviceProperties(device)
	if err != nil {
		return DeviceInfo{}, false, errors.Wrap(err, "querying device properties")
	}

	depthFormat, err := findDepthFormat(instanceDriver, device)
	if err != nil {
		return DeviceInfo{}, false, nil
	}

	return DeviceInfo{
		Handle:              device,
		GraphicsQueueFamily: queueFamily,
		SurfaceFormat:       surfaceFormat,
		PresentMode:         pickPresentMode(presentModes),
		Capabilities:        capabilities,
		Properties:          properties,
		MemoryProperties:    instanceDriver.GetPhysicalDeviceMemoryProperties(device),
		DepthFormat:         depthFormat,
	}, true, nil
}

func findGraphicsPresentFamily(
	instanceDriver core1_0.CoreInstanceDriver,
	surfaceExtension khr_surface.ExtensionDriver,
	surface khr_surface.Surface,
	device core1_0.PhysicalDevice,
) (int, bool, error) {
	queueFamilies := instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)
	for familyIndex, family := range queueFamilies {
		if (family.QueueFlags & core1_0.QueueGraphics) == 0 {
			continue
		}

		supported, _, err := surfaceExtension.GetPhysicalDeviceSurfaceSupport(surface, device, familyIndex)
		if err != nil {
			return 0, false, errors.Wrap(err, "querying surface support")
		}
		if supported {
			return familyIndex, true, nil
		}
	}

	return 0, false, nil
}

// pickSurfaceFormat prefers an sRGB 8-bit format with the sRGB nonlinear
// color space, falling back to the first available format. The second return
// is false only when the device exposes no formats at all.
func pickSurfaceFormat(formats []khr_surface.SurfaceFormat) (khr_surface.SurfaceFormat, bool) {
	if len(formats) == 0 {
		return khr_surface.SurfaceFormat{}, false
	}

	for _, format := range formats {
		srgb := format.Format == core1_0.FormatB8G8R8A8SRGB || format.Format == core1_0.FormatR8G8B8A8SRGB
		if srgb && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format, true
		}
	}

	return formats[0], true
}

// pickPresentMode prefers low-latency mailbox, falling back to FIFO, which
// the platform is required to support.
func pickPresentMode(modes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, mode := range modes {
		if mode == khr_surface.PresentModeMailbox {
			return mode
		}
	}

	return khr_surface.PresentModeFIFO
}

func deviceTypeScore(deviceType core1_0.PhysicalDeviceType) int {
	switch deviceType {
	case core1_0.PhysicalDeviceTypeDiscreteGPU:
		return 2
	case core1_0.PhysicalDeviceTypeIntegratedGPU:
		return 1
	default:
		return 0
	}
}

func findDepthFormat(instanceDriver core1_0.CoreInstanceDriver, device core1_0.PhysicalDevice) (core1_0.Format, error) {
	return findSupportedFormat(instanceDriver, device,
		[]core1_0.Format{
			core1_0.FormatD32SignedFloat,
			core1_0.FormatD32SignedFloatS8UnsignedInt,
			core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
		},
		core1_0.ImageTilingOptimal,
		core1_0.FormatFeatureDepthStencilAttachment)
}

func findSupportedFormat(
	instanceDriver core1_0.CoreInstanceDriver,
	device core1_0.PhysicalDevice,
	candidates []core1_0.Format,
	tiling core1_0.ImageTiling,
	features core1_0.FormatFeatureFlags,
) (core1_0.Format, error) {
	for _, format := range candidates {
		props := instanceDriver.GetPhysicalDeviceFormatProperties(device, format)

		if tiling == core1_0.ImageTilingLinear && (props.LinearTilingFeatures&features) == features {
			return format, nil
		} else if tiling == core1_0.ImageTilingOptimal && (props.OptimalTilingFeatures&features) == features {
			return format, nil
		}
	}

	return 0, errors.Errorf("no supported format for tiling %s, featureset %s", tiling, features)
}
