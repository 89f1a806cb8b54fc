package render

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var deviceExtensions = []string{khr_swapchain.ExtensionName}

// SurfaceSource produces presentation surfaces for a Context. The windowing
// layer implements it; the render package never talks to a window directly.
type SurfaceSource interface {
	InstanceExtensions() []string
	CreateSurface(instanceDriver core1_0.CoreInstanceDriver, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error)
}

type ContextConfig struct {
	AppName    string
	EngineName string

	// Debug enables the validation layer and a debug messenger when both
	// are available.
	Debug bool
}

// Context owns the instance, logical device and graphics queue shared by
// every other renderer component. Created once and destroyed last.
type Context struct {
	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface

	source SurfaceSource
	device DeviceInfo

	graphicsQueue core1_0.Queue
	commandPool   core1_0.CommandPool
}

func NewContext(globalDriver core1_0.GlobalDriver, source SurfaceSource, config ContextConfig) (*Context, error) {
	ctx := &Context{
		globalDriver: globalDriver,
		source:       source,
	}

	err := ctx.createInstance(source, config)
	if err != nil {
		return nil, err
	}

	if config.Debug {
		err = ctx.setupDebugMessenger()
		if err != nil {
			ctx.Destroy()
			return nil, err
		}
	}

	ctx.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(ctx.instanceDriver)
	ctx.surface, err = source.CreateSurface(ctx.instanceDriver, ctx.surfaceExtension)
	if err != nil {
		ctx.Destroy()
		return nil, err
	}

	ctx.device, err = SelectPhysicalDevice(ctx.instanceDriver, ctx.surfaceExtension, ctx.surface, deviceExtensions)
	if err != nil {
		ctx.Destroy()
		return nil, err
	}

	err = ctx.createLogicalDevice()
	if err != nil {
		ctx.Destroy()
		return nil, err
	}

	err = ctx.createCommandPool()
	if err != nil {
		ctx.Destroy()
		return nil, err
	}

	return ctx, nil
}

func (c *Context) createInstance(source SurfaceSource, config ContextConfig) error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    config.AppName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         config.EngineName,
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := c.globalDriver.AvailableExtensions()
	if err != nil {
		return err
	}

	for _, ext := range source.InstanceExtensions() {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Errorf("createInstance: required surface extension %s is not available", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if config.Debug {
		layers, _, err := c.globalDriver.AvailableLayers()
		if err != nil {
			return err
		}

		debugSupported := true

		_, hasDebug := extensions[ext_debug_utils.ExtensionName]
		if !hasDebug {
			debugSupported = false
		}
		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				debugSupported = false
			}
		}

		if debugSupported {
			instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, validationLayers...)
			instanceOptions.Next = debugMessengerOptions()
		} else {
			log.Println("validation requested but not available, continuing without it")
		}
	}

	c.instanceDriver, _, err = c.globalDriver.CreateInstance(nil, instanceOptions)
	return err
}

func debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logDebugMessage,
	}
}

func logDebugMessage(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	log.Printf("[%s %s] - %s", severity, msgType, data.Message)
	return false
}

func (c *Context) setupDebugMessenger() error {
	var err error
	c.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(c.instanceDriver)
	c.debugMessenger, _, err = c.debugDriver.CreateDebugUtilsMessenger(nil, debugMessengerOptions())
	return err
}

func (c *Context) createLogicalDevice() error {
	queuePriority := float32(1.0)
	queueOptions := []core1_0.DeviceQueueCreateInfo{
		{
			QueueFamilyIndex: c.device.GraphicsQueueFamily,
			QueuePriorities:  []float32{queuePriority},
		},
	}

	var extensionNames []string
	extensionNames = append(extensionNames, deviceExtensions...)

	// Needed on drivers layered over Metal and other non-conformant stacks.
	extensions, _, err := c.instanceDriver.EnumerateDeviceExtensionProperties(c.device.Handle)
	if err != nil {
		return err
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	c.deviceDriver, _, err = c.instanceDriver.CreateDevice(c.device.Handle, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueOptions,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}

	c.graphicsQueue = c.deviceDriver.GetQueue(c.device.GraphicsQueueFamily, 0)
	return nil
}

func (c *Context) createCommandPool() error {
	pool, _, err := c.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: c.device.GraphicsQueueFamily,
	})
	if err != nil {
		return err
	}

	c.commandPool = pool
	return nil
}

// Device describes the physical device the context was built on.
func (c *Context) Device() DeviceInfo {
	return c.device
}

// Surface returns the surface the context was created with. The swapchain
// takes ownership of it and of any replacement surface.
func (c *Context) Surface() khr_surface.Surface {
	return c.surface
}

// CreateSurface builds a fresh surface from the context's source. Used when
// the platform invalidates the original surface.
func (c *Context) CreateSurface() (khr_surface.Surface, error) {
	return c.source.CreateSurface(c.instanceDriver, c.surfaceExtension)
}

// RefreshSurfaceCapabilities re-queries the surface capabilities, which
// change whenever the window is resized or the surface is replaced.
func (c *Context) RefreshSurfaceCapabilities(surface khr_surface.Surface) error {
	capabilities, _, err := c.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(surface, c.device.Handle)
	if err != nil {
		return err
	}

	c.device.Capabilities = capabilities
	return nil
}

func (c *Context) WaitIdle() error {
	_, err := c.deviceDriver.DeviceWaitIdle()
	return err
}

// Destroy tears the context down in reverse creation order. Once a swapchain
// exists it owns the current surface; the surface is only destroyed here when
// no swapchain ever adopted it.
func (c *Context) Destroy() {
	if c.surface.Initialized() {
		c.surfaceExtension.DestroySurface(c.surface, nil)
		c.surface = khr_surface.Surface{}
	}

	if c.commandPool.Initialized() {
		c.deviceDriver.DestroyCommandPool(c.commandPool, nil)
		c.commandPool = core1_0.CommandPool{}
	}

	if c.deviceDriver != nil {
		c.deviceDriver.DestroyDevice(nil)
		c.deviceDriver = nil
	}

	if c.debugMessenger.Initialized() {
		c.debugDriver.DestroyDebugUtilsMessenger(c.debugMessenger, nil)
		c.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if c.instanceDriver != nil {
		c.instanceDriver.DestroyInstance(nil)
		c.instanceDriver = nil
	}
}
