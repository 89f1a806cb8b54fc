package main

import (
	"flag"
	"log"
	"runtime"

	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"

	"github.com/argus-engine/argus/render"
)

const (
	windowTitle  = "argus playground"
	windowWidth  = 800
	windowHeight = 600
)

var (
	vertPath    = flag.String("vert", "shaders/vert.spv", "path to the compiled vertex shader")
	fragPath    = flag.String("frag", "shaders/frag.spv", "path to the compiled fragment shader")
	modelPath   = flag.String("model", "", "path to an OBJ model (defaults to a textured quad)")
	texturePath = flag.String("texture", "", "path to a PNG texture (defaults to a checkerboard)")
	debug       = flag.Bool("debug", false, "enable the Vulkan validation layer")
	orbit       = flag.Bool("orbit", true, "use the orbiting camera instead of mouse look")
)

// sdlSurfaceSource adapts an SDL window to the renderer's surface contract.
type sdlSurfaceSource struct {
	window *sdl.Window
}

func (s sdlSurfaceSource) InstanceExtensions() []string {
	return s.window.VulkanGetInstanceExtensions()
}

func (s sdlSurfaceSource) CreateSurface(instanceDriver core1_0.CoreInstanceDriver, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error) {
	return vkng_sdl2.CreateSurface(instanceDriver.Instance(), surfaceExtension, s.window)
}

func main() {
	runtime.LockOSThread()
	flag.Parse()

	err := run()
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}

func run() error {
	err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS)
	if err != nil {
		return err
	}
	defer sdl.Quit()

	window, err := sdl.CreateWindow(windowTitle,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		windowWidth, windowHeight,
		sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return err
	}
	defer window.Destroy()

	globalDriver, err := core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return err
	}

	ctx, err := render.NewContext(globalDriver, sdlSurfaceSource{window: window}, render.ContextConfig{
		AppName:    windowTitle,
		EngineName: "argus",
		Debug:      *debug,
	})
	if err != nil {
		return err
	}
	defer ctx.Destroy()

	scene, err := loadScene(*modelPath, *texturePath, *vertPath, *fragPath)
	if err != nil {
		return err
	}

	w, h := window.VulkanGetDrawableSize()
	renderer, err := render.NewRenderer(ctx, render.RendererConfig{
		VertexShader:   scene.vertexShader,
		FragmentShader: scene.fragmentShader,
		Assets:         scene.library,
		InitialExtent:  core1_0.Extent2D{Width: int(w), Height: int(h)},
	})
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	err = renderer.UseTextures(scene.textures)
	if err != nil {
		return err
	}
	err = renderer.UseMeshes(scene.meshes)
	if err != nil {
		return err
	}

	var camera camera
	if *orbit {
		camera = newOrbitCamera()
	} else {
		camera = newLookCamera(window)
	}

	return mainLoop(window, renderer, camera, scene)
}

func mainLoop(window *sdl.Window, renderer *render.Renderer, camera camera, scene *scene) error {
	start := hrtime.Now()
	lastReport := start
	frames := 0

	rendering := true

appLoop:
	for {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				break appLoop
			case *sdl.WindowEvent:
				switch e.Event {
				case sdl.WINDOWEVENT_MINIMIZED:
					rendering = false
				case sdl.WINDOWEVENT_RESTORED:
					rendering = true
				case sdl.WINDOWEVENT_RESIZED:
					w, h := window.VulkanGetDrawableSize()
					if w > 0 && h > 0 {
						rendering = true
						renderer.HandleResize(core1_0.Extent2D{Width: int(w), Height: int(h)})
					} else {
						rendering = false
					}
				}
			default:
				camera.handleEvent(event)
			}
		}

		if !rendering {
			continue
		}

		elapsed := (hrtime.Now() - start).Seconds()
		w, h := window.VulkanGetDrawableSize()
		aspect := float32(w) / float32(h)

		view := camera.matrix(aspect, elapsed)
		err := renderer.DrawFrame(&view, scene.drawables(elapsed))
		if err != nil {
			return err
		}

		frames++
		if now := hrtime.Now(); (now - lastReport).Seconds() >= 1.0 {
			log.Printf("%d fps", frames)
			frames = 0
			lastReport = now
		}
	}

	return nil
}
