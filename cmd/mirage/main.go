// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strconv"
	"sync/atomic"
	"time"
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/mirage/core"
	"github.com/devblok/mirage/core/renderer"
)

func init() {
	runtime.LockOSThread()
	godotenv.Load()
}

// Essential globals
var (
	vkInstance core.Instance
	vkRenderer core.Renderer
	sdlWindow  *sdl.Window
	sdlSurface unsafe.Pointer
)

var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	vkDebug      = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
)

var frameCounter int64

var configuration = core.Configuration{
	Time: core.TimeConfiguration{
		FramesPerSecond: 60,
	},
	Renderer: core.RendererConfiguration{
		ScreenWidth:   1280,
		ScreenHeight:  720,
		SwapchainSize: 3,
		DeviceExtensions: []string{
			"VK_KHR_swapchain",
		},
		ShaderDirectory: envy.Get("MIRAGE_SHADER_DIR", "./res/shaders/bin"),
	},
}

func newWindow() *sdl.Window {
	window, err := sdl.CreateWindow("Mirage",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(configuration.Renderer.ScreenWidth),
		int32(configuration.Renderer.ScreenHeight),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		panic(err)
	}
	return window
}

func applyEnvironment() {
	if lambda, err := strconv.ParseFloat(envy.Get("MIRAGE_CASCADE_LAMBDA", "0.95"), 32); err == nil {
		configuration.Renderer.CascadeLambda = float32(lambda)
	}
	if width, err := strconv.ParseUint(envy.Get("MIRAGE_WIDTH", ""), 10, 32); err == nil && width > 0 {
		configuration.Renderer.ScreenWidth = uint32(width)
	}
	if height, err := strconv.ParseUint(envy.Get("MIRAGE_HEIGHT", ""), 10, 32); err == nil && height > 0 {
		configuration.Renderer.ScreenHeight = uint32(height)
	}
	if envy.Get("MIRAGE_VSYNC", "on") == "off" {
		configuration.Renderer.DisableVSync = true
	}
}

// appState tracks the toggles the keyboard flips.
type appState struct {
	paused          bool
	showReflection  bool
	showRefraction  bool
	showCascades    bool
	cascadeIndex    int
	cascadeLambda   float32
	screenshotCount int
}

func (s *appState) handleKey(sym sdl.Keycode) {
	switch sym {
	case sdl.K_SPACE:
		s.paused = !s.paused
		vkRenderer.SetPaused(s.paused)
	case sdl.K_F2:
		s.screenshotCount++
		path := fmt.Sprintf("mirage-%d.ppm", s.screenshotCount)
		if err := vkRenderer.Screenshot(path); err != nil {
			log.WithError(err).Error("Screenshot failed")
		} else {
			log.WithField("path", path).Info("Screenshot saved")
		}
	case sdl.K_F5:
		s.showReflection = !s.showReflection
		if err := vkRenderer.SetDebugReflection(s.showReflection); err != nil {
			log.WithError(err).Error("Toggle failed")
		}
	case sdl.K_F6:
		s.showRefraction = !s.showRefraction
		if err := vkRenderer.SetDebugRefraction(s.showRefraction); err != nil {
			log.WithError(err).Error("Toggle failed")
		}
	case sdl.K_F7:
		s.showCascades = !s.showCascades
		if err := vkRenderer.SetDebugCascades(s.showCascades); err != nil {
			log.WithError(err).Error("Toggle failed")
		}
	case sdl.K_F8:
		if s.cascadeIndex > 0 {
			s.cascadeIndex--
			vkRenderer.SetDebugCascadeIndex(s.cascadeIndex)
		}
	case sdl.K_F9:
		if s.cascadeIndex < 3 {
			s.cascadeIndex++
			vkRenderer.SetDebugCascadeIndex(s.cascadeIndex)
		}
	case sdl.K_MINUS:
		s.cascadeLambda -= 0.05
		vkRenderer.SetCascadeLambda(s.cascadeLambda)
	case sdl.K_EQUALS:
		s.cascadeLambda += 0.05
		vkRenderer.SetCascadeLambda(s.cascadeLambda)
	case sdl.K_w:
		vkRenderer.Camera().Walk(0.5, 0)
	case sdl.K_s:
		vkRenderer.Camera().Walk(-0.5, 0)
	case sdl.K_a:
		vkRenderer.Camera().Walk(0, -0.5)
	case sdl.K_d:
		vkRenderer.Camera().Walk(0, 0.5)
	}
}

func main() {
	flag.Parse()
	applyEnvironment()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			panic(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			panic(err)
		}
		if err := trace.Start(f); err != nil {
			panic(err)
		}
		defer trace.Stop()
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		panic(err)
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		panic(err)
	}
	defer sdl.VulkanUnloadLibrary()

	sdlWindow = newWindow()

	{
		cfg := core.InstanceConfiguration{
			DebugMode:  *vkDebug || envy.Get("MIRAGE_DEBUG", "") != "",
			Extensions: sdlWindow.VulkanGetInstanceExtensions(),
			Layers:     []string{},
		}

		if vi, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), cfg); err != nil {
			panic(err)
		} else {
			vkInstance = vi
		}
	}

	if srf, err := sdlWindow.VulkanCreateSurface(vkInstance.Inner()); err != nil {
		panic(err)
	} else {
		sdlSurface = srf
		vkInstance.SetSurface(sdlSurface)
	}

	clock := core.NewTime(configuration.Time)

	var rendererErr error
	vkRenderer, rendererErr = renderer.NewVulkan(vkInstance, &clock, configuration.Renderer)
	if rendererErr != nil {
		panic(rendererErr)
	}

	deviceUsed := vkInstance.AvailableDevices()[0]
	if suitable, reason := vkRenderer.DeviceIsSuitable(deviceUsed); !suitable {
		panic(reason)
	}

	if err := vkRenderer.Initialise(); err != nil {
		panic(err)
	}

	vkRenderer.Camera().SetPosition(glm.Vec3{-0.12, 1.14, -2.25})
	vkRenderer.Camera().SetRotation(glm.Vec3{-17, 7, 0})

	state := appState{cascadeLambda: configuration.Renderer.CascadeLambda}
	exitC := make(chan struct{}, 2)
	drawErrC := make(chan error, 1)

	go func() {
		for {
			select {
			case <-exitC:
				exitC <- struct{}{}
				return
			default:
			}
			if err := vkRenderer.Draw(); err != nil {
				drawErrC <- err
				return
			}
			if err := vkRenderer.Present(); err != nil {
				drawErrC <- err
				return
			}
			atomic.AddInt64(&frameCounter, 1)
		}
	}()

	stopCounter := make(chan struct{})
	go func() {
		for {
			select {
			case <-stopCounter:
				return
			default:
				count := atomic.SwapInt64(&frameCounter, 0)
				fmt.Printf("\r\033[2KFrame count: %d\tCGO calls: %d", count, runtime.NumCgoCall())
				time.Sleep(time.Second)
			}
		}
	}()

EventLoop:
	for {
		select {
		case err := <-drawErrC:
			log.WithError(err).Error("Render loop failed")
			break EventLoop
		case <-clock.FpsTicker().C:
			var event sdl.Event
			for event = sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Type != sdl.KEYDOWN {
						continue
					}
					if et.Keysym.Sym == sdl.K_ESCAPE {
						exitC <- struct{}{}
						break EventLoop
					}
					state.handleKey(et.Keysym.Sym)
				case *sdl.QuitEvent:
					exitC <- struct{}{}
					break EventLoop
				}
			}
		}
	}

	close(stopCounter)
	fmt.Println()
	log.Info("Event loop exited")

	// Let the render goroutine drain before tearing down the device.
	time.Sleep(100 * time.Millisecond)

	vkRenderer.Destroy()
	vkInstance.Destroy()

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			panic(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			panic(err)
		}
	}
}
