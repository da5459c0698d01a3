// Command oxy-demo opens a window and redraws it only when something changed:
// dragging orbits the camera, scrolling zooms, resizing reconfigures the
// surface and saving the watched texture file reloads it. R forces a redraw.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine"
	"github.com/Carmen-Shannon/oxy-sync/engine/bind_target"
	"github.com/Carmen-Shannon/oxy-sync/engine/camera"
	"github.com/Carmen-Shannon/oxy-sync/engine/loader"
	"github.com/Carmen-Shannon/oxy-sync/engine/logging"
	"github.com/Carmen-Shannon/oxy-sync/engine/profiler"
	"github.com/Carmen-Shannon/oxy-sync/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sync/engine/resource"
	"github.com/Carmen-Shannon/oxy-sync/engine/scheduler"
	"github.com/Carmen-Shannon/oxy-sync/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/dc0d/onexit"
)

func main() {
	var (
		texturePath = flag.String("texture", "", "image file to load and watch (png, jpeg, bmp, webp); a checkerboard when empty")
		tickRate    = flag.Float64("tick", 60, "producer ticks per second")
		frameLimit  = flag.Float64("fps", 0, "maximum frames per second, 0 for unlimited")
		software    = flag.Bool("software", false, "force the fallback (software) adapter")
		uncapped    = flag.Bool("uncapped", false, "present without vsync")
		profile     = flag.Bool("profile", false, "log frame and memory statistics every second")
		debug       = flag.Bool("debug", false, "log at debug level")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*texturePath, *tickRate, *frameLimit, *software, *uncapped, *profile); err != nil {
		logging.Logger().Error("oxy-demo: exiting", "error", err)
		os.Exit(1)
	}
}

func run(texturePath string, tickRate, frameLimit float64, software, uncapped, profile bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	win, err := window.NewWindow(window.WithTitle("oxy demo"), window.WithSize(1280, 720))
	if err != nil {
		return err
	}
	defer win.Close()

	width, height := win.Size()
	presentMode := renderer.PresentModeVSync
	if uncapped {
		presentMode = renderer.PresentModeUncapped
	}
	r, err := renderer.NewRenderer(
		renderer.WithBackend(renderer.BackendTypeWGPU),
		renderer.WithSurfaceDescriptor(win.SurfaceDescriptor(), width, height),
		renderer.WithForceSoftwareRenderer(software),
		renderer.WithPresentMode(presentMode),
	)
	if err != nil {
		return err
	}
	onexit.Register(r.Release)
	defer r.Release()

	camBuf, err := r.NewCameraBuffer("camera", camera.UniformSize)
	if err != nil {
		return err
	}
	defer camBuf.Close()
	cam, err := camera.NewCamera(camBuf,
		camera.WithAspect(float32(width)/float32(height)),
		camera.WithClip(0.01, 1000),
		camera.WithController(camera.NewOrbitController(
			camera.WithRadius(5),
			camera.WithRadiusBounds(1, 50),
			camera.WithZoomSpeed(0.5),
		)),
	)
	if err != nil {
		return err
	}

	textures, err := loader.NewTextureLoader(r, loader.WithWatch(texturePath != ""))
	if err != nil {
		return err
	}
	onexit.Register(func() { _ = textures.Close() })
	defer textures.Close()

	src := common.ImageSource{Name: "checker", Path: texturePath}
	var tex *resource.Texture
	if texturePath != "" {
		tex, err = textures.Load(ctx, src)
	} else {
		tex, err = r.NewTexture(ctx, "checker", checkerboard(64, 64, 8))
	}
	if err != nil {
		return err
	}
	if texturePath == "" {
		defer tex.Close()
	}

	sampler, err := r.NewSampler("linear", common.SamplerStagingData{})
	if err != nil {
		return err
	}

	var opts []scheduler.SchedulerBuilderOption
	opts = append(opts,
		scheduler.WithLabel("main"),
		scheduler.WithFrameSource(r),
		scheduler.WithTriggers(win.Resized()),
		scheduler.WithFrameLimit(frameLimit),
	)
	if profile {
		opts = append(opts, scheduler.WithProfiler(profiler.NewProfiler("main", time.Second)))
	}
	sched := scheduler.NewScheduler(
		[]bind_target.BindTarget{cam, tex, sampler},
		func(_ context.Context, f *scheduler.Frame) error {
			frame, ok := f.CopyContext.(*renderer.WGPUFrame)
			if !ok {
				return fmt.Errorf("unexpected frame %T", f.CopyContext)
			}
			frame.ClearPass(clearColor(cam.Controller()))
			return nil
		},
		opts...,
	)
	defer sched.Close()

	win.SetResizeCallback(func(w, h int) {
		r.Resize(w, h)
		cam.SetAspect(float32(w) / float32(h))
	})
	win.SetDragCallback(func(dx, dy float32) {
		cam.Controller().Orbit(-dx*0.005, dy*0.005)
	})
	win.SetScrollCallback(func(delta float32) {
		cam.Controller().Zoom(delta)
	})
	win.SetKeyDownCallback(func(keyCode uint32) {
		switch keyCode {
		case common.KeyR:
			sched.RequestRedraw()
		case common.KeyA:
			cam.Controller().Orbit(-0.05, 0)
		case common.KeyD:
			cam.Controller().Orbit(0.05, 0)
		case common.KeyW:
			cam.Controller().Zoom(1)
		case common.KeyS:
			cam.Controller().Zoom(-1)
		}
	})

	if texturePath != "" {
		go func() {
			if err := textures.Watch(ctx); err != nil {
				logging.Logger().Warn("oxy-demo: texture watch stopped", "error", err)
			}
		}()
	}

	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithTickRate(tickRate),
		engine.WithScheduler(sched),
		engine.WithProfiling(profile),
		engine.WithTickCallback(func(ctx context.Context, _ float32) error {
			return cam.Update(ctx)
		}),
	)
	return eng.Run(ctx)
}

// clearColor maps the camera orientation to a color so orbiting is visible
// without any geometry.
func clearColor(ctrl camera.Controller) wgpu.Color {
	az := float64(ctrl.Azimuth())
	el := float64(ctrl.Elevation())
	return wgpu.Color{
		R: 0.5 + 0.5*math.Sin(az),
		G: 0.5 + 0.5*math.Sin(el),
		B: 0.5 + 0.5*math.Cos(az),
		A: 1,
	}
}

// checkerboard builds an RGBA checkerboard of the given size and cell size.
func checkerboard(w, h, cell uint32) common.TextureStagingData {
	staging := common.TextureStagingData{
		Pixels: make([]byte, int(w*h)*common.BytesPerPixel),
		Width:  w,
		Height: h,
	}
	for y := range h {
		for x := range w {
			v := byte(40)
			if (x/cell+y/cell)%2 == 0 {
				v = 220
			}
			i := int(y*w+x) * common.BytesPerPixel
			staging.Pixels[i], staging.Pixels[i+1], staging.Pixels[i+2], staging.Pixels[i+3] = v, v, v, 255
		}
	}
	return staging
}
