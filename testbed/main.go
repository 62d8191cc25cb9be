package main

import (
	"flag"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/prismgfx/prism/engine/assets"
	"github.com/prismgfx/prism/engine/config"
	"github.com/prismgfx/prism/engine/core"
	"github.com/prismgfx/prism/engine/platform"
	"github.com/prismgfx/prism/engine/renderer/vulkan"
)

func main() {
	configPath := flag.String("config", "prism.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		core.LogFatal("failed to load configuration: %s", err)
	}
	if err := cfg.Validate(); err != nil {
		core.LogFatal("invalid configuration: %s", err)
	}
	core.LogSetLevel(cfg.LogLevel())

	if err := run(cfg); err != nil {
		core.LogFatal("%s", err)
	}
}

func run(cfg *config.Config) error {
	p := platform.New()
	if err := p.Startup(cfg.Window.Title, cfg.Window.PosX, cfg.Window.PosY, cfg.Window.Width, cfg.Window.Height); err != nil {
		return err
	}
	defer p.Shutdown()

	ctx, err := vulkan.NewContext(p, cfg)
	if err != nil {
		return err
	}
	defer ctx.Shutdown()

	target, err := vulkan.NewSwapchainRenderTarget(ctx, ctx.FramebufferWidth, ctx.FramebufferHeight)
	if err != nil {
		return err
	}
	defer target.Destroy()

	renderer, err := vulkan.NewPrimaryRenderer(ctx)
	if err != nil {
		return err
	}
	defer renderer.Destroy()
	defer ctx.WaitIdle()

	var clear vk.ClearValue
	clear.SetColor(cfg.Renderer.ClearColor[:])
	renderer.SetClearValue(0, &clear)

	if cfg.Renderer.ShaderDir != "" {
		watcher, err := assets.NewShaderWatcher(cfg.Renderer.ShaderDir, func(path string) {
			core.LogInfo("shader %s recompiled, restart to pick it up", path)
		})
		if err != nil {
			core.LogWarn("shader watching disabled: %s", err)
		} else {
			defer watcher.Close()
		}
	}

	p.OnKey(func(key glfw.Key, action glfw.Action) {
		if key == glfw.KeyEscape && action == glfw.Press {
			p.RequestClose()
		}
	})

	clock := core.NewClock()
	clock.Start()
	core.MetricsInitialize()

	frames := 0
	lastElapsed := 0.0
	for !p.ShouldClose() {
		p.PollEvents()

		if err := renderer.DrawFrame(target, func(pass *vulkan.RenderPassRecorder) {
			// Clear-only frame. Draw calls go here once the testbed
			// grows real scene content.
		}); err != nil {
			return err
		}

		clock.Update()
		elapsed := clock.Elapsed()
		core.MetricsUpdate(elapsed - lastElapsed)
		lastElapsed = elapsed
		frames++
		if frames%600 == 0 {
			core.LogDebug("%.1f fps (%.2f ms)", core.MetricsFPS(), core.MetricsFrameTime())
		}
	}

	return nil
}
