package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/prismgfx/prism/engine/config"
	"github.com/prismgfx/prism/engine/core"
	"github.com/prismgfx/prism/engine/platform"
)

// Context owns the instance-level Vulkan state shared by everything the
// renderer creates: the instance, the surface, the selected device, and
// the allocation callbacks.
type Context struct {
	Instance  vk.Instance
	Surface   vk.Surface
	Device    *Device
	Allocator *vk.AllocationCallbacks

	FramebufferWidth  uint32
	FramebufferHeight uint32

	debugMessenger vk.DebugReportCallback

	renderPasses map[string]vk.RenderPass
	framebuffers map[string]vk.Framebuffer
}

// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR, required to see
// MoltenVK devices; not exposed as a named constant by the binding.
const instanceCreateEnumeratePortabilityBit vk.InstanceCreateFlags = 0x00000001

func NewContext(p *platform.Platform, cfg *config.Config) (*Context, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("vulkan loader not available")
		core.LogError(err.Error())
		return nil, err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vulkan: %s", err)
		return nil, err
	}

	ctx := &Context{}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 3, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(cfg.Window.Title),
		PEngineName:        VulkanSafeString("Prism Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{"VK_KHR_surface"}
	extensions = append(extensions, p.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= instanceCreateEnumeratePortabilityBit
	}
	if cfg.Renderer.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)

	var layers []string
	if cfg.Renderer.Validation {
		layers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := verifyLayers(layers); err != nil {
			return nil, err
		}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, ctx.Allocator, &ctx.Instance); res != vk.Success {
		err := fmt.Errorf("failed to create vulkan instance: %s", ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	if err := vk.InitInstance(ctx.Instance); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.LogDebug("vulkan instance created")

	if cfg.Renderer.Validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: debugReportCallback,
		}
		if res := vk.CreateDebugReportCallback(ctx.Instance, &debugCreateInfo, ctx.Allocator, &ctx.debugMessenger); res != vk.Success {
			core.LogWarn("failed to create debug messenger: %s", ResultString(res))
		}
	}

	surfacePtr, err := p.CreateSurface(ctx.Instance)
	if err != nil {
		core.LogError("failed to create window surface: %s", err)
		ctx.Shutdown()
		return nil, err
	}
	ctx.Surface = vk.SurfaceFromPointer(surfacePtr)
	core.LogDebug("vulkan surface created")

	device, err := NewDevice(ctx.Instance, ctx.Surface, ctx.Allocator)
	if err != nil {
		ctx.Shutdown()
		return nil, err
	}
	ctx.Device = device

	width, height := p.FramebufferSize()
	ctx.FramebufferWidth = uint32(width)
	ctx.FramebufferHeight = uint32(height)

	return ctx, nil
}

func verifyLayers(required []string) error {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return fmt.Errorf("failed to enumerate instance layers: %s", ResultString(res))
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return fmt.Errorf("failed to enumerate instance layers: %s", ResultString(res))
	}

	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if VulkanTrimString(string(available[i].LayerName[:])) == name {
				found = true
				break
			}
		}
		if !found {
			err := fmt.Errorf("required validation layer is missing: %s", name)
			core.LogError(err.Error())
			return err
		}
	}
	return nil
}

func debugReportCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] %s", layerPrefix, message)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] %s", layerPrefix, message)
	default:
		core.LogInfo("[%s] %s", layerPrefix, message)
	}
	return vk.Bool32(vk.False)
}

// Shutdown releases instance-level state in reverse creation order.
func (ctx *Context) Shutdown() {
	if ctx.Device != nil {
		ctx.WaitIdle()
		ctx.destroyPassCaches()
		ctx.Device.Destroy()
		ctx.Device = nil
	}
	if ctx.Surface != vk.NullSurface {
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	}
	if ctx.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugMessenger, ctx.Allocator)
		ctx.debugMessenger = vk.NullDebugReportCallback
	}
	if ctx.Instance != nil {
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
		ctx.Instance = nil
	}
}
