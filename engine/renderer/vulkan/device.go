package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/prismgfx/prism/engine/core"
)

// Device bundles the selected physical device, the logical device created
// on it, and the queues the renderer submits to.
type Device struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	Properties     vk.PhysicalDeviceProperties

	GraphicsQueueFamily uint32
	PresentQueueFamily  uint32
	TransferQueueFamily uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue

	GraphicsCommandPool vk.CommandPool

	allocator *vk.AllocationCallbacks
}

// SwapchainSupportInfo captures what the surface supports on a device.
type SwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

type queueFamilyIndices struct {
	graphics int
	present  int
	transfer int
}

func NewDevice(instance vk.Instance, surface vk.Surface, allocator *vk.AllocationCallbacks) (*Device, error) {
	var deviceCount uint32
	vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)
	if deviceCount == 0 {
		err := fmt.Errorf("no Vulkan capable devices found")
		core.LogError(err.Error())
		return nil, err
	}
	physicalDevices := make([]vk.PhysicalDevice, deviceCount)
	vk.EnumeratePhysicalDevices(instance, &deviceCount, physicalDevices)

	device := &Device{allocator: allocator}
	var families queueFamilyIndices
	found := false
	for _, candidate := range physicalDevices {
		indices, ok := findQueueFamilies(candidate, surface)
		if !ok {
			continue
		}
		if !supportsExtension(candidate, vk.KhrSwapchainExtensionName) {
			continue
		}
		support, err := querySwapchainSupport(candidate, surface)
		if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
			continue
		}
		device.PhysicalDevice = candidate
		families = indices
		found = true

		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(candidate, &properties)
		properties.Deref()
		device.Properties = properties
		if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			break
		}
	}
	if !found {
		err := fmt.Errorf("no suitable physical device found")
		core.LogError(err.Error())
		return nil, err
	}

	device.GraphicsQueueFamily = uint32(families.graphics)
	device.PresentQueueFamily = uint32(families.present)
	if families.transfer >= 0 {
		device.TransferQueueFamily = uint32(families.transfer)
	} else {
		// No dedicated transfer family on this device. Sharing the
		// graphics family serializes uploads behind rendering work.
		device.TransferQueueFamily = device.GraphicsQueueFamily
	}
	core.LogInfo("selected device %s (graphics family %d, present family %d, transfer family %d)",
		VulkanTrimString(string(device.Properties.DeviceName[:])),
		device.GraphicsQueueFamily, device.PresentQueueFamily, device.TransferQueueFamily)

	if err := device.createLogicalDevice(); err != nil {
		return nil, err
	}

	vk.GetDeviceQueue(device.LogicalDevice, device.GraphicsQueueFamily, 0, &device.GraphicsQueue)
	vk.GetDeviceQueue(device.LogicalDevice, device.PresentQueueFamily, 0, &device.PresentQueue)
	vk.GetDeviceQueue(device.LogicalDevice, device.TransferQueueFamily, 0, &device.TransferQueue)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: device.GraphicsQueueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, allocator, &device.GraphicsCommandPool); res != vk.Success {
		err := fmt.Errorf("failed to create graphics command pool: %s", ResultString(res))
		core.LogError(err.Error())
		device.Destroy()
		return nil, err
	}

	return device, nil
}

func (d *Device) createLogicalDevice() error {
	uniqueFamilies := map[uint32]struct{}{
		d.GraphicsQueueFamily: {},
		d.PresentQueueFamily:  {},
		d.TransferQueueFamily: {},
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, 0, len(uniqueFamilies))
	for family := range uniqueFamilies {
		queueCreateInfos = append(queueCreateInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	extensions := []string{VulkanSafeString(vk.KhrSwapchainExtensionName)}
	if supportsExtension(d.PhysicalDevice, "VK_KHR_portability_subset") {
		extensions = append(extensions, VulkanSafeString("VK_KHR_portability_subset"))
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	if res := vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, d.allocator, &d.LogicalDevice); res != vk.Success {
		err := fmt.Errorf("failed to create logical device: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (d *Device) QuerySwapchainSupport(surface vk.Surface) (*SwapchainSupportInfo, error) {
	return querySwapchainSupport(d.PhysicalDevice, surface)
}

func (d *Device) Destroy() {
	if d.GraphicsCommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, d.allocator)
		d.GraphicsCommandPool = vk.NullCommandPool
	}
	if d.LogicalDevice != nil {
		vk.DestroyDevice(d.LogicalDevice, d.allocator)
		d.LogicalDevice = nil
	}
}

func findQueueFamilies(device vk.PhysicalDevice, surface vk.Surface) (queueFamilyIndices, bool) {
	indices := queueFamilyIndices{graphics: -1, present: -1, transfer: -1}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, nil)
	familyProperties := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, familyProperties)

	for i := range familyProperties {
		familyProperties[i].Deref()
		flags := familyProperties[i].QueueFlags

		if indices.graphics < 0 && flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			indices.graphics = i
		}
		if flags&vk.QueueFlags(vk.QueueTransferBit) != 0 && flags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			indices.transfer = i
		}
		if indices.present < 0 {
			var supported vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supported)
			if supported == vk.True {
				indices.present = i
			}
		}
	}

	return indices, indices.graphics >= 0 && indices.present >= 0
}

func supportsExtension(device vk.PhysicalDevice, name string) bool {
	var count uint32
	vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)
	properties := make([]vk.ExtensionProperties, count)
	vk.EnumerateDeviceExtensionProperties(device, "", &count, properties)

	for i := range properties {
		properties[i].Deref()
		if VulkanTrimString(string(properties[i].ExtensionName[:])) == VulkanTrimString(name) {
			return true
		}
	}
	return false
}

func querySwapchainSupport(device vk.PhysicalDevice, surface vk.Surface) (*SwapchainSupportInfo, error) {
	support := &SwapchainSupportInfo{}

	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(device, surface, &capabilities); res != vk.Success {
		return nil, fmt.Errorf("failed to query surface capabilities: %s", ResultString(res))
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()
	support.Capabilities = capabilities

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil)
	support.Formats = make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, support.Formats)
	for i := range support.Formats {
		support.Formats[i].Deref()
	}

	var modeCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &modeCount, nil)
	support.PresentModes = make([]vk.PresentMode, modeCount)
	vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &modeCount, support.PresentModes)

	return support, nil
}
