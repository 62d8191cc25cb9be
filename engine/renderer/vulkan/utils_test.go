package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestVulkanSafeString(t *testing.T) {
	assert.Equal(t, "abc\x00", VulkanSafeString("abc"))
	assert.Equal(t, "abc\x00", VulkanSafeString("abc\x00"))
	assert.Equal(t, "\x00", VulkanSafeString(""))
}

func TestVulkanTrimString(t *testing.T) {
	assert.Equal(t, "abc", VulkanTrimString("abc\x00\x00junk"))
	assert.Equal(t, "abc", VulkanTrimString("abc"))
	assert.Equal(t, "", VulkanTrimString("\x00"))
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "VK_SUCCESS", ResultString(vk.Success))
	assert.Equal(t, "VK_ERROR_OUT_OF_DATE_KHR", ResultString(vk.ErrorOutOfDate))
	assert.Contains(t, ResultString(vk.Result(-9999)), "-9999")
}
