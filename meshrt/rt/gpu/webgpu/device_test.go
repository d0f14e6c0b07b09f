package webgpu

import (
	"errors"
	"testing"

	"github.com/gekko3d/scenert/meshrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestSurfaceError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"GetCurrentTexture() failed with status: Outdated", gpu.ErrSwapchainOutOfDate},
		{"surface Lost", gpu.ErrSwapchainOutOfDate},
		{"texture is suboptimal", gpu.ErrSwapchainOutOfDate},
		{"OutOfMemory", gpu.ErrDeviceLost},
		{"timeout", gpu.ErrDeviceLost},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			cause := errors.New(tt.msg)
			err := surfaceError("acquire", cause)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestFormatMapping(t *testing.T) {
	for _, f := range []gpu.Format{gpu.FormatRGBA8Unorm, gpu.FormatRGBA8UnormSRGB, gpu.FormatBGRA8UnormSRGB} {
		assert.Equal(t, f, surfaceFormat(textureFormat(f)))
	}
	assert.Equal(t, wgpu.TextureFormatDepth32Float, textureFormat(gpu.FormatDepth32Float))
	assert.Equal(t, gpu.FormatBGRA8Unorm, surfaceFormat(wgpu.TextureFormatBGRA8Unorm))
}

func TestUsageMapping(t *testing.T) {
	assert.Equal(t, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst,
		bufferUsage(gpu.BufferUsageStorage|gpu.BufferUsageCopyDst))
	assert.Equal(t, wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst,
		imageUsage(gpu.ImageUsageSampled|gpu.ImageUsageCopyDst))
	assert.Equal(t, wgpu.FilterModeNearest, filterMode(gpu.FilterNearest))
	assert.Equal(t, wgpu.FilterModeLinear, filterMode(gpu.FilterLinear))
}

func TestFenceWithoutSubmission(t *testing.T) {
	f := &Fence{}
	ok, err := f.Wait(0)
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.NoError(t, f.Reset())
}
