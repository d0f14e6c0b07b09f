package gpu

import (
	"errors"
	"time"
)

var (
	// ErrSwapchainOutOfDate is returned by Swapchain.Acquire and Swapchain.Present
	// when the presentable images no longer match the surface (resize, suboptimal).
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	// ErrDeviceLost is fatal: rendering cannot continue.
	ErrDeviceLost = errors.New("device lost")
)

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageStorage
	BufferUsageUniform
	BufferUsageCopyDst
)

type Format uint32

const (
	FormatRGBA8Unorm Format = iota
	FormatRGBA8UnormSRGB
	FormatBGRA8Unorm
	FormatBGRA8UnormSRGB
	FormatDepth32Float
)

func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8UnormSRGB, FormatBGRA8Unorm, FormatBGRA8UnormSRGB, FormatDepth32Float:
		return 4
	}
	return 0
}

type ImageUsage uint32

const (
	ImageUsageSampled ImageUsage = 1 << iota
	ImageUsageCopyDst
	ImageUsageCopySrc
	ImageUsageRenderAttachment
)

type ImageDesc struct {
	Label     string
	Width     uint32
	Height    uint32
	Format    Format
	Usage     ImageUsage
	MipLevels uint32
}

type Buffer interface {
	Label() string
	Size() uint64
	Release()
}

type Image interface {
	Width() uint32
	Height() uint32
	MipLevels() uint32
	Format() Format
	Release()
}

type Sampler interface {
	Desc() SamplerDesc
	Release()
}

// Fence is signalled by the device when a submission completes.
type Fence interface {
	// Wait blocks until the fence is signalled or timeout elapses. It reports false
	// on timeout.
	Wait(timeout time.Duration) (bool, error)
	Reset() error
	Release()
}

type Semaphore interface {
	Release()
}

type RenderPass struct {
	Color      Image
	Depth      Image
	SceneData  Buffer
	ClearColor [4]float32
	ClearDepth float32
}

// CommandBuffer records one frame's work. Barriers and layout transitions are the
// recorder's business; the frame scheduler only begins, submits and reuses it.
type CommandBuffer interface {
	Begin() error
	BeginRenderPass(pass RenderPass) error
	BindIndexBuffer(buf Buffer)
	SetDrawConstants(c DrawConstants)
	DrawIndexed(indexCount, firstIndex uint32)
	EndRenderPass() error
	End() error
	Release()
}

type Device interface {
	CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error)
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	CreateImage(desc ImageDesc) (Image, error)
	WriteImage(img Image, region CopyRegion, data []byte) error
	CreateSampler(desc SamplerDesc) (Sampler, error)
	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore() (Semaphore, error)
	CreateCommandBuffer(label string) (CommandBuffer, error)
	// Submit queues cmd. It waits on wait before executing and signals signal and
	// fence on completion. Any argument but cmd may be nil.
	Submit(cmd CommandBuffer, wait, signal Semaphore, fence Fence) error
	// SubmitUpload blocks until every pending upload write has reached the GPU.
	SubmitUpload() error
	WaitIdle() error
}

type SwapchainImage struct {
	Index uint32
	Image Image
}

type Swapchain interface {
	Acquire(signal Semaphore, timeout time.Duration) (SwapchainImage, error)
	Present(img SwapchainImage, wait Semaphore) error
	Recreate(width, height uint32) error
	Extent() (width, height uint32)
	ImageCount() int
}

// Binder receives the textures of a loaded scene, one per slot, for shader access.
type Binder interface {
	WriteImage(slot uint32, img Image, sampler Sampler) error
}
