package assets

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gekko3d/scenert"
	"github.com/gekko3d/scenert/meshrt/rt/gpu"

	"github.com/Carmen-Shannon/automation/tools/worker"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeTexture reads an image in any registered format (png, jpeg, bmp, tiff,
// webp) and converts it to tightly packed RGBA. With mips set the full chain is
// generated by bilinear downsampling.
func DecodeTexture(label string, r io.Reader, mips bool) (TextureData, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return TextureData{}, fmt.Errorf("decode %s: %w", label, err)
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return TextureData{}, fmt.Errorf("decode %s: empty image", label)
	}
	base := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(base, base.Bounds(), src, b.Min, draw.Src)
	return FromRGBA(label, base, mips), nil
}

// FromRGBA packs img and, optionally, its mip chain into a TextureData.
func FromRGBA(label string, img *image.RGBA, mips bool) TextureData {
	w, h := uint32(img.Bounds().Dx()), uint32(img.Bounds().Dy())
	levels := uint32(1)
	if mips {
		levels = gpu.MipLevelCount(w, h)
	}
	regions, total := gpu.MipRegions(w, h, levels, 4)
	pixels := make([]byte, 0, total)

	level := img
	for i, r := range regions {
		if i > 0 {
			next := image.NewRGBA(image.Rect(0, 0, int(r.Width), int(r.Height)))
			draw.BiLinear.Scale(next, next.Bounds(), level, level.Bounds(), draw.Src, nil)
			level = next
		}
		pixels = appendPacked(pixels, level)
	}
	return TextureData{
		Label:   label,
		Width:   w,
		Height:  h,
		Format:  gpu.FormatRGBA8UnormSRGB,
		Pixels:  pixels,
		Regions: regions,
	}
}

// appendPacked copies img row by row, dropping any stride padding.
func appendPacked(dst []byte, img *image.RGBA) []byte {
	b := img.Bounds()
	row := b.Dx() * 4
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		dst = append(dst, img.Pix[off:off+row]...)
	}
	return dst
}

// TextureDecoder decodes texture files in parallel on a worker pool.
type TextureDecoder struct {
	pool worker.DynamicWorkerPool
	log  scenert.Logger
	// Mips requests a full mip chain for every decoded texture.
	Mips bool
}

func NewTextureDecoder(workers int, logger scenert.Logger) *TextureDecoder {
	if workers <= 0 {
		workers = 1
	}
	return &TextureDecoder{
		pool: worker.NewDynamicWorkerPool(workers, 256, time.Second),
		log:  scenert.Sub(logger, "textures"),
		Mips: true,
	}
}

// DecodeFiles decodes every path and returns the textures in input order. The
// first failure is returned once all tasks have finished.
func (d *TextureDecoder) DecodeFiles(ctx context.Context, paths []string) ([]TextureData, error) {
	out := make([]TextureData, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		id, path := i, p
		d.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				if err := ctx.Err(); err != nil {
					errs[id] = err
					return nil, err
				}
				start := time.Now()
				tex, err := decodeFile(path, d.Mips)
				if err != nil {
					errs[id] = err
					return nil, err
				}
				out[id] = tex
				d.log.Debugf("decoded %s (%dx%d, %d mips) in %v", tex.Label, tex.Width, tex.Height, len(tex.Regions), time.Since(start))
				return nil, nil
			},
		})
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeFile(path string, mips bool) (TextureData, error) {
	f, err := os.Open(path)
	if err != nil {
		return TextureData{}, err
	}
	defer f.Close()
	return DecodeTexture(filepath.Base(path), f, mips)
}

// Close stops the pool's workers.
func (d *TextureDecoder) Close() {
	d.pool.Stop()
}
