package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/scenert/meshrt/rt/gpu"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h)))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestDecodeTextureMipChain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(4, 2)))

	tex, err := DecodeTexture("brick.png", &buf, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), tex.Width)
	assert.Equal(t, uint32(2), tex.Height)
	assert.Equal(t, gpu.FormatRGBA8UnormSRGB, tex.Format)

	require.Len(t, tex.Regions, 3)
	assert.Equal(t, gpu.CopyRegion{MipLevel: 1, Width: 2, Height: 1, Offset: 32}, tex.Regions[1])
	assert.Equal(t, gpu.CopyRegion{MipLevel: 2, Width: 1, Height: 1, Offset: 40}, tex.Regions[2])
	require.Len(t, tex.Pixels, 44)
	assert.Equal(t, []byte{200, 100, 50, 255}, tex.Pixels[40:44], "a uniform image stays uniform when scaled")
}

func TestDecodeTextureWithoutMips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(3, 3)))

	tex, err := DecodeTexture("flat.png", &buf, false)
	require.NoError(t, err)
	assert.Len(t, tex.Regions, 1)
	assert.Len(t, tex.Pixels, 36)
}

func TestDecodeTextureRejectsGarbage(t *testing.T) {
	_, err := DecodeTexture("junk", bytes.NewReader([]byte("not an image")), true)
	assert.Error(t, err)
}

func TestTextureDecoderKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, size := range []int{8, 2, 4, 1} {
		p := filepath.Join(dir, string(rune('a'+i))+".png")
		writePNG(t, p, size, size)
		paths = append(paths, p)
	}

	d := NewTextureDecoder(3, nil)
	defer d.Close()

	out, err := d.DecodeFiles(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, out, 4)
	for i, size := range []uint32{8, 2, 4, 1} {
		assert.Equal(t, size, out[i].Width)
		assert.Equal(t, filepath.Base(paths[i]), out[i].Label)
	}
}

func TestTextureDecoderReportsMissingFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	writePNG(t, good, 2, 2)

	d := NewTextureDecoder(2, nil)
	defer d.Close()

	_, err := d.DecodeFiles(context.Background(), []string{good, filepath.Join(dir, "missing.png")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
