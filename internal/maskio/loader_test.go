package maskio

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/segeval/internal/scoring"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestCompareNames(t *testing.T) {
	names := []string{"img1.png", "img10.png", "img2.png"}
	slices.SortFunc(names, compareNames)
	assert.Equal(t, []string{"img1.png", "img2.png", "img10.png"}, names)

	assert.Negative(t, compareNames("a9", "a10"))
	assert.Positive(t, compareNames("a10", "a9"))
	assert.Negative(t, compareNames("seg2_b", "seg10_a"))
	assert.Zero(t, compareNames("x", "x"))
}

func TestLoadTextMask(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mask.txt")
	writeFile(t, path, "255,0,255\n\n 10 20 30 \n0.0, 255.0 ,1\n")

	img, err := LoadTextMask(path)
	require.NoError(t, err)

	assert.Equal(t, "mask.txt", img.Name)
	height, width := img.Dims()
	assert.Equal(t, 3, height)
	assert.Equal(t, 3, width)
	assert.Equal(t, 0.0, img.Pixels.At(0, 1))
	assert.Equal(t, 30.0, img.Pixels.At(1, 2))
	assert.Equal(t, 255.0, img.Pixels.At(2, 1))
}

func TestLoadTextMaskErrors(t *testing.T) {
	dir := t.TempDir()

	ragged := filepath.Join(dir, "ragged.txt")
	writeFile(t, ragged, "1,2,3\n4,5\n")
	_, err := LoadTextMask(ragged)
	assert.ErrorIs(t, err, scoring.ErrRaggedRows)

	garbage := filepath.Join(dir, "garbage.txt")
	writeFile(t, garbage, "1,2,x\n")
	_, err = LoadTextMask(garbage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "garbage.txt:1")

	for _, value := range []string{"-5", "300", "255.5"} {
		outOfRange := filepath.Join(dir, "range.txt")
		writeFile(t, outOfRange, "0 "+value+"\n")
		_, err = LoadTextMask(outOfRange)
		assert.Error(t, err, value)
	}

	tooBright := filepath.Join(dir, "bright.txt")
	writeFile(t, tooBright, "0 256\n")
	_, err = LoadTextMask(tooBright)
	assert.ErrorIs(t, err, ErrIntensityRange)

	empty := filepath.Join(dir, "empty.txt")
	writeFile(t, empty, "\n\n")
	_, err = LoadTextMask(empty)
	assert.ErrorIs(t, err, scoring.ErrEmptyImage)

	_, err = LoadTextMask(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadImageGrayscale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg.png")

	src := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := range 3 {
		for x := range 4 {
			src.Set(x, y, color.White)
		}
	}
	src.Set(1, 2, color.Black)
	src.Set(3, 0, color.RGBA{R: 80, G: 80, B: 80, A: 255})
	writePNG(t, path, src)

	img, err := LoadImage(path)
	require.NoError(t, err)

	height, width := img.Dims()
	assert.Equal(t, 3, height)
	assert.Equal(t, 4, width)
	assert.Equal(t, 255.0, img.Pixels.At(0, 0))
	assert.Equal(t, 0.0, img.Pixels.At(2, 1))
	assert.Equal(t, 80.0, img.Pixels.At(0, 3))
}

func TestLoadImageIgnoresAlpha(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transparent.png")

	src := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 0})
	src.SetNRGBA(2, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0})
	writePNG(t, path, src)

	img, err := LoadImage(path)
	require.NoError(t, err)

	assert.Equal(t, 255.0, img.Pixels.At(0, 0))
	assert.Equal(t, 255.0, img.Pixels.At(0, 1), "transparent white stays background")
	assert.Equal(t, 0.0, img.Pixels.At(0, 2))
}

func TestLoadImageCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	writeFile(t, path, "not a png")

	_, err := LoadImage(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode image")
}

func TestListMaskFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"img10.png", "img2.txt", "img1.JPG", "notes.md", "img3.jpeg"} {
		writeFile(t, filepath.Join(dir, name), "")
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "img0.png"), 0o755))

	paths, err := ListMaskFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{"img1.JPG", "img2.txt", "img3.jpeg", "img10.png"}, names)

	_, err = ListMaskFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestLoadFolder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "student10.txt"), "0 255\n255 0\n")
	writeFile(t, filepath.Join(dir, "student2.txt"), "255 255\n0 0\n")

	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.SetGray(0, 0, color.Gray{Y: 7})
	writePNG(t, filepath.Join(dir, "student1.png"), gray)

	images, err := LoadFolder(dir)
	require.NoError(t, err)
	require.Len(t, images, 3)

	assert.Equal(t, "student1.png", images[0].Name)
	assert.Equal(t, "student2.txt", images[1].Name)
	assert.Equal(t, "student10.txt", images[2].Name)
	assert.Equal(t, 7.0, images[0].Pixels.At(0, 0))
	assert.Equal(t, 0.0, images[2].Pixels.At(1, 1))
}

func TestLoadFolderFailsOnCorruptFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a1.txt"), "0 1\n")
	writeFile(t, filepath.Join(dir, "a2.png"), "garbage")

	_, err := LoadFolder(dir)
	assert.Error(t, err)
}

func TestLoadFileUnsupported(t *testing.T) {
	_, err := LoadFile("mask.bmp")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
