// Package maskio loads segmentation masks from disk into intensity images.
package maskio

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // registers JPEG decoding
	_ "image/png"  // registers PNG decoding
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/maruel/natural"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/segeval/internal/scoring"
)

const (
	maxTextMaskLine = 16 * 1024 * 1024
	maxIntensity    = 255
)

var (
	ErrUnsupportedFormat = errors.New("unsupported mask file extension")
	ErrIntensityRange    = errors.New("intensity out of range")
)

// Loader reads one mask file.
type Loader func(path string) (scoring.IntensityImage, error)

var loaders = map[string]Loader{
	".jpg":  LoadImage,
	".jpeg": LoadImage,
	".png":  LoadImage,
	".txt":  LoadTextMask,
}

// LoadImage decodes a PNG or JPEG file and converts it to 8-bit luminance.
func LoadImage(path string) (scoring.IntensityImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return scoring.IntensityImage{}, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return scoring.IntensityImage{}, fmt.Errorf("decode image %s: %w", path, err)
	}

	bounds := src.Bounds()
	if bounds.Empty() {
		return scoring.IntensityImage{}, fmt.Errorf("%s: %w", path, scoring.ErrEmptyImage)
	}

	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), opaqueImage{src}, bounds.Min, draw.Src)

	height, width := bounds.Dy(), bounds.Dx()
	pixels := mat.NewDense(height, width, nil)
	for y := range height {
		for x := range width {
			pixels.Set(y, x, float64(gray.GrayAt(x, y).Y))
		}
	}

	log.Trace().Str("path", path).Str("format", format).Int("height", height).Int("width", width).Msg("decoded image mask")
	return scoring.NewIntensityImageFromDense(filepath.Base(path), pixels)
}

// opaqueImage drops alpha and keeps the straight colour channels, so a
// transparent pixel reads as its RGB value rather than as black.
type opaqueImage struct {
	image.Image
}

func (o opaqueImage) ColorModel() color.Model {
	return color.NRGBAModel
}

func (o opaqueImage) At(x, y int) color.Color {
	switch c := o.Image.At(x, y).(type) {
	case color.NRGBA:
		c.A = 0xff
		return c
	case color.NRGBA64:
		c.A = 0xffff
		return c
	case color.Gray, color.Gray16:
		return c
	default:
		// premultiplied sources have nothing to recover at alpha 0
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		n.A = 0xff
		return n
	}
}

// LoadTextMask reads a plain-text intensity grid: one row per non-blank line,
// values separated by commas and/or whitespace.
func LoadTextMask(path string) (scoring.IntensityImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return scoring.IntensityImage{}, fmt.Errorf("open text mask %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTextMaskLine)

	var rows [][]int
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.FieldsFunc(scanner.Text(), func(r rune) bool {
			return r == ',' || r == ';' || unicode.IsSpace(r)
		})
		if len(fields) == 0 {
			continue
		}

		row := make([]int, len(fields))
		for i, field := range fields {
			v, err := parseIntensity(field)
			if err != nil {
				return scoring.IntensityImage{}, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return scoring.IntensityImage{}, fmt.Errorf("read text mask %s: %w", path, err)
	}

	return scoring.NewIntensityImage(filepath.Base(path), rows)
}

// parseIntensity accepts integers and integral decimals such as "255.0" in
// the 8-bit range decoded images have.
func parseIntensity(field string) (int, error) {
	f, err := strconv.ParseFloat(field, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid intensity %q", field)
	}
	if f < 0 || f > maxIntensity {
		return 0, fmt.Errorf("intensity %q outside 0..%d: %w", field, maxIntensity, ErrIntensityRange)
	}
	return int(f), nil
}

// LoadFile picks a loader from the file extension.
func LoadFile(path string) (scoring.IntensityImage, error) {
	loader, ok := loaders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return scoring.IntensityImage{}, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	return loader(path)
}

// ListMaskFiles returns the mask files in dir in natural order. Subdirectories
// and files with other extensions are skipped.
func ListMaskFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list mask folder %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := loaders[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			log.Trace().Str("file", entry.Name()).Msg("skipping non-mask file")
			continue
		}
		names = append(names, entry.Name())
	}

	slices.SortFunc(names, compareNames)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// compareNames orders file names naturally ("img2" before "img10") and falls
// back to byte order so the ordering is total.
func compareNames(a, b string) int {
	switch {
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// LoadFolder loads every mask in dir in natural order. The first file that
// fails to load aborts the whole folder.
func LoadFolder(dir string) ([]scoring.IntensityImage, error) {
	paths, err := ListMaskFiles(dir)
	if err != nil {
		return nil, err
	}

	images := make([]scoring.IntensityImage, 0, len(paths))
	for _, path := range paths {
		img, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		height, width := img.Dims()
		log.Debug().Str("mask", img.Name).Int("height", height).Int("width", width).Msg("loaded mask")
		images = append(images, img)
	}

	log.Info().Str("dir", dir).Int("masks", len(images)).Msg("Loaded mask folder")
	return images, nil
}
