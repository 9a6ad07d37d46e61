package codec

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
)

// PixelFormat is a coarse tag for the pixel layout of a decoded image.
type PixelFormat string

const (
	PixelIndexed PixelFormat = "indexed"
	PixelGray    PixelFormat = "gray"
	PixelAlpha   PixelFormat = "alpha"
	PixelRGB     PixelFormat = "rgb"
)

// PixelFormatOf classifies img by its concrete type.
func PixelFormatOf(img image.Image) PixelFormat {
	switch img.(type) {
	case *image.Paletted:
		return PixelIndexed
	case *image.Gray, *image.Gray16, *image.Alpha, *image.Alpha16:
		return PixelGray
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.NYCbCrA:
		return PixelAlpha
	default:
		return PixelRGB
	}
}

// NeedsRGB reports whether a resized copy of img written as format must use
// a plain opaque RGB layout instead of the source's own layout: indexed and
// gray sources, and lossy formats without alpha.
func NeedsRGB(c Codec, img image.Image, format string) bool {
	switch PixelFormatOf(img) {
	case PixelIndexed, PixelGray:
		return true
	}
	return c.SupportsQuality(format) && !c.HasAlpha(format)
}

// Filters maps RESAMPLE_FILTER names to x/image/draw scalers.
var Filters = map[string]draw.Interpolator{
	"nearest":    draw.NearestNeighbor,
	"approx":     draw.ApproxBiLinear,
	"bilinear":   draw.BiLinear,
	"catmullrom": draw.CatmullRom,
}

// FilterByName returns the named interpolator, falling back to bilinear.
func FilterByName(name string) draw.Interpolator {
	if f, ok := Filters[strings.ToLower(name)]; ok {
		return f
	}
	return draw.BiLinear
}

// Resample draws src scaled into a new width x height image. With forceRGB
// the destination is opaque RGB over black; otherwise it keeps an alpha
// capable layout matching the source as closely as draw.Image allows.
func Resample(src image.Image, width, height int, forceRGB bool, filter draw.Interpolator) image.Image {
	var scaler draw.Scaler = filter
	if filter == nil {
		scaler = draw.BiLinear
	}
	rect := image.Rect(0, 0, width, height)
	sb := src.Bounds()
	// Same size: plain copy, no interpolation.
	if sb.Dx() == width && sb.Dy() == height {
		scaler = copier{}
	}

	if forceRGB {
		rgb := image.NewRGBA(rect)
		draw.Draw(rgb, rect, image.NewUniform(color.Black), image.Point{}, draw.Src)
		scaler.Scale(rgb, rect, src, sb, draw.Over, nil)
		return rgb
	}

	dst := newLike(src, rect)
	scaler.Scale(dst, rect, src, sb, draw.Src, nil)
	return dst
}

type copier struct{}

func (copier) Scale(dst draw.Image, dr image.Rectangle, src image.Image, sr image.Rectangle, op draw.Op, _ *draw.Options) {
	draw.Draw(dst, dr, src, sr.Min, op)
}

func newLike(src image.Image, rect image.Rectangle) draw.Image {
	switch src.(type) {
	case *image.NRGBA:
		return image.NewNRGBA(rect)
	case *image.NRGBA64:
		return image.NewNRGBA64(rect)
	case *image.RGBA64:
		return image.NewRGBA64(rect)
	default:
		return image.NewRGBA(rect)
	}
}

// toRGBA returns img as *image.RGBA, copying when needed.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
