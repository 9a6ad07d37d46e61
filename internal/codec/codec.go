// Package codec wraps the image decoders and encoders available to imgtool
// behind a single format-token keyed interface.
package codec

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrium/goheif"
	webp "github.com/chai2010/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var (
	// ErrUnsupportedFormat is returned when no decoder or encoder is
	// registered for a format token.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Codec reads and writes images by format token ("jpg", "png", ...).
type Codec interface {
	CanRead(format string) bool
	CanWrite(format string) bool
	ReadFormats() []string
	WriteFormats() []string
	// SupportsQuality reports whether Encode output depends on quality.
	SupportsQuality(format string) bool
	// HasAlpha reports whether format can store an alpha channel.
	HasAlpha(format string) bool
	Decode(r io.Reader, format string) (image.Image, error)
	// Encode writes img in format. quality is in [0, 1] and is ignored by
	// formats without a lossy mode.
	Encode(w io.Writer, img image.Image, format string, quality float64) error
}

type decodeFunc func(io.Reader) (image.Image, error)

type encodeFunc func(io.Writer, image.Image, float64) error

type entry struct {
	decode   decodeFunc
	encode   encodeFunc
	lossy    bool
	hasAlpha bool
}

// Registry is the default Codec, backed by the standard library codecs,
// golang.org/x/image, chai2010/webp and goheif.
type Registry struct {
	formats map[string]entry
}

var _ Codec = (*Registry)(nil)

// New returns a Registry with every built-in format registered.
func New() *Registry {
	jpegEntry := entry{decode: jpeg.Decode, encode: encodeJPEG, lossy: true}
	tiffEntry := entry{decode: tiff.Decode, encode: encodeTIFF, hasAlpha: true}
	heifEntry := entry{decode: goheif.Decode}

	return &Registry{formats: map[string]entry{
		"jpg":  jpegEntry,
		"jpeg": jpegEntry,
		"png":  {decode: png.Decode, encode: encodePNG, hasAlpha: true},
		"gif":  {decode: gif.Decode, encode: encodeGIF, hasAlpha: true},
		"bmp":  {decode: bmp.Decode, encode: encodeBMP},
		"tif":  tiffEntry,
		"tiff": tiffEntry,
		"webp": {decode: webp.Decode, encode: encodeWebP, lossy: true, hasAlpha: true},
		"heic": heifEntry,
		"heif": heifEntry,
	}}
}

// FormatOf returns the lower-cased format token of path: the text after the
// last '.' of the file name, or "" when there is none.
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func (r *Registry) lookup(format string) (entry, bool) {
	e, ok := r.formats[strings.ToLower(format)]
	return e, ok
}

func (r *Registry) CanRead(format string) bool {
	e, ok := r.lookup(format)
	return ok && e.decode != nil
}

func (r *Registry) CanWrite(format string) bool {
	e, ok := r.lookup(format)
	return ok && e.encode != nil
}

func (r *Registry) SupportsQuality(format string) bool {
	e, ok := r.lookup(format)
	return ok && e.encode != nil && e.lossy
}

func (r *Registry) HasAlpha(format string) bool {
	e, ok := r.lookup(format)
	return ok && e.hasAlpha
}

func (r *Registry) ReadFormats() []string {
	return r.list(func(e entry) bool { return e.decode != nil })
}

func (r *Registry) WriteFormats() []string {
	return r.list(func(e entry) bool { return e.encode != nil })
}

func (r *Registry) list(keep func(entry) bool) []string {
	var out []string
	for name, e := range r.formats {
		if keep(e) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Decode(src io.Reader, format string) (image.Image, error) {
	e, ok := r.lookup(format)
	if !ok || e.decode == nil {
		return nil, fmt.Errorf("%w: cannot read %q", ErrUnsupportedFormat, format)
	}
	img, err := e.decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	return img, nil
}

func (r *Registry) Encode(w io.Writer, img image.Image, format string, quality float64) error {
	e, ok := r.lookup(format)
	if !ok || e.encode == nil {
		return fmt.Errorf("%w: cannot write %q", ErrUnsupportedFormat, format)
	}
	return e.encode(w, img, quality)
}

// jpegQuality maps [0, 1] onto the encoder's 1..100 scale.
func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	return min(max(v, 1), 100)
}

func encodeJPEG(w io.Writer, img image.Image, q float64) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality(q)})
}

func encodeWebP(w io.Writer, img image.Image, q float64) error {
	q = min(max(q, 0), 1)
	return webp.Encode(w, toRGBA(img), &webp.Options{Quality: float32(q * 100)})
}

func encodePNG(w io.Writer, img image.Image, _ float64) error {
	return png.Encode(w, img)
}

func encodeGIF(w io.Writer, img image.Image, _ float64) error {
	return gif.Encode(w, img, nil)
}

func encodeBMP(w io.Writer, img image.Image, _ float64) error {
	return bmp.Encode(w, img)
}

func encodeTIFF(w io.Writer, img image.Image, _ float64) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}
