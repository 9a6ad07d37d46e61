package converter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"golang.org/x/image/draw"

	"github.com/harliandi/imgtool/internal/codec"
	"github.com/harliandi/imgtool/internal/fsutil"
	"github.com/harliandi/imgtool/internal/geometry"
	"github.com/harliandi/imgtool/internal/rawdecoder"
	"github.com/harliandi/imgtool/pkg/metrics"
	"github.com/harliandi/imgtool/pkg/quality"
)

// RawDecoder converts files the codec cannot read with an external tool.
type RawDecoder interface {
	Decode(ctx context.Context, inputPath string, platform rawdecoder.Platform) (*rawdecoder.Result, error)
}

// Mode names the path a command took.
type Mode string

const (
	ModeConvert  Mode = "convert"
	ModeRaw      Mode = "raw"
	ModeCompress Mode = "compress"
)

// Options tunes a Converter. Zero values fall back to defaults.
type Options struct {
	Search         quality.Options
	ConvertQuality float64
	Filter         draw.Interpolator
	MaxPixels      int
	Platform       rawdecoder.Platform
}

// Converter sequences format checks, decoding, resizing and encoding
type Converter struct {
	codec codec.Codec
	raw   RawDecoder
	opts  Options
}

// New creates a Converter. raw may be nil, in which case unreadable inputs
// fail with ErrInputUnreadable instead of falling back to the raw decoder.
func New(c codec.Codec, raw RawDecoder, opts Options) *Converter {
	if opts.ConvertQuality <= 0 || opts.ConvertQuality > 1 {
		opts.ConvertQuality = 0.85
	}
	if opts.Filter == nil {
		opts.Filter = draw.BiLinear
	}
	return &Converter{codec: c, raw: raw, opts: opts}
}

// HostPlatform returns the raw decoder variant for the running OS.
func HostPlatform() rawdecoder.Platform {
	return rawdecoder.PlatformFor(runtime.GOOS)
}

// Result describes a finished Convert call.
type Result struct {
	Mode       Mode
	Width      int
	Height     int
	OutputPath string
	Bytes      int
	// Raw is set when the external decoder handled the input.
	Raw *rawdecoder.Result
	// ResizeDropped is set when a resize was requested but the raw decoder
	// path cannot honor it.
	ResizeDropped bool
}

// SupportedTypes returns the readable and writable format tokens
func (c *Converter) SupportedTypes() (read, write []string) {
	return c.codec.ReadFormats(), c.codec.WriteFormats()
}

// Convert loads inPath, resizes it per g and writes it in the format implied
// by outPath. Inputs the codec cannot read are handed to the raw decoder,
// which ignores g and outPath.
func (c *Converter) Convert(ctx context.Context, inPath string, g geometry.Spec, outPath string) (res *Result, err error) {
	start := time.Now()
	var inBytes int64
	defer func() {
		mode, outBytes := ModeConvert, int64(0)
		if res != nil {
			mode, outBytes = res.Mode, int64(res.Bytes)
		}
		metrics.RecordConversion(string(mode), statusOf(err), time.Since(start).Seconds(), inBytes, outBytes)
	}()

	if err := g.Validate(); err != nil {
		return nil, err
	}

	inFormat := codec.FormatOf(inPath)
	if !c.codec.CanRead(inFormat) {
		return c.decodeRaw(ctx, inPath, g)
	}

	outFormat := codec.FormatOf(outPath)
	if !c.codec.CanWrite(outFormat) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOutputFormat, outFormat)
	}

	img, n, err := c.load(inPath, inFormat)
	if err != nil {
		return nil, err
	}
	inBytes = n

	b := img.Bounds()
	size, err := geometry.Resolve(b.Dx(), b.Dy(), g)
	if err != nil {
		return nil, err
	}
	if err := ValidateSize(size.Width, size.Height, c.opts.MaxPixels); err != nil {
		return nil, err
	}

	out := codec.Resample(img, size.Width, size.Height, codec.NeedsRGB(c.codec, img, outFormat), c.opts.Filter)

	var buf bytes.Buffer
	if err := c.codec.Encode(&buf, out, outFormat, c.opts.ConvertQuality); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedOutputFormat, err)
	}
	if err := fsutil.WriteFileAtomic(outPath, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputUnwritable, err)
	}

	return &Result{
		Mode:       ModeConvert,
		Width:      size.Width,
		Height:     size.Height,
		OutputPath: outPath,
		Bytes:      buf.Len(),
	}, nil
}

func (c *Converter) decodeRaw(ctx context.Context, inPath string, g geometry.Spec) (*Result, error) {
	if c.raw == nil {
		return nil, fmt.Errorf("%w: no decoder for %q", ErrInputUnreadable, codec.FormatOf(inPath))
	}

	raw, err := c.raw.Decode(ctx, inPath, c.opts.Platform)
	if raw != nil {
		metrics.RecordRawDecode(raw.Status.String())
	}
	res := &Result{
		Mode:          ModeRaw,
		Raw:           raw,
		ResizeDropped: !g.IsIdentity(),
	}
	if raw != nil {
		res.OutputPath = raw.OutputPath
	}
	return res, err
}

// load opens and decodes path, returning the image and the file size.
func (c *Converter) load(path, format string) (image.Image, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrInputUnreadable, err)
	}
	defer f.Close()

	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	img, err := c.decode(bufio.NewReader(f), format)
	if err != nil {
		return nil, size, fmt.Errorf("%w: %v", ErrInputUnreadable, err)
	}
	if err := ValidateImage(img, c.opts.MaxPixels); err != nil {
		return nil, size, err
	}
	return img, size, nil
}

// decode converts decoder panics on malformed input into ErrInputUnreadable.
func (c *Converter) decode(r io.Reader, format string) (img image.Image, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("PANIC recovered decoding %s: %v\n%s", format, p, debug.Stack())
			img, err = nil, fmt.Errorf("decoder panic: %v", p)
		}
	}()
	return c.codec.Decode(r, format)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
