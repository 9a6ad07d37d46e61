// Package quality finds the highest encoder quality whose output fits a
// byte budget.
package quality

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"
)

var (
	// ErrTooSmallTarget is returned when no tested quality level fits the limit.
	ErrTooSmallTarget = errors.New("target size too small for quality reduction")
	// ErrNoEncoder is returned when the format has no encoder.
	ErrNoEncoder = errors.New("no encoder for format")
)

const (
	DefaultStart = 0.975
	DefaultStep  = 0.025

	// eps absorbs float error when counting levels, so 0.975/0.025 yields 39.
	eps = 1e-9
)

// Encoder is the slice of the codec the search needs.
type Encoder interface {
	CanWrite(format string) bool
	// SupportsQuality reports whether the output depends on quality.
	SupportsQuality(format string) bool
	Encode(w io.Writer, img image.Image, format string, quality float64) error
}

// Options tunes the downward scan.
type Options struct {
	Start float64
	Step  float64
}

func (o Options) withDefaults() Options {
	if o.Start <= 0 || o.Start > 1 {
		o.Start = DefaultStart
	}
	if o.Step <= 0 || o.Step > 1 {
		o.Step = DefaultStep
	}
	return o
}

// Levels returns the quality levels scanned, highest first.
func (o Options) Levels() []float64 {
	o = o.withDefaults()
	n := int(math.Floor(o.Start/o.Step+eps)) + 1
	levels := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		q := o.Start - float64(i)*o.Step
		if q < 0 {
			q = 0
		}
		levels = append(levels, q)
	}
	return levels
}

// Result is the winning encoding.
type Result struct {
	Data     []byte
	Quality  float64
	Attempts int
}

// Search encodes img at decreasing quality and returns the first encoding of
// at most limit bytes. The returned quality is the highest tested level that
// fits, not the one with the smallest output.
func Search(enc Encoder, img image.Image, format string, limit int, opts Options) (*Result, error) {
	if !enc.CanWrite(format) {
		return nil, fmt.Errorf("%w: %q", ErrNoEncoder, format)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d", ErrTooSmallTarget, limit)
	}

	levels := opts.Levels()
	if !enc.SupportsQuality(format) {
		// Every level would produce the same bytes.
		levels = levels[:1]
	}

	buf := getBuffer()
	defer putBuffer(buf)

	var last int
	for i, q := range levels {
		buf.Reset()
		if err := enc.Encode(buf, img, format, q); err != nil {
			return nil, fmt.Errorf("encode %s at quality %.3f: %w", format, q, err)
		}
		last = buf.Len()
		if last <= limit {
			data := make([]byte, buf.Len())
			copy(data, buf.Bytes())
			return &Result{Data: data, Quality: q, Attempts: i + 1}, nil
		}
	}

	return nil, fmt.Errorf("%w: %d bytes at lowest quality, limit %d", ErrTooSmallTarget, last, limit)
}
