// Package geometry computes output dimensions for resize and scale requests.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGeometry is returned for zero or negative dimensions, a
// non-positive scale factor, or a degenerate source aspect ratio.
var ErrInvalidGeometry = errors.New("invalid geometry")

type kind int

const (
	kindScale kind = iota + 1
	kindBox
)

// Spec describes the requested output geometry. Build one with Scale or Box.
type Spec struct {
	kind       kind
	Factor     float64
	Width      int
	Height     int
	KeepAspect bool
}

// Scale multiplies the pixel count (area) of the source by factor.
func Scale(factor float64) Spec {
	return Spec{kind: kindScale, Factor: factor}
}

// Box targets a width x height box, optionally honoring the source's aspect ratio.
func Box(width, height int, keepAspect bool) Spec {
	return Spec{kind: kindBox, Width: width, Height: height, KeepAspect: keepAspect}
}

// IsScale reports whether s was built with Scale.
func (s Spec) IsScale() bool { return s.kind == kindScale }

// IsIdentity reports whether s leaves the source dimensions untouched.
func (s Spec) IsIdentity() bool { return s.kind == kindScale && s.Factor == 1 }

func (s Spec) String() string {
	switch s.kind {
	case kindScale:
		return fmt.Sprintf("scale(%g)", s.Factor)
	case kindBox:
		return fmt.Sprintf("box(%dx%d, keepAspect=%t)", s.Width, s.Height, s.KeepAspect)
	}
	return "unset"
}

// Validate checks the request itself, independent of any source image.
func (s Spec) Validate() error {
	switch s.kind {
	case kindScale:
		if math.IsNaN(s.Factor) || math.IsInf(s.Factor, 0) || s.Factor <= 0 {
			return fmt.Errorf("%w: scale factor %g", ErrInvalidGeometry, s.Factor)
		}
	case kindBox:
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("%w: box %dx%d", ErrInvalidGeometry, s.Width, s.Height)
		}
	default:
		return fmt.Errorf("%w: empty spec", ErrInvalidGeometry)
	}
	return nil
}

// Size is a resolved output size. Both dimensions are at least 1.
type Size struct {
	Width  int
	Height int
}

// Resolve computes the output size for a source of inW x inH.
//
// With KeepAspect the box dimension aligned with the source's longer side is
// kept and the other one is derived from the source ratio. A square source
// always yields a square output whose side is the smaller box dimension.
func Resolve(inW, inH int, s Spec) (Size, error) {
	if err := s.Validate(); err != nil {
		return Size{}, err
	}
	if inW <= 0 || inH <= 0 {
		return Size{}, fmt.Errorf("%w: source %dx%d", ErrInvalidGeometry, inW, inH)
	}

	if s.kind == kindScale {
		k := math.Sqrt(s.Factor)
		w, err := dim(float64(inW) * k)
		if err != nil {
			return Size{}, err
		}
		h, err := dim(float64(inH) * k)
		if err != nil {
			return Size{}, err
		}
		return clamp(w, h), nil
	}

	w, h := s.Width, s.Height
	if !s.KeepAspect || inW*h == w*inH {
		return Size{Width: w, Height: h}, nil
	}

	ratio := float64(inW) / float64(inH)
	var err error
	switch {
	case inW > inH:
		h, err = dim(float64(w) / ratio)
	case inW < inH:
		w, err = dim(float64(h) * ratio)
	default:
		w = min(w, h)
		h = w
	}
	if err != nil {
		return Size{}, err
	}
	return clamp(w, h), nil
}

// dim rounds a computed side length, rejecting values no image can have.
func dim(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt32 {
		return 0, fmt.Errorf("%w: dimension %g out of range", ErrInvalidGeometry, v)
	}
	return int(math.Round(v)), nil
}

func clamp(w, h int) Size {
	return Size{Width: max(w, 1), Height: max(h, 1)}
}
