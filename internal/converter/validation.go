package converter

import (
	"errors"
	"fmt"
	"image"
	"log"
)

var (
	// ErrInputNotFound is returned when the input path does not exist
	ErrInputNotFound = errors.New("input file not found")
	// ErrInputUnreadable is returned when the input exists but cannot be decoded
	ErrInputUnreadable = errors.New("failed to load image")
	// ErrUnsupportedOutputFormat is returned when no encoder handles the output token
	ErrUnsupportedOutputFormat = errors.New("output format not supported")
	// ErrFormatMismatch is returned when compression would change the format
	ErrFormatMismatch = errors.New("output format must match input format")
	// ErrOutputUnwritable is returned when the output file cannot be created
	ErrOutputUnwritable = errors.New("cannot write output file")
	// ErrImageTooLarge is returned when image dimensions exceed limits
	ErrImageTooLarge = errors.New("image dimensions exceed maximum allowed")
)

// Validation limits
const (
	MaxImageWidth  = 65535 // widest side most encoders accept
	MaxImageHeight = 65535
)

// ValidateImage checks decoded image dimensions are within acceptable limits
func ValidateImage(img image.Image, maxPixels int) error {
	if img == nil {
		return ErrInputUnreadable
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		log.Printf("Invalid dimensions: %dx%d", b.Dx(), b.Dy())
		return fmt.Errorf("%w: empty image", ErrInputUnreadable)
	}
	return ValidateSize(b.Dx(), b.Dy(), maxPixels)
}

// ValidateSize checks a width x height against the pixel limits. It guards
// both decoded inputs and the buffers allocated for resized outputs.
func ValidateSize(width, height, maxPixels int) error {
	if width > MaxImageWidth || height > MaxImageHeight {
		log.Printf("Dimensions too large: %dx%d (max: %dx%d)", width, height, MaxImageWidth, MaxImageHeight)
		return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, width, height)
	}

	// Check total pixel count (prevent decompression bomb attacks)
	totalPixels := int64(width) * int64(height)
	if maxPixels > 0 && totalPixels > int64(maxPixels) {
		log.Printf("Too many pixels: %d (max: %d)", totalPixels, maxPixels)
		return fmt.Errorf("%w: %d pixels", ErrImageTooLarge, totalPixels)
	}

	return nil
}
