// Package frame encodes raw viewport framebuffers into self-contained images.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/d2verb/scenebridge/internal/host"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format is an output image format.
type Format string

const (
	FormatJPEG Format = "JPEG"
	FormatPNG  Format = "PNG"
	FormatBMP  Format = "BMP"
	FormatTIFF Format = "TIFF"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatJPEG, FormatPNG, FormatBMP, FormatTIFF}

const (
	// MinDimension and MaxDimension bound capture sizes to keep memory in check.
	MinDimension = 1
	MaxDimension = 8192

	// DefaultQuality is the JPEG quality used when none is requested.
	DefaultQuality = 90
)

// ErrUnsupportedFormat is wrapped by EncodingError for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseFormat normalizes a format name. Names are case-insensitive and "JPG"
// is accepted as an alias for JPEG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JPEG", "JPG":
		return FormatJPEG, nil
	case "PNG":
		return FormatPNG, nil
	case "BMP":
		return FormatBMP, nil
	case "TIFF", "TIF":
		return FormatTIFF, nil
	default:
		return "", &EncodingError{Err: fmt.Errorf("%w %q", ErrUnsupportedFormat, s)}
	}
}

// Lossless reports whether decoding the format yields the exact source pixels.
func (f Format) Lossless() bool {
	return f != FormatJPEG
}

// Extension returns the conventional file extension, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatTIFF:
		return "tiff"
	default:
		return strings.ToLower(string(f))
	}
}

// Options controls encoding.
type Options struct {
	Format  Format
	Quality int // JPEG only, 1-100; 0 selects DefaultQuality
}

// ValidateSize checks that width and height are within capture bounds.
func ValidateSize(width, height int) error {
	if width < MinDimension || width > MaxDimension {
		return &ValidationError{Field: "width", Reason: fmt.Sprintf("must be between %d and %d, got %d", MinDimension, MaxDimension, width)}
	}
	if height < MinDimension || height > MaxDimension {
		return &ValidationError{Field: "height", Reason: fmt.Sprintf("must be between %d and %d, got %d", MinDimension, MaxDimension, height)}
	}
	return nil
}

// Encode encodes pixels as an image of exactly width x height.
// width and height must match the buffer's declared dimensions.
func Encode(px *host.Pixels, width, height int, opts Options) ([]byte, error) {
	if err := ValidateSize(width, height); err != nil {
		return nil, err
	}
	img, err := toImage(px, width, height)
	if err != nil {
		return nil, err
	}

	format := opts.Format
	if format == "" {
		format = FormatJPEG
	}

	var buf bytes.Buffer
	buf.Grow(width * height / 2)

	switch format {
	case FormatJPEG:
		quality := opts.Quality
		if quality == 0 {
			quality = DefaultQuality
		}
		if quality < 1 || quality > 100 {
			return nil, &ValidationError{Field: "quality", Reason: fmt.Sprintf("must be between 1 and 100, got %d", quality)}
		}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		err = enc.Encode(&buf, img)
	case FormatBMP:
		err = bmp.Encode(&buf, img)
	case FormatTIFF:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		return nil, &EncodingError{Format: format, Err: ErrUnsupportedFormat}
	}
	if err != nil {
		return nil, &EncodingError{Format: format, Err: err}
	}
	return buf.Bytes(), nil
}

// toImage wraps the framebuffer as an image without copying, unless the rows
// are stored bottom-up and must be flipped.
func toImage(px *host.Pixels, width, height int) (*image.RGBA, error) {
	if px == nil {
		return nil, &ValidationError{Field: "pixels", Reason: "buffer is nil"}
	}
	if px.Width != width || px.Height != height {
		return nil, &ValidationError{
			Field:  "dimensions",
			Reason: fmt.Sprintf("buffer is %dx%d, requested %dx%d", px.Width, px.Height, width, height),
		}
	}
	stride := px.Stride
	if stride == 0 {
		stride = 4 * width
	}
	if stride < 4*width {
		return nil, &ValidationError{Field: "stride", Reason: fmt.Sprintf("%d is smaller than 4*width (%d)", stride, 4*width)}
	}
	need := stride*(height-1) + 4*width
	if len(px.Data) < need {
		return nil, &ValidationError{Field: "pixels", Reason: fmt.Sprintf("buffer holds %d bytes, need %d", len(px.Data), need)}
	}

	if !px.BottomUp {
		return &image.RGBA{
			Pix:    px.Data,
			Stride: stride,
			Rect:   image.Rect(0, 0, width, height),
		}, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowBytes := 4 * width
	for y := 0; y < height; y++ {
		src := px.Data[(height-1-y)*stride:]
		copy(img.Pix[y*img.Stride:y*img.Stride+rowBytes], src[:rowBytes])
	}
	return img, nil
}
