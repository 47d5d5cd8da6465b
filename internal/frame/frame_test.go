package frame

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"testing"

	"github.com/d2verb/scenebridge/internal/host"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// gradient builds an opaque top-down RGBA buffer with a per-pixel pattern.
func gradient(w, h int) *host.Pixels {
	data := make([]byte, 4*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := 4 * (y*w + x)
			data[i] = byte(x * 255 / max(w-1, 1))
			data[i+1] = byte(y * 255 / max(h-1, 1))
			data[i+2] = byte((x + y) % 256)
			data[i+3] = 255
		}
	}
	return &host.Pixels{Width: w, Height: h, Stride: 4 * w, Data: data}
}

func decode(t *testing.T, data []byte) (image.Image, string) {
	t.Helper()
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("image.Decode() error = %v", err)
	}
	return img, name
}

func TestEncode_RoundTripDimensions(t *testing.T) {
	tests := []struct {
		format   Format
		decoder  string
		w, h     int
		lossless bool
	}{
		{FormatJPEG, "jpeg", 512, 512, false},
		{FormatJPEG, "jpeg", 37, 11, false},
		{FormatPNG, "png", 64, 48, true},
		{FormatBMP, "bmp", 33, 17, true},
		{FormatTIFF, "tiff", 20, 30, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			// Arrange
			px := gradient(tt.w, tt.h)

			// Act
			data, err := Encode(px, tt.w, tt.h, Options{Format: tt.format})

			// Assert
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			img, name := decode(t, data)
			if name != tt.decoder {
				t.Errorf("decoded as %q, want %q", name, tt.decoder)
			}
			b := img.Bounds()
			if b.Dx() != tt.w || b.Dy() != tt.h {
				t.Fatalf("decoded size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.w, tt.h)
			}
			if !tt.lossless {
				return
			}
			for y := 0; y < tt.h; y++ {
				for x := 0; x < tt.w; x++ {
					r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
					i := 4 * (y*tt.w + x)
					if byte(r>>8) != px.Data[i] || byte(g>>8) != px.Data[i+1] || byte(bl>>8) != px.Data[i+2] {
						t.Fatalf("pixel (%d,%d) = %d,%d,%d, want %d,%d,%d", x, y,
							r>>8, g>>8, bl>>8, px.Data[i], px.Data[i+1], px.Data[i+2])
					}
				}
			}
		})
	}
}

func TestEncode_BottomUpIsFlipped(t *testing.T) {
	// Arrange: 1x2 image, bottom row red, top row blue, stored bottom-up.
	px := &host.Pixels{
		Width:    1,
		Height:   2,
		Stride:   4,
		BottomUp: true,
		Data: []byte{
			255, 0, 0, 255, // bottom
			0, 0, 255, 255, // top
		},
	}

	// Act
	data, err := Encode(px, 1, 2, Options{Format: FormatPNG})

	// Assert
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	img, _ := decode(t, data)
	_, _, topBlue, _ := img.At(0, 0).RGBA()
	bottomRed, _, _, _ := img.At(0, 1).RGBA()
	if topBlue>>8 != 255 {
		t.Errorf("top pixel should be blue, got blue=%d", topBlue>>8)
	}
	if bottomRed>>8 != 255 {
		t.Errorf("bottom pixel should be red, got red=%d", bottomRed>>8)
	}
}

func TestEncode_PaddedStride(t *testing.T) {
	px := gradient(4, 4)
	padded := make([]byte, 0, 4*24)
	for y := 0; y < 4; y++ {
		padded = append(padded, px.Data[y*16:(y+1)*16]...)
		padded = append(padded, make([]byte, 8)...)
	}
	px.Stride = 24
	px.Data = padded

	data, err := Encode(px, 4, 4, Options{Format: FormatPNG})

	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	img, _ := decode(t, data)
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Errorf("decoded size = %v", img.Bounds())
	}
}

func TestEncode_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		px   *host.Pixels
		w, h int
		opts Options
	}{
		{"nil buffer", nil, 4, 4, Options{Format: FormatPNG}},
		{"dimension mismatch", gradient(4, 4), 8, 4, Options{Format: FormatPNG}},
		{"short buffer", &host.Pixels{Width: 4, Height: 4, Stride: 16, Data: make([]byte, 10)}, 4, 4, Options{Format: FormatPNG}},
		{"stride too small", &host.Pixels{Width: 4, Height: 4, Stride: 8, Data: make([]byte, 64)}, 4, 4, Options{Format: FormatPNG}},
		{"zero width", gradient(1, 1), 0, 1, Options{Format: FormatPNG}},
		{"too large", gradient(1, 1), MaxDimension + 1, 1, Options{Format: FormatPNG}},
		{"bad quality", gradient(2, 2), 2, 2, Options{Format: FormatJPEG, Quality: 101}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.px, tt.w, tt.h, tt.opts)

			if !IsValidation(err) {
				t.Errorf("error = %v, want *ValidationError", err)
			}
		})
	}
}

func TestEncode_UnsupportedFormat(t *testing.T) {
	_, err := Encode(gradient(2, 2), 2, 2, Options{Format: "WEBP"})

	if !IsEncoding(err) {
		t.Fatalf("error = %v, want *EncodingError", err)
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error should wrap ErrUnsupportedFormat: %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"JPEG", FormatJPEG, false},
		{"jpg", FormatJPEG, false},
		{" png ", FormatPNG, false},
		{"Bmp", FormatBMP, false},
		{"tif", FormatTIFF, false},
		{"gif", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)

			if tt.wantErr {
				if !IsEncoding(err) {
					t.Errorf("ParseFormat(%q) error = %v, want *EncodingError", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormat_Extension(t *testing.T) {
	if got := FormatJPEG.Extension(); got != "jpg" {
		t.Errorf("JPEG extension = %q", got)
	}
	if got := FormatPNG.Extension(); got != "png" {
		t.Errorf("PNG extension = %q", got)
	}
}

// renderHost renders a gradient, or fails with err when set.
type renderHost struct {
	err error
}

func (h *renderHost) RenderViewport(ctx context.Context, width, height int) (*host.Pixels, error) {
	if h.err != nil {
		return nil, h.err
	}
	return gradient(width, height), nil
}

func (h *renderHost) EnumerateObjects(ctx context.Context) ([]host.Object, error) { return nil, nil }

func (h *renderHost) RunScript(ctx context.Context, code string) (string, error) { return "", nil }

func (h *renderHost) CollectSceneStats(ctx context.Context) (host.SceneStats, error) {
	return host.SceneStats{}, nil
}

func newTestCapturer(t *testing.T, h host.Host) *Capturer {
	t.Helper()
	exec := host.NewExecutor(h, 1, nil)
	exec.Start()
	t.Cleanup(exec.Stop)
	return NewCapturer(exec)
}

func TestCapturer_Capture(t *testing.T) {
	// Arrange
	c := newTestCapturer(t, &renderHost{})

	// Act
	img, err := c.Capture(context.Background(), Request{Width: 512, Height: 512, Format: FormatJPEG})

	// Assert
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	decoded, _ := decode(t, img.Data)
	if decoded.Bounds().Dx() != 512 || decoded.Bounds().Dy() != 512 {
		t.Errorf("decoded size = %v, want 512x512", decoded.Bounds())
	}
	if img.Base64() == "" {
		t.Error("Base64() should not be empty")
	}
	if img.CapturedAt.IsZero() {
		t.Error("CapturedAt should be set")
	}
}

func TestCapturer_RenderFailureIsEncodingError(t *testing.T) {
	c := newTestCapturer(t, &renderHost{err: errors.New("no active 3D view")})

	_, err := c.Capture(context.Background(), Request{Width: 8, Height: 8, Format: FormatPNG})

	if !IsEncoding(err) {
		t.Fatalf("error = %v, want *EncodingError", err)
	}
	if !host.IsExecutionError(err) {
		t.Errorf("error should wrap the host fault: %v", err)
	}
}

func TestCapturer_RejectsBadSize(t *testing.T) {
	c := newTestCapturer(t, &renderHost{})

	_, err := c.Capture(context.Background(), Request{Width: 0, Height: 8})

	if !IsValidation(err) {
		t.Errorf("error = %v, want *ValidationError", err)
	}
}
