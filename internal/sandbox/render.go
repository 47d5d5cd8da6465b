package sandbox

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/d2verb/scenebridge/internal/host"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	backgroundColor = color.RGBA{0x39, 0x39, 0x39, 0xff}
	gridColor       = color.RGBA{0x48, 0x48, 0x48, 0xff}
	axisXColor      = color.RGBA{0x9b, 0x3b, 0x45, 0xff}
	axisYColor      = color.RGBA{0x6b, 0x93, 0x2d, 0xff}
	labelColor      = color.RGBA{0xe6, 0xe6, 0xe6, 0xff}
	defaultMesh     = color.RGBA{0xb0, 0xb0, 0xb0, 0xff}
	cameraColor     = color.RGBA{0x00, 0x00, 0x00, 0xff}
	lightColor      = color.RGBA{0xff, 0xd8, 0x4a, 0xff}
	emptyColor      = color.RGBA{0xdd, 0xdd, 0xdd, 0xff}
)

// unitsVisible is the world height shown by the top-down viewport.
const unitsVisible = 12.0

// RenderViewport implements host.Host. The scene is drawn as a top-down
// orthographic view at the native viewport size, scaled to width x height,
// and returned bottom-up the way a GPU framebuffer reads back.
func (s *Scene) RenderViewport(ctx context.Context, width, height int) (*host.Pixels, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid viewport size %dx%d", width, height)
	}

	s.mu.Lock()
	objs := make([]host.Object, 0, len(s.order))
	for _, name := range s.order {
		objs = append(objs, *s.objects[name])
	}
	mats := make(map[string]host.Color, len(s.materials))
	for k, v := range s.materials {
		mats[k] = v
	}
	nw, nh := s.viewportW, s.viewportH
	frame := s.frame
	sceneName := s.name
	s.mu.Unlock()

	if nw <= 0 || nh <= 0 {
		return nil, fmt.Errorf("no active 3D view")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(backgroundColor), image.Point{}, xdraw.Src)

	v := viewport{img: canvas, ppu: float64(nh) / unitsVisible, cx: nw / 2, cy: nh / 2}
	v.drawGrid()
	for _, o := range objs {
		if !o.Visible {
			continue
		}
		v.drawObject(o, objectColor(o, mats))
	}
	v.label(8, 16, fmt.Sprintf("%s | %d objects | frame %d", sceneName, len(objs), frame))

	out := canvas
	if width != nw || height != nh {
		out = image.NewRGBA(image.Rect(0, 0, width, height))
		xdraw.BiLinear.Scale(out, out.Bounds(), canvas, canvas.Bounds(), xdraw.Src, nil)
	}

	s.mu.Lock()
	s.lastRenderBytes = int64(len(canvas.Pix))
	s.mu.Unlock()

	return bottomUp(out), nil
}

func bottomUp(img *image.RGBA) *host.Pixels {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	rowBytes := 4 * w
	data := make([]byte, rowBytes*h)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+rowBytes]
		copy(data[(h-1-y)*rowBytes:], src)
	}
	return &host.Pixels{Width: w, Height: h, Stride: rowBytes, BottomUp: true, Data: data}
}

func objectColor(o host.Object, mats map[string]host.Color) color.RGBA {
	if c, ok := mats[o.Material]; ok && o.Material != "" {
		return toRGBA(c)
	}
	switch o.Type {
	case host.TypeCamera:
		return cameraColor
	case host.TypeLight:
		return lightColor
	case host.TypeEmpty:
		return emptyColor
	default:
		return defaultMesh
	}
}

func toRGBA(c host.Color) color.RGBA {
	conv := func(f float64) uint8 {
		switch {
		case f <= 0:
			return 0
		case f >= 1:
			return 255
		default:
			return uint8(f*255 + 0.5)
		}
	}
	return color.RGBA{conv(c[0]), conv(c[1]), conv(c[2]), 255}
}

type viewport struct {
	img    *image.RGBA
	ppu    float64 // pixels per world unit
	cx, cy int
}

// project maps world XY to canvas pixels (Y up).
func (v viewport) project(p host.Vec3) (int, int) {
	return v.cx + int(p[0]*v.ppu), v.cy - int(p[1]*v.ppu)
}

func (v viewport) drawGrid() {
	b := v.img.Bounds()
	step := int(v.ppu)
	if step < 4 {
		return
	}
	for x := v.cx % step; x < b.Max.X; x += step {
		v.fillRect(x, 0, x+1, b.Max.Y, gridColor)
	}
	for y := v.cy % step; y < b.Max.Y; y += step {
		v.fillRect(0, y, b.Max.X, y+1, gridColor)
	}
	v.fillRect(0, v.cy, b.Max.X, v.cy+2, axisXColor)
	v.fillRect(v.cx, 0, v.cx+2, b.Max.Y, axisYColor)
}

func (v viewport) drawObject(o host.Object, c color.RGBA) {
	x, y := v.project(o.Location)
	hw := int(o.Dimensions[0] * v.ppu / 2)
	hh := int(o.Dimensions[1] * v.ppu / 2)
	r := max(hw, hh)

	switch o.Type {
	case host.TypeCube, host.TypePlane:
		v.fillRect(x-hw, y-hh, x+hw, y+hh, c)
	case host.TypeSphere, host.TypeCylinder:
		v.fillCircle(x, y, r, 0, c)
	case host.TypeTorus:
		v.fillCircle(x, y, r, r*3/5, c)
	case host.TypeCone:
		v.fillTriangle(x, y-hh, x-hw, y+hh, x+hw, y+hh, c)
	case host.TypeMonkey:
		v.fillCircle(x, y, r*2/3, 0, c)
		v.fillCircle(x-r*2/3, y-r/3, r/3, 0, c)
		v.fillCircle(x+r*2/3, y-r/3, r/3, 0, c)
	case host.TypeCamera:
		r = int(v.ppu / 2)
		v.fillTriangle(x, y-r, x-r, y+r, x+r, y+r, c)
	case host.TypeLight:
		r = int(v.ppu / 4)
		v.fillCircle(x, y, r, 0, c)
	case host.TypeEmpty:
		r = int(v.ppu / 3)
		v.fillRect(x-r, y, x+r, y+1, c)
		v.fillRect(x, y-r, x+1, y+r, c)
	}

	v.label(x-font.MeasureString(basicfont.Face7x13, o.Name).Ceil()/2, y+r+14, o.Name)
}

func (v viewport) label(x, y int, text string) {
	d := font.Drawer{
		Dst:  v.img,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func (v viewport) fillRect(x0, y0, x1, y1 int, c color.RGBA) {
	r := image.Rect(x0, y0, x1, y1).Intersect(v.img.Bounds())
	if r.Empty() {
		return
	}
	xdraw.Draw(v.img, r, image.NewUniform(c), image.Point{}, xdraw.Src)
}

// fillCircle fills the disc of radius r around (cx, cy), leaving a hole of
// radius inner when inner > 0.
func (v viewport) fillCircle(cx, cy, r, inner int, c color.RGBA) {
	b := v.img.Bounds()
	rr, ir := r*r, inner*inner
	for y := max(cy-r, b.Min.Y); y <= min(cy+r, b.Max.Y-1); y++ {
		for x := max(cx-r, b.Min.X); x <= min(cx+r, b.Max.X-1); x++ {
			d := (x-cx)*(x-cx) + (y-cy)*(y-cy)
			if d <= rr && (inner <= 0 || d >= ir) {
				v.img.SetRGBA(x, y, c)
			}
		}
	}
}

func (v viewport) fillTriangle(x0, y0, x1, y1, x2, y2 int, c color.RGBA) {
	b := v.img.Bounds()
	minX, maxX := max(min(x0, x1, x2), b.Min.X), min(max(x0, x1, x2), b.Max.X-1)
	minY, maxY := max(min(y0, y1, y2), b.Min.Y), min(max(y0, y1, y2), b.Max.Y-1)
	edge := func(ax, ay, bx, by, px, py int) int {
		return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
	}
	area := edge(x0, y0, x1, y1, x2, y2)
	if area == 0 {
		return
	}
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			w0 := edge(x1, y1, x2, y2, x, y)
			w1 := edge(x2, y2, x0, y0, x, y)
			w2 := edge(x0, y0, x1, y1, x, y)
			if area > 0 && w0 >= 0 && w1 >= 0 && w2 >= 0 || area < 0 && w0 <= 0 && w1 <= 0 && w2 <= 0 {
				v.img.SetRGBA(x, y, c)
			}
		}
	}
}
