package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/inamate/tripwire/internal/geometry"
)

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

// RasterCanvas draws into an RGBA image with anti-aliased vector
// rasterization. Each primitive is rasterized and composited separately.
type RasterCanvas struct {
	img        *image.RGBA
	background image.Image
	z          *vector.Rasterizer
}

// NewRasterCanvas creates a transparent canvas of w×h pixels.
func NewRasterCanvas(w, h int) *RasterCanvas {
	return &RasterCanvas{
		img: image.NewRGBA(image.Rect(0, 0, w, h)),
		z:   vector.NewRasterizer(w, h),
	}
}

// SetBackground scales src to fill the canvas; it is painted on every Clear.
// The image is stretched, matching how the load transform maps a rule to
// the surface.
func (c *RasterCanvas) SetBackground(src image.Image) {
	if src == nil {
		c.background = nil
		return
	}
	scaled := image.NewRGBA(c.img.Bounds())
	draw.BiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)
	c.background = scaled
}

// SetBackgroundColor paints a solid color on every Clear.
func (c *RasterCanvas) SetBackgroundColor(col color.Color) {
	c.background = image.NewUniform(col)
}

// Image returns the backing image.
func (c *RasterCanvas) Image() *image.RGBA { return c.img }

// EncodePNG writes the current frame as PNG.
func (c *RasterCanvas) EncodePNG(w io.Writer) error { return png.Encode(w, c.img) }

func (c *RasterCanvas) Size() geometry.Size {
	b := c.img.Bounds()
	return geometry.Sz(float64(b.Dx()), float64(b.Dy()))
}

func (c *RasterCanvas) Clear() {
	bg := c.background
	if bg == nil {
		bg = image.Transparent
	}
	draw.Draw(c.img, c.img.Bounds(), bg, image.Point{}, draw.Src)
}

func (c *RasterCanvas) Path(points []geometry.Point, closed bool, b Brush) {
	if closed && b.Fill != nil && len(points) >= 3 {
		c.begin()
		c.polygon(points)
		c.paint(b.Fill)
	}
	if b.Stroke == nil || b.Width <= 0 || len(points) == 0 {
		return
	}
	hw := b.Width / 2
	n := len(points)
	segments := n - 1
	if closed && n > 2 {
		segments = n
	}
	for i := 0; i < segments; i++ {
		p, q := points[i], points[(i+1)%n]
		if quad, ok := segmentOutline(p, q, hw); ok {
			c.begin()
			c.polygon(quad)
			c.paint(b.Stroke)
		}
	}
	// round joins and caps
	for _, p := range points {
		c.begin()
		c.circle(p, hw, false)
		c.paint(b.Stroke)
	}
}

func (c *RasterCanvas) Circle(center geometry.Point, radius float64, b Brush) {
	if radius <= 0 {
		return
	}
	if b.Fill != nil {
		c.begin()
		c.circle(center, radius, false)
		c.paint(b.Fill)
	}
	if b.Stroke != nil && b.Width > 0 {
		hw := b.Width / 2
		c.begin()
		c.circle(center, radius+hw, false)
		if inner := radius - hw; inner > 0 {
			c.circle(center, inner, true)
		}
		c.paint(b.Stroke)
	}
}

func (c *RasterCanvas) begin() {
	b := c.img.Bounds()
	c.z.Reset(b.Dx(), b.Dy())
}

func (c *RasterCanvas) paint(col color.Color) {
	c.z.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{})
}

func (c *RasterCanvas) polygon(points []geometry.Point) {
	c.z.MoveTo(float32(points[0].X), float32(points[0].Y))
	for _, p := range points[1:] {
		c.z.LineTo(float32(p.X), float32(p.Y))
	}
	c.z.ClosePath()
}

// circle adds a closed circular subpath. A reversed subpath inside a forward
// one cuts a hole, which is how rings are stroked.
func (c *RasterCanvas) circle(center geometry.Point, r float64, reverse bool) {
	cx, cy := center.X, center.Y
	k := r * kappa
	dir := 1.0
	if reverse {
		dir = -1
	}
	f := func(v float64) float32 { return float32(v) }
	c.z.MoveTo(f(cx+r), f(cy))
	c.z.CubeTo(f(cx+r), f(cy+dir*k), f(cx+k), f(cy+dir*r), f(cx), f(cy+dir*r))
	c.z.CubeTo(f(cx-k), f(cy+dir*r), f(cx-r), f(cy+dir*k), f(cx-r), f(cy))
	c.z.CubeTo(f(cx-r), f(cy-dir*k), f(cx-k), f(cy-dir*r), f(cx), f(cy-dir*r))
	c.z.CubeTo(f(cx+k), f(cy-dir*r), f(cx+r), f(cy-dir*k), f(cx+r), f(cy))
	c.z.ClosePath()
}

// segmentOutline returns the rectangle covering a stroke of half-width hw
// from p to q. Degenerate segments have no outline.
func segmentOutline(p, q geometry.Point, hw float64) ([]geometry.Point, bool) {
	dx, dy := q.X-p.X, q.Y-p.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return nil, false
	}
	nx, ny := -dy/l*hw, dx/l*hw
	return []geometry.Point{
		geometry.Pt(p.X+nx, p.Y+ny),
		geometry.Pt(q.X+nx, q.Y+ny),
		geometry.Pt(q.X-nx, q.Y-ny),
		geometry.Pt(p.X-nx, p.Y-ny),
	}, true
}
