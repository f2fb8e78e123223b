package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/inamate/tripwire/internal/geometry"
)

const backgroundImageName = "background"

// PDFCanvas draws onto a single PDF page whose size in points equals the
// surface size in pixels, so coordinates map 1:1.
type PDFCanvas struct {
	pdf           *gofpdf.Fpdf
	size          geometry.Size
	hasBackground bool
}

// NewPDFCanvas starts a one-page document sized to the surface.
func NewPDFCanvas(size geometry.Size, title string) *PDFCanvas {
	page := gofpdf.SizeType{Wd: size.W, Ht: size.H}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    page,
	})
	pdf.SetTitle(title, false)
	pdf.SetCreator("tripwire", false)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("", page)
	pdf.SetLineJoinStyle("round")
	pdf.SetLineCapStyle("round")
	return &PDFCanvas{pdf: pdf, size: size}
}

// SetBackground embeds img, stretched to the page, beneath the overlay.
func (c *PDFCanvas) SetBackground(img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode background: %w", err)
	}
	c.pdf.RegisterImageOptionsReader(backgroundImageName, gofpdf.ImageOptions{ImageType: "PNG"}, &buf)
	if err := c.pdf.Error(); err != nil {
		return fmt.Errorf("register background: %w", err)
	}
	c.hasBackground = true
	return nil
}

// Output writes the finished document and closes it.
func (c *PDFCanvas) Output(w io.Writer) error {
	if err := c.pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (c *PDFCanvas) Size() geometry.Size { return c.size }

// Clear paints over the page: the background image when set, white otherwise.
func (c *PDFCanvas) Clear() {
	c.pdf.SetAlpha(1, "Normal")
	if c.hasBackground {
		c.pdf.ImageOptions(backgroundImageName, 0, 0, c.size.W, c.size.H, false,
			gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		return
	}
	c.pdf.SetFillColor(255, 255, 255)
	c.pdf.Rect(0, 0, c.size.W, c.size.H, "F")
}

func (c *PDFCanvas) Path(points []geometry.Point, closed bool, b Brush) {
	if len(points) == 0 {
		return
	}
	if closed && b.Fill != nil && len(points) >= 3 {
		c.fill(b.Fill)
		c.trace(points, true)
		c.pdf.DrawPath("F")
	}
	if b.Stroke != nil && b.Width > 0 && len(points) >= 2 {
		c.stroke(b.Stroke, b.Width)
		c.trace(points, closed)
		c.pdf.DrawPath("D")
	}
}

func (c *PDFCanvas) Circle(center geometry.Point, radius float64, b Brush) {
	if radius <= 0 {
		return
	}
	if b.Fill != nil {
		c.fill(b.Fill)
		c.pdf.Circle(center.X, center.Y, radius, "F")
	}
	if b.Stroke != nil && b.Width > 0 {
		c.stroke(b.Stroke, b.Width)
		c.pdf.Circle(center.X, center.Y, radius, "D")
	}
}

func (c *PDFCanvas) trace(points []geometry.Point, closed bool) {
	c.pdf.MoveTo(points[0].X, points[0].Y)
	for _, p := range points[1:] {
		c.pdf.LineTo(p.X, p.Y)
	}
	if closed {
		c.pdf.ClosePath()
	}
}

func (c *PDFCanvas) fill(col color.Color) {
	n := color.NRGBAModel.Convert(col).(color.NRGBA)
	c.pdf.SetFillColor(int(n.R), int(n.G), int(n.B))
	c.pdf.SetAlpha(float64(n.A)/255, "Normal")
}

func (c *PDFCanvas) stroke(col color.Color, width float64) {
	n := color.NRGBAModel.Convert(col).(color.NRGBA)
	c.pdf.SetDrawColor(int(n.R), int(n.G), int(n.B))
	c.pdf.SetLineWidth(width)
	c.pdf.SetAlpha(float64(n.A)/255, "Normal")
}
