package geom

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay colors shared by the raster and vector renderers
var (
	SourceColor     = color.RGBA{220, 40, 40, 255}
	TargetColor     = color.RGBA{40, 80, 220, 255}
	AlignedColor    = color.RGBA{30, 160, 60, 255}
	LinkColor       = color.RGBA{160, 160, 160, 255}
	BackgroundColor = color.RGBA{245, 245, 245, 255}
)

// Overlay is the XY projection input for a rendered alignment: the source
// points, the target points and the source points after the transform
type Overlay struct {
	ID      string
	Source  []Point3
	Target  []Point3
	Aligned []Point3
}

// NewOverlay builds an overlay from a correspondence set and its fitted transform
func NewOverlay(set *CorrespondenceSet, t RigidTransform) (*Overlay, error) {
	pairs, err := set.Correspondences()
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, ErrNoPairs
	}

	o := &Overlay{
		ID:      set.ID,
		Source:  make([]Point3, len(pairs)),
		Target:  make([]Point3, len(pairs)),
		Aligned: make([]Point3, len(pairs)),
	}
	for i, p := range pairs {
		o.Source[i] = p.Source
		o.Target[i] = p.Target
		o.Aligned[i] = t.Apply(p.Source)
	}
	return o, nil
}

// allPoints returns every point that must fit in the viewport
func (o *Overlay) allPoints() []Point3 {
	all := make([]Point3, 0, len(o.Source)+len(o.Target)+len(o.Aligned))
	all = append(all, o.Source...)
	all = append(all, o.Target...)
	all = append(all, o.Aligned...)
	return all
}

// overlayLayout maps world XY onto a width x height viewport with y pointing up
type overlayLayout struct {
	minX, minY float64
	offX, offY float64
	scale      float64
}

func newOverlayLayout(points []Point3, width, height, padding float64) overlayLayout {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	if len(points) == 0 {
		minX, minY, maxX, maxY = 0, 0, 0, 0
	}

	availW := math.Max(width-2*padding, 1)
	availH := math.Max(height-2*padding, 1)
	spanX, spanY := maxX-minX, maxY-minY

	scale := 1.0
	switch {
	case spanX > 0 && spanY > 0:
		scale = math.Min(availW/spanX, availH/spanY)
	case spanX > 0:
		scale = availW / spanX
	case spanY > 0:
		scale = availH / spanY
	}

	// Center the drawing inside the viewport
	return overlayLayout{
		minX:  minX,
		minY:  minY,
		offX:  (width - spanX*scale) / 2,
		offY:  (height - spanY*scale) / 2,
		scale: scale,
	}
}

func (l overlayLayout) project(p Point3) (float64, float64) {
	return (p.X-l.minX)*l.scale + l.offX, (p.Y-l.minY)*l.scale + l.offY
}

// OverlayRenderer draws an overlay as a raster image
type OverlayRenderer struct {
	Overlay     *Overlay
	Width       int
	Height      int
	Padding     int
	PointRadius int
	ShowLinks   bool // Draw lines between aligned source and target points
	ShowLegend  bool
}

// NewOverlayRenderer creates a raster renderer sized from the render config
func NewOverlayRenderer(o *Overlay, cfg RenderConfig) *OverlayRenderer {
	r := &OverlayRenderer{
		Overlay:     o,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Padding:     40,
		PointRadius: int(math.Round(cfg.PointRadius)),
		ShowLinks:   true,
		ShowLegend:  true,
	}
	if r.Width <= 0 {
		r.Width = DefaultRenderWidth
	}
	if r.Height <= 0 {
		r.Height = DefaultRenderHeight
	}
	if r.PointRadius <= 0 {
		r.PointRadius = int(DefaultPointRadius)
	}
	return r
}

// Render draws the overlay onto a new image
func (r *OverlayRenderer) Render() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			img.SetRGBA(x, y, BackgroundColor)
		}
	}

	layout := newOverlayLayout(r.Overlay.allPoints(), float64(r.Width), float64(r.Height), float64(r.Padding))
	toImage := func(p Point3) (int, int) {
		x, y := layout.project(p)
		// Image rows grow downward
		return int(math.Round(x)), r.Height - 1 - int(math.Round(y))
	}

	if r.ShowLinks {
		for i := range r.Overlay.Aligned {
			if i >= len(r.Overlay.Target) {
				break
			}
			x0, y0 := toImage(r.Overlay.Aligned[i])
			x1, y1 := toImage(r.Overlay.Target[i])
			drawLine(img, x0, y0, x1, y1, LinkColor)
		}
	}

	for _, p := range r.Overlay.Source {
		x, y := toImage(p)
		drawSquare(img, x, y, 2*r.PointRadius, SourceColor)
	}
	for _, p := range r.Overlay.Target {
		x, y := toImage(p)
		drawCircle(img, x, y, r.PointRadius, TargetColor)
	}
	for _, p := range r.Overlay.Aligned {
		x, y := toImage(p)
		drawRing(img, x, y, r.PointRadius+2, AlignedColor)
	}

	if r.ShowLegend {
		r.drawLegend(img)
	}
	return img
}

// WritePNG encodes the rendered overlay as PNG
func (r *OverlayRenderer) WritePNG(w io.Writer) error {
	return png.Encode(w, r.Render())
}

// SavePNG renders the overlay to a PNG file
func (r *OverlayRenderer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return r.WritePNG(f)
}

// drawLegend adds labelled color swatches in the top-left corner
func (r *OverlayRenderer) drawLegend(img *image.RGBA) {
	entries := []struct {
		label string
		c     color.RGBA
	}{
		{"source", SourceColor},
		{"target", TargetColor},
		{"aligned", AlignedColor},
	}

	y := 15
	if r.Overlay.ID != "" {
		drawText(img, 10, y, r.Overlay.ID, color.RGBA{0, 0, 0, 255})
		y += 18
	}
	for _, e := range entries {
		for dy := 0; dy < 12; dy++ {
			for dx := 0; dx < 12; dx++ {
				setClipped(img, 10+dx, y+dy-10, e.c)
			}
		}
		drawText(img, 28, y, e.label, color.RGBA{0, 0, 0, 255})
		y += 18
	}
}

func setClipped(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawCircle draws a filled circle
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				setClipped(img, cx+dx, cy+dy, c)
			}
		}
	}
}

// drawRing draws a one pixel wide circle outline
func drawRing(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	inner := (radius - 1) * (radius - 1)
	outer := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if d := dx*dx + dy*dy; d <= outer && d >= inner {
				setClipped(img, cx+dx, cy+dy, c)
			}
		}
	}
}

// drawSquare draws a filled square
func drawSquare(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	half := size / 2
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			setClipped(img, cx+dx, cy+dy, c)
		}
	}
}

// drawLine draws a line using Bresenham's algorithm
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		setClipped(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawText renders text onto an image at the specified baseline position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
