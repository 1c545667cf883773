package geom

import (
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

const mmPerInch = 25.4

// VectorOverlayRenderer draws an overlay as vector graphics
type VectorOverlayRenderer struct {
	Overlay     *Overlay
	Width       float64           // Canvas width in millimeters
	Height      float64           // Canvas height in millimeters
	Padding     float64           // Millimeters kept free around the drawing
	PointRadius float64           // Millimeters
	Resolution  canvas.Resolution // Resolution for PNG output
	ShowLinks   bool
}

// NewVectorOverlayRenderer creates a vector renderer whose PNG output matches
// the configured pixel size at the configured DPI
func NewVectorOverlayRenderer(o *Overlay, cfg RenderConfig) *VectorOverlayRenderer {
	dpi := cfg.Resolution
	if dpi <= 0 {
		dpi = DefaultRenderResolution
	}
	width, height := cfg.Width, cfg.Height
	if width <= 0 {
		width = DefaultRenderWidth
	}
	if height <= 0 {
		height = DefaultRenderHeight
	}
	radius := cfg.PointRadius
	if radius <= 0 {
		radius = DefaultPointRadius
	}

	pxToMM := mmPerInch / dpi
	return &VectorOverlayRenderer{
		Overlay:     o,
		Width:       float64(width) * pxToMM,
		Height:      float64(height) * pxToMM,
		Padding:     40 * pxToMM,
		PointRadius: radius * pxToMM,
		Resolution:  canvas.DPI(dpi),
		ShowLinks:   true,
	}
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the overlay as an SVG to the provided writer
func (r *VectorOverlayRenderer) RenderToSVG(w io.Writer) error {
	svgRenderer := svg.New(w, r.Width, r.Height, nil)
	r.renderToCanvas(svgRenderer)
	return svgRenderer.Close()
}

// RenderToPNG rasterizes the overlay and writes it as a PNG
func (r *VectorOverlayRenderer) RenderToPNG(w io.Writer) error {
	rast := rasterizer.New(r.Width, r.Height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast)
	return png.Encode(w, rast)
}

// renderToCanvas holds the drawing logic shared by SVG and PNG output
func (r *VectorOverlayRenderer) renderToCanvas(renderer canvasRenderer) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: BackgroundColor}
	bgStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	renderer.RenderPath(canvas.Rectangle(r.Width, r.Height), bgStyle, canvas.Identity)

	layout := newOverlayLayout(r.Overlay.allPoints(), r.Width, r.Height, r.Padding)

	if r.ShowLinks {
		linkStyle := canvas.DefaultStyle
		linkStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		linkStyle.Stroke = canvas.Paint{Color: LinkColor}
		linkStyle.StrokeWidth = r.PointRadius / 4

		links := &canvas.Path{}
		n := min(len(r.Overlay.Aligned), len(r.Overlay.Target))
		for i := 0; i < n; i++ {
			x0, y0 := layout.project(r.Overlay.Aligned[i])
			x1, y1 := layout.project(r.Overlay.Target[i])
			links.MoveTo(x0, y0)
			links.LineTo(x1, y1)
		}
		if n > 0 {
			renderer.RenderPath(links, linkStyle, canvas.Identity)
		}
	}

	sourceStyle := canvas.DefaultStyle
	sourceStyle.Fill = canvas.Paint{Color: SourceColor}
	sourceStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	side := 2 * r.PointRadius
	for _, p := range r.Overlay.Source {
		x, y := layout.project(p)
		renderer.RenderPath(canvas.Rectangle(side, side).Translate(x-r.PointRadius, y-r.PointRadius), sourceStyle, canvas.Identity)
	}

	targetStyle := canvas.DefaultStyle
	targetStyle.Fill = canvas.Paint{Color: TargetColor}
	targetStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	for _, p := range r.Overlay.Target {
		x, y := layout.project(p)
		renderer.RenderPath(canvas.Circle(r.PointRadius).Translate(x, y), targetStyle, canvas.Identity)
	}

	alignedStyle := canvas.DefaultStyle
	alignedStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	alignedStyle.Stroke = canvas.Paint{Color: AlignedColor}
	alignedStyle.StrokeWidth = r.PointRadius / 3
	for _, p := range r.Overlay.Aligned {
		x, y := layout.project(p)
		renderer.RenderPath(canvas.Circle(r.PointRadius*1.5).Translate(x, y), alignedStyle, canvas.Identity)
	}
}
