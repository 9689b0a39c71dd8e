// Package canvas is a raster drawing surface driven by drawing commands.
// It keeps a stroke history so strokes can be undone and redone.
package canvas

import (
	"image"
	"io"
	"sync"

	"github.com/gogpu/gg"
	"go.uber.org/zap"

	"github.com/ayusman/madhubani/internal/command"
	"github.com/ayusman/madhubani/internal/detector"
)

// Options configures a Canvas.
type Options struct {
	Width, Height int
	Background    gg.RGBA
	Palette       []gg.RGBA
	BrushWidth    float64
	EraserWidth   float64
}

// DefaultOptions returns a 1280x720 white canvas with a blue, green, red
// and yellow palette.
func DefaultOptions() Options {
	return Options{
		Width:      1280,
		Height:     720,
		Background: gg.White,
		Palette: []gg.RGBA{
			gg.RGB(0, 0, 1),
			gg.RGB(0, 1, 0),
			gg.RGB(1, 0, 0),
			gg.RGB(1, 1, 0),
		},
		BrushWidth:  15,
		EraserWidth: 50,
	}
}

type point struct{ x, y float64 }

// stroke is one undoable unit: a drawn line or a contiguous erase run.
type stroke struct {
	points []point
	color  gg.RGBA
	width  float64
}

// Canvas implements command.Canvas.
type Canvas struct {
	opts Options
	log  *zap.Logger

	mu       sync.Mutex
	dc       *gg.Context
	history  []stroke
	redo     []stroke
	current  *stroke
	erasing  *stroke
	colorIdx int
}

// New creates a blank Canvas.
func New(opts Options, log *zap.Logger) *Canvas {
	if log == nil {
		log = zap.NewNop()
	}
	if len(opts.Palette) == 0 {
		opts.Palette = DefaultOptions().Palette
	}
	c := &Canvas{
		opts: opts,
		log:  log.Named("canvas"),
		dc:   gg.NewContext(opts.Width, opts.Height),
	}
	c.dc.SetLineCap(gg.LineCapRound)
	c.dc.SetLineJoin(gg.LineJoinRound)
	c.dc.ClearWithColor(opts.Background)
	return c
}

// Apply implements command.Canvas.
func (c *Canvas) Apply(cmd command.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cmd.Kind != command.Erase {
		c.endErase()
	}

	switch cmd.Kind {
	case command.StrokeStart:
		c.endStroke()
		c.current = &stroke{color: c.color(), width: c.opts.BrushWidth}
		c.extend(c.current, cmd)

	case command.StrokePoint:
		if c.current == nil {
			c.current = &stroke{color: c.color(), width: c.opts.BrushWidth}
		}
		c.extend(c.current, cmd)

	case command.StrokeEnd:
		c.endStroke()

	case command.Erase:
		c.endStroke()
		if c.erasing == nil {
			c.erasing = &stroke{color: c.opts.Background, width: c.opts.EraserWidth}
		}
		c.extend(c.erasing, cmd)

	case command.Undo:
		c.endStroke()
		if n := len(c.history); n > 0 {
			c.redo = append(c.redo, c.history[n-1])
			c.history = c.history[:n-1]
			c.render()
		}

	case command.Redo:
		c.endStroke()
		if n := len(c.redo); n > 0 {
			c.history = append(c.history, c.redo[n-1])
			c.redo = c.redo[:n-1]
			c.render()
		}

	case command.Clear:
		c.current = nil
		c.history = nil
		c.redo = nil
		c.render()
		c.log.Info("canvas cleared")

	case command.CycleColor:
		c.colorIdx = (c.colorIdx + 1) % len(c.opts.Palette)
		c.log.Debug("color changed", zap.Int("index", c.colorIdx))
	}
}

func (c *Canvas) color() gg.RGBA {
	return c.opts.Palette[c.colorIdx]
}

// extend appends the command's position to s and paints the new segment.
func (c *Canvas) extend(s *stroke, cmd command.Command) {
	if !cmd.HasPosition {
		return
	}
	p := c.toPixels(cmd.Position)
	s.points = append(s.points, p)

	n := len(s.points)
	if n == 1 {
		c.dot(s, p)
		return
	}
	c.segment(s, s.points[n-2], p)
}

func (c *Canvas) endStroke() {
	if c.current == nil {
		return
	}
	if len(c.current.points) > 0 {
		c.history = append(c.history, *c.current)
		c.redo = nil
	}
	c.current = nil
}

func (c *Canvas) endErase() {
	if c.erasing == nil {
		return
	}
	if len(c.erasing.points) > 0 {
		c.history = append(c.history, *c.erasing)
		c.redo = nil
	}
	c.erasing = nil
}

func (c *Canvas) toPixels(p detector.Point3D) point {
	return point{x: p.X * float64(c.opts.Width), y: p.Y * float64(c.opts.Height)}
}

func (c *Canvas) dot(s *stroke, p point) {
	c.dc.SetColor(s.color.Color())
	c.dc.DrawCircle(p.x, p.y, s.width/2)
	if err := c.dc.Fill(); err != nil {
		c.log.Warn("fill failed", zap.Error(err))
	}
}

func (c *Canvas) segment(s *stroke, a, b point) {
	c.dc.SetColor(s.color.Color())
	c.dc.SetLineWidth(s.width)
	c.dc.MoveTo(a.x, a.y)
	c.dc.LineTo(b.x, b.y)
	if err := c.dc.Stroke(); err != nil {
		c.log.Warn("stroke failed", zap.Error(err))
	}
}

// render repaints the whole history.
func (c *Canvas) render() {
	c.dc.ClearWithColor(c.opts.Background)
	for i := range c.history {
		s := &c.history[i]
		if len(s.points) == 0 {
			continue
		}
		c.dot(s, s.points[0])
		for j := 1; j < len(s.points); j++ {
			c.segment(s, s.points[j-1], s.points[j])
		}
	}
}

// Image returns a copy of the current raster.
func (c *Canvas) Image() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.dc.FlushGPU(); err != nil {
		c.log.Warn("flush failed", zap.Error(err))
	}
	return c.dc.Image()
}

// SavePNG writes the canvas to path.
func (c *Canvas) SavePNG(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc.SavePNG(path)
}

// EncodePNG writes the canvas as PNG to w.
func (c *Canvas) EncodePNG(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc.EncodePNG(w)
}

// State summarizes the canvas.
type State struct {
	Strokes   int  `json:"strokes"`
	RedoDepth int  `json:"redo_depth"`
	Color     int  `json:"color_index"`
	Drawing   bool `json:"drawing"`
}

// State returns the current history sizes and color.
func (c *Canvas) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Strokes:   len(c.history),
		RedoDepth: len(c.redo),
		Color:     c.colorIdx,
		Drawing:   c.current != nil || c.erasing != nil,
	}
}

// Close releases the drawing context.
func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc.Close()
}
