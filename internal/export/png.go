package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"

	"github.com/joacominatel/dataprism-demo/internal/chart"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Default PNG dimensions.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
	MaxDimension  = 4096
)

const (
	marginLeft   = 60
	marginRight  = 20
	marginTop    = 40
	marginBottom = 50
)

var (
	background = color.RGBA{0xff, 0xff, 0xff, 0xff}
	axisColor  = color.RGBA{0x37, 0x41, 0x51, 0xff}
	gridColor  = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
	textColor  = color.RGBA{0x11, 0x18, 0x27, 0xff}
)

// PNG rasterizes a built chart. Zero dimensions fall back to the defaults.
func PNG(ctx context.Context, c *chart.Chart, width, height int) ([]byte, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("png dimensions %dx%d exceed %d", width, height, MaxDimension)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	drawText(img, marginLeft, marginTop/2+4, c.Title, textColor)

	var err error
	switch c.Type {
	case chart.Pie:
		err = drawPie(ctx, img, c)
	case chart.Line:
		drawAxes(img, c)
		err = drawLines(ctx, img, c)
	default:
		drawAxes(img, c)
		err = drawBars(ctx, img, c)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

type plotArea struct {
	x0, y0, x1, y1 int
}

func area(img *image.RGBA) plotArea {
	b := img.Bounds()
	return plotArea{
		x0: marginLeft,
		y0: marginTop,
		x1: max(marginLeft+1, b.Dx()-marginRight),
		y1: max(marginTop+1, b.Dy()-marginBottom),
	}
}

func (p plotArea) width() int  { return p.x1 - p.x0 }
func (p plotArea) height() int { return p.y1 - p.y0 }

func drawAxes(img *image.RGBA, c *chart.Chart) {
	p := area(img)
	maxV := c.MaxValue()

	const ticks = 4
	for i := 0; i <= ticks; i++ {
		y := p.y1 - p.height()*i/ticks
		hline(img, p.x0, p.x1, y, gridColor)
		label := strconv.FormatFloat(maxV*float64(i)/ticks, 'f', -1, 64)
		drawText(img, 4, y+4, label, textColor)
	}
	vline(img, p.x0, p.y0, p.y1, axisColor)
	hline(img, p.x0, p.x1, p.y1, axisColor)

	if n := len(c.Labels); n > 0 {
		step := p.width() / n
		for i, l := range c.Labels {
			drawText(img, p.x0+step*i+2, p.y1+16, truncate(l, max(1, step/7)), textColor)
		}
	}
	drawText(img, p.x0, p.y1+36, c.XLabel, axisColor)
}

func drawBars(ctx context.Context, img *image.RGBA, c *chart.Chart) error {
	p := area(img)
	n := len(c.Labels)
	if n == 0 || len(c.Series) == 0 {
		return nil
	}
	maxV := c.MaxValue()
	if maxV <= 0 {
		return nil
	}

	slot := p.width() / n
	barW := max(1, (slot-4)/len(c.Series))
	for si, s := range c.Series {
		if err := ctx.Err(); err != nil {
			return err
		}
		col := parseHex(s.Color)
		for i, v := range s.Values {
			if v <= 0 {
				continue
			}
			h := int(float64(p.height()) * v / maxV)
			x := p.x0 + slot*i + 2 + barW*si
			r := image.Rect(x, p.y1-h, x+barW-1, p.y1)
			draw.Draw(img, r, &image.Uniform{C: col}, image.Point{}, draw.Src)
		}
	}
	return nil
}

func drawLines(ctx context.Context, img *image.RGBA, c *chart.Chart) error {
	p := area(img)
	n := len(c.Labels)
	if n == 0 {
		return nil
	}
	maxV := c.MaxValue()
	if maxV <= 0 {
		maxV = 1
	}

	slot := p.width() / n
	point := func(i int, v float64) (int, int) {
		return p.x0 + slot*i + slot/2, p.y1 - int(float64(p.height())*v/maxV)
	}
	for _, s := range c.Series {
		if err := ctx.Err(); err != nil {
			return err
		}
		col := parseHex(s.Color)
		for i := range s.Values {
			x, y := point(i, s.Values[i])
			dot(img, x, y, 3, col)
			if i > 0 {
				px, py := point(i-1, s.Values[i-1])
				line(img, px, py, x, y, col)
			}
		}
	}
	return nil
}

func drawPie(ctx context.Context, img *image.RGBA, c *chart.Chart) error {
	totals := c.Totals()
	sum := 0.0
	for _, v := range totals {
		if v > 0 {
			sum += v
		}
	}
	if sum == 0 {
		return nil
	}

	colors := make([]color.RGBA, len(totals))
	for i := range colors {
		colors[i] = parseHex(chart.Color(i))
	}

	// upper bounds of each slice in radians, clockwise from 12 o'clock
	bounds := make([]float64, len(totals))
	acc := 0.0
	for i, v := range totals {
		if v > 0 {
			acc += v
		}
		bounds[i] = 2 * math.Pi * acc / sum
	}

	p := area(img)
	cx, cy := (p.x0+p.x1)/2, (p.y0+p.y1)/2
	r := min(p.width(), p.height()) / 2
	for y := cy - r; y <= cy+r; y++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := float64(x-cx), float64(y-cy)
			if dx*dx+dy*dy > float64(r*r) {
				continue
			}
			angle := math.Atan2(dx, -dy)
			if angle < 0 {
				angle += 2 * math.Pi
			}
			for i, b := range bounds {
				if angle <= b {
					img.SetRGBA(x, y, colors[i])
					break
				}
			}
		}
	}

	for i, l := range c.Labels {
		y := p.y0 + 14*i + 12
		r := image.Rect(p.x1-110, y-9, p.x1-100, y+1)
		draw.Draw(img, r, &image.Uniform{C: colors[i]}, image.Point{}, draw.Src)
		drawText(img, p.x1-96, y, truncate(l, 12), textColor)
	}
	return nil
}

func drawText(img *image.RGBA, x, y int, s string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func hline(img *image.RGBA, x0, x1, y int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y, col)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, col color.RGBA) {
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x, y, col)
	}
}

func dot(img *image.RGBA, cx, cy, r int, col color.RGBA) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				img.SetRGBA(cx+x, cy+y, col)
			}
		}
	}
}

// line draws a two pixel wide segment with Bresenham's algorithm.
func line(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
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
		img.SetRGBA(x0, y0, col)
		img.SetRGBA(x0, y0+1, col)
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

func parseHex(s string) color.RGBA {
	c := color.RGBA{0x4f, 0x46, 0xe5, 0xff}
	if len(s) != 7 || s[0] != '#' {
		return c
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return c
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "~"
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
