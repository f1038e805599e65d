// Package chart draws the budget-versus-spent overview shown on the dashboard.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("chart: no data")

// Bar is one project group: its budget and spend side by side.
type Bar struct {
	Label  string
	Budget float64
	Spent  float64
}

// Options customises the renderer. Zero values fall back to the defaults.
type Options struct {
	Width       int
	Height      int
	Title       string
	XLabel      string
	YLabel      string
	BudgetColor string
	SpentColor  string
	Ticks       int
}

// DefaultOptions mirrors the overview chart on the dashboard.
func DefaultOptions() Options {
	return Options{
		Width:       1000,
		Height:      600,
		Title:       "Project Budget vs Spent Overview",
		XLabel:      "Projects",
		YLabel:      "Amount ($)",
		BudgetColor: "#667eea",
		SpentColor:  "#764ba2",
		Ticks:       5,
	}
}

const (
	marginLeft   = 90
	marginRight  = 30
	marginTop    = 80
	marginBottom = 150
	barRatio     = 0.35
	axisStyle    = "stroke:#4a5568;stroke-width:1"
	gridStyle    = "stroke:#e2e8f0;stroke-width:1;stroke-dasharray:4,4"
	textStyle    = "font-family:sans-serif;font-size:12px;fill:#4a5568"
)

// Render writes a grouped bar chart as SVG.
func Render(w io.Writer, bars []Bar, opts Options) error {
	if len(bars) == 0 {
		return ErrNoData
	}
	opts = withDefaults(opts)

	plotW := opts.Width - marginLeft - marginRight
	plotH := opts.Height - marginTop - marginBottom
	if plotW <= 0 || plotH <= 0 {
		return fmt.Errorf("chart: viewport %dx%d too small", opts.Width, opts.Height)
	}

	maxVal := 0.0
	for _, b := range bars {
		maxVal = math.Max(maxVal, math.Max(b.Budget, b.Spent))
	}
	top := niceCeil(maxVal)
	scale := float64(plotH) / top
	baseline := marginTop + plotH

	canvas := svg.New(w)
	canvas.Start(opts.Width, opts.Height, `role="img"`)
	canvas.Title(opts.Title)
	canvas.Rect(0, 0, opts.Width, opts.Height, "fill:#ffffff")
	canvas.Text(opts.Width/2, 32, opts.Title, "font-family:sans-serif;font-size:20px;font-weight:bold;fill:#2d3748;text-anchor:middle")

	for i := 0; i <= opts.Ticks; i++ {
		value := top * float64(i) / float64(opts.Ticks)
		y := baseline - int(math.Round(value*scale))
		if i > 0 {
			canvas.Line(marginLeft, y, marginLeft+plotW, y, gridStyle)
		}
		canvas.Text(marginLeft-8, y+4, formatTick(value), textStyle+";text-anchor:end")
	}

	canvas.Line(marginLeft, marginTop, marginLeft, baseline, axisStyle)
	canvas.Line(marginLeft, baseline, marginLeft+plotW, baseline, axisStyle)

	group := float64(plotW) / float64(len(bars))
	barW := int(math.Max(1, math.Round(group*barRatio)))
	for i, b := range bars {
		center := marginLeft + int(math.Round(group*(float64(i)+0.5)))
		drawBar(canvas, center-barW, baseline, barW, b.Budget*scale, "fill:"+opts.BudgetColor)
		drawBar(canvas, center, baseline, barW, b.Spent*scale, "fill:"+opts.SpentColor)

		canvas.TranslateRotate(center, baseline+14, -45)
		canvas.Text(0, 0, b.Label, textStyle+";text-anchor:end")
		canvas.Gend()
	}

	canvas.Text(marginLeft+plotW/2, opts.Height-16, opts.XLabel, textStyle+";font-size:14px;text-anchor:middle")
	canvas.TranslateRotate(22, marginTop+plotH/2, -90)
	canvas.Text(0, 0, opts.YLabel, textStyle+";font-size:14px;text-anchor:middle")
	canvas.Gend()

	legendX := opts.Width - marginRight - 180
	canvas.Rect(legendX, 48, 14, 14, "fill:"+opts.BudgetColor)
	canvas.Text(legendX+20, 60, "Budget", textStyle)
	canvas.Rect(legendX+90, 48, 14, 14, "fill:"+opts.SpentColor)
	canvas.Text(legendX+110, 60, "Spent", textStyle)

	canvas.End()
	return nil
}

func drawBar(canvas *svg.SVG, x, baseline, width int, height float64, style string) {
	h := int(math.Round(height))
	if h <= 0 {
		return
	}
	canvas.Rect(x, baseline-h, width, h, style)
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.Title == "" {
		opts.Title = def.Title
	}
	if opts.XLabel == "" {
		opts.XLabel = def.XLabel
	}
	if opts.YLabel == "" {
		opts.YLabel = def.YLabel
	}
	if opts.BudgetColor == "" {
		opts.BudgetColor = def.BudgetColor
	}
	if opts.SpentColor == "" {
		opts.SpentColor = def.SpentColor
	}
	if opts.Ticks <= 0 {
		opts.Ticks = def.Ticks
	}
	return opts
}

// niceCeil rounds v up to 1, 2, 2.5 or 5 times a power of ten.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if m*exp >= v {
			return m * exp
		}
	}
	return 10 * exp
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return trimZero(fmt.Sprintf("%.1fM", v/1_000_000))
	case abs >= 1_000:
		return trimZero(fmt.Sprintf("%.1fk", v/1_000))
	case v == math.Trunc(v):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func trimZero(s string) string {
	if len(s) > 3 && s[len(s)-3:len(s)-1] == ".0" {
		return s[:len(s)-3] + s[len(s)-1:]
	}
	return s
}
