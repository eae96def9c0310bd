// Package render draws a simulation record as a two panel PNG: velocity
// against the reference on top, actuator and resistance forces below.
package render

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/multierr"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/erh/cruisesim"
)

const defaultColor = "#FF6B35"

var (
	referenceColor  = color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}
	tractionColor   = color.RGBA{R: 0x2a, G: 0x9d, B: 0x8f, A: 0xff}
	brakeColor      = color.RGBA{R: 0xe6, G: 0x39, B: 0x46, A: 0xff}
	resistanceColor = color.RGBA{R: 0x45, G: 0x7b, B: 0x9d, A: 0xff}
	gravityColor    = color.RGBA{R: 0x8d, G: 0x99, B: 0xae, A: 0xff}
)

// Options controls the figure.
type Options struct {
	Title string
	// Color is the hex color of the velocity trace.
	Color string
	// Previous, when set, is drawn dashed under the velocity trace.
	Previous *cruisesim.Trace

	Width, Height vg.Length
	DPI           int
}

func (o Options) withDefaults() Options {
	if o.Color == "" {
		o.Color = defaultColor
	}
	if o.Width == 0 {
		o.Width = 12 * vg.Inch
	}
	if o.Height == 0 {
		o.Height = 8 * vg.Inch
	}
	if o.DPI == 0 {
		o.DPI = 96
	}
	return o
}

// Plots builds the velocity and force panels without drawing them.
func Plots(rec *cruisesim.Record, opts Options) (*plot.Plot, *plot.Plot, error) {
	if rec.Len() == 0 {
		return nil, nil, fmt.Errorf("render: empty record")
	}
	opts = opts.withDefaults()
	trace, err := colorful.Hex(opts.Color)
	if err != nil {
		return nil, nil, fmt.Errorf("render: color %q: %w", opts.Color, err)
	}

	speed, err := velocityPanel(rec, opts, trace)
	if err != nil {
		return nil, nil, err
	}
	forces, err := forcePanel(rec)
	if err != nil {
		return nil, nil, err
	}
	return speed, forces, nil
}

func velocityPanel(rec *cruisesim.Record, opts Options, trace colorful.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "speed (km/h)"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	if prev := opts.Previous; prev != nil && len(prev.Time) > 0 {
		l, err := line(prev.Time, cruisesim.ScaleAll(prev.Velocity, cruisesim.KmhPerMs))
		if err != nil {
			return nil, fmt.Errorf("render: previous trace: %w", err)
		}
		l.Color = trace.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, 0.5).Clamped()
		l.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		p.Add(l)
		p.Legend.Add("previous", l)
	}

	v, err := line(rec.Time, cruisesim.ScaleAll(rec.Velocity, cruisesim.KmhPerMs))
	if err != nil {
		return nil, err
	}
	v.Color = trace
	v.Width = vg.Points(2)
	p.Add(v)
	p.Legend.Add("speed", v)

	ref := plotter.NewFunction(func(float64) float64 { return cruisesim.MsToKmh(rec.ReferenceSpeed) })
	ref.Color = referenceColor
	ref.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	p.Add(ref)
	p.Legend.Add("reference", ref)

	p.X.Min, p.X.Max = rec.Time[0], rec.Time[rec.Len()-1]
	return p, nil
}

func forcePanel(rec *cruisesim.Record) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "force (kN)"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	type series struct {
		name  string
		ys    []float64
		color color.Color
	}
	all := []series{
		{"traction", rec.TractionForce, tractionColor},
		{"brake", rec.BrakeForce, brakeColor},
		{"resistance", rec.ResistanceForce, resistanceColor},
	}
	if hasGravity(rec) {
		all = append(all, series{"gravity", rec.GravityForce, gravityColor})
	}

	for _, s := range all {
		l, err := line(rec.Time, cruisesim.ScaleAll(s.ys, 1e-3))
		if err != nil {
			return nil, fmt.Errorf("render: %s: %w", s.name, err)
		}
		l.Color = s.color
		p.Add(l)
		p.Legend.Add(s.name, l)
	}
	return p, nil
}

func hasGravity(rec *cruisesim.Record) bool {
	for _, g := range rec.GravityForce {
		if g != 0 {
			return true
		}
	}
	return false
}

func line(xs, ys []float64) (*plotter.Line, error) {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	pts := make(plotter.XYs, n)
	for i := range pts {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	return plotter.NewLine(pts)
}

// Write renders rec as a PNG to w.
func Write(w io.Writer, rec *cruisesim.Record, opts Options) error {
	opts = opts.withDefaults()
	speed, forces, err := Plots(rec, opts)
	if err != nil {
		return err
	}

	c := vgimg.NewWith(
		vgimg.UseWH(opts.Width, opts.Height),
		vgimg.UseDPI(opts.DPI),
	)
	dc := draw.New(c)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadX: vg.Millimeter, PadY: 3 * vg.Millimeter}
	canvases := plot.Align([][]*plot.Plot{{speed}, {forces}}, tiles, dc)
	speed.Draw(canvases[0][0])
	forces.Draw(canvases[1][0])

	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("render: write png: %w", err)
	}
	return nil
}

// WriteFile renders rec as a PNG at path, creating parent directories.
func WriteFile(path string, rec *cruisesim.Record, opts Options) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	bw := bufio.NewWriter(f)
	if err := Write(bw, rec, opts); err != nil {
		return err
	}
	return bw.Flush()
}
