// Package preview renders quick-look diagnostics of a particle source and a
// synthesized datacube: offline PNG figures for pipeline debugging and a
// self-contained HTML moment map for sharing.
package preview

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/redshift-labs/hicube/internal/cube"
	"github.com/redshift-labs/hicube/internal/monitoring"
	"github.com/redshift-labs/hicube/internal/source"
)

var logf = monitoring.Scoped("preview")

// velocityBins is the number of line-of-sight velocity bins used to colour
// the sky-plane scatter.
const velocityBins = 12

// SourceFigures writes three PNG diagnostics of the ensemble into dir:
// the sky-plane particle distribution coloured by line-of-sight velocity
// (sky_plane.png) and the two position-velocity slices against each sky
// axis (pv_y.png, pv_z.png). The line of sight is +x, so the sky plane is
// y-z and v_x is the line-of-sight velocity.
func SourceFigures(s *source.Source, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	_, y, z := s.Positions()
	vx, _, _ := s.Velocities()

	if err := saveSkyPlane(y, z, vx, filepath.Join(dir, "sky_plane.png")); err != nil {
		return err
	}
	if err := savePV("y (kpc)", y, vx, filepath.Join(dir, "pv_y.png")); err != nil {
		return err
	}
	if err := savePV("z (kpc)", z, vx, filepath.Join(dir, "pv_z.png")); err != nil {
		return err
	}
	logf("wrote source figures for %d particles to %s", s.N(), dir)
	return nil
}

// saveSkyPlane bins particles by v_x and plots each bin as one scatter
// series, giving a discrete moment-1 style colouring.
func saveSkyPlane(y, z, vx []float64, path string) error {
	p := plot.New()
	p.Title.Text = "Sky plane (line of sight +x)"
	p.X.Label.Text = "y (kpc)"
	p.Y.Label.Text = "z (kpc)"

	vmin, vmax := minMax(vx)
	span := vmax - vmin
	if span == 0 {
		span = 1
	}

	bins := make([]plotter.XYs, velocityBins)
	for i := range y {
		b := int(float64(velocityBins) * (vx[i] - vmin) / span)
		if b >= velocityBins {
			b = velocityBins - 1
		}
		bins[b] = append(bins[b], plotter.XY{X: y[i], Y: z[i]})
	}

	colors := generateColors(velocityBins)
	for b, pts := range bins {
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = colors[b]
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		lo := vmin + span*float64(b)/velocityBins
		p.Legend.Add(fmt.Sprintf("%.0f km/s", lo), sc)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save sky plane plot: %w", err)
	}
	return nil
}

func savePV(axisLabel string, pos, vx []float64, path string) error {
	p := plot.New()
	p.Title.Text = "Position-velocity slice"
	p.X.Label.Text = axisLabel
	p.Y.Label.Text = "v_x (km/s)"

	pts := make(plotter.XYs, len(pos))
	for i := range pos {
		pts[i] = plotter.XY{X: pos[i], Y: vx[i]}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	sc.GlyphStyle.Radius = vg.Points(1)
	p.Add(sc)

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save pv plot: %w", err)
	}
	return nil
}

// MomentMapHTML renders the channel-summed (moment-0) map of the cube as a
// standalone HTML scatter chart and writes it to w.
func MomentMapHTML(c *cube.DataCube, w io.Writer) error {
	nx, ny := c.SizeX(), c.SizeY()

	data := make([]opts.ScatterData, 0, nx*ny)
	maxFlux := 0.0
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			sum := 0.0
			for ch := 0; ch < c.NChannels; ch++ {
				sum += c.At(x, y, ch)
			}
			if sum == 0 {
				continue
			}
			if sum > maxFlux {
				maxFlux = sum
			}
			data = append(data, opts.ScatterData{Value: []interface{}{x, y, sum}})
		}
	}
	if maxFlux == 0 {
		maxFlux = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Moment 0", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Moment-0 map", Subtitle: fmt.Sprintf("grid=%dx%d channels=%d points=%d", nx, ny, c.NChannels, len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: nx - 1, Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: ny - 1, Name: "y (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxFlux),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("flux", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func minMax(vals []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if len(vals) == 0 {
		return 0, 0
	}
	return lo, hi
}

// generateColors creates a palette of distinct colours for velocity bins.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range).
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
