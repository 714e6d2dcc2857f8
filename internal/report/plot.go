package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	xteColor      = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	steerColor    = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	engagedColor  = color.RGBA{R: 255, G: 82, B: 82, A: 255}
	coastingColor = color.RGBA{R: 158, G: 158, B: 158, A: 255}
	zeroColor     = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

// PlotSession writes PNG plots for one session into outDir: cross track
// error and steer angle over elapsed time, and the driven path. Returns the
// paths of the files written.
func PlotSession(series *Series, outDir string) ([]string, error) {
	if len(series.Elapsed) == 0 {
		return nil, fmt.Errorf("no ticks to plot")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var files []string

	xteFile := filepath.Join(outDir, "session_xte.png")
	if err := plotTimeSeries(xteFile, "Cross Track Error", "XTE (m)", series.Elapsed, series.XTE, xteColor, true); err != nil {
		return files, fmt.Errorf("save xte plot: %w", err)
	}
	files = append(files, xteFile)

	steerFile := filepath.Join(outDir, "session_steer.png")
	if err := plotTimeSeries(steerFile, "Steer Angle", "Steer (deg)", series.Elapsed, series.SteerDeg, steerColor, true); err != nil {
		return files, fmt.Errorf("save steer plot: %w", err)
	}
	files = append(files, steerFile)

	pathFile := filepath.Join(outDir, "session_path.png")
	if err := plotPath(pathFile, series); err != nil {
		return files, fmt.Errorf("save path plot: %w", err)
	}
	files = append(files, pathFile)

	return files, nil
}

func plotTimeSeries(file, title, yLabel string, elapsed, values []float64, c color.Color, zeroLine bool) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Elapsed (s)"
	p.Y.Label.Text = yLabel

	if zeroLine && len(elapsed) > 0 {
		zero := plotter.XYs{
			{X: elapsed[0], Y: 0},
			{X: elapsed[len(elapsed)-1], Y: 0},
		}
		zl, err := plotter.NewLine(zero)
		if err != nil {
			return err
		}
		zl.Color = zeroColor
		zl.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(zl)
	}

	pts := make(plotter.XYs, len(elapsed))
	for i := range elapsed {
		pts[i] = plotter.XY{X: elapsed[i], Y: values[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)

	return p.Save(14*vg.Inch, 6*vg.Inch, file)
}

// plotPath draws the driven path with engaged ticks highlighted. Axis ranges
// share one span so a meter east renders as long as a meter north.
func plotPath(file string, series *Series) error {
	p := plot.New()
	p.Title.Text = "Path"
	p.X.Label.Text = "Easting (m)"
	p.Y.Label.Text = "Northing (m)"

	engaged := make(plotter.XYs, 0, len(series.Easting))
	coasting := make(plotter.XYs, 0, len(series.Easting))
	minE, maxE := series.Easting[0], series.Easting[0]
	minN, maxN := series.Northing[0], series.Northing[0]
	for i := range series.Easting {
		e, n := series.Easting[i], series.Northing[i]
		if e < minE {
			minE = e
		}
		if e > maxE {
			maxE = e
		}
		if n < minN {
			minN = n
		}
		if n > maxN {
			maxN = n
		}
		xy := plotter.XY{X: e, Y: n}
		if series.Engaged[i] {
			engaged = append(engaged, xy)
		} else {
			coasting = append(coasting, xy)
		}
	}

	half := (maxE - minE) / 2
	if h := (maxN - minN) / 2; h > half {
		half = h
	}
	half *= 1.05
	if half == 0 {
		half = 1.0
	}
	midE := (minE + maxE) / 2
	midN := (minN + maxN) / 2
	p.X.Min, p.X.Max = midE-half, midE+half
	p.Y.Min, p.Y.Max = midN-half, midN+half

	if len(coasting) > 0 {
		sc, err := plotter.NewScatter(coasting)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = coastingColor
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add("coasting", sc)
	}
	if len(engaged) > 0 {
		sc, err := plotter.NewScatter(engaged)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = engagedColor
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add("engaged", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(10*vg.Inch, 10*vg.Inch, file)
}
