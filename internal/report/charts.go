package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/furrow-data/fieldline/internal/db"
	"github.com/furrow-data/fieldline/internal/units"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// ChartsHTML renders an HTML dashboard for one session: cross track error
// and steer angle over time, coverage growth, and the driven path with
// engaged ticks highlighted. Timestamps display in the given timezone
// (empty or "UTC" keeps UTC).
func ChartsHTML(w io.Writer, session *db.Session, series *Series, stats Stats, coverage []db.CoverageStat, timezone string) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}

	started := time.Unix(0, int64(session.StartedUnix*1e9)).UTC()
	if timezone != "" {
		if local, err := units.ConvertTime(started, timezone); err == nil {
			started = local
		}
	}
	subtitle := fmt.Sprintf("session=%s field=%s law=%s started=%s",
		session.SessionID, session.FieldName, session.SteerLaw,
		started.Format("2006-01-02 15:04:05 MST"))

	elapsedLabels := make([]string, len(series.Elapsed))
	for i, e := range series.Elapsed {
		elapsedLabels[i] = fmt.Sprintf("%.1f", e)
	}

	xteData := make([]opts.LineData, len(series.XTE))
	for i, v := range series.XTE {
		xteData[i] = opts.LineData{Value: v}
	}
	xteLine := charts.NewLine()
	xteLine.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Session Report", Theme: "dark", Width: "1200px", Height: "400px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Cross Track Error", Subtitle: fmt.Sprintf("%s\nmean=%.3fm rms=%.3fm p95=%.3fm max=%.3fm", subtitle, stats.XTEMeanAbsM, stats.XTERMSM, stats.XTEP95M, stats.XTEMaxAbsM)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Elapsed (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "XTE (m)"}),
	)
	xteLine.SetXAxis(elapsedLabels).AddSeries("xte_m", xteData)

	steerData := make([]opts.LineData, len(series.SteerDeg))
	for i, v := range series.SteerDeg {
		steerData[i] = opts.LineData{Value: v}
	}
	steerLine := charts.NewLine()
	steerLine.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1200px", Height: "400px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Steer Angle", Subtitle: fmt.Sprintf("mean=%.2fdeg stddev=%.2fdeg engaged=%.0f%%", stats.SteerMeanDeg, stats.SteerStdDevDeg, stats.EngagedFraction*100)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Elapsed (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Steer (deg)"}),
	)
	steerLine.SetXAxis(elapsedLabels).AddSeries("steer_deg", steerData)

	coverageLine := coverageGrowthChart(series, coverage)

	pathScatter := pathChart(series, subtitle)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(xteLine, steerLine, coverageLine, pathScatter)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render session charts: %w", err)
	}
	return nil
}

// coverageGrowthChart plots worked area over elapsed time. It prefers the
// recorder's coverage_stats snapshots and falls back to the per-tick worked
// area column when no snapshots were written.
func coverageGrowthChart(series *Series, coverage []db.CoverageStat) *charts.Line {
	var labels []string
	var data []opts.LineData
	if len(coverage) > 0 {
		labels = make([]string, len(coverage))
		data = make([]opts.LineData, len(coverage))
		for i, c := range coverage {
			labels[i] = fmt.Sprintf("%.1f", c.TUnix-series.StartUnix)
			data[i] = opts.LineData{Value: c.WorkedAreaM2}
		}
	} else {
		labels = make([]string, len(series.WorkedM2))
		data = make([]opts.LineData, len(series.WorkedM2))
		for i, v := range series.WorkedM2 {
			labels[i] = fmt.Sprintf("%.1f", series.Elapsed[i])
			data[i] = opts.LineData{Value: v}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1200px", Height: "400px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Coverage Growth"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Elapsed (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Worked (m2)"}),
	)
	line.SetXAxis(labels).AddSeries("worked_m2", data)
	return line
}

// pathChart renders the driven path as a square scatter, engaged ticks in
// red over coasting ticks in grey.
func pathChart(series *Series, subtitle string) *charts.Scatter {
	engagedPts := make([]opts.ScatterData, 0, len(series.Easting))
	coastingPts := make([]opts.ScatterData, 0, len(series.Easting))

	var minE, maxE, minN, maxN float64
	if len(series.Easting) > 0 {
		minE, maxE = series.Easting[0], series.Easting[0]
		minN, maxN = series.Northing[0], series.Northing[0]
	}
	for i := range series.Easting {
		e, n := series.Easting[i], series.Northing[i]
		minE = math.Min(minE, e)
		maxE = math.Max(maxE, e)
		minN = math.Min(minN, n)
		maxN = math.Max(maxN, n)
		pt := opts.ScatterData{Value: []interface{}{e, n}}
		if series.Engaged[i] {
			engagedPts = append(engagedPts, pt)
		} else {
			coastingPts = append(coastingPts, pt)
		}
	}

	// Force a square plot by giving both axes the same span
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

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Path", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: midE - half, Max: midE + half, Name: "Easting (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: midN - half, Max: midN + half, Name: "Northing (m)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("coasting", coastingPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	scatter.AddSeries("engaged", engagedPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))
	return scatter
}
