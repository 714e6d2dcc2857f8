// Package report builds post-run session reports from recorded ticks.
// This file computes summary statistics and chart series; rendering to PNG
// and HTML lives in plot.go and charts.go so the numbers stay testable on
// their own.
package report

import (
	"math"
	"sort"

	"github.com/furrow-data/fieldline/internal/db"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes guidance quality over one session. Cross track and steer
// figures cover engaged ticks only; duration, distance, and speed cover the
// whole session.
type Stats struct {
	TickCount       int     `json:"tick_count"`
	DurationSec     float64 `json:"duration_sec"`
	DistanceM       float64 `json:"distance_m"`
	MeanSpeedMPS    float64 `json:"mean_speed_mps"`
	EngagedTicks    int     `json:"engaged_ticks"`
	EngagedFraction float64 `json:"engaged_fraction"`

	XTEMeanAbsM float64 `json:"xte_mean_abs_m"`
	XTERMSM     float64 `json:"xte_rms_m"`
	XTEP95M     float64 `json:"xte_p95_m"`
	XTEMaxAbsM  float64 `json:"xte_max_abs_m"`

	SteerMeanDeg   float64 `json:"steer_mean_deg"`
	SteerStdDevDeg float64 `json:"steer_stddev_deg"`

	WorkedAreaM2 float64 `json:"worked_area_m2"`
}

// ComputeStats aggregates a time-ordered tick series into Stats.
func ComputeStats(ticks []db.Tick) Stats {
	var s Stats
	if len(ticks) == 0 {
		return s
	}

	s.TickCount = len(ticks)
	s.DurationSec = ticks[len(ticks)-1].TUnix - ticks[0].TUnix
	s.WorkedAreaM2 = ticks[len(ticks)-1].WorkedAreaM2

	speeds := make([]float64, len(ticks))
	var absXTE, steer []float64
	for i, t := range ticks {
		speeds[i] = t.SpeedMPS
		if i > 0 {
			s.DistanceM += math.Hypot(t.Easting-ticks[i-1].Easting, t.Northing-ticks[i-1].Northing)
		}
		if t.Engaged {
			absXTE = append(absXTE, math.Abs(t.CrossTrackM))
			steer = append(steer, t.SteerAngleDeg)
		}
	}
	s.MeanSpeedMPS = stat.Mean(speeds, nil)

	s.EngagedTicks = len(steer)
	s.EngagedFraction = float64(s.EngagedTicks) / float64(s.TickCount)
	if len(absXTE) == 0 {
		return s
	}

	s.XTEMeanAbsM = stat.Mean(absXTE, nil)
	s.XTERMSM = math.Sqrt(floats.Dot(absXTE, absXTE) / float64(len(absXTE)))
	sort.Float64s(absXTE)
	s.XTEP95M = stat.Quantile(0.95, stat.Empirical, absXTE, nil)
	s.XTEMaxAbsM = absXTE[len(absXTE)-1]

	s.SteerMeanDeg = stat.Mean(steer, nil)
	if len(steer) > 1 {
		s.SteerStdDevDeg = stat.StdDev(steer, nil)
	}
	return s
}

// HistogramBin is one bin of a steer angle distribution.
type HistogramBin struct {
	LowDeg  float64 `json:"low_deg"`
	HighDeg float64 `json:"high_deg"`
	Count   int     `json:"count"`
}

// SteerHistogram bins engaged steer angles into bins equal-width bins
// spanning [lo, hi). Angles outside the range count toward the edge bins.
// Returns nil when there are no engaged ticks or the range is empty.
func SteerHistogram(ticks []db.Tick, lo, hi float64, bins int) []HistogramBin {
	if bins < 1 || hi <= lo {
		return nil
	}

	var steer []float64
	for _, t := range ticks {
		if !t.Engaged {
			continue
		}
		v := t.SteerAngleDeg
		if v < lo {
			v = lo
		}
		if v >= hi {
			v = math.Nextafter(hi, lo)
		}
		steer = append(steer, v)
	}
	if len(steer) == 0 {
		return nil
	}
	sort.Float64s(steer)

	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	counts := stat.Histogram(nil, dividers, steer, nil)

	out := make([]HistogramBin, bins)
	for i := range out {
		out[i] = HistogramBin{
			LowDeg:  dividers[i],
			HighDeg: dividers[i+1],
			Count:   int(counts[i]),
		}
	}
	return out
}

// Series holds per-tick chart columns for one session, time-ordered.
type Series struct {
	StartUnix float64
	Elapsed   []float64 // seconds since the first tick
	XTE       []float64
	SteerDeg  []float64
	SpeedMPS  []float64
	WorkedM2  []float64
	Easting   []float64
	Northing  []float64
	Engaged   []bool
}

// BuildSeries transforms a time-ordered tick series into chart columns.
func BuildSeries(ticks []db.Tick) *Series {
	s := &Series{}
	if len(ticks) == 0 {
		return s
	}

	s.StartUnix = ticks[0].TUnix
	s.Elapsed = make([]float64, len(ticks))
	s.XTE = make([]float64, len(ticks))
	s.SteerDeg = make([]float64, len(ticks))
	s.SpeedMPS = make([]float64, len(ticks))
	s.WorkedM2 = make([]float64, len(ticks))
	s.Easting = make([]float64, len(ticks))
	s.Northing = make([]float64, len(ticks))
	s.Engaged = make([]bool, len(ticks))

	for i, t := range ticks {
		s.Elapsed[i] = t.TUnix - s.StartUnix
		s.XTE[i] = t.CrossTrackM
		s.SteerDeg[i] = t.SteerAngleDeg
		s.SpeedMPS[i] = t.SpeedMPS
		s.WorkedM2[i] = t.WorkedAreaM2
		s.Easting[i] = t.Easting
		s.Northing[i] = t.Northing
		s.Engaged[i] = t.Engaged
	}
	return s
}
