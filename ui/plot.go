package ui

import (
	"math"

	"flashmon/telemetry"
)

// buildPlotData converts a buffer snapshot into the per-series sample rows
// the braille canvas consumes. Series are emitted in channel registration
// order so colors stay stable while channels come and go.
//
// NaN fill values (history before a channel's first sample, or frames the
// channel missed) carry the last finite value forward; a series with no
// finite value yet is drawn flat at the lower bound. All values are clamped
// into the configured Y display bounds.
func buildPlotData(snap telemetry.Snapshot, yMin, yMax float64) [][]float64 {
	if yMax <= yMin {
		yMax = yMin + 1
	}

	rows := make([][]float64, 0, len(snap.Order))
	for _, key := range snap.Order {
		vals := snap.Series[key]
		row := make([]float64, len(vals))
		last := yMin
		for i, v := range vals {
			if math.IsNaN(v) {
				row[i] = last
				continue
			}
			if v < yMin {
				v = yMin
			} else if v > yMax {
				v = yMax
			}
			row[i] = v
			last = v
		}
		rows = append(rows, row)
	}
	return rows
}

// latestValues returns the most recent finite value per channel, in
// registration order, for the legend.
func latestValues(snap telemetry.Snapshot) []telemetry.Sample {
	out := make([]telemetry.Sample, 0, len(snap.Order))
	for _, key := range snap.Order {
		vals := snap.Series[key]
		value := math.NaN()
		for i := len(vals) - 1; i >= 0; i-- {
			if !math.IsNaN(vals[i]) {
				value = vals[i]
				break
			}
		}
		out = append(out, telemetry.Sample{Key: key, Value: value})
	}
	return out
}
