package models

import (
	"encoding/json"
	"fmt"
)

// MTimeSeriesPoint is one (timestamp, price) sample. Timestamp is epoch millis.
// On the wire it is the array [timestamp, price].
type MTimeSeriesPoint struct {
	Timestamp int64
	Price     float64
}

func (p MTimeSeriesPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{float64(p.Timestamp), p.Price})
}

func (p *MTimeSeriesPoint) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("time series point must have 2 elements, got %d", len(raw))
	}
	p.Timestamp = int64(raw[0])
	p.Price = raw[1]
	return nil
}

// MTimeSeries maps a range label ("1h", "7d") to its ordered points.
type MTimeSeries map[string][]MTimeSeriesPoint

// MHistory maps a symbol to its time series.
type MHistory map[string]MTimeSeries

// -----------------------------------------------------------------------------

// Clone returns a deep copy.
func (ts MTimeSeries) Clone() MTimeSeries {
	if ts == nil {
		return nil
	}
	out := make(MTimeSeries, len(ts))
	for label, points := range ts {
		cp := make([]MTimeSeriesPoint, len(points))
		copy(cp, points)
		out[label] = cp
	}
	return out
}

// Last returns the newest point of a range.
func (ts MTimeSeries) Last(label string) (MTimeSeriesPoint, bool) {
	points := ts[label]
	if len(points) == 0 {
		return MTimeSeriesPoint{}, false
	}
	return points[len(points)-1], true
}

// -----------------------------------------------------------------------------

// Clone returns a deep copy.
func (h MHistory) Clone() MHistory {
	if h == nil {
		return nil
	}
	out := make(MHistory, len(h))
	for symbol, ts := range h {
		out[symbol] = ts.Clone()
	}
	return out
}
