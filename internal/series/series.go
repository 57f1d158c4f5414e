// Package series turns raw daily OHLCV rows into the prepared time series
// every pattern detector consumes: sorted bars plus trailing volume and
// day-over-day change columns.
package series

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// MinBars is the minimum series length any detector can operate on.
const MinBars = 5

// ErrInsufficientData signals a series too short to prepare. Callers
// iterating many instruments treat it as a silent no-match.
var ErrInsufficientData = errors.New("insufficient data: need at least 5 bars")

// Bar is one trading day's OHLCV record for an instrument. Dates are trading
// days only; gaps are never filled.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// barJSON is the wire form: date as an ISO-8601 string.
type barJSON struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// UnmarshalJSON accepts "2006-01-02" or full RFC3339 date strings.
func (b *Bar) UnmarshalJSON(data []byte) error {
	var raw barJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	date, err := time.Parse("2006-01-02", raw.Date)
	if err != nil {
		date, err = time.Parse(time.RFC3339, raw.Date)
		if err != nil {
			return fmt.Errorf("invalid bar date %q: %w", raw.Date, err)
		}
	}

	b.Date = date
	b.Open = raw.Open
	b.High = raw.High
	b.Low = raw.Low
	b.Close = raw.Close
	b.Volume = raw.Volume
	return nil
}

// MarshalJSON writes the date back as "2006-01-02".
func (b Bar) MarshalJSON() ([]byte, error) {
	return json.Marshal(barJSON{
		Date:   b.Date.Format("2006-01-02"),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	})
}

// Series is an ordered-by-date bar sequence with derived columns. Derived
// values are NaN where undefined (leading rows below the minimum period,
// zero average volume, first-row pct change).
type Series struct {
	Bars        []Bar
	AvgVolume   []float64 // Trailing mean volume, window min(20, n), min periods min(5, n)
	VolumeRatio []float64 // Volume / AvgVolume
	PctChange   []float64 // Close-over-previous-close change
}

// Prepare sorts the bars ascending by date and computes the derived columns.
// The input slice is not modified. Returns ErrInsufficientData for fewer
// than MinBars bars.
func Prepare(bars []Bar) (*Series, error) {
	if len(bars) < MinBars {
		return nil, ErrInsufficientData
	}

	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	n := len(sorted)
	s := &Series{
		Bars:        sorted,
		AvgVolume:   make([]float64, n),
		VolumeRatio: make([]float64, n),
		PctChange:   make([]float64, n),
	}

	window := 20
	if n < window {
		window = n
	}
	minPeriods := 5
	if n < minPeriods {
		minPeriods = n
	}

	var runningSum float64
	for i := 0; i < n; i++ {
		runningSum += sorted[i].Volume
		if i >= window {
			runningSum -= sorted[i-window].Volume
		}

		count := i + 1
		if count > window {
			count = window
		}

		if count < minPeriods {
			s.AvgVolume[i] = math.NaN()
			s.VolumeRatio[i] = math.NaN()
		} else {
			avg := runningSum / float64(count)
			s.AvgVolume[i] = avg
			if avg > 0 {
				s.VolumeRatio[i] = sorted[i].Volume / avg
			} else {
				s.VolumeRatio[i] = math.NaN()
			}
		}

		if i == 0 {
			s.PctChange[i] = math.NaN()
		} else if prev := sorted[i-1].Close; prev > 0 {
			s.PctChange[i] = (sorted[i].Close - prev) / prev
		} else {
			s.PctChange[i] = math.NaN()
		}
	}

	return s, nil
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.Bars)
}

// LastIndex returns the index of the most recent bar.
func (s *Series) LastIndex() int {
	return len(s.Bars) - 1
}

// LastClose returns the most recent closing price.
func (s *Series) LastClose() float64 {
	return s.Bars[len(s.Bars)-1].Close
}
