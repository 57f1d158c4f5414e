package series

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func makeBars(closes []float64, volumes []float64) []Bar {
	bars := make([]Bar, len(closes))
	for i := range closes {
		bars[i] = Bar{
			Date:   day(i),
			Open:   closes[i],
			High:   closes[i] * 1.01,
			Low:    closes[i] * 0.99,
			Close:  closes[i],
			Volume: volumes[i],
		}
	}
	return bars
}

func TestPrepareTooShort(t *testing.T) {
	bars := makeBars([]float64{10, 11, 12}, []float64{100, 100, 100})

	_, err := Prepare(bars)
	if err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestPrepareSortsByDate(t *testing.T) {
	bars := makeBars([]float64{10, 11, 12, 13, 14}, []float64{100, 100, 100, 100, 100})
	// Shuffle input order
	bars[0], bars[4] = bars[4], bars[0]
	bars[1], bars[3] = bars[3], bars[1]

	s, err := Prepare(bars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 1; i < s.Len(); i++ {
		if !s.Bars[i].Date.After(s.Bars[i-1].Date) {
			t.Errorf("bars not sorted at index %d", i)
		}
	}
	if s.Bars[0].Close != 10 || s.LastClose() != 14 {
		t.Errorf("unexpected close ordering: first=%v last=%v", s.Bars[0].Close, s.LastClose())
	}
}

func TestPrepareDerivedColumns(t *testing.T) {
	closes := []float64{10, 10.2, 10.4, 10.6, 10.8, 11}
	volumes := []float64{100, 100, 100, 100, 100, 200}

	s, err := Prepare(makeBars(closes, volumes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Leading rows below min periods have no average volume
	for i := 0; i < 4; i++ {
		if !math.IsNaN(s.AvgVolume[i]) {
			t.Errorf("AvgVolume[%d] = %v, want NaN", i, s.AvgVolume[i])
		}
		if !math.IsNaN(s.VolumeRatio[i]) {
			t.Errorf("VolumeRatio[%d] = %v, want NaN", i, s.VolumeRatio[i])
		}
	}

	// Index 4: mean of first 5 volumes = 100
	if s.AvgVolume[4] != 100 {
		t.Errorf("AvgVolume[4] = %v, want 100", s.AvgVolume[4])
	}
	if s.VolumeRatio[4] != 1.0 {
		t.Errorf("VolumeRatio[4] = %v, want 1.0", s.VolumeRatio[4])
	}

	// Index 5: mean of all 6 volumes = 700/6
	wantAvg := 700.0 / 6.0
	if math.Abs(s.AvgVolume[5]-wantAvg) > 1e-9 {
		t.Errorf("AvgVolume[5] = %v, want %v", s.AvgVolume[5], wantAvg)
	}
	wantRatio := 200.0 / wantAvg
	if math.Abs(s.VolumeRatio[5]-wantRatio) > 1e-9 {
		t.Errorf("VolumeRatio[5] = %v, want %v", s.VolumeRatio[5], wantRatio)
	}

	if !math.IsNaN(s.PctChange[0]) {
		t.Errorf("PctChange[0] = %v, want NaN", s.PctChange[0])
	}
	if math.Abs(s.PctChange[1]-0.02) > 1e-9 {
		t.Errorf("PctChange[1] = %v, want 0.02", s.PctChange[1])
	}
}

func TestPrepareZeroAvgVolume(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10}
	volumes := []float64{0, 0, 0, 0, 0}

	s, err := Prepare(makeBars(closes, volumes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !math.IsNaN(s.VolumeRatio[4]) {
		t.Errorf("VolumeRatio[4] = %v, want NaN for zero average volume", s.VolumeRatio[4])
	}
}

func TestPrepareRollingWindowCap(t *testing.T) {
	// 25 bars: window caps at 20
	closes := make([]float64, 25)
	volumes := make([]float64, 25)
	for i := range closes {
		closes[i] = 10
		volumes[i] = float64(i + 1)
	}

	s, err := Prepare(makeBars(closes, volumes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Last index: mean of volumes 6..25 = (6+25)/2 = 15.5
	if math.Abs(s.AvgVolume[24]-15.5) > 1e-9 {
		t.Errorf("AvgVolume[24] = %v, want 15.5", s.AvgVolume[24])
	}
}

func TestBarJSONRoundTrip(t *testing.T) {
	raw := `{"date":"2024-03-15","open":10.5,"high":11.2,"low":10.1,"close":11.0,"volume":123456}`

	var bar Bar
	if err := json.Unmarshal([]byte(raw), &bar); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if bar.Date.Format("2006-01-02") != "2024-03-15" {
		t.Errorf("date = %v", bar.Date)
	}
	if bar.Close != 11.0 || bar.Volume != 123456 {
		t.Errorf("unexpected fields: %+v", bar)
	}

	out, err := json.Marshal(bar)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var again Bar
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("re-unmarshal failed: %v", err)
	}
	if !again.Date.Equal(bar.Date) || again.Close != bar.Close {
		t.Errorf("round trip mismatch: %+v vs %+v", again, bar)
	}
}

func TestBarJSONBadDate(t *testing.T) {
	raw := `{"date":"not-a-date","open":1,"high":1,"low":1,"close":1,"volume":1}`

	var bar Bar
	if err := json.Unmarshal([]byte(raw), &bar); err == nil {
		t.Fatal("expected error for invalid date")
	}
}
