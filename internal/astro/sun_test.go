package astro

import (
	"math"
	"testing"
	"time"
)

func TestAltitude(t *testing.T) {
	tests := []struct {
		name     string
		at       time.Time
		lat, lon float64
		min, max float64
	}{
		{
			name: "equinox noon on the equator",
			at:   time.Date(2026, 3, 20, 12, 7, 0, 0, time.UTC),
			lat:  0, lon: 0,
			min: 80, max: 90,
		},
		{
			name: "equinox midnight on the equator",
			at:   time.Date(2026, 3, 20, 0, 7, 0, 0, time.UTC),
			lat:  0, lon: 0,
			min: -90, max: -80,
		},
		{
			name: "warsaw midsummer noon",
			at:   time.Date(2026, 6, 21, 10, 36, 0, 0, time.UTC),
			lat:  52.23, lon: 21.01,
			min: 59, max: 62,
		},
		{
			name: "warsaw winter midnight",
			at:   time.Date(2026, 12, 21, 23, 0, 0, 0, time.UTC),
			lat:  52.23, lon: 21.01,
			min: -62, max: -50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Altitude(tt.at, tt.lat, tt.lon)
			if got < tt.min || got > tt.max {
				t.Errorf("Altitude() = %.2f, want between %.0f and %.0f", got, tt.min, tt.max)
			}
		})
	}
}

func TestPosition_AzimuthRange(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 24; h++ {
		_, az := Position(start.Add(time.Duration(h)*time.Hour), 50, 19)
		if math.IsNaN(az) || az < 0 || az >= 360 {
			t.Fatalf("hour %d azimuth = %v, want [0,360)", h, az)
		}
	}
}

func TestPosition_SunsetCrossesThreshold(t *testing.T) {
	// Warsaw, 1 March: sunset around 16:20 UTC.
	before := Altitude(time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC), 52.23, 21.01)
	after := Altitude(time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC), 52.23, 21.01)
	if before < 3 || after > 3 {
		t.Errorf("altitudes around sunset = %.2f / %.2f, want crossing 3 degrees", before, after)
	}
}
