package units

import (
	"errors"
	"math"
	"testing"
)

func TestConvert(t *testing.T) {
	svc := NewService()

	tests := []struct {
		name   string
		values []float64
		from   string
		to     string
		want   []float64
	}{
		{
			name:   "degF to degC",
			values: []float64{32, 212},
			from:   "degF",
			to:     "degC",
			want:   []float64{0, 100},
		},
		{
			name:   "degC to K",
			values: []float64{0, 100},
			from:   "degC",
			to:     "K",
			want:   []float64{273.15, 373.15},
		},
		{
			name:   "mm to cm",
			values: []float64{10, 25},
			from:   "mm",
			to:     "cm",
			want:   []float64{1, 2.5},
		},
		{
			name:   "hPa to Pa",
			values: []float64{1013.25},
			from:   "hPa",
			to:     "Pa",
			want:   []float64{101325},
		},
		{
			name:   "percent to fraction",
			values: []float64{50},
			from:   "%",
			to:     "1",
			want:   []float64{0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Convert(tt.values, tt.from, tt.to)
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			for i := range tt.want {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("Convert()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestConvert_MissingPassesThrough(t *testing.T) {
	svc := NewService()
	got, err := svc.Convert([]float64{32, math.NaN()}, "degF", "degC")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !math.IsNaN(got[1]) {
		t.Errorf("Convert() NaN sample = %v, want NaN", got[1])
	}
}

func TestConvert_Errors(t *testing.T) {
	svc := NewService()

	if _, err := svc.Convert([]float64{1}, "furlong", "m"); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("unknown unit error = %v, want ErrUnknownUnit", err)
	}
	if _, err := svc.Convert([]float64{1}, "degC", "mm"); !errors.Is(err, ErrIncommensurable) {
		t.Errorf("incommensurable error = %v, want ErrIncommensurable", err)
	}
}

func TestCommensurable(t *testing.T) {
	svc := NewService()

	if !svc.Commensurable("degF", "K") {
		t.Error("Commensurable(degF, K) = false, want true")
	}
	if svc.Commensurable("degC", "hPa") {
		t.Error("Commensurable(degC, hPa) = true, want false")
	}
	if svc.Commensurable("bogus", "m") {
		t.Error("Commensurable(bogus, m) = true, want false")
	}
}
