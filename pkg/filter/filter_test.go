package filter

import (
	"testing"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

func makePeaks() []*core.Peak {
	specs := []struct {
		rt, area float64
	}{
		{30, 1000},
		{120, 50},
		{300, 5000},
		{610, 2000},
	}
	var peaks []*core.Peak
	for i, s := range specs {
		p := core.NewPeak(100+float64(i), 0, 0, s.rt, s.rt, s.rt)
		p.ID = core.PeakID(i + 1)
		p.SetArea("s1", s.area)
		peaks = append(peaks, p)
	}
	return peaks
}

func ids(peaks []*core.Peak) []core.PeakID {
	out := make([]core.PeakID, len(peaks))
	for i, p := range peaks {
		out[i] = p.ID
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []core.PeakID
	}{
		{"no filters", Config{}, []core.PeakID{1, 2, 3, 4}},
		{"min area", Config{MinArea: 100}, []core.PeakID{1, 3, 4}},
		{"rt window", Config{RTMin: 60, RTMax: 600}, []core.PeakID{2, 3}},
		{"intensity cutoff", Config{IntensityCutoff: 20}, []core.PeakID{1, 3, 4}},
		{"top n keeps order", Config{TopN: 2}, []core.PeakID{3, 4}},
		{"combined", Config{RTMax: 600, TopN: 1}, []core.PeakID{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peaks := makePeaks()
			got := ids(tt.cfg.Apply(peaks))

			if len(got) != len(tt.want) {
				t.Fatalf("Apply() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Apply() = %v, want %v", got, tt.want)
					break
				}
			}
			if len(peaks) != 4 {
				t.Error("Apply() must not modify its input")
			}
		})
	}
}

func TestRemoveZeroAreaSamples(t *testing.T) {
	p := core.NewPeak(100, 0, 0, 10, 10, 10)
	p.SetArea("a", 0)
	p.SetArea("b", 300)
	p.SetArea("c", 100)

	RemoveZeroAreaSamples(p)

	if len(p.Areas) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(p.Areas))
	}
	if p.Area != 200 {
		t.Errorf("expected median 200, got %v", p.Area)
	}
}
