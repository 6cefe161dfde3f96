package peakfilter

import (
	"testing"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/eic"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
)

func TestApplyDropsLowQualityPeaks(t *testing.T) {
	e := &eic.EIC{Peaks: []eic.Peak{
		{MinIdx: 0, MaxIdx: 4, Height: 5000, SignalBaselineRatio: 3, Quality: 0.5},
		{MinIdx: 0, MaxIdx: 1, Height: 10, SignalBaselineRatio: 1.01, Quality: 0.01},
	}}
	p := params.Default()

	Apply([]*eic.EIC{e}, p, false)

	if len(e.Peaks) != 1 {
		t.Fatalf("expected 1 surviving peak, got %d", len(e.Peaks))
	}
	if e.Peaks[0].Height != 5000 {
		t.Fatalf("expected the high-quality peak to survive, got %+v", e.Peaks[0])
	}
}

func TestApplyRelaxedKeepsLowIntensityIsotopePeak(t *testing.T) {
	e := &eic.EIC{Peaks: []eic.Peak{
		{MinIdx: 0, MaxIdx: 2, Height: 150, SignalBaselineRatio: 1.2, Quality: 0.05},
	}}
	p := params.Default()

	Apply([]*eic.EIC{e}, p, true)
	if len(e.Peaks) != 1 {
		t.Fatalf("expected the relaxed ruleset to keep the isotope peak, got %d peaks", len(e.Peaks))
	}
}
