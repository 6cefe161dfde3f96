// Package peakfilter implements PeakFilter: dropping peaks within an
// EIC that fail per-peak quality thresholds, such as minimum
// signal-to-baseline ratio, intensity and width.
package peakfilter

import (
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/eic"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
)

// thresholds is the resolved set of per-peak cutoffs, picked from the
// normal or relaxed Parameters fields depending on slice kind.
type thresholds struct {
	minIntensity float64
	minSB        float64
	minQuality   float64
	minWidth     int
}

// Apply filters eics in place, removing peaks that fail the
// thresholds. relaxed selects the relaxed ruleset used for
// isotope/adduct slices.
func Apply(eics []*eic.EIC, p *params.Parameters, relaxed bool) {
	th := resolve(p, relaxed)
	for _, e := range eics {
		if e == nil {
			continue
		}
		e.Peaks = filterPeaks(e.Peaks, th)
	}
}

func resolve(p *params.Parameters, relaxed bool) thresholds {
	if relaxed {
		return thresholds{
			minIntensity: p.MinPeakIntensityRelaxed,
			minSB:        p.MinPeakSignalBaselineRatioRelaxed,
			minQuality:   p.MinPeakQualityRelaxed,
			minWidth:     p.MinPeakWidthRelaxed,
		}
	}
	return thresholds{
		minIntensity: p.MinPeakIntensity,
		minSB:        p.MinPeakSignalBaselineRatio,
		minQuality:   p.MinPeakQuality,
		minWidth:     p.MinPeakWidth,
	}
}

func filterPeaks(peaks []eic.Peak, th thresholds) []eic.Peak {
	kept := peaks[:0]
	for _, pk := range peaks {
		width := pk.MaxIdx - pk.MinIdx + 1
		if pk.Height < th.minIntensity {
			continue
		}
		if pk.SignalBaselineRatio < th.minSB {
			continue
		}
		if pk.Quality < th.minQuality {
			continue
		}
		if width < th.minWidth {
			continue
		}
		kept = append(kept, pk)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
