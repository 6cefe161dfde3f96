// Package peakgroup defines PeakGroup, the cross-sample clustering of
// peaks produced by GroupBuilder and consumed by every stage downstream
// of it.
package peakgroup

import (
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/eic"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
)

// IntegrationType mirrors PeakGroup::integrationType in the original.
type IntegrationType int

const (
	// Automated groups were built from real peaks by GroupBuilder.
	Automated IntegrationType = iota
	// Ghost groups are synthetic parent placeholders created by
	// MetaGrouper for orphaned children.
	Ghost
	// Manual groups were created or edited by a human operator; this
	// core never produces them but preserves the enum slot so callers
	// that persist groups elsewhere round-trip the value.
	Manual
)

func (t IntegrationType) String() string {
	switch t {
	case Automated:
		return "automated"
	case Ghost:
		return "ghost"
	case Manual:
		return "manual"
	default:
		return "unknown"
	}
}

// SamplePeak pairs a detected Peak with the sample it came from.
type SamplePeak struct {
	SampleID string
	Peak     eic.Peak
}

// Group is one PeakGroup: at most one peak per sample, co-eluting at a
// single slice, plus nested child groups once MetaGrouper has run.
type Group struct {
	GroupID int

	Slice *mzmodel.Slice

	Peaks []SamplePeak

	MeanMz float64
	MeanRt float64

	// GroupRank ranks groups of the same compound by quality; higher is
	// better. N-best pruning keeps the top eicMaxGroups by descending
	// GroupRank.
	GroupRank float64

	Compound *mzmodel.Compound
	Adduct   *mzmodel.Adduct
	Isotope  mzmodel.Isotope

	Ms2EventCount int
	// ObservedSpectrum is the group's observed MS2 spectrum, if any.
	// Nothing in this module fills it or Ms2EventCount; both stay at
	// their zero values unless a caller sets them.
	ObservedSpectrum *mzmodel.Spectrum

	IntegrationType IntegrationType

	// ChildIsotopes and ChildAdducts are populated by MetaGrouper when
	// this group is recognized as a parent.
	ChildIsotopes []*Group
	ChildAdducts  []*Group
}

// IsGhost reports whether g is a synthetic parent with no real peaks.
func (g *Group) IsGhost() bool {
	return g.IntegrationType == Ghost
}

// Quantitation selects which per-peak metric a group's representative
// intensity is computed from.
type Quantitation int

const (
	Height Quantitation = iota
	AreaTop
	Area
	AreaNotCorrected
	AreaTopNotCorrected
)

func metric(p eic.Peak, q Quantitation) float64 {
	switch q {
	case AreaTop:
		return p.AreaTop
	case Area:
		return p.Area
	case AreaNotCorrected:
		return p.AreaNotCorrected
	case AreaTopNotCorrected:
		return p.AreaTopNotCorrected
	default:
		return p.Height
	}
}

// EicMaxIntensity computes the maximum of metric q across all EICs'
// apex peaks - used before a group even exists, directly on the raw
// per-sample EICs.
func EicMaxIntensity(eics []*eic.EIC, q Quantitation) float64 {
	var max float64
	for _, e := range eics {
		if e == nil {
			continue
		}
		for _, pk := range e.Peaks {
			v := metric(pk, q)
			if v > max {
				max = v
			}
		}
	}
	return max
}

// MeanQuality returns the mean peak Quality across a group's peaks.
func (g *Group) MeanQuality() float64 {
	if len(g.Peaks) == 0 {
		return 0
	}
	var sum float64
	for _, sp := range g.Peaks {
		sum += sp.Peak.Quality
	}
	return sum / float64(len(g.Peaks))
}

// PeakHeights returns the per-sample Height vector in the given sample
// order, 0 for samples with no peak in this group - the shape Pearson
// correlation (GroupFilter's parent-correlation test) operates on.
func (g *Group) PeakHeights(sampleOrder []string) []float64 {
	heights := make([]float64, len(sampleOrder))
	idx := make(map[string]int, len(g.Peaks))
	for i, sp := range g.Peaks {
		idx[sp.SampleID] = i
	}
	for i, sid := range sampleOrder {
		if j, ok := idx[sid]; ok {
			heights[i] = g.Peaks[j].Peak.Height
		}
	}
	return heights
}
