// Package identifier implements Identifier: merging untargeted groups
// with target-library slices by m/z and RT proximity, walking existing
// groups against a target compound list and cloning/annotating matches.
package identifier

import (
	"math"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/groupfilter"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/peakgroup"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/progress"
)

// Identifier annotates untargeted groups against a target-slice library.
type Identifier struct {
	GroupFilter *groupfilter.Filter
	Progress    progress.Sink
}

// New builds an Identifier; prog may be nil, defaulting to a discarding
// sink.
func New(gf *groupfilter.Filter, prog progress.Sink) *Identifier {
	if prog == nil {
		prog = progress.None
	}
	return &Identifier{GroupFilter: gf, Progress: prog}
}

// Annotate matches groups against targetSlices by m/z (and, depending
// on Parameters, RT and MS2 score) and clones each match, assigning a
// fresh ID from nextID. Returns the updated group container: matched
// originals are removed, their annotated clones inserted at the front.
func (id *Identifier) Annotate(groups []*peakgroup.Group, targetSlices []*mzmodel.Slice,
	p *params.Parameters, nextID func() int) []*peakgroup.Group {

	if len(groups) == 0 || len(targetSlices) == 0 {
		return groups
	}

	var staged []*peakgroup.Group
	matched := make(map[*peakgroup.Group]bool, len(groups))

	total := len(groups)
	for i, g := range groups {
		for _, slice := range targetSlices {
			if !mzMatches(slice.MzMin, slice.MzMax, g.MeanMz, p) {
				continue
			}

			clone := cloneAnnotated(g, slice)
			clone.GroupID = nextID()

			if p.IdentificationMatchRt && slice.Compound != nil && slice.Compound.HasExpectedRt {
				if math.Abs(slice.Compound.ExpectedRt-clone.MeanRt) > p.IdentificationRtWindow {
					continue
				}
			}

			if p.MatchFragmentationFlag && clone.Slice.IsParentForm() && clone.Ms2EventCount > 0 {
				if score, ok := id.ms2Score(clone); ok && score < p.MinMS2MatchScore {
					continue
				}
			}

			staged = append(staged, clone)
			matched[g] = true
		}
		id.Progress.Report("identifying groups", i+1, total)
	}

	var remaining []*peakgroup.Group
	for _, g := range groups {
		if !matched[g] {
			remaining = append(remaining, g)
		}
	}

	return append(staged, remaining...)
}

// mzMatches checks |slice.mz - group.meanMz| <= massCutoffMerge (ppm or
// Da per Parameters).
func mzMatches(mzMin, mzMax, meanMz float64, p *params.Parameters) bool {
	targetMz := (mzMin + mzMax) / 2
	tol := p.MassCutoffMerge
	if p.MassCutoffMergeIsPPM {
		tol = targetMz * p.MassCutoffMerge / 1e6
	}
	return math.Abs(targetMz-meanMz) <= tol
}

func cloneAnnotated(g *peakgroup.Group, slice *mzmodel.Slice) *peakgroup.Group {
	clone := *g
	clone.Slice = slice
	clone.Compound = slice.Compound
	clone.Adduct = slice.Adduct
	clone.Isotope = slice.Isotope
	clone.ChildIsotopes = nil
	clone.ChildAdducts = nil
	clone.Peaks = append([]peakgroup.SamplePeak(nil), g.Peaks...)
	return &clone
}

func (id *Identifier) ms2Score(g *peakgroup.Group) (float64, bool) {
	if g.Compound == nil || g.Compound.Fragmentation == nil || g.ObservedSpectrum == nil {
		return 0, false
	}
	return groupfilter.CosineSimilarity(g.Compound.Fragmentation, g.ObservedSpectrum), true
}
