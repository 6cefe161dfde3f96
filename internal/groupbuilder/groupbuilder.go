// Package groupbuilder implements GroupBuilder: clustering cross-sample
// peaks at one slice into PeakGroups by walking each sample's EIC and
// merging peaks whose RT extents overlap into a single group, at most
// one peak per sample.
package groupbuilder

import (
	"sort"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/eic"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/peakgroup"
)

type candidate struct {
	sampleID string
	peak     eic.Peak
	mz       float64
}

// Build clusters all peaks across eics (one EIC per sample) into
// PeakGroups by RT-extent overlap. p is a per-slice Parameters
// snapshot, decoupling this stage from concurrent mutation elsewhere
// in the run. nextID is called once per group created to assign
// GroupID.
func Build(eics []*eic.EIC, slice *mzmodel.Slice, p *params.Parameters, nextID func() int) []*peakgroup.Group {
	var all []candidate
	for _, e := range eics {
		if e == nil {
			continue
		}
		for _, pk := range e.Peaks {
			all = append(all, candidate{sampleID: e.SampleID, peak: pk, mz: meanMz(slice)})
		}
	}
	if len(all) == 0 {
		return nil
	}

	sort.Slice(all, func(i, j int) bool { return all[i].peak.RtMin < all[j].peak.RtMin })

	var groups []*peakgroup.Group
	used := make([]bool, len(all))
	for i := range all {
		if used[i] {
			continue
		}
		g := &peakgroup.Group{
			GroupID:         nextID(),
			Slice:           slice,
			Compound:        slice.Compound,
			Adduct:          slice.Adduct,
			Isotope:         slice.Isotope,
			IntegrationType: peakgroup.Automated,
		}
		bySample := map[string]bool{all[i].sampleID: true}
		addToGroup(g, all[i])
		used[i] = true
		extendMax := all[i].peak.RtMax

		for j := i + 1; j < len(all); j++ {
			if used[j] {
				continue
			}
			if all[j].peak.RtMin > extendMax {
				break
			}
			if bySample[all[j].sampleID] {
				// one peak per sample per group
				continue
			}
			if !overlaps(all[i].peak, all[j].peak) {
				continue
			}
			addToGroup(g, all[j])
			bySample[all[j].sampleID] = true
			used[j] = true
			if all[j].peak.RtMax > extendMax {
				extendMax = all[j].peak.RtMax
			}
		}

		finalize(g)
		groups = append(groups, g)
	}
	return groups
}

func overlaps(a, b eic.Peak) bool {
	return a.RtMin <= b.RtMax && b.RtMin <= a.RtMax
}

func addToGroup(g *peakgroup.Group, c candidate) {
	g.Peaks = append(g.Peaks, peakgroup.SamplePeak{SampleID: c.sampleID, Peak: c.peak})
}

func finalize(g *peakgroup.Group) {
	var sumRt, sumMz float64
	for _, sp := range g.Peaks {
		sumRt += sp.Peak.Rt
	}
	g.MeanRt = sumRt / float64(len(g.Peaks))
	if g.Slice != nil {
		sumMz = (g.Slice.MzMin + g.Slice.MzMax) / 2
	}
	g.MeanMz = sumMz
	g.GroupRank = g.MeanQuality()
}

func meanMz(slice *mzmodel.Slice) float64 {
	if slice == nil {
		return 0
	}
	return (slice.MzMin + slice.MzMax) / 2
}
