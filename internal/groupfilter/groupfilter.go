// Package groupfilter implements GroupFilter: group-level quality
// thresholds, MS2-match scoring, and the parent-correlation test used
// to validate candidate isotope/adduct children. Score memoization
// uses a small in-process cache so repeated (parent, child) lookups
// within a run don't redo the same correlation or MS2 work.
package groupfilter

import (
	"fmt"
	"math"

	"github.com/dgraph-io/ristretto"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/peakgroup"
)

// Filter applies group-level thresholds and owns the score cache used
// by the correlation and MS2-match tests.
type Filter struct {
	cache *ristretto.Cache
}

// New builds a Filter with a small in-process score cache, sized for a
// single detection run's worth of (parent, child) correlation and MS2
// lookups.
func New() (*Filter, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("groupfilter: new cache: %w", err)
	}
	return &Filter{cache: cache}, nil
}

// Apply removes groups failing the minimum peak count, minimum mean
// quality and min/max group-intensity thresholds, and, for parent-form
// slices, the MS2-match test against the compound's library spectrum.
// No signal/blank ratio is checked: MinSignalBlankRatio is not used.
func (f *Filter) Apply(groups []*peakgroup.Group, p *params.Parameters) []*peakgroup.Group {
	kept := groups[:0]
	for _, g := range groups {
		if len(g.Peaks) < p.MinGroupPeakCount {
			continue
		}
		if g.MeanQuality() < p.MinGroupQuality {
			continue
		}
		intensity := maxHeight(g)
		if intensity < p.MinGroupIntensityFilter {
			continue
		}
		if p.MaxGroupIntensity > 0 && intensity > p.MaxGroupIntensity {
			continue
		}
		if p.MatchFragmentationFlag && g.Slice != nil && g.Slice.IsParentForm() {
			if score, ok := f.ms2Score(g); ok && score < p.MinMS2MatchScore {
				continue
			}
		}
		kept = append(kept, g)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func maxHeight(g *peakgroup.Group) float64 {
	var max float64
	for _, sp := range g.Peaks {
		if sp.Peak.Height > max {
			max = sp.Peak.Height
		}
	}
	return max
}

// ms2Score computes cosine similarity between the group's observed
// spectrum and its compound's library fragmentation spectrum, caching
// by (groupID, compound name). Returns ok=false when there is nothing
// to compare (no library spectrum attached).
func (f *Filter) ms2Score(g *peakgroup.Group) (float64, bool) {
	if g.Compound == nil || g.Compound.Fragmentation == nil || g.ObservedSpectrum == nil {
		return 0, false
	}
	key := fmt.Sprintf("ms2:%d:%s", g.GroupID, g.Compound.Name)
	if v, ok := f.cache.Get(key); ok {
		return v.(float64), true
	}
	score := CosineSimilarity(g.Compound.Fragmentation, g.ObservedSpectrum)
	f.cache.Set(key, score, 1)
	return score, true
}

// CosineSimilarity scores two spectra by binning both onto a shared
// nominal-mass axis and computing cosine similarity of the resulting
// intensity vectors, via gonum/floats.
func CosineSimilarity(a, b *mzmodel.Spectrum) float64 {
	if len(a.Mz) == 0 || len(b.Mz) == 0 {
		return 0
	}
	bins := make(map[int][2]float64)
	for i, mz := range a.Mz {
		bin := int(math.Round(mz))
		v := bins[bin]
		v[0] += a.Intensity[i]
		bins[bin] = v
	}
	for i, mz := range b.Mz {
		bin := int(math.Round(mz))
		v := bins[bin]
		v[1] += b.Intensity[i]
		bins[bin] = v
	}
	va := make([]float64, 0, len(bins))
	vb := make([]float64, 0, len(bins))
	for _, v := range bins {
		va = append(va, v[0])
		vb = append(vb, v[1])
	}
	na := floats.Norm(va, 2)
	nb := floats.Norm(vb, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(va, vb) / (na * nb)
}

// CorrelationResult is the outcome of the parent-correlation test.
type CorrelationResult struct {
	RtAligned   bool
	Correlation float64
	Pass        bool
}

// CorrelatesWithParent runs the parent-correlation test for a candidate
// child group against its parent: RT alignment within scanWindow, and
// Pearson correlation of the two groups' per-sample peak-height vectors
// at or above minCorrelation.
func (f *Filter) CorrelatesWithParent(parent, child *peakgroup.Group, sampleOrder []string,
	scanWindow int, avgScanTime, minCorrelation float64) CorrelationResult {
	key := fmt.Sprintf("corr:%d:%d", parent.GroupID, child.GroupID)
	if v, ok := f.cache.Get(key); ok {
		r := v.(CorrelationResult)
		return r
	}

	rtTol := float64(scanWindow) * avgScanTime
	aligned := math.Abs(parent.MeanRt-child.MeanRt) <= rtTol

	ph := parent.PeakHeights(sampleOrder)
	ch := child.PeakHeights(sampleOrder)
	var corr float64
	if stdev(ph) > 0 && stdev(ch) > 0 {
		corr = stat.Correlation(ph, ch, nil)
	}

	result := CorrelationResult{
		RtAligned:   aligned,
		Correlation: corr,
		Pass:        aligned && corr >= minCorrelation,
	}
	f.cache.Set(key, result, 1)
	return result
}

func stdev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	_, sd := stat.MeanStdDev(x, nil)
	return sd
}

// Close releases the filter's cache resources.
func (f *Filter) Close() {
	f.cache.Close()
}
