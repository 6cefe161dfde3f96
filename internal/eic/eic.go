// Package eic implements EicExtractor: turning a (sample, slice) pair
// into a processed chromatogram with baseline and peak positions. The
// pipeline runs in a strict order - smooth, estimate baseline, trim to
// the requested RT range, then detect peak positions above the
// signal/baseline threshold - using gonum for the underlying vector
// arithmetic.
package eic

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/msdata"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
)

// EIC is the chromatogram for one (sample, slice): parallel arrays of
// equal length, Rt monotonically nondecreasing.
type EIC struct {
	SampleID string
	Slice    *mzmodel.Slice `json:"-"`

	Rt        []float64
	Intensity []float64
	Baseline  []float64

	// Peaks are the detected peak positions after the full pipeline has
	// run.
	Peaks []Peak

	minSBDiff float64
}

// Peak is a contiguous region of an EIC, described by its index extents
// and the scalar metrics downstream components consume.
type Peak struct {
	MinIdx, MaxIdx, ApexIdx int
	RtMin, RtMax, Rt        float64

	Height           float64
	Area             float64
	AreaTop          float64
	AreaNotCorrected float64
	AreaTopNotCorrected float64

	SignalBaselineRatio float64
	Quality             float64

	// MLQuality is set by Classifier.ScoreEICs when a model is loaded;
	// zero means "not scored".
	MLQuality float64
}

// Extract builds one EIC for sampleSrc against slice, picking the
// extraction method from the slice's identity: SRM id first, then MRM
// precursor/product, falling back to a plain m/z/RT range. A nil, nil
// return means the sample yielded no points, or only zero-intensity
// points, in the requested window - not an error.
func Extract(sampleSrc msdata.EicSource, slice *mzmodel.Slice, p *params.Parameters) (*EIC, error) {
	points, err := selectPoints(sampleSrc, slice, p)
	if err != nil {
		return nil, err
	}
	hasSignal := false
	for _, pt := range points {
		if pt.Intensity != 0 {
			hasSignal = true
			break
		}
	}
	if !hasSignal {
		return nil, nil
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Rt < points[j].Rt })

	e := &EIC{
		SampleID:  sampleSrc.ID(),
		Slice:     slice,
		Rt:        make([]float64, len(points)),
		Intensity: make([]float64, len(points)),
	}
	for i, pt := range points {
		e.Rt[i] = pt.Rt
		e.Intensity[i] = pt.Intensity
	}

	smooth(e.Intensity, smoothWindow(p))
	e.computeBaseline(p)
	e.reduceToRtRange(slice.RtMin, slice.RtMax)
	e.minSBDiff = p.MinSignalBaselineDifference
	e.detectPeakPositions(p.EicSmoothingWindow)

	return e, nil
}

func selectPoints(src msdata.EicSource, slice *mzmodel.Slice, p *params.Parameters) ([]msdata.EicPoint, error) {
	switch {
	case slice.SrmID != "":
		return src.GetEICBySrm(slice.SrmID, p.EicType)
	case slice.Compound != nil && slice.Compound.PrecursorMz() > 0 && slice.Compound.ProductMz() > 0:
		return src.GetEICByMRM(slice.Compound.PrecursorMz(), slice.Compound.CollisionEnergy,
			slice.Compound.ProductMz(), p.EicType, p.Filterline, p.AmuQ1, p.AmuQ3)
	default:
		rtMin, rtMax := slice.RtMin, slice.RtMax
		if rtMin == 0 && rtMax == 0 {
			rtMin, rtMax = src.MinRt(), src.MaxRt()
		}
		return src.GetEICByRange(slice.MzMin, slice.MzMax, rtMin, rtMax, 1, p.EicType, p.Filterline)
	}
}

func smoothWindow(p *params.Parameters) int {
	if p.EicSmoothingAlgorithm == params.SmootherNone {
		return 0
	}
	return p.EicSmoothingWindow
}

// smooth applies an in-place moving average of the given half-window
// size (0 disables smoothing).
func smooth(x []float64, halfWindow int) {
	if halfWindow <= 0 || len(x) == 0 {
		return
	}
	out := make([]float64, len(x))
	for i := range x {
		lo := i - halfWindow
		if lo < 0 {
			lo = 0
		}
		hi := i + halfWindow
		if hi >= len(x) {
			hi = len(x) - 1
		}
		out[i] = floats.Sum(x[lo:hi+1]) / float64(hi-lo+1)
	}
	copy(x, out)
}

// computeBaseline dispatches to AsLS or threshold-percentile baseline
// estimation per Parameters.
func (e *EIC) computeBaseline(p *params.Parameters) {
	if p.AslsBaselineMode {
		e.Baseline = asLSBaseline(e.Intensity, p.AslsSmoothness, p.AslsAsymmetry)
		return
	}
	e.Baseline = thresholdBaseline(e.Intensity, p.BaselineSmoothingWindow, p.BaselineDropTopX)
}

// asLSBaseline implements asymmetric least squares smoothing (Eilers &
// Boelens), an iterative weighted-smoother baseline estimator. lambda
// controls smoothness, p the asymmetry between points above/below the
// current baseline estimate.
func asLSBaseline(y []float64, lambda, p float64) []float64 {
	n := len(y)
	if n == 0 {
		return nil
	}
	if lambda <= 0 {
		lambda = 1
	}
	if p <= 0 {
		p = 0.001
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	z := make([]float64, n)
	const iterations = 10
	for iter := 0; iter < iterations; iter++ {
		z = whittakerSmooth(y, w, lambda)
		for i := range w {
			if y[i] > z[i] {
				w[i] = p
			} else {
				w[i] = 1 - p
			}
		}
	}
	return z
}

// whittakerSmooth is a weighted smoother in the spirit of the Whittaker
// penalized least-squares solve, relaxed in place for a fixed 50
// sweeps: each point is pulled toward the mean of its neighbours up to
// two positions away, with weight lambda*6 in the interior, lambda*5
// next to the ends and lambda*2 at the ends, against w[i]*y[i]. It does
// not solve the exact second-difference system (W + lambda*D'D) z = W y.
func whittakerSmooth(y, w []float64, lambda float64) []float64 {
	n := len(y)
	z := make([]float64, n)
	copy(z, y)
	const sweeps = 50
	for s := 0; s < sweeps; s++ {
		for i := 0; i < n; i++ {
			var penalty float64
			var denom float64 = w[i]
			switch {
			case i == 0 || i == n-1:
				penalty = lambda * 2 * neighborAvg(z, i)
				denom += lambda * 2
			case i == 1 || i == n-2:
				penalty = lambda * 5 * neighborAvg(z, i)
				denom += lambda * 5
			default:
				penalty = lambda * 6 * neighborAvg(z, i)
				denom += lambda * 6
			}
			if denom == 0 {
				continue
			}
			z[i] = (w[i]*y[i] + penalty) / denom
		}
	}
	return z
}

func neighborAvg(z []float64, i int) float64 {
	n := len(z)
	var sum float64
	var count float64
	for _, d := range []int{-2, -1, 1, 2} {
		j := i + d
		if j >= 0 && j < n {
			sum += z[j]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

// thresholdBaseline estimates the baseline as a moving window average
// after discarding the top dropTopPct percent of points in each window.
func thresholdBaseline(y []float64, window int, dropTopPct float64) []float64 {
	n := len(y)
	base := make([]float64, n)
	if n == 0 {
		return base
	}
	if window <= 0 {
		window = 1
	}
	for i := 0; i < n; i++ {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window
		if hi >= n {
			hi = n - 1
		}
		sorted := append([]float64(nil), y[lo:hi+1]...)
		sort.Float64s(sorted)
		keep := int(float64(len(sorted)) * (1 - dropTopPct/100))
		if keep < 1 {
			keep = 1
		}
		if keep > len(sorted) {
			keep = len(sorted)
		}
		base[i] = floats.Sum(sorted[:keep]) / float64(keep)
	}
	return base
}

// reduceToRtRange trims the EIC to [rtMin, rtMax] in place. A
// zero-width (0, 0) range (ghost/untargeted slices with no RT bound)
// leaves the EIC untouched.
func (e *EIC) reduceToRtRange(rtMin, rtMax float64) {
	if rtMin == 0 && rtMax == 0 {
		return
	}
	lo := sort.SearchFloat64s(e.Rt, rtMin)
	hi := sort.SearchFloat64s(e.Rt, math.Nextafter(rtMax, math.Inf(1)))
	if lo >= hi {
		e.Rt, e.Intensity, e.Baseline = nil, nil, nil
		return
	}
	e.Rt = e.Rt[lo:hi]
	e.Intensity = e.Intensity[lo:hi]
	if e.Baseline != nil {
		e.Baseline = e.Baseline[lo:hi]
	}
}

// detectPeakPositions finds each contiguous run of points above
// baseline+minSBDiff and turns it into one peak, bounded by the first
// and last point of the run, with its apex at the run's highest point.
// A run holding several local maxima is not split.
func (e *EIC) detectPeakPositions(smoothWindow int) {
	n := len(e.Intensity)
	if n == 0 {
		return
	}
	above := make([]bool, n)
	for i := 0; i < n; i++ {
		above[i] = e.Intensity[i] > e.Baseline[i]+e.minSBDiff
	}

	var peaks []Peak
	i := 0
	for i < n {
		if !above[i] {
			i++
			continue
		}
		start := i
		apex := i
		for i < n && above[i] {
			if e.Intensity[i] > e.Intensity[apex] {
				apex = i
			}
			i++
		}
		end := i - 1
		peaks = append(peaks, e.buildPeak(start, end, apex))
	}
	e.Peaks = peaks
}

func (e *EIC) buildPeak(start, end, apex int) Peak {
	pk := Peak{
		MinIdx: start, MaxIdx: end, ApexIdx: apex,
		RtMin: e.Rt[start], RtMax: e.Rt[end], Rt: e.Rt[apex],
		Height: e.Intensity[apex],
	}

	var area, areaNotCorrected, areaTop, areaTopNotCorrected float64
	topN := 3
	topSum, topCount := 0.0, 0
	for idx := start; idx <= end; idx++ {
		width := 1.0
		if idx > start {
			width = e.Rt[idx] - e.Rt[idx-1]
		}
		areaNotCorrected += e.Intensity[idx] * width
		corrected := e.Intensity[idx] - e.Baseline[idx]
		if corrected < 0 {
			corrected = 0
		}
		area += corrected * width
		if idx >= apex-topN/2 && idx <= apex+topN/2 {
			topSum += e.Intensity[idx]
			topCorrected := corrected
			areaTopNotCorrected += e.Intensity[idx]
			areaTop += topCorrected
			topCount++
		}
	}
	if topCount > 0 {
		areaTop /= float64(topCount)
		areaTopNotCorrected /= float64(topCount)
	}
	pk.Area = area
	pk.AreaNotCorrected = areaNotCorrected
	pk.AreaTop = areaTop
	pk.AreaTopNotCorrected = areaTopNotCorrected

	baseAtApex := e.Baseline[apex]
	if baseAtApex <= 0 {
		baseAtApex = 1
	}
	pk.SignalBaselineRatio = e.Intensity[apex] / baseAtApex
	pk.Quality = peakQuality(e, start, end, apex)
	return pk
}

// peakQuality is a shape-based score in [0, 1]: symmetry of the rise
// and fall around the apex, combined with prominence above baseline.
func peakQuality(e *EIC, start, end, apex int) float64 {
	riseWidth := float64(apex - start)
	fallWidth := float64(end - apex)
	symmetry := 1.0
	if riseWidth+fallWidth > 0 {
		symmetry = 1 - math.Abs(riseWidth-fallWidth)/(riseWidth+fallWidth)
	}
	prominence := 0.0
	if e.Baseline[apex] > 0 {
		prominence = (e.Intensity[apex] - e.Baseline[apex]) / e.Intensity[apex]
	}
	if prominence < 0 {
		prominence = 0
	}
	if prominence > 1 {
		prominence = 1
	}
	return (symmetry + prominence) / 2
}
