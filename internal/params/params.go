// Package params holds the Parameters configuration bundle and its
// YAML-file loading, the same way a hand-edited configuration document
// is read and defaulted elsewhere in this kind of pipeline.
package params

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/msdata"
)

// SmootherType mirrors EIC::SmootherType in the original.
type SmootherType int

const (
	SmootherNone SmootherType = iota
	SmootherAvg
	SmootherSavGol
)

// BaselineMode selects between the two baseline-estimation strategies
// an EIC can be processed with: a percentile-based moving threshold, or
// asymmetric least squares smoothing.
type BaselineMode int

const (
	BaselineThreshold BaselineMode = iota
	BaselineAsLS
)

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

// Parameters is the full configuration bundle governing one detection
// run. It is loaded once from YAML and treated as immutable for the
// duration of a run; Snapshot returns an independent copy for stages
// that must not observe concurrent mutation.
type Parameters struct {
	EicType    msdata.EicType `yaml:"eicType"`
	Filterline string         `yaml:"filterline"`

	EicSmoothingAlgorithm SmootherType `yaml:"eicSmoothingAlgorithm"`
	EicSmoothingWindow    int          `yaml:"eicSmoothingWindow"`

	AslsBaselineMode bool    `yaml:"aslsBaselineMode"`
	AslsSmoothness   float64 `yaml:"aslsSmoothness"`
	AslsAsymmetry    float64 `yaml:"aslsAsymmetry"`

	BaselineSmoothingWindow int     `yaml:"baselineSmoothingWindow"`
	BaselineDropTopX        float64 `yaml:"baselineDropTopX"`

	MinSignalBaselineDifference float64 `yaml:"minSignalBaselineDifference"`

	MassCutoffMerge          float64 `yaml:"massCutoffMerge"`
	MassCutoffMergeIsPPM     bool    `yaml:"massCutoffMergeIsPPM"`
	CompoundMassCutoffWindow float64 `yaml:"compoundMassCutoffWindow"`

	PullIsotopesFlag bool `yaml:"pullIsotopesFlag"`
	SearchAdducts    bool `yaml:"searchAdducts"`
	MaxIsotopesToPull int `yaml:"maxIsotopesToPull"`
	IncludeParentAdduct bool `yaml:"includeParentAdduct"`

	FilterIsotopesAgainstParent bool `yaml:"filterIsotopesAgainstParent"`
	FilterAdductsAgainstParent  bool `yaml:"filterAdductsAgainstParent"`

	MaxIsotopeScanDiff    int     `yaml:"maxIsotopeScanDiff"`
	MinIsotopicCorrelation float64 `yaml:"minIsotopicCorrelation"`

	AdductSearchWindow      int     `yaml:"adductSearchWindow"`
	AdductPercentCorrelation float64 `yaml:"adductPercentCorrelation"`

	IdentificationMatchRt    bool    `yaml:"identificationMatchRt"`
	IdentificationRtWindow   float64 `yaml:"identificationRtWindow"`
	MatchFragmentationFlag   bool    `yaml:"matchFragmentationFlag"`
	MinMS2MatchScore         float64 `yaml:"minMS2MatchScore"`

	MinGroupIntensity float64 `yaml:"minGroupIntensity"`
	LimitGroupCount   int     `yaml:"limitGroupCount"`
	EicMaxGroups      int     `yaml:"eicMaxGroups"`

	PeakQuantitation Quantitation `yaml:"peakQuantitation"`

	AmuQ1 float64 `yaml:"amuQ1"`
	AmuQ3 float64 `yaml:"amuQ3"`

	MinPeakIntensity float64 `yaml:"minPeakIntensity"`
	MinPeakSignalBaselineRatio float64 `yaml:"minPeakSignalBaselineRatio"`
	MinPeakQuality    float64 `yaml:"minPeakQuality"`
	MinPeakWidth      int     `yaml:"minPeakWidth"`
	// Relaxed variants applied when a slice is an isotope/adduct slice.
	MinPeakIntensityRelaxed float64 `yaml:"minPeakIntensityRelaxed"`
	MinPeakSignalBaselineRatioRelaxed float64 `yaml:"minPeakSignalBaselineRatioRelaxed"`
	MinPeakQualityRelaxed float64 `yaml:"minPeakQualityRelaxed"`
	MinPeakWidthRelaxed   int     `yaml:"minPeakWidthRelaxed"`

	MinGroupPeakCount int     `yaml:"minGroupPeakCount"`
	MinGroupQuality   float64 `yaml:"minGroupQuality"`
	MinGroupIntensityFilter float64 `yaml:"minGroupIntensityFilter"`
	MaxGroupIntensity float64 `yaml:"maxGroupIntensity"`
	MinSignalBlankRatio float64 `yaml:"minSignalBlankRatio"`

	Charge int `yaml:"charge"`

	// stop is the cooperative cancellation flag. It is accessed
	// atomically because a caller may flip it from another goroutine
	// (e.g. an HTTP handler) while Detector is running. Held by pointer,
	// not by value, so Parameters itself stays copyable - Default and
	// Load always allocate one.
	stop *atomic.Bool
}

// Stop flips the cooperative cancellation flag.
func (p *Parameters) Stop() { p.stop.Store(true) }

// Stopped reports whether cancellation has been requested.
func (p *Parameters) Stopped() bool { return p.stop.Load() }

// Default returns a Parameters bundle with sane defaults filled in for
// every key.
func Default() *Parameters {
	return &Parameters{
		stop:                        &atomic.Bool{},
		EicType:                     msdata.MaxIntensity,
		EicSmoothingAlgorithm:       SmootherSavGol,
		EicSmoothingWindow:          5,
		AslsBaselineMode:            false,
		AslsSmoothness:              5,
		AslsAsymmetry:               0.05,
		BaselineSmoothingWindow:     5,
		BaselineDropTopX:            40,
		MinSignalBaselineDifference: 0,
		MassCutoffMerge:             10,
		MassCutoffMergeIsPPM:        true,
		CompoundMassCutoffWindow:    10,
		MaxIsotopesToPull:           5,
		IncludeParentAdduct:         false,
		MaxIsotopeScanDiff:          3,
		MinIsotopicCorrelation:      0.8,
		AdductSearchWindow:          3,
		AdductPercentCorrelation:    0.8,
		IdentificationRtWindow:      2,
		MinMS2MatchScore:            0.2,
		MinGroupIntensity:           1000,
		LimitGroupCount:             100000,
		EicMaxGroups:                5,
		PeakQuantitation:            Height,
		AmuQ1:                       0.5,
		AmuQ3:                       0.5,
		MinPeakIntensity:            1000,
		MinPeakSignalBaselineRatio:  2,
		MinPeakQuality:              0.2,
		MinPeakWidth:                3,
		MinPeakIntensityRelaxed:     100,
		MinPeakSignalBaselineRatioRelaxed: 1.1,
		MinPeakQualityRelaxed:       0,
		MinPeakWidthRelaxed:         2,
		MinGroupPeakCount:           1,
		MinGroupQuality:             0,
		MaxGroupIntensity:           0,
		MinSignalBlankRatio:         0,
		Charge:                      1,
	}
}

// Load reads a Parameters document from YAML, starting from Default()
// so unspecified keys keep their defaults.
func Load(r io.Reader) (*Parameters, error) {
	p := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(p); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "params: decode yaml")
	}
	return p, nil
}

// LoadFile opens filename and loads Parameters from it.
func LoadFile(filename string) (*Parameters, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "params: open %s", filename)
	}
	defer f.Close()
	return Load(f)
}

// Snapshot returns an independent copy of p, suitable for handing to a
// downstream stage that must not observe concurrent mutation while a run
// is in flight. stop gets its own atomic.Bool seeded with the original's
// current value, rather than sharing the pointer, so later Stop() calls
// on the original do not propagate to the snapshot.
func (p *Parameters) Snapshot() *Parameters {
	cp := *p
	cp.stop = &atomic.Bool{}
	cp.stop.Store(p.stop.Load())
	return &cp
}
