package groupfilter

import (
	"math"
	"testing"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/eic"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/peakgroup"
)

func TestCosineSimilarityIdenticalSpectraIsOne(t *testing.T) {
	s := &mzmodel.Spectrum{Mz: []float64{100, 150, 200}, Intensity: []float64{10, 50, 20}}
	score := CosineSimilarity(s, s)
	if math.Abs(score-1) > 1e-9 {
		t.Fatalf("expected similarity ~1 for identical spectra, got %f", score)
	}
}

func TestCosineSimilarityDisjointSpectraIsZero(t *testing.T) {
	a := &mzmodel.Spectrum{Mz: []float64{100}, Intensity: []float64{10}}
	b := &mzmodel.Spectrum{Mz: []float64{300}, Intensity: []float64{10}}
	score := CosineSimilarity(a, b)
	if score != 0 {
		t.Fatalf("expected similarity 0 for disjoint spectra, got %f", score)
	}
}

func TestApplyDropsLowQualityGroups(t *testing.T) {
	f, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	good := &peakgroup.Group{
		Peaks: []peakgroup.SamplePeak{{SampleID: "s1", Peak: eic.Peak{Height: 5000, Quality: 0.8}}},
	}
	bad := &peakgroup.Group{
		Peaks: []peakgroup.SamplePeak{{SampleID: "s1", Peak: eic.Peak{Height: 5000, Quality: 0.01}}},
	}

	p := params.Default()
	p.MinGroupQuality = 0.1
	p.MinGroupIntensityFilter = 0

	kept := f.Apply([]*peakgroup.Group{good, bad}, p)
	if len(kept) != 1 || kept[0] != good {
		t.Fatalf("expected only the good group to survive, got %d groups", len(kept))
	}
}

func TestCorrelatesWithParentRequiresBothTests(t *testing.T) {
	f, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	samples := []string{"s1", "s2", "s3"}
	parent := &peakgroup.Group{GroupID: 1, MeanRt: 10, Peaks: []peakgroup.SamplePeak{
		{SampleID: "s1", Peak: eic.Peak{Height: 100}},
		{SampleID: "s2", Peak: eic.Peak{Height: 200}},
		{SampleID: "s3", Peak: eic.Peak{Height: 300}},
	}}
	correlatedChild := &peakgroup.Group{GroupID: 2, MeanRt: 10.05, Peaks: []peakgroup.SamplePeak{
		{SampleID: "s1", Peak: eic.Peak{Height: 10}},
		{SampleID: "s2", Peak: eic.Peak{Height: 20}},
		{SampleID: "s3", Peak: eic.Peak{Height: 30}},
	}}

	result := f.CorrelatesWithParent(parent, correlatedChild, samples, 3, 0.02, 0.8)
	if !result.Pass {
		t.Fatalf("expected a perfectly correlated, RT-aligned child to pass: %+v", result)
	}

	uncorrelated := &peakgroup.Group{GroupID: 3, MeanRt: 10.05, Peaks: []peakgroup.SamplePeak{
		{SampleID: "s1", Peak: eic.Peak{Height: 300}},
		{SampleID: "s2", Peak: eic.Peak{Height: 10}},
		{SampleID: "s3", Peak: eic.Peak{Height: 150}},
	}}
	result2 := f.CorrelatesWithParent(parent, uncorrelated, samples, 3, 0.02, 0.8)
	if result2.Pass {
		t.Fatalf("expected an uncorrelated child to fail: %+v", result2)
	}

	misaligned := &peakgroup.Group{GroupID: 4, MeanRt: 11, Peaks: correlatedChild.Peaks}
	result3 := f.CorrelatesWithParent(parent, misaligned, samples, 3, 0.02, 0.8)
	if result3.Pass {
		t.Fatalf("expected a correlated but RT-misaligned child to fail: %+v", result3)
	}
}
