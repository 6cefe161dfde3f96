package eic

import (
	"testing"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/msdata"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
)

func gaussianSample(id string, apexRt, height float64) *msdata.MemorySample {
	scans := make([]msdata.Scan, 0, 40)
	for i := 0; i < 40; i++ {
		rt := float64(i) * 0.5
		d := rt - apexRt
		intensity := height * gaussianAt(d)
		scans = append(scans, msdata.Scan{
			Rt:      rt,
			MsLevel: 1,
			Peaks:   []msdata.Peak{{Mz: 150, Intens: intensity}},
		})
	}
	return &msdata.MemorySample{SampleID: id, Selected: true, Scans: scans}
}

func gaussianAt(d float64) float64 {
	// simple peaked bump, avoids importing math for a one-off gaussian
	if d < 0 {
		d = -d
	}
	v := 1 - d*d/16
	if v < 0 {
		return 0
	}
	return v
}

func TestExtractFindsPeakAboveBaseline(t *testing.T) {
	sample := gaussianSample("s1", 10, 10000)
	slice := &mzmodel.Slice{MzMin: 149, MzMax: 151}
	slice.Validate()

	p := params.Default()
	p.EicSmoothingWindow = 1

	e, err := Extract(sample, slice, p)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if e == nil {
		t.Fatal("expected a non-nil EIC")
	}
	if len(e.Peaks) == 0 {
		t.Fatal("expected at least one detected peak")
	}

	found := false
	for _, pk := range e.Peaks {
		if pk.Rt > 8 && pk.Rt < 12 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a peak near rt=10, got %+v", e.Peaks)
	}
}

func TestExtractEmptyWindowReturnsNil(t *testing.T) {
	sample := gaussianSample("s1", 10, 10000)
	slice := &mzmodel.Slice{MzMin: 900, MzMax: 901}
	p := params.Default()

	e, err := Extract(sample, slice, p)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if e != nil {
		t.Fatalf("expected nil EIC for an empty window, got %+v", e)
	}
}

func TestExtractRoutesMRMCompoundBySrmID(t *testing.T) {
	scans := make([]msdata.Scan, 0, 20)
	for i := 0; i < 20; i++ {
		rt := float64(i) * 0.5
		d := rt - 6
		scans = append(scans, msdata.Scan{
			Rt:              rt,
			MsLevel:         2,
			PrecursorMz:     300,
			CollisionEnergy: 20,
			SrmID:           "glucose_transition",
			Peaks:           []msdata.Peak{{Mz: 100, Intens: 5000 * gaussianAt(d)}},
		})
	}
	// a second transition on the same sample, should never be picked up.
	for i := 0; i < 20; i++ {
		scans = append(scans, msdata.Scan{
			Rt: float64(i) * 0.5, MsLevel: 2, SrmID: "other_transition",
			Peaks: []msdata.Peak{{Mz: 100, Intens: 9999}},
		})
	}
	sample := &msdata.MemorySample{SampleID: "s1", Selected: true, Scans: scans}

	compound := &mzmodel.Compound{Name: "glucose_transition", Type: mzmodel.MRM,
		PrecursorMzVal: 300, ProductMzVal: 100}
	slice := &mzmodel.Slice{Compound: compound, SrmID: compound.Name}

	p := params.Default()
	p.EicSmoothingWindow = 1

	e, err := Extract(sample, slice, p)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if e == nil {
		t.Fatal("expected a non-nil EIC for the MRM transition")
	}
	for _, v := range e.Intensity {
		if v >= 9999 {
			t.Fatalf("EIC picked up points from the other transition: %v", e.Intensity)
		}
	}

	found := false
	for _, pk := range e.Peaks {
		if pk.Rt > 4 && pk.Rt < 8 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a peak near rt=6 from the matched SRM transition, got %+v", e.Peaks)
	}
}

func TestReduceToRtRangeTrims(t *testing.T) {
	e := &EIC{
		Rt:        []float64{1, 2, 3, 4, 5},
		Intensity: []float64{1, 2, 3, 4, 5},
		Baseline:  []float64{0, 0, 0, 0, 0},
	}
	e.reduceToRtRange(2, 4)
	if len(e.Rt) != 3 {
		t.Fatalf("expected 3 points after trimming to [2,4], got %d: %v", len(e.Rt), e.Rt)
	}
	if e.Rt[0] != 2 || e.Rt[len(e.Rt)-1] != 4 {
		t.Fatalf("unexpected trimmed range: %v", e.Rt)
	}
}
