package detector

import (
	"context"
	"testing"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/msdata"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/slicegen"
)

func gaussianSample(id string, apexRt, height float64) *msdata.MemorySample {
	scans := make([]msdata.Scan, 0, 40)
	for i := 0; i < 40; i++ {
		rt := float64(i) * 0.5
		d := rt - apexRt
		if d < 0 {
			d = -d
		}
		v := 1 - d*d/16
		if v < 0 {
			v = 0
		}
		scans = append(scans, msdata.Scan{
			Rt:      rt,
			MsLevel: 1,
			Peaks:   []msdata.Peak{{Mz: 150, Intens: height * v}},
		})
	}
	return &msdata.MemorySample{SampleID: id, Selected: true, Scans: scans}
}

func TestDetectorRunProducesGroupsForTargetedCompound(t *testing.T) {
	samples := []msdata.EicSource{
		gaussianSample("s1", 10, 20000),
		gaussianSample("s2", 10.1, 18000),
	}

	det, err := New(samples)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer det.Close()

	compound := &mzmodel.Compound{Name: "test-compound", Mz: 150}
	p := params.Default()
	p.MinGroupIntensity = 100
	p.MinPeakIntensity = 100
	p.MinPeakSignalBaselineRatio = 1.01
	p.MinPeakQuality = 0
	p.MinPeakWidth = 1

	gen := &slicegen.Generator{}
	groups, err := det.Run(context.Background(), gen, []*mzmodel.Compound{compound}, p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(groups) == 0 {
		t.Fatal("expected at least one detected group")
	}
	for _, g := range groups {
		if len(g.Peaks) == 0 {
			t.Fatalf("expected every group to have at least one peak: %+v", g)
		}
	}
}

func TestDetectorRunRespectsCancellation(t *testing.T) {
	samples := []msdata.EicSource{gaussianSample("s1", 10, 20000)}
	det, err := New(samples)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer det.Close()

	compound1 := &mzmodel.Compound{Name: "a", Mz: 150}
	compound2 := &mzmodel.Compound{Name: "b", Mz: 151}
	p := params.Default()
	p.Stop()

	gen := &slicegen.Generator{}
	groups, err := det.Run(context.Background(), gen, []*mzmodel.Compound{compound1, compound2}, p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected no groups once cancellation flag is set before the run starts, got %d", len(groups))
	}
}
