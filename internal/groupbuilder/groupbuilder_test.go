package groupbuilder

import (
	"testing"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/eic"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
)

func peak(minIdx, maxIdx, apexIdx int, rtMin, rt, rtMax, height float64) eic.Peak {
	return eic.Peak{MinIdx: minIdx, MaxIdx: maxIdx, ApexIdx: apexIdx, RtMin: rtMin, Rt: rt, RtMax: rtMax, Height: height, Quality: 0.8}
}

func TestBuildGroupsOverlappingPeaksAcrossSamples(t *testing.T) {
	e1 := &eic.EIC{SampleID: "s1", Peaks: []eic.Peak{peak(0, 2, 1, 9, 10, 11, 1000)}}
	e2 := &eic.EIC{SampleID: "s2", Peaks: []eic.Peak{peak(0, 2, 1, 9.2, 10.1, 11.2, 1200)}}
	e3 := &eic.EIC{SampleID: "s3", Peaks: []eic.Peak{peak(0, 2, 1, 30, 31, 32, 900)}}

	slice := &mzmodel.Slice{MzMin: 100, MzMax: 101}
	p := params.Default()
	nextID := counter()

	groups := Build([]*eic.EIC{e1, e2, e3}, slice, p, nextID)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups (one co-eluting pair, one isolated), got %d", len(groups))
	}

	counts := map[int]int{}
	for _, g := range groups {
		counts[len(g.Peaks)]++
	}
	if counts[2] != 1 || counts[1] != 1 {
		t.Fatalf("expected one 2-peak group and one 1-peak group, got %v", counts)
	}
}

func TestBuildNeverMixesTwoPeaksFromSameSample(t *testing.T) {
	e1 := &eic.EIC{SampleID: "s1", Peaks: []eic.Peak{
		peak(0, 2, 1, 9, 10, 11, 1000),
		peak(3, 5, 4, 10.5, 11, 11.5, 500),
	}}
	slice := &mzmodel.Slice{MzMin: 100, MzMax: 101}
	p := params.Default()

	groups := Build([]*eic.EIC{e1}, slice, p, counter())
	for _, g := range groups {
		seen := map[string]bool{}
		for _, sp := range g.Peaks {
			if seen[sp.SampleID] {
				t.Fatalf("group contains two peaks from sample %s", sp.SampleID)
			}
			seen[sp.SampleID] = true
		}
	}
}

func counter() func() int {
	n := 0
	return func() int {
		n++
		return n
	}
}
