package identifier

import (
	"testing"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/peakgroup"
)

func TestAnnotateMatchesWithinTolerance(t *testing.T) {
	compound := &mzmodel.Compound{Name: "glucose", Mz: 180.0634}
	slice := &mzmodel.Slice{MzMin: 180.058, MzMax: 180.068, Compound: compound}

	group := &peakgroup.Group{GroupID: 1, MeanMz: 180.0634, MeanRt: 5}

	p := params.Default()
	p.MassCutoffMergeIsPPM = false
	p.MassCutoffMerge = 0.01

	id := New(nil, nil)
	result := id.Annotate([]*peakgroup.Group{group}, []*mzmodel.Slice{slice}, p, counter())

	if len(result) != 1 {
		t.Fatalf("expected exactly 1 annotated group, got %d", len(result))
	}
	if result[0].Compound != compound {
		t.Fatalf("expected the staged clone to carry the matched compound")
	}
	if result[0] == group {
		t.Fatalf("expected a clone, not the original group, to be returned")
	}
}

func TestAnnotateRejectsOutsideRtWindow(t *testing.T) {
	compound := &mzmodel.Compound{Name: "glucose", Mz: 180.0634, HasExpectedRt: true, ExpectedRt: 5}
	slice := &mzmodel.Slice{MzMin: 180.058, MzMax: 180.068, Compound: compound}

	group := &peakgroup.Group{GroupID: 1, MeanMz: 180.0634, MeanRt: 50}

	p := params.Default()
	p.MassCutoffMergeIsPPM = false
	p.MassCutoffMerge = 0.01
	p.IdentificationMatchRt = true
	p.IdentificationRtWindow = 1

	id := New(nil, nil)
	result := id.Annotate([]*peakgroup.Group{group}, []*mzmodel.Slice{slice}, p, counter())

	if len(result) != 1 || result[0] != group {
		t.Fatalf("expected the unmatched original group to pass through unchanged, got %+v", result)
	}
}

func counter() func() int {
	n := 0
	return func() int {
		n++
		return n
	}
}
