package slicegen

import (
	"testing"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
)

type fakeIsotopes struct{}

func (fakeIsotopes) Isotopes(c *mzmodel.Compound, maxCount int) []mzmodel.Isotope {
	return []mzmodel.Isotope{
		mzmodel.ParentIsotope,
		{Name: "13C1", MassShift: 1.00336},
	}
}

type fakeAdducts struct{}

func (fakeAdducts) Adducts(c *mzmodel.Compound, includeParent bool) []mzmodel.Adduct {
	adducts := []mzmodel.Adduct{{Name: "[M+Na]+", MassShift: 21.9819, ChargeMultiplier: 1}}
	if includeParent {
		adducts = append(adducts, mzmodel.ParentAdduct)
	}
	return adducts
}

func TestGenerateOrdersIsotopesBeforeAdducts(t *testing.T) {
	c := &mzmodel.Compound{Name: "glucose", Mz: 180.0634}
	p := params.Default()
	p.PullIsotopesFlag = true
	p.SearchAdducts = true

	gen := &Generator{Isotopes: fakeIsotopes{}, Adducts: fakeAdducts{}}
	slices, err := gen.Generate([]*mzmodel.Compound{c}, p)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(slices) != 3 {
		t.Fatalf("expected 3 slices (compound + 1 isotope + 1 adduct), got %d", len(slices))
	}
	if !slices[0].Isotope.IsParent() {
		t.Fatalf("expected slice[0] to be the parent compound slice")
	}
	if slices[1].Isotope.IsParent() || slices[1].Isotope.IsNone() {
		t.Fatalf("expected slice[1] to be the isotope slice, got %+v", slices[1].Isotope)
	}
	if slices[2].Adduct == nil || slices[2].Adduct.Name != "[M+Na]+" {
		t.Fatalf("expected slice[2] to be the adduct slice, got %+v", slices[2].Adduct)
	}
}

type fakeUntargeted struct {
	slices []*mzmodel.Slice
}

func (f fakeUntargeted) FindSlices(p *params.Parameters) ([]*mzmodel.Slice, error) {
	return f.slices, nil
}

func TestGenerateSortsByDescendingIntensity(t *testing.T) {
	unsorted := []*mzmodel.Slice{
		{MzMin: 100, MzMax: 101, Intensity: 10},
		{MzMin: 200, MzMax: 201, Intensity: 1000},
		{MzMin: 300, MzMax: 301, Intensity: 500},
	}
	gen := &Generator{Untargeted: fakeUntargeted{slices: unsorted}}

	slices, err := gen.Generate(nil, params.Default())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := 1; i < len(slices); i++ {
		if slices[i].Intensity > slices[i-1].Intensity {
			t.Fatalf("slices not sorted by descending intensity: %v", slices)
		}
	}
}
