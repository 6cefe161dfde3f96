// Package slicegen implements SliceGenerator: building the candidate
// (m/z, RT) slices that drive the rest of the pipeline. For each
// compound it builds the compound slice, then its isotope slices, then
// its adduct slices, in that order, before the whole result is sorted
// by descending intensity.
package slicegen

import (
	"sort"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
)

// IsotopeTable and AdductTable let callers plug in the isotopologue
// and adduct libraries to enumerate; this core ships no builtin
// chemistry tables or formula parser.
type IsotopeTable interface {
	// Isotopes returns the isotopologues to enumerate for a compound,
	// up to maxCount, ordered lightest-shift-first.
	Isotopes(c *mzmodel.Compound, maxCount int) []mzmodel.Isotope
}

type AdductTable interface {
	// Adducts returns the adduct forms to enumerate for a compound.
	// includeParent controls whether the canonical parent adduct itself
	// is included in the result.
	Adducts(c *mzmodel.Compound, includeParent bool) []mzmodel.Adduct
}

// UntargetedFinder discovers feature slices directly from raw data when
// no compound list is supplied. This core depends only on the
// interface; feature-finding from raw scans is an external
// collaborator, same as EicSource.
type UntargetedFinder interface {
	FindSlices(p *params.Parameters) ([]*mzmodel.Slice, error)
}

// Generator builds the candidate slices for one run.
type Generator struct {
	Isotopes   IsotopeTable
	Adducts    AdductTable
	Untargeted UntargetedFinder
}

// Generate produces the full slice list for a run: if compounds is
// non-empty, targeted (Compound/Isotope/Adduct) slices are built for
// each; otherwise Untargeted.FindSlices supplies feature slices. The
// result is sorted by descending Intensity.
func (g *Generator) Generate(compounds []*mzmodel.Compound, p *params.Parameters) ([]*mzmodel.Slice, error) {
	var slices []*mzmodel.Slice

	if len(compounds) == 0 {
		if g.Untargeted == nil {
			return nil, nil
		}
		found, err := g.Untargeted.FindSlices(p)
		if err != nil {
			return nil, err
		}
		slices = found
	} else {
		for _, c := range compounds {
			slices = append(slices, g.compoundSlices(c, p)...)
		}
	}

	sort.SliceStable(slices, func(i, j int) bool {
		return slices[i].Intensity > slices[j].Intensity
	})
	return slices, nil
}

// compoundSlices builds the compound slice plus, in order, its isotope
// slices then its adduct slices.
func (g *Generator) compoundSlices(c *mzmodel.Compound, p *params.Parameters) []*mzmodel.Slice {
	base := compoundSlice(c, p)
	out := []*mzmodel.Slice{base}

	if p.PullIsotopesFlag && g.Isotopes != nil {
		for _, iso := range g.Isotopes.Isotopes(c, p.MaxIsotopesToPull) {
			if iso.IsParent() {
				continue
			}
			s := compoundSlice(c, p)
			s.Isotope = iso
			s.MzMin += iso.MassShift
			s.MzMax += iso.MassShift
			out = append(out, s)
		}
	}

	if p.SearchAdducts && g.Adducts != nil {
		for _, adduct := range g.Adducts.Adducts(c, p.IncludeParentAdduct) {
			adduct := adduct
			s := compoundSlice(c, p)
			s.Adduct = &adduct
			s.MzMin, s.MzMax = adductMzRange(c, &adduct, p)
			out = append(out, s)
		}
	}

	return out
}

func compoundSlice(c *mzmodel.Compound, p *params.Parameters) *mzmodel.Slice {
	s := &mzmodel.Slice{
		Compound: c,
		Isotope:  mzmodel.ParentIsotope,
	}
	if c.Type == mzmodel.MRM {
		s.SrmID = mrmID(c)
	}
	s.CalculateMzMinMax(p.CompoundMassCutoffWindow, p.Charge)
	s.CalculateRtMinMax(c.HasExpectedRt && p.IdentificationMatchRt, p.IdentificationRtWindow)
	return s
}

func mrmID(c *mzmodel.Compound) string {
	return c.Name
}

func adductMzRange(c *mzmodel.Compound, a *mzmodel.Adduct, p *params.Parameters) (float64, float64) {
	charge := p.Charge
	if a.ChargeMultiplier > 0 {
		charge = a.ChargeMultiplier
	}
	if charge == 0 {
		charge = 1
	}
	mz := (c.Mz*float64(p.Charge) + a.MassShift) / float64(charge)
	window := mz * p.CompoundMassCutoffWindow / 1e6
	return mz - window, mz + window
}
