// Package mzmodel holds the targeted-analyte and query data types shared
// across the detection pipeline: compounds, adducts, isotopologues and
// the (m/z, RT) slices that drive EIC extraction.
package mzmodel

import "github.com/pkg/errors"

// ErrInvalidSlice is returned when a Slice's m/z or RT bounds are inverted.
var ErrInvalidSlice = errors.New("mzmodel: mzMin > mzMax or rtMin > rtMax")

// CompoundType mirrors the original's Compound::Type enum; only the
// variants this core distinguishes behavior on are named.
type CompoundType int

const (
	// Regular is a compound searched by m/z range.
	Regular CompoundType = iota
	// MRM is a compound searched via an SRM/MRM transition.
	MRM
)

// Spectrum is a reference or observed fragmentation spectrum: parallel
// m/z/intensity arrays plus the collision energy they were acquired at.
type Spectrum struct {
	Mz             []float64
	Intensity      []float64
	CollisionEnergy float64
}

// Compound is the identity of a targeted analyte.
type Compound struct {
	Name            string
	Type            CompoundType
	Mz              float64 // expected precursor m/z for Regular compounds
	ExpectedRt      float64
	HasExpectedRt   bool
	Charge          int
	PrecursorMzVal  float64 // > 0 only for MRM
	ProductMzVal    float64 // > 0 only for MRM
	CollisionEnergy float64
	Fragmentation   *Spectrum // reference MS2 spectrum, nil if none
}

// PrecursorMz returns the MRM precursor m/z, or 0 if this compound is not
// an MRM transition.
func (c *Compound) PrecursorMz() float64 { return c.PrecursorMzVal }

// ProductMz returns the MRM product m/z, or 0 if this compound is not an
// MRM transition.
func (c *Compound) ProductMz() float64 { return c.ProductMzVal }

// Adduct is an ionization form of a compound.
type Adduct struct {
	Name     string
	IsParent bool
	// MassShift (in Da) is added to the parent m/z times the run charge,
	// and the sum is divided by the adduct's charge to give this
	// adduct's m/z; MassShift is not pre-divided by charge.
	MassShift float64
	// ChargeMultiplier scales the charge used for m/z computation, e.g.
	// 2 for [M+2H]2+-style multiply-charged adducts.
	ChargeMultiplier int
}

// Isotope is an isotopologue descriptor.
type Isotope struct {
	Name string
	// Parent indicates the monoisotopic (unshifted) isotopologue.
	Parent bool
	// NoneFlag indicates "this slot carries no isotope annotation at
	// all", distinct from Parent (IsNone() true, IsParent() false).
	// Slices built by slicegen never use it: their compound and adduct
	// slices carry ParentIsotope.
	NoneFlag bool
	// MassShift in Da relative to the monoisotopic mass, e.g. +1.00336
	// for the first 13C isotopologue.
	MassShift float64
}

// IsParent reports whether this isotope is the monoisotopic form.
func (i Isotope) IsParent() bool { return i.Parent }

// IsNone reports whether this isotope slot carries no isotope annotation.
func (i Isotope) IsNone() bool { return i.NoneFlag }

// NoIsotope is the "no isotope annotation" sentinel, for slices that are
// neither parent nor an explicit isotopologue. IsParentForm treats it
// like ParentIsotope.
var NoIsotope = Isotope{Name: "none", NoneFlag: true}

// ParentIsotope is the monoisotopic isotopologue sentinel.
var ParentIsotope = Isotope{Name: "parent", Parent: true}

// ParentAdduct is the canonical (unadducted) ionization sentinel.
var ParentAdduct = Adduct{Name: "[M+H]+", IsParent: true, ChargeMultiplier: 1}

// Slice is a rectangle in (m/z, RT) space, optionally tagged with the
// compound/adduct/isotope/SRM identity that generated it.
type Slice struct {
	MzMin, MzMax float64
	RtMin, RtMax float64

	Compound *Compound
	Adduct   *Adduct
	Isotope  Isotope
	SrmID    string

	// Intensity is the underlying signal estimate used to order slices
	// high-intensity-first.
	Intensity float64
}

// Validate enforces the Slice invariant: mzMin <= mzMax, rtMin <= rtMax.
func (s *Slice) Validate() error {
	if s.MzMin > s.MzMax {
		return errors.Wrapf(ErrInvalidSlice, "mzMin=%f mzMax=%f", s.MzMin, s.MzMax)
	}
	if s.RtMin > s.RtMax {
		return errors.Wrapf(ErrInvalidSlice, "rtMin=%f rtMax=%f", s.RtMin, s.RtMax)
	}
	return nil
}

// IsParentForm reports whether a slice represents a parent ion form: the
// adduct is parent-or-unset AND the isotope is parent-or-none. Group
// intensity and MS2 filtering only apply to parent-form slices; isotope
// and adduct children are judged by their correlation to the parent
// instead.
func (s *Slice) IsParentForm() bool {
	adductOK := s.Adduct == nil || s.Adduct.IsParent
	isotopeOK := s.Isotope.IsParent() || s.Isotope.IsNone()
	return adductOK && isotopeOK
}

// CalculateMzMinMax sets MzMin/MzMax to the compound's Mz plus and minus
// a symmetric window of massCutoffWindow ppm - used to build the m/z
// bounds for a synthetic slice re-queried around an expected but
// undetected parent. Compound.Mz is used as the m/z directly; charge
// does not change the result, and there is no Da window mode.
func (s *Slice) CalculateMzMinMax(massCutoffWindow float64, charge int) {
	if s.Compound == nil {
		return
	}
	mz := s.Compound.Mz
	if charge == 0 {
		charge = 1
	}
	window := mz * massCutoffWindow / 1e6
	s.MzMin = mz - window
	s.MzMax = mz + window
}

// CalculateRtMinMax sets RtMin/RtMax either from the compound's expected
// RT window, or to (0, 0) when useExpectedRt is false - the latter
// leaves a re-query slice unbounded in RT.
func (s *Slice) CalculateRtMinMax(useExpectedRt bool, window float64) {
	if !useExpectedRt || s.Compound == nil || !s.Compound.HasExpectedRt {
		s.RtMin, s.RtMax = 0, 0
		return
	}
	s.RtMin = s.Compound.ExpectedRt - window
	s.RtMax = s.Compound.ExpectedRt + window
}
