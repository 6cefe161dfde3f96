package mzmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceValidate(t *testing.T) {
	valid := &Slice{MzMin: 100, MzMax: 101, RtMin: 1, RtMax: 2}
	require.NoError(t, valid.Validate())

	badMz := &Slice{MzMin: 101, MzMax: 100}
	assert.ErrorIs(t, badMz.Validate(), ErrInvalidSlice)

	badRt := &Slice{RtMin: 2, RtMax: 1}
	assert.ErrorIs(t, badRt.Validate(), ErrInvalidSlice)
}

func TestSliceIsParentForm(t *testing.T) {
	plain := &Slice{Isotope: NoIsotope}
	assert.True(t, plain.IsParentForm())

	parentAdduct := ParentAdduct
	withParentAdduct := &Slice{Adduct: &parentAdduct, Isotope: ParentIsotope}
	assert.True(t, withParentAdduct.IsParentForm())

	childAdduct := &Slice{Adduct: &Adduct{Name: "[M+Na]+"}, Isotope: NoIsotope}
	assert.False(t, childAdduct.IsParentForm())

	childIsotope := &Slice{Isotope: Isotope{Name: "13C", MassShift: 1.00336}}
	assert.False(t, childIsotope.IsParentForm())
}

func TestCalculateMzMinMax(t *testing.T) {
	c := &Compound{Mz: 200}
	s := &Slice{Compound: c}
	s.CalculateMzMinMax(10, 1)
	assert.InDelta(t, 200-200*10/1e6, s.MzMin, 1e-9)
	assert.InDelta(t, 200+200*10/1e6, s.MzMax, 1e-9)
}

func TestCalculateRtMinMaxGhost(t *testing.T) {
	c := &Compound{HasExpectedRt: true, ExpectedRt: 5}
	s := &Slice{Compound: c}
	s.CalculateRtMinMax(false, 2)
	assert.Equal(t, 0.0, s.RtMin)
	assert.Equal(t, 0.0, s.RtMax)

	s.CalculateRtMinMax(true, 2)
	assert.Equal(t, 3.0, s.RtMin)
	assert.Equal(t, 7.0, s.RtMax)
}
