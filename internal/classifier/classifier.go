// Package classifier declares the Classifier capability and ships a
// no-op default so Detector never special-cases "no model loaded"
// beyond checking HasModel.
package classifier

import "github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/eic"

// Classifier scores detected peaks with an ML quality model. "No model
// loaded" is not an error: Detector skips scoring silently when
// HasModel returns false.
type Classifier interface {
	HasModel() bool
	ScoreEICs(eics []*eic.EIC)
}

// None is the default Classifier: no model loaded, scoring is a no-op.
var None Classifier = noop{}

type noop struct{}

func (noop) HasModel() bool            { return false }
func (noop) ScoreEICs(_ []*eic.EIC) {}
