package main

import (
	"errors"
	"fmt"
)

// ErrMetricIndefinite is returned when the Coulomb metric has eigenvalues
// below -Cutoff. A Coulomb metric is positive semi-definite by construction,
// so an indefinite one means the input tensor is corrupt. Set
// FitOptions.ZeroNegative to truncate such eigenvalues instead.
var ErrMetricIndefinite = errors.New("godf: metric is not positive semi-definite")

// ShapeError reports a contraction whose index dimensions disagree.
type ShapeError struct {
	Op   string
	Want string
	Got  string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("godf: %s: dimension mismatch: want %s, got %s", e.Op, e.Want, e.Got)
}

// AsymmetryError reports a matrix (or tensor) that is expected to be
// symmetric but deviates beyond the configured tolerance. Dev is the
// RMS of A-Aᵀ relative to 1+RMS(A).
type AsymmetryError struct {
	Name string
	Dev  float64
	Tol  float64
}

func (e *AsymmetryError) Error() string {
	return fmt.Sprintf("godf: %s is not symmetric: relative RMS deviation %.3e exceeds %.3e", e.Name, e.Dev, e.Tol)
}

// SingularMetricWarning is a non-fatal diagnostic: part of the metric
// spectrum fell below the cutoff and was truncated rather than inverted.
// The fitted tensor is still usable on the remaining eigenspace.
type SingularMetricWarning struct {
	Dropped int
	Total   int
	Cutoff  float64
}

func (w *SingularMetricWarning) Error() string {
	return fmt.Sprintf("godf: truncated %d of %d metric eigenvalues below cutoff %.3e", w.Dropped, w.Total, w.Cutoff)
}

// Fraction returns the truncated share of the spectrum.
func (w *SingularMetricWarning) Fraction() float64 {
	return float64(w.Dropped) / float64(w.Total)
}
