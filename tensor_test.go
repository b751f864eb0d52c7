package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestThreeIndexAccess(t *testing.T) {
	ti := NewThreeIndex(2, 3)
	naux, nbf := ti.Dims()
	require.Equal(t, 2, naux)
	require.Equal(t, 3, nbf)

	ti.Set(1, 2, 0, 7.5)
	require.Equal(t, 7.5, ti.At(1, 2, 0))
	require.Equal(t, 0.0, ti.At(0, 2, 0))
}

func TestNewThreeIndexDataShape(t *testing.T) {
	_, err := NewThreeIndexData(2, 2, make([]float64, 7))
	var shape *ShapeError
	require.ErrorAs(t, err, &shape)

	ti, err := NewThreeIndexData(2, 2, []float64{
		1, 2, 2, 3,
		4, 5, 5, 6,
	})
	require.NoError(t, err)
	require.Equal(t, 5.0, ti.At(1, 0, 1))
}

// AuxView and Slice share the tensor's storage, so writes through one are
// visible through the others.
func TestThreeIndexViewsShareStorage(t *testing.T) {
	ti := NewThreeIndex(2, 2)
	ti.AuxView().Set(1, 3, 9.0) // row P=1, flat index p*nbf+q = 3
	require.Equal(t, 9.0, ti.At(1, 1, 1))
	require.Equal(t, 9.0, ti.Slice(1).At(1, 1))

	ti.Slice(0).Set(0, 1, 4.0)
	require.Equal(t, 4.0, ti.At(0, 0, 1))
}

func TestThreeIndexAuxViewLayout(t *testing.T) {
	ti, err := NewThreeIndexData(2, 2, []float64{
		1, 2, 2, 3,
		4, 5, 5, 6,
	})
	require.NoError(t, err)
	want := mat.NewDense(2, 4, []float64{
		1, 2, 2, 3,
		4, 5, 5, 6,
	})
	require.True(t, mat.Equal(ti.AuxView(), want))
}

func TestThreeIndexSymmetryCheck(t *testing.T) {
	ti, err := NewThreeIndexData(1, 2, []float64{
		1, 2,
		2, 3,
	})
	require.NoError(t, err)
	require.NoError(t, ti.CheckSymmetric(1e-12))

	ti.Set(0, 0, 1, 2.5)
	err = ti.CheckSymmetric(1e-8)
	var asym *AsymmetryError
	require.ErrorAs(t, err, &asym)
	require.Greater(t, asym.Dev, asym.Tol)
}
