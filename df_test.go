package main

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// randSym fills an n×n matrix with values in [-1,1) and symmetrizes it.
func randSym(n int, rng *rand.Rand) *mat.Dense {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			v := 2*rng.Float64() - 1
			a.Set(i, j, v)
			a.Set(j, i, v)
		}
	}
	return a
}

// randSPD builds A·Aᵀ + n·I, which is comfortably positive definite.
func randSPD(n int, rng *rand.Rand) *mat.Dense {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, 2*rng.Float64()-1)
		}
	}
	var spd mat.Dense
	spd.Mul(a, a.T())
	for i := 0; i < n; i++ {
		spd.Set(i, i, spd.At(i, i)+float64(n))
	}
	return &spd
}

// randRaw builds a (naux, nbf, nbf) tensor symmetric in its trailing indices.
func randRaw(naux, nbf int, rng *rand.Rand) *ThreeIndex {
	t := NewThreeIndex(naux, nbf)
	for P := 0; P < naux; P++ {
		for p := 0; p < nbf; p++ {
			for q := 0; q <= p; q++ {
				v := 2*rng.Float64() - 1
				t.Set(P, p, q, v)
				t.Set(P, q, p, v)
			}
		}
	}
	return t
}

func TestMetricInvSqrtSPD(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 4, 9, 20} {
		metric := randSPD(n, rng)
		minv, spectrum, err := MetricInvSqrt(metric, DefaultFitOptions())
		require.NoError(t, err)
		require.Equal(t, 0, spectrum.Dropped)
		require.Nil(t, spectrum.Warning(0))

		// Minv M Minv must restore the identity on the full eigenspace.
		var tmp, id mat.Dense
		tmp.Mul(minv, metric)
		id.Mul(&tmp, minv)
		require.True(t, mat.EqualApprox(&id, eye(n), 1e-10), "n = %d", n)
		requireSymmetric(t, minv, 1e-10)
	}
}

func TestMetricInvSqrtZeroEigenvalue(t *testing.T) {
	// Diagonal metric with one exactly zero eigenvalue: the matching
	// eigencomponent must come out exactly zero, never NaN or Inf.
	metric := mat.NewDense(3, 3, []float64{
		4, 0, 0,
		0, 1, 0,
		0, 0, 0,
	})
	minv, spectrum, err := MetricInvSqrt(metric, DefaultFitOptions())
	require.NoError(t, err)
	require.Equal(t, 1, spectrum.Dropped)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := minv.At(i, j)
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
	require.InDelta(t, 0.5, minv.At(0, 0), 1e-12)
	require.InDelta(t, 1.0, minv.At(1, 1), 1e-12)
	require.InDelta(t, 0.0, minv.At(2, 2), 1e-12)

	w := spectrum.Warning(0)
	require.NotNil(t, w)
	require.InDelta(t, 1.0/3.0, w.Fraction(), 1e-15)
	// A generous threshold silences the warning.
	require.Nil(t, spectrum.Warning(0.5))
}

func TestMetricInvSqrtAllDropped(t *testing.T) {
	metric := mat.NewDense(2, 2, nil) // zero matrix, degenerate but legal
	minv, spectrum, err := MetricInvSqrt(metric, DefaultFitOptions())
	require.NoError(t, err)
	require.Equal(t, 2, spectrum.Dropped)
	require.True(t, mat.EqualApprox(minv, mat.NewDense(2, 2, nil), 0))
	require.True(t, math.IsInf(spectrum.Cond(), 1))
}

func TestMetricInvSqrtIndefinite(t *testing.T) {
	metric := mat.NewDense(2, 2, []float64{
		1, 0,
		0, -1,
	})
	_, _, err := MetricInvSqrt(metric, DefaultFitOptions())
	require.ErrorIs(t, err, ErrMetricIndefinite)

	opts := DefaultFitOptions()
	opts.ZeroNegative = true
	minv, spectrum, err := MetricInvSqrt(metric, opts)
	require.NoError(t, err)
	require.Equal(t, 1, spectrum.Dropped)
	require.InDelta(t, 1.0, minv.At(0, 0), 1e-12)
	require.InDelta(t, 0.0, minv.At(1, 1), 1e-12)
}

func TestMetricInvSqrtRejectsAsymmetric(t *testing.T) {
	metric := mat.NewDense(2, 2, []float64{
		1, 0.5,
		0, 1,
	})
	_, _, err := MetricInvSqrt(metric, DefaultFitOptions())
	var asym *AsymmetryError
	require.ErrorAs(t, err, &asym)
	require.Equal(t, "metric", asym.Name)
}

func TestDFinitShapeMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	raw := randRaw(3, 2, rng)
	_, err := DFinit(raw, randSPD(2, rng), DefaultFitOptions())
	var shape *ShapeError
	require.ErrorAs(t, err, &shape)
}

func TestFittedTensorSymmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	raw := randRaw(8, 5, rng)
	df, err := DFinit(raw, randSPD(8, rng), DefaultFitOptions())
	require.NoError(t, err)
	require.NoError(t, df.Qpq.CheckSymmetric(1e-10))
}

func TestBuildJKSymmetricAndIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	raw := randRaw(12, 6, rng)
	df, err := DFinit(raw, randSPD(12, rng), DefaultFitOptions())
	require.NoError(t, err)
	D := randSym(6, rng)

	J1, err := df.BuildJ(D)
	require.NoError(t, err)
	K1, err := df.BuildK(D)
	require.NoError(t, err)
	requireSymmetric(t, J1, 1e-10)
	requireSymmetric(t, K1, 1e-10)

	J2, err := df.BuildJ(D)
	require.NoError(t, err)
	K2, err := df.BuildK(D)
	require.NoError(t, err)
	require.True(t, mat.Equal(J1, J2))
	require.True(t, mat.Equal(K1, K2))
}

func TestBuildJRejectsAsymmetricDensity(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	raw := randRaw(4, 3, rng)
	df, err := DFinit(raw, randSPD(4, rng), DefaultFitOptions())
	require.NoError(t, err)

	D := mat.NewDense(3, 3, []float64{
		1, 1, 0,
		0, 1, 0,
		0, 0, 1,
	})
	_, err = df.BuildJ(D)
	var asym *AsymmetryError
	require.ErrorAs(t, err, &asym)
}

func TestBuildKOccMatchesDirect(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	raw := randRaw(15, 7, rng)
	df, err := DFinit(raw, randSPD(15, rng), DefaultFitOptions())
	require.NoError(t, err)

	nocc := 3
	C := mat.NewDense(7, nocc, nil)
	for i := 0; i < 7; i++ {
		for j := 0; j < nocc; j++ {
			C.Set(i, j, 2*rng.Float64()-1)
		}
	}
	D := DensityFromCoeffs(C)

	Kdirect, err := df.BuildK(D)
	require.NoError(t, err)
	Kocc, err := df.BuildKOcc(C)
	require.NoError(t, err)
	require.True(t, mat.EqualApprox(Kdirect, Kocc, 1e-8))
}

func TestBuildKParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	raw := randRaw(13, 5, rng)
	metric := randSPD(13, rng)
	D := randSym(5, rng)

	serial := DefaultFitOptions()
	serial.Procs = 1
	dfs, err := DFinit(raw, metric, serial)
	require.NoError(t, err)
	Ks, err := dfs.BuildK(D)
	require.NoError(t, err)

	parallel := DefaultFitOptions()
	parallel.Procs = 4
	dfp, err := DFinit(raw, metric, parallel)
	require.NoError(t, err)
	Kp, err := dfp.BuildK(D)
	require.NoError(t, err)

	require.True(t, mat.EqualApprox(Ks, Kp, 1e-12))
}

// TestFockAgainstNaiveContraction is the end-to-end check: on a Naux=20,
// N=10 synthetic system the staged F must match H + 2J - K built by direct
// O(N^4) contraction of the same fitted tensor.
func TestFockAgainstNaiveContraction(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	naux, nbf, nocc := 20, 10, 3
	raw := randRaw(naux, nbf, rng)
	df, err := DFinit(raw, randSPD(naux, rng), DefaultFitOptions())
	require.NoError(t, err)

	C := mat.NewDense(nbf, nocc, nil)
	for i := 0; i < nbf; i++ {
		for j := 0; j < nocc; j++ {
			C.Set(i, j, 2*rng.Float64()-1)
		}
	}
	D := DensityFromCoeffs(C)
	H := randSym(nbf, rng)

	F, J, K, err := df.BuildFock(H, D)
	require.NoError(t, err)
	requireSymmetric(t, F, 1e-10)

	Jn, Kn, err := BuildJKNaive(df.ApproxERI(), D)
	require.NoError(t, err)
	Fn, err := FockMatrix(H, Jn, Kn)
	require.NoError(t, err)

	require.True(t, mat.EqualApprox(J, Jn, 1e-10))
	require.True(t, mat.EqualApprox(K, Kn, 1e-10))
	require.True(t, mat.EqualApprox(F, Fn, 1e-10))
}

func TestFockMatrixArithmetic(t *testing.T) {
	H := mat.NewDense(2, 2, []float64{-1, 0.1, 0.1, -0.5})
	J := mat.NewDense(2, 2, []float64{0.5, 0.2, 0.2, 0.3})
	K := mat.NewDense(2, 2, []float64{0.2, 0.1, 0.1, 0.1})
	F, err := FockMatrix(H, J, K)
	require.NoError(t, err)
	want := mat.NewDense(2, 2, []float64{-0.2, 0.4, 0.4, 0.0})
	require.True(t, mat.EqualApprox(F, want, 1e-14))

	_, err = FockMatrix(H, J, mat.NewDense(3, 3, nil))
	var shape *ShapeError
	require.ErrorAs(t, err, &shape)
}

func TestCalcElecEnergy(t *testing.T) {
	D := mat.NewDense(1, 1, []float64{2})
	H := mat.NewDense(1, 1, []float64{-1})
	F := mat.NewDense(1, 1, []float64{-0.5})
	E, err := CalcElecEnergy(D, H, F)
	require.NoError(t, err)
	require.InDelta(t, -3.0, E, 1e-14)

	_, err = CalcElecEnergy(D, H, mat.NewDense(2, 2, nil))
	var shape *ShapeError
	require.ErrorAs(t, err, &shape)
}

func TestSpectrumCond(t *testing.T) {
	metric := mat.NewDense(2, 2, []float64{
		4, 0,
		0, 1,
	})
	_, spectrum, err := MetricInvSqrt(metric, DefaultFitOptions())
	require.NoError(t, err)
	require.InDelta(t, 4.0, spectrum.Cond(), 1e-10)
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
