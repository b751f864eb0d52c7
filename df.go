// df.go --  This file is part of goDF project.
// Mirzaeva Irina, 2024
//
//	goDF is distributed in the hope that it will be useful,
//	but WITHOUT ANY WARRANTY; without even the implied warranty
//	of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
//	See the GNU General Public License for more details.
//
//	You should have received a copy of the GNU General Public License
//	along with this program.  If not, see http://www.gnu.org/licenses/
//
// ------------------------------------------------
package main

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FitOptions collects the numerical policy knobs of the fitting engine.
//   - Cutoff: metric eigenvalues ≤ Cutoff are zeroed, not inverted.
//   - SymTol: relative RMS tolerance for symmetry validation of inputs.
//   - WarnFraction: a SingularMetricWarning is raised when the truncated
//     share of the spectrum exceeds this fraction.
//   - ZeroNegative: truncate eigenvalues below -Cutoff instead of failing
//     with ErrMetricIndefinite.
//   - Procs: goroutines for the exchange builds; 0 means GOMAXPROCS.
type FitOptions struct {
	Cutoff       float64
	SymTol       float64
	WarnFraction float64
	ZeroNegative bool
	Procs        int
}

// DefaultFitOptions returns the defaults used by the driver.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Cutoff:       1e-14,
		SymTol:       1e-8,
		WarnFraction: 0,
	}
}

// MetricSpectrum records the eigenvalues of the Coulomb metric and how many
// of them were truncated when forming the inverse square root.
type MetricSpectrum struct {
	Eigs    []float64 // ascending, as returned by mat.EigenSym
	Dropped int
	Cutoff  float64
}

// Warning returns a SingularMetricWarning when the truncated share of the
// spectrum exceeds frac, nil otherwise.
func (s *MetricSpectrum) Warning(frac float64) *SingularMetricWarning {
	if len(s.Eigs) == 0 || s.Dropped == 0 {
		return nil
	}
	if float64(s.Dropped)/float64(len(s.Eigs)) <= frac {
		return nil
	}
	return &SingularMetricWarning{Dropped: s.Dropped, Total: len(s.Eigs), Cutoff: s.Cutoff}
}

// Cond returns the ratio of the largest eigenvalue to the smallest kept one,
// or +Inf when the whole spectrum was truncated.
func (s *MetricSpectrum) Cond() float64 {
	n := len(s.Eigs)
	if n == 0 || s.Dropped == n {
		return math.Inf(1)
	}
	smallest := math.Inf(1)
	for _, v := range s.Eigs {
		if v > s.Cutoff {
			smallest = v
			break
		}
	}
	return s.Eigs[n-1] / smallest
}

// MetricInvSqrt builds [J]^(-1/2) for a symmetric Coulomb metric by
// symmetric eigendecomposition: eigenvalues above the cutoff become
// λ^(-1/2), the rest become zero so that near-singular directions of the
// auxiliary basis are projected out instead of amplifying noise.
// Negative eigenvalues beyond the cutoff are ErrMetricIndefinite unless
// opts.ZeroNegative is set.
func MetricInvSqrt(metric *mat.Dense, opts FitOptions) (*mat.Dense, *MetricSpectrum, error) {
	r, c := metric.Dims()
	if r != c || r < 1 {
		return nil, nil, &ShapeError{
			Op:   "MetricInvSqrt",
			Want: "square metric",
			Got:  fmt.Sprintf("%d×%d", r, c),
		}
	}
	if err := checkSymmetric("metric", metric, opts.SymTol); err != nil {
		return nil, nil, err
	}

	var eigsym mat.EigenSym
	ok := eigsym.Factorize(mat.NewSymDense(r, flatten(metric)), true)
	if !ok {
		return nil, nil, fmt.Errorf("godf: metric eigendecomposition failed")
	}
	vals := eigsym.Values(nil)
	var ev mat.Dense
	eigsym.VectorsTo(&ev)

	spectrum := &MetricSpectrum{Eigs: vals, Cutoff: opts.Cutoff}
	invVec := make([]float64, r)
	for i, v := range vals {
		switch {
		case v > opts.Cutoff:
			invVec[i] = 1 / math.Sqrt(v)
		case v < -opts.Cutoff && !opts.ZeroNegative:
			return nil, nil, fmt.Errorf("%w: eigenvalue %d is %.6e with cutoff %.3e",
				ErrMetricIndefinite, i, v, opts.Cutoff)
		default:
			spectrum.Dropped++
		}
	}

	// V diag(λ^-1/2) Vᵀ; V from EigenSym is orthonormal.
	var tmp, inv mat.Dense
	tmp.Mul(&ev, mat.NewDiagDense(r, invVec))
	inv.Mul(&tmp, ev.T())
	return &inv, spectrum, nil
}

// FitThreeIndex folds the metric inverse square root into the raw
// three-center tensor: Qpq[Q,p,q] = Σ_P minv[Q,P] raw[P,p,q].
func FitThreeIndex(raw *ThreeIndex, minv *mat.Dense) (*ThreeIndex, error) {
	naux, nbf := raw.Dims()
	mr, mc := minv.Dims()
	if mr != naux || mc != naux {
		return nil, &ShapeError{
			Op:   "FitThreeIndex",
			Want: fmt.Sprintf("%d×%d metric", naux, naux),
			Got:  fmt.Sprintf("%d×%d", mr, mc),
		}
	}
	fitted := NewThreeIndex(naux, nbf)
	fitted.AuxView().Mul(minv, raw.AuxView())
	return fitted, nil
}

// DF holds the fitted three-index tensor and the metric diagnostics; its
// Build methods produce the density-fitted J, K and Fock matrices.
type DF struct {
	Naux, Nbf int
	Qpq       *ThreeIndex
	Spectrum  *MetricSpectrum
	opts      FitOptions
}

// DFinit validates the raw tensor against the metric, forms the regularized
// metric inverse square root and contracts it into the fitted tensor.
func DFinit(raw *ThreeIndex, metric *mat.Dense, opts FitOptions) (*DF, error) {
	naux, nbf := raw.Dims()
	mr, mc := metric.Dims()
	if mr != naux || mc != naux {
		return nil, &ShapeError{
			Op:   "DFinit",
			Want: fmt.Sprintf("%d×%d metric for aux dimension %d", naux, naux, naux),
			Got:  fmt.Sprintf("%d×%d", mr, mc),
		}
	}
	if err := raw.CheckSymmetric(opts.SymTol); err != nil {
		return nil, err
	}
	minv, spectrum, err := MetricInvSqrt(metric, opts)
	if err != nil {
		return nil, err
	}
	fitted, err := FitThreeIndex(raw, minv)
	if err != nil {
		return nil, err
	}
	return &DF{
		Naux:     naux,
		Nbf:      nbf,
		Qpq:      fitted,
		Spectrum: spectrum,
		opts:     opts,
	}, nil
}

// Warning reports metric truncation past the configured fraction, nil when
// the fit is clean. Non-fatal: the engine proceeds on the kept eigenspace.
func (df *DF) Warning() *SingularMetricWarning {
	return df.Spectrum.Warning(df.opts.WarnFraction)
}

// BuildJ contracts the fitted tensor with a density matrix into the Coulomb
// matrix in two O(Naux·N²) stages:
//
//	X[Q]    = Σ_pq Qpq[Q,p,q] D[p,q]
//	J[p,q]  = Σ_Q  Qpq[Q,p,q] X[Q]
//
// staged on purpose: one four-index contraction would be O(N⁴).
func (df *DF) BuildJ(D *mat.Dense) (*mat.Dense, error) {
	if err := df.checkDensity("BuildJ", D); err != nil {
		return nil, err
	}
	nn := df.Nbf * df.Nbf
	aux := df.Qpq.AuxView()
	dvec := mat.NewVecDense(nn, flatten(D))

	var x mat.VecDense
	x.MulVec(aux, dvec)
	var jv mat.VecDense
	jv.MulVec(aux.T(), &x)
	return mat.NewDense(df.Nbf, df.Nbf, jv.RawVector().Data), nil
}

// BuildK contracts the fitted tensor with a density matrix into the exchange
// matrix, one auxiliary slice at a time:
//
//	Z_Q = Q_Q D           (Z[Q,r,q] = Σ_s Qpq[Q,r,s] D[s,q])
//	K  += Q_Q Z_Qᵀ        (K[p,r] = Σ_q Qpq[Q,p,q] Z[Q,r,q])
//
// Fitting does not lower the O(Naux·N³) scaling of exchange, only its
// memory footprint; the slices are farmed out to opts.Procs goroutines.
func (df *DF) BuildK(D *mat.Dense) (*mat.Dense, error) {
	if err := df.checkDensity("BuildK", D); err != nil {
		return nil, err
	}
	return df.accumAux(func(lo, hi int, part *mat.Dense) {
		var z, term mat.Dense
		for p := lo; p < hi; p++ {
			qp := df.Qpq.Slice(p)
			z.Mul(qp, D)
			term.Mul(qp, z.T())
			part.Add(part, &term)
		}
	}), nil
}

// BuildKOcc is the occupied-orbital factorization of the exchange build for
// D = C Cᵀ: Z2_Q = Q_Q C and K += Z2_Q Z2_Qᵀ, which costs O(Naux·N²·Nocc)
// instead of O(Naux·N³). Worth it whenever Nocc ≪ N.
func (df *DF) BuildKOcc(C *mat.Dense) (*mat.Dense, error) {
	cr, cc := C.Dims()
	if cr != df.Nbf || cc < 1 {
		return nil, &ShapeError{
			Op:   "BuildKOcc",
			Want: fmt.Sprintf("%d×Nocc coefficients", df.Nbf),
			Got:  fmt.Sprintf("%d×%d", cr, cc),
		}
	}
	return df.accumAux(func(lo, hi int, part *mat.Dense) {
		var z2, term mat.Dense
		for p := lo; p < hi; p++ {
			qp := df.Qpq.Slice(p)
			z2.Mul(qp, C)
			term.Mul(&z2, z2.T())
			part.Add(part, &term)
		}
	}), nil
}

// accumAux splits the auxiliary index over workers, each accumulating into
// its own partial matrix, and reduces the partials in worker order.
func (df *DF) accumAux(chunk func(lo, hi int, part *mat.Dense)) *mat.Dense {
	procs := df.opts.Procs
	if procs < 1 {
		procs = runtime.GOMAXPROCS(-1)
	}
	if procs > df.Naux {
		procs = df.Naux
	}
	if procs <= 1 {
		part := mat.NewDense(df.Nbf, df.Nbf, nil)
		chunk(0, df.Naux, part)
		return part
	}

	listSize := df.Naux / procs
	parts := make([]*mat.Dense, procs)
	for i := range parts {
		parts[i] = mat.NewDense(df.Nbf, df.Nbf, nil)
	}
	var wg sync.WaitGroup
	for w := 0; w < procs; w++ {
		lo := w * listSize
		hi := lo + listSize
		if w == procs-1 {
			hi = df.Naux
		}
		wg.Add(1)
		go func(lo, hi int, part *mat.Dense) {
			defer wg.Done()
			chunk(lo, hi, part)
		}(lo, hi, parts[w])
	}
	wg.Wait()

	result := mat.NewDense(df.Nbf, df.Nbf, nil)
	for i := range parts {
		result.Add(result, parts[i])
	}
	return result
}

// BuildFock assembles F = H + 2J - K (closed-shell restricted convention)
// from the density matrix, returning J and K alongside.
func (df *DF) BuildFock(H, D *mat.Dense) (F, J, K *mat.Dense, err error) {
	if err := checkSquareDims("BuildFock", H, df.Nbf); err != nil {
		return nil, nil, nil, err
	}
	if err := checkSymmetric("core Hamiltonian", H, df.opts.SymTol); err != nil {
		return nil, nil, nil, err
	}
	if J, err = df.BuildJ(D); err != nil {
		return nil, nil, nil, err
	}
	if K, err = df.BuildK(D); err != nil {
		return nil, nil, nil, err
	}
	F, err = FockMatrix(H, J, K)
	return F, J, K, err
}

// FockMatrix combines already-built matrices into F = H + 2J - K. Pure
// elementwise arithmetic; the only failure mode is disagreeing shapes.
func FockMatrix(H, J, K *mat.Dense) (*mat.Dense, error) {
	hr, hc := H.Dims()
	jr, jc := J.Dims()
	kr, kc := K.Dims()
	if hr != hc || hr != jr || jr != jc || hr != kr || kr != kc {
		return nil, &ShapeError{
			Op:   "FockMatrix",
			Want: "matching square H, J, K",
			Got:  fmt.Sprintf("%d×%d, %d×%d, %d×%d", hr, hc, jr, jc, kr, kc),
		}
	}
	var f mat.Dense
	f.Scale(2, J)
	f.Add(&f, H)
	f.Sub(&f, K)
	return &f, nil
}

// CalcElecEnergy returns the closed-shell electronic energy
// Σ_pq D[p,q] (H+F)[p,q] for F = H + 2J - K.
func CalcElecEnergy(D, H, F *mat.Dense) (float64, error) {
	dr, dc := D.Dims()
	hr, hc := H.Dims()
	fr, fc := F.Dims()
	if dr != dc || dr != hr || hr != hc || dr != fr || fr != fc {
		return 0, &ShapeError{
			Op:   "CalcElecEnergy",
			Want: "matching square D, H, F",
			Got:  fmt.Sprintf("%d×%d, %d×%d, %d×%d", dr, dc, hr, hc, fr, fc),
		}
	}
	res := 0.0
	for i := 0; i < dr; i++ {
		for j := 0; j < dr; j++ {
			res += D.At(i, j) * (H.At(i, j) + F.At(i, j))
		}
	}
	return res, nil
}

// DensityFromCoeffs builds D = C Cᵀ from occupied molecular-orbital
// coefficients (N×Nocc).
func DensityFromCoeffs(C *mat.Dense) *mat.Dense {
	var d mat.Dense
	d.Mul(C, C.T())
	return &d
}

// ApproxERI assembles the fitted four-index tensor as the (N²×N²) Gram
// matrix of the aux view: g[pq,rs] = Σ_Q Qpq[Q,p,q] Qpq[Q,r,s]. It undoes
// the storage savings of the fit (N⁴ values), so it is meant for the
// check mode and for validation on small systems.
func (df *DF) ApproxERI() *mat.Dense {
	aux := df.Qpq.AuxView()
	nn := df.Nbf * df.Nbf
	g := mat.NewDense(nn, nn, nil)
	g.Mul(aux.T(), aux)
	return g
}

// BuildJKNaive contracts a four-index tensor directly with a symmetric
// density matrix:
//
//	J[p,q] = Σ_rs g[pq|rs] D[r,s]
//	K[p,q] = Σ_rs g[pr|qs] D[r,s]
//
// The O(N⁴) reference the staged builds are checked against.
func BuildJKNaive(eri *mat.Dense, D *mat.Dense) (J, K *mat.Dense, err error) {
	n, dc := D.Dims()
	er, ec := eri.Dims()
	if n != dc || er != n*n || ec != n*n {
		return nil, nil, &ShapeError{
			Op:   "BuildJKNaive",
			Want: fmt.Sprintf("%d×%d density with %d×%d tensor", n, n, n*n, n*n),
			Got:  fmt.Sprintf("%d×%d with %d×%d", n, dc, er, ec),
		}
	}
	J = mat.NewDense(n, n, nil)
	K = mat.NewDense(n, n, nil)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			var jv, kv float64
			for r := 0; r < n; r++ {
				for s := 0; s < n; s++ {
					jv += eri.At(p*n+q, r*n+s) * D.At(r, s)
					kv += eri.At(p*n+r, q*n+s) * D.At(r, s)
				}
			}
			J.Set(p, q, jv)
			K.Set(p, q, kv)
		}
	}
	return J, K, nil
}

func (df *DF) checkDensity(op string, D *mat.Dense) error {
	if err := checkSquareDims(op, D, df.Nbf); err != nil {
		return err
	}
	return checkSymmetric("density matrix", D, df.opts.SymTol)
}

func checkSquareDims(op string, a *mat.Dense, n int) error {
	r, c := a.Dims()
	if r != n || c != n {
		return &ShapeError{
			Op:   op,
			Want: fmt.Sprintf("%d×%d", n, n),
			Got:  fmt.Sprintf("%d×%d", r, c),
		}
	}
	return nil
}

// symmetryDeviation is RMS(A-Aᵀ) relative to 1+RMS(A).
func symmetryDeviation(a *mat.Dense) float64 {
	r, c := a.Dims()
	if r != c {
		return math.Inf(1)
	}
	var dev float64
	npairs := 0
	sq := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j <= i; j++ {
			d := a.At(i, j) - a.At(j, i)
			dev += d * d
			npairs++
		}
		for j := 0; j < c; j++ {
			sq = append(sq, a.At(i, j)*a.At(i, j))
		}
	}
	norm := math.Sqrt(stat.Mean(sq, nil))
	return math.Sqrt(dev/float64(npairs)) / (1 + norm)
}

func checkSymmetric(name string, a *mat.Dense, tol float64) error {
	if dev := symmetryDeviation(a); dev > tol {
		return &AsymmetryError{Name: name, Dev: dev, Tol: tol}
	}
	return nil
}

// absDiffStats reports the largest and the RMS absolute elementwise
// difference between two same-shaped matrices.
func absDiffStats(a, b mat.Matrix) (max, rms float64) {
	r, c := a.Dims()
	sq := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d := math.Abs(a.At(i, j) - b.At(i, j))
			if d > max {
				max = d
			}
			sq = append(sq, d*d)
		}
	}
	return max, math.Sqrt(stat.Mean(sq, nil))
}
