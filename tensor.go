// tensor.go --  This file is part of goDF project.
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

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ThreeIndex is a dense (Naux, N, N) tensor such as the three-center
// integrals (P|λσ), stored flat with index P*N*N + p*N + q.
type ThreeIndex struct {
	naux, nbf int
	data      []float64
}

// NewThreeIndex allocates a zeroed (naux, nbf, nbf) tensor.
func NewThreeIndex(naux, nbf int) *ThreeIndex {
	if naux < 1 || nbf < 1 {
		panic(fmt.Sprintf("godf: non-positive tensor dimensions %d, %d", naux, nbf))
	}
	return &ThreeIndex{
		naux: naux,
		nbf:  nbf,
		data: make([]float64, naux*nbf*nbf),
	}
}

// NewThreeIndexData wraps an existing flat slice, which must have length
// naux*nbf*nbf. The tensor takes ownership of data.
func NewThreeIndexData(naux, nbf int, data []float64) (*ThreeIndex, error) {
	want := naux * nbf * nbf
	if len(data) != want {
		return nil, &ShapeError{
			Op:   "NewThreeIndexData",
			Want: fmt.Sprintf("%d values (%d×%d×%d)", want, naux, nbf, nbf),
			Got:  fmt.Sprintf("%d values", len(data)),
		}
	}
	return &ThreeIndex{naux: naux, nbf: nbf, data: data}, nil
}

// Dims returns the auxiliary and orbital dimensions.
func (t *ThreeIndex) Dims() (naux, nbf int) {
	return t.naux, t.nbf
}

// At returns the element (P, p, q).
func (t *ThreeIndex) At(P, p, q int) float64 {
	return t.data[P*t.nbf*t.nbf+p*t.nbf+q]
}

// Set assigns the element (P, p, q).
func (t *ThreeIndex) Set(P, p, q int, v float64) {
	t.data[P*t.nbf*t.nbf+p*t.nbf+q] = v
}

// AuxView returns the tensor matricized as (naux × nbf²), sharing storage.
// Row P is the flattened P-th slice, so metric-side contractions are plain
// matrix products against this view.
func (t *ThreeIndex) AuxView() *mat.Dense {
	return mat.NewDense(t.naux, t.nbf*t.nbf, t.data)
}

// Slice returns the (nbf × nbf) matrix for auxiliary index P, sharing storage.
func (t *ThreeIndex) Slice(P int) *mat.Dense {
	nn := t.nbf * t.nbf
	return mat.NewDense(t.nbf, t.nbf, t.data[P*nn:(P+1)*nn])
}

// SymmetryDeviation measures how far the tensor is from symmetric in its
// trailing two indices: RMS(t[P,p,q]-t[P,q,p]) relative to 1+RMS(t).
func (t *ThreeIndex) SymmetryDeviation() float64 {
	var dev, norm float64
	nsym := 0
	for P := 0; P < t.naux; P++ {
		for p := 0; p < t.nbf; p++ {
			for q := 0; q <= p; q++ {
				d := t.At(P, p, q) - t.At(P, q, p)
				dev += d * d
				nsym++
			}
		}
	}
	sq := make([]float64, len(t.data))
	for i, v := range t.data {
		sq[i] = v * v
	}
	norm = math.Sqrt(stat.Mean(sq, nil))
	return math.Sqrt(dev/float64(nsym)) / (1 + norm)
}

// CheckSymmetric returns an AsymmetryError when the trailing-index symmetry
// deviation exceeds tol.
func (t *ThreeIndex) CheckSymmetric(tol float64) error {
	if dev := t.SymmetryDeviation(); dev > tol {
		return &AsymmetryError{Name: "three-index tensor", Dev: dev, Tol: tol}
	}
	return nil
}
