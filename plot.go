// plot.go --  This file is part of goDF project.
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
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// logFloor keeps exact-zero eigenvalues finite on the log axis.
const logFloor = 1e-17

// SpectrumPlot draws the metric eigenvalues (largest first) on a log10
// magnitude scale together with the truncation cutoff and saves the
// figure to fname; the format follows the file extension.
func SpectrumPlot(eigs []float64, cutoff float64, fname string) error {
	p := plot.New()
	p.Title.Text = "Coulomb metric spectrum"
	p.X.Label.Text = "eigenvalue index"
	p.Y.Label.Text = "log10 |eigenvalue|"

	n := len(eigs)
	pts := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		v := eigs[n-1-i] // MetricSpectrum stores ascending order
		pts[i].X = float64(i + 1)
		pts[i].Y = math.Log10(math.Max(math.Abs(v), logFloor))
	}
	cut := math.Log10(math.Max(cutoff, logFloor))
	cutLine := plotter.XYs{{X: 1, Y: cut}, {X: float64(n), Y: cut}}

	err := plotutil.AddLinePoints(p,
		"eigenvalues", pts,
		"cutoff", cutLine,
	)
	if err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, fname)
}
