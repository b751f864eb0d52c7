// io.go --  This file is part of goDF project.
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
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

func ReadFileLines(fname string) ([]string, error) {
	var result []string
	var err error

	file, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		result = append(result, scanner.Text())
	}
	err = scanner.Err()

	return result, err
}

// numericRows parses whitespace-separated floats line by line, skipping
// blank lines and '#' comments.
func numericRows(lines []string) ([][]float64, error) {
	var rows [][]float64
	for i, line := range lines {
		s := strings.TrimSpace(line)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		fields := strings.Fields(s)
		vals := make([]float64, len(fields))
		for j, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad number %q", i+1, f)
			}
			vals[j] = v
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// ReadMatFile loads a dense matrix from a text file. The first numeric
// line is the "rows cols" header, followed by rows lines of cols values.
func ReadMatFile(fname string) (*mat.Dense, error) {
	lines, err := ReadFileLines(fname)
	if err != nil {
		return nil, err
	}
	rows, err := numericRows(lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty matrix file", fname)
	}
	if len(rows[0]) != 2 {
		return nil, fmt.Errorf("%s: want \"rows cols\" header, got %d fields", fname, len(rows[0]))
	}
	r, c := int(rows[0][0]), int(rows[0][1])
	if r < 1 || c < 1 {
		return nil, fmt.Errorf("%s: bad header %d %d", fname, r, c)
	}
	if len(rows)-1 != r {
		return nil, fmt.Errorf("%s: header promises %d rows, file has %d", fname, r, len(rows)-1)
	}
	data := make([]float64, 0, r*c)
	for i, row := range rows[1:] {
		if len(row) != c {
			return nil, fmt.Errorf("%s: row %d has %d values, want %d", fname, i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data), nil
}

// WriteMatFile stores a dense matrix in the format ReadMatFile loads.
func WriteMatFile(M *mat.Dense, fname string) error {
	r, c := M.Dims()
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d\n", r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			fmt.Fprintf(&b, "%22.14e", M.At(i, j))
		}
		b.WriteString("\n")
	}
	return os.WriteFile(fname, []byte(b.String()), 0644)
}

// ReadThreeIndexFile loads a three-index tensor from a text file: a
// "naux nbf" header, then naux blocks of nbf rows with nbf values each.
func ReadThreeIndexFile(fname string) (*ThreeIndex, error) {
	lines, err := ReadFileLines(fname)
	if err != nil {
		return nil, err
	}
	rows, err := numericRows(lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty tensor file", fname)
	}
	if len(rows[0]) != 2 {
		return nil, fmt.Errorf("%s: want \"naux nbf\" header, got %d fields", fname, len(rows[0]))
	}
	naux, nbf := int(rows[0][0]), int(rows[0][1])
	if naux < 1 || nbf < 1 {
		return nil, fmt.Errorf("%s: bad header %d %d", fname, naux, nbf)
	}
	if len(rows)-1 != naux*nbf {
		return nil, fmt.Errorf("%s: header promises %d rows, file has %d", fname, naux*nbf, len(rows)-1)
	}
	data := make([]float64, 0, naux*nbf*nbf)
	for i, row := range rows[1:] {
		if len(row) != nbf {
			return nil, fmt.Errorf("%s: row %d has %d values, want %d", fname, i, len(row), nbf)
		}
		data = append(data, row...)
	}
	t, err := NewThreeIndexData(naux, nbf, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return t, nil
}

// WriteThreeIndexFile stores a three-index tensor in the format
// ReadThreeIndexFile loads, one commented block per auxiliary index.
func WriteThreeIndexFile(t *ThreeIndex, fname string) error {
	naux, nbf := t.Dims()
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d\n", naux, nbf)
	for p := 0; p < naux; p++ {
		fmt.Fprintf(&b, "# Q %d\n", p)
		for i := 0; i < nbf; i++ {
			for j := 0; j < nbf; j++ {
				fmt.Fprintf(&b, "%22.14e", t.At(p, i, j))
			}
			b.WriteString("\n")
		}
	}
	return os.WriteFile(fname, []byte(b.String()), 0644)
}

// flatten copies a matrix into a fresh row-major slice. The raw backing
// data is not reused because views can carry a stride wider than ncols.
func flatten(a *mat.Dense) []float64 {
	r, c := a.Dims()
	res := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			res[i*c+j] = a.At(i, j)
		}
	}
	return res
}

func FormatMat(D *mat.Dense) string {
	fa := mat.Formatted(D, mat.Prefix("    "), mat.Squeeze())
	return fmt.Sprintf("    %.8f", fa)
}

func MyMemDebug() {
	fmt.Println("-----------!!!!!!!!Enter MyMemDebug!!!!!!!!--------------")
	var memStats runtime.MemStats

	runtime.ReadMemStats(&memStats)

	fmt.Printf("Alloc: %d bytes\n", memStats.Alloc)
	fmt.Printf("TotalAlloc: %d bytes\n", memStats.TotalAlloc)
	fmt.Printf("HeapAlloc: %d bytes\n", memStats.HeapAlloc)
	fmt.Printf("HeapSys: %d bytes\n", memStats.HeapSys)
	fmt.Println("------------------------------------------!--------------")
}
