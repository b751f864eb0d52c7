// main.go --  This file is part of goDF project.
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
	"log"
	"os"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

var (
	WarningLogger *log.Logger
	InfoLogger    *log.Logger
	ErrorLogger   *log.Logger
	OutputLogger  *log.Logger
)

func initLog(fname string) {
	file, err := os.OpenFile(fname, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatal(err)
	}

	InfoLogger = log.New(file, "INFO: ", log.Ldate|log.Ltime)
	WarningLogger = log.New(file, "WARNING: ", log.Ldate|log.Ltime)
	ErrorLogger = log.New(file, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	OutputLogger = log.New(file, "", 0)
}

func appInfo() {
	OutputLogger.Print(`
            ____  _____    |
   __ _  __|  _ \|  ___|   | Author: Mirzaeva Irina Valerievna
  / _' |/ _ \ | | | |_     | email: dairdre@gmail.com
 | (_| | (_) | |_| |  _|   | Nikolaev Institute of Inorganic Chemistry SB RAS (http://niic.nsc.ru/)
  \__, |\___/|____/|_|     | Novosibirsk, Russia
  |___/                    | DF stands for Density Fitting
                           | Have Fun!!!
` + "\n")
}

func printOutputDelimiter() {
	OutputLogger.Println(strings.Repeat("-", 70))
}

// run executes one fitting job end to end: load tensors, fit, build the
// requested matrices, then the extras (check, write, plot, debug).
func run(job Job) error {
	tstart := time.Now()
	raw, err := ReadThreeIndexFile(job.RawFile)
	if err != nil {
		return fmt.Errorf("cannot read raw tensor: %w", err)
	}
	metric, err := ReadMatFile(job.MetricFile)
	if err != nil {
		return fmt.Errorf("cannot read metric: %w", err)
	}
	naux, nbf := raw.Dims()
	OutputLogger.Println("Raw tensor: Naux =", naux, ", Nbf =", nbf)

	df, err := DFinit(raw, metric, job.fitOptions())
	if err != nil {
		return err
	}
	tstop := time.Now()
	fmt.Println("------", "Time for metric decomposition and tensor fit:", tstop.Sub(tstart))

	if w := df.Warning(); w != nil {
		WarningLogger.Println(w.Error())
	}
	OutputLogger.Println("Metric spectrum:", df.Spectrum.Dropped, "of", naux,
		"eigenvalues at or below cutoff", job.Cutoff)
	OutputLogger.Println("Metric condition number:", df.Spectrum.Cond())
	printOutputDelimiter()

	if job.PlotFile != "" {
		if err := SpectrumPlot(df.Spectrum.Eigs, job.Cutoff, job.PlotFile); err != nil {
			WarningLogger.Println("Cannot plot spectrum: ", err)
		} else {
			OutputLogger.Println("Metric spectrum plot written to " + job.PlotFile)
		}
	}

	var C, D *mat.Dense
	if job.CoeffFile != "" {
		if C, err = ReadMatFile(job.CoeffFile); err != nil {
			return fmt.Errorf("cannot read coefficients: %w", err)
		}
	}
	switch {
	case job.DensityFile != "":
		if D, err = ReadMatFile(job.DensityFile); err != nil {
			return fmt.Errorf("cannot read density: %w", err)
		}
	case C != nil:
		D = DensityFromCoeffs(C)
	}
	if D == nil {
		OutputLogger.Println("No density or coefficients given; stopping after the fit.")
		if job.Write {
			writeTensorResult(df.Qpq, job.OutBase+".Qpq.txt")
		}
		return nil
	}

	tstart = time.Now()
	J, err := df.BuildJ(D)
	if err != nil {
		return err
	}
	tstop = time.Now()
	fmt.Println("------", "Time for Coulomb build:", tstop.Sub(tstart))

	tstart = time.Now()
	var K *mat.Dense
	if job.KBuild == "occ" {
		K, err = df.BuildKOcc(C)
	} else {
		K, err = df.BuildK(D)
	}
	if err != nil {
		return err
	}
	tstop = time.Now()
	fmt.Println("------", "Time for exchange build ("+job.KBuild+"):", tstop.Sub(tstart))
	printOutputDelimiter()

	var H, F *mat.Dense
	if job.HcoreFile != "" {
		if H, err = ReadMatFile(job.HcoreFile); err != nil {
			return fmt.Errorf("cannot read core Hamiltonian: %w", err)
		}
		if F, err = FockMatrix(H, J, K); err != nil {
			return err
		}
		E, err := CalcElecEnergy(D, H, F)
		if err != nil {
			return err
		}
		OutputLogger.Println("Electronic energy = ", E, " a.u.")
		fmt.Println("Electronic energy = ", E, " a.u.")
		printOutputDelimiter()
	}

	if job.Check {
		if err := checkAgainstNaive(df, D, H, J, K, F); err != nil {
			return err
		}
	}

	if job.Write {
		writeMatResult(J, job.OutBase+".J.txt")
		writeMatResult(K, job.OutBase+".K.txt")
		if F != nil {
			writeMatResult(F, job.OutBase+".F.txt")
		}
	}

	if job.Debug {
		OutputLogger.Println("Coulomb matrix:")
		OutputLogger.Println(FormatMat(J))
		OutputLogger.Println("Exchange matrix:")
		OutputLogger.Println(FormatMat(K))
		if F != nil {
			OutputLogger.Println("Fock matrix:")
			OutputLogger.Println(FormatMat(F))
		}
		MyMemDebug()
	}
	return nil
}

// checkAgainstNaive rebuilds J and K by the O(N^4) reference contraction
// and logs how far the staged builds are from it.
func checkAgainstNaive(df *DF, D, H, J, K, F *mat.Dense) error {
	tstart := time.Now()
	eri := df.ApproxERI()
	Jn, Kn, err := BuildJKNaive(eri, D)
	if err != nil {
		return err
	}
	jmax, jrms := absDiffStats(J, Jn)
	kmax, krms := absDiffStats(K, Kn)
	OutputLogger.Println("Check vs naive contraction:")
	OutputLogger.Printf("    J: max dev %.3e, rms dev %.3e\n", jmax, jrms)
	OutputLogger.Printf("    K: max dev %.3e, rms dev %.3e\n", kmax, krms)
	if F != nil {
		Fn, err := FockMatrix(H, Jn, Kn)
		if err != nil {
			return err
		}
		fmax, frms := absDiffStats(F, Fn)
		OutputLogger.Printf("    F: max dev %.3e, rms dev %.3e\n", fmax, frms)
	}
	tstop := time.Now()
	fmt.Println("------", "Time for naive check:", tstop.Sub(tstart))
	printOutputDelimiter()
	return nil
}

func writeMatResult(M *mat.Dense, fname string) {
	if _, err := os.Stat(fname); err == nil && !*overwrite {
		WarningLogger.Println(fname + " exists, use -o to overwrite.")
		return
	}
	if err := WriteMatFile(M, fname); err != nil {
		ErrorLogger.Println("Cannot write "+fname+": ", err)
	} else {
		OutputLogger.Println("Wrote " + fname)
	}
}

func writeTensorResult(t *ThreeIndex, fname string) {
	if _, err := os.Stat(fname); err == nil && !*overwrite {
		WarningLogger.Println(fname + " exists, use -o to overwrite.")
		return
	}
	if err := WriteThreeIndexFile(t, fname); err != nil {
		ErrorLogger.Println("Cannot write "+fname+": ", err)
	} else {
		OutputLogger.Println("Wrote " + fname)
	}
}

func main() {
	args := ParseFlags()

	var inpFname, outFname string
	if len(args) > 0 {
		inpFname = args[0]
		split_inpFname := strings.Split(inpFname, ".")
		fExt := split_inpFname[len(split_inpFname)-1]
		outFname = inpFname[0:(len(inpFname)-len(fExt))] + "out"
		fmt.Println("Output file: ", outFname)
	} else {
		log.Fatal("No input file.")
	}

	initLog(outFname)

	InfoLogger.Println("Starting goDF...")
	appInfo()
	WarningLogger.Println("This is an experimental program on an early stage of development.")
	OutputLogger.Print("\n\n")

	OutputLogger.Println("Input file content:")
	printOutputDelimiter()
	inpData, err := ReadFileLines(inpFname)
	if err != nil {
		ErrorLogger.Fatal("Cannot read input file: ", err)
	}
	for _, i := range inpData {
		OutputLogger.Println(i)
	}
	printOutputDelimiter()

	job, err := processInput(inpData)
	if err != nil {
		ErrorLogger.Fatal("Parsing input. ", err)
	}
	job.OutBase = strings.TrimSuffix(outFname, ".out")

	if err := run(job); err != nil {
		ErrorLogger.Fatal(err)
	}

	OutputLogger.Print("\n\n")
	InfoLogger.Println("Exiting goDF...")
	fmt.Println("goDF done.")
}
