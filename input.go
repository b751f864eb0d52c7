// input.go --  This file is part of goDF project.
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
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/exp/slices"
)

var kbuildModes = []string{"direct", "occ"}

// Job is one fitting run as described by an input file: tensor files to
// load, numerical settings, and which extras to produce.
type Job struct {
	RawFile     string
	MetricFile  string
	DensityFile string
	HcoreFile   string
	CoeffFile   string

	Cutoff float64
	SymTol float64
	NProcs int
	KBuild string

	PlotFile string
	Check    bool
	Write    bool
	Debug    bool

	OutBase string // set by the driver from the input file name
}

// DefaultJob seeds job settings from GODF_* environment variables, falling
// back to built-in defaults. A .env file in the working directory is
// honored when present.
func DefaultJob() Job {
	_ = godotenv.Load()
	return Job{
		Cutoff: getEnvFloat("GODF_CUTOFF", 1e-14),
		SymTol: getEnvFloat("GODF_SYMTOL", 1e-8),
		NProcs: getEnvInt("GODF_NPROCS", 0),
		KBuild: strings.ToLower(getEnv("GODF_KBUILD", "direct")),
	}
}

func (job Job) fitOptions() FitOptions {
	opts := DefaultFitOptions()
	opts.Cutoff = job.Cutoff
	opts.SymTol = job.SymTol
	opts.Procs = job.NProcs
	return opts
}

func processInput(data []string) (Job, error) {
	job := DefaultJob()
	var tensors bool
	for i := 0; i < len(data); i++ {
		words := strings.Fields(data[i])
		if len(words) == 0 || strings.HasPrefix(words[0], "#") {
			continue
		}
		switch strings.ToLower(words[0]) {
		case "tensors":
			tensors = true
			end, err := findBlockEnd(i, data, "Tensors")
			if err != nil {
				return job, err
			}
			if err := job.addTensorFiles(data, i+1, end-1); err != nil {
				return job, err
			}
			OutputLogger.Print("Parsing input. Tensors block found at lines ", i, " -- ", end, ".")
			i = end
		case "cutoff":
			v, err := keywordFloat(words, i)
			if err != nil {
				return job, err
			}
			job.Cutoff = v
		case "symtol":
			v, err := keywordFloat(words, i)
			if err != nil {
				return job, err
			}
			job.SymTol = v
		case "nprocs":
			if len(words) < 2 {
				return job, fmt.Errorf("line %d: nprocs needs a value", i+1)
			}
			nprocs, err := strconv.Atoi(words[1])
			if err != nil {
				return job, fmt.Errorf("line %d: bad nprocs %q", i+1, words[1])
			}
			job.NProcs = nprocs
			OutputLogger.Print("Parsing input. Number of threads set to " + words[1] + ".")
		case "kbuild":
			if len(words) < 2 {
				return job, fmt.Errorf("line %d: kbuild needs a value", i+1)
			}
			job.KBuild = strings.ToLower(words[1])
		case "plot":
			if len(words) < 2 {
				return job, fmt.Errorf("line %d: plot needs a file name", i+1)
			}
			job.PlotFile = words[1]
		case "check":
			job.Check = true
		case "write":
			job.Write = true
		case "debug":
			job.Debug = true
		default:
			WarningLogger.Printf("Parsing input. Unknown keyword %q at line %d, skipping.", words[0], i+1)
		}
	}
	if !tensors {
		return job, fmt.Errorf("no Tensors block in input")
	}
	if job.RawFile == "" || job.MetricFile == "" {
		return job, fmt.Errorf("Tensors block must name raw and metric files")
	}
	if !slices.Contains(kbuildModes, job.KBuild) {
		return job, fmt.Errorf("unknown kbuild mode %q, want direct or occ", job.KBuild)
	}
	if job.KBuild == "occ" && job.CoeffFile == "" {
		return job, fmt.Errorf("kbuild occ needs a coeffs file in the Tensors block")
	}
	return job, nil
}

func (job *Job) addTensorFiles(data []string, start, end int) error {
	for i := start; i <= end; i++ {
		words := strings.Fields(data[i])
		if len(words) == 0 || strings.HasPrefix(words[0], "#") {
			continue
		}
		if len(words) < 2 {
			return fmt.Errorf("line %d: want \"<kind> <file>\" in Tensors block", i+1)
		}
		switch strings.ToLower(words[0]) {
		case "raw":
			job.RawFile = words[1]
		case "metric":
			job.MetricFile = words[1]
		case "density":
			job.DensityFile = words[1]
		case "hcore":
			job.HcoreFile = words[1]
		case "coeffs":
			job.CoeffFile = words[1]
		default:
			return fmt.Errorf("line %d: unknown tensor kind %q", i+1, words[0])
		}
	}
	return nil
}

func findBlockEnd(n int, data []string, bname string) (int, error) {
	for i := n; i < len(data); i++ {
		words := strings.Fields(data[i])
		if len(words) > 0 {
			if strings.ToLower(words[0]) == "end" {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("no end of block %s", bname)
}

func keywordFloat(words []string, line int) (float64, error) {
	if len(words) < 2 {
		return 0, fmt.Errorf("line %d: %s needs a value", line+1, words[0])
	}
	v, err := strconv.ParseFloat(words[1], 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: bad %s %q", line+1, words[0], words[1])
	}
	return v, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
