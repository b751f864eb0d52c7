// flags.go --  This file is part of goDF project.
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
	"flag"
	"fmt"
	"os"
)

const help = `Requirements:
- goDF input file with a Tensors block naming at least the raw
  three-center tensor file and the Coulomb metric file
- tensor and matrix files in the plain text formats described in
  README.md ("rows cols" / "naux nbf" headers)
Optional keywords: cutoff, symtol, nprocs, kbuild (direct|occ),
plot <file>, check, write, debug.
Flags:
`

var VERSION = "1.0.0"

var (
	overwrite = flag.Bool("o", false, "overwrite existing result files on write")
	version   = flag.Bool("version", false, "print the version and exit")
)

// ParseFlags parses command line flags and returns a slice of
// the remaining arguments
func ParseFlags() []string {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), help)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *version {
		fmt.Printf("goDF version: %s\n", VERSION)
		os.Exit(0)
	}
	return flag.Args()
}
