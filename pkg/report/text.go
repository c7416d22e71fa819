// Package report formats collected coverage hits into the text summary
// printed by cmd/covtrace, writing straight onto an io.Writer the way a
// disassembly or variable listing would be formatted.
package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/KevinAo22/OpenCppCoverage/pkg/covcollect"
)

// WriteText renders hits as a per-module, per-file line-hit summary,
// followed by any warning lines (as produced by
// covfilter.Manager.ComputeWarningMessageLines). Modules and files are
// listed in sorted order for a deterministic report.
func WriteText(out io.Writer, hits covcollect.FileHits, warnings []string) error {
	bw := bufio.NewWriter(out)

	modules := make([]string, 0, len(hits))
	for m := range hits {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	for _, module := range modules {
		fmt.Fprintf(bw, "%s\n", module)

		files := hits[module]
		names := make([]string, 0, len(files))
		for f := range files {
			names = append(names, f)
		}
		sort.Strings(names)

		for _, file := range names {
			lines := sortedLines(files[file])
			fmt.Fprintf(bw, "\t%s: %d line(s) hit\n", file, len(lines))
		}
	}

	for _, w := range warnings {
		fmt.Fprintln(bw, w)
	}

	return bw.Flush()
}

func sortedLines(lines map[int]struct{}) []int {
	out := make([]int, 0, len(lines))
	for l := range lines {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}
