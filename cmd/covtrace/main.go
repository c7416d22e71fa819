// Command covtrace runs a native Windows process under the debug loop and
// reports line-level code coverage, scoped by wildcard and unified-diff
// filters.
package main

import (
	"fmt"
	"os"

	"github.com/KevinAo22/OpenCppCoverage/cmd/covtrace/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
