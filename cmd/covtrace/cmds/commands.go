// Package cmds builds the covtrace command tree, the way cmd/dlv/cmds
// builds delve's.
package cmds

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KevinAo22/OpenCppCoverage/pkg/config"
	"github.com/KevinAo22/OpenCppCoverage/pkg/covcollect"
	"github.com/KevinAo22/OpenCppCoverage/pkg/covfilter"
	"github.com/KevinAo22/OpenCppCoverage/pkg/covsettings"
	"github.com/KevinAo22/OpenCppCoverage/pkg/debugloop"
	"github.com/KevinAo22/OpenCppCoverage/pkg/logflags"
	"github.com/KevinAo22/OpenCppCoverage/pkg/report"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should
	// produce debug output.
	logOutput string

	modulePatterns        []string
	excludeModulePatterns []string
	sourcePatterns        []string
	excludeSourcePatterns []string

	unifiedDiffPaths []string
	unifiedDiffRoot  string

	coverChildren             bool
	continueAfterCppException bool
	stopOnAssert              bool
	dumpOnCrash               bool
	dumpDirectory             string

	maxUnmatchedPaths int
	outputPath        string
	workingDir        string

	conf *config.Config
)

const covtraceLongDesc = `covtrace runs a native Windows process under a debugger and reports
line-level code coverage.

Pass the flags of the program you want to trace after --, for example:

  covtrace --module=*myproject* -- .\myproject.exe --some-flag`

// New returns an initialized command tree.
func New() *cobra.Command {
	conf = config.LoadConfig()

	rootCommand := &cobra.Command{
		Use:   "covtrace <path/to/binary> [-- args...]",
		Short: "Native code coverage collector.",
		Long:  covtraceLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTrace,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debug logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output (debugger, filter, udiff, minidump).")

	rootCommand.Flags().StringArrayVar(&modulePatterns, "module", nil, "Wildcard pattern selecting modules to instrument. Repeatable.")
	rootCommand.Flags().StringArrayVar(&excludeModulePatterns, "exclude-module", nil, "Wildcard pattern excluding modules from instrumentation. Repeatable.")
	rootCommand.Flags().StringArrayVar(&sourcePatterns, "source", nil, "Wildcard pattern selecting source files to report. Repeatable.")
	rootCommand.Flags().StringArrayVar(&excludeSourcePatterns, "exclude-source", nil, "Wildcard pattern excluding source files from the report. Repeatable.")

	rootCommand.Flags().StringArrayVar(&unifiedDiffPaths, "input-diff", nil, "Unified diff file scoping coverage to added lines. Repeatable.")
	rootCommand.Flags().StringVar(&unifiedDiffRoot, "diff-root", "", "Root folder used to resolve relative paths inside --input-diff files.")

	rootCommand.Flags().BoolVar(&coverChildren, "cover-children", conf.CoverChildren, "Also instrument child processes.")
	rootCommand.Flags().BoolVar(&continueAfterCppException, "continue-after-cpp-exception", conf.ContinueAfterCppException, "Continue execution after an uncaught C++ exception.")
	rootCommand.Flags().BoolVar(&stopOnAssert, "stop-on-assert", conf.StopOnAssert, "Let the target's own handler see assertion-failure breakpoints instead of swallowing them.")
	rootCommand.Flags().BoolVar(&dumpOnCrash, "dump-on-crash", conf.DumpOnCrash, "Write a minidump file when the target crashes.")
	rootCommand.Flags().StringVar(&dumpDirectory, "dump-directory", conf.DumpDirectory, "Directory minidumps are written to.")

	maxUnmatched := conf.MaxUnmatchedPathsForWarning
	if maxUnmatched == 0 {
		maxUnmatched = 10
	}
	rootCommand.Flags().IntVar(&maxUnmatchedPaths, "max-unmatched-paths", maxUnmatched, "Maximum number of unmatched diff paths to list in the warning message.")

	rootCommand.Flags().StringVarP(&outputPath, "output", "o", "", "Write the text report to this file instead of stdout.")
	rootCommand.Flags().StringVar(&workingDir, "wd", "", "Working directory for the traced program.")

	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Print version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("covtrace development build")
		},
	}
	rootCommand.AddCommand(versionCommand)

	return rootCommand
}

func runTrace(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(log, logOutput); err != nil {
		return err
	}

	settings := covsettings.CoverageSettings{
		ModulePatterns: mergePatterns(conf.ModuleFilters, modulePatterns, excludeModulePatterns),
		SourcePatterns: mergePatterns(conf.SourceFilters, sourcePatterns, excludeSourcePatterns),
	}

	diffSettings := make([]covsettings.UnifiedDiffSettings, 0, len(conf.UnifiedDiffs)+len(unifiedDiffPaths))
	for _, d := range conf.UnifiedDiffs {
		diffSettings = append(diffSettings, covsettings.UnifiedDiffSettings{UnifiedDiffPath: d.DiffPath, RootDiffFolder: d.RootDir})
	}
	for _, p := range unifiedDiffPaths {
		diffSettings = append(diffSettings, covsettings.UnifiedDiffSettings{UnifiedDiffPath: p, RootDiffFolder: unifiedDiffRoot})
	}

	filterManager, err := covfilter.NewManager(settings, diffSettings)
	if err != nil {
		return fmt.Errorf("building coverage filters: %w", err)
	}

	collector := covcollect.NewCollector(filterManager, nil)

	opts := debugloop.Options{
		CoverChildren:             coverChildren,
		ContinueAfterCppException: continueAfterCppException,
		StopOnAssert:              stopOnAssert,
		DumpOnCrash:               dumpOnCrash,
		DumpDirectory:             dumpDirectory,
	}
	startInfo := debugloop.StartInfo{
		Path:       args[0],
		Args:       args[1:],
		WorkingDir: workingDir,
	}

	exitCode, err := debugloop.New(opts).Debug(startInfo, collector)
	if err != nil {
		return fmt.Errorf("running debug loop: %w", err)
	}

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("opening output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	warnings := filterManager.ComputeWarningMessageLines(maxUnmatchedPaths)
	if err := report.WriteText(out, collector.Hits, warnings); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	// The traced program's own exit code is not covtrace's failure: it is
	// reported, not propagated as a command error.
	logflags.DebuggerLogger().Debugf("traced program exited with code %d", exitCode)
	return nil
}

func mergePatterns(configured []config.WildcardRule, include, exclude []string) []covsettings.WildcardPattern {
	patterns := make([]covsettings.WildcardPattern, 0, len(configured)+len(include)+len(exclude))
	for _, c := range configured {
		patterns = append(patterns, covsettings.WildcardPattern{Pattern: c.Pattern, Exclude: c.Exclude})
	}
	for _, p := range include {
		patterns = append(patterns, covsettings.WildcardPattern{Pattern: p})
	}
	for _, p := range exclude {
		patterns = append(patterns, covsettings.WildcardPattern{Pattern: p, Exclude: true})
	}
	return patterns
}
