// Package covfilter implements the Coverage Filter Manager: a compositional
// predicate deciding module, source-file, and line eligibility from a
// wildcard rule set plus an optional collection of unified-diff filters.
package covfilter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KevinAo22/OpenCppCoverage/pkg/covsettings"
	"github.com/KevinAo22/OpenCppCoverage/pkg/logflags"
)

// Manager owns one wildcard filter (built from CoverageSettings) and an
// ordered collection of unified-diff filters. It is immutable after
// construction except for the unmatched-path tracking each diff filter
// keeps internally.
type Manager struct {
	wildcard *wildcardFilter
	diffs    []*unifiedDiffFilter
}

// NewManager builds a Manager from CoverageSettings and, for every entry in
// diffSettings, reads and parses the corresponding unified-diff file. The
// manager owns every diff filter it creates exclusively; there is no shared
// ownership anywhere in this package.
func NewManager(settings covsettings.CoverageSettings, diffSettings []covsettings.UnifiedDiffSettings) (*Manager, error) {
	diffs := make([]*unifiedDiffFilter, 0, len(diffSettings))
	for _, ds := range diffSettings {
		f, err := newUnifiedDiffFilter(ds)
		if err != nil {
			return nil, fmt.Errorf("loading unified diff %q: %w", ds.UnifiedDiffPath, err)
		}
		diffs = append(diffs, f)
	}
	return &Manager{
		wildcard: newWildcardFilter(settings),
		diffs:    diffs,
	}, nil
}

// IsModuleSelected consults only the wildcard filter. Unified-diff filters
// are file-granular and by design never restrict modules.
func (m *Manager) IsModuleSelected(moduleFilename string) bool {
	return m.wildcard.IsModuleSelected(moduleFilename)
}

// IsSourceFileSelected short-circuits false if the wildcard filter rejects
// sourceFilename. Otherwise it returns true if there are no diff filters,
// or true iff any diff filter accepts the file (the ANY_OR_TRUE_IF_EMPTY
// rule). Mutating: matched diff filters record sourceFilename as seen.
func (m *Manager) IsSourceFileSelected(sourceFilename string) bool {
	if !m.wildcard.IsSourceFileSelected(sourceFilename) {
		return false
	}
	return anyOrTrueIfEmpty(m.diffs, func(f *unifiedDiffFilter) bool {
		return f.IsSourceFileSelected(sourceFilename)
	})
}

// IsLineSelected decides whether lineNumber (as reported by debug info) for
// sourceFilename is eligible for coverage measurement, given the complete
// set of executable line numbers known for that file.
//
// If no diff filters are configured, wildcard filtering alone governs and
// this always returns true. Otherwise lineNumber is first resolved to the
// nearest executable line at or below it; a line with no executable
// predecessor is rejected outright.
func (m *Manager) IsLineSelected(sourceFilename string, lineNumber int, executableLines ExecutableLines) bool {
	if len(m.diffs) == 0 {
		return true
	}

	resolved, ok := nearestExecutableLineAtOrBelow(lineNumber, executableLines)
	if !ok {
		return false
	}

	return anyOrTrueIfEmpty(m.diffs, func(f *unifiedDiffFilter) bool {
		return f.IsLineSelected(sourceFilename, resolved)
	})
}

// nearestExecutableLineAtOrBelow implements the tri-value nearest-line
// query: exact match, strictly-previous element found, or no predecessor
// (ok == false).
func nearestExecutableLineAtOrBelow(lineNumber int, executableLines ExecutableLines) (int, bool) {
	if _, exact := executableLines[lineNumber]; exact {
		return lineNumber, true
	}

	best := 0
	found := false
	for line := range executableLines {
		if line < lineNumber && (!found || line > best) {
			best = line
			found = true
		}
	}
	return best, found
}

// anyOrTrueIfEmpty implements the "ANY_OR_TRUE_IF_EMPTY" composition rule:
// an empty filter set means no restriction, a non-empty set means the union
// of what any one filter accepts.
func anyOrTrueIfEmpty(diffs []*unifiedDiffFilter, fn func(*unifiedDiffFilter) bool) bool {
	if len(diffs) == 0 {
		return true
	}
	for _, f := range diffs {
		if fn(f) {
			return true
		}
	}
	return false
}

// ComputeWarningMessageLines collects, from every owned diff filter, the
// paths in the diff that never matched any source file encountered during
// filtering, and formats the fixed warning message. Returns nil if there
// are no unmatched paths.
func (m *Manager) ComputeWarningMessageLines(maxUnmatchPaths int) []string {
	unmatched := map[string]struct{}{}
	for _, f := range m.diffs {
		for _, p := range f.GetUnmatchedPaths() {
			unmatched[p] = struct{}{}
		}
	}
	if len(unmatched) == 0 {
		return nil
	}

	paths := make([]string, 0, len(unmatched))
	for p := range unmatched {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	logflags.FilterLogger().Debugf("%d unmatched diff path(s)", len(paths))

	separator := strings.Repeat("-", 80)
	lines := []string{
		separator,
		fmt.Sprintf("You have %d path(s) inside unified diff file(s) that were ignored", len(paths)),
		"because they did not match any path from pdb files.",
		"To see all files use --verbose",
	}

	limit := len(paths)
	truncated := false
	if limit > maxUnmatchPaths {
		limit = maxUnmatchPaths
		truncated = true
	}
	for _, p := range paths[:limit] {
		lines = append(lines, "\t- "+p)
	}
	if truncated {
		lines = append(lines, "\t...")
	}
	return lines
}
