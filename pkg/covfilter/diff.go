package covfilter

import (
	"path/filepath"
	"strings"

	"github.com/KevinAo22/OpenCppCoverage/pkg/covsettings"
	"github.com/KevinAo22/OpenCppCoverage/pkg/udiff"
)

// unifiedDiffFilter holds, per resolved source-file path, the set of line
// numbers covered by a diff hunk, plus the root folder used to resolve
// relative diff paths. It tracks which of its own paths were ever matched
// against a source file so the manager can later report unmatched ones.
//
// IsSourceFileSelected and IsLineSelected mutate matchedDiffPaths, which is
// why this type is never safe to share between goroutines.
type unifiedDiffFilter struct {
	rootFolder string

	// resolvedLines maps a cleaned, case-folded absolute path to the set of
	// line numbers touched by the diff.
	resolvedLines map[string]map[int]struct{}

	// originalPaths maps the same key back to the path exactly as it
	// appeared in the diff, for warning-message reporting.
	originalPaths map[string]string

	matchedDiffPaths map[string]bool
}

func newUnifiedDiffFilter(settings covsettings.UnifiedDiffSettings) (*unifiedDiffFilter, error) {
	fileLines, err := udiff.ParseFile(settings.UnifiedDiffPath)
	if err != nil {
		return nil, err
	}
	return newUnifiedDiffFilterFromLines(fileLines, settings.RootDiffFolder), nil
}

// newUnifiedDiffFilterFromLines builds a filter directly from already
// parsed per-file line sets, letting tests exercise the filter without a
// diff file on disk.
func newUnifiedDiffFilterFromLines(fileLines udiff.FileLines, rootFolder string) *unifiedDiffFilter {
	f := &unifiedDiffFilter{
		rootFolder:       rootFolder,
		resolvedLines:    map[string]map[int]struct{}{},
		originalPaths:    map[string]string{},
		matchedDiffPaths: map[string]bool{},
	}
	for path, lines := range fileLines {
		key := f.resolveKey(path)
		set := make(map[int]struct{}, len(lines))
		for _, l := range lines {
			set[l] = struct{}{}
		}
		f.resolvedLines[key] = set
		f.originalPaths[key] = path
		f.matchedDiffPaths[key] = false
	}
	return f
}

func (f *unifiedDiffFilter) resolveKey(path string) string {
	// Diff and debug-info paths may use either separator; normalizing to
	// '/' (and recognizing drive-letter paths as absolute) keeps keys equal
	// whichever platform the filter runs on.
	resolved := strings.ReplaceAll(path, `\`, "/")
	isAbs := filepath.IsAbs(resolved) ||
		(len(resolved) >= 3 && resolved[1] == ':' && resolved[2] == '/')
	if !isAbs && f.rootFolder != "" {
		resolved = strings.ReplaceAll(f.rootFolder, `\`, "/") + "/" + resolved
	}
	return strings.ToLower(filepath.Clean(resolved))
}

// IsSourceFileSelected reports whether filename appears in this diff.
// Mutating: marks the corresponding diff entry as matched.
func (f *unifiedDiffFilter) IsSourceFileSelected(filename string) bool {
	key := f.resolveKey(filename)
	if _, ok := f.resolvedLines[key]; !ok {
		return false
	}
	f.matchedDiffPaths[key] = true
	return true
}

// IsLineSelected reports whether lineNumber (already resolved to the
// nearest executable line by the caller) is one of the lines this diff
// touched for filename. Mutating for the same reason as
// IsSourceFileSelected.
func (f *unifiedDiffFilter) IsLineSelected(filename string, lineNumber int) bool {
	key := f.resolveKey(filename)
	lines, ok := f.resolvedLines[key]
	if !ok {
		return false
	}
	f.matchedDiffPaths[key] = true
	_, selected := lines[lineNumber]
	return selected
}

// GetUnmatchedPaths returns the diff paths that were parsed but never
// matched against a source file encountered during filtering.
func (f *unifiedDiffFilter) GetUnmatchedPaths() []string {
	var unmatched []string
	for key, matched := range f.matchedDiffPaths {
		if !matched {
			unmatched = append(unmatched, f.originalPaths[key])
		}
	}
	return unmatched
}
