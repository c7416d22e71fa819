package covfilter

import (
	"github.com/gobwas/glob"

	"github.com/KevinAo22/OpenCppCoverage/pkg/covsettings"
)

// compiledPattern is one wildcard pattern compiled to a matcher, together
// with whether a match excludes rather than includes.
type compiledPattern struct {
	matcher glob.Glob
	exclude bool
}

// wildcardFilter evaluates module and source-file paths against compiled
// include/exclude glob patterns. An empty pattern list for a given category
// means "no restriction" for that category.
type wildcardFilter struct {
	modulePatterns []compiledPattern
	sourcePatterns []compiledPattern
}

func compilePatterns(patterns []covsettings.WildcardPattern) []compiledPattern {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p.Pattern)
		if err != nil {
			// An unparsable pattern is dropped instead of aborting
			// collection, so it neither includes nor excludes anything;
			// the orchestrator is expected to validate patterns ahead of
			// time.
			continue
		}
		compiled = append(compiled, compiledPattern{matcher: g, exclude: p.Exclude})
	}
	return compiled
}

func newWildcardFilter(settings covsettings.CoverageSettings) *wildcardFilter {
	return &wildcardFilter{
		modulePatterns: compilePatterns(settings.ModulePatterns),
		sourcePatterns: compilePatterns(settings.SourcePatterns),
	}
}

// selected applies the standard include/exclude wildcard rule: a name is
// selected if it matches at least one include pattern (or there are no
// include patterns at all) and matches no exclude pattern.
func selected(name string, patterns []compiledPattern) bool {
	hasInclude := false
	included := false
	for _, p := range patterns {
		if p.exclude {
			if p.matcher.Match(name) {
				return false
			}
			continue
		}
		hasInclude = true
		if p.matcher.Match(name) {
			included = true
		}
	}
	if !hasInclude {
		return true
	}
	return included
}

// IsModuleSelected reports whether moduleFilename passes the wildcard
// module filters.
func (w *wildcardFilter) IsModuleSelected(moduleFilename string) bool {
	return selected(moduleFilename, w.modulePatterns)
}

// IsSourceFileSelected reports whether sourceFilename passes the wildcard
// source-file filters.
func (w *wildcardFilter) IsSourceFileSelected(sourceFilename string) bool {
	return selected(sourceFilename, w.sourcePatterns)
}
