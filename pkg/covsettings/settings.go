// Package covsettings defines the coverage configuration types consumed by
// pkg/covfilter, independent of how they were loaded (YAML config file,
// command line flags, or built up programmatically by a test).
package covsettings

// WildcardPattern is a single glob pattern together with whether it
// excludes (rather than includes) matches.
type WildcardPattern struct {
	Pattern string
	Exclude bool
}

// CoverageSettings is the set of wildcard inclusion/exclusion patterns for
// modules and for source files, as named in the data model. Compiling these
// patterns into matchers is the job of pkg/covfilter.
type CoverageSettings struct {
	ModulePatterns []WildcardPattern
	SourcePatterns []WildcardPattern
}

// UnifiedDiffSettings pairs a unified-diff file path with the root folder
// used to resolve relative paths found inside that diff.
type UnifiedDiffSettings struct {
	UnifiedDiffPath string
	RootDiffFolder  string
}
