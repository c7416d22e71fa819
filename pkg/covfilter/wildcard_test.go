package covfilter

import (
	"testing"

	"github.com/KevinAo22/OpenCppCoverage/pkg/covsettings"
)

func TestWildcardFilterNoPatternsSelectsEverything(t *testing.T) {
	w := newWildcardFilter(covsettings.CoverageSettings{})
	if !w.IsModuleSelected(`C:\prog\main.exe`) {
		t.Fatal("expected selection with no patterns configured")
	}
}

func TestWildcardFilterIncludeOnly(t *testing.T) {
	w := newWildcardFilter(covsettings.CoverageSettings{
		ModulePatterns: []covsettings.WildcardPattern{
			{Pattern: `*myproject*`},
		},
	})
	if !w.IsModuleSelected(`C:\build\myproject.dll`) {
		t.Fatal("expected match against include pattern")
	}
	if w.IsModuleSelected(`C:\build\other.dll`) {
		t.Fatal("expected no match outside include pattern")
	}
}

func TestWildcardFilterExcludeWinsOverInclude(t *testing.T) {
	w := newWildcardFilter(covsettings.CoverageSettings{
		SourcePatterns: []covsettings.WildcardPattern{
			{Pattern: `*.cpp`},
			{Pattern: `*test*`, Exclude: true},
		},
	})
	if !w.IsSourceFileSelected(`foo.cpp`) {
		t.Fatal("expected foo.cpp to be selected")
	}
	if w.IsSourceFileSelected(`footest.cpp`) {
		t.Fatal("expected exclude pattern to win regardless of include match")
	}
}

func TestWildcardFilterUnparsablePatternIsIgnored(t *testing.T) {
	w := newWildcardFilter(covsettings.CoverageSettings{
		ModulePatterns: []covsettings.WildcardPattern{
			{Pattern: `[`},
		},
	})
	if !w.IsModuleSelected(`anything.dll`) {
		t.Fatal("an unparsable pattern must not restrict selection")
	}
}
