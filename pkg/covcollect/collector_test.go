package covcollect

import (
	"testing"

	"github.com/KevinAo22/OpenCppCoverage/pkg/covfilter"
	"github.com/KevinAo22/OpenCppCoverage/pkg/covsettings"
	"github.com/KevinAo22/OpenCppCoverage/pkg/debugloop"
)

type fakeResolver struct {
	file string
	line int
	ok   bool
}

func (f fakeResolver) Resolve(module string, address uint64) (string, int, bool) {
	return f.file, f.line, f.ok
}

func TestRecordHitSkipsUnselectedModule(t *testing.T) {
	mgr, err := covfilter.NewManager(covsettings.CoverageSettings{
		ModulePatterns: []covsettings.WildcardPattern{{Pattern: "*myproject*"}},
	}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	c := NewCollector(mgr, fakeResolver{file: "foo.cpp", line: 1, ok: true})
	c.OnLoadDll(0, 0, debugloop.LoadDllInfo{BaseOfDll: 0x1000, ImageName: "other.dll"})

	c.RecordHit("other.dll", 0x1010, nil)

	if len(c.Hits) != 0 {
		t.Fatalf("expected no hits recorded for an unselected module, got %v", c.Hits)
	}
}

func TestRecordHitAccumulatesForSelectedModule(t *testing.T) {
	mgr, err := covfilter.NewManager(covsettings.CoverageSettings{}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	c := NewCollector(mgr, fakeResolver{file: "foo.cpp", line: 42, ok: true})
	c.OnCreateProcess(debugloop.CreateProcessInfo{BaseOfImage: 0x400000, ImageName: "myproject.exe"})

	lines := covfilter.NewExecutableLines([]int{42})
	c.RecordHit("myproject.exe", 0x401000, lines)

	if _, ok := c.Hits["myproject.exe"]["foo.cpp"][42]; !ok {
		t.Fatalf("expected hit recorded, got %v", c.Hits)
	}
}

func TestRecordHitSkipsWhenResolverCannotResolve(t *testing.T) {
	mgr, err := covfilter.NewManager(covsettings.CoverageSettings{}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	c := NewCollector(mgr, nil)
	c.OnCreateProcess(debugloop.CreateProcessInfo{BaseOfImage: 0x400000, ImageName: "myproject.exe"})

	c.RecordHit("myproject.exe", 0x401000, nil)

	if len(c.Hits) != 0 {
		t.Fatalf("expected no hits without a real resolver, got %v", c.Hits)
	}
}

func TestOnExceptionClassifiesKnownCodes(t *testing.T) {
	c := NewCollector(nil, nil)

	tests := []struct {
		code uint32
		want debugloop.ExceptionType
	}{
		{0x80000003, debugloop.InvalidBreakPoint},
		{0xC0000005, debugloop.ExceptionError},
		{0xE06D7363, debugloop.CppError},
		{0x12345678, debugloop.NotHandled},
	}
	for _, tt := range tests {
		got := c.OnException(0, 0, debugloop.ExceptionInfo{Code: tt.code})
		if got != tt.want {
			t.Errorf("OnException(code=%#x) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestOnUnloadDllForgetsModule(t *testing.T) {
	mgr, err := covfilter.NewManager(covsettings.CoverageSettings{}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	c := NewCollector(mgr, fakeResolver{file: "foo.cpp", line: 1, ok: true})
	c.OnLoadDll(0, 0, debugloop.LoadDllInfo{BaseOfDll: 0x1000, ImageName: "a.dll"})
	c.OnUnloadDll(0, 0, debugloop.UnloadDllInfo{BaseOfDll: 0x1000})

	c.RecordHit("a.dll", 0x1010, nil)

	if len(c.Hits) != 0 {
		t.Fatalf("expected no hits after module unload, got %v", c.Hits)
	}
}
