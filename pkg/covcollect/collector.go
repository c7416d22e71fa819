// Package covcollect implements the thin glue between the Debug Loop and the
// Coverage Filter Manager: a debugloop.Handler that gates which modules get
// instrumented and which executed lines get recorded, and accumulates the
// per-module, per-file hit sets the report emitter consumes.
package covcollect

import (
	"strings"

	"github.com/KevinAo22/OpenCppCoverage/pkg/covfilter"
	"github.com/KevinAo22/OpenCppCoverage/pkg/debugloop"
	"github.com/KevinAo22/OpenCppCoverage/pkg/logflags"
)

// FileHits is the per-module, per-file set of executed line numbers
// accumulated over one Debug Loop run.
type FileHits map[string]map[string]map[int]struct{}

func (h FileHits) record(module, file string, line int) {
	files, ok := h[module]
	if !ok {
		files = map[string]map[int]struct{}{}
		h[module] = files
	}
	lines, ok := files[file]
	if !ok {
		lines = map[int]struct{}{}
		files[file] = lines
	}
	lines[line] = struct{}{}
}

// LineResolver translates a hit instruction address into a source file and
// line number. Resolving addresses against PDB/DWARF debug info is out of
// scope here; the default resolver never resolves anything, so a Collector
// never records a hit until a real resolver is wired in.
type LineResolver interface {
	Resolve(module string, address uint64) (file string, line int, ok bool)
}

type noopResolver struct{}

func (noopResolver) Resolve(module string, address uint64) (string, int, bool) {
	return "", 0, false
}

type moduleInfo struct {
	name     string
	selected bool
}

// Collector is a concrete, minimal debugloop.Handler. It tracks loaded
// modules, consults Filter.IsModuleSelected before recording anything for a
// module, and accumulates Hits via RecordHit.
type Collector struct {
	Filter   *covfilter.Manager
	Resolver LineResolver

	modules map[uint64]moduleInfo
	Hits    FileHits
}

// NewCollector builds a Collector bound to filter. If resolver is nil, a
// no-op resolver is used.
func NewCollector(filter *covfilter.Manager, resolver LineResolver) *Collector {
	if resolver == nil {
		resolver = noopResolver{}
	}
	return &Collector{
		Filter:   filter,
		Resolver: resolver,
		modules:  map[uint64]moduleInfo{},
		Hits:     FileHits{},
	}
}

func (c *Collector) OnCreateProcess(info debugloop.CreateProcessInfo) {
	c.registerModule(info.BaseOfImage, info.ImageName)
}

func (c *Collector) OnExitProcess(hProcess, hThread debugloop.Handle, info debugloop.ExitProcessInfo) {
}

func (c *Collector) OnLoadDll(hProcess, hThread debugloop.Handle, info debugloop.LoadDllInfo) {
	c.registerModule(info.BaseOfDll, info.ImageName)
}

func (c *Collector) OnUnloadDll(hProcess, hThread debugloop.Handle, info debugloop.UnloadDllInfo) {
	delete(c.modules, info.BaseOfDll)
}

func (c *Collector) registerModule(base uint64, name string) {
	selected := c.Filter == nil || c.Filter.IsModuleSelected(name)
	c.modules[base] = moduleInfo{name: name, selected: selected}
	logflags.DebuggerLogger().Debugf("module %q selected=%v", name, selected)
}

// Win32 exception codes this Collector knows how to classify without any
// symbol information.
const (
	exceptionBreakpoint      = 0x80000003
	exceptionAccessViolation = 0xC0000005
	exceptionCppException    = 0xE06D7363
)

// OnException never installs real breakpoints of its own -- instruction
// pointer to source-line translation is out of scope -- so every breakpoint
// exception it is asked to classify is one the loop itself did not place.
func (c *Collector) OnException(hProcess, hThread debugloop.Handle, info debugloop.ExceptionInfo) debugloop.ExceptionType {
	switch info.Code {
	case exceptionBreakpoint:
		return debugloop.InvalidBreakPoint
	case exceptionAccessViolation:
		return debugloop.ExceptionError
	case exceptionCppException:
		return debugloop.CppError
	default:
		return debugloop.NotHandled
	}
}

// RecordHit is the entry point a real coverage probe (out of scope here)
// would call whenever module executes at address. It gates recording
// through Filter before adding to Hits.
func (c *Collector) RecordHit(module string, address uint64, executableLines covfilter.ExecutableLines) {
	mod, ok := c.findModule(module)
	if !ok || !mod.selected {
		return
	}

	file, line, ok := c.Resolver.Resolve(module, address)
	if !ok {
		return
	}

	if c.Filter != nil {
		if !c.Filter.IsSourceFileSelected(file) {
			return
		}
		if !c.Filter.IsLineSelected(file, line, executableLines) {
			return
		}
	}

	c.Hits.record(module, file, line)
}

func (c *Collector) findModule(name string) (moduleInfo, bool) {
	for _, m := range c.modules {
		if strings.EqualFold(m.name, name) {
			return m, true
		}
	}
	return moduleInfo{}, false
}
