package debugloop

import (
	"errors"
	"testing"
)

// fakeEventSource replays a scripted sequence of events and records the
// directives Debug resumes them with, so the portable dispatch/policy logic
// in debugger.go can be exercised without a real Windows debuggee.
type fakeEventSource struct {
	events []event
	pos    int

	continued []struct {
		pid, tid  int
		directive ContinueDirective
	}
	closed []Handle

	dumpPath string
	dumpErr  error
	dumps    int
}

func (f *fakeEventSource) spawn(startInfo StartInfo, coverChildren bool) error { return nil }

func (f *fakeEventSource) waitForDebugEvent() (event, error) {
	if f.pos >= len(f.events) {
		return event{}, errors.New("fakeEventSource: script exhausted")
	}
	ev := f.events[f.pos]
	f.pos++
	return ev, nil
}

func (f *fakeEventSource) continueDebugEvent(pid, tid int, directive ContinueDirective) error {
	f.continued = append(f.continued, struct {
		pid, tid  int
		directive ContinueDirective
	}{pid, tid, directive})
	return nil
}

func (f *fakeEventSource) closeHandle(h Handle) error {
	f.closed = append(f.closed, h)
	return nil
}

func (f *fakeEventSource) captureCrashDump(dumpDir string, pid, tid int, exc ExceptionInfo, hProcess, hThread Handle) (string, error) {
	f.dumps++
	return f.dumpPath, f.dumpErr
}

// fakeHandler scripts OnException's return values and records every call.
type fakeHandler struct {
	exceptionTypes []ExceptionType
	exceptionCalls int

	createProcesses []CreateProcessInfo
	exitProcesses   []ExitProcessInfo
	loadDlls        []LoadDllInfo
	unloadDlls      []UnloadDllInfo
}

func (f *fakeHandler) OnCreateProcess(info CreateProcessInfo) {
	f.createProcesses = append(f.createProcesses, info)
}

func (f *fakeHandler) OnExitProcess(hProcess, hThread Handle, info ExitProcessInfo) {
	f.exitProcesses = append(f.exitProcesses, info)
}

func (f *fakeHandler) OnLoadDll(hProcess, hThread Handle, info LoadDllInfo) {
	f.loadDlls = append(f.loadDlls, info)
}

func (f *fakeHandler) OnUnloadDll(hProcess, hThread Handle, info UnloadDllInfo) {
	f.unloadDlls = append(f.unloadDlls, info)
}

func (f *fakeHandler) OnException(hProcess, hThread Handle, info ExceptionInfo) ExceptionType {
	t := f.exceptionTypes[f.exceptionCalls]
	f.exceptionCalls++
	return t
}

func createProcessEvent(pid, tid int, hProcess, hThread Handle) event {
	return event{
		kind:      eventCreateProcess,
		processID: pid,
		threadID:  tid,
		createProcess: &CreateProcessInfo{
			Process:    hProcess,
			Thread:     hThread,
			FileHandle: InvalidHandle,
		},
	}
}

func exitProcessEvent(pid, tid, code int) event {
	return event{
		kind:        eventExitProcess,
		processID:   pid,
		threadID:    tid,
		exitProcess: &ExitProcessInfo{ExitCode: code},
	}
}

func exceptionEvent(pid, tid int, code uint32, firstChance bool) event {
	return event{
		kind:      eventException,
		processID: pid,
		threadID:  tid,
		exception: &ExceptionInfo{Code: code, FirstChance: firstChance},
	}
}

// Root process exits before a still-running child; Debug must keep pumping
// events (and only report the root's own exit code) until every process in
// the table has exited.
func TestDebugLatchesRootExitCodeAndDrainsDescendants(t *testing.T) {
	src := &fakeEventSource{
		events: []event{
			createProcessEvent(1, 100, Handle(1), Handle(100)),
			createProcessEvent(2, 200, Handle(2), Handle(200)),
			exitProcessEvent(1, 100, 42),
			exitProcessEvent(2, 200, 7),
		},
	}
	d := &Debugger{opts: Options{}, src: src}
	handler := &fakeHandler{}

	code, err := d.Debug(StartInfo{}, handler)
	if err != nil {
		t.Fatalf("Debug returned error: %v", err)
	}
	if code != 42 {
		t.Fatalf("exit code = %d, want 42 (root's own code, not the last exit seen)", code)
	}
	if len(d.processes) != 0 {
		t.Fatalf("process table not drained: %v", d.processes)
	}
	if len(handler.exitProcesses) != 2 {
		t.Fatalf("expected both exits delivered to handler, got %d", len(handler.exitProcesses))
	}
}

func TestOnCreateProcessRejectsDuplicatePID(t *testing.T) {
	src := &fakeEventSource{
		events: []event{
			createProcessEvent(1, 100, Handle(1), Handle(100)),
			createProcessEvent(1, 101, Handle(1), Handle(101)),
		},
	}
	d := &Debugger{opts: Options{}, src: src}
	_, err := d.Debug(StartInfo{}, &fakeHandler{})

	var inv InvariantViolated
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvariantViolated, got %v", err)
	}
}

func TestHandleNotCreationalEventRejectsUnknownProcess(t *testing.T) {
	src := &fakeEventSource{
		events: []event{
			exitProcessEvent(99, 1, 0),
		},
	}
	d := &Debugger{opts: Options{}, src: src}
	_, err := d.Debug(StartInfo{}, &fakeHandler{})

	var inv InvariantViolated
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvariantViolated, got %v", err)
	}
}

func TestOnExceptionBreakPointConsumesWithoutDump(t *testing.T) {
	src := &fakeEventSource{
		events: []event{
			createProcessEvent(1, 100, Handle(1), Handle(100)),
			exceptionEvent(1, 100, 0x80000003, false),
			exitProcessEvent(1, 100, 0),
		},
	}
	d := &Debugger{opts: Options{DumpOnCrash: true, DumpDirectory: "dumps"}, src: src}
	handler := &fakeHandler{exceptionTypes: []ExceptionType{BreakPoint}}

	if _, err := d.Debug(StartInfo{}, handler); err != nil {
		t.Fatalf("Debug returned error: %v", err)
	}
	if src.dumps != 0 {
		t.Fatalf("BreakPoint must never capture a dump, got %d", src.dumps)
	}
	if src.continued[1].directive != ContinueAndConsume {
		t.Fatalf("BreakPoint must consume the exception")
	}
}

func TestOnExceptionInvalidBreakPointDumpsRegardlessOfFirstChance(t *testing.T) {
	for _, firstChance := range []bool{true, false} {
		src := &fakeEventSource{
			events: []event{
				createProcessEvent(1, 100, Handle(1), Handle(100)),
				exceptionEvent(1, 100, 0x80000003, firstChance),
				exitProcessEvent(1, 100, 0),
			},
		}
		d := &Debugger{opts: Options{DumpOnCrash: true, DumpDirectory: "dumps", StopOnAssert: false}, src: src}
		handler := &fakeHandler{exceptionTypes: []ExceptionType{InvalidBreakPoint}}

		if _, err := d.Debug(StartInfo{}, handler); err != nil {
			t.Fatalf("Debug returned error: %v", err)
		}
		if src.dumps != 1 {
			t.Fatalf("firstChance=%v: expected a dump capture, got %d", firstChance, src.dumps)
		}
		if src.continued[1].directive != ContinueAndConsume {
			t.Fatalf("firstChance=%v: StopOnAssert=false must consume", firstChance)
		}
	}
}

func TestOnExceptionInvalidBreakPointStopOnAssertPassesThrough(t *testing.T) {
	src := &fakeEventSource{
		events: []event{
			createProcessEvent(1, 100, Handle(1), Handle(100)),
			exceptionEvent(1, 100, 0x80000003, true),
			exitProcessEvent(1, 100, 0),
		},
	}
	d := &Debugger{opts: Options{DumpOnCrash: true, DumpDirectory: "dumps", StopOnAssert: true}, src: src}
	handler := &fakeHandler{exceptionTypes: []ExceptionType{InvalidBreakPoint}}

	if _, err := d.Debug(StartInfo{}, handler); err != nil {
		t.Fatalf("Debug returned error: %v", err)
	}
	if src.continued[1].directive != ContinueUnhandled {
		t.Fatalf("StopOnAssert=true must let the target handle the exception")
	}
}

func TestOnExceptionNotHandledAlwaysPassesThrough(t *testing.T) {
	src := &fakeEventSource{
		events: []event{
			createProcessEvent(1, 100, Handle(1), Handle(100)),
			exceptionEvent(1, 100, 0xC0000005, false),
			exitProcessEvent(1, 100, 0),
		},
	}
	d := &Debugger{opts: Options{DumpOnCrash: true, DumpDirectory: "dumps"}, src: src}
	handler := &fakeHandler{exceptionTypes: []ExceptionType{NotHandled}}

	if _, err := d.Debug(StartInfo{}, handler); err != nil {
		t.Fatalf("Debug returned error: %v", err)
	}
	if src.dumps != 1 {
		t.Fatalf("NotHandled must capture a dump, got %d", src.dumps)
	}
	if src.continued[1].directive != ContinueUnhandled {
		t.Fatalf("NotHandled must never be consumed")
	}
}

func TestOnExceptionCppErrorHonorsContinueAfterCppException(t *testing.T) {
	for _, cont := range []bool{true, false} {
		src := &fakeEventSource{
			events: []event{
				createProcessEvent(1, 100, Handle(1), Handle(100)),
				exceptionEvent(1, 100, 0xE06D7363, false),
				exitProcessEvent(1, 100, 0),
			},
		}
		d := &Debugger{opts: Options{DumpOnCrash: true, DumpDirectory: "dumps", ContinueAfterCppException: cont}, src: src}
		handler := &fakeHandler{exceptionTypes: []ExceptionType{CppError}}

		if _, err := d.Debug(StartInfo{}, handler); err != nil {
			t.Fatalf("continueAfter=%v: Debug returned error: %v", cont, err)
		}
		want := ContinueUnhandled
		if cont {
			want = ContinueAndConsume
		}
		if src.continued[1].directive != want {
			t.Fatalf("continueAfter=%v: directive = %v, want %v", cont, src.continued[1].directive, want)
		}
	}
}

func TestHandlerPanicIsConvertedToHandlerRaised(t *testing.T) {
	src := &fakeEventSource{
		events: []event{
			createProcessEvent(1, 100, Handle(1), Handle(100)),
		},
	}
	d := &Debugger{opts: Options{}, src: src}
	handler := &panicHandler{}

	_, err := d.Debug(StartInfo{}, handler)
	var raised HandlerRaised
	if !errors.As(err, &raised) {
		t.Fatalf("expected HandlerRaised, got %v", err)
	}
}

type panicHandler struct{}

func (panicHandler) OnCreateProcess(info CreateProcessInfo) { panic("boom") }
func (panicHandler) OnExitProcess(hProcess, hThread Handle, info ExitProcessInfo) {}
func (panicHandler) OnLoadDll(hProcess, hThread Handle, info LoadDllInfo)         {}
func (panicHandler) OnUnloadDll(hProcess, hThread Handle, info UnloadDllInfo)     {}
func (panicHandler) OnException(hProcess, hThread Handle, info ExceptionInfo) ExceptionType {
	return BreakPoint
}
