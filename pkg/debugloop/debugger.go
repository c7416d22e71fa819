package debugloop

import (
	"github.com/KevinAo22/OpenCppCoverage/pkg/logflags"
)

// Debugger owns a target process tree, pumps its debug events, and applies
// the exception-handling policy configured by Options.
type Debugger struct {
	opts Options
	src  eventSource

	processes map[int]Handle
	threads   map[int]Handle

	rootProcessID  int
	rootProcessSet bool
}

// New constructs a Debugger for the current platform.
func New(opts Options) *Debugger {
	return &Debugger{opts: opts, src: newPlatformEventSource()}
}

// Debug spawns the target described by startInfo, passing coverChildren
// through as the OS debug flag ("entire tree" vs "only this process"), and
// runs the event loop until the root process has exited and the process
// handle table has drained. It returns the first exit code reported for the
// root process: normally the code from its EXIT_PROCESS event, but the
// transient exception code instead if a swallowed InvalidBreakPoint or
// CppError exception in the root process came first.
//
// Any panic raised by a Handler callback is recovered here (as
// HandlerRaised) after the scoped release of the event's embedded handle,
// which always runs first via defer during the panic's unwind.
func (d *Debugger) Debug(startInfo StartInfo, handler Handler) (exitCode int, err error) {
	defer func() {
		if r := recover(); r != nil {
			exitCode = 0
			err = HandlerRaised{Value: r}
		}
	}()

	d.processes = map[int]Handle{}
	d.threads = map[int]Handle{}
	d.rootProcessID = 0
	d.rootProcessSet = false

	if err := d.src.spawn(startInfo, d.opts.CoverChildren); err != nil {
		return 0, err
	}

	var rootExitCode *int
	logger := logflags.DebuggerLogger()

	for rootExitCode == nil || len(d.processes) > 0 {
		ev, err := d.src.waitForDebugEvent()
		if err != nil {
			return 0, OsCallFailed{Which: "WaitForDebugEvent", Err: err}
		}

		status, err := d.dispatch(ev, handler)
		if err != nil {
			return 0, err
		}

		if status.exitCode != nil && d.rootProcessSet && ev.processID == d.rootProcessID && rootExitCode == nil {
			rootExitCode = status.exitCode
		}

		directive := ContinueAndConsume
		if status.continueStatus != nil {
			directive = *status.continueStatus
		}
		if err := d.src.continueDebugEvent(ev.processID, ev.threadID, directive); err != nil {
			return 0, OsCallFailed{Which: "ContinueDebugEvent", Err: err}
		}
	}

	logger.Debugf("root process %d exited with code %d", d.rootProcessID, *rootExitCode)
	return *rootExitCode, nil
}

func (d *Debugger) dispatch(ev event, handler Handler) (processStatus, error) {
	switch ev.kind {
	case eventCreateProcess:
		return processStatus{}, d.onCreateProcess(ev, handler)
	case eventCreateThread:
		return processStatus{}, d.onCreateThread(ev.threadID, *ev.createThread)
	default:
		return d.handleNotCreationalEvent(ev, handler)
	}
}

func (d *Debugger) onCreateProcess(ev event, handler Handler) error {
	info := *ev.createProcess
	if info.FileHandle != InvalidHandle {
		defer d.src.closeHandle(info.FileHandle)
	}

	logflags.DebuggerLogger().Debugf("create process: %d", ev.processID)

	if !d.rootProcessSet && len(d.processes) == 0 {
		d.rootProcessID = ev.processID
		d.rootProcessSet = true
	}

	if _, exists := d.processes[ev.processID]; exists {
		return InvariantViolated{Kind: "process id already exists"}
	}
	d.processes[ev.processID] = info.Process

	handler.OnCreateProcess(info)

	return d.onCreateThread(ev.threadID, info.Thread)
}

func (d *Debugger) onCreateThread(tid int, hThread Handle) error {
	logflags.DebuggerLogger().Debugf("create thread: %d", tid)

	if _, exists := d.threads[tid]; exists {
		return InvariantViolated{Kind: "thread id already exists"}
	}
	d.threads[tid] = hThread
	return nil
}

func (d *Debugger) onExitThread(tid int) error {
	logflags.DebuggerLogger().Debugf("exit thread: %d", tid)

	if _, exists := d.threads[tid]; !exists {
		return InvariantViolated{Kind: "cannot find exited thread"}
	}
	delete(d.threads, tid)
	return nil
}

func (d *Debugger) handleNotCreationalEvent(ev event, handler Handler) (processStatus, error) {
	hProcess, ok := d.processes[ev.processID]
	if !ok {
		return processStatus{}, InvariantViolated{Kind: "unknown process id on event"}
	}
	hThread, ok := d.threads[ev.threadID]
	if !ok {
		return processStatus{}, InvariantViolated{Kind: "unknown thread id on event"}
	}

	switch ev.kind {
	case eventExitProcess:
		return d.onExitProcess(ev, hProcess, hThread, handler)

	case eventExitThread:
		if err := d.onExitThread(ev.threadID); err != nil {
			return processStatus{}, err
		}
		return processStatus{}, nil

	case eventLoadDll:
		info := *ev.loadDll
		if info.FileHandle != InvalidHandle {
			defer d.src.closeHandle(info.FileHandle)
		}
		handler.OnLoadDll(hProcess, hThread, info)
		return processStatus{}, nil

	case eventUnloadDll:
		handler.OnUnloadDll(hProcess, hThread, *ev.unloadDll)
		return processStatus{}, nil

	case eventException:
		return d.onException(ev, hProcess, hThread, handler)

	case eventRIP:
		logflags.DebuggerLogger().Errorf("debuggee process terminated unexpectedly: type=%d err=%d", ev.rip.Type, ev.rip.Err)
		return processStatus{}, nil

	default:
		logflags.DebuggerLogger().Debugf("ignoring debug event: %d", ev.kind)
		return processStatus{}, nil
	}
}

func (d *Debugger) onExitProcess(ev event, hProcess, hThread Handle, handler Handler) (processStatus, error) {
	if err := d.onExitThread(ev.threadID); err != nil {
		return processStatus{}, err
	}

	logflags.DebuggerLogger().Debugf("exit process: %d", ev.processID)

	info := *ev.exitProcess
	handler.OnExitProcess(hProcess, hThread, info)

	if _, exists := d.processes[ev.processID]; !exists {
		return processStatus{}, InvariantViolated{Kind: "cannot find exited process"}
	}
	delete(d.processes, ev.processID)

	exitCode := info.ExitCode
	return processStatus{exitCode: &exitCode}, nil
}

func (d *Debugger) onException(ev event, hProcess, hThread Handle, handler Handler) (processStatus, error) {
	exc := *ev.exception
	exceptionType := handler.OnException(hProcess, hThread, exc)

	switch exceptionType {
	case BreakPoint:
		return consumeStatus(nil), nil

	case InvalidBreakPoint:
		logger := logflags.DebuggerLogger()
		logger.Warning("assertion failure or explicit debug-break in target")
		d.captureCrashDump(ev.processID, ev.threadID, hProcess, hThread, exc, true)

		if d.opts.StopOnAssert {
			logger.Warning("stop on assert")
			return notHandledStatus(nil), nil
		}
		code := exceptionBreakpointCode
		return consumeStatus(&code), nil

	case NotHandled, ExceptionError:
		d.captureCrashDump(ev.processID, ev.threadID, hProcess, hThread, exc, false)
		return notHandledStatus(nil), nil

	case CppError:
		d.captureCrashDump(ev.processID, ev.threadID, hProcess, hThread, exc, false)
		if d.opts.ContinueAfterCppException {
			logflags.DebuggerLogger().Warning("continuing after a C++ exception")
			code := int(exc.Code)
			return consumeStatus(&code), nil
		}
		return notHandledStatus(nil), nil

	default:
		return processStatus{}, InvariantViolated{Kind: "invalid exception type"}
	}
}

// captureCrashDump never fails the loop: failures are logged and
// discarded, matching the DumpWriteFailed error taxonomy entry.
func (d *Debugger) captureCrashDump(pid, tid int, hProcess, hThread Handle, exc ExceptionInfo, includeFirstChance bool) {
	if !d.opts.DumpOnCrash {
		return
	}
	if exc.FirstChance && !includeFirstChance {
		return
	}

	logger := logflags.MinidumpLogger()
	path, err := d.src.captureCrashDump(d.opts.DumpDirectory, pid, tid, exc, hProcess, hThread)
	if err != nil {
		logger.Warn(DumpWriteFailed{Err: err}.Error())
		return
	}
	logger.Infof("created minidump %s", path)
}
