//go:build windows && amd64

package debugloop

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

// windowsEventSource implements eventSource on top of the raw kernel32
// debugging primitives declared in syscall_windows_amd64.go.
type windowsEventSource struct {
	proc *os.Process

	// lastException caches the raw exception record decoded by the most
	// recent waitForDebugEvent call, so captureCrashDump can build a
	// faithful EXCEPTION_POINTERS without the portable event type having
	// to carry Win32-specific fields. Debug's loop is strictly
	// single-threaded and always calls captureCrashDump (if at all) before
	// the next waitForDebugEvent, so this is safe without synchronization.
	lastException    _EXCEPTION_RECORD
	lastExceptionPID int
	lastExceptionTID int
}

func newPlatformEventSource() eventSource {
	return &windowsEventSource{}
}

func (w *windowsEventSource) spawn(startInfo StartInfo, coverChildren bool) error {
	flag := uint32(_DEBUG_ONLY_THIS_PROCESS)
	if coverChildren {
		flag = _DEBUG_PROCESS
	}

	argv := append([]string{startInfo.Path}, startInfo.Args...)
	attr := &os.ProcAttr{
		Dir:   startInfo.WorkingDir,
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
		Sys: &syscall.SysProcAttr{
			CreationFlags: flag,
		},
	}

	proc, err := os.StartProcess(startInfo.Path, argv, attr)
	if err != nil {
		return fmt.Errorf("spawning target: %w", err)
	}
	w.proc = proc
	return nil
}

func (w *windowsEventSource) waitForDebugEvent() (event, error) {
	var raw _DEBUG_EVENT
	if err := waitForDebugEventRaw(&raw, syscall.INFINITE); err != nil {
		return event{}, err
	}
	return w.decode(&raw)
}

func (w *windowsEventSource) decode(raw *_DEBUG_EVENT) (event, error) {
	ev := event{
		processID: int(raw.ProcessId),
		threadID:  int(raw.ThreadId),
	}
	unionPtr := unsafe.Pointer(&raw.U[0])

	switch raw.DebugEventCode {
	case _CREATE_PROCESS_DEBUG_EVENT:
		info := (*_CREATE_PROCESS_DEBUG_INFO)(unionPtr)
		ev.kind = eventCreateProcess
		ev.createProcess = &CreateProcessInfo{
			Process:     Handle(info.Process),
			Thread:      Handle(info.Thread),
			FileHandle:  handleOrInvalid(info.File),
			BaseOfImage: uint64(info.BaseOfImage),
		}

	case _CREATE_THREAD_DEBUG_EVENT:
		info := (*_CREATE_THREAD_DEBUG_INFO)(unionPtr)
		ev.kind = eventCreateThread
		h := Handle(info.Thread)
		ev.createThread = &h

	case _EXIT_THREAD_DEBUG_EVENT:
		ev.kind = eventExitThread

	case _EXIT_PROCESS_DEBUG_EVENT:
		info := (*_EXIT_PROCESS_DEBUG_INFO)(unionPtr)
		ev.kind = eventExitProcess
		ev.exitProcess = &ExitProcessInfo{ExitCode: int(info.ExitCode)}

	case _LOAD_DLL_DEBUG_EVENT:
		info := (*_LOAD_DLL_DEBUG_INFO)(unionPtr)
		ev.kind = eventLoadDll
		ev.loadDll = &LoadDllInfo{
			FileHandle: handleOrInvalid(info.File),
			BaseOfDll:  uint64(info.BaseOfDll),
		}

	case _UNLOAD_DLL_DEBUG_EVENT:
		info := (*_UNLOAD_DLL_DEBUG_INFO)(unionPtr)
		ev.kind = eventUnloadDll
		ev.unloadDll = &UnloadDllInfo{BaseOfDll: uint64(info.BaseOfDll)}

	case _EXCEPTION_DEBUG_EVENT:
		info := (*_EXCEPTION_DEBUG_INFO)(unionPtr)
		ev.kind = eventException
		ev.exception = &ExceptionInfo{
			Code:        info.ExceptionRecord.ExceptionCode,
			Address:     uint64(info.ExceptionRecord.ExceptionAddress),
			FirstChance: info.FirstChance != 0,
		}
		w.lastException = info.ExceptionRecord
		w.lastExceptionPID = int(raw.ProcessId)
		w.lastExceptionTID = int(raw.ThreadId)

	case _RIP_EVENT:
		info := (*_RIP_INFO)(unionPtr)
		ev.kind = eventRIP
		ev.rip = &RipInfo{Type: info.Type, Err: info.Error}

	default:
		ev.kind = eventOther
	}

	return ev, nil
}

func handleOrInvalid(h syscall.Handle) Handle {
	if h == 0 || h == syscall.InvalidHandle {
		return InvalidHandle
	}
	return Handle(h)
}

func (w *windowsEventSource) continueDebugEvent(pid, tid int, directive ContinueDirective) error {
	status := uint32(_DBG_CONTINUE)
	if directive == ContinueUnhandled {
		status = _DBG_EXCEPTION_NOT_HANDLED
	}
	return continueDebugEventRaw(uint32(pid), uint32(tid), status)
}

func (w *windowsEventSource) closeHandle(h Handle) error {
	if h == InvalidHandle {
		return nil
	}
	return closeHandleRaw(syscall.Handle(h))
}

func (w *windowsEventSource) captureCrashDump(dumpDir string, pid, tid int, exc ExceptionInfo, hProcess, hThread Handle) (string, error) {
	var record *_EXCEPTION_RECORD
	if w.lastExceptionPID == pid && w.lastExceptionTID == tid {
		record = &w.lastException
	} else {
		// Fall back to a minimal record built from the portable fields if
		// for some reason captureCrashDump is invoked out of band (e.g.
		// from a test using the real event source with synthetic data).
		record = &_EXCEPTION_RECORD{
			ExceptionCode:    exc.Code,
			ExceptionAddress: uintptr(exc.Address),
		}
	}
	return writeMiniDump(dumpDir, pid, tid, record, syscall.Handle(hProcess), syscall.Handle(hThread))
}
