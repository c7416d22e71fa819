package debugloop

// Handler is the Debug Events Handler capability the loop consumes. All
// methods are invoked from the single thread driving Debug; none of them
// may retain FileHandle fields past the call that supplies them.
type Handler interface {
	// OnCreateProcess is notified after handle registration.
	OnCreateProcess(info CreateProcessInfo)
	// OnExitProcess is notified before handle removal. info.ExitCode is the
	// authoritative per-process exit code.
	OnExitProcess(hProcess, hThread Handle, info ExitProcessInfo)
	// OnLoadDll is notified while info.FileHandle is still open; it will be
	// closed as soon as OnLoadDll returns.
	OnLoadDll(hProcess, hThread Handle, info LoadDllInfo)
	// OnUnloadDll is notified on module unload.
	OnUnloadDll(hProcess, hThread Handle, info UnloadDllInfo)
	// OnException classifies an exception debug event.
	OnException(hProcess, hThread Handle, info ExceptionInfo) ExceptionType
}
