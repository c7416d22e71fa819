//go:build windows && amd64

package debugloop

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
	"unsafe"
)

var (
	moddbghelp        = syscall.NewLazyDLL("dbghelp.dll")
	procMiniDumpWrite  = moddbghelp.NewProc("MiniDumpWriteDump")
)

// Minidump types, restricted to the small/normal subset the original tool
// uses; full-memory dumps are out of scope.
const _MiniDumpNormal = 0x00000000

type _MINIDUMP_EXCEPTION_INFORMATION struct {
	ThreadId          uint32
	ExceptionPointers uintptr
	ClientPointers    uint32
}

type _EXCEPTION_POINTERS struct {
	ExceptionRecord *_EXCEPTION_RECORD
	ContextRecord   *amd64Context
}

// writeMiniDump captures a crash dump for hProcess/hThread into dumpDir,
// naming the file the way the console reporter names its own artifacts:
// crash-<pid>-<timestamp>.dmp.
func writeMiniDump(dumpDir string, pid, tid int, record *_EXCEPTION_RECORD, hProcess, hThread syscall.Handle) (string, error) {
	if dumpDir == "" {
		return "", fmt.Errorf("minidump: no dump directory configured")
	}
	if err := os.MkdirAll(dumpDir, 0o755); err != nil {
		return "", fmt.Errorf("minidump: creating dump directory: %w", err)
	}

	ctx := newAMD64Context()
	ctx.ContextFlags = _CONTEXT_ALL
	if err := getThreadContextRaw(hThread, ctx); err != nil {
		return "", fmt.Errorf("minidump: GetThreadContext: %w", err)
	}

	ptrs := _EXCEPTION_POINTERS{
		ExceptionRecord: record,
		ContextRecord:   ctx,
	}
	excInfo := _MINIDUMP_EXCEPTION_INFORMATION{
		ThreadId:          uint32(tid),
		ExceptionPointers: uintptr(unsafe.Pointer(&ptrs)),
		ClientPointers:    0,
	}

	now := time.Now()
	name := fmt.Sprintf("crash-%d-%04d-%02d-%02d-%02d-%02d-%02d.dmp",
		pid, now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second())
	path := filepath.Join(dumpDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("minidump: creating dump file: %w", err)
	}
	defer f.Close()

	r1, _, e1 := procMiniDumpWrite.Call(
		uintptr(hProcess),
		uintptr(pid),
		f.Fd(),
		uintptr(_MiniDumpNormal),
		uintptr(unsafe.Pointer(&excInfo)),
		0,
		0,
	)
	if r1 == 0 {
		os.Remove(path)
		return "", fmt.Errorf("minidump: MiniDumpWriteDump: %w", e1)
	}

	return path, nil
}
