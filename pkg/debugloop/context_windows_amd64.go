//go:build windows && amd64

package debugloop

import "unsafe"

// m128a mirrors the Win32 M128A struct (a 128-bit SSE register).
type m128a struct {
	Low  uint64
	High int64
}

// xmmSaveArea32 mirrors the Win32 XMM_SAVE_AREA32 struct embedded in
// CONTEXT.
type xmmSaveArea32 struct {
	ControlWord    uint16
	StatusWord     uint16
	TagWord        uint8
	Reserved1      uint8
	ErrorOpcode    uint16
	ErrorOffset    uint32
	ErrorSelector  uint16
	Reserved2      uint16
	DataOffset     uint32
	DataSelector   uint16
	Reserved3      uint16
	MxCsr          uint32
	MxCsrMask      uint32
	FloatRegisters [8]m128a
	XmmRegisters   [256]byte
	Reserved4      [96]byte
}

// amd64Context mirrors the Win32 CONTEXT struct for the x64 architecture.
// Only the fields GetThreadContext/MiniDumpWriteDump need are kept typed;
// the rest exist purely to reproduce the struct's real layout so the
// pointer can be handed straight to the OS.
type amd64Context struct {
	P1Home uint64
	P2Home uint64
	P3Home uint64
	P4Home uint64
	P5Home uint64
	P6Home uint64

	ContextFlags uint32
	MxCsr        uint32

	SegCs  uint16
	SegDs  uint16
	SegEs  uint16
	SegFs  uint16
	SegGs  uint16
	SegSs  uint16
	EFlags uint32

	Dr0 uint64
	Dr1 uint64
	Dr2 uint64
	Dr3 uint64
	Dr6 uint64
	Dr7 uint64

	Rax uint64
	Rcx uint64
	Rdx uint64
	Rbx uint64
	Rsp uint64
	Rbp uint64
	Rsi uint64
	Rdi uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	Rip uint64

	FltSave xmmSaveArea32

	VectorRegister [26]m128a
	VectorControl  uint64

	DebugControl         uint64
	LastBranchToRip      uint64
	LastBranchFromRip    uint64
	LastExceptionToRip   uint64
	LastExceptionFromRip uint64
}

// newAMD64Context allocates a CONTEXT structure aligned to 16 bytes, as
// Win32 requires for the FltSave region.
func newAMD64Context() *amd64Context {
	var c *amd64Context
	buf := make([]byte, unsafe.Sizeof(*c)+15)
	return (*amd64Context)(unsafe.Pointer((uintptr(unsafe.Pointer(&buf[15]))) &^ 15))
}
