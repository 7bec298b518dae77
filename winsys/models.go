package winsys

import "github.com/pkg/errors"

const (
	PROCESS_CREATE_THREAD     = 0x0002
	PROCESS_QUERY_INFORMATION = 0x0400
	PROCESS_VM_OPERATION      = 0x0008
	PROCESS_VM_READ           = 0x0010
	PROCESS_VM_WRITE          = 0x0020

	PAGE_READWRITE = 0x00000004

	MEM_COMMIT  = 0x1000
	MEM_RESERVE = 0x2000
	MEM_RELEASE = 0x8000

	TH32CS_SNAPPROCESS  = 0x00000002
	TH32CS_SNAPMODULE   = 0x00000008
	TH32CS_SNAPMODULE32 = 0x00000010

	INFINITE      = 0xFFFFFFFF
	WAIT_OBJECT_0 = 0x00000000
	WAIT_FAILED   = 0xFFFFFFFF

	MAX_PATH          = 260
	MAX_MODULE_NAME32 = 255
)

// InjectAccess is the access mask requested on every target process.
const InjectAccess = PROCESS_CREATE_THREAD | PROCESS_QUERY_INFORMATION | PROCESS_VM_OPERATION | PROCESS_VM_WRITE | PROCESS_VM_READ

var (
	// ErrNoMoreEntries marks the end of a toolhelp snapshot (ERROR_NO_MORE_FILES).
	ErrNoMoreEntries = errors.New("no more snapshot entries")
	ErrUnsupported   = errors.New("process injection is only supported on windows")
)

type Handle uintptr

// ProcessEntry carries the PROCESSENTRY32W fields the injector reads.
type ProcessEntry struct {
	ProcessID uint32
	ExeFile   [MAX_PATH]uint16
}

// ModuleEntry carries the MODULEENTRY32W fields the injector reads.
type ModuleEntry struct {
	ProcessID   uint32
	ModBaseAddr uintptr
	ModBaseSize uint32
	Module      [MAX_MODULE_NAME32 + 1]uint16
	ExePath     [MAX_PATH]uint16
}
