package injector

import "github.com/r0lh/dllinjector/winsys"

// Kernel is the slice of kernel32 the injector drives. winsys.Kernel
// implements it on windows.
type Kernel interface {
	OpenProcess(access uint32, pid uint32) (winsys.Handle, error)
	CloseHandle(h winsys.Handle) error

	VirtualAllocEx(process winsys.Handle, size uintptr, allocType, protect uint32) (uintptr, error)
	VirtualFreeEx(process winsys.Handle, addr, size uintptr, freeType uint32) error
	WriteProcessMemory(process winsys.Handle, addr uintptr, data []byte) (uintptr, error)

	CreateRemoteThread(process winsys.Handle, start, param uintptr) (winsys.Handle, uint32, error)
	WaitForSingleObject(h winsys.Handle, ms uint32) (uint32, error)
	GetExitCodeThread(h winsys.Handle) (uint32, error)

	CreateToolhelp32Snapshot(flags, pid uint32) (winsys.Handle, error)
	Process32First(snap winsys.Handle, e *winsys.ProcessEntry) error
	Process32Next(snap winsys.Handle, e *winsys.ProcessEntry) error
	Module32First(snap winsys.Handle, e *winsys.ModuleEntry) error
	Module32Next(snap winsys.Handle, e *winsys.ModuleEntry) error

	LoadLibraryAddr() (uintptr, error)
	FreeLibraryAddr() (uintptr, error)
}

var _ Kernel = (*winsys.Kernel)(nil)
