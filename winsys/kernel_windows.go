//go:build windows

package winsys

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

var (
	modKernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procVirtualAllocEx     = modKernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = modKernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread = modKernel32.NewProc("CreateRemoteThread")
	procGetExitCodeThread  = modKernel32.NewProc("GetExitCodeThread")

	// Resolved in this process and used as thread entry points in the target.
	// kernel32 is mapped at the same base in every process of a boot session.
	procLoadLibraryW = modKernel32.NewProc("LoadLibraryW")
	procFreeLibrary  = modKernel32.NewProc("FreeLibrary")
)

// Kernel issues the kernel32 calls the injector needs.
type Kernel struct{}

func New() *Kernel {
	return &Kernel{}
}

func (Kernel) OpenProcess(access uint32, pid uint32) (Handle, error) {
	h, err := windows.OpenProcess(access, false, pid)
	if err != nil {
		return 0, err
	}
	return Handle(h), nil
}

func (Kernel) CloseHandle(h Handle) error {
	return windows.CloseHandle(windows.Handle(h))
}

func (Kernel) VirtualAllocEx(process Handle, size uintptr, allocType, protect uint32) (uintptr, error) {
	addr, _, e1 := procVirtualAllocEx.Call(
		uintptr(process),
		0,
		size,
		uintptr(allocType),
		uintptr(protect))
	if addr == 0 {
		return 0, e1
	}
	return addr, nil
}

func (Kernel) VirtualFreeEx(process Handle, addr, size uintptr, freeType uint32) error {
	r1, _, e1 := procVirtualFreeEx.Call(
		uintptr(process),
		addr,
		size,
		uintptr(freeType))
	if r1 == 0 {
		return e1
	}
	return nil
}

func (Kernel) WriteProcessMemory(process Handle, addr uintptr, data []byte) (uintptr, error) {
	if len(data) == 0 {
		return 0, nil
	}
	var written uintptr
	err := windows.WriteProcessMemory(windows.Handle(process), addr, &data[0], uintptr(len(data)), &written)
	return written, err
}

func (Kernel) CreateRemoteThread(process Handle, start, param uintptr) (Handle, uint32, error) {
	var threadID uint32
	h, _, e1 := procCreateRemoteThread.Call(
		uintptr(process),
		0,
		0,
		start,
		param,
		0,
		uintptr(unsafe.Pointer(&threadID)))
	if h == 0 {
		return 0, 0, e1
	}
	return Handle(h), threadID, nil
}

func (Kernel) WaitForSingleObject(h Handle, ms uint32) (uint32, error) {
	return windows.WaitForSingleObject(windows.Handle(h), ms)
}

func (Kernel) GetExitCodeThread(h Handle) (uint32, error) {
	var code uint32
	r1, _, e1 := procGetExitCodeThread.Call(uintptr(h), uintptr(unsafe.Pointer(&code)))
	if r1 == 0 {
		return 0, e1
	}
	return code, nil
}

func (Kernel) CreateToolhelp32Snapshot(flags, pid uint32) (Handle, error) {
	h, err := windows.CreateToolhelp32Snapshot(flags, pid)
	if err != nil {
		return 0, err
	}
	return Handle(h), nil
}

func (Kernel) Process32First(snap Handle, e *ProcessEntry) error {
	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))
	if err := windows.Process32First(windows.Handle(snap), &pe); err != nil {
		return snapshotErr(err)
	}
	fromProcessEntry(e, &pe)
	return nil
}

func (Kernel) Process32Next(snap Handle, e *ProcessEntry) error {
	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))
	if err := windows.Process32Next(windows.Handle(snap), &pe); err != nil {
		return snapshotErr(err)
	}
	fromProcessEntry(e, &pe)
	return nil
}

func (Kernel) Module32First(snap Handle, e *ModuleEntry) error {
	var me windows.ModuleEntry32
	me.Size = uint32(unsafe.Sizeof(me))
	if err := windows.Module32First(windows.Handle(snap), &me); err != nil {
		return snapshotErr(err)
	}
	fromModuleEntry(e, &me)
	return nil
}

func (Kernel) Module32Next(snap Handle, e *ModuleEntry) error {
	var me windows.ModuleEntry32
	me.Size = uint32(unsafe.Sizeof(me))
	if err := windows.Module32Next(windows.Handle(snap), &me); err != nil {
		return snapshotErr(err)
	}
	fromModuleEntry(e, &me)
	return nil
}

func (Kernel) LoadLibraryAddr() (uintptr, error) {
	if err := procLoadLibraryW.Find(); err != nil {
		return 0, errors.Wrap(err, "failed to get the address of LoadLibraryW")
	}
	return procLoadLibraryW.Addr(), nil
}

func (Kernel) FreeLibraryAddr() (uintptr, error) {
	if err := procFreeLibrary.Find(); err != nil {
		return 0, errors.Wrap(err, "failed to get the address of FreeLibrary")
	}
	return procFreeLibrary.Addr(), nil
}

func snapshotErr(err error) error {
	if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return ErrNoMoreEntries
	}
	return err
}

func fromProcessEntry(e *ProcessEntry, pe *windows.ProcessEntry32) {
	e.ProcessID = pe.ProcessID
	e.ExeFile = pe.ExeFile
}

func fromModuleEntry(e *ModuleEntry, me *windows.ModuleEntry32) {
	e.ProcessID = me.ProcessID
	e.ModBaseAddr = me.ModBaseAddr
	e.ModBaseSize = me.ModBaseSize
	e.Module = me.Module
	e.ExePath = me.ExePath
}
