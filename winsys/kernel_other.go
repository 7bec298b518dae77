//go:build !windows

package winsys

// Kernel fails every call on platforms without kernel32.
type Kernel struct{}

func New() *Kernel {
	return &Kernel{}
}

func (Kernel) OpenProcess(uint32, uint32) (Handle, error) { return 0, ErrUnsupported }
func (Kernel) CloseHandle(Handle) error                  { return ErrUnsupported }

func (Kernel) VirtualAllocEx(Handle, uintptr, uint32, uint32) (uintptr, error) {
	return 0, ErrUnsupported
}

func (Kernel) VirtualFreeEx(Handle, uintptr, uintptr, uint32) error { return ErrUnsupported }

func (Kernel) WriteProcessMemory(Handle, uintptr, []byte) (uintptr, error) {
	return 0, ErrUnsupported
}

func (Kernel) CreateRemoteThread(Handle, uintptr, uintptr) (Handle, uint32, error) {
	return 0, 0, ErrUnsupported
}

func (Kernel) WaitForSingleObject(Handle, uint32) (uint32, error) { return WAIT_FAILED, ErrUnsupported }
func (Kernel) GetExitCodeThread(Handle) (uint32, error)          { return 0, ErrUnsupported }

func (Kernel) CreateToolhelp32Snapshot(uint32, uint32) (Handle, error) { return 0, ErrUnsupported }
func (Kernel) Process32First(Handle, *ProcessEntry) error             { return ErrUnsupported }
func (Kernel) Process32Next(Handle, *ProcessEntry) error              { return ErrUnsupported }
func (Kernel) Module32First(Handle, *ModuleEntry) error               { return ErrUnsupported }
func (Kernel) Module32Next(Handle, *ModuleEntry) error                { return ErrUnsupported }

func (Kernel) LoadLibraryAddr() (uintptr, error) { return 0, ErrUnsupported }
func (Kernel) FreeLibraryAddr() (uintptr, error) { return 0, ErrUnsupported }
