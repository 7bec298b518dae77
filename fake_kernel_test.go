package main

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"

	"github.com/r0lh/dllinjector/injector"
	"github.com/r0lh/dllinjector/winsys"
)

const (
	loadLibraryAddr uintptr = 0x7ffa0001000
	freeLibraryAddr uintptr = 0x7ffa0002000
)

type loadedModule struct {
	path string
	base uintptr
}

// threadEvent is one loader call seen by the target, with the library file's
// contents at the moment the call ran.
type threadEvent struct {
	op     string
	path   string
	onDisk string
}

// targetKernel is a single-process kernel whose loader threads record which
// file they loaded or unloaded and what was on disk at that time.
type targetKernel struct {
	pid     uint32
	name    string
	modules []loadedModule
	events  []threadEvent

	next     uintptr
	memory   map[uintptr][]byte
	exits    map[winsys.Handle]uint32
	procSnap map[winsys.Handle]bool
	modSnap  map[winsys.Handle][]loadedModule
	cursor   map[winsys.Handle]int
}

var _ injector.Kernel = (*targetKernel)(nil)

func newTargetKernel(pid uint32, name string) *targetKernel {
	return &targetKernel{
		pid:      pid,
		name:     name,
		next:     0x10000,
		memory:   make(map[uintptr][]byte),
		exits:    make(map[winsys.Handle]uint32),
		procSnap: make(map[winsys.Handle]bool),
		modSnap:  make(map[winsys.Handle][]loadedModule),
		cursor:   make(map[winsys.Handle]int),
	}
}

func (k *targetKernel) load(path string) {
	k.modules = append(k.modules, loadedModule{path: path, base: k.id()})
}

func (k *targetKernel) paths() []string {
	var out []string
	for _, m := range k.modules {
		out = append(out, m.path)
	}
	return out
}

func (k *targetKernel) id() uintptr {
	k.next += 0x1000
	return k.next
}

func readFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

func (k *targetKernel) OpenProcess(access uint32, pid uint32) (winsys.Handle, error) {
	if pid != k.pid {
		return 0, errors.New("The parameter is incorrect.")
	}
	return winsys.Handle(k.id()), nil
}

func (k *targetKernel) CloseHandle(h winsys.Handle) error {
	delete(k.exits, h)
	delete(k.procSnap, h)
	delete(k.modSnap, h)
	delete(k.cursor, h)
	return nil
}

func (k *targetKernel) VirtualAllocEx(process winsys.Handle, size uintptr, allocType, protect uint32) (uintptr, error) {
	addr := k.id()
	k.memory[addr] = make([]byte, size)
	return addr, nil
}

func (k *targetKernel) VirtualFreeEx(process winsys.Handle, addr, size uintptr, freeType uint32) error {
	delete(k.memory, addr)
	return nil
}

func (k *targetKernel) WriteProcessMemory(process winsys.Handle, addr uintptr, data []byte) (uintptr, error) {
	buf, ok := k.memory[addr]
	if !ok {
		return 0, errors.New("Attempt to access invalid address.")
	}
	return uintptr(copy(buf, data)), nil
}

func (k *targetKernel) CreateRemoteThread(process winsys.Handle, start, param uintptr) (winsys.Handle, uint32, error) {
	var code uint32
	switch start {
	case loadLibraryAddr:
		buf := k.memory[param]
		wide := make([]uint16, len(buf)/2)
		for i := range wide {
			wide[i] = binary.LittleEndian.Uint16(buf[2*i:])
		}
		path := winsys.UTF16ToString(wide)
		k.events = append(k.events, threadEvent{op: "load", path: path, onDisk: readFile(path)})
		k.load(path)
		code = 1
	case freeLibraryAddr:
		for i, m := range k.modules {
			if m.base == param {
				k.events = append(k.events, threadEvent{op: "free", path: m.path, onDisk: readFile(m.path)})
				k.modules = append(k.modules[:i:i], k.modules[i+1:]...)
				code = 1
				break
			}
		}
	}
	h := winsys.Handle(k.id())
	k.exits[h] = code
	return h, uint32(h), nil
}

func (k *targetKernel) WaitForSingleObject(h winsys.Handle, ms uint32) (uint32, error) {
	return winsys.WAIT_OBJECT_0, nil
}

func (k *targetKernel) GetExitCodeThread(h winsys.Handle) (uint32, error) {
	return k.exits[h], nil
}

func (k *targetKernel) CreateToolhelp32Snapshot(flags, pid uint32) (winsys.Handle, error) {
	h := winsys.Handle(k.id())
	if flags == winsys.TH32CS_SNAPPROCESS {
		k.procSnap[h] = true
	} else {
		k.modSnap[h] = append([]loadedModule(nil), k.modules...)
	}
	return h, nil
}

func (k *targetKernel) advance(h winsys.Handle, first bool, n int) (int, error) {
	if first {
		k.cursor[h] = 0
	} else {
		k.cursor[h]++
	}
	if k.cursor[h] >= n {
		return 0, winsys.ErrNoMoreEntries
	}
	return k.cursor[h], nil
}

func (k *targetKernel) process(h winsys.Handle, e *winsys.ProcessEntry, first bool) error {
	if _, err := k.advance(h, first, 1); err != nil {
		return err
	}
	*e = winsys.ProcessEntry{ProcessID: k.pid}
	copy(e.ExeFile[:], encode(k.name))
	return nil
}

func (k *targetKernel) module(h winsys.Handle, e *winsys.ModuleEntry, first bool) error {
	mods := k.modSnap[h]
	i, err := k.advance(h, first, len(mods))
	if err != nil {
		return err
	}
	*e = winsys.ModuleEntry{ProcessID: k.pid, ModBaseAddr: mods[i].base}
	copy(e.ExePath[:], encode(mods[i].path))
	return nil
}

func encode(s string) []uint16 {
	b, _ := winsys.EncodeUTF16Z(s)
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return out
}

func (k *targetKernel) Process32First(h winsys.Handle, e *winsys.ProcessEntry) error {
	return k.process(h, e, true)
}

func (k *targetKernel) Process32Next(h winsys.Handle, e *winsys.ProcessEntry) error {
	return k.process(h, e, false)
}

func (k *targetKernel) Module32First(h winsys.Handle, e *winsys.ModuleEntry) error {
	return k.module(h, e, true)
}

func (k *targetKernel) Module32Next(h winsys.Handle, e *winsys.ModuleEntry) error {
	return k.module(h, e, false)
}

func (k *targetKernel) LoadLibraryAddr() (uintptr, error) { return loadLibraryAddr, nil }
func (k *targetKernel) FreeLibraryAddr() (uintptr, error) { return freeLibraryAddr, nil }
