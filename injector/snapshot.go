package injector

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/r0lh/dllinjector/winsys"
)

// ProcessRecord is one process seen by a process snapshot.
type ProcessRecord struct {
	PID  uint32
	Name string
}

// ModuleRecord is one module loaded in the snapshotted process. Base is only
// meaningful while that process keeps the module loaded.
type ModuleRecord struct {
	Name string
	Path string
	Base uintptr
}

// snapshot walks a toolhelp snapshot one entry at a time. It cannot be
// rewound; open a new one to enumerate again.
type snapshot[E any, R any] struct {
	kernel  Kernel
	handle  winsys.Handle
	first   func(winsys.Handle, *E) error
	next    func(winsys.Handle, *E) error
	convert func(*E) R

	entry   E
	record  R
	started bool
	done    bool
	closed  bool
	err     error
}

func openSnapshot[E any, R any](k Kernel, flags, pid uint32) (snapshot[E, R], error) {
	h, err := k.CreateToolhelp32Snapshot(flags, pid)
	if err != nil {
		return snapshot[E, R]{}, withKind(ErrSnapshot, errors.Wrap(err, "failed to create snapshot"))
	}
	return snapshot[E, R]{kernel: k, handle: h}, nil
}

// Next advances to the next record. It returns false at the end of the
// snapshot or on error; check Err afterwards.
func (s *snapshot[E, R]) Next() bool {
	if s.done || s.closed {
		return false
	}
	var err error
	if s.started {
		err = s.next(s.handle, &s.entry)
	} else {
		s.started = true
		err = s.first(s.handle, &s.entry)
	}
	if err != nil {
		s.done = true
		if !errors.Is(err, winsys.ErrNoMoreEntries) {
			s.err = withKind(ErrSnapshot, errors.Wrap(err, "failed to read snapshot entry"))
		}
		return false
	}
	s.record = s.convert(&s.entry)
	return true
}

// Record returns the record Next moved to.
func (s *snapshot[E, R]) Record() R {
	return s.record
}

func (s *snapshot[E, R]) Err() error {
	return s.err
}

// Close releases the snapshot once; failures are logged only.
func (s *snapshot[E, R]) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if err := s.kernel.CloseHandle(s.handle); err != nil {
		log.Warn().Err(err).Msg("Failed to close snapshot handle")
	}
}

// ProcessSnapshot enumerates every process on the system.
type ProcessSnapshot struct {
	snapshot[winsys.ProcessEntry, ProcessRecord]
}

func OpenProcessSnapshot(k Kernel) (*ProcessSnapshot, error) {
	s, err := openSnapshot[winsys.ProcessEntry, ProcessRecord](k, winsys.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, err
	}
	s.first, s.next = k.Process32First, k.Process32Next
	s.convert = func(e *winsys.ProcessEntry) ProcessRecord {
		return ProcessRecord{PID: e.ProcessID, Name: winsys.UTF16ToString(e.ExeFile[:])}
	}
	return &ProcessSnapshot{s}, nil
}

// ModuleSnapshot enumerates the modules loaded in one process.
type ModuleSnapshot struct {
	snapshot[winsys.ModuleEntry, ModuleRecord]
}

func OpenModuleSnapshot(k Kernel, pid uint32) (*ModuleSnapshot, error) {
	s, err := openSnapshot[winsys.ModuleEntry, ModuleRecord](k, winsys.TH32CS_SNAPMODULE|winsys.TH32CS_SNAPMODULE32, pid)
	if err != nil {
		return nil, err
	}
	s.first, s.next = k.Module32First, k.Module32Next
	s.convert = func(e *winsys.ModuleEntry) ModuleRecord {
		return ModuleRecord{
			Name: winsys.UTF16ToString(e.Module[:]),
			Path: winsys.UTF16ToString(e.ExePath[:]),
			Base: e.ModBaseAddr,
		}
	}
	return &ModuleSnapshot{s}, nil
}
