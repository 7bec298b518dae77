package injector

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/r0lh/dllinjector/winsys"
)

// Memory is a committed read-write region inside the target process.
type Memory struct {
	process *ProcessHandle
	addr    uintptr
	size    uintptr
	written uintptr
	freed   bool
}

// Alloc reserves and commits size bytes in the target.
func (p *ProcessHandle) Alloc(size int) (*Memory, error) {
	if err := p.checkOpen(); err != nil {
		return nil, withKind(ErrAllocation, err)
	}
	if size <= 0 {
		return nil, withKind(ErrAllocation, errors.Errorf("invalid allocation size %d", size))
	}
	log.Trace().Msgf("Attempting to allocate %s", humanize.IBytes(uint64(size)))
	addr, err := p.kernel.VirtualAllocEx(p.handle, uintptr(size), winsys.MEM_COMMIT|winsys.MEM_RESERVE, winsys.PAGE_READWRITE)
	if err != nil {
		return nil, withKind(ErrAllocation, errors.Wrap(err, "failed to allocate process memory"))
	}
	log.Debug().Msgf("Remote memory is at 0x%x", addr)
	return &Memory{process: p, addr: addr, size: uintptr(size)}, nil
}

// NewMemory allocates a region sized exactly to data and writes data into it.
func NewMemory(p *ProcessHandle, data []byte) (*Memory, error) {
	mem, err := p.Alloc(len(data))
	if err != nil {
		return nil, err
	}
	if err := mem.Write(data); err != nil {
		mem.Free()
		return nil, err
	}
	return mem, nil
}

// Write copies data into the region after any previously written bytes.
// Nothing is written when data does not fit in the remaining space.
func (m *Memory) Write(data []byte) error {
	if err := m.process.checkOpen(); err != nil {
		return withKind(ErrWrite, err)
	}
	if m.freed {
		return withKind(ErrWrite, errors.New("process memory already freed"))
	}
	log.Trace().Msgf("Attempting to write %d bytes to process memory", len(data))
	if uintptr(len(data)) > m.size-m.written {
		return withKind(ErrWriteTooLarge, errors.Errorf("%d bytes do not fit in %d remaining of %d", len(data), m.size-m.written, m.size))
	}
	if len(data) == 0 {
		return nil
	}
	n, err := m.process.kernel.WriteProcessMemory(m.process.handle, m.addr+m.written, data)
	if err != nil {
		return withKind(ErrWrite, errors.Wrap(err, "failed to write process memory"))
	}
	if n != uintptr(len(data)) {
		return withKind(ErrWrite, errors.Errorf("short write to process memory: %d of %d bytes", n, len(data)))
	}
	m.written += n
	return nil
}

// Addr is the region's address inside the target.
func (m *Memory) Addr() uintptr {
	return m.addr
}

func (m *Memory) Len() int {
	return int(m.size)
}

// Leak gives up the region without freeing it, for when a remote thread may
// still be reading it. Free is a no-op afterwards.
func (m *Memory) Leak() {
	if m.freed {
		return
	}
	m.freed = true
	log.Warn().Msgf("Leaving %s at 0x%x allocated in the target", humanize.IBytes(uint64(m.size)), m.addr)
}

// Free releases the region once; failures are logged only.
func (m *Memory) Free() {
	if m.freed {
		return
	}
	m.freed = true
	if m.process.closed {
		log.Warn().Msgf("Process handle closed before memory at 0x%x was freed", m.addr)
		return
	}
	log.Trace().Msg("Freeing process memory")
	if err := m.process.kernel.VirtualFreeEx(m.process.handle, m.addr, 0, winsys.MEM_RELEASE); err != nil {
		log.Warn().Err(err).Msg("Failed to free process memory")
	}
}
