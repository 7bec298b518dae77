package injector

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/r0lh/dllinjector/winsys"
)

// ProcessHandle owns an OS handle to a target process. Memory and threads
// created from it borrow the handle and must be released before Close.
// A ProcessHandle is not safe for concurrent use.
type ProcessHandle struct {
	kernel Kernel
	handle winsys.Handle
	pid    uint32
	closed bool
}

// OpenProcess opens pid with the rights needed to write memory and start
// threads in it.
func OpenProcess(k Kernel, pid uint32) (*ProcessHandle, error) {
	log.Trace().Msgf("Trying to open process with pid %d", pid)
	h, err := k.OpenProcess(winsys.InjectAccess, pid)
	if err != nil {
		return nil, withKind(ErrAccess, errors.Wrapf(err, "failed to open process %d", pid))
	}
	log.Debug().Msgf("Process handle is 0x%x", uintptr(h))
	return &ProcessHandle{kernel: k, handle: h, pid: pid}, nil
}

func (p *ProcessHandle) PID() uint32 {
	return p.pid
}

// Close releases the handle. Only the first call reaches the OS; a failure
// is logged and swallowed.
func (p *ProcessHandle) Close() {
	if p.closed {
		return
	}
	p.closed = true
	log.Trace().Msg("Closing process handle")
	if err := p.kernel.CloseHandle(p.handle); err != nil {
		log.Warn().Err(err).Msg("Failed to close process handle")
	}
}

func (p *ProcessHandle) checkOpen() error {
	if p.closed {
		return errors.Wrapf(ErrHandleClosed, "pid %d", p.pid)
	}
	return nil
}
