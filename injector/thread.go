package injector

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/r0lh/dllinjector/winsys"
)

// Thread is a thread running inside the target process.
type Thread struct {
	process *ProcessHandle
	handle  winsys.Handle
	id      uint32
	closed  bool
}

// Spawn starts a thread in the target at fn with arg as its only argument.
// fn must be valid in the target's address space.
func (p *ProcessHandle) Spawn(fn, arg uintptr) (*Thread, error) {
	if err := p.checkOpen(); err != nil {
		return nil, withKind(ErrSpawn, err)
	}
	log.Trace().Msg("Trying to spawn remote thread")
	h, id, err := p.kernel.CreateRemoteThread(p.handle, fn, arg)
	if err != nil {
		return nil, withKind(ErrSpawn, errors.Wrap(err, "failed to spawn remote thread"))
	}
	log.Debug().Msgf("Remote thread id is 0x%x", id)
	return &Thread{process: p, handle: h, id: id}, nil
}

func (t *Thread) ID() uint32 {
	return t.id
}

// Join waits without timeout for the thread to exit and returns its exit
// code. The thread handle is released afterwards, so Join works once.
func (t *Thread) Join() (uint32, error) {
	if t.closed {
		return 0, withKind(ErrJoin, errors.New("remote thread already joined or closed"))
	}
	defer t.Close()

	event, err := t.process.kernel.WaitForSingleObject(t.handle, winsys.INFINITE)
	switch {
	case err != nil:
		return 0, withKind(ErrJoin, errors.Wrap(err, "failed to wait for remote thread"))
	case event == winsys.WAIT_FAILED:
		return 0, withKind(ErrJoin, errors.New("failed to wait for remote thread"))
	case event != winsys.WAIT_OBJECT_0:
		return 0, withKind(ErrJoin, errors.Errorf("unexpected wait status 0x%x", event))
	}

	code, err := t.process.kernel.GetExitCodeThread(t.handle)
	if err != nil {
		return 0, withKind(ErrJoin, errors.Wrap(err, "failed to get exit code for remote thread"))
	}
	log.Trace().Msgf("Remote thread 0x%x exited with 0x%x", t.id, code)
	return code, nil
}

// Close releases the thread handle without waiting. It is a no-op after Join.
func (t *Thread) Close() {
	if t.closed {
		return
	}
	t.closed = true
	log.Trace().Msg("Closing remote thread handle")
	if err := t.process.kernel.CloseHandle(t.handle); err != nil {
		log.Warn().Err(err).Msg("Failed to close remote thread handle")
	}
}
