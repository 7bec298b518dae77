package injector

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/r0lh/dllinjector/winsys"
)

// Mode selects what an invocation does with the library.
type Mode string

const (
	ModeInject Mode = "inject"
	ModeEject  Mode = "eject"
	ModeReload Mode = "reload"
)

var modes = []Mode{ModeInject, ModeEject, ModeReload}

func (m *Mode) String() string {
	return string(*m)
}

// Set implements pflag.Value.
func (m *Mode) Set(v string) error {
	for _, mode := range modes {
		if strings.EqualFold(v, string(mode)) {
			*m = mode
			return nil
		}
	}
	return errors.Errorf("invalid mode %q (allowed: inject, eject, reload)", v)
}

func (m *Mode) Type() string {
	return "mode"
}

// Injector loads and unloads libraries in other processes by running the
// loader entry points on threads created inside them.
type Injector struct {
	kernel Kernel
}

func New(k Kernel) *Injector {
	return &Injector{kernel: k}
}

// Inject loads path into pid by calling LoadLibraryW on a remote thread.
func (i *Injector) Inject(pid uint32, path string) error {
	payload, err := winsys.EncodeUTF16Z(path)
	if err != nil {
		return withKind(ErrResolution, errors.Wrap(err, "invalid library path"))
	}
	loadLibrary, err := i.kernel.LoadLibraryAddr()
	if err != nil {
		return withKind(ErrSpawn, err)
	}

	process, err := OpenProcess(i.kernel, pid)
	if err != nil {
		return err
	}
	defer process.Close()

	mem, err := NewMemory(process, payload)
	if err != nil {
		return err
	}
	defer mem.Free()

	thread, err := process.Spawn(loadLibrary, mem.Addr())
	if err != nil {
		return err
	}
	defer thread.Close()

	code, err := thread.Join()
	if err != nil {
		// LoadLibraryW may still be reading the path.
		mem.Leak()
		return err
	}
	if code == 0 {
		return withKind(ErrSemantic, errors.Errorf("failed to load library %s into process %d", path, pid))
	}
	log.Info().Msgf("Injected %s into process %d", path, pid)
	return nil
}

// Eject unloads path from pid by calling FreeLibrary on a remote thread. A
// library that is not loaded is left alone and reported as success.
func (i *Injector) Eject(pid uint32, path string) error {
	process, err := OpenProcess(i.kernel, pid)
	if err != nil {
		return err
	}
	defer process.Close()

	module, found, err := i.findModule(pid, path)
	if err != nil {
		return err
	}
	if !found {
		log.Info().Msgf("Library %s was not found in process %d", path, pid)
		return nil
	}
	log.Debug().Msgf("Found %s at 0x%x", module.Path, module.Base)

	freeLibrary, err := i.kernel.FreeLibraryAddr()
	if err != nil {
		return withKind(ErrSpawn, err)
	}

	thread, err := process.Spawn(freeLibrary, module.Base)
	if err != nil {
		return err
	}
	defer thread.Close()

	code, err := thread.Join()
	if err != nil {
		return err
	}
	if code == 0 {
		return withKind(ErrSemantic, errors.Errorf("failed to free library %s in process %d", path, pid))
	}
	log.Info().Msgf("Ejected %s from process %d", path, pid)
	return nil
}

// Reload ejects path, if loaded, and injects it again.
func (i *Injector) Reload(pid uint32, path string) error {
	if err := i.Eject(pid, path); err != nil {
		return err
	}
	return i.Inject(pid, path)
}

// findModule returns the first module whose reported path equals path
// exactly. Case and short-name differences do not match.
func (i *Injector) findModule(pid uint32, path string) (ModuleRecord, bool, error) {
	modules, err := OpenModuleSnapshot(i.kernel, pid)
	if err != nil {
		return ModuleRecord{}, false, err
	}
	defer modules.Close()

	for modules.Next() {
		if m := modules.Record(); m.Path == path {
			return m, true, nil
		}
	}
	return ModuleRecord{}, false, modules.Err()
}
