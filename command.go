package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/r0lh/dllinjector/config"
	"github.com/r0lh/dllinjector/injector"
	"github.com/r0lh/dllinjector/watcher"
	"github.com/r0lh/dllinjector/winsys"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "dllinjector [flags] <path> <process>",
		Short: "Inject, eject or reload a DLL in a running process",
		Long: `dllinjector loads a DLL into a running process by starting a thread in it
that calls LoadLibraryW, and unloads it again through FreeLibrary.
<process> is an executable name, or a pid when --pid is given.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cmd.Flags())
			if err != nil {
				return err
			}
			zerolog.SetGlobalLevel(cfg.LogLevel)
			if cfg.Watch && cfg.Mode == injector.ModeEject {
				return errors.New("--watch cannot be combined with --mode eject")
			}
			return run(cmd.Context(), cfg, args[0], args[1], winsys.New())
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg config.Config, path, target string, k injector.Kernel) error {
	pid, err := injector.ResolvePID(k, target, cfg.PID)
	if err != nil {
		return err
	}

	inj := injector.New(k)
	switch cfg.Mode {
	case injector.ModeInject:
		err = inject(inj, pid, path, cfg.Copy)
	case injector.ModeEject:
		err = eject(inj, pid, path, cfg.Copy)
	case injector.ModeReload:
		err = reload(inj, pid, path, cfg.Copy)
	default:
		err = errors.Errorf("unknown mode %q", cfg.Mode)
	}
	if err != nil || !cfg.Watch {
		return err
	}

	source, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolve watched path")
	}
	return watcher.Watch(ctx, source, cfg.WatchDebounce, func() error {
		log.Info().Msgf("Reloading %s", source)
		return reload(inj, pid, path, cfg.Copy)
	})
}

// inject prepares the library, copying it first when makeCopy is set, and
// loads it into pid.
func inject(inj *injector.Injector, pid uint32, path string, makeCopy bool) error {
	lib, err := prepareLibrary(path, makeCopy)
	if err != nil {
		return err
	}
	return inj.Inject(pid, lib)
}

// eject unloads the library from pid. The copy on disk is never touched.
func eject(inj *injector.Injector, pid uint32, path string, makeCopy bool) error {
	lib, ok, err := loadedLibrary(path, makeCopy)
	if err != nil {
		return err
	}
	if !ok {
		log.Info().Msgf("Library %s was not found in process %d", injector.CopyPath(path), pid)
		return nil
	}
	return inj.Eject(pid, lib)
}

// reload ejects the loaded library before refreshing the copy, since a
// loaded copy is locked until it is unloaded.
func reload(inj *injector.Injector, pid uint32, path string, makeCopy bool) error {
	if err := eject(inj, pid, path, makeCopy); err != nil {
		return err
	}
	return inject(inj, pid, path, makeCopy)
}

// loadedLibrary is the path a previous injection loaded. With makeCopy a
// missing copy means nothing was injected.
func loadedLibrary(path string, makeCopy bool) (string, bool, error) {
	if !makeCopy {
		lib, err := injector.ResolveLibrary(path)
		return lib, err == nil, err
	}
	dst := injector.CopyPath(path)
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		return "", false, nil
	}
	lib, err := injector.ResolveLibrary(dst)
	return lib, err == nil, err
}

func prepareLibrary(path string, makeCopy bool) (string, error) {
	if makeCopy {
		dst, err := injector.CopyLibrary(path)
		if err != nil {
			return "", err
		}
		path = dst
	}
	return injector.ResolveLibrary(path)
}
