package injector

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
)

var pidExists = process.PidExists

// ResolvePID turns the process argument into a pid. With byPID the argument
// is parsed as a number, otherwise it must equal exactly one running
// executable name.
func ResolvePID(k Kernel, target string, byPID bool) (uint32, error) {
	if byPID {
		log.Trace().Msg("Interpreting process argument as pid")
		// gopsutil takes an int32 pid.
		pid, err := strconv.ParseUint(strings.TrimSpace(target), 10, 31)
		if err != nil {
			return 0, withKind(ErrResolution, errors.Wrapf(err, "invalid pid %q", target))
		}
		ok, err := pidExists(int32(pid))
		if err != nil {
			return 0, withKind(ErrResolution, errors.Wrapf(err, "failed to look up pid %d", pid))
		}
		if !ok {
			return 0, withKind(ErrResolution, errors.Errorf("can not find process with pid %d", pid))
		}
		return uint32(pid), nil
	}

	log.Trace().Msgf("Searching for process with name: %s", target)
	procs, err := OpenProcessSnapshot(k)
	if err != nil {
		return 0, err
	}
	defer procs.Close()

	var matches []uint32
	for procs.Next() {
		if p := procs.Record(); p.Name == target {
			matches = append(matches, p.PID)
		}
	}
	if err := procs.Err(); err != nil {
		return 0, err
	}

	switch len(matches) {
	case 0:
		return 0, withKind(ErrResolution, errors.Errorf("can not find specified process %q", target))
	case 1:
		log.Debug().Msgf("Resolved %s to pid %d", target, matches[0])
		return matches[0], nil
	default:
		return 0, withKind(ErrResolution, errors.Errorf("multiple processes named %q (pids: %s), pass a pid with --pid", target, joinPIDs(matches)))
	}
}

func joinPIDs(pids []uint32) string {
	out := make([]string, 0, len(pids))
	for _, pid := range pids {
		out = append(out, fmt.Sprintf("%d", pid))
	}
	return strings.Join(out, ", ")
}

// CopyPath is where a library is copied before injection, so the original
// file stays writable while the copy is loaded.
func CopyPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".copy.dll"
}

// CopyLibrary copies path to CopyPath(path), replacing an older copy.
func CopyLibrary(path string) (string, error) {
	dst := CopyPath(path)
	n, err := copyFile(path, dst)
	if err != nil {
		return "", withKind(ErrResolution, errors.Wrapf(err, "failed to copy %s to %s", path, dst))
	}
	log.Debug().Msgf("Copied %s to %s (%s)", path, dst, humanize.Bytes(uint64(n)))
	return dst, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// ResolveLibrary returns the canonical absolute path of the library file.
func ResolveLibrary(path string) (string, error) {
	if strings.IndexByte(path, 0) != -1 {
		return "", withKind(ErrResolution, errors.Errorf("invalid path %q", path))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", withKind(ErrResolution, errors.Wrap(err, "failed to find DLL file"))
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", withKind(ErrResolution, errors.Wrap(err, "failed to find DLL file"))
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", withKind(ErrResolution, errors.Wrap(err, "failed to find DLL file"))
	}
	if info.IsDir() {
		return "", withKind(ErrResolution, errors.Errorf("%s is a directory", resolved))
	}
	log.Debug().Msgf("Resolved DLL path to %s", resolved)
	return resolved, nil
}
