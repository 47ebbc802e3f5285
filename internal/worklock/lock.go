// Package worklock gives each job type (run-queue, fill-queue, daily,
// monthly) at-most-one-running-instance semantics on a single host.
//
// The primary primitive is a non-blocking flock(2) on a per-name file, which
// the kernel releases automatically when the holding process dies. The
// holder's pid is also written into the file: if flock ever reports the lock
// held while the recorded pid is dead (a lock file carried across an
// unclean reboot of the locking mechanism), the file is discarded and
// acquisition retried once.
package worklock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrHeld means another live process owns the lock. Callers skip the
// invocation; they never wait.
var ErrHeld = errors.New("worklock: held by another process")

type Manager struct {
	Dir string
}

// Lock is a held lock. Release it from a defer so failures during the
// guarded work can never leave it held.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes the named lock without blocking. It returns ErrHeld (wrapped
// with the name) when another live process holds it.
func (m *Manager) Acquire(name string) (*Lock, error) {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("worklock: create dir: %w", err)
	}
	return m.acquire(name, true)
}

func (m *Manager) acquire(name string, retryStale bool) (*Lock, error) {
	path := filepath.Join(m.Dir, name+".lock")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("worklock: open %s: %w", path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		pid := readPID(f)
		_ = f.Close()
		if retryStale && pid > 0 && !pidAlive(pid) {
			// Recorded holder is dead; the file is stale. Drop it and
			// try once more.
			_ = os.Remove(path)
			return m.acquire(name, false)
		}
		return nil, fmt.Errorf("%s: %w", name, ErrHeld)
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("worklock: truncate %s: %w", path, err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("worklock: write pid to %s: %w", path, err)
	}
	return &Lock{path: path, f: f}, nil
}

// Release empties the lock file and drops the flock. Safe to call once per
// acquired lock, including from defer on error paths.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = l.f.Truncate(0)
	err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}

func readPID(f *os.File) int {
	buf := make([]byte, 32)
	n, err := f.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}

// pidAlive probes the process with signal 0. EPERM still means alive, just
// owned by someone else.
func pidAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
