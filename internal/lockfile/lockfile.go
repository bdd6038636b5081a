// Package lockfile keeps two Cockpit servers from sharing one state directory.
//
// The lock is an flock on <state_dir>/cockpit.lock, so the kernel drops it when
// the process exits, cleanly or not.
package lockfile

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory.
const LockFileName = "cockpit.lock"

// Holder describes the process that owns a lock, as written into the lock file.
type Holder struct {
	PID     int
	Addr    string
	Started time.Time
}

func (h Holder) encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pid=%d\n", h.PID)
	if h.Addr != "" {
		fmt.Fprintf(&b, "addr=%s\n", h.Addr)
	}
	fmt.Fprintf(&b, "started=%s\n", h.Started.UTC().Format(time.RFC3339))
	return b.String()
}

// parseHolder reads key=value lines. Unknown keys are ignored.
func parseHolder(content string) Holder {
	var h Holder
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			h.PID, _ = strconv.Atoi(value)
		case "addr":
			h.Addr = value
		case "started":
			h.Started, _ = time.Parse(time.RFC3339, value)
		}
	}
	return h
}

// Lock is a held state directory lock.
type Lock struct {
	file   *os.File
	path   string
	holder Holder
}

// AcquireLock takes the exclusive lock on stateDir, recording addr as the
// listening address of this server. It fails fast with a *LockError when
// another process holds it.
func AcquireLock(stateDir, addr string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("AcquireLock: acquiring", "lock_path", lockPath)

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// O_TRUNC would wipe the holder info of a live owner before we know we won.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		lockErr := &LockError{LockPath: lockPath, Cause: err}
		if data, readErr := os.ReadFile(lockPath); readErr == nil {
			lockErr.Holder = parseHolder(string(data))
		}
		slog.Error("AcquireLock: another Cockpit instance holds the lock", "lock_path", lockPath, "holder_pid", lockErr.Holder.PID, "holder_addr", lockErr.Holder.Addr)
		return nil, lockErr
	}

	holder := Holder{PID: os.Getpid(), Addr: addr, Started: time.Now()}
	if err := writeHolder(file, holder); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("AcquireLock: acquired state directory lock", "lock_path", lockPath, "pid", holder.PID)
	return &Lock{file: file, path: lockPath, holder: holder}, nil
}

func writeHolder(f *os.File, h Holder) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(h.encode()), 0); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		slog.Warn("AcquireLock: failed to sync lock file", "error", err, "lock_path", f.Name())
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Holder returns the information written for this process.
func (l *Lock) Holder() Holder { return l.holder }

// Release drops the lock and removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("Lock.Release: failed to release flock", "error", err, "lock_path", l.path)
	}
	if err := l.file.Close(); err != nil {
		slog.Error("Lock.Release: failed to close lock file", "error", err, "lock_path", l.path)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Lock.Release: failed to remove lock file", "error", err, "lock_path", l.path)
	}
	l.file = nil
	slog.Info("Lock.Release: released state directory lock", "lock_path", l.path)
	return nil
}

// LockError is returned when another process holds the lock.
type LockError struct {
	LockPath string
	Holder   Holder
	Cause    error
}

func (e *LockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "another Cockpit instance is already using this state directory (lock file %s)", e.LockPath)
	if e.Holder.PID > 0 {
		state := "running"
		if !isProcessRunning(e.Holder.PID) {
			state = "not running, stale lock"
		}
		fmt.Fprintf(&b, "; held by PID %d (%s)", e.Holder.PID, state)
	}
	if e.Holder.Addr != "" {
		fmt.Fprintf(&b, " serving %s", e.Holder.Addr)
	}
	fmt.Fprintf(&b, "; if no other instance is running, remove it with: rm %s", e.LockPath)
	return b.String()
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// isProcessRunning probes pid with signal 0.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
