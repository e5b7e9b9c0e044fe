package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const (
	lockDirName   = ".job.lock"
	lockOwnerFile = "owner.json"
)

// ErrLocked is returned when another run holds the job directory.
var ErrLocked = errors.New("job directory is locked")

// Lock is an exclusive, job-scoped lock held for the duration of a run.
type Lock struct {
	lockDir string
}

type lockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// AcquireLock takes the lock for jobDir. The lock is a directory, created
// with a single atomic mkdir. A lock left behind by a process on this host
// that no longer exists is broken once.
func AcquireLock(jobDir string) (*Lock, error) {
	target := strings.TrimSpace(jobDir)
	if target == "" {
		return nil, fmt.Errorf("job directory is required")
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("create job directory %s: %w", target, err)
	}

	lockDir := filepath.Join(target, lockDirName)
	for attempt := 0; ; attempt++ {
		err := os.Mkdir(lockDir, 0o755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquire job lock for %s: %w", target, err)
		}

		owner, readErr := readOwner(lockDir)
		if attempt == 0 && readErr == nil && owner.stale() {
			_ = os.Remove(filepath.Join(lockDir, lockOwnerFile))
			_ = os.Remove(lockDir)
			continue
		}
		if readErr == nil && owner.PID > 0 {
			return nil, fmt.Errorf("%w: %s (pid=%d created_at=%s host=%s)",
				ErrLocked, target, owner.PID, owner.CreatedAt, owner.Hostname)
		}
		return nil, fmt.Errorf("%w: %s", ErrLocked, target)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	data, err := json.MarshalIndent(owner, "", "  ")
	if err == nil {
		err = WriteAtomic(filepath.Join(lockDir, lockOwnerFile), append(data, '\n'))
	}
	if err != nil {
		_ = os.RemoveAll(lockDir)
		return nil, fmt.Errorf("write job lock owner for %s: %w", target, err)
	}

	return &Lock{lockDir: lockDir}, nil
}

// Release removes the lock. Releasing a nil or already released lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, lockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release job lock %s: %w", l.lockDir, err)
	}
	l.lockDir = ""
	return nil
}

func readOwner(lockDir string) (lockOwner, error) {
	var owner lockOwner
	data, err := os.ReadFile(filepath.Join(lockDir, lockOwnerFile))
	if err != nil {
		return owner, err
	}
	if err := json.Unmarshal(data, &owner); err != nil {
		return owner, err
	}
	return owner, nil
}

// stale reports whether the owner was a process on this host that has exited.
func (o lockOwner) stale() bool {
	if o.PID <= 0 || o.Hostname != hostnameOrUnknown() {
		return false
	}
	if o.PID == os.Getpid() {
		return false
	}
	proc, err := os.FindProcess(o.PID)
	if err != nil {
		return true
	}
	err = proc.Signal(syscall.Signal(0))
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH)
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
