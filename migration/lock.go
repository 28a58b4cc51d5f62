package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// LockMetadata records who holds the migration lock.
type LockMetadata struct {
	Holder    string    `json:"holder"`
	Hostname  string    `json:"hostname"`
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// MigrationLock serializes migration runs through an exclusive lock file
// in the migration directory. It coordinates processes that share a
// filesystem; multi-host deployments need a server-side lock on top.
type MigrationLock struct {
	lockPath     string
	staleTimeout time.Duration
	maxRetries   int
	retryBackoff time.Duration
	metadata     *LockMetadata
}

// NewMigrationLock creates a lock rooted in dir. A zero timeout falls
// back to ORIENTDB_LOCK_TIMEOUT, then to one hour.
func NewMigrationLock(dir string, timeout time.Duration) (*MigrationLock, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory path cannot be empty")
	}

	if timeout == 0 {
		var err error
		timeout, err = parseLockTimeout()
		if err != nil {
			return nil, fmt.Errorf("failed to parse lock timeout: %w", err)
		}
	}

	return &MigrationLock{
		lockPath:     filepath.Join(dir, ".orientdb_migration.lock"),
		staleTimeout: timeout,
	}, nil
}

// SetRetry configures retry behavior for lock acquisition. Useful for
// CI pipelines where runs briefly overlap.
func (l *MigrationLock) SetRetry(maxRetries int, backoff time.Duration) error {
	if maxRetries < 0 {
		return fmt.Errorf("maxRetries cannot be negative")
	}
	if maxRetries > 10 {
		return fmt.Errorf("maxRetries cannot exceed 10")
	}
	if backoff < 0 {
		return fmt.Errorf("backoff cannot be negative")
	}
	if backoff > time.Minute {
		return fmt.Errorf("backoff cannot exceed 1 minute")
	}

	l.maxRetries = maxRetries
	l.retryBackoff = backoff
	return nil
}

// AcquireLock takes the migration lock, cleaning up stale locks and
// retrying per the configured policy.
func (l *MigrationLock) AcquireLock() error {
	return l.acquireLockWithRetry(0)
}

func (l *MigrationLock) acquireLockWithRetry(attempt int) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
		if user == "" {
			user = "unknown"
		}
	}

	l.metadata = &LockMetadata{
		Holder:    user,
		Hostname:  hostname,
		PID:       os.Getpid(),
		Timestamp: time.Now(),
	}

	// O_EXCL makes creation the atomic acquisition point.
	file, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		if l.isLockStale() {
			if err := l.cleanupStaleLock(); err != nil {
				return fmt.Errorf("failed to clean up stale lock: %w", err)
			}
			return l.acquireLockWithRetry(attempt)
		}

		holder, _ := l.readLockMetadata()

		if attempt < l.maxRetries {
			backoff := l.retryBackoff * time.Duration(1<<uint(attempt))
			if backoff > time.Minute {
				backoff = time.Minute
			}
			if holder != nil {
				fmt.Fprintf(os.Stderr, "migration lock held by %s@%s (pid %d), retrying in %s (attempt %d/%d)\n",
					holder.Holder, holder.Hostname, holder.PID, backoff, attempt+1, l.maxRetries)
			}
			time.Sleep(backoff)
			return l.acquireLockWithRetry(attempt + 1)
		}

		return ErrLockConflict(l.lockPath, holder)
	}
	defer file.Close()

	data, err := json.MarshalIndent(l.metadata, "", "  ")
	if err != nil {
		os.Remove(l.lockPath)
		return fmt.Errorf("failed to marshal lock metadata: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		os.Remove(l.lockPath)
		return fmt.Errorf("failed to write lock metadata: %w", err)
	}

	return nil
}

// ReleaseLock removes the lock file.
func (l *MigrationLock) ReleaseLock() error {
	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// ForceUnlock removes the lock file after checking that the holder is
// not a live process on this host. Cross-host unlocks are refused since
// liveness cannot be verified remotely.
func (l *MigrationLock) ForceUnlock() error {
	metadata, err := l.readLockMetadata()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "warning: forcing unlock without metadata validation\n")
		return l.ReleaseLock()
	}

	// Our own lock is always safe to remove.
	if metadata.PID == os.Getpid() {
		return l.ReleaseLock()
	}

	currentHostname, _ := os.Hostname()
	if currentHostname != "" && metadata.Hostname != "" && currentHostname != metadata.Hostname {
		return fmt.Errorf("cannot force unlock: lock held on host %s, current host is %s",
			metadata.Hostname, currentHostname)
	}

	if isProcessActive(metadata.PID) {
		return fmt.Errorf("cannot force unlock: process %d appears to be active on this host", metadata.PID)
	}

	fmt.Fprintf(os.Stderr, "force unlocking migration lock held by %s@%s (pid %d)\n",
		metadata.Holder, metadata.Hostname, metadata.PID)

	return l.ReleaseLock()
}

func (l *MigrationLock) isLockStale() bool {
	info, err := os.Stat(l.lockPath)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > l.staleTimeout
}

func (l *MigrationLock) cleanupStaleLock() error {
	if metadata, err := l.readLockMetadata(); err == nil {
		fmt.Fprintf(os.Stderr, "warning: cleaning up stale migration lock (held for >%s by %s@%s)\n",
			l.staleTimeout, metadata.Holder, metadata.Hostname)
	}
	return l.ReleaseLock()
}

func (l *MigrationLock) readLockMetadata() (*LockMetadata, error) {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return nil, err
	}

	var metadata LockMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock metadata: %w", err)
	}
	return &metadata, nil
}

// parseLockTimeout reads the stale-lock timeout from
// ORIENTDB_LOCK_TIMEOUT, defaulting to one hour.
func parseLockTimeout() (time.Duration, error) {
	envTimeout := os.Getenv("ORIENTDB_LOCK_TIMEOUT")
	if envTimeout == "" {
		return time.Hour, nil
	}

	timeout, err := time.ParseDuration(envTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid ORIENTDB_LOCK_TIMEOUT value %q: %w", envTimeout, err)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("ORIENTDB_LOCK_TIMEOUT must be positive, got %s", timeout)
	}
	return timeout, nil
}

// isProcessActive probes a pid with signal 0. Best effort: it reports
// false for processes owned by other users that refuse the probe.
func isProcessActive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
