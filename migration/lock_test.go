package migration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLockAcquireAndRelease(t *testing.T) {
	tmpDir := t.TempDir()

	lock, err := NewMigrationLock(tmpDir, time.Hour)
	if err != nil {
		t.Fatalf("NewMigrationLock failed: %v", err)
	}

	if err := lock.AcquireLock(); err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	lockFile := filepath.Join(tmpDir, ".orientdb_migration.lock")
	if _, err := os.Stat(lockFile); os.IsNotExist(err) {
		t.Error("lock file not created")
	}

	if err := lock.ReleaseLock(); err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}

	if _, err := os.Stat(lockFile); !os.IsNotExist(err) {
		t.Error("lock file should be removed after release")
	}
}

func TestLockConcurrency(t *testing.T) {
	tmpDir := t.TempDir()

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	var winner *MigrationLock

	start := make(chan struct{})
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			lock, err := NewMigrationLock(tmpDir, time.Hour)
			if err != nil {
				t.Errorf("NewMigrationLock failed: %v", err)
				return
			}

			<-start
			if err := lock.AcquireLock(); err == nil {
				mu.Lock()
				acquired++
				winner = lock
				mu.Unlock()
			}
		}()
	}

	close(start)
	wg.Wait()

	// O_EXCL creation admits exactly one winner; the rest fail fast
	// since no retries are configured.
	if acquired != 1 {
		t.Errorf("expected 1 successful acquisition, got %d", acquired)
	}
	if winner != nil {
		winner.ReleaseLock()
	}
}

func TestStaleLockCleanup(t *testing.T) {
	tmpDir := t.TempDir()

	holder, err := NewMigrationLock(tmpDir, time.Hour)
	if err != nil {
		t.Fatalf("NewMigrationLock failed: %v", err)
	}
	if err := holder.AcquireLock(); err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	// Age the lock file past the stale timeout.
	lockFile := filepath.Join(tmpDir, ".orientdb_migration.lock")
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(lockFile, old, old); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	taker, err := NewMigrationLock(tmpDir, time.Hour)
	if err != nil {
		t.Fatalf("NewMigrationLock failed: %v", err)
	}
	if err := taker.AcquireLock(); err != nil {
		t.Fatalf("expected stale lock to be cleaned up and reacquired, got %v", err)
	}
	taker.ReleaseLock()
}

func TestLockRetry(t *testing.T) {
	tmpDir := t.TempDir()

	lock1, _ := NewMigrationLock(tmpDir, time.Hour)
	if err := lock1.AcquireLock(); err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer lock1.ReleaseLock()

	lock2, _ := NewMigrationLock(tmpDir, time.Hour)
	if err := lock2.SetRetry(2, 10*time.Millisecond); err != nil {
		t.Fatalf("SetRetry failed: %v", err)
	}

	start := time.Now()
	err := lock2.AcquireLock()
	duration := time.Since(start)

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	// Two backoffs: 10ms then 20ms.
	if duration < 30*time.Millisecond {
		t.Errorf("expected duration >= 30ms across retries, got %v", duration)
	}
}

func TestForceUnlock_OwnLock(t *testing.T) {
	tmpDir := t.TempDir()

	lock, _ := NewMigrationLock(tmpDir, time.Hour)
	if err := lock.AcquireLock(); err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	if err := lock.ForceUnlock(); err != nil {
		t.Fatalf("ForceUnlock failed: %v", err)
	}

	lockFile := filepath.Join(tmpDir, ".orientdb_migration.lock")
	if _, err := os.Stat(lockFile); !os.IsNotExist(err) {
		t.Error("lock file should be removed after force unlock")
	}
}

func TestForceUnlock_CrossHostRefused(t *testing.T) {
	tmpDir := t.TempDir()
	lockFile := filepath.Join(tmpDir, ".orientdb_migration.lock")

	metadata := LockMetadata{
		Holder:    "ci",
		Hostname:  "some-other-host",
		PID:       999999,
		Timestamp: time.Now(),
	}
	data, _ := json.Marshal(metadata)
	if err := os.WriteFile(lockFile, data, 0600); err != nil {
		t.Fatalf("writing lock fixture failed: %v", err)
	}

	lock, _ := NewMigrationLock(tmpDir, time.Hour)
	if err := lock.ForceUnlock(); err == nil {
		t.Error("expected cross-host force unlock to be refused")
	}

	if _, err := os.Stat(lockFile); err != nil {
		t.Error("expected lock file to survive refused unlock")
	}
}

func TestLockFilePermissions(t *testing.T) {
	tmpDir := t.TempDir()

	lock, _ := NewMigrationLock(tmpDir, time.Hour)
	if err := lock.AcquireLock(); err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer lock.ReleaseLock()

	info, err := os.Stat(filepath.Join(tmpDir, ".orientdb_migration.lock"))
	if err != nil {
		t.Fatalf("failed to stat lock file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected permissions 0600, got %s", info.Mode().Perm())
	}
}

func TestSetRetryValidation(t *testing.T) {
	lock, _ := NewMigrationLock(t.TempDir(), time.Hour)

	if err := lock.SetRetry(15, time.Second); err == nil {
		t.Error("expected error for maxRetries > 10")
	}
	if err := lock.SetRetry(3, 2*time.Minute); err == nil {
		t.Error("expected error for backoff > 1 minute")
	}
	if err := lock.SetRetry(-1, time.Second); err == nil {
		t.Error("expected error for negative maxRetries")
	}
	if err := lock.SetRetry(5, 30*time.Second); err != nil {
		t.Errorf("expected valid parameters to pass, got %v", err)
	}
}

func TestParseLockTimeout(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     time.Duration
		wantErr  bool
	}{
		{"default", "", time.Hour, false},
		{"minutes", "5m", 5 * time.Minute, false},
		{"hours", "2h", 2 * time.Hour, false},
		{"invalid", "soon", 0, true},
		{"negative", "-1m", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ORIENTDB_LOCK_TIMEOUT", tt.envValue)

			timeout, err := parseLockTimeout()
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLockTimeout() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && timeout != tt.want {
				t.Errorf("expected timeout %v, got %v", tt.want, timeout)
			}
		})
	}
}
