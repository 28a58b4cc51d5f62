package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dan-strohschein/orientdb-driver/client"
)

// Environment variables that point the test suite at a real OrientDB
// server. When the address is unset, live tests skip.
const (
	EnvTestAddr     = "ORIENTDB_TEST_ADDR"
	EnvTestUser     = "ORIENTDB_TEST_USER"
	EnvTestPassword = "ORIENTDB_TEST_PASSWORD"
)

var testDBCounter uint64

// LiveAddr returns the address of a real server to test against, or
// skips the test when ORIENTDB_TEST_ADDR is not set.
func LiveAddr(tb testing.TB) string {
	tb.Helper()
	addr := os.Getenv(EnvTestAddr)
	if addr == "" {
		tb.Skipf("%s not set, skipping live server test", EnvTestAddr)
	}
	return addr
}

// LiveCredentials returns the root credentials for the live server,
// defaulting to root/root.
func LiveCredentials() (user, password string) {
	user = os.Getenv(EnvTestUser)
	if user == "" {
		user = "root"
	}
	password = os.Getenv(EnvTestPassword)
	if password == "" {
		password = "root"
	}
	return user, password
}

// LiveClient dials the live server and ties the connection to the
// test. Skips when no live server is configured.
func LiveClient(tb testing.TB) *client.Client {
	tb.Helper()
	addr := LiveAddr(tb)

	opts := client.DefaultOptions()
	opts.DebugMode = testing.Verbose()

	c, err := client.Dial(addr, opts)
	if err != nil {
		tb.Fatalf("failed to dial live server %s: %v", addr, err)
	}
	tb.Cleanup(func() {
		if err := c.Close(); err != nil {
			tb.Logf("warning: failed to close client: %v", err)
		}
	})
	return c
}

// TestDBName generates a unique database name so parallel test runs
// against a shared server do not collide.
func TestDBName(prefix string) string {
	if prefix == "" {
		prefix = "test"
	}
	n := atomic.AddUint64(&testDBCounter, 1)
	return fmt.Sprintf("%s_db_%d_%d", prefix, time.Now().Unix(), n)
}

// WaitFor polls a condition until it returns true or the timeout
// elapses. Fails the test on timeout and reports whether the condition
// was met.
func WaitFor(tb testing.TB, timeout, interval time.Duration, condition func() bool) bool {
	tb.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}

	tb.Errorf("condition not met within %v", timeout)
	return false
}
