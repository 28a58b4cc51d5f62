package testutil_test

import (
	"strings"
	"testing"
	"time"

	"github.com/dan-strohschein/orientdb-driver/testutil"
)

func TestTestDBName(t *testing.T) {
	name1 := testutil.TestDBName("itest")
	name2 := testutil.TestDBName("itest")

	if name1 == name2 {
		t.Error("expected unique names")
	}
	if !strings.HasPrefix(name1, "itest_db_") {
		t.Errorf("name = %q, want itest_db_ prefix", name1)
	}
	if !strings.HasPrefix(testutil.TestDBName(""), "test_db_") {
		t.Errorf("empty prefix should default to test_db_")
	}
}

func TestWaitFor(t *testing.T) {
	counter := 0
	met := testutil.WaitFor(t, time.Second, 10*time.Millisecond, func() bool {
		counter++
		return counter >= 3
	})

	if !met {
		t.Error("condition should have been met")
	}
	if counter < 3 {
		t.Errorf("counter = %d, want >= 3", counter)
	}
}
