package schema

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dan-strohschein/orientdb-driver/record"
)

var (
	_ record.PropertyResolver = (*Cache)(nil)
	_ record.PropertyIndex    = (*Cache)(nil)
)

func TestCatalogLookup(t *testing.T) {
	cat := NewCatalog([]Property{
		{ID: 0, Name: "name", Type: "STRING"},
		{ID: 1, Name: "age", Type: "INTEGER"},
		{ID: 7, Name: "joined", Type: "DATETIME"},
	})

	if cat.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", cat.Len())
	}

	name, ok := cat.PropertyName(1)
	if !ok || name != "age" {
		t.Errorf("PropertyName(1) = %q, %v, want \"age\", true", name, ok)
	}
	id, ok := cat.PropertyID("joined")
	if !ok || id != 7 {
		t.Errorf("PropertyID(joined) = %d, %v, want 7, true", id, ok)
	}

	if _, ok := cat.PropertyName(99); ok {
		t.Error("PropertyName(99) reported a hit on an unknown id")
	}
	if _, ok := cat.PropertyID("missing"); ok {
		t.Error("PropertyID(missing) reported a hit on an unknown name")
	}
}

func TestCatalogPropertyType(t *testing.T) {
	cat := NewCatalog([]Property{
		{ID: 0, Name: "name", Type: "STRING"},
		{ID: 1, Name: "untyped"},
	})

	declared, ok := cat.PropertyType("name")
	if !ok || declared != "STRING" {
		t.Errorf("PropertyType(name) = %q, %v, want \"STRING\", true", declared, ok)
	}
	if _, ok := cat.PropertyType("untyped"); ok {
		t.Error("PropertyType(untyped) reported a type for an untyped property")
	}
	if _, ok := cat.PropertyType("missing"); ok {
		t.Error("PropertyType(missing) reported a hit on an unknown name")
	}

	cache := NewCache()
	cache.Replace([]Property{{ID: 4, Name: "joined", Type: "DATETIME"}})
	if declared, ok := cache.PropertyType("joined"); !ok || declared != "DATETIME" {
		t.Errorf("cache PropertyType(joined) = %q, %v, want \"DATETIME\", true", declared, ok)
	}
}

func TestCatalogFingerprintIgnoresOrder(t *testing.T) {
	a := NewCatalog([]Property{
		{ID: 0, Name: "name"},
		{ID: 1, Name: "age"},
	})
	b := NewCatalog([]Property{
		{ID: 1, Name: "age"},
		{ID: 0, Name: "name"},
	})
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("catalogs with the same entries in different order produced different fingerprints")
	}

	c := NewCatalog([]Property{
		{ID: 0, Name: "name"},
		{ID: 1, Name: "email"},
	})
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("catalogs with different entries produced the same fingerprint")
	}
}

func TestCatalogFingerprintBoundaries(t *testing.T) {
	// Adjacent entries must not be confusable by shifting bytes between
	// the name of one and the name of the next.
	a := NewCatalog([]Property{{ID: 0, Name: "ab"}, {ID: 1, Name: "c"}})
	b := NewCatalog([]Property{{ID: 0, Name: "a"}, {ID: 1, Name: "bc"}})
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("entry boundaries are not part of the fingerprint")
	}
}

func TestCacheStartsEmpty(t *testing.T) {
	cache := NewCache()
	if got := cache.Catalog().Len(); got != 0 {
		t.Fatalf("new cache catalog Len() = %d, want 0", got)
	}
	if _, ok := cache.PropertyName(0); ok {
		t.Error("empty cache resolved property id 0")
	}
}

func TestCacheReplaceDetectsChange(t *testing.T) {
	cache := NewCache()

	props := []Property{{ID: 0, Name: "name"}, {ID: 1, Name: "age"}}
	if !cache.Replace(props) {
		t.Fatal("first Replace reported no change")
	}
	if name, ok := cache.PropertyName(0); !ok || name != "name" {
		t.Fatalf("PropertyName(0) = %q, %v after Replace", name, ok)
	}

	// Same content, shuffled order: no swap.
	shuffled := []Property{{ID: 1, Name: "age"}, {ID: 0, Name: "name"}}
	before := cache.Catalog()
	if cache.Replace(shuffled) {
		t.Error("Replace with identical content reported a change")
	}
	if cache.Catalog() != before {
		t.Error("Replace with identical content swapped the snapshot")
	}

	// New entry: swap.
	if !cache.Replace(append(props, Property{ID: 2, Name: "email"})) {
		t.Error("Replace with an added entry reported no change")
	}
	if id, ok := cache.PropertyID("email"); !ok || id != 2 {
		t.Errorf("PropertyID(email) = %d, %v after Replace", id, ok)
	}
}

func TestCacheRefreshCollapsesConcurrentCalls(t *testing.T) {
	cache := NewCache()

	var calls int32
	entered := make(chan struct{})
	release := make(chan struct{})
	fetch := func() ([]Property, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
		}
		<-release
		return []Property{{ID: 0, Name: "name"}}, nil
	}

	const workers = 5
	changed := make([]bool, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		changed[0], errs[0] = cache.Refresh(fetch)
	}()
	<-entered

	for i := 1; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			changed[i], errs[i] = cache.Refresh(fetch)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("fetch ran %d times, want 1", got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("Refresh %d returned error: %v", i, errs[i])
		}
		if !changed[i] {
			t.Errorf("Refresh %d reported no change", i)
		}
	}
}

func TestCacheRefreshError(t *testing.T) {
	cache := NewCache()
	cache.Replace([]Property{{ID: 0, Name: "name"}})
	before := cache.Catalog()

	want := errors.New("connection reset")
	changed, err := cache.Refresh(func() ([]Property, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("Refresh error = %v, want %v", err, want)
	}
	if changed {
		t.Error("failed Refresh reported a change")
	}
	if cache.Catalog() != before {
		t.Error("failed Refresh replaced the catalog")
	}
}

func TestCacheConcurrentReadDuringReplace(t *testing.T) {
	cache := NewCache()
	cache.Replace([]Property{{ID: 0, Name: "name"}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			cache.Replace([]Property{{ID: 0, Name: "name"}, {ID: int32(i % 7), Name: "extra"}})
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
			// Every read must hit a complete table: id 0 is present in
			// every generation ever swapped in.
			if cat := cache.Catalog(); cat.Len() > 0 {
				if _, ok := cat.PropertyName(0); !ok {
					t.Fatal("reader observed a catalog without id 0")
				}
			}
		}
	}
}
