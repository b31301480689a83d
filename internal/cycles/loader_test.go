package cycles

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSource struct {
	key         string
	fingerprint string
	loads       atomic.Int32
	fail        atomic.Bool
}

func (s *countingSource) Key() string { return s.key }

func (s *countingSource) Load(ctx context.Context) (*Table, error) {
	s.loads.Add(1)
	if s.fail.Load() {
		return nil, errors.New("boom")
	}
	return NewTable(
		[]string{"timestamp", "hb_jiduser"},
		[][]string{{"2025-11-03 08:00:00", "M1"}, {"2025-11-04 08:00:00", "M2"}},
		Options{},
	)
}

type fingerprintedSource struct {
	countingSource
}

func (s *fingerprintedSource) Fingerprint() (string, error) { return s.fingerprint, nil }

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func (m *mapStore) Get(ctx context.Context, key string, dest any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(b, dest) == nil
}

func (m *mapStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	m.sets++
	return nil
}

func TestLoaderMemoizes(t *testing.T) {
	l := NewLoader(nil, 0)
	src := &countingSource{key: "k"}

	first, err := l.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := l.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first != second {
		t.Fatalf("expected the cached table on the second call")
	}
	if n := src.loads.Load(); n != 1 {
		t.Fatalf("expected 1 read, got %d", n)
	}
}

func TestLoaderConcurrentFirstUse(t *testing.T) {
	l := NewLoader(nil, 0)
	src := &countingSource{key: "k"}

	var wg sync.WaitGroup
	tables := make([]*Table, 16)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables[i], _ = l.Load(context.Background(), src)
		}(i)
	}
	wg.Wait()

	for i := range tables {
		if tables[i] == nil || tables[i] != tables[0] {
			t.Fatalf("goroutine %d got a different table", i)
		}
	}
	if n := src.loads.Load(); n != 1 {
		t.Fatalf("expected 1 read, got %d", n)
	}
}

func TestLoaderRetriesFailedLoad(t *testing.T) {
	l := NewLoader(nil, 0)
	src := &countingSource{key: "k"}
	src.fail.Store(true)

	if _, err := l.Load(context.Background(), src); err == nil {
		t.Fatalf("expected error")
	}
	src.fail.Store(false)
	if _, err := l.Load(context.Background(), src); err != nil {
		t.Fatalf("Load after failure: %v", err)
	}
	if n := src.loads.Load(); n != 2 {
		t.Fatalf("expected 2 reads, got %d", n)
	}
}

func TestLoaderKeysAreIndependent(t *testing.T) {
	l := NewLoader(nil, 0)
	a := &countingSource{key: "a"}
	b := &countingSource{key: "b"}
	if _, err := l.Load(context.Background(), a); err != nil {
		t.Fatalf("Load a: %v", err)
	}
	if _, err := l.Load(context.Background(), b); err != nil {
		t.Fatalf("Load b: %v", err)
	}
	if a.loads.Load() != 1 || b.loads.Load() != 1 {
		t.Fatalf("expected one read per key")
	}
}

func TestLoaderSnapshotSharedAcrossLoaders(t *testing.T) {
	store := &mapStore{data: make(map[string][]byte)}
	src := &fingerprintedSource{countingSource{key: "xlsx:data.xlsx#anonymized_data", fingerprint: "100:1"}}

	warm, err := NewLoader(store, time.Hour).Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.sets != 1 {
		t.Fatalf("expected snapshot write, got %d", store.sets)
	}

	cold, err := NewLoader(store, time.Hour).Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := src.loads.Load(); n != 1 {
		t.Fatalf("expected the second loader to use the snapshot, got %d reads", n)
	}
	if cold.Len() != warm.Len() || !cold.Records[1].Timestamp.Equal(warm.Records[1].Timestamp) {
		t.Fatalf("snapshot differs: %+v vs %+v", cold.Records, warm.Records)
	}

	src.fingerprint = "120:2"
	if _, err := NewLoader(store, time.Hour).Load(context.Background(), src); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := src.loads.Load(); n != 2 {
		t.Fatalf("changed fingerprint should force a read, got %d reads", n)
	}
}

func TestLoaderSkipsSnapshotWithoutFingerprint(t *testing.T) {
	store := &mapStore{data: make(map[string][]byte)}
	src := &countingSource{key: "sql:db#cycles"}
	if _, err := NewLoader(store, time.Hour).Load(context.Background(), src); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.sets != 0 {
		t.Fatalf("unexpected snapshot for unfingerprinted source")
	}
}
