package cycles

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sync"
	"time"
)

// SnapshotStore is a second-level store for parsed tables, shared between
// processes. Get reports whether dest was filled.
type SnapshotStore interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Loader memoizes tables per source key for the life of the process. A
// key is loaded at most once successfully; failed loads are retried on
// the next call. Returned tables are shared and must not be modified.
type Loader struct {
	snapshots   SnapshotStore
	snapshotTTL time.Duration

	mu      sync.Mutex
	entries map[string]*memoEntry
}

type memoEntry struct {
	mu    sync.Mutex
	table *Table
}

// NewLoader returns a Loader. snapshots may be nil.
func NewLoader(snapshots SnapshotStore, snapshotTTL time.Duration) *Loader {
	return &Loader{
		snapshots:   snapshots,
		snapshotTTL: snapshotTTL,
		entries:     make(map[string]*memoEntry),
	}
}

// LoadSpreadsheet loads the named sheet of a workbook (or a .csv file).
func (l *Loader) LoadSpreadsheet(ctx context.Context, path, sheet string, opts Options) (*Table, error) {
	return l.Load(ctx, NewSpreadsheetSource(path, sheet, opts))
}

// Load returns the memoized table for src, reading it on first use.
func (l *Loader) Load(ctx context.Context, src Source) (*Table, error) {
	key := src.Key()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &memoEntry{}
		l.entries[key] = e
	}
	l.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.table != nil {
		return e.table, nil
	}

	t, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}
	e.table = t
	return t, nil
}

func (l *Loader) read(ctx context.Context, src Source) (*Table, error) {
	snapKey := l.snapshotKey(src)
	if snapKey != "" {
		var t Table
		if l.snapshots.Get(ctx, snapKey, &t) {
			log.Printf("[LOAD] snapshot hit for %s (%d records)", src.Key(), len(t.Records))
			return &t, nil
		}
	}

	t, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	if snapKey != "" {
		if err := l.snapshots.Set(ctx, snapKey, t, l.snapshotTTL); err != nil {
			log.Printf("[LOAD] snapshot write for %s failed: %v", src.Key(), err)
		}
	}
	return t, nil
}

func (l *Loader) snapshotKey(src Source) string {
	if l.snapshots == nil {
		return ""
	}
	fp, ok := src.(Fingerprinter)
	if !ok {
		return ""
	}
	fingerprint, err := fp.Fingerprint()
	if err != nil {
		return ""
	}
	sum := sha256.Sum256([]byte(src.Key() + "|" + fingerprint))
	return "cycles:table:v2:" + hex.EncodeToString(sum[:])
}
