package storage

import (
	"context"
	"sync"
	"time"

	"support-dojo/server/internal/interfaces"
)

type memEntry struct {
	value     string
	expiresAt time.Time // zero means no expiration
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemKV is the in-memory KVStore used in tests and when redis is
// unreachable. Expired entries are dropped lazily on read and swept by a
// janitor goroutine when started with NewMemKV.
type MemKV struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	stop    chan struct{}
}

// NewMemKV creates a store with a background sweep every minute.
func NewMemKV() *MemKV {
	kv := &MemKV{
		entries: make(map[string]memEntry),
		stop:    make(chan struct{}),
	}
	go kv.janitor(time.Minute)
	return kv
}

// NewMemKVNoJanitor creates a store without the background sweep; expired
// entries are still invisible to Get.
func NewMemKVNoJanitor() *MemKV {
	return &MemKV{entries: make(map[string]memEntry)}
}

func (kv *MemKV) Get(_ context.Context, key string) (string, error) {
	kv.mu.RLock()
	entry, ok := kv.entries[key]
	kv.mu.RUnlock()

	if !ok {
		return "", interfaces.ErrNotFound
	}
	if entry.expired(time.Now()) {
		kv.mu.Lock()
		delete(kv.entries, key)
		kv.mu.Unlock()
		return "", interfaces.ErrNotFound
	}
	return entry.value, nil
}

func (kv *MemKV) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	entry := memEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	kv.mu.Lock()
	kv.entries[key] = entry
	kv.mu.Unlock()
	return nil
}

func (kv *MemKV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	delete(kv.entries, key)
	kv.mu.Unlock()
	return nil
}

// Len reports the number of live entries.
func (kv *MemKV) Len() int {
	now := time.Now()
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	n := 0
	for _, e := range kv.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Close stops the janitor if one is running.
func (kv *MemKV) Close() error {
	if kv.stop != nil {
		close(kv.stop)
		kv.stop = nil
	}
	return nil
}

func (kv *MemKV) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-kv.stop:
			return
		case now := <-ticker.C:
			kv.mu.Lock()
			for key, entry := range kv.entries {
				if entry.expired(now) {
					delete(kv.entries, key)
				}
			}
			kv.mu.Unlock()
		}
	}
}

var _ interfaces.KVStore = (*MemKV)(nil)
