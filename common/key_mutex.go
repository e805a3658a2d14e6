package common

import (
	"sync"
	"sync/atomic"
)

// KeyMutex hands out one mutex per key. Record writers use it to hold a table
// exclusively across a check-then-put sequence.
type KeyMutex struct {
	mutexes sync.Map
	gcLock  sync.RWMutex
	calls   uint64
}

// Lock acquires the mutex for key and returns its release function.
func (m *KeyMutex) Lock(key string) func() {
	if c := atomic.AddUint64(&m.calls, 1); c%1000 == 0 {
		m.gc()
	}

	for {
		m.gcLock.RLock()
		value, _ := m.mutexes.LoadOrStore(key, &sync.Mutex{})
		m.gcLock.RUnlock()

		mtx := value.(*sync.Mutex)
		mtx.Lock()
		// gc may have dropped this mutex before we got it; start over with
		// whatever the map holds now.
		if cur, ok := m.mutexes.Load(key); ok && cur == value {
			return mtx.Unlock
		}
		mtx.Unlock()
	}
}

// gc drops mutexes nobody holds so the map does not grow with every table ever touched.
func (m *KeyMutex) gc() {
	m.gcLock.Lock()
	defer m.gcLock.Unlock()
	m.mutexes.Range(func(key, value any) bool {
		if mtx := value.(*sync.Mutex); mtx.TryLock() {
			m.mutexes.Delete(key)
			mtx.Unlock()
		}
		return true
	})
}
