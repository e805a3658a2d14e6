package engine

import (
	"sort"
	"strings"
	"sync"

	"minidbms/common"
)

// Memory is a map-backed engine. It keeps nothing across restarts and is
// used by tests and by STORAGE_BACKEND=memory.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[string(key)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return append([]byte(nil), val...), nil
}

func (m *Memory) Exists(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *Memory) Delete(key []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[string(key)]; !ok {
		return false, nil
	}
	delete(m.data, string(key))
	return true, nil
}

// IteratePrefix visits matching keys in sorted order, like the badger engine.
func (m *Memory) IteratePrefix(prefix []byte, fn func(k, v []byte) error) error {
	m.mu.RLock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	snapshot := make([][]byte, len(keys))
	for i, k := range keys {
		snapshot[i] = m.data[k]
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) DropPrefix(prefixes ...[]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		for _, prefix := range prefixes {
			if strings.HasPrefix(k, string(prefix)) {
				delete(m.data, k)
				break
			}
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
