// Package redistest provides an in-process KV for tests.
package redistest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Alijeyrad/clinic_backend/pkg/redis"
)

type entry struct {
	value   string
	expires time.Time
}

// ErrInjected is returned by operations a test asked to fail.
var ErrInjected = errors.New("redistest: injected failure")

// Memory is a map-backed redis.KV honoring TTLs against Now.
type Memory struct {
	mu   sync.Mutex
	data map[string]entry
	Now  func() time.Time

	FailDelete bool
}

var _ redis.KV = (*Memory)(nil)

func New() *Memory {
	return &Memory{data: make(map[string]entry), Now: time.Now}
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expires = m.Now().Add(ttl)
	}
	m.data[key] = e
	return nil
}

func (m *Memory) get(key string) (entry, bool) {
	e, ok := m.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && !m.Now().Before(e.expires) {
		delete(m.data, key)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(key)
	if !ok {
		return "", redis.ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) Take(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(key)
	if !ok {
		return "", redis.ErrNotFound
	}
	delete(m.data, key)
	return e.value, nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete {
		return ErrInjected
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Len returns the number of live keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.data {
		if _, ok := m.get(k); ok {
			n++
		}
	}
	return n
}
