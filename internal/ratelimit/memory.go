package ratelimit

import (
	"context"
	"sync"
	"time"
)

// evictEvery bounds how often Allow scans for finished windows.
const evictEvery = time.Minute

type counter struct {
	start time.Time
	end   time.Time
	count int64
}

// Memory is a process-local limiter. Counters are dropped once their window has passed.
type Memory struct {
	mu        sync.Mutex
	counters  map[string]*counter
	lastEvict time.Time
	now       func() time.Time
}

// NewMemory returns an empty in-process limiter.
func NewMemory() *Memory {
	return &Memory{counters: make(map[string]*counter), now: time.Now}
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, rule Rule, key string) (Result, error) {
	now := m.now()
	start := windowStart(now, rule.Window)
	k := rule.Name + ":" + key

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastEvict) >= evictEvery {
		m.evictLocked(now)
	}
	c, ok := m.counters[k]
	if !ok || !c.start.Equal(start) {
		c = &counter{start: start, end: start.Add(rule.Window)}
		m.counters[k] = c
	}
	c.count++
	return result(c.count, rule, now), nil
}

func (m *Memory) evictLocked(now time.Time) {
	m.lastEvict = now
	for k, c := range m.counters {
		if !now.Before(c.end) {
			delete(m.counters, k)
		}
	}
}

// size reports the number of live counters.
func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}
