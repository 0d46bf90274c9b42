package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter: fixed window en memoria, mismo algoritmo que RedisLimiter.
// Para dev/tests y deploys de un solo proceso. El mutex garantiza que dos
// requests simultáneos no puedan colar ambos cuando queda un solo cupo.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu      sync.Mutex
	windows map[string]*memWindow
}

type memWindow struct {
	start time.Time
	hits  int64
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:     int64(max),
		Window:  window,
		windows: make(map[string]*memWindow),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)

	l.mu.Lock()
	w, ok := l.windows[key]
	if !ok || !w.start.Equal(winStart) {
		// ventana nueva; la anterior queda descartada
		w = &memWindow{start: winStart}
		l.windows[key] = w
	}
	w.hits++
	hits := w.hits
	l.mu.Unlock()

	ttl := winStart.Add(l.Window).Sub(now)
	allowed := hits <= l.Max
	remaining := l.Max - hits
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if !allowed {
		res.RetryAfter = ttl
	}
	return res, nil
}

// Cleanup descarta ventanas viejas. Llamar cada tanto si el proceso vive mucho.
func (l *MemoryLimiter) Cleanup() {
	now := time.Now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.windows {
		if now.Sub(w.start) > 2*l.Window {
			delete(l.windows, k)
		}
	}
}
