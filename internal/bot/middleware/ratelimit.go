package middleware

import (
	"sync"
	"time"
)

// RateLimiter ограничивает количество запросов на ключ (обычно Telegram user id).
// Использует алгоритм скользящего окна.
type RateLimiter[K comparable] struct {
	mu       sync.Mutex
	requests map[K][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter создаёт лимитер и запускает фоновую очистку.
// limit <= 0 — без ограничений.
func NewRateLimiter[K comparable](limit int, window time.Duration) *RateLimiter[K] {
	rl := &RateLimiter[K]{
		requests: make(map[K][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanup(5 * time.Minute)
	return rl
}

// Close останавливает фоновую горутину очистки.
// Его надо вызывать на shutdown (иначе cleanup будет жить вечно).
func (rl *RateLimiter[K]) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow регистрирует запрос и сообщает, укладывается ли он в лимит.
func (rl *RateLimiter[K]) Allow(key K) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.recent(key, now.Add(-rl.window))

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}

	rl.requests[key] = append(recent, now)
	return true
}

// Remaining — сколько запросов ещё можно сделать в текущем окне.
func (rl *RateLimiter[K]) Remaining(key K) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	left := rl.limit - len(rl.recent(key, rl.now().Add(-rl.window)))
	if left < 0 {
		return 0
	}
	return left
}

// recent возвращает запросы ключа после cutoff. Вызывается под rl.mu.
func (rl *RateLimiter[K]) recent(key K, cutoff time.Time) []time.Time {
	var out []time.Time
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (rl *RateLimiter[K]) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key := range rl.requests {
		if recent := rl.recent(key, cutoff); len(recent) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = recent
		}
	}
}

func (rl *RateLimiter[K]) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}
