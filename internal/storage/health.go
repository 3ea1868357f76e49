package storage

import (
	"sync"
	"time"
)

const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
)

// Health is the outcome of the last write to a storage backend
type Health struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HealthTracker keeps the latest health of every backend in memory
type HealthTracker struct {
	mu     sync.RWMutex
	health map[string]Health
}

// NewHealthTracker creates an empty tracker
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		health: make(map[string]Health),
	}
}

// Record stores the result of a write to the named backend
func (ht *HealthTracker) Record(backend, message string, err error) {
	h := Health{
		LastCheck: time.Now(),
		Status:    HealthHealthy,
		Message:   message,
	}
	if err != nil {
		h.Status = HealthUnhealthy
		h.Error = err.Error()
	}

	ht.mu.Lock()
	defer ht.mu.Unlock()
	ht.health[backend] = h
}

// Get retrieves the health status for a specific backend
func (ht *HealthTracker) Get(backend string) (Health, bool) {
	ht.mu.RLock()
	defer ht.mu.RUnlock()

	h, ok := ht.health[backend]
	return h, ok
}

// All returns a copy of every recorded status
func (ht *HealthTracker) All() map[string]Health {
	ht.mu.RLock()
	defer ht.mu.RUnlock()

	out := make(map[string]Health, len(ht.health))
	for k, v := range ht.health {
		out[k] = v
	}
	return out
}

// IsHealthy reports whether the backend's last write succeeded within maxAge
func (ht *HealthTracker) IsHealthy(backend string, maxAge time.Duration) bool {
	h, ok := ht.Get(backend)
	if !ok {
		return false
	}
	if time.Since(h.LastCheck) > maxAge {
		return false
	}
	return h.Status == HealthHealthy
}
