package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker serves a JSON health summary of the engine.
type HealthChecker struct {
	mu             sync.RWMutex
	lastCycle      time.Time
	lastEquity     float64
	breakerTripped bool
	isConnected    bool
	lastError      string
}

// HealthStatus is the JSON body of the health endpoint.
type HealthStatus struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	LastCycle      time.Time `json:"last_cycle"`
	LastEquity     float64   `json:"last_equity"`
	BreakerTripped bool      `json:"breaker_tripped"`
	IsConnected    bool      `json:"is_connected"`
	Uptime         string    `json:"uptime"`
	LastError      string    `json:"last_error,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// SetConnected records gateway connectivity.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	h.isConnected = connected
	h.mu.Unlock()
}

// RecordCycle records a completed trading cycle.
func (h *HealthChecker) RecordCycle(equity float64, breakerTripped bool) {
	h.mu.Lock()
	h.lastCycle = time.Now()
	h.lastEquity = equity
	h.breakerTripped = breakerTripped
	h.lastError = ""
	h.mu.Unlock()
}

// RecordError records a cycle-level failure.
func (h *HealthChecker) RecordError(err error) {
	h.mu.Lock()
	h.lastError = err.Error()
	h.mu.Unlock()
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.isConnected {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if h.lastError != "" {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:         status,
		Timestamp:      time.Now(),
		LastCycle:      h.lastCycle,
		LastEquity:     h.lastEquity,
		BreakerTripped: h.breakerTripped,
		IsConnected:    h.isConnected,
		Uptime:         time.Since(startTime).String(),
		LastError:      h.lastError,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
