// Package health runs component checks for the health command and the
// watch-mode /healthz endpoint.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "HEALTHY"
	StatusDegraded  Status = "DEGRADED"
	StatusUnhealthy Status = "UNHEALTHY"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	LastCheck time.Time              `json:"last_check"`
	Latency   time.Duration          `json:"latency"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Check reports the health of one component.
type Check func(ctx context.Context) ComponentHealth

// SystemHealth is the combined result of every check.
type SystemHealth struct {
	Status     Status            `json:"status"`
	Uptime     time.Duration     `json:"uptime"`
	Components []ComponentHealth `json:"components"`
	Goroutines int               `json:"goroutines"`
}

// Monitor runs registered checks on demand.
type Monitor struct {
	mu         sync.RWMutex
	checks     map[string]Check
	timeout    time.Duration
	startTime  time.Time
	lastResult SystemHealth
}

// NewMonitor creates a Monitor. Each run is bounded by timeout.
func NewMonitor(timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Monitor{
		checks:    make(map[string]Check),
		timeout:   timeout,
		startTime: time.Now(),
	}
}

// Register adds a check for a component.
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Run executes every check concurrently. The overall status is the worst
// component status.
func (m *Monitor) Run(ctx context.Context) SystemHealth {
	m.mu.RLock()
	checks := make(map[string]Check, len(m.checks))
	for k, v := range m.checks {
		checks[k] = v
	}
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan ComponentHealth, len(checks))
	for name, check := range checks {
		wg.Add(1)
		go func(n string, c Check) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results <- ComponentHealth{Name: n, Status: StatusUnhealthy, Message: fmt.Sprintf("check panicked: %v", r), LastCheck: time.Now()}
				}
			}()

			start := time.Now()
			h := c(ctx)
			h.Name = n
			h.LastCheck = time.Now()
			if h.Latency == 0 {
				h.Latency = time.Since(start)
			}
			results <- h
		}(name, check)
	}
	wg.Wait()
	close(results)

	out := SystemHealth{
		Status:     StatusHealthy,
		Uptime:     time.Since(m.startTime),
		Goroutines: runtime.NumGoroutine(),
	}
	for h := range results {
		out.Components = append(out.Components, h)
		switch {
		case h.Status == StatusUnhealthy:
			out.Status = StatusUnhealthy
		case h.Status == StatusDegraded && out.Status == StatusHealthy:
			out.Status = StatusDegraded
		}
	}
	sort.Slice(out.Components, func(i, j int) bool { return out.Components[i].Name < out.Components[j].Name })

	m.mu.Lock()
	m.lastResult = out
	m.mu.Unlock()
	return out
}

// Last returns the result of the most recent Run.
func (m *Monitor) Last() SystemHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastResult
}

// Handler serves the result of a fresh Run. Degraded still answers 200.
func (m *Monitor) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := m.Run(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if h.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(h)
	})
}

// APICheck reports a remote dependency. Calls slower than slow are degraded.
func APICheck(slow time.Duration, check func(ctx context.Context) (map[string]interface{}, error)) Check {
	return func(ctx context.Context) ComponentHealth {
		start := time.Now()
		details, err := check(ctx)
		h := ComponentHealth{Latency: time.Since(start), Details: details}

		switch {
		case err != nil:
			h.Status = StatusUnhealthy
			h.Message = err.Error()
		case slow > 0 && h.Latency > slow:
			h.Status = StatusDegraded
			h.Message = fmt.Sprintf("slow: %v", h.Latency.Round(time.Millisecond))
		default:
			h.Status = StatusHealthy
		}
		return h
	}
}

// StoreCheck reports whether a store can be read.
func StoreCheck(read func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := read(ctx); err != nil {
			return ComponentHealth{Status: StatusUnhealthy, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusHealthy}
	}
}
