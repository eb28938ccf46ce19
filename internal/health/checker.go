// Package health aggregates readiness checks of the service dependencies.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	StatusOK          = "ok"
	StatusUnavailable = "unavailable"
)

// Check probes one dependency. It must honor ctx.
type Check func(ctx context.Context) error

// Report is the outcome of one readiness run.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Ready reports whether every check passed.
func (r Report) Ready() bool { return r.Status == StatusOK }

// Checker runs named checks concurrently, each bounded by timeout.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

// NewChecker returns an empty Checker. timeout <= 0 defaults to 2s.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{checks: make(map[string]Check), timeout: timeout}
}

// Add registers check under name, replacing any previous one.
func (c *Checker) Add(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Names returns the registered check names, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for n := range c.checks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run executes all checks. Failure details are reduced to "unavailable" so the report can be
// served publicly.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for n, ch := range c.checks {
		checks[n] = ch
	}
	c.mu.RUnlock()

	rep := Report{Status: StatusOK, Checks: make(map[string]string, len(checks))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			status := StatusOK
			if err := check(cctx); err != nil {
				status = StatusUnavailable
			}
			mu.Lock()
			defer mu.Unlock()
			rep.Checks[name] = status
			if status != StatusOK {
				rep.Status = StatusUnavailable
			}
		}()
	}
	wg.Wait()
	return rep
}
