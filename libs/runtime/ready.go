package runtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
	// Timeout bounds one run of Check. Zero means two seconds.
	Timeout time.Duration
}

func (c ReadyCheck) run(ctx context.Context) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Check(ctx)
}

// runChecks runs every check concurrently and returns failures in check order.
func runChecks(ctx context.Context, checks []ReadyCheck) []string {
	results := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		if check.Check == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = check.run(ctx)
		}()
	}
	wg.Wait()

	var failures []string
	for i, err := range results {
		if err == nil {
			continue
		}
		name := checks[i].Name
		if name == "" {
			name = "dependency"
		}
		failures = append(failures, name+": "+err.Error())
	}
	return failures
}

// NewBaseMuxWithReady serves /healthz (process liveness) and /readyz (all checks pass).
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if failures := runChecks(r.Context(), checks); len(failures) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(strings.Join(failures, "; ")))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
