package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/qs3c/bible_search_server/internal/model/dto"
)

const (
	HealthUp            = "up"
	HealthDown          = "down"
	HealthNotConfigured = "not_configured"

	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// ErrNotConfigured marks a probe whose dependency is switched off
var ErrNotConfigured = errors.New("not configured")

// ProbeFunc checks one dependency within ctx
type ProbeFunc func(ctx context.Context) error

type probe struct {
	name     string
	critical bool
	fn       ProbeFunc
}

// HealthService runs dependency probes concurrently under one deadline
type HealthService struct {
	probes  []probe
	timeout time.Duration
	log     *logrus.Logger
}

func NewHealthService(timeout time.Duration, log *logrus.Logger) *HealthService {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthService{timeout: timeout, log: log}
}

// AddProbe registers a check. A failing critical probe makes the whole
// service unavailable; others only degrade it.
func (s *HealthService) AddProbe(name string, critical bool, fn ProbeFunc) {
	s.probes = append(s.probes, probe{name: name, critical: critical, fn: fn})
}

// Check runs every probe and reports whether the service can take traffic
func (s *HealthService) Check(ctx context.Context) (*dto.HealthResponse, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp := &dto.HealthResponse{
		Status:    StatusHealthy,
		Checks:    make(map[string]*dto.HealthCheck, len(s.probes)),
		Timestamp: time.Now().UTC(),
	}
	available := true

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range s.probes {
		p := p
		g.Go(func() error {
			start := time.Now()
			err := runProbe(gctx, p.fn)
			check := &dto.HealthCheck{Status: HealthUp, LatencyMS: time.Since(start).Milliseconds()}

			switch {
			case errors.Is(err, ErrNotConfigured):
				check.Status = HealthNotConfigured
			case err != nil:
				check.Status = HealthDown
				s.log.WithError(err).WithField("probe", p.name).Warn("health probe failed")
			}

			mu.Lock()
			defer mu.Unlock()
			resp.Checks[p.name] = check
			if check.Status == HealthDown {
				resp.Status = StatusDegraded
				if p.critical {
					available = false
				}
			}
			// only the shared deadline fails the group, a check's own error does not
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return fmt.Errorf("%s: %w", p.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.WithError(err).WithField("timeout", s.timeout).Warn("health check cut short")
	}

	resp.Memory = memoryStats()
	return resp, available
}

// runProbe returns when fn does or when ctx expires, whichever is first
func runProbe(ctx context.Context, fn ProbeFunc) error {
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func memoryStats() dto.MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return dto.MemoryStats{
		AllocMB:      m.Alloc / 1024 / 1024,
		SysMB:        m.Sys / 1024 / 1024,
		NumGC:        m.NumGC,
		NumGoroutine: runtime.NumGoroutine(),
	}
}
