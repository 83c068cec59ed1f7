package dto

import "time"

// HealthCheck is the result of one dependency probe
type HealthCheck struct {
	Status    string `json:"status"` // up, down, not_configured
	LatencyMS int64  `json:"latency_ms"`
}

type MemoryStats struct {
	AllocMB      uint64 `json:"alloc_mb"`
	SysMB        uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
	NumGoroutine int    `json:"num_goroutine"`
}

// HealthResponse overall status is healthy or degraded
type HealthResponse struct {
	Status    string                  `json:"status"`
	Checks    map[string]*HealthCheck `json:"checks"`
	Memory    MemoryStats             `json:"memory"`
	Timestamp time.Time               `json:"timestamp"`
}
