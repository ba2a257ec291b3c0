package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeMetrics records process resource usage while a run is in flight
type RuntimeMetrics struct {
	goRoutines    metric.Int64Gauge
	heapInUse     metric.Int64Gauge
	memorySystem  metric.Int64Gauge
	processUptime metric.Float64Gauge
}

// RuntimeStats is one sample of process resource usage
type RuntimeStats struct {
	GoRoutines    int64     `json:"goroutines"`
	HeapInUse     int64     `json:"heap_in_use_bytes"`
	TotalAlloc    int64     `json:"total_alloc_bytes"`
	MemorySystem  int64     `json:"memory_system_bytes"`
	GCCount       uint32    `json:"gc_count"`
	CPUCount      int       `json:"cpu_count"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewRuntimeMetrics creates the runtime gauges on meter
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	goRoutines, err := meter.Int64Gauge(
		"kronos_goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, fmt.Errorf("create goroutine gauge: %w", err)
	}

	heapInUse, err := meter.Int64Gauge(
		"kronos_heap_in_use_bytes",
		metric.WithDescription("Heap memory in use in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create heap gauge: %w", err)
	}

	memorySystem, err := meter.Int64Gauge(
		"kronos_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create system memory gauge: %w", err)
	}

	processUptime, err := meter.Float64Gauge(
		"kronos_uptime_seconds",
		metric.WithDescription("Seconds since the run started"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create uptime gauge: %w", err)
	}

	return &RuntimeMetrics{
		goRoutines:    goRoutines,
		heapInUse:     heapInUse,
		memorySystem:  memorySystem,
		processUptime: processUptime,
	}, nil
}

// Collect samples the runtime and records the gauges. A nil receiver only
// samples.
func (rm *RuntimeMetrics) Collect(ctx context.Context, startTime time.Time) RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := RuntimeStats{
		GoRoutines:    int64(runtime.NumGoroutine()),
		HeapInUse:     int64(memStats.HeapInuse),
		TotalAlloc:    int64(memStats.TotalAlloc),
		MemorySystem:  int64(memStats.Sys),
		GCCount:       memStats.NumGC,
		CPUCount:      runtime.NumCPU(),
		UptimeSeconds: time.Since(startTime).Seconds(),
		Timestamp:     time.Now().UTC(),
	}

	if rm != nil {
		rm.goRoutines.Record(ctx, stats.GoRoutines)
		rm.heapInUse.Record(ctx, stats.HeapInUse)
		rm.memorySystem.Record(ctx, stats.MemorySystem)
		rm.processUptime.Record(ctx, stats.UptimeSeconds)
	}
	return stats
}
