package metrics

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// MetricsManager owns the Prometheus registry and the system/runtime gauges.
type MetricsManager struct {
	systemCPUUsage    *prometheus.GaugeVec
	systemMemoryUsage *prometheus.GaugeVec

	goGoroutines prometheus.Gauge
	goHeapAlloc  prometheus.Gauge
	goHeapSys    prometheus.Gauge

	registry *prometheus.Registry

	initialized bool
	mu          sync.RWMutex
}

var (
	instance *MetricsManager
	once     sync.Once
)

// GetInstance returns the singleton MetricsManager.
func GetInstance() *MetricsManager {
	once.Do(func() {
		instance = &MetricsManager{
			registry: prometheus.NewRegistry(),
		}
	})
	return instance
}

// InitializeMetrics registers the system and runtime gauges (thread-safe).
func (mm *MetricsManager) InitializeMetrics() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.initialized {
		return
	}

	mm.systemCPUUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "system_cpu_usage_percent",
			Help: "Current CPU usage percentage",
		},
		[]string{"core"},
	)

	mm.systemMemoryUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "system_memory_usage_bytes",
			Help: "Current memory usage in bytes",
		},
		[]string{"type"},
	)

	mm.goGoroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_goroutines",
			Help: "Number of goroutines that currently exist",
		},
	)

	mm.goHeapAlloc = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_heap_alloc_bytes",
			Help: "Heap memory usage in bytes",
		},
	)

	mm.goHeapSys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_heap_sys_bytes",
			Help: "Heap memory reserved in bytes",
		},
	)

	mm.registry.MustRegister(
		mm.systemCPUUsage,
		mm.systemMemoryUsage,
		mm.goGoroutines,
		mm.goHeapAlloc,
		mm.goHeapSys,
	)

	mm.initialized = true
}

// GetRegistry returns the Prometheus registry. The registry exists before
// any collector is registered, so exposing it is always safe; an
// uninitialized registry just gathers nothing.
func GetRegistry() *prometheus.Registry {
	return GetInstance().registry
}

// StartSystemMetrics starts periodic collection of system metrics.
func StartSystemMetrics(interval time.Duration) {
	if os.Getenv("ENABLE_SYSTEM_METRICS") != "true" {
		return
	}

	mm := GetInstance()
	mm.InitializeMetrics()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			mm.collectSystemMetrics()
			mm.collectGoRuntimeMetrics()
		}
	}()
}

func (mm *MetricsManager) collectSystemMetrics() {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	if !mm.initialized {
		return
	}

	if cpuPercentages, err := cpu.Percent(0, true); err == nil {
		for i, percentage := range cpuPercentages {
			mm.systemCPUUsage.WithLabelValues(fmt.Sprintf("cpu%d", i)).Set(percentage)
		}
	}

	if vmstat, err := mem.VirtualMemory(); err == nil {
		mm.systemMemoryUsage.WithLabelValues("total").Set(float64(vmstat.Total))
		mm.systemMemoryUsage.WithLabelValues("available").Set(float64(vmstat.Available))
		mm.systemMemoryUsage.WithLabelValues("used").Set(float64(vmstat.Used))
	}
}

func (mm *MetricsManager) collectGoRuntimeMetrics() {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	if !mm.initialized {
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.goGoroutines.Set(float64(runtime.NumGoroutine()))
	mm.goHeapAlloc.Set(float64(m.HeapAlloc))
	mm.goHeapSys.Set(float64(m.HeapSys))
}
