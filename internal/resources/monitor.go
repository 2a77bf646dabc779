// Package resources tracks system memory, disk, and CPU usage and reacts
// to resource pressure.
package resources

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"
)

// ResourceStats is one sample of the system's resource usage.
type ResourceStats struct {
	MemoryTotal     uint64    `json:"memory_total"`
	MemoryUsed      uint64    `json:"memory_used"`
	MemoryAvailable uint64    `json:"memory_available"`
	MemoryPercent   float64   `json:"memory_percent"`
	DiskTotal       uint64    `json:"disk_total"`
	DiskUsed        uint64    `json:"disk_used"`
	DiskAvailable   uint64    `json:"disk_available"`
	DiskPercent     float64   `json:"disk_percent"`
	CPUCores        int       `json:"cpu_cores"`
	GoroutineCount  int       `json:"goroutine_count"`
	Timestamp       time.Time `json:"timestamp"`

	SysInfo SystemInfo `json:"sys_info"`
}

// ResourceLimits bounds the automatic reactions Monitor takes under
// pressure.
type ResourceLimits struct {
	MemoryHardLimit        uint64
	LowMemoryThreshold     uint64
	AutoDisableOnLowMemory bool
}

// Monitor periodically samples system resources and can disable
// non-essential animation runs under memory pressure, so a Raspberry
// Pi Zero doesn't get OOM-killed mid-show.
type Monitor struct {
	limits       ResourceLimits
	currentStats ResourceStats
	mu           sync.RWMutex

	onLowMemory  func()
	onHighMemory func()
	onDiskFull   func()
}

// NewMonitor builds a Monitor with the given limits.
func NewMonitor(limits ResourceLimits) *Monitor {
	return &Monitor{limits: limits}
}

// Start runs periodic sampling until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Update()
			m.checkLimits()
		}
	}
}

// Update refreshes the current sample.
func (m *Monitor) Update() {
	stats := m.getSystemStats()

	m.mu.Lock()
	m.currentStats = stats
	m.mu.Unlock()
}

// GetStats returns the most recent sample.
func (m *Monitor) GetStats() ResourceStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentStats
}

func (m *Monitor) getSystemStats() ResourceStats {
	sysInfo := GetSystemInfo()

	stats := ResourceStats{
		Timestamp:      time.Now(),
		CPUCores:       runtime.NumCPU(),
		GoroutineCount: runtime.NumGoroutine(),
		SysInfo:        sysInfo,
	}

	if sysInfo.OSMemTotal > 0 {
		stats.MemoryTotal = sysInfo.OSMemTotal
		stats.MemoryUsed = sysInfo.OSMemUsed
		stats.MemoryAvailable = sysInfo.OSMemAvailable
		stats.MemoryPercent = sysInfo.OSMemPercent
	} else {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		stats.MemoryUsed = memStats.Alloc
		stats.MemoryTotal = memStats.Sys
		if stats.MemoryTotal > 0 {
			stats.MemoryPercent = float64(stats.MemoryUsed) / float64(stats.MemoryTotal) * 100
		}
	}

	diskStats := GetDiskUsage("/")
	if diskStats.Total > 0 {
		stats.DiskTotal = diskStats.Total
		stats.DiskUsed = diskStats.Used
		stats.DiskAvailable = diskStats.Available
		stats.DiskPercent = diskStats.Percent
	}

	return stats
}

// DiskStats holds disk usage statistics.
type DiskStats struct {
	Total     uint64
	Used      uint64
	Available uint64
	Percent   float64
}

func (m *Monitor) checkLimits() {
	stats := m.GetStats()

	if m.limits.AutoDisableOnLowMemory && stats.MemoryAvailable < m.limits.LowMemoryThreshold {
		log.Printf("[WARN] low memory detected: %dMB available (threshold: %dMB)",
			stats.MemoryAvailable/1024/1024,
			m.limits.LowMemoryThreshold/1024/1024)

		if m.onLowMemory != nil {
			m.onLowMemory()
		}
	}

	if stats.MemoryAvailable > m.limits.LowMemoryThreshold*2 {
		if m.onHighMemory != nil {
			m.onHighMemory()
		}
	}

	if stats.DiskPercent > 95 {
		log.Printf("[WARN] disk nearly full: %.1f%% used", stats.DiskPercent)
		if m.onDiskFull != nil {
			m.onDiskFull()
		}
	}

	if m.limits.MemoryHardLimit > 0 && stats.MemoryUsed > m.limits.MemoryHardLimit {
		log.Printf("[CRITICAL] hard memory limit exceeded: %dMB used (limit: %dMB)",
			stats.MemoryUsed/1024/1024,
			m.limits.MemoryHardLimit/1024/1024)
		runtime.GC()
	}
}

// CanStartAnimation reports whether starting a new animation run is safe
// given current memory headroom.
func (m *Monitor) CanStartAnimation(estimatedBytes uint64) (bool, string) {
	stats := m.GetStats()

	if stats.MemoryAvailable < estimatedBytes {
		return false, fmt.Sprintf(
			"insufficient memory: need %dKB, have %dKB",
			estimatedBytes/1024,
			stats.MemoryAvailable/1024,
		)
	}
	return true, ""
}

// SetOnLowMemory registers the low-memory reaction, typically
// Engine.StopAll for non-essential animation runs.
func (m *Monitor) SetOnLowMemory(callback func()) { m.onLowMemory = callback }

// SetOnHighMemory registers the recovery callback once memory returns
// above twice the low-memory threshold.
func (m *Monitor) SetOnHighMemory(callback func()) { m.onHighMemory = callback }

// SetOnDiskFull registers the reaction to the snapshot/log disk filling
// up, typically forcing an immediate snapshot flush.
func (m *Monitor) SetOnDiskFull(callback func()) { m.onDiskFull = callback }

// ForceGC triggers an immediate garbage collection and logs memory freed.
func (m *Monitor) ForceGC() {
	before := m.GetStats()

	runtime.GC()

	time.Sleep(100 * time.Millisecond)
	after := m.getSystemStats()

	freed := int64(before.MemoryUsed) - int64(after.MemoryUsed)
	log.Printf("[GC] garbage collection: freed %dKB", freed/1024)
}

// GetResourceReport returns a JSON-friendly snapshot of the current
// sample and configured limits.
func (m *Monitor) GetResourceReport() map[string]interface{} {
	stats := m.GetStats()

	return map[string]interface{}{
		"timestamp": stats.Timestamp,
		"memory": map[string]interface{}{
			"total_mb":     stats.MemoryTotal / 1024 / 1024,
			"used_mb":      stats.MemoryUsed / 1024 / 1024,
			"available_mb": stats.MemoryAvailable / 1024 / 1024,
			"percent":      fmt.Sprintf("%.1f%%", stats.MemoryPercent),
		},
		"disk": map[string]interface{}{
			"total_mb":     stats.DiskTotal / 1024 / 1024,
			"used_mb":      stats.DiskUsed / 1024 / 1024,
			"available_mb": stats.DiskAvailable / 1024 / 1024,
			"percent":      fmt.Sprintf("%.1f%%", stats.DiskPercent),
		},
		"cpu": map[string]interface{}{
			"cores":      stats.CPUCores,
			"goroutines": stats.GoroutineCount,
		},
		"limits": map[string]interface{}{
			"memory_hard_limit_mb":    m.limits.MemoryHardLimit / 1024 / 1024,
			"low_memory_threshold_mb": m.limits.LowMemoryThreshold / 1024 / 1024,
		},
	}
}
