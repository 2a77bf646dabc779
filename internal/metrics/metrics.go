// Package metrics tracks render-loop and API counters and exposes them as
// both a JSON snapshot and a Prometheus-formatted scrape, grounded in the
// teacher's Metrics struct and gofiber middleware.
package metrics

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Metrics is the process-wide counter set.
type Metrics struct {
	// Render-loop metrics.
	FramesRendered   int64 `json:"frames_rendered"`
	FramesDropped    int64 `json:"frames_dropped"`
	FPSMeasured      float64 `json:"fps_measured"`
	TickJitterMs     float64 `json:"tick_jitter_ms"`

	// Zone/animation metrics.
	ZoneMutations     int64 `json:"zone_mutations"`
	AnimationsStarted int64 `json:"animations_started"`
	AnimationsStopped int64 `json:"animations_stopped"`
	TransitionsActive int64 `json:"transitions_active"`

	// System metrics.
	Uptime         int64   `json:"uptime_seconds"`
	MemoryUsed     uint64  `json:"memory_used_bytes"`
	MemoryTotal    uint64  `json:"memory_total_bytes"`
	GoroutineCount int     `json:"goroutine_count"`

	// API metrics.
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	AvgResponseTime float64 `json:"avg_response_time_ms"`

	mu        sync.RWMutex
	startTime time.Time
}

// NewMetrics builds a Metrics set with its uptime clock started now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// RecordFrame counts a frame successfully dispatched to a strip driver.
func (m *Metrics) RecordFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FramesRendered++
}

// RecordDroppedFrame counts a frame dropped because a strip worker was
// still busy applying the previous one (queue is newest-wins).
func (m *Metrics) RecordDroppedFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FramesDropped++
}

// RecordTick updates the measured fps and tick-to-tick jitter from the
// pipeline's tick loop.
func (m *Metrics) RecordTick(fps float64, jitter time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FPSMeasured = fps
	m.TickJitterMs = float64(jitter.Microseconds()) / 1000.0
}

// RecordZoneMutation counts one zone state change.
func (m *Metrics) RecordZoneMutation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ZoneMutations++
}

// RecordAnimationStarted counts one animation run starting.
func (m *Metrics) RecordAnimationStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AnimationsStarted++
}

// RecordAnimationStopped counts one animation run stopping.
func (m *Metrics) RecordAnimationStopped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AnimationsStopped++
}

// SetTransitionsActive records the current count of in-flight fades.
func (m *Metrics) SetTransitionsActive(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionsActive = int64(n)
}

// IncrementRequests counts one inbound API/websocket request.
func (m *Metrics) IncrementRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRequests++
}

// IncrementErrors counts one failed API/websocket request.
func (m *Metrics) IncrementErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalErrors++
}

// RecordResponseTime folds duration into an exponential moving average.
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms := float64(duration.Milliseconds())
	if m.AvgResponseTime == 0 {
		m.AvgResponseTime = ms
	} else {
		m.AvgResponseTime = (m.AvgResponseTime * 0.9) + (ms * 0.1)
	}
}

// UpdateSystemMetrics refreshes uptime, memory, and goroutine counters.
func (m *Metrics) UpdateSystemMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Uptime = int64(time.Since(m.startTime).Seconds())

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.MemoryUsed = memStats.Alloc
	m.MemoryTotal = memStats.Sys

	m.GoroutineCount = runtime.NumGoroutine()
}

// GetMetrics returns a JSON-friendly snapshot of every counter.
func (m *Metrics) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"render": map[string]interface{}{
			"frames_rendered": m.FramesRendered,
			"frames_dropped":  m.FramesDropped,
			"fps_measured":    m.FPSMeasured,
			"tick_jitter_ms":  m.TickJitterMs,
		},
		"zones": map[string]interface{}{
			"mutations":           m.ZoneMutations,
			"animations_started":  m.AnimationsStarted,
			"animations_stopped":  m.AnimationsStopped,
			"transitions_active":  m.TransitionsActive,
		},
		"system": map[string]interface{}{
			"uptime_seconds":     m.Uptime,
			"memory_used_bytes":  m.MemoryUsed,
			"memory_total_bytes": m.MemoryTotal,
			"memory_used_mb":     m.MemoryUsed / 1024 / 1024,
			"goroutines":         m.GoroutineCount,
		},
		"api": map[string]interface{}{
			"total_requests":       m.TotalRequests,
			"total_errors":         m.TotalErrors,
			"avg_response_time_ms": m.AvgResponseTime,
			"error_rate": func() float64 {
				if m.TotalRequests == 0 {
					return 0.0
				}
				return float64(m.TotalErrors) / float64(m.TotalRequests) * 100
			}(),
		},
	}
}

// PrometheusFormat renders every counter as Prometheus exposition text.
func (m *Metrics) PrometheusFormat() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return `# HELP ledctl_frames_rendered_total Total frames dispatched to strip drivers
# TYPE ledctl_frames_rendered_total counter
ledctl_frames_rendered_total ` + formatInt64(m.FramesRendered) + `

# HELP ledctl_frames_dropped_total Total frames dropped because a strip worker was busy
# TYPE ledctl_frames_dropped_total counter
ledctl_frames_dropped_total ` + formatInt64(m.FramesDropped) + `

# HELP ledctl_fps_measured Measured render loop frames per second
# TYPE ledctl_fps_measured gauge
ledctl_fps_measured ` + formatFloat64(m.FPSMeasured) + `

# HELP ledctl_tick_jitter_ms Tick-to-tick jitter in milliseconds
# TYPE ledctl_tick_jitter_ms gauge
ledctl_tick_jitter_ms ` + formatFloat64(m.TickJitterMs) + `

# HELP ledctl_zone_mutations_total Total zone state mutations
# TYPE ledctl_zone_mutations_total counter
ledctl_zone_mutations_total ` + formatInt64(m.ZoneMutations) + `

# HELP ledctl_animations_started_total Total animation runs started
# TYPE ledctl_animations_started_total counter
ledctl_animations_started_total ` + formatInt64(m.AnimationsStarted) + `

# HELP ledctl_uptime_seconds Uptime in seconds
# TYPE ledctl_uptime_seconds gauge
ledctl_uptime_seconds ` + formatInt64(m.Uptime) + `

# HELP ledctl_memory_used_bytes Memory used in bytes
# TYPE ledctl_memory_used_bytes gauge
ledctl_memory_used_bytes ` + formatUint64(m.MemoryUsed) + `

# HELP ledctl_goroutines Number of goroutines
# TYPE ledctl_goroutines gauge
ledctl_goroutines ` + formatInt(m.GoroutineCount) + `

# HELP ledctl_api_requests_total Total number of API requests
# TYPE ledctl_api_requests_total counter
ledctl_api_requests_total ` + formatInt64(m.TotalRequests) + `

# HELP ledctl_api_errors_total Total number of API errors
# TYPE ledctl_api_errors_total counter
ledctl_api_errors_total ` + formatInt64(m.TotalErrors) + `

# HELP ledctl_api_response_time_ms Average API response time in milliseconds
# TYPE ledctl_api_response_time_ms gauge
ledctl_api_response_time_ms ` + formatFloat64(m.AvgResponseTime) + `
`
}

// Middleware records request counts, error counts, and response latency
// for every fiber-routed HTTP request.
func Middleware(m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		m.IncrementRequests()

		err := c.Next()

		m.RecordResponseTime(time.Since(start))

		if c.Response().StatusCode() >= 400 {
			m.IncrementErrors()
		}

		return err
	}
}

func formatInt64(n int64) string   { return fmt.Sprintf("%d", n) }
func formatUint64(n uint64) string { return fmt.Sprintf("%d", n) }
func formatInt(n int) string       { return fmt.Sprintf("%d", n) }
func formatFloat64(n float64) string { return fmt.Sprintf("%.2f", n) }
