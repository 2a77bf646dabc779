package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.startTime.IsZero() {
		t.Error("start time not set")
	}
}

func TestRecordFrame(t *testing.T) {
	m := NewMetrics()
	m.RecordFrame()
	m.RecordFrame()
	if m.FramesRendered != 2 {
		t.Errorf("expected FramesRendered to be 2, got %d", m.FramesRendered)
	}
}

func TestRecordDroppedFrame(t *testing.T) {
	m := NewMetrics()
	m.RecordDroppedFrame()
	if m.FramesDropped != 1 {
		t.Errorf("expected FramesDropped to be 1, got %d", m.FramesDropped)
	}
}

func TestRecordTick(t *testing.T) {
	m := NewMetrics()
	m.RecordTick(59.8, 1500*time.Microsecond)
	if m.FPSMeasured != 59.8 {
		t.Errorf("expected FPSMeasured 59.8, got %v", m.FPSMeasured)
	}
	if m.TickJitterMs != 1.5 {
		t.Errorf("expected TickJitterMs 1.5, got %v", m.TickJitterMs)
	}
}

func TestRecordZoneMutation(t *testing.T) {
	m := NewMetrics()
	m.RecordZoneMutation()
	m.RecordZoneMutation()
	if m.ZoneMutations != 2 {
		t.Errorf("expected ZoneMutations to be 2, got %d", m.ZoneMutations)
	}
}

func TestAnimationCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordAnimationStarted()
	m.RecordAnimationStarted()
	m.RecordAnimationStopped()

	if m.AnimationsStarted != 2 {
		t.Errorf("expected AnimationsStarted to be 2, got %d", m.AnimationsStarted)
	}
	if m.AnimationsStopped != 1 {
		t.Errorf("expected AnimationsStopped to be 1, got %d", m.AnimationsStopped)
	}
}

func TestRecordResponseTime(t *testing.T) {
	m := NewMetrics()

	m.RecordResponseTime(100 * time.Millisecond)
	if m.AvgResponseTime == 0 {
		t.Error("expected AvgResponseTime to be set")
	}

	first := m.AvgResponseTime
	m.RecordResponseTime(200 * time.Millisecond)
	if m.AvgResponseTime == first {
		t.Error("expected AvgResponseTime to change")
	}
}

func TestUpdateSystemMetrics(t *testing.T) {
	m := NewMetrics()
	time.Sleep(10 * time.Millisecond)

	m.UpdateSystemMetrics()

	if m.Uptime == 0 {
		t.Error("expected Uptime to be greater than 0")
	}
	if m.MemoryUsed == 0 {
		t.Error("expected MemoryUsed to be greater than 0")
	}
	if m.GoroutineCount == 0 {
		t.Error("expected GoroutineCount to be greater than 0")
	}
}

func TestGetMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordFrame()
	m.RecordZoneMutation()
	m.RecordAnimationStarted()

	snapshot := m.GetMetrics()
	if snapshot == nil {
		t.Fatal("GetMetrics returned nil")
	}

	render, ok := snapshot["render"].(map[string]interface{})
	if !ok {
		t.Fatal("render not found in metrics")
	}
	if render["frames_rendered"] != int64(1) {
		t.Errorf("expected render.frames_rendered to be 1, got %v", render["frames_rendered"])
	}
}

func TestPrometheusFormat(t *testing.T) {
	m := NewMetrics()
	m.RecordFrame()
	m.RecordZoneMutation()

	out := m.PrometheusFormat()
	if out == "" {
		t.Error("PrometheusFormat returned empty string")
	}
	if !strings.Contains(out, "ledctl_frames_rendered_total") {
		t.Error("expected ledctl_frames_rendered_total in Prometheus output")
	}
	if !strings.Contains(out, "ledctl_zone_mutations_total") {
		t.Error("expected ledctl_zone_mutations_total in Prometheus output")
	}
}

func BenchmarkRecordFrame(b *testing.B) {
	m := NewMetrics()
	for i := 0; i < b.N; i++ {
		m.RecordFrame()
	}
}

func BenchmarkRecordResponseTime(b *testing.B) {
	m := NewMetrics()
	for i := 0; i < b.N; i++ {
		m.RecordResponseTime(100 * time.Millisecond)
	}
}

func BenchmarkGetMetrics(b *testing.B) {
	m := NewMetrics()
	m.RecordFrame()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.GetMetrics()
	}
}
