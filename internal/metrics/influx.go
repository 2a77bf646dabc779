package metrics

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// InfluxExporter periodically pushes a Metrics snapshot to InfluxDB as a
// single "ledctl" measurement. Purely additive: if InfluxDB is
// unreachable, exports are logged through onError and otherwise ignored,
// never blocking the render loop.
type InfluxExporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
	onError  func(error)
}

// NewInfluxExporter connects to InfluxDB at url using token, verifying
// reachability with a health check before returning.
func NewInfluxExporter(url, token, org, bucket string, onError func(error)) (*InfluxExporter, error) {
	if onError == nil {
		onError = func(error) {}
	}
	client := influxdb2.NewClient(url, token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influx exporter: connect: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("influx exporter: health check failed: %s", health.Status)
	}

	return &InfluxExporter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		org:      org,
		bucket:   bucket,
		onError:  onError,
	}, nil
}

// Run writes a point on every tick of interval until ctx is cancelled.
func (e *InfluxExporter) Run(ctx context.Context, m *Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.export(ctx, m); err != nil {
				e.onError(err)
			}
		}
	}
}

func (e *InfluxExporter) export(ctx context.Context, m *Metrics) error {
	m.UpdateSystemMetrics()
	snapshot := m.GetMetrics()

	fields := map[string]interface{}{}
	for _, group := range []string{"render", "zones", "system", "api"} {
		inner, ok := snapshot[group].(map[string]interface{})
		if !ok {
			continue
		}
		for k, v := range inner {
			fields[group+"_"+k] = v
		}
	}

	point := write.NewPoint("ledctl", nil, fields, time.Now())
	if err := e.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx exporter: write: %w", err)
	}
	return nil
}

// Close releases the underlying InfluxDB client.
func (e *InfluxExporter) Close() {
	e.client.Close()
}
