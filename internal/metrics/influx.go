// Package metrics records operational events. Domain events (uploads,
// annotation writes) go to InfluxDB when configured; HTTP request counts
// are instrumented through the OpenTelemetry metric API so any SDK the
// host process installs picks them up.
package metrics

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Recorder accepts domain events. The zero-value NopRecorder discards them,
// so callers never need to check whether metrics are enabled.
type Recorder interface {
	// RecordEvent writes one measurement with the given tags and fields.
	RecordEvent(measurement string, tags map[string]string, fields map[string]interface{})
}

// NopRecorder discards all events.
type NopRecorder struct{}

// RecordEvent implements Recorder.
func (NopRecorder) RecordEvent(string, map[string]string, map[string]interface{}) {}

// InfluxRecorder writes events to an InfluxDB bucket using the async write
// API, batching under the hood.
type InfluxRecorder struct {
	client influxdb2.Client
	writer influxdb2_api.WriteAPI
	log    zerolog.Logger
}

// NewInfluxRecorder connects to InfluxDB per configuration. If influx is
// disabled or unreachable, a NopRecorder is returned instead so the caller
// proceeds without metrics.
func NewInfluxRecorder(log zerolog.Logger) Recorder {
	if !viper.GetBool("influx.enabled") {
		return NopRecorder{}
	}

	client := influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := client.Ping(context.Background())
	if err != nil || !running {
		log.Warn().Err(err).Msg("InfluxDB unreachable, metrics disabled")
		client.Close()
		return NopRecorder{}
	}

	writer := client.WriteAPI(viper.GetString("influx.org"), viper.GetString("influx.bucket"))

	rec := &InfluxRecorder{client: client, writer: writer, log: log}
	go rec.logWriteErrors()

	log.Info().Str("bucket", viper.GetString("influx.bucket")).Msg("InfluxDB metrics initialized")
	return rec
}

// RecordEvent implements Recorder.
func (r *InfluxRecorder) RecordEvent(measurement string, tags map[string]string, fields map[string]interface{}) {
	point := influxdb2.NewPoint(measurement, tags, fields, time.Now())
	r.writer.WritePoint(point)
}

// Close flushes pending points and closes the client.
func (r *InfluxRecorder) Close() {
	r.writer.Flush()
	r.client.Close()
}

func (r *InfluxRecorder) logWriteErrors() {
	for err := range r.writer.Errors() {
		r.log.Error().Err(err).Msg("InfluxDB write error")
	}
}
