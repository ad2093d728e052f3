// ABOUTME: Edit activity telemetry written to InfluxDB.
// ABOUTME: Each persisted cell edit becomes one cell_edit point through the non-blocking write API.

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/2389/sitewalk/internal/config"
)

const connectTimeout = 10 * time.Second

var (
	ErrDisabled         = errors.New("telemetry: disabled in configuration")
	ErrConnectionFailed = errors.New("telemetry: connection failed")
)

// Measurement is the InfluxDB measurement edits are written to.
const Measurement = "cell_edit"

// Recorder writes edit events to InfluxDB. Safe for concurrent use.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	now      func() time.Time
}

// Connect pings the server and starts the batched write API. Write errors
// are logged as they arrive.
func Connect(cfg config.InfluxDBConfig, logger zerolog.Logger) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetBatchSize(50).SetFlushInterval(5000))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			logger.Warn().Err(err).Msg("influxdb write failed")
		}
	}()

	return &Recorder{client: client, writeAPI: writeAPI, now: time.Now}, nil
}

// RecordEdit queues one edit point. It never blocks on the network.
func (r *Recorder) RecordEdit(kind, column string, projectID int64) {
	r.writeAPI.WritePoint(editPoint(kind, column, projectID, r.now()))
}

// Close flushes pending points and closes the client.
func (r *Recorder) Close() {
	r.writeAPI.Flush()
	r.client.Close()
}

func editPoint(kind, column string, projectID int64, at time.Time) *write.Point {
	return write.NewPoint(
		Measurement,
		map[string]string{
			"kind":    kind,
			"column":  column,
			"project": strconv.FormatInt(projectID, 10),
		},
		map[string]interface{}{
			"count": 1,
		},
		at,
	)
}
