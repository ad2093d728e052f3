// ABOUTME: Tests for the InfluxDB edit recorder.
// ABOUTME: Covers the disabled config path and the cell_edit point shape.

package telemetry

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/2389/sitewalk/internal/config"
)

func TestConnect_Disabled(t *testing.T) {
	r, err := Connect(config.InfluxDBConfig{Enabled: false}, zerolog.Nop())
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("Connect() error = %v, want ErrDisabled", err)
	}
	if r != nil {
		t.Error("Connect() returned a recorder while disabled")
	}
}

func TestEditPoint_LineProtocol(t *testing.T) {
	at := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	line := write.PointToLineProtocol(editPoint("cameras", "resolution", 42, at), time.Second)

	for _, want := range []string{"cell_edit,", "column=resolution", "kind=cameras", "project=42", "count=1i"} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(line), " 1790845200") {
		t.Errorf("line protocol %q has wrong timestamp", line)
	}
}
