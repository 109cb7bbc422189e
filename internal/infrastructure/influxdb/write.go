package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementRelay    = "relay_state"
	MeasurementSensor   = "sensor_state"
	MeasurementCesspool = "cesspool"
	MeasurementToggles  = "toggles"
)

// WriteState records an on/off sample for a device.
func (c *Client) WriteState(measurement string, id int, on bool, at time.Time) {
	c.write(write.NewPoint(measurement,
		map[string]string{"id": strconv.Itoa(id)},
		map[string]any{"on": on},
		at,
	))
}

// WriteCesspool records the cesspool fill percentage.
func (c *Client) WriteCesspool(percent int, at time.Time) {
	c.write(write.NewPoint(MeasurementCesspool, nil, map[string]any{"level": percent}, at))
}

// WriteCounter records the running toggle count of a device.
func (c *Client) WriteCounter(kind string, id int, count int64, at time.Time) {
	c.write(write.NewPoint(MeasurementToggles,
		map[string]string{"kind": kind, "id": strconv.Itoa(id)},
		map[string]any{"count": count},
		at,
	))
}

func (c *Client) write(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}
