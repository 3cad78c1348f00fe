package sources

import (
	"time"

	"github.com/tarungka/keyedwire/stream"
)

type sampleReading struct {
	sensor string
	speed  float64
}

// sampleReadings is the demo traffic: three sensors, twelve readings.
var sampleReadings = []sampleReading{
	{"sensor_A", 50},
	{"sensor_B", 75},
	{"sensor_A", 55},
	{"sensor_B", 80},
	{"sensor_C", 40},
	{"sensor_B", 85},
	{"sensor_A", 60},
	{"sensor_C", 45},
	{"sensor_A", 78},
	{"sensor_A", 82},
	{"sensor_B", 50},
	{"sensor_B", 90},
}

// SampleEvents returns the demo readings. Reading i is stamped i seconds after
// the Unix epoch.
func SampleEvents() []stream.Event {
	events := make([]stream.Event, len(sampleReadings))
	for i, r := range sampleReadings {
		events[i] = stream.Event{
			Key:       r.sensor,
			Value:     r.speed,
			Timestamp: time.Unix(int64(i), 0).UTC(),
		}
	}
	return events
}

// SampleDataset returns the demo readings as a finite source.
func SampleDataset() *stream.SliceSource {
	src, err := stream.NewSliceSource(SampleEvents()...)
	if err != nil {
		// the readings above are constants
		panic(err)
	}
	return src
}
