package monitor

import (
	"encoding/json"
	"fmt"

	"github.com/srg/hrmon/internal/sensor"
)

// ParseNotification decodes a heart-rate notification. A missing Body is not
// an error; the reading then renders as "-- bpm".
func ParseNotification(data []byte) (HeartRateReading, error) {
	var n sensor.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return HeartRateReading{}, fmt.Errorf("invalid notification payload: %w", err)
	}
	if n.Body == nil {
		return HeartRateReading{}, nil
	}
	return HeartRateReading{
		RawSamples: n.Body.RRData,
		AverageBPM: n.Body.Average,
		HasBody:    true,
	}, nil
}
