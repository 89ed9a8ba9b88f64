package sensor

import "encoding/json"

// Notification is the JSON document delivered to subscription data callbacks.
type Notification struct {
	URI    string            `json:"Uri"`
	Method string            `json:"Method"`
	Body   *NotificationBody `json:"Body,omitempty"`
}

// NotificationBody holds the heart-rate values of a notification.
type NotificationBody struct {
	RRData  []float64 `json:"rrData"`
	Average float64   `json:"average"`
}

// NewHeartRateNotification builds the notification a sensor sends for one
// measurement on the heart-rate topic of serial.
func NewHeartRateNotification(serial string, average float64, rr []float64) Notification {
	if rr == nil {
		rr = []float64{}
	}
	return Notification{
		URI:    HeartRateTopic(serial),
		Method: "PUT",
		Body:   &NotificationBody{RRData: rr, Average: average},
	}
}

// Marshal encodes n as JSON.
func (n Notification) Marshal() ([]byte, error) {
	return json.Marshal(n)
}
