package gps

import "time"

// Record is the canonical form of one GPS fix. Optional readings are nil
// when the client did not send them or sent something unparseable.
type Record struct {
	ID              string         `json:"id"`
	Latitude        float64        `json:"latitude"`
	Longitude       float64        `json:"longitude"`
	Timestamp       string         `json:"timestamp"`
	Accuracy        *float64       `json:"accuracy"`
	Altitude        *float64       `json:"altitude"`
	Speed           *float64       `json:"speed"`
	Bearing         *float64       `json:"bearing"`
	Satellites      *int           `json:"satellites"`
	Battery         *float64       `json:"battery"`
	Provider        string         `json:"provider"`
	DeviceID        string         `json:"deviceId"`
	Raw             map[string]any `json:"raw"`
	ServerTimestamp string         `json:"serverTimestamp"`
}

// Source tells where a RawInput was read from.
type Source string

const (
	SourceQuery Source = "query"
	SourceBody  Source = "body"
)

// RawInput is the untyped key/value payload of one request.
type RawInput struct {
	Source Source
	Values map[string]any
}

type Result struct {
	Record   Record
	Duration time.Duration
}

const (
	unknownValue    = "unknown"
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// FormatTimestamp renders t as an ISO-8601 UTC instant with millisecond
// precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
