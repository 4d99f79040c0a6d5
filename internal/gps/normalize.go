package gps

import (
	"errors"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrMissingCoordinates = errors.New("missing latitude or longitude")

// Aliases are checked in order; the first key holding a non-empty value wins,
// even if that value later fails to parse.
var (
	latitudeKeys  = []string{"lat", "latitude"}
	longitudeKeys = []string{"lon", "lng", "longitude"}
	timestampKeys = []string{"time", "timestamp"}
	accuracyKeys  = []string{"acc", "accuracy"}
	altitudeKeys  = []string{"alt", "altitude"}
	speedKeys     = []string{"spd", "speed"}
	bearingKeys   = []string{"dir", "bearing"}
	satelliteKeys = []string{"sat", "satellites"}
	batteryKeys   = []string{"batt", "battery"}
	providerKeys  = []string{"prov", "provider"}
	deviceKeys    = []string{"device", "deviceId"}
)

var (
	floatPrefixRe = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
	intPrefixRe   = regexp.MustCompile(`^[+-]?\d+`)
)

// InputFromRequest picks the payload to normalize: the query string for GET,
// the decoded body for every other method.
func InputFromRequest(method string, query map[string]string, body map[string]any) RawInput {
	if method == http.MethodGet {
		values := make(map[string]any, len(query))
		for k, v := range query {
			values[k] = v
		}
		return RawInput{Source: SourceQuery, Values: values}
	}
	if body == nil {
		body = map[string]any{}
	}
	return RawInput{Source: SourceBody, Values: body}
}

// Normalize maps a raw payload onto a Record. now is used when the client
// sends no timestamp.
func Normalize(in RawInput, now time.Time) (Record, error) {
	values := in.Values
	if values == nil {
		values = map[string]any{}
	}

	lat, okLat := parseFloat(lookup(values, latitudeKeys))
	lon, okLon := parseFloat(lookup(values, longitudeKeys))
	if !okLat || !okLon {
		return Record{}, ErrMissingCoordinates
	}

	rec := Record{
		Latitude:   lat,
		Longitude:  lon,
		Timestamp:  stringOr(lookup(values, timestampKeys), FormatTimestamp(now)),
		Accuracy:   optionalFloat(lookup(values, accuracyKeys)),
		Altitude:   optionalFloat(lookup(values, altitudeKeys)),
		Speed:      optionalFloat(lookup(values, speedKeys)),
		Bearing:    optionalFloat(lookup(values, bearingKeys)),
		Satellites: optionalInt(lookup(values, satelliteKeys)),
		Battery:    optionalFloat(lookup(values, batteryKeys)),
		Provider:   stringOr(lookup(values, providerKeys), unknownValue),
		DeviceID:   stringOr(lookup(values, deviceKeys), unknownValue),
		Raw:        values,
	}
	return rec, nil
}

func lookup(values map[string]any, keys []string) any {
	for _, k := range keys {
		v, ok := values[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			continue
		}
		return v
	}
	return nil
}

// parseFloat accepts JSON numbers and strings with a leading numeric prefix
// ("12.5m" is 12.5). Non-finite results are rejected.
func parseFloat(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		m := floatPrefixRe.FindString(strings.TrimSpace(val))
		if m == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseInt truncates numbers and reads the leading integer of strings
// ("7.9" is 7).
func parseInt(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || math.Abs(val) > math.MaxInt32 {
			return 0, false
		}
		return int(val), true
	case string:
		m := intPrefixRe.FindString(strings.TrimSpace(val))
		if m == "" {
			return 0, false
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func optionalFloat(v any) *float64 {
	f, ok := parseFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func optionalInt(v any) *int {
	n, ok := parseInt(v)
	if !ok {
		return nil
	}
	return &n
}

func stringOr(v any, fallback string) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	return fallback
}
