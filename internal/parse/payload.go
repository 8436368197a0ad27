package parse

import (
	"fmt"
	"strconv"
	"strings"
)

// Field names produced by DecodePayload. The set is the superset across all
// device families; a given payload only carries the fields its family layout
// lists.
const (
	FieldPH          = "ph"
	FieldEC          = "ec"
	FieldTemperature = "temperature"
	FieldTDSLevel    = "tdsLevel"
	FieldMoisture    = "moisture"
	FieldHumidity    = "humidity"
	FieldLight       = "light"
)

// Payload maps field names to decoded sensor values.
type Payload map[string]float64

// slot is one 16-bit big-endian field in a device payload. The raw value is
// divided by Divisor to recover the physical quantity.
type slot struct {
	Field   string
	Divisor float64
}

// familyLayouts defines the slot order per device-code prefix.
var familyLayouts = map[string][]slot{
	"CZ": {{FieldPH, 100}, {FieldMoisture, 10}, {FieldEC, 100}, {FieldTemperature, 10}},
	"MZ": {{FieldPH, 100}, {FieldEC, 100}, {FieldTemperature, 10}},
	"SZ": {{FieldPH, 100}, {FieldEC, 100}, {FieldTemperature, 10}},
	"GZ": {{FieldTemperature, 10}, {FieldHumidity, 10}, {FieldLight, 1}},
	"HZ": {{FieldPH, 100}, {FieldTDSLevel, 10}, {FieldTemperature, 10}},
}

const hexDigitsPerSlot = 4

// DecodePayload decodes a hex-encoded device payload into named sensor
// values. The device-code prefix selects the slot layout; each slot is a
// 4-hex-digit big-endian integer scaled by the layout divisor. Decoding is
// fail-closed: a short payload, an unknown prefix, or a malformed slot fails
// the whole payload rather than returning partial fields.
func DecodePayload(encoded, deviceCode string) (Payload, error) {
	encoded = strings.ToLower(strings.TrimSpace(encoded))
	if len(encoded) < 6 {
		return nil, fmt.Errorf("payload too short: %d hex chars", len(encoded))
	}

	layout, err := layoutFor(deviceCode)
	if err != nil {
		return nil, err
	}

	if len(encoded) < len(layout)*hexDigitsPerSlot {
		return nil, fmt.Errorf("payload has %d hex chars, family %q needs %d",
			len(encoded), familyPrefix(deviceCode), len(layout)*hexDigitsPerSlot)
	}

	payload := make(Payload, len(layout))
	for i, s := range layout {
		raw := encoded[i*hexDigitsPerSlot : (i+1)*hexDigitsPerSlot]
		v, err := strconv.ParseUint(raw, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("slot %q (%s) is not hex: %w", raw, s.Field, err)
		}
		payload[s.Field] = float64(v) / s.Divisor
	}
	return payload, nil
}

func layoutFor(deviceCode string) ([]slot, error) {
	prefix := familyPrefix(deviceCode)
	layout, ok := familyLayouts[prefix]
	if !ok {
		return nil, fmt.Errorf("unknown device family %q", prefix)
	}
	return layout, nil
}

func familyPrefix(deviceCode string) string {
	code := strings.ToUpper(strings.TrimSpace(deviceCode))
	if len(code) < 2 {
		return code
	}
	return code[:2]
}
