package remote

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"hydro-monitor-backend/internal/model"
	"hydro-monitor-backend/internal/parse"
)

// Upstream firmware revisions disagree on field names and nesting, so each
// value is resolved through an ordered list of candidate paths tried in
// sequence.
var (
	deviceCodePaths = [][]string{{"device_code"}, {"device"}, {"code"}}
	payloadPaths    = [][]string{{"reading", "encoded_data"}, {"encoded_data"}, {"hex"}, {"payload"}}
	timestampPaths  = [][]string{{"reading", "timestamp"}, {"timestamp"}, {"created_at"}, {"time"}}
	idPaths         = [][]string{{"reading", "id"}, {"id"}, {"reading_id"}}
)

// Normalize turns a raw remote response body into a canonical SensorReading.
// It returns nil when the body carries no usable reading; callers must treat
// nil as "nothing to ingest", not as a retriable error.
func Normalize(body []byte, defaultDeviceCode string) *model.SensorReading {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		log.Printf("Remote response is not a JSON object: %v", err)
		return nil
	}

	reading := model.SensorReading{
		ID:        resolveID(doc),
		Timestamp: resolveTimestamp(doc),
	}

	if encoded, ok := lookupString(doc, payloadPaths); ok {
		deviceCode := resolveDeviceCode(doc, defaultDeviceCode)
		payload, err := parse.DecodePayload(encoded, deviceCode)
		if err != nil {
			log.Printf("Failed to decode payload for device %q: %v", deviceCode, err)
			return nil
		}
		reading.PH = payload[parse.FieldPH]
		reading.TDSLevel = payload[parse.FieldTDSLevel]
		reading.Temperature = payload[parse.FieldTemperature]
		return &reading
	}

	// Alternate upstream shape: the response already carries decoded numeric
	// fields instead of a hex payload.
	if decoded, ok := preDecoded(doc); ok {
		reading.Temperature = decoded[parse.FieldTemperature]
		reading.PH = decoded[parse.FieldPH]
		reading.TDSLevel = decoded[parse.FieldTDSLevel]
		return &reading
	}

	return nil
}

// preDecoded accepts the response as an already-decoded payload when it has a
// numeric temperature plus at least one of ph, tdsLevel or ec.
func preDecoded(doc map[string]any) (map[string]float64, bool) {
	temperature, ok := lookupNumber(doc, [][]string{{"temperature"}})
	if !ok {
		return nil, false
	}

	decoded := map[string]float64{parse.FieldTemperature: temperature}
	found := false
	if ph, ok := lookupNumber(doc, [][]string{{"ph"}}); ok {
		decoded[parse.FieldPH] = ph
		found = true
	}
	if tds, ok := lookupNumber(doc, [][]string{{"tdsLevel"}, {"tds_level"}, {"tds"}}); ok {
		decoded[parse.FieldTDSLevel] = tds
		found = true
	}
	if _, ok := lookupNumber(doc, [][]string{{"ec"}}); ok {
		found = true
	}
	if !found {
		return nil, false
	}
	return decoded, true
}

func resolveDeviceCode(doc map[string]any, defaultDeviceCode string) string {
	if code, ok := lookupString(doc, deviceCodePaths); ok {
		return code
	}
	if defaultDeviceCode != "" {
		return defaultDeviceCode
	}
	return "UNKNOWN"
}

func resolveTimestamp(doc map[string]any) time.Time {
	if raw, ok := lookupValue(doc, timestampPaths); ok {
		if ts, ok := parseTimestamp(raw); ok {
			return ts
		}
	}
	return time.Now().UTC()
}

func resolveID(doc map[string]any) string {
	if id, ok := lookupString(doc, idPaths); ok && id != "" {
		return id
	}
	// Numeric upstream ids arrive as JSON numbers.
	if n, ok := lookupNumber(doc, idPaths); ok {
		return strconv.FormatInt(int64(n), 10)
	}
	return model.NewReadingID("rdg")
}

// parseTimestamp handles the timestamp encodings seen upstream: RFC3339,
// a bare datetime string, and epoch seconds or milliseconds.
func parseTimestamp(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts.UTC(), true
			}
		}
	case float64:
		// Epoch milliseconds when the magnitude is implausible for seconds.
		if v > 1e12 {
			return time.UnixMilli(int64(v)).UTC(), true
		}
		if v > 0 {
			return time.Unix(int64(v), 0).UTC(), true
		}
	}
	return time.Time{}, false
}

// lookupValue walks the candidate paths in order and returns the first value
// present in the document.
func lookupValue(doc map[string]any, paths [][]string) (any, bool) {
	for _, path := range paths {
		node := any(doc)
		ok := true
		for _, key := range path {
			m, isMap := node.(map[string]any)
			if !isMap {
				ok = false
				break
			}
			node, ok = m[key]
			if !ok {
				break
			}
		}
		if ok && node != nil {
			return node, true
		}
	}
	return nil, false
}

func lookupString(doc map[string]any, paths [][]string) (string, bool) {
	v, ok := lookupValue(doc, paths)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func lookupNumber(doc map[string]any, paths [][]string) (float64, bool) {
	v, ok := lookupValue(doc, paths)
	if !ok {
		return 0, false
	}
	n, ok := v.(float64)
	return n, ok
}
