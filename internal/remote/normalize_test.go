package remote

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_NestedEnvelope(t *testing.T) {
	body := []byte(`{
		"device_code": "HZ-001",
		"reading": {
			"id": "r-42",
			"encoded_data": "029003ac00fa",
			"timestamp": "2026-01-02T15:04:05Z"
		}
	}`)

	reading := Normalize(body, "")
	require.NotNil(t, reading)
	assert.Equal(t, "r-42", reading.ID)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), reading.Timestamp)
	assert.InDelta(t, 6.56, reading.PH, 1e-9)
	assert.InDelta(t, 94.0, reading.TDSLevel, 1e-9)
	assert.InDelta(t, 25.0, reading.Temperature, 1e-9)
}

func TestNormalize_FlatEnvelope(t *testing.T) {
	body := []byte(`{"code": "HZ-001", "hex": "029003ac00fa"}`)

	reading := Normalize(body, "")
	require.NotNil(t, reading)
	assert.True(t, strings.HasPrefix(reading.ID, "rdg-"), "missing id falls back to a time-derived one")
	assert.WithinDuration(t, time.Now().UTC(), reading.Timestamp, 5*time.Second)
	assert.InDelta(t, 6.56, reading.PH, 1e-9)
}

func TestNormalize_DefaultDeviceCode(t *testing.T) {
	body := []byte(`{"payload": "029003ac00fa"}`)

	reading := Normalize(body, "HZ-fallback")
	require.NotNil(t, reading)
	assert.InDelta(t, 25.0, reading.Temperature, 1e-9)

	// Without a configured default the device is UNKNOWN and decoding fails.
	assert.Nil(t, Normalize(body, ""))
}

func TestNormalize_PreDecodedPayload(t *testing.T) {
	reading := Normalize([]byte(`{"temperature": 24.5, "ph": 6.2}`), "")
	require.NotNil(t, reading)
	assert.InDelta(t, 24.5, reading.Temperature, 1e-9)
	assert.InDelta(t, 6.2, reading.PH, 1e-9)

	reading = Normalize([]byte(`{"temperature": 24.5, "tdsLevel": 880}`), "")
	require.NotNil(t, reading)
	assert.InDelta(t, 880.0, reading.TDSLevel, 1e-9)

	reading = Normalize([]byte(`{"temperature": 24.5, "ec": 1.9}`), "")
	require.NotNil(t, reading, "ec qualifies the response as pre-decoded")
}

func TestNormalize_NoUsableReading(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "empty object", body: `{}`},
		{name: "temperature alone is not a payload", body: `{"temperature": 24.5}`},
		{name: "ph without temperature", body: `{"ph": 6.2}`},
		{name: "unknown device family", body: `{"device": "ZZ-1", "encoded_data": "029003ac00fa"}`},
		{name: "malformed hex", body: `{"device": "HZ-1", "encoded_data": "zzzz03ac00fa"}`},
		{name: "not a JSON object", body: `[1,2,3]`},
		{name: "invalid JSON", body: `{`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Nil(t, Normalize([]byte(tc.body), "HZ-default"))
		})
	}
}

func TestNormalize_TimestampResolutionOrder(t *testing.T) {
	// The nested reading timestamp wins over the top-level one.
	body := []byte(`{
		"device": "HZ-1",
		"reading": {"encoded_data": "029003ac00fa", "timestamp": "2026-01-01T00:00:00Z"},
		"timestamp": "2020-01-01T00:00:00Z"
	}`)
	reading := Normalize(body, "")
	require.NotNil(t, reading)
	assert.Equal(t, 2026, reading.Timestamp.Year())

	// created_at is used when no other timestamp field is present.
	body = []byte(`{"device": "HZ-1", "hex": "029003ac00fa", "created_at": "2025-06-01 08:30:00"}`)
	reading = Normalize(body, "")
	require.NotNil(t, reading)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC), reading.Timestamp)
}

func TestNormalize_EpochTimestamps(t *testing.T) {
	body := []byte(`{"device": "HZ-1", "hex": "029003ac00fa", "time": 1700000000}`)
	reading := Normalize(body, "")
	require.NotNil(t, reading)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), reading.Timestamp)

	body = []byte(`{"device": "HZ-1", "hex": "029003ac00fa", "time": 1700000000000}`)
	reading = Normalize(body, "")
	require.NotNil(t, reading)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), reading.Timestamp)
}

func TestNormalize_NumericUpstreamID(t *testing.T) {
	body := []byte(`{"device": "HZ-1", "hex": "029003ac00fa", "id": 1337}`)
	reading := Normalize(body, "")
	require.NotNil(t, reading)
	assert.Equal(t, "1337", reading.ID)
}
