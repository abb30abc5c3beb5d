// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package models

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// LegacyTimeLayout is the server_time format used by the Location API (UTC).
const LegacyTimeLayout = "2006-01-02 15:04:05"

var jsonNull = []byte("null")

// FlexFloat decodes a JSON number, a numeric string, or null.
type FlexFloat struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", raw, err)
	}
	f.Value, f.Valid = v, true
	return nil
}

// Ptr returns nil when the value was absent.
func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// FlexInt decodes a JSON integer, a numeric string, or null.
type FlexInt struct {
	Value int64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *FlexInt) UnmarshalJSON(data []byte) error {
	var f FlexFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	if !f.Valid {
		*i = FlexInt{}
		return nil
	}
	if f.Value != float64(int64(f.Value)) {
		return fmt.Errorf("invalid integer %v", f.Value)
	}
	*i = FlexInt{Value: int64(f.Value), Valid: true}
	return nil
}

// Ptr returns nil when the value was absent.
func (i FlexInt) Ptr() *int64 {
	if !i.Valid {
		return nil
	}
	v := i.Value
	return &v
}

// Timestamp decodes RFC3339, the legacy "2006-01-02 15:04:05" layout (UTC),
// or a number of milliseconds since the epoch.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}
	if data[0] != '"' {
		var ms FlexInt
		if err := ms.UnmarshalJSON(data); err != nil {
			return err
		}
		t.Time, t.Valid = time.UnixMilli(ms.Value).UTC(), ms.Valid
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time, t.Valid = parsed, true
	return nil
}

// ParseTime parses the timestamp formats accepted on the wire.
func ParseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.ParseInLocation(LegacyTimeLayout, s, time.UTC); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// PointRecord is the loosely typed wire shape of a location point.
// Convert with Point before use.
type PointRecord struct {
	DeviceID        string    `json:"device_id"`
	UserID          FlexInt   `json:"user_id"`
	Username        *string   `json:"username"`
	DisplayName     *string   `json:"display_name"`
	Latitude        FlexFloat `json:"latitude"`
	Longitude       FlexFloat `json:"longitude"`
	Accuracy        FlexFloat `json:"accuracy"`
	Altitude        FlexFloat `json:"altitude"`
	Speed           FlexFloat `json:"speed"`
	Bearing         FlexFloat `json:"bearing"`
	BatteryLevel    FlexFloat `json:"battery_level"`
	RecordedAt      Timestamp `json:"recorded_at"`
	ServerTime      Timestamp `json:"server_time"`
	ServerTimestamp FlexInt   `json:"server_timestamp"`
}
