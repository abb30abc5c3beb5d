// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/locus/internal/validation"
)

// ErrInvalidPoint is returned for payloads that cannot become a LocationPoint.
var ErrInvalidPoint = errors.New("invalid location point")

// LocationPoint is a single validated location report.
//
// Optional telemetry is nil when the device did not report it. Latitude and
// Longitude are either both set or both nil (no fix).
//
// ServerTimestamp (ms since epoch) is the ordering key and the resume cursor.
type LocationPoint struct {
	DeviceID        string     `json:"device_id" validate:"notblank"`
	UserID          *int64     `json:"user_id,omitempty"`
	Username        *string    `json:"username,omitempty"`
	DisplayName     *string    `json:"display_name,omitempty"`
	Latitude        *float64   `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude       *float64   `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Accuracy        *float64   `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
	Altitude        *float64   `json:"altitude,omitempty"`
	Speed           *float64   `json:"speed,omitempty"`
	Bearing         *float64   `json:"bearing,omitempty"`
	BatteryLevel    *float64   `json:"battery_level,omitempty"`
	RecordedAt      *time.Time `json:"recorded_at,omitempty"`
	ServerTime      time.Time  `json:"server_time"`
	ServerTimestamp int64      `json:"server_timestamp" validate:"gt=0"`
}

// EventKey uniquely identifies a point; two devices may report in the same millisecond.
type EventKey struct {
	DeviceID        string
	ServerTimestamp int64
}

// String renders the key for use in string-keyed sets.
func (k EventKey) String() string {
	return k.DeviceID + "@" + strconv.FormatInt(k.ServerTimestamp, 10)
}

// Key returns the deduplication identity of the point.
func (p LocationPoint) Key() EventKey {
	return EventKey{DeviceID: p.DeviceID, ServerTimestamp: p.ServerTimestamp}
}

// SubjectKey returns the username when present, else the device id.
func (p LocationPoint) SubjectKey() string {
	if p.Username != nil && *p.Username != "" {
		return *p.Username
	}
	return p.DeviceID
}

// HasFix reports whether the point carries coordinates.
func (p LocationPoint) HasFix() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// ParsePoint decodes and validates a JSON point payload.
func ParsePoint(data []byte) (LocationPoint, error) {
	var rec PointRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return LocationPoint{}, fmt.Errorf("%w: %w", ErrInvalidPoint, err)
	}
	return rec.Point()
}

// Point validates the record and converts it to a LocationPoint.
//
// server_timestamp is derived from server_time when absent (and the other
// way round). Battery levels reported as a percentage are scaled to [0,1];
// values outside either range are discarded.
func (r PointRecord) Point() (LocationPoint, error) {
	p := LocationPoint{
		DeviceID:     strings.TrimSpace(r.DeviceID),
		UserID:       r.UserID.Ptr(),
		Username:     trimmed(r.Username),
		DisplayName:  trimmed(r.DisplayName),
		Latitude:     r.Latitude.Ptr(),
		Longitude:    r.Longitude.Ptr(),
		Accuracy:     r.Accuracy.Ptr(),
		Altitude:     r.Altitude.Ptr(),
		Speed:        r.Speed.Ptr(),
		Bearing:      r.Bearing.Ptr(),
		BatteryLevel: normalizeBattery(r.BatteryLevel),
	}
	if r.RecordedAt.Valid {
		t := r.RecordedAt.Time
		p.RecordedAt = &t
	}

	switch {
	case r.ServerTimestamp.Valid:
		p.ServerTimestamp = r.ServerTimestamp.Value
		p.ServerTime = time.UnixMilli(p.ServerTimestamp).UTC()
		if r.ServerTime.Valid {
			p.ServerTime = r.ServerTime.Time
		}
	case r.ServerTime.Valid:
		p.ServerTime = r.ServerTime.Time
		p.ServerTimestamp = p.ServerTime.UnixMilli()
	default:
		return LocationPoint{}, fmt.Errorf("%w: server_timestamp is required", ErrInvalidPoint)
	}

	if (p.Latitude == nil) != (p.Longitude == nil) {
		return LocationPoint{}, fmt.Errorf("%w: latitude and longitude must be reported together", ErrInvalidPoint)
	}

	if verr := validation.ValidateStruct(&p); verr != nil {
		return LocationPoint{}, fmt.Errorf("%w: %s", ErrInvalidPoint, verr.Error())
	}
	return p, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func normalizeBattery(f FlexFloat) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	switch {
	case v >= 0 && v <= 1:
	case v > 1 && v <= 100:
		v /= 100
	default:
		return nil
	}
	return &v
}
