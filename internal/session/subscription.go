// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package session

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/locus/internal/stream"
	"github.com/tomtom215/locus/internal/validation"
)

// ErrInvalidSubscription is returned before any network attempt when a
// subscription cannot be sent.
var ErrInvalidSubscription = errors.New("invalid subscription")

// Subscription defaults.
const (
	DefaultHeartbeatSeconds  = 10
	DefaultMaxPointsPerCycle = 100
	MaxPointsPerCycleLimit   = 500
)

// Scope selects which subjects a stream delivers: every subject, or the
// union of the named users and devices.
type Scope struct {
	All     bool     `json:"all"`
	Users   []string `json:"users,omitempty" validate:"dive,notblank"`
	Devices []string `json:"devices,omitempty" validate:"dive,notblank"`
}

// AllSubjects returns the scope that tracks everyone.
func AllSubjects() Scope {
	return Scope{All: true}
}

// Filtered returns a normalized scope over users and devices.
func Filtered(users, devices []string) Scope {
	return Scope{Users: users, Devices: devices}.Normalize()
}

// Normalize trims, dedupes and sorts the filter sets so that two scopes
// naming the same subjects compare equal.
func (s Scope) Normalize() Scope {
	return Scope{All: s.All, Users: normalizeSet(s.Users), Devices: normalizeSet(s.Devices)}
}

// Equal compares normalized scopes by value.
func (s Scope) Equal(o Scope) bool {
	a, b := s.Normalize(), o.Normalize()
	return a.All == b.All && slices.Equal(a.Users, b.Users) && slices.Equal(a.Devices, b.Devices)
}

func (s Scope) String() string {
	if s.All {
		return "all"
	}
	return fmt.Sprintf("users=%v devices=%v", s.Users, s.Devices)
}

func (s Scope) check() error {
	if s.All && (len(s.Users) > 0 || len(s.Devices) > 0) {
		return fmt.Errorf("%w: all cannot be combined with users or devices", ErrInvalidSubscription)
	}
	if !s.All && len(s.Users) == 0 && len(s.Devices) == 0 {
		return fmt.Errorf("%w: a filtered scope needs at least one user or device", ErrInvalidSubscription)
	}
	return nil
}

func normalizeSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// Subscription is the configuration of one connection attempt. It is
// treated as a value; WithCursor returns a modified copy.
type Subscription struct {
	Scope             Scope  `json:"scope"`
	ResumeCursor      *int64 `json:"since,omitempty" validate:"omitempty,gte=0"`
	HeartbeatSeconds  int    `json:"heartbeat" validate:"gt=0"`
	MaxPointsPerCycle int    `json:"limit" validate:"min=1,max=500"`
}

// WithDefaults fills zero cadence and limit with the defaults and
// normalizes the scope.
func (s Subscription) WithDefaults() Subscription {
	s.Scope = s.Scope.Normalize()
	if s.HeartbeatSeconds == 0 {
		s.HeartbeatSeconds = DefaultHeartbeatSeconds
	}
	if s.MaxPointsPerCycle == 0 {
		s.MaxPointsPerCycle = DefaultMaxPointsPerCycle
	}
	return s
}

// WithCursor returns a copy resuming strictly after cursor.
func (s Subscription) WithCursor(cursor int64) Subscription {
	s.ResumeCursor = &cursor
	return s
}

// WithoutCursor returns a copy with no resume cursor.
func (s Subscription) WithoutCursor() Subscription {
	s.ResumeCursor = nil
	return s
}

// Validate reports whether s can be sent. Every failure wraps
// ErrInvalidSubscription.
func (s Subscription) Validate() error {
	if err := s.Scope.check(); err != nil {
		return err
	}
	if verr := validation.ValidateStruct(&s); verr != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSubscription, verr.Error())
	}
	return nil
}

// Heartbeat is the advisory keep-alive interval.
func (s Subscription) Heartbeat() time.Duration {
	return time.Duration(s.HeartbeatSeconds) * time.Second
}

// Query converts s to its wire form.
func (s Subscription) Query() stream.Query {
	return stream.Query{
		All:       s.Scope.All,
		Users:     s.Scope.Users,
		Devices:   s.Scope.Devices,
		Since:     s.ResumeCursor,
		Heartbeat: s.Heartbeat(),
		Limit:     s.MaxPointsPerCycle,
	}
}
