// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package binding

import (
	"github.com/tomtom215/locus/internal/session"
)

// Descriptor is the declarative subscription a consumer asks for.
type Descriptor struct {
	Scope            session.Scope `json:"scope"`
	HeartbeatSeconds int           `json:"heartbeat"`
	Limit            int           `json:"limit"`
	Enabled          bool          `json:"enabled"`
}

// Normalize returns d with defaults applied and filter sets normalized, so
// that equal requests compare equal.
func (d Descriptor) Normalize() Descriptor {
	sub := d.Subscription()
	d.Scope = sub.Scope
	d.HeartbeatSeconds = sub.HeartbeatSeconds
	d.Limit = sub.MaxPointsPerCycle
	return d
}

// Equal compares descriptors by value. Filter sets compare as sets.
func (d Descriptor) Equal(o Descriptor) bool {
	a, b := d.Normalize(), o.Normalize()
	return a.Enabled == b.Enabled &&
		a.HeartbeatSeconds == b.HeartbeatSeconds &&
		a.Limit == b.Limit &&
		a.Scope.Equal(b.Scope)
}

// Subscription converts d to a cursorless subscription.
func (d Descriptor) Subscription() session.Subscription {
	return session.Subscription{
		Scope:             d.Scope,
		HeartbeatSeconds:  d.HeartbeatSeconds,
		MaxPointsPerCycle: d.Limit,
	}.WithDefaults()
}

// cursorKey identifies the stored resume cursor for d's scope.
func (d Descriptor) cursorKey() string {
	return d.Normalize().Scope.String()
}
