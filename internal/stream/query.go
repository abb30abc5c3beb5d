// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package stream

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Query parameter names.
const (
	ParamAll       = "all"
	ParamUsers     = "users"
	ParamDevices   = "devices"
	ParamSince     = "since"
	ParamHeartbeat = "heartbeat"
	ParamLimit     = "limit"
)

// Query is the wire form of a subscription.
type Query struct {
	All       bool
	Users     []string
	Devices   []string
	Since     *int64
	Heartbeat time.Duration
	Limit     int
}

// Values encodes the query. Users and devices are repeated parameters and
// are never combined with all=true.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.All {
		v.Set(ParamAll, "true")
	} else {
		for _, u := range q.Users {
			v.Add(ParamUsers, u)
		}
		for _, d := range q.Devices {
			v.Add(ParamDevices, d)
		}
	}
	if q.Since != nil {
		v.Set(ParamSince, strconv.FormatInt(*q.Since, 10))
	}
	if q.Heartbeat > 0 {
		v.Set(ParamHeartbeat, strconv.Itoa(int(q.Heartbeat/time.Second)))
	}
	if q.Limit > 0 {
		v.Set(ParamLimit, strconv.Itoa(q.Limit))
	}
	return v
}

// URL returns base with the query appended, replacing any existing
// subscription parameters on base.
func (q Query) URL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid stream url: %w", err)
	}
	existing := u.Query()
	for _, p := range []string{ParamAll, ParamUsers, ParamDevices, ParamSince, ParamHeartbeat, ParamLimit} {
		existing.Del(p)
	}
	for k, vals := range q.Values() {
		for _, val := range vals {
			existing.Add(k, val)
		}
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}

// ParseQuery decodes the subscription parameters from v.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		All:     strings.EqualFold(v.Get(ParamAll), "true"),
		Users:   v[ParamUsers],
		Devices: v[ParamDevices],
	}
	if s := v.Get(ParamSince); s != "" {
		since, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Query{}, fmt.Errorf("invalid %s %q: %w", ParamSince, s, err)
		}
		q.Since = &since
	}
	if s := v.Get(ParamHeartbeat); s != "" {
		secs, err := strconv.Atoi(s)
		if err != nil {
			return Query{}, fmt.Errorf("invalid %s %q: %w", ParamHeartbeat, s, err)
		}
		q.Heartbeat = time.Duration(secs) * time.Second
	}
	if s := v.Get(ParamLimit); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			return Query{}, fmt.Errorf("invalid %s %q: %w", ParamLimit, s, err)
		}
		q.Limit = limit
	}
	return q, nil
}
