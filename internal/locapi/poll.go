// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package locapi

import (
	"context"
	"slices"
	"time"

	"github.com/tomtom215/locus/internal/models"
	"github.com/tomtom215/locus/internal/stream"
)

// Poll implements stream.PointSource over locations.php.
//
// The API answers per user, so a filtered scope fans out over its users.
// Device filters and the all scope need the full user list. date_from has
// second precision; points at or before q.Since may be returned and are
// filtered by the transport.
func (c *Client) Poll(ctx context.Context, q stream.Query) ([]models.LocationPoint, error) {
	users, err := c.pollUsers(ctx, q)
	if err != nil {
		return nil, err
	}

	req := LocationsRequest{Limit: q.Limit}
	if q.Since != nil {
		from := time.UnixMilli(*q.Since).UTC().Truncate(time.Second)
		req.From = &from
	}

	var out []models.LocationPoint
	for _, user := range users {
		req.User = user
		points, err := c.Locations(ctx, req)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			if matches(q, p) {
				out = append(out, p)
			}
		}
	}
	sortAscending(out)
	return out, nil
}

func (c *Client) pollUsers(ctx context.Context, q stream.Query) ([]string, error) {
	if !q.All && len(q.Devices) == 0 {
		return q.Users, nil
	}
	all, err := c.Users(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for _, u := range all {
		names = append(names, u.Username)
	}
	return names, nil
}

func matches(q stream.Query, p models.LocationPoint) bool {
	if q.All {
		return true
	}
	if p.Username != nil && slices.Contains(q.Users, *p.Username) {
		return true
	}
	return slices.Contains(q.Devices, p.DeviceID)
}
