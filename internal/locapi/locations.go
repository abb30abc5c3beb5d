// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package locapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/locus/internal/logging"
	"github.com/tomtom215/locus/internal/models"
)

// MaxLimit is the largest page the API serves.
const MaxLimit = 500

// LocationsRequest selects one user's reports.
type LocationsRequest struct {
	User   string
	Limit  int
	Offset int
	// From and To bound server_time, inclusive, at second precision.
	From *time.Time
	To   *time.Time
}

func (r LocationsRequest) values() url.Values {
	v := url.Values{}
	v.Set("user", r.User)
	limit := r.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	v.Set("limit", strconv.Itoa(limit))
	v.Set("offset", strconv.Itoa(max(r.Offset, 0)))
	if r.From != nil {
		v.Set("date_from", r.From.UTC().Format(models.LegacyTimeLayout))
	}
	if r.To != nil {
		v.Set("date_to", r.To.UTC().Format(models.LegacyTimeLayout))
	}
	return v
}

type locationsResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Data    []json.RawMessage `json:"data"`
}

// Locations returns one page of a user's reports, newest first as served.
// Rows that fail validation are skipped.
func (c *Client) Locations(ctx context.Context, req LocationsRequest) ([]models.LocationPoint, error) {
	if strings.TrimSpace(req.User) == "" {
		return nil, errors.New("locations: user is required")
	}

	body, err := c.get(ctx, endpointLocations, req.values())
	if err != nil {
		return nil, err
	}

	var resp locationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Error)
	}

	points := make([]models.LocationPoint, 0, len(resp.Data))
	for _, raw := range resp.Data {
		p, err := parseRow(raw, req.User)
		if err != nil {
			logging.Warn().Str("user", req.User).Err(err).Msg("Skipping invalid location row")
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

// Latest returns the most recent report for user.
func (c *Client) Latest(ctx context.Context, user string) (models.LocationPoint, error) {
	points, err := c.Locations(ctx, LocationsRequest{User: user, Limit: 1})
	if err != nil {
		return models.LocationPoint{}, err
	}
	if len(points) == 0 {
		return models.LocationPoint{}, fmt.Errorf("%w for user %q", ErrNotFound, user)
	}
	return points[0], nil
}

// History returns up to limit reports for user within [from, to], oldest
// first.
func (c *Client) History(ctx context.Context, user string, limit int, from, to *time.Time) (models.RouteHistory, error) {
	points, err := c.Locations(ctx, LocationsRequest{User: user, Limit: limit, From: from, To: to})
	if err != nil {
		return models.RouteHistory{}, err
	}
	sortAscending(points)
	return models.RouteHistory{Subject: user, Points: points, From: from, To: to}, nil
}

// parseRow converts a locations.php row. Rows carry no device id or
// username; both are filled in from what is known about the request.
func parseRow(raw []byte, user string) (models.LocationPoint, error) {
	var rec models.PointRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.LocationPoint{}, fmt.Errorf("%w: %w", models.ErrInvalidPoint, err)
	}
	if rec.Username == nil || strings.TrimSpace(*rec.Username) == "" {
		u := user
		rec.Username = &u
	}
	if strings.TrimSpace(rec.DeviceID) == "" {
		rec.DeviceID = fallbackDeviceID(rec, user)
	}
	return rec.Point()
}

func fallbackDeviceID(rec models.PointRecord, user string) string {
	if rec.UserID.Valid {
		return "user:" + strconv.FormatInt(rec.UserID.Value, 10)
	}
	return "user:" + user
}

func sortAscending(points []models.LocationPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].ServerTimestamp < points[j].ServerTimestamp
	})
}
