// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package locapi

import (
	"context"
	"fmt"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/tomtom215/locus/internal/models"
)

const usersCacheKey = "users"

type usersResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Users []models.UserRecord `json:"users"`
		Count int                 `json:"count"`
	} `json:"data"`
}

// Users returns the users that have location data. Results are cached for
// the configured TTL.
func (c *Client) Users(ctx context.Context) ([]models.TrackableUser, error) {
	if users, ok := c.users.Get(usersCacheKey); ok {
		return users, nil
	}

	params := url.Values{}
	params.Set("with_location_data", "true")
	params.Set("include_counts", "true")
	params.Set("include_metadata", "true")

	body, err := c.get(ctx, endpointUsers, params)
	if err != nil {
		return nil, err
	}

	var resp usersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("%w: status %q %s", ErrUnexpectedResponse, resp.Status, resp.Message)
	}

	users := make([]models.TrackableUser, 0, len(resp.Data.Users))
	for _, rec := range resp.Data.Users {
		if rec.Username == "" {
			continue
		}
		users = append(users, rec.User())
	}
	c.users.Set(usersCacheKey, users)
	return users, nil
}

// InvalidateUsers drops the cached Users result.
func (c *Client) InvalidateUsers() {
	c.users.Delete(usersCacheKey)
}
