package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// GetUser fetches a patient profile by id.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("api: get user: user id is required")
	}
	var user User
	if err := c.doJSON(ctx, "get user", http.MethodGet, "/user/{id}", "/user/"+escape(userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
