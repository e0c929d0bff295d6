package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// BookAppointment submits a booking. It is never retried.
func (c *Client) BookAppointment(ctx context.Context, req AppointmentRequest) (*BookingResult, error) {
	var result BookingResult
	if err := c.doJSON(ctx, "book appointment", http.MethodPost, "/appointments/book", "/appointments/book", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AppointmentHistory lists a patient's bookings.
func (c *Client) AppointmentHistory(ctx context.Context, userID string) ([]Appointment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("api: appointment history: user id is required")
	}
	var appointments []Appointment
	path := "/appointments/user/" + escape(userID)
	if err := c.doJSON(ctx, "appointment history", http.MethodGet, "/appointments/user/{userId}", path, nil, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}
