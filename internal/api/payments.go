package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// GetPayment looks up a PayOS payment by order code.
func (c *Client) GetPayment(ctx context.Context, orderID string) (*Payment, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errors.New("api: get payment: order id is required")
	}
	var payment Payment
	path := "/payment/payos/" + escape(orderID)
	if err := c.doJSON(ctx, "get payment", http.MethodGet, "/payment/payos/{orderId}", path, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CancelPayment cancels a pending PayOS payment.
func (c *Client) CancelPayment(ctx context.Context, orderID string) (*Payment, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errors.New("api: cancel payment: order id is required")
	}
	var payment Payment
	path := "/payment/payos/" + escape(orderID) + "/cancel"
	if err := c.doJSON(ctx, "cancel payment", http.MethodPut, "/payment/payos/{orderId}/cancel", path, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}
