package api

import "github.com/aegis-otc/aegis-core/pkg/rfq"

// Wire types for REST responses and WebSocket messages.

// WSMessage is the envelope for every WebSocket message. Data holds the
// order book for "orderBook" messages and a single order for "orderFilled".
type WSMessage struct {
	Type string      `json:"type"` // "orderBook" | "orderFilled"
	Data interface{} `json:"data"`
}

// ErrorResponse is returned for all REST errors. Fields is populated for
// validation failures so callers can see exactly which inputs were rejected.
type ErrorResponse struct {
	Error   string           `json:"error"`
	Message string           `json:"message,omitempty"`
	Fields  []rfq.FieldError `json:"fields,omitempty"`
}

// CancelOrderRequest is the payload for POST /orders/{orderHash}/cancel.
type CancelOrderRequest struct {
	Wallet string `json:"wallet"`
}

// HealthResponse reports process liveness plus a few gauge values.
type HealthResponse struct {
	Status        string `json:"status"`
	Timestamp     int64  `json:"timestamp"` // unix millis
	WSConnections int    `json:"wsConnections"`
	TotalOrders   int    `json:"totalOrders"`
}
