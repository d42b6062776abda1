package deribit

import (
	"encoding/json"
	"time"
)

const (
	maxRetries   = 10
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	dialTimeout  = 10 * time.Second

	methodSubscribe    = "public/subscribe"
	methodSetHeartbeat = "public/set_heartbeat"
	methodTest         = "public/test"

	notifySubscription = "subscription"
	notifyHeartbeat    = "heartbeat"
)

// rpcRequest is a JSON-RPC 2.0 request sent to Deribit.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type subscribeParams struct {
	Channels []string `json:"channels"`
}

type heartbeatParams struct {
	Interval int `json:"interval"`
}

// frame is the JSON-RPC 2.0 envelope of every inbound message.
type frame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// notificationParams is the params object of a "subscription" notification.
type notificationParams struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// heartbeatNotice is the params object of a "heartbeat" notification.
type heartbeatNotice struct {
	Type string `json:"type"` // "heartbeat" or "test_request"
}

// bookData is the data object of a book.{instrument}.{interval} notification.
// PrevChangeID is only present on "change" messages.
type bookData struct {
	Type           string      `json:"type"` // "snapshot" or "change"
	Timestamp      int64       `json:"timestamp"`
	InstrumentName string      `json:"instrument_name"`
	ChangeID       uint64      `json:"change_id"`
	PrevChangeID   *uint64     `json:"prev_change_id"`
	Bids           []bookEntry `json:"bids"`
	Asks           []bookEntry `json:"asks"`
}

// bookEntry is one level on the wire: [action, price, amount] or [price, amount].
type bookEntry struct {
	Action    string
	HasAction bool
	Price     float64
	Quantity  float64
}
