package deribit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"deribit_book/internal/domain"
	"deribit_book/pkg/quant"
)

// MessageKind classifies an inbound frame.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindResult
	KindRPCError
	KindHeartbeat
	KindTestRequest
	KindSnapshot
	KindChange
)

// String returns the string representation of MessageKind
func (k MessageKind) String() string {
	switch k {
	case KindResult:
		return "RESULT"
	case KindRPCError:
		return "RPC_ERROR"
	case KindHeartbeat:
		return "HEARTBEAT"
	case KindTestRequest:
		return "TEST_REQUEST"
	case KindSnapshot:
		return "SNAPSHOT"
	case KindChange:
		return "CHANGE"
	default:
		return "UNKNOWN"
	}
}

// Message is a decoded inbound frame. Only the fields relevant to Kind are set.
type Message struct {
	Kind       MessageKind
	ID         int64
	Channel    string
	Instrument string
	Timestamp  quant.TimeStamp
	Snapshot   domain.Snapshot
	Delta      domain.Delta
	RPCErr     error
}

// Decode parses one websocket text frame.
// Book payloads are validated completely before anything is returned, so a
// malformed change is rejected as a whole and never partially applied.
func Decode(data []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Message{}, domain.NewDecodeError("frame", err)
	}

	switch {
	case f.Error != nil:
		msg := Message{Kind: KindRPCError, RPCErr: fmt.Errorf("rpc error %d: %s", f.Error.Code, f.Error.Message)}
		if f.ID != nil {
			msg.ID = *f.ID
		}
		return msg, nil
	case f.ID != nil:
		return Message{Kind: KindResult, ID: *f.ID}, nil
	case f.Method == notifyHeartbeat:
		return decodeHeartbeat(f.Params)
	case f.Method == notifySubscription:
		return decodeNotification(f.Params)
	default:
		return Message{}, domain.NewDecodeError("frame", fmt.Errorf("%w: method %q", domain.ErrUnexpectedMessage, f.Method))
	}
}

func decodeHeartbeat(params json.RawMessage) (Message, error) {
	var hb heartbeatNotice
	if err := json.Unmarshal(params, &hb); err != nil {
		return Message{}, domain.NewDecodeError("frame", err)
	}
	if hb.Type == "test_request" {
		return Message{Kind: KindTestRequest}, nil
	}
	return Message{Kind: KindHeartbeat}, nil
}

func decodeNotification(params json.RawMessage) (Message, error) {
	var p notificationParams
	if err := json.Unmarshal(params, &p); err != nil {
		return Message{}, domain.NewDecodeError("frame", err)
	}

	// peek at the type first so failures are attributed to the right kind
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(p.Data, &head); err != nil {
		return Message{}, domain.NewDecodeError("frame", err)
	}

	switch head.Type {
	case "snapshot":
		return decodeSnapshot(p.Channel, p.Data)
	case "change":
		return decodeChange(p.Channel, p.Data)
	default:
		return Message{}, domain.NewDecodeError("frame", fmt.Errorf("%w: data type %q on %s", domain.ErrUnexpectedMessage, head.Type, p.Channel))
	}
}

func decodeSnapshot(channel string, raw json.RawMessage) (Message, error) {
	var d bookData
	if err := json.Unmarshal(raw, &d); err != nil {
		return Message{}, domain.NewDecodeError("snapshot", err)
	}

	return Message{
		Kind:       KindSnapshot,
		Channel:    channel,
		Instrument: d.InstrumentName,
		Timestamp:  quant.FromMillis(d.Timestamp),
		Snapshot: domain.Snapshot{
			SequenceID: d.ChangeID,
			Bids:       toLevels(d.Bids),
			Asks:       toLevels(d.Asks),
		},
	}, nil
}

func decodeChange(channel string, raw json.RawMessage) (Message, error) {
	var d bookData
	if err := json.Unmarshal(raw, &d); err != nil {
		return Message{}, domain.NewDecodeError("change", err)
	}
	if d.PrevChangeID == nil {
		return Message{}, domain.NewDecodeError("change", errors.New("missing prev_change_id"))
	}

	bids, err := toEntries(d.Bids)
	if err != nil {
		return Message{}, domain.NewDecodeError("change", fmt.Errorf("bids: %w", err))
	}
	asks, err := toEntries(d.Asks)
	if err != nil {
		return Message{}, domain.NewDecodeError("change", fmt.Errorf("asks: %w", err))
	}

	return Message{
		Kind:       KindChange,
		Channel:    channel,
		Instrument: d.InstrumentName,
		Timestamp:  quant.FromMillis(d.Timestamp),
		Delta: domain.Delta{
			PrevSequenceID: *d.PrevChangeID,
			SequenceID:     d.ChangeID,
			Bids:           bids,
			Asks:           asks,
		},
	}, nil
}

func toLevels(entries []bookEntry) []domain.Level {
	out := make([]domain.Level, len(entries))
	for i, e := range entries {
		out[i] = domain.Level{Price: e.Price, Quantity: e.Quantity}
	}
	return out
}

// toEntries requires the action tag: a change without one cannot be
// told apart from a delete.
func toEntries(entries []bookEntry) ([]domain.Entry, error) {
	out := make([]domain.Entry, len(entries))
	for i, e := range entries {
		if !e.HasAction {
			return nil, fmt.Errorf("%w: entry %d has no action", domain.ErrMalformedEntry, i)
		}
		out[i] = domain.Entry{Action: e.Action, Price: e.Price, Quantity: e.Quantity}
	}
	return out, nil
}

// UnmarshalJSON accepts [action, price, amount] and [price, amount].
func (e *bookEntry) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedEntry, err)
	}

	var nums []json.RawMessage
	switch len(raw) {
	case 3:
		if isNull(raw[0]) {
			return fmt.Errorf("%w: action is null", domain.ErrMalformedEntry)
		}
		if err := json.Unmarshal(raw[0], &e.Action); err != nil {
			return fmt.Errorf("%w: action: %v", domain.ErrMalformedEntry, err)
		}
		e.HasAction = true
		nums = raw[1:]
	case 2:
		nums = raw
	default:
		return fmt.Errorf("%w: %d elements", domain.ErrMalformedEntry, len(raw))
	}

	var err error
	if e.Price, err = decodeNumber(nums[0], "price"); err != nil {
		return err
	}
	if e.Quantity, err = decodeNumber(nums[1], "amount"); err != nil {
		return err
	}
	if e.Price < 0 || e.Quantity < 0 {
		return fmt.Errorf("%w: negative value %v/%v", domain.ErrMalformedEntry, e.Price, e.Quantity)
	}
	return nil
}

// decodeNumber rejects null, which json.Unmarshal would leave as 0.
func decodeNumber(raw json.RawMessage, field string) (float64, error) {
	if isNull(raw) {
		return 0, fmt.Errorf("%w: %s is null", domain.ErrMalformedEntry, field)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrMalformedEntry, field, err)
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
