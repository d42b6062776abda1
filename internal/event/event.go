package event

import (
	"deribit_book/internal/domain"
	"deribit_book/pkg/quant"
)

// Type identifies the kind of event flowing from a feed worker to the engine.
type Type int

const (
	TypeSnapshot Type = iota + 1
	TypeChange
	TypeDecodeFailure
)

// String returns the string representation of Type
func (t Type) String() string {
	switch t {
	case TypeSnapshot:
		return "SNAPSHOT"
	case TypeChange:
		return "CHANGE"
	case TypeDecodeFailure:
		return "DECODE_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Event is anything a feed worker sends to the engine inbox.
type Event interface {
	GetType() Type
	GetSeq() uint64
	GetSession() string
}

// BaseEvent carries the fields shared by every event.
// Seq is the worker-local frame counter, Session the connection id.
type BaseEvent struct {
	Seq     uint64
	Ts      quant.TimeStamp
	Session string
}

func (e *BaseEvent) GetSeq() uint64     { return e.Seq }
func (e *BaseEvent) GetSession() string { return e.Session }

// SnapshotEvent delivers the full book sent first on every subscription.
type SnapshotEvent struct {
	BaseEvent
	Instrument string
	Snapshot   domain.Snapshot
}

func (e *SnapshotEvent) GetType() Type { return TypeSnapshot }

// ChangeEvent delivers one incremental update. ChangeEvents are pooled.
type ChangeEvent struct {
	BaseEvent
	Instrument string
	Delta      domain.Delta
}

func (e *ChangeEvent) GetType() Type { return TypeChange }

// DecodeFailureEvent reports a frame that could not be decoded.
// Kind is "snapshot" or "change".
type DecodeFailureEvent struct {
	BaseEvent
	Kind string
	Err  error
}

func (e *DecodeFailureEvent) GetType() Type { return TypeDecodeFailure }
