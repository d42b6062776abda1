package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "connect", "read", "write")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a frame does not match the expected schema.
// It is never retriable on its own: the engine substitutes a placeholder or
// resubscribes.
type DecodeError struct {
	Kind string // "snapshot", "change", "frame"
	Err  error
}

func (e *DecodeError) Error() string {
	return "decode " + e.Kind + ": " + e.Err.Error()
}

func (e *DecodeError) IsRetriable() bool {
	return false
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError wraps err as a decode failure of the given frame kind.
func NewDecodeError(kind string, err error) *DecodeError {
	return &DecodeError{Kind: kind, Err: err}
}

var (
	// ErrConnectionFailed is returned when websocket connection fails. It's usually retriable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidInstrument is returned when an instrument name is empty or malformed. Not retriable.
	ErrInvalidInstrument = errors.New("invalid instrument")

	// ErrMalformedEntry is returned when a book entry is neither [action, price, qty] nor [price, qty]
	ErrMalformedEntry = errors.New("malformed book entry")

	// ErrUnexpectedMessage is returned for frames that are not part of the book protocol
	ErrUnexpectedMessage = errors.New("unexpected message")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
