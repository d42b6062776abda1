package deribit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"deribit_book/internal/domain"
	"deribit_book/internal/event"
	"deribit_book/internal/infra"
	"deribit_book/pkg/quant"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Worker streams one Deribit book channel into the engine inbox.
// Every (re)connection is a new session with its own id; the first book
// message of a session is always a snapshot.
type Worker struct {
	url        string
	instrument string
	channel    string
	heartbeat  int

	inbox   chan<- event.Event
	seq     *uint64
	metrics *infra.Metrics

	conn      *websocket.Conn
	session   string
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	done      chan struct{}
	err       error // set once when the loop stops on a fatal error

	rpcID       atomic.Int64
	subscribeID atomic.Int64
}

var _ domain.FeedWorker = (*Worker)(nil)

// NewWorker creates a new Deribit book worker
func NewWorker(cfg *infra.Config, inbox chan<- event.Event, seq *uint64) *Worker {
	return &Worker{
		url:        cfg.API.Deribit.WSURL,
		instrument: cfg.API.Deribit.Instrument,
		channel:    cfg.Channel(),
		heartbeat:  cfg.API.Deribit.HeartbeatSec,
		inbox:      inbox,
		seq:        seq,
		metrics:    infra.GlobalMetrics,
		done:       make(chan struct{}),
	}
}

// Connect starts the WebSocket connection
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.done)
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := w.connect(ctx)
		if err == nil {
			gotBook, sessionErr := w.readLoop(ctx)
			switch {
			case sessionErr != nil && !domain.IsRetriable(sessionErr):
				err = sessionErr
			case gotBook:
				retryCount = 0
				continue
			case sessionErr != nil:
				err = sessionErr
			default:
				// a session that never delivered book data counts as a failed attempt
				err = domain.NewNetworkError("session", errors.New("ended before any book data"))
			}
		}

		if !domain.IsRetriable(err) && ctx.Err() == nil {
			slog.Error("Deribit worker stopped", slog.Any("error", err))
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
			return
		}

		slog.Warn("Deribit connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
		delay := infra.CalculateBackoff(retryCount)
		retryCount++
		if retryCount > maxRetries {
			retryCount = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}

	conn, _, err := dialer.DialContext(ctx, w.url, make(http.Header))
	if err != nil {
		return domain.NewNetworkError("dial", fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err))
	}

	session := uuid.NewString()
	w.mu.Lock()
	w.conn = conn
	w.session = session
	w.connected = true
	w.mu.Unlock()
	w.metrics.IncrementConnections()

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return domain.NewNetworkError("subscribe", err)
	}

	slog.Info("Deribit Connected",
		slog.String("channel", w.channel),
		slog.String("session", session),
	)
	return nil
}

func (w *Worker) subscribe() error {
	if w.heartbeat > 0 {
		if err := w.call(methodSetHeartbeat, heartbeatParams{Interval: w.heartbeat}); err != nil {
			return err
		}
	}
	id, err := w.send(methodSubscribe, subscribeParams{Channels: []string{w.channel}})
	w.subscribeID.Store(id)
	return err
}

func (w *Worker) call(method string, params interface{}) error {
	_, err := w.send(method, params)
	return err
}

func (w *Worker) send(method string, params interface{}) (int64, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      w.rpcID.Add(1),
		Method:  method,
		Params:  params,
	}
	b, err := json.Marshal(req)
	if err != nil {
		return req.ID, err
	}
	return req.ID, w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *Worker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteMessage(msgType, data)
}

// readLoop reads until the connection fails or ctx ends.
// It reports whether any book message was forwarded, and the error that
// ended the session, if the session itself failed.
func (w *Worker) readLoop(ctx context.Context) (bool, error) {
	gotBook := false
	for {
		select {
		case <-ctx.Done():
			return gotBook, nil
		default:
		}

		w.mu.RLock()
		conn, session := w.conn, w.session
		w.mu.RUnlock()
		if conn == nil {
			return gotBook, nil
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("Deribit read failed", slog.Any("error", err), slog.String("session", session))
			}
			w.closeConnection()
			return gotBook, nil
		}

		forwarded, err := w.handleMessage(ctx, session, msg)
		if forwarded {
			gotBook = true
		}
		if err != nil {
			slog.Error("Deribit session aborted", slog.Any("error", err), slog.String("session", session))
			w.closeConnection()
			return gotBook, err
		}
	}
}

// handleMessage decodes one frame and forwards book data to the inbox.
// A returned error ends the session.
func (w *Worker) handleMessage(ctx context.Context, session string, raw []byte) (bool, error) {
	msg, err := Decode(raw)
	if err != nil {
		kind := "frame"
		var de *domain.DecodeError
		if errors.As(err, &de) {
			kind = de.Kind
		}
		slog.Warn("Deribit decode failed", slog.String("kind", kind), slog.Any("error", err))
		w.emit(ctx, &event.DecodeFailureEvent{
			BaseEvent: w.base(session, quant.Now()),
			Kind:      kind,
			Err:       err,
		})
		if kind == "snapshot" {
			// nothing in this session can chain without its snapshot
			return false, domain.NewNetworkError("snapshot", err)
		}
		return false, nil
	}

	switch msg.Kind {
	case KindResult:
		slog.Debug("Deribit rpc ok", slog.Int64("id", msg.ID))
		return false, nil
	case KindRPCError:
		if msg.ID == w.subscribeID.Load() {
			// an unknown channel will not start working on retry
			return false, domain.NewFatalNetworkError(methodSubscribe, msg.RPCErr)
		}
		return false, domain.NewNetworkError("rpc", msg.RPCErr)
	case KindTestRequest:
		if err := w.call(methodTest, struct{}{}); err != nil {
			return false, domain.NewNetworkError("write", err)
		}
		return false, nil
	case KindHeartbeat:
		return false, nil
	}

	if msg.Channel != w.channel {
		slog.Debug("Deribit message for other channel", slog.String("channel", msg.Channel))
		return false, nil
	}

	switch msg.Kind {
	case KindSnapshot:
		return w.emit(ctx, &event.SnapshotEvent{
			BaseEvent:  w.base(session, msg.Timestamp),
			Instrument: msg.Instrument,
			Snapshot:   msg.Snapshot,
		}), nil
	case KindChange:
		ev := event.AcquireChangeEvent()
		ev.BaseEvent = w.base(session, msg.Timestamp)
		ev.Instrument = msg.Instrument
		ev.Delta.PrevSequenceID = msg.Delta.PrevSequenceID
		ev.Delta.SequenceID = msg.Delta.SequenceID
		ev.Delta.Bids = append(ev.Delta.Bids, msg.Delta.Bids...)
		ev.Delta.Asks = append(ev.Delta.Asks, msg.Delta.Asks...)
		if !w.emit(ctx, ev) {
			event.ReleaseChangeEvent(ev)
			return false, nil
		}
		return true, nil
	}
	return false, nil
}

func (w *Worker) base(session string, ts quant.TimeStamp) event.BaseEvent {
	return event.BaseEvent{
		Seq:     quant.NextSeq(w.seq),
		Ts:      ts,
		Session: session,
	}
}

// emit blocks until the engine accepts the event. Dropping book data would
// only surface later as a gap, so back-pressure is preferred.
func (w *Worker) emit(ctx context.Context, ev event.Event) bool {
	select {
	case w.inbox <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Resync drops the connection of session. The connection loop reconnects
// and the new subscription starts with a snapshot. A request for a session
// that has already ended is ignored.
func (w *Worker) Resync(session, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if session == "" || session != w.session {
		slog.Debug("Deribit resync for stale session ignored",
			slog.String("reason", reason),
			slog.String("session", session),
			slog.String("current", w.session),
		)
		return
	}
	slog.Warn("Deribit resync requested", slog.String("reason", reason), slog.String("session", session))
	w.closeLocked()
}

// IsConnected returns the connection status
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Done is closed when the connection loop exits.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns the fatal error that stopped the worker, if any.
func (w *Worker) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeLocked()
}

func (w *Worker) closeLocked() {
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
		w.metrics.DecrementConnections()
	}
	w.session = ""
	w.connected = false
}

// Disconnect stops the connection loop and waits for it to exit.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
