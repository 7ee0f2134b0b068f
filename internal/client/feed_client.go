// Package client is the viewer-side counterpart of the bridge: it keeps a
// websocket subscription to one feed alive, deduplicates and buffers the
// events it receives and maintains running statistics.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"swapStreamApp/internal/domain/model"
	"swapStreamApp/internal/domain/service"
	"swapStreamApp/internal/domain/useCases"
	"swapStreamApp/internal/lib/logger/sl"
)

const (
	DefaultReconnectDelay = 5 * time.Second

	msgConnectionLost = "Connection lost - attempting to reconnect..."
)

// State is the connection state of a Client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnectWait
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnectWait:
		return "RECONNECT_WAIT"
	default:
		return "UNKNOWN"
	}
}

// TransportConnectionError means the feed could not be reached.
type TransportConnectionError struct {
	URL string
	Err error
}

func (e *TransportConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.URL, e.Err)
}

func (e *TransportConnectionError) Unwrap() error {
	return e.Err
}

// TransportProtocolError means a frame could not be decoded; the frame is dropped.
type TransportProtocolError struct {
	Err error
}

func (e *TransportProtocolError) Error() string {
	return fmt.Sprintf("undecodable frame: %v", e.Err)
}

func (e *TransportProtocolError) Unwrap() error {
	return e.Err
}

// Conn is the part of a websocket connection the client reads from.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// DialFunc opens a transport connection to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// DialWebSocket dials with the gorilla default dialer.
func DialWebSocket(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options configures a Client.
type Options struct {
	URL            string
	ReconnectDelay time.Duration
	BufferCapacity int
	Dial           DialFunc
	Now            func() time.Time
	Log            *slog.Logger
	// Sink receives accepted events; defaults to a service.EventStore.
	Sink useCases.EventSink
}

// Snapshot is everything the presentation layer renders, read at one instant.
type Snapshot struct {
	State  State
	Error  string
	Events []model.TradeEvent
	Stats  model.RunningStats
}

// Client is a resilient feed subscriber. All state transitions, buffer and
// statistics mutations happen on one goroutine, one event at a time.
type Client struct {
	opts Options
	sink useCases.EventSink
	log  *slog.Logger

	commands chan command
	events   chan event
	changes  chan struct{}
	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	// Owned by the loop goroutine.
	gen        uint64
	conn       Conn
	cancelDial context.CancelFunc
	timer      *time.Timer

	mu     sync.RWMutex
	state  State
	errMsg string
}

// New creates a client in DISCONNECTED state and starts its event loop.
// Call Connect to open the feed and Close to release the client.
func New(opts Options) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Dial == nil {
		opts.Dial = DialWebSocket
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	sink := opts.Sink
	if sink == nil {
		sink = service.NewEventStore(opts.BufferCapacity)
	}

	c := &Client{
		opts:     opts,
		sink:     sink,
		log:      opts.Log.With(slog.String("url", opts.URL)),
		commands: make(chan command),
		events:   make(chan event, 256),
		changes:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go c.loop()
	return c
}

// Connect opens the feed. It is a no-op while connecting or connected, and
// skips the remaining wait when called during RECONNECT_WAIT.
func (c *Client) Connect() {
	c.do(cmdConnect)
}

// Disconnect closes the live transport and cancels any pending reconnect.
// No further transition happens until Connect is called again.
func (c *Client) Disconnect() {
	c.do(cmdDisconnect)
}

// ClearEvents empties the buffer and zeroes the statistics in one step.
func (c *Client) ClearEvents() {
	c.do(cmdClear)
}

// Close disconnects and stops the event loop. The client is unusable afterwards.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.stopped
}

// Changes delivers a coalesced notification after every observable change.
func (c *Client) Changes() <-chan struct{} {
	return c.changes
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastError returns the message to show the viewer, or "" when healthy.
func (c *Client) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errMsg
}

// Snapshot returns state, error, buffer and statistics.
func (c *Client) Snapshot() Snapshot {
	c.mu.RLock()
	state, errMsg := c.state, c.errMsg
	c.mu.RUnlock()

	events, stats := c.sink.Snapshot()
	return Snapshot{State: state, Error: errMsg, Events: events, Stats: stats}
}

func (c *Client) do(kind commandKind) {
	cmd := command{kind: kind, done: make(chan struct{})}
	select {
	case c.commands <- cmd:
		<-cmd.done
	case <-c.stopped:
	}
}

func (c *Client) loop() {
	defer close(c.stopped)

	for {
		select {
		case <-c.stop:
			c.teardown()
			return
		case cmd := <-c.commands:
			c.handleCommand(cmd.kind)
			close(cmd.done)
		case ev := <-c.events:
			c.handleEvent(ev)
		}
	}
}

func (c *Client) handleCommand(kind commandKind) {
	switch kind {
	case cmdConnect:
		switch c.State() {
		case StateDisconnected, StateReconnectWait:
			c.startConnect()
		}
	case cmdDisconnect:
		c.teardown()
		c.setState(StateDisconnected, c.LastError())
	case cmdClear:
		c.sink.Clear()
		c.notify()
	}
}

func (c *Client) handleEvent(ev event) {
	if ev.generation() != c.gen {
		// Left over from a connection that was torn down.
		if o, ok := ev.(opened); ok {
			_ = o.conn.Close()
		}
		return
	}

	switch e := ev.(type) {
	case opened:
		c.cancelDial = nil
		c.conn = e.conn
		c.setState(StateConnected, "")
		c.log.Info("connected to feed")
		go c.readLoop(e.gen, e.conn)

	case errorOccurred:
		c.cancelDial = nil
		err := &TransportConnectionError{URL: c.opts.URL, Err: e.err}
		c.log.Warn("feed connection failed", sl.Err(err))
		c.scheduleReconnect("Failed to connect to stream")

	case messageReceived:
		c.handleFrame(e.data)

	case closed:
		_ = c.conn.Close()
		c.conn = nil
		if isNormalClose(e.err) {
			c.log.Info("feed connection closed")
			c.scheduleReconnect(c.LastError())
		} else {
			c.log.Warn("feed connection lost", sl.Err(e.err))
			c.scheduleReconnect(msgConnectionLost)
		}

	case reconnectDue:
		c.timer = nil
		if c.State() == StateReconnectWait {
			c.log.Info("attempting to reconnect")
			c.startConnect()
		}
	}
}

func (c *Client) handleFrame(data []byte) {
	var probe struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		c.log.Warn("dropping frame", sl.Err(&TransportProtocolError{Err: err}))
		return
	}
	if probe.Type == model.ControlTypeConnected {
		c.log.Debug("connection confirmed", slog.String("message", probe.Message))
		return
	}

	var ev model.TradeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.log.Warn("dropping frame", sl.Err(&TransportProtocolError{Err: err}))
		return
	}
	ev.ReceivedAt = c.opts.Now()

	if c.sink.Add(ev) {
		c.notify()
	}
}

func (c *Client) startConnect() {
	c.stopTimer()
	c.gen++
	gen := c.gen

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.setState(StateConnecting, c.LastError())

	go func() {
		defer cancel()
		conn, err := c.opts.Dial(ctx, c.opts.URL)
		if err != nil {
			c.post(errorOccurred{gen: gen, err: err})
			return
		}
		if !c.post(opened{gen: gen, conn: conn}) {
			_ = conn.Close()
		}
	}()
}

func (c *Client) scheduleReconnect(errMsg string) {
	c.setState(StateReconnectWait, errMsg)

	gen := c.gen
	c.timer = time.AfterFunc(c.opts.ReconnectDelay, func() {
		c.post(reconnectDue{gen: gen})
	})
}

// teardown releases the transport, the dial and the timer, and invalidates
// every event still in flight for them.
func (c *Client) teardown() {
	c.gen++
	c.stopTimer()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) readLoop(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.post(closed{gen: gen, err: err})
			return
		}
		if !c.post(messageReceived{gen: gen, data: data}) {
			return
		}
	}
}

// post hands ev to the loop; it returns false once the client is closed.
func (c *Client) post(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.stop:
		return false
	}
}

func (c *Client) setState(s State, errMsg string) {
	c.mu.Lock()
	changed := c.state != s || c.errMsg != errMsg
	c.state = s
	c.errMsg = errMsg
	c.mu.Unlock()

	if changed {
		c.log.Debug("client state changed", slog.String("state", s.String()))
		c.notify()
	}
}

func (c *Client) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// isNormalClose reports a clean close (1000 or 1001), which is not shown to
// the viewer as an error.
func isNormalClose(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
	}
	return false
}
