package websocket_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"swapStreamApp/internal/domain/model"
	ws "swapStreamApp/internal/handlers/websocket"
	"swapStreamApp/internal/lib/logger/handlers/slogdiscard"
)

type MockSubscriber struct {
	mock.Mock
	id string

	mu       sync.Mutex
	received [][]byte
}

func NewMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{id: id}
}

func (m *MockSubscriber) ID() string {
	return m.id
}

func (m *MockSubscriber) Send(msg []byte) error {
	args := m.Called(msg)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.received = append(m.received, msg)
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockSubscriber) Close() error {
	m.Called()
	return nil
}

func (m *MockSubscriber) Received() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.received...)
}

func newBroadcaster() *ws.WebSocketBroadcaster {
	return ws.NewWebSocketBroadcaster("Ethereum swaps", 4, slogdiscard.NewDiscardLogger())
}

func TestBroadcast_PartialFailureDropsOnlyFailingSubscriber(t *testing.T) {
	b := newBroadcaster()

	first := NewMockSubscriber("first")
	second := NewMockSubscriber("second")
	third := NewMockSubscriber("third")
	for _, s := range []*MockSubscriber{first, second, third} {
		s.On("Send", mock.Anything).Return(nil).Once()
		require.NoError(t, b.Attach(s))
	}
	require.Equal(t, 3, b.SubscriberCount())

	first.On("Send", mock.Anything).Return(nil)
	second.On("Send", mock.Anything).Return(ws.ErrSendQueueFull)
	second.On("Close").Return()
	third.On("Send", mock.Anything).Return(nil)

	ev := &model.TradeEvent{TransactionID: "0xabc", TradeType: model.TradeTypeBuy}
	require.NoError(t, b.Broadcast(context.Background(), ev))

	// Control frame plus the event.
	assert.Len(t, first.Received(), 2)
	assert.Len(t, third.Received(), 2)
	assert.Len(t, second.Received(), 1)

	assert.True(t, b.Registry().Contains("first"))
	assert.False(t, b.Registry().Contains("second"))
	assert.True(t, b.Registry().Contains("third"))
	second.AssertCalled(t, "Close")

	counters := b.Counters()
	assert.Equal(t, uint64(1), counters.Broadcasts)
	assert.Equal(t, uint64(2), counters.Deliveries)
	assert.Equal(t, uint64(1), counters.DeliveryFailures)
}

func TestAttach_SendsControlFrameFirst(t *testing.T) {
	b := newBroadcaster()
	sub := NewMockSubscriber("viewer")
	sub.On("Send", mock.Anything).Return(nil)

	require.NoError(t, b.Attach(sub))
	require.NoError(t, b.Broadcast(context.Background(), &model.TradeEvent{TransactionID: "0x1"}))

	frames := sub.Received()
	require.Len(t, frames, 2)

	var control model.ControlMessage
	require.NoError(t, json.Unmarshal(frames[0], &control))
	assert.Equal(t, "connected", control.Type)
	assert.Equal(t, "WebSocket connected to Ethereum swaps stream", control.Message)

	var ev model.TradeEvent
	require.NoError(t, json.Unmarshal(frames[1], &ev))
	assert.Equal(t, "0x1", ev.TransactionID)
}

func TestAttach_RejectsDuplicateHandle(t *testing.T) {
	b := newBroadcaster()
	sub := NewMockSubscriber("same")
	sub.On("Send", mock.Anything).Return(nil)
	sub.On("Close").Return()

	require.NoError(t, b.Attach(sub))
	assert.Error(t, b.Attach(sub))
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestAttach_FailedControlFrame(t *testing.T) {
	b := newBroadcaster()
	sub := NewMockSubscriber("gone")
	sub.On("Send", mock.Anything).Return(ws.ErrConnectionClosed)
	sub.On("Close").Return()

	err := b.Attach(sub)
	var deliveryErr *ws.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, "gone", deliveryErr.SubscriberID)
	assert.True(t, errors.Is(err, ws.ErrConnectionClosed))
	assert.Zero(t, b.SubscriberCount())
}

func TestClose_StopsDelivery(t *testing.T) {
	b := newBroadcaster()
	sub := NewMockSubscriber("viewer")
	sub.On("Send", mock.Anything).Return(nil)
	sub.On("Close").Return()
	require.NoError(t, b.Attach(sub))

	b.Close()

	sub.AssertCalled(t, "Close")
	assert.Zero(t, b.SubscriberCount())
	assert.ErrorIs(t, b.Broadcast(context.Background(), &model.TradeEvent{TransactionID: "late"}), ws.ErrBroadcasterClosed)
	assert.Len(t, sub.Received(), 1)

	late := NewMockSubscriber("late")
	late.On("Close").Return()
	assert.ErrorIs(t, b.Attach(late), ws.ErrBroadcasterClosed)
}

func TestDetach_IsIdempotent(t *testing.T) {
	b := newBroadcaster()
	sub := NewMockSubscriber("viewer")
	sub.On("Send", mock.Anything).Return(nil)
	sub.On("Close").Return()
	require.NoError(t, b.Attach(sub))

	b.Detach(sub)
	b.Detach(sub)
	assert.Zero(t, b.SubscriberCount())
}

func TestHandler_EndToEnd(t *testing.T) {
	b := newBroadcaster()
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()
	defer b.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	dial := func() *gws.Conn {
		conn, _, err := gws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(data), `"type":"connected"`)
		return conn
	}

	a := dial()
	defer a.Close()
	c := dial()
	defer c.Close()

	require.Eventually(t, func() bool { return b.SubscriberCount() == 2 }, time.Second, 5*time.Millisecond)

	ev := &model.TradeEvent{TransactionID: "0xfeed", PriceUsd: "1.25", Timestamp: 42}
	require.NoError(t, b.Broadcast(context.Background(), ev))

	for _, conn := range []*gws.Conn{a, c} {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var got model.TradeEvent
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "0xfeed", got.TransactionID)
		assert.Contains(t, string(data), `"timestamp":"42"`)
	}

	require.NoError(t, a.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
}
