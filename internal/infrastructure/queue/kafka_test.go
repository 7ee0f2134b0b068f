package queue_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapStreamApp/internal/infrastructure/queue"
	"swapStreamApp/internal/lib/logger/handlers/slogdiscard"
)

// fakeReader replays queued results, then blocks until closed or cancelled.
type fakeReader struct {
	results chan fetchResult
	done    chan struct{}
	once    sync.Once
}

type fetchResult struct {
	msg kafka.Message
	err error
}

func newFakeReader(results ...fetchResult) *fakeReader {
	r := &fakeReader{results: make(chan fetchResult, len(results)), done: make(chan struct{})}
	for _, res := range results {
		r.results <- res
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case res := <-r.results:
		return res.msg, res.err
	default:
	}
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case <-r.done:
		return kafka.Message{}, io.EOF
	}
}

func (r *fakeReader) Close() error {
	r.once.Do(func() { close(r.done) })
	return nil
}

type stateRecorder struct {
	mu     sync.Mutex
	states []queue.ConsumerState
}

func (s *stateRecorder) record(st queue.ConsumerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

func (s *stateRecorder) snapshot() []queue.ConsumerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queue.ConsumerState(nil), s.states...)
}

func testConfig() queue.KafkaConfig {
	return queue.KafkaConfig{
		Brokers:        []string{"localhost:9092"},
		Topic:          "ethereum-swaps",
		ConsumerGroup:  "ethereum-ws-group",
		ReconnectDelay: 20 * time.Millisecond,
	}
}

func TestKafkaConsumer_DeliversValuesAndSkipsTombstones(t *testing.T) {
	reader := newFakeReader(
		fetchResult{msg: kafka.Message{Value: []byte("first")}},
		fetchResult{msg: kafka.Message{Value: nil}},
		fetchResult{msg: kafka.Message{Value: []byte("second")}},
	)
	consumer := queue.NewKafkaConsumer(testConfig(), slogdiscard.NewDiscardLogger(),
		queue.WithReaderFactory(func(ctx context.Context) (queue.MessageReader, error) {
			return reader, nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- consumer.Run(ctx, func(_ context.Context, value []byte) {
			mu.Lock()
			got = append(got, string(value))
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, queue.StateConsuming, consumer.CurrentState())

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"first", "second"}, got)
	assert.Equal(t, queue.StateDisconnected, consumer.CurrentState())
}

func TestKafkaConsumer_ReconnectsAfterFixedDelay(t *testing.T) {
	recorder := &stateRecorder{}
	var mu sync.Mutex
	attempts := 0
	var attemptTimes []time.Time

	consumer := queue.NewKafkaConsumer(testConfig(), slogdiscard.NewDiscardLogger(),
		queue.WithStateHook(recorder.record),
		queue.WithReaderFactory(func(ctx context.Context) (queue.MessageReader, error) {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			attemptTimes = append(attemptTimes, time.Now())
			switch attempts {
			case 1:
				return nil, errors.New("dial tcp: connection refused")
			case 2:
				return newFakeReader(fetchResult{err: errors.New("broker went away")}), nil
			default:
				return newFakeReader(fetchResult{msg: kafka.Message{Value: []byte("ok")}}), nil
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Run(ctx, func(_ context.Context, value []byte) {
			received <- string(value)
		})
	}()

	select {
	case v := <-received:
		assert.Equal(t, "ok", v)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not recover")
	}
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, attempts)
	for i := 1; i < len(attemptTimes); i++ {
		assert.GreaterOrEqual(t, attemptTimes[i].Sub(attemptTimes[i-1]), 20*time.Millisecond)
	}

	assert.Equal(t, []queue.ConsumerState{
		queue.StateConnecting,
		queue.StateReconnecting,
		queue.StateConnecting,
		queue.StateSubscribed,
		queue.StateConsuming,
		queue.StateReconnecting,
		queue.StateConnecting,
		queue.StateSubscribed,
		queue.StateConsuming,
		queue.StateDisconnected,
	}, recorder.snapshot())
}

func TestKafkaConsumer_CloseStopsRun(t *testing.T) {
	reader := newFakeReader()
	consumer := queue.NewKafkaConsumer(testConfig(), slogdiscard.NewDiscardLogger(),
		queue.WithReaderFactory(func(ctx context.Context) (queue.MessageReader, error) {
			return reader, nil
		}),
	)

	done := make(chan error, 1)
	go func() {
		done <- consumer.Run(context.Background(), func(context.Context, []byte) {})
	}()

	require.Eventually(t, func() bool {
		return consumer.CurrentState() == queue.StateConsuming
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, consumer.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestBrokerConnectionError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &queue.BrokerConnectionError{Topic: "base-swaps", Op: "connect", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "base-swaps")
}
