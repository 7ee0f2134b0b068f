package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"swapStreamApp/internal/domain/model"
	"swapStreamApp/internal/domain/useCases"
	"swapStreamApp/internal/infrastructure/wire"
	"swapStreamApp/internal/lib/logger/sl"
)

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	ConsumerGroup     string
	ClientID          string
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	// RetryAttempts bounds the retries the client library performs silently
	// before a failure surfaces and the consumer enters RECONNECTING.
	RetryAttempts    int
	InitialRetryTime time.Duration
	ReconnectDelay   time.Duration
}

// ConsumerState is the connectivity state of a KafkaConsumer.
type ConsumerState int32

const (
	StateDisconnected ConsumerState = iota
	StateConnecting
	StateSubscribed
	StateConsuming
	StateReconnecting
)

func (s ConsumerState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateConsuming:
		return "CONSUMING"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// BrokerConnectionError is a transient broker failure. The consumer retries it
// after the fixed reconnect delay, without limit.
type BrokerConnectionError struct {
	Topic string
	Op    string
	Err   error
}

func (e *BrokerConnectionError) Error() string {
	return fmt.Sprintf("kafka %s on topic %s: %v", e.Op, e.Topic, e.Err)
}

func (e *BrokerConnectionError) Unwrap() error {
	return e.Err
}

// MessageReader is the part of *kafka.Reader the consumer relies on.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReaderFactory opens a subscription to the configured topic.
type ReaderFactory func(ctx context.Context) (MessageReader, error)

// ConsumerOption configures a KafkaConsumer.
type ConsumerOption func(*KafkaConsumer)

// WithReaderFactory replaces the broker connection, mostly for tests.
func WithReaderFactory(f ReaderFactory) ConsumerOption {
	return func(c *KafkaConsumer) {
		c.openReader = f
	}
}

// WithStateHook registers fn to be called on every state transition.
func WithStateHook(fn func(ConsumerState)) ConsumerOption {
	return func(c *KafkaConsumer) {
		c.onState = fn
	}
}

// KafkaConsumer keeps one subscription to a topic alive. It reads only records
// produced after it subscribes and never commits offsets, so a restart
// resumes from "now".
type KafkaConsumer struct {
	cfg        KafkaConfig
	log        *slog.Logger
	openReader ReaderFactory
	onState    func(ConsumerState)
	state      atomic.Int32

	mu     sync.Mutex
	reader MessageReader
	closed bool
}

// NewKafkaConsumer creates a new Kafka consumer
func NewKafkaConsumer(config KafkaConfig, log *slog.Logger, opts ...ConsumerOption) *KafkaConsumer {
	c := &KafkaConsumer{
		cfg: config,
		log: log.With(slog.String("topic", config.Topic), slog.String("group", config.ConsumerGroup)),
	}
	c.openReader = c.dialReader
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run drives DISCONNECTED → CONNECTING → SUBSCRIBED → CONSUMING and loops
// through RECONNECTING on any failure until ctx is done or Close is called.
// Every non-empty record value is handed to handle, one at a time.
func (c *KafkaConsumer) Run(ctx context.Context, handle useCases.MessageHandler) error {
	defer c.setState(StateDisconnected)

	for {
		if ctx.Err() != nil || c.isClosed() {
			return nil
		}

		c.setState(StateConnecting)
		err := c.session(ctx, handle)
		if ctx.Err() != nil || c.isClosed() {
			return nil
		}

		c.setState(StateReconnecting)
		c.log.Warn("kafka subscription lost, reconnecting",
			sl.Err(err),
			slog.Duration("delay", c.cfg.ReconnectDelay),
		)

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session connects, subscribes and consumes until the first failure.
func (c *KafkaConsumer) session(ctx context.Context, handle useCases.MessageHandler) error {
	reader, err := c.openReader(ctx)
	if err != nil {
		return err
	}
	if !c.attach(reader) {
		_ = reader.Close()
		return nil
	}
	defer c.detach(reader)

	c.setState(StateSubscribed)
	c.log.Info("subscribed to topic")

	c.setState(StateConsuming)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &BrokerConnectionError{Topic: c.cfg.Topic, Op: "fetch", Err: err}
		}

		// Tombstones carry no event.
		if len(msg.Value) == 0 {
			continue
		}
		handle(ctx, msg.Value)
	}
}

// dialReader checks that a broker is reachable and the topic exists before
// building the group reader, so an unreachable cluster surfaces quickly.
func (c *KafkaConsumer) dialReader(ctx context.Context) (MessageReader, error) {
	dialer := &kafka.Dialer{
		ClientID:  c.cfg.ClientID,
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	probeErr := errors.New("no brokers configured")
	for _, broker := range c.cfg.Brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			probeErr = err
			continue
		}
		_, err = conn.ReadPartitions(c.cfg.Topic)
		_ = conn.Close()
		if err != nil {
			probeErr = err
			continue
		}
		probeErr = nil
		break
	}
	if probeErr != nil {
		return nil, &BrokerConnectionError{Topic: c.cfg.Topic, Op: "connect", Err: probeErr}
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           c.cfg.Brokers,
		Topic:             c.cfg.Topic,
		GroupID:           c.cfg.ConsumerGroup,
		Dialer:            dialer,
		MinBytes:          1,
		MaxBytes:          10e6, // 10MB
		MaxWait:           500 * time.Millisecond,
		SessionTimeout:    c.cfg.SessionTimeout,
		HeartbeatInterval: c.cfg.HeartbeatInterval,
		MaxAttempts:       c.cfg.RetryAttempts,
		ReadBackoffMin:    c.cfg.InitialRetryTime,
		// Offsets are never committed, so the group always starts at the tail.
		StartOffset: kafka.LastOffset,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			c.log.Debug("kafka reader: " + strings.TrimSpace(fmt.Sprintf(msg, args...)))
		}),
	})
	return reader, nil
}

// State returns the current state name.
func (c *KafkaConsumer) State() string {
	return c.CurrentState().String()
}

// CurrentState returns the current state.
func (c *KafkaConsumer) CurrentState() ConsumerState {
	return ConsumerState(c.state.Load())
}

func (c *KafkaConsumer) setState(s ConsumerState) {
	if ConsumerState(c.state.Swap(int32(s))) == s {
		return
	}
	c.log.Debug("consumer state changed", slog.String("state", s.String()))
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *KafkaConsumer) attach(r MessageReader) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.reader = r
	return true
}

func (c *KafkaConsumer) detach(r MessageReader) {
	c.mu.Lock()
	if c.reader == r {
		c.reader = nil
	}
	c.mu.Unlock()
	if err := r.Close(); err != nil {
		c.log.Debug("closing kafka reader", sl.Err(err))
	}
}

func (c *KafkaConsumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close ends the subscription. Run returns once the in-flight fetch unblocks.
func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	c.closed = true
	r := c.reader
	c.reader = nil
	c.mu.Unlock()

	if r != nil {
		return r.Close()
	}
	return nil
}

// KafkaProducer publishes encoded trade events. The bridge never produces;
// it backs the demo feed generator.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a new Kafka producer
func NewKafkaProducer(config KafkaConfig) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Topic:                  config.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Compression:            kafka.Lz4,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}

	return &KafkaProducer{writer: writer}
}

// PublishTrade sends one trade event, keyed by pool so a pool's trades stay ordered.
func (p *KafkaProducer) PublishTrade(ctx context.Context, ev *model.TradeEvent) error {
	return p.PublishTradeBatch(ctx, []*model.TradeEvent{ev})
}

// PublishTradeBatch sends trade events in one write.
func (p *KafkaProducer) PublishTradeBatch(ctx context.Context, events []*model.TradeEvent) error {
	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		msgs[i] = kafka.Message{
			Key:   []byte(ev.PoolAddress),
			Value: wire.Encode(ev),
			Time:  time.Now(),
		}
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close closes the producer
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
