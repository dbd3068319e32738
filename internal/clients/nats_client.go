package clients

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/config"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/metrics"
)

// NATSClient NATS client with optional JetStream
type NATSClient struct {
	conn         *nats.Conn
	js           nats.JetStreamContext
	streamName   string
	consumerName string
	maxDeliver   int
	logger       *logrus.Logger
	subs         []*nats.Subscription
}

// NewNATSClient connects to NATS. JetStream is used when enabled in cfg.
func NewNATSClient(cfg config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}
	reconnectWait := 5 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}
	maxReconnects := cfg.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = -1
	}

	logger.WithFields(logrus.Fields{
		"url":     cfg.URL,
		"timeout": connectTimeout,
	}).Info("🔌 Connecting to NATS")

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS failed: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	client := &NATSClient{
		conn:         conn,
		streamName:   cfg.StreamName,
		consumerName: cfg.ConsumerName,
		maxDeliver:   cfg.MaxDeliver,
		logger:       logger,
	}

	if cfg.EnableJetStream {
		js, err := conn.JetStream()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create JetStream context failed: %w", err)
		}
		client.js = js
	}

	return client, nil
}

// JetStreamEnabled reports whether publishes are persisted in a stream
func (c *NATSClient) JetStreamEnabled() bool {
	return c.js != nil
}

// EnsureStream creates the JetStream stream for subjects if it does not exist
func (c *NATSClient) EnsureStream(subjects []string) error {
	if c.js == nil {
		return nil
	}

	if _, err := c.js.StreamInfo(c.streamName); err == nil {
		c.logger.WithField("stream", c.streamName).Info("JetStream stream already exists")
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info failed: %w", err)
	}

	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:      c.streamName,
		Subjects:  subjects,
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("create stream failed: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"stream":   c.streamName,
		"subjects": subjects,
	}).Info("✅ JetStream stream created")
	return nil
}

// Publish sends data on subject. With JetStream the returned value is the
// stream sequence of the stored message, otherwise 0.
func (c *NATSClient) Publish(subject string, data []byte) (uint64, error) {
	if c.js == nil {
		if err := c.conn.Publish(subject, data); err != nil {
			return 0, fmt.Errorf("publish to %s failed: %w", subject, err)
		}
		return 0, nil
	}

	ack, err := c.js.Publish(subject, data)
	if err != nil {
		return 0, fmt.Errorf("publish to %s failed: %w", subject, err)
	}
	return ack.Sequence, nil
}

// Subscribe registers handler on subject. JetStream subscriptions use a
// durable consumer with explicit acks; the handler must Ack or Nak.
func (c *NATSClient) Subscribe(subject string, handler nats.MsgHandler) error {
	var (
		sub *nats.Subscription
		err error
	)
	if c.js != nil {
		opts := []nats.SubOpt{nats.ManualAck(), nats.AckExplicit()}
		if c.consumerName != "" {
			opts = append(opts, nats.Durable(c.consumerName))
		}
		if c.maxDeliver > 0 {
			opts = append(opts, nats.MaxDeliver(c.maxDeliver))
		}
		sub, err = c.js.Subscribe(subject, handler, opts...)
	} else {
		sub, err = c.conn.Subscribe(subject, handler)
	}
	if err != nil {
		return fmt.Errorf("subscribe to %s failed: %w", subject, err)
	}

	c.subs = append(c.subs, sub)
	c.logger.WithFields(logrus.Fields{
		"subject":   subject,
		"jetstream": c.js != nil,
	}).Info("✅ NATS subscription active")
	return nil
}

// Close drains subscriptions and closes the connection
func (c *NATSClient) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	metrics.NATSConnectionStatus.Set(0)
}

// IsConnected connection health
func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
