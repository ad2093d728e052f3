// ABOUTME: Cross-instance cache invalidation over MQTT.
// ABOUTME: Local invalidations are published; messages from other instances invalidate the local cache.

package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/2389/sitewalk/internal/config"
	"github.com/2389/sitewalk/internal/querycache"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds
	outboxSize        = 256
)

var (
	ErrDisabled         = errors.New("events: disabled in configuration")
	ErrConnectionFailed = errors.New("events: connection failed")
	ErrSubscribeFailed  = errors.New("events: subscribe failed")
)

// Message is the wire format of one invalidation.
type Message struct {
	Origin string    `json:"origin"`
	Key    string    `json:"key"`
	At     time.Time `json:"at"`
}

// transport is the subset of the paho client the bus uses.
type transport interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Unsubscribe(topics ...string) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Bus relays cache invalidations between instances sharing a broker.
type Bus struct {
	client transport
	topic  string
	qos    byte
	origin string
	cache  *querycache.Cache
	logger zerolog.Logger

	// applying counts remote keys being invalidated locally, so they are
	// not published back.
	mu       sync.Mutex
	applying map[string]int

	outbox      chan Message
	done        chan struct{}
	wg          sync.WaitGroup
	unsubscribe func()
	closeOnce   sync.Once
}

// Connect dials the broker and starts relaying.
func Connect(cfg config.MQTTConfig, cache *querycache.Cache, logger zerolog.Logger) (*Bus, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "sitewalk-" + uuid.NewString()[:8]
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	b := newBus(nil, cfg.Topic, byte(cfg.QoS), cache, logger)
	// Subscriptions do not survive a clean-session reconnect.
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		if err := b.subscribe(); err != nil {
			logger.Warn().Err(err).Msg("mqtt resubscribe failed")
		}
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := pahomqtt.NewClient(opts)
	b.client = client
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	b.start()
	logger.Info().Str("broker", cfg.Broker).Str("topic", cfg.Topic).Str("origin", b.origin).Msg("invalidation bus connected")
	return b, nil
}

func newBus(client transport, topic string, qos byte, cache *querycache.Cache, logger zerolog.Logger) *Bus {
	return &Bus{
		client:   client,
		topic:    topic,
		qos:      qos,
		origin:   uuid.NewString(),
		cache:    cache,
		logger:   logger,
		applying: make(map[string]int),
		outbox:   make(chan Message, outboxSize),
		done:     make(chan struct{}),
	}
}

// Origin identifies this instance in published messages.
func (b *Bus) Origin() string { return b.origin }

func (b *Bus) start() {
	b.unsubscribe = b.cache.Subscribe(b.enqueue)
	b.wg.Add(1)
	go b.publishLoop()
}

func (b *Bus) subscribe() error {
	token := b.client.Subscribe(b.topic, b.qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handle(msg.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// enqueue is the cache subscriber. It must not block, so a full outbox
// drops the message.
func (b *Bus) enqueue(key string) {
	b.mu.Lock()
	remote := b.applying[key] > 0
	b.mu.Unlock()
	if remote {
		return
	}

	select {
	case b.outbox <- Message{Origin: b.origin, Key: key, At: time.Now().UTC()}:
	default:
		b.logger.Warn().Str("key", key).Msg("invalidation outbox full, dropping")
	}
}

func (b *Bus) publishLoop() {
	defer b.wg.Done()
	for {
		select {
		case msg := <-b.outbox:
			b.publish(msg)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) publish(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().Err(err).Msg("encoding invalidation")
		return
	}
	token := b.client.Publish(b.topic, b.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		b.logger.Warn().Str("key", msg.Key).Msg("invalidation publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		b.logger.Warn().Err(err).Str("key", msg.Key).Msg("invalidation publish failed")
	}
}

// handle applies a message from the broker. Our own messages are ignored.
func (b *Bus) handle(payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.Warn().Err(err).Msg("malformed invalidation message")
		return
	}
	if msg.Origin == b.origin || msg.Key == "" {
		return
	}

	b.mu.Lock()
	b.applying[msg.Key]++
	b.mu.Unlock()

	n := b.cache.Invalidate(msg.Key)

	b.mu.Lock()
	if b.applying[msg.Key]--; b.applying[msg.Key] == 0 {
		delete(b.applying, msg.Key)
	}
	b.mu.Unlock()

	b.logger.Debug().Str("key", msg.Key).Str("origin", msg.Origin).Int("entries", n).Msg("remote invalidation")
}

// Close stops relaying and disconnects.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		if b.unsubscribe != nil {
			b.unsubscribe()
		}
		close(b.done)
		b.wg.Wait()
		if b.client != nil {
			b.client.Unsubscribe(b.topic).WaitTimeout(publishTimeout)
			b.client.Disconnect(disconnectQuiesce)
		}
	})
}
