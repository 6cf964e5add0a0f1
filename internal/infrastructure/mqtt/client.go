package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/openhold/doorkeeper/internal/infrastructure/config"
)

const (
	// connectTimeout bounds the initial broker connection.
	connectTimeout = 10 * time.Second

	// tokenTimeout bounds publish and subscribe acknowledgements.
	tokenTimeout = 5 * time.Second

	// disconnectQuiesce is how long Close waits for in-flight
	// operations, in milliseconds (paho takes a plain uint).
	disconnectQuiesce = 1000

	keepAlive = 60 * time.Second
)

// MessageHandler receives one inbound message. Handlers run on paho's
// delivery goroutines; returned errors are logged, never fatal, since a
// malformed lock payload must not take the controller down.
type MessageHandler func(topic string, payload []byte) error

// Logger is the slice of logging.Logger the client needs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client is the broker connection shared by the bridge, the gateway and
// the API. It reconnects on its own and replays subscriptions, so the
// lock feed survives broker restarts without the callers noticing.
// Safe for concurrent use.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	mu           sync.Mutex
	subs         map[string]subscription
	connected    bool
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker and blocks until the session is up or the
// timeout expires. The session carries a retained last-will on the
// service status topic so peers can tell a crash from a clean shutdown;
// the matching "online" status is published on every (re)connect.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:  cfg,
		subs: make(map[string]subscription),
	}

	opts := newClientOptions(cfg)
	opts.SetWill(Topics{}.SystemStatus(), statusPayload("offline", "unexpected_disconnect", cfg.Broker.ClientID), 1, true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.sessionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.sessionDown(err) })

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: no broker response within %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously; mark the session up
	// here too so IsConnected holds as soon as Connect returns.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

// newClientOptions maps the config section onto paho options: broker
// URL, credentials, clean session, bounded-backoff auto-reconnect and
// TLS 1.2+ when enabled.
func newClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

// statusPayload builds the service status JSON published on the LWT
// topic. Reason is empty for the online status.
func statusPayload(status, reason, clientID string) string {
	if reason != "" {
		return fmt.Sprintf(`{"status":%q,"client_id":%q,"reason":%q,"timestamp":%q}`,
			status, clientID, reason, time.Now().UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`,
		status, clientID, time.Now().UTC().Format(time.RFC3339))
}

// sessionUp runs on every (re)connect: replay subscriptions, announce
// the service, notify the owner's callback.
func (c *Client) sessionUp() {
	c.mu.Lock()
	c.connected = true
	for topic, sub := range c.subs {
		c.paho.Subscribe(topic, sub.qos, c.deliverTo(sub.handler))
	}
	callback := c.onConnect
	c.mu.Unlock()

	c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
		statusPayload("online", "", c.cfg.Broker.ClientID))

	if callback != nil {
		callback()
	}
}

func (c *Client) sessionDown(err error) {
	c.mu.Lock()
	c.connected = false
	callback := c.onDisconnect
	c.mu.Unlock()

	if callback != nil {
		callback(err)
	}
}

// Close announces a graceful shutdown on the status topic, then
// disconnects. Distinguishable from the LWT, which only fires on an
// unclean drop.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload("offline", "graceful_shutdown", c.cfg.Broker.ClientID))
		token.WaitTimeout(tokenTimeout)
	}

	c.paho.Disconnect(disconnectQuiesce)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	return nil
}

// HealthCheck reports whether the broker session is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known session state.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.paho.IsConnected()
}

// SetOnConnect registers a callback run on every (re)connect. The
// bridge uses it to republish retained status after a broker restart.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback run when the session drops.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger enables handler error and panic logging.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logger
}
