package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publish sends payload to topic and waits for the broker's
// acknowledgement. Retained is used for every status topic so a
// reconnecting gateway or dashboard sees current state immediately;
// request and command payloads go out unretained.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrPublishFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.paho.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("%w: no acknowledgement within %v", ErrPublishFailed, tokenTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers handler for topic and records the subscription so
// it is replayed after a reconnect. Handlers run on paho's delivery
// goroutines and must hand off rather than block.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrSubscribeFailed)
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	token := c.paho.Subscribe(topic, qos, c.deliverTo(handler))
	if !token.WaitTimeout(tokenTimeout) {
		c.forget(topic)
		return fmt.Errorf("%w: no acknowledgement within %v", ErrSubscribeFailed, tokenTimeout)
	}
	if err := token.Error(); err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

func (c *Client) forget(topic string) {
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()
}

// deliverTo adapts a MessageHandler to paho's callback shape. A panic
// in a handler is recovered and logged; one bad payload must not kill
// the delivery goroutine.
func (c *Client) deliverTo(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("mqtt handler panic", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("mqtt handler error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
