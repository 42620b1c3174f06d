package mqtt

import (
	"encoding/json"
	"fmt"
)

// Publish sends a message to the specified MQTT topic.
//
// The payload is marshaled to JSON. Publishing is asynchronous from the
// broker's perspective but this method waits (with timeout) for the
// client to hand the message off.
func (c *Client) Publish(topic string, payload any) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMarshalFailed, err)
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), false, data)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishRetained sends a retained message to the specified topic.
//
// Retained messages are delivered to new subscribers immediately on
// subscription, which suits last-known-state topics.
func (c *Client) PublishRetained(topic string, payload any) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMarshalFailed, err)
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), true, data)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
