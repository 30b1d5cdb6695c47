package mqtt

import "fmt"

// Publish sends payload to topic and waits up to the configured publish
// timeout for paho to hand it off. Topics containing wildcards, QoS
// above 2 and payloads above max_payload_size are refused before
// touching the network.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := ValidatePublishTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if limit := c.maxPayloadSize(); len(payload) > limit {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), limit)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	timeout := c.publishTimeout()
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %w after %v", ErrPublishFailed, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishStatus publishes a presence summary to the configured status
// topic using the configured QoS and retain flag.
func (c *Client) PublishStatus(payload []byte) error {
	return c.Publish(c.cfg.Topics.Status, payload, byte(c.cfg.QoS), c.cfg.RetainStatus)
}

// PublishDiscovery publishes a discovery snapshot to the configured
// discovery topic. Snapshots are never retained so a stopped scanner
// does not leave stale presence behind.
func (c *Client) PublishDiscovery(payload []byte) error {
	return c.Publish(c.cfg.Topics.Discovery, payload, byte(c.cfg.QoS), false)
}
