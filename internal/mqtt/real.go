package mqtt

import (
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"compass-ng/internal/heading"
)

// RealClient talks to an actual MQTT broker.
type RealClient struct {
	client       paho.Client
	headingTopic string
}

// Dial connects to the broker and returns a client usable as both a sample
// source and an estimate publisher.
func Dial(broker, clientID, headingTopic string) (*RealClient, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt: connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to broker: %w", err)
	}

	return &RealClient{client: client, headingTopic: headingTopic}, nil
}

// SubscribeSamples attaches the sample handlers. Malformed payloads are
// logged and dropped; the previous estimate stays valid downstream.
func (c *RealClient) SubscribeSamples(magTopic, accelTopic string, onMag func(heading.MagSample), onAccel func(heading.AccelSample)) error {
	magToken := c.client.Subscribe(magTopic, 0, func(_ paho.Client, msg paho.Message) {
		s, err := DecodeMag(msg.Payload())
		if err != nil {
			log.Printf("mqtt: drop %s: %v", magTopic, err)
			return
		}
		onMag(s)
	})
	magToken.Wait()
	if err := magToken.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", magTopic, err)
	}

	if accelTopic == "" || onAccel == nil {
		return nil
	}
	accelToken := c.client.Subscribe(accelTopic, 0, func(_ paho.Client, msg paho.Message) {
		s, err := DecodeAccel(msg.Payload())
		if err != nil {
			log.Printf("mqtt: drop %s: %v", accelTopic, err)
			return
		}
		onAccel(s)
	})
	accelToken.Wait()
	if err := accelToken.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", accelTopic, err)
	}
	return nil
}

// PublishEstimate sends one estimate at QoS 0, not retained.
func (c *RealClient) PublishEstimate(est heading.Estimate) error {
	payload, err := FormatEstimate(est)
	if err != nil {
		return fmt.Errorf("mqtt: format estimate: %w", err)
	}
	token := c.client.Publish(c.headingTopic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt: publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000)
	return nil
}
