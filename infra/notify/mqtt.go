// Package notify broadcasts auction lifecycle events to volunteers over
// MQTT. It consumes the in-process event bus so the coordinator never
// blocks on broker I/O.
package notify

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/foodbridge/dispatch/core/logger"
	"github.com/foodbridge/dispatch/core/metrics"
	"github.com/foodbridge/dispatch/internal/eventbus"
)

// Publisher is the broker surface the notifier needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte) error
	Close()
}

// MqttClient wraps the paho client behind the Publisher interface.
type MqttClient struct {
	client mqtt.Client
}

// NewMqttClient connects to the broker. A nil tlsConfig yields a plain
// connection.
func NewMqttClient(broker, clientID string, tlsConfig *tls.Config) (*MqttClient, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetTLSConfig(tlsConfig).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MqttClient{client: client}, nil
}

// Publish sends the payload and waits for the token.
func (mc *MqttClient) Publish(topic string, payload []byte, qos byte) error {
	token := mc.client.Publish(topic, qos, false, payload)
	token.Wait()
	return token.Error()
}

// Close disconnects from the broker.
func (mc *MqttClient) Close() {
	if mc.client.IsConnected() {
		mc.client.Disconnect(250)
	}
}

// Notifier subscribes to the event bus and republishes auction and bid
// events on MQTT topics:
//
//	{prefix}/auctions/{auction_id}/status
//	{prefix}/auctions/{auction_id}/bids
type Notifier struct {
	pub    Publisher
	prefix string
	qos    byte
	log    logger.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

// NewNotifier creates a Notifier publishing under the topic prefix.
func NewNotifier(pub Publisher, prefix string, qos byte, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NopLogger{}
	}
	if prefix == "" {
		prefix = "dispatch"
	}
	return &Notifier{pub: pub, prefix: prefix, qos: qos, log: log, done: make(chan struct{})}
}

// Run consumes the bus until Stop is called or the bus closes.
func (n *Notifier) Run(bus *eventbus.Bus) {
	sub := bus.Subscribe()
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-n.done:
				bus.Unsubscribe(sub)
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				n.handle(ev)
			}
		}
	}()
}

// Stop ends the bus consumption and waits for in-flight publishes.
func (n *Notifier) Stop() {
	close(n.done)
	n.wg.Wait()
}

func (n *Notifier) handle(ev eventbus.Event) {
	switch e := ev.(type) {
	case metrics.AuctionEvent:
		n.publish(fmt.Sprintf("%s/auctions/%s/status", n.prefix, e.AuctionID), e)
	case metrics.BidEvent:
		n.publish(fmt.Sprintf("%s/auctions/%s/bids", n.prefix, e.AuctionID), e)
	}
}

func (n *Notifier) publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.log.Errorf("marshal notification: %v", err)
		return
	}
	if err := n.pub.Publish(topic, data, n.qos); err != nil {
		n.log.Errorf("publish %s: %v", topic, err)
	}
}
