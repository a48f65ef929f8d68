// mqtt.go - MQTT client used to command devices and receive their status

package mqtt // Declares the package name

import ( // Import required packages
	"encoding/json" // Payload encoding for non-string payloads
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang" // MQTT client library
	"github.com/sirupsen/logrus"
)

const (
	qos            = 1               // At-least-once delivery for commands
	publishTimeout = 5 * time.Second // How long to wait for the broker ack
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload interface{}) error
}

// Handler receives every message on a subscribed topic.
type Handler func(topic string, payload []byte)

// Client wraps a paho connection.
type Client struct {
	conn paho.Client
}

// Connect dials the broker. Subscriptions made with Subscribe are restored
// when paho reconnects.
func Connect(broker, clientID string) (*Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logrus.WithError(err).Warn("mqtt connection lost")
		}).
		SetOnConnectHandler(func(paho.Client) {
			logrus.WithField("broker", broker).Info("mqtt connected")
		})

	conn := paho.NewClient(opts)
	token := conn.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return &Client{conn: conn}, nil
}

// Publish sends payload to topic. Strings and byte slices go out as-is,
// anything else is encoded as JSON.
func (c *Client) Publish(topic string, payload interface{}) error {
	body, err := Encode(payload)
	if err != nil {
		return err
	}
	token := c.conn.Publish(topic, qos, false, body)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	return token.Error()
}

// Subscribe registers h for topic (wildcards allowed).
func (c *Client) Subscribe(topic string, h Handler) error {
	token := c.conn.Subscribe(topic, qos, func(_ paho.Client, m paho.Message) {
		h(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt subscribe %s: timeout", topic)
	}
	return token.Error()
}

// Close disconnects, giving in-flight messages a moment to drain.
func (c *Client) Close() {
	c.conn.Disconnect(250)
}

// Encode turns a command payload into the bytes put on the wire.
func Encode(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return b, nil
	}
}
