package geom

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler is called when a correspondence set arrives over MQTT.
// setID comes from the payload, falling back to the topic.
type MessageHandler func(setID string, set *CorrespondenceSet, err error)

// MQTTClient manages the MQTT connection and the correspondence subscription
type MQTTClient struct {
	client         mqtt.Client
	config         *Config
	messageHandler MessageHandler
	isConnected    bool
	mu             sync.RWMutex
}

// InitMQTT creates an MQTT client with the provided configuration and starts connecting.
// If neither MQTT_BROKER nor mqtt.broker is set, MQTT is disabled and this returns nil.
func InitMQTT(config *Config, handler MessageHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}

	if broker == "" {
		log.Println("[MQTT] Disabled: MQTT_BROKER not set")
		return nil, nil
	}

	if config == nil {
		return nil, fmt.Errorf("MQTT enabled but no configuration provided")
	}
	if config.MQTT.InputTopic == "" {
		return nil, fmt.Errorf("MQTT enabled but mqtt.inputTopic is empty")
	}

	client := &MQTTClient{
		config:         config,
		messageHandler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" && config.MQTT.ClientID != "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = DefaultClientID
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // Preserve subscriptions on reconnect
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry()

	return client, nil
}

// connectWithRetry attempts to connect to the broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] Connecting to broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] Connected to broker")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] Connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] Connection timeout")
		}

		log.Printf("[MQTT] Retrying connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to the correspondence topic each time the connection is established
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	topic := c.config.MQTT.InputTopic
	log.Printf("[MQTT] Subscribing to %s", topic)
	token := client.Subscribe(topic, 0, c.createMessageHandler())
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("[MQTT] Error subscribing to %s: %v", topic, token.Error())
		return
	}
	log.Printf("[MQTT] Subscribed to %s", topic)
}

// onConnectionLost is called when the connection drops; auto-reconnect will retry
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] Connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("[MQTT] Reconnecting...")
}

// createMessageHandler decodes correspondence payloads and forwards them to the user handler
func (c *MQTTClient) createMessageHandler() mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		log.Printf("[MQTT] Received correspondences (topic: %s, size: %d bytes)", msg.Topic(), len(payload))

		set, err := ParseCorrespondences(payload, "json")
		if err != nil {
			id, _ := SetIDFromTopic(msg.Topic())
			log.Printf("[MQTT] Error decoding correspondences for %s: %v", id, err)
			if c.messageHandler != nil {
				c.messageHandler(id, nil, err)
			}
			return
		}

		if set.ID == "" {
			set.ID, _ = SetIDFromTopic(msg.Topic())
		}

		if c.messageHandler != nil {
			c.messageHandler(set.ID, set, nil)
		}
	}
}

// SetIDFromTopic extracts the set ID from a topic of the form <prefix>/<id>/<suffix>,
// taking the segment preceding the last one
func SetIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return "", false
	}
	id := parts[len(parts)-2]
	if id == "" {
		return "", false
	}
	return id, true
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] Disconnecting from broker...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient with a provided mqtt.Client
// This is used for testing with mock clients
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler MessageHandler) *MQTTClient {
	return &MQTTClient{
		client:         client,
		config:         config,
		messageHandler: handler,
	}
}
