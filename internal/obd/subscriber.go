// Package obd receives mocked OBD-II telemetry over MQTT and keeps the latest
// snapshot per vehicle for the telemetry viewer.
package obd

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/veydev/autocare/internal/models"
)

// TopicPrefix is the MQTT topic root; one subtopic per vehicle id.
const TopicPrefix = "autocare/telemetry/"

// Cache holds the most recent snapshot per vehicle.
type Cache struct {
	mu     sync.RWMutex
	latest map[string]models.OBDSnapshot
}

// NewCache creates an empty snapshot cache.
func NewCache() *Cache {
	return &Cache{latest: make(map[string]models.OBDSnapshot)}
}

// Update stores a snapshot, replacing any older one for the same vehicle.
func (c *Cache) Update(snap models.OBDSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.latest[snap.VehicleID]
	if ok && snap.Timestamp.Before(current.Timestamp) {
		return
	}
	c.latest[snap.VehicleID] = snap
}

// Latest returns the newest snapshot for a vehicle.
func (c *Cache) Latest(vehicleID string) (models.OBDSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.latest[vehicleID]
	return snap, ok
}

// applyPayload decodes one telemetry message into the cache. The vehicle id
// comes from the topic; a vehicle_id in the payload must match it.
func applyPayload(cache *Cache, topic string, payload []byte) error {
	vehicleID := strings.TrimPrefix(topic, TopicPrefix)
	if vehicleID == "" || strings.Contains(vehicleID, "/") {
		return fmt.Errorf("unexpected telemetry topic %q", topic)
	}

	var snap models.OBDSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return fmt.Errorf("invalid telemetry payload: %w", err)
	}
	if snap.VehicleID == "" {
		snap.VehicleID = vehicleID
	}
	if snap.VehicleID != vehicleID {
		return fmt.Errorf("payload vehicle %q does not match topic vehicle %q", snap.VehicleID, vehicleID)
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}

	cache.Update(snap)
	return nil
}

// Subscriber keeps the cache fed from the MQTT broker.
type Subscriber struct {
	client mqtt.Client
	cache  *Cache
}

// NewSubscriber configures an MQTT client against brokerURL (e.g. tcp://mqtt:1883).
func NewSubscriber(brokerURL string, cache *Cache) *Subscriber {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("autocare-server").
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	return &Subscriber{
		client: mqtt.NewClient(opts),
		cache:  cache,
	}
}

// Start connects and subscribes to all vehicle telemetry topics.
func (s *Subscriber) Start() error {
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	token := s.client.Subscribe(TopicPrefix+"+", 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := applyPayload(s.cache, msg.Topic(), msg.Payload()); err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("Dropped telemetry message")
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe: %w", token.Error())
	}

	log.WithField("topic", TopicPrefix+"+").Info("Subscribed to OBD telemetry")
	return nil
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop() {
	s.client.Disconnect(250)
}
