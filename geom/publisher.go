package geom

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes alignment records to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	records       map[string]AlignmentRecord
	mu            sync.RWMutex
}

// NewPublisher creates a new alignment publisher. MQTT_PUBLISH_PREFIX
// overrides prefix; an empty prefix falls back to the default.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = DefaultPublishPrefix
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true, // Late subscribers get the latest transform
		records:       make(map[string]AlignmentRecord),
	}
}

// Prefix returns the topic prefix in use
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}

// PublishAlignment publishes a record to <prefix>/<id>/transform and the
// combined <prefix>/transforms topic
func (p *Publisher) PublishAlignment(rec AlignmentRecord) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	p.mu.Lock()
	p.records[rec.ID] = rec
	p.mu.Unlock()

	if err := p.publishIndividual(rec); err != nil {
		log.Printf("[MQTT] Error publishing transform for %s: %v", rec.ID, err)
		return err
	}

	if err := p.publishCombined(); err != nil {
		log.Printf("[MQTT] Error publishing combined transforms: %v", err)
		return err
	}

	return nil
}

func (p *Publisher) publishIndividual(rec AlignmentRecord) error {
	topic := fmt.Sprintf("%s/%s/transform", p.publishPrefix, rec.ID)

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling alignment: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("[MQTT] Published transform for %s: rmsd=%.4f pairs=%d", rec.ID, rec.RMSD, rec.Count)
	return nil
}

func (p *Publisher) publishCombined() error {
	p.mu.RLock()
	records := make([]AlignmentRecord, 0, len(p.records))
	for _, rec := range p.records {
		records = append(records, rec)
	}
	p.mu.RUnlock()

	if len(records) == 0 {
		return nil
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	topic := fmt.Sprintf("%s/transforms", p.publishPrefix)

	message := map[string]interface{}{
		"alignments": records,
		"timestamp":  time.Now().Unix(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling combined transforms: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// GetAlignment returns the last published record for id
func (p *Publisher) GetAlignment(id string) (AlignmentRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[id]
	return rec, ok
}

// ClearAlignment forgets a record so it is left out of the combined topic
func (p *Publisher) ClearAlignment(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.records, id)
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
