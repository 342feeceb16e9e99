package Notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event is the wire shape of every emitted store/HQ event.
type Event struct {
	ID        string                 `json:"id"`
	Scope     string                 `json:"scope"`
	Name      string                 `json:"name"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// KafkaSink publishes events keyed by their scope so one store's events stay
// ordered on one partition.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// EmitToStore publishes an event scoped to one store.
func (s *KafkaSink) EmitToStore(storeID uint, name string, payload map[string]interface{}) error {
	return s.emit(fmt.Sprintf("store:%d", storeID), name, payload)
}

// EmitToHQ publishes an event scoped to a tenant's headquarters channel.
func (s *KafkaSink) EmitToHQ(companyID uint, name string, payload map[string]interface{}) error {
	return s.emit(fmt.Sprintf("hq:%d", companyID), name, payload)
}

func (s *KafkaSink) emit(scope, name string, payload map[string]interface{}) error {
	event := Event{
		ID:        uuid.New().String(),
		Scope:     scope,
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(scope),
		Value: value,
		Time:  event.Timestamp,
	})
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
